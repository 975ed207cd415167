package handler

import (
	"errors"
	"sync"
	"testing"

	"github.com/hostvirt/hostlog/core"
)

// fakeSyslog stands in for the system log transport. It can be told to
// refuse connections or fail writes.
type fakeSyslog struct {
	mu        sync.Mutex
	dials     int
	refuse    bool
	failWrite bool
	messages  []string
	closed    int
}

func (f *fakeSyslog) dial() (syslogConn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials++
	if f.refuse {
		return nil, errors.New("connection refused")
	}
	return f, nil
}

func (f *fakeSyslog) write(m string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite {
		return errors.New("broken pipe")
	}
	f.messages = append(f.messages, m)
	return nil
}

func (f *fakeSyslog) Debug(m string) error   { return f.write(m) }
func (f *fakeSyslog) Info(m string) error    { return f.write(m) }
func (f *fakeSyslog) Warning(m string) error { return f.write(m) }
func (f *fakeSyslog) Err(m string) error     { return f.write(m) }

func (f *fakeSyslog) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeSyslog) set(fn func(*fakeSyslog)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func newTestSyslogHandler(t *testing.T, fake *fakeSyslog, minLevel core.Level) *SyslogHandler {
	t.Helper()
	h, err := NewSyslogHandler(SyslogConfig{
		Facility: "daemon",
		Tag:      "hostlogd",
		MinLevel: minLevel,
		Dial:     fake.dial,
	})
	if err != nil {
		t.Fatalf("NewSyslogHandler() error = %v", err)
	}
	return h
}

func TestSyslogHandler_LazyConnect(t *testing.T) {
	fake := &fakeSyslog{}
	h := newTestSyslogHandler(t, fake, core.DebugLevel)
	defer h.Close()

	if fake.dials != 0 {
		t.Fatalf("transport dialed %d times before first emit, want 0", fake.dials)
	}

	h.Emit(record(core.InfoLevel, "first"))
	h.Emit(record(core.InfoLevel, "second"))

	if fake.dials != 1 {
		t.Errorf("transport dialed %d times, want 1", fake.dials)
	}
	if len(fake.messages) != 2 {
		t.Errorf("forwarded %d messages, want 2", len(fake.messages))
	}
	// The first lazy dial is not a reconnect.
	if got := h.Stats().Reconnects; got != 0 {
		t.Errorf("Reconnects = %d after a healthy connect, want 0", got)
	}
}

func TestSyslogHandler_Threshold(t *testing.T) {
	fake := &fakeSyslog{}
	h := newTestSyslogHandler(t, fake, core.WarnLevel)
	defer h.Close()

	h.Emit(record(core.InfoLevel, "ignored"))
	if fake.dials != 0 {
		t.Error("record below threshold must not even dial the transport")
	}

	h.Emit(record(core.ErrorLevel, "forwarded"))
	if len(fake.messages) != 1 || fake.messages[0] != "forwarded" {
		t.Errorf("messages = %v, want [forwarded]", fake.messages)
	}
}

func TestSyslogHandler_ReconnectOnceThenDrop(t *testing.T) {
	fake := &fakeSyslog{}
	h := newTestSyslogHandler(t, fake, core.DebugLevel)
	defer h.Close()

	// Healthy first write establishes the connection.
	h.Emit(record(core.InfoLevel, "ok"))

	// Break both the connection and redial.
	fake.set(func(f *fakeSyslog) { f.failWrite = true; f.refuse = true })

	err := h.Emit(record(core.InfoLevel, "lost"))
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("Emit() error = %v, want TransportError", err)
	}
	if got := h.Stats().Dropped; got != 1 {
		t.Errorf("Dropped = %d, want exactly 1", got)
	}
	// One original dial plus one failed reconnect attempt.
	if fake.dials != 2 {
		t.Errorf("dials = %d, want 2", fake.dials)
	}
	if got := h.Stats().Reconnects; got != 1 {
		t.Errorf("Reconnects = %d, want 1", got)
	}

	// Transport heals: the next record goes through and the drop
	// counter stays put.
	fake.set(func(f *fakeSyslog) { f.failWrite = false; f.refuse = false })
	if err := h.Emit(record(core.InfoLevel, "recovered")); err != nil {
		t.Fatalf("Emit() after recovery error = %v", err)
	}
	if got := h.Stats().Dropped; got != 1 {
		t.Errorf("Dropped = %d after recovery, want still 1", got)
	}
}

func TestSyslogHandler_ReconnectSucceedsWithinEmit(t *testing.T) {
	fake := &fakeSyslog{}
	h := newTestSyslogHandler(t, fake, core.DebugLevel)
	defer h.Close()

	h.Emit(record(core.InfoLevel, "ok"))

	// Write fails once but redial works: the record must be delivered
	// by the single reconnect attempt, not dropped.
	fake.set(func(f *fakeSyslog) { f.failWrite = true })
	fakeHealAfterDial := func() (syslogConn, error) {
		fake.set(func(f *fakeSyslog) { f.failWrite = false })
		return fake.dial()
	}
	h.dial = fakeHealAfterDial

	if err := h.Emit(record(core.InfoLevel, "retried")); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	if got := h.Stats().Dropped; got != 0 {
		t.Errorf("Dropped = %d, want 0", got)
	}
	if fake.messages[len(fake.messages)-1] != "retried" {
		t.Errorf("last message = %q, want %q", fake.messages[len(fake.messages)-1], "retried")
	}
}

func TestSyslogHandler_DialFailureAtFirstUse(t *testing.T) {
	fake := &fakeSyslog{refuse: true}
	h := newTestSyslogHandler(t, fake, core.DebugLevel)
	defer h.Close()

	err := h.Emit(record(core.InfoLevel, "unreachable"))
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("Emit() error = %v, want TransportError", err)
	}
	if got := h.Stats().Dropped; got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
}

func TestSyslogHandler_UnknownFacility(t *testing.T) {
	if _, err := NewSyslogHandler(SyslogConfig{Facility: "kernelish"}); err == nil {
		t.Fatal("NewSyslogHandler() with unknown facility should fail")
	}
}

func TestSyslogHandler_CloseWithoutConnect(t *testing.T) {
	fake := &fakeSyslog{}
	h := newTestSyslogHandler(t, fake, core.DebugLevel)
	if err := h.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if fake.closed != 0 {
		t.Error("Close() closed a connection that was never opened")
	}
}
