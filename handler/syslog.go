package handler

import (
	"fmt"
	"log/syslog"
	"strings"
	"sync"

	"github.com/hostvirt/hostlog/core"
	"github.com/hostvirt/hostlog/formatter"
)

// syslogConn is the subset of *syslog.Writer the handler uses. Tests
// substitute a fake to exercise the reconnect path without a running
// syslog daemon.
type syslogConn interface {
	Debug(m string) error
	Info(m string) error
	Warning(m string) error
	Err(m string) error
	Close() error
}

// SyslogDialFunc opens the system log transport.
type SyslogDialFunc func() (syslogConn, error)

// SyslogHandler forwards records at or above its threshold to the local
// system log. The transport is dialed lazily on first use; on a write
// failure the handler reconnects once, and if that also fails the record
// is dropped and counted rather than retried.
type SyslogHandler struct {
	facility  syslog.Priority
	tag       string
	minLevel  core.Level
	formatter formatter.Formatter

	mu    sync.Mutex
	conn  syslogConn
	dial  SyslogDialFunc
	stats *Stats
}

// SyslogConfig holds configuration for a syslog handler.
type SyslogConfig struct {
	// Facility is the syslog facility name, e.g. "daemon" or "local0"
	// (default: "user")
	Facility string
	// Tag identifies the daemon in forwarded messages (default: process name
	// chosen by the syslog package)
	Tag string
	// MinLevel is the forwarding threshold (default: DebugLevel)
	MinLevel core.Level
	// Formatter to use; nil forwards the raw message
	Formatter formatter.Formatter
	// Dial overrides the transport constructor; tests use this
	Dial SyslogDialFunc
}

// NewSyslogHandler creates a new syslog handler. It does not connect:
// the transport is opened on the first accepted record.
func NewSyslogHandler(cfg SyslogConfig) (*SyslogHandler, error) {
	facility, err := parseFacility(cfg.Facility)
	if err != nil {
		return nil, err
	}

	h := &SyslogHandler{
		facility:  facility,
		tag:       cfg.Tag,
		minLevel:  cfg.MinLevel,
		formatter: cfg.Formatter,
		dial:      cfg.Dial,
		stats:     NewStats(),
	}
	if h.dial == nil {
		h.dial = func() (syslogConn, error) {
			return syslog.New(facility|syslog.LOG_INFO, cfg.Tag)
		}
	}
	return h, nil
}

// parseFacility maps a configuration facility name to a syslog priority.
func parseFacility(name string) (syslog.Priority, error) {
	switch strings.ToLower(name) {
	case "", "user":
		return syslog.LOG_USER, nil
	case "daemon":
		return syslog.LOG_DAEMON, nil
	case "syslog":
		return syslog.LOG_SYSLOG, nil
	case "local0":
		return syslog.LOG_LOCAL0, nil
	case "local1":
		return syslog.LOG_LOCAL1, nil
	case "local2":
		return syslog.LOG_LOCAL2, nil
	case "local3":
		return syslog.LOG_LOCAL3, nil
	case "local4":
		return syslog.LOG_LOCAL4, nil
	case "local5":
		return syslog.LOG_LOCAL5, nil
	case "local6":
		return syslog.LOG_LOCAL6, nil
	case "local7":
		return syslog.LOG_LOCAL7, nil
	default:
		return 0, fmt.Errorf("handler: unknown syslog facility %q", name)
	}
}

// Emit forwards one record as one transport write.
func (h *SyslogHandler) Emit(r *core.Record) error {
	if r.Level < h.minLevel {
		return nil
	}

	data, err := renderRecord(h.formatter, r)
	if err != nil {
		h.stats.IncrementEmitFailures()
		return err
	}
	msg := strings.TrimSuffix(string(data), "\n")

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conn == nil {
		if err := h.connectLocked(); err != nil {
			h.stats.IncrementDropped()
			return &TransportError{Transport: "syslog", Err: err}
		}
	}

	if err := h.writeLocked(r.Level, msg); err == nil {
		h.stats.IncrementProcessed()
		return nil
	}

	// One reconnect attempt, then drop and count.
	h.conn.Close()
	h.conn = nil
	h.stats.IncrementReconnects()
	if err := h.connectLocked(); err != nil {
		h.stats.IncrementDropped()
		return &TransportError{Transport: "syslog", Err: err}
	}
	if err := h.writeLocked(r.Level, msg); err != nil {
		h.stats.IncrementDropped()
		return &TransportError{Transport: "syslog", Err: err}
	}
	h.stats.IncrementProcessed()
	return nil
}

// connectLocked dials the transport. Callers must hold h.mu. The first
// lazy dial is not a reconnect; only the redial after a write failure
// counts as one.
func (h *SyslogHandler) connectLocked() error {
	conn, err := h.dial()
	if err != nil {
		return err
	}
	h.conn = conn
	return nil
}

// writeLocked maps the record level onto the matching syslog severity.
// Callers must hold h.mu.
func (h *SyslogHandler) writeLocked(level core.Level, msg string) error {
	switch level {
	case core.DebugLevel:
		return h.conn.Debug(msg)
	case core.InfoLevel:
		return h.conn.Info(msg)
	case core.WarnLevel:
		return h.conn.Warning(msg)
	default:
		return h.conn.Err(msg)
	}
}

// Stats returns a snapshot of the current statistics
func (h *SyslogHandler) Stats() Snapshot {
	return h.stats.GetSnapshot()
}

// Close closes the transport if it was ever opened.
func (h *SyslogHandler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == nil {
		return nil
	}
	err := h.conn.Close()
	h.conn = nil
	return err
}
