package logger

import (
	"fmt"

	"github.com/hostvirt/hostlog/core"
	"github.com/hostvirt/hostlog/handler"
)

// Logger is a named node in a registry's routing tree. It decides
// whether a record is emitted (by effective level) and where it goes
// (its own handlers, then its ancestors' handlers while propagation
// allows). Loggers are created by Registry.GetLogger and live as long
// as their registry.
type Logger struct {
	registry *Registry
	name     string
	parent   *Logger

	// Guarded by registry.mu.
	level     core.Level
	levelSet  bool
	handlers  []handler.Handler
	propagate bool
}

// Name returns the logger's dot-separated name; the root's is empty.
func (l *Logger) Name() string {
	return l.name
}

// SetLevel gives the logger its own level, overriding inheritance.
func (l *Logger) SetLevel(level core.Level) {
	l.registry.mu.Lock()
	l.level = level
	l.levelSet = true
	l.registry.mu.Unlock()
}

// ClearLevel removes the logger's own level so it inherits the nearest
// ancestor's again. No-op on the root, which always has a level.
func (l *Logger) ClearLevel() {
	if l.parent == nil {
		return
	}
	l.registry.mu.Lock()
	l.levelSet = false
	l.registry.mu.Unlock()
}

// EffectiveLevel resolves the level this logger filters at: its own if
// set, else the nearest ancestor's.
func (l *Logger) EffectiveLevel() core.Level {
	l.registry.mu.RLock()
	defer l.registry.mu.RUnlock()
	return l.effectiveLevelLocked()
}

func (l *Logger) effectiveLevelLocked() core.Level {
	for node := l; node != nil; node = node.parent {
		if node.levelSet {
			return node.level
		}
	}
	// Unreachable: the root always has levelSet.
	return core.InfoLevel
}

// AddHandler appends h to the logger's handler list. Attachment order
// is emission order.
func (l *Logger) AddHandler(h handler.Handler) {
	l.registry.mu.Lock()
	l.handlers = append(l.handlers, h)
	l.registry.mu.Unlock()
}

// SetPropagate controls whether records continue to ancestor handlers
// after this node's own handlers have fired.
func (l *Logger) SetPropagate(propagate bool) {
	l.registry.mu.Lock()
	l.propagate = propagate
	l.registry.mu.Unlock()
}

// Log routes one record at the given level. Positional arguments are
// substituted printf-style, and only after the level gate passes, so a
// filtered-out call costs a read lock and an integer comparison.
func (l *Logger) Log(level core.Level, format string, args ...interface{}) {
	l.log(level, format, args)
}

// Debug logs at DebugLevel.
func (l *Logger) Debug(msg string) {
	l.log(core.DebugLevel, msg, nil)
}

// Info logs at InfoLevel.
func (l *Logger) Info(msg string) {
	l.log(core.InfoLevel, msg, nil)
}

// Warn logs at WarnLevel.
func (l *Logger) Warn(msg string) {
	l.log(core.WarnLevel, msg, nil)
}

// Error logs at ErrorLevel.
func (l *Logger) Error(msg string) {
	l.log(core.ErrorLevel, msg, nil)
}

// Debugf logs at DebugLevel with printf substitution.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(core.DebugLevel, format, args)
}

// Infof logs at InfoLevel with printf substitution.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(core.InfoLevel, format, args)
}

// Warnf logs at WarnLevel with printf substitution.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(core.WarnLevel, format, args)
}

// Errorf logs at ErrorLevel with printf substitution.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(core.ErrorLevel, format, args)
}

// log gates, builds the record, and walks the tree delivering it.
func (l *Logger) log(level core.Level, format string, args []interface{}) {
	reg := l.registry

	reg.mu.RLock()
	if level < l.effectiveLevelLocked() {
		reg.mu.RUnlock()
		return
	}

	// Collect the delivery plan under the read lock: every handler from
	// this node to the first non-propagating ancestor, in attachment
	// order per node.
	var plan []handler.Handler
	for node := l; node != nil; node = node.parent {
		plan = append(plan, node.handlers...)
		if !node.propagate {
			break
		}
	}
	captureThread := reg.captureThread
	captureCaller := reg.captureCaller
	reg.mu.RUnlock()

	// No handler anywhere on the path: a valid configuration, and the
	// record is dropped before any formatting cost.
	if len(plan) == 0 {
		return
	}

	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}

	r := core.GetRecord()
	r.Name = l.name
	r.Level = level
	r.Message = msg
	r.Time = reg.now()
	if captureThread {
		r.Thread = core.GoroutineLabel()
	}
	if captureCaller {
		c := core.GetCaller(3)
		r.Module = c.Module
		r.Line = c.Line
	}

	for _, h := range plan {
		var err error
		if handler.Retains(h) {
			// The handler keeps the record past Emit, so it gets its
			// own copy and recycles it after delivery.
			dup := core.GetRecord()
			*dup = *r
			err = h.Emit(dup)
		} else {
			err = h.Emit(r)
		}
		if err != nil {
			// Delivery failures never reach the logging call site; a
			// terse note goes to the last-resort channel instead.
			fmt.Fprintf(reg.fallback, "hostlog: emit failed: %v\n", err)
		}
	}
	core.PutRecord(r)
}
