package core

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log record
type Level int8

const (
	// DebugLevel for detailed debugging information
	DebugLevel Level = iota
	// InfoLevel for general informational messages (default)
	InfoLevel
	// WarnLevel for warning messages
	WarnLevel
	// ErrorLevel for error messages
	ErrorLevel
	// FatalLevel for unrecoverable failures; only the daemon glue uses it
	FatalLevel
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name to a Level. It accepts the four
// names used in configuration files plus WARNING as an alias.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DebugLevel, true
	case "INFO":
		return InfoLevel, true
	case "WARN", "WARNING":
		return WarnLevel, true
	case "ERROR":
		return ErrorLevel, true
	default:
		return InfoLevel, false
	}
}

// Record is a single log event. It is filled in once by the logger that
// created it and never mutated afterwards, so handlers on any goroutine
// may read it without locking.
type Record struct {
	// Name is the dot-separated name of the logger that produced the record.
	Name    string
	Level   Level
	Message string
	Time    time.Time
	// Thread labels the producing goroutine. Empty when capture is disabled.
	Thread string
	PID    int
	// Module is the base name of the source file that made the log call.
	Module string
	Line   int
}

// pid is captured once; it cannot change for the life of the process.
var pid = os.Getpid()

// PID returns the current process id as stamped into records.
func PID() int {
	return pid
}

// recordPool keeps Record values off the hot-path allocator. Records are
// recycled by the router only when no handler retained a reference.
var recordPool = sync.Pool{
	New: func() interface{} {
		return &Record{}
	},
}

// GetRecord retrieves a blank Record from the pool with the process id
// already stamped.
func GetRecord() *Record {
	r := recordPool.Get().(*Record)
	r.PID = pid
	return r
}

// PutRecord returns a Record to the pool. Callers must not touch the
// record afterwards.
func PutRecord(r *Record) {
	if r == nil {
		return
	}
	*r = Record{}
	recordPool.Put(r)
}

// CallerInfo identifies the source location of a log call.
type CallerInfo struct {
	Module  string
	Line    int
	Defined bool
}

// GetCaller retrieves caller information skip frames above this call.
func GetCaller(skip int) CallerInfo {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return CallerInfo{}
	}
	return CallerInfo{
		Module:  filepath.Base(file),
		Line:    line,
		Defined: true,
	}
}
