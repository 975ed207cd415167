package handler

import (
	"errors"
	"fmt"
)

// ErrQueueClosed is returned by a queued handler's Emit after Close.
var ErrQueueClosed = errors.New("handler: queue closed")

// FileError describes a failed file operation. It is surfaced to the
// caller of Emit (typically the queue consumer) and never raised into
// arbitrary logging call sites.
type FileError struct {
	Op   string // "open", "chown", "chmod", "write", "reopen"
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("handler: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// TransportError describes a lost or unreachable log transport. The
// syslog handler returns it after its single reconnect attempt fails;
// the record in question has already been dropped and counted.
type TransportError struct {
	Transport string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("handler: %s transport: %v", e.Transport, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
