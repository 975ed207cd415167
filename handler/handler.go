package handler

import (
	"github.com/hostvirt/hostlog/core"
)

// Handler defines the interface for record sinks
type Handler interface {
	// Emit delivers one record. Implementations apply their own minimum
	// level before doing any work and must be safe for concurrent use.
	Emit(r *core.Record) error

	// Close releases the handler's output resource. For queued handlers
	// this drains all pending records first.
	Close() error
}

// Retainer is an optional interface for handlers that keep a reference
// to the record after Emit returns (the queued wrapper). The router
// hands such handlers their own copy of the record and leaves recycling
// to them.
type Retainer interface {
	Retains() bool
}

// Retains reports whether h keeps records past Emit.
func Retains(h Handler) bool {
	if r, ok := h.(Retainer); ok {
		return r.Retains()
	}
	return false
}
