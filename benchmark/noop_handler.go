package benchmark

import (
	"github.com/hostvirt/hostlog/core"
	"github.com/hostvirt/hostlog/handler"
)

// noopHandler measures routing and record-assembly cost without any
// formatting or I/O. It does not retain records, so the router
// recycles them after Emit returns.
type noopHandler struct{}

func newNoopHandler() handler.Handler {
	return &noopHandler{}
}

func (h *noopHandler) Emit(r *core.Record) error {
	_ = len(r.Message)
	return nil
}

func (h *noopHandler) Close() error {
	return nil
}
