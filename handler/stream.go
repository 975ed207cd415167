package handler

import (
	"io"
	"os"
	"sync"

	"github.com/hostvirt/hostlog/core"
	"github.com/hostvirt/hostlog/formatter"
)

// StreamHandler writes formatted records to an io.Writer, one write call
// per record, serialized by an internal lock.
type StreamHandler struct {
	writer          io.Writer
	formatter       formatter.Formatter
	writerFormatter formatter.WriterFormatter
	minLevel        core.Level
	mu              sync.Mutex
	stats           *Stats
}

// StreamConfig holds configuration for a stream handler.
type StreamConfig struct {
	// Writer to write to (default: os.Stdout)
	Writer io.Writer
	// Formatter to use; nil writes the raw message
	Formatter formatter.Formatter
	// MinLevel is the handler's own threshold (default: DebugLevel, pass everything)
	MinLevel core.Level
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(cfg StreamConfig) *StreamHandler {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	h := &StreamHandler{
		writer:    cfg.Writer,
		formatter: cfg.Formatter,
		minLevel:  cfg.MinLevel,
		stats:     NewStats(),
	}
	// Cache WriterFormatter for the no-copy path
	h.writerFormatter, _ = cfg.Formatter.(formatter.WriterFormatter)
	return h
}

// Emit writes one record to the stream.
func (h *StreamHandler) Emit(r *core.Record) error {
	if r.Level < h.minLevel {
		return nil
	}

	if h.writerFormatter != nil {
		h.mu.Lock()
		err := h.writerFormatter.FormatTo(r, h.writer)
		h.mu.Unlock()
		if err != nil {
			h.stats.IncrementEmitFailures()
			return err
		}
		h.stats.IncrementProcessed()
		return nil
	}

	data, err := renderRecord(h.formatter, r)
	if err != nil {
		h.stats.IncrementEmitFailures()
		return err
	}

	h.mu.Lock()
	_, err = h.writer.Write(data)
	h.mu.Unlock()
	if err != nil {
		h.stats.IncrementEmitFailures()
		return err
	}
	h.stats.IncrementProcessed()
	return nil
}

// Stats returns a snapshot of the current statistics
func (h *StreamHandler) Stats() Snapshot {
	return h.stats.GetSnapshot()
}

// Close releases nothing: the handler does not own the writer it was given.
func (h *StreamHandler) Close() error {
	return nil
}

// renderRecord formats r with f, falling back to the raw message plus a
// newline when no formatter is bound.
func renderRecord(f formatter.Formatter, r *core.Record) ([]byte, error) {
	if f != nil {
		return f.Format(r)
	}
	out := make([]byte, 0, len(r.Message)+1)
	out = append(out, r.Message...)
	out = append(out, '\n')
	return out, nil
}
