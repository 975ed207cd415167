package formatter

import (
	"bytes"
	"io"
	"sync"

	"github.com/hostvirt/hostlog/core"
)

// Formatter defines the interface for record formatters
type Formatter interface {
	// Format renders a record into bytes, including the trailing newline
	Format(r *core.Record) ([]byte, error)
}

// WriterFormatter is an optional interface that formatters can implement
// to write directly to a writer without an intermediate byte slice.
type WriterFormatter interface {
	// FormatTo formats a record and writes it directly to the writer
	FormatTo(r *core.Record, w io.Writer) error
}

// bufferPool is a pool of bytes.Buffer to reduce allocations
var bufferPool = &sync.Pool{
	New: func() interface{} {
		b := new(bytes.Buffer)
		b.Grow(256)
		return b
	},
}

func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 64*1024 { // Don't keep very large buffers
		return
	}
	bufferPool.Put(buf)
}
