// Package formatter defines how log records are serialized into bytes.
//
// It exposes two interfaces: Formatter, which returns a []byte, and
// WriterFormatter, which writes directly to an io.Writer. Handlers
// check for WriterFormatter at construction time and prefer it when
// available, eliminating the intermediate byte slice allocation on
// the write path.
//
// The PatternFormatter renders records through a named template with
// %(field)s directives: asctime, levelname, name, message, threadName,
// module, lineno, and process. Directives naming anything else render
// as empty text. The template is compiled into segments once at
// construction, and the timezone for %(asctime)s is an explicit
// parameter rather than inherited from the ambient environment.
//
// Formatting uses a pooled bytes.Buffer and Go's Append-style functions
// (time.AppendFormat, strconv.AppendInt) to avoid per-call allocations.
// Buffers larger than 64 KiB are not returned to the pool to prevent a
// single large log line from permanently inflating memory usage.
package formatter
