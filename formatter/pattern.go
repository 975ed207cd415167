package formatter

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hostvirt/hostlog/core"
)

// Interpolation field names recognized inside %(...)X directives.
const (
	fieldAsctime   = "asctime"
	fieldLevelName = "levelname"
	fieldName      = "name"
	fieldMessage   = "message"
	fieldThread    = "threadName"
	fieldModule    = "module"
	fieldLine      = "lineno"
	fieldProcess   = "process"
)

// Well-known templates. Long matches the daemon's main log file layout,
// Syslog the layout forwarded to the system log, Simple a bare message.
const (
	LongTemplate   = "%(asctime)s %(levelname)s (%(threadName)s) [%(name)s] %(message)s (%(module)s:%(lineno)d)"
	SyslogTemplate = "%(name)s %(levelname)s %(message)s"
	SimpleTemplate = "%(message)s"
)

// DefaultTimestampFormat renders local wall time with millisecond
// precision.
const DefaultTimestampFormat = "2006-01-02 15:04:05.000"

type segmentKind uint8

const (
	segLiteral segmentKind = iota
	segField
)

type segment struct {
	kind    segmentKind
	literal string
	field   string
}

// PatternFormatter renders records through a %(field)s-style template.
// The template is parsed once at construction; Format itself touches no
// shared mutable state, so a single PatternFormatter may serve any number
// of handlers concurrently.
type PatternFormatter struct {
	segments        []segment
	location        *time.Location
	timestampFormat string
}

// PatternConfig configures a PatternFormatter.
type PatternConfig struct {
	// Template is the interpolation template (default: LongTemplate)
	Template string
	// Location is the timezone timestamps render in. Timestamps must
	// follow the host's configured local time rather than whatever the
	// ambient process environment says, so this is an explicit parameter
	// (default: time.Local).
	Location *time.Location
	// TimestampFormat is the layout for %(asctime)s (default: DefaultTimestampFormat)
	TimestampFormat string
}

// NewPatternFormatter creates a formatter from cfg. Directives naming
// unknown fields render as empty rather than failing; a malformed
// directive (unterminated "%(") is kept as literal text.
func NewPatternFormatter(cfg PatternConfig) *PatternFormatter {
	if cfg.Template == "" {
		cfg.Template = LongTemplate
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.TimestampFormat == "" {
		cfg.TimestampFormat = DefaultTimestampFormat
	}
	return &PatternFormatter{
		segments:        parseTemplate(cfg.Template),
		location:        cfg.Location,
		timestampFormat: cfg.TimestampFormat,
	}
}

// parseTemplate splits a template into literal and field segments.
func parseTemplate(tmpl string) []segment {
	var segs []segment
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, segment{kind: segLiteral, literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(tmpl); {
		if tmpl[i] != '%' {
			lit.WriteByte(tmpl[i])
			i++
			continue
		}
		// "%%" is a literal percent sign.
		if i+1 < len(tmpl) && tmpl[i+1] == '%' {
			lit.WriteByte('%')
			i += 2
			continue
		}
		// Expect "%(name)v" where v is a single verb character.
		if i+1 >= len(tmpl) || tmpl[i+1] != '(' {
			lit.WriteByte('%')
			i++
			continue
		}
		end := strings.IndexByte(tmpl[i+2:], ')')
		if end < 0 {
			// Unterminated directive, keep as literal.
			lit.WriteString(tmpl[i:])
			break
		}
		name := tmpl[i+2 : i+2+end]
		i += 2 + end + 1
		// Consume the verb character if present.
		if i < len(tmpl) {
			i++
		}
		flush()
		segs = append(segs, segment{kind: segField, field: name})
	}
	flush()
	return segs
}

// Format renders the record and returns the bytes, trailing newline included.
func (f *PatternFormatter) Format(r *core.Record) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	f.formatToBuffer(r, buf)

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// FormatTo renders the record directly into w.
func (f *PatternFormatter) FormatTo(r *core.Record, w io.Writer) error {
	buf := getBuffer()
	f.formatToBuffer(r, buf)
	_, err := w.Write(buf.Bytes())
	putBuffer(buf)
	return err
}

func (f *PatternFormatter) formatToBuffer(r *core.Record, buf *bytes.Buffer) {
	for _, seg := range f.segments {
		if seg.kind == segLiteral {
			buf.WriteString(seg.literal)
			continue
		}
		switch seg.field {
		case fieldAsctime:
			buf.Write(r.Time.In(f.location).AppendFormat(buf.AvailableBuffer(), f.timestampFormat))
		case fieldLevelName:
			buf.WriteString(r.Level.String())
		case fieldName:
			buf.WriteString(r.Name)
		case fieldMessage:
			buf.WriteString(r.Message)
		case fieldThread:
			buf.WriteString(r.Thread)
		case fieldModule:
			buf.WriteString(r.Module)
		case fieldLine:
			buf.Write(strconv.AppendInt(buf.AvailableBuffer(), int64(r.Line), 10))
		case fieldProcess:
			buf.Write(strconv.AppendInt(buf.AvailableBuffer(), int64(r.PID), 10))
		default:
			// Unknown field renders empty.
		}
	}
	buf.WriteByte('\n')
}
