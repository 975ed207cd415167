package handler

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hostvirt/hostlog/core"
)

// SlogHandler adapts a hostlog Handler to slog.Handler, so subsystem
// code written against the standard library feeds the same pipeline as
// everything else. Attributes are folded into the message tail as
// key=value pairs, since records carry a flat message.
type SlogHandler struct {
	handler Handler
	name    string
	level   core.Level
	attrs   []slog.Attr
	group   string
}

// NewSlogHandler wraps h as a slog.Handler. Records it produces carry
// name as their logger name.
func NewSlogHandler(h Handler, name string, level core.Level) *SlogHandler {
	return &SlogHandler{
		handler: h,
		name:    name,
		level:   level,
	}
}

// Enabled reports whether the handler handles records at the given level.
func (s *SlogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return slogLevel(level) >= s.level
}

// Handle converts a slog.Record and passes it to the wrapped handler.
func (s *SlogHandler) Handle(_ context.Context, record slog.Record) error {
	r := core.GetRecord()
	r.Name = s.name
	r.Time = record.Time
	r.Level = slogLevel(record.Level)
	r.Message = s.messageFor(record)
	r.Thread = core.GoroutineLabel()

	err := s.handler.Emit(r)
	if !Retains(s.handler) {
		core.PutRecord(r)
	}
	return err
}

// messageFor renders the record message with attributes appended.
func (s *SlogHandler) messageFor(record slog.Record) string {
	if len(s.attrs) == 0 && record.NumAttrs() == 0 {
		return record.Message
	}
	var b strings.Builder
	b.WriteString(record.Message)
	// Pre-set attrs were prefixed with their group when added.
	for _, a := range s.attrs {
		writeAttr(&b, "", a)
	}
	record.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, s.group, a)
		return true
	})
	return b.String()
}

func writeAttr(b *strings.Builder, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		prefix := a.Key
		if group != "" {
			prefix = group + "." + a.Key
		}
		for _, ga := range a.Value.Group() {
			writeAttr(b, prefix, ga)
		}
		return
	}
	b.WriteByte(' ')
	if group != "" {
		b.WriteString(group)
		b.WriteByte('.')
	}
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(a.Value.String())
}

// WithAttrs returns a new SlogHandler with additional attributes.
func (s *SlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(s.attrs), len(s.attrs)+len(attrs))
	copy(newAttrs, s.attrs)
	for _, a := range attrs {
		if s.group != "" {
			a.Key = s.group + "." + a.Key
		}
		newAttrs = append(newAttrs, a)
	}
	return &SlogHandler{
		handler: s.handler,
		name:    s.name,
		level:   s.level,
		attrs:   newAttrs,
		group:   s.group,
	}
}

// WithGroup returns a new SlogHandler with the given group name.
func (s *SlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return s
	}
	newGroup := name
	if s.group != "" {
		newGroup = s.group + "." + name
	}
	return &SlogHandler{
		handler: s.handler,
		name:    s.name,
		level:   s.level,
		attrs:   s.attrs,
		group:   newGroup,
	}
}

// slogLevel converts a slog.Level to a core.Level.
func slogLevel(level slog.Level) core.Level {
	switch {
	case level >= slog.LevelError:
		return core.ErrorLevel
	case level >= slog.LevelWarn:
		return core.WarnLevel
	case level >= slog.LevelInfo:
		return core.InfoLevel
	default:
		return core.DebugLevel
	}
}
