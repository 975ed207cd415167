package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hostvirt/hostlog/core"
	"github.com/hostvirt/hostlog/handler"
)

// Registry is a hierarchical namespace of named loggers. Names are
// dot-separated; every prefix of a name is an ancestor node, with the
// root logger (the empty name) as the terminal ancestor.
//
// The registry is read-mostly: the hot logging path takes a read lock
// to resolve the effective level and the handler chain, while mutations
// (new loggers, handler attachment, level changes) take the write lock
// and are expected to be rare after startup. A registry lives for the
// life of the process that built it; there is no teardown other than
// Close before exit.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]*Logger
	root  *Logger

	captureThread bool
	captureCaller bool
	coarseClock   bool
	fallback      io.Writer
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// RootLevel is the level of the root logger, the inherited default
	// for every node without an explicit level (default: InfoLevel;
	// note the zero value DebugLevel must be asked for explicitly via
	// SetLevel on the root).
	RootLevel core.Level
	// CaptureThread stamps records with the producing goroutine's label.
	CaptureThread bool
	// CaptureCaller stamps records with the calling source module and line.
	CaptureCaller bool
	// CoarseClock stamps records from the shared 500µs clock cache
	// instead of calling time.Now() per record.
	CoarseClock bool
	// Fallback receives terse diagnostics when a synchronous handler
	// fails on the caller's goroutine (default: os.Stderr)
	Fallback io.Writer
}

// NewRegistry creates an isolated registry with a configured root logger.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.RootLevel == 0 {
		cfg.RootLevel = core.InfoLevel
	}
	if cfg.Fallback == nil {
		cfg.Fallback = os.Stderr
	}
	if cfg.CoarseClock {
		core.StartCoarseClock()
	}

	reg := &Registry{
		nodes:         make(map[string]*Logger),
		captureThread: cfg.CaptureThread,
		captureCaller: cfg.CaptureCaller,
		coarseClock:   cfg.CoarseClock,
		fallback:      cfg.Fallback,
	}
	reg.root = &Logger{
		registry:  reg,
		name:      "",
		level:     cfg.RootLevel,
		levelSet:  true, // the root always has a level; inheritance ends here
		propagate: false,
	}
	reg.nodes[""] = reg.root
	return reg
}

// Root returns the root logger.
func (reg *Registry) Root() *Logger {
	return reg.root
}

// GetLogger returns the logger with the given dot-separated name,
// creating it and any missing ancestors on first reference. The call is
// idempotent: the same name always yields the same node, so handler and
// level mutations made through one reference are visible through every
// other.
func (reg *Registry) GetLogger(name string) *Logger {
	if name == "" {
		return reg.root
	}

	reg.mu.RLock()
	node, ok := reg.nodes[name]
	reg.mu.RUnlock()
	if ok {
		return node
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.nodeLocked(name)
}

// nodeLocked creates name and its missing ancestors. Callers must hold
// the write lock.
func (reg *Registry) nodeLocked(name string) *Logger {
	if node, ok := reg.nodes[name]; ok {
		return node
	}

	parent := reg.root
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		parent = reg.nodeLocked(name[:i])
	}

	node := &Logger{
		registry:  reg,
		name:      name,
		parent:    parent,
		propagate: true,
	}
	reg.nodes[name] = node
	return node
}

// now returns the record timestamp source configured for this registry.
func (reg *Registry) now() time.Time {
	if reg.coarseClock {
		return core.CoarseNow()
	}
	return time.Now()
}

// Close closes every handler attached anywhere in the registry, each
// exactly once even when attached to several loggers. Queued handlers
// drain before closing, so calling this on shutdown flushes the whole
// pipeline.
func (reg *Registry) Close() error {
	reg.mu.Lock()
	seen := make(map[handler.Handler]bool)
	var all []handler.Handler
	for _, node := range reg.nodes {
		for _, h := range node.handlers {
			if !seen[h] {
				seen[h] = true
				all = append(all, h)
			}
		}
		node.handlers = nil
	}
	reg.mu.Unlock()

	var firstErr error
	for _, h := range all {
		if err := h.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
