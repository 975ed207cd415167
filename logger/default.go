package logger

import (
	"sync"

	"github.com/hostvirt/hostlog/core"
)

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide registry, created on first use with
// an InfoLevel root and no handlers. Until configuration attaches
// handlers it drops everything silently, which keeps stderr free for
// daemons that reserve it. Tests should construct isolated registries
// with NewRegistry instead of configuring this one.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = NewRegistry(RegistryConfig{
			RootLevel:     core.InfoLevel,
			CaptureThread: true,
			CaptureCaller: true,
		})
	})
	return defaultReg
}

// GetLogger returns a named logger from the default registry.
func GetLogger(name string) *Logger {
	return Default().GetLogger(name)
}
