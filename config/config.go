// Package config loads the logging configuration of the daemon.
//
// Configuration is a single YAML file naming formatters, handlers, and
// loggers, mirroring the three layers of the pipeline. There is no
// discovery or layering magic: one file, validated up front, and any
// problem is fatal — the daemon must not start with a broken logging
// configuration.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hostvirt/hostlog/core"
	"github.com/hostvirt/hostlog/formatter"
	"github.com/hostvirt/hostlog/handler"
	"github.com/hostvirt/hostlog/logger"
)

// Error is a fatal configuration problem, reported at startup before
// the pipeline handles a single record.
type Error struct {
	Section string // "formatters", "handlers", "loggers", "registry"
	Name    string // offending entry, empty for section-level problems
	Reason  string
}

func (e *Error) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("config: %s: %s", e.Section, e.Reason)
	}
	return fmt.Sprintf("config: %s %q: %s", e.Section, e.Name, e.Reason)
}

// Config is the full logging configuration.
type Config struct {
	// Registry holds tree-wide options.
	Registry RegistryConfig `yaml:"registry"`
	// Formatters maps formatter names to their templates.
	Formatters map[string]FormatterConfig `yaml:"formatters"`
	// Handlers maps handler names to their definitions.
	Handlers map[string]HandlerConfig `yaml:"handlers"`
	// Loggers maps logger names to their definitions. The key "root"
	// (or the empty string) configures the root logger.
	Loggers map[string]LoggerConfig `yaml:"loggers"`
}

// RegistryConfig holds tree-wide options.
type RegistryConfig struct {
	// CaptureThread stamps records with the producing goroutine label.
	CaptureThread bool `yaml:"capture_thread"`
	// CaptureCaller stamps records with source module and line.
	CaptureCaller bool `yaml:"capture_caller"`
	// CoarseClock trades 500µs timestamp precision for cheaper records.
	CoarseClock bool `yaml:"coarse_clock"`
}

// FormatterConfig defines one named template.
type FormatterConfig struct {
	// Template is the %(field)s interpolation template (required)
	Template string `yaml:"template"`
	// Timezone is an IANA zone name for %(asctime)s; empty means the
	// host's local time.
	Timezone string `yaml:"timezone"`
	// TimestampFormat overrides the %(asctime)s layout.
	TimestampFormat string `yaml:"timestamp_format"`
}

// HandlerConfig defines one named handler. Kind selects which of the
// kind-specific fields apply.
type HandlerConfig struct {
	// Kind is one of "console", "file", "syslog", "queue" (required)
	Kind string `yaml:"kind"`
	// Level is the handler's own threshold (default: DEBUG, pass everything)
	Level string `yaml:"level"`
	// Formatter names an entry in the formatters section; empty writes
	// raw messages.
	Formatter string `yaml:"formatter"`

	// console: "stdout" or "stderr" (default: "stdout")
	Stream string `yaml:"stream"`

	// file
	Path        string `yaml:"path"`
	Owner       string `yaml:"owner"`
	Group       string `yaml:"group"`
	Mode        string `yaml:"mode"` // octal string, e.g. "0644"
	WatchRotate bool   `yaml:"watch_rotate"`

	// syslog
	Facility string `yaml:"facility"`
	Tag      string `yaml:"tag"`

	// queue
	Target   string `yaml:"target"`
	Capacity int    `yaml:"capacity"`
	Policy   string `yaml:"policy"`
}

// LoggerConfig defines one logger node.
type LoggerConfig struct {
	// Level is the node's own level; empty inherits (required for root)
	Level string `yaml:"level"`
	// Handlers names entries in the handlers section, in emission order.
	Handlers []string `yaml:"handlers"`
	// Propagate controls whether records continue to ancestors
	// (default: true; ignored on root).
	Propagate *bool `yaml:"propagate"`
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w (in %s)", err, path)
	}
	return cfg, nil
}

// Parse decodes a configuration document. Unknown fields are rejected:
// a typo must not silently disable a handler.
func Parse(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	return &cfg, nil
}

// Build validates the configuration and constructs a fully wired
// registry. On any error, handlers already constructed are closed and
// nothing leaks.
func (c *Config) Build() (*logger.Registry, error) {
	formatters, err := c.buildFormatters()
	if err != nil {
		return nil, err
	}

	handlers, err := c.buildHandlers(formatters)
	if err != nil {
		return nil, err
	}

	reg, err := c.buildLoggers(handlers)
	if err != nil {
		for _, h := range handlers {
			h.Close()
		}
		return nil, err
	}
	return reg, nil
}

func (c *Config) buildFormatters() (map[string]formatter.Formatter, error) {
	out := make(map[string]formatter.Formatter, len(c.Formatters))
	for name, fc := range c.Formatters {
		if fc.Template == "" {
			return nil, &Error{Section: "formatters", Name: name, Reason: "template is required"}
		}
		loc := time.Local
		if fc.Timezone != "" {
			var err error
			loc, err = time.LoadLocation(fc.Timezone)
			if err != nil {
				return nil, &Error{Section: "formatters", Name: name, Reason: fmt.Sprintf("unknown timezone %q", fc.Timezone)}
			}
		}
		out[name] = formatter.NewPatternFormatter(formatter.PatternConfig{
			Template:        fc.Template,
			Location:        loc,
			TimestampFormat: fc.TimestampFormat,
		})
	}
	return out, nil
}

// buildHandlers constructs handlers in dependency order: a queue's
// target must exist before the queue wraps it. Cycles are rejected.
func (c *Config) buildHandlers(formatters map[string]formatter.Formatter) (map[string]handler.Handler, error) {
	built := make(map[string]handler.Handler, len(c.Handlers))
	building := make(map[string]bool)

	closeAll := func() {
		for _, h := range built {
			h.Close()
		}
	}

	var build func(name string) (handler.Handler, error)
	build = func(name string) (handler.Handler, error) {
		if h, ok := built[name]; ok {
			return h, nil
		}
		hc, ok := c.Handlers[name]
		if !ok {
			return nil, &Error{Section: "handlers", Name: name, Reason: "not defined"}
		}
		if building[name] {
			return nil, &Error{Section: "handlers", Name: name, Reason: "queue target cycle"}
		}
		building[name] = true
		defer delete(building, name)

		minLevel := core.DebugLevel
		if hc.Level != "" {
			var ok bool
			minLevel, ok = core.ParseLevel(hc.Level)
			if !ok {
				return nil, &Error{Section: "handlers", Name: name, Reason: fmt.Sprintf("unknown level %q", hc.Level)}
			}
		}

		var f formatter.Formatter
		if hc.Formatter != "" {
			f, ok = formatters[hc.Formatter]
			if !ok {
				return nil, &Error{Section: "handlers", Name: name, Reason: fmt.Sprintf("unknown formatter %q", hc.Formatter)}
			}
		}

		var h handler.Handler
		var err error
		switch hc.Kind {
		case "console":
			w := os.Stdout
			switch hc.Stream {
			case "", "stdout":
			case "stderr":
				w = os.Stderr
			default:
				return nil, &Error{Section: "handlers", Name: name, Reason: fmt.Sprintf("unknown stream %q", hc.Stream)}
			}
			h = handler.NewStreamHandler(handler.StreamConfig{
				Writer:    w,
				Formatter: f,
				MinLevel:  minLevel,
			})

		case "file":
			if hc.Path == "" {
				return nil, &Error{Section: "handlers", Name: name, Reason: "path is required for kind file"}
			}
			var mode os.FileMode
			if hc.Mode != "" {
				bits, perr := strconv.ParseUint(hc.Mode, 8, 32)
				if perr != nil {
					return nil, &Error{Section: "handlers", Name: name, Reason: fmt.Sprintf("invalid mode %q (want octal, e.g. \"0644\")", hc.Mode)}
				}
				mode = os.FileMode(bits)
			}
			h, err = handler.NewFileHandler(handler.FileConfig{
				Path:        hc.Path,
				Owner:       hc.Owner,
				Group:       hc.Group,
				Mode:        mode,
				Formatter:   f,
				MinLevel:    minLevel,
				WatchRotate: hc.WatchRotate,
			})
			if err != nil {
				return nil, &Error{Section: "handlers", Name: name, Reason: err.Error()}
			}

		case "syslog":
			h, err = handler.NewSyslogHandler(handler.SyslogConfig{
				Facility:  hc.Facility,
				Tag:       hc.Tag,
				MinLevel:  minLevel,
				Formatter: f,
			})
			if err != nil {
				return nil, &Error{Section: "handlers", Name: name, Reason: err.Error()}
			}

		case "queue":
			if hc.Target == "" {
				return nil, &Error{Section: "handlers", Name: name, Reason: "target is required for kind queue"}
			}
			if hc.Formatter != "" {
				return nil, &Error{Section: "handlers", Name: name, Reason: "formatter is not applicable to kind queue; set it on the target handler"}
			}
			target, terr := build(hc.Target)
			if terr != nil {
				return nil, terr
			}
			policy := handler.PolicyUnset
			if hc.Policy != "" {
				policy, ok = handler.ParsePolicy(hc.Policy)
				if !ok {
					return nil, &Error{Section: "handlers", Name: name, Reason: fmt.Sprintf("unknown policy %q", hc.Policy)}
				}
			}
			h, err = handler.NewQueueHandler(handler.QueueConfig{
				Target:   target,
				MinLevel: minLevel,
				Capacity: hc.Capacity,
				Policy:   policy,
			})
			if err != nil {
				return nil, &Error{Section: "handlers", Name: name, Reason: err.Error()}
			}

		case "":
			return nil, &Error{Section: "handlers", Name: name, Reason: "kind is required"}
		default:
			return nil, &Error{Section: "handlers", Name: name, Reason: fmt.Sprintf("unknown kind %q", hc.Kind)}
		}

		built[name] = h
		return h, nil
	}

	for name := range c.Handlers {
		if _, err := build(name); err != nil {
			closeAll()
			return nil, err
		}
	}
	return built, nil
}

func (c *Config) buildLoggers(handlers map[string]handler.Handler) (*logger.Registry, error) {
	rootLevel := core.InfoLevel
	rootLevelSet := false
	if rc, ok := rootConfig(c.Loggers); ok && rc.Level != "" {
		lvl, lok := core.ParseLevel(rc.Level)
		if !lok {
			return nil, &Error{Section: "loggers", Name: "root", Reason: fmt.Sprintf("unknown level %q", rc.Level)}
		}
		rootLevel = lvl
		rootLevelSet = true
	}

	reg := logger.NewRegistry(logger.RegistryConfig{
		RootLevel:     rootLevel,
		CaptureThread: c.Registry.CaptureThread,
		CaptureCaller: c.Registry.CaptureCaller,
		CoarseClock:   c.Registry.CoarseClock,
	})
	if rootLevelSet {
		// An explicit root level must stick even when it is DEBUG, the
		// zero Level that NewRegistry treats as "use the default".
		reg.Root().SetLevel(rootLevel)
	}

	attached := make(map[handler.Handler]bool)
	for name, lc := range c.Loggers {
		node := reg.Root()
		if name != "root" && name != "" {
			node = reg.GetLogger(name)
			if lc.Level != "" {
				lvl, ok := core.ParseLevel(lc.Level)
				if !ok {
					return nil, &Error{Section: "loggers", Name: name, Reason: fmt.Sprintf("unknown level %q", lc.Level)}
				}
				node.SetLevel(lvl)
			}
			if lc.Propagate != nil {
				node.SetPropagate(*lc.Propagate)
			}
		}
		for _, hname := range lc.Handlers {
			h, ok := handlers[hname]
			if !ok {
				return nil, &Error{Section: "loggers", Name: name, Reason: fmt.Sprintf("unknown handler %q", hname)}
			}
			node.AddHandler(h)
			attached[h] = true
		}
	}

	// A handler that is only a queue target is owned by its queue; a
	// handler neither attached nor wrapped is a definition mistake.
	wrapped := make(map[string]bool)
	for _, hc := range c.Handlers {
		if hc.Kind == "queue" {
			wrapped[hc.Target] = true
		}
	}
	for name, h := range handlers {
		if !attached[h] && !wrapped[name] {
			return nil, &Error{Section: "handlers", Name: name, Reason: "defined but never attached to a logger or wrapped by a queue"}
		}
	}

	return reg, nil
}

func rootConfig(loggers map[string]LoggerConfig) (LoggerConfig, bool) {
	if rc, ok := loggers["root"]; ok {
		return rc, true
	}
	rc, ok := loggers[""]
	return rc, ok
}
