package benchmark

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hostvirt/hostlog/core"
	"github.com/hostvirt/hostlog/formatter"
	"github.com/hostvirt/hostlog/handler"
	"github.com/hostvirt/hostlog/logger"
)

// ---------------------------------------------------------------------------
// Helpers – identical sink for every framework (io.Discard / no-op writer)
// ---------------------------------------------------------------------------

// newHostlogRegistry returns a registry whose root writes formatted text
// to io.Discard.
func newHostlogRegistry(level core.Level) *logger.Registry {
	reg := logger.NewRegistry(logger.RegistryConfig{})
	reg.Root().SetLevel(level)
	reg.Root().AddHandler(handler.NewStreamHandler(handler.StreamConfig{
		Writer:    io.Discard,
		Formatter: formatter.NewPatternFormatter(formatter.PatternConfig{Template: formatter.SimpleTemplate}),
	}))
	return reg
}

// newZapSugared returns a sugared zap.Logger that writes to io.Discard.
func newZapSugared(level zapcore.Level) *zap.SugaredLogger {
	enc := zapcore.NewConsoleEncoder(zap.NewProductionEncoderConfig())
	c := zapcore.NewCore(enc, zapcore.AddSync(io.Discard), level)
	return zap.New(c).Sugar()
}

// newSlogLogger returns an slog.Logger that writes to io.Discard.
func newSlogLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: level}))
}

// newLogrusLogger returns a logrus.Logger that writes to io.Discard.
func newLogrusLogger(level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetFormatter(&logrus.TextFormatter{DisableColors: true})
	l.SetLevel(level)
	return l
}

// newZerologLogger returns a zerolog.Logger that writes to io.Discard.
func newZerologLogger(level zerolog.Level) zerolog.Logger {
	return zerolog.New(io.Discard).With().Timestamp().Logger().Level(level)
}

// ---------------------------------------------------------------------------
// Scenario 1 – Info message, no arguments
// ---------------------------------------------------------------------------

func BenchmarkCompetitive_InfoPlain(b *testing.B) {
	b.Run("hostlog", func(b *testing.B) {
		reg := newHostlogRegistry(core.DebugLevel)
		defer reg.Close()
		l := reg.GetLogger("bench")
		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			l.Info("info message")
		}
	})

	b.Run("zap", func(b *testing.B) {
		l := newZapSugared(zap.DebugLevel)
		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			l.Info("info message")
		}
	})

	b.Run("slog", func(b *testing.B) {
		l := newSlogLogger(slog.LevelDebug)
		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			l.Info("info message")
		}
	})

	b.Run("logrus", func(b *testing.B) {
		l := newLogrusLogger(logrus.DebugLevel)
		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			l.Info("info message")
		}
	})

	b.Run("zerolog", func(b *testing.B) {
		l := newZerologLogger(zerolog.DebugLevel)
		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			l.Info().Msg("info message")
		}
	})
}

// ---------------------------------------------------------------------------
// Scenario 2 – printf-style interpolation
// ---------------------------------------------------------------------------

func BenchmarkCompetitive_Printf(b *testing.B) {
	b.Run("hostlog", func(b *testing.B) {
		reg := newHostlogRegistry(core.DebugLevel)
		defer reg.Close()
		l := reg.GetLogger("bench")
		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			l.Infof("vm %s migrated in %dms", "guest-17", 42)
		}
	})

	b.Run("zap", func(b *testing.B) {
		l := newZapSugared(zap.DebugLevel)
		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			l.Infof("vm %s migrated in %dms", "guest-17", 42)
		}
	})

	b.Run("logrus", func(b *testing.B) {
		l := newLogrusLogger(logrus.DebugLevel)
		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			l.Infof("vm %s migrated in %dms", "guest-17", 42)
		}
	})

	b.Run("zerolog", func(b *testing.B) {
		l := newZerologLogger(zerolog.DebugLevel)
		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			l.Info().Msgf("vm %s migrated in %dms", "guest-17", 42)
		}
	})
}

// ---------------------------------------------------------------------------
// Scenario 3 – Disabled level (measure level-check overhead)
// ---------------------------------------------------------------------------

func BenchmarkCompetitive_DisabledLevel(b *testing.B) {
	b.Run("hostlog", func(b *testing.B) {
		reg := newHostlogRegistry(core.ErrorLevel)
		defer reg.Close()
		l := reg.GetLogger("bench")
		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			l.Debugf("should be skipped: %d", i)
		}
	})

	b.Run("zap", func(b *testing.B) {
		l := newZapSugared(zap.ErrorLevel)
		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			l.Debugf("should be skipped: %d", i)
		}
	})

	b.Run("slog", func(b *testing.B) {
		l := newSlogLogger(slog.LevelError)
		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			l.Debug("should be skipped")
		}
	})

	b.Run("logrus", func(b *testing.B) {
		l := newLogrusLogger(logrus.ErrorLevel)
		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			l.Debugf("should be skipped: %d", i)
		}
	})

	b.Run("zerolog", func(b *testing.B) {
		l := newZerologLogger(zerolog.ErrorLevel)
		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			l.Debug().Msgf("should be skipped: %d", i)
		}
	})
}

// ---------------------------------------------------------------------------
// Scenario 4 – Parallel / high-concurrency logging
// ---------------------------------------------------------------------------

func BenchmarkCompetitive_Parallel(b *testing.B) {
	b.Run("hostlog", func(b *testing.B) {
		reg := newHostlogRegistry(core.DebugLevel)
		defer reg.Close()
		l := reg.GetLogger("bench")
		b.ResetTimer()
		b.ReportAllocs()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				l.Info("parallel log")
			}
		})
	})

	b.Run("zap", func(b *testing.B) {
		l := newZapSugared(zap.DebugLevel)
		b.ResetTimer()
		b.ReportAllocs()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				l.Info("parallel log")
			}
		})
	})

	b.Run("slog", func(b *testing.B) {
		l := newSlogLogger(slog.LevelDebug)
		b.ResetTimer()
		b.ReportAllocs()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				l.Info("parallel log")
			}
		})
	})

	b.Run("logrus", func(b *testing.B) {
		l := newLogrusLogger(logrus.DebugLevel)
		b.ResetTimer()
		b.ReportAllocs()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				l.Info("parallel log")
			}
		})
	})

	b.Run("zerolog", func(b *testing.B) {
		l := newZerologLogger(zerolog.DebugLevel)
		b.ResetTimer()
		b.ReportAllocs()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				l.Info().Msg("parallel log")
			}
		})
	})
}

// ---------------------------------------------------------------------------
// Scenario 5 – File output (real I/O, equal conditions)
// ---------------------------------------------------------------------------

func BenchmarkCompetitive_FileOutput(b *testing.B) {
	b.Run("hostlog", func(b *testing.B) {
		f, err := os.CreateTemp(b.TempDir(), "bench-hostlog-*.log")
		if err != nil {
			b.Fatal(err)
		}
		reg := logger.NewRegistry(logger.RegistryConfig{RootLevel: core.InfoLevel})
		reg.Root().AddHandler(handler.NewStreamHandler(handler.StreamConfig{
			Writer:    f,
			Formatter: formatter.NewPatternFormatter(formatter.PatternConfig{Template: formatter.LongTemplate}),
		}))
		l := reg.GetLogger("bench")
		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			l.Info("file log")
		}
		b.StopTimer()
		reg.Close()
		f.Close()
	})

	b.Run("zap", func(b *testing.B) {
		f, err := os.CreateTemp(b.TempDir(), "bench-zap-*.log")
		if err != nil {
			b.Fatal(err)
		}
		enc := zapcore.NewConsoleEncoder(zap.NewProductionEncoderConfig())
		c := zapcore.NewCore(enc, zapcore.AddSync(f), zap.InfoLevel)
		l := zap.New(c).Sugar()
		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			l.Info("file log")
		}
		b.StopTimer()
		l.Sync()
		f.Close()
	})

	b.Run("slog", func(b *testing.B) {
		f, err := os.CreateTemp(b.TempDir(), "bench-slog-*.log")
		if err != nil {
			b.Fatal(err)
		}
		l := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo}))
		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			l.Info("file log")
		}
		b.StopTimer()
		f.Close()
	})

	b.Run("logrus", func(b *testing.B) {
		f, err := os.CreateTemp(b.TempDir(), "bench-logrus-*.log")
		if err != nil {
			b.Fatal(err)
		}
		l := logrus.New()
		l.SetOutput(f)
		l.SetFormatter(&logrus.TextFormatter{DisableColors: true})
		l.SetLevel(logrus.InfoLevel)
		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			l.Info("file log")
		}
		b.StopTimer()
		f.Close()
	})

	b.Run("zerolog", func(b *testing.B) {
		f, err := os.CreateTemp(b.TempDir(), "bench-zerolog-*.log")
		if err != nil {
			b.Fatal(err)
		}
		l := zerolog.New(f).With().Timestamp().Logger().Level(zerolog.InfoLevel)
		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			l.Info().Msg("file log")
		}
		b.StopTimer()
		f.Close()
	})
}
