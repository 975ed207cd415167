package logger_test

import (
	"os"

	"github.com/hostvirt/hostlog/core"
	"github.com/hostvirt/hostlog/formatter"
	"github.com/hostvirt/hostlog/handler"
	"github.com/hostvirt/hostlog/logger"
)

func Example() {
	reg := logger.NewRegistry(logger.RegistryConfig{RootLevel: core.InfoLevel})
	reg.Root().AddHandler(handler.NewStreamHandler(handler.StreamConfig{
		Writer:    os.Stdout,
		Formatter: formatter.NewPatternFormatter(formatter.PatternConfig{Template: "%(levelname)s [%(name)s] %(message)s"}),
	}))

	log := reg.GetLogger("storage.volume")
	log.Debug("not emitted: below the root's INFO level")
	log.Infof("volume %s attached", "vol-1")

	reg.Close()
	// Output:
	// INFO [storage.volume] volume vol-1 attached
}

func Example_propagation() {
	reg := logger.NewRegistry(logger.RegistryConfig{RootLevel: core.InfoLevel})
	reg.Root().AddHandler(handler.NewStreamHandler(handler.StreamConfig{
		Writer:    os.Stdout,
		Formatter: formatter.NewPatternFormatter(formatter.PatternConfig{Template: "root saw: %(message)s"}),
	}))

	quiet := reg.GetLogger("net")
	quiet.AddHandler(handler.NewStreamHandler(handler.StreamConfig{
		Writer:    os.Stdout,
		Formatter: formatter.NewPatternFormatter(formatter.PatternConfig{Template: "net saw: %(message)s"}),
	}))
	quiet.SetPropagate(false)

	reg.GetLogger("net.bond").Info("carrier up")
	reg.GetLogger("virt").Info("vm started")

	reg.Close()
	// Output:
	// net saw: carrier up
	// root saw: vm started
}
