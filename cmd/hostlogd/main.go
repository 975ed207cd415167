// Command hostlogd is the logging core of the host management daemon.
// It loads the logging configuration, builds the handler pipeline, and
// keeps it running until the supervisor asks for shutdown. SIGTERM is
// an orderly-shutdown request: every dispatch queue is drained and
// every log file and transport closed before the process exits.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/hostvirt/hostlog/config"
)

func main() {
	var (
		configPath = pflag.String("config", "/etc/hostlogd/logging.yaml", "logging configuration file")
		heartbeat  = pflag.Duration("heartbeat", time.Minute, "interval between liveness records (0 disables)")
	)
	pflag.Parse()

	if err := run(*configPath, *heartbeat); err != nil {
		fmt.Fprintf(os.Stderr, "hostlogd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, heartbeat time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	reg, err := cfg.Build()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	log := reg.GetLogger("daemon")
	log.Infof("started, pid %d, config %s", os.Getpid(), configPath)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if heartbeat <= 0 {
			<-ctx.Done()
			return nil
		}
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				log.Debug("alive")
			case <-ctx.Done():
				return nil
			}
		}
	})

	err = g.Wait()
	log.Info("shutting down, draining log queues")

	// Drain-and-close must run on every termination path.
	if cerr := reg.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
