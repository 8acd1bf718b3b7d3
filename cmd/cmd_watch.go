package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/getlantern/external-ip/consensus"
	"github.com/getlantern/external-ip/source"
)

type WatchCmd struct {
	Interval time.Duration `arg:"--interval" help:"time between lookups" default:"5m"`
}

func newMonitor(registry *source.Registry, opts source.Options, interval time.Duration) *consensus.Monitor {
	return consensus.NewMonitor(func(ctx context.Context) (consensus.Consensus, error) {
		return consensus.Get(ctx, registry, opts)
	}, interval)
}

func (c *WatchCmd) Run() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	}
	registry, opts, err := lookupSources()
	if err != nil {
		return err
	}
	// fail fast on a bad proxy instead of logging it every interval
	if _, err := source.NewHTTP(registry, opts); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := newMonitor(registry, opts, c.Interval)
	m.OnChange = func(prev, next consensus.Consensus) {
		if next.Empty() {
			log.Warn("No endpoint returned a usable address")
		}
	}
	log.Infof("Watching external address using %d endpoints every %s", registry.Len(), c.Interval)
	m.Run(ctx)
	return nil
}
