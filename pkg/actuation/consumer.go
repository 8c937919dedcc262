package actuation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-lockon/internal/log"
)

// Consumer polls a state source at a fixed interval and actuates the
// direction command. It stops when shutdown is observed.
type Consumer struct {
	config   Config
	source   Source
	actuator Actuator
	logger   *slog.Logger

	polls    atomic.Int64
	seen     bool
	failures int
}

// NewConsumer creates a consumer.
func NewConsumer(config Config, source Source, actuator Actuator) *Consumer {
	return &Consumer{
		config:   config,
		source:   source,
		actuator: actuator,
		logger:   log.Component("actuation"),
	}
}

// Polls returns the number of completed polls.
func (c *Consumer) Polls() int {
	return int(c.polls.Load())
}

// Run polls until shutdown is published or ctx is cancelled, returning
// nil. Once the shutdown flag is seen no further fields of the snapshot
// are read. A closed streaming source ends the loop with ErrSourceClosed,
// and MaxFailures consecutive errors after a first snapshot end it with
// ErrSourceLost.
func (c *Consumer) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	c.logger.Info("actuation loop started", "poll_interval", c.config.PollInterval, "source", c.config.Source)

	for {
		stop, err := c.poll(ctx)
		if err != nil {
			return err
		}
		if stop {
			c.logger.Info("actuation loop stopping", "reason", "shutdown")
			return nil
		}

		select {
		case <-ctx.Done():
			c.logger.Info("actuation loop stopping", "reason", "context cancelled")
			return nil
		case <-ticker.C:
		}
	}
}

func (c *Consumer) poll(ctx context.Context) (bool, error) {
	snap, err := c.source.Latest(ctx)
	if errors.Is(err, ErrSourceClosed) {
		return false, err
	}
	if err != nil {
		if c.seen && c.config.MaxFailures > 0 {
			c.failures++
			if c.failures >= c.config.MaxFailures {
				return false, fmt.Errorf("%w after %d failed polls: %v", ErrSourceLost, c.failures, err)
			}
		}
		c.logger.Warn("state unavailable", "error", err, "failures", c.failures)
		return false, nil
	}
	c.seen = true
	c.failures = 0
	c.polls.Add(1)

	if snap.Shutdown {
		return true, nil
	}

	if err := c.actuator.Actuate(ActionFor(snap.Direction)); err != nil {
		c.logger.Warn("actuate failed", "error", err)
	}
	return false, nil
}
