package platform

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Checkpointer calls a save function on a cron schedule until stopped.
type Checkpointer struct {
	schedule cron.Schedule
	save     func(context.Context) error
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	saves  int
}

// NewCheckpointer parses a standard five-field cron expression or a
// descriptor such as "@every 30s".
func NewCheckpointer(expr string, save func(context.Context) error, logger *slog.Logger) (*Checkpointer, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse checkpoint schedule %q: %w", expr, err)
	}
	return newCheckpointer(schedule, save, logger), nil
}

func newCheckpointer(schedule cron.Schedule, save func(context.Context) error, logger *slog.Logger) *Checkpointer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Checkpointer{schedule: schedule, save: save, logger: logger}
}

// Start launches the schedule loop. Calling Start twice is a no-op.
func (c *Checkpointer) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.loop(ctx, c.done)
}

// Stop ends the loop and waits for an in-flight save.
func (c *Checkpointer) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Saves reports how many scheduled saves have completed.
func (c *Checkpointer) Saves() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves
}

func (c *Checkpointer) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		now := time.Now()
		next := c.schedule.Next(now)
		if next.IsZero() {
			return
		}
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if err := c.save(ctx); err != nil {
			c.logger.Warn("checkpoint failed", "error", err)
			continue
		}
		c.mu.Lock()
		c.saves++
		c.mu.Unlock()
		c.logger.Debug("checkpoint saved", "next", c.schedule.Next(time.Now()))
	}
}
