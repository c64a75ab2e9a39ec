package platform

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fixedDelay time.Duration

func (d fixedDelay) Next(t time.Time) time.Time { return t.Add(time.Duration(d)) }

func TestNewCheckpointerRejectsBadSchedule(t *testing.T) {
	if _, err := NewCheckpointer("not a schedule", func(context.Context) error { return nil }, nil); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := NewCheckpointer("*/5 * * * *", func(context.Context) error { return nil }, nil); err != nil {
		t.Fatalf("standard expression: %v", err)
	}
	if _, err := NewCheckpointer("@every 30s", func(context.Context) error { return nil }, nil); err != nil {
		t.Fatalf("descriptor: %v", err)
	}
}

func TestCheckpointerSavesOnSchedule(t *testing.T) {
	var calls atomic.Int32
	c := newCheckpointer(fixedDelay(2*time.Millisecond), func(context.Context) error {
		calls.Add(1)
		return nil
	}, nil)
	c.Start(context.Background())
	c.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for c.Saves() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	c.Stop()
	c.Stop()

	if c.Saves() < 3 {
		t.Fatalf("expected at least three saves, got %d", c.Saves())
	}
	after := calls.Load()
	time.Sleep(10 * time.Millisecond)
	if calls.Load() != after {
		t.Fatal("saves continued after stop")
	}
}

func TestCheckpointerCountsOnlySuccessfulSaves(t *testing.T) {
	var calls atomic.Int32
	c := newCheckpointer(fixedDelay(time.Millisecond), func(context.Context) error {
		calls.Add(1)
		return errors.New("disk full")
	}, nil)
	c.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	c.Stop()
	if calls.Load() < 3 || c.Saves() != 0 {
		t.Fatalf("calls=%d saves=%d", calls.Load(), c.Saves())
	}
}
