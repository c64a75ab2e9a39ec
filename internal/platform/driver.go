package platform

import (
	"context"
	"math"
	"sync"
	"time"

	"opevolve/internal/evo"
	"opevolve/internal/model"
)

// Driver serializes access to one engine so that tick loops, checkpoints
// and status readers can share it.
type Driver struct {
	mu      sync.Mutex
	engine  *evo.Engine
	history []model.ScorePoint
	onTick  func(evo.TickReport)
}

func NewDriver(engine *evo.Engine) *Driver {
	return &Driver{engine: engine}
}

// OnTick registers fn to observe every completed tick. fn runs with the
// driver lock held and must not call back into the driver.
func (d *Driver) OnTick(fn func(evo.TickReport)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onTick = fn
}

// Step runs one tick.
func (d *Driver) Step() (evo.TickReport, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	report, ok := d.engine.Tick()
	if !ok {
		return report, false
	}
	if !math.IsInf(report.Score, 0) && !math.IsNaN(report.Score) {
		best, _ := d.engine.Best()
		d.history = append(d.history, model.ScorePoint{Tick: report.Tick, Score: report.Score, Best: best.Score})
	}
	if d.onTick != nil {
		d.onTick(report)
	}
	return report, true
}

// Run performs up to ticks ticks back to back. It stops early when ctx is
// done or the population is empty, and returns the number of ticks run.
func (d *Driver) Run(ctx context.Context, ticks int) (int, error) {
	return d.RunEvery(ctx, 0, ticks)
}

// RunEvery performs up to ticks ticks, one per interval. A non-positive
// interval runs them back to back.
func (d *Driver) RunEvery(ctx context.Context, interval time.Duration, ticks int) (int, error) {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	done := 0
	for done < ticks {
		if tick != nil {
			select {
			case <-ctx.Done():
				return done, ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return done, err
		}
		if _, ok := d.Step(); !ok {
			return done, nil
		}
		done++
	}
	return done, nil
}

// View runs fn with exclusive access to the engine.
func (d *Driver) View(fn func(*evo.Engine)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.engine)
}

// History returns the scored ticks so far.
func (d *Driver) History() []model.ScorePoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.ScorePoint(nil), d.history...)
}

func (d *Driver) Status(topN int) evo.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.engine.Status(topN)
}
