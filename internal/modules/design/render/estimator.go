package render

import (
	"context"
	"math"
	"time"
)

// ProgressCap keeps the estimate below 100 until the call resolves.
const ProgressCap = 95.0

var steps = []string{
	"Analyzing the room",
	"Reading your markers",
	"Applying materials",
	"Matching light and shadows",
	"Refining details",
}

// Progress is a time-based guess; the edit service reports no real progress.
func Progress(elapsed, expected time.Duration) float64 {
	if expected <= 0 {
		expected = time.Second
	}
	if elapsed <= 0 {
		return 0
	}
	p := ProgressCap * (1 - math.Exp(-elapsed.Seconds()/expected.Seconds()))
	return math.Min(p, ProgressCap)
}

// Step rotates through the user-facing labels.
func Step(elapsed, every time.Duration) string {
	if every <= 0 {
		every = 4 * time.Second
	}
	return steps[int(elapsed/every)%len(steps)]
}

func (o *Orchestrator) expected(editCount int) time.Duration {
	if editCount < 1 {
		editCount = 1
	}
	return o.cfg.BaseExpected + time.Duration(editCount)*o.cfg.PerEditExpected
}

// estimate ticks until ctx is done. It never touches anything but run status.
func (o *Orchestrator) estimate(ctx context.Context, r *run, editCount int) {
	ticker := time.NewTicker(o.cfg.Tick)
	defer ticker.Stop()
	start := time.Now()
	expected := o.expected(editCount)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			elapsed := time.Since(start)
			st, ok := r.advance(Progress(elapsed, expected), Step(elapsed, o.cfg.StepEvery))
			if !ok {
				return
			}
			o.notify(ctx, st)
		}
	}
}
