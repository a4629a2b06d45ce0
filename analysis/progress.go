package analysis

import (
	"context"
	"runtime"
)

// progressTracker drives a progress callback with a non-decreasing
// sequence of values. Finish pushes 1.0 exactly once so callers always
// see progress terminate, on success and on failure alike.
type progressTracker struct {
	fn       ProgressFunc
	last     float64
	finished bool
}

func newProgressTracker(fn ProgressFunc) *progressTracker {
	return &progressTracker{fn: fn}
}

// Report emits progress, clamped to [last, 1]
func (p *progressTracker) Report(progress float64) {
	if p.fn == nil || p.finished {
		return
	}
	if progress < p.last {
		progress = p.last
	}
	if progress > 1.0 {
		progress = 1.0
	}
	p.last = progress
	p.fn(progress)
}

// Finish drives progress to 1.0. Safe to call more than once.
func (p *progressTracker) Finish() {
	if p.fn == nil || p.finished {
		return
	}
	p.finished = true
	p.last = 1.0
	p.fn(1.0)
}

// checkpoint is the cooperative suspension point inserted every few
// frames in long loops: it hands the processor back to the scheduler and
// observes cancellation. Cancellation is only honored here, never
// mid-frame.
func checkpoint(ctx context.Context) error {
	runtime.Gosched()
	return ctx.Err()
}
