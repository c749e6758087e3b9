package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/chazu/isoblob/pkg/mesh"
)

// Scheduler hands control back to the host between pipeline steps. Yield
// returns once the host has had at least one turn, or with the context's
// error if it is cancelled first.
type Scheduler interface {
	Yield(ctx context.Context) error
}

// Immediate yields the processor and returns at once.
type Immediate struct{}

// Yield calls runtime.Gosched.
func (Immediate) Yield(ctx context.Context) error {
	runtime.Gosched()
	return ctx.Err()
}

// FrameScheduler resumes the pipeline on the next tick of a frame clock,
// the way a browser resumes work on the next animation frame.
type FrameScheduler struct {
	ticker *time.Ticker
	frames int
}

// NewFrameScheduler ticks every interval. Call Stop when done.
func NewFrameScheduler(interval time.Duration) *FrameScheduler {
	return &FrameScheduler{ticker: time.NewTicker(interval)}
}

// Yield waits for the next frame.
func (s *FrameScheduler) Yield(ctx context.Context) error {
	select {
	case <-s.ticker.C:
		s.frames++
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Frames returns the number of frames waited for.
func (s *FrameScheduler) Frames() int { return s.frames }

// Stop releases the ticker.
func (s *FrameScheduler) Stop() { s.ticker.Stop() }

// Drive steps r to completion, yielding to s after every step. Cancellation
// of ctx is observed at those suspension points only; an in-progress step is
// never interrupted. A cancelled run is aborted with the context error.
func Drive(ctx context.Context, r *Run, s Scheduler) (*mesh.Mesh, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, r.Abort(fmt.Errorf("pipeline: cancelled in phase %s: %w", r.Phase(), err))
		}
		done, err := r.Step()
		if err != nil {
			return nil, err
		}
		if done {
			return r.Result()
		}
		if err := s.Yield(ctx); err != nil {
			return nil, r.Abort(fmt.Errorf("pipeline: cancelled in phase %s: %w", r.Phase(), err))
		}
	}
}
