package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chazu/isoblob/pkg/mesh"
)

// ErrTimeout is returned when a run exceeds its hard time limit.
var ErrTimeout = errors.New("pipeline run timed out")

// DriveWithTimeout drives r like Drive but gives up once timeout has
// elapsed. A zero timeout means no limit. The deadline is only noticed at
// suspension points, so a run can overshoot it by one step.
func DriveWithTimeout(ctx context.Context, r *Run, s Scheduler, timeout time.Duration) (*mesh.Mesh, error) {
	if timeout <= 0 {
		return Drive(ctx, r, s)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	m, err := Drive(ctx, r, s)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s: %w", ErrTimeout, timeout, err)
	}
	return m, err
}
