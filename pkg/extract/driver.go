package extract

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/chazu/isoblob/pkg/mesh"
)

// DefaultBudget bounds one uninterrupted burst of extraction work.
const DefaultBudget = 100 * time.Millisecond

// State is the driver's position in its lifecycle:
// Idle -> Extracting -> (Yielding <-> Extracting)* -> Done | Failed.
type State int

const (
	Idle State = iota
	Extracting
	Yielding
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Extracting:
		return "extracting"
	case Yielding:
		return "yielding"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == Done || s == Failed
}

// Option configures a Driver.
type Option func(*Driver)

// WithBudget sets the work budget per Resume call.
func WithBudget(b time.Duration) Option {
	return func(d *Driver) { d.budget = b }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) { d.now = now }
}

// WithProgress registers a callback invoked with the latest completion
// fraction whenever the driver yields or finishes.
func WithProgress(fn func(fraction float64)) Option {
	return func(d *Driver) { d.progress = fn }
}

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// Driver pulls events from an Extractor and accumulates them into a RawMesh.
// It never blocks for longer than roughly one budget: Resume returns after
// the budget is spent and the host calls it again on a later turn.
type Driver struct {
	ext      Extractor
	budget   time.Duration
	now      func() time.Time
	progress func(float64)
	log      *slog.Logger

	state    State
	err      error
	raw      mesh.RawMesh
	decided  bool
	events   int
	fraction float64
	yields   int
}

// NewDriver returns an Idle driver for ext.
func NewDriver(ext Extractor, opts ...Option) *Driver {
	d := &Driver{
		ext:    ext,
		budget: DefaultBudget,
		now:    time.Now,
		log:    slog.Default(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// State returns the current state.
func (d *Driver) State() State { return d.state }

// Err returns the terminal error of a Failed driver.
func (d *Driver) Err() error { return d.err }

// Fraction returns the latest completion fraction reported by the extractor.
func (d *Driver) Fraction() float64 { return d.fraction }

// Events returns the number of events consumed.
func (d *Driver) Events() int { return d.events }

// Yields returns how many times the driver has handed control back.
func (d *Driver) Yields() int { return d.yields }

// Resume consumes events until the budget is exceeded, the sequence is
// exhausted or the extractor fails, and returns the resulting state. A
// terminal driver returns its terminal state and error unchanged.
func (d *Driver) Resume() (State, error) {
	if d.state.Terminal() {
		return d.state, d.err
	}
	d.state = Extracting
	start := d.now()

	for {
		if !d.ext.More() {
			d.finish()
			return d.state, nil
		}

		ev, err := d.next()
		if errors.Is(err, ErrExhausted) {
			d.finish()
			return d.state, nil
		}
		if err != nil {
			return d.fail(err)
		}
		if err := d.accept(ev); err != nil {
			return d.fail(err)
		}
		d.events++

		if d.now().Sub(start) > d.budget {
			d.state = Yielding
			d.yields++
			d.publish()
			d.log.Debug("extraction yielding",
				"events", d.events, "fraction", d.fraction, "triangles", d.raw.TriangleCount())
			return d.state, nil
		}
	}
}

// Mesh hands off the accumulated geometry of a Done driver. The driver keeps
// no reference to the returned mesh.
func (d *Driver) Mesh() (*mesh.RawMesh, error) {
	switch d.state {
	case Done:
		raw := d.raw
		d.raw = mesh.RawMesh{}
		return &raw, nil
	case Failed:
		return nil, d.err
	default:
		return nil, fmt.Errorf("extract: mesh requested in state %s", d.state)
	}
}

// next calls the extractor, converting a panic inside it into an error.
func (d *Driver) next() (ev Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in extractor: %v", r)
		}
	}()
	return d.ext.Next()
}

// accept validates ev and appends its geometry.
func (d *Driver) accept(ev Event) error {
	if math.IsNaN(ev.Fraction) || ev.Fraction < 0 || ev.Fraction > 1 {
		return fmt.Errorf("fraction %v outside [0,1]", ev.Fraction)
	}
	c := ev.Chunk
	if !c.Empty() {
		if !d.decided {
			d.raw.Indexed = c.Indexed()
			d.decided = true
		} else if d.raw.Indexed != c.Indexed() {
			return fmt.Errorf("chunk switches representation (indexed=%v)", c.Indexed())
		}
	}

	if c.Indexed() {
		if len(c.Cells)%3 != 0 {
			return fmt.Errorf("indexed chunk has %d cells, not a multiple of 3", len(c.Cells))
		}
		base := len(d.raw.Positions)
		for i, idx := range c.Cells {
			if int(idx) >= len(c.Positions) {
				return fmt.Errorf("cell %d references vertex %d of %d", i, idx, len(c.Positions))
			}
		}
		for _, idx := range c.Cells {
			d.raw.Cells = append(d.raw.Cells, uint32(base)+idx)
		}
	} else if len(c.Positions)%3 != 0 {
		return fmt.Errorf("flat chunk has %d positions, not a multiple of 3", len(c.Positions))
	}
	d.raw.Positions = append(d.raw.Positions, c.Positions...)
	d.fraction = ev.Fraction
	return nil
}

func (d *Driver) finish() {
	d.state = Done
	d.fraction = 1
	d.publish()
	d.log.Debug("extraction done", "events", d.events, "triangles", d.raw.TriangleCount())
}

func (d *Driver) fail(cause error) (State, error) {
	d.state = Failed
	d.err = &Error{Event: d.events, Err: cause}
	d.raw = mesh.RawMesh{}
	d.log.Warn("extraction failed", "event", d.events, "err", cause)
	return d.state, d.err
}

func (d *Driver) publish() {
	if d.progress != nil {
		d.progress(d.fraction)
	}
}
