// Package extract defines the pull-based contract for progressive isosurface
// extractors and the Driver that consumes one under a time budget, so an
// expensive extraction can be interleaved with a host frame loop.
package extract

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrExhausted is returned by Next once an extractor has no more events.
var ErrExhausted = errors.New("extract: sequence exhausted")

// ErrExtraction marks every terminal extraction failure.
var ErrExtraction = errors.New("extraction failed")

// Chunk is a piece of newly produced geometry. A nil Cells slice means the
// positions form a flat triangle list; otherwise Cells indexes into this
// chunk's Positions.
type Chunk struct {
	Positions []r3.Vec
	Cells     []uint32
}

// Indexed reports whether the chunk carries an index buffer.
func (c Chunk) Indexed() bool {
	return c.Cells != nil
}

// Empty reports whether the chunk carries no geometry at all.
func (c Chunk) Empty() bool {
	return len(c.Positions) == 0 && len(c.Cells) == 0
}

// Event is one partial result: fresh geometry plus the fraction of the
// extraction completed so far, in [0, 1].
type Event struct {
	Chunk    Chunk
	Fraction float64
}

// Extractor is a finite, single-pass sequence of events. Once More reports
// false, Next returns ErrExhausted forever; extractors cannot be restarted.
type Extractor interface {
	More() bool
	Next() (Event, error)
}

// Error is a terminal extraction failure at a given event number.
// errors.Is(err, ErrExtraction) holds for every *Error.
type Error struct {
	Event int
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extract: event %d: %v", e.Event, e.Err)
}

// Unwrap exposes both ErrExtraction and the underlying cause.
func (e *Error) Unwrap() []error {
	return []error{ErrExtraction, e.Err}
}

// Replay is an Extractor over a fixed list of events, optionally failing
// with Err after the last one. It is useful for precomputed geometry and for
// exercising Driver.
type Replay struct {
	Events []Event
	Err    error
	pos    int
}

// NewReplay returns a Replay over events.
func NewReplay(events ...Event) *Replay {
	return &Replay{Events: events}
}

// More reports whether another event, or the configured error, is pending.
func (r *Replay) More() bool {
	return r.pos < len(r.Events) || (r.pos == len(r.Events) && r.Err != nil)
}

// Next returns the next event.
func (r *Replay) Next() (Event, error) {
	if r.pos < len(r.Events) {
		ev := r.Events[r.pos]
		r.pos++
		return ev, nil
	}
	if r.pos == len(r.Events) && r.Err != nil {
		r.pos++
		return Event{}, r.Err
	}
	return Event{}, ErrExhausted
}
