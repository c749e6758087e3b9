// Package diffuse smooths a density field with a 7-point mean filter so that
// scattered point mass merges into a blob suitable for isosurfacing.
package diffuse

import (
	"fmt"

	"github.com/chazu/isoblob/pkg/field"
)

// DefaultPasses is the stock number of smoothing passes.
const DefaultPasses = 64

// Step writes one filter pass over src into dst. Every interior voxel of dst
// receives the mean of the matching src voxel and its six face neighbors;
// every boundary voxel of dst is set to zero. dst and src must be distinct
// fields of the same side.
func Step(dst, src *field.Field) {
	if dst == src {
		panic("diffuse.Step: dst and src must be distinct fields")
	}
	n := src.Side()
	if dst.Side() != n {
		panic(fmt.Sprintf("diffuse.Step: side mismatch dst=%d src=%d", dst.Side(), n))
	}

	in := src.Data()
	out := dst.Data()
	clear(out)
	if n < 3 {
		return
	}

	sx := n * n
	sy := n
	for x := 1; x < n-1; x++ {
		for y := 1; y < n-1; y++ {
			row := x*sx + y*sy
			for z := 1; z < n-1; z++ {
				i := row + z
				sum := in[i] +
					in[i+sx] + in[i-sx] +
					in[i+sy] + in[i-sy] +
					in[i+1] + in[i-1]
				out[i] = sum / 7
			}
		}
	}
}

// Diffuser owns a current and a next buffer and swaps them after every pass,
// so a pass only ever reads the fully committed output of the previous one.
type Diffuser struct {
	cur    *field.Field
	next   *field.Field
	passes int
}

// New returns a Diffuser that starts from a copy of f. The caller keeps
// ownership of f.
func New(f *field.Field) *Diffuser {
	return &Diffuser{
		cur:  f.Clone(),
		next: field.New(f.Side()),
	}
}

// Pass runs one filter pass and commits it.
func (d *Diffuser) Pass() {
	Step(d.next, d.cur)
	d.cur, d.next = d.next, d.cur
	d.passes++
}

// Passes returns the number of committed passes.
func (d *Diffuser) Passes() int {
	return d.passes
}

// Field returns the most recently committed field. The returned field is
// overwritten by the pass after next; clone it to keep a snapshot.
func (d *Diffuser) Field() *field.Field {
	return d.cur
}

// Run applies n passes to a copy of f and returns the result. With n <= 0
// the result equals f.
func Run(f *field.Field, n int) *field.Field {
	d := New(f)
	for i := 0; i < n; i++ {
		d.Pass()
	}
	return d.Field()
}
