// Package sdfx implements extract.Extractor with the marching cubes renderer
// of the github.com/deadsy/sdfx SDF library. The density field is wrapped as
// a signed distance function and rendered one z-slab at a time, so each
// slab becomes one progress event.
package sdfx

import (
	"fmt"
	"math"

	"github.com/chazu/isoblob/pkg/extract"
	"github.com/chazu/isoblob/pkg/field"
	"github.com/chazu/isoblob/pkg/mesh"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Compile-time interface checks.
var _ extract.Extractor = (*Extractor)(nil)
var _ sdf.SDF3 = (*Density)(nil)

// DefaultSlabs is the number of events an extraction is split into when the
// field is large enough.
const DefaultSlabs = 32

// minSlabCells is the thinnest slab, in sampling cells, that is rendered.
const minSlabCells = 2

// Density presents a field as an SDF3: negative where the trilinearly
// sampled density exceeds the isovalue, positive elsewhere.
type Density struct {
	f   *field.Field
	iso float64
	bb  sdf.Box3
}

// NewDensity wraps f with the given isovalue. The bounding box spans the
// whole grid plus half a voxel on every side.
func NewDensity(f *field.Field, iso float64) *Density {
	n := float64(f.Side())
	return &Density{
		f:   f,
		iso: iso,
		bb: sdf.Box3{
			Min: v3.Vec{X: -0.5, Y: -0.5, Z: -0.5},
			Max: v3.Vec{X: n - 0.5, Y: n - 0.5, Z: n - 0.5},
		},
	}
}

// Evaluate returns isovalue minus density at p.
func (d *Density) Evaluate(p v3.Vec) float64 {
	return d.iso - d.f.Sample(p.X, p.Y, p.Z)
}

// BoundingBox returns the sampled region.
func (d *Density) BoundingBox() sdf.Box3 {
	return d.bb
}

// slab restricts a Density to the z range [z0, z1] of the sampling lattice.
type slab struct {
	*Density
	bb sdf.Box3
}

func (s *slab) BoundingBox() sdf.Box3 {
	return s.bb
}

// Options configures an Extractor.
type Options struct {
	// Slabs is the requested number of events; it is reduced for small
	// fields. Zero means DefaultSlabs.
	Slabs int
	// Indexed welds each slab's triangles into an indexed chunk instead of
	// emitting a flat triangle list.
	Indexed bool
}

// Extractor renders a field slab by slab. It is single-pass.
type Extractor struct {
	density *Density
	cells   int   // sampling cells per axis
	bounds  []int // slab boundaries on the lattice, len = slabs+1
	next    int
	indexed bool
}

// New returns an Extractor for f at the given isovalue.
//
// The sampling lattice puts one sample on every voxel plus one ring of
// empty samples outside the grid, so surfaces close at the border. The
// marching cubes renderer pads the bounding box it is given by one cell, so
// each slab hands it a box half a cell inside its lattice range; adjacent
// slabs then share their boundary sampling plane.
func New(f *field.Field, iso float64, opts Options) (*Extractor, error) {
	if math.IsNaN(iso) || math.IsInf(iso, 0) || iso <= 0 {
		return nil, fmt.Errorf("sdfx: isovalue must be positive and finite, got %v", iso)
	}
	n := f.Side()
	cells := n + 1

	want := opts.Slabs
	if want <= 0 {
		want = DefaultSlabs
	}
	if most := cells / minSlabCells; want > most {
		want = most
	}
	if want < 1 {
		want = 1
	}

	bounds := make([]int, 0, want+1)
	for i := 0; i <= want; i++ {
		bounds = append(bounds, -1+i*cells/want)
	}

	return &Extractor{
		density: NewDensity(f, iso),
		cells:   cells,
		bounds:  bounds,
		indexed: opts.Indexed,
	}, nil
}

// Slabs returns the number of events the extraction produces.
func (e *Extractor) Slabs() int {
	return len(e.bounds) - 1
}

// More reports whether a slab remains.
func (e *Extractor) More() bool {
	return e.next < e.Slabs()
}

// Next renders the next slab.
func (e *Extractor) Next() (extract.Event, error) {
	if !e.More() {
		return extract.Event{}, extract.ErrExhausted
	}
	z0, z1 := e.bounds[e.next], e.bounds[e.next+1]
	e.next++

	n := float64(e.cells - 1)
	s := &slab{
		Density: e.density,
		bb: sdf.Box3{
			Min: v3.Vec{X: -0.5, Y: -0.5, Z: float64(z0) + 0.5},
			Max: v3.Vec{X: n - 0.5, Y: n - 0.5, Z: float64(z1) - 0.5},
		},
	}

	triangles := render.ToTriangles(s, render.NewMarchingCubesUniform(e.cells-1))
	positions := make([]r3.Vec, 0, len(triangles)*3)
	for _, tri := range triangles {
		for j := 0; j < 3; j++ {
			v := tri[j]
			positions = append(positions, r3.Vec{X: v.X, Y: v.Y, Z: v.Z})
		}
	}

	chunk := extract.Chunk{Positions: positions}
	if e.indexed {
		chunk.Positions, chunk.Cells = mesh.Weld(positions)
	}
	return extract.Event{
		Chunk:    chunk,
		Fraction: float64(e.next) / float64(e.Slabs()),
	}, nil
}
