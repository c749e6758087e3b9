// Package field defines the cubic scalar density grid that the rest of the
// pipeline diffuses and extracts isosurfaces from. All indexed access is
// bounds-checked: an out-of-range coordinate is a programming error and
// panics with a *BoundsError rather than being clamped.
package field

import (
	"fmt"
	"math"
)

// BoundsError reports an indexed access outside the grid.
type BoundsError struct {
	X, Y, Z int
	Side    int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("field: coordinate (%d,%d,%d) out of range for side %d", e.X, e.Y, e.Z, e.Side)
}

// Field is a cube of float32 densities. Storage is row-major with z varying
// fastest, so index = (x*side+y)*side+z.
type Field struct {
	side int
	data []float32
}

// New allocates a zero-filled field with the given cube side.
// It panics if side is not positive.
func New(side int) *Field {
	if side < 1 {
		panic(fmt.Sprintf("field.New: side must be positive, got %d", side))
	}
	return &Field{
		side: side,
		data: make([]float32, side*side*side),
	}
}

// Side returns the cube side length.
func (f *Field) Side() int {
	return f.side
}

// Len returns the number of voxels (side³).
func (f *Field) Len() int {
	return len(f.data)
}

// InBounds reports whether (x, y, z) addresses a voxel.
func (f *Field) InBounds(x, y, z int) bool {
	return x >= 0 && x < f.side && y >= 0 && y < f.side && z >= 0 && z < f.side
}

// Index returns the flat buffer offset of (x, y, z). It panics with a
// *BoundsError if the coordinate is outside the grid.
func (f *Field) Index(x, y, z int) int {
	if !f.InBounds(x, y, z) {
		panic(&BoundsError{X: x, Y: y, Z: z, Side: f.side})
	}
	return (x*f.side+y)*f.side + z
}

// At returns the density at (x, y, z). It panics on out-of-range access.
func (f *Field) At(x, y, z int) float32 {
	return f.data[f.Index(x, y, z)]
}

// Set stores v at (x, y, z). It panics on out-of-range access.
func (f *Field) Set(x, y, z int, v float32) {
	f.data[f.Index(x, y, z)] = v
}

// Data exposes the backing buffer. Callers that write through it bypass
// bounds checking and must respect the z-fastest layout.
func (f *Field) Data() []float32 {
	return f.data
}

// Clone returns a deep copy.
func (f *Field) Clone() *Field {
	c := &Field{side: f.side, data: make([]float32, len(f.data))}
	copy(c.data, f.data)
	return c
}

// Sum returns the total density over every voxel.
func (f *Field) Sum() float64 {
	var s float64
	for _, v := range f.data {
		s += float64(v)
	}
	return s
}

// InteriorSum returns the total density over voxels with every coordinate
// in [1, side-2].
func (f *Field) InteriorSum() float64 {
	var s float64
	n := f.side
	for x := 1; x < n-1; x++ {
		for y := 1; y < n-1; y++ {
			row := (x*n + y) * n
			for z := 1; z < n-1; z++ {
				s += float64(f.data[row+z])
			}
		}
	}
	return s
}

// BoundaryIsZero reports whether every voxel with a coordinate of 0 or
// side-1 holds exactly zero.
func (f *Field) BoundaryIsZero() bool {
	n := f.side
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			for z := 0; z < n; z++ {
				if x != 0 && x != n-1 && y != 0 && y != n-1 && z != 0 && z != n-1 {
					continue
				}
				if f.data[(x*n+y)*n+z] != 0 {
					return false
				}
			}
		}
	}
	return true
}

// Sample returns the trilinearly interpolated density at a continuous point
// in voxel coordinates. Points outside the grid read as zero density, so an
// isosurface closes at the grid border.
func (f *Field) Sample(x, y, z float64) float64 {
	x0, fx := splitCoord(x)
	y0, fy := splitCoord(y)
	z0, fz := splitCoord(z)

	var s float64
	for dx := 0; dx < 2; dx++ {
		wx := weight(fx, dx)
		if wx == 0 {
			continue
		}
		for dy := 0; dy < 2; dy++ {
			wy := weight(fy, dy)
			if wy == 0 {
				continue
			}
			for dz := 0; dz < 2; dz++ {
				wz := weight(fz, dz)
				if wz == 0 {
					continue
				}
				s += wx * wy * wz * f.valueOrZero(x0+dx, y0+dy, z0+dz)
			}
		}
	}
	return s
}

func (f *Field) valueOrZero(x, y, z int) float64 {
	if !f.InBounds(x, y, z) {
		return 0
	}
	return float64(f.data[(x*f.side+y)*f.side+z])
}

func splitCoord(c float64) (int, float64) {
	fl := math.Floor(c)
	return int(fl), c - fl
}

func weight(frac float64, d int) float64 {
	if d == 0 {
		return 1 - frac
	}
	return frac
}
