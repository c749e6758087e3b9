package field

import "math/rand"

// Default seeding parameters.
const (
	DefaultSeedFraction   = 0.009
	DefaultRadiusFraction = 0.9
	DefaultSeedValue      = 64
)

// SeedParams controls how point mass is scattered into a field.
type SeedParams struct {
	// Fraction of side³ used as the number of candidate draws.
	Fraction float64
	// RadiusFraction bounds accepted voxels to a squared distance of
	// RadiusFraction*(side/2)² from Center.
	RadiusFraction float64
	// Value written to each accepted voxel.
	Value float32
}

// DefaultSeedParams returns the stock parameters.
func DefaultSeedParams() SeedParams {
	return SeedParams{
		Fraction:       DefaultSeedFraction,
		RadiusFraction: DefaultRadiusFraction,
		Value:          DefaultSeedValue,
	}
}

// Center returns the voxel-space center of the cube, (side-1)/2 on each axis.
func (f *Field) Center() float64 {
	return float64(f.side-1) / 2
}

// HalfWidth returns side/2.
func (f *Field) HalfWidth() float64 {
	return float64(f.side) / 2
}

// WithinSeedRadius reports whether voxel (x, y, z) lies inside the seeding
// sphere for the given radius fraction.
func (f *Field) WithinSeedRadius(x, y, z int, radiusFraction float64) bool {
	c := f.Center()
	dx := c - float64(x)
	dy := c - float64(y)
	dz := c - float64(z)
	h := f.HalfWidth()
	return dx*dx+dy*dy+dz*dz <= h*h*radiusFraction
}

// Seed draws candidate voxels uniformly from rng and sets every candidate
// inside the seeding sphere to p.Value. It returns the number of accepted
// draws; repeated hits on the same voxel are counted each time.
func Seed(f *Field, rng *rand.Rand, p SeedParams) int {
	draws := int(float64(f.Len()) * p.Fraction)
	accepted := 0
	for i := 0; i < draws; i++ {
		x := rng.Intn(f.side)
		y := rng.Intn(f.side)
		z := rng.Intn(f.side)
		if !f.WithinSeedRadius(x, y, z, p.RadiusFraction) {
			continue
		}
		f.Set(x, y, z, p.Value)
		accepted++
	}
	return accepted
}
