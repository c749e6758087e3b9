package mesh

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// degenerateEpsilon is the smallest cross-product magnitude treated as a
// real triangle.
const degenerateEpsilon = 1e-12

// FallbackNormal is used where no direction can be derived from geometry.
var FallbackNormal = r3.Vec{X: 0, Y: 0, Z: 1}

// NormalStrategy selects how per-vertex normals are estimated.
type NormalStrategy int

const (
	// Auto uses Smooth for indexed meshes and Faceted for flat ones.
	Auto NormalStrategy = iota
	// Smooth averages area-weighted face normals at shared vertices.
	Smooth
	// Faceted assigns each triangle's normal to its three corners.
	Faceted
)

func (s NormalStrategy) String() string {
	switch s {
	case Auto:
		return "auto"
	case Smooth:
		return "smooth"
	case Faceted:
		return "faceted"
	default:
		return fmt.Sprintf("NormalStrategy(%d)", int(s))
	}
}

// ParseNormalStrategy maps a name to a strategy.
func ParseNormalStrategy(s string) (NormalStrategy, error) {
	switch s {
	case "", "auto":
		return Auto, nil
	case "smooth":
		return Smooth, nil
	case "faceted", "flat":
		return Faceted, nil
	}
	return Auto, fmt.Errorf("mesh: unknown normal strategy %q", s)
}

// Center shifts every position by -(side-1)/2 on each axis, so geometry
// extracted in voxel coordinates of a field with the given side ends up
// centered on the origin. The input is not modified.
func Center(positions []r3.Vec, side int) []r3.Vec {
	h := float64(side-1) / 2
	off := r3.Vec{X: h, Y: h, Z: h}
	out := make([]r3.Vec, len(positions))
	for i, p := range positions {
		out[i] = r3.Sub(p, off)
	}
	return out
}

// faceNormal returns the unnormalized normal (v1-v0)x(v2-v0) and its length.
func faceNormal(v0, v1, v2 r3.Vec) (r3.Vec, float64) {
	n := r3.Cross(r3.Sub(v1, v0), r3.Sub(v2, v0))
	return n, r3.Norm(n)
}

func usable(length float64) bool {
	return length > degenerateEpsilon && !math.IsInf(length, 0)
}

// FlatNormals computes one normal per triangle of a flat triangle list and
// assigns it to all three corners. A degenerate triangle reuses the previous
// triangle's normal, or FallbackNormal if it is the first. It returns the
// normals and the number of degenerate triangles seen.
func FlatNormals(positions []r3.Vec) ([]r3.Vec, int) {
	normals := make([]r3.Vec, len(positions))
	prev := FallbackNormal
	degenerate := 0
	for t := 0; t+2 < len(positions); t += 3 {
		n, l := faceNormal(positions[t], positions[t+1], positions[t+2])
		if usable(l) {
			prev = r3.Scale(1/l, n)
		} else {
			degenerate++
		}
		normals[t] = prev
		normals[t+1] = prev
		normals[t+2] = prev
	}
	return normals, degenerate
}

// VertexNormals computes smooth per-vertex normals for an indexed mesh by
// summing the unnormalized face normals of every adjacent triangle, which
// weights each face by its area, and normalizing the sum. Vertices with no
// usable direction get FallbackNormal. It returns the normals and the number
// of such vertices.
func VertexNormals(cells []uint32, positions []r3.Vec) ([]r3.Vec, int) {
	acc := make([]r3.Vec, len(positions))
	for t := 0; t+2 < len(cells); t += 3 {
		a, b, c := cells[t], cells[t+1], cells[t+2]
		n, l := faceNormal(positions[a], positions[b], positions[c])
		if !usable(l) {
			continue
		}
		acc[a] = r3.Add(acc[a], n)
		acc[b] = r3.Add(acc[b], n)
		acc[c] = r3.Add(acc[c], n)
	}
	fallback := 0
	for i, n := range acc {
		l := r3.Norm(n)
		if usable(l) {
			acc[i] = r3.Scale(1/l, n)
			continue
		}
		acc[i] = FallbackNormal
		fallback++
	}
	return acc, fallback
}

// Weld merges exactly coincident positions of a flat triangle list into an
// indexed mesh.
func Weld(positions []r3.Vec) ([]r3.Vec, []uint32) {
	return dedupe(positions)
}

// Reweld merges coincident positions of an indexed mesh and rewrites cells
// to match. Meshes assembled from separately indexed chunks repeat the
// vertices on chunk borders; after Reweld each position appears once.
func Reweld(cells []uint32, positions []r3.Vec) ([]r3.Vec, []uint32) {
	unique, remap := dedupe(positions)
	out := make([]uint32, len(cells))
	for i, c := range cells {
		out[i] = remap[c]
	}
	return unique, out
}

// dedupe returns the distinct positions in first-seen order and, for every
// input position, its index among them.
func dedupe(positions []r3.Vec) ([]r3.Vec, []uint32) {
	seen := make(map[r3.Vec]uint32, len(positions)/2)
	unique := make([]r3.Vec, 0, len(positions)/2)
	remap := make([]uint32, len(positions))
	for i, p := range positions {
		idx, ok := seen[p]
		if !ok {
			idx = uint32(len(unique))
			seen[p] = idx
			unique = append(unique, p)
		}
		remap[i] = idx
	}
	return unique, remap
}

// Unweld expands an indexed mesh into a flat triangle list.
func Unweld(cells []uint32, positions []r3.Vec) []r3.Vec {
	out := make([]r3.Vec, len(cells))
	for i, c := range cells {
		out[i] = positions[c]
	}
	return out
}

// Assemble validates raw, centers it for a field of the given side and
// estimates normals with the chosen strategy. An empty raw mesh assembles to
// an empty Mesh. A nil logger means slog.Default.
func Assemble(raw *RawMesh, side int, strategy NormalStrategy, log *slog.Logger) (*Mesh, error) {
	if raw == nil {
		raw = &RawMesh{}
	}
	centered := &RawMesh{
		Positions: Center(raw.Positions, side),
		Cells:     raw.Cells,
		Indexed:   raw.Indexed,
	}
	return Finish(centered, strategy, log)
}

// Finish estimates normals for raw, whose positions are used as they are,
// and flattens the result into a Mesh. Degenerate geometry is reported to
// log at debug level; a nil logger means slog.Default.
func Finish(raw *RawMesh, strategy NormalStrategy, log *slog.Logger) (*Mesh, error) {
	if raw == nil {
		raw = &RawMesh{}
	}
	if log == nil {
		log = slog.Default()
	}
	if err := raw.Validate(); err != nil {
		return nil, fmt.Errorf("mesh: assemble: %w", err)
	}

	if strategy == Auto {
		strategy = Faceted
		if raw.Indexed {
			strategy = Smooth
		}
	}

	var (
		positions []r3.Vec
		cells     []uint32
		normals   []r3.Vec
		bad       int
	)
	switch strategy {
	case Smooth:
		if raw.Indexed {
			positions, cells = Reweld(raw.Cells, raw.Positions)
		} else {
			positions, cells = Weld(raw.Positions)
		}
		normals, bad = VertexNormals(cells, positions)
	case Faceted:
		positions = raw.Positions
		if raw.Indexed {
			positions = Unweld(raw.Cells, raw.Positions)
		}
		normals, bad = FlatNormals(positions)
	default:
		return nil, fmt.Errorf("mesh: assemble: unsupported strategy %v", strategy)
	}
	if bad > 0 {
		log.Debug("degenerate geometry replaced with fallback normals",
			"strategy", strategy.String(), "count", bad)
	}

	m := &Mesh{
		Vertices: flatten(positions),
		Normals:  flatten(normals),
		Flat:     strategy == Faceted,
	}
	if strategy == Faceted {
		m.Indices = make([]uint32, len(positions))
		for i := range m.Indices {
			m.Indices[i] = uint32(i)
		}
	} else {
		m.Indices = append([]uint32(nil), cells...)
	}
	return m, nil
}

func flatten(vs []r3.Vec) []float32 {
	out := make([]float32, 0, len(vs)*3)
	for _, v := range vs {
		out = append(out, float32(v.X), float32(v.Y), float32(v.Z))
	}
	return out
}
