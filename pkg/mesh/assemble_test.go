package mesh

import (
	"bytes"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func assertFinite(t *testing.T, vs []float32) {
	t.Helper()
	for i, v := range vs {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			t.Fatalf("component %d is %v", i, v)
		}
	}
}

func assertUnit(t *testing.T, ns []r3.Vec) {
	t.Helper()
	for i, n := range ns {
		if l := r3.Norm(n); math.Abs(l-1) > 1e-9 {
			t.Fatalf("normal %d = %v has length %f", i, n, l)
		}
	}
}

func TestCenterZeroMean(t *testing.T) {
	for _, side := range []int{2, 4, 7, 128} {
		var pts []r3.Vec
		for x := 0; x < side; x += max(1, side/8) {
			pts = append(pts, r3.Vec{X: float64(x), Y: float64(side - 1 - x), Z: float64(side-1) / 2})
			pts = append(pts, r3.Vec{X: float64(side - 1 - x), Y: float64(x), Z: float64(side-1) / 2})
		}
		out := Center(pts, side)
		var sum r3.Vec
		for _, p := range out {
			sum = r3.Add(sum, p)
		}
		mean := r3.Scale(1/float64(len(out)), sum)
		if r3.Norm(mean) > 1e-9 {
			t.Errorf("side %d: centered mean = %v, want origin", side, mean)
		}
	}
}

func TestCenterOffset(t *testing.T) {
	in := []r3.Vec{{X: 1.5, Y: 1.5, Z: 1.5}, {X: 0, Y: 3, Z: 2}}
	out := Center(in, 4)
	if out[0] != (r3.Vec{}) {
		t.Errorf("cube center maps to %v, want origin", out[0])
	}
	if out[1] != (r3.Vec{X: -1.5, Y: 1.5, Z: 0.5}) {
		t.Errorf("Center() = %v", out[1])
	}
	if in[0].X != 1.5 {
		t.Error("Center mutated its input")
	}
}

func TestFlatNormalsRightHanded(t *testing.T) {
	pts := []r3.Vec{{}, {X: 2}, {Y: 3}}
	ns, bad := FlatNormals(pts)
	if bad != 0 {
		t.Errorf("degenerate = %d, want 0", bad)
	}
	for i, n := range ns {
		if n != (r3.Vec{Z: 1}) {
			t.Errorf("normal %d = %v, want +Z", i, n)
		}
	}
}

func TestFlatNormalsDegenerate(t *testing.T) {
	pts := []r3.Vec{
		// collinear first triangle: no previous, so +Z fallback
		{}, {X: 1}, {X: 2},
		// real triangle facing +X
		{}, {Y: 1}, {Z: 1},
		// zero-area triangle reuses +X
		{X: 5, Y: 5, Z: 5}, {X: 5, Y: 5, Z: 5}, {X: 5, Y: 5, Z: 5},
		// non-finite input
		{X: math.NaN()}, {Y: 1}, {Z: 1},
	}
	ns, bad := FlatNormals(pts)
	if bad != 3 {
		t.Errorf("degenerate = %d, want 3", bad)
	}
	assertUnit(t, ns)
	want := []r3.Vec{FallbackNormal, {X: 1}, {X: 1}, {X: 1}}
	for tri, w := range want {
		for k := 0; k < 3; k++ {
			if ns[tri*3+k] != w {
				t.Errorf("triangle %d corner %d = %v, want %v", tri, k, ns[tri*3+k], w)
			}
		}
	}
}

func TestVertexNormalsSharedEdge(t *testing.T) {
	// Two triangles folded along the X axis: one in the XY plane facing +Z,
	// one in the XZ plane facing +Y.
	pts := []r3.Vec{{}, {X: 1}, {Y: 1}, {Z: 1}}
	cells := []uint32{0, 1, 2, 0, 3, 1}
	ns, bad := VertexNormals(cells, pts)
	if bad != 0 {
		t.Errorf("fallback count = %d, want 0", bad)
	}
	assertUnit(t, ns)
	if ns[2] != (r3.Vec{Z: 1}) {
		t.Errorf("vertex 2 = %v, want +Z", ns[2])
	}
	if ns[3] != (r3.Vec{Y: 1}) {
		t.Errorf("vertex 3 = %v, want +Y", ns[3])
	}
	s := 1 / math.Sqrt2
	for _, v := range []int{0, 1} {
		if math.Abs(ns[v].X) > 1e-12 || math.Abs(ns[v].Y-s) > 1e-12 || math.Abs(ns[v].Z-s) > 1e-12 {
			t.Errorf("shared vertex %d = %v, want (0,%f,%f)", v, ns[v], s, s)
		}
	}
}

func TestVertexNormalsIsolatedAndDegenerate(t *testing.T) {
	pts := []r3.Vec{{}, {X: 1}, {X: 2}, {Y: 7}}
	cells := []uint32{0, 1, 2}
	ns, bad := VertexNormals(cells, pts)
	if bad != 4 {
		t.Errorf("fallback count = %d, want 4", bad)
	}
	for i, n := range ns {
		if n != FallbackNormal {
			t.Errorf("vertex %d = %v, want fallback", i, n)
		}
	}
}

func TestWeldRoundTrip(t *testing.T) {
	flat := []r3.Vec{{}, {X: 1}, {Y: 1}, {Y: 1}, {X: 1}, {X: 1, Y: 1}}
	unique, cells := Weld(flat)
	if len(unique) != 4 {
		t.Fatalf("unique = %d, want 4", len(unique))
	}
	if len(cells) != len(flat) {
		t.Fatalf("cells = %d, want %d", len(cells), len(flat))
	}
	back := Unweld(cells, unique)
	for i := range flat {
		if back[i] != flat[i] {
			t.Errorf("position %d = %v, want %v", i, back[i], flat[i])
		}
	}
}

func TestSmoothReweldsChunkSeams(t *testing.T) {
	// Two indexed chunks meeting on the edge (1,0,0)-(0,1,0); each chunk
	// carries its own copy of the edge vertices.
	raw := &RawMesh{
		Positions: []r3.Vec{
			{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0},
			{X: 1, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 1}, {X: 0, Y: 1, Z: 0},
		},
		Cells:   []uint32{0, 1, 2, 3, 4, 5},
		Indexed: true,
	}
	m, err := Finish(raw, Smooth, nil)
	if err != nil {
		t.Fatalf("Finish() error: %v", err)
	}
	if m.VertexCount() != 4 {
		t.Fatalf("VertexCount() = %d, want 4 after merging the seam", m.VertexCount())
	}

	seen := make(map[[3]float32]bool)
	for i := 0; i < m.VertexCount(); i++ {
		p := [3]float32{m.Vertices[3*i], m.Vertices[3*i+1], m.Vertices[3*i+2]}
		if seen[p] {
			t.Fatalf("position %v appears twice", p)
		}
		seen[p] = true
	}

	// Face normals (0,0,1) and (-1,-1,1), both with cross-product weight
	// matching their areas, sum to (-1,-1,2) on the shared edge.
	want := r3.Unit(r3.Vec{X: -1, Y: -1, Z: 2})
	for i := 0; i < m.VertexCount(); i++ {
		x, y, z := m.Vertices[3*i], m.Vertices[3*i+1], m.Vertices[3*i+2]
		onSeam := (x == 1 && y == 0 && z == 0) || (x == 0 && y == 1 && z == 0)
		if !onSeam {
			continue
		}
		got := r3.Vec{X: float64(m.Normals[3*i]), Y: float64(m.Normals[3*i+1]), Z: float64(m.Normals[3*i+2])}
		if r3.Norm(r3.Sub(got, want)) > 1e-6 {
			t.Errorf("seam vertex (%v,%v,%v) normal = %v, want %v", x, y, z, got, want)
		}
	}
}

func TestFinishLogsToInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	raw := &RawMesh{Positions: []r3.Vec{{X: 1}, {X: 1}, {X: 1}}}
	if _, err := Finish(raw, Faceted, log); err != nil {
		t.Fatalf("Finish() error: %v", err)
	}
	if !strings.Contains(buf.String(), "degenerate geometry") || !strings.Contains(buf.String(), "count=1") {
		t.Errorf("log output = %q, want the degenerate count", buf.String())
	}
}

func TestAssembleEmpty(t *testing.T) {
	for _, s := range []NormalStrategy{Auto, Smooth, Faceted} {
		for _, raw := range []*RawMesh{nil, {}, {Indexed: true}} {
			m, err := Assemble(raw, 4, s, nil)
			if err != nil {
				t.Fatalf("Assemble(empty, %v) error: %v", s, err)
			}
			if !m.IsEmpty() || m.TriangleCount() != 0 || len(m.Normals) != 0 {
				t.Errorf("Assemble(empty, %v) = %+v, want empty mesh", s, m)
			}
		}
	}
}

func TestAssembleRejectsInvalid(t *testing.T) {
	raw := &RawMesh{Positions: []r3.Vec{{}, {}}, Cells: []uint32{0, 1, 5}, Indexed: true}
	if _, err := Assemble(raw, 4, Auto, nil); err == nil {
		t.Fatal("expected error for out-of-range cell")
	}
}

func TestAssembleStrategies(t *testing.T) {
	// A tetrahedron around the center of a side-4 cube, as a flat list.
	a := r3.Vec{X: 1, Y: 1, Z: 1}
	b := r3.Vec{X: 2, Y: 2, Z: 1}
	c := r3.Vec{X: 2, Y: 1, Z: 2}
	d := r3.Vec{X: 1, Y: 2, Z: 2}
	flat := []r3.Vec{a, c, b, a, b, d, a, d, c, b, c, d}

	tests := []struct {
		name      string
		raw       *RawMesh
		strategy  NormalStrategy
		wantFlat  bool
		wantVerts int
	}{
		{"flat auto", &RawMesh{Positions: flat}, Auto, true, 12},
		{"flat smooth", &RawMesh{Positions: flat}, Smooth, false, 4},
		{"indexed auto", &RawMesh{Positions: []r3.Vec{a, b, c, d}, Cells: []uint32{0, 2, 1, 0, 1, 3, 0, 3, 2, 1, 2, 3}, Indexed: true}, Auto, false, 4},
		{"indexed faceted", &RawMesh{Positions: []r3.Vec{a, b, c, d}, Cells: []uint32{0, 2, 1, 0, 1, 3, 0, 3, 2, 1, 2, 3}, Indexed: true}, Faceted, true, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Assemble(tt.raw, 4, tt.strategy, nil)
			if err != nil {
				t.Fatalf("Assemble() error: %v", err)
			}
			if m.Flat != tt.wantFlat {
				t.Errorf("Flat = %v, want %v", m.Flat, tt.wantFlat)
			}
			if m.VertexCount() != tt.wantVerts {
				t.Errorf("VertexCount() = %d, want %d", m.VertexCount(), tt.wantVerts)
			}
			if m.TriangleCount() != 4 {
				t.Errorf("TriangleCount() = %d, want 4", m.TriangleCount())
			}
			if len(m.Normals) != len(m.Vertices) {
				t.Errorf("normals %d != vertices %d", len(m.Normals), len(m.Vertices))
			}
			assertFinite(t, m.Normals)
			c := m.Centroid()
			if math.Abs(c[0]) > 1e-6 || math.Abs(c[1]) > 1e-6 || math.Abs(c[2]) > 1e-6 {
				t.Errorf("centroid = %v, want origin", c)
			}
			for _, idx := range m.Indices {
				if int(idx) >= m.VertexCount() {
					t.Fatalf("index %d out of range", idx)
				}
			}
		})
	}
}

func TestAssembleNeverEmitsNaN(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	var pts []r3.Vec
	for i := 0; i < 300; i++ {
		switch i % 4 {
		case 0:
			p := r3.Vec{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64()}
			pts = append(pts, p, p, p)
		case 1:
			p := r3.Vec{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64()}
			q := r3.Scale(2, p)
			pts = append(pts, p, q, r3.Scale(3, p))
		default:
			for k := 0; k < 3; k++ {
				pts = append(pts, r3.Vec{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64()})
			}
		}
	}
	for _, s := range []NormalStrategy{Faceted, Smooth} {
		m, err := Assemble(&RawMesh{Positions: pts}, 8, s, nil)
		if err != nil {
			t.Fatalf("Assemble(%v) error: %v", s, err)
		}
		assertFinite(t, m.Normals)
	}
}

func TestParseNormalStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    NormalStrategy
		wantErr bool
	}{
		{"", Auto, false},
		{"auto", Auto, false},
		{"smooth", Smooth, false},
		{"faceted", Faceted, false},
		{"flat", Faceted, false},
		{"bumpy", Auto, true},
	}
	for _, tt := range tests {
		got, err := ParseNormalStrategy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseNormalStrategy(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseNormalStrategy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
