package view

import (
	"errors"
	"math"
	"testing"

	"github.com/chazu/isoblob/pkg/config"
	"github.com/chazu/isoblob/pkg/mesh"
	"github.com/go-gl/mathgl/mgl32"
)

// Compile-time checks.
var (
	_ RotationSource = (*Spinner)(nil)
	_ Ticker         = (*Spinner)(nil)
	_ RotationSource = Static{}
	_ Renderer       = RendererFunc(nil)
)

type recordingRenderer struct {
	frames []Frame
	meshes []*mesh.Mesh
	err    error
}

func (r *recordingRenderer) Draw(m *mesh.Mesh, f Frame) error {
	r.frames = append(r.frames, f)
	r.meshes = append(r.meshes, m)
	return r.err
}

func defaultCamera(side int) Camera {
	return NewCamera(config.Default().Camera, side)
}

func TestNewCamera(t *testing.T) {
	c := defaultCamera(128)
	if c.Eye != (mgl32.Vec3{0, 0, 256}) {
		t.Errorf("Eye = %v, want (0,0,256)", c.Eye)
	}
	if math.Abs(float64(c.FOV)-math.Pi/4) > 1e-6 {
		t.Errorf("FOV = %f, want pi/4", c.FOV)
	}
	if c.Near != 0.1 || c.Far != 1000 {
		t.Errorf("clip = %f..%f, want 0.1..1000", c.Near, c.Far)
	}
}

func TestCameraViewMapsOriginAhead(t *testing.T) {
	c := defaultCamera(10)
	p := c.View().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	// The origin lies straight ahead, down the camera's -Z axis.
	if math.Abs(float64(p.X())) > 1e-5 || math.Abs(float64(p.Y())) > 1e-5 {
		t.Errorf("origin in view space = %v, want on the axis", p)
	}
	if math.Abs(float64(p.Z())+20) > 1e-4 {
		t.Errorf("origin depth = %f, want -20", p.Z())
	}
}

func TestFrameRendersOnce(t *testing.T) {
	rec := &recordingRenderer{}
	m := &mesh.Mesh{Vertices: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}, Normals: make([]float32, 9), Indices: []uint32{0, 1, 2}, Flat: true}
	v := &Viewer{Camera: defaultCamera(16), Rotation: Static{}, Renderer: rec, Mesh: m}

	f, err := v.Frame(Viewport{Width: 800, Height: 600})
	if err != nil {
		t.Fatalf("Frame() error: %v", err)
	}
	if len(rec.frames) != 1 || rec.meshes[0] != m {
		t.Fatalf("renderer called %d times", len(rec.frames))
	}
	if f.Model != mgl32.Ident4() {
		t.Errorf("static identity rotation gave model %v", f.Model)
	}
	want := mgl32.Perspective(mgl32.DegToRad(45), 800.0/600.0, 0.1, 1000)
	if !f.Projection.ApproxEqual(want) {
		t.Errorf("projection = %v, want %v", f.Projection, want)
	}
	if f.MVP() != f.Projection.Mul4(f.View) {
		t.Error("MVP with identity model should equal projection*view")
	}
}

func TestFrameWithoutMeshSkipsRenderer(t *testing.T) {
	rec := &recordingRenderer{}
	sp := NewSpinner(0.01)
	sp.Spin(13, 11)
	v := &Viewer{Camera: defaultCamera(16), Rotation: sp, Renderer: rec}
	if _, err := v.Frame(Viewport{Width: 10, Height: 10}); err != nil {
		t.Fatalf("Frame() error: %v", err)
	}
	if len(rec.frames) != 0 {
		t.Error("renderer called with no mesh")
	}
	if sp.Ticks() != 1 {
		t.Errorf("spinner ticked %d times, want 1", sp.Ticks())
	}
}

func TestFrameErrors(t *testing.T) {
	v := &Viewer{Camera: defaultCamera(16)}
	for _, vp := range []Viewport{{Width: 0, Height: 10}, {Width: 10, Height: 0}, {Width: -1, Height: -1}} {
		if _, err := v.Frame(vp); !errors.Is(err, ErrViewport) {
			t.Errorf("Frame(%v) error = %v, want ErrViewport", vp, err)
		}
	}

	boom := errors.New("lost context")
	v.Mesh = &mesh.Mesh{}
	v.Renderer = RendererFunc(func(*mesh.Mesh, Frame) error { return boom })
	if _, err := v.Frame(Viewport{Width: 1, Height: 1}); !errors.Is(err, boom) {
		t.Errorf("Frame() error = %v, want wrapped renderer error", err)
	}
}

func TestSpinnerAtRest(t *testing.T) {
	sp := NewSpinner(0.01)
	sp.Tick()
	if sp.Rotation() != mgl32.Ident4() {
		t.Errorf("resting spinner rotated: %v", sp.Rotation())
	}
}

func TestSpinnerDecays(t *testing.T) {
	sp := NewSpinner(0.01)
	sp.Spin(13, 11)
	start := sp.Speed()
	sp.Tick()
	if got, want := sp.Speed(), start*0.99; math.Abs(float64(got-want)) > 1e-4 {
		t.Errorf("speed after one tick = %f, want %f", got, want)
	}
	if sp.Rotation() == mgl32.Ident4() {
		t.Error("spinning spinner did not rotate")
	}
	prev := sp.Speed()
	for i := 0; i < 100; i++ {
		sp.Tick()
		if s := sp.Speed(); s > prev {
			t.Fatalf("speed grew from %f to %f", prev, s)
		}
		prev = sp.Speed()
	}
}

func TestSpinnerFullDragStops(t *testing.T) {
	sp := NewSpinner(1)
	sp.Spin(5, 0)
	sp.Tick()
	q := sp.Orientation()
	sp.Tick()
	sp.Tick()
	if sp.Speed() != 0 {
		t.Errorf("speed = %f, want 0", sp.Speed())
	}
	if !sp.Orientation().ApproxEqual(q) {
		t.Error("spinner kept rotating after it stopped")
	}
}

func TestSpinnerHorizontalTurnsAboutY(t *testing.T) {
	sp := NewSpinner(0)
	sp.Spin(90, 0)
	sp.Tick()
	// 90 units at half a degree each is a quarter turn about +Y.
	got := sp.Rotation().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	want := mgl32.Vec4{0, 0, -1, 1}
	if !got.ApproxEqualThreshold(want, 1e-5) {
		t.Errorf("rotated +X = %v, want %v", got, want)
	}
	if !sp.Orientation().ApproxEqualThreshold(sp.Orientation().Normalize(), 1e-6) {
		t.Error("orientation not unit length")
	}
}
