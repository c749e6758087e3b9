// Package view builds the per-frame transforms used to draw a finished mesh
// and defines the boundary to the rendering backend. Rendering itself is
// somebody else's job: the Viewer only samples the rotation, assembles the
// model/view/projection matrices and hands them to a Renderer.
package view

import (
	"errors"
	"fmt"

	"github.com/chazu/isoblob/pkg/config"
	"github.com/chazu/isoblob/pkg/mesh"
	"github.com/go-gl/mathgl/mgl32"
)

// Viewport is the pixel rectangle being drawn into.
type Viewport struct {
	X, Y          int
	Width, Height int
}

// Aspect returns width over height.
func (v Viewport) Aspect() float32 {
	return float32(v.Width) / float32(v.Height)
}

// Frame is everything a renderer needs for one draw.
type Frame struct {
	Model      mgl32.Mat4
	View       mgl32.Mat4
	Projection mgl32.Mat4
	Viewport   Viewport
}

// MVP returns Projection * View * Model.
func (f Frame) MVP() mgl32.Mat4 {
	return f.Projection.Mul4(f.View).Mul4(f.Model)
}

// Renderer draws a mesh with the given transforms.
type Renderer interface {
	Draw(m *mesh.Mesh, f Frame) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(m *mesh.Mesh, f Frame) error

// Draw calls fn.
func (fn RendererFunc) Draw(m *mesh.Mesh, f Frame) error { return fn(m, f) }

// Camera is a perspective camera on the +Z axis looking at the origin.
type Camera struct {
	Eye  mgl32.Vec3
	FOV  float32 // vertical, radians
	Near float32
	Far  float32
}

// NewCamera places the camera for a cube of the given side, so the whole
// centered mesh is in view.
func NewCamera(c config.CameraConfig, side int) Camera {
	return Camera{
		Eye:  mgl32.Vec3{0, 0, c.DistanceFactor * float32(side)},
		FOV:  mgl32.DegToRad(c.FOVDegrees),
		Near: c.Near,
		Far:  c.Far,
	}
}

// View returns the look-at matrix.
func (c Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Eye, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0})
}

// Projection returns the perspective matrix for the given aspect ratio.
func (c Camera) Projection(aspect float32) mgl32.Mat4 {
	return mgl32.Perspective(c.FOV, aspect, c.Near, c.Far)
}

// ErrViewport is returned for a viewport with no area.
var ErrViewport = errors.New("view: viewport has no area")

// Viewer draws one mesh per frame under a rotation source.
type Viewer struct {
	Camera   Camera
	Rotation RotationSource
	Renderer Renderer
	Mesh     *mesh.Mesh
}

// Frame advances the rotation source, builds the transforms for vp and draws
// the mesh. With no mesh yet, only the rotation advances.
func (v *Viewer) Frame(vp Viewport) (Frame, error) {
	if vp.Width <= 0 || vp.Height <= 0 {
		return Frame{}, fmt.Errorf("%w: %dx%d", ErrViewport, vp.Width, vp.Height)
	}
	model := mgl32.Ident4()
	if v.Rotation != nil {
		if t, ok := v.Rotation.(Ticker); ok {
			t.Tick()
		}
		model = v.Rotation.Rotation()
	}
	f := Frame{
		Model:      model,
		View:       v.Camera.View(),
		Projection: v.Camera.Projection(vp.Aspect()),
		Viewport:   vp,
	}
	if v.Mesh == nil || v.Renderer == nil {
		return f, nil
	}
	if err := v.Renderer.Draw(v.Mesh, f); err != nil {
		return f, fmt.Errorf("view: draw: %w", err)
	}
	return f, nil
}
