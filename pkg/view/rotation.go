package view

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// RotationSource supplies the current model rotation.
type RotationSource interface {
	Rotation() mgl32.Mat4
}

// Ticker is implemented by rotation sources that animate between frames.
type Ticker interface {
	Tick()
}

// Static is a fixed rotation.
type Static struct {
	Q mgl32.Quat
}

// Rotation returns the quaternion as a matrix.
func (s Static) Rotation() mgl32.Mat4 {
	if s.Q == (mgl32.Quat{}) {
		return mgl32.Ident4()
	}
	return s.Q.Normalize().Mat4()
}

const (
	// radiansPerUnit converts spin velocity (drag pixels per frame) to an
	// angle per frame.
	radiansPerUnit = math.Pi / 360
	// restSpeed is the speed below which a spinner stops.
	restSpeed = 1e-3
)

// Spinner is an inertial trackball rotation. Spin adds angular velocity in
// screen units; each Tick rotates by the current velocity and then damps it
// by the drag factor.
type Spinner struct {
	orientation mgl32.Quat
	vx, vy      float32
	drag        float32
	ticks       int
}

// NewSpinner returns a spinner at rest with the given drag in [0, 1].
func NewSpinner(drag float32) *Spinner {
	return &Spinner{orientation: mgl32.QuatIdent(), drag: drag}
}

// Spin adds velocity: dx turns about the vertical axis, dy about the
// horizontal one.
func (s *Spinner) Spin(dx, dy float32) {
	s.vx += dx
	s.vy += dy
}

// Speed returns the magnitude of the current velocity.
func (s *Spinner) Speed() float32 {
	return float32(math.Hypot(float64(s.vx), float64(s.vy)))
}

// Ticks returns how many times Tick has been called.
func (s *Spinner) Ticks() int { return s.ticks }

// Tick applies one frame of rotation.
func (s *Spinner) Tick() {
	s.ticks++
	speed := s.Speed()
	if speed < restSpeed {
		s.vx, s.vy = 0, 0
		return
	}
	axis := mgl32.Vec3{s.vy, s.vx, 0}.Mul(1 / speed)
	step := mgl32.QuatRotate(speed*radiansPerUnit, axis)
	s.orientation = step.Mul(s.orientation).Normalize()

	damp := 1 - s.drag
	s.vx *= damp
	s.vy *= damp
}

// Orientation returns the current rotation as a quaternion.
func (s *Spinner) Orientation() mgl32.Quat { return s.orientation }

// Rotation returns the current rotation matrix.
func (s *Spinner) Rotation() mgl32.Mat4 { return s.orientation.Mat4() }
