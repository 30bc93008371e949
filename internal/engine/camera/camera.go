// Package camera provides the perspective camera used by the renderer.
package camera

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/lumen/internal/engine/transform"
)

var worldUp = mgl32.Vec3{0, 1, 0}

// Camera is a perspective camera. Its orientation is the embedded
// transform's view/up/right basis.
type Camera struct {
	transform.Transform

	FovY float32 // degrees
	Near float32
	Far  float32

	Width  int
	Height int

	// Free-fly controls
	MoveSpeed       float32
	DragSensitivity float32
}

// New creates a camera at the origin looking down -Z.
func New(width, height int) *Camera {
	return &Camera{
		Transform:       transform.New(),
		FovY:            45,
		Near:            0.1,
		Far:             100,
		Width:           max(width, 1),
		Height:          max(height, 1),
		MoveSpeed:       5,
		DragSensitivity: 0.005,
	}
}

// SetProjection sets the perspective parameters. fovY is in degrees.
func (c *Camera) SetProjection(fovY, near, far float32) {
	c.FovY = fovY
	c.Near = near
	c.Far = far
}

// Resize updates the viewport size used for the aspect ratio.
func (c *Camera) Resize(width, height int) {
	c.Width = max(width, 1)
	c.Height = max(height, 1)
}

// Aspect returns width / height.
func (c *Camera) Aspect() float32 {
	return float32(c.Width) / float32(c.Height)
}

// Projection returns the perspective projection matrix.
func (c *Camera) Projection() mgl32.Mat4 {
	return c.ProjectionRange(c.Near, c.Far)
}

// ProjectionRange returns the camera projection clipped to [near, far].
func (c *Camera) ProjectionRange(near, far float32) mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.FovY), c.Aspect(), near, far)
}

// ViewMatrix returns the world-to-view matrix.
func (c *Camera) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Position.Add(c.View), c.Up)
}

// ViewDepth returns the distance of a world point in front of the camera,
// as a positive view-space depth.
func (c *Camera) ViewDepth(p mgl32.Vec3) float32 {
	return -c.ViewMatrix().Mul4x1(p.Vec4(1)).Z()
}

// Look turns the camera by yaw around world Y, then pitches it around the
// horizontal axis perpendicular to the new view direction. Angles are in
// degrees.
func (c *Camera) Look(pitch, yaw float32) {
	c.RotateAround(worldUp, mgl32.DegToRad(yaw))
	axis := worldUp.Cross(c.View)
	if axis.Len() == 0 {
		return
	}
	c.RotateAround(axis.Normalize(), mgl32.DegToRad(pitch))
	c.Rotation = c.Rotation.Add(mgl32.Vec3{pitch, yaw, 0})
}

// HandleDrag turns the camera from a mouse drag delta in pixels.
func (c *Camera) HandleDrag(deltaX, deltaY float32) {
	c.RotateAround(worldUp, -deltaX*c.DragSensitivity)
	c.RotateAround(c.Right, -deltaY*c.DragSensitivity)
}

// HandleMovement moves the camera along its own axes, scaled by dt seconds.
func (c *Camera) HandleMovement(forward, right, up, dt float32) {
	step := c.MoveSpeed * dt
	c.Position = c.Position.
		Add(c.View.Mul(forward * step)).
		Add(c.Right.Mul(right * step)).
		Add(worldUp.Mul(up * step))
}
