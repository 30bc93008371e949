// Package shadow computes cascaded shadow map matrices and renders the
// depth maps for the directional light.
package shadow

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/lumen/internal/engine/camera"
)

// MaxCascades is the number of shadow samplers the lighting shader declares.
const MaxCascades = 4

// ErrSettings reports shadow settings outside their valid range.
var ErrSettings = errors.New("shadow: invalid settings")

// Settings configures the cascades.
type Settings struct {
	CascadeLevels    int     `yaml:"cascade_levels"`
	Linearity        float32 `yaml:"cascade_linearity"`
	Resolution       int     `yaml:"resolution"`
	Bias             float32 `yaml:"bias"`
	PCFSamples       int     `yaml:"pcf_samples"`
	BlendDistance    float32 `yaml:"blend_distance"`
	OccluderDistance float32 `yaml:"occluder_max_distance"`
	DrawCascades     bool    `yaml:"draw_cascade_levels"`
}

// DefaultSettings returns three cascades of 2048x2048 texels.
func DefaultSettings() Settings {
	return Settings{
		CascadeLevels:    3,
		Linearity:        0.5,
		Resolution:       2048,
		OccluderDistance: 50,
	}
}

// Validate reports the first out-of-range field.
func (s Settings) Validate() error {
	switch {
	case s.CascadeLevels < 1 || s.CascadeLevels > MaxCascades:
		return fmt.Errorf("cascade_levels %d not in [1, %d]: %w", s.CascadeLevels, MaxCascades, ErrSettings)
	case s.Linearity < 0 || s.Linearity > 1:
		return fmt.Errorf("cascade_linearity %g not in [0, 1]: %w", s.Linearity, ErrSettings)
	case s.Resolution < 1:
		return fmt.Errorf("resolution %d: %w", s.Resolution, ErrSettings)
	case s.PCFSamples < 0:
		return fmt.Errorf("pcf_samples %d: %w", s.PCFSamples, ErrSettings)
	case s.BlendDistance < 0:
		return fmt.Errorf("blend_distance %g: %w", s.BlendDistance, ErrSettings)
	case s.OccluderDistance < 0:
		return fmt.Errorf("occluder_max_distance %g: %w", s.OccluderDistance, ErrSettings)
	}
	return nil
}

// Cascades holds the per-frame cascade data the lighting pass samples with.
type Cascades struct {
	Count int
	// FarPlanes are view-space depths; cascade i covers depths below FarPlanes[i].
	FarPlanes     [MaxCascades]float32
	LightViewProj [MaxCascades]mgl32.Mat4
}

// Far returns the used far planes.
func (c *Cascades) Far() []float32 {
	return c.FarPlanes[:c.Count]
}

// Matrices returns the used light view-projection matrices.
func (c *Cascades) Matrices() []mgl32.Mat4 {
	return c.LightViewProj[:c.Count]
}

// SplitDistances returns the far plane of each of levels cascades between
// near and far. Each split blends the logarithmic and the uniform split
// scheme; linearity 0 is fully logarithmic, 1 fully uniform.
func SplitDistances(near, far float32, levels int, linearity float32) []float32 {
	levels = max(levels, 1)
	out := make([]float32, levels)
	for i := range out {
		f := float32(i+1) / float32(levels)
		log := near * math32.Pow(far/near, f)
		lin := near + (far-near)*f
		out[i] = log + (lin-log)*linearity
	}
	out[levels-1] = far
	return out
}

// FrustumCorners returns the eight world-space corners of the frustum
// described by proj and view.
func FrustumCorners(proj, view mgl32.Mat4) [8]mgl32.Vec3 {
	inv := proj.Mul4(view).Inv()
	var out [8]mgl32.Vec3
	i := 0
	for _, x := range [2]float32{-1, 1} {
		for _, y := range [2]float32{-1, 1} {
			for _, z := range [2]float32{-1, 1} {
				p := inv.Mul4x1(mgl32.Vec4{x, y, z, 1})
				out[i] = p.Vec3().Mul(1 / p.W())
				i++
			}
		}
	}
	return out
}

// BoundingSphere returns the centroid of points and the largest distance
// from it. The radius is rounded up to 1/16 so it does not change with tiny
// camera rotations.
func BoundingSphere(points []mgl32.Vec3) (mgl32.Vec3, float32) {
	if len(points) == 0 {
		return mgl32.Vec3{}, 0
	}
	var center mgl32.Vec3
	for _, p := range points {
		center = center.Add(p)
	}
	center = center.Mul(1 / float32(len(points)))

	var radius float32
	for _, p := range points {
		radius = max(radius, p.Sub(center).Len())
	}
	return center, math32.Ceil(radius*16) / 16
}

// LightMatrix fits an orthographic light projection around corners. toLight
// points from the scene toward the light. The box is pushed back by
// occluderDistance so casters outside the view frustum still land in the
// map, and its origin is snapped to whole texels of a resolution-sized map.
func LightMatrix(corners []mgl32.Vec3, toLight mgl32.Vec3, occluderDistance float32, resolution int) mgl32.Mat4 {
	center, radius := BoundingSphere(corners)
	radius = max(radius, 1e-3)
	dir := toLight.Normalize()

	up := mgl32.Vec3{0, 1, 0}
	if math32.Abs(dir.Dot(up)) > 0.99 {
		up = mgl32.Vec3{0, 0, 1}
	}

	eye := center.Add(dir.Mul(radius + occluderDistance))
	view := mgl32.LookAtV(eye, center, up)
	proj := mgl32.Ortho(-radius, radius, -radius, radius, 0, 2*radius+occluderDistance)

	half := float32(max(resolution, 1)) / 2
	origin := proj.Mul4(view).Mul4x1(mgl32.Vec4{0, 0, 0, 1}).Mul(half)
	proj[12] += (math32.Round(origin.X()) - origin.X()) / half
	proj[13] += (math32.Round(origin.Y()) - origin.Y()) / half

	return proj.Mul4(view)
}

// Compute fits every cascade to the camera for this frame.
func Compute(cam *camera.Camera, toLight mgl32.Vec3, s Settings) Cascades {
	levels := min(max(s.CascadeLevels, 1), MaxCascades)
	splits := SplitDistances(cam.Near, cam.Far, levels, s.Linearity)
	view := cam.ViewMatrix()

	c := Cascades{Count: levels}
	near := cam.Near
	for i, far := range splits {
		corners := FrustumCorners(cam.ProjectionRange(near, far), view)
		c.FarPlanes[i] = far
		c.LightViewProj[i] = LightMatrix(corners[:], toLight, s.OccluderDistance, s.Resolution)
		near = far
	}
	return c
}

// SelectCascade returns the cascade a fragment at view depth samples and
// how far (0..1) it blends toward the next cascade inside the blend band.
func SelectCascade(depth float32, farPlanes []float32, blend float32) (int, float32) {
	if len(farPlanes) == 0 {
		return 0, 0
	}
	cascade := len(farPlanes) - 1
	for i, far := range farPlanes {
		if depth < far {
			cascade = i
			break
		}
	}

	band := farPlanes[cascade] - depth
	if blend > 0 && band < blend && cascade+1 < len(farPlanes) {
		return cascade, 1 - band/blend
	}
	return cascade, 0
}
