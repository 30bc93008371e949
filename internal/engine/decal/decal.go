// Package decal projects textures onto the G-buffer through oriented boxes.
package decal

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/multierr"

	"github.com/Faultbox/lumen/internal/engine/gpu"
	"github.com/Faultbox/lumen/internal/engine/texture"
	"github.com/Faultbox/lumen/internal/engine/transform"
)

// Slot is one of the three decal textures.
type Slot int

const (
	Diffuse Slot = iota
	Normal
	Metallic

	SlotCount
)

var slotNames = [SlotCount]string{"diffuse", "normal", "metallic"}

func (s Slot) String() string {
	if s < 0 || s >= SlotCount {
		return "unknown"
	}
	return slotNames[s]
}

// Mode selects what the decal pass writes.
type Mode int

const (
	// ModeTextured blends the decal textures.
	ModeTextured Mode = iota
	// ModeVolume tints the whole projection box.
	ModeVolume
	// ModeProjectedArea tints only surfaces the decal would cover.
	ModeProjectedArea
)

// ErrSettings reports decal settings outside their valid range.
var ErrSettings = errors.New("decal: invalid settings")

// Settings configures the decal pass.
type Settings struct {
	Enabled  bool    `yaml:"draw_decals"`
	MinAngle float32 `yaml:"min_angle"`
	Mode     Mode    `yaml:"mode"`
}

// DefaultSettings enables textured decals on surfaces within 80 degrees.
func DefaultSettings() Settings {
	return Settings{Enabled: true, MinAngle: 80, Mode: ModeTextured}
}

// Validate reports the first out-of-range field.
func (s Settings) Validate() error {
	if s.MinAngle < 0 || s.MinAngle > 180 {
		return fmt.Errorf("min_angle %g not in [0, 180]: %w", s.MinAngle, ErrSettings)
	}
	if s.Mode < ModeTextured || s.Mode > ModeProjectedArea {
		return fmt.Errorf("mode %d: %w", s.Mode, ErrSettings)
	}
	return nil
}

// Desc describes a decal to load. Rotation is in Euler degrees. An empty
// texture path leaves that slot absent.
type Desc struct {
	Position mgl32.Vec3
	Rotation mgl32.Vec3
	Scale    mgl32.Vec3
	Textures [SlotCount]string
}

// Decal is an oriented unit box [-0.5, 0.5]^3 that projects along its
// local +Y axis.
type Decal struct {
	transform.Transform
	Textures [SlotCount]*gpu.Texture
}

// Sampler is how decal textures are sampled.
func Sampler() gpu.SamplerDesc {
	return gpu.SamplerDesc{
		MinFilter: gpu.FilterLinearMipmapLinear,
		MagFilter: gpu.FilterLinear,
		WrapS:     gpu.WrapClampToEdge,
		WrapT:     gpu.WrapClampToEdge,
	}
}

// Load creates a decal and uploads its textures. The decal is always
// returned: a texture that fails to load leaves its slot empty and is
// reported in the returned error, which callers treat as a warning.
func Load(dev gpu.Device, desc Desc) (*Decal, error) {
	d := &Decal{Transform: transform.New()}
	d.ApplyEulerDegrees(desc.Rotation.X(), desc.Rotation.Y(), desc.Rotation.Z())
	d.Position = desc.Position
	d.Scale = desc.Scale

	var errs error
	for slot, path := range desc.Textures {
		if path == "" {
			continue
		}
		img, err := texture.LoadFile(path)
		if err == nil {
			d.Textures[slot], err = texture.Upload(dev, img, Sampler())
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("decal %s texture %s: %w", Slot(slot), path, err))
		}
	}
	return d, errs
}

// Has reports whether slot s holds a texture.
func (d *Decal) Has(s Slot) bool {
	return d.Textures[s] != nil
}

// Release deletes the decal textures.
func (d *Decal) Release() {
	for i, t := range d.Textures {
		t.Release()
		d.Textures[i] = nil
	}
}

// Axis returns the world-space projection axis.
func (d *Decal) Axis() mgl32.Vec3 {
	return d.Up
}

// Basis returns the decal right, forward and projection axes in view space
// as the first three matrix columns.
func (d *Decal) Basis(view mgl32.Mat4) mgl32.Mat4 {
	v := view.Mat3()
	var m mgl32.Mat3
	m.SetCol(0, v.Mul3x1(d.Right).Normalize())
	m.SetCol(1, v.Mul3x1(d.View).Normalize())
	m.SetCol(2, v.Mul3x1(d.Up).Normalize())
	return m.Mat4()
}

// ProjectUV maps a world point into decal texture space. inside is false
// when p lies outside the decal box.
func ProjectUV(invModel mgl32.Mat4, p mgl32.Vec3) (uv mgl32.Vec2, inside bool) {
	local := invModel.Mul4x1(p.Vec4(1)).Vec3()
	inside = math32.Abs(local.X()) <= 0.5 && math32.Abs(local.Y()) <= 0.5 && math32.Abs(local.Z()) <= 0.5
	return mgl32.Vec2{local.X() + 0.5, 0.5 - local.Z()}, inside
}

// AcceptsNormal reports whether a surface with normal n is within
// minAngle degrees of the projection axis.
func AcceptsNormal(n, axis mgl32.Vec3, minAngle float32) bool {
	if n.Len() == 0 || axis.Len() == 0 {
		return false
	}
	return n.Normalize().Dot(axis.Normalize()) >= math32.Cos(mgl32.DegToRad(minAngle))
}
