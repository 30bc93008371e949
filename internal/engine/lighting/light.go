// Package lighting accumulates ambient, point and directional light into
// the HDR buffer from the G-buffer.
package lighting

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/lumen/internal/engine/shader"
	"github.com/Faultbox/lumen/internal/engine/transform"
)

// Type discriminates lights in the shared uLight uniform.
type Type int

const (
	Point Type = iota
	Directional
)

func (t Type) String() string {
	switch t {
	case Point:
		return "point"
	case Directional:
		return "directional"
	}
	return "unknown"
}

// ErrSettings reports light settings outside their valid range.
var ErrSettings = errors.New("lighting: invalid settings")

// Palette is the set of colors new point lights cycle through.
var Palette = []mgl32.Vec3{
	{1, 1, 1}, // white
	{1, 0, 0}, // red
	{0, 1, 0}, // green
	{0, 0, 1}, // blue
	{1, 1, 0}, // yellow
	{0, 1, 1}, // cyan
	{1, 0, 1}, // pink
}

// Light is a point or directional light. Point lights are placed by the
// transform and reach Radius units; directional lights only use Direction,
// which points from the scene toward the light.
type Light struct {
	transform.Transform

	Type      Type
	Color     mgl32.Vec3
	Radius    float32
	Direction mgl32.Vec3
	Visible   bool
}

// NewPoint returns a visible point light.
func NewPoint(position, color mgl32.Vec3, radius float32) Light {
	return Light{Transform: transform.At(position), Type: Point, Color: color, Radius: radius, Visible: true}
}

// NewDirectional returns a visible directional light shining from direction.
func NewDirectional(direction, color mgl32.Vec3) Light {
	if direction.Len() > 0 {
		direction = direction.Normalize()
	}
	return Light{Transform: transform.New(), Type: Directional, Color: color, Direction: direction, Visible: true}
}

// Settings configures the light passes.
type Settings struct {
	Move        bool       `yaml:"move_lights"`
	Velocity    float32    `yaml:"velocity"` // radians per second
	Intensity   float32    `yaml:"intensity"`
	Ambient     float32    `yaml:"ambient_intensity"`
	Radius      float32    `yaml:"radius"`
	Count       int        `yaml:"lights_count"`
	DrawProxies bool       `yaml:"draw_proxies"`
	Seed        uint64     `yaml:"seed"`
	AreaMin     mgl32.Vec3 `yaml:"area_min"`
	AreaMax     mgl32.Vec3 `yaml:"area_max"`
}

// DefaultSettings returns moving lights of radius 30 and no active point lights.
func DefaultSettings() Settings {
	return Settings{
		Move:      true,
		Velocity:  0.1,
		Intensity: 1,
		Ambient:   0.1,
		Radius:    30,
		Seed:      1,
		AreaMin:   mgl32.Vec3{-60, 1, -30},
		AreaMax:   mgl32.Vec3{60, 15, 30},
	}
}

// Validate reports the first out-of-range field.
func (s Settings) Validate() error {
	switch {
	case s.Count < 0:
		return fmt.Errorf("lights_count %d: %w", s.Count, ErrSettings)
	case s.Radius <= 0:
		return fmt.Errorf("radius %g: %w", s.Radius, ErrSettings)
	case s.Intensity < 0 || s.Ambient < 0:
		return fmt.Errorf("intensity %g ambient %g: %w", s.Intensity, s.Ambient, ErrSettings)
	}
	for i := 0; i < 3; i++ {
		if s.AreaMin[i] > s.AreaMax[i] {
			return fmt.Errorf("area_min %v above area_max %v: %w", s.AreaMin, s.AreaMax, ErrSettings)
		}
	}
	return nil
}

// Active returns the first count visible point lights. Lights past count
// are culled.
func Active(lights []Light, count int) []*Light {
	var out []*Light
	for i := range lights {
		if len(out) >= count {
			break
		}
		if lights[i].Type == Point && lights[i].Visible {
			out = append(out, &lights[i])
		}
	}
	return out
}

// Populate grows lights to at least count point lights placed uniformly in
// the settings area, coloured from Palette in order.
func Populate(lights []Light, count int, s Settings, rng *rand.Rand) []Light {
	for i := len(lights); i < count; i++ {
		var pos mgl32.Vec3
		for a := 0; a < 3; a++ {
			pos[a] = s.AreaMin[a] + rng.Float32()*(s.AreaMax[a]-s.AreaMin[a])
		}
		lights = append(lights, NewPoint(pos, Palette[i%len(Palette)], s.Radius))
	}
	return lights
}

// NewRand returns the generator Populate draws positions from.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Animate orbits every point light around the world Y axis.
func Animate(lights []Light, dt, velocity float32) {
	for i := range lights {
		if lights[i].Type != Point {
			continue
		}
		lights[i].RotateAroundVec(mgl32.Vec3{0, 1, 0}, velocity*dt, mgl32.Vec3{})
	}
}

// Attenuation is the falloff the point light shader applies at distance.
func Attenuation(distance, radius float32) float32 {
	if radius <= 0 {
		return 0
	}
	x := min(max(1-distance*distance/(radius*radius), 0), 1)
	return x * x
}

// UploadLight fills the uLight uniform of p. Positions and directions are
// uploaded in view space.
func UploadLight(p *shader.Program, l *Light, view mgl32.Mat4) {
	p.SetVec3("uLight.position", view.Mul4x1(l.Position.Vec4(1)).Vec3())
	p.SetVec3("uLight.color", l.Color)
	p.SetFloat("uLight.radius", l.Radius)
	dir := view.Mul4x1(l.Direction.Vec4(0)).Vec3()
	if dir.Len() > 0 {
		dir = dir.Normalize()
	}
	p.SetVec3("uLight.direction", dir)
	p.SetInt("uLight.type", int(l.Type))
}
