// Package ao renders horizon-based screen-space ambient occlusion and
// smooths it with a depth-aware bilateral blur.
package ao

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/lumen/internal/engine/filter"
)

// ErrSettings reports AO settings outside their valid range.
var ErrSettings = errors.New("ao: invalid settings")

// TangentMethod selects how the per-direction surface tangent is built.
type TangentMethod int

const (
	// TangentFromDepth steps one texel along the direction and takes the
	// position difference.
	TangentFromDepth TangentMethod = iota
	// TangentFromNormal projects the screen direction onto the surface plane.
	TangentFromNormal
)

// Settings configures the occlusion and blur passes.
type Settings struct {
	Enabled          bool          `yaml:"use_ambient_occlusion"`
	DirCount         int           `yaml:"dir_count"`
	StepCount        int           `yaml:"step_count"`
	AngleBias        float32       `yaml:"angle_bias"` // degrees
	Radius           float32       `yaml:"radius"`
	Scale            float32       `yaml:"scale"`
	Attenuation      float32       `yaml:"attenuation"`
	BlurThreshold    float32       `yaml:"blur_threshold"`
	BlurSamples      int           `yaml:"bilateral_blur_samples"`
	UseSurfaceNormal bool          `yaml:"use_surface_normal"`
	TangentMethod    TangentMethod `yaml:"tangent_method"`
}

// DefaultSettings returns five directions of ten steps over 2.7 units.
func DefaultSettings() Settings {
	return Settings{
		Enabled:       true,
		DirCount:      5,
		StepCount:     10,
		AngleBias:     30,
		Radius:        2.7,
		Scale:         4,
		Attenuation:   1,
		BlurThreshold: 0.65,
		BlurSamples:   10,
	}
}

// Validate reports the first out-of-range field.
func (s Settings) Validate() error {
	switch {
	case s.DirCount < 1:
		return fmt.Errorf("dir_count %d: %w", s.DirCount, ErrSettings)
	case s.StepCount < 1:
		return fmt.Errorf("step_count %d: %w", s.StepCount, ErrSettings)
	case s.AngleBias < 0 || s.AngleBias >= 90:
		return fmt.Errorf("angle_bias %g not in [0, 90): %w", s.AngleBias, ErrSettings)
	case s.Radius <= 0:
		return fmt.Errorf("radius %g: %w", s.Radius, ErrSettings)
	case s.Scale < 0 || s.Attenuation < 0:
		return fmt.Errorf("scale %g attenuation %g: %w", s.Scale, s.Attenuation, ErrSettings)
	case s.BlurThreshold < 0:
		return fmt.Errorf("blur_threshold %g: %w", s.BlurThreshold, ErrSettings)
	case s.BlurSamples < 1 || s.BlurSamples > filter.MaxTaps:
		return fmt.Errorf("bilateral_blur_samples %d not in [1, %d]: %w", s.BlurSamples, filter.MaxTaps, ErrSettings)
	case s.TangentMethod < TangentFromDepth || s.TangentMethod > TangentFromNormal:
		return fmt.Errorf("tangent_method %d: %w", s.TangentMethod, ErrSettings)
	}
	return nil
}

// Directions returns count unit vectors evenly spaced around the circle,
// starting at +X. The shader rotates the set by a per-pixel jitter.
func Directions(count int) []mgl32.Vec2 {
	if count < 1 {
		return nil
	}
	out := make([]mgl32.Vec2, count)
	for i := range out {
		a := 2 * math32.Pi * float32(i) / float32(count)
		out[i] = mgl32.Vec2{math32.Cos(a), math32.Sin(a)}
	}
	return out
}

// Falloff weights a horizon sample at squared distance dist2.
func Falloff(dist2, radius, attenuation float32) float32 {
	if radius <= 0 {
		return 0
	}
	return max(1-attenuation*dist2/(radius*radius), 0)
}

// Occlusion folds the per-direction horizon terms into the final
// visibility in [0, 1], where 1 is unoccluded.
func Occlusion(perDirection []float32, scale float32) float32 {
	if len(perDirection) == 0 {
		return 1
	}
	var sum float32
	for _, v := range perDirection {
		sum += v
	}
	return min(max(1-scale*sum/float32(len(perDirection)), 0), 1)
}
