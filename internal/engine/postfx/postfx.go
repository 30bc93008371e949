// Package postfx extracts and blurs bloom and tone-maps the HDR buffer to
// the screen.
package postfx

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/lumen/internal/engine/filter"
)

// ErrSettings reports post-processing settings outside their valid range.
var ErrSettings = errors.New("postfx: invalid settings")

// DebugView replaces the final image with an intermediate buffer.
type DebugView int

const (
	DebugNone DebugView = iota
	DebugAO
	DebugShadowMap
	DebugDepth
)

func (v DebugView) String() string {
	switch v {
	case DebugNone:
		return "none"
	case DebugAO:
		return "ao"
	case DebugShadowMap:
		return "shadow_map"
	case DebugDepth:
		return "depth"
	}
	return "unknown"
}

// Settings configures bloom and tone mapping.
type Settings struct {
	Bloom           bool    `yaml:"use_bloom"`
	BlurSamples     int     `yaml:"blur_samples"`
	BrightThreshold float32 `yaml:"bright_threshold"`

	UseExposure   bool      `yaml:"use_exposure"`
	Exposure      float32   `yaml:"exposure"`
	UseGamma      bool      `yaml:"use_gamma"`
	Gamma         float32   `yaml:"gamma"`
	DepthContrast float32   `yaml:"depth_contrast"`
	Debug         DebugView `yaml:"debug_view"`
}

// DefaultSettings returns bloom off, exposure 2 and gamma 1.3.
func DefaultSettings() Settings {
	return Settings{
		BlurSamples:     10,
		BrightThreshold: 1,
		UseExposure:     true,
		Exposure:        2,
		UseGamma:        true,
		Gamma:           1.3,
		DepthContrast:   0.02,
	}
}

// Validate reports the first out-of-range field.
func (s Settings) Validate() error {
	switch {
	case s.BlurSamples < 1 || s.BlurSamples > filter.MaxTaps:
		return fmt.Errorf("blur_samples %d not in [1, %d]: %w", s.BlurSamples, filter.MaxTaps, ErrSettings)
	case s.BrightThreshold < 0:
		return fmt.Errorf("bright_threshold %g: %w", s.BrightThreshold, ErrSettings)
	case s.UseExposure && s.Exposure <= 0:
		return fmt.Errorf("exposure %g: %w", s.Exposure, ErrSettings)
	case s.UseGamma && s.Gamma <= 0:
		return fmt.Errorf("gamma %g: %w", s.Gamma, ErrSettings)
	case s.Debug < DebugNone || s.Debug > DebugDepth:
		return fmt.Errorf("debug_view %d: %w", s.Debug, ErrSettings)
	}
	return nil
}

// Luminance is the Rec. 709 luma the bright pass thresholds on.
func Luminance(c mgl32.Vec3) float32 {
	return c.Dot(mgl32.Vec3{0.2126, 0.7152, 0.0722})
}

// Bright returns c when it passes the bloom threshold and black otherwise.
func Bright(c mgl32.Vec3, threshold float32) mgl32.Vec3 {
	if Luminance(c) > threshold {
		return c
	}
	return mgl32.Vec3{}
}

// ToneMap applies the composite shader's exposure divide and gamma curve
// to one HDR color.
func ToneMap(c mgl32.Vec3, s Settings) mgl32.Vec3 {
	if s.UseExposure && s.Exposure > 0 {
		c = c.Mul(1 / s.Exposure)
	}
	if s.UseGamma && s.Gamma > 0 {
		inv := 1 / s.Gamma
		for i := range c {
			c[i] = math32.Pow(max(c[i], 0), inv)
		}
	}
	return c
}
