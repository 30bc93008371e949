// Package config handles renderer configuration loading and management.
package config

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/Faultbox/lumen/internal/engine/ao"
	"github.com/Faultbox/lumen/internal/engine/decal"
	"github.com/Faultbox/lumen/internal/engine/lighting"
	"github.com/Faultbox/lumen/internal/engine/postfx"
	"github.com/Faultbox/lumen/internal/engine/scene"
	"github.com/Faultbox/lumen/internal/engine/shadow"
)

// ErrInvalid is returned by Validate for settings that cannot be rendered.
var ErrInvalid = errors.New("config: invalid")

// Config holds all renderer settings.
type Config struct {
	Graphics GraphicsConfig `yaml:"graphics"`
	Paths    PathsConfig    `yaml:"paths"`
	Render   RenderConfig   `yaml:"render"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GraphicsConfig holds display settings.
type GraphicsConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
}

// PathsConfig holds input and output locations. Relative scene asset
// paths resolve against AssetRoot.
type PathsConfig struct {
	Scene        string            `yaml:"scene"`
	AssetRoot    string            `yaml:"asset_root"`
	Screenshot   string            `yaml:"screenshot"`
	ShaderDir    string            `yaml:"shader_dir"` // empty uses the embedded shaders
	WatchShaders bool              `yaml:"watch_shaders"`
	Models       map[string]string `yaml:"models"` // built-in model overrides: quad, cube, sphere
	SaveConfig   string            `yaml:"-"`      // config written on exit, runtime toggles included
}

// RenderConfig groups the settings of every render pass.
type RenderConfig struct {
	Lights  lighting.Settings `yaml:"lights"`
	PostFX  postfx.Settings   `yaml:"postfx"`
	Shadows shadow.Settings   `yaml:"shadows"`
	Decals  decal.Settings    `yaml:"decals"`
	AO      ao.Settings       `yaml:"ao"`
	Debug   DebugConfig       `yaml:"debug"`
}

// DebugConfig holds switches that only help inspect the renderer.
type DebugConfig struct {
	TextureMode scene.TextureMode `yaml:"texture_mode"`
	FrameStats  bool              `yaml:"frame_stats"` // log per-frame pass statistics at debug level
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Width:  1280,
			Height: 720,
			VSync:  true,
		},
		Paths: PathsConfig{
			Scene:      "./data/scenes/sceneAO.json",
			AssetRoot:  "./",
			Screenshot: "./data/screenshots/screenshot.png",
		},
		Render: RenderConfig{
			Lights:  lighting.DefaultSettings(),
			PostFX:  postfx.DefaultSettings(),
			Shadows: shadow.DefaultSettings(),
			Decals:  decal.DefaultSettings(),
			AO:      ao.DefaultSettings(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate reports every setting that is out of range.
func (c *Config) Validate() error {
	var errs error
	if c.Graphics.Width <= 0 || c.Graphics.Height <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("graphics: size %dx%d: %w", c.Graphics.Width, c.Graphics.Height, ErrInvalid))
	}
	return multierr.Append(errs, c.Render.Validate())
}

// Validate checks every pass's settings.
func (r *RenderConfig) Validate() error {
	var errs error
	for _, check := range []struct {
		section string
		err     error
	}{
		{"lights", r.Lights.Validate()},
		{"postfx", r.PostFX.Validate()},
		{"shadows", r.Shadows.Validate()},
		{"decals", r.Decals.Validate()},
		{"ao", r.AO.Validate()},
	} {
		if check.err != nil {
			errs = multierr.Append(errs, fmt.Errorf("render.%s: %w", check.section, check.err))
		}
	}
	if r.Debug.TextureMode < scene.Textured || r.Debug.TextureMode > scene.VertexNormals {
		errs = multierr.Append(errs, fmt.Errorf("render.debug: texture_mode %d: %w", r.Debug.TextureMode, ErrInvalid))
	}
	return errs
}
