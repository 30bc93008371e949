package config

import (
	"flag"
	"os"
)

// EnvConfig names the environment variable holding a config file path.
const EnvConfig = "LUMEN_CONFIG"

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagWindowed   = flag.Bool("windowed", false, "Run in windowed mode")
	flagFullscreen = flag.Bool("fullscreen", false, "Run in fullscreen mode")
	flagWidth      = flag.Int("width", 0, "Window width")
	flagHeight     = flag.Int("height", 0, "Window height")
	flagScene      = flag.String("scene", "", "Scene file to load")
	flagScreenshot = flag.String("screenshot", "", "Screenshot file or directory")
	flagBloom      = flag.Bool("bloom", false, "Enable bloom")
	flagShaders    = flag.String("shaders", "", "Read shaders from this directory and reload them on change")
	flagAssets     = flag.String("assets", "", "Directory scene paths are relative to")
	flagLights     = flag.Int("lights", -1, "Number of point lights to render")
	flagLogFile    = flag.String("log", "", "Also write logs to this file")
	flagSave       = flag.String("save-config", "", "Write the config, including toggles changed at runtime, to this file on exit")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path from -config, or from
// LUMEN_CONFIG when the flag is not set.
func ConfigPath() string {
	if *flagConfig != "" {
		return *flagConfig
	}
	return os.Getenv(EnvConfig)
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
		cfg.Render.Debug.FrameStats = true
	}
	if *flagWindowed {
		cfg.Graphics.Fullscreen = false
	}
	if *flagFullscreen {
		cfg.Graphics.Fullscreen = true
	}
	if *flagWidth > 0 {
		cfg.Graphics.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Graphics.Height = *flagHeight
	}
	if *flagScene != "" {
		cfg.Paths.Scene = *flagScene
	}
	if *flagScreenshot != "" {
		cfg.Paths.Screenshot = *flagScreenshot
	}
	if *flagBloom {
		cfg.Render.PostFX.Bloom = true
	}
	if *flagShaders != "" {
		cfg.Paths.ShaderDir = *flagShaders
		cfg.Paths.WatchShaders = true
	}
	if *flagAssets != "" {
		cfg.Paths.AssetRoot = *flagAssets
	}
	if *flagLights >= 0 {
		cfg.Render.Lights.Count = *flagLights
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
	if *flagSave != "" {
		cfg.Paths.SaveConfig = *flagSave
	}
}
