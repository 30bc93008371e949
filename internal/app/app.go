// Package app wires the window, GPU device, resources, scene and render
// pipeline together and runs the main loop.
package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/lumen/internal/config"
	"github.com/Faultbox/lumen/internal/engine/asset"
	"github.com/Faultbox/lumen/internal/engine/gpu"
	"github.com/Faultbox/lumen/internal/engine/gpu/glcore"
	"github.com/Faultbox/lumen/internal/engine/input"
	"github.com/Faultbox/lumen/internal/engine/pipeline"
	"github.com/Faultbox/lumen/internal/engine/resource"
	"github.com/Faultbox/lumen/internal/engine/scene"
	"github.com/Faultbox/lumen/internal/engine/scenefile"
	"github.com/Faultbox/lumen/internal/engine/shader"
	"github.com/Faultbox/lumen/internal/engine/window"
	"github.com/Faultbox/lumen/internal/logger"
)

const title = "Lumen"

// App is the running viewer.
type App struct {
	cfg *config.Config
	log *zap.Logger

	win      *window.Window
	surface  pipeline.Surface
	dev      gpu.Device
	input    *input.Input
	lib      *shader.Library
	watcher  *shader.Watcher
	store    *resource.Store
	scene    *scene.Scene
	pipeline *pipeline.Pipeline

	running bool
}

// New opens the window, creates the OpenGL device and loads the scene.
func New(cfg *config.Config) (*App, error) {
	win, err := window.New(window.Config{
		Title:      title,
		Width:      cfg.Graphics.Width,
		Height:     cfg.Graphics.Height,
		Fullscreen: cfg.Graphics.Fullscreen,
		VSync:      cfg.Graphics.VSync,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	// The device needs the GL context the window created.
	dev, err := glcore.New()
	if err != nil {
		win.Close()
		return nil, err
	}

	a, err := newApp(cfg, dev, win, asset.NewGLTFDecoder())
	if err != nil {
		win.Close()
		return nil, err
	}
	a.win = win
	a.input = input.New()
	return a, nil
}

// newApp builds everything below the window. On failure whatever was
// created is released again.
func newApp(cfg *config.Config, dev gpu.Device, surface pipeline.Surface, decoder asset.Decoder) (*App, error) {
	a := &App{
		cfg:     cfg,
		log:     logger.Named("app"),
		surface: surface,
		dev:     dev,
	}

	var err error
	a.lib, err = shader.NewLibrary(dev, cfg.Paths.ShaderDir)
	if err != nil {
		return nil, err
	}
	if cfg.Paths.WatchShaders && cfg.Paths.ShaderDir != "" {
		if a.watcher, err = shader.Watch(cfg.Paths.ShaderDir); err != nil {
			a.log.Warn("shader hot reload disabled", zap.Error(err))
		}
	}

	a.store = resource.New(dev, decoder)
	if err := a.store.LoadDefaults(cfg.Paths.Models); err != nil {
		a.Close()
		return nil, err
	}

	if a.scene, err = a.loadScene(); err != nil {
		a.Close()
		return nil, err
	}

	a.pipeline, err = pipeline.New(dev, surface, a.lib, a.store, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.pipeline.SetScene(a.scene)

	a.log.Info("app initialized", zap.String("scene", cfg.Paths.Scene))
	return a, nil
}

func (a *App) loadScene() (*scene.Scene, error) {
	desc, err := scenefile.Load(a.cfg.Paths.Scene)
	if err != nil {
		return nil, err
	}
	w, h := a.surface.Size()
	return scene.Build(desc, a.store, a.dev, scene.Options{
		Root:   a.cfg.Paths.AssetRoot,
		Width:  w,
		Height: h,
		Lights: a.cfg.Render.Lights,
	})
}

// ReloadScene rebuilds the scene from its file. The current scene stays
// loaded when the file is invalid.
func (a *App) ReloadScene() error {
	s, err := a.loadScene()
	if err != nil {
		a.log.Warn("scene reload failed", zap.String("path", a.cfg.Paths.Scene), zap.Error(err))
		return err
	}
	old := a.scene
	a.scene = s
	a.pipeline.SetScene(s)
	old.Destroy()

	st := a.store.Stats()
	a.log.Info("scene reloaded",
		zap.Int("objects", len(s.Objects)),
		zap.Int("models", st.Models),
		zap.Int("textures", st.Textures))
	return nil
}

// ReloadShaders recompiles every program, keeping the old ones on error.
func (a *App) ReloadShaders() error {
	if err := a.pipeline.ReloadShaders(); err != nil {
		a.log.Warn("shader reload failed", zap.Error(err))
		return err
	}
	a.log.Info("shaders reloaded")
	return nil
}

// Run starts the main loop and returns when the window is closed.
func (a *App) Run() error {
	a.running = true

	lastTime := time.Now()
	frameCount := 0
	fpsTimer := time.Now()

	a.log.Info("starting main loop")

	for a.running {
		now := time.Now()
		dt := float32(now.Sub(lastTime).Seconds())
		lastTime = now

		// 1. Input
		if a.input.Update() {
			a.running = false
			break
		}
		a.handleEvents(a.input.Events())
		for _, act := range a.input.Actions() {
			a.apply(act)
		}
		a.moveCamera(dt)

		// 2. Simulate and render
		if err := a.frame(dt); err != nil {
			return fmt.Errorf("render error: %w", err)
		}

		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			st := a.pipeline.Stats()
			a.win.SetTitle(fmt.Sprintf("%s - %d fps, %d draws", title, frameCount, st.Draws))
			a.log.Debug("fps", zap.Int("count", frameCount), zap.Float32("dt_ms", dt*1000))
			frameCount = 0
			fpsTimer = time.Now()
		}
	}

	return nil
}

// frame advances the scene by dt seconds and renders it. Only errors that
// make further frames pointless are returned.
func (a *App) frame(dt float32) error {
	if a.watcher != nil && a.watcher.Pending() {
		_ = a.ReloadShaders()
	}
	a.scene.Update(dt, a.cfg.Render.Lights)

	err := a.pipeline.Update()
	switch {
	case err == nil:
	case errors.Is(err, pipeline.ErrStageOrder), errors.Is(err, pipeline.ErrNoScene):
		return err
	default:
		a.log.Warn("frame finished with errors", zap.Error(err))
	}
	return nil
}

func (a *App) handleEvents(events []input.Event) {
	for _, ev := range events {
		switch ev.Type {
		case input.EventWindowResize:
			w, h := a.surface.Size()
			if err := a.pipeline.Resize(w, h); err != nil {
				a.log.Error("resize failed", zap.Int("width", w), zap.Int("height", h), zap.Error(err))
			}
		case input.EventMouseMove:
			if uint32(ev.Button)&sdl.ButtonRMask() != 0 {
				a.scene.Camera.HandleDrag(float32(ev.DeltaX), float32(ev.DeltaY))
			}
		}
	}
}

func (a *App) apply(act input.Action) {
	a.log.Debug("action", zap.Stringer("action", act))
	switch act {
	case input.ActionQuit:
		a.running = false
	case input.ActionScreenshot:
		a.pipeline.RequestScreenshot()
	case input.ActionReloadScene:
		_ = a.ReloadScene()
	case input.ActionReloadShaders:
		_ = a.ReloadShaders()
	case input.ActionToggleProxies:
		a.cfg.Render.Lights.DrawProxies = !a.cfg.Render.Lights.DrawProxies
	case input.ActionToggleBloom:
		a.cfg.Render.PostFX.Bloom = !a.cfg.Render.PostFX.Bloom
	}
}

// moveCamera flies the camera with WASD, Space and Left Ctrl.
func (a *App) moveCamera(dt float32) {
	axis := func(pos, neg sdl.Scancode) float32 {
		var v float32
		if input.Held(pos) {
			v++
		}
		if input.Held(neg) {
			v--
		}
		return v
	}
	forward := axis(sdl.SCANCODE_W, sdl.SCANCODE_S)
	right := axis(sdl.SCANCODE_D, sdl.SCANCODE_A)
	up := axis(sdl.SCANCODE_SPACE, sdl.SCANCODE_LCTRL)
	if forward != 0 || right != 0 || up != 0 {
		a.scene.Camera.HandleMovement(forward, right, up, dt)
	}
}

// Close releases everything in reverse creation order, then writes the
// config when a save path is set.
func (a *App) Close() error {
	a.log.Info("closing app")

	if a.pipeline != nil {
		a.pipeline.Close()
	}
	if a.scene != nil {
		a.scene.Destroy()
	}
	if a.store != nil {
		a.store.Close()
	}
	var err error
	if a.watcher != nil {
		err = multierr.Append(err, a.watcher.Close())
	}
	if a.lib != nil {
		a.lib.Close()
	}
	if a.win != nil {
		a.win.Close()
	}
	a.pipeline, a.scene, a.store, a.watcher, a.lib, a.win = nil, nil, nil, nil, nil, nil

	if path := a.cfg.Paths.SaveConfig; path != "" {
		if serr := a.cfg.Save(path); serr != nil {
			err = multierr.Append(err, fmt.Errorf("saving config: %w", serr))
		} else {
			a.log.Info("config saved", zap.String("path", path))
		}
	}
	return err
}
