// Package pipeline owns the render targets and runs the deferred frame:
// shadows, G-buffer, decals, AO, light accumulation, bloom and composite.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/lumen/internal/config"
	"github.com/Faultbox/lumen/internal/engine/ao"
	"github.com/Faultbox/lumen/internal/engine/decal"
	"github.com/Faultbox/lumen/internal/engine/framebuffer"
	"github.com/Faultbox/lumen/internal/engine/gpu"
	"github.com/Faultbox/lumen/internal/engine/lighting"
	"github.com/Faultbox/lumen/internal/engine/postfx"
	"github.com/Faultbox/lumen/internal/engine/resource"
	"github.com/Faultbox/lumen/internal/engine/scene"
	"github.com/Faultbox/lumen/internal/engine/screenshot"
	"github.com/Faultbox/lumen/internal/engine/shader"
	"github.com/Faultbox/lumen/internal/engine/shadow"
	"github.com/Faultbox/lumen/internal/logger"
)

var (
	// ErrReentrant is returned when Update is called while a frame is running.
	ErrReentrant = errors.New("pipeline: Update is not re-entrant")
	// ErrNoScene is returned by Update before SetScene.
	ErrNoScene = errors.New("pipeline: no scene")
)

// Surface is the window the frame is presented to.
type Surface interface {
	Size() (width, height int)
	SwapBuffers()
}

// Stats describes the last frame.
type Stats struct {
	Frame      uint64
	Stages     []Stage
	Draws      int
	Screenshot string
}

// Pipeline runs frames. It is not safe for concurrent use.
type Pipeline struct {
	dev     gpu.Device
	surface Surface
	lib     *shader.Library
	cfg     *config.Config
	scene   *scene.Scene
	shots   *screenshot.Writer
	log     *zap.Logger

	width, height int

	gbuffer *framebuffer.Framebuffer
	decalFB *framebuffer.Framebuffer
	aoBufs  *ao.Targets
	shadows *shadow.Maps
	hdr     *framebuffer.Framebuffer
	post    *postfx.Targets
	capture *framebuffer.Framebuffer

	models   *scene.ModelRenderer
	caster   *shadow.Renderer
	decals   *decal.Renderer
	occluder *ao.Renderer
	lights   *lighting.Renderer
	effects  *postfx.Renderer

	running    bool
	screenshot bool
	frame      uint64
	stats      Stats
}

// frameState carries per-frame values between stages.
type frameState struct {
	view, proj mgl32.Mat4
	active     []*lighting.Light
	cascades   *shadow.Cascades
	aoMap      *gpu.Texture
	bloom      *gpu.Texture
	shot       string
	errs       error
}

// New creates every render target at the surface size. The store must
// already hold the default models.
func New(dev gpu.Device, surface Surface, lib *shader.Library, store *resource.Store, cfg *config.Config) (*Pipeline, error) {
	quad, err := primitive(store, resource.QuadModel)
	if err != nil {
		return nil, err
	}
	cube, err := primitive(store, resource.CubeModel)
	if err != nil {
		return nil, err
	}
	sphere, err := primitive(store, resource.SphereModel)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		dev:     dev,
		surface: surface,
		lib:     lib,
		cfg:     cfg,
		shots:   screenshot.NewWriter(cfg.Paths.Screenshot),
		log:     logger.Named("render"),

		models:   scene.NewModelRenderer(dev, lib.Get(shader.Geometry), store),
		caster:   shadow.NewRenderer(dev, lib.Get(shader.Shadow)),
		decals:   decal.NewRenderer(dev, lib.Get(shader.Decal), cube),
		occluder: ao.NewRenderer(dev, lib.Get(shader.AO), lib.Get(shader.AOBlur), quad),
		lights:   lighting.NewRenderer(dev, lib, quad, sphere),
		effects:  postfx.NewRenderer(dev, lib, quad),
	}

	p.width, p.height = surface.Size()
	if err := p.createTargets(); err != nil {
		p.Close()
		return nil, err
	}
	p.log.Info("pipeline ready",
		zap.Int("width", p.width),
		zap.Int("height", p.height),
		zap.Int("cascades", p.shadows.Len()))
	return p, nil
}

func primitive(store *resource.Store, name string) (*resource.Primitive, error) {
	m, err := store.Model(name)
	if err != nil {
		return nil, fmt.Errorf("pipeline needs default models: %w", err)
	}
	return m.Meshes[0].Primitives[0], nil
}

func (p *Pipeline) createTargets() error {
	w, h := p.width, p.height
	var err error

	p.gbuffer, err = framebuffer.New(p.dev, framebuffer.Spec{
		Width:  w,
		Height: h,
		Colors: []gpu.TextureFormat{gpu.FormatRGB16F, gpu.FormatRGB16F, gpu.FormatRGBA8},
		Depth:  gpu.FormatDepth24,
	})
	if err != nil {
		return fmt.Errorf("g-buffer: %w", err)
	}
	if err := p.createDecalTarget(); err != nil {
		return err
	}
	if p.aoBufs, err = ao.NewTargets(p.dev, w, h); err != nil {
		return err
	}
	s := p.cfg.Render.Shadows
	if p.shadows, err = shadow.NewMaps(p.dev, s.CascadeLevels, s.Resolution); err != nil {
		return err
	}
	p.hdr, err = framebuffer.New(p.dev, framebuffer.Spec{
		Width:  w,
		Height: h,
		Colors: []gpu.TextureFormat{gpu.FormatRGBA16F},
		Depth:  gpu.FormatDepth24,
	})
	if err != nil {
		return fmt.Errorf("hdr buffer: %w", err)
	}
	if p.post, err = postfx.NewTargets(p.dev, w, h); err != nil {
		return err
	}
	p.capture, err = framebuffer.New(p.dev, framebuffer.Spec{
		Width:  w,
		Height: h,
		Colors: []gpu.TextureFormat{gpu.FormatRGBA8},
	})
	if err != nil {
		return fmt.Errorf("capture buffer: %w", err)
	}
	return nil
}

// createDecalTarget aliases the G-buffer diffuse and normal textures so
// decals write straight into them.
func (p *Pipeline) createDecalTarget() error {
	p.decalFB.Destroy()
	fb, err := framebuffer.NewAliased(p.dev, p.width, p.height,
		[]*gpu.Texture{p.gbuffer.ColorTexture(2), p.gbuffer.ColorTexture(1)}, nil)
	if err != nil {
		p.decalFB = nil
		return fmt.Errorf("decal target: %w", err)
	}
	p.decalFB = fb
	return nil
}

// SetScene replaces the rendered scene. The previous scene is not destroyed.
func (p *Pipeline) SetScene(s *scene.Scene) {
	p.scene = s
	if s != nil && s.Camera != nil {
		s.Camera.Resize(p.width, p.height)
	}
}

// Scene returns the current scene.
func (p *Pipeline) Scene() *scene.Scene {
	return p.scene
}

// RequestScreenshot captures the next frame after composite.
func (p *Pipeline) RequestScreenshot() {
	p.screenshot = true
}

// Stats returns the statistics of the last frame.
func (p *Pipeline) Stats() Stats {
	return p.stats
}

// Update renders and presents one frame.
func (p *Pipeline) Update() error {
	if p.running {
		p.log.Error("Update called during a frame")
		return ErrReentrant
	}
	p.running = true
	defer func() { p.running = false }()

	if p.scene == nil {
		return ErrNoScene
	}
	rc := p.cfg.Render
	plan := Plan(rc, p.scene)
	if err := ValidatePlan(plan); err != nil {
		return err
	}

	cam := p.scene.Camera
	fs := &frameState{
		view:   cam.ViewMatrix(),
		proj:   cam.Projection(),
		active: lighting.Active(p.scene.PointLights, rc.Lights.Count),
	}

	p.frame++
	stats := Stats{Frame: p.frame, Stages: plan}
	for _, st := range plan {
		stats.Draws += p.run(st, fs)
	}
	stats.Screenshot = fs.shot
	p.stats = stats

	if p.cfg.Render.Debug.FrameStats {
		p.log.Debug("frame",
			zap.Uint64("frame", stats.Frame),
			zap.Stringers("stages", plan),
			zap.Int("draws", stats.Draws),
			zap.Int("lights", len(fs.active)))
	}
	return fs.errs
}

// run executes one stage and returns the draws it issued.
func (p *Pipeline) run(st Stage, fs *frameState) int {
	rc := &p.cfg.Render
	sc := p.scene

	switch st {
	case StageShadow:
		return p.renderShadows(fs)

	case StageGeometry:
		p.gbuffer.Bind()
		p.gbuffer.Clear(mgl32.Vec4{})
		return p.models.Render(sc, fs.view, fs.proj, rc.Debug.TextureMode)

	case StageDecals:
		return p.decals.Render(p.decalFB, p.gbuffer.ColorTexture(0), sc.Decals, fs.view, fs.proj, rc.Decals)

	case StageAmbientOcclusion:
		p.occluder.Render(p.aoBufs, p.gbuffer.ColorTexture(0), p.gbuffer.ColorTexture(1), fs.proj, rc.AO)
		fs.aoMap = p.aoBufs.Result()
		return 3

	case StageAmbient:
		// Light proxies depth test against the scene in the HDR buffer.
		p.hdr.Bind()
		p.hdr.Clear(mgl32.Vec4{0, 0, 0, 1})
		p.dev.BlitDepth(p.gbuffer.ID(), p.hdr.ID(), p.width, p.height)
		p.hdr.Bind()
		p.lights.Ambient(p.gbufferView(), fs.aoMap, rc.Lights)
		return 1

	case StagePointLights:
		return p.lights.Points(p.gbufferView(), fs.active, fs.view, fs.proj, rc.Lights)

	case StageDirectionalLight:
		sh := lighting.Shadows{Settings: rc.Shadows}
		if fs.cascades != nil {
			sh.Maps, sh.Cascades = p.shadows, fs.cascades
		}
		p.lights.Directional(p.gbufferView(), sc.Directional, fs.view, sh, rc.Lights)
		return 1

	case StageLightProxies:
		p.lights.Proxies(fs.active, fs.view, fs.proj)
		return len(fs.active)

	case StageBloom:
		p.effects.Bloom(p.post, p.hdr.ColorTexture(0), rc.PostFX)
		fs.bloom = p.post.Bloom()
		return 3

	case StageComposite:
		return p.composite(fs)

	case StagePresent:
		p.surface.SwapBuffers()
	}
	return 0
}

func (p *Pipeline) renderShadows(fs *frameState) int {
	s := p.cfg.Render.Shadows
	if err := p.shadows.Ensure(min(max(s.CascadeLevels, 1), shadow.MaxCascades), s.Resolution); err != nil {
		p.log.Error("shadow maps unavailable", zap.Error(err))
		fs.errs = multierr.Append(fs.errs, err)
		return 0
	}
	c := shadow.Compute(p.scene.Camera, p.scene.Directional.Direction, s)
	fs.cascades = &c

	draws := 0
	p.caster.Render(p.shadows, fs.cascades, func(prog *shader.Program) {
		draws += p.models.RenderShadow(p.scene, prog)
	})
	return draws
}

func (p *Pipeline) gbufferView() lighting.GBuffer {
	return lighting.GBuffer{
		Position: p.gbuffer.ColorTexture(0),
		Normal:   p.gbuffer.ColorTexture(1),
		Diffuse:  p.gbuffer.ColorTexture(2),
		Width:    p.width,
		Height:   p.height,
	}
}

func (p *Pipeline) debugTexture(fs *frameState) *gpu.Texture {
	switch p.cfg.Render.PostFX.Debug {
	case postfx.DebugAO:
		return fs.aoMap
	case postfx.DebugShadowMap:
		if fs.cascades != nil {
			return p.shadows.Texture(0)
		}
	case postfx.DebugDepth:
		return p.gbuffer.DepthTexture()
	}
	return nil
}

// composite tone-maps to the screen, or through the capture buffer when a
// screenshot was requested.
func (p *Pipeline) composite(fs *frameState) int {
	in := postfx.Inputs{HDR: p.hdr.ColorTexture(0), Bloom: fs.bloom, Debug: p.debugTexture(fs)}
	if !p.screenshot {
		p.effects.Composite(nil, p.width, p.height, in, p.cfg.Render.PostFX)
		return 1
	}

	p.screenshot = false
	p.effects.Composite(p.capture, p.width, p.height, in, p.cfg.Render.PostFX)
	if err := p.saveCapture(fs); err != nil {
		p.log.Error("screenshot failed", zap.Error(err))
		fs.errs = multierr.Append(fs.errs, err)
	}
	p.dev.BlitColor(p.capture.ID(), gpu.DefaultFramebuffer, p.width, p.height)
	return 1
}

func (p *Pipeline) saveCapture(fs *frameState) error {
	pixels, err := p.capture.ReadPixels()
	if err != nil {
		return fmt.Errorf("reading capture: %w", err)
	}
	name, err := p.shots.Save(pixels, p.width, p.height)
	if err != nil {
		return fmt.Errorf("saving screenshot: %w", err)
	}
	fs.shot = name
	p.log.Info("screenshot saved", zap.String("path", name))
	return nil
}

// Resize recreates every screen-sized target.
func (p *Pipeline) Resize(width, height int) error {
	width, height = max(width, 1), max(height, 1)
	if width == p.width && height == p.height {
		return nil
	}
	p.width, p.height = width, height

	var errs error
	for _, fb := range []*framebuffer.Framebuffer{p.gbuffer, p.hdr, p.capture} {
		errs = multierr.Append(errs, fb.Resize(width, height))
	}
	errs = multierr.Append(errs, p.createDecalTarget())
	errs = multierr.Append(errs, p.aoBufs.Resize(width, height))
	errs = multierr.Append(errs, p.post.Resize(width, height))
	if errs != nil {
		return fmt.Errorf("resizing to %dx%d: %w", width, height, errs)
	}

	if p.scene != nil && p.scene.Camera != nil {
		p.scene.Camera.Resize(width, height)
	}
	p.log.Debug("pipeline resized", zap.Int("width", width), zap.Int("height", height))
	return nil
}

// Size returns the current target size.
func (p *Pipeline) Size() (width, height int) {
	return p.width, p.height
}

// ReloadShaders recompiles every program. On failure the previous programs
// stay in use.
func (p *Pipeline) ReloadShaders() error {
	return p.lib.Reload()
}

// Close releases post-processing buffers, then AO, decal and shadow
// buffers, then the G-buffer. The shader library, store and scene belong
// to the caller.
func (p *Pipeline) Close() {
	p.capture.Destroy()
	if p.post != nil {
		p.post.Destroy()
	}
	p.hdr.Destroy()
	if p.aoBufs != nil {
		p.aoBufs.Destroy()
	}
	p.decalFB.Destroy()
	if p.shadows != nil {
		p.shadows.Destroy()
	}
	p.gbuffer.Destroy()

	p.capture, p.post, p.hdr, p.aoBufs, p.decalFB, p.shadows, p.gbuffer = nil, nil, nil, nil, nil, nil, nil
}
