package pipeline

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/lumen/internal/config"
	"github.com/Faultbox/lumen/internal/engine/camera"
	"github.com/Faultbox/lumen/internal/engine/decal"
	"github.com/Faultbox/lumen/internal/engine/gpu"
	"github.com/Faultbox/lumen/internal/engine/gpu/gputest"
	"github.com/Faultbox/lumen/internal/engine/lighting"
	"github.com/Faultbox/lumen/internal/engine/resource"
	"github.com/Faultbox/lumen/internal/engine/scene"
	"github.com/Faultbox/lumen/internal/engine/screenshot"
	"github.com/Faultbox/lumen/internal/engine/shader"
	"github.com/Faultbox/lumen/internal/engine/transform"
)

type fakeSurface struct {
	width, height int
	swaps         int
	onSwap        func()
}

func (s *fakeSurface) Size() (int, int) { return s.width, s.height }

func (s *fakeSurface) SwapBuffers() {
	s.swaps++
	if s.onSwap != nil {
		s.onSwap()
	}
}

type rig struct {
	dev     *gputest.Device
	surface *fakeSurface
	lib     *shader.Library
	store   *resource.Store
	cfg     *config.Config
	scene   *scene.Scene
	p       *Pipeline
}

func creates(dev *gputest.Device) int {
	n := 0
	for _, m := range []string{"CreateTexture", "CreateBuffer", "CreateVertexArray", "CreateFramebuffer", "CreateProgram"} {
		n += dev.Calls(m)
	}
	return n
}

// newRig builds a 4x2 pipeline over a scene of one cube, a sun, five point
// lights and one textured decal.
func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{dev: gputest.New(), surface: &fakeSurface{width: 4, height: 2}}

	var err error
	r.lib, err = shader.NewLibrary(r.dev, "")
	require.NoError(t, err)
	r.store = resource.New(r.dev, nil)
	require.NoError(t, r.store.LoadDefaults(nil))

	r.cfg = config.Default()
	r.cfg.Paths.Screenshot = filepath.Join(t.TempDir(), "shot.png")
	r.cfg.Render.Shadows.Resolution = 16
	r.cfg.Render.Lights.Count = 5

	r.scene = testScene(t, r.dev, r.store, r.cfg.Render.Lights)

	r.p, err = New(r.dev, r.surface, r.lib, r.store, r.cfg)
	require.NoError(t, err)
	r.p.SetScene(r.scene)
	return r
}

func testScene(t *testing.T, dev gpu.Device, store *resource.Store, ls lighting.Settings) *scene.Scene {
	t.Helper()
	cube, err := store.Model(resource.CubeModel)
	require.NoError(t, err)

	sc := &scene.Scene{Camera: camera.New(1, 1)}
	sc.Camera.Position = mgl32.Vec3{0, 0, 5}
	sc.Objects = []scene.GameObject{{Node: sc.Arena.AddRoot(transform.New()), Model: cube}}

	sun := lighting.NewDirectional(mgl32.Vec3{0.3, 1, 0.2}, mgl32.Vec3{1, 1, 1})
	sc.Directional = &sun
	sc.PointLights = lighting.Populate(nil, 5, ls, lighting.NewRand(1))

	d := &decal.Decal{Transform: transform.New()}
	d.Textures[decal.Diffuse], err = gpu.NewTexture(dev, gpu.TextureDesc{Width: 1, Height: 1, Format: gpu.FormatRGBA8}, make([]byte, 4))
	require.NoError(t, err)
	sc.Decals = []*decal.Decal{d}
	return sc
}

func (r *rig) close(t *testing.T) {
	t.Helper()
	r.p.Close()
	r.scene.Destroy()
	r.lib.Close()
	r.store.Close()
	assert.Empty(t, r.dev.Leaks())
}

func uploadsBy(dev *gputest.Device, program uint32, name string) int {
	n := 0
	for _, u := range dev.UploadsOf(name) {
		if u.Program == program {
			n++
		}
	}
	return n
}

func TestNewSizesTargetsToSurface(t *testing.T) {
	r := newRig(t)
	defer r.close(t)

	w, h := r.p.gbuffer.Size()
	assert.Equal(t, []int{4, 2}, []int{w, h})
	assert.Equal(t, 4, r.scene.Camera.Width, "SetScene sizes the camera")

	desc, ok := r.dev.TextureDesc(r.p.gbuffer.ColorTexture(0).ID())
	require.True(t, ok)
	assert.Equal(t, gpu.FormatRGB16F, desc.Format)
	desc, _ = r.dev.TextureDesc(r.p.hdr.ColorTexture(0).ID())
	assert.Equal(t, gpu.FormatRGBA16F, desc.Format)

	assert.Equal(t, r.p.gbuffer.ColorTexture(2).ID(), r.dev.Attached(r.p.decalFB.ID(), gpu.ColorAttachment0), "decals write into the G-buffer diffuse")
	assert.Equal(t, r.p.gbuffer.ColorTexture(1).ID(), r.dev.Attached(r.p.decalFB.ID(), gpu.ColorAttachment1))
	assert.Equal(t, 3, r.p.shadows.Len())
}

func TestNewNeedsDefaultModels(t *testing.T) {
	dev := gputest.New()
	lib, err := shader.NewLibrary(dev, "")
	require.NoError(t, err)
	defer lib.Close()

	_, err = New(dev, &fakeSurface{width: 4, height: 4}, lib, resource.New(dev, nil), config.Default())
	assert.ErrorIs(t, err, resource.ErrUnknownModel)
}

func TestNewReleasesTargetsOnFailure(t *testing.T) {
	dev := gputest.New()
	lib, err := shader.NewLibrary(dev, "")
	require.NoError(t, err)
	store := resource.New(dev, nil)
	require.NoError(t, store.LoadDefaults(nil))

	cfg := config.Default()
	cfg.Render.Shadows.Resolution = 16
	for _, extra := range []int{1, 6, 12, 20, 25} {
		dev.FailCreate = creates(dev) + extra
		_, err := New(dev, &fakeSurface{width: 4, height: 4}, lib, store, cfg)
		require.ErrorIs(t, err, gpu.ErrOutOfMemory, "failing create %d", extra)
	}
	dev.FailCreate = 0

	lib.Close()
	store.Close()
	assert.Empty(t, dev.Leaks())
}

func TestUpdateRunsEveryStageInOrder(t *testing.T) {
	r := newRig(t)
	defer r.close(t)
	r.cfg.Render.Lights.DrawProxies = true
	r.cfg.Render.PostFX.Bloom = true

	require.NoError(t, r.p.Update())
	st := r.p.Stats()
	assert.Equal(t, uint64(1), st.Frame)
	assert.Equal(t, []Stage{
		StageShadow, StageGeometry, StageDecals, StageAmbientOcclusion, StageAmbient,
		StagePointLights, StageDirectionalLight, StageLightProxies, StageBloom,
		StageComposite, StagePresent,
	}, st.Stages)
	assert.Equal(t, 1, r.surface.swaps)
	assert.Equal(t, len(r.dev.Draws), st.Draws)

	draws := r.dev.Draws
	for i := 0; i < 3; i++ {
		assert.Equal(t, r.p.shadows.Framebuffer(i).ID(), draws[i].Framebuffer, "cascade %d", i)
	}
	assert.Equal(t, r.p.gbuffer.ID(), draws[3].Framebuffer)
	assert.Equal(t, r.p.decalFB.ID(), draws[4].Framebuffer)
	assert.Equal(t, gpu.DefaultFramebuffer, draws[len(draws)-1].Framebuffer, "composite goes to the screen")
	assert.Equal(t, r.lib.Get(shader.Composite).ID(), draws[len(draws)-1].Program)

	// ambient + 5 point volumes + sun + 5 proxies
	assert.Len(t, r.dev.DrawsTo(r.p.hdr.ID()), 12)
	assert.Equal(t, 1, r.dev.Calls("BlitDepth"))
}

func TestUpdateWithoutBloom(t *testing.T) {
	r := newRig(t)
	defer r.close(t)

	require.NoError(t, r.p.Update())
	assert.NotContains(t, r.p.Stats().Stages, StageBloom)
	bright := r.lib.Get(shader.Bright).ID()
	for _, d := range r.dev.Draws {
		assert.NotEqual(t, bright, d.Program)
	}

	use := r.dev.UploadsOf("uUseBloom")
	require.NotEmpty(t, use)
	assert.Equal(t, int32(0), use[len(use)-1].Value)
}

func TestUpdateCullsLightsPastCount(t *testing.T) {
	for _, count := range []int{0, 1, 3, 5, 50} {
		r := newRig(t)
		r.cfg.Render.Lights.Count = count

		require.NoError(t, r.p.Update())
		point := r.lib.Get(shader.PointLight).ID()
		assert.Equal(t, min(count, 5), uploadsBy(r.dev, point, "uLight.position"), "count %d", count)
		assert.Equal(t, count > 0, contains(r.p.Stats().Stages, StagePointLights))
		r.close(t)
	}
}

func contains(stages []Stage, s Stage) bool {
	for _, st := range stages {
		if st == s {
			return true
		}
	}
	return false
}

func TestScreenshotAfterComposite(t *testing.T) {
	r := newRig(t)
	defer r.close(t)

	// Bottom row red, top row blue, as read back.
	r.dev.Pixels = []byte{
		255, 0, 0, 255, 255, 0, 0, 255, 255, 0, 0, 255, 255, 0, 0, 255,
		0, 0, 255, 255, 0, 0, 255, 255, 0, 0, 255, 255, 0, 0, 255, 255,
	}
	r.p.RequestScreenshot()
	require.NoError(t, r.p.Update())

	path := r.p.Stats().Screenshot
	assert.Equal(t, r.cfg.Paths.Screenshot, path)
	assert.Len(t, r.dev.DrawsTo(r.p.capture.ID()), 1)
	assert.Equal(t, 1, r.dev.Calls("BlitColor"), "the capture is shown on screen")
	assert.Equal(t, 1, r.surface.swaps)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	_, _, b, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), b, "rows are flipped")

	require.NoError(t, r.p.Update())
	assert.Empty(t, r.p.Stats().Screenshot, "one request, one capture")
	assert.Equal(t, 1, r.dev.Calls("BlitColor"))
}

func TestScreenshotFailureDoesNotAbortFrame(t *testing.T) {
	r := newRig(t)
	defer r.close(t)

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	r.p.shots = screenshot.NewWriter(filepath.Join(blocker, "shot.png"))

	r.p.RequestScreenshot()
	assert.Error(t, r.p.Update())
	assert.Equal(t, 1, r.surface.swaps, "the frame is still presented")
}

func TestUpdateIsNotReentrant(t *testing.T) {
	r := newRig(t)
	defer r.close(t)

	var inner error
	r.surface.onSwap = func() { inner = r.p.Update() }
	require.NoError(t, r.p.Update())
	assert.ErrorIs(t, inner, ErrReentrant)

	r.surface.onSwap = nil
	assert.NoError(t, r.p.Update(), "the guard is released after the frame")
}

func TestUpdateWithoutScene(t *testing.T) {
	r := newRig(t)
	defer r.close(t)
	r.p.SetScene(nil)

	assert.ErrorIs(t, r.p.Update(), ErrNoScene)
	assert.Zero(t, r.surface.swaps)
}

func TestResize(t *testing.T) {
	r := newRig(t)
	defer r.close(t)

	fbos := r.dev.Calls("CreateFramebuffer")
	require.NoError(t, r.p.Resize(4, 2))
	assert.Equal(t, fbos, r.dev.Calls("CreateFramebuffer"), "same size is a no-op")

	require.NoError(t, r.p.Resize(8, 6))
	w, h := r.p.Size()
	assert.Equal(t, []int{8, 6}, []int{w, h})
	for _, fb := range []interface{ Size() (int, int) }{r.p.gbuffer, r.p.hdr, r.p.capture, r.p.decalFB} {
		fw, fh := fb.Size()
		assert.Equal(t, []int{8, 6}, []int{fw, fh})
	}
	assert.Equal(t, r.p.gbuffer.ColorTexture(2).ID(), r.dev.Attached(r.p.decalFB.ID(), gpu.ColorAttachment0), "decal target follows the new G-buffer")
	assert.InDelta(t, float32(8)/6, r.scene.Camera.Aspect(), 1e-6)

	require.NoError(t, r.p.Update())
}

func TestReloadShadersKeepsRendering(t *testing.T) {
	r := newRig(t)
	defer r.close(t)

	before := r.lib.Get(shader.Composite).ID()
	require.NoError(t, r.p.ReloadShaders())
	assert.NotEqual(t, before, r.lib.Get(shader.Composite).ID())

	require.NoError(t, r.p.Update())
	draws := r.dev.Draws
	assert.Equal(t, r.lib.Get(shader.Composite).ID(), draws[len(draws)-1].Program)
}
