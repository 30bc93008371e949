package postfx

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/lumen/internal/engine/gpu"
	"github.com/Faultbox/lumen/internal/engine/gpu/gputest"
	"github.com/Faultbox/lumen/internal/engine/resource"
	"github.com/Faultbox/lumen/internal/engine/shader"
)

func TestToneMap(t *testing.T) {
	s := DefaultSettings()
	s.UseGamma = false
	assert.Equal(t, mgl32.Vec3{0.5, 1, 2}, ToneMap(mgl32.Vec3{1, 2, 4}, s), "exposure divides")

	s = DefaultSettings()
	s.UseExposure = false
	s.Gamma = 2
	got := ToneMap(mgl32.Vec3{0.25, 1, 0}, s)
	assert.InDelta(t, 0.5, got.X(), 1e-6)
	assert.InDelta(t, 1, got.Y(), 1e-6)
	assert.Zero(t, got.Z())

	s.UseGamma = false
	assert.Equal(t, mgl32.Vec3{3, 2, 1}, ToneMap(mgl32.Vec3{3, 2, 1}, s), "disabled is identity")
}

func TestBright(t *testing.T) {
	assert.Equal(t, mgl32.Vec3{}, Bright(mgl32.Vec3{0.5, 0.5, 0.5}, 1))
	assert.Equal(t, mgl32.Vec3{2, 2, 2}, Bright(mgl32.Vec3{2, 2, 2}, 1))
	assert.InDelta(t, 1, Luminance(mgl32.Vec3{1, 1, 1}), 1e-6)
}

func TestSettingsValidate(t *testing.T) {
	assert.NoError(t, DefaultSettings().Validate())

	s := DefaultSettings()
	s.BlurSamples = 0
	assert.ErrorIs(t, s.Validate(), ErrSettings)

	s = DefaultSettings()
	s.Exposure = 0
	assert.ErrorIs(t, s.Validate(), ErrSettings)

	s.UseExposure = false
	assert.NoError(t, s.Validate(), "exposure is ignored when disabled")
}

type rig struct {
	dev     *gputest.Device
	lib     *shader.Library
	r       *Renderer
	targets *Targets
	hdr     *gpu.Texture
}

func newRig(t *testing.T) *rig {
	t.Helper()
	dev := gputest.New()
	lib, err := shader.NewLibrary(dev, "")
	require.NoError(t, err)
	store := resource.New(dev, nil)
	require.NoError(t, store.LoadDefaults(nil))
	quad, err := store.Model(resource.QuadModel)
	require.NoError(t, err)
	targets, err := NewTargets(dev, 64, 32)
	require.NoError(t, err)
	hdr, err := gpu.NewTexture(dev, gpu.TextureDesc{Width: 64, Height: 32, Format: gpu.FormatRGBA16F}, nil)
	require.NoError(t, err)
	dev.ResetFrame()

	return &rig{dev: dev, lib: lib, r: NewRenderer(dev, lib, quad.Meshes[0].Primitives[0]), targets: targets, hdr: hdr}
}

func TestBloomPingPongs(t *testing.T) {
	r := newRig(t)
	s := DefaultSettings()
	s.Bloom = true
	r.r.Bloom(r.targets, r.hdr, s)

	require.Len(t, r.dev.Draws, 3)
	assert.Equal(t, r.targets.bright.ID(), r.dev.Draws[0].Framebuffer)
	assert.Equal(t, r.targets.blur[0].ID(), r.dev.Draws[1].Framebuffer)
	assert.Equal(t, r.targets.blur[1].ID(), r.dev.Draws[2].Framebuffer)

	horizontal := r.dev.UploadsOf("uHorizontal")
	require.Len(t, horizontal, 2)
	assert.Equal(t, int32(1), horizontal[0].Value)
	assert.Equal(t, int32(0), horizontal[1].Value)
	assert.Equal(t, r.targets.blur[1].ColorTexture(0), r.targets.Bloom())
}

func TestCompositeToDefaultFramebuffer(t *testing.T) {
	r := newRig(t)
	s := DefaultSettings()
	r.r.Composite(nil, 800, 600, Inputs{HDR: r.hdr, Bloom: r.targets.Bloom()}, s)

	require.Len(t, r.dev.Draws, 1)
	assert.Equal(t, uint32(gpu.DefaultFramebuffer), r.dev.Draws[0].Framebuffer)
	assert.Equal(t, int32(0), r.dev.UploadsOf("uUseBloom")[0].Value, "bloom disabled")
	assert.Equal(t, s.Exposure, r.dev.UploadsOf("uExposure")[0].Value)
	assert.Equal(t, int32(DebugNone), r.dev.UploadsOf("uDebugView")[0].Value)
}

func TestCompositeDebugViewNeedsTexture(t *testing.T) {
	r := newRig(t)
	s := DefaultSettings()
	s.Debug = DebugAO

	r.r.Composite(nil, 8, 8, Inputs{HDR: r.hdr}, s)
	r.r.Composite(nil, 8, 8, Inputs{HDR: r.hdr, Debug: r.hdr}, s)

	views := r.dev.UploadsOf("uDebugView")
	require.Len(t, views, 2)
	assert.Equal(t, int32(DebugNone), views[0].Value)
	assert.Equal(t, int32(DebugAO), views[1].Value)
}

func TestTargetsLifecycle(t *testing.T) {
	dev := gputest.New()
	targets, err := NewTargets(dev, 16, 16)
	require.NoError(t, err)
	assert.Equal(t, 3, dev.Live(gputest.KindFramebuffer))

	require.NoError(t, targets.Resize(32, 8))
	assert.Equal(t, 3, dev.Live(gputest.KindTexture))

	targets.Destroy()
	assert.Zero(t, dev.LiveTotal(), dev.Leaks())

	dev.FailCreate = dev.Calls("CreateFramebuffer") + dev.Calls("CreateTexture") + 4
	_, err = NewTargets(dev, 16, 16)
	require.ErrorIs(t, err, gpu.ErrOutOfMemory)
	assert.Zero(t, dev.LiveTotal(), dev.Leaks())
}
