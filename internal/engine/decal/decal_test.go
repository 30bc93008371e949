package decal

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/lumen/internal/engine/framebuffer"
	"github.com/Faultbox/lumen/internal/engine/gpu"
	"github.com/Faultbox/lumen/internal/engine/gpu/gputest"
	"github.com/Faultbox/lumen/internal/engine/resource"
	"github.com/Faultbox/lumen/internal/engine/shader"
	"github.com/Faultbox/lumen/internal/engine/transform"
)

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestLoadKeepsDecalWhenTexturesAreMissing(t *testing.T) {
	dev := gputest.New()
	dir := t.TempDir()

	d, err := Load(dev, Desc{
		Position: mgl32.Vec3{1, 2, 3},
		Scale:    mgl32.Vec3{2, 2, 2},
		Textures: [SlotCount]string{
			Diffuse:  writePNG(t, dir, "diffuse.png"),
			Normal:   filepath.Join(dir, "missing_normal.png"),
			Metallic: filepath.Join(dir, "missing_metallic.png"),
		},
	})
	require.NotNil(t, d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "normal")
	assert.Contains(t, err.Error(), "metallic")

	assert.True(t, d.Has(Diffuse))
	assert.False(t, d.Has(Normal))
	assert.False(t, d.Has(Metallic))
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, d.Position)
	assert.Equal(t, 1, dev.Live(gputest.KindTexture))

	desc, ok := dev.TextureDesc(d.Textures[Diffuse].ID())
	require.True(t, ok)
	assert.Equal(t, Sampler(), desc.Sampler)

	d.Release()
	d.Release()
	assert.Zero(t, dev.LiveTotal())
}

func TestLoadWithoutTextures(t *testing.T) {
	d, err := Load(gputest.New(), Desc{Scale: mgl32.Vec3{1, 1, 1}})
	require.NoError(t, err)
	for s := Diffuse; s < SlotCount; s++ {
		assert.False(t, d.Has(s), s.String())
	}
}

func TestLoadAppliesRotation(t *testing.T) {
	d, err := Load(gputest.New(), Desc{Rotation: mgl32.Vec3{90, 0, 0}, Scale: mgl32.Vec3{1, 1, 1}})
	require.NoError(t, err)

	// Pitching 90 degrees about X turns the projection axis from +Y to +Z.
	axis := d.Axis()
	assert.InDelta(t, 0, axis.X(), 1e-5)
	assert.InDelta(t, 0, axis.Y(), 1e-5)
	assert.InDelta(t, 1, axis.Z(), 1e-5)
	assert.Equal(t, mgl32.Vec3{90, 0, 0}, d.Rotation)
}

func TestProjectUV(t *testing.T) {
	d, err := Load(gputest.New(), Desc{Position: mgl32.Vec3{10, 0, 0}, Scale: mgl32.Vec3{2, 2, 2}})
	require.NoError(t, err)
	inv := d.Matrix().Inv()

	uv, inside := ProjectUV(inv, mgl32.Vec3{10, 0, 0})
	assert.True(t, inside)
	assert.InDelta(t, 0.5, uv.X(), 1e-5)
	assert.InDelta(t, 0.5, uv.Y(), 1e-5)

	// Local -Z is the decal forward direction and maps to the top of the texture.
	uv, inside = ProjectUV(inv, mgl32.Vec3{10.5, 0.9, -0.8})
	assert.True(t, inside)
	assert.InDelta(t, 0.75, uv.X(), 1e-5)
	assert.InDelta(t, 0.9, uv.Y(), 1e-5)

	_, inside = ProjectUV(inv, mgl32.Vec3{12, 0, 0})
	assert.False(t, inside)
	_, inside = ProjectUV(inv, mgl32.Vec3{10, 1.5, 0})
	assert.False(t, inside)
}

func TestAcceptsNormal(t *testing.T) {
	up := mgl32.Vec3{0, 1, 0}
	assert.True(t, AcceptsNormal(up, up, 80))
	assert.True(t, AcceptsNormal(mgl32.Vec3{1, 1, 0}, up, 80), "45 degrees off axis")
	assert.False(t, AcceptsNormal(mgl32.Vec3{1, 0.1, 0}, up, 80), "about 84 degrees off axis")
	assert.True(t, AcceptsNormal(mgl32.Vec3{1, 0.1, 0}, up, 90))
	assert.False(t, AcceptsNormal(mgl32.Vec3{0, -1, 0}, up, 80))
	assert.False(t, AcceptsNormal(mgl32.Vec3{}, up, 80))
}

func TestBasisIsRightHanded(t *testing.T) {
	d, err := Load(gputest.New(), Desc{Rotation: mgl32.Vec3{0, 30, 0}, Scale: mgl32.Vec3{1, 1, 1}})
	require.NoError(t, err)

	view := mgl32.LookAtV(mgl32.Vec3{0, 3, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	b := d.Basis(view).Mat3()
	n := b.Col(0).Cross(b.Col(1))
	assert.InDelta(t, 1, n.Dot(b.Col(2)), 1e-5)
}

func TestSettingsValidate(t *testing.T) {
	assert.NoError(t, DefaultSettings().Validate())

	s := DefaultSettings()
	s.MinAngle = 200
	assert.ErrorIs(t, s.Validate(), ErrSettings)

	s = DefaultSettings()
	s.Mode = 7
	assert.ErrorIs(t, s.Validate(), ErrSettings)
}

type rig struct {
	dev      *gputest.Device
	renderer *Renderer
	target   *framebuffer.Framebuffer
	position *gpu.Texture
}

func newRig(t *testing.T) *rig {
	t.Helper()
	dev := gputest.New()
	lib, err := shader.NewLibrary(dev, "")
	require.NoError(t, err)

	store := resource.New(dev, nil)
	require.NoError(t, store.LoadDefaults(nil))
	cube, err := store.Model(resource.CubeModel)
	require.NoError(t, err)

	gbuf, err := framebuffer.New(dev, framebuffer.Spec{
		Width:  64,
		Height: 32,
		Colors: []gpu.TextureFormat{gpu.FormatRGB16F, gpu.FormatRGB16F, gpu.FormatRGBA8},
		Depth:  gpu.FormatDepth24,
	})
	require.NoError(t, err)
	target, err := framebuffer.NewAliased(dev, 64, 32, []*gpu.Texture{gbuf.ColorTexture(2), gbuf.ColorTexture(1)}, nil)
	require.NoError(t, err)

	return &rig{
		dev:      dev,
		renderer: NewRenderer(dev, lib.Get(shader.Decal), cube.Meshes[0].Primitives[0]),
		target:   target,
		position: gbuf.ColorTexture(0),
	}
}

func (r *rig) decal(t *testing.T, slots ...Slot) *Decal {
	t.Helper()
	d := &Decal{Transform: transform.At(mgl32.Vec3{0, 0, -5})}
	for _, s := range slots {
		tex, err := gpu.NewTexture(r.dev, gpu.TextureDesc{Width: 1, Height: 1, Format: gpu.FormatRGBA8}, make([]byte, 4))
		require.NoError(t, err)
		d.Textures[s] = tex
	}
	return d
}

func TestRenderSkipsAbsentSlots(t *testing.T) {
	r := newRig(t)
	decals := []*Decal{
		r.decal(t, Diffuse),
		r.decal(t),
		r.decal(t, Metallic),
		r.decal(t, Diffuse, Normal, Metallic),
	}

	draws := r.renderer.Render(r.target, r.position, decals, mgl32.Ident4(), mgl32.Ident4(), DefaultSettings())
	assert.Equal(t, 4, draws)
	assert.Len(t, r.dev.DrawsTo(r.target.ID()), 4)

	passes := r.dev.UploadsOf("uMetallicPass")
	var metallic int
	for _, u := range passes {
		if u.Value == int32(1) {
			metallic++
		}
	}
	assert.Equal(t, 2, metallic)
	assert.Len(t, r.dev.UploadsOf("uModel"), 3, "the textureless decal is skipped")
}

func TestRenderDebugModesDrawEveryDecal(t *testing.T) {
	r := newRig(t)
	decals := []*Decal{r.decal(t), r.decal(t, Metallic)}

	s := DefaultSettings()
	s.Mode = ModeVolume
	draws := r.renderer.Render(r.target, r.position, decals, mgl32.Ident4(), mgl32.Ident4(), s)
	assert.Equal(t, 2, draws)
	assert.Equal(t, int32(ModeVolume), r.dev.UploadsOf("uMode")[0].Value)
}

func TestRenderWithoutDecals(t *testing.T) {
	r := newRig(t)
	binds := len(r.dev.FramebufferBinds)
	assert.Zero(t, r.renderer.Render(r.target, r.position, nil, mgl32.Ident4(), mgl32.Ident4(), DefaultSettings()))
	assert.Len(t, r.dev.FramebufferBinds, binds)
}

func TestRenderViewToDecal(t *testing.T) {
	r := newRig(t)
	d := r.decal(t, Diffuse)
	view := mgl32.Translate3D(0, 0, -2)

	r.renderer.Render(r.target, r.position, []*Decal{d}, view, mgl32.Ident4(), DefaultSettings())

	ups := r.dev.UploadsOf("uViewToDecal")
	require.Len(t, ups, 1)
	m := ups[0].Value.(mgl32.Mat4)

	// The decal centre seen from the camera maps to the box origin.
	centre := view.Mul4x1(mgl32.Vec4{0, 0, -5, 1})
	local := m.Mul4x1(centre)
	assert.InDelta(t, 0, local.Vec3().Len(), 1e-5)
}
