package lighting

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/lumen/internal/engine/camera"
	"github.com/Faultbox/lumen/internal/engine/gpu"
	"github.com/Faultbox/lumen/internal/engine/gpu/gputest"
	"github.com/Faultbox/lumen/internal/engine/resource"
	"github.com/Faultbox/lumen/internal/engine/shader"
	"github.com/Faultbox/lumen/internal/engine/shadow"
)

func TestActiveCullsPastCount(t *testing.T) {
	lights := Populate(nil, 5, DefaultSettings(), NewRand(7))
	lights[1].Visible = false
	lights = append([]Light{NewDirectional(mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 1, 1})}, lights...)

	assert.Empty(t, Active(lights, 0))

	active := Active(lights, 3)
	require.Len(t, active, 3)
	assert.Same(t, &lights[1], active[0])
	assert.Same(t, &lights[3], active[1], "the hidden light is skipped")
	for _, l := range active {
		assert.Equal(t, Point, l.Type)
	}

	assert.Len(t, Active(lights, 100), 4)
}

func TestPopulate(t *testing.T) {
	s := DefaultSettings()
	lights := Populate(nil, 9, s, NewRand(1))
	require.Len(t, lights, 9)

	for i, l := range lights {
		assert.Equal(t, Palette[i%len(Palette)], l.Color)
		assert.Equal(t, s.Radius, l.Radius)
		assert.True(t, l.Visible)
		for a := 0; a < 3; a++ {
			assert.GreaterOrEqual(t, l.Position[a], s.AreaMin[a])
			assert.LessOrEqual(t, l.Position[a], s.AreaMax[a])
		}
	}

	again := Populate(lights[:4], 9, s, NewRand(1))
	assert.Len(t, again, 9)
	assert.Len(t, Populate(lights, 3, s, NewRand(1)), 9, "never shrinks")

	a := Populate(nil, 3, s, NewRand(42))
	b := Populate(nil, 3, s, NewRand(42))
	assert.Equal(t, a, b, "same seed, same lights")
}

func TestAnimateOrbitsAroundWorldY(t *testing.T) {
	lights := []Light{
		NewPoint(mgl32.Vec3{10, 3, 0}, Palette[0], 5),
		NewDirectional(mgl32.Vec3{0, 1, 0}, Palette[0]),
	}
	Animate(lights, 2, mgl32.DegToRad(45))

	p := lights[0].Position
	assert.InDelta(t, 0, p.X(), 1e-4)
	assert.InDelta(t, 3, p.Y(), 1e-5)
	assert.InDelta(t, 10, mgl32.Vec2{p.X(), p.Z()}.Len(), 1e-4)
	assert.Equal(t, mgl32.Vec3{}, lights[1].Position)
}

func TestAttenuation(t *testing.T) {
	assert.Equal(t, float32(1), Attenuation(0, 10))
	assert.InDelta(t, 0.5625, Attenuation(5, 10), 1e-6)
	assert.Zero(t, Attenuation(10, 10))
	assert.Zero(t, Attenuation(20, 10))
	assert.Zero(t, Attenuation(1, 0))
}

func TestSettingsValidate(t *testing.T) {
	assert.NoError(t, DefaultSettings().Validate())

	s := DefaultSettings()
	s.Count = -1
	assert.ErrorIs(t, s.Validate(), ErrSettings)

	s = DefaultSettings()
	s.AreaMin[1] = 100
	assert.ErrorIs(t, s.Validate(), ErrSettings)
}

func TestUploadLightIsViewSpace(t *testing.T) {
	dev := gputest.New()
	lib, err := shader.NewLibrary(dev, "")
	require.NoError(t, err)
	p := lib.Get(shader.PointLight)

	view := mgl32.Translate3D(0, 0, -10)
	l := NewPoint(mgl32.Vec3{1, 2, 3}, Palette[1], 4)
	UploadLight(p, &l, view)

	assert.Equal(t, mgl32.Vec3{1, 2, -7}, dev.UploadsOf("uLight.position")[0].Value)
	assert.Equal(t, Palette[1], dev.UploadsOf("uLight.color")[0].Value)
	assert.Equal(t, float32(4), dev.UploadsOf("uLight.radius")[0].Value)
	assert.Equal(t, int32(Point), dev.UploadsOf("uLight.type")[0].Value)

	sun := NewDirectional(mgl32.Vec3{0, 2, 0}, Palette[0])
	UploadLight(p, &sun, view)
	dirs := dev.UploadsOf("uLight.direction")
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, dirs[len(dirs)-1].Value, "translation does not move directions")
	types := dev.UploadsOf("uLight.type")
	assert.Equal(t, int32(Directional), types[len(types)-1].Value)
}

type rig struct {
	dev *gputest.Device
	lib *shader.Library
	r   *Renderer
	g   GBuffer
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
	sphere, err := store.Model(resource.SphereModel)
	require.NoError(t, err)

	tex, err := gpu.NewTexture(dev, gpu.TextureDesc{Width: 8, Height: 8, Format: gpu.FormatRGBA8}, nil)
	require.NoError(t, err)

	return &rig{
		dev: dev,
		lib: lib,
		r:   NewRenderer(dev, lib, quad.Meshes[0].Primitives[0], sphere.Meshes[0].Primitives[0]),
		g:   GBuffer{Position: tex, Normal: tex, Diffuse: tex, Width: 8, Height: 8},
	}
}

func (r *rig) uploadsBy(program string, name string) int {
	id := r.lib.Get(program).ID()
	n := 0
	for _, u := range r.dev.UploadsOf(name) {
		if u.Program == id {
			n++
		}
	}
	return n
}

func TestPointsUploadOncePerActiveLight(t *testing.T) {
	for _, count := range []int{0, 1, 5} {
		r := newRig(t)
		lights := Populate(nil, 8, DefaultSettings(), NewRand(3))

		drawn := r.r.Points(r.g, Active(lights, count), mgl32.Ident4(), mgl32.Ident4(), DefaultSettings())
		assert.Equal(t, count, drawn)
		assert.Equal(t, count, r.uploadsBy(shader.PointLight, "uLight.position"), "count %d", count)
		assert.Len(t, r.dev.Draws, count)
	}
}

func TestAmbientUsesAOWhenGiven(t *testing.T) {
	r := newRig(t)
	s := DefaultSettings()

	r.r.Ambient(r.g, nil, s)
	r.r.Ambient(r.g, r.g.Diffuse, s)

	use := r.dev.UploadsOf("uUseAO")
	require.Len(t, use, 2)
	assert.Equal(t, int32(0), use[0].Value)
	assert.Equal(t, int32(1), use[1].Value)
	assert.Equal(t, s.Ambient, r.dev.UploadsOf("uAmbientIntensity")[0].Value)
	assert.Len(t, r.dev.Draws, 2)
}

func TestDirectionalSamplesCascades(t *testing.T) {
	r := newRig(t)
	maps, err := shadow.NewMaps(r.dev, 3, 64)
	require.NoError(t, err)
	c := shadow.Compute(camera.New(8, 8), mgl32.Vec3{0, 1, 0}, shadow.DefaultSettings())

	sun := NewDirectional(mgl32.Vec3{0, 1, 0}, Palette[0])
	r.r.Directional(r.g, &sun, mgl32.Ident4(), Shadows{Maps: maps, Cascades: &c, Settings: shadow.DefaultSettings()}, DefaultSettings())
	assert.Equal(t, int32(3), r.dev.UploadsOf("uCascadeCount")[0].Value)
	assert.Len(t, r.dev.Draws, 1)

	r.dev.ResetFrame()
	r.r.Directional(r.g, &sun, mgl32.Ident4(), Shadows{}, DefaultSettings())
	assert.Equal(t, int32(0), r.dev.UploadsOf("uCascadeCount")[0].Value)

	r.dev.ResetFrame()
	r.r.Directional(r.g, nil, mgl32.Ident4(), Shadows{}, DefaultSettings())
	assert.Empty(t, r.dev.Draws)
}

func TestProxiesDrawEachLight(t *testing.T) {
	r := newRig(t)
	lights := Populate(nil, 3, DefaultSettings(), NewRand(9))
	r.r.Proxies(Active(lights, 3), mgl32.Ident4(), mgl32.Ident4())

	colors := r.dev.UploadsOf("uColor")
	require.Len(t, colors, 3)
	assert.Equal(t, Palette[2], colors[2].Value)
	assert.Len(t, r.dev.Draws, 3)
}
