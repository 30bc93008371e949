package lighting

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/lumen/internal/engine/gpu"
	"github.com/Faultbox/lumen/internal/engine/resource"
	"github.com/Faultbox/lumen/internal/engine/shader"
	"github.com/Faultbox/lumen/internal/engine/shadow"
)

// ProxyScale is the radius of the debug sphere drawn at each point light.
const ProxyScale = 0.25

// GBuffer is a borrowed view of the geometry targets the passes read.
type GBuffer struct {
	Position *gpu.Texture
	Normal   *gpu.Texture
	Diffuse  *gpu.Texture
	Width    int
	Height   int
}

func (g GBuffer) bind(p *shader.Program) {
	p.SetTexture("uPositionMap", 0, g.Position)
	p.SetTexture("uNormalMap", 1, g.Normal)
	p.SetTexture("uDiffuseMap", 2, g.Diffuse)
}

// Shadows is what the directional pass samples. A nil Maps disables
// shadowing.
type Shadows struct {
	Maps     *shadow.Maps
	Cascades *shadow.Cascades
	Settings shadow.Settings
}

// Renderer draws the light passes into the bound HDR target.
type Renderer struct {
	dev         gpu.Device
	ambient     *shader.Program
	point       *shader.Program
	directional *shader.Program
	proxy       *shader.Program
	quad        *resource.Primitive
	sphere      *resource.Primitive
}

// NewRenderer takes its programs from lib. quad covers the screen and
// sphere is the unit light volume.
func NewRenderer(dev gpu.Device, lib *shader.Library, quad, sphere *resource.Primitive) *Renderer {
	return &Renderer{
		dev:         dev,
		ambient:     lib.Get(shader.Ambient),
		point:       lib.Get(shader.PointLight),
		directional: lib.Get(shader.DirectionalLight),
		proxy:       lib.Get(shader.LightProxy),
		quad:        quad,
		sphere:      sphere,
	}
}

func (r *Renderer) additive() {
	r.dev.SetDepth(gpu.DepthState{})
	r.dev.SetBlend(gpu.BlendAdditive)
}

// Ambient adds the ambient term. aoMap is ignored when nil.
func (r *Renderer) Ambient(g GBuffer, aoMap *gpu.Texture, s Settings) {
	r.additive()
	p := r.ambient
	p.Use()
	p.SetTexture("uDiffuseMap", 0, g.Diffuse)
	p.SetTexture("uAOMap", 1, aoMap)
	p.SetBool("uUseAO", aoMap != nil)
	p.SetFloat("uAmbientIntensity", s.Ambient)
	r.quad.Draw(r.dev)
}

// Points draws one light volume per active light and returns how many
// were drawn.
func (r *Renderer) Points(g GBuffer, lights []*Light, view, proj mgl32.Mat4, s Settings) int {
	if len(lights) == 0 {
		return 0
	}
	r.additive()
	// Back faces keep the volume visible with the camera inside it.
	r.dev.SetCull(gpu.CullFront)

	p := r.point
	p.Use()
	g.bind(p)
	p.SetMat4("uView", view)
	p.SetMat4("uProjection", proj)
	p.SetVec2("uScreenSize", mgl32.Vec2{float32(g.Width), float32(g.Height)})
	p.SetFloat("uIntensity", s.Intensity)

	for _, l := range lights {
		model := mgl32.Translate3D(l.Position[0], l.Position[1], l.Position[2]).
			Mul4(mgl32.Scale3D(l.Radius, l.Radius, l.Radius))
		p.SetMat4("uModel", model)
		UploadLight(p, l, view)
		r.sphere.Draw(r.dev)
	}

	r.dev.SetCull(gpu.CullBack)
	return len(lights)
}

// Directional adds the shadowed directional light.
func (r *Renderer) Directional(g GBuffer, l *Light, view mgl32.Mat4, sh Shadows, s Settings) {
	if l == nil || !l.Visible {
		return
	}
	r.additive()

	p := r.directional
	p.Use()
	g.bind(p)
	p.SetMat4("uInverseView", view.Inv())
	p.SetFloat("uIntensity", s.Intensity)
	UploadLight(p, l, view)
	if sh.Maps != nil && sh.Cascades != nil {
		shadow.Bind(p, sh.Maps, sh.Cascades, sh.Settings, 3)
	} else {
		p.SetInt("uCascadeCount", 0)
	}
	r.quad.Draw(r.dev)
}

// Proxies draws a small solid sphere at every light, depth tested against
// the scene.
func (r *Renderer) Proxies(lights []*Light, view, proj mgl32.Mat4) {
	r.dev.SetBlend(gpu.BlendNone)
	r.dev.SetDepth(gpu.DepthState{Test: true, Write: true})

	p := r.proxy
	p.Use()
	p.SetMat4("uView", view)
	p.SetMat4("uProjection", proj)
	for _, l := range lights {
		model := mgl32.Translate3D(l.Position[0], l.Position[1], l.Position[2]).
			Mul4(mgl32.Scale3D(ProxyScale, ProxyScale, ProxyScale))
		p.SetMat4("uModel", model)
		p.SetVec3("uColor", l.Color)
		r.sphere.Draw(r.dev)
	}
}
