package shadow

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/lumen/internal/engine/framebuffer"
	"github.com/Faultbox/lumen/internal/engine/gpu"
	"github.com/Faultbox/lumen/internal/engine/shader"
)

// BorderSampler samples depth texels exactly; outside the map everything
// is lit.
func BorderSampler() gpu.SamplerDesc {
	return gpu.SamplerDesc{
		MinFilter: gpu.FilterNearest,
		MagFilter: gpu.FilterNearest,
		WrapS:     gpu.WrapClampToBorder,
		WrapT:     gpu.WrapClampToBorder,
		Border:    [4]float32{1, 1, 1, 1},
	}
}

// Maps is one depth-only framebuffer per cascade.
type Maps struct {
	dev        gpu.Device
	fbs        []*framebuffer.Framebuffer
	resolution int
}

// NewMaps creates levels square depth maps.
func NewMaps(dev gpu.Device, levels, resolution int) (*Maps, error) {
	m := &Maps{dev: dev}
	if err := m.Ensure(levels, resolution); err != nil {
		return nil, err
	}
	return m, nil
}

// Ensure recreates the maps when the cascade count or resolution changed.
func (m *Maps) Ensure(levels, resolution int) error {
	if len(m.fbs) == levels && m.resolution == resolution {
		return nil
	}
	m.Destroy()

	for i := 0; i < levels; i++ {
		fb, err := framebuffer.New(m.dev, framebuffer.Spec{
			Width:        resolution,
			Height:       resolution,
			Depth:        gpu.FormatDepth24,
			DepthSampler: BorderSampler(),
		})
		if err != nil {
			m.Destroy()
			return fmt.Errorf("shadow map %d: %w", i, err)
		}
		m.fbs = append(m.fbs, fb)
	}
	m.resolution = resolution
	return nil
}

// Len returns the number of maps.
func (m *Maps) Len() int {
	return len(m.fbs)
}

// Framebuffer returns the depth target of cascade i.
func (m *Maps) Framebuffer(i int) *framebuffer.Framebuffer {
	return m.fbs[i]
}

// Texture returns the depth texture of cascade i, or nil past the last map.
func (m *Maps) Texture(i int) *gpu.Texture {
	if i < 0 || i >= len(m.fbs) {
		return nil
	}
	return m.fbs[i].DepthTexture()
}

// Destroy releases every map.
func (m *Maps) Destroy() {
	for _, fb := range m.fbs {
		fb.Destroy()
	}
	m.fbs = nil
	m.resolution = 0
}

// DrawFunc draws the shadow casters. It sets uModel per object and issues
// the draws; the renderer has already bound the program.
type DrawFunc func(p *shader.Program)

// Renderer fills the cascade depth maps.
type Renderer struct {
	dev     gpu.Device
	program *shader.Program
}

// NewRenderer returns a renderer drawing with the depth-only program.
func NewRenderer(dev gpu.Device, program *shader.Program) *Renderer {
	return &Renderer{dev: dev, program: program}
}

// Render draws the casters into every cascade. Front faces are culled to
// keep acne off lit surfaces.
func (r *Renderer) Render(maps *Maps, c *Cascades, draw DrawFunc) {
	r.program.Use()
	r.dev.SetBlend(gpu.BlendNone)
	r.dev.SetDepth(gpu.DepthState{Test: true, Write: true})
	r.dev.SetCull(gpu.CullFront)

	for i := 0; i < min(c.Count, maps.Len()); i++ {
		fb := maps.Framebuffer(i)
		fb.Bind()
		fb.Clear(mgl32.Vec4{})
		r.program.SetMat4("uLightViewProj", c.LightViewProj[i])
		draw(r.program)
	}

	r.dev.SetCull(gpu.CullBack)
}

// Bind uploads cascade data and binds every map to p, starting at texture
// unit firstUnit. Unused samplers get the last map.
func Bind(p *shader.Program, maps *Maps, c *Cascades, s Settings, firstUnit int) {
	p.SetInt("uCascadeCount", min(c.Count, maps.Len()))
	p.SetFloats("uCascadeFar", c.Far())
	p.SetMat4s("uLightViewProj", c.Matrices())
	p.SetFloat("uShadowBias", s.Bias)
	p.SetInt("uPCFSamples", s.PCFSamples)
	p.SetFloat("uBlendDistance", s.BlendDistance)
	p.SetBool("uDrawCascadeLevels", s.DrawCascades)

	last := maps.Texture(maps.Len() - 1)
	for i := 0; i < MaxCascades; i++ {
		tex := maps.Texture(i)
		if tex == nil {
			tex = last
		}
		p.SetTexture(fmt.Sprintf("uShadowMap%d", i), firstUnit+i, tex)
	}
}
