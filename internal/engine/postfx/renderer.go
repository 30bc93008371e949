package postfx

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/lumen/internal/engine/filter"
	"github.com/Faultbox/lumen/internal/engine/framebuffer"
	"github.com/Faultbox/lumen/internal/engine/gpu"
	"github.com/Faultbox/lumen/internal/engine/resource"
	"github.com/Faultbox/lumen/internal/engine/shader"
)

// Targets holds the bright buffer and the two blur buffers.
type Targets struct {
	bright *framebuffer.Framebuffer
	blur   [2]*framebuffer.Framebuffer
}

// NewTargets creates the bloom buffers.
func NewTargets(dev gpu.Device, width, height int) (*Targets, error) {
	t := &Targets{}
	var err error
	for _, fb := range []**framebuffer.Framebuffer{&t.bright, &t.blur[0], &t.blur[1]} {
		*fb, err = framebuffer.New(dev, framebuffer.Spec{
			Width:  width,
			Height: height,
			Colors: []gpu.TextureFormat{gpu.FormatRGBA16F},
		})
		if err != nil {
			t.Destroy()
			return nil, fmt.Errorf("bloom targets: %w", err)
		}
	}
	return t, nil
}

// Bloom returns the blurred bright texture.
func (t *Targets) Bloom() *gpu.Texture {
	return t.blur[1].ColorTexture(0)
}

// Resize recreates every buffer.
func (t *Targets) Resize(width, height int) error {
	for _, fb := range []*framebuffer.Framebuffer{t.bright, t.blur[0], t.blur[1]} {
		if err := fb.Resize(width, height); err != nil {
			return err
		}
	}
	return nil
}

// Destroy releases every buffer.
func (t *Targets) Destroy() {
	t.blur[1].Destroy()
	t.blur[0].Destroy()
	t.bright.Destroy()
}

// Inputs are the textures the composite pass reads. Debug is sampled only
// when a debug view is selected.
type Inputs struct {
	HDR   *gpu.Texture
	Bloom *gpu.Texture
	Debug *gpu.Texture
}

// Renderer runs the bloom and composite passes.
type Renderer struct {
	dev       gpu.Device
	bright    *shader.Program
	blur      *shader.Program
	composite *shader.Program
	quad      *resource.Primitive
}

// NewRenderer takes its programs from lib and draws full-screen passes
// with quad.
func NewRenderer(dev gpu.Device, lib *shader.Library, quad *resource.Primitive) *Renderer {
	return &Renderer{
		dev:       dev,
		bright:    lib.Get(shader.Bright),
		blur:      lib.Get(shader.Blur),
		composite: lib.Get(shader.Composite),
		quad:      quad,
	}
}

// Bloom extracts the bright pixels of hdr and blurs them horizontally then
// vertically across the two blur buffers.
func (r *Renderer) Bloom(t *Targets, hdr *gpu.Texture, s Settings) {
	r.dev.SetDepth(gpu.DepthState{})
	r.dev.SetBlend(gpu.BlendNone)

	t.bright.Bind()
	p := r.bright
	p.Use()
	p.SetTexture("uHDRMap", 0, hdr)
	p.SetFloat("uThreshold", s.BrightThreshold)
	r.quad.Draw(r.dev)

	weights := filter.Gaussian(s.BlurSamples)
	b := r.blur
	b.Use()
	b.SetFloats("uWeights", weights)
	b.SetInt("uSamples", len(weights))

	src := t.bright.ColorTexture(0)
	for i, fb := range t.blur {
		fb.Bind()
		b.SetTexture("uImage", 0, src)
		b.SetBool("uHorizontal", i == 0)
		r.quad.Draw(r.dev)
		src = fb.ColorTexture(0)
	}
}

// Composite tone-maps into dst, or into the default framebuffer of the
// given size when dst is nil.
func (r *Renderer) Composite(dst *framebuffer.Framebuffer, width, height int, in Inputs, s Settings) {
	if dst != nil {
		dst.Bind()
	} else {
		r.dev.BindFramebuffer(gpu.DefaultFramebuffer)
		r.dev.Viewport(0, 0, width, height)
	}
	r.dev.SetDepth(gpu.DepthState{})
	r.dev.SetBlend(gpu.BlendNone)
	r.dev.Clear(gpu.ClearColor, mgl32.Vec4{0, 0, 0, 1})

	p := r.composite
	p.Use()
	p.SetTexture("uHDRMap", 0, in.HDR)
	p.SetTexture("uBloomMap", 1, in.Bloom)
	p.SetBool("uUseBloom", s.Bloom && in.Bloom != nil)
	p.SetBool("uUseExposure", s.UseExposure)
	p.SetFloat("uExposure", s.Exposure)
	p.SetBool("uUseGamma", s.UseGamma)
	p.SetFloat("uGamma", s.Gamma)

	debug := s.Debug
	if in.Debug == nil {
		debug = DebugNone
	}
	p.SetInt("uDebugView", int(debug))
	p.SetTexture("uDebugMap", 2, in.Debug)
	p.SetFloat("uDepthContrast", s.DepthContrast)
	r.quad.Draw(r.dev)

	r.dev.SetDepth(gpu.DepthState{Test: true, Write: true})
}
