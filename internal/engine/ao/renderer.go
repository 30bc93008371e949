package ao

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/lumen/internal/engine/filter"
	"github.com/Faultbox/lumen/internal/engine/framebuffer"
	"github.com/Faultbox/lumen/internal/engine/gpu"
	"github.com/Faultbox/lumen/internal/engine/resource"
	"github.com/Faultbox/lumen/internal/engine/shader"
)

// Targets are the single-channel occlusion buffers. The blur ping-pongs
// between them and leaves the result in the raw buffer.
type Targets struct {
	raw  *framebuffer.Framebuffer
	blur *framebuffer.Framebuffer
}

// NewTargets creates both buffers at the given size.
func NewTargets(dev gpu.Device, width, height int) (*Targets, error) {
	t := &Targets{}
	var err error
	for _, fb := range []**framebuffer.Framebuffer{&t.raw, &t.blur} {
		*fb, err = framebuffer.New(dev, framebuffer.Spec{
			Width:  width,
			Height: height,
			Colors: []gpu.TextureFormat{gpu.FormatR16F},
		})
		if err != nil {
			t.Destroy()
			return nil, fmt.Errorf("ao targets: %w", err)
		}
	}
	return t, nil
}

// Result returns the blurred occlusion texture.
func (t *Targets) Result() *gpu.Texture {
	return t.raw.ColorTexture(0)
}

// Resize recreates both buffers.
func (t *Targets) Resize(width, height int) error {
	if err := t.raw.Resize(width, height); err != nil {
		return err
	}
	return t.blur.Resize(width, height)
}

// Destroy releases both buffers.
func (t *Targets) Destroy() {
	t.blur.Destroy()
	t.raw.Destroy()
}

// Renderer runs the occlusion and blur passes.
type Renderer struct {
	dev  gpu.Device
	ao   *shader.Program
	blur *shader.Program
	quad *resource.Primitive
}

// NewRenderer returns a renderer drawing full-screen passes with quad.
func NewRenderer(dev gpu.Device, ao, blur *shader.Program, quad *resource.Primitive) *Renderer {
	return &Renderer{dev: dev, ao: ao, blur: blur, quad: quad}
}

// Render fills t from the G-buffer view-space position and normal targets.
func (r *Renderer) Render(t *Targets, position, normal *gpu.Texture, proj mgl32.Mat4, s Settings) {
	r.dev.SetDepth(gpu.DepthState{})
	r.dev.SetBlend(gpu.BlendNone)

	w, h := t.raw.Size()
	t.raw.Bind()
	t.raw.Clear(mgl32.Vec4{1, 1, 1, 1})

	p := r.ao
	p.Use()
	p.SetTexture("uPositionMap", 0, position)
	p.SetTexture("uNormalMap", 1, normal)
	p.SetMat4("uProjection", proj)
	p.SetVec2("uScreenSize", mgl32.Vec2{float32(w), float32(h)})
	p.SetInt("uDirCount", s.DirCount)
	p.SetInt("uStepCount", s.StepCount)
	p.SetFloat("uAngleBias", mgl32.DegToRad(s.AngleBias))
	p.SetFloat("uRadius", s.Radius)
	p.SetFloat("uScale", s.Scale)
	p.SetFloat("uAttenuation", s.Attenuation)
	p.SetBool("uUseSurfaceNormal", s.UseSurfaceNormal)
	p.SetInt("uTangentMethod", int(s.TangentMethod))
	r.quad.Draw(r.dev)

	weights := filter.Gaussian(s.BlurSamples)
	b := r.blur
	b.Use()
	b.SetFloats("uWeights", weights)
	b.SetInt("uSamples", len(weights))
	b.SetFloat("uThreshold", s.BlurThreshold)
	b.SetTexture("uPositionMap", 1, position)

	passes := []struct {
		dst *framebuffer.Framebuffer
		src *gpu.Texture
		dir mgl32.Vec2
	}{
		{t.blur, t.raw.ColorTexture(0), mgl32.Vec2{1, 0}},
		{t.raw, t.blur.ColorTexture(0), mgl32.Vec2{0, 1}},
	}
	for _, pass := range passes {
		pass.dst.Bind()
		b.SetTexture("uAOMap", 0, pass.src)
		b.SetVec2("uDirection", pass.dir)
		r.quad.Draw(r.dev)
	}

	r.dev.SetDepth(gpu.DepthState{Test: true, Write: true})
}
