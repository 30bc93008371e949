package decal

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/lumen/internal/engine/framebuffer"
	"github.com/Faultbox/lumen/internal/engine/gpu"
	"github.com/Faultbox/lumen/internal/engine/resource"
	"github.com/Faultbox/lumen/internal/engine/shader"
)

// Renderer draws decal boxes into a framebuffer that aliases the G-buffer
// diffuse and normal targets.
type Renderer struct {
	dev     gpu.Device
	program *shader.Program
	cube    *resource.Primitive
}

// NewRenderer returns a decal renderer drawing cube as the decal volume.
func NewRenderer(dev gpu.Device, program *shader.Program, cube *resource.Primitive) *Renderer {
	return &Renderer{dev: dev, program: program, cube: cube}
}

// Render draws every decal. position is the G-buffer view-space position
// target. It returns the number of draw calls issued.
func (r *Renderer) Render(target *framebuffer.Framebuffer, position *gpu.Texture, decals []*Decal, view, proj mgl32.Mat4, s Settings) int {
	if len(decals) == 0 {
		return 0
	}

	target.Bind()
	w, h := target.Size()

	p := r.program
	p.Use()
	p.SetMat4("uView", view)
	p.SetMat4("uProjection", proj)
	p.SetFloat("uMinAngle", s.MinAngle)
	p.SetInt("uMode", int(s.Mode))
	p.SetVec2("uScreenSize", mgl32.Vec2{float32(w), float32(h)})
	p.SetTexture("uPositionMap", 0, position)

	// Back faces keep the box visible with the camera inside it.
	r.dev.SetDepth(gpu.DepthState{})
	r.dev.SetCull(gpu.CullFront)
	r.dev.SetBlend(gpu.BlendDecal)

	invView := view.Inv()
	draws := 0
	for _, d := range decals {
		textured := s.Mode == ModeTextured
		if textured && !d.Has(Diffuse) && !d.Has(Normal) && !d.Has(Metallic) {
			continue
		}

		model := d.Matrix()
		p.SetMat4("uModel", model)
		p.SetMat4("uViewToDecal", model.Inv().Mul4(invView))
		p.SetMat4("uDecalBasis", d.Basis(view))

		if !textured || d.Has(Diffuse) || d.Has(Normal) {
			p.SetBool("uHasDiffuse", d.Has(Diffuse))
			p.SetBool("uHasNormal", d.Has(Normal))
			p.SetBool("uHasMetallic", d.Has(Metallic))
			p.SetInt("uMetallicPass", 0)
			p.SetTexture("uDiffuseMap", 1, d.Textures[Diffuse])
			p.SetTexture("uNormalMap", 2, d.Textures[Normal])
			r.cube.Draw(r.dev)
			draws++
		}

		if textured && d.Has(Metallic) {
			r.dev.SetBlend(gpu.BlendWriteAlpha)
			p.SetInt("uMetallicPass", 1)
			p.SetTexture("uMetallicMap", 3, d.Textures[Metallic])
			r.cube.Draw(r.dev)
			r.dev.SetBlend(gpu.BlendDecal)
			draws++
		}
	}

	r.dev.SetBlend(gpu.BlendNone)
	r.dev.SetCull(gpu.CullBack)
	r.dev.SetDepth(gpu.DepthState{Test: true, Write: true})
	return draws
}
