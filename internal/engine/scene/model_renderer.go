package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/lumen/internal/engine/gpu"
	"github.com/Faultbox/lumen/internal/engine/resource"
	"github.com/Faultbox/lumen/internal/engine/shader"
)

// TextureMode selects which material inputs the geometry pass reads.
type TextureMode int

const (
	// Textured uses every material texture.
	Textured TextureMode = iota
	// BaseColorOnly ignores diffuse textures.
	BaseColorOnly
	// VertexNormals ignores normal maps.
	VertexNormals
)

func (m TextureMode) String() string {
	switch m {
	case Textured:
		return "textured"
	case BaseColorOnly:
		return "base_color"
	case VertexNormals:
		return "vertex_normals"
	}
	return fmt.Sprintf("TextureMode(%d)", int(m))
}

// ModelRenderer draws scene objects into the G-buffer and into shadow maps.
type ModelRenderer struct {
	dev     gpu.Device
	program *shader.Program
	store   *resource.Store
}

// NewModelRenderer returns a renderer drawing with the geometry program.
// Material textures are looked up in store.
func NewModelRenderer(dev gpu.Device, program *shader.Program, store *resource.Store) *ModelRenderer {
	return &ModelRenderer{dev: dev, program: program, store: store}
}

// Render fills the bound G-buffer with every object and returns the
// number of draws issued.
func (mr *ModelRenderer) Render(s *Scene, view, proj mgl32.Mat4, mode TextureMode) int {
	if len(s.Objects) == 0 {
		return 0
	}

	p := mr.program
	p.Use()
	p.SetMat4("uView", view)
	p.SetMat4("uProjection", proj)
	p.SetInt("uTextureMode", int(mode))

	mr.dev.SetBlend(gpu.BlendNone)
	mr.dev.SetDepth(gpu.DepthState{Test: true, Write: true})
	mr.dev.SetCull(gpu.CullBack)

	draws := 0
	mr.each(s, func(model mgl32.Mat4, prim *resource.Primitive) {
		p.SetMat4("uModel", model)
		mr.bindMaterial(prim.Material)
		prim.Draw(mr.dev)
		draws++
	})
	return draws
}

func (mr *ModelRenderer) bindMaterial(m resource.Material) {
	p := mr.program
	diffuse := mr.store.Texture(m.Diffuse)
	normal := mr.store.Texture(m.Normal)
	metallic := mr.store.Texture(m.Metallic)

	p.SetVec4("uBaseColor", m.BaseColor)
	p.SetBool("uHasDiffuse", diffuse != nil)
	p.SetBool("uHasNormal", normal != nil)
	p.SetBool("uHasMetallic", metallic != nil)
	p.SetTexture("uDiffuseMap", 0, diffuse)
	p.SetTexture("uNormalMap", 1, normal)
	p.SetTexture("uMetallicMap", 2, metallic)
}

// RenderShadow draws every object with the depth-only program p, which
// the caller has bound, and returns the number of draws.
func (mr *ModelRenderer) RenderShadow(s *Scene, p *shader.Program) int {
	draws := 0
	mr.each(s, func(model mgl32.Mat4, prim *resource.Primitive) {
		p.SetMat4("uModel", model)
		prim.Draw(mr.dev)
		draws++
	})
	return draws
}

// each visits every primitive with its world matrix.
func (mr *ModelRenderer) each(s *Scene, fn func(model mgl32.Mat4, prim *resource.Primitive)) {
	for i, obj := range s.Objects {
		if obj.Model == nil {
			continue
		}
		world := s.World(i)
		for mi, mesh := range obj.Model.Meshes {
			model := world.Mul4(obj.Model.MeshWorld(mi))
			for _, prim := range mesh.Primitives {
				fn(model, prim)
			}
		}
	}
}
