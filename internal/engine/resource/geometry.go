package resource

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/lumen/internal/engine/asset"
	"github.com/Faultbox/lumen/internal/engine/gpu"
)

// Built-in model names.
const (
	QuadModel   = "quad"
	CubeModel   = "cube"
	SphereModel = "sphere"
)

type vertex struct {
	pos, normal mgl32.Vec3
	tangent     mgl32.Vec4
	uv          mgl32.Vec2
}

func primitive(verts []vertex, indices []uint32) asset.Primitive {
	var pos, nrm, tan, uv []float32
	for _, v := range verts {
		pos = append(pos, v.pos[0], v.pos[1], v.pos[2])
		nrm = append(nrm, v.normal[0], v.normal[1], v.normal[2])
		tan = append(tan, v.tangent[0], v.tangent[1], v.tangent[2], v.tangent[3])
		uv = append(uv, v.uv[0], v.uv[1])
	}
	p := asset.Primitive{Indices: asset.IndexView(indices), Material: asset.None, Mode: gpu.Triangles}
	p.Attributes[asset.Position] = asset.FloatView(pos, 3)
	p.Attributes[asset.Normal] = asset.FloatView(nrm, 3)
	p.Attributes[asset.Tangent] = asset.FloatView(tan, 4)
	p.Attributes[asset.TexCoord0] = asset.FloatView(uv, 2)
	return p
}

// NewQuad returns a full-screen quad in normalized device coordinates.
func NewQuad() asset.Primitive {
	n := mgl32.Vec3{0, 0, 1}
	t := mgl32.Vec4{1, 0, 0, 1}
	return primitive([]vertex{
		{mgl32.Vec3{-1, -1, 0}, n, t, mgl32.Vec2{0, 0}},
		{mgl32.Vec3{1, -1, 0}, n, t, mgl32.Vec2{1, 0}},
		{mgl32.Vec3{1, 1, 0}, n, t, mgl32.Vec2{1, 1}},
		{mgl32.Vec3{-1, 1, 0}, n, t, mgl32.Vec2{0, 1}},
	}, []uint32{0, 1, 2, 0, 2, 3})
}

// NewCube returns a unit cube spanning [-0.5, 0.5] on every axis with
// per-face normals.
func NewCube() asset.Primitive {
	faces := []struct{ n, u, v mgl32.Vec3 }{
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
	}
	corners := [4]mgl32.Vec2{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

	var verts []vertex
	var indices []uint32
	for _, f := range faces {
		base := uint32(len(verts))
		for _, c := range corners {
			p := f.n.Add(f.u.Mul(c[0])).Add(f.v.Mul(c[1])).Mul(0.5)
			verts = append(verts, vertex{p, f.n, f.u.Vec4(1), mgl32.Vec2{(c[0] + 1) / 2, (c[1] + 1) / 2}})
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return primitive(verts, indices)
}

// NewSphere returns a unit UV sphere.
func NewSphere(stacks, slices int) asset.Primitive {
	stacks = max(stacks, 2)
	slices = max(slices, 3)

	var verts []vertex
	for i := 0; i <= stacks; i++ {
		phi := math32.Pi * float32(i) / float32(stacks)
		sp, cp := math32.Sincos(phi)
		for j := 0; j <= slices; j++ {
			theta := 2 * math32.Pi * float32(j) / float32(slices)
			st, ct := math32.Sincos(theta)
			p := mgl32.Vec3{sp * ct, cp, sp * st}
			verts = append(verts, vertex{
				pos:     p,
				normal:  p,
				tangent: mgl32.Vec4{-st, 0, ct, 1},
				uv:      mgl32.Vec2{float32(j) / float32(slices), float32(i) / float32(stacks)},
			})
		}
	}

	var indices []uint32
	row := uint32(slices + 1)
	for i := 0; i < stacks; i++ {
		for j := 0; j < slices; j++ {
			a := uint32(i)*row + uint32(j)
			b := a + row
			indices = append(indices, a, a+1, b, a+1, b+1, b)
		}
	}
	return primitive(verts, indices)
}
