package asset

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/lumen/internal/engine/gpu"
)

// GenerateTangents computes per-vertex tangents for an indexed triangle
// list. Each triangle adds its UV-aligned tangent to its three vertices;
// the sums are then orthogonalized against the normal. The w component
// holds the bitangent sign.
func GenerateTangents(positions, normals []mgl32.Vec3, uvs []mgl32.Vec2, indices []uint32) []mgl32.Vec4 {
	n := len(positions)
	tan := make([]mgl32.Vec3, n)
	bitan := make([]mgl32.Vec3, n)

	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		if int(i0) >= n || int(i1) >= n || int(i2) >= n {
			continue
		}
		e1 := positions[i1].Sub(positions[i0])
		e2 := positions[i2].Sub(positions[i0])
		d1 := uvs[i1].Sub(uvs[i0])
		d2 := uvs[i2].Sub(uvs[i0])

		det := d1[0]*d2[1] - d2[0]*d1[1]
		if math32.Abs(det) < 1e-12 {
			continue
		}
		r := 1 / det
		t := e1.Mul(d2[1]).Sub(e2.Mul(d1[1])).Mul(r)
		b := e2.Mul(d1[0]).Sub(e1.Mul(d2[0])).Mul(r)

		for _, v := range [3]uint32{i0, i1, i2} {
			tan[v] = tan[v].Add(t)
			bitan[v] = bitan[v].Add(b)
		}
	}

	out := make([]mgl32.Vec4, n)
	for i := range out {
		nrm := normals[i]
		t := tan[i].Sub(nrm.Mul(nrm.Dot(tan[i])))
		if t.Len() < 1e-6 {
			t = anyPerpendicular(nrm)
		}
		t = t.Normalize()

		w := float32(1)
		if nrm.Cross(t).Dot(bitan[i]) < 0 {
			w = -1
		}
		out[i] = t.Vec4(w)
	}
	return out
}

// anyPerpendicular returns a unit vector perpendicular to n.
func anyPerpendicular(n mgl32.Vec3) mgl32.Vec3 {
	axis := mgl32.Vec3{1, 0, 0}
	if math32.Abs(n.X()) > 0.9 {
		axis = mgl32.Vec3{0, 1, 0}
	}
	p := axis.Sub(n.Mul(n.Dot(axis)))
	if p.Len() < 1e-6 {
		return axis
	}
	return p.Normalize()
}

// fillTangents derives the TANGENT view of p from its other attributes.
// Only float positions, normals and UVs in a triangle list qualify.
func fillTangents(p *Primitive) error {
	pos := p.Attributes[Position]
	nrm := p.Attributes[Normal]
	uv := p.Attributes[TexCoord0]
	if pos.Type != gpu.Float || nrm.Type != gpu.Float || uv.Type != gpu.Float {
		return fmt.Errorf("%s absent and cannot be computed from non-float attributes: %w", Tangent, ErrMissingAttribute)
	}

	positions := vec3s(pos.Floats())
	normals := vec3s(nrm.Floats())
	uvs := vec2s(uv.Floats())
	if len(normals) != len(positions) || len(uvs) != len(positions) {
		return fmt.Errorf("attribute counts differ (%d positions, %d normals, %d uvs): %w",
			len(positions), len(normals), len(uvs), ErrDecode)
	}

	var tangents []mgl32.Vec4
	if p.Mode == gpu.Triangles {
		tangents = GenerateTangents(positions, normals, uvs, p.Indices.Uint32s())
	} else {
		tangents = make([]mgl32.Vec4, len(normals))
		for i, n := range normals {
			tangents[i] = anyPerpendicular(n).Vec4(1)
		}
	}

	flat := make([]float32, 0, len(tangents)*4)
	for _, t := range tangents {
		flat = append(flat, t[0], t[1], t[2], t[3])
	}
	p.Attributes[Tangent] = FloatView(flat, 4)
	return nil
}

func vec3s(f []float32) []mgl32.Vec3 {
	out := make([]mgl32.Vec3, len(f)/3)
	for i := range out {
		out[i] = mgl32.Vec3{f[i*3], f[i*3+1], f[i*3+2]}
	}
	return out
}

func vec2s(f []float32) []mgl32.Vec2 {
	out := make([]mgl32.Vec2, len(f)/2)
	for i := range out {
		out[i] = mgl32.Vec2{f[i*2], f[i*2+1]}
	}
	return out
}
