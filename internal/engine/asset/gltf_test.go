package asset

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/lumen/internal/engine/gpu"
)

var (
	quadPositions = [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}}
	quadNormals   = [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}}
	quadUVs       = [][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	quadIndices   = []uint16{0, 1, 2, 0, 2, 3}
)

// quadDocument builds a one-quad model. skip names an attribute to leave out.
func quadDocument(skip string, indexed bool) *gltf.Document {
	doc := gltf.NewDocument()
	attrs := map[string]int{}
	if skip != gltf.POSITION {
		attrs[gltf.POSITION] = modeler.WritePosition(doc, quadPositions)
	}
	if skip != gltf.NORMAL {
		attrs[gltf.NORMAL] = modeler.WriteNormal(doc, quadNormals)
	}
	if skip != gltf.TEXCOORD_0 {
		attrs[gltf.TEXCOORD_0] = modeler.WriteTextureCoord(doc, quadUVs)
	}
	prim := &gltf.Primitive{Attributes: attrs}
	if indexed {
		prim.Indices = gltf.Index(modeler.WriteIndices(doc, quadIndices))
	}
	doc.Meshes = []*gltf.Mesh{{Name: "quad", Primitives: []*gltf.Primitive{prim}}}
	doc.Nodes = []*gltf.Node{
		{Name: "root", Mesh: gltf.Index(0), Translation: [3]float64{1, 2, 3}, Children: []int{1}},
		{Name: "child", Mesh: gltf.Index(0), Scale: [3]float64{2, 2, 2}},
	}
	doc.Scenes[0].Nodes = []int{0}
	return doc
}

func save(t *testing.T, doc *gltf.Document) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.glb")
	require.NoError(t, gltf.SaveBinary(doc, path))
	return path
}

func TestDecodeQuad(t *testing.T) {
	doc, err := NewGLTFDecoder().Decode(save(t, quadDocument("", true)))
	require.NoError(t, err)

	require.Len(t, doc.Meshes, 1)
	require.Len(t, doc.Meshes[0].Primitives, 1)
	p := doc.Meshes[0].Primitives[0]

	assert.Equal(t, gpu.Triangles, p.Mode)
	assert.Equal(t, None, p.Material)
	assert.Equal(t, 4, p.Attributes[Position].Count)
	assert.Equal(t, 3, p.Attributes[Position].Components)
	assert.Equal(t, 2, p.Attributes[TexCoord0].Components)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, p.Indices.Uint32s())

	tangents := p.Attributes[Tangent]
	require.Equal(t, 4, tangents.Count)
	f := tangents.Floats()
	for i := 0; i < 4; i++ {
		assert.InDeltaSlice(t, []float32{1, 0, 0, 1}, f[i*4:i*4+4], 1e-5, "vertex %d", i)
	}
}

func TestDecodeNodes(t *testing.T) {
	doc, err := NewGLTFDecoder().Decode(save(t, quadDocument("", true)))
	require.NoError(t, err)

	require.Len(t, doc.Nodes, 2)
	assert.Equal(t, []int{0}, doc.Roots)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, doc.Nodes[0].Translation)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, doc.Nodes[0].Scale)
	assert.Equal(t, mgl32.QuatIdent(), doc.Nodes[0].Rotation)
	assert.Equal(t, []int{1}, doc.Nodes[0].Children)
	assert.Equal(t, mgl32.Vec3{2, 2, 2}, doc.Nodes[1].Scale)
	assert.Equal(t, 0, doc.Nodes[1].Mesh)
}

func TestDecodeMissingAttribute(t *testing.T) {
	for _, attr := range []string{gltf.POSITION, gltf.NORMAL, gltf.TEXCOORD_0} {
		t.Run(attr, func(t *testing.T) {
			_, err := NewGLTFDecoder().Decode(save(t, quadDocument(attr, true)))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMissingAttribute)
			assert.Contains(t, err.Error(), attr)
		})
	}
}

func TestDecodeGeneratesIndices(t *testing.T) {
	doc, err := NewGLTFDecoder().Decode(save(t, quadDocument("", false)))
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2, 3}, doc.Meshes[0].Primitives[0].Indices.Uint32s())
}

func TestDecodeMaterialsAndImages(t *testing.T) {
	doc := quadDocument("", true)

	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	require.NoError(t, png.Encode(&buf, img))
	embedded, err := modeler.WriteImage(doc, "albedo", "image/png", &buf)
	require.NoError(t, err)

	doc.Images = append(doc.Images, &gltf.Image{Name: "lost", URI: "missing.png"})
	doc.Samplers = []*gltf.Sampler{{MagFilter: gltf.MagNearest, MinFilter: gltf.MinLinear, WrapS: gltf.WrapClampToEdge}}
	doc.Textures = []*gltf.Texture{
		{Name: "albedo", Source: gltf.Index(embedded), Sampler: gltf.Index(0)},
		{Name: "normal", Source: gltf.Index(len(doc.Images) - 1)},
	}
	doc.Materials = []*gltf.Material{{
		Name: "painted",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor:  &[4]float64{1, 0.5, 0.25, 1},
			BaseColorTexture: &gltf.TextureInfo{Index: 0},
		},
		NormalTexture: &gltf.NormalTexture{Index: gltf.Index(1)},
	}}
	doc.Meshes[0].Primitives[0].Material = gltf.Index(0)

	got, err := NewGLTFDecoder().Decode(save(t, doc))
	require.NoError(t, err)

	require.Len(t, got.Materials, 1)
	m := got.Materials[0]
	assert.Equal(t, mgl32.Vec4{1, 0.5, 0.25, 1}, m.BaseColor)
	assert.Equal(t, 0, m.Diffuse)
	assert.Equal(t, 1, m.Normal)
	assert.Equal(t, None, m.MetallicRoughness)
	assert.Equal(t, 0, got.Meshes[0].Primitives[0].Material)

	require.Len(t, got.Images, 2)
	require.NotNil(t, got.Images[0].Pixels)
	assert.Equal(t, uint8(255), got.Images[0].Pixels.RGBAAt(0, 0).R)
	assert.Nil(t, got.Images[1].Pixels, "unreadable image keeps an empty slot")

	s := got.Sampler(got.Textures[0])
	assert.Equal(t, gpu.FilterNearest, s.MagFilter)
	assert.Equal(t, gpu.FilterLinear, s.MinFilter)
	assert.Equal(t, gpu.WrapClampToEdge, s.WrapS)
	assert.Equal(t, gpu.WrapRepeat, s.WrapT)
	assert.Equal(t, gpu.DefaultSampler(), got.Sampler(got.Textures[1]))
}

func TestDecodeUnreadableFile(t *testing.T) {
	_, err := NewGLTFDecoder().Decode(filepath.Join(t.TempDir(), "absent.glb"))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestGenerateTangentsFlippedUV(t *testing.T) {
	pos := []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	nrm := []mgl32.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}}
	uvs := []mgl32.Vec2{{0, 0}, {1, 0}, {0, -1}}

	got := GenerateTangents(pos, nrm, uvs, []uint32{0, 1, 2})
	for _, tan := range got {
		assert.InDelta(t, 1, tan.X(), 1e-5)
		assert.InDelta(t, -1, tan.W(), 1e-5, "mirrored v flips handedness")
	}
}

func TestGenerateTangentsDegenerateUV(t *testing.T) {
	pos := []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	nrm := []mgl32.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}}
	uvs := []mgl32.Vec2{{0, 0}, {0, 0}, {0, 0}}

	for _, tan := range GenerateTangents(pos, nrm, uvs, []uint32{0, 1, 2}) {
		assert.InDelta(t, 1, tan.Vec3().Len(), 1e-5)
		assert.InDelta(t, 0, tan.Vec3().Dot(mgl32.Vec3{0, 0, 1}), 1e-5)
	}
}

// sharedImageDocument has two unnamed textures over the same image and
// sampler, used by the diffuse and normal slots.
func sharedImageDocument(t *testing.T) *gltf.Document {
	t.Helper()
	doc := quadDocument("", true)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	img, err := modeler.WriteImage(doc, "", "image/png", &buf)
	require.NoError(t, err)

	doc.Samplers = []*gltf.Sampler{{MagFilter: gltf.MagLinear}}
	doc.Textures = []*gltf.Texture{
		{Source: gltf.Index(img), Sampler: gltf.Index(0)},
		{Source: gltf.Index(img), Sampler: gltf.Index(0)},
	}
	doc.Materials = []*gltf.Material{{
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{BaseColorTexture: &gltf.TextureInfo{Index: 0}},
		NormalTexture:        &gltf.NormalTexture{Index: gltf.Index(1)},
	}}
	doc.Meshes[0].Primitives[0].Material = gltf.Index(0)
	return doc
}

func TestUnnamedTexturesShareKey(t *testing.T) {
	path := save(t, sharedImageDocument(t))
	doc, err := NewGLTFDecoder().Decode(path)
	require.NoError(t, err)

	require.Len(t, doc.Textures, 2)
	assert.Empty(t, doc.Textures[0].Name)
	assert.Equal(t, doc.Key(doc.Textures[0]), doc.Key(doc.Textures[1]))
	assert.Equal(t, path, doc.Key(doc.Textures[0]).Path)
}

func TestKeysAreScopedToFile(t *testing.T) {
	a := &Document{Path: "a.glb", Images: []Image{{Name: "albedo"}}}
	b := &Document{Path: "b.glb", Images: []Image{{Name: "albedo"}}}
	tex := Texture{Name: "albedo", Sampler: 0, Image: 0}

	assert.NotEqual(t, a.Key(tex), b.Key(tex))
	assert.Equal(t, Key{Path: "a.glb", ImageName: "albedo", Sampler: 0, Image: 0}, a.Key(tex))
}

func TestKeyWithoutImage(t *testing.T) {
	doc := &Document{Path: "a.glb"}
	k := doc.Key(Texture{Sampler: None, Image: None})
	assert.Empty(t, k.ImageName)
	assert.Equal(t, None, k.Image)
}
