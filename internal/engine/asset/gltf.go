package asset

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/Faultbox/lumen/internal/engine/gpu"
	"github.com/Faultbox/lumen/internal/engine/texture"
	"github.com/Faultbox/lumen/internal/logger"
)

// GLTFDecoder reads .gltf and .glb files.
type GLTFDecoder struct {
	log *zap.Logger
}

// NewGLTFDecoder returns a glTF decoder.
func NewGLTFDecoder() *GLTFDecoder {
	return &GLTFDecoder{log: logger.Named("asset")}
}

// Decode opens path and converts it into a Document. A primitive missing a
// required attribute fails the whole decode. Images that cannot be decoded
// are kept with nil pixels so the textures using them become absent.
func (d *GLTFDecoder) Decode(path string) (*Document, error) {
	src, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w: %w", path, ErrDecode, err)
	}

	doc := &Document{Path: path}
	doc.Samplers = convertSamplers(src.Samplers)
	doc.Images = d.decodeImages(src, filepath.Dir(path))

	for _, t := range src.Textures {
		tex := Texture{Name: t.Name, Sampler: None, Image: None}
		if t.Sampler != nil {
			tex.Sampler = *t.Sampler
		}
		if t.Source != nil && *t.Source < len(doc.Images) {
			tex.Image = *t.Source
		}
		doc.Textures = append(doc.Textures, tex)
	}

	for _, m := range src.Materials {
		doc.Materials = append(doc.Materials, convertMaterial(m, len(doc.Textures)))
	}

	for mi, m := range src.Meshes {
		mesh := Mesh{Name: m.Name}
		for pi, p := range m.Primitives {
			prim, err := convertPrimitive(src, p, len(doc.Materials))
			if err != nil {
				return nil, fmt.Errorf("%s: mesh %d (%q) primitive %d: %w", path, mi, m.Name, pi, err)
			}
			mesh.Primitives = append(mesh.Primitives, prim)
		}
		doc.Meshes = append(doc.Meshes, mesh)
	}

	for _, n := range src.Nodes {
		doc.Nodes = append(doc.Nodes, convertNode(n, len(doc.Meshes)))
	}
	doc.Roots = rootNodes(src)

	d.log.Debug("model decoded",
		zap.String("path", path),
		zap.Int("meshes", len(doc.Meshes)),
		zap.Int("materials", len(doc.Materials)),
		zap.Int("images", len(doc.Images)))
	return doc, nil
}

func convertPrimitive(src *gltf.Document, p *gltf.Primitive, materials int) (Primitive, error) {
	prim := Primitive{Material: None, Mode: convertMode(p.Mode)}
	if p.Material != nil && *p.Material < materials {
		prim.Material = *p.Material
	}

	accessor := func(a Attribute) (*gltf.Accessor, error) {
		idx, ok := p.Attributes[a.String()]
		if !ok {
			return nil, nil
		}
		if idx < 0 || idx >= len(src.Accessors) {
			return nil, fmt.Errorf("%s accessor %d out of range: %w", a, idx, ErrDecode)
		}
		return src.Accessors[idx], nil
	}

	for _, a := range []Attribute{Position, Normal, TexCoord0} {
		acr, err := accessor(a)
		if err != nil {
			return prim, err
		}
		if acr == nil {
			return prim, fmt.Errorf("%s: %w", a, ErrMissingAttribute)
		}
		view, err := readAttribute(src, acr, a)
		if err != nil {
			return prim, err
		}
		prim.Attributes[a] = view
	}

	count := prim.Attributes[Position].Count
	if prim.Attributes[Normal].Count != count || prim.Attributes[TexCoord0].Count != count {
		return prim, fmt.Errorf("attribute counts differ: %w", ErrDecode)
	}

	if p.Indices != nil {
		if *p.Indices < 0 || *p.Indices >= len(src.Accessors) {
			return prim, fmt.Errorf("index accessor %d out of range: %w", *p.Indices, ErrDecode)
		}
		indices, err := modeler.ReadIndices(src, src.Accessors[*p.Indices], nil)
		if err != nil {
			return prim, fmt.Errorf("reading indices: %w: %w", ErrDecode, err)
		}
		for _, idx := range indices {
			if int(idx) >= count {
				return prim, fmt.Errorf("index %d exceeds %d vertices: %w", idx, count, ErrDecode)
			}
		}
		prim.Indices = IndexView(indices)
	} else {
		prim.Indices = IndexView(sequence(count))
	}

	acr, err := accessor(Tangent)
	if err != nil {
		return prim, err
	}
	if acr != nil {
		view, err := readAttribute(src, acr, Tangent)
		if err != nil {
			return prim, err
		}
		if view.Count != count {
			return prim, fmt.Errorf("%s count differs: %w", Tangent, ErrDecode)
		}
		prim.Attributes[Tangent] = view
		return prim, nil
	}
	return prim, fillTangents(&prim)
}

// readAttribute reads an accessor and repacks it as tightly packed floats.
func readAttribute(src *gltf.Document, acr *gltf.Accessor, a Attribute) (View, error) {
	var (
		flat []float32
		n    int
	)
	switch a {
	case Position, Normal:
		var (
			v   [][3]float32
			err error
		)
		if a == Position {
			v, err = modeler.ReadPosition(src, acr, nil)
		} else {
			v, err = modeler.ReadNormal(src, acr, nil)
		}
		if err != nil {
			return View{}, fmt.Errorf("reading %s: %w: %w", a, ErrDecode, err)
		}
		n = 3
		flat = make([]float32, 0, len(v)*n)
		for _, e := range v {
			flat = append(flat, e[0], e[1], e[2])
		}
	case Tangent:
		v, err := modeler.ReadTangent(src, acr, nil)
		if err != nil {
			return View{}, fmt.Errorf("reading %s: %w: %w", a, ErrDecode, err)
		}
		n = 4
		flat = make([]float32, 0, len(v)*n)
		for _, e := range v {
			flat = append(flat, e[0], e[1], e[2], e[3])
		}
	case TexCoord0:
		v, err := modeler.ReadTextureCoord(src, acr, nil)
		if err != nil {
			return View{}, fmt.Errorf("reading %s: %w: %w", a, ErrDecode, err)
		}
		n = 2
		flat = make([]float32, 0, len(v)*n)
		for _, e := range v {
			flat = append(flat, e[0], e[1])
		}
	default:
		return View{}, fmt.Errorf("unsupported attribute %s: %w", a, ErrDecode)
	}
	return FloatView(flat, n), nil
}

func sequence(n int) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = uint32(i)
	}
	return out
}

func convertMaterial(m *gltf.Material, textures int) Material {
	mat := Material{
		Name:              m.Name,
		BaseColor:         mgl32.Vec4{1, 1, 1, 1},
		Diffuse:           None,
		Normal:            None,
		MetallicRoughness: None,
	}
	valid := func(i int) int {
		if i < 0 || i >= textures {
			return None
		}
		return i
	}

	if pbr := m.PBRMetallicRoughness; pbr != nil {
		f := pbr.BaseColorFactorOrDefault()
		mat.BaseColor = mgl32.Vec4{float32(f[0]), float32(f[1]), float32(f[2]), float32(f[3])}
		if pbr.BaseColorTexture != nil {
			mat.Diffuse = valid(pbr.BaseColorTexture.Index)
		}
		if pbr.MetallicRoughnessTexture != nil {
			mat.MetallicRoughness = valid(pbr.MetallicRoughnessTexture.Index)
		}
	}
	if m.NormalTexture != nil && m.NormalTexture.Index != nil {
		mat.Normal = valid(*m.NormalTexture.Index)
	}
	return mat
}

func convertNode(n *gltf.Node, meshes int) Node {
	node := Node{
		Name:     n.Name,
		Mesh:     None,
		Children: append([]int(nil), n.Children...),
	}
	if n.Mesh != nil && *n.Mesh < meshes {
		node.Mesh = *n.Mesh
	}

	var m mgl32.Mat4
	for i, v := range n.Matrix {
		m[i] = float32(v)
	}
	if m != (mgl32.Mat4{}) && m != mgl32.Ident4() {
		node.Translation, node.Rotation, node.Scale = decompose(m)
		return node
	}

	t := n.TranslationOrDefault()
	r := n.RotationOrDefault()
	s := n.ScaleOrDefault()
	node.Translation = mgl32.Vec3{float32(t[0]), float32(t[1]), float32(t[2])}
	node.Rotation = mgl32.Quat{W: float32(r[3]), V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])}}
	node.Scale = mgl32.Vec3{float32(s[0]), float32(s[1]), float32(s[2])}
	return node
}

// decompose splits an affine matrix without shear into TRS.
func decompose(m mgl32.Mat4) (mgl32.Vec3, mgl32.Quat, mgl32.Vec3) {
	t := m.Col(3).Vec3()
	s := mgl32.Vec3{m.Col(0).Vec3().Len(), m.Col(1).Vec3().Len(), m.Col(2).Vec3().Len()}
	if m.Mat3().Det() < 0 {
		s[0] = -s[0]
	}
	var r mgl32.Mat3
	for c := 0; c < 3; c++ {
		col := m.Col(c).Vec3()
		if s[c] != 0 {
			col = col.Mul(1 / s[c])
		}
		r.SetCol(c, col)
	}
	return t, mgl32.Mat4ToQuat(r.Mat4()).Normalize(), s
}

// rootNodes returns the nodes of the default scene, or every parentless
// node when the file has no scene.
func rootNodes(src *gltf.Document) []int {
	scene := 0
	if src.Scene != nil {
		scene = *src.Scene
	}
	if scene >= 0 && scene < len(src.Scenes) && len(src.Scenes[scene].Nodes) > 0 {
		return append([]int(nil), src.Scenes[scene].Nodes...)
	}

	child := make([]bool, len(src.Nodes))
	for _, n := range src.Nodes {
		for _, c := range n.Children {
			if c >= 0 && c < len(child) {
				child[c] = true
			}
		}
	}
	var roots []int
	for i, isChild := range child {
		if !isChild {
			roots = append(roots, i)
		}
	}
	return roots
}

func (d *GLTFDecoder) decodeImages(src *gltf.Document, dir string) []Image {
	images := make([]Image, len(src.Images))
	for i, img := range src.Images {
		name := img.Name
		if name == "" {
			name = img.URI
		}
		images[i].Name = name

		data, err := imageBytes(src, img, dir)
		if err != nil {
			d.log.Warn("image unreadable, texture slot left empty", zap.Int("image", i), zap.String("name", name), zap.Error(err))
			continue
		}
		pixels, err := texture.Decode(data, imageHint(img))
		if err != nil {
			d.log.Warn("image undecodable, texture slot left empty", zap.Int("image", i), zap.String("name", name), zap.Error(err))
			continue
		}
		images[i].Pixels = pixels
	}
	return images
}

func imageBytes(src *gltf.Document, img *gltf.Image, dir string) ([]byte, error) {
	if img.BufferView != nil {
		bi := *img.BufferView
		if bi < 0 || bi >= len(src.BufferViews) {
			return nil, fmt.Errorf("buffer view %d out of range", bi)
		}
		bv := src.BufferViews[bi]
		if bv.Buffer < 0 || bv.Buffer >= len(src.Buffers) {
			return nil, fmt.Errorf("buffer %d out of range", bv.Buffer)
		}
		buf := src.Buffers[bv.Buffer].Data
		end := bv.ByteOffset + bv.ByteLength
		if bv.ByteOffset < 0 || end > len(buf) {
			return nil, fmt.Errorf("buffer view %d exceeds buffer", bi)
		}
		return buf[bv.ByteOffset:end], nil
	}
	if img.IsEmbeddedResource() {
		return img.MarshalData()
	}
	if img.URI == "" {
		return nil, fmt.Errorf("image has no source")
	}
	uri, err := url.PathUnescape(img.URI)
	if err != nil {
		uri = img.URI
	}
	return os.ReadFile(filepath.Join(dir, filepath.FromSlash(uri)))
}

// imageHint is a file name whose extension tells texture.Decode the format.
func imageHint(img *gltf.Image) string {
	switch strings.ToLower(img.MimeType) {
	case "image/png":
		return "image.png"
	case "image/jpeg":
		return "image.jpg"
	}
	return img.URI
}

func convertMode(m gltf.PrimitiveMode) gpu.Topology {
	switch m {
	case gltf.PrimitivePoints:
		return gpu.Points
	case gltf.PrimitiveLines:
		return gpu.Lines
	case gltf.PrimitiveLineLoop:
		return gpu.LineLoop
	case gltf.PrimitiveLineStrip:
		return gpu.LineStrip
	case gltf.PrimitiveTriangleStrip:
		return gpu.TriangleStrip
	case gltf.PrimitiveTriangleFan:
		return gpu.TriangleFan
	default:
		return gpu.Triangles
	}
}

func convertSamplers(src []*gltf.Sampler) []gpu.SamplerDesc {
	out := make([]gpu.SamplerDesc, len(src))
	for i, s := range src {
		desc := gpu.DefaultSampler()
		switch s.MagFilter {
		case gltf.MagNearest:
			desc.MagFilter = gpu.FilterNearest
		case gltf.MagLinear:
			desc.MagFilter = gpu.FilterLinear
		}
		switch s.MinFilter {
		case gltf.MinNearest:
			desc.MinFilter = gpu.FilterNearest
		case gltf.MinLinear:
			desc.MinFilter = gpu.FilterLinear
		case gltf.MinNearestMipMapNearest:
			desc.MinFilter = gpu.FilterNearestMipmapNearest
		case gltf.MinLinearMipMapNearest:
			desc.MinFilter = gpu.FilterLinearMipmapNearest
		case gltf.MinNearestMipMapLinear:
			desc.MinFilter = gpu.FilterNearestMipmapLinear
		case gltf.MinLinearMipMapLinear:
			desc.MinFilter = gpu.FilterLinearMipmapLinear
		}
		desc.WrapS = convertWrap(s.WrapS)
		desc.WrapT = convertWrap(s.WrapT)
		out[i] = desc
	}
	return out
}

func convertWrap(w gltf.WrappingMode) gpu.Wrap {
	switch w {
	case gltf.WrapClampToEdge:
		return gpu.WrapClampToEdge
	case gltf.WrapMirroredRepeat:
		return gpu.WrapMirroredRepeat
	default:
		return gpu.WrapRepeat
	}
}

var _ Decoder = (*GLTFDecoder)(nil)
