// Package asset decodes model files into an in-memory document that the
// resource store uploads to the GPU.
package asset

import (
	"encoding/binary"
	"errors"
	"image"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/lumen/internal/engine/gpu"
)

var (
	// ErrMissingAttribute reports a primitive without a required vertex attribute.
	ErrMissingAttribute = errors.New("asset: missing vertex attribute")
	// ErrDecode reports a malformed or unreadable model file.
	ErrDecode = errors.New("asset: malformed model")
)

// None marks an absent index (material, texture, sampler, mesh).
const None = -1

// Attribute is a vertex attribute slot. The value is also the shader
// attribute location.
type Attribute int

const (
	Position Attribute = iota
	Normal
	Tangent
	TexCoord0

	AttributeCount
)

var attributeNames = [AttributeCount]string{"POSITION", "NORMAL", "TANGENT", "TEXCOORD_0"}

func (a Attribute) String() string {
	if a < 0 || a >= AttributeCount {
		return "UNKNOWN"
	}
	return attributeNames[a]
}

// View is tightly packed vertex or index data.
type View struct {
	Data       []byte
	Components int
	Type       gpu.ComponentType
	Normalized bool
	Count      int
}

// ElementSize returns the size in bytes of one element.
func (v View) ElementSize() int {
	return v.Components * v.Type.Size()
}

// Floats returns the data as float32 values, or nil if the view is not float.
func (v View) Floats() []float32 {
	if v.Type != gpu.Float {
		return nil
	}
	out := make([]float32, len(v.Data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(v.Data[i*4:]))
	}
	return out
}

// Uint32s returns unsigned integer data widened to uint32.
func (v View) Uint32s() []uint32 {
	n := v.Count * v.Components
	out := make([]uint32, n)
	for i := range out {
		switch v.Type {
		case gpu.UnsignedByte:
			out[i] = uint32(v.Data[i])
		case gpu.UnsignedShort:
			out[i] = uint32(binary.LittleEndian.Uint16(v.Data[i*2:]))
		default:
			out[i] = binary.LittleEndian.Uint32(v.Data[i*4:])
		}
	}
	return out
}

// FloatView packs float32 values into a view of the given width.
func FloatView(values []float32, components int) View {
	data := make([]byte, len(values)*4)
	for i, f := range values {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(f))
	}
	return View{Data: data, Components: components, Type: gpu.Float, Count: len(values) / components}
}

// IndexView packs indices as uint32.
func IndexView(indices []uint32) View {
	data := make([]byte, len(indices)*4)
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(data[i*4:], idx)
	}
	return View{Data: data, Components: 1, Type: gpu.UnsignedInt, Count: len(indices)}
}

// Primitive is one draw call worth of geometry.
type Primitive struct {
	Attributes [AttributeCount]View
	Indices    View
	Material   int
	Mode       gpu.Topology
}

// Mesh groups the primitives of one glTF mesh.
type Mesh struct {
	Name       string
	Primitives []Primitive
}

// Node places a mesh in the model hierarchy.
type Node struct {
	Name        string
	Mesh        int
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
	Scale       mgl32.Vec3
	Children    []int
}

// Material references textures by index into Document.Textures.
type Material struct {
	Name              string
	BaseColor         mgl32.Vec4
	Diffuse           int
	Normal            int
	MetallicRoughness int
}

// Texture pairs an image with a sampler. Name is informational only.
type Texture struct {
	Name    string
	Sampler int
	Image   int
}

// Key identifies a texture upload for deduplication. Sampler and image
// indices only mean something inside one file, so the key carries the file.
type Key struct {
	Path      string
	ImageName string
	Sampler   int
	Image     int
}

// Image is a decoded texture source. Pixels is nil when decoding failed.
type Image struct {
	Name   string
	Pixels *image.RGBA
}

// Document is a decoded model.
type Document struct {
	Path      string
	Nodes     []Node
	Roots     []int
	Meshes    []Mesh
	Materials []Material
	Textures  []Texture
	Samplers  []gpu.SamplerDesc
	Images    []Image
}

// Sampler returns the sampler of texture t, or the default sampler.
func (d *Document) Sampler(t Texture) gpu.SamplerDesc {
	if t.Sampler < 0 || t.Sampler >= len(d.Samplers) {
		return gpu.DefaultSampler()
	}
	return d.Samplers[t.Sampler]
}

// Key returns the deduplication key of texture t. Textures of the same
// file that share a sampler and an image share a key, whatever their names.
func (d *Document) Key(t Texture) Key {
	k := Key{Path: d.Path, Sampler: t.Sampler, Image: t.Image}
	if t.Image >= 0 && t.Image < len(d.Images) {
		k.ImageName = d.Images[t.Image].Name
	}
	return k
}

// Decoder turns a model file into a Document.
type Decoder interface {
	Decode(path string) (*Document, error)
}
