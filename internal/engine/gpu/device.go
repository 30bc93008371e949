// Package gpu defines the graphics device the renderer issues commands to.
//
// All render code talks to a Device; the OpenGL implementation lives in
// gpu/glcore and a recording double for tests lives in gpu/gputest.
package gpu

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrOutOfMemory is returned (wrapped) when the device cannot create a resource.
var ErrOutOfMemory = errors.New("gpu: resource creation failed")

// ErrCompile is returned (wrapped) when a program fails to compile or link.
var ErrCompile = errors.New("gpu: program build failed")

// TextureFormat is the internal storage format of a texture.
type TextureFormat int

const (
	FormatNone TextureFormat = iota
	FormatRGBA8
	FormatRGB8
	FormatRGBA16F
	FormatRGB16F
	FormatR16F
	FormatDepth24
	FormatDepth32F
)

// IsDepth reports whether the format is a depth format.
func (f TextureFormat) IsDepth() bool {
	return f == FormatDepth24 || f == FormatDepth32F
}

// Filter is a texture sampling filter.
type Filter int

const (
	FilterLinear Filter = iota
	FilterNearest
	FilterNearestMipmapNearest
	FilterLinearMipmapNearest
	FilterNearestMipmapLinear
	FilterLinearMipmapLinear
)

// Wrap is a texture coordinate wrapping mode.
type Wrap int

const (
	WrapRepeat Wrap = iota
	WrapClampToEdge
	WrapMirroredRepeat
	WrapClampToBorder
)

// SamplerDesc describes how a texture is sampled.
type SamplerDesc struct {
	MinFilter Filter
	MagFilter Filter
	WrapS     Wrap
	WrapT     Wrap
	Border    [4]float32
}

// DefaultSampler is trilinear filtering with repeat wrapping.
func DefaultSampler() SamplerDesc {
	return SamplerDesc{
		MinFilter: FilterLinearMipmapLinear,
		MagFilter: FilterLinear,
		WrapS:     WrapRepeat,
		WrapT:     WrapRepeat,
	}
}

// TextureDesc describes a 2D texture.
type TextureDesc struct {
	Width   int
	Height  int
	Format  TextureFormat
	Sampler SamplerDesc
	Mipmaps bool
}

// BufferTarget is the binding point of a buffer.
type BufferTarget int

const (
	ArrayBuffer BufferTarget = iota
	ElementArrayBuffer
)

// ComponentType is the scalar type of vertex or index data.
type ComponentType int

const (
	Float ComponentType = iota
	Byte
	UnsignedByte
	Short
	UnsignedShort
	UnsignedInt
)

// Size returns the size in bytes of one component.
func (c ComponentType) Size() int {
	switch c {
	case Byte, UnsignedByte:
		return 1
	case Short, UnsignedShort:
		return 2
	default:
		return 4
	}
}

// Topology is the primitive assembly mode of a draw.
type Topology int

const (
	Triangles Topology = iota
	TriangleStrip
	TriangleFan
	Points
	Lines
	LineLoop
	LineStrip
)

// AttribLayout describes one vertex attribute inside the bound array buffer.
type AttribLayout struct {
	Components int
	Type       ComponentType
	Normalized bool
	Stride     int
	Offset     int
}

// Attachment is a framebuffer attachment point.
type Attachment int

const (
	ColorAttachment0 Attachment = iota
	ColorAttachment1
	ColorAttachment2
	ColorAttachment3
	DepthAttachment Attachment = 100
)

// ColorAttachment returns the i-th color attachment point.
func ColorAttachment(i int) Attachment {
	return ColorAttachment0 + Attachment(i)
}

// ClearMask selects which buffers Clear touches.
type ClearMask int

const (
	ClearColor ClearMask = 1 << iota
	ClearDepth
)

// BlendMode selects the color blending equation.
type BlendMode int

const (
	BlendNone BlendMode = iota
	BlendAlpha
	BlendAdditive
	// BlendDecal alpha-blends color channels and keeps the destination alpha.
	BlendDecal
	// BlendWriteAlpha keeps destination color and replaces alpha.
	BlendWriteAlpha
)

// CullMode selects face culling.
type CullMode int

const (
	CullNone CullMode = iota
	CullBack
	CullFront
)

// DepthState configures depth testing and writing.
type DepthState struct {
	Test  bool
	Write bool
	// LessEqual switches the comparison from LESS to LEQUAL.
	LessEqual bool
}

// DefaultFramebuffer is the window surface.
const DefaultFramebuffer uint32 = 0

// Device is the set of GPU operations the renderer needs. Implementations
// are not safe for concurrent use; every call must come from the thread
// that owns the graphics context.
type Device interface {
	CreateTexture(desc TextureDesc, pixels []byte) (uint32, error)
	DeleteTexture(id uint32)
	BindTexture(unit int, id uint32)

	CreateBuffer(target BufferTarget, data []byte) (uint32, error)
	DeleteBuffer(id uint32)
	BindBuffer(target BufferTarget, id uint32)

	CreateVertexArray() (uint32, error)
	DeleteVertexArray(id uint32)
	BindVertexArray(id uint32)
	VertexAttrib(index uint32, layout AttribLayout)

	CreateFramebuffer() (uint32, error)
	DeleteFramebuffer(id uint32)
	BindFramebuffer(id uint32)
	AttachTexture(fbo uint32, at Attachment, tex uint32)
	SetDrawBuffers(fbo uint32, count int)
	FramebufferStatus(fbo uint32) error
	BlitDepth(src, dst uint32, width, height int)
	BlitColor(src, dst uint32, width, height int)
	ReadPixels(fbo uint32, x, y, width, height int) ([]byte, error)

	Viewport(x, y, width, height int)
	Clear(mask ClearMask, color mgl32.Vec4)
	SetDepth(state DepthState)
	SetBlend(mode BlendMode)
	SetCull(mode CullMode)

	DrawElements(mode Topology, count int, indexType ComponentType)
	DrawArrays(mode Topology, first, count int)

	CreateProgram(vertexSrc, fragmentSrc string) (uint32, error)
	DeleteProgram(id uint32)
	UseProgram(id uint32)
	UniformLocation(program uint32, name string) int32
	UniformInt(loc int32, v int32)
	UniformFloat(loc int32, v float32)
	UniformFloats(loc int32, v []float32)
	UniformVec2(loc int32, v mgl32.Vec2)
	UniformVec3(loc int32, v mgl32.Vec3)
	UniformVec4(loc int32, v mgl32.Vec4)
	UniformMat4(loc int32, m mgl32.Mat4)
	UniformMat4s(loc int32, ms []mgl32.Mat4)
}
