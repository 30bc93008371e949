package glcore

import (
	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/lumen/internal/engine/gpu"
)

// textureFormat maps a gpu format to (internal format, pixel format, pixel type).
func textureFormat(f gpu.TextureFormat) (int32, uint32, uint32) {
	switch f {
	case gpu.FormatRGB8:
		return gl.RGB8, gl.RGB, gl.UNSIGNED_BYTE
	case gpu.FormatRGBA16F:
		return gl.RGBA16F, gl.RGBA, gl.FLOAT
	case gpu.FormatRGB16F:
		return gl.RGB16F, gl.RGB, gl.FLOAT
	case gpu.FormatR16F:
		return gl.R16F, gl.RED, gl.FLOAT
	case gpu.FormatDepth24:
		return gl.DEPTH_COMPONENT24, gl.DEPTH_COMPONENT, gl.FLOAT
	case gpu.FormatDepth32F:
		return gl.DEPTH_COMPONENT32F, gl.DEPTH_COMPONENT, gl.FLOAT
	default:
		return gl.RGBA8, gl.RGBA, gl.UNSIGNED_BYTE
	}
}

func filter(f gpu.Filter, mipmaps bool) int32 {
	if !mipmaps {
		// Mipmap filters on a texture without mipmaps make it incomplete.
		switch f {
		case gpu.FilterNearest, gpu.FilterNearestMipmapNearest, gpu.FilterNearestMipmapLinear:
			return gl.NEAREST
		default:
			return gl.LINEAR
		}
	}
	switch f {
	case gpu.FilterNearest:
		return gl.NEAREST
	case gpu.FilterNearestMipmapNearest:
		return gl.NEAREST_MIPMAP_NEAREST
	case gpu.FilterLinearMipmapNearest:
		return gl.LINEAR_MIPMAP_NEAREST
	case gpu.FilterNearestMipmapLinear:
		return gl.NEAREST_MIPMAP_LINEAR
	case gpu.FilterLinearMipmapLinear:
		return gl.LINEAR_MIPMAP_LINEAR
	default:
		return gl.LINEAR
	}
}

func wrap(w gpu.Wrap) int32 {
	switch w {
	case gpu.WrapClampToEdge:
		return gl.CLAMP_TO_EDGE
	case gpu.WrapMirroredRepeat:
		return gl.MIRRORED_REPEAT
	case gpu.WrapClampToBorder:
		return gl.CLAMP_TO_BORDER
	default:
		return gl.REPEAT
	}
}

func bufferTarget(t gpu.BufferTarget) uint32 {
	if t == gpu.ElementArrayBuffer {
		return gl.ELEMENT_ARRAY_BUFFER
	}
	return gl.ARRAY_BUFFER
}

func componentType(c gpu.ComponentType) uint32 {
	switch c {
	case gpu.Byte:
		return gl.BYTE
	case gpu.UnsignedByte:
		return gl.UNSIGNED_BYTE
	case gpu.Short:
		return gl.SHORT
	case gpu.UnsignedShort:
		return gl.UNSIGNED_SHORT
	case gpu.UnsignedInt:
		return gl.UNSIGNED_INT
	default:
		return gl.FLOAT
	}
}

func topology(t gpu.Topology) uint32 {
	switch t {
	case gpu.TriangleStrip:
		return gl.TRIANGLE_STRIP
	case gpu.TriangleFan:
		return gl.TRIANGLE_FAN
	case gpu.Points:
		return gl.POINTS
	case gpu.Lines:
		return gl.LINES
	case gpu.LineLoop:
		return gl.LINE_LOOP
	case gpu.LineStrip:
		return gl.LINE_STRIP
	default:
		return gl.TRIANGLES
	}
}
