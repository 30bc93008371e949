// Package glcore implements gpu.Device on OpenGL 4.1 core profile.
package glcore

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/lumen/internal/engine/gpu"
	"github.com/Faultbox/lumen/internal/logger"
)

// Device issues OpenGL calls. Must be created AFTER the GL context exists.
type Device struct {
	log *zap.Logger
}

// New initializes the OpenGL function pointers and default state.
func New() (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	d := &Device{log: logger.Named("gl")}
	d.log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	return d, nil
}

// CreateTexture allocates a 2D texture and uploads pixels when given.
func (d *Device) CreateTexture(desc gpu.TextureDesc, pixels []byte) (uint32, error) {
	internal, format, xtype := textureFormat(desc.Format)

	var id uint32
	gl.GenTextures(1, &id)
	if id == 0 {
		return 0, gpu.ErrOutOfMemory
	}
	gl.BindTexture(gl.TEXTURE_2D, id)

	var ptr = gl.Ptr(nil)
	if len(pixels) > 0 {
		ptr = gl.Ptr(pixels)
	}
	gl.TexImage2D(gl.TEXTURE_2D, 0, internal, int32(desc.Width), int32(desc.Height), 0, format, xtype, ptr)

	s := desc.Sampler
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, filter(s.MinFilter, desc.Mipmaps))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, filter(s.MagFilter, false))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, wrap(s.WrapS))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, wrap(s.WrapT))
	if s.WrapS == gpu.WrapClampToBorder || s.WrapT == gpu.WrapClampToBorder {
		border := s.Border
		gl.TexParameterfv(gl.TEXTURE_2D, gl.TEXTURE_BORDER_COLOR, &border[0])
	}
	if desc.Mipmaps && len(pixels) > 0 {
		gl.GenerateMipmap(gl.TEXTURE_2D)
	}
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if err := checkError("texture upload"); err != nil {
		gl.DeleteTextures(1, &id)
		return 0, err
	}
	return id, nil
}

func (d *Device) DeleteTexture(id uint32) { gl.DeleteTextures(1, &id) }

func (d *Device) BindTexture(unit int, id uint32) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(gl.TEXTURE_2D, id)
}

// CreateBuffer allocates a static buffer holding data.
func (d *Device) CreateBuffer(target gpu.BufferTarget, data []byte) (uint32, error) {
	var id uint32
	gl.GenBuffers(1, &id)
	if id == 0 {
		return 0, gpu.ErrOutOfMemory
	}
	t := bufferTarget(target)
	gl.BindBuffer(t, id)
	if len(data) > 0 {
		gl.BufferData(t, len(data), gl.Ptr(data), gl.STATIC_DRAW)
	}
	if err := checkError("buffer upload"); err != nil {
		gl.DeleteBuffers(1, &id)
		return 0, err
	}
	return id, nil
}

func (d *Device) DeleteBuffer(id uint32) { gl.DeleteBuffers(1, &id) }

func (d *Device) BindBuffer(target gpu.BufferTarget, id uint32) {
	gl.BindBuffer(bufferTarget(target), id)
}

func (d *Device) CreateVertexArray() (uint32, error) {
	var id uint32
	gl.GenVertexArrays(1, &id)
	if id == 0 {
		return 0, gpu.ErrOutOfMemory
	}
	return id, nil
}

func (d *Device) DeleteVertexArray(id uint32) { gl.DeleteVertexArrays(1, &id) }

func (d *Device) BindVertexArray(id uint32) { gl.BindVertexArray(id) }

// VertexAttrib enables attribute index and points it into the bound array buffer.
func (d *Device) VertexAttrib(index uint32, l gpu.AttribLayout) {
	gl.EnableVertexAttribArray(index)
	gl.VertexAttribPointer(index, int32(l.Components), componentType(l.Type), l.Normalized,
		int32(l.Stride), gl.PtrOffset(l.Offset))
}

func (d *Device) CreateFramebuffer() (uint32, error) {
	var id uint32
	gl.GenFramebuffers(1, &id)
	if id == 0 {
		return 0, gpu.ErrOutOfMemory
	}
	return id, nil
}

func (d *Device) DeleteFramebuffer(id uint32) { gl.DeleteFramebuffers(1, &id) }

func (d *Device) BindFramebuffer(id uint32) { gl.BindFramebuffer(gl.FRAMEBUFFER, id) }

func (d *Device) AttachTexture(fbo uint32, at gpu.Attachment, tex uint32) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, fbo)
	point := uint32(gl.DEPTH_ATTACHMENT)
	if at != gpu.DepthAttachment {
		point = gl.COLOR_ATTACHMENT0 + uint32(at)
	}
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, point, gl.TEXTURE_2D, tex, 0)
}

// SetDrawBuffers enables the first count color attachments; zero disables color output.
func (d *Device) SetDrawBuffers(fbo uint32, count int) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, fbo)
	if count == 0 {
		gl.DrawBuffer(gl.NONE)
		gl.ReadBuffer(gl.NONE)
		return
	}
	bufs := make([]uint32, count)
	for i := range bufs {
		bufs[i] = gl.COLOR_ATTACHMENT0 + uint32(i)
	}
	gl.DrawBuffers(int32(count), &bufs[0])
}

func (d *Device) FramebufferStatus(fbo uint32) error {
	gl.BindFramebuffer(gl.FRAMEBUFFER, fbo)
	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	if status != gl.FRAMEBUFFER_COMPLETE {
		return fmt.Errorf("framebuffer incomplete: 0x%x", status)
	}
	return nil
}

func (d *Device) BlitDepth(src, dst uint32, width, height int) {
	d.blit(src, dst, width, height, gl.DEPTH_BUFFER_BIT)
}

func (d *Device) BlitColor(src, dst uint32, width, height int) {
	d.blit(src, dst, width, height, gl.COLOR_BUFFER_BIT)
}

func (d *Device) blit(src, dst uint32, width, height int, mask uint32) {
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, src)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, dst)
	w, h := int32(width), int32(height)
	gl.BlitFramebuffer(0, 0, w, h, 0, 0, w, h, mask, gl.NEAREST)
	gl.BindFramebuffer(gl.FRAMEBUFFER, dst)
}

// ReadPixels reads RGBA8 pixels from the color attachment of fbo.
// Rows are returned bottom-up as OpenGL stores them.
func (d *Device) ReadPixels(fbo uint32, x, y, width, height int) ([]byte, error) {
	pixels := make([]byte, width*height*4)
	gl.BindFramebuffer(gl.FRAMEBUFFER, fbo)
	if fbo == 0 {
		gl.ReadBuffer(gl.BACK)
	} else {
		gl.ReadBuffer(gl.COLOR_ATTACHMENT0)
	}
	gl.ReadPixels(int32(x), int32(y), int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	if err := checkError("read pixels"); err != nil {
		return nil, err
	}
	return pixels, nil
}

func (d *Device) Viewport(x, y, width, height int) {
	gl.Viewport(int32(x), int32(y), int32(width), int32(height))
}

func (d *Device) Clear(mask gpu.ClearMask, color mgl32.Vec4) {
	var bits uint32
	if mask&gpu.ClearColor != 0 {
		gl.ClearColor(color[0], color[1], color[2], color[3])
		bits |= gl.COLOR_BUFFER_BIT
	}
	if mask&gpu.ClearDepth != 0 {
		gl.DepthMask(true)
		bits |= gl.DEPTH_BUFFER_BIT
	}
	gl.Clear(bits)
}

func (d *Device) SetDepth(s gpu.DepthState) {
	if s.Test {
		gl.Enable(gl.DEPTH_TEST)
	} else {
		gl.Disable(gl.DEPTH_TEST)
	}
	gl.DepthMask(s.Write)
	if s.LessEqual {
		gl.DepthFunc(gl.LEQUAL)
	} else {
		gl.DepthFunc(gl.LESS)
	}
}

func (d *Device) SetBlend(mode gpu.BlendMode) {
	switch mode {
	case gpu.BlendAlpha:
		gl.Enable(gl.BLEND)
		gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	case gpu.BlendAdditive:
		gl.Enable(gl.BLEND)
		gl.BlendFunc(gl.ONE, gl.ONE)
	case gpu.BlendDecal:
		gl.Enable(gl.BLEND)
		gl.BlendFuncSeparate(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA, gl.ZERO, gl.ONE)
	case gpu.BlendWriteAlpha:
		gl.Enable(gl.BLEND)
		gl.BlendFuncSeparate(gl.ZERO, gl.ONE, gl.ONE, gl.ZERO)
	default:
		gl.Disable(gl.BLEND)
	}
}

func (d *Device) SetCull(mode gpu.CullMode) {
	switch mode {
	case gpu.CullBack:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.BACK)
	case gpu.CullFront:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.FRONT)
	default:
		gl.Disable(gl.CULL_FACE)
	}
}

func (d *Device) DrawElements(mode gpu.Topology, count int, indexType gpu.ComponentType) {
	gl.DrawElements(topology(mode), int32(count), componentType(indexType), nil)
}

func (d *Device) DrawArrays(mode gpu.Topology, first, count int) {
	gl.DrawArrays(topology(mode), int32(first), int32(count))
}

func checkError(op string) error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		if code == gl.OUT_OF_MEMORY {
			return fmt.Errorf("%s: %w", op, gpu.ErrOutOfMemory)
		}
		return fmt.Errorf("%s: gl error 0x%x", op, code)
	}
	return nil
}
