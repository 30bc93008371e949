// Package framebuffer provides offscreen render targets built on gpu.Device.
package framebuffer

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/lumen/internal/engine/gpu"
)

// Spec describes the attachments of a framebuffer.
type Spec struct {
	Width  int
	Height int
	// Colors lists one format per color attachment, in attachment order.
	Colors []gpu.TextureFormat
	// Depth is FormatNone for a framebuffer without a depth attachment.
	Depth gpu.TextureFormat

	// Sampler and DepthSampler default to ClampSampler when left zero.
	Sampler      gpu.SamplerDesc
	DepthSampler gpu.SamplerDesc
}

// ClampSampler is linear filtering clamped to the edge, the usual choice
// for screen-space targets.
func ClampSampler() gpu.SamplerDesc {
	return gpu.SamplerDesc{
		MinFilter: gpu.FilterLinear,
		MagFilter: gpu.FilterLinear,
		WrapS:     gpu.WrapClampToEdge,
		WrapT:     gpu.WrapClampToEdge,
	}
}

// NearestSampler samples exact texels, clamped to the edge.
func NearestSampler() gpu.SamplerDesc {
	return gpu.SamplerDesc{
		MinFilter: gpu.FilterNearest,
		MagFilter: gpu.FilterNearest,
		WrapS:     gpu.WrapClampToEdge,
		WrapT:     gpu.WrapClampToEdge,
	}
}

// Framebuffer manages a render target and, unless aliased, its textures.
type Framebuffer struct {
	dev    gpu.Device
	id     uint32
	spec   Spec
	colors []*gpu.Texture
	depth  *gpu.Texture
	// aliased framebuffers attach textures owned by another framebuffer.
	aliased bool
}

// New creates a framebuffer and its attachments.
func New(dev gpu.Device, spec Spec) (*Framebuffer, error) {
	spec.Width = max(spec.Width, 1)
	spec.Height = max(spec.Height, 1)
	if spec.Sampler == (gpu.SamplerDesc{}) {
		spec.Sampler = ClampSampler()
	}
	if spec.DepthSampler == (gpu.SamplerDesc{}) {
		spec.DepthSampler = NearestSampler()
	}

	fb := &Framebuffer{dev: dev, spec: spec}
	if err := fb.create(); err != nil {
		fb.Destroy()
		return nil, fmt.Errorf("creating %dx%d framebuffer: %w", spec.Width, spec.Height, err)
	}
	return fb, nil
}

// NewAliased creates a framebuffer whose attachments belong to someone else.
// Destroy releases only the framebuffer object.
func NewAliased(dev gpu.Device, width, height int, colors []*gpu.Texture, depth *gpu.Texture) (*Framebuffer, error) {
	fb := &Framebuffer{
		dev:     dev,
		spec:    Spec{Width: width, Height: height},
		colors:  colors,
		depth:   depth,
		aliased: true,
	}
	id, err := dev.CreateFramebuffer()
	if err != nil {
		return nil, fmt.Errorf("creating aliased framebuffer: %w", err)
	}
	fb.id = id
	if err := fb.attach(); err != nil {
		fb.Destroy()
		return nil, fmt.Errorf("creating aliased framebuffer: %w", err)
	}
	return fb, nil
}

func (fb *Framebuffer) create() error {
	id, err := fb.dev.CreateFramebuffer()
	if err != nil {
		return err
	}
	fb.id = id

	for i, format := range fb.spec.Colors {
		tex, err := gpu.NewTexture(fb.dev, gpu.TextureDesc{
			Width:   fb.spec.Width,
			Height:  fb.spec.Height,
			Format:  format,
			Sampler: fb.spec.Sampler,
		}, nil)
		if err != nil {
			return fmt.Errorf("color attachment %d: %w", i, err)
		}
		fb.colors = append(fb.colors, tex)
	}

	if fb.spec.Depth != gpu.FormatNone {
		tex, err := gpu.NewTexture(fb.dev, gpu.TextureDesc{
			Width:   fb.spec.Width,
			Height:  fb.spec.Height,
			Format:  fb.spec.Depth,
			Sampler: fb.spec.DepthSampler,
		}, nil)
		if err != nil {
			return fmt.Errorf("depth attachment: %w", err)
		}
		fb.depth = tex
	}

	return fb.attach()
}

func (fb *Framebuffer) attach() error {
	for i, tex := range fb.colors {
		fb.dev.AttachTexture(fb.id, gpu.ColorAttachment(i), tex.ID())
	}
	if fb.depth != nil {
		fb.dev.AttachTexture(fb.id, gpu.DepthAttachment, fb.depth.ID())
	}
	fb.dev.SetDrawBuffers(fb.id, len(fb.colors))

	if err := fb.dev.FramebufferStatus(fb.id); err != nil {
		return err
	}
	fb.dev.BindFramebuffer(gpu.DefaultFramebuffer)
	return nil
}

// Bind makes this framebuffer the current render target and sets the viewport.
func (fb *Framebuffer) Bind() {
	fb.dev.BindFramebuffer(fb.id)
	fb.dev.Viewport(0, 0, fb.spec.Width, fb.spec.Height)
}

// Clear clears the attachments present on this framebuffer.
func (fb *Framebuffer) Clear(color mgl32.Vec4) {
	var mask gpu.ClearMask
	if len(fb.colors) > 0 {
		mask |= gpu.ClearColor
	}
	if fb.depth != nil {
		mask |= gpu.ClearDepth
	}
	fb.dev.Clear(mask, color)
}

// ID returns the framebuffer object handle.
func (fb *Framebuffer) ID() uint32 {
	return fb.id
}

// ColorTexture returns a borrowed view of color attachment i.
func (fb *Framebuffer) ColorTexture(i int) *gpu.Texture {
	if i < 0 || i >= len(fb.colors) {
		return nil
	}
	return fb.colors[i]
}

// DepthTexture returns a borrowed view of the depth attachment, or nil.
func (fb *Framebuffer) DepthTexture() *gpu.Texture {
	return fb.depth
}

// Size returns the framebuffer dimensions.
func (fb *Framebuffer) Size() (width, height int) {
	return fb.spec.Width, fb.spec.Height
}

// Resize recreates the attachments when the size changed. Aliased
// framebuffers cannot be resized; recreate them from the owner instead.
func (fb *Framebuffer) Resize(width, height int) error {
	width, height = max(width, 1), max(height, 1)
	if width == fb.spec.Width && height == fb.spec.Height {
		return nil
	}
	if fb.aliased {
		return fmt.Errorf("resizing aliased framebuffer %d", fb.id)
	}

	fb.Destroy()
	fb.spec.Width, fb.spec.Height = width, height
	if err := fb.create(); err != nil {
		fb.Destroy()
		return fmt.Errorf("resizing framebuffer to %dx%d: %w", width, height, err)
	}
	return nil
}

// ReadPixels reads color attachment 0 as RGBA8, bottom row first.
func (fb *Framebuffer) ReadPixels() ([]byte, error) {
	return fb.dev.ReadPixels(fb.id, 0, 0, fb.spec.Width, fb.spec.Height)
}

// Destroy releases the framebuffer and the textures it owns.
func (fb *Framebuffer) Destroy() {
	if fb == nil {
		return
	}
	if fb.id != 0 {
		fb.dev.DeleteFramebuffer(fb.id)
		fb.id = 0
	}
	if !fb.aliased {
		for _, tex := range fb.colors {
			tex.Release()
		}
		fb.depth.Release()
	}
	fb.colors = nil
	fb.depth = nil
}
