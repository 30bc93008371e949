package gpu

import "fmt"

// Texture owns one GPU texture object.
type Texture struct {
	dev  Device
	id   uint32
	desc TextureDesc
}

// NewTexture creates a texture and uploads pixels (may be nil for render targets).
func NewTexture(dev Device, desc TextureDesc, pixels []byte) (*Texture, error) {
	id, err := dev.CreateTexture(desc, pixels)
	if err != nil {
		return nil, fmt.Errorf("creating %dx%d texture: %w", desc.Width, desc.Height, err)
	}
	return &Texture{dev: dev, id: id, desc: desc}, nil
}

// ID returns the device handle, or 0 after Release.
func (t *Texture) ID() uint32 {
	if t == nil {
		return 0
	}
	return t.id
}

// Desc returns the description the texture was created with.
func (t *Texture) Desc() TextureDesc {
	return t.desc
}

// Release deletes the texture. Calling it again is a no-op.
func (t *Texture) Release() {
	if t == nil || t.id == 0 {
		return
	}
	t.dev.DeleteTexture(t.id)
	t.id = 0
}

// Buffer owns one GPU buffer object.
type Buffer struct {
	dev    Device
	id     uint32
	target BufferTarget
	size   int
}

// NewBuffer creates a buffer filled with data.
func NewBuffer(dev Device, target BufferTarget, data []byte) (*Buffer, error) {
	id, err := dev.CreateBuffer(target, data)
	if err != nil {
		return nil, fmt.Errorf("creating %d byte buffer: %w", len(data), err)
	}
	return &Buffer{dev: dev, id: id, target: target, size: len(data)}, nil
}

// ID returns the device handle, or 0 after Release.
func (b *Buffer) ID() uint32 {
	if b == nil {
		return 0
	}
	return b.id
}

// Size returns the buffer size in bytes.
func (b *Buffer) Size() int {
	return b.size
}

// Bind binds the buffer to its target.
func (b *Buffer) Bind() {
	b.dev.BindBuffer(b.target, b.id)
}

// Release deletes the buffer. Calling it again is a no-op.
func (b *Buffer) Release() {
	if b == nil || b.id == 0 {
		return
	}
	b.dev.DeleteBuffer(b.id)
	b.id = 0
}

// VertexArray owns one vertex array object.
type VertexArray struct {
	dev Device
	id  uint32
}

// NewVertexArray creates an empty vertex array.
func NewVertexArray(dev Device) (*VertexArray, error) {
	id, err := dev.CreateVertexArray()
	if err != nil {
		return nil, fmt.Errorf("creating vertex array: %w", err)
	}
	return &VertexArray{dev: dev, id: id}, nil
}

// ID returns the device handle, or 0 after Release.
func (v *VertexArray) ID() uint32 {
	if v == nil {
		return 0
	}
	return v.id
}

// Bind makes this the current vertex array.
func (v *VertexArray) Bind() {
	v.dev.BindVertexArray(v.id)
}

// Release deletes the vertex array. Calling it again is a no-op.
func (v *VertexArray) Release() {
	if v == nil || v.id == 0 {
		return
	}
	v.dev.DeleteVertexArray(v.id)
	v.id = 0
}
