// Package gputest provides a recording gpu.Device for tests that run
// without a graphics context.
package gputest

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/lumen/internal/engine/gpu"
)

// Kind names a resource class tracked by the fake device.
type Kind string

const (
	KindTexture     Kind = "texture"
	KindBuffer      Kind = "buffer"
	KindVertexArray Kind = "vertex_array"
	KindFramebuffer Kind = "framebuffer"
	KindProgram     Kind = "program"
)

// Draw is one recorded draw call.
type Draw struct {
	Framebuffer uint32
	Program     uint32
	Mode        gpu.Topology
	Count       int
}

// Upload is one recorded uniform upload.
type Upload struct {
	Program uint32
	Name    string
	Value   any
}

// Device records every call made through the gpu.Device interface.
type Device struct {
	nextID  uint32
	nextLoc int32

	live  map[Kind]map[uint32]bool
	calls map[string]int

	textures map[uint32]gpu.TextureDesc
	attached map[uint32]map[gpu.Attachment]uint32

	// program -> uniform name -> location, and the reverse.
	locations map[uint32]map[string]int32
	locNames  map[int32]string

	boundFBO     uint32
	boundProgram uint32

	FramebufferBinds []uint32
	Draws            []Draw
	Uploads          []Upload
	Sources          map[uint32][2]string

	// Pixels, when set, is returned by ReadPixels instead of a zeroed buffer.
	Pixels []byte
	// FailCreate makes the Nth create call (1-based, any kind) fail. Zero disables.
	FailCreate int
	// FailCompile makes CreateProgram fail while set.
	FailCompile bool

	creates int
}

// New returns an empty recording device.
func New() *Device {
	return &Device{
		live:      make(map[Kind]map[uint32]bool),
		calls:     make(map[string]int),
		textures:  make(map[uint32]gpu.TextureDesc),
		attached:  make(map[uint32]map[gpu.Attachment]uint32),
		locations: make(map[uint32]map[string]int32),
		locNames:  make(map[int32]string),
		Sources:   make(map[uint32][2]string),
	}
}

var _ gpu.Device = (*Device)(nil)

// Calls returns how many times the named method was invoked.
func (d *Device) Calls(method string) int {
	return d.calls[method]
}

// Live returns the number of resources of kind that were created and not deleted.
func (d *Device) Live(kind Kind) int {
	return len(d.live[kind])
}

// LiveTotal returns the number of live resources of every kind.
func (d *Device) LiveTotal() int {
	n := 0
	for _, ids := range d.live {
		n += len(ids)
	}
	return n
}

// IsLive reports whether id of kind exists.
func (d *Device) IsLive(kind Kind, id uint32) bool {
	return d.live[kind][id]
}

// TextureDesc returns the description a live texture was created with.
func (d *Device) TextureDesc(id uint32) (gpu.TextureDesc, bool) {
	desc, ok := d.textures[id]
	return desc, ok
}

// Attached returns the texture bound at an attachment point of fbo.
func (d *Device) Attached(fbo uint32, at gpu.Attachment) uint32 {
	return d.attached[fbo][at]
}

// UploadsOf returns the recorded uploads of the named uniform, in order.
func (d *Device) UploadsOf(name string) []Upload {
	var out []Upload
	for _, u := range d.Uploads {
		if u.Name == name {
			out = append(out, u)
		}
	}
	return out
}

// DrawsTo returns the draws issued while fbo was bound.
func (d *Device) DrawsTo(fbo uint32) []Draw {
	var out []Draw
	for _, dr := range d.Draws {
		if dr.Framebuffer == fbo {
			out = append(out, dr)
		}
	}
	return out
}

// ResetFrame clears per-frame recordings but keeps resources.
func (d *Device) ResetFrame() {
	d.FramebufferBinds = nil
	d.Draws = nil
	d.Uploads = nil
	for k := range d.calls {
		delete(d.calls, k)
	}
}

// Leaks lists live resources, for assertion messages.
func (d *Device) Leaks() []string {
	var out []string
	for kind, ids := range d.live {
		for id := range ids {
			out = append(out, fmt.Sprintf("%s#%d", kind, id))
		}
	}
	sort.Strings(out)
	return out
}

var errInjected = errors.New("gputest: injected failure")

func (d *Device) create(kind Kind) (uint32, error) {
	d.creates++
	if d.FailCreate > 0 && d.creates == d.FailCreate {
		return 0, fmt.Errorf("%s: %w", errInjected, gpu.ErrOutOfMemory)
	}
	d.nextID++
	if d.live[kind] == nil {
		d.live[kind] = make(map[uint32]bool)
	}
	d.live[kind][d.nextID] = true
	return d.nextID, nil
}

func (d *Device) release(kind Kind, id uint32) {
	if id == 0 {
		return
	}
	if !d.live[kind][id] {
		panic(fmt.Sprintf("gputest: %s %d released twice or never created", kind, id))
	}
	delete(d.live[kind], id)
}

func (d *Device) CreateTexture(desc gpu.TextureDesc, pixels []byte) (uint32, error) {
	d.calls["CreateTexture"]++
	id, err := d.create(KindTexture)
	if err != nil {
		return 0, err
	}
	d.textures[id] = desc
	return id, nil
}

func (d *Device) DeleteTexture(id uint32) {
	d.calls["DeleteTexture"]++
	d.release(KindTexture, id)
	delete(d.textures, id)
}

func (d *Device) BindTexture(unit int, id uint32) { d.calls["BindTexture"]++ }

func (d *Device) CreateBuffer(target gpu.BufferTarget, data []byte) (uint32, error) {
	d.calls["CreateBuffer"]++
	return d.create(KindBuffer)
}

func (d *Device) DeleteBuffer(id uint32) {
	d.calls["DeleteBuffer"]++
	d.release(KindBuffer, id)
}

func (d *Device) BindBuffer(target gpu.BufferTarget, id uint32) { d.calls["BindBuffer"]++ }

func (d *Device) CreateVertexArray() (uint32, error) {
	d.calls["CreateVertexArray"]++
	return d.create(KindVertexArray)
}

func (d *Device) DeleteVertexArray(id uint32) {
	d.calls["DeleteVertexArray"]++
	d.release(KindVertexArray, id)
}

func (d *Device) BindVertexArray(id uint32) { d.calls["BindVertexArray"]++ }

func (d *Device) VertexAttrib(index uint32, layout gpu.AttribLayout) { d.calls["VertexAttrib"]++ }

func (d *Device) CreateFramebuffer() (uint32, error) {
	d.calls["CreateFramebuffer"]++
	id, err := d.create(KindFramebuffer)
	if err != nil {
		return 0, err
	}
	d.attached[id] = make(map[gpu.Attachment]uint32)
	return id, nil
}

func (d *Device) DeleteFramebuffer(id uint32) {
	d.calls["DeleteFramebuffer"]++
	d.release(KindFramebuffer, id)
	delete(d.attached, id)
}

func (d *Device) BindFramebuffer(id uint32) {
	d.calls["BindFramebuffer"]++
	d.boundFBO = id
	d.FramebufferBinds = append(d.FramebufferBinds, id)
}

func (d *Device) AttachTexture(fbo uint32, at gpu.Attachment, tex uint32) {
	d.calls["AttachTexture"]++
	if d.attached[fbo] != nil {
		d.attached[fbo][at] = tex
	}
}

func (d *Device) SetDrawBuffers(fbo uint32, count int) { d.calls["SetDrawBuffers"]++ }

// FramebufferStatus fails when fbo has no attachments.
func (d *Device) FramebufferStatus(fbo uint32) error {
	d.calls["FramebufferStatus"]++
	if len(d.attached[fbo]) == 0 {
		return fmt.Errorf("framebuffer %d incomplete: no attachments", fbo)
	}
	return nil
}

func (d *Device) BlitDepth(src, dst uint32, width, height int) {
	d.calls["BlitDepth"]++
	d.boundFBO = dst
}

func (d *Device) BlitColor(src, dst uint32, width, height int) {
	d.calls["BlitColor"]++
	d.boundFBO = dst
}

func (d *Device) ReadPixels(fbo uint32, x, y, width, height int) ([]byte, error) {
	d.calls["ReadPixels"]++
	out := make([]byte, width*height*4)
	copy(out, d.Pixels)
	return out, nil
}

func (d *Device) Viewport(x, y, width, height int) { d.calls["Viewport"]++ }

func (d *Device) Clear(mask gpu.ClearMask, color mgl32.Vec4) { d.calls["Clear"]++ }

func (d *Device) SetDepth(state gpu.DepthState) { d.calls["SetDepth"]++ }

func (d *Device) SetBlend(mode gpu.BlendMode) { d.calls["SetBlend"]++ }

func (d *Device) SetCull(mode gpu.CullMode) { d.calls["SetCull"]++ }

func (d *Device) DrawElements(mode gpu.Topology, count int, indexType gpu.ComponentType) {
	d.calls["DrawElements"]++
	d.Draws = append(d.Draws, Draw{Framebuffer: d.boundFBO, Program: d.boundProgram, Mode: mode, Count: count})
}

func (d *Device) DrawArrays(mode gpu.Topology, first, count int) {
	d.calls["DrawArrays"]++
	d.Draws = append(d.Draws, Draw{Framebuffer: d.boundFBO, Program: d.boundProgram, Mode: mode, Count: count})
}

func (d *Device) CreateProgram(vertexSrc, fragmentSrc string) (uint32, error) {
	d.calls["CreateProgram"]++
	if d.FailCompile {
		return 0, fmt.Errorf("gputest: %w", gpu.ErrCompile)
	}
	id, err := d.create(KindProgram)
	if err != nil {
		return 0, err
	}
	d.locations[id] = make(map[string]int32)
	d.Sources[id] = [2]string{vertexSrc, fragmentSrc}
	return id, nil
}

func (d *Device) DeleteProgram(id uint32) {
	d.calls["DeleteProgram"]++
	d.release(KindProgram, id)
	for _, loc := range d.locations[id] {
		delete(d.locNames, loc)
	}
	delete(d.locations, id)
	delete(d.Sources, id)
}

func (d *Device) UseProgram(id uint32) {
	d.calls["UseProgram"]++
	d.boundProgram = id
}

// UniformLocation hands out a distinct location for every (program, name) pair.
func (d *Device) UniformLocation(program uint32, name string) int32 {
	d.calls["UniformLocation"]++
	locs, ok := d.locations[program]
	if !ok {
		return -1
	}
	if loc, ok := locs[name]; ok {
		return loc
	}
	loc := d.nextLoc
	d.nextLoc++
	locs[name] = loc
	d.locNames[loc] = name
	return loc
}

func (d *Device) record(loc int32, v any) {
	if loc < 0 {
		return
	}
	d.Uploads = append(d.Uploads, Upload{Program: d.boundProgram, Name: d.locNames[loc], Value: v})
}

func (d *Device) UniformInt(loc int32, v int32)        { d.record(loc, v) }
func (d *Device) UniformFloat(loc int32, v float32)    { d.record(loc, v) }
func (d *Device) UniformFloats(loc int32, v []float32) { d.record(loc, append([]float32(nil), v...)) }
func (d *Device) UniformVec2(loc int32, v mgl32.Vec2)  { d.record(loc, v) }
func (d *Device) UniformVec3(loc int32, v mgl32.Vec3)  { d.record(loc, v) }
func (d *Device) UniformVec4(loc int32, v mgl32.Vec4)  { d.record(loc, v) }
func (d *Device) UniformMat4(loc int32, m mgl32.Mat4)  { d.record(loc, m) }
func (d *Device) UniformMat4s(loc int32, ms []mgl32.Mat4) {
	d.record(loc, append([]mgl32.Mat4(nil), ms...))
}
