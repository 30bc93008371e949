// Package shader compiles named GPU programs and uploads their uniforms.
package shader

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/lumen/internal/engine/gpu"
)

// Program is a linked GPU program with cached uniform locations.
// The handle stays valid across Library.Reload.
type Program struct {
	dev  gpu.Device
	name string
	id   uint32
	locs map[string]int32
}

func newProgram(dev gpu.Device, name string, id uint32) *Program {
	return &Program{dev: dev, name: name, id: id, locs: make(map[string]int32)}
}

// Name returns the library name of the program.
func (p *Program) Name() string {
	return p.name
}

// ID returns the device handle.
func (p *Program) ID() uint32 {
	return p.id
}

// Use binds the program for subsequent draws and uniform uploads.
func (p *Program) Use() {
	p.dev.UseProgram(p.id)
}

func (p *Program) loc(name string) int32 {
	if loc, ok := p.locs[name]; ok {
		return loc
	}
	loc := p.dev.UniformLocation(p.id, name)
	p.locs[name] = loc
	return loc
}

func (p *Program) SetInt(name string, v int) {
	p.dev.UniformInt(p.loc(name), int32(v))
}

func (p *Program) SetBool(name string, v bool) {
	var i int32
	if v {
		i = 1
	}
	p.dev.UniformInt(p.loc(name), i)
}

func (p *Program) SetFloat(name string, v float32) {
	p.dev.UniformFloat(p.loc(name), v)
}

// SetFloats uploads a float array starting at name.
func (p *Program) SetFloats(name string, v []float32) {
	p.dev.UniformFloats(p.loc(name), v)
}

func (p *Program) SetVec2(name string, v mgl32.Vec2) {
	p.dev.UniformVec2(p.loc(name), v)
}

func (p *Program) SetVec3(name string, v mgl32.Vec3) {
	p.dev.UniformVec3(p.loc(name), v)
}

func (p *Program) SetVec4(name string, v mgl32.Vec4) {
	p.dev.UniformVec4(p.loc(name), v)
}

func (p *Program) SetMat4(name string, m mgl32.Mat4) {
	p.dev.UniformMat4(p.loc(name), m)
}

// SetMat4s uploads a matrix array starting at name.
func (p *Program) SetMat4s(name string, ms []mgl32.Mat4) {
	p.dev.UniformMat4s(p.loc(name), ms)
}

// SetTexture binds tex to unit and points the sampler uniform at it.
// A nil texture binds nothing to the unit.
func (p *Program) SetTexture(name string, unit int, tex *gpu.Texture) {
	p.dev.BindTexture(unit, tex.ID())
	p.dev.UniformInt(p.loc(name), int32(unit))
}

// swap replaces the program object, returning the old handle.
func (p *Program) swap(id uint32) uint32 {
	old := p.id
	p.id = id
	clear(p.locs)
	return old
}

func (p *Program) release() {
	if p.id != 0 {
		p.dev.DeleteProgram(p.id)
		p.id = 0
	}
}
