package glcore

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/lumen/internal/engine/gpu"
)

// CreateProgram compiles both stages and links them. The stage objects
// are deleted once linked.
func (d *Device) CreateProgram(vertexSrc, fragmentSrc string) (uint32, error) {
	vs, err := compileStage(vertexSrc, gl.VERTEX_SHADER, "vertex")
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(vs)

	fs, err := compileStage(fragmentSrc, gl.FRAGMENT_SHADER, "fragment")
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(fs)

	program := gl.CreateProgram()
	if program == 0 {
		return 0, fmt.Errorf("program: %w", gpu.ErrOutOfMemory)
	}
	gl.AttachShader(program, vs)
	gl.AttachShader(program, fs)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		msg := infoLog(program, gl.GetProgramiv, gl.GetProgramInfoLog)
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("link: %s: %w", msg, gpu.ErrCompile)
	}
	return program, nil
}

func compileStage(source string, stage uint32, name string) (uint32, error) {
	id := gl.CreateShader(stage)
	csource, free := gl.Strs(source + "\x00")
	gl.ShaderSource(id, 1, csource, nil)
	free()
	gl.CompileShader(id)

	var status int32
	gl.GetShaderiv(id, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		msg := infoLog(id, gl.GetShaderiv, gl.GetShaderInfoLog)
		gl.DeleteShader(id)
		return 0, fmt.Errorf("%s stage: %s: %w", name, msg, gpu.ErrCompile)
	}
	return id, nil
}

// infoLog reads the driver log of a shader or program object.
func infoLog(id uint32, param func(uint32, uint32, *int32), read func(uint32, int32, *int32, *uint8)) string {
	var n int32
	param(id, gl.INFO_LOG_LENGTH, &n)
	if n <= 0 {
		return "no log"
	}
	buf := make([]byte, n+1)
	read(id, n, nil, &buf[0])
	return strings.TrimRight(string(buf), "\x00\n")
}

func (d *Device) DeleteProgram(id uint32) { gl.DeleteProgram(id) }

func (d *Device) UseProgram(id uint32) { gl.UseProgram(id) }

// UniformLocation returns -1 for unknown or inactive uniforms.
func (d *Device) UniformLocation(program uint32, name string) int32 {
	return gl.GetUniformLocation(program, gl.Str(name+"\x00"))
}

func (d *Device) UniformInt(loc int32, v int32) { gl.Uniform1i(loc, v) }

func (d *Device) UniformFloat(loc int32, v float32) { gl.Uniform1f(loc, v) }

func (d *Device) UniformFloats(loc int32, v []float32) {
	if len(v) == 0 {
		return
	}
	gl.Uniform1fv(loc, int32(len(v)), &v[0])
}

func (d *Device) UniformVec2(loc int32, v mgl32.Vec2) { gl.Uniform2f(loc, v[0], v[1]) }

func (d *Device) UniformVec3(loc int32, v mgl32.Vec3) { gl.Uniform3f(loc, v[0], v[1], v[2]) }

func (d *Device) UniformVec4(loc int32, v mgl32.Vec4) { gl.Uniform4f(loc, v[0], v[1], v[2], v[3]) }

func (d *Device) UniformMat4(loc int32, m mgl32.Mat4) { gl.UniformMatrix4fv(loc, 1, false, &m[0]) }

func (d *Device) UniformMat4s(loc int32, ms []mgl32.Mat4) {
	if len(ms) == 0 {
		return
	}
	gl.UniformMatrix4fv(loc, int32(len(ms)), false, &ms[0][0])
}
