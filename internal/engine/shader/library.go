package shader

import (
	"fmt"
	"io/fs"
	"os"
	"sort"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/lumen/internal/engine/gpu"
	"github.com/Faultbox/lumen/internal/engine/shader/glsl"
	"github.com/Faultbox/lumen/internal/logger"
)

// Program names.
const (
	Geometry         = "geometry"
	Shadow           = "shadow"
	Decal            = "decal"
	AO               = "ao"
	AOBlur           = "ao_blur"
	Ambient          = "ambient"
	PointLight       = "point_light"
	DirectionalLight = "directional_light"
	LightProxy       = "light_proxy"
	Bright           = "bright"
	Blur             = "blur"
	Composite        = "composite"
)

// Stages names the vertex and fragment source files of a program.
type Stages struct {
	Vertex   string
	Fragment string
}

// Builtin maps every program the renderer uses to its sources.
var Builtin = map[string]Stages{
	Geometry:         {"geometry.vert", "geometry.frag"},
	Shadow:           {"shadow.vert", "shadow.frag"},
	Decal:            {"mesh.vert", "decal.frag"},
	AO:               {"quad.vert", "ao.frag"},
	AOBlur:           {"quad.vert", "ao_blur.frag"},
	Ambient:          {"quad.vert", "ambient.frag"},
	PointLight:       {"mesh.vert", "point_light.frag"},
	DirectionalLight: {"quad.vert", "directional_light.frag"},
	LightProxy:       {"mesh.vert", "light_proxy.frag"},
	Bright:           {"quad.vert", "bright.frag"},
	Blur:             {"quad.vert", "blur.frag"},
	Composite:        {"quad.vert", "composite.frag"},
}

// Library owns the compiled programs.
type Library struct {
	dev      gpu.Device
	src      fs.FS
	stages   map[string]Stages
	programs map[string]*Program
	log      *zap.Logger
}

// NewLibrary compiles the built-in programs. Sources are read from dir
// when it is not empty, otherwise from the embedded copies.
func NewLibrary(dev gpu.Device, dir string) (*Library, error) {
	src := fs.FS(glsl.FS)
	if dir != "" {
		src = os.DirFS(dir)
	}
	return NewLibraryFS(dev, src, Builtin)
}

// NewLibraryFS compiles the given programs from src.
func NewLibraryFS(dev gpu.Device, src fs.FS, stages map[string]Stages) (*Library, error) {
	l := &Library{
		dev:      dev,
		src:      src,
		stages:   stages,
		programs: make(map[string]*Program, len(stages)),
		log:      logger.Named("shader"),
	}

	ids, err := l.compileAll()
	if err != nil {
		return nil, err
	}
	for name, id := range ids {
		l.programs[name] = newProgram(dev, name, id)
	}
	l.log.Info("shaders compiled", zap.Int("programs", len(ids)))
	return l, nil
}

// Get returns the named program, or nil if the library has no such program.
func (l *Library) Get(name string) *Program {
	return l.programs[name]
}

// Names returns the program names in sorted order.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.programs))
	for name := range l.programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reload recompiles every program. If any program fails, the previous
// programs stay in use and the compile errors are returned.
func (l *Library) Reload() error {
	ids, err := l.compileAll()
	if err != nil {
		l.log.Warn("shader reload failed, keeping previous programs", zap.Error(err))
		return err
	}
	for name, id := range ids {
		p, ok := l.programs[name]
		if !ok {
			l.programs[name] = newProgram(l.dev, name, id)
			continue
		}
		l.dev.DeleteProgram(p.swap(id))
	}
	l.log.Info("shaders reloaded", zap.Int("programs", len(ids)))
	return nil
}

// compileAll builds every program; on any failure it deletes what it built.
func (l *Library) compileAll() (map[string]uint32, error) {
	ids := make(map[string]uint32, len(l.stages))
	var errs error
	for name, st := range l.stages {
		id, err := l.compile(st)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("program %s: %w", name, err))
			continue
		}
		ids[name] = id
	}
	if errs != nil {
		for _, id := range ids {
			l.dev.DeleteProgram(id)
		}
		return nil, errs
	}
	return ids, nil
}

func (l *Library) compile(st Stages) (uint32, error) {
	vs, err := fs.ReadFile(l.src, st.Vertex)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", st.Vertex, err)
	}
	frag, err := fs.ReadFile(l.src, st.Fragment)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", st.Fragment, err)
	}
	return l.dev.CreateProgram(string(vs), string(frag))
}

// Close deletes every program.
func (l *Library) Close() {
	for _, p := range l.programs {
		p.release()
	}
	clear(l.programs)
}
