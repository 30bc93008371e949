// Package scene builds the renderable world from a scene description:
// model instances, lights, decals and the camera.
package scene

import (
	"errors"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/lumen/internal/engine/camera"
	"github.com/Faultbox/lumen/internal/engine/decal"
	"github.com/Faultbox/lumen/internal/engine/gpu"
	"github.com/Faultbox/lumen/internal/engine/lighting"
	"github.com/Faultbox/lumen/internal/engine/resource"
	"github.com/Faultbox/lumen/internal/engine/scenefile"
	"github.com/Faultbox/lumen/internal/engine/transform"
	"github.com/Faultbox/lumen/internal/logger"
)

// ErrNoDescription is returned by Build when given a nil description.
var ErrNoDescription = errors.New("scene: no description")

// GameObject places a shared model in the world.
type GameObject struct {
	Node  int
	Model *resource.Model
}

// Options control how a description becomes a scene.
type Options struct {
	// Root resolves relative mesh and texture paths.
	Root string
	// Width and Height size the camera viewport.
	Width  int
	Height int
	// Lights sizes the generated point light pool and its placement.
	Lights lighting.Settings
}

// Scene is everything one frame draws.
type Scene struct {
	Arena       transform.Arena
	Objects     []GameObject
	PointLights []lighting.Light
	Directional *lighting.Light
	Decals      []*decal.Decal
	Camera      *camera.Camera

	log *zap.Logger
}

// Build loads every model and decal named by desc. Objects whose model
// fails to load and decal textures that fail to load are skipped with a
// warning; the rest of the scene still builds.
func Build(desc *scenefile.Description, store *resource.Store, dev gpu.Device, opts Options) (*Scene, error) {
	if desc == nil {
		return nil, ErrNoDescription
	}
	s := &Scene{log: logger.Named("scene")}

	s.Camera = camera.New(opts.Width, opts.Height)
	if c := desc.Camera; c != nil {
		s.Camera.SetProjection(c.FovY, c.Near, c.Far)
		s.Camera.Position = c.Translate
		s.Camera.Look(c.Rotate.X(), c.Rotate.Y())
	}

	for i, o := range desc.Objects {
		path := resolve(opts.Root, o.Mesh)
		m, err := store.LoadModel(path)
		if err != nil {
			s.log.Warn("skipping object", zap.Int("index", i), zap.String("mesh", path), zap.Error(err))
			continue
		}
		t := transform.New()
		t.ApplyEulerDegrees(o.Rotate.X(), o.Rotate.Y(), o.Rotate.Z())
		t.Position = o.Translate
		t.Scale = o.Scale
		s.Objects = append(s.Objects, GameObject{Node: s.Arena.AddRoot(t), Model: m})
	}

	if d := desc.DirectionalLight; d != nil {
		l := lighting.NewDirectional(d.Direction, d.Color)
		s.Directional = &l
	}

	for _, p := range desc.PointLights {
		s.PointLights = append(s.PointLights, lighting.NewPoint(p.Translate, p.Color, p.Radius))
	}
	s.PointLights = lighting.Populate(s.PointLights, opts.Lights.Count, opts.Lights, lighting.NewRand(opts.Lights.Seed))

	for i, d := range desc.Decals {
		dd, err := decal.Load(dev, decal.Desc{
			Position: d.Translate,
			Rotation: d.Rotate,
			Scale:    d.Scale,
			Textures: [decal.SlotCount]string{
				resolve(opts.Root, d.Diffuse),
				resolve(opts.Root, d.Normal),
				resolve(opts.Root, d.Metallic),
			},
		})
		if err != nil {
			s.log.Warn("decal texture missing", zap.Int("index", i), zap.Error(err))
		}
		s.Decals = append(s.Decals, dd)
	}

	s.log.Info("scene built",
		zap.Int("objects", len(s.Objects)),
		zap.Int("point_lights", len(s.PointLights)),
		zap.Bool("directional", s.Directional != nil),
		zap.Int("decals", len(s.Decals)))
	return s, nil
}

func resolve(root, path string) string {
	if path == "" || root == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// World returns the world matrix of object i.
func (s *Scene) World(i int) mgl32.Mat4 {
	return s.Arena.World(s.Objects[i].Node)
}

// Update advances light animation by dt seconds.
func (s *Scene) Update(dt float32, ls lighting.Settings) {
	if ls.Move {
		lighting.Animate(s.PointLights, dt, ls.Velocity)
	}
}

// Destroy releases decal textures and drops lights and objects. Models
// stay in the resource store.
func (s *Scene) Destroy() {
	for _, d := range s.Decals {
		d.Release()
	}
	s.Decals = nil
	s.PointLights = nil
	s.Directional = nil
	s.Objects = nil
	s.Arena = transform.Arena{}
}
