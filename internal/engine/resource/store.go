// Package resource uploads decoded models and textures to the GPU and owns
// them until they are unloaded.
package resource

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/lumen/internal/engine/asset"
	"github.com/Faultbox/lumen/internal/engine/gpu"
	"github.com/Faultbox/lumen/internal/engine/texture"
	"github.com/Faultbox/lumen/internal/engine/transform"
	"github.com/Faultbox/lumen/internal/logger"
)

// NoTexture marks an empty material slot.
const NoTexture = -1

// ErrUnknownModel is returned when a named model is not registered.
var ErrUnknownModel = errors.New("resource: unknown model")

// Material holds texture references into the store.
type Material struct {
	BaseColor mgl32.Vec4
	Diffuse   int
	Normal    int
	Metallic  int
}

// DefaultMaterial is used by primitives without a material.
func DefaultMaterial() Material {
	return Material{BaseColor: mgl32.Vec4{1, 1, 1, 1}, Diffuse: NoTexture, Normal: NoTexture, Metallic: NoTexture}
}

// Primitive is one uploaded draw call. Attribute i is bound to shader
// location i.
type Primitive struct {
	VAO        *gpu.VertexArray
	Index      *gpu.Buffer
	Attributes [asset.AttributeCount]*gpu.Buffer
	IndexCount int
	IndexType  gpu.ComponentType
	Mode       gpu.Topology
	Material   Material
}

// Draw binds the vertex array and issues the indexed draw.
func (p *Primitive) Draw(dev gpu.Device) {
	p.VAO.Bind()
	dev.DrawElements(p.Mode, p.IndexCount, p.IndexType)
}

func (p *Primitive) release() {
	p.VAO.Release()
	p.Index.Release()
	for _, b := range p.Attributes {
		b.Release()
	}
}

// Mesh is a set of primitives placed by a model node. Meshes that share
// source geometry share primitives.
type Mesh struct {
	Node       int
	Primitives []*Primitive
}

// Model is an uploaded model.
type Model struct {
	Name   string
	Path   string
	Meshes []Mesh
	Nodes  transform.Arena

	primitives []*Primitive
}

// MeshWorld returns the model-space matrix of mesh i.
func (m *Model) MeshWorld(i int) mgl32.Mat4 {
	return m.Nodes.World(m.Meshes[i].Node)
}

// Stats counts what the store holds.
type Stats struct {
	Models   int
	Textures int
	Uploads  int
	Hits     int
	Misses   int
}

// Store caches models by path and deduplicates textures.
type Store struct {
	dev     gpu.Device
	decoder asset.Decoder

	models   map[string]*Model
	textures []*gpu.Texture
	keys     map[asset.Key]int

	uploads int
	hits    int
	misses  int
	log     *zap.Logger
}

// New creates an empty store.
func New(dev gpu.Device, decoder asset.Decoder) *Store {
	return &Store{
		dev:     dev,
		decoder: decoder,
		models:  make(map[string]*Model),
		keys:    make(map[asset.Key]int),
		log:     logger.Named("resource"),
	}
}

// LoadModel returns the model at path, decoding and uploading it on first
// use. On failure nothing uploaded by this call stays alive.
func (s *Store) LoadModel(path string) (*Model, error) {
	if m, ok := s.models[path]; ok {
		s.hits++
		return m, nil
	}
	s.misses++

	doc, err := s.decoder.Decode(path)
	if err != nil {
		return nil, fmt.Errorf("loading model %s: %w", path, err)
	}
	if doc.Path == "" {
		doc.Path = path
	}

	m, err := s.upload(doc)
	if err != nil {
		return nil, fmt.Errorf("uploading model %s: %w", path, err)
	}
	m.Name = filepath.Base(path)
	m.Path = path
	s.models[path] = m

	s.log.Info("model loaded",
		zap.String("path", path),
		zap.Int("meshes", len(m.Meshes)),
		zap.Int("primitives", len(m.primitives)),
		zap.Int("textures", len(s.textures)))
	return m, nil
}

// Model returns a loaded or registered model by path or name.
func (s *Store) Model(key string) (*Model, error) {
	m, ok := s.models[key]
	if !ok {
		return nil, fmt.Errorf("%q: %w", key, ErrUnknownModel)
	}
	return m, nil
}

// RegisterModel uploads a single primitive as a one-node model under name,
// replacing any model of that name.
func (s *Store) RegisterModel(name string, prim asset.Primitive) (*Model, error) {
	p, err := s.uploadPrimitive(prim, DefaultMaterial())
	if err != nil {
		return nil, fmt.Errorf("registering %s: %w", name, err)
	}
	if old, ok := s.models[name]; ok {
		s.UnloadModel(old)
	}

	m := &Model{Name: name, Path: name, primitives: []*Primitive{p}}
	node := m.Nodes.AddRoot(transform.New())
	m.Meshes = []Mesh{{Node: node, Primitives: m.primitives}}
	s.models[name] = m
	return m, nil
}

// LoadDefaults registers the built-in quad, cube and sphere. A non-empty
// override path replaces the generated geometry with the first primitive
// of that model file.
func (s *Store) LoadDefaults(overrides map[string]string) error {
	builtins := []struct {
		name string
		gen  func() asset.Primitive
	}{
		{QuadModel, NewQuad},
		{CubeModel, NewCube},
		{SphereModel, func() asset.Primitive { return NewSphere(16, 32) }},
	}
	for _, b := range builtins {
		prim := b.gen()
		if path := overrides[b.name]; path != "" {
			doc, err := s.decoder.Decode(path)
			if err != nil {
				return fmt.Errorf("loading %s override: %w", b.name, err)
			}
			if len(doc.Meshes) == 0 || len(doc.Meshes[0].Primitives) == 0 {
				return fmt.Errorf("%s override %s has no geometry: %w", b.name, path, asset.ErrDecode)
			}
			prim = doc.Meshes[0].Primitives[0]
		}
		if _, err := s.RegisterModel(b.name, prim); err != nil {
			return err
		}
	}
	return nil
}

// UnloadModel releases every buffer and vertex array of m and forgets it.
// Textures stay with the store since other models may share them.
func (s *Store) UnloadModel(m *Model) {
	if m == nil {
		return
	}
	for _, p := range m.primitives {
		p.release()
	}
	m.primitives = nil
	m.Meshes = nil
	if s.models[m.Path] == m {
		delete(s.models, m.Path)
	}
}

// Texture returns the texture for a material slot, or nil for NoTexture.
// The store keeps ownership.
func (s *Store) Texture(ref int) *gpu.Texture {
	if ref < 0 || ref >= len(s.textures) {
		return nil
	}
	return s.textures[ref]
}

// Stats returns the current counters.
func (s *Store) Stats() Stats {
	return Stats{
		Models:   len(s.models),
		Textures: len(s.textures),
		Uploads:  s.uploads,
		Hits:     s.hits,
		Misses:   s.misses,
	}
}

// Close releases every model and texture.
func (s *Store) Close() {
	for _, m := range s.models {
		s.UnloadModel(m)
	}
	for _, t := range s.textures {
		t.Release()
	}
	s.textures = nil
	clear(s.keys)
}

func (s *Store) upload(doc *asset.Document) (m *Model, err error) {
	m = &Model{}
	textureMark := len(s.textures)
	defer func() {
		if err == nil {
			return
		}
		for _, p := range m.primitives {
			p.release()
		}
		s.rollbackTextures(textureMark)
	}()

	refs := make([]int, len(doc.Textures))
	for i, t := range doc.Textures {
		refs[i], err = s.uploadTexture(doc, t)
		if err != nil {
			return m, err
		}
	}

	materials := make([]Material, len(doc.Materials))
	for i, mat := range doc.Materials {
		slot := func(ti int) int {
			if ti < 0 || ti >= len(refs) {
				return NoTexture
			}
			return refs[ti]
		}
		materials[i] = Material{
			BaseColor: mat.BaseColor,
			Diffuse:   slot(mat.Diffuse),
			Normal:    slot(mat.Normal),
			Metallic:  slot(mat.MetallicRoughness),
		}
	}

	meshes := make([][]*Primitive, len(doc.Meshes))
	for mi, mesh := range doc.Meshes {
		for _, prim := range mesh.Primitives {
			mat := DefaultMaterial()
			if prim.Material >= 0 && prim.Material < len(materials) {
				mat = materials[prim.Material]
			}
			p, err := s.uploadPrimitive(prim, mat)
			if err != nil {
				return m, fmt.Errorf("mesh %q: %w", mesh.Name, err)
			}
			m.primitives = append(m.primitives, p)
			meshes[mi] = append(meshes[mi], p)
		}
	}

	if err := s.buildNodes(m, doc, meshes); err != nil {
		return m, err
	}
	return m, nil
}

// buildNodes copies the node hierarchy into the model arena. A document
// without nodes places every mesh at the origin.
func (s *Store) buildNodes(m *Model, doc *asset.Document, meshes [][]*Primitive) error {
	if len(doc.Nodes) == 0 {
		for _, prims := range meshes {
			node := m.Nodes.AddRoot(transform.New())
			m.Meshes = append(m.Meshes, Mesh{Node: node, Primitives: prims})
		}
		return nil
	}

	visited := make([]bool, len(doc.Nodes))
	var add func(src, parent int) error
	add = func(src, parent int) error {
		if src < 0 || src >= len(doc.Nodes) {
			return fmt.Errorf("node %d out of range: %w", src, asset.ErrDecode)
		}
		if visited[src] {
			return fmt.Errorf("node %d reached twice: %w", src, asset.ErrDecode)
		}
		visited[src] = true

		n := doc.Nodes[src]
		local := transform.At(n.Translation)
		local.Scale = n.Scale
		local.Orient(n.Rotation)

		idx, err := m.Nodes.Add(local, parent)
		if err != nil {
			return err
		}
		if n.Mesh >= 0 && n.Mesh < len(meshes) {
			m.Meshes = append(m.Meshes, Mesh{Node: idx, Primitives: meshes[n.Mesh]})
		}
		for _, c := range n.Children {
			if err := add(c, idx); err != nil {
				return err
			}
		}
		return nil
	}

	for _, r := range doc.Roots {
		if err := add(r, transform.NoParent); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) uploadTexture(doc *asset.Document, t asset.Texture) (int, error) {
	key := doc.Key(t)
	if ref, ok := s.keys[key]; ok {
		return ref, nil
	}
	if t.Image < 0 || t.Image >= len(doc.Images) || doc.Images[t.Image].Pixels == nil {
		return NoTexture, nil
	}

	tex, err := texture.Upload(s.dev, doc.Images[t.Image].Pixels, doc.Sampler(t))
	if err != nil {
		return NoTexture, fmt.Errorf("texture %q (image %d): %w", t.Name, t.Image, err)
	}
	s.uploads++
	ref := len(s.textures)
	s.textures = append(s.textures, tex)
	s.keys[key] = ref
	return ref, nil
}

// rollbackTextures releases textures uploaded after mark.
func (s *Store) rollbackTextures(mark int) {
	for ref := mark; ref < len(s.textures); ref++ {
		s.textures[ref].Release()
	}
	for key, ref := range s.keys {
		if ref >= mark {
			delete(s.keys, key)
		}
	}
	s.textures = s.textures[:mark]
}

func (s *Store) uploadPrimitive(src asset.Primitive, mat Material) (*Primitive, error) {
	p := &Primitive{
		IndexCount: src.Indices.Count,
		IndexType:  src.Indices.Type,
		Mode:       src.Mode,
		Material:   mat,
	}
	if err := s.fillPrimitive(p, src); err != nil {
		p.release()
		return nil, err
	}
	return p, nil
}

func (s *Store) fillPrimitive(p *Primitive, src asset.Primitive) error {
	var err error
	if p.VAO, err = gpu.NewVertexArray(s.dev); err != nil {
		return err
	}
	p.VAO.Bind()
	defer s.dev.BindVertexArray(0)

	if p.Index, err = gpu.NewBuffer(s.dev, gpu.ElementArrayBuffer, src.Indices.Data); err != nil {
		return err
	}
	s.uploads++
	p.Index.Bind()

	for a, view := range src.Attributes {
		if view.Count == 0 {
			return fmt.Errorf("%s: %w", asset.Attribute(a), asset.ErrMissingAttribute)
		}
		if p.Attributes[a], err = gpu.NewBuffer(s.dev, gpu.ArrayBuffer, view.Data); err != nil {
			return err
		}
		s.uploads++
		p.Attributes[a].Bind()
		s.dev.VertexAttrib(uint32(a), gpu.AttribLayout{
			Components: view.Components,
			Type:       view.Type,
			Normalized: view.Normalized,
			Stride:     view.ElementSize(),
		})
	}
	return nil
}
