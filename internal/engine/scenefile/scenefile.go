// Package scenefile decodes and validates JSON scene descriptions.
//
// Decoding is all or nothing: Decode returns either a complete Description
// or an error, never a partially filled value.
package scenefile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/lumen/internal/logger"
)

var (
	// ErrSceneUnreadable is returned when the scene file cannot be opened or read.
	ErrSceneUnreadable = errors.New("scenefile: scene unreadable")
	// ErrInvalid is returned for malformed or out-of-range scene content.
	ErrInvalid = errors.New("scenefile: invalid scene")
)

// Camera places the scene camera. Rotate is pitch (X) and yaw (Y) in degrees.
type Camera struct {
	Near      float32
	Far       float32
	FovY      float32
	Translate mgl32.Vec3
	Rotate    mgl32.Vec2
}

// Object is one model instance. Rotate is in Euler degrees.
type Object struct {
	Mesh      string
	Translate mgl32.Vec3
	Rotate    mgl32.Vec3
	Scale     mgl32.Vec3
}

// DirectionalLight points from the scene toward the light.
type DirectionalLight struct {
	Direction mgl32.Vec3
	Color     mgl32.Vec3
}

// PointLight is an explicitly placed point light.
type PointLight struct {
	Translate mgl32.Vec3
	Color     mgl32.Vec3
	Radius    float32
}

// Decal is a projected texture box. Empty texture paths are absent slots.
type Decal struct {
	Translate mgl32.Vec3
	Rotate    mgl32.Vec3
	Scale     mgl32.Vec3
	Diffuse   string
	Normal    string
	Metallic  string
}

// Description is a validated scene. Absent sections are nil or empty.
type Description struct {
	Camera           *Camera
	Objects          []Object
	DirectionalLight *DirectionalLight
	PointLights      []PointLight
	Decals           []Decal
	// Ignored lists unknown top-level keys, sorted.
	Ignored []string
}

// FieldError is one problem at a JSON path such as objects[2].scale.y.
type FieldError struct {
	Path string
	Msg  string
}

func (e *FieldError) Error() string {
	return e.Path + ": " + e.Msg
}

// ValidationError lists every problem found in a scene.
type ValidationError struct {
	err error
}

func (e *ValidationError) Error() string {
	return "invalid scene: " + e.err.Error()
}

// Fields returns the individual problems.
func (e *ValidationError) Fields() []*FieldError {
	var out []*FieldError
	for _, err := range multierr.Errors(e.err) {
		var fe *FieldError
		if errors.As(err, &fe) {
			out = append(out, fe)
		}
	}
	return out
}

// Is makes a ValidationError match ErrInvalid.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// Load reads and decodes the scene at path.
func Load(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSceneUnreadable, err)
	}
	desc, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(desc.Ignored) > 0 {
		logger.Named("scenefile").Warn("ignoring unknown scene sections",
			zap.String("path", path), zap.Strings("keys", desc.Ignored))
	}
	return desc, nil
}

// Decode reads one scene document from r. Unknown top-level sections are
// skipped and listed in Ignored; unknown keys inside a known section are
// rejected.
func Decode(r io.Reader) (*Description, error) {
	dec := json.NewDecoder(r)

	var sections map[string]json.RawMessage
	if err := dec.Decode(&sections); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after scene object", ErrInvalid)
	}

	var ignored []string
	for key := range sections {
		if !slices.Contains(sectionNames, key) {
			ignored = append(ignored, key)
			delete(sections, key)
		}
	}
	slices.Sort(ignored)

	known, err := json.Marshal(sections)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	strict := json.NewDecoder(bytes.NewReader(known))
	strict.DisallowUnknownFields()

	var raw rawScene
	if err := strict.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	v := &validator{}
	desc := raw.convert(v)
	if v.errs != nil {
		return nil, &ValidationError{err: v.errs}
	}
	desc.Ignored = ignored
	return desc, nil
}
