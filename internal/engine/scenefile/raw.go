package scenefile

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/multierr"
)

// The raw types mirror the JSON document with pointers so that absent
// fields can be told apart from zeros.

type rawVec3 struct {
	X *float32 `json:"x"`
	Y *float32 `json:"y"`
	Z *float32 `json:"z"`
}

type rawVec2 struct {
	X *float32 `json:"x"`
	Y *float32 `json:"y"`
}

type rawCamera struct {
	Near      *float32 `json:"near"`
	Far       *float32 `json:"far"`
	FovY      *float32 `json:"FOVy"`
	Translate *rawVec3 `json:"translate"`
	Rotate    *rawVec2 `json:"rotate"`
}

type rawObject struct {
	Mesh      *string  `json:"mesh"`
	Translate *rawVec3 `json:"translate"`
	Rotate    *rawVec3 `json:"rotate"`
	Scale     *rawVec3 `json:"scale"`
}

type rawDirectional struct {
	Direction *rawVec3 `json:"direction"`
	Color     *rawVec3 `json:"color"`
}

type rawPointLight struct {
	Translate *rawVec3 `json:"translate"`
	Color     *rawVec3 `json:"color"`
	Radius    *float32 `json:"radius"`
}

type rawDecal struct {
	Translate *rawVec3 `json:"translate"`
	Rotate    *rawVec3 `json:"rotate"`
	Scale     *rawVec3 `json:"scale"`
	Diffuse   string   `json:"diffuse"`
	Normal    string   `json:"normal"`
	Metallic  string   `json:"metallic"`
}

// sectionNames are the top-level keys rawScene decodes.
var sectionNames = []string{"camera", "objects", "directional_light", "point_lights", "decals"}

type rawScene struct {
	Camera           *rawCamera      `json:"camera"`
	Objects          []rawObject     `json:"objects"`
	DirectionalLight *rawDirectional `json:"directional_light"`
	PointLights      []rawPointLight `json:"point_lights"`
	Decals           []rawDecal      `json:"decals"`
}

type validator struct {
	errs error
}

func (v *validator) fail(path, format string, args ...any) {
	v.errs = multierr.Append(v.errs, &FieldError{Path: path, Msg: fmt.Sprintf(format, args...)})
}

func (v *validator) scalar(path string, f *float32) float32 {
	if f == nil {
		v.fail(path, "required")
		return 0
	}
	return *f
}

func (v *validator) vec3(path string, r *rawVec3) mgl32.Vec3 {
	if r == nil {
		v.fail(path, "required")
		return mgl32.Vec3{}
	}
	return mgl32.Vec3{
		v.scalar(path+".x", r.X),
		v.scalar(path+".y", r.Y),
		v.scalar(path+".z", r.Z),
	}
}

// scale defaults to 1,1,1 when the key is absent.
func (v *validator) scale(path string, r *rawVec3) mgl32.Vec3 {
	if r == nil {
		return mgl32.Vec3{1, 1, 1}
	}
	for i, c := range [3]*float32{r.X, r.Y, r.Z} {
		if c != nil && *c == 0 {
			v.fail(fmt.Sprintf("%s.%c", path, "xyz"[i]), "must not be zero")
		}
	}
	return v.vec3(path, r)
}

func (v *validator) nonZero(path string, d mgl32.Vec3) {
	if d.Len() == 0 {
		v.fail(path, "must not be the zero vector")
	}
}

func (r *rawScene) convert(v *validator) *Description {
	desc := &Description{}

	if c := r.Camera; c != nil {
		cam := &Camera{
			Near:      v.scalar("camera.near", c.Near),
			Far:       v.scalar("camera.far", c.Far),
			FovY:      v.scalar("camera.FOVy", c.FovY),
			Translate: v.vec3("camera.translate", c.Translate),
		}
		if c.Rotate == nil {
			v.fail("camera.rotate", "required")
		} else {
			cam.Rotate = mgl32.Vec2{v.scalar("camera.rotate.x", c.Rotate.X), v.scalar("camera.rotate.y", c.Rotate.Y)}
		}
		if c.Near != nil && cam.Near <= 0 {
			v.fail("camera.near", "must be positive, got %g", cam.Near)
		}
		if c.Near != nil && c.Far != nil && cam.Far <= cam.Near {
			v.fail("camera.far", "must exceed near (%g), got %g", cam.Near, cam.Far)
		}
		if c.FovY != nil && (cam.FovY <= 0 || cam.FovY >= 180) {
			v.fail("camera.FOVy", "must be in (0, 180), got %g", cam.FovY)
		}
		desc.Camera = cam
	}

	for i, o := range r.Objects {
		path := fmt.Sprintf("objects[%d]", i)
		obj := Object{
			Translate: v.vec3(path+".translate", o.Translate),
			Rotate:    v.vec3(path+".rotate", o.Rotate),
			Scale:     v.scale(path+".scale", o.Scale),
		}
		if o.Mesh == nil || *o.Mesh == "" {
			v.fail(path+".mesh", "required")
		} else {
			obj.Mesh = *o.Mesh
		}
		desc.Objects = append(desc.Objects, obj)
	}

	if d := r.DirectionalLight; d != nil {
		light := &DirectionalLight{
			Direction: v.vec3("directional_light.direction", d.Direction),
			Color:     v.vec3("directional_light.color", d.Color),
		}
		if d.Direction != nil {
			v.nonZero("directional_light.direction", light.Direction)
		}
		desc.DirectionalLight = light
	}

	for i, p := range r.PointLights {
		path := fmt.Sprintf("point_lights[%d]", i)
		light := PointLight{
			Translate: v.vec3(path+".translate", p.Translate),
			Color:     v.vec3(path+".color", p.Color),
			Radius:    v.scalar(path+".radius", p.Radius),
		}
		if p.Radius != nil && light.Radius <= 0 {
			v.fail(path+".radius", "must be positive, got %g", light.Radius)
		}
		desc.PointLights = append(desc.PointLights, light)
	}

	for i, d := range r.Decals {
		path := fmt.Sprintf("decals[%d]", i)
		desc.Decals = append(desc.Decals, Decal{
			Translate: v.vec3(path+".translate", d.Translate),
			Rotate:    v.vec3(path+".rotate", d.Rotate),
			Scale:     v.scale(path+".scale", d.Scale),
			Diffuse:   d.Diffuse,
			Normal:    d.Normal,
			Metallic:  d.Metallic,
		})
	}

	return desc
}
