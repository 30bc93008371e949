package pipeline

import (
	"errors"
	"fmt"

	"github.com/Faultbox/lumen/internal/config"
	"github.com/Faultbox/lumen/internal/engine/scene"
)

// ErrStageOrder is returned for a plan whose stages are out of frame order
// or that runs a stage before the stages it reads from.
var ErrStageOrder = errors.New("pipeline: invalid stage order")

// Stage is one pass of the frame. Stages run in declaration order.
type Stage int

const (
	StageShadow Stage = iota
	StageGeometry
	StageDecals
	StageAmbientOcclusion
	StageAmbient
	StagePointLights
	StageDirectionalLight
	StageLightProxies
	StageBloom
	StageComposite
	StagePresent

	stageCount
)

var stageNames = [stageCount]string{
	"shadow",
	"geometry",
	"decals",
	"ambient_occlusion",
	"ambient",
	"point_lights",
	"directional_light",
	"light_proxies",
	"bloom",
	"composite",
	"present",
}

func (s Stage) String() string {
	if s < 0 || s >= stageCount {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// requires lists the stages whose output a stage reads. Each must appear
// earlier in the same plan.
var requires = [stageCount][]Stage{
	StageDecals:           {StageGeometry},
	StageAmbientOcclusion: {StageGeometry},
	StageAmbient:          {StageGeometry},
	StagePointLights:      {StageGeometry, StageAmbient},
	StageDirectionalLight: {StageGeometry, StageAmbient},
	StageLightProxies:     {StageAmbient},
	StageBloom:            {StageAmbient},
	StageComposite:        {StageAmbient},
	StagePresent:          {StageComposite},
}

// Requires returns the stages s reads from.
func (s Stage) Requires() []Stage {
	if s < 0 || s >= stageCount {
		return nil
	}
	return requires[s]
}

// Plan returns the stages one frame of sc runs under rc.
func Plan(rc config.RenderConfig, sc *scene.Scene) []Stage {
	hasSun := sc.Directional != nil && sc.Directional.Visible
	hasPoints := rc.Lights.Count > 0 && len(sc.PointLights) > 0

	plan := make([]Stage, 0, stageCount)
	add := func(s Stage, on bool) {
		if on {
			plan = append(plan, s)
		}
	}
	add(StageShadow, hasSun)
	add(StageGeometry, true)
	add(StageDecals, rc.Decals.Enabled && len(sc.Decals) > 0)
	add(StageAmbientOcclusion, rc.AO.Enabled)
	add(StageAmbient, true)
	add(StagePointLights, hasPoints)
	add(StageDirectionalLight, hasSun)
	add(StageLightProxies, hasPoints && rc.Lights.DrawProxies)
	add(StageBloom, rc.PostFX.Bloom)
	add(StageComposite, true)
	add(StagePresent, true)
	return plan
}

// ValidatePlan checks that stages are unique, in frame order and preceded
// by everything they read.
func ValidatePlan(plan []Stage) error {
	var seen [stageCount]bool
	prev := Stage(-1)
	for _, s := range plan {
		if s < 0 || s >= stageCount {
			return fmt.Errorf("unknown %s: %w", s, ErrStageOrder)
		}
		if s <= prev {
			return fmt.Errorf("%s after %s: %w", s, prev, ErrStageOrder)
		}
		for _, r := range requires[s] {
			if !seen[r] {
				return fmt.Errorf("%s needs %s first: %w", s, r, ErrStageOrder)
			}
		}
		seen[s] = true
		prev = s
	}
	return nil
}
