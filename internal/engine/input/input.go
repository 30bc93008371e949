// Package input handles SDL2 input events.
package input

import (
	"fmt"

	"github.com/veandco/go-sdl2/sdl"
)

// EventType is the kind of a processed event.
type EventType int

const (
	EventNone EventType = iota
	EventQuit
	EventWindowResize
	EventKeyDown
	EventKeyUp
	EventMouseMove
	EventMouseDown
	EventMouseUp
)

// Event represents a processed input event.
type Event struct {
	Type   EventType
	Key    sdl.Scancode
	Repeat bool
	Width  int
	Height int
	MouseX int
	MouseY int
	DeltaX int
	DeltaY int
	// Button is the pressed button, or the held-button mask for motion.
	Button uint8
}

// Action is what a key press asks the application to do.
type Action int

const (
	ActionNone Action = iota
	ActionQuit
	ActionScreenshot
	ActionReloadScene
	ActionReloadShaders
	ActionToggleProxies
	ActionToggleBloom
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionQuit:
		return "quit"
	case ActionScreenshot:
		return "screenshot"
	case ActionReloadScene:
		return "reload_scene"
	case ActionReloadShaders:
		return "reload_shaders"
	case ActionToggleProxies:
		return "toggle_proxies"
	case ActionToggleBloom:
		return "toggle_bloom"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// DefaultBindings maps keys to actions.
func DefaultBindings() map[sdl.Scancode]Action {
	return map[sdl.Scancode]Action{
		sdl.SCANCODE_ESCAPE: ActionQuit,
		sdl.SCANCODE_F12:    ActionScreenshot,
		sdl.SCANCODE_F5:     ActionReloadScene,
		sdl.SCANCODE_R:      ActionReloadShaders,
		sdl.SCANCODE_L:      ActionToggleProxies,
		sdl.SCANCODE_B:      ActionToggleBloom,
	}
}

// Input handles all input processing.
type Input struct {
	events   []Event
	actions  []Action
	bindings map[sdl.Scancode]Action
}

// New creates a new input handler with the default bindings.
func New() *Input {
	return &Input{
		events:   make([]Event, 0, 16),
		bindings: DefaultBindings(),
	}
}

// Update polls SDL events and converts them.
// Returns true if the application should quit.
func (i *Input) Update() bool {
	i.events = i.events[:0]
	i.actions = i.actions[:0]

	quit := false
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		ev, ok := Translate(event)
		if !ok {
			continue
		}
		if i.push(ev) == ActionQuit {
			quit = true
		}
	}
	return quit
}

// push records ev and the action it triggers.
func (i *Input) push(ev Event) Action {
	i.events = append(i.events, ev)
	a := i.action(ev)
	if a != ActionNone {
		i.actions = append(i.actions, a)
	}
	return a
}

func (i *Input) action(ev Event) Action {
	switch {
	case ev.Type == EventQuit:
		return ActionQuit
	case ev.Type == EventKeyDown && !ev.Repeat:
		return i.bindings[ev.Key]
	}
	return ActionNone
}

// Translate converts an SDL event. Events the application ignores report
// false.
func Translate(event sdl.Event) (Event, bool) {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		return Event{Type: EventQuit}, true

	case *sdl.WindowEvent:
		if e.Event == sdl.WINDOWEVENT_SIZE_CHANGED || e.Event == sdl.WINDOWEVENT_RESIZED {
			return Event{Type: EventWindowResize, Width: int(e.Data1), Height: int(e.Data2)}, true
		}

	case *sdl.KeyboardEvent:
		t := EventKeyUp
		if e.Type == sdl.KEYDOWN {
			t = EventKeyDown
		}
		return Event{Type: t, Key: e.Keysym.Scancode, Repeat: e.Repeat != 0}, true

	case *sdl.MouseMotionEvent:
		return Event{
			Type:   EventMouseMove,
			MouseX: int(e.X),
			MouseY: int(e.Y),
			DeltaX: int(e.XRel),
			DeltaY: int(e.YRel),
			Button: uint8(e.State),
		}, true

	case *sdl.MouseButtonEvent:
		t := EventMouseUp
		if e.Type == sdl.MOUSEBUTTONDOWN {
			t = EventMouseDown
		}
		return Event{Type: t, MouseX: int(e.X), MouseY: int(e.Y), Button: e.Button}, true
	}
	return Event{}, false
}

// Events returns the events from the last Update.
func (i *Input) Events() []Event {
	return i.events
}

// Actions returns the actions triggered during the last Update, in order.
func (i *Input) Actions() []Action {
	return i.actions
}

// IsKeyPressed checks if a specific key was pressed this frame.
func (i *Input) IsKeyPressed(scancode sdl.Scancode) bool {
	for _, e := range i.events {
		if e.Type == EventKeyDown && e.Key == scancode {
			return true
		}
	}
	return false
}

// Held reports whether a key is currently down.
func Held(scancode sdl.Scancode) bool {
	return sdl.GetKeyboardState()[scancode] != 0
}
