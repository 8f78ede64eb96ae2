// Package replay drives automation playback: it resolves placeholders,
// maps targets to pixels, suppresses duplicate clicks, and walks each
// step through its lifecycle.
package replay

import (
	"fmt"
	"sync"
	"time"
)

// Actuator is the input-injection capability consumed during replay.
// The real implementation lives outside this module; passing it in
// explicitly keeps replay free of hidden global state and lets tests
// substitute a double.
type Actuator interface {
	Click(x, y int) error
	MoveTo(x, y int, duration time.Duration) error
	PressKey(key string) error
	KeyCombo(modifiers []string, key string) error
	TypeText(text string) error
	PasteText(text string) error
	ScreenSize() (width, height int, err error)
}

// ActuatorCall records one capability invocation.
type ActuatorCall struct {
	Op   string
	X, Y int
	Text string
	Key  string
	Mods []string
}

// RecordingActuator is a capability double that records calls instead of
// injecting input. Used by the --dry-run replay mode and by tests.
type RecordingActuator struct {
	mu     sync.Mutex
	calls  []ActuatorCall
	Width  int
	Height int

	// FailOn makes the named op return an error, for fault injection.
	FailOn string
}

// NewRecordingActuator returns a double reporting the given screen size.
func NewRecordingActuator(width, height int) *RecordingActuator {
	return &RecordingActuator{Width: width, Height: height}
}

// Calls returns a copy of everything invoked so far.
func (r *RecordingActuator) Calls() []ActuatorCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ActuatorCall, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *RecordingActuator) record(call ActuatorCall) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailOn == call.Op {
		return fmt.Errorf("actuation failed: %s", call.Op)
	}
	r.calls = append(r.calls, call)
	return nil
}

func (r *RecordingActuator) Click(x, y int) error {
	return r.record(ActuatorCall{Op: "click", X: x, Y: y})
}

func (r *RecordingActuator) MoveTo(x, y int, duration time.Duration) error {
	return r.record(ActuatorCall{Op: "move", X: x, Y: y})
}

func (r *RecordingActuator) PressKey(key string) error {
	return r.record(ActuatorCall{Op: "press", Key: key})
}

func (r *RecordingActuator) KeyCombo(modifiers []string, key string) error {
	return r.record(ActuatorCall{Op: "combo", Key: key, Mods: modifiers})
}

func (r *RecordingActuator) TypeText(text string) error {
	return r.record(ActuatorCall{Op: "type", Text: text})
}

func (r *RecordingActuator) PasteText(text string) error {
	return r.record(ActuatorCall{Op: "paste", Text: text})
}

func (r *RecordingActuator) ScreenSize() (int, int, error) {
	if r.FailOn == "size" {
		return 0, 0, fmt.Errorf("actuation failed: size")
	}
	return r.Width, r.Height, nil
}
