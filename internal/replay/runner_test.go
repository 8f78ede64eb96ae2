package replay

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenpilot/internal/codex"
	"screenpilot/internal/config"
	"screenpilot/internal/resolve"
	"screenpilot/internal/vision"
)

func testReplayConfig() config.Config {
	cfg := config.Default()
	cfg.Replay.FirstPulseDelay = 0
	cfg.Replay.PulseInterval = 0
	return *cfg
}

func emptyCapture(context.Context) (vision.Map, error) {
	return vision.Map{}, nil
}

func newTestRunner(act Actuator, capture CaptureFunc, cfg config.Config) *Runner {
	return NewRunner(act, resolve.New(cfg.Scoring), capture, cfg)
}

func TestRunnerCompletesAllSteps(t *testing.T) {
	act := NewRecordingActuator(1000, 1000)
	r := newTestRunner(act, emptyCapture, testReplayConfig())

	auto := &codex.Automation{Steps: []codex.Step{
		{Index: 1, Action: codex.EventClick, Target: "Compose", Coordinates: []float64{0.1, 0.1}},
		{Index: 2, Action: codex.EventType, Text: "hello"},
		{Index: 3, Action: codex.EventKey, Key: "enter"},
	}}

	report := r.Run(context.Background(), auto, nil, nil)
	assert.Equal(t, RunCompleted, report.State)
	require.Len(t, report.Items, 1)
	assert.True(t, report.Items[0].Completed)
	require.Len(t, report.Items[0].Steps, 3)
	for _, sr := range report.Items[0].Steps {
		assert.Equal(t, StateAdvanced, sr.State)
	}

	calls := act.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "click", calls[0].Op)
	assert.Equal(t, "paste", calls[1].Op)
	assert.Equal(t, "press", calls[2].Op)
}

func TestRunnerEmptyAutomationAborts(t *testing.T) {
	r := newTestRunner(NewRecordingActuator(1000, 1000), emptyCapture, testReplayConfig())
	report := r.Run(context.Background(), &codex.Automation{}, nil, nil)
	assert.Equal(t, RunAborted, report.State)
	assert.NotEmpty(t, report.Error)
}

func TestRunnerUnresolvedPlaceholderAbortsRun(t *testing.T) {
	act := NewRecordingActuator(1000, 1000)
	r := newTestRunner(act, emptyCapture, testReplayConfig())

	auto := &codex.Automation{Steps: []codex.Step{
		{Index: 1, Action: codex.EventType, Text: "Hi {recipient}"},
	}}

	report := r.Run(context.Background(), auto, map[string]string{"sender": "Mia"}, []string{"a", "b"})
	assert.Equal(t, RunAborted, report.State)
	assert.Contains(t, report.Error, "recipient")
	// Nothing executed and the remaining items never start.
	assert.Empty(t, act.Calls())
	require.Len(t, report.Items, 1)
	assert.Equal(t, StateAborted, report.Items[0].Steps[0].State)
}

func TestRunnerCaptureFailureRetriesSameStep(t *testing.T) {
	act := NewRecordingActuator(1000, 1000)
	attempts := 0
	capture := func(context.Context) (vision.Map, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("screen grab failed")
		}
		return vision.Map{}, nil
	}
	r := newTestRunner(act, capture, testReplayConfig())

	auto := &codex.Automation{Steps: []codex.Step{
		{Index: 1, Action: codex.EventClick, Target: "Send", Coordinates: []float64{0.5, 0.5}},
	}}

	report := r.Run(context.Background(), auto, nil, nil)
	assert.Equal(t, RunCompleted, report.State)
	assert.Equal(t, 2, attempts)
	require.Len(t, act.Calls(), 1)
}

func TestRunnerActuationFailureAbortsItemNotRun(t *testing.T) {
	act := NewRecordingActuator(1000, 1000)
	act.FailOn = "click"
	r := newTestRunner(act, emptyCapture, testReplayConfig())

	auto := &codex.Automation{Steps: []codex.Step{
		{Index: 1, Action: codex.EventClick, Target: "Send", Coordinates: []float64{0.5, 0.5}},
	}}

	report := r.Run(context.Background(), auto, nil, []string{"a", "b"})
	// Both items are attempted; each aborts on its own.
	require.Len(t, report.Items, 2)
	assert.False(t, report.Items[0].Completed)
	assert.False(t, report.Items[1].Completed)
	assert.Equal(t, RunAborted, report.State)
}

func TestRunnerItemsInjectFirstVariable(t *testing.T) {
	act := NewRecordingActuator(1000, 1000)
	r := newTestRunner(act, emptyCapture, testReplayConfig())

	auto := &codex.Automation{Steps: []codex.Step{
		{Index: 1, Action: codex.EventType, Text: "Order {variable_1}"},
	}}

	report := r.Run(context.Background(), auto, nil, []string{"apples", "pears"})
	assert.Equal(t, RunCompleted, report.State)

	calls := act.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "Order apples", calls[0].Text)
	assert.Equal(t, "Order pears", calls[1].Text)
}

func TestRunnerClickMemoryResetsBetweenItems(t *testing.T) {
	act := NewRecordingActuator(1000, 1000)
	r := newTestRunner(act, emptyCapture, testReplayConfig())

	auto := &codex.Automation{Steps: []codex.Step{
		{Index: 1, Action: codex.EventClick, Target: "Send", Coordinates: []float64{0.5, 0.5}},
	}}

	report := r.Run(context.Background(), auto, nil, []string{"a", "b"})
	assert.Equal(t, RunCompleted, report.State)
	// The same coordinates click twice because each item starts with a
	// fresh click memory.
	require.Len(t, act.Calls(), 2)
}

func TestRunnerSuppressedStepStillAdvances(t *testing.T) {
	act := NewRecordingActuator(1000, 1000)
	r := newTestRunner(act, emptyCapture, testReplayConfig())

	auto := &codex.Automation{Steps: []codex.Step{
		{Index: 1, Action: codex.EventClick, Target: "Send", Coordinates: []float64{0.5, 0.5}},
		{Index: 2, Action: codex.EventClick, Target: "Send", Coordinates: []float64{0.5, 0.5}},
	}}

	report := r.Run(context.Background(), auto, nil, nil)
	assert.Equal(t, RunCompleted, report.State)
	steps := report.Items[0].Steps
	require.Len(t, steps, 2)
	assert.False(t, steps[0].Suppressed)
	assert.True(t, steps[1].Suppressed)
	assert.Equal(t, StateAdvanced, steps[1].State)
	require.Len(t, act.Calls(), 1)
}

func TestRunnerPulseBudgetExhausted(t *testing.T) {
	cfg := testReplayConfig()
	cfg.Replay.MaxPulsesPerItem = 3
	capture := func(context.Context) (vision.Map, error) {
		return nil, errors.New("screen grab failed")
	}
	r := newTestRunner(NewRecordingActuator(1000, 1000), capture, cfg)

	auto := &codex.Automation{Steps: []codex.Step{
		{Index: 1, Action: codex.EventClick, Target: "Send", Coordinates: []float64{0.5, 0.5}},
	}}

	report := r.Run(context.Background(), auto, nil, nil)
	assert.Equal(t, RunAborted, report.State)
	steps := report.Items[0].Steps
	require.NotEmpty(t, steps)
	assert.Equal(t, StateAborted, steps[len(steps)-1].State)
	assert.Contains(t, steps[len(steps)-1].Note, "pulse budget")
}

func TestRunnerCancellationAbortsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := newTestRunner(NewRecordingActuator(1000, 1000), emptyCapture, testReplayConfig())

	auto := &codex.Automation{Steps: []codex.Step{
		{Index: 1, Action: codex.EventClick, Target: "Send", Coordinates: []float64{0.5, 0.5}},
	}}

	report := r.Run(ctx, auto, nil, nil)
	assert.Equal(t, RunAborted, report.State)
}
