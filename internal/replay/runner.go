package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"screenpilot/internal/codex"
	"screenpilot/internal/config"
	"screenpilot/internal/logging"
	"screenpilot/internal/resolve"
	"screenpilot/internal/vision"
)

// Step lifecycle states.
type StepState string

const (
	StatePending    StepState = "pending"
	StateResolved   StepState = "resolved"
	StateSuppressed StepState = "suppressed"
	StateExecuted   StepState = "executed"
	StateAdvanced   StepState = "advanced"
	StateAborted    StepState = "aborted"
)

// Run terminal states.
type RunState string

const (
	RunCompleted RunState = "completed"
	RunAborted   RunState = "aborted"
)

// CaptureFunc supplies the live treasure map for one pulse. Implemented
// by the external capture/recognition collaborator.
type CaptureFunc func(ctx context.Context) (vision.Map, error)

// StepReport records how one step moved through its lifecycle.
type StepReport struct {
	Index      int       `json:"step"`
	Target     string    `json:"target"`
	State      StepState `json:"state"`
	Suppressed bool      `json:"suppressed,omitempty"`
	Note       string    `json:"note,omitempty"`
}

// ItemReport covers one item's pass over the steps.
type ItemReport struct {
	Item      string       `json:"item,omitempty"`
	Completed bool         `json:"completed"`
	Steps     []StepReport `json:"steps"`
}

// RunReport is the outcome of a whole run.
type RunReport struct {
	RunID string       `json:"run_id"`
	State RunState     `json:"state"`
	Items []ItemReport `json:"items"`
	Error string       `json:"error,omitempty"`
}

// Runner replays an automation: per item, per pulse, it captures a fresh
// treasure map, resolves the current step, and hands it to the guard.
type Runner struct {
	guard   *Guard
	capture CaptureFunc
	cfg     config.ReplayConfig
	log     *zap.Logger
}

// NewRunner assembles a Runner from its collaborators.
func NewRunner(act Actuator, resolver *resolve.Resolver, capture CaptureFunc, cfg config.Config) *Runner {
	return &Runner{
		guard:   NewGuard(act, resolver, cfg.Guard),
		capture: capture,
		cfg:     cfg.Replay,
		log:     logging.Get(logging.CategoryReplay),
	}
}

// Run replays every step of the automation once per item. With no items,
// the steps run once with the given variables alone.
//
// Failure handling follows the error taxonomy: an unresolved placeholder
// aborts the whole run before anything executes; a capture failure
// aborts only the current pulse and the step is retried on the next one;
// a resolution failure without a coordinate fallback or an actuation
// fault aborts the current item and the run moves to the next one.
func (r *Runner) Run(ctx context.Context, auto *codex.Automation, vars map[string]string, items []string) *RunReport {
	base := NewRunContext(vars)
	report := &RunReport{RunID: base.ID, State: RunCompleted}

	if len(auto.Steps) == 0 {
		report.State = RunAborted
		report.Error = "automation has no steps"
		return report
	}

	if len(items) == 0 {
		items = []string{""}
	}

	for _, item := range items {
		runCtx := base.Clone()
		if item != "" {
			runCtx.SetVar("variable_1", item)
		}

		itemReport, err := r.runItem(ctx, runCtx, auto, item)
		report.Items = append(report.Items, itemReport)

		if err != nil {
			// Placeholder refusal and cancellation poison the whole
			// run; anything else only abandons this item.
			if errors.Is(err, ErrUnresolvedPlaceholder) || ctx.Err() != nil {
				report.State = RunAborted
				report.Error = err.Error()
				return report
			}
			r.log.Warn("item aborted",
				zap.String("item", item),
				zap.String("run", base.ID),
				zap.Error(err))
		}
	}

	for _, it := range report.Items {
		if !it.Completed {
			report.State = RunAborted
			break
		}
	}
	return report
}

// runItem walks one item through every step.
func (r *Runner) runItem(ctx context.Context, runCtx *RunContext, auto *codex.Automation, item string) (ItemReport, error) {
	report := ItemReport{Item: item}
	stepIndex := 0
	pulse := 0

	for stepIndex < len(auto.Steps) {
		pulse++
		if pulse > r.cfg.MaxPulsesPerItem {
			report.Steps = append(report.Steps, StepReport{
				Index:  auto.Steps[stepIndex].Index,
				Target: auto.Steps[stepIndex].Target,
				State:  StateAborted,
				Note:   "pulse budget exhausted",
			})
			return report, fmt.Errorf("item %q: pulse budget exhausted at step %d", item, stepIndex)
		}
		if err := r.pause(ctx, pulse); err != nil {
			return report, err
		}

		step := auto.Steps[stepIndex]
		sr := StepReport{Index: step.Index, Target: step.Target, State: StatePending}

		resolved, err := ResolveStep(step, runCtx.Vars)
		if err != nil {
			sr.State = StateAborted
			sr.Note = err.Error()
			report.Steps = append(report.Steps, sr)
			return report, err
		}
		sr.State = StateResolved
		sr.Target = resolved.Target

		m, err := r.capture(ctx)
		if err != nil {
			// Capture failure aborts this pulse only; the step stays
			// current and is retried on the next pulse.
			r.log.Warn("capture failed, retrying next pulse",
				zap.Int("pulse", pulse),
				zap.Error(err))
			continue
		}

		result, err := r.guard.ExecuteStep(runCtx, resolved, m)
		if err != nil {
			sr.State = StateAborted
			sr.Note = err.Error()
			report.Steps = append(report.Steps, sr)
			return report, fmt.Errorf("step %d: %w", step.Index, err)
		}

		if result.Suppressed {
			sr.State = StateSuppressed
			sr.Suppressed = true
		} else {
			sr.State = StateExecuted
		}
		sr.Note = result.Note

		// A suppressed duplicate is a satisfied step, not a failed one;
		// both branches advance.
		sr.State = StateAdvanced
		report.Steps = append(report.Steps, sr)
		stepIndex++
	}

	report.Completed = true
	return report, nil
}

// pause blocks between pulses, honoring cancellation at the boundary.
func (r *Runner) pause(ctx context.Context, pulse int) error {
	delay := r.cfg.PulseInterval
	if pulse == 1 {
		delay = r.cfg.FirstPulseDelay
	}
	if delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
