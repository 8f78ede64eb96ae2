package replay

import (
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"screenpilot/internal/codex"
	"screenpilot/internal/config"
	"screenpilot/internal/logging"
	"screenpilot/internal/resolve"
	"screenpilot/internal/vision"
)

// ErrNoTarget is returned when a click step carries neither coordinates
// nor a resolvable symbolic target.
var ErrNoTarget = fmt.Errorf("step has no usable target")

// Guard executes one replay step at a time: it translates targets to
// pixels and suppresses duplicate clicks. Both the direct-coordinate and
// symbolic-target click paths share the one suppression rule, so the two
// cannot drift apart.
type Guard struct {
	act      Actuator
	resolver *resolve.Resolver
	cfg      config.GuardConfig
	log      *zap.Logger
}

// NewGuard wires a Guard to its actuation capability and resolver.
func NewGuard(act Actuator, resolver *resolve.Resolver, cfg config.GuardConfig) *Guard {
	return &Guard{act: act, resolver: resolver, cfg: cfg, log: logging.Get(logging.CategoryReplay)}
}

// StepResult says what the guard did with one step.
type StepResult struct {
	Executed   bool
	Suppressed bool
	Note       string
}

// ExecuteStep performs one resolved step against the live treasure map.
func (g *Guard) ExecuteStep(ctx *RunContext, step codex.Step, m vision.Map) (StepResult, error) {
	switch step.Action {
	case codex.EventClick:
		return g.executeClick(ctx, step, m)
	case codex.EventType:
		if step.Text == "" {
			return StepResult{Note: "no text to type"}, nil
		}
		if err := g.act.PasteText(step.Text); err != nil {
			return StepResult{}, fmt.Errorf("paste text: %w", err)
		}
		return StepResult{Executed: true}, nil
	case codex.EventKey:
		return g.executeKey(step)
	case "move", "hover":
		return g.executeMove(ctx, step, m)
	default:
		return StepResult{Note: "unsupported action: " + step.Action}, nil
	}
}

// executeClick translates the step's target to pixels and clicks unless
// the duplicate guard suppresses it.
func (g *Guard) executeClick(ctx *RunContext, step codex.Step, m vision.Map) (StepResult, error) {
	x, y, err := g.targetPixels(step, m)
	if err != nil {
		return StepResult{}, err
	}

	if suppressed, note := g.shouldSuppress(ctx, x, y, step.Target); suppressed {
		ctx.lastSkippedTarget = step.Target
		g.log.Info("duplicate click suppressed",
			zap.String("target", step.Target),
			zap.String("reason", note),
			zap.String("run", ctx.ID))
		return StepResult{Suppressed: true, Note: note}, nil
	}

	if err := g.act.Click(x, y); err != nil {
		return StepResult{}, fmt.Errorf("click %q at (%d,%d): %w", step.Target, x, y, err)
	}
	ctx.recordClick(x, y, step.Target)
	return StepResult{Executed: true}, nil
}

// shouldSuppress applies the duplicate-click rule against the context's
// last recorded click: at or under the same-pixel tolerance the click is
// always suppressed (same UI element); under the click tolerance it is
// suppressed only when the target name matches, case- and
// whitespace-insensitively.
func (g *Guard) shouldSuppress(ctx *RunContext, x, y int, target string) (bool, string) {
	if !ctx.hasLastClick {
		return false, ""
	}
	dist := math.Hypot(float64(x-ctx.lastClickX), float64(y-ctx.lastClickY))

	if dist <= g.cfg.SamePixelTolerance {
		return true, fmt.Sprintf("identical coordinates (%.1fpx)", dist)
	}
	if dist < g.cfg.ClickTolerance && sameTarget(target, ctx.lastClickTarget) {
		return true, fmt.Sprintf("same target %q too close to last click (%.1fpx)", target, dist)
	}
	return false, ""
}

func sameTarget(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// targetPixels finds the absolute click point: direct normalized
// coordinates are scaled to the screen; a symbolic target is resolved
// against the treasure map and its geometric center used.
func (g *Guard) targetPixels(step codex.Step, m vision.Map) (int, int, error) {
	w, h, err := g.act.ScreenSize()
	if err != nil {
		return 0, 0, fmt.Errorf("screen size: %w", err)
	}

	if len(step.Coordinates) >= 2 {
		return int(step.Coordinates[0] * float64(w)), int(step.Coordinates[1] * float64(h)), nil
	}

	if step.Target == "" {
		return 0, 0, ErrNoTarget
	}
	entry, err := g.resolver.Resolve(step.Target, m)
	if err != nil {
		return 0, 0, fmt.Errorf("resolve %q: %w", step.Target, err)
	}
	cx, cy := entry.Box.Center()
	return int(cx * float64(w)), int(cy * float64(h)), nil
}

// executeKey handles single keys and "mod+key" combos.
func (g *Guard) executeKey(step codex.Step) (StepResult, error) {
	key := strings.ToLower(strings.TrimSpace(step.Key))
	if key == "" {
		key = strings.ToLower(strings.TrimSpace(step.Text))
	}
	if key == "" {
		return StepResult{Note: "no key specified"}, nil
	}

	if strings.Contains(key, "+") {
		parts := strings.Split(key, "+")
		mods := make([]string, 0, len(parts)-1)
		for _, p := range parts[:len(parts)-1] {
			mods = append(mods, normalizeModifier(strings.TrimSpace(p)))
		}
		main := strings.TrimSpace(parts[len(parts)-1])
		if err := g.act.KeyCombo(mods, main); err != nil {
			return StepResult{}, fmt.Errorf("key combo %q: %w", key, err)
		}
		return StepResult{Executed: true}, nil
	}

	if err := g.act.PressKey(key); err != nil {
		return StepResult{}, fmt.Errorf("press key %q: %w", key, err)
	}
	return StepResult{Executed: true}, nil
}

func normalizeModifier(mod string) string {
	switch mod {
	case "cmd", "command":
		return "command"
	case "ctrl", "control":
		return "ctrl"
	case "opt", "option", "alt":
		return "option"
	default:
		return mod
	}
}

// executeMove moves the pointer without clicking; no suppression applies.
func (g *Guard) executeMove(ctx *RunContext, step codex.Step, m vision.Map) (StepResult, error) {
	x, y, err := g.targetPixels(step, m)
	if err != nil {
		return StepResult{}, err
	}
	if err := g.act.MoveTo(x, y, 500*time.Millisecond); err != nil {
		return StepResult{}, fmt.Errorf("move to %q: %w", step.Target, err)
	}
	return StepResult{Executed: true}, nil
}
