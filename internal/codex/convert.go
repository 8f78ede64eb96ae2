package codex

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"screenpilot/internal/config"
	"screenpilot/internal/logging"
)

// ErrQualityTooLow is returned when a converted session falls below the
// caller's quality threshold and must not be saved.
var ErrQualityTooLow = fmt.Errorf("session reliability below quality threshold")

// ErrEmptySession is returned for a session with no recorded actions.
var ErrEmptySession = fmt.Errorf("no actions in session")

// Converter turns a recorded session into a filtered automation.
type Converter struct {
	classifier *Classifier
	cfg        config.ConvertConfig
	log        *zap.Logger
}

// NewConverter builds a Converter around a classifier.
func NewConverter(classifier *Classifier, cfg config.ConvertConfig) *Converter {
	return &Converter{classifier: classifier, cfg: cfg, log: logging.Get(logging.CategoryCodex)}
}

// Convert classifies every action and assembles the reliable ones into
// an Automation. Unreliable actions are dropped and their failing check
// names tallied into the quality report. The automation is always
// returned, even below threshold; Gate decides whether it may be saved.
func (c *Converter) Convert(actions []ActionRecord, name, source string) (*Automation, error) {
	if len(actions) == 0 {
		return nil, ErrEmptySession
	}
	if name == "" {
		name = "automation_" + time.Now().Format("20060102_1504")
	}

	report := QualityReport{
		TotalActions: len(actions),
		FailedChecks: make(map[string]int),
	}
	var steps []Step

	for i, action := range actions {
		outcome := c.classifier.Classify(action)
		if outcome.Summary.Reliable {
			steps = append(steps, buildStep(action, len(steps)+1, outcome))
			report.ReliableSteps++
			continue
		}
		report.UnreliableSteps++
		for _, check := range outcome.Checks {
			if !check.Passed {
				report.FailedChecks[check.Name]++
			}
		}
		c.log.Info("dropped unreliable action",
			zap.Int("index", i+1),
			zap.String("event", action.Event),
			zap.Int("passed", outcome.Summary.ChecksPassed),
			zap.Int("total", outcome.Summary.TotalChecks))
	}

	return &Automation{
		Name:        name,
		Description: fmt.Sprintf("Learned automation with %d steps", len(steps)),
		Created:     time.Now(),
		Source:      source,
		Steps:       steps,
		Quality:     report,
		Settings: Settings{
			GeneratedFrom:        "learning_session",
			QualityChecks:        "enabled",
			ReliabilityThreshold: "high",
		},
	}, nil
}

// Gate refuses an automation whose session reliability is below the
// configured threshold, instead of silently producing broken automation.
func (c *Converter) Gate(auto *Automation) error {
	rate := auto.Quality.Rate()
	if rate < c.cfg.QualityThreshold {
		return fmt.Errorf("%w: %.1f%% reliable, need %.1f%% (%s)",
			ErrQualityTooLow, rate*100, c.cfg.QualityThreshold*100, Rating(rate))
	}
	return nil
}

// buildStep materializes a reliable action into an automation step with
// its action-specific payload.
func buildStep(action ActionRecord, index int, outcome Outcome) Step {
	step := Step{
		Index:        index,
		Action:       action.Event,
		Target:       outcome.Target,
		DetectedText: outcome.Detection.DetectedText,
		Actor:        "automation",
		App:          orUnknown(action.Window.App),
		WindowTitle:  orUnknown(action.Window.Title),
		Notes:        fmt.Sprintf("Auto-generated step %d", index),
		Reliability: Reliability{
			Confidence:   outcome.Summary.Confidence,
			ChecksPassed: outcome.Summary.ChecksPassed,
			Verified:     true,
		},
		CropScreenshot: outcome.Detection.CropScreenshot,
		OCRConfidence:  outcome.Detection.OCRConfidence,
	}

	switch action.Event {
	case EventClick:
		step.Coordinates = action.RelPosition
		if step.Coordinates == nil {
			step.Coordinates = []float64{0, 0}
		}
		step.ClickType = "left_click"
	case EventType:
		step.Text = action.Text
		step.InputType = "text_entry"
	case EventKey:
		key := action.Key
		if key == "" {
			key = action.Text
		}
		if key == "" {
			key = "unknown"
		}
		step.Key = key
		step.InputType = "keyboard"
	}
	return step
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// SaveAutomation writes an automation as indented JSON.
func SaveAutomation(auto *Automation, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create automation dir: %w", err)
	}
	path := filepath.Join(dir, auto.Name+".json")
	data, err := json.MarshalIndent(auto, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal automation: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write automation: %w", err)
	}
	return path, nil
}

// LoadAutomation reads an automation saved by SaveAutomation.
func LoadAutomation(path string) (*Automation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read automation: %w", err)
	}
	var auto Automation
	if err := json.Unmarshal(data, &auto); err != nil {
		return nil, fmt.Errorf("parse automation %s: %w", path, err)
	}
	return &auto, nil
}
