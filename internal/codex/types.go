// Package codex decides which recorded interactions are trustworthy
// enough to replay. It runs an action-type-specific battery of checks
// over each raw recorded action, keeps the ones that clear their
// threshold as automation steps, and reports session-level quality.
package codex

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Action event types recognized by the classifier.
const (
	EventClick = "click"
	EventType  = "type"
	EventKey   = "key"
)

// Confidence tiers, assigned from the exact check pass count.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Window describes the window an action was recorded in.
type Window struct {
	App    string  `json:"app"`
	Title  string  `json:"title"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Alpha  float64 `json:"alpha"`
}

// ActionRecord is one raw recorded interaction from the session
// recorder. Read-only input to classification.
type ActionRecord struct {
	Event          string     `json:"event"`
	RelPosition    []float64  `json:"rel_position,omitempty"`
	Window         Window     `json:"window"`
	Text           string     `json:"text,omitempty"`
	Key            string     `json:"key,omitempty"`
	CropScreenshot string     `json:"crop_screenshot,omitempty"`
	Timestamp      *time.Time `json:"timestamp,omitempty"`
}

// CheckResult is the verdict of one reliability check.
type CheckResult struct {
	Name   string `json:"-"`
	Passed bool   `json:"passed"`
	Note   string `json:"note"`
}

// Summary aggregates one action's check run. Reliable (threshold-based)
// and Confidence (exact-pass-count-based) are deliberately separate: a
// 4-of-5 click is reliable but only medium confidence.
type Summary struct {
	ChecksPassed int     `json:"checks_passed"`
	TotalChecks  int     `json:"total_checks"`
	SuccessRate  float64 `json:"success_rate"`
	Reliable     bool    `json:"reliable"`
	Confidence   string  `json:"confidence"`
}

// Detection carries what the target-naming stage saw.
type Detection struct {
	DetectedText   string `json:"detected_text,omitempty"`
	OCRConfidence  string `json:"ocr_confidence"`
	CropScreenshot string `json:"crop_screenshot,omitempty"`
}

// Outcome is the full classification result for one action.
type Outcome struct {
	Target    string        `json:"target"`
	Detection Detection     `json:"detection_info"`
	Checks    []CheckResult `json:"-"`
	Summary   Summary       `json:"summary"`
}

// ChecksByName is used for the JSON report shape {name: {passed, note}}.
func (o *Outcome) ChecksByName() map[string]CheckResult {
	out := make(map[string]CheckResult, len(o.Checks))
	for _, c := range o.Checks {
		out[c.Name] = c
	}
	return out
}

// Reliability is the per-step reliability block on a saved automation.
type Reliability struct {
	Confidence   string `json:"confidence"`
	ChecksPassed int    `json:"checks_passed"`
	Verified     bool   `json:"verified"`
}

// Step is one validated automation step. It exists only because its
// source action met its type's reliability threshold, and is immutable
// once created.
type Step struct {
	Index        int         `json:"step"`
	Action       string      `json:"action"`
	Target       string      `json:"target"`
	DetectedText string      `json:"detected_text,omitempty"`
	Actor        string      `json:"actor"`
	App          string      `json:"app"`
	WindowTitle  string      `json:"window_title"`
	Notes        string      `json:"notes"`
	Reliability  Reliability `json:"reliability"`

	CropScreenshot string `json:"crop_screenshot,omitempty"`
	OCRConfidence  string `json:"ocr_confidence,omitempty"`

	// Click payload
	Coordinates []float64 `json:"coordinates,omitempty"`
	ClickType   string    `json:"click_type,omitempty"`

	// Keyboard payload
	Text      string `json:"text,omitempty"`
	Key       string `json:"key,omitempty"`
	InputType string `json:"input_type,omitempty"`
}

// QualityReport aggregates one classification pass over a session.
type QualityReport struct {
	TotalActions    int            `json:"total_actions"`
	ReliableSteps   int            `json:"reliable_steps"`
	UnreliableSteps int            `json:"unreliable_steps"`
	FailedChecks    map[string]int `json:"failed_checks"`
}

// Rate returns the reliable/total ratio, 0 for an empty session.
func (q QualityReport) Rate() float64 {
	if q.TotalActions == 0 {
		return 0
	}
	return float64(q.ReliableSteps) / float64(q.TotalActions)
}

// Reliability rating bands over the session rate.
const (
	RatingVeryReliable     = "very_reliable"
	RatingMostlyReliable   = "mostly_reliable"
	RatingSomewhatReliable = "somewhat_reliable"
	RatingNeedsImprovement = "needs_improvement"
)

// Rating buckets a session rate into a human-readable band.
func Rating(rate float64) string {
	switch {
	case rate >= 0.9:
		return RatingVeryReliable
	case rate >= 0.75:
		return RatingMostlyReliable
	case rate >= 0.5:
		return RatingSomewhatReliable
	default:
		return RatingNeedsImprovement
	}
}

// Settings records how an automation was produced.
type Settings struct {
	GeneratedFrom        string `json:"generated_from"`
	QualityChecks        string `json:"quality_checks"`
	ReliabilityThreshold string `json:"reliability_threshold"`
}

// Automation is a converted, quality-gated set of replayable steps.
type Automation struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Created     time.Time     `json:"created"`
	Source      string        `json:"source"`
	Steps       []Step        `json:"steps"`
	Quality     QualityReport `json:"quality_report"`
	Settings    Settings      `json:"settings"`
}

// LoadSession reads a recorded session file: a JSON array of ActionRecord.
func LoadSession(path string) ([]ActionRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var actions []ActionRecord
	if err := json.Unmarshal(data, &actions); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", path, err)
	}
	return actions, nil
}
