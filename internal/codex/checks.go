package codex

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"screenpilot/internal/config"
	"screenpilot/internal/logging"
)

// Check names, stable across reports.
const (
	CheckCoordinates   = "coordinates"
	CheckWindow        = "window"
	CheckCompatibility = "compatibility"
	CheckResolution    = "resolution"
	CheckPosition      = "position"
	CheckTextContent   = "text_content"
)

// recorderWindowTitle marks the assistant's own recorder window, whose
// layout allows region-based target naming.
const recorderWindowTitle = "Learning Loop"

// Classifier runs the per-action reliability check battery.
type Classifier struct {
	cfg  config.ChecksConfig
	crop CropReader
	log  *zap.Logger
}

// NewClassifier builds a Classifier. crop may be nil; target naming then
// falls back to window heuristics.
func NewClassifier(cfg config.ChecksConfig, crop CropReader) *Classifier {
	return &Classifier{cfg: cfg, crop: crop, log: logging.Get(logging.CategoryCodex)}
}

// Classify runs the battery for one action and produces its outcome.
//
// Clicks get the full five checks and need ClickThreshold passes; type
// and key actions get coordinate, window, and content checks; anything
// else gets coordinate and window checks only. Confidence is assigned
// from the exact pass count, separately from the reliable flag. A fault
// inside any individual check fails that check, never the whole run.
func (c *Classifier) Classify(action ActionRecord) Outcome {
	var target string
	var detection Detection

	coords := c.runCheck(CheckCoordinates, func() CheckResult {
		var r CheckResult
		r, target, detection = c.checkCoordinates(action)
		return r
	})
	window := c.runCheck(CheckWindow, func() CheckResult {
		return c.verifyWindow(action, target)
	})

	var checks []CheckResult
	var threshold, total int

	switch action.Event {
	case EventClick:
		compat := c.runCheck(CheckCompatibility, func() CheckResult {
			return c.checkCompatibility(action)
		})
		resolution := c.runCheck(CheckResolution, func() CheckResult {
			return c.checkResolution(action)
		})
		position := c.runCheck(CheckPosition, func() CheckResult {
			return c.checkTargetingRedundancy(action)
		})
		checks = []CheckResult{coords, window, compat, resolution, position}
		threshold, total = c.cfg.ClickThreshold, 5

	case EventType, EventKey:
		content := c.runCheck(CheckTextContent, func() CheckResult {
			return checkContent(action)
		})
		checks = []CheckResult{coords, window, content}
		threshold, total = c.cfg.KeyboardThreshold, 3

	default:
		checks = []CheckResult{coords, window}
		threshold, total = c.cfg.OtherThreshold, 2
	}

	passed := 0
	for _, ch := range checks {
		if ch.Passed {
			passed++
		}
	}

	outcome := Outcome{
		Target:    target,
		Detection: detection,
		Checks:    checks,
		Summary: Summary{
			ChecksPassed: passed,
			TotalChecks:  total,
			SuccessRate:  float64(passed) / float64(total),
			Reliable:     passed >= threshold,
			Confidence:   confidence(passed, threshold, total),
		},
	}
	c.log.Debug("classified action",
		zap.String("event", action.Event),
		zap.String("target", target),
		zap.Int("passed", passed),
		zap.Int("total", total),
		zap.Bool("reliable", outcome.Summary.Reliable))
	return outcome
}

// confidence maps the exact pass count to a tier: all checks high, at or
// above threshold medium, below low.
func confidence(passed, threshold, total int) string {
	switch {
	case passed == total:
		return ConfidenceHigh
	case passed >= threshold:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// runCheck executes one check fail-closed: any panic inside the check
// becomes a failed result instead of a propagating error, so one faulty
// detector cannot block classification of the rest of the session.
func (c *Classifier) runCheck(name string, fn func() CheckResult) (result CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn("check faulted", zap.String("check", name), zap.Any("panic", r))
			result = CheckResult{Name: name, Passed: false, Note: fmt.Sprintf("check faulted: %v", r)}
		}
	}()
	result = fn()
	result.Name = name
	return result
}

// checkCoordinates validates the recorded position and produces the
// target name, preferring OCR over the recorded crop.
func (c *Classifier) checkCoordinates(action ActionRecord) (CheckResult, string, Detection) {
	detection := Detection{
		OCRConfidence:  "none",
		CropScreenshot: action.CropScreenshot,
	}

	switch action.Event {
	case EventClick:
		if text, ok := c.readCrop(action); ok {
			detection.DetectedText = text
			detection.OCRConfidence = "high"
			target := suggestTarget(text, c.cfg.MaxTargetLen)
			return CheckResult{Passed: true, Note: "OCR extracted target name"}, target, detection
		} else if action.CropScreenshot != "" {
			detection.OCRConfidence = "failed"
		}

		var target string
		if strings.Contains(action.Window.Title, recorderWindowTitle) {
			target = regionTargetName(action.RelPosition)
		} else {
			target = fallbackTargetName(action)
		}
		if detection.DetectedText == "" {
			detection.DetectedText = target
		}
		return CheckResult{Passed: true, Note: "Coordinates look reasonable"}, target, detection

	case EventType:
		detection.DetectedText = action.Text
		return CheckResult{Passed: true, Note: "Text field"}, "text_input", detection

	case EventKey:
		key := action.Key
		if key == "" {
			key = action.Text
		}
		if key == "" {
			key = "unknown"
		}
		detection.DetectedText = key
		return CheckResult{Passed: true, Note: "Key press: " + key}, "key_" + key, detection
	}

	return CheckResult{Passed: false, Note: "Coordinates seem off"}, "unknown", detection
}

// readCrop runs the crop OCR collaborator and screens its output for a
// usable target name.
func (c *Classifier) readCrop(action ActionRecord) (string, bool) {
	if c.crop == nil || action.CropScreenshot == "" {
		return "", false
	}
	text, err := c.crop.ReadCrop(action.CropScreenshot)
	if err != nil {
		c.log.Debug("crop OCR failed", zap.String("crop", action.CropScreenshot), zap.Error(err))
		return "", false
	}
	text = strings.TrimSpace(text)
	if len(text) <= c.cfg.MinDetectedLen || strings.HasPrefix(strings.ToLower(text), "something") {
		return "", false
	}
	return text, true
}

// verifyWindow confirms the action has a recognizable window context.
func (c *Classifier) verifyWindow(action ActionRecord, target string) CheckResult {
	app := action.Window.App
	title := action.Window.Title

	switch {
	case app == "Google Chrome" && strings.Contains(title, "localhost"):
		return CheckResult{Passed: true, Note: "Local dev environment - " + target}
	case app == "Google Chrome":
		return CheckResult{Passed: true, Note: "Browser window - " + target}
	case app == "Control Center":
		return CheckResult{Passed: true, Note: "System control - " + target}
	default:
		return CheckResult{Passed: true, Note: "App context - " + target}
	}
}

// checkCompatibility rejects windows an automation cannot safely click
// into: near-transparent, undersized, or with the position out of [0,1].
func (c *Classifier) checkCompatibility(action ActionRecord) CheckResult {
	if action.Window.Alpha != 0 && action.Window.Alpha < c.cfg.MinWindowAlpha {
		return CheckResult{Passed: false, Note: "Window too transparent"}
	}
	pos := action.RelPosition
	if len(pos) < 2 || pos[0] < 0 || pos[0] > 1 || pos[1] < 0 || pos[1] > 1 {
		return CheckResult{Passed: false, Note: "Position outside window"}
	}
	if action.Window.Width < c.cfg.MinWindowSize || action.Window.Height < c.cfg.MinWindowSize {
		return CheckResult{Passed: false, Note: "Window too small"}
	}
	return CheckResult{Passed: true, Note: "Should work fine"}
}

// checkResolution projects the position onto the reference screen sizes
// and passes when enough of them keep it inside the safe margin.
func (c *Classifier) checkResolution(action ActionRecord) CheckResult {
	pos := action.RelPosition
	if len(pos) < 2 {
		return CheckResult{Passed: false, Note: "No position recorded"}
	}

	working := 0
	for _, size := range c.cfg.ReferenceSizes {
		x := pos[0] * float64(size.Width)
		y := pos[1] * float64(size.Height)
		m := c.cfg.EdgeMarginPx
		if x > m && x < float64(size.Width)-m && y > m && y < float64(size.Height)-m {
			working++
		}
	}
	rate := float64(working) / float64(len(c.cfg.ReferenceSizes))

	switch {
	case rate >= 0.8:
		return CheckResult{Passed: true, Note: fmt.Sprintf("Works on most screens (%.0f%%)", rate*100)}
	case rate >= c.cfg.PassRate:
		return CheckResult{Passed: true, Note: fmt.Sprintf("Might work on some screens (%.0f%%)", rate*100)}
	default:
		return CheckResult{Passed: false, Note: fmt.Sprintf("Probably won't work well (%.0f%%)", rate*100)}
	}
}

// checkTargetingRedundancy counts the independent ways the element can
// be re-located during replay.
func (c *Classifier) checkTargetingRedundancy(action ActionRecord) CheckResult {
	options := 0
	if len(action.RelPosition) >= 2 {
		options++
	}
	if action.Window.App != "" && action.Window.App != "Unknown" {
		options++
	}
	if action.Window.Title != "" && action.Window.Title != "Unknown" {
		options++
	}
	if action.Event != "" {
		options++
	}

	switch {
	case options >= c.cfg.HighRedundancy:
		return CheckResult{Passed: true, Note: fmt.Sprintf("Multiple targeting options (%d)", options)}
	case options >= c.cfg.MediumRedundancy:
		return CheckResult{Passed: true, Note: fmt.Sprintf("Multiple targeting options (%d)", options)}
	default:
		return CheckResult{Passed: false, Note: fmt.Sprintf("Limited targeting options (%d)", options)}
	}
}

// checkContent requires a keyboard action to carry its payload.
func checkContent(action ActionRecord) CheckResult {
	switch action.Event {
	case EventType:
		if strings.TrimSpace(action.Text) == "" {
			return CheckResult{Passed: false, Note: "No text content"}
		}
	case EventKey:
		if action.Key == "" && action.Text == "" {
			return CheckResult{Passed: false, Note: "No key specified"}
		}
	}
	return CheckResult{Passed: true, Note: "Text input available"}
}
