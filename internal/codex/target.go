package codex

import (
	"fmt"
	"regexp"
	"strings"
)

// CropReader extracts text from the crop image recorded alongside an
// action. Implemented by an external OCR collaborator; a nil reader
// drops the classifier back to heuristic target naming.
type CropReader interface {
	// ReadCrop returns the most confident text found in the crop image.
	ReadCrop(path string) (string, error)
}

var targetCleaner = regexp.MustCompile(`[^\w\s-]`)

// cleanTargetName strips special characters, collapses whitespace, and
// caps the length so OCR noise never leaks into target names.
func cleanTargetName(text string, maxLen int) string {
	cleaned := targetCleaner.ReplaceAllString(text, "")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	runes := []rune(cleaned)
	if maxLen > 0 && len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return cleaned
}

// suggestTarget turns OCR text into an automation target name using
// common UI naming patterns.
func suggestTarget(ocrText string, maxLen int) string {
	cleaned := cleanTargetName(ocrText, maxLen)
	lower := strings.ToLower(cleaned)

	switch {
	case containsAnyWord(lower, "button", "btn", "click"):
		stripped := strings.NewReplacer("button", "", "btn", "").Replace(cleaned)
		return strings.TrimSpace(stripped)
	case containsAnyWord(lower, "menu", "nav", "link"):
		return cleaned
	case containsAnyWord(lower, "input", "field", "text"):
		return "text_input"
	default:
		return cleaned
	}
}

// fallbackTargetName names a target from window context when OCR is
// unavailable or useless.
func fallbackTargetName(action ActionRecord) string {
	event := action.Event
	if event == "" {
		event = "element"
	}
	if strings.Contains(action.Window.Title, "localhost") {
		return fmt.Sprintf("%s Element", titleCase(event))
	}
	app := action.Window.App
	if app == "" {
		app = "Unknown"
	}
	return fmt.Sprintf("%s %s", app, titleCase(event))
}

// regionTargetName names a click target by its quadrant when the window
// is the assistant's own recorder UI.
func regionTargetName(pos []float64) string {
	if len(pos) < 2 {
		return "main_area"
	}
	x, y := pos[0], pos[1]
	switch {
	case y < 0.3:
		return "top_area"
	case y > 0.8:
		return "bottom_button"
	case x < 0.5 && y > 0.3 && y < 0.7:
		return "left_control"
	default:
		return "main_area"
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func containsAnyWord(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
