package codex

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenpilot/internal/config"
)

// fakeCropReader is a scriptable OCR double.
type fakeCropReader struct {
	text  string
	err   error
	panic bool
}

func (f *fakeCropReader) ReadCrop(path string) (string, error) {
	if f.panic {
		panic("detector crashed")
	}
	return f.text, f.err
}

func goodClick() ActionRecord {
	return ActionRecord{
		Event:       EventClick,
		RelPosition: []float64{0.5, 0.5},
		Window: Window{
			App:    "Google Chrome",
			Title:  "Inbox - localhost",
			Width:  1200,
			Height: 800,
			Alpha:  1.0,
		},
	}
}

func newTestClassifier(crop CropReader) *Classifier {
	return NewClassifier(config.Default().Checks, crop)
}

func TestClassifyClickAllChecksPassIsHighConfidence(t *testing.T) {
	outcome := newTestClassifier(nil).Classify(goodClick())

	assert.Equal(t, 5, outcome.Summary.ChecksPassed)
	assert.Equal(t, 5, outcome.Summary.TotalChecks)
	assert.True(t, outcome.Summary.Reliable)
	assert.Equal(t, ConfidenceHigh, outcome.Summary.Confidence)
}

func TestClassifyClickFourOfFiveIsReliableMedium(t *testing.T) {
	action := goodClick()
	action.Window.Width = 50 // fails compatibility only

	outcome := newTestClassifier(nil).Classify(action)

	assert.Equal(t, 4, outcome.Summary.ChecksPassed)
	assert.True(t, outcome.Summary.Reliable, "4/5 click is still reliable")
	assert.Equal(t, ConfidenceMedium, outcome.Summary.Confidence, "but only medium confidence")
}

func TestClassifyClickThreeOfFiveIsUnreliable(t *testing.T) {
	action := goodClick()
	action.Window.Width = 50                   // fails compatibility
	action.RelPosition = []float64{0.001, 0.5} // fails resolution margin

	outcome := newTestClassifier(nil).Classify(action)

	assert.Equal(t, 3, outcome.Summary.ChecksPassed)
	assert.False(t, outcome.Summary.Reliable)
	assert.Equal(t, ConfidenceLow, outcome.Summary.Confidence)
}

func TestClassifyClickUsesOCRTarget(t *testing.T) {
	action := goodClick()
	action.CropScreenshot = "crops/click_1.png"
	outcome := newTestClassifier(&fakeCropReader{text: "Send Message"}).Classify(action)

	assert.Equal(t, "Send Message", outcome.Target)
	assert.Equal(t, "Send Message", outcome.Detection.DetectedText)
	assert.Equal(t, "high", outcome.Detection.OCRConfidence)
}

func TestClassifyClickOCRErrorFallsBackToHeuristic(t *testing.T) {
	action := goodClick()
	action.CropScreenshot = "crops/click_1.png"
	outcome := newTestClassifier(&fakeCropReader{err: errors.New("no such file")}).Classify(action)

	// The coordinates check still passes; naming falls back. The title
	// mentions localhost, so the fallback names by action type.
	assert.Equal(t, "Click Element", outcome.Target)
	assert.Equal(t, "failed", outcome.Detection.OCRConfidence)
	assert.True(t, outcome.Summary.Reliable)
}

func TestClassifyCheckFaultFailsClosed(t *testing.T) {
	action := goodClick()
	action.CropScreenshot = "crops/click_1.png"
	outcome := newTestClassifier(&fakeCropReader{panic: true}).Classify(action)

	// The faulting coordinates check is a plain failure; the other four
	// checks still ran, so the click stays reliable at 4/5.
	byName := outcome.ChecksByName()
	require.Contains(t, byName, CheckCoordinates)
	assert.False(t, byName[CheckCoordinates].Passed)
	assert.Equal(t, 4, outcome.Summary.ChecksPassed)
	assert.True(t, outcome.Summary.Reliable)
}

func TestClassifyRecorderWindowRegionNaming(t *testing.T) {
	cases := []struct {
		pos  []float64
		want string
	}{
		{[]float64{0.5, 0.1}, "top_area"},
		{[]float64{0.5, 0.9}, "bottom_button"},
		{[]float64{0.2, 0.5}, "left_control"},
		{[]float64{0.8, 0.5}, "main_area"},
	}
	for _, tc := range cases {
		action := goodClick()
		action.Window.Title = "Mia Learning Loop"
		action.RelPosition = tc.pos
		outcome := newTestClassifier(nil).Classify(action)
		assert.Equal(t, tc.want, outcome.Target, "pos %v", tc.pos)
	}
}

func TestClassifyTypeActionChecks(t *testing.T) {
	action := ActionRecord{
		Event:  EventType,
		Text:   "hello world",
		Window: Window{App: "Notes", Title: "Untitled", Width: 800, Height: 600},
	}
	outcome := newTestClassifier(nil).Classify(action)

	assert.Equal(t, "text_input", outcome.Target)
	assert.Equal(t, 3, outcome.Summary.TotalChecks)
	assert.Equal(t, 3, outcome.Summary.ChecksPassed)
	assert.True(t, outcome.Summary.Reliable)
	assert.Equal(t, ConfidenceHigh, outcome.Summary.Confidence)
}

func TestClassifyTypeWithoutTextFailsContentCheck(t *testing.T) {
	action := ActionRecord{
		Event:  EventType,
		Text:   "   ",
		Window: Window{App: "Notes", Title: "Untitled"},
	}
	outcome := newTestClassifier(nil).Classify(action)

	assert.Equal(t, 2, outcome.Summary.ChecksPassed)
	assert.True(t, outcome.Summary.Reliable, "2/3 keyboard action is still reliable")
	assert.Equal(t, ConfidenceMedium, outcome.Summary.Confidence)
}

func TestClassifyKeyAction(t *testing.T) {
	action := ActionRecord{
		Event:  EventKey,
		Key:    "enter",
		Window: Window{App: "Terminal", Title: "zsh"},
	}
	outcome := newTestClassifier(nil).Classify(action)

	assert.Equal(t, "key_enter", outcome.Target)
	assert.Equal(t, "enter", outcome.Detection.DetectedText)
	assert.True(t, outcome.Summary.Reliable)
}

func TestClassifyUnknownEventMinimalChecks(t *testing.T) {
	action := ActionRecord{
		Event:  "scroll",
		Window: Window{App: "Finder", Title: "Documents"},
	}
	outcome := newTestClassifier(nil).Classify(action)

	assert.Equal(t, 2, outcome.Summary.TotalChecks)
	// Unknown events fail the coordinates check but pass window.
	assert.Equal(t, 1, outcome.Summary.ChecksPassed)
	assert.True(t, outcome.Summary.Reliable, "1/2 clears the lenient threshold")
}

func TestSuggestTargetPatterns(t *testing.T) {
	maxLen := config.Default().Checks.MaxTargetLen
	assert.Equal(t, "Send", suggestTarget("Send button", maxLen))
	assert.Equal(t, "nav menu", suggestTarget("nav menu", maxLen))
	assert.Equal(t, "text_input", suggestTarget("email field", maxLen))
	assert.Equal(t, "Compose", suggestTarget("Compose!", maxLen))
}

func TestCleanTargetNameStripsNoiseAndCaps(t *testing.T) {
	assert.Equal(t, "Send Now", cleanTargetName("  Send </> Now!! ", 30))
	long := cleanTargetName("abcdefghijklmnopqrstuvwxyz abcdefghij", 30)
	assert.Len(t, []rune(long), 30)
}
