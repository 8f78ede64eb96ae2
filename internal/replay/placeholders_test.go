package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenpilot/internal/codex"
)

func TestResolveStepDirectSubstitution(t *testing.T) {
	step := codex.Step{Action: codex.EventType, Text: "Hello {name}"}
	got, err := ResolveStep(step, map[string]string{"name": "Mia"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Mia", got.Text)
}

func TestResolveStepWhitespaceTolerantPass(t *testing.T) {
	step := codex.Step{Action: codex.EventType, Text: "Dear { name }, re: { variable_1 }"}
	got, err := ResolveStep(step, map[string]string{"name": "Mia", "variable_1": "invoice"})
	require.NoError(t, err)
	assert.Equal(t, "Dear Mia, re: invoice", got.Text)
}

func TestResolveStepUnknownPlaceholderFailsClosed(t *testing.T) {
	step := codex.Step{Action: codex.EventType, Text: "Hello {unknown}"}
	_, err := ResolveStep(step, map[string]string{"name": "Mia"})
	assert.ErrorIs(t, err, ErrUnresolvedPlaceholder)
}

func TestResolveStepCoversAllStringFields(t *testing.T) {
	step := codex.Step{
		Action: codex.EventClick,
		Target: "{variable_1} row",
		Notes:  "open {variable_1}",
	}
	got, err := ResolveStep(step, map[string]string{"variable_1": "Orders"})
	require.NoError(t, err)
	assert.Equal(t, "Orders row", got.Target)
	assert.Equal(t, "open Orders", got.Notes)
}

func TestResolveStepPlainStringsUntouched(t *testing.T) {
	step := codex.Step{Action: codex.EventClick, Target: "Send"}
	got, err := ResolveStep(step, nil)
	require.NoError(t, err)
	assert.Equal(t, "Send", got.Target)
}

func TestResolveStringEmptyValueAllowed(t *testing.T) {
	got := resolveString("prefix {x} suffix", map[string]string{"x": ""})
	assert.Equal(t, "prefix  suffix", got)
	assert.Empty(t, unresolved(got))
}
