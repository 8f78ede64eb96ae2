package replay

import (
	"fmt"
	"regexp"
	"strings"

	"screenpilot/internal/codex"
)

// ErrUnresolvedPlaceholder fails the whole run closed: a partially
// templated action must never execute.
var ErrUnresolvedPlaceholder = fmt.Errorf("unresolved placeholder in step")

var placeholderPattern = regexp.MustCompile(`\{\s*([^{}]+?)\s*\}`)

// resolveString substitutes {name} occurrences from vars: first a direct
// pass over exact "{key}" forms, then a whitespace-tolerant pattern pass
// so "{ name }" also matches. Unknown placeholders are left in place for
// the caller to detect.
func resolveString(s string, vars map[string]string) string {
	if !strings.Contains(s, "{") {
		return s
	}
	for key, val := range vars {
		s = strings.ReplaceAll(s, "{"+key+"}", val)
	}
	return placeholderPattern.ReplaceAllStringFunc(s, func(m string) string {
		key := strings.TrimSpace(m[1 : len(m)-1])
		if val, ok := vars[key]; ok {
			return val
		}
		return m
	})
}

// unresolved lists the placeholders remaining in a string.
func unresolved(s string) []string {
	return placeholderPattern.FindAllString(s, -1)
}

// ResolveStep substitutes placeholders in every string field of a step
// and returns the resolved copy. If any placeholder survives both
// passes, it returns ErrUnresolvedPlaceholder naming the leftovers.
func ResolveStep(step codex.Step, vars map[string]string) (codex.Step, error) {
	fields := []*string{
		&step.Target, &step.DetectedText, &step.Notes, &step.Text,
		&step.Key, &step.App, &step.WindowTitle,
	}
	var leftovers []string
	for _, f := range fields {
		*f = resolveString(*f, vars)
		leftovers = append(leftovers, unresolved(*f)...)
	}
	if len(leftovers) > 0 {
		return step, fmt.Errorf("%w: %s", ErrUnresolvedPlaceholder, strings.Join(leftovers, ", "))
	}
	return step, nil
}
