package replay

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RunContext is the mutable, run-scoped execution state: resolved
// variables plus the last-click memory the duplicate guard reads.
// One instance per automation run; concurrent runs need independent
// instances or unrelated sessions would suppress each other's clicks.
type RunContext struct {
	ID   string
	Vars map[string]string

	lastClickX      int
	lastClickY      int
	lastClickTarget string
	lastClickAt     time.Time
	hasLastClick    bool

	lastSkippedTarget string
}

// NewRunContext creates a fresh context with the given variables.
func NewRunContext(vars map[string]string) *RunContext {
	ctx := &RunContext{
		ID:   uuid.NewString(),
		Vars: make(map[string]string, len(vars)),
	}
	for k, v := range vars {
		ctx.Vars[k] = v
	}
	return ctx
}

// SetVar sets or overwrites one variable.
func (c *RunContext) SetVar(key, value string) {
	c.Vars[key] = value
}

// Clone copies the context for a new item pass, resetting click memory
// but keeping variables.
func (c *RunContext) Clone() *RunContext {
	return NewRunContext(c.Vars)
}

// recordClick overwrites the last-click fields after an executed click.
func (c *RunContext) recordClick(x, y int, target string) {
	c.lastClickX = x
	c.lastClickY = y
	c.lastClickTarget = target
	c.lastClickAt = time.Now()
	c.hasLastClick = true
}

// Fields recognized in structured notes.
var noteFields = map[string]bool{
	"sender":     true,
	"intent":     true,
	"platform":   true,
	"email":      true,
	"task_name":  true,
	"variable_1": true,
	"variable_2": true,
	"variable_3": true,
	"variable_4": true,
	"notes":      true,
}

// contextValueLimit caps variable values copied out of notes.
const contextValueLimit = 300

// ParseNotes converts structured task notes into a variable context.
// Lines of the form "key: value" fill recognized fields; unrecognized
// pairs are appended to the free-form notes; bare URLs set the platform.
func ParseNotes(notes string) map[string]string {
	vars := map[string]string{"sender": "Mia"}

	var extra strings.Builder
	for _, line := range strings.Split(notes, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if key, value, ok := strings.Cut(line, ":"); ok {
			key = strings.ToLower(strings.TrimSpace(key))
			value = strings.TrimSpace(value)
			if noteFields[key] {
				vars[key] = value
			} else {
				extra.WriteString(titleWord(key))
				extra.WriteString(": ")
				extra.WriteString(value)
				extra.WriteString(". ")
			}
			continue
		}
		if strings.Contains(line, "www.") || strings.Contains(line, "http") {
			vars["platform"] = line
		}
	}
	if extra.Len() > 0 {
		vars["notes"] = strings.TrimSpace(vars["notes"] + " " + extra.String())
	}

	for k, v := range vars {
		// Truncate on rune boundaries so a multi-byte glyph at the cut
		// is never split into invalid UTF-8.
		if r := []rune(v); len(r) > contextValueLimit {
			vars[k] = string(r[:contextValueLimit-3]) + "..."
		}
	}
	return vars
}

func titleWord(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
