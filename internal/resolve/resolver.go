// Package resolve answers "where on screen is X": given a symbolic
// target name and a treasure map, it finds the best-matching element
// through lexical similarity and a weighted multi-factor composite score.
package resolve

import (
	"errors"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/zap"

	"screenpilot/internal/config"
	"screenpilot/internal/logging"
	"screenpilot/internal/vision"
)

// ErrNoMatch is returned when no map entry clears the similarity cutoff.
// Callers must fall back to direct coordinates or abort the step.
var ErrNoMatch = errors.New("no treasure map entry matches target")

// Candidate is one scored match, ephemeral per query.
type Candidate struct {
	Entry      vision.Entry
	Similarity float64
	Score      float64
}

// Resolver ranks treasure map entries against symbolic targets.
type Resolver struct {
	cfg config.ScoringConfig
	log *zap.Logger
}

// New builds a Resolver with the given scoring weights.
func New(cfg config.ScoringConfig) *Resolver {
	return &Resolver{cfg: cfg, log: logging.Get(logging.CategoryResolve)}
}

// Resolve returns the best-matching entry for a symbolic target.
//
// An entry is a candidate when its normalized label contains the
// normalized target or vice versa and the lexical similarity clears the
// cutoff. A lone candidate wins outright; multiple candidates are ranked
// by the weighted composite score. Ties keep the earliest candidate in
// treasure-map order, so resolution is stable across identical snapshots.
func (r *Resolver) Resolve(target string, m vision.Map) (vision.Entry, error) {
	cands := r.Candidates(target, m)
	if len(cands) == 0 {
		return vision.Entry{}, ErrNoMatch
	}
	if len(cands) == 1 {
		return cands[0].Entry, nil
	}

	best := cands[0]
	for _, c := range cands[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	r.log.Debug("resolved among multiple candidates",
		zap.String("target", target),
		zap.Int("candidates", len(cands)),
		zap.String("label", best.Entry.Label),
		zap.Float64("score", best.Score))
	return best.Entry, nil
}

// Candidates returns every scored candidate for a target, in treasure-map
// order.
func (r *Resolver) Candidates(target string, m vision.Map) []Candidate {
	targetNorm := Normalize(target)
	if targetNorm == "" || len(m) == 0 {
		return nil
	}

	var cands []Candidate
	for _, e := range m {
		label := Normalize(e.Label)
		if label == "" {
			continue
		}
		if !strings.Contains(label, targetNorm) && !strings.Contains(targetNorm, label) {
			continue
		}
		sim := Similarity(targetNorm, label)
		if sim <= r.cfg.SimilarityCutoff {
			continue
		}
		cands = append(cands, Candidate{
			Entry:      e,
			Similarity: sim,
			Score:      r.composite(e, sim),
		})
	}
	return cands
}

// Similarity grades how well a normalized label matches a normalized
// target: 1.0 for an exact match, 0.9 plus a length-ratio bonus for full
// containment, otherwise a sequence-similarity ratio.
func Similarity(target, label string) float64 {
	if target == label {
		return 1.0
	}
	if strings.Contains(label, target) {
		return 0.9 + float64(len(target))/float64(len(label))*0.1
	}
	return Ratio(target, label)
}

// Ratio is the difflib sequence-match ratio over runes.
func Ratio(a, b string) float64 {
	return difflib.NewMatcher(splitRunes(a), splitRunes(b)).Ratio()
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// Words or glyphs suggesting an interactive element.
var interactiveMarkers = []string{"button", "•", ">", "→", "click"}

// Prefixes and fragments marking static or input-ish text.
var (
	nonClickableMarkers = []string{"label:", "title:", "header:", "breadcrumb"}
	searchMarkers       = []string{"search", "input", "|", "type here", "enter "}
)

// composite blends match quality, size, position, UI pattern, and source
// quality into one rankable score.
func (r *Resolver) composite(e vision.Entry, sim float64) float64 {
	cfg := r.cfg
	score := sim * cfg.MatchWeight

	// Larger elements are better click targets, up to a cap.
	area := e.Box.W * e.Box.H
	sizeScore := area * cfg.AreaScale
	if sizeScore > cfg.SizeCap {
		sizeScore = cfg.SizeCap
	}
	score += sizeScore * cfg.SizeWeight

	// Prefer content areas over chrome at the screen edges.
	x, y := e.Box.X, e.Box.Y
	switch {
	case x > 0.2 && x < 0.8 && y > 0.2 && y < 0.8:
		score += cfg.CenterBonus
	case x > 0.1 && x < 0.9 && y > 0.1 && y < 0.9:
		score += cfg.MidBonus
	default:
		score += cfg.EdgeBonus
	}
	if y > 0.3 {
		score += cfg.LowerHalfBonus
	}

	// Markers are matched on the case-folded raw label: Normalize strips
	// non-ASCII runes, which would erase arrow and bullet glyphs.
	lower := strings.ToLower(e.Label)
	var ui float64
	if containsAny(lower, interactiveMarkers) {
		ui += cfg.InteractiveBonus
	}
	if containsAny(lower, nonClickableMarkers) {
		ui -= cfg.NonClickablePenalty
	}
	if containsAny(lower, searchMarkers) {
		ui -= cfg.SearchPenalty
	}
	score += ui * cfg.UIWeight

	switch e.Source {
	case vision.SourceText:
		score += cfg.SourceTextBonus
	case vision.SourceComponent:
		score += cfg.SourceComponentBonus
	case vision.SourceOverlap:
		score += cfg.SourceOverlapBonus
	}

	if score < 0 {
		return 0
	}
	return score
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
