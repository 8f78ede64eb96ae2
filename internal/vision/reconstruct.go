package vision

import (
	"math"
	"sort"
	"strings"

	"screenpilot/internal/config"
)

// TextDetection is one raw OCR detection in a bottom-left-origin
// normalized frame (higher y is higher on screen).
type TextDetection struct {
	Text string `json:"text"`
	Box  Box    `json:"bbox"`
}

type textLine struct {
	y      float64
	blocks []TextDetection
}

// ReconstructLines turns unordered raw text detections into ordered,
// human-readable lines. Detections whose y differs by at most the line
// tolerance share a line; within a line blocks are sorted by x and a
// space is inserted whenever the gap to the previous block exceeds the
// gap tolerance, using a per-glyph width estimate to advance the cursor.
// Lines come back top to bottom. Empty input yields empty output.
func ReconstructLines(raw []TextDetection, cfg config.ReconstructConfig) []string {
	blocks := make([]TextDetection, 0, len(raw))
	for _, b := range raw {
		text := strings.TrimSpace(b.Text)
		if text == "" {
			continue
		}
		blocks = append(blocks, TextDetection{
			Text: text,
			Box:  Box{X: round3(b.Box.X), Y: round3(b.Box.Y), W: b.Box.W, H: b.Box.H},
		})
	}
	if len(blocks) == 0 {
		return nil
	}

	// Descending y: top of screen first in the bottom-left frame.
	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].Box.Y > blocks[j].Box.Y
	})

	var lines []textLine
	for _, b := range blocks {
		placed := false
		for i := range lines {
			if math.Abs(b.Box.Y-lines[i].y) <= cfg.LineTolerance {
				lines[i].blocks = append(lines[i].blocks, b)
				placed = true
				break
			}
		}
		if !placed {
			lines = append(lines, textLine{y: b.Box.Y, blocks: []TextDetection{b}})
		}
	}

	out := make([]string, 0, len(lines))
	for _, ln := range lines {
		sort.SliceStable(ln.blocks, func(i, j int) bool {
			return ln.blocks[i].Box.X < ln.blocks[j].Box.X
		})
		var sb strings.Builder
		cursor := math.Inf(-1)
		for i, b := range ln.blocks {
			if i > 0 && b.Box.X-cursor > cfg.GapTolerance {
				sb.WriteByte(' ')
			}
			sb.WriteString(b.Text)
			// Detection width proxy: glyph estimate times rune count.
			cursor = b.Box.X + float64(len([]rune(b.Text)))*cfg.GlyphWidth
		}
		out = append(out, sb.String())
	}
	return out
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
