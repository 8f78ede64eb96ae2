// Package vision builds treasure maps: fused, deduplicated, coordinate-
// normalized lists of on-screen detected elements. It consumes raw text
// and structural-component detections from external capture backends and
// produces the immutable per-snapshot map the resolver queries.
package vision

import (
	"encoding/json"
	"fmt"
	"math"
)

// Entry kinds.
const (
	KindText      = "text"
	KindComponent = "component"
)

// Detection provenance tags.
const (
	SourceText      = "ocr"
	SourceComponent = "cv"
	SourceOverlap   = "overlapping"
)

// Box is a bounding box in a normalized [0,1] coordinate frame,
// serialized as the [x, y, w, h] array used on the wire.
type Box struct {
	X float64
	Y float64
	W float64
	H float64
}

// MarshalJSON encodes the box as [x, y, w, h].
func (b Box) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.X, b.Y, b.W, b.H})
}

// UnmarshalJSON accepts the [x, y, w, h] array form.
func (b *Box) UnmarshalJSON(data []byte) error {
	var arr []float64
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) != 4 {
		return fmt.Errorf("box must have 4 elements, got %d", len(arr))
	}
	b.X, b.Y, b.W, b.H = arr[0], arr[1], arr[2], arr[3]
	return nil
}

// Valid reports whether all coordinates lie in [0,1].
func (b Box) Valid() bool {
	for _, v := range [...]float64{b.X, b.Y, b.W, b.H} {
		if v < 0 || v > 1 {
			return false
		}
	}
	return true
}

// Center returns the box midpoint.
func (b Box) Center() (float64, float64) {
	return b.X + b.W/2, b.Y + b.H/2
}

// FlipY converts between bottom-left and top-left origin conventions.
func (b Box) FlipY() Box {
	return Box{X: b.X, Y: 1 - b.Y - b.H, W: b.W, H: b.H}
}

// Scale multiplies the box into pixel space.
func (b Box) Scale(width, height float64) Box {
	return Box{X: b.X * width, Y: b.Y * height, W: b.W * width, H: b.H * height}
}

// IoU computes intersection over union with another box in the same frame.
func (b Box) IoU(o Box) float64 {
	xA := math.Max(b.X, o.X)
	yA := math.Max(b.Y, o.Y)
	xB := math.Min(b.X+b.W, o.X+o.W)
	yB := math.Min(b.Y+b.H, o.Y+o.H)
	inter := math.Max(0, xB-xA) * math.Max(0, yB-yA)
	union := b.W*b.H + o.W*o.H - inter
	return inter / (union + 1e-6)
}

// CenterDistance returns the Euclidean distance between box centers.
func (b Box) CenterDistance(o Box) float64 {
	ax, ay := b.Center()
	bx, by := o.Center()
	return math.Hypot(ax-bx, ay-by)
}

// Entry is one perceived UI element: label, normalized bounding box in a
// top-left-origin frame, and provenance. Immutable once produced.
type Entry struct {
	Kind   string `json:"type"`
	Label  string `json:"label"`
	Box    Box    `json:"position"`
	Source string `json:"source"`
}

// Map is the ordered treasure map for one screen snapshot. It is rebuilt
// fresh per snapshot; fusion never patches a previous map.
type Map []Entry

// Valid reports whether every entry's box lies in [0,1].
func (m Map) Valid() bool {
	for _, e := range m {
		if !e.Box.Valid() {
			return false
		}
	}
	return true
}

// PixelEntry is an Entry with its box converted to absolute pixels.
type PixelEntry struct {
	Entry
	PixelBox Box `json:"pixel_position"`
}

// Pixels converts the map to absolute pixel coordinates for a screen size.
func (m Map) Pixels(screenW, screenH int) []PixelEntry {
	out := make([]PixelEntry, 0, len(m))
	for _, e := range m {
		out = append(out, PixelEntry{
			Entry:    e,
			PixelBox: e.Box.Scale(float64(screenW), float64(screenH)),
		})
	}
	return out
}
