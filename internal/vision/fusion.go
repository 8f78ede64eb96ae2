package vision

import (
	"strings"

	"go.uber.org/zap"

	"screenpilot/internal/config"
	"screenpilot/internal/logging"
)

// ComponentDetection is one structural-component detection from the CV
// backend, in top-left-origin pixel coordinates.
type ComponentDetection struct {
	Label string `json:"label"`
	Box   Box    `json:"box"`
}

// Fuser merges text and component detections into one treasure map.
type Fuser struct {
	cfg config.FusionConfig
	log *zap.Logger
}

// NewFuser builds a Fuser with the given thresholds.
func NewFuser(cfg config.FusionConfig) *Fuser {
	return &Fuser{cfg: cfg, log: logging.Get(logging.CategoryFusion)}
}

// Fuse produces a new treasure map from both detection sources.
//
// Text detections arrive in the OCR backend's bottom-left normalized
// frame and are flipped to top-left. Component detections arrive in
// top-left pixels and are normalized against the screen size. A text
// and a component entry are merged into one `overlapping` entry when
// their IoU exceeds the threshold or their pixel-space centers are
// closer than the center distance; the merged entry keeps the textual
// label and the text position. Unmatched entries from either source
// survive with their own source tag.
//
// With no component detections, fusion degrades to a text-only map
// with no dedup step.
func (f *Fuser) Fuse(texts []TextDetection, comps []ComponentDetection, screenW, screenH int) Map {
	textEntries := f.textEntries(texts)
	if len(comps) == 0 {
		f.log.Debug("component source unavailable, text-only map",
			zap.Int("entries", len(textEntries)))
		return textEntries
	}

	w, h := float64(screenW), float64(screenH)
	matchedText := make(map[int]bool)
	matchedComp := make(map[int]bool)
	fused := make(Map, 0, len(textEntries)+len(comps))

	for i, te := range textEntries {
		for j, ce := range comps {
			if matchedComp[j] {
				continue
			}
			compNorm := Box{X: ce.Box.X / w, Y: ce.Box.Y / h, W: ce.Box.W / w, H: ce.Box.H / h}
			textPix := te.Box.Scale(w, h)
			iou := te.Box.IoU(compNorm)
			if iou > f.cfg.IoUThreshold || textPix.CenterDistance(ce.Box) < f.cfg.CenterDistancePx {
				matchedText[i] = true
				matchedComp[j] = true
				fused = append(fused, Entry{
					Kind:   KindComponent,
					Label:  te.Label,
					Box:    te.Box,
					Source: SourceOverlap,
				})
				// One merged entry per text detection.
				break
			}
		}
	}

	for i, te := range textEntries {
		if !matchedText[i] {
			fused = append(fused, te)
		}
	}
	for j, ce := range comps {
		if !matchedComp[j] {
			fused = append(fused, Entry{
				Kind:   KindComponent,
				Label:  ce.Label,
				Box:    Box{X: ce.Box.X / w, Y: ce.Box.Y / h, W: ce.Box.W / w, H: ce.Box.H / h},
				Source: SourceComponent,
			})
		}
	}

	f.log.Debug("fused treasure map",
		zap.Int("text", len(textEntries)),
		zap.Int("components", len(comps)),
		zap.Int("merged", len(matchedComp)),
		zap.Int("entries", len(fused)))
	return fused
}

// textEntries converts raw text detections into top-left normalized map
// entries, dropping empty labels.
func (f *Fuser) textEntries(texts []TextDetection) Map {
	out := make(Map, 0, len(texts))
	for _, t := range texts {
		label := strings.TrimSpace(t.Text)
		if label == "" {
			continue
		}
		out = append(out, Entry{
			Kind:   KindText,
			Label:  label,
			Box:    t.Box.FlipY(),
			Source: SourceText,
		})
	}
	return out
}
