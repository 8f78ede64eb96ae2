package vision

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenpilot/internal/config"
)

func newTestFuser() *Fuser {
	return NewFuser(config.Default().Fusion)
}

func TestFuseTextOnlyWhenComponentSourceUnavailable(t *testing.T) {
	texts := []TextDetection{
		// Bottom-left frame; y flips to 1-y-h.
		{Text: "Send", Box: Box{X: 0.4, Y: 0.15, W: 0.1, H: 0.05}},
		{Text: "", Box: Box{X: 0.2, Y: 0.3, W: 0.1, H: 0.05}},
	}
	m := newTestFuser().Fuse(texts, nil, 1920, 1080)

	require.Len(t, m, 1)
	assert.Equal(t, "Send", m[0].Label)
	assert.Equal(t, KindText, m[0].Kind)
	assert.Equal(t, SourceText, m[0].Source)
	assert.InDelta(t, 0.8, m[0].Box.Y, 1e-9)
	assert.True(t, m.Valid())
}

func TestFuseMergesOverlappingPairIntoSingleEntry(t *testing.T) {
	// Text box flips to (0.4, 0.8); the component covers the same pixel
	// region, so IoU is far above the threshold.
	texts := []TextDetection{
		{Text: "Send", Box: Box{X: 0.4, Y: 0.15, W: 0.1, H: 0.05}},
	}
	comps := []ComponentDetection{
		{Label: "button", Box: Box{X: 0.4 * 1920, Y: 0.8 * 1080, W: 0.1 * 1920, H: 0.05 * 1080}},
	}
	m := newTestFuser().Fuse(texts, comps, 1920, 1080)

	require.Len(t, m, 1, "an overlapping pair must fuse into exactly one entry")
	assert.Equal(t, SourceOverlap, m[0].Source)
	assert.Equal(t, "Send", m[0].Label, "merged entry keeps the textual label")
	assert.Equal(t, KindComponent, m[0].Kind)
	assert.True(t, m.Valid())
}

func TestFuseMergesByCenterDistance(t *testing.T) {
	// Disjoint boxes (IoU 0) whose pixel centers are 25px apart.
	texts := []TextDetection{
		{Text: "OK", Box: Box{X: 0.100, Y: 1 - 0.200 - 0.005, W: 0.005, H: 0.005}},
	}
	comps := []ComponentDetection{
		{Label: "icon", Box: Box{X: 0.100*1920 + 25, Y: 0.200 * 1080, W: 9.6, H: 5.4}},
	}
	m := newTestFuser().Fuse(texts, comps, 1920, 1080)

	require.Len(t, m, 1)
	assert.Equal(t, SourceOverlap, m[0].Source)
	assert.Equal(t, "OK", m[0].Label)
}

func TestFuseKeepsUnmatchedFromBothSources(t *testing.T) {
	texts := []TextDetection{
		{Text: "Inbox", Box: Box{X: 0.05, Y: 0.9, W: 0.05, H: 0.02}},
	}
	comps := []ComponentDetection{
		{Label: "sidebar", Box: Box{X: 1700, Y: 900, W: 100, H: 80}},
	}
	m := newTestFuser().Fuse(texts, comps, 1920, 1080)

	require.Len(t, m, 2)
	assert.Equal(t, SourceText, m[0].Source)
	assert.Equal(t, SourceComponent, m[1].Source)
	assert.True(t, m.Valid(), "component boxes must be normalized into [0,1]")
}

func TestMapJSONShape(t *testing.T) {
	m := Map{{Kind: KindText, Label: "Send", Box: Box{X: 0.4, Y: 0.8, W: 0.1, H: 0.05}, Source: SourceText}}
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"type":"text","label":"Send","position":[0.4,0.8,0.1,0.05],"source":"ocr"}]`, string(data))

	var back Map
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, m, back)
}

func TestBoxIoU(t *testing.T) {
	a := Box{X: 0, Y: 0, W: 0.2, H: 0.2}
	assert.InDelta(t, 1.0, a.IoU(a), 1e-3)

	b := Box{X: 0.5, Y: 0.5, W: 0.2, H: 0.2}
	assert.InDelta(t, 0.0, a.IoU(b), 1e-9)

	c := Box{X: 0.1, Y: 0, W: 0.2, H: 0.2}
	// Intersection 0.1*0.2, union 2*0.04-0.02.
	assert.InDelta(t, 0.02/0.06, a.IoU(c), 1e-3)
}

func TestMatchClick(t *testing.T) {
	m := Map{
		{Kind: KindText, Label: "Send", Box: Box{X: 0.39, Y: 0.79, W: 0.02, H: 0.02}, Source: SourceText},
		{Kind: KindText, Label: "far", Box: Box{X: 0.1, Y: 0.1, W: 0.02, H: 0.02}, Source: SourceText},
	}
	// Click in the recorder's bottom-left frame at (0.4, 0.2) lands on
	// the map's (0.4, 0.8).
	got := MatchClick(m, 0.4, 0.2, 0.02)
	require.Len(t, got, 1)
	assert.Equal(t, "Send", got[0].Label)

	assert.Empty(t, MatchClick(nil, 0.4, 0.2, 0.02))
}
