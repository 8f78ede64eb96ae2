package vision

import "math"

// MatchClick returns the entries whose center lies within tol (normalized
// units, per axis) of a recorded click. The click position arrives in the
// recorder's bottom-left frame and is flipped to match the map's top-left
// convention.
func MatchClick(m Map, clickX, clickY, tol float64) []Entry {
	if len(m) == 0 {
		return nil
	}
	cy := 1 - clickY

	var matches []Entry
	for _, e := range m {
		cx0, cy0 := e.Box.Center()
		if math.Abs(cx0-clickX) < tol && math.Abs(cy0-cy) < tol {
			matches = append(matches, e)
		}
	}
	return matches
}
