package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"screenpilot/internal/codex"
	"screenpilot/internal/vision"
)

var (
	mapTextFile    string
	mapCompFile    string
	mapWidth       int
	mapHeight      int
	mapOutFile     string
	mapLinesOnly   bool
	mapLexiconFile string
	mapClick       string
	mapClickTol    float64
	mapPixels      bool
)

// mapCmd fuses detection dumps into a treasure map.
var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Fuse OCR and component detections into a treasure map",
	Long: `Reads an OCR detection dump and (optionally) a component detection
dump and emits the fused treasure map as JSON.

The OCR file is a JSON array of {"text": ..., "bbox": [x,y,w,h]} in the
recognizer's bottom-left normalized frame; the component file is a JSON
array of {"label": ..., "box": [x,y,w,h]} in top-left pixels. Without a
component file the map degrades to text entries only.

--lines prints the reconstructed text lines instead; with --lexicon the
lines are filtered down to the platform's known UI elements. --click
looks up which map entries sit under a recorded click position, and
--pixels emits the map in absolute pixel coordinates.

Example:
  screenpilot map --text ocr.json --components cv.json --width 1512 --height 982
  screenpilot map --text ocr.json --click 0.4,0.2`,
	RunE: runMap,
}

func init() {
	mapCmd.Flags().StringVar(&mapTextFile, "text", "", "OCR detections file (required)")
	mapCmd.Flags().StringVar(&mapCompFile, "components", "", "Component detections file")
	mapCmd.Flags().IntVar(&mapWidth, "width", 1512, "Screen width in pixels")
	mapCmd.Flags().IntVar(&mapHeight, "height", 982, "Screen height in pixels")
	mapCmd.Flags().StringVarP(&mapOutFile, "output", "o", "", "Write the map here instead of stdout")
	mapCmd.Flags().BoolVar(&mapLinesOnly, "lines", false, "Print reconstructed lines instead of the fused map")
	mapCmd.Flags().StringVar(&mapLexiconFile, "lexicon", "", "Platform lexicon filtering --lines to known elements")
	mapCmd.Flags().StringVar(&mapClick, "click", "", "Recorded click position x,y to look up in the map")
	mapCmd.Flags().Float64Var(&mapClickTol, "click-tolerance", 0.02, "Per-axis tolerance for --click, normalized units")
	mapCmd.Flags().BoolVar(&mapPixels, "pixels", false, "Emit the map in absolute pixel coordinates")
	_ = mapCmd.MarkFlagRequired("text")
}

func runMap(cmd *cobra.Command, args []string) error {
	texts, err := readJSONFile[[]vision.TextDetection](mapTextFile)
	if err != nil {
		return fmt.Errorf("read OCR detections: %w", err)
	}

	if mapLinesOnly {
		lines := vision.ReconstructLines(texts, cfg.Reconstruct)
		if mapLexiconFile != "" {
			return printLexiconMatches(cmd, lines)
		}
		for _, line := range lines {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	}

	var comps []vision.ComponentDetection
	if mapCompFile != "" {
		comps, err = readJSONFile[[]vision.ComponentDetection](mapCompFile)
		if err != nil {
			return fmt.Errorf("read component detections: %w", err)
		}
	}

	m := vision.NewFuser(cfg.Fusion).Fuse(texts, comps, mapWidth, mapHeight)

	if mapClick != "" {
		x, y, err := parseClickPos(mapClick)
		if err != nil {
			return err
		}
		return writeJSON(cmd, mapOutFile, vision.MatchClick(m, x, y, mapClickTol))
	}
	if mapPixels {
		return writeJSON(cmd, mapOutFile, m.Pixels(mapWidth, mapHeight))
	}
	return writeJSON(cmd, mapOutFile, m)
}

// printLexiconMatches filters reconstructed lines through a platform
// lexicon and prints the recognized element names. Whole lines and
// individual words are both matched, so multi-word element names
// survive.
func printLexiconMatches(cmd *cobra.Command, lines []string) error {
	lex, err := codex.LoadLexicon(mapLexiconFile)
	if err != nil {
		return err
	}
	words := make([]string, 0, len(lines)*2)
	for _, line := range lines {
		words = append(words, line)
		words = append(words, strings.Fields(line)...)
	}
	for _, name := range codex.Names(lex.FilterWords(words)) {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

// parseClickPos parses an "x,y" pair of normalized coordinates.
func parseClickPos(s string) (float64, float64, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("--click wants x,y, got %q", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("--click x: %w", err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("--click y: %w", err)
	}
	return x, y, nil
}

// readJSONFile decodes one JSON file into T.
func readJSONFile[T any](path string) (T, error) {
	var out T
	data, err := os.ReadFile(path)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("parse %s: %w", path, err)
	}
	return out, nil
}

// writeJSON emits v to the output file, or stdout when none is set.
func writeJSON(cmd *cobra.Command, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if path == "" {
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
