package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"screenpilot/internal/resolve"
	"screenpilot/internal/vision"
)

var (
	resolveMapFile    string
	resolveCandidates bool
)

// resolveCmd looks a symbolic target up against a treasure map file.
var resolveCmd = &cobra.Command{
	Use:   "resolve [target]",
	Short: "Resolve a symbolic target against a treasure map",
	Long: `Finds the treasure map entry best matching a symbolic target name.

Example:
  screenpilot resolve "Send" --map map.json
  screenpilot resolve "search box" --map map.json --candidates`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveMapFile, "map", "", "Treasure map file (required)")
	resolveCmd.Flags().BoolVar(&resolveCandidates, "candidates", false, "List every scored candidate instead of the winner")
	_ = resolveCmd.MarkFlagRequired("map")
}

func runResolve(cmd *cobra.Command, args []string) error {
	m, err := readJSONFile[vision.Map](resolveMapFile)
	if err != nil {
		return fmt.Errorf("read treasure map: %w", err)
	}
	if !m.Valid() {
		return fmt.Errorf("treasure map %s has entries outside the unit square", resolveMapFile)
	}

	resolver := resolve.New(cfg.Scoring)

	if resolveCandidates {
		cands := resolver.Candidates(args[0], m)
		if len(cands) == 0 {
			return resolve.ErrNoMatch
		}
		return writeJSON(cmd, "", cands)
	}

	entry, err := resolver.Resolve(args[0], m)
	if err != nil {
		return err
	}
	return writeJSON(cmd, "", entry)
}
