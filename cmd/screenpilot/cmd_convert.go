package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"screenpilot/internal/codex"
	"screenpilot/internal/store"
)

var (
	convertName    string
	convertOutDir  string
	convertToStore bool
)

// convertCmd grades a recorded session and emits the automation.
var convertCmd = &cobra.Command{
	Use:   "convert [session.json]",
	Short: "Convert a recorded session into a quality-gated automation",
	Long: `Runs the reliability check battery over every action in a recorded
session, keeps the steps that pass, and saves the automation when the
session's overall success rate clears the quality threshold.

A session below the threshold is refused, not silently degraded.

Example:
  screenpilot convert session.json --name send_email
  screenpilot convert session.json --store`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVar(&convertName, "name", "", "Automation name (default: session file name)")
	convertCmd.Flags().StringVarP(&convertOutDir, "output", "o", "", "Directory for the automation file")
	convertCmd.Flags().BoolVar(&convertToStore, "store", false, "Persist to the local database instead of a file")
}

func runConvert(cmd *cobra.Command, args []string) error {
	sessionPath := args[0]
	actions, err := codex.LoadSession(sessionPath)
	if err != nil {
		return err
	}

	name := convertName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(sessionPath), filepath.Ext(sessionPath))
	}

	converter := codex.NewConverter(codex.NewClassifier(cfg.Checks, nil), cfg.Convert)
	auto, err := converter.Convert(actions, name, sessionPath)
	if err != nil {
		return err
	}

	report := auto.Quality
	fmt.Fprintf(cmd.OutOrStdout(), "Session: %d actions, %d reliable, %d unreliable (%.0f%% - %s)\n",
		report.TotalActions, report.ReliableSteps, report.UnreliableSteps,
		report.Rate()*100, codex.Rating(report.Rate()))
	for check, count := range report.FailedChecks {
		fmt.Fprintf(cmd.OutOrStdout(), "  failed %s: %d\n", check, count)
	}

	if err := converter.Gate(auto); err != nil {
		if errors.Is(err, codex.ErrQualityTooLow) {
			return fmt.Errorf("not saved: %w", err)
		}
		return err
	}

	if convertToStore {
		st, err := store.New(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.SaveAutomation(auto); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved automation %q to %s\n", auto.Name, cfg.Store.Path)
		return nil
	}

	dir := convertOutDir
	if dir == "" {
		dir = filepath.Join(filepath.Dir(cfg.Store.Path), "automations")
	}
	path, err := codex.SaveAutomation(auto, dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved automation %q to %s\n", auto.Name, path)
	return nil
}
