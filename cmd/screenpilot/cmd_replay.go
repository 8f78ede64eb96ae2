package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"screenpilot/internal/codex"
	"screenpilot/internal/replay"
	"screenpilot/internal/resolve"
	"screenpilot/internal/store"
	"screenpilot/internal/vision"
)

var (
	replayDryRun  bool
	replayMapFile string
	replayNotes   string
	replayItems   []string
	replayWidth   int
	replayHeight  int
)

// replayCmd runs a stored automation through the execution guard.
var replayCmd = &cobra.Command{
	Use:   "replay [automation]",
	Short: "Replay an automation behind the execution guard",
	Long: `Replays an automation step by step: placeholders are substituted
from the task notes, each pulse captures a treasure map, and every click
passes the duplicate-suppression guard before it fires.

The argument is an automation file, or a stored automation name when no
such file exists. Only --dry-run is wired here: it records the decided
actions instead of injecting input, which is what this decision core
can do without an injection collaborator.

Example:
  screenpilot replay send_email.json --dry-run --map map.json
  screenpilot replay send_email --dry-run --map map.json --item alice --item bob`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().BoolVar(&replayDryRun, "dry-run", false, "Record decided actions instead of injecting input")
	replayCmd.Flags().StringVar(&replayMapFile, "map", "", "Treasure map file used for every capture pulse")
	replayCmd.Flags().StringVar(&replayNotes, "notes", "", "Task notes file for placeholder variables")
	replayCmd.Flags().StringArrayVar(&replayItems, "item", nil, "Item to run the steps for (repeatable)")
	replayCmd.Flags().IntVar(&replayWidth, "width", 1512, "Screen width for the dry-run actuator")
	replayCmd.Flags().IntVar(&replayHeight, "height", 982, "Screen height for the dry-run actuator")
}

func runReplay(cmd *cobra.Command, args []string) error {
	if !replayDryRun {
		return fmt.Errorf("input injection is not wired; run with --dry-run")
	}

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	auto, err := loadAutomationArg(st, args[0])
	if err != nil {
		return err
	}

	var vars map[string]string
	if replayNotes != "" {
		data, err := os.ReadFile(replayNotes)
		if err != nil {
			return fmt.Errorf("read notes: %w", err)
		}
		vars = replay.ParseNotes(string(data))
	}

	capture := func(ctx context.Context) (vision.Map, error) {
		if replayMapFile == "" {
			return vision.Map{}, nil
		}
		return readJSONFile[vision.Map](replayMapFile)
	}

	act := replay.NewRecordingActuator(replayWidth, replayHeight)
	runner := replay.NewRunner(act, resolve.New(cfg.Scoring), capture, *cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report := runner.Run(ctx, auto, vars, replayItems)

	// Archive the outcome whether the run completed or aborted.
	if err := st.SaveRunReport(report.RunID, auto.Name, string(report.State), report); err != nil {
		return fmt.Errorf("archive run report: %w", err)
	}

	if err := writeJSON(cmd, "", report); err != nil {
		return err
	}
	for _, call := range act.Calls() {
		switch call.Op {
		case "click", "move":
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d,%d)\n", call.Op, call.X, call.Y)
		case "combo":
			fmt.Fprintf(cmd.OutOrStdout(), "combo %s+%s\n", strings.Join(call.Mods, "+"), call.Key)
		case "press":
			fmt.Fprintf(cmd.OutOrStdout(), "press %s\n", call.Key)
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "%s %q\n", call.Op, call.Text)
		}
	}

	if report.State != replay.RunCompleted {
		return fmt.Errorf("run %s: %s", report.State, report.Error)
	}
	return nil
}

// loadAutomationArg reads an automation file, falling back to the store
// when the argument is not a file.
func loadAutomationArg(st *store.Store, arg string) (*codex.Automation, error) {
	if _, err := os.Stat(arg); err == nil {
		return codex.LoadAutomation(arg)
	}
	return st.LoadAutomation(arg)
}
