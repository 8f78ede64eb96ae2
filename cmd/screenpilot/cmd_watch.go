package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"screenpilot/internal/codex"
	"screenpilot/internal/store"
	"screenpilot/internal/watch"
)

var watchCatchUp bool

// watchCmd runs the session ingest watcher until interrupted.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the sessions directory and convert new recordings",
	Long: `Watches the sessions directory; every session log that settles there
is graded and, when it clears the quality threshold, stored as an
automation. Runs until interrupted.

Example:
  screenpilot watch --catch-up`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchCatchUp, "catch-up", false, "Convert sessions already present before watching")
}

func runWatch(cmd *cobra.Command, args []string) error {
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	converter := codex.NewConverter(codex.NewClassifier(cfg.Checks, nil), cfg.Convert)
	w, err := watch.NewSessionWatcher(converter, st, cfg.Watch)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watchCatchUp {
		if err := w.ConvertAll(ctx); err != nil {
			return fmt.Errorf("catch-up conversion: %w", err)
		}
	}

	if err := w.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (ctrl-c to stop)\n", cfg.Watch.SessionsDir)

	<-ctx.Done()
	w.Stop()

	stats := w.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "Converted %d, rejected %d, errors %d\n",
		stats.SessionsConverted, stats.SessionsRejected, stats.Errors)
	return nil
}
