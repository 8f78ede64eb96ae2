package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"screenpilot/internal/store"
)

var (
	listSessions bool
	listRuns     bool
)

// listCmd prints stored automations, sessions, or archived runs.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored automations",
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVar(&listSessions, "sessions", false, "List recorded sessions instead of automations")
	listCmd.Flags().BoolVar(&listRuns, "runs", false, "List archived replay runs instead of automations")
}

func runList(cmd *cobra.Command, args []string) error {
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	if listRuns {
		runs, err := st.ListRuns()
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n",
				r.RunID, r.Automation, r.State, r.CreatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	}

	if listSessions {
		sessions, err := st.ListSessions()
		if err != nil {
			return err
		}
		for _, s := range sessions {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", s.ID, s.Name, s.RecordedAt.Format("2006-01-02 15:04"))
		}
		return nil
	}

	infos, err := st.ListAutomations()
	if err != nil {
		return err
	}
	for _, info := range infos {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d steps\t%.0f%%\t%s\n",
			info.Name, info.StepCount, info.SuccessRate*100, info.Rating)
	}
	return nil
}
