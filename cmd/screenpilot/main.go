package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"screenpilot/internal/config"
	"screenpilot/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "screenpilot",
	Short: "screenpilot - screen automation decision core",
	Long: `screenpilot turns raw screen detections into decisions.

It reconstructs readable lines from OCR output, fuses text and component
detections into a treasure map, resolves symbolic targets against it,
grades recorded sessions for replay reliability, and replays the
resulting automations behind a duplicate-click guard.

Capture, OCR, and input injection are external collaborators; this tool
covers everything between a detection dump and a decided action.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := logging.Init(verbose); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		var err error
		if configPath != "" {
			cfg, err = config.Load(configPath)
		} else {
			cfg = config.Default()
			cfg.ApplyEnv()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return cfg.Validate()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (yaml or json)")

	rootCmd.AddCommand(mapCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(listCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
