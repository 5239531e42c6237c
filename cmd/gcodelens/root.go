package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/1103837067/GcodeLens/pkg/config"
	"github.com/1103837067/GcodeLens/pkg/logging"
)

var (
	verbose    bool
	quiet      bool
	configPath string

	// Set by PersistentPreRunE.
	cfg    = config.Default()
	logger = logging.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "gcodelens",
	Short: "GcodeLens - compare two G-code programs",
	Long: `GcodeLens extracts toolpaths from two G-code programs, lays them out side by
side or overlaid, and reports line-level and machining differences between them.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default gcodelens.yaml when present)")

	// Add subcommands
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup loads the config and builds the logger for every subcommand.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	level := cfg.Log.Level
	switch {
	case verbose:
		level = "debug"
	case quiet:
		level = "error"
	}
	logger = logging.New(logging.Config{
		Level:  level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	logger.Debug().Str("command", cmd.Name()).Msg("config loaded")
	return nil
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "error:", err)
		return err
	}
	return nil
}
