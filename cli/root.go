package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/petal-labs/integrald/config"
)

// AddPersistentFlags registers the flags shared by every subcommand.
func AddPersistentFlags(root *cobra.Command) {
	root.PersistentFlags().BoolP("verbose", "", false, "Enable verbose/debug logging")
	root.PersistentFlags().BoolP("quiet", "", false, "Suppress all output except errors")
	root.PersistentFlags().String("config", "", "Path to integrald.yaml (default: ./integrald.yaml, then ~/.integrald/config.yaml)")
}

// AddCommands mounts every subcommand on root.
func AddCommands(root *cobra.Command) {
	root.AddCommand(NewIntegrateCmd())
	root.AddCommand(NewCheckCmd())
	root.AddCommand(NewSampleCmd())
	root.AddCommand(NewFunctionsCmd())
	root.AddCommand(NewServeCmd())
}

// NewLogger builds the process logger from --verbose and --quiet. Logs go
// to stderr so stdout stays machine readable.
func NewLogger(cmd *cobra.Command) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	quiet, _ := cmd.Flags().GetBool("quiet")

	level := slog.LevelInfo
	switch {
	case quiet:
		level = slog.LevelError
	case verbose:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func loadConfig(cmd *cobra.Command) (config.File, error) {
	explicit, _ := cmd.Flags().GetString("config")
	cfg, path, err := config.Discover(explicit)
	if err != nil {
		return config.File{}, exitError(exitConfig, "config: %v", err)
	}
	if path != "" {
		NewLogger(cmd).Debug("loaded config", "path", path)
	}
	return cfg, nil
}

func checkFormat(format string) error {
	switch format {
	case "text", "json":
		return nil
	default:
		return exitError(exitInput, "unknown format %q (want text or json)", format)
	}
}
