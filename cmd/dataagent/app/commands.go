// Package app provides the dataagent command-line application.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dataagent-io/dataagent/pkg/version"
)

// ErrUsage marks errors caused by invalid invocation (bad flags or
// arguments) rather than a runtime failure. main exits 2 for these.
var ErrUsage = errors.New("usage error")

// IsUsageError reports whether err stems from invalid invocation.
func IsUsageError(err error) bool {
	return errors.Is(err, ErrUsage)
}

func usageErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}

// NewRootCmd creates the root command for the dataagent CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dataagent",
		Short: "DataAgent is a multi-tenant AI agent execution server",
		Long: `DataAgent runs AI agent sessions against per-user sandboxed workspaces,
with human-in-the-loop approval for side-effecting tool calls, user-scoped
MCP server connections, and a layered rule system feeding each model call.

The server speaks REST and WebSocket; the run subcommand executes a single
turn locally without a server or database.`,
		Version:           version.Full(),
		SilenceUsage:      true,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to the configuration directory")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	})

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newListSessionsCmd())
	rootCmd.AddCommand(newResetAgentCmd())

	return rootCmd
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
