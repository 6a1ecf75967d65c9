// Package main provides the CLI entry point for loom, a local-first
// coding agent runtime: session-backed agent loop, tool policy gate,
// provider router with failover, and an extension host for out-of-process
// hooks/tools/commands.
//
// # Basic Usage
//
//	loom run "fix the failing test in pkg/widget"
//	loom serve --addr :8080
//	loom doctor
//	loom auth login anthropic --api-key sk-ant-...
//	loom session export <path> --out bundle.jsonl
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

var configPath string

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "loom",
		Short: "loom - a local-first coding agent runtime",
		Long: `loom drives an agentic turn loop against a pluggable set of LLM
providers, gates tool execution through a configurable policy, and persists
every turn to an append-only session transcript.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")

	rootCmd.AddCommand(
		buildRunCmd(),
		buildServeCmd(),
		buildDoctorCmd(),
		buildAuthCmd(),
		buildSessionCmd(),
		buildAdminCmd(),
	)
	return rootCmd
}
