package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loomrun/loom/internal/commands"
	"github.com/loomrun/loom/internal/sessions"
)

// buildSessionCmd exposes the Command Surface's session-mutation handlers
// (branch/resume/export/import/repair/compact/...) as `loom session <sub>`,
// so a one-off maintenance operation doesn't require a live agent run.
func buildSessionCmd() *cobra.Command {
	var sessionPath string

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or maintain the session transcript",
	}
	cmd.PersistentFlags().StringVar(&sessionPath, "session", "", "Path to the session transcript (default ~/.loom/session.jsonl)")

	runSlashCommand := func(name string, argv []string) error {
		path := sessionPath
		if path == "" {
			path = defaultSessionPath()
		}
		store, _, err := sessions.Load(path, sessions.DefaultLockConfig())
		if err != nil {
			return fmt.Errorf("load session store: %w", err)
		}
		defer store.Close()

		rt := &sessions.SessionRuntime{Store: store, ActiveHead: store.HeadID()}

		registry := commands.NewRegistry(slog.Default())
		if err := commands.RegisterBuiltins(registry); err != nil {
			return fmt.Errorf("register command surface: %w", err)
		}

		inv := &commands.Invocation{Name: name, Args: strings.Join(argv, " "), IsAdmin: true}
		commands.WithSessionRuntime(inv, rt)

		result, err := registry.Execute(context.Background(), inv)
		if err != nil {
			return err
		}
		if result.Error != "" {
			return fmt.Errorf("%s", result.Error)
		}
		fmt.Println(result.Text)
		return nil
	}

	sub := func(use, cmdName, short string) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(_ *cobra.Command, args []string) error {
				return runSlashCommand(cmdName, args)
			},
		}
	}

	cmd.AddCommand(
		sub("export <path>", "session-export", "Write the active lineage to a new session file"),
		sub("import <path> [--replace]", "session-import", "Import another session file, merging by default"),
		sub("repair", "session-repair", "Repair orphaned or duplicate tool-call pairings in the active lineage"),
		sub("compact", "session-compact", "Drop entries unreachable from the active head"),
		sub("stats", "session-stats", "Show lineage statistics"),
		sub("graph-export <path>", "session-graph-export", "Export the full branch graph"),
	)
	return cmd
}
