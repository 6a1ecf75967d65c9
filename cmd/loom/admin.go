package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loomrun/loom/internal/commands"
	"github.com/loomrun/loom/internal/skills"
)

// buildAdminCmd exposes the Command Surface's admin group (auth,
// integration-auth, skills-*, doctor) over the CLI, wiring each command's
// dependency the way the in-process console would before dispatching.
func buildAdminCmd() *cobra.Command {
	var workspace string

	cmd := &cobra.Command{
		Use:   "admin <command> [args...]",
		Short: "Run an admin command (auth, integration-auth, skills-list, skills-show, skills-check, skills-prune, doctor)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if workspace == "" {
				workspace = "."
			}

			creds, _, err := loadCredentialStore()
			if err != nil {
				return err
			}

			mgr, err := skills.NewManager(&cfg.Skills, workspace, nil)
			if err != nil {
				return fmt.Errorf("build skills manager: %w", err)
			}
			if err := mgr.Discover(cmd.Context()); err != nil {
				return fmt.Errorf("discover skills: %w", err)
			}

			registry := commands.NewRegistry(slog.Default())
			if err := commands.RegisterBuiltins(registry); err != nil {
				return fmt.Errorf("register command surface: %w", err)
			}

			inv := &commands.Invocation{
				Name:    strings.TrimPrefix(args[0], "/"),
				Args:    strings.Join(args[1:], " "),
				IsAdmin: true,
			}
			commands.WithCredentialStore(inv, creds, defaultCredentialStorePath())
			commands.WithAdminConfig(inv, cfg)
			commands.WithSkillsManager(inv, mgr, filepath.Join(workspace, "skills"), filepath.Join(workspace, "skills-lock.json"))

			result, err := registry.Execute(context.Background(), inv)
			if err != nil {
				return err
			}
			if result.Error != "" {
				return fmt.Errorf("%s", result.Error)
			}
			fmt.Fprintln(os.Stdout, result.Text)
			return nil
		},
	}

	cmd.Flags().StringVar(&workspace, "workspace", ".", "Workspace root skills are discovered/pruned under")
	return cmd
}
