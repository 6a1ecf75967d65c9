package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/loomrun/loom/pkg/models"
)

// buildRunCmd drives a single agentic turn against the configured provider
// chain, printing streamed text to stdout and persisting the turn to the
// session transcript before returning.
func buildRunCmd() *cobra.Command {
	var (
		workspace    string
		sessionPath  string
		policyPreset string
		sessionID    string
	)

	cmd := &cobra.Command{
		Use:   "run [prompt]",
		Short: "Run a single agentic turn against the configured provider chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if workspace == "" {
				workspace = "."
			}
			if sessionPath == "" {
				sessionPath = defaultSessionPath()
			}

			rt, err := buildRuntime(cmd.Context(), cfg, sessionPath, workspace, policyPreset)
			if err != nil {
				return err
			}
			defer rt.Close()

			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			session := &models.Session{ID: sessionID}
			msg := models.NewUserMessage(strings.Join(args, " "))

			chunks, err := rt.loop.Run(cmd.Context(), session, &msg)
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}

			for chunk := range chunks {
				if chunk.Error != nil {
					return chunk.Error
				}
				if chunk.Text != "" {
					fmt.Fprint(os.Stdout, chunk.Text)
				}
			}
			fmt.Fprintln(os.Stdout)
			return nil
		},
	}

	cmd.Flags().StringVar(&workspace, "workspace", ".", "Workspace root the tools may read/write")
	cmd.Flags().StringVar(&sessionPath, "session", "", "Path to the session transcript (default ~/.loom/session.jsonl)")
	cmd.Flags().StringVar(&policyPreset, "policy", "balanced", "Tool policy preset: hardened, balanced, or permissive")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "Session identifier to tag this turn with (default: a new uuid)")
	return cmd
}
