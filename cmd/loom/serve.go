package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/loomrun/loom/internal/rpc"
	"github.com/loomrun/loom/pkg/models"
)

// buildServeCmd starts the RPC frame server: one websocket connection per
// client, each driving the same agent loop buildRunCmd drives inline.
func buildServeCmd() *cobra.Command {
	var (
		addr         string
		workspace    string
		sessionPath  string
		policyPreset string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent loop over the ndjson/websocket RPC frame protocol",
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
			if addr == "" {
				addr = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
			}

			rt, err := buildRuntime(cmd.Context(), cfg, sessionPath, workspace, policyPreset)
			if err != nil {
				return err
			}
			defer rt.Close()

			handler := &rpc.LoopHandler{
				Loop: rt.loop,
				SessionFor: func(sessionID string) (*models.Session, error) {
					if sessionID == "" {
						return nil, fmt.Errorf("session_id is required")
					}
					return &models.Session{ID: sessionID}, nil
				},
			}

			mux := http.NewServeMux()
			mux.HandleFunc("/rpc", func(w http.ResponseWriter, r *http.Request) {
				if err := rpc.Serve(r.Context(), w, r, handler, slog.Default()); err != nil {
					slog.Error("rpc session ended", "error", err)
				}
			})

			slog.Info("serving", "addr", addr)
			server := &http.Server{Addr: addr, Handler: mux}
			return server.ListenAndServe()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Address to listen on (default from server.host/server.http_port)")
	cmd.Flags().StringVar(&workspace, "workspace", ".", "Workspace root the tools may read/write")
	cmd.Flags().StringVar(&sessionPath, "session", "", "Path to the session transcript (default ~/.loom/session.jsonl)")
	cmd.Flags().StringVar(&policyPreset, "policy", "balanced", "Tool policy preset: hardened, balanced, or permissive")
	return cmd
}
