package rpc

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/loomrun/loom/internal/agent"
	"github.com/loomrun/loom/pkg/models"
)

// RunEventPayload is the payload of a run.event frame: one incremental
// chunk of an in-progress run, mirroring agent.ResponseChunk.
type RunEventPayload struct {
	Text       string             `json:"text,omitempty"`
	Thinking   string             `json:"thinking,omitempty"`
	ToolResult *models.ToolResult `json:"tool_result,omitempty"`
	ToolEvent  *models.ToolEvent  `json:"tool_event,omitempty"`
}

// RunResultPayload is the payload of the terminal run.result frame.
type RunResultPayload struct {
	Text string `json:"text"`
}

// LoopHandler adapts an agent.AgenticLoop to the Handler interface so an
// RPC connection can drive turns of the agent loop. SessionFor resolves (or
// creates) the models.Session a run.start payload's session_id refers to;
// the rpc package has no session-identity policy of its own.
type LoopHandler struct {
	Loop       *agent.AgenticLoop
	SessionFor func(sessionID string) (*models.Session, error)
}

// RunStart drives one turn of the agent loop for payload.Prompt, emitting a
// run.event frame per ResponseChunk and a final run.result frame with the
// accumulated assistant text. Cancelling ctx (via the matching run.cancel
// frame) stops the loop cooperatively; per the loop's cancellation
// semantics, a response that was already in flight when cancellation landed
// is discarded rather than persisted.
func (h *LoopHandler) RunStart(ctx context.Context, payload RunStartPayload, emit func(kind Kind, payload any) error) error {
	if h.Loop == nil {
		return fmt.Errorf("rpc: no agent loop configured")
	}

	session, err := h.resolveSession(payload.SessionID)
	if err != nil {
		return fmt.Errorf("resolve session: %w", err)
	}

	msg := models.NewUserMessage(payload.Prompt)
	chunks, err := h.Loop.Run(ctx, session, &msg)
	if err != nil {
		return err
	}

	var text strings.Builder
	for chunk := range chunks {
		if chunk.Error != nil {
			return chunk.Error
		}
		if chunk.Text != "" {
			text.WriteString(chunk.Text)
		}
		if err := emit(KindRunEvent, RunEventPayload{
			Text:       chunk.Text,
			Thinking:   chunk.Thinking,
			ToolResult: chunk.ToolResult,
			ToolEvent:  chunk.ToolEvent,
		}); err != nil {
			return err
		}
	}

	return emit(KindRunResult, RunResultPayload{Text: text.String()})
}

func (h *LoopHandler) resolveSession(sessionID string) (*models.Session, error) {
	if h.SessionFor != nil {
		return h.SessionFor(sessionID)
	}
	if strings.TrimSpace(sessionID) == "" {
		sessionID = uuid.NewString()
	}
	return &models.Session{ID: sessionID}, nil
}
