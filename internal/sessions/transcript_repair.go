package sessions

import (
	"github.com/loomrun/loom/pkg/models"
)

// RepairReport summarizes the outcome of RepairToolCallPairing.
type RepairReport struct {
	Messages              []models.Message
	SyntheticResultsAdded int
	DroppedOrphanResults  int
	DroppedDuplicates     int
}

// RepairToolCallPairing walks a lineage and ensures every tool call in an
// assistant message is paired with exactly one tool result in the
// immediately following tool message, which every provider's transcript
// validation requires. It:
//   - drops tool results with no matching pending tool call (orphans)
//   - drops duplicate tool results for an id already satisfied
//   - synthesizes an error tool result for any tool call left unanswered
//     before the next assistant message (or end of transcript)
func RepairToolCallPairing(messages []models.Message) RepairReport {
	report := RepairReport{Messages: make([]models.Message, 0, len(messages))}
	pending := map[string]string{} // tool_call_id -> tool name
	satisfied := map[string]bool{}

	flushSynthetic := func() {
		if len(pending) == 0 {
			return
		}
		ids := make([]string, 0, len(pending))
		for id := range pending {
			ids = append(ids, id)
		}
		for _, id := range ids {
			name := pending[id]
			delete(pending, id)
			report.Messages = append(report.Messages, syntheticToolResult(id, name))
			report.SyntheticResultsAdded++
		}
	}

	for _, msg := range messages {
		switch msg.Role {
		case models.RoleAssistant:
			flushSynthetic()
			for _, tc := range msg.ToolCalls {
				pending[tc.ID] = tc.Name
			}
			report.Messages = append(report.Messages, msg)

		case models.RoleTool:
			var kept []models.ToolResult
			for _, tr := range msg.ToolResults {
				if _, isPending := pending[tr.ToolCallID]; !isPending {
					if satisfied[tr.ToolCallID] {
						report.DroppedDuplicates++
					} else {
						report.DroppedOrphanResults++
					}
					continue
				}
				delete(pending, tr.ToolCallID)
				satisfied[tr.ToolCallID] = true
				kept = append(kept, tr)
			}
			if len(kept) > 0 {
				report.Messages = append(report.Messages, models.Message{Role: msg.Role, ToolResults: kept})
			}

		default:
			flushSynthetic()
			report.Messages = append(report.Messages, msg)
		}
	}
	flushSynthetic()
	return report
}

func syntheticToolResult(toolCallID, toolName string) models.Message {
	if toolName == "" {
		toolName = "unknown"
	}
	return models.Message{
		Role: models.RoleTool,
		ToolResults: []models.ToolResult{{
			ToolCallID: toolCallID,
			Content:    "missing tool result in session history; synthesized during repair",
			IsError:    true,
		}},
	}
}

// PendingToolCallGuard tracks tool calls awaiting a result during live
// dispatch, so the Tool Host can flush synthetic results if a turn ends
// (cancellation, timeout, error) before every call was answered.
type PendingToolCallGuard struct {
	pending map[string]string
}

// NewPendingToolCallGuard constructs an empty guard.
func NewPendingToolCallGuard() *PendingToolCallGuard {
	return &PendingToolCallGuard{pending: map[string]string{}}
}

// Track records the tool calls declared by an assistant message.
func (g *PendingToolCallGuard) Track(msg models.Message) {
	for _, tc := range msg.ToolCalls {
		g.pending[tc.ID] = tc.Name
	}
}

// Resolve marks a tool call as answered.
func (g *PendingToolCallGuard) Resolve(toolCallID string) {
	delete(g.pending, toolCallID)
}

// HasPending reports whether any tracked tool call is still unanswered.
func (g *PendingToolCallGuard) HasPending() bool {
	return len(g.pending) > 0
}

// Flush returns synthetic error results for every unanswered tool call and
// clears the pending set.
func (g *PendingToolCallGuard) Flush() []models.Message {
	if len(g.pending) == 0 {
		return nil
	}
	out := make([]models.Message, 0, len(g.pending))
	for id, name := range g.pending {
		out = append(out, syntheticToolResult(id, name))
	}
	g.pending = map[string]string{}
	return out
}
