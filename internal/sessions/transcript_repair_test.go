package sessions

import (
	"encoding/json"
	"testing"

	"github.com/loomrun/loom/pkg/models"
)

func assistantWithCalls(ids ...string) models.Message {
	var calls []models.ToolCall
	for _, id := range ids {
		calls = append(calls, models.ToolCall{ID: id, Name: "read_file", Input: json.RawMessage(`{}`)})
	}
	return models.Message{Role: models.RoleAssistant, ToolCalls: calls}
}

func toolResult(id string, isError bool) models.Message {
	return models.Message{Role: models.RoleTool, ToolResults: []models.ToolResult{
		{ToolCallID: id, Content: "ok", IsError: isError},
	}}
}

func TestRepairPairsMatchedCalls(t *testing.T) {
	in := []models.Message{
		models.NewUserMessage("go"),
		assistantWithCalls("call-1"),
		toolResult("call-1", false),
	}
	report := RepairToolCallPairing(in)
	if report.SyntheticResultsAdded != 0 || report.DroppedOrphanResults != 0 || report.DroppedDuplicates != 0 {
		t.Fatalf("expected no repairs for a clean transcript, got %+v", report)
	}
	if len(report.Messages) != 3 {
		t.Fatalf("expected 3 messages unchanged, got %d", len(report.Messages))
	}
}

func TestRepairSynthesizesMissingResult(t *testing.T) {
	in := []models.Message{
		models.NewUserMessage("go"),
		assistantWithCalls("call-1"),
		models.NewAssistantMessage("oops, moved on without a result"),
	}
	report := RepairToolCallPairing(in)
	if report.SyntheticResultsAdded != 1 {
		t.Fatalf("expected 1 synthetic result, got %d", report.SyntheticResultsAdded)
	}
	// synthetic result must appear before the next assistant message
	foundSynthetic := false
	for i, m := range report.Messages {
		if m.Role == models.RoleTool {
			foundSynthetic = true
			if i == 0 || report.Messages[i-1].Role != models.RoleAssistant {
				t.Fatalf("synthetic result misplaced at index %d", i)
			}
		}
	}
	if !foundSynthetic {
		t.Fatal("expected a synthesized tool result message")
	}
}

func TestRepairDropsOrphanResult(t *testing.T) {
	in := []models.Message{
		models.NewUserMessage("go"),
		toolResult("never-called", false),
	}
	report := RepairToolCallPairing(in)
	if report.DroppedOrphanResults != 1 {
		t.Fatalf("expected 1 dropped orphan, got %d", report.DroppedOrphanResults)
	}
	for _, m := range report.Messages {
		if m.Role == models.RoleTool {
			t.Fatal("orphan tool result should have been dropped")
		}
	}
}

func TestRepairDropsDuplicateResult(t *testing.T) {
	in := []models.Message{
		assistantWithCalls("call-1"),
		toolResult("call-1", false),
		toolResult("call-1", false),
	}
	report := RepairToolCallPairing(in)
	if report.DroppedDuplicates != 1 {
		t.Fatalf("expected 1 dropped duplicate, got %d", report.DroppedDuplicates)
	}
}

func TestRepairFlushesPendingAtEndOfTranscript(t *testing.T) {
	in := []models.Message{
		assistantWithCalls("call-1", "call-2"),
		toolResult("call-1", false),
	}
	report := RepairToolCallPairing(in)
	if report.SyntheticResultsAdded != 1 {
		t.Fatalf("expected 1 synthetic result for the unanswered call, got %d", report.SyntheticResultsAdded)
	}
}

func TestPendingToolCallGuard(t *testing.T) {
	g := NewPendingToolCallGuard()
	g.Track(assistantWithCalls("call-1", "call-2"))
	if !g.HasPending() {
		t.Fatal("expected pending calls after Track")
	}
	g.Resolve("call-1")
	if !g.HasPending() {
		t.Fatal("expected call-2 still pending")
	}
	flushed := g.Flush()
	if len(flushed) != 1 {
		t.Fatalf("expected 1 flushed synthetic result, got %d", len(flushed))
	}
	if g.HasPending() {
		t.Fatal("expected no pending calls after Flush")
	}
}
