package commands

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/loomrun/loom/internal/sessions"
	"github.com/loomrun/loom/pkg/models"
)

func requireBuiltins(t *testing.T, r *Registry) {
	t.Helper()
	if err := RegisterBuiltins(r); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}
}

func TestTitleCase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"hello", "Hello"},
		{"Hello", "Hello"},
		{"HELLO", "HELLO"},
		{"h", "H"},
		{"system", "System"},
		{"config", "Config"},
	}

	for _, tt := range tests {
		result := titleCase(tt.input)
		if result != tt.expected {
			t.Errorf("titleCase(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestRegisterBuiltins(t *testing.T) {
	r := NewRegistry(nil)
	requireBuiltins(t, r)

	expectedCommands := []string{
		"help", "quit", "exit", "branch", "resume",
		"session-search", "session-diff", "session-stats",
		"session-graph-export", "session-export", "session-import",
		"session-repair", "session-compact",
		"profile", "branch-alias", "session-bookmark", "macro",
	}

	for _, name := range expectedCommands {
		if _, found := r.Get(name); !found {
			t.Errorf("builtin command %q not registered", name)
		}
	}
}

// newTestRuntime opens a fresh session store with a root and one child
// message, returning an Invocation pre-wired with a SessionRuntime and a
// config store directory under t.TempDir().
func newTestRuntime(t *testing.T) (*Registry, *SessionRuntime, func(name, args string) (*Result, error)) {
	t.Helper()
	r := NewRegistry(nil)
	requireBuiltins(t, r)

	dir := t.TempDir()
	store, _, err := sessions.Load(filepath.Join(dir, "session.jsonl"), sessions.LockConfig{
		StaleAfter: 1, WaitFor: 1, PollInterval: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	root, err := store.AppendMessages(nil, []models.Message{models.NewUserMessage("hello")})
	if err != nil {
		t.Fatal(err)
	}
	head, err := store.AppendMessages(root, []models.Message{models.NewAssistantMessage("world")})
	if err != nil {
		t.Fatal(err)
	}

	rt := &SessionRuntime{Store: store, ActiveHead: head}

	run := func(name, args string) (*Result, error) {
		inv := &Invocation{Name: name, Args: args}
		WithSessionRuntime(inv, rt)
		WithConfigStoreDir(inv, dir)
		return r.Execute(context.Background(), inv)
	}
	return r, rt, run
}

func TestBuiltinHandlers_Branch(t *testing.T) {
	_, rt, run := newTestRuntime(t)
	root := rt.Store.Entries()[0].ID

	result, err := run("branch", strconv.FormatUint(root, 10))
	if err != nil {
		t.Fatalf("branch: %v", err)
	}
	if !strings.Contains(result.Text, "Switched") {
		t.Errorf("unexpected text: %s", result.Text)
	}
	if *rt.ActiveHead != root {
		t.Errorf("active head = %d, want %d", *rt.ActiveHead, root)
	}

	if _, err := run("branch", "not-a-number"); err == nil {
		t.Error("expected error for invalid entry id")
	}
	if _, err := run("branch", "999"); err == nil {
		t.Error("expected error for nonexistent entry id")
	}
}

func TestBuiltinHandlers_Resume(t *testing.T) {
	_, rt, run := newTestRuntime(t)
	head := *rt.Store.HeadID()
	*rt.ActiveHead = rt.Store.Entries()[0].ID

	result, err := run("resume", "")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if *rt.ActiveHead != head {
		t.Errorf("active head = %d, want %d", *rt.ActiveHead, head)
	}
	if !strings.Contains(result.Text, "Resumed") {
		t.Errorf("unexpected text: %s", result.Text)
	}
}

func TestBuiltinHandlers_SessionStats(t *testing.T) {
	_, _, run := newTestRuntime(t)
	result, err := run("session-stats", "")
	if err != nil {
		t.Fatalf("session-stats: %v", err)
	}
	if result.Data["entries"] != 2 {
		t.Errorf("entries = %v, want 2", result.Data["entries"])
	}
}

func TestBuiltinHandlers_SessionSearch(t *testing.T) {
	_, _, run := newTestRuntime(t)
	result, err := run("session-search", "world")
	if err != nil {
		t.Fatalf("session-search: %v", err)
	}
	if !strings.Contains(result.Text, "world") {
		t.Errorf("unexpected text: %s", result.Text)
	}

	if _, err := run("session-search", ""); err == nil {
		t.Error("expected error for missing query")
	}
}

func TestBuiltinHandlers_SessionCompact(t *testing.T) {
	_, rt, run := newTestRuntime(t)
	before := len(rt.Store.Entries())
	result, err := run("session-compact", "")
	if err != nil {
		t.Fatalf("session-compact: %v", err)
	}
	if !strings.Contains(result.Text, strconv.Itoa(before)) {
		t.Errorf("unexpected text: %s", result.Text)
	}
}

func TestBuiltinHandlers_SessionExportImport(t *testing.T) {
	_, rt, run := newTestRuntime(t)
	exportPath := filepath.Join(rt.Store.PathDir(), "exported.jsonl")

	if _, err := run("session-export", exportPath); err != nil {
		t.Fatalf("session-export: %v", err)
	}

	_, _, run2 := newTestRuntime(t)
	result, err := run2("session-import", exportPath)
	if err != nil {
		t.Fatalf("session-import: %v", err)
	}
	if result.Data["imported"] != 2 {
		t.Errorf("imported = %v, want 2", result.Data["imported"])
	}
}

func TestBuiltinHandlers_SessionRepair(t *testing.T) {
	_, _, run := newTestRuntime(t)
	result, err := run("session-repair", "")
	if err != nil {
		t.Fatalf("session-repair: %v", err)
	}
	if result.Data["synthesized"] != 0 {
		t.Errorf("expected no repairs on a clean transcript, got %v", result.Data)
	}
}

func TestBuiltinHandlers_SessionGraphExport(t *testing.T) {
	_, rt, run := newTestRuntime(t)
	dotPath := filepath.Join(rt.Store.PathDir(), "graph.dot")
	if _, err := run("session-graph-export", dotPath); err != nil {
		t.Fatalf("session-graph-export dot: %v", err)
	}
	mmdPath := filepath.Join(rt.Store.PathDir(), "graph.mmd")
	if _, err := run("session-graph-export", mmdPath); err != nil {
		t.Fatalf("session-graph-export mermaid: %v", err)
	}
	if _, err := run("session-graph-export", filepath.Join(rt.Store.PathDir(), "graph.svg")); err == nil {
		t.Error("expected error for unrecognized extension")
	}
}

func TestBuiltinHandlers_BranchAliasSaveLoad(t *testing.T) {
	_, rt, run := newTestRuntime(t)
	root := rt.Store.Entries()[0].ID

	if _, err := run("branch-alias", "save greeting"); err != nil {
		t.Fatalf("branch-alias save: %v", err)
	}

	*rt.ActiveHead = root
	if _, err := run("branch-alias", "load greeting"); err != nil {
		t.Fatalf("branch-alias load: %v", err)
	}
	if *rt.ActiveHead == root {
		t.Error("expected active head to change after load")
	}

	if _, err := run("branch-alias", "save 1bad"); err == nil {
		t.Error("expected error for invalid alias name")
	}

	result, err := run("branch-alias", "list")
	if err != nil {
		t.Fatalf("branch-alias list: %v", err)
	}
	if !strings.Contains(result.Text, "greeting") {
		t.Errorf("expected greeting in list, got: %s", result.Text)
	}
}

func TestBuiltinHandlers_Macro(t *testing.T) {
	_, _, run := newTestRuntime(t)

	if _, err := run("macro", "set greet /session-stats"); err != nil {
		t.Fatalf("macro set: %v", err)
	}
	result, err := run("macro", "use greet")
	if err != nil {
		t.Fatalf("macro use: %v", err)
	}
	if result.Text != "/session-stats" {
		t.Errorf("macro body = %q, want %q", result.Text, "/session-stats")
	}

	if _, err := run("macro", "delete greet"); err != nil {
		t.Fatalf("macro delete: %v", err)
	}
	if _, err := run("macro", "use greet"); err == nil {
		t.Error("expected error using deleted macro")
	}
}

func TestBuiltinHandlers_Help(t *testing.T) {
	r := NewRegistry(nil)
	requireBuiltins(t, r)

	t.Run("list all commands", func(t *testing.T) {
		result, err := r.Execute(context.Background(), &Invocation{Name: "help"})
		if err != nil {
			t.Fatalf("help command failed: %v", err)
		}
		if !strings.Contains(result.Text, "Available Commands") {
			t.Error("missing header")
		}
		if !result.Markdown {
			t.Error("help should use markdown")
		}
	})

	t.Run("specific command", func(t *testing.T) {
		result, err := r.Execute(context.Background(), &Invocation{Name: "help", Args: "branch"})
		if err != nil {
			t.Fatalf("help command failed: %v", err)
		}
		if !strings.Contains(result.Text, "/branch") {
			t.Error("missing command name")
		}
	})

	t.Run("unknown command", func(t *testing.T) {
		result, err := r.Execute(context.Background(), &Invocation{Name: "help", Args: "nonexistent"})
		if err != nil {
			t.Fatalf("help command failed: %v", err)
		}
		if !strings.Contains(result.Text, "Unknown command") {
			t.Error("expected unknown command message")
		}
	})

	t.Run("with slash prefix", func(t *testing.T) {
		result, err := r.Execute(context.Background(), &Invocation{Name: "help", Args: "/branch"})
		if err != nil {
			t.Fatalf("help command failed: %v", err)
		}
		if !strings.Contains(result.Text, "/branch") {
			t.Error("should strip slash and find command")
		}
	})
}

func TestDispatchSuggestsUnknownCommand(t *testing.T) {
	r := NewRegistry(nil)
	requireBuiltins(t, r)

	_, err := Dispatch(context.Background(), r, &Invocation{Name: "hel"})
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), `"help"`) {
		t.Errorf("expected suggestion for 'help', got: %v", err)
	}
}
