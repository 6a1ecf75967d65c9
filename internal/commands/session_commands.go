package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/loomrun/loom/internal/sessions"
)

// SessionRuntime is the piece of session state the Command Surface mutates:
// the open store plus whichever entry the console currently treats as the
// active head. Handlers receive it by pointer via the invocation context so
// a command like /branch can swap ActiveHead for the caller. It is an alias
// of sessions.SessionRuntime so the Agent Loop and the Command Surface share
// one definition.
type SessionRuntime = sessions.SessionRuntime

const sessionRuntimeKey = "session_runtime"

// WithSessionRuntime attaches rt to ctx's invocation Context map.
func WithSessionRuntime(inv *Invocation, rt *SessionRuntime) {
	if inv.Context == nil {
		inv.Context = map[string]any{}
	}
	inv.Context[sessionRuntimeKey] = rt
}

func sessionRuntimeFrom(inv *Invocation) (*SessionRuntime, error) {
	if inv.Context == nil {
		return nil, fmt.Errorf("no session runtime attached to this invocation")
	}
	rt, ok := inv.Context[sessionRuntimeKey].(*SessionRuntime)
	if !ok || rt == nil || rt.Store == nil {
		return nil, fmt.Errorf("no session runtime attached to this invocation")
	}
	return rt, nil
}

// RegisterSessionCommands registers the exit and session-mutation commands
// from the spec's command surface: /quit, /exit, /branch, /resume,
// /session-search, /session-diff, /session-stats, /session-graph-export,
// /session-export, /session-import, /session-repair, /session-compact.
func RegisterSessionCommands(r *Registry) {
	mustRegister := func(cmd *Command) {
		if err := r.Register(cmd); err != nil {
			panic(fmt.Sprintf("failed to register builtin command %q: %v", cmd.Name, err))
		}
	}

	mustRegister(&Command{
		Name:        "quit",
		Description: "Exit the session",
		Category:    "session",
		Source:      "builtin",
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			return &Result{Text: "Goodbye.", Data: map[string]any{"action": "exit"}}, nil
		},
	})
	mustRegister(&Command{
		Name:        "exit",
		Description: "Exit the session",
		Category:    "session",
		Source:      "builtin",
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			return &Result{Text: "Goodbye.", Data: map[string]any{"action": "exit"}}, nil
		},
	})

	mustRegister(&Command{
		Name:        "branch",
		Usage:       "/branch <id>",
		Description: "Switch the active head to entry <id>",
		AcceptsArgs: true,
		Category:    "session",
		Source:      "builtin",
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			rt, err := sessionRuntimeFrom(inv)
			if err != nil {
				return nil, err
			}
			id, err := strconv.ParseUint(strings.TrimSpace(inv.Args), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("branch: %q is not a valid entry id", inv.Args)
			}
			if _, err := rt.Store.LineageMessages(&id); err != nil {
				return nil, fmt.Errorf("branch: %w", err)
			}
			*rt.ActiveHead = id
			return &Result{Text: fmt.Sprintf("Switched to entry %d.", id)}, nil
		},
	})

	mustRegister(&Command{
		Name:        "resume",
		Description: "Resume at the most recent branch tip",
		Category:    "session",
		Source:      "builtin",
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			rt, err := sessionRuntimeFrom(inv)
			if err != nil {
				return nil, err
			}
			head := rt.Store.HeadID()
			if head == nil {
				return &Result{Text: "Session is empty."}, nil
			}
			*rt.ActiveHead = *head
			return &Result{Text: fmt.Sprintf("Resumed at entry %d.", *head)}, nil
		},
	})

	mustRegister(&Command{
		Name:        "session-search",
		Usage:       "/session-search <query> [--role r] [--limit n]",
		Description: "Search the active lineage for matching messages",
		AcceptsArgs: true,
		Category:    "session",
		Source:      "builtin",
		Handler:     sessionSearchHandler,
	})

	mustRegister(&Command{
		Name:        "session-diff",
		Usage:       "/session-diff [<l> <r>]",
		Description: "Diff two lineages, defaulting to active head vs its parent",
		AcceptsArgs: true,
		Category:    "session",
		Source:      "builtin",
		Handler:     sessionDiffHandler,
	})

	mustRegister(&Command{
		Name:        "session-stats",
		Usage:       "/session-stats [--json]",
		Description: "Show entry/branch counts for the session",
		AcceptsArgs: true,
		Category:    "session",
		Source:      "builtin",
		Handler:     sessionStatsHandler,
	})

	mustRegister(&Command{
		Name:        "session-graph-export",
		Usage:       "/session-graph-export <path>",
		Description: "Export the entry forest as Graphviz (.dot) or Mermaid (.mmd)",
		AcceptsArgs: true,
		Category:    "session",
		Source:      "builtin",
		Handler:     sessionGraphExportHandler,
	})

	mustRegister(&Command{
		Name:        "session-export",
		Usage:       "/session-export <path>",
		Description: "Write the active lineage to a new session file",
		AcceptsArgs: true,
		Category:    "session",
		Source:      "builtin",
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			rt, err := sessionRuntimeFrom(inv)
			if err != nil {
				return nil, err
			}
			path := strings.TrimSpace(inv.Args)
			if path == "" {
				return nil, fmt.Errorf("session-export: destination path is required")
			}
			if err := sessions.Export(path, rt.Store, rt.ActiveHead); err != nil {
				return nil, fmt.Errorf("session-export: %w", err)
			}
			return &Result{Text: fmt.Sprintf("Exported to %s.", path)}, nil
		},
	})

	mustRegister(&Command{
		Name:        "session-import",
		Usage:       "/session-import <path> [--replace]",
		Description: "Import another session file, merging by default",
		AcceptsArgs: true,
		Category:    "session",
		Source:      "builtin",
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			rt, err := sessionRuntimeFrom(inv)
			if err != nil {
				return nil, err
			}
			fields := strings.Fields(inv.Args)
			if len(fields) == 0 {
				return nil, fmt.Errorf("session-import: source path is required")
			}
			path := fields[0]
			mode := sessions.ImportMerge
			for _, f := range fields[1:] {
				if f == "--replace" {
					mode = sessions.ImportReplace
				}
			}
			src, _, err := sessions.Load(path, sessions.DefaultLockConfig())
			if err != nil {
				return nil, fmt.Errorf("session-import: %w", err)
			}
			defer src.Close()

			remap, err := sessions.Import(rt.Store, src, mode)
			if err != nil {
				return nil, fmt.Errorf("session-import: %w", err)
			}
			if head := rt.Store.HeadID(); head != nil {
				*rt.ActiveHead = *head
			}
			return &Result{
				Text: fmt.Sprintf("Imported %d entries (mode=%s).", len(remap), mode),
				Data: map[string]any{"imported": len(remap), "mode": string(mode)},
			}, nil
		},
	})

	mustRegister(&Command{
		Name:        "session-repair",
		Description: "Repair orphaned or duplicate tool-call pairings in the active lineage",
		Category:    "session",
		Source:      "builtin",
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			rt, err := sessionRuntimeFrom(inv)
			if err != nil {
				return nil, err
			}
			lineage, err := rt.Store.LineageMessages(rt.ActiveHead)
			if err != nil {
				return nil, fmt.Errorf("session-repair: %w", err)
			}
			report := sessions.RepairToolCallPairing(lineage)
			return &Result{
				Text: fmt.Sprintf("Repaired: %d synthesized, %d orphans dropped, %d duplicates dropped.",
					report.SyntheticResultsAdded, report.DroppedOrphanResults, report.DroppedDuplicates),
				Data: map[string]any{
					"synthesized": report.SyntheticResultsAdded,
					"orphans":     report.DroppedOrphanResults,
					"duplicates":  report.DroppedDuplicates,
				},
			}, nil
		},
	})

	mustRegister(&Command{
		Name:        "session-compact",
		Description: "Drop entries unreachable from the active head",
		Category:    "session",
		Source:      "builtin",
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			rt, err := sessionRuntimeFrom(inv)
			if err != nil {
				return nil, err
			}
			before := len(rt.Store.Entries())
			if err := rt.Store.Compact(rt.ActiveHead); err != nil {
				return nil, fmt.Errorf("session-compact: %w", err)
			}
			after := len(rt.Store.Entries())
			return &Result{Text: fmt.Sprintf("Compacted %d -> %d entries.", before, after)}, nil
		},
	})
}

func sessionSearchHandler(ctx context.Context, inv *Invocation) (*Result, error) {
	rt, err := sessionRuntimeFrom(inv)
	if err != nil {
		return nil, err
	}
	query, role, limit := parseSearchArgs(inv.Args)
	if query == "" {
		return nil, fmt.Errorf("session-search: a query is required")
	}
	lineage, err := rt.Store.LineageMessages(rt.ActiveHead)
	if err != nil {
		return nil, fmt.Errorf("session-search: %w", err)
	}

	var hits []string
	for _, msg := range lineage {
		if role != "" && string(msg.Role) != role {
			continue
		}
		text := msg.Content
		if text == "" || !strings.Contains(strings.ToLower(text), strings.ToLower(query)) {
			continue
		}
		hits = append(hits, fmt.Sprintf("[%s] %s", msg.Role, text))
		if limit > 0 && len(hits) >= limit {
			break
		}
	}
	if len(hits) == 0 {
		return &Result{Text: "No matches."}, nil
	}
	return &Result{Text: strings.Join(hits, "\n"), Data: map[string]any{"matches": len(hits)}}, nil
}

func parseSearchArgs(args string) (query, role string, limit int) {
	fields := strings.Fields(args)
	var queryParts []string
	for i := 0; i < len(fields); i++ {
		switch fields[i] {
		case "--role":
			if i+1 < len(fields) {
				role = fields[i+1]
				i++
			}
		case "--limit":
			if i+1 < len(fields) {
				if n, err := strconv.Atoi(fields[i+1]); err == nil {
					limit = n
				}
				i++
			}
		default:
			queryParts = append(queryParts, fields[i])
		}
	}
	return strings.Join(queryParts, " "), role, limit
}

func sessionDiffHandler(ctx context.Context, inv *Invocation) (*Result, error) {
	rt, err := sessionRuntimeFrom(inv)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(inv.Args)

	var left, right *uint64
	switch len(fields) {
	case 0:
		right = rt.ActiveHead
		if right == nil {
			return &Result{Text: "Nothing to diff: no active head."}, nil
		}
		idx, ok := indexOfEntry(rt.Store, *right)
		if !ok {
			return nil, fmt.Errorf("session-diff: active head does not exist")
		}
		left = rt.Store.Entries()[idx].ParentID
		if left == nil {
			return &Result{Text: "Active head is a root; nothing to diff against."}, nil
		}
	case 2:
		l, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("session-diff: %q is not a valid entry id", fields[0])
		}
		r, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("session-diff: %q is not a valid entry id", fields[1])
		}
		left, right = &l, &r
	default:
		return nil, fmt.Errorf("session-diff: expected zero or two entry ids")
	}

	leftLineage, err := rt.Store.LineageMessages(left)
	if err != nil {
		return nil, fmt.Errorf("session-diff: %w", err)
	}
	rightLineage, err := rt.Store.LineageMessages(right)
	if err != nil {
		return nil, fmt.Errorf("session-diff: %w", err)
	}

	common := 0
	for common < len(leftLineage) && common < len(rightLineage) {
		if leftLineage[common].Content != rightLineage[common].Content {
			break
		}
		common++
	}
	return &Result{
		Text: fmt.Sprintf("Shared prefix: %d messages. Left adds %d, right adds %d.",
			common, len(leftLineage)-common, len(rightLineage)-common),
		Data: map[string]any{
			"common_prefix": common,
			"left_extra":    len(leftLineage) - common,
			"right_extra":   len(rightLineage) - common,
		},
	}, nil
}

func sessionStatsHandler(ctx context.Context, inv *Invocation) (*Result, error) {
	rt, err := sessionRuntimeFrom(inv)
	if err != nil {
		return nil, err
	}
	entries := rt.Store.Entries()
	tips := rt.Store.BranchTips()
	asJSON := strings.Contains(inv.Args, "--json")

	data := map[string]any{
		"entries": len(entries),
		"tips":    len(tips),
	}
	if asJSON {
		return &Result{Data: data}, nil
	}
	return &Result{Text: fmt.Sprintf("%d entries, %d branch tips.", len(entries), len(tips)), Data: data}, nil
}

func sessionGraphExportHandler(ctx context.Context, inv *Invocation) (*Result, error) {
	rt, err := sessionRuntimeFrom(inv)
	if err != nil {
		return nil, err
	}
	path := strings.TrimSpace(inv.Args)
	if path == "" {
		return nil, fmt.Errorf("session-graph-export: destination path is required")
	}

	var render func([]sessions.SessionEntry) string
	switch {
	case strings.HasSuffix(path, ".mmd"):
		render = renderMermaid
	case strings.HasSuffix(path, ".dot"):
		render = renderDot
	default:
		return nil, fmt.Errorf("session-graph-export: unrecognized extension (want .dot or .mmd)")
	}

	content := render(rt.Store.Entries())
	if err := writeGraphFile(path, content); err != nil {
		return nil, fmt.Errorf("session-graph-export: %w", err)
	}
	return &Result{Text: fmt.Sprintf("Wrote graph to %s.", path)}, nil
}

func renderDot(entries []sessions.SessionEntry) string {
	var b strings.Builder
	b.WriteString("digraph session {\n")
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("  %d [label=%q];\n", e.ID, string(e.Message.Role)))
		if e.ParentID != nil {
			b.WriteString(fmt.Sprintf("  %d -> %d;\n", *e.ParentID, e.ID))
		}
	}
	b.WriteString("}\n")
	return b.String()
}

func renderMermaid(entries []sessions.SessionEntry) string {
	var b strings.Builder
	b.WriteString("graph TD\n")
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("  %d[%s]\n", e.ID, string(e.Message.Role)))
		if e.ParentID != nil {
			b.WriteString(fmt.Sprintf("  %d --> %d\n", *e.ParentID, e.ID))
		}
	}
	return b.String()
}

func writeGraphFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func indexOfEntry(s *sessions.Store, id uint64) (int, bool) {
	for i, e := range s.Entries() {
		if e.ID == id {
			return i, true
		}
	}
	return 0, false
}
