package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PruneCandidate is one directory entry under a skills directory that the
// lockfile does not track.
type PruneCandidate struct {
	Name string
	Path string
}

// PruneResult reports what prune found (WouldDelete) and, when run with
// apply=true, what it actually removed (Deleted).
type PruneResult struct {
	WouldDelete []PruneCandidate
	Deleted     []PruneCandidate
}

// skillNameFor derives the tracked-skill name for a directory entry: a
// bare "<name>.md" file names the skill directly, a directory (the
// SKILL.md-per-folder layout discovery.go reads) is named after itself.
func skillNameFor(entry os.DirEntry) string {
	if entry.IsDir() {
		return entry.Name()
	}
	return strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
}

// Prune compares dir's entries against lock's tracked set. Every entry not
// tracked is reported as a would-delete candidate; when apply is true those
// entries are removed from disk (files via os.Remove, directories via
// os.RemoveAll) and also returned as Deleted.
func Prune(dir string, lock *Lockfile, apply bool) (PruneResult, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return PruneResult{}, nil
	}
	if err != nil {
		return PruneResult{}, fmt.Errorf("read skills directory %s: %w", dir, err)
	}

	var result PruneResult
	for _, entry := range entries {
		name := skillNameFor(entry)
		if lock.IsTracked(name) {
			continue
		}
		candidate := PruneCandidate{Name: name, Path: filepath.Join(dir, entry.Name())}
		result.WouldDelete = append(result.WouldDelete, candidate)

		if !apply {
			continue
		}
		if entry.IsDir() {
			err = os.RemoveAll(candidate.Path)
		} else {
			err = os.Remove(candidate.Path)
		}
		if err != nil {
			return result, fmt.Errorf("prune %s: %w", candidate.Path, err)
		}
		result.Deleted = append(result.Deleted, candidate)
	}
	return result, nil
}

// FormatPruneReport renders result the way `/skills-prune` and `loom
// skills prune` both print it: one "would_delete"/"deleted" line per
// candidate so scripted callers can grep the action taken on each name.
func FormatPruneReport(result PruneResult, apply bool) string {
	if len(result.WouldDelete) == 0 {
		return "Nothing to prune."
	}
	var b strings.Builder
	verb := "would_delete"
	if apply {
		verb = "deleted"
	}
	for _, c := range result.WouldDelete {
		fmt.Fprintf(&b, "%s: %s\n", verb, c.Path)
	}
	return strings.TrimRight(b.String(), "\n")
}
