package skills

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPruneDryRunReportsWouldDeleteAndLeavesFiles(t *testing.T) {
	dir := t.TempDir()
	tracked := filepath.Join(dir, "tracked.md")
	stale := filepath.Join(dir, "stale.md")
	if err := os.WriteFile(tracked, []byte("# tracked"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("# stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	lock := NewLockfile()
	lock.Track("tracked")

	result, err := Prune(dir, lock, false)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(result.WouldDelete) != 1 || result.WouldDelete[0].Name != "stale" {
		t.Fatalf("expected stale to be the only would-delete candidate, got %+v", result.WouldDelete)
	}
	if len(result.Deleted) != 0 {
		t.Fatalf("dry run must not delete anything, got %+v", result.Deleted)
	}

	report := FormatPruneReport(result, false)
	if !strings.Contains(report, "would_delete") {
		t.Fatalf("expected report to contain would_delete, got %q", report)
	}
	if !strings.Contains(report, "stale.md") {
		t.Fatalf("expected report to name stale.md, got %q", report)
	}

	if _, err := os.Stat(stale); err != nil {
		t.Fatalf("stale.md should still exist after a dry run: %v", err)
	}
	if _, err := os.Stat(tracked); err != nil {
		t.Fatalf("tracked.md should still exist: %v", err)
	}
}

func TestPruneApplyDeletesUntrackedOnly(t *testing.T) {
	dir := t.TempDir()
	tracked := filepath.Join(dir, "tracked.md")
	stale := filepath.Join(dir, "stale.md")
	if err := os.WriteFile(tracked, []byte("# tracked"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("# stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	lock := NewLockfile()
	lock.Track("tracked")

	result, err := Prune(dir, lock, true)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(result.Deleted) != 1 || result.Deleted[0].Name != "stale" {
		t.Fatalf("expected stale to be deleted, got %+v", result.Deleted)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale.md should have been deleted, stat err=%v", err)
	}
	if _, err := os.Stat(tracked); err != nil {
		t.Fatalf("tracked.md should remain: %v", err)
	}
}

func TestPruneEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	result, err := Prune(filepath.Join(dir, "missing"), NewLockfile(), false)
	if err != nil {
		t.Fatalf("Prune on a missing directory should not error: %v", err)
	}
	if len(result.WouldDelete) != 0 {
		t.Fatalf("expected no candidates, got %+v", result.WouldDelete)
	}
}

func TestLockfileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skills-lock.json")
	lock := NewLockfile()
	lock.Track("tracked")
	lock.Track("also-tracked")
	if err := lock.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadLockfile(path)
	if err != nil {
		t.Fatalf("LoadLockfile: %v", err)
	}
	if !loaded.IsTracked("tracked") || !loaded.IsTracked("also-tracked") {
		t.Fatalf("expected both names tracked after round trip, got %+v", loaded.TrackedNames())
	}
	if loaded.IsTracked("stale") {
		t.Fatalf("stale should not be tracked")
	}
}

func TestLoadLockfileMissingFileReturnsEmpty(t *testing.T) {
	lock, err := LoadLockfile(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("LoadLockfile of a missing file should not error: %v", err)
	}
	if len(lock.TrackedNames()) != 0 {
		t.Fatalf("expected an empty lockfile, got %+v", lock.TrackedNames())
	}
}
