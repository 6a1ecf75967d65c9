package rl

import (
	"strings"
	"testing"
)

func TestCheckpointRecordValidate(t *testing.T) {
	c := NewCheckpointRecord("ckpt-1", "ppo", "v1", 100, 10)
	if err := c.Validate(); err != nil {
		t.Fatalf("expected valid checkpoint, got %v", err)
	}
}

func TestCheckpointRecordValidateEmptyAlgorithm(t *testing.T) {
	c := NewCheckpointRecord("ckpt-1", "", "v1", 100, 10)
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for empty algorithm")
	}
}

func TestCheckpointRecordWithParentRoundTrip(t *testing.T) {
	c := NewCheckpointRecord("ckpt-2", "ppo", "v1", 200, 20).WithParent("ckpt-1")
	parent, ok := c.ParentID()
	if !ok || parent != "ckpt-1" {
		t.Fatalf("expected parent ckpt-1, got %q (ok=%v)", parent, ok)
	}
}

func TestResolveLineageLinearChain(t *testing.T) {
	records := []CheckpointRecord{
		*NewCheckpointRecord("root", "ppo", "v1", 0, 0),
		*NewCheckpointRecord("mid", "ppo", "v1", 100, 10).WithParent("root"),
		*NewCheckpointRecord("leaf", "ppo", "v1", 200, 20).WithParent("mid"),
	}
	chain, err := ResolveLineage(records, "leaf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"root", "mid", "leaf"}
	if len(chain) != len(want) {
		t.Fatalf("expected %v, got %v", want, chain)
	}
	for i, id := range want {
		if chain[i] != id {
			t.Fatalf("expected %v, got %v", want, chain)
		}
	}
}

func TestResolveLineageDuplicateID(t *testing.T) {
	records := []CheckpointRecord{
		*NewCheckpointRecord("dup", "ppo", "v1", 0, 0),
		*NewCheckpointRecord("dup", "ppo", "v1", 1, 1),
	}
	if _, err := ResolveLineage(records, "dup"); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestResolveLineageUnknownLeaf(t *testing.T) {
	records := []CheckpointRecord{*NewCheckpointRecord("root", "ppo", "v1", 0, 0)}
	_, err := ResolveLineage(records, "missing")
	if err == nil || !strings.Contains(err.Error(), "unknown leaf") {
		t.Fatalf("expected unknown leaf error, got %v", err)
	}
}

func TestResolveLineageMissingParent(t *testing.T) {
	records := []CheckpointRecord{
		*NewCheckpointRecord("leaf", "ppo", "v1", 10, 1).WithParent("ghost"),
	}
	_, err := ResolveLineage(records, "leaf")
	if err == nil || !strings.Contains(err.Error(), "missing parent") {
		t.Fatalf("expected missing parent error, got %v", err)
	}
}

func TestResolveLineageCycle(t *testing.T) {
	records := []CheckpointRecord{
		*NewCheckpointRecord("a", "ppo", "v1", 0, 0).WithParent("b"),
		*NewCheckpointRecord("b", "ppo", "v1", 1, 1).WithParent("a"),
	}
	_, err := ResolveLineage(records, "a")
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("expected cycle error, got %v", err)
	}
}
