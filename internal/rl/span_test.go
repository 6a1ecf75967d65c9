package rl

import "testing"

func TestRewardValidate(t *testing.T) {
	if err := NewReward("task_success", 1).Validate(); err != nil {
		t.Fatalf("expected valid reward, got %v", err)
	}
	if err := NewReward("", 1).Validate(); err == nil {
		t.Fatal("expected error for unnamed reward")
	}
	if err := NewReward("nan", nanFloat()).Validate(); err == nil {
		t.Fatal("expected error for non-finite reward")
	}
}

func TestResourcesUpdateValidateAndSupersede(t *testing.T) {
	r := NewResourcesUpdate("tool-config", 1, map[string]any{"max_tokens": 4096})
	if err := r.Validate(); err != nil {
		t.Fatalf("expected valid resources update, got %v", err)
	}
	if !r.IsLatest {
		t.Fatal("expected new snapshot to be latest")
	}

	next := r.Supersede(map[string]any{"max_tokens": 8192})
	if r.IsLatest {
		t.Fatal("expected superseded snapshot to no longer be latest")
	}
	if next.Version != r.Version+1 {
		t.Fatalf("expected version %d, got %d", r.Version+1, next.Version)
	}
	if !next.IsLatest {
		t.Fatal("expected new snapshot to be latest")
	}

	if err := (&ResourcesUpdate{}).Validate(); err == nil {
		t.Fatal("expected error for empty resources_id")
	}
}

func nanFloat() float64 {
	var zero float64
	return 1 / zero / (1 / zero)
}
