package rl

import "testing"

func TestValidateSchemaTrajectory(t *testing.T) {
	tr := NewEpisodeTrajectory("traj-1", []TrajectoryStep{step(0, 1)}, 0.5)
	if err := tr.ValidateSchema(); err != nil {
		t.Fatalf("expected schema-valid trajectory, got %v", err)
	}
}

func TestValidateSchemaAdvantageBatch(t *testing.T) {
	b := NewAdvantageBatch("batch-1", "traj-1", []float64{0.1}, []float64{1})
	if err := b.ValidateSchema(); err != nil {
		t.Fatalf("expected schema-valid batch, got %v", err)
	}
}

func TestValidateSchemaCheckpoint(t *testing.T) {
	c := NewCheckpointRecord("ckpt-1", "ppo", "v1", 1, 1)
	if err := c.ValidateSchema(); err != nil {
		t.Fatalf("expected schema-valid checkpoint, got %v", err)
	}
}
