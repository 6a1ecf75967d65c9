package rl

import (
	"strings"
	"testing"
)

func TestRlPayloadBundleValidate(t *testing.T) {
	tr := NewEpisodeTrajectory("traj-1", []TrajectoryStep{step(0, 1), step(1, 2)}, 0.9)
	adv := NewAdvantageBatch("batch-1", "traj-1", []float64{0.1, 0.2}, []float64{1, 2})
	ckpt := NewCheckpointRecord("ckpt-1", "ppo", "v1", 2, 1)

	bundle := RlPayloadBundle{Trajectory: *tr, Advantages: *adv, Checkpoint: *ckpt}
	if err := bundle.Validate(); err != nil {
		t.Fatalf("expected valid bundle, got %v", err)
	}
}

func TestRlPayloadBundleRejectsCheckpointMismatch(t *testing.T) {
	tr := NewEpisodeTrajectory("traj-1", []TrajectoryStep{step(0, 1), step(1, 2)}, 0.9)
	adv := NewAdvantageBatch("batch-1", "traj-1", []float64{0.1, 0.2}, []float64{1, 2})
	ckpt := NewCheckpointRecord("ckpt-1", "ppo", "v1", 1, 1)

	bundle := RlPayloadBundle{Trajectory: *tr, Advantages: *adv, Checkpoint: *ckpt}
	err := bundle.Validate()
	if err == nil || !strings.Contains(err.Error(), "checkpoint.global_step") || !strings.Contains(err.Error(), "trajectory.steps") {
		t.Fatalf("expected checkpoint.global_step/trajectory.steps mismatch error, got %v", err)
	}
}

func TestRlPayloadBundleRejectsTrajectoryIDMismatch(t *testing.T) {
	tr := NewEpisodeTrajectory("traj-1", []TrajectoryStep{step(0, 1)}, 0.9)
	adv := NewAdvantageBatch("batch-1", "traj-2", []float64{0.1}, []float64{1})
	ckpt := NewCheckpointRecord("ckpt-1", "ppo", "v1", 1, 1)

	bundle := RlPayloadBundle{Trajectory: *tr, Advantages: *adv, Checkpoint: *ckpt}
	if err := bundle.Validate(); err == nil {
		t.Fatal("expected trajectory_id mismatch error")
	}
}

func TestRlPayloadBundleRejectsStepCountMismatch(t *testing.T) {
	tr := NewEpisodeTrajectory("traj-1", []TrajectoryStep{step(0, 1), step(1, 2)}, 0.9)
	adv := NewAdvantageBatch("batch-1", "traj-1", []float64{0.1}, []float64{1})
	ckpt := NewCheckpointRecord("ckpt-1", "ppo", "v1", 2, 1)

	bundle := RlPayloadBundle{Trajectory: *tr, Advantages: *adv, Checkpoint: *ckpt}
	if err := bundle.Validate(); err == nil {
		t.Fatal("expected step-count mismatch error")
	}
}
