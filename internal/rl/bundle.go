package rl

import "fmt"

// RlPayloadBundle groups one trajectory with its advantage batch and the
// checkpoint that produced it, enforcing the cross-payload invariants none
// of the three payloads can check alone.
type RlPayloadBundle struct {
	Trajectory EpisodeTrajectory `json:"trajectory"`
	Advantages AdvantageBatch    `json:"advantages"`
	Checkpoint CheckpointRecord  `json:"checkpoint"`
}

// Validate checks each sub-payload's own invariants, then the bundle-level
// rules: trajectory and advantage batch must reference the same trajectory,
// the step count must match the advantage count, and the checkpoint's
// global_step must be at least the number of steps it was trained on.
func (b *RlPayloadBundle) Validate() error {
	if err := b.Trajectory.Validate(); err != nil {
		return err
	}
	if err := b.Advantages.Validate(); err != nil {
		return err
	}
	if err := b.Checkpoint.Validate(); err != nil {
		return err
	}

	if b.Trajectory.TrajectoryID != b.Advantages.TrajectoryID {
		return fmt.Errorf("RlPayloadBundle: trajectory.trajectory_id %q != advantages.trajectory_id %q",
			b.Trajectory.TrajectoryID, b.Advantages.TrajectoryID)
	}
	if len(b.Trajectory.Steps) != len(b.Advantages.Advantages) {
		return fmt.Errorf("RlPayloadBundle: len(trajectory.steps)=%d != len(advantages.advantages)=%d",
			len(b.Trajectory.Steps), len(b.Advantages.Advantages))
	}
	if b.Checkpoint.GlobalStep < int64(len(b.Trajectory.Steps)) {
		return fmt.Errorf("RlPayloadBundle: checkpoint.global_step %d < trajectory.steps %d",
			b.Checkpoint.GlobalStep, len(b.Trajectory.Steps))
	}
	return nil
}
