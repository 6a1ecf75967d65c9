package rl

import (
	"encoding/json"
	"fmt"
	"time"
)

// TrajectoryStep is one (observation, action, reward) transition recorded
// during a rollout. Observation/Action carry provider-shaped JSON payloads
// (a Message, a tool call, free text) rather than a fixed schema, since the
// runtime doesn't prescribe the RL consumer's featurization.
type TrajectoryStep struct {
	StepIndex     int             `json:"step_index"`
	Observation   json.RawMessage `json:"observation"`
	Action        json.RawMessage `json:"action"`
	Reward        float64         `json:"reward"`
	Done          bool            `json:"done"`
	Logprob       *float64        `json:"logprob,omitempty"`
	ValueEstimate *float64        `json:"value_estimate,omitempty"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
}

// EpisodeTrajectory is the versioned, schema-validated record of one
// rollout's step sequence.
type EpisodeTrajectory struct {
	SchemaVersion  int              `json:"schema_version"`
	TrajectoryID   string           `json:"trajectory_id"`
	RolloutID      string           `json:"rollout_id,omitempty"`
	EpisodeID      string           `json:"episode_id,omitempty"`
	Steps          []TrajectoryStep `json:"steps"`
	DiscountFactor float64          `json:"discount_factor"`
	TotalReturn    float64          `json:"total_return"`
	CreatedAt      time.Time        `json:"created_at"`
	Metadata       map[string]any   `json:"metadata,omitempty"`
}

// NewEpisodeTrajectory constructs a trajectory stamped with the current
// schema version and creation time.
func NewEpisodeTrajectory(trajectoryID string, steps []TrajectoryStep, discountFactor float64) *EpisodeTrajectory {
	var total float64
	for _, s := range steps {
		total += s.Reward
	}
	return &EpisodeTrajectory{
		SchemaVersion:  CurrentSchemaVersion,
		TrajectoryID:   trajectoryID,
		Steps:          steps,
		DiscountFactor: discountFactor,
		TotalReturn:    total,
		CreatedAt:      nowFunc(),
	}
}

// UnmarshalJSON migrates legacy payloads (absent schema_version) to the
// current version rather than leaving the zero value, per the schema-version
// policy: "Absent schema_version deserializes to the current version."
func (t *EpisodeTrajectory) UnmarshalJSON(data []byte) error {
	type alias EpisodeTrajectory
	aux := struct {
		*alias
	}{alias: (*alias)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t.SchemaVersion = normalizeVersion(t.SchemaVersion)
	return nil
}

// Validate checks the trajectory's own invariants: supported schema, a
// non-empty step sequence, dense zero-based step indices, a discount factor
// in [0,1], and finite reward/return/logprob/value fields throughout.
func (t *EpisodeTrajectory) Validate() error {
	const typ = "EpisodeTrajectory"
	if !isSupportedVersion(normalizeVersion(t.SchemaVersion)) {
		return unsupportedVersion(typ, t.SchemaVersion)
	}
	if t.TrajectoryID == "" {
		return invalidField(typ, "trajectory_id", "must not be empty")
	}
	if len(t.Steps) == 0 {
		return invalidField(typ, "steps", "must not be empty")
	}
	if t.DiscountFactor < 0 || t.DiscountFactor > 1 {
		return invalidField(typ, "discount_factor", "must be in [0,1]")
	}
	if !allFinite(t.TotalReturn) {
		return invalidField(typ, "total_return", "must be finite")
	}
	for i, step := range t.Steps {
		if step.StepIndex != i {
			return invalidField(typ, "steps", fmt.Sprintf("steps[%d].step_index == %d, want %d", i, step.StepIndex, i))
		}
		vals := []float64{step.Reward}
		if step.Logprob != nil {
			vals = append(vals, *step.Logprob)
		}
		if step.ValueEstimate != nil {
			vals = append(vals, *step.ValueEstimate)
		}
		if !allFinite(vals...) {
			return invalidField(typ, "steps", fmt.Sprintf("steps[%d]: reward/logprob/value_estimate must be finite", i))
		}
	}
	return nil
}
