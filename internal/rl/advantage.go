package rl

import (
	"encoding/json"
	"fmt"
	"time"
)

// AdvantageBatch is a versioned, schema-validated batch of per-step
// advantage estimates and returns for one trajectory, as consumed by a
// policy-gradient update.
type AdvantageBatch struct {
	SchemaVersion int            `json:"schema_version"`
	BatchID       string         `json:"batch_id"`
	TrajectoryID  string         `json:"trajectory_id"`
	Advantages    []float64      `json:"advantages"`
	Returns       []float64      `json:"returns"`
	ValueTargets  []float64      `json:"value_targets,omitempty"`
	Normalized    bool           `json:"normalized"`
	CreatedAt     time.Time      `json:"created_at"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// NewAdvantageBatch constructs a batch stamped with the current schema
// version and creation time.
func NewAdvantageBatch(batchID, trajectoryID string, advantages, returns []float64) *AdvantageBatch {
	return &AdvantageBatch{
		SchemaVersion: CurrentSchemaVersion,
		BatchID:       batchID,
		TrajectoryID:  trajectoryID,
		Advantages:    advantages,
		Returns:       returns,
		CreatedAt:     nowFunc(),
	}
}

// UnmarshalJSON migrates legacy payloads (absent schema_version) to the
// current version.
func (b *AdvantageBatch) UnmarshalJSON(data []byte) error {
	type alias AdvantageBatch
	aux := struct {
		*alias
	}{alias: (*alias)(b)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	b.SchemaVersion = normalizeVersion(b.SchemaVersion)
	return nil
}

// Validate checks the batch's own invariants: supported schema,
// len(advantages) == len(returns), value_targets (if present) the same
// length as advantages, and every float finite.
func (b *AdvantageBatch) Validate() error {
	const typ = "AdvantageBatch"
	if !isSupportedVersion(normalizeVersion(b.SchemaVersion)) {
		return unsupportedVersion(typ, b.SchemaVersion)
	}
	if b.BatchID == "" {
		return invalidField(typ, "batch_id", "must not be empty")
	}
	if b.TrajectoryID == "" {
		return invalidField(typ, "trajectory_id", "must not be empty")
	}
	if len(b.Advantages) == 0 {
		return invalidField(typ, "advantages", "must not be empty")
	}
	if len(b.Advantages) != len(b.Returns) {
		return invalidField(typ, "returns", fmt.Sprintf("len(advantages)=%d != len(returns)=%d", len(b.Advantages), len(b.Returns)))
	}
	if len(b.ValueTargets) > 0 && len(b.ValueTargets) != len(b.Advantages) {
		return invalidField(typ, "value_targets", fmt.Sprintf("len(value_targets)=%d != len(advantages)=%d", len(b.ValueTargets), len(b.Advantages)))
	}
	if !allFinite(b.Advantages...) {
		return invalidField(typ, "advantages", "all values must be finite")
	}
	if !allFinite(b.Returns...) {
		return invalidField(typ, "returns", "all values must be finite")
	}
	if !allFinite(b.ValueTargets...) {
		return invalidField(typ, "value_targets", "all values must be finite")
	}
	return nil
}
