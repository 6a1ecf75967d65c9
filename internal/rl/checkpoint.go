package rl

import (
	"encoding/json"
	"fmt"
	"time"
)

// ParentCheckpointKey is the metadata key carrying a checkpoint's parent id,
// per the spec's "parent linkage is via metadata[parent_checkpoint_id]".
const ParentCheckpointKey = "parent_checkpoint_id"

// CheckpointRecord is a versioned snapshot of training progress.
type CheckpointRecord struct {
	SchemaVersion  int            `json:"schema_version"`
	CheckpointID   string         `json:"checkpoint_id"`
	Algorithm      string         `json:"algorithm"`
	PolicyVersion  string         `json:"policy_version"`
	GlobalStep     int64          `json:"global_step"`
	EpisodeCount   int64          `json:"episode_count"`
	MeanReward     *float64       `json:"mean_reward,omitempty"`
	ArtifactURI    string         `json:"artifact_uri,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// NewCheckpointRecord constructs a record stamped with the current schema
// version and creation time.
func NewCheckpointRecord(checkpointID, algorithm, policyVersion string, globalStep, episodeCount int64) *CheckpointRecord {
	return &CheckpointRecord{
		SchemaVersion: CurrentSchemaVersion,
		CheckpointID:  checkpointID,
		Algorithm:     algorithm,
		PolicyVersion: policyVersion,
		GlobalStep:    globalStep,
		EpisodeCount:  episodeCount,
		CreatedAt:     nowFunc(),
	}
}

// WithParent records the given checkpoint id as this record's parent,
// mirroring the metadata-linkage contract rather than a dedicated field.
func (c *CheckpointRecord) WithParent(parentID string) *CheckpointRecord {
	if c.Metadata == nil {
		c.Metadata = make(map[string]any, 1)
	}
	c.Metadata[ParentCheckpointKey] = parentID
	return c
}

// ParentID returns the linked parent checkpoint id, if any.
func (c *CheckpointRecord) ParentID() (string, bool) {
	if c.Metadata == nil {
		return "", false
	}
	v, ok := c.Metadata[ParentCheckpointKey]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// UnmarshalJSON migrates legacy payloads (absent schema_version) to the
// current version.
func (c *CheckpointRecord) UnmarshalJSON(data []byte) error {
	type alias CheckpointRecord
	aux := struct {
		*alias
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.SchemaVersion = normalizeVersion(c.SchemaVersion)
	return nil
}

// Validate checks the record's own invariants: supported schema, a
// non-empty algorithm and policy version, non-negative counters, and a
// finite mean reward if present.
func (c *CheckpointRecord) Validate() error {
	const typ = "CheckpointRecord"
	if !isSupportedVersion(normalizeVersion(c.SchemaVersion)) {
		return unsupportedVersion(typ, c.SchemaVersion)
	}
	if c.CheckpointID == "" {
		return invalidField(typ, "checkpoint_id", "must not be empty")
	}
	if c.Algorithm == "" {
		return invalidField(typ, "algorithm", "must not be empty")
	}
	if c.PolicyVersion == "" {
		return invalidField(typ, "policy_version", "must not be empty")
	}
	if c.GlobalStep < 0 {
		return invalidField(typ, "global_step", "must be non-negative")
	}
	if c.EpisodeCount < 0 {
		return invalidField(typ, "episode_count", "must be non-negative")
	}
	if c.MeanReward != nil && !allFinite(*c.MeanReward) {
		return invalidField(typ, "mean_reward", "must be finite")
	}
	return nil
}

// ResolveLineage validates every record in records, rejects duplicate ids,
// and follows leafID's parent_checkpoint_id chain back to a root, detecting
// cycles and distinguishing "leaf not found" from "parent not found"
// errors. The returned slice is ordered root-to-leaf.
func ResolveLineage(records []CheckpointRecord, leafID string) ([]string, error) {
	byID := make(map[string]*CheckpointRecord, len(records))
	for i := range records {
		rec := &records[i]
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("checkpoint %q: %w", rec.CheckpointID, err)
		}
		if _, dup := byID[rec.CheckpointID]; dup {
			return nil, fmt.Errorf("duplicate checkpoint id %q", rec.CheckpointID)
		}
		byID[rec.CheckpointID] = rec
	}

	leaf, ok := byID[leafID]
	if !ok {
		return nil, fmt.Errorf("unknown leaf checkpoint %q", leafID)
	}

	visited := make(map[string]struct{})
	var chain []string
	cur := leaf
	for {
		if _, cyc := visited[cur.CheckpointID]; cyc {
			return nil, fmt.Errorf("cycle detected in checkpoint lineage at %q", cur.CheckpointID)
		}
		visited[cur.CheckpointID] = struct{}{}
		chain = append(chain, cur.CheckpointID)

		parentID, hasParent := cur.ParentID()
		if !hasParent {
			break
		}
		parent, ok := byID[parentID]
		if !ok {
			return nil, fmt.Errorf("checkpoint %q: missing parent %q", cur.CheckpointID, parentID)
		}
		cur = parent
	}

	// chain is leaf-to-root; reverse to root-to-leaf.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}
