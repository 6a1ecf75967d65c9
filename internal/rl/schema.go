package rl

import (
	"encoding/json"
	"fmt"
	"sync"

	reflectschema "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// payloadSchema lazily reflects a Go struct into a JSON Schema document
// (invopop/jsonschema) and compiles it (santhosh-tekuri/jsonschema) for
// structural validation of trajectory/advantage-batch/checkpoint payloads
// exported to or ingested from an external RL training pipeline, beyond the
// Go-level Validate() invariant checks above.
type payloadSchema struct {
	compiled *jsonschema.Schema
	err      error
}

func newPayloadSchema(name string, v any) *payloadSchema {
	ps := &payloadSchema{}
	reflector := &reflectschema.Reflector{}
	schema := reflector.Reflect(v)
	raw, err := json.Marshal(schema)
	if err != nil {
		ps.err = fmt.Errorf("reflect %s schema: %w", name, err)
		return ps
	}
	compiled, err := jsonschema.CompileString(name+".schema.json", string(raw))
	if err != nil {
		ps.err = fmt.Errorf("compile %s schema: %w", name, err)
		return ps
	}
	ps.compiled = compiled
	return ps
}

var (
	trajectorySchemaOnce sync.Once
	trajectorySchema     *payloadSchema
	advantageSchemaOnce  sync.Once
	advantageSchemaI     *payloadSchema
	checkpointSchemaOnce sync.Once
	checkpointSchemaI    *payloadSchema
)

func trajectoryJSONSchema() *payloadSchema {
	trajectorySchemaOnce.Do(func() {
		trajectorySchema = newPayloadSchema("episode_trajectory", &EpisodeTrajectory{})
	})
	return trajectorySchema
}

func advantageJSONSchema() *payloadSchema {
	advantageSchemaOnce.Do(func() {
		advantageSchemaI = newPayloadSchema("advantage_batch", &AdvantageBatch{})
	})
	return advantageSchemaI
}

func checkpointJSONSchema() *payloadSchema {
	checkpointSchemaOnce.Do(func() {
		checkpointSchemaI = newPayloadSchema("checkpoint_record", &CheckpointRecord{})
	})
	return checkpointSchemaI
}

func validateAgainstSchema(ps *payloadSchema, v any) error {
	if ps.err != nil {
		return ps.err
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return ps.compiled.Validate(decoded)
}

// ValidateSchema checks t against its reflected JSON Schema, in addition to
// the semantic invariants enforced by Validate().
func (t *EpisodeTrajectory) ValidateSchema() error {
	return validateAgainstSchema(trajectoryJSONSchema(), t)
}

// ValidateSchema checks b against its reflected JSON Schema, in addition to
// the semantic invariants enforced by Validate().
func (b *AdvantageBatch) ValidateSchema() error {
	return validateAgainstSchema(advantageJSONSchema(), b)
}

// ValidateSchema checks c against its reflected JSON Schema, in addition to
// the semantic invariants enforced by Validate().
func (c *CheckpointRecord) ValidateSchema() error {
	return validateAgainstSchema(checkpointJSONSchema(), c)
}
