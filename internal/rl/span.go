package rl

import (
	"time"
)

// Reward is a single named scalar reward signal emitted for a rollout.
// Unlike TrajectoryStep.Reward (one float folded into the RL update), a
// Reward is reported standalone — multiple named rewards (e.g. "task_success",
// "format_penalty") can be attached to the same rollout for later shaping.
type Reward struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// NewReward constructs a named scalar reward.
func NewReward(name string, value float64) Reward {
	return Reward{Name: name, Value: value}
}

// Validate checks that the reward is named and finite.
func (r Reward) Validate() error {
	const typ = "Reward"
	if r.Name == "" {
		return invalidField(typ, "name", "must not be empty")
	}
	if !allFinite(r.Value) {
		return invalidField(typ, "value", "must be finite")
	}
	return nil
}

// Triplet is a prompt/response/reward tuple extracted from a trajectory or
// training span, the shape a reward model or preference-ranking pipeline
// consumes directly rather than walking full trajectory steps.
type Triplet struct {
	Prompt   any      `json:"prompt"`
	Response any      `json:"response"`
	Reward   *float64 `json:"reward,omitempty"`
}

// Validate checks that the reward, when present, is finite.
func (t Triplet) Validate() error {
	if t.Reward != nil && !allFinite(*t.Reward) {
		return invalidField("Triplet", "reward", "must be finite")
	}
	return nil
}

// SpanEvent is a point-in-time annotation attached to a TrainingSpan (a tool
// call starting, a retry, a provider fallback).
type SpanEvent struct {
	Name       string         `json:"name"`
	Timestamp  time.Time      `json:"timestamp"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// TrainingSpan is a structured execution span captured during rollout
// execution, the unit a trace-based RL observability pipeline consumes
// (distinct from TrajectoryStep, which is the unit the policy update consumes).
type TrainingSpan struct {
	RolloutID  string         `json:"rollout_id,omitempty"`
	AttemptID  string         `json:"attempt_id,omitempty"`
	Sequence   int            `json:"sequence_id"`
	TraceID    string         `json:"trace_id"`
	SpanID     string         `json:"span_id"`
	ParentID   string         `json:"parent_id,omitempty"`
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Events     []SpanEvent    `json:"events,omitempty"`
	StartTime  time.Time      `json:"start_time"`
	EndTime    *time.Time     `json:"end_time,omitempty"`
}

// NewTrainingSpan starts a span with the current timestamp.
func NewTrainingSpan(traceID, spanID, parentID, name string, sequence int) *TrainingSpan {
	return &TrainingSpan{
		Sequence:  sequence,
		TraceID:   traceID,
		SpanID:    spanID,
		ParentID:  parentID,
		Name:      name,
		StartTime: nowFunc(),
	}
}

// End closes the span at the current time.
func (s *TrainingSpan) End() {
	now := nowFunc()
	s.EndTime = &now
}

// AddEvent appends a timestamped event to the span.
func (s *TrainingSpan) AddEvent(name string, attributes map[string]any) {
	s.Events = append(s.Events, SpanEvent{Name: name, Timestamp: nowFunc(), Attributes: attributes})
}

// Validate checks that identifying fields are present.
func (s *TrainingSpan) Validate() error {
	const typ = "TrainingSpan"
	if s.TraceID == "" {
		return invalidField(typ, "trace_id", "must not be empty")
	}
	if s.SpanID == "" {
		return invalidField(typ, "span_id", "must not be empty")
	}
	if s.Name == "" {
		return invalidField(typ, "name", "must not be empty")
	}
	return nil
}

// ResourcesUpdate is an immutable, version-tracked snapshot of external
// resource state (tool configuration, extension manifests, environment
// variables) visible to a rollout at a point in time. Only one snapshot per
// resources_id is ever marked IsLatest.
type ResourcesUpdate struct {
	ResourcesID string         `json:"resources_id"`
	Version     int64          `json:"version"`
	Resources   map[string]any `json:"resources"`
	CreatedAt   time.Time      `json:"created_time"`
	IsLatest    bool           `json:"is_latest"`
}

// NewResourcesUpdate constructs a resources snapshot stamped with the
// current time.
func NewResourcesUpdate(resourcesID string, version int64, resources map[string]any) *ResourcesUpdate {
	return &ResourcesUpdate{
		ResourcesID: resourcesID,
		Version:     version,
		Resources:   resources,
		CreatedAt:   nowFunc(),
		IsLatest:    true,
	}
}

// Validate checks that the snapshot is identified and non-negative-versioned.
func (r *ResourcesUpdate) Validate() error {
	const typ = "ResourcesUpdate"
	if r.ResourcesID == "" {
		return invalidField(typ, "resources_id", "must not be empty")
	}
	if r.Version < 0 {
		return invalidField(typ, "version", "must not be negative")
	}
	return nil
}

// Supersede returns a new snapshot with an incremented version that
// supersedes r as the latest; r itself is returned with IsLatest cleared.
func (r *ResourcesUpdate) Supersede(resources map[string]any) *ResourcesUpdate {
	r.IsLatest = false
	return NewResourcesUpdate(r.ResourcesID, r.Version+1, resources)
}
