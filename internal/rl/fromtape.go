package rl

import (
	"encoding/json"
	"fmt"

	"github.com/loomrun/loom/internal/agent/tape"
)

// TrajectoryFromTape converts a recorded agent tape into an EpisodeTrajectory:
// each LLM turn plus the tool runs it triggered becomes one trajectory step,
// with the turn's request as the observation and its response (text, tool
// calls, stop reason) as the action. Reward is 1 for a turn whose tool runs
// all succeeded (or that made none), 0 if any tool run in the turn errored —
// a minimal signal a downstream reward model is expected to replace.
func TrajectoryFromTape(t *tape.Tape, trajectoryID string, discountFactor float64) (*EpisodeTrajectory, error) {
	toolRunsByTurn := make(map[int][]tape.ToolRun)
	for _, run := range t.ToolRuns {
		toolRunsByTurn[run.TurnIndex] = append(toolRunsByTurn[run.TurnIndex], run)
	}

	steps := make([]TrajectoryStep, 0, len(t.Turns))
	for i, turn := range t.Turns {
		obs, err := json.Marshal(turn.Request)
		if err != nil {
			return nil, err
		}
		action, err := json.Marshal(struct {
			Text       string `json:"text,omitempty"`
			ToolCalls  any    `json:"tool_calls,omitempty"`
			StopReason string `json:"stop_reason,omitempty"`
		}{Text: turn.Text, ToolCalls: turn.ToolCalls, StopReason: turn.StopReason})
		if err != nil {
			return nil, err
		}

		reward := 1.0
		runs := toolRunsByTurn[turn.Index]
		for _, run := range runs {
			if run.Error != "" || (run.Result != nil && run.Result.IsError) {
				reward = 0
				break
			}
		}

		steps = append(steps, TrajectoryStep{
			StepIndex:   i,
			Observation: obs,
			Action:      action,
			Reward:      reward,
			Done:        i == len(t.Turns)-1,
			Metadata: map[string]any{
				"tool_run_count": len(runs),
			},
		})
	}

	traj := NewEpisodeTrajectory(trajectoryID, steps, discountFactor)
	traj.Metadata = map[string]any{
		"tape_version": t.Version,
		"model":        t.Model,
	}
	return traj, nil
}

// TripletsFromTape extracts one prompt/response/reward Triplet per turn of a
// recorded agent tape, the shape a reward-model or preference pipeline
// consumes directly rather than walking an EpisodeTrajectory's steps.
func TripletsFromTape(t *tape.Tape) []Triplet {
	toolRunsByTurn := make(map[int][]tape.ToolRun)
	for _, run := range t.ToolRuns {
		toolRunsByTurn[run.TurnIndex] = append(toolRunsByTurn[run.TurnIndex], run)
	}

	triplets := make([]Triplet, 0, len(t.Turns))
	for _, turn := range t.Turns {
		reward := 1.0
		for _, run := range toolRunsByTurn[turn.Index] {
			if run.Error != "" || (run.Result != nil && run.Result.IsError) {
				reward = 0
				break
			}
		}
		triplets = append(triplets, Triplet{
			Prompt:   turn.Request,
			Response: turn.Text,
			Reward:   &reward,
		})
	}
	return triplets
}

// SpanFromTurn builds a TrainingSpan covering one tape turn, parented under
// traceID, with one child event per tool run the turn triggered.
func SpanFromTurn(t *tape.Tape, turnIndex int, traceID string) *TrainingSpan {
	turn := t.Turns[turnIndex]
	span := NewTrainingSpan(traceID, fmt.Sprintf("%s-turn-%d", traceID, turn.Index), "", "agent_turn", turnIndex)
	span.Attributes = map[string]any{"stop_reason": turn.StopReason}
	for _, run := range t.ToolRuns {
		if run.TurnIndex != turn.Index {
			continue
		}
		attrs := map[string]any{"tool_name": run.Call.Name}
		if run.Error != "" {
			attrs["error"] = run.Error
		}
		span.AddEvent("tool_run", attrs)
	}
	span.End()
	return span
}
