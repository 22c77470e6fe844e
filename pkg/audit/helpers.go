package audit

import (
	"github.com/warden-ai/warden/pkg/verdict"
)

// Convenience helpers wrapping LogDecision with parent-stack push/pop so
// task scopes nest correctly, including when different tasks log
// concurrently through the same trail.

// LogTaskStarted records the opening entry of a task scope and pushes it
// as the parent for subsequent entries of that task.
func (t *Trail) LogTaskStarted(taskID, agent, description string) (string, error) {
	id, err := t.LogDecision(Record{
		Type:     DecisionTaskLifecycle,
		Decision: "task_started",
		Reason:   description,
		TaskID:   taskID,
		Agent:    agent,
	})
	if err != nil {
		return "", err
	}
	t.PushParent(taskID, id)
	return id, nil
}

// LogTaskCompleted records the closing entry of a task scope and pops
// the task's parent stack.
func (t *Trail) LogTaskCompleted(taskID, agent, outcome string) (string, error) {
	id, err := t.LogDecision(Record{
		Type:     DecisionTaskLifecycle,
		Decision: "task_completed",
		Reason:   outcome,
		TaskID:   taskID,
		Agent:    agent,
	})
	t.PopParent(taskID)
	return id, err
}

// LogIteration records one agent iteration under the current task scope.
func (t *Trail) LogIteration(taskID, agent string, iteration int, reason string) (string, error) {
	return t.LogDecision(Record{
		Type:      DecisionAgentRouting,
		Decision:  "iteration",
		Reason:    reason,
		TaskID:    taskID,
		Agent:     agent,
		Iteration: iteration,
	})
}

// LogVerdict records a verification outcome under the current task scope.
func (t *Trail) LogVerdict(taskID, agent string, v verdict.Verdict) (string, error) {
	return t.LogDecision(Record{
		Type:     DecisionVerification,
		Decision: "verdict_" + string(v.Kind),
		Reason:   v.String(),
		TaskID:   taskID,
		Agent:    agent,
		Metadata: map[string]any{
			"kind":                string(v.Kind),
			"safe_to_merge":       v.SafeToMerge,
			"regression_detected": v.RegressionDetected,
		},
	})
}
