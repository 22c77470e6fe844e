// Package iteration implements the stop-decision state machine invoked
// once per agent iteration, including the guardrail violation protocol
// for BLOCKED verdicts.
//
// A session is single-threaded through its own iteration loop: one
// agent, one iteration at a time. Isolation between concurrent sessions
// comes from each session owning its counters and changed-file set, not
// from locking.
package iteration

import (
	"github.com/warden-ai/warden/pkg/verdict"
)

// Session is the per-task transient state the controller consults.
type Session struct {
	Project   string
	TaskID    string
	Agent     string
	AgentType string
	SessionID string

	changed    []string
	changedSet map[string]struct{}
	iterations int
	verdict    *verdict.Verdict
	completion string
	aborted    bool
}

// NewSession creates the state for one agent session.
func NewSession(project, taskID, agent, agentType string) *Session {
	return &Session{
		Project:    project,
		TaskID:     taskID,
		Agent:      agent,
		AgentType:  agentType,
		SessionID:  taskID + "/" + agent,
		changedSet: make(map[string]struct{}),
	}
}

// RecordChange notes a file edited this session. Duplicate paths are
// recorded once, in first-seen order.
func (s *Session) RecordChange(path string) {
	if _, seen := s.changedSet[path]; seen {
		return
	}
	s.changedSet[path] = struct{}{}
	s.changed = append(s.changed, path)
}

// ChangedFiles returns the files edited this session in first-seen order.
func (s *Session) ChangedFiles() []string {
	out := make([]string, len(s.changed))
	copy(out, s.changed)
	return out
}

// SetVerdict stores the verdict for the current iteration.
func (s *Session) SetVerdict(v verdict.Verdict) { s.verdict = &v }

// ClearVerdict drops the stored verdict so the next stop attempt
// re-verifies. Called by the host after each new edit.
func (s *Session) ClearVerdict() { s.verdict = nil }

// Verdict returns the stored verdict, nil when none is available yet.
func (s *Session) Verdict() *verdict.Verdict { return s.verdict }

// SetCompletionSignal records an agent-supplied completion marker. It is
// echoed in ALLOW messages but never trusted on its own.
func (s *Session) SetCompletionSignal(signal string) { s.completion = signal }

// CompletionSignal returns the recorded completion marker.
func (s *Session) CompletionSignal() string { return s.completion }

// Iterations returns the number of stop attempts made so far.
func (s *Session) Iterations() int { return s.iterations }

// Aborted reports whether the guardrail protocol terminated the session.
func (s *Session) Aborted() bool { return s.aborted }
