package iteration

import (
	"context"
	"fmt"

	"github.com/warden-ai/warden/pkg/audit"
	"github.com/warden-ai/warden/pkg/config"
	"github.com/warden-ai/warden/pkg/verdict"
)

// GuardrailChoice is a human (or policy) resolution for a violation.
type GuardrailChoice string

const (
	ChoiceRevert   GuardrailChoice = "revert"
	ChoiceOverride GuardrailChoice = "override"
	ChoiceAbort    GuardrailChoice = "abort"
)

// GuardrailViolation describes a BLOCKED verdict awaiting a human choice.
type GuardrailViolation struct {
	TaskID       string
	Agent        string
	Summary      string
	ChangedFiles []string
	Verdict      verdict.Verdict
}

// guardrail runs the violation protocol for a BLOCKED verdict. Resolution
// modes in priority order: non-interactive auto-revert, a fixed
// autonomous policy, then an interactive suspension the host resolves
// via ResolveGuardrail. The interactive path never blocks a goroutine on
// human input.
func (c *Controller) guardrail(ctx context.Context, s *Session, v verdict.Verdict) (*StopDecision, error) {
	c.metrics.GuardrailViolation(ctx)

	if _, err := c.trail.LogDecision(audit.Record{
		Type:      audit.DecisionHumanInteraction,
		Decision:  "guardrail_violation",
		Reason:    v.Summary,
		TaskID:    s.TaskID,
		Agent:     s.Agent,
		Iteration: s.iterations,
		Metadata:  map[string]any{"changed_files": s.ChangedFiles()},
	}); err != nil {
		return nil, err
	}

	if c.cfg.Iteration.NonInteractive {
		return c.resolve(ctx, s, v, ChoiceRevert, "non-interactive mode")
	}
	if policy := c.cfg.Iteration.GuardrailPolicy; policy != config.PolicyUnset {
		return c.resolve(ctx, s, v, GuardrailChoice(policy), "autonomous policy")
	}

	return &StopDecision{
		Outcome:      OutcomeAwaitChoice,
		RequireHuman: true,
		Message:      "guardrail violation: " + v.Summary,
		Verdict:      &v,
		Pending: &GuardrailViolation{
			TaskID:       s.TaskID,
			Agent:        s.Agent,
			Summary:      v.Summary,
			ChangedFiles: s.ChangedFiles(),
			Verdict:      v,
		},
	}, nil
}

// ResolveGuardrail applies a human choice to a pending violation. Hosts
// call it after obtaining the choice however they like (console prompt,
// UI dialog, message queue).
func (c *Controller) ResolveGuardrail(ctx context.Context, s *Session, choice GuardrailChoice) (*StopDecision, error) {
	v := s.Verdict()
	if v == nil || v.Kind != verdict.KindBlocked {
		return nil, fmt.Errorf("iteration: no pending guardrail violation for task %s", s.TaskID)
	}
	return c.resolve(ctx, s, *v, choice, "human choice")
}

func (c *Controller) resolve(ctx context.Context, s *Session, v verdict.Verdict, choice GuardrailChoice, via string) (*StopDecision, error) {
	switch choice {
	case ChoiceRevert:
		res := c.revert(ctx, s)
		e := c.escalations.EscalateGuardrail(s.Agent, s.TaskID,
			fmt.Sprintf("guardrail violation (%s): %s", via, v.Summary),
			map[string]any{
				"resolution":     "revert",
				"reverted_files": res.Reverted,
				"failed_files":   res.Failed,
			})
		c.metrics.EscalationCreated(ctx, string(e.Type))

		msg := fmt.Sprintf("guardrail violation: auto-reverted %d file(s) (%s)", len(res.Reverted), via)
		if !res.Success {
			msg = fmt.Sprintf("%s; %d file(s) failed to revert", msg, len(res.Failed))
		}
		return c.record(ctx, s, &StopDecision{
			Outcome:      OutcomeAskHuman,
			RequireHuman: true,
			Message:      msg,
			Verdict:      &v,
		})

	case ChoiceOverride:
		if _, err := c.trail.LogDecision(audit.Record{
			Type:      audit.DecisionHumanInteraction,
			Decision:  "guardrail_override",
			Reason:    fmt.Sprintf("override (%s): proceeding despite %s", via, v.Summary),
			TaskID:    s.TaskID,
			Agent:     s.Agent,
			Iteration: s.iterations,
		}); err != nil {
			return nil, err
		}
		s.ClearVerdict()
		return c.record(ctx, s, &StopDecision{
			Outcome: OutcomeBlock,
			Message: "guardrail overridden; continue iterating with warning recorded",
			Verdict: &v,
		})

	case ChoiceAbort:
		s.aborted = true
		e := c.escalations.EscalateGuardrail(s.Agent, s.TaskID,
			fmt.Sprintf("session aborted on guardrail violation (%s): %s", via, v.Summary),
			map[string]any{"resolution": "abort"})
		c.metrics.EscalationCreated(ctx, string(e.Type))

		// The final entry lands before the session unwinds, and the
		// task's parent scope is closed so the trail has no dangling
		// open parent.
		d, err := c.record(ctx, s, &StopDecision{
			Outcome:      OutcomeAbort,
			RequireHuman: true,
			Message:      "session aborted on guardrail violation: " + v.Summary,
			Verdict:      &v,
		})
		c.trail.PopParent(s.TaskID)
		return d, err

	default:
		return nil, fmt.Errorf("iteration: unknown guardrail choice %q", choice)
	}
}

// revert restores the session's changed files best-effort under the
// configured deadline. Each file restores independently; failures are
// collected, logged, and counted, never fatal.
func (c *Controller) revert(ctx context.Context, s *Session) RevertResult {
	files := s.ChangedFiles()

	var res RevertResult
	if c.reverter == nil {
		for _, f := range files {
			res.Failed = append(res.Failed, RevertFailure{Path: f, Err: "no reverter configured"})
		}
	} else {
		rctx, cancel := context.WithTimeout(ctx, c.cfg.Iteration.RevertTimeout.Std())
		defer cancel()
		res = c.reverter.Revert(rctx, s.Project, files)
	}
	res.Success = len(res.Failed) == 0

	c.metrics.RevertsFailed(ctx, len(res.Failed))
	if _, err := c.trail.LogDecision(audit.Record{
		Type:      audit.DecisionSessionLifecycle,
		Decision:  "revert",
		Reason:    fmt.Sprintf("reverted %d/%d changed file(s)", len(res.Reverted), len(files)),
		TaskID:    s.TaskID,
		Agent:     s.Agent,
		Iteration: s.iterations,
		Metadata: map[string]any{
			"reverted": res.Reverted,
			"failed":   res.Failed,
			"success":  res.Success,
		},
	}); err != nil {
		c.logger.Warn("iteration: revert audit write failed", "task", s.TaskID, "error", err)
	}
	return res
}
