package iteration

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/warden-ai/warden/pkg/audit"
	"github.com/warden-ai/warden/pkg/config"
	"github.com/warden-ai/warden/pkg/escalation"
	"github.com/warden-ai/warden/pkg/observability"
	"github.com/warden-ai/warden/pkg/verdict"
)

// Outcome is the result of one stop attempt.
type Outcome string

const (
	// OutcomeAllow stops the iteration loop: the change is acceptable.
	OutcomeAllow Outcome = "ALLOW"
	// OutcomeBlock sends the agent back for another iteration.
	OutcomeBlock Outcome = "BLOCK"
	// OutcomeAskHuman stops the loop and hands control to a human.
	OutcomeAskHuman Outcome = "ASK_HUMAN"
	// OutcomeAbort terminates the whole session immediately. Distinct
	// from OutcomeAskHuman: nothing further runs for this session.
	OutcomeAbort Outcome = "ABORT"
	// OutcomeAwaitChoice suspends the stop attempt on a pending human
	// guardrail choice; the host resolves it via ResolveGuardrail.
	OutcomeAwaitChoice Outcome = "AWAIT_HUMAN_CHOICE"
)

// StopDecision is the transient result of one stop attempt. Its
// occurrence is recorded as a decision entry; the value itself is not
// persisted.
type StopDecision struct {
	Outcome      Outcome
	RequireHuman bool
	Message      string
	Verdict      *verdict.Verdict

	// Pending is set only with OutcomeAwaitChoice, when the session runs
	// interactively and a guardrail violation needs a human choice.
	Pending *GuardrailViolation
}

// Controller decides on every iteration whether an agent may stop, must
// keep iterating, or must hand control to a human. One controller can
// serve many sessions; all per-session state lives in the Session.
type Controller struct {
	cfg         *config.Config
	engine      verdict.Engine
	reverter    Reverter
	trail       *audit.Trail
	escalations *escalation.Manager
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewController wires the controller to its collaborators. The trail and
// escalation manager are required. The engine and reverter are external
// collaborators; a nil engine makes every verification fail open and a
// nil reverter makes every revert report total failure.
func NewController(cfg *config.Config, engine verdict.Engine, reverter Reverter, trail *audit.Trail, escalations *escalation.Manager) *Controller {
	return &Controller{
		cfg:         cfg,
		engine:      engine,
		reverter:    reverter,
		trail:       trail,
		escalations: escalations,
		logger:      slog.Default(),
	}
}

// WithLogger overrides the structured logger.
func (c *Controller) WithLogger(l *slog.Logger) *Controller {
	if l != nil {
		c.logger = l
	}
	return c
}

// WithMetrics attaches telemetry counters.
func (c *Controller) WithMetrics(m *observability.Metrics) *Controller {
	c.metrics = m
	return c
}

// Decide evaluates one stop attempt. The checks run in fixed order:
// changed files, iteration budget, verdict availability, then the branch
// on verdict kind. Verification failures fail open with a warning so a
// broken collaborator can never wedge a session.
func (c *Controller) Decide(ctx context.Context, s *Session) (*StopDecision, error) {
	if len(s.changed) == 0 {
		return c.record(ctx, s, &StopDecision{
			Outcome: OutcomeBlock,
			Message: "no changes detected; nothing to verify",
		})
	}

	s.iterations++
	if _, err := c.trail.LogIteration(s.TaskID, s.Agent, s.iterations, "stop attempt"); err != nil {
		return nil, err
	}

	budget := c.cfg.IterationBudget(s.AgentType, s.Agent)
	if s.iterations >= budget {
		c.escalateBudget(ctx, s, budget)
		return c.record(ctx, s, &StopDecision{
			Outcome:      OutcomeAskHuman,
			RequireHuman: true,
			Message:      fmt.Sprintf("iteration budget exhausted (%d/%d)", s.iterations, budget),
		})
	}

	v := s.Verdict()
	if v == nil {
		fresh, err := c.verify(ctx, s)
		if err != nil {
			c.logger.Warn("iteration: verification unavailable, failing open",
				"task", s.TaskID, "agent", s.Agent, "error", err)
			return c.record(ctx, s, &StopDecision{
				Outcome: OutcomeAllow,
				Message: "verification unavailable; allowing with warning: " + err.Error(),
			})
		}
		s.SetVerdict(fresh)
		v = s.Verdict()
		if _, err := c.trail.LogVerdict(s.TaskID, s.Agent, *v); err != nil {
			return nil, err
		}
	}

	switch v.Kind {
	case verdict.KindPass:
		msg := "verification passed"
		if sig := s.CompletionSignal(); sig != "" {
			msg = fmt.Sprintf("verification passed; completion signal %q already verified", sig)
		}
		return c.record(ctx, s, &StopDecision{Outcome: OutcomeAllow, Message: msg, Verdict: v})

	case verdict.KindBlocked:
		return c.guardrail(ctx, s, *v)

	case verdict.KindFail:
		if v.SafeToMerge && !v.RegressionDetected {
			return c.record(ctx, s, &StopDecision{
				Outcome: OutcomeAllow,
				Message: "only pre-existing failures remain: " + v.Summary,
				Verdict: v,
			})
		}
		return c.record(ctx, s, &StopDecision{
			Outcome: OutcomeBlock,
			Message: "verification failed, keep iterating: " + v.String(),
			Verdict: v,
		})

	default:
		return nil, fmt.Errorf("iteration: unknown verdict kind %q", v.Kind)
	}
}

// verify invokes the external engine under the configured deadline.
func (c *Controller) verify(ctx context.Context, s *Session) (verdict.Verdict, error) {
	if c.engine == nil {
		return verdict.Verdict{}, fmt.Errorf("no verification engine configured")
	}
	vctx, cancel := context.WithTimeout(ctx, c.cfg.Iteration.VerifyTimeout.Std())
	defer cancel()
	return c.engine.Verify(vctx, verdict.Request{
		Project:      s.Project,
		ChangedFiles: s.ChangedFiles(),
		SessionID:    s.SessionID,
	})
}

func (c *Controller) escalateBudget(ctx context.Context, s *Session, budget int) {
	e := c.escalations.EscalateBlocked(s.Agent, s.TaskID,
		fmt.Sprintf("iteration budget of %d exhausted without a passing verdict", budget),
		map[string]any{"iterations": s.iterations, "budget": budget})
	c.metrics.EscalationCreated(ctx, string(e.Type))
}

// record writes the terminal stop decision to the trail. Every terminal
// StopDecision corresponds to exactly one decision entry.
func (c *Controller) record(ctx context.Context, s *Session, d *StopDecision) (*StopDecision, error) {
	if d.Outcome == OutcomeAskHuman || d.Outcome == OutcomeAbort {
		d.RequireHuman = true
	}

	decisionType := audit.DecisionVerification
	if d.RequireHuman {
		decisionType = audit.DecisionHumanInteraction
	}
	if d.Outcome == OutcomeAbort {
		decisionType = audit.DecisionSessionLifecycle
	}

	meta := map[string]any{"outcome": string(d.Outcome)}
	if d.Verdict != nil {
		meta["verdict_kind"] = string(d.Verdict.Kind)
	}
	if _, err := c.trail.LogDecision(audit.Record{
		Type:      decisionType,
		Decision:  "stop_" + strings.ToLower(string(d.Outcome)),
		Reason:    d.Message,
		TaskID:    s.TaskID,
		Agent:     s.Agent,
		Iteration: s.iterations,
		Metadata:  meta,
	}); err != nil {
		return nil, err
	}
	c.metrics.DecisionLogged(ctx, string(decisionType))
	return d, nil
}
