package escalation

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warden-ai/warden/pkg/audit"
	"github.com/warden-ai/warden/pkg/config"
)

// Manager tracks escalation records and routes new escalations to
// registered callbacks. Safe for concurrent creation from multiple
// sessions; callbacks run synchronously on the creating goroutine.
type Manager struct {
	mu          sync.Mutex
	escalations map[string]*Escalation
	order       []string
	callbacks   map[Type][]Callback
	scope       config.ScopeConfig
	clock       func() time.Time
	trail       *audit.Trail
	logger      *slog.Logger
}

// NewManager creates a manager with the given scope configuration.
func NewManager(scope config.ScopeConfig) *Manager {
	return &Manager{
		escalations: make(map[string]*Escalation),
		callbacks:   make(map[Type][]Callback),
		scope:       scope,
		clock:       time.Now,
		logger:      slog.Default(),
	}
}

// WithClock overrides the clock for deterministic testing.
func (m *Manager) WithClock(clock func() time.Time) *Manager {
	m.clock = clock
	return m
}

// WithTrail attaches a decision trail; every created escalation is then
// recorded as exactly one human-interaction decision entry.
func (m *Manager) WithTrail(t *audit.Trail) *Manager {
	m.trail = t
	return m
}

// WithLogger overrides the structured logger.
func (m *Manager) WithLogger(l *slog.Logger) *Manager {
	if l != nil {
		m.logger = l
	}
	return m
}

// RegisterCallback registers a handler for one escalation type. Multiple
// handlers per type are invoked in registration order.
func (m *Manager) RegisterCallback(t Type, cb Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks[t] = append(m.callbacks[t], cb)
}

// EscalateScope records that a task's estimated file count exceeds the
// team's limit. ScopeChecker is the expected caller; it performs the
// threshold check before creating the record.
func (m *Manager) EscalateScope(agent, taskID string, estimatedFiles int, description string, details map[string]any) *Escalation {
	team := m.scope.TeamFor(agent)
	e := m.create(&Escalation{
		Type:           TypeScope,
		Severity:       SeverityWarning,
		SourceAgent:    agent,
		SourceTask:     taskID,
		Description:    description,
		Details:        details,
		EstimatedFiles: estimatedFiles,
		ScopeLimit:     m.scope.LimitFor(team),
	})
	return e
}

// EscalatePolicyConflict records two or more policies giving
// contradictory guidance.
func (m *Manager) EscalatePolicyConflict(agent, taskID string, conflicting []string, proposed, description string, details map[string]any) *Escalation {
	return m.create(&Escalation{
		Type:                TypePolicyConflict,
		Severity:            SeverityUrgent,
		SourceAgent:         agent,
		SourceTask:          taskID,
		Description:         description,
		Details:             details,
		ConflictingPolicies: conflicting,
		ProposedAction:      proposed,
	})
}

// EscalateLowConfidence records an agent reporting low confidence in its
// own output.
func (m *Manager) EscalateLowConfidence(agent, taskID, description string, details map[string]any) *Escalation {
	return m.create(&Escalation{
		Type:        TypeLowConfidence,
		Severity:    SeverityInfo,
		SourceAgent: agent,
		SourceTask:  taskID,
		Description: description,
		Details:     details,
	})
}

// EscalateStrategic records work entering a strategic domain that needs
// human sign-off.
func (m *Manager) EscalateStrategic(agent, taskID, description string, details map[string]any) *Escalation {
	return m.create(&Escalation{
		Type:        TypeStrategicDomain,
		Severity:    SeverityWarning,
		SourceAgent: agent,
		SourceTask:  taskID,
		Description: description,
		Details:     details,
	})
}

// EscalateBlocked records a task that cannot proceed without a human.
func (m *Manager) EscalateBlocked(agent, taskID, description string, details map[string]any) *Escalation {
	return m.create(&Escalation{
		Type:        TypeBlocked,
		Severity:    SeverityUrgent,
		SourceAgent: agent,
		SourceTask:  taskID,
		Description: description,
		Details:     details,
	})
}

// EscalateGuardrail records a safety guardrail violation.
func (m *Manager) EscalateGuardrail(agent, taskID, description string, details map[string]any) *Escalation {
	return m.create(&Escalation{
		Type:        TypeGuardrail,
		Severity:    SeverityCritical,
		SourceAgent: agent,
		SourceTask:  taskID,
		Description: description,
		Details:     details,
	})
}

// create finalizes the record, stores it, audits it, and fans out to
// callbacks. Callback failures are isolated: every registered handler is
// attempted and the escalation is recorded regardless.
func (m *Manager) create(e *Escalation) *Escalation {
	e.ID = uuid.New().String()
	e.Status = StatusPending
	e.CreatedAt = m.clock().UTC()

	m.mu.Lock()
	m.escalations[e.ID] = e
	m.order = append(m.order, e.ID)
	callbacks := make([]Callback, len(m.callbacks[e.Type]))
	copy(callbacks, m.callbacks[e.Type])
	m.mu.Unlock()

	if m.trail != nil {
		if _, err := m.trail.LogDecision(audit.Record{
			Type:     audit.DecisionHumanInteraction,
			Decision: "escalation_created",
			Reason:   e.Description,
			TaskID:   e.SourceTask,
			Agent:    e.SourceAgent,
			Metadata: map[string]any{
				"escalation_id":   e.ID,
				"escalation_type": string(e.Type),
				"severity":        string(e.Severity),
			},
		}); err != nil {
			m.logger.Warn("escalation: audit write failed", "id", e.ID, "error", err)
		}
	}

	for i, cb := range callbacks {
		m.invoke(i, cb, e)
	}
	return e
}

// invoke runs one callback, recovering panics so a broken handler cannot
// stop subsequent handlers or the creation itself.
func (m *Manager) invoke(i int, cb Callback, e *Escalation) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("escalation: callback panicked",
				"index", i, "type", string(e.Type), "id", e.ID, "panic", fmt.Sprint(r))
		}
	}()
	if err := cb(e); err != nil {
		m.logger.Warn("escalation: callback failed",
			"index", i, "type", string(e.Type), "id", e.ID, "error", err)
	}
}

// Acknowledge moves a pending escalation to acknowledged. Acknowledging
// an already acknowledged record is a no-op; closed records are rejected.
func (m *Manager) Acknowledge(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.escalations[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.Status.Closed() {
		return fmt.Errorf("%w: %s is %s", ErrClosed, id, e.Status)
	}
	if e.Status == StatusAcknowledged {
		return nil
	}
	now := m.clock().UTC()
	e.Status = StatusAcknowledged
	e.AcknowledgedAt = &now
	return nil
}

// Resolve closes an escalation with a resolution.
func (m *Manager) Resolve(id, resolvedBy, resolution, notes string) error {
	return m.close(id, StatusResolved, resolvedBy, resolution, notes)
}

// Dismiss closes an escalation without action.
func (m *Manager) Dismiss(id, dismissedBy, reason string) error {
	return m.close(id, StatusDismissed, dismissedBy, "dismissed", reason)
}

func (m *Manager) close(id string, status Status, by, resolution, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.escalations[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.Status.Closed() {
		return fmt.Errorf("%w: %s is %s", ErrClosed, id, e.Status)
	}
	now := m.clock().UTC()
	e.Status = status
	e.ResolvedBy = by
	e.Resolution = resolution
	e.Notes = notes
	e.ResolvedAt = &now
	return nil
}

// Get returns an escalation by id.
func (m *Manager) Get(id string) (*Escalation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.escalations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}

// Pending returns all open escalations in creation order.
func (m *Manager) Pending() []*Escalation {
	return m.filter(func(e *Escalation) bool { return e.Status == StatusPending })
}

// ByType returns all escalations of one type in creation order.
func (m *Manager) ByType(t Type) []*Escalation {
	return m.filter(func(e *Escalation) bool { return e.Type == t })
}

// ByAgent returns all escalations raised by one agent in creation order.
func (m *Manager) ByAgent(agent string) []*Escalation {
	return m.filter(func(e *Escalation) bool { return e.SourceAgent == agent })
}

func (m *Manager) filter(keep func(*Escalation) bool) []*Escalation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Escalation, 0)
	for _, id := range m.order {
		if e := m.escalations[id]; keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// GetStats summarizes counts by type and status.
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{
		Total:    len(m.order),
		ByType:   make(map[Type]int),
		ByStatus: make(map[Status]int),
	}
	for _, id := range m.order {
		e := m.escalations[id]
		stats.ByType[e.Type]++
		stats.ByStatus[e.Status]++
		if e.Status == StatusPending {
			stats.Pending++
		}
	}
	return stats
}
