// Package escalation is the single source of truth for anything that
// requires human attention. It tracks structured escalation records
// through a forward-only status lifecycle and routes each new escalation
// to registered callbacks.
package escalation

import (
	"errors"
	"time"
)

// Type categorizes why human attention is needed.
type Type string

const (
	TypeScope           Type = "scope"
	TypePolicyConflict  Type = "policy_conflict"
	TypeLowConfidence   Type = "low_confidence"
	TypeStrategicDomain Type = "strategic_domain"
	TypeBlocked         Type = "blocked"
	TypeGuardrail       Type = "guardrail"
)

// Severity ranks an escalation for routing.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityUrgent   Severity = "urgent"
	SeverityCritical Severity = "critical"
)

// Status is the lifecycle state. Transitions only move forward:
// pending → acknowledged → resolved/dismissed. Closed escalations stay
// queryable for history; nothing is ever deleted.
type Status string

const (
	StatusPending      Status = "pending"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
	StatusDismissed    Status = "dismissed"
)

// Closed reports whether the status is terminal.
func (s Status) Closed() bool {
	return s == StatusResolved || s == StatusDismissed
}

var (
	// ErrNotFound is returned for operations on unknown escalation ids.
	ErrNotFound = errors.New("escalation not found")
	// ErrClosed is returned when a mutation targets a resolved or
	// dismissed escalation.
	ErrClosed = errors.New("escalation already closed")
)

// Escalation is one structured record requesting human attention.
type Escalation struct {
	ID          string         `json:"id"`
	Type        Type           `json:"type"`
	Severity    Severity       `json:"severity"`
	Status      Status         `json:"status"`
	SourceAgent string         `json:"source_agent"`
	SourceTask  string         `json:"source_task,omitempty"`
	Description string         `json:"description"`
	Details     map[string]any `json:"details,omitempty"`

	// Scope escalations.
	EstimatedFiles int `json:"estimated_files,omitempty"`
	ScopeLimit     int `json:"scope_limit,omitempty"`

	// Policy-conflict escalations.
	ConflictingPolicies []string `json:"conflicting_policies,omitempty"`
	ProposedAction      string   `json:"proposed_action,omitempty"`

	// Resolution.
	ResolvedBy string `json:"resolved_by,omitempty"`
	Resolution string `json:"resolution,omitempty"`
	Notes      string `json:"notes,omitempty"`

	CreatedAt      time.Time  `json:"created_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// Stats summarizes the manager's records.
type Stats struct {
	Total    int              `json:"total"`
	Pending  int              `json:"pending"`
	ByType   map[Type]int     `json:"by_type"`
	ByStatus map[Status]int   `json:"by_status"`
}

// Callback is invoked synchronously on the creating goroutine for every
// new escalation of its registered type. Long-running work must be
// handed off by the callback itself.
type Callback func(e *Escalation) error
