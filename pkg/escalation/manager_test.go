package escalation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warden-ai/warden/pkg/audit"
	"github.com/warden-ai/warden/pkg/config"
)

func newTestManager() *Manager {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return NewManager(config.Default().Scope).
		WithClock(func() time.Time { return now })
}

func TestCreateAssignsIdentityAndStatus(t *testing.T) {
	m := newTestManager()

	e := m.EscalateBlocked("builder-1", "T-1", "stuck on migration", nil)
	require.NotNil(t, e)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, StatusPending, e.Status)
	assert.Equal(t, TypeBlocked, e.Type)
	assert.Equal(t, SeverityUrgent, e.Severity)
	assert.False(t, e.CreatedAt.IsZero())
	assert.Nil(t, e.AcknowledgedAt)
	assert.Nil(t, e.ResolvedAt)
}

func TestSeverityByType(t *testing.T) {
	m := newTestManager()

	assert.Equal(t, SeverityWarning, m.EscalateScope("builder-1", "T-1", 30, "too big", nil).Severity)
	assert.Equal(t, SeverityUrgent, m.EscalatePolicyConflict("builder-1", "T-1", []string{"a", "b"}, "wait", "conflict", nil).Severity)
	assert.Equal(t, SeverityInfo, m.EscalateLowConfidence("builder-1", "T-1", "unsure", nil).Severity)
	assert.Equal(t, SeverityWarning, m.EscalateStrategic("builder-1", "T-1", "pricing change", nil).Severity)
	assert.Equal(t, SeverityCritical, m.EscalateGuardrail("builder-1", "T-1", "violation", nil).Severity)
}

func TestScopeEscalationCarriesLimit(t *testing.T) {
	m := newTestManager()

	e := m.EscalateScope("qa-agent-1", "T-1", 9, "too big", nil)
	assert.Equal(t, 9, e.EstimatedFiles)
	assert.Equal(t, 5, e.ScopeLimit, "qa team limit from scope config")
}

func TestLifecycleForwardOnly(t *testing.T) {
	m := newTestManager()
	e := m.EscalateBlocked("builder-1", "T-1", "stuck", nil)

	require.NoError(t, m.Acknowledge(e.ID))
	assert.Equal(t, StatusAcknowledged, e.Status)
	require.NotNil(t, e.AcknowledgedAt)

	// Re-acknowledging is a no-op.
	require.NoError(t, m.Acknowledge(e.ID))

	require.NoError(t, m.Resolve(e.ID, "operator", "unblocked manually", "bumped the lock"))
	assert.Equal(t, StatusResolved, e.Status)
	assert.Equal(t, "operator", e.ResolvedBy)
	require.NotNil(t, e.ResolvedAt)

	// Closed records reject every further mutation.
	assert.ErrorIs(t, m.Acknowledge(e.ID), ErrClosed)
	assert.ErrorIs(t, m.Resolve(e.ID, "x", "y", "z"), ErrClosed)
	assert.ErrorIs(t, m.Dismiss(e.ID, "x", "y"), ErrClosed)
}

func TestResolveWithoutAcknowledge(t *testing.T) {
	m := newTestManager()
	e := m.EscalateBlocked("builder-1", "T-1", "stuck", nil)

	require.NoError(t, m.Resolve(e.ID, "operator", "fixed", ""))
	assert.Equal(t, StatusResolved, e.Status)
	assert.Nil(t, e.AcknowledgedAt, "acknowledgement is optional")
}

func TestDismiss(t *testing.T) {
	m := newTestManager()
	e := m.EscalateLowConfidence("builder-1", "T-1", "unsure", nil)

	require.NoError(t, m.Dismiss(e.ID, "operator", "noise"))
	assert.Equal(t, StatusDismissed, e.Status)
	assert.True(t, e.Status.Closed())
	assert.Equal(t, "noise", e.Notes)
}

func TestUnknownID(t *testing.T) {
	m := newTestManager()

	assert.ErrorIs(t, m.Acknowledge("nope"), ErrNotFound)
	assert.ErrorIs(t, m.Resolve("nope", "x", "y", "z"), ErrNotFound)
	assert.ErrorIs(t, m.Dismiss("nope", "x", "y"), ErrNotFound)
	_, err := m.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCallbackFanOut(t *testing.T) {
	m := newTestManager()

	var got []string
	m.RegisterCallback(TypeBlocked, func(e *Escalation) error {
		got = append(got, "first:"+e.ID)
		return nil
	})
	m.RegisterCallback(TypeBlocked, func(e *Escalation) error {
		got = append(got, "second:"+e.ID)
		return nil
	})
	m.RegisterCallback(TypeScope, func(e *Escalation) error {
		got = append(got, "scope")
		return nil
	})

	e := m.EscalateBlocked("builder-1", "T-1", "stuck", nil)
	assert.Equal(t, []string{"first:" + e.ID, "second:" + e.ID}, got,
		"only handlers for the matching type run, in registration order")
}

func TestCallbackPanicIsolated(t *testing.T) {
	m := newTestManager()

	var survived bool
	m.RegisterCallback(TypeGuardrail, func(*Escalation) error {
		panic("handler bug")
	})
	m.RegisterCallback(TypeGuardrail, func(*Escalation) error {
		survived = true
		return errors.New("also failing, also isolated")
	})

	e := m.EscalateGuardrail("builder-1", "T-1", "violation", nil)
	require.NotNil(t, e)
	assert.True(t, survived, "a panicking handler must not stop later handlers")

	// The record exists despite both handlers failing.
	got, err := m.Get(e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
}

func TestQueriesPreserveCreationOrder(t *testing.T) {
	m := newTestManager()

	a := m.EscalateBlocked("builder-1", "T-1", "one", nil)
	b := m.EscalateScope("builder-1", "T-2", 30, "two", nil)
	c := m.EscalateBlocked("qa-agent-1", "T-3", "three", nil)
	require.NoError(t, m.Resolve(b.ID, "op", "done", ""))

	pending := m.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, a.ID, pending[0].ID)
	assert.Equal(t, c.ID, pending[1].ID)

	blocked := m.ByType(TypeBlocked)
	require.Len(t, blocked, 2)
	assert.Equal(t, a.ID, blocked[0].ID)

	byAgent := m.ByAgent("builder-1")
	require.Len(t, byAgent, 2)
	assert.Equal(t, a.ID, byAgent[0].ID)
	assert.Equal(t, b.ID, byAgent[1].ID)
}

func TestGetStats(t *testing.T) {
	m := newTestManager()

	m.EscalateBlocked("builder-1", "T-1", "one", nil)
	e := m.EscalateScope("builder-1", "T-2", 30, "two", nil)
	require.NoError(t, m.Resolve(e.ID, "op", "done", ""))

	stats := m.GetStats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.ByType[TypeBlocked])
	assert.Equal(t, 1, stats.ByType[TypeScope])
	assert.Equal(t, 1, stats.ByStatus[StatusPending])
	assert.Equal(t, 1, stats.ByStatus[StatusResolved])
}

func TestCreatedEscalationsAreAudited(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	trail := audit.NewTrail(t.TempDir(), "demo").
		WithClock(func() time.Time { return now })
	m := NewManager(config.Default().Scope).
		WithClock(func() time.Time { return now }).
		WithTrail(trail)

	e := m.EscalateBlocked("builder-1", "T-1", "stuck", nil)

	entries, err := trail.DecisionsForTask("T-1")
	require.NoError(t, err)
	require.Len(t, entries, 1, "exactly one decision entry per escalation")
	assert.Equal(t, audit.DecisionHumanInteraction, entries[0].Type)
	assert.Equal(t, "escalation_created", entries[0].Decision)
	assert.Equal(t, e.ID, entries[0].Metadata["escalation_id"])
}
