package escalation

import "fmt"

// ScopeChecker pre-screens task size against per-team limits. It is the
// only expected caller of Manager.EscalateScope, keeping the threshold
// check and the record creation atomic from the caller's point of view.
type ScopeChecker struct {
	mgr *Manager
}

// NewScopeChecker wraps a manager.
func NewScopeChecker(mgr *Manager) *ScopeChecker {
	return &ScopeChecker{mgr: mgr}
}

// CheckScope returns true with no side effect when estimatedFiles is
// within the agent team's limit; otherwise it creates a scope escalation
// and returns false.
func (c *ScopeChecker) CheckScope(agent, taskID string, estimatedFiles int, fileList []string) bool {
	team := c.mgr.scope.TeamFor(agent)
	limit := c.mgr.scope.LimitFor(team)
	if estimatedFiles <= limit {
		return true
	}

	details := map[string]any{"team": team}
	if len(fileList) > 0 {
		details["files"] = fileList
	}
	c.mgr.EscalateScope(agent, taskID, estimatedFiles,
		fmt.Sprintf("estimated %d files exceeds %s team limit of %d", estimatedFiles, team, limit),
		details)
	return false
}
