package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5, cfg.Iteration.DefaultBudget)
	assert.Equal(t, 3, cfg.Iteration.CategoryBudgets["qa"])
	assert.Equal(t, 2*time.Minute, cfg.Iteration.VerifyTimeout.Std())
	assert.Equal(t, 5, cfg.Scope.TeamLimits["qa"])
	assert.Equal(t, 20, cfg.Scope.TeamLimits["build"])
	assert.True(t, cfg.Audit.Redaction.Enabled)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoadYAMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warden.yaml")
	yaml := `
audit:
  dir: /var/lib/warden/audit
iteration:
  default_budget: 8
  verify_timeout: 45s
  guardrail_policy: revert
scope:
  team_limits:
    qa: 7
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/warden/audit", cfg.Audit.Dir)
	assert.Equal(t, 8, cfg.Iteration.DefaultBudget)
	assert.Equal(t, 45*time.Second, cfg.Iteration.VerifyTimeout.Std())
	assert.Equal(t, PolicyRevert, cfg.Iteration.GuardrailPolicy)
	assert.Equal(t, 7, cfg.Scope.TeamLimits["qa"])
	// Untouched sections keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Iteration.RevertTimeout.Std())
	assert.Equal(t, "build", cfg.Scope.DefaultTeam)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WARDEN_AUDIT_DIR", "/tmp/audit-env")
	t.Setenv("WARDEN_DEFAULT_BUDGET", "12")
	t.Setenv("WARDEN_NON_INTERACTIVE", "true")
	t.Setenv("WARDEN_GUARDRAIL_POLICY", "abort")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/audit-env", cfg.Audit.Dir)
	assert.Equal(t, 12, cfg.Iteration.DefaultBudget)
	assert.True(t, cfg.Iteration.NonInteractive)
	assert.Equal(t, PolicyAbort, cfg.Iteration.GuardrailPolicy)
}

func TestValidateRejectsBadPolicy(t *testing.T) {
	cfg := Default()
	cfg.Iteration.GuardrailPolicy = "escalate"
	assert.Error(t, cfg.Validate())
}

func TestIterationBudgetResolution(t *testing.T) {
	cfg := Default()
	cfg.Iteration.AgentBudgets["qa-agent-7"] = 2

	assert.Equal(t, 2, cfg.IterationBudget("qa", "qa-agent-7"), "per-agent override wins")
	assert.Equal(t, 3, cfg.IterationBudget("qa", "qa-agent-1"), "category budget next")
	assert.Equal(t, 5, cfg.IterationBudget("unknown", "mystery"), "default last")
}

func TestTeamFor(t *testing.T) {
	scope := Default().Scope

	assert.Equal(t, "qa", scope.TeamFor("QA-Agent-3"))
	assert.Equal(t, "qa", scope.TeamFor("integration-test-runner"))
	assert.Equal(t, "build", scope.TeamFor("feature-builder"))
	assert.Equal(t, "build", scope.TeamFor("something-else"))
}

func TestLimitFor(t *testing.T) {
	scope := Default().Scope

	assert.Equal(t, 5, scope.LimitFor("qa"))
	assert.Equal(t, 20, scope.LimitFor("build"))
	assert.Equal(t, 10, scope.LimitFor("nonexistent"))
}

func TestDurationYAMLRoundTrip(t *testing.T) {
	d := Duration(90 * time.Second)
	out, err := d.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", out)
}
