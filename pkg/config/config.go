// Package config holds the governance configuration surface: iteration
// budgets, per-team scope limits, redaction policy, and the guardrail
// resolution mode. The numeric defaults are operational heuristics, not
// business rules; deployments override them per project via YAML or
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML configs can use "2m30s" syntax.
type Duration time.Duration

// UnmarshalYAML accepts either a Go duration string or integer nanoseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("config: invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("config: invalid duration node: %w", err)
	}
	*d = Duration(n)
	return nil
}

// MarshalYAML renders the duration in Go string syntax.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// GuardrailPolicy is the fixed autonomous resolution for guardrail
// violations when no human can be prompted.
type GuardrailPolicy string

const (
	PolicyUnset    GuardrailPolicy = ""
	PolicyRevert   GuardrailPolicy = "revert"
	PolicyOverride GuardrailPolicy = "override"
	PolicyAbort    GuardrailPolicy = "abort"
)

// Config is the root governance configuration.
type Config struct {
	Audit     AuditConfig     `yaml:"audit"`
	Iteration IterationConfig `yaml:"iteration"`
	Scope     ScopeConfig     `yaml:"scope"`
	Notify    NotifyConfig    `yaml:"notify"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// AuditConfig controls the decision trail.
type AuditConfig struct {
	Dir       string          `yaml:"dir"`
	Redaction RedactionConfig `yaml:"redaction"`
}

// RedactionConfig controls metadata scrubbing on audit writes.
type RedactionConfig struct {
	Enabled bool     `yaml:"enabled"`
	Keys    []string `yaml:"keys"`
}

// IterationConfig controls the stop-decision state machine.
type IterationConfig struct {
	DefaultBudget   int             `yaml:"default_budget"`
	CategoryBudgets map[string]int  `yaml:"category_budgets"`
	AgentBudgets    map[string]int  `yaml:"agent_budgets"`
	VerifyTimeout   Duration        `yaml:"verify_timeout"`
	RevertTimeout   Duration        `yaml:"revert_timeout"`
	NonInteractive  bool            `yaml:"non_interactive"`
	GuardrailPolicy GuardrailPolicy `yaml:"guardrail_policy"`
}

// TeamRule maps an agent-name substring to a team. Rules are matched in
// order; the first hit wins.
type TeamRule struct {
	Substring string `yaml:"substring"`
	Team      string `yaml:"team"`
}

// ScopeConfig controls per-team task-size limits.
type ScopeConfig struct {
	TeamRules    []TeamRule     `yaml:"team_rules"`
	DefaultTeam  string         `yaml:"default_team"`
	TeamLimits   map[string]int `yaml:"team_limits"`
	DefaultLimit int            `yaml:"default_limit"`
}

// NotifyConfig configures downstream escalation sinks.
type NotifyConfig struct {
	RedisAddr    string `yaml:"redis_addr"`
	RedisChannel string `yaml:"redis_channel"`
}

// TelemetryConfig configures the optional OTLP metric export.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// Default returns the built-in configuration. QA-style agents get a
// tighter scope limit and a shorter iteration budget than build agents.
func Default() *Config {
	return &Config{
		Audit: AuditConfig{
			Dir: ".warden/audit",
			Redaction: RedactionConfig{
				Enabled: true,
				Keys: []string{
					"email", "phone", "ssn", "address", "name", "patient_id",
				},
			},
		},
		Iteration: IterationConfig{
			DefaultBudget: 5,
			CategoryBudgets: map[string]int{
				"qa":     3,
				"review": 3,
				"build":  5,
			},
			AgentBudgets:    map[string]int{},
			VerifyTimeout:   Duration(2 * time.Minute),
			RevertTimeout:   Duration(30 * time.Second),
			NonInteractive:  false,
			GuardrailPolicy: PolicyUnset,
		},
		Scope: ScopeConfig{
			TeamRules: []TeamRule{
				{Substring: "qa", Team: "qa"},
				{Substring: "test", Team: "qa"},
				{Substring: "review", Team: "qa"},
				{Substring: "build", Team: "build"},
				{Substring: "feature", Team: "build"},
			},
			DefaultTeam: "build",
			TeamLimits: map[string]int{
				"qa":    5,
				"build": 20,
			},
			DefaultLimit: 10,
		},
		Notify: NotifyConfig{
			RedisChannel: "warden.escalations",
		},
		Telemetry: TelemetryConfig{
			Endpoint: "localhost:4317",
		},
	}
}

// Load reads a YAML file over the defaults and applies environment
// overrides. A missing path returns defaults plus env.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv returns defaults plus environment overrides.
func FromEnv() (*Config, error) {
	return Load("")
}

func (c *Config) applyEnv() {
	if v := os.Getenv("WARDEN_AUDIT_DIR"); v != "" {
		c.Audit.Dir = v
	}
	if v := os.Getenv("WARDEN_NON_INTERACTIVE"); v != "" {
		c.Iteration.NonInteractive = v == "true" || v == "1"
	}
	if v := os.Getenv("WARDEN_GUARDRAIL_POLICY"); v != "" {
		c.Iteration.GuardrailPolicy = GuardrailPolicy(v)
	}
	if v := os.Getenv("WARDEN_DEFAULT_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Iteration.DefaultBudget = n
		}
	}
	if v := os.Getenv("WARDEN_REDIS_ADDR"); v != "" {
		c.Notify.RedisAddr = v
	}
	if v := os.Getenv("WARDEN_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true
	}
}

// Validate rejects configurations the controller cannot honor.
func (c *Config) Validate() error {
	switch c.Iteration.GuardrailPolicy {
	case PolicyUnset, PolicyRevert, PolicyOverride, PolicyAbort:
	default:
		return fmt.Errorf("config: unknown guardrail policy %q", c.Iteration.GuardrailPolicy)
	}
	if c.Iteration.DefaultBudget <= 0 {
		return fmt.Errorf("config: default iteration budget must be positive")
	}
	if c.Scope.DefaultLimit <= 0 {
		return fmt.Errorf("config: default scope limit must be positive")
	}
	if c.Audit.Dir == "" {
		return fmt.Errorf("config: audit dir must be set")
	}
	return nil
}

// IterationBudget resolves the budget for an agent: per-agent override,
// then agent-type category, then the default.
func (c *Config) IterationBudget(agentType, agent string) int {
	if n, ok := c.Iteration.AgentBudgets[agent]; ok && n > 0 {
		return n
	}
	if n, ok := c.Iteration.CategoryBudgets[agentType]; ok && n > 0 {
		return n
	}
	return c.Iteration.DefaultBudget
}

// TeamFor infers the team from the agent name using the ordered rules.
func (s ScopeConfig) TeamFor(agent string) string {
	lower := strings.ToLower(agent)
	for _, r := range s.TeamRules {
		if r.Substring != "" && strings.Contains(lower, strings.ToLower(r.Substring)) {
			return r.Team
		}
	}
	return s.DefaultTeam
}

// LimitFor returns the file-count scope limit for a team.
func (s ScopeConfig) LimitFor(team string) int {
	if n, ok := s.TeamLimits[team]; ok && n > 0 {
		return n
	}
	return s.DefaultLimit
}
