// Package audit implements the Decision Audit Trail: an append-only,
// date-partitioned, checksummed log of every decision the governance core
// makes, organized as parent/child trees per task.
//
// Storage model: one JSONL file per (project, date) under a base
// directory. Each line is a self-describing record carrying its own
// checksum, so a partition can be verified offline without any other
// state. Entries are immutable once written; nothing is ever edited or
// deleted.
package audit

import (
	"time"

	"github.com/warden-ai/warden/pkg/canonicalize"
)

// DecisionType categorizes a decision entry.
type DecisionType string

const (
	DecisionTaskLifecycle    DecisionType = "task_lifecycle"
	DecisionAgentRouting     DecisionType = "agent_routing"
	DecisionVerification     DecisionType = "verification_outcome"
	DecisionKnowledge        DecisionType = "knowledge_consultation"
	DecisionResourceCost     DecisionType = "resource_cost"
	DecisionHumanInteraction DecisionType = "human_interaction"
	DecisionSessionLifecycle DecisionType = "session_lifecycle"
	DecisionCustom           DecisionType = "custom"
)

// DecisionEntry is one immutable record in the trail.
//
// ID is monotonic, time-ordered, and unique per process. ParentID links
// the entry into a per-task decision tree. Checksum is the SHA-256 digest
// of the JCS-canonicalized entry with the checksum field itself excluded.
type DecisionEntry struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Type       DecisionType   `json:"decision_type"`
	Project    string         `json:"project"`
	TaskID     string         `json:"task_id,omitempty"`
	Decision   string         `json:"decision"`
	Reason     string         `json:"reason"`
	ParentID   string         `json:"parent_id,omitempty"`
	Agent      string         `json:"agent,omitempty"`
	Iteration  int            `json:"iteration,omitempty"`
	CostUSD    float64        `json:"cost_usd,omitempty"`
	TokensUsed int64          `json:"tokens_used,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Checksum   string         `json:"checksum"`
}

// computeChecksum hashes every field except the checksum itself, in a
// fixed canonical representation. Timestamps are normalized to UTC
// RFC 3339 with nanoseconds so a serialization round-trip recomputes the
// same digest.
func computeChecksum(e *DecisionEntry) (string, error) {
	hashable := map[string]any{
		"id":            e.ID,
		"timestamp":     e.Timestamp.UTC().Format(time.RFC3339Nano),
		"decision_type": string(e.Type),
		"project":       e.Project,
		"task_id":       e.TaskID,
		"decision":      e.Decision,
		"reason":        e.Reason,
		"parent_id":     e.ParentID,
		"agent":         e.Agent,
		"iteration":     e.Iteration,
		"cost_usd":      e.CostUSD,
		"tokens_used":   e.TokensUsed,
		"metadata":      e.Metadata,
	}
	return canonicalize.CanonicalHash(hashable)
}

// VerifyChecksum recomputes the entry digest and reports whether it
// matches the stored checksum.
func (e *DecisionEntry) VerifyChecksum() (bool, error) {
	computed, err := computeChecksum(e)
	if err != nil {
		return false, err
	}
	return computed == e.Checksum, nil
}
