// Package verdict models the outcome of one verification run as a closed
// tagged union. A Verdict is produced exclusively by the verification
// engine and is immutable once constructed; every downstream stop
// decision branches on its Kind.
package verdict

import (
	"context"
	"fmt"
)

// Kind discriminates the verdict union.
type Kind string

const (
	KindPass    Kind = "PASS"
	KindFail    Kind = "FAIL"
	KindBlocked Kind = "BLOCKED"
)

// Verdict is the typed outcome of a single verification run.
//
// SafeToMerge and RegressionDetected are meaningful only when Kind is
// KindFail: SafeToMerge means every remaining failure pre-existed the
// change; RegressionDetected means the change broke something that
// previously worked.
type Verdict struct {
	Kind               Kind   `json:"kind"`
	SafeToMerge        bool   `json:"safe_to_merge,omitempty"`
	RegressionDetected bool   `json:"regression_detected,omitempty"`
	Summary            string `json:"summary"`
}

// Pass constructs a passing verdict.
func Pass(summary string) Verdict {
	return Verdict{Kind: KindPass, Summary: summary}
}

// Fail constructs a failing verdict.
func Fail(summary string, safeToMerge, regression bool) Verdict {
	return Verdict{
		Kind:               KindFail,
		SafeToMerge:        safeToMerge,
		RegressionDetected: regression,
		Summary:            summary,
	}
}

// Blocked constructs a guardrail-violation verdict.
func Blocked(summary string) Verdict {
	return Verdict{Kind: KindBlocked, Summary: summary}
}

// String renders the verdict for stop-decision messages.
func (v Verdict) String() string {
	switch v.Kind {
	case KindFail:
		qualifier := "new failures"
		if v.RegressionDetected {
			qualifier = "regression detected"
		} else if v.SafeToMerge {
			qualifier = "pre-existing failures only"
		}
		return fmt.Sprintf("%s (%s): %s", v.Kind, qualifier, v.Summary)
	default:
		if v.Summary == "" {
			return string(v.Kind)
		}
		return fmt.Sprintf("%s: %s", v.Kind, v.Summary)
	}
}

// Request carries the inputs for one verification run.
type Request struct {
	Project      string         `json:"project"`
	ChangedFiles []string       `json:"changed_files"`
	SessionID    string         `json:"session_id"`
	Context      map[string]any `json:"context,omitempty"`
	Baseline     *Verdict       `json:"baseline,omitempty"`
}

// Engine is the external verification collaborator. Verify must be safe
// to call repeatedly with the same inputs; callers bound it with a
// context deadline and fail open if it cannot run.
type Engine interface {
	Verify(ctx context.Context, req Request) (Verdict, error)
}
