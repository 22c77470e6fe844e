package audit

import "strings"

const redactedPlaceholder = "[REDACTED]"

// Redactor scrubs configured sensitive metadata keys before an entry is
// checksummed and written. Matching is case-insensitive on key
// substrings, so "customer_email" and "Email" are both caught by the
// "email" rule.
type Redactor struct {
	enabled bool
	keys    []string
}

// NewRedactor builds a redactor for the given sensitive-key list.
func NewRedactor(enabled bool, keys []string) *Redactor {
	lowered := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			lowered = append(lowered, k)
		}
	}
	return &Redactor{enabled: enabled, keys: lowered}
}

// Redact returns a copy of metadata with sensitive values replaced.
// The input map is never mutated. Nested maps are scrubbed recursively.
func (r *Redactor) Redact(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		if r.enabled && r.sensitive(k) {
			out[k] = redactedPlaceholder
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = r.Redact(nested)
			continue
		}
		out[k] = v
	}
	return out
}

func (r *Redactor) sensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range r.keys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
