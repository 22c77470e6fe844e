package iteration

import "context"

// RevertFailure describes one file that could not be restored.
type RevertFailure struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

// RevertResult reports a best-effort revert. Each file is restored
// independently; Success is true only when no file failed.
type RevertResult struct {
	Reverted []string        `json:"reverted"`
	Failed   []RevertFailure `json:"failed,omitempty"`
	Success  bool            `json:"success"`
}

// Reverter is the external revert primitive: restore each listed file of
// a project to its last-known-good state. Implementations must attempt
// every file and report the ones that failed rather than stopping at the
// first error.
type Reverter interface {
	Revert(ctx context.Context, project string, files []string) RevertResult
}
