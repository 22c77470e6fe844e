package iteration

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warden-ai/warden/pkg/verdict"
)

func TestRecordChangeDeduplicates(t *testing.T) {
	s := NewSession("demo", "T-1", "builder-1", "build")

	s.RecordChange("a.go")
	s.RecordChange("b.go")
	s.RecordChange("a.go")

	assert.Equal(t, []string{"a.go", "b.go"}, s.ChangedFiles(), "first-seen order, no duplicates")
}

func TestChangedFilesIsACopy(t *testing.T) {
	s := NewSession("demo", "T-1", "builder-1", "build")
	s.RecordChange("a.go")

	files := s.ChangedFiles()
	files[0] = "mutated.go"
	assert.Equal(t, []string{"a.go"}, s.ChangedFiles())
}

func TestVerdictLifecycle(t *testing.T) {
	s := NewSession("demo", "T-1", "builder-1", "build")
	assert.Nil(t, s.Verdict())

	s.SetVerdict(verdict.Pass("green"))
	v := s.Verdict()
	assert.NotNil(t, v)
	assert.Equal(t, verdict.KindPass, v.Kind)

	s.ClearVerdict()
	assert.Nil(t, s.Verdict())
}

func TestCompletionSignal(t *testing.T) {
	s := NewSession("demo", "T-1", "builder-1", "build")
	assert.Empty(t, s.CompletionSignal())

	s.SetCompletionSignal("TASK_DONE")
	assert.Equal(t, "TASK_DONE", s.CompletionSignal())
}
