package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const partitionDateFormat = "2006-01-02"

// Indexer receives every successfully appended entry. The trail files
// remain the source of truth; an indexer is a query accelerator and its
// failures never fail the append.
type Indexer interface {
	Index(entry *DecisionEntry) error
}

// Handler is called after each successful append.
type Handler func(entry *DecisionEntry)

// Record carries the caller-supplied fields for one decision entry.
type Record struct {
	Type       DecisionType
	Decision   string
	Reason     string
	TaskID     string
	ParentID   string
	Agent      string
	Iteration  int
	CostUSD    float64
	TokensUsed int64
	Metadata   map[string]any
}

// Trail is a durable, ordered, integrity-checked record of decisions for
// one project. Construct one per process or per project and pass it by
// reference; there is no ambient global instance.
//
// Appends serialize on a single mutex; each record is flushed to the
// partition file before LogDecision returns, so a nil error means the
// write is durable.
type Trail struct {
	mu       sync.Mutex
	baseDir  string
	project  string
	redactor *Redactor
	clock    func() time.Time
	seq      uint64
	parents  map[string][]string
	handlers []Handler
	index    Indexer
	logger   *slog.Logger
}

// NewTrail creates a trail rooted at baseDir for the given project.
func NewTrail(baseDir, project string) *Trail {
	return &Trail{
		baseDir:  baseDir,
		project:  project,
		redactor: NewRedactor(false, nil),
		clock:    time.Now,
		parents:  make(map[string][]string),
		logger:   slog.Default(),
	}
}

// WithClock overrides the clock for deterministic testing.
func (t *Trail) WithClock(clock func() time.Time) *Trail {
	t.clock = clock
	return t
}

// WithRedactor sets the metadata redaction policy.
func (t *Trail) WithRedactor(r *Redactor) *Trail {
	if r != nil {
		t.redactor = r
	}
	return t
}

// WithIndex attaches a query index fed on every append.
func (t *Trail) WithIndex(ix Indexer) *Trail {
	t.index = ix
	return t
}

// WithLogger overrides the structured logger.
func (t *Trail) WithLogger(l *slog.Logger) *Trail {
	if l != nil {
		t.logger = l
	}
	return t
}

// AddHandler registers a handler invoked after each append.
func (t *Trail) AddHandler(h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers = append(t.handlers, h)
}

// Project returns the project this trail records.
func (t *Trail) Project() string { return t.project }

// LogDecision redacts, checksums, and durably appends one entry to the
// partition for the current date, returning the generated id.
func (t *Trail) LogDecision(rec Record) (string, error) {
	entry, handlers, err := t.append(rec)
	if err != nil {
		return "", err
	}

	if t.index != nil {
		if ixErr := t.index.Index(entry); ixErr != nil {
			t.logger.Warn("audit: index write failed; trail file is authoritative",
				"id", entry.ID, "error", ixErr)
		}
	}
	for _, h := range handlers {
		h(entry)
	}
	return entry.ID, nil
}

func (t *Trail) append(rec Record) (*DecisionEntry, []Handler, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock().UTC()
	t.seq++
	entry := &DecisionEntry{
		ID:         fmt.Sprintf("dec-%d-%06d", now.UnixNano(), t.seq),
		Timestamp:  now,
		Type:       rec.Type,
		Project:    t.project,
		TaskID:     rec.TaskID,
		Decision:   rec.Decision,
		Reason:     rec.Reason,
		ParentID:   rec.ParentID,
		Agent:      rec.Agent,
		Iteration:  rec.Iteration,
		CostUSD:    rec.CostUSD,
		TokensUsed: rec.TokensUsed,
		Metadata:   t.redactor.Redact(rec.Metadata),
	}
	if entry.Type == "" {
		entry.Type = DecisionCustom
	}
	if entry.ParentID == "" {
		entry.ParentID = t.topParentLocked(rec.TaskID)
	}

	checksum, err := computeChecksum(entry)
	if err != nil {
		return nil, nil, fmt.Errorf("audit: checksum: %w", err)
	}
	entry.Checksum = checksum

	if err := t.writeLocked(entry, now); err != nil {
		return nil, nil, err
	}

	handlers := make([]Handler, len(t.handlers))
	copy(handlers, t.handlers)
	return entry, handlers, nil
}

// writeLocked appends the entry as one JSONL record and flushes it to
// disk before returning. The partition directory is created on first
// write.
func (t *Trail) writeLocked(entry *DecisionEntry, now time.Time) error {
	path := t.partitionPath(now.Format(partitionDateFormat))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("audit: create partition dir: %w", err)
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit: marshal entry: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("audit: open partition: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("audit: append entry: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("audit: sync partition: %w", err)
	}
	return nil
}

func (t *Trail) partitionPath(date string) string {
	return filepath.Join(t.baseDir, t.project, fmt.Sprintf("decisions_%s.jsonl", date))
}

// PushParent pushes an entry id onto the parent stack for a task, so
// subsequent entries for that task link as its children without callers
// passing ParentID explicitly. Stacks are keyed per task; concurrent
// tasks nest independently. The empty task id addresses the trail-wide
// stack.
func (t *Trail) PushParent(taskID, id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.parents[taskID] = append(t.parents[taskID], id)
}

// PopParent pops the parent stack for a task. Popping an empty stack is
// a no-op.
func (t *Trail) PopParent(taskID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	stack := t.parents[taskID]
	if len(stack) == 0 {
		return
	}
	t.parents[taskID] = stack[:len(stack)-1]
}

func (t *Trail) topParentLocked(taskID string) string {
	if stack := t.parents[taskID]; len(stack) > 0 {
		return stack[len(stack)-1]
	}
	if stack := t.parents[""]; len(stack) > 0 {
		return stack[len(stack)-1]
	}
	return ""
}

// DecisionsForTask scans every date partition for entries with the given
// task id, time-ordered.
func (t *Trail) DecisionsForTask(taskID string) ([]*DecisionEntry, error) {
	paths, err := t.partitions()
	if err != nil {
		return nil, err
	}

	var out []*DecisionEntry
	for _, path := range paths {
		entries, err := readPartition(path)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.TaskID == taskID {
				out = append(out, e)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// partitions lists this project's partition files in date order.
func (t *Trail) partitions() ([]string, error) {
	pattern := filepath.Join(t.baseDir, t.project, "decisions_*.jsonl")
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("audit: list partitions: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}
