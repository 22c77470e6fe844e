// Package store provides a SQLite query index over the decision trail.
// The JSONL partition files remain the source of truth; the index only
// accelerates task-scoped and aggregate queries, and an index write
// failure never fails an audit append.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/warden-ai/warden/pkg/audit"

	_ "modernc.org/sqlite"
)

// DecisionIndex stores decision entries in SQLite. It implements
// audit.Indexer, so it can be attached to a trail with WithIndex.
type DecisionIndex struct {
	db *sql.DB
}

// Open creates an index at the given SQLite path (":memory:" for tests)
// and runs migrations.
func Open(path string) (*DecisionIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	return NewDecisionIndex(db)
}

// NewDecisionIndex wraps an existing database handle and migrates it.
func NewDecisionIndex(db *sql.DB) (*DecisionIndex, error) {
	ix := &DecisionIndex{db: db}
	if err := ix.migrate(); err != nil {
		return nil, err
	}
	return ix, nil
}

func (ix *DecisionIndex) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS decisions (
        id TEXT PRIMARY KEY,
        timestamp DATETIME NOT NULL,
        decision_type TEXT NOT NULL,
        project TEXT NOT NULL,
        task_id TEXT,
        decision TEXT NOT NULL,
        reason TEXT,
        parent_id TEXT,
        agent TEXT,
        iteration INTEGER NOT NULL DEFAULT 0,
        cost_usd REAL NOT NULL DEFAULT 0,
        tokens_used INTEGER NOT NULL DEFAULT 0,
        metadata JSON,
        checksum TEXT NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_decisions_task ON decisions(task_id, timestamp);
    CREATE INDEX IF NOT EXISTS idx_decisions_type ON decisions(decision_type);`
	_, err := ix.db.ExecContext(context.Background(), query)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Index inserts one entry. Re-indexing an existing id is a no-op, so
// replaying a partition into the index is idempotent.
func (ix *DecisionIndex) Index(e *audit.DecisionEntry) error {
	metaJSON, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("store: marshal metadata: %w", err)
	}

	query := `INSERT OR IGNORE INTO decisions (
        id, timestamp, decision_type, project, task_id, decision, reason,
        parent_id, agent, iteration, cost_usd, tokens_used, metadata, checksum
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = ix.db.ExecContext(context.Background(), query,
		e.ID, e.Timestamp.UTC().Format(time.RFC3339Nano), string(e.Type), e.Project,
		e.TaskID, e.Decision, e.Reason, e.ParentID, e.Agent, e.Iteration,
		e.CostUSD, e.TokensUsed, string(metaJSON), e.Checksum,
	)
	if err != nil {
		return fmt.Errorf("store: insert decision: %w", err)
	}
	return nil
}

// ForTask returns the indexed entries for a task, time-ordered.
func (ix *DecisionIndex) ForTask(ctx context.Context, taskID string) ([]*audit.DecisionEntry, error) {
	query := `
        SELECT id, timestamp, decision_type, project, task_id, decision, reason,
               parent_id, agent, iteration, cost_usd, tokens_used, metadata, checksum
        FROM decisions
        WHERE task_id = ?
        ORDER BY timestamp, id`
	rows, err := ix.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("store: query task %s: %w", taskID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []*audit.DecisionEntry
	for rows.Next() {
		e, err := scanDecisionRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountByType returns aggregate decision counts grouped by type.
func (ix *DecisionIndex) CountByType(ctx context.Context) (map[audit.DecisionType]int, error) {
	rows, err := ix.db.QueryContext(ctx,
		`SELECT decision_type, COUNT(*) FROM decisions GROUP BY decision_type`)
	if err != nil {
		return nil, fmt.Errorf("store: count by type: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[audit.DecisionType]int)
	for rows.Next() {
		var dt string
		var n int
		if err := rows.Scan(&dt, &n); err != nil {
			return nil, err
		}
		counts[audit.DecisionType(dt)] = n
	}
	return counts, rows.Err()
}

// Close releases the underlying database.
func (ix *DecisionIndex) Close() error {
	return ix.db.Close()
}

func scanDecisionRow(rows *sql.Rows) (*audit.DecisionEntry, error) {
	var (
		id, timestamp, decisionType, project string
		taskID, decision, reason             sql.NullString
		parentID, agent                      sql.NullString
		iteration                            int
		costUSD                              float64
		tokensUsed                           int64
		metaJSON                             sql.NullString
		checksum                             string
	)
	if err := rows.Scan(&id, &timestamp, &decisionType, &project, &taskID,
		&decision, &reason, &parentID, &agent, &iteration, &costUSD,
		&tokensUsed, &metaJSON, &checksum); err != nil {
		return nil, err
	}

	ts, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return nil, fmt.Errorf("store: parse timestamp %q: %w", timestamp, err)
	}

	var meta map[string]any
	if metaJSON.Valid && metaJSON.String != "" && metaJSON.String != "null" {
		if err := json.Unmarshal([]byte(metaJSON.String), &meta); err != nil {
			return nil, fmt.Errorf("store: parse metadata: %w", err)
		}
	}

	return &audit.DecisionEntry{
		ID:         id,
		Timestamp:  ts,
		Type:       audit.DecisionType(decisionType),
		Project:    project,
		TaskID:     taskID.String,
		Decision:   decision.String,
		Reason:     reason.String,
		ParentID:   parentID.String,
		Agent:      agent.String,
		Iteration:  iteration,
		CostUSD:    costUSD,
		TokensUsed: tokensUsed,
		Metadata:   meta,
		Checksum:   checksum,
	}, nil
}
