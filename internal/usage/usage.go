// Package usage implements the supplemented per-session token-usage
// ledger from SPEC_FULL.md §C: a sqlite-backed, append-only record of
// the token counts reported on each turn's response.completed event.
// It is additive telemetry, never a substitute for the JSONL
// transcript, which stays the authoritative record of a session.
package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store owns the sqlite connection backing the usage ledger.
type Store struct {
	db *sql.DB
}

// TurnUsage is one turn's token accounting, recorded as soon as the
// driver observes a response.completed event carrying a usage block.
type TurnUsage struct {
	SessionID    string
	Model        string
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	RecordedAt   time.Time
}

// SessionSummary aggregates every recorded turn for one session.
type SessionSummary struct {
	SessionID    string
	TurnCount    int64
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// ModelAggregate aggregates usage across sessions for one model within
// a time window, the basis for a daily-quota-style report.
type ModelAggregate struct {
	Model        string
	TurnCount    int64
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// Open connects to the sqlite database at path, creating it if absent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open usage store: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Init creates the schema if it does not already exist.
func (s *Store) Init(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS turn_usage (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id TEXT NOT NULL,
  model TEXT NOT NULL,
  input_tokens INTEGER NOT NULL DEFAULT 0,
  output_tokens INTEGER NOT NULL DEFAULT 0,
  total_tokens INTEGER NOT NULL DEFAULT 0,
  recorded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turn_usage_session ON turn_usage(session_id);
CREATE INDEX IF NOT EXISTS idx_turn_usage_recorded_at ON turn_usage(recorded_at);`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// RecordTurn appends one turn's usage. Turns with no usage block should
// not call this; the ledger only ever grows by observed data.
func (s *Store) RecordTurn(ctx context.Context, rec TurnUsage) error {
	if rec.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO turn_usage(session_id, model, input_tokens, output_tokens, total_tokens, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Model, rec.InputTokens, rec.OutputTokens, rec.TotalTokens,
		rec.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// SessionSummary aggregates every turn recorded for sessionID.
func (s *Store) SessionSummary(ctx context.Context, sessionID string) (SessionSummary, error) {
	out := SessionSummary{SessionID: sessionID}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(*), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0), COALESCE(SUM(total_tokens), 0)
		 FROM turn_usage WHERE session_id=?`,
		sessionID,
	)
	if err := row.Scan(&out.TurnCount, &out.InputTokens, &out.OutputTokens, &out.TotalTokens); err != nil {
		return SessionSummary{}, err
	}
	return out, nil
}

// AggregateByModel groups usage recorded in [from, to) by model, the
// shape a daily-quota report would query.
func (s *Store) AggregateByModel(ctx context.Context, from, to time.Time) ([]ModelAggregate, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT model, COUNT(*), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0), COALESCE(SUM(total_tokens), 0)
		 FROM turn_usage
		 WHERE recorded_at >= ? AND recorded_at < ?
		 GROUP BY model ORDER BY model ASC`,
		from.UTC().Format(time.RFC3339Nano), to.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ModelAggregate, 0, 8)
	for rows.Next() {
		var agg ModelAggregate
		if err := rows.Scan(&agg.Model, &agg.TurnCount, &agg.InputTokens, &agg.OutputTokens, &agg.TotalTokens); err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}
