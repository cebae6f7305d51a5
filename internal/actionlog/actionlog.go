// Package actionlog writes the append-only audit trail.
//
// Every pipeline transition records exactly one entry. Writes are
// best-effort: a failed insert is logged with slog.Warn and swallowed so
// the business transition it describes is never blocked by auditing.
package actionlog

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry statuses.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusPending = "pending"
)

// Entry is one audit record.
type Entry struct {
	EntityType string
	EntityID   string
	Action     string
	Status     string
	TestMode   bool
	Detail     map[string]any
}

// Logger is the append-only sink consumed by every pipeline component.
type Logger interface {
	Append(ctx context.Context, e Entry)
}

// ─── PostgreSQL sink ─────────────────────────────────────────────────────────

// PGLogger persists entries into the action_logs table.
type PGLogger struct {
	pool *pgxpool.Pool
}

// NewPGLogger returns a Logger backed by action_logs.
func NewPGLogger(pool *pgxpool.Pool) *PGLogger {
	return &PGLogger{pool: pool}
}

// Append inserts one entry. Errors are reported via slog and discarded.
func (l *PGLogger) Append(ctx context.Context, e Entry) {
	detail := e.Detail
	if detail == nil {
		detail = map[string]any{}
	}
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		slog.Warn("actionlog marshal failed", "action", e.Action, "err", err)
		detailJSON = []byte("{}")
	}

	_, err = l.pool.Exec(ctx,
		`INSERT INTO action_logs (entity_type, entity_id, action, status, test_mode, detail)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb)`,
		e.EntityType, e.EntityID, e.Action, e.Status, e.TestMode, string(detailJSON),
	)
	if err != nil {
		slog.Warn("actionlog append failed",
			"entity", e.EntityType, "entityId", e.EntityID, "action", e.Action, "err", err)
	}
}

// ─── In-memory sink (tests) ──────────────────────────────────────────────────

// Memory records entries in memory. Test helper.
type Memory struct {
	Entries []Entry
}

// Append stores the entry.
func (m *Memory) Append(_ context.Context, e Entry) {
	m.Entries = append(m.Entries, e)
}

var (
	_ Logger = (*PGLogger)(nil)
	_ Logger = (*Memory)(nil)
)
