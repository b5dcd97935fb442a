// Package auditlog persists the append-only Transaction/action ledger
// (§4.6 point 4): every action's terminal status is written as one row,
// independent of the in-memory per-service metrics.Registry, so a
// crashed orchestrator process still leaves behind a durable record of
// what it attempted and how it concluded.
package auditlog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deployforge/engine/pkg/events"
)

// Ledger appends rows describing one Transaction's committed and
// rolled-back actions.
type Ledger struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and returns a Ledger; callers must Close it.
func Open(ctx context.Context, dsn string) (*Ledger, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening audit log pool: %w", err)
	}
	return &Ledger{pool: pool}, nil
}

// NewFromPool wraps an already-constructed pool, letting callers share
// connection configuration with other components.
func NewFromPool(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

func (l *Ledger) Close() {
	l.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS transaction_audit_log (
	id              BIGSERIAL PRIMARY KEY,
	execution_id    TEXT NOT NULL,
	organization_id TEXT NOT NULL,
	cluster_id      TEXT NOT NULL,
	action_name     TEXT NOT NULL,
	status          TEXT NOT NULL,
	recorded_at     TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// EnsureSchema creates the ledger table if it does not already exist.
// Migrations beyond this single table are out of scope (§1).
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("ensuring audit log schema: %w", err)
	}
	return nil
}

// Record appends one row describing actionName's status within the
// commit() identified by details.
func (l *Ledger) Record(ctx context.Context, details events.EventDetails, actionName, status string) error {
	_, err := l.pool.Exec(ctx,
		`INSERT INTO transaction_audit_log (execution_id, organization_id, cluster_id, action_name, status) VALUES ($1,$2,$3,$4,$5)`,
		string(details.ExecutionID), details.OrganizationID.String(), details.ClusterID.String(), actionName, status,
	)
	if err != nil {
		return fmt.Errorf("recording audit log entry: %w", err)
	}
	return nil
}
