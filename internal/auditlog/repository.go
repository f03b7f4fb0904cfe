// Package auditlog stores the append-only history of ticket redemption
// attempts.
package auditlog

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harbor-academy/backend/internal/models"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

const columns = `id, ticket_id, event_id, event_title, holder_name, holder_national_id,
	agent_id, agent_name, action, previous_available, new_available, created_at`

// Repository handles ticket_audit_logs persistence. It never updates or
// deletes rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an audit log repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ClampLimit bounds a page size to 1..MaxLimit, defaulting non-positive values.
func ClampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	}
	return n
}

// Append inserts an entry.
func (r *Repository) Append(ctx context.Context, e *models.AuditEntry) error {
	const q = `INSERT INTO ticket_audit_logs (id, ticket_id, event_id, event_title, holder_name, holder_national_id,
		agent_id, agent_name, action, previous_available, new_available, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.pool.Exec(ctx, q, e.ID, e.TicketID, e.EventID, e.EventTitle, e.HolderName, e.HolderNationalID,
		e.AgentID, e.AgentName, string(e.Action), e.PreviousAvailable, e.NewAvailable, e.CreatedAt)
	return err
}

// ListByTicket returns a ticket's history, newest first.
func (r *Repository) ListByTicket(ctx context.Context, ticketID string, limit int) ([]models.AuditEntry, error) {
	return r.query(ctx, `SELECT `+columns+` FROM ticket_audit_logs WHERE ticket_id = $1
		ORDER BY created_at DESC LIMIT $2`, ticketID, ClampLimit(limit))
}

// ListByEvent returns an event's history, newest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID string, limit int) ([]models.AuditEntry, error) {
	return r.query(ctx, `SELECT `+columns+` FROM ticket_audit_logs WHERE event_id = $1
		ORDER BY created_at DESC LIMIT $2`, eventID, ClampLimit(limit))
}

// Recent returns the latest entries across all events.
func (r *Repository) Recent(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	return r.query(ctx, `SELECT `+columns+` FROM ticket_audit_logs ORDER BY created_at DESC LIMIT $1`, ClampLimit(limit))
}

// CountByAction tallies an event's redemption attempts per outcome.
func (r *Repository) CountByAction(ctx context.Context, eventID string) (map[models.RedemptionAction]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT action, COUNT(*) FROM ticket_audit_logs WHERE event_id = $1 GROUP BY action`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[models.RedemptionAction]int{}
	for rows.Next() {
		var action string
		var n int
		if err := rows.Scan(&action, &n); err != nil {
			return nil, err
		}
		out[models.RedemptionAction(action)] = n
	}
	return out, rows.Err()
}

func (r *Repository) query(ctx context.Context, q string, args ...any) ([]models.AuditEntry, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.AuditEntry, error) {
		var e models.AuditEntry
		var action string
		err := row.Scan(&e.ID, &e.TicketID, &e.EventID, &e.EventTitle, &e.HolderName, &e.HolderNationalID,
			&e.AgentID, &e.AgentName, &action, &e.PreviousAvailable, &e.NewAvailable, &e.CreatedAt)
		e.Action = models.RedemptionAction(action)
		return e, err
	})
}
