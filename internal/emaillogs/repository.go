package emaillogs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harbor-academy/backend/internal/apperr"
	"github.com/harbor-academy/backend/internal/models"
)

const columns = `id, event_id, ticket_id, email_type, recipient_email, subject, status, sent_at, error_message, created_at`

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scan(row pgx.Row) (*models.EmailLog, error) {
	var el models.EmailLog
	var subject, errMsg *string
	if err := row.Scan(&el.ID, &el.EventID, &el.TicketID, &el.EmailType, &el.RecipientEmail, &subject, &el.Status, &el.SentAt, &errMsg, &el.CreatedAt); err != nil {
		return nil, err
	}
	if subject != nil {
		el.Subject = *subject
	}
	if errMsg != nil {
		el.ErrorMessage = *errMsg
	}
	return &el, nil
}

// Create inserts a pending log row and fills ID and CreatedAt.
func (r *Repository) Create(ctx context.Context, el *models.EmailLog) error {
	if el.Status == "" {
		el.Status = models.EmailLogStatusPending
	}
	const q = `INSERT INTO email_logs (event_id, ticket_id, email_type, recipient_email, subject, status)
		VALUES ($1, $2, $3, $4, NULLIF($5,''), $6)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, el.EventID, el.TicketID, el.EmailType, el.RecipientEmail, el.Subject, el.Status).
		Scan(&el.ID, &el.CreatedAt)
}

// GetByID returns a log row.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.EmailLog, error) {
	el, err := scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM email_logs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("email log not found")
	}
	return el, err
}

// MarkSent records a successful delivery.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE email_logs SET status = $2, sent_at = $3, error_message = NULL WHERE id = $1`,
		id, models.EmailLogStatusSent, at)
	return err
}

// MarkFailed records the last delivery error.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx, `UPDATE email_logs SET status = $2, error_message = $3 WHERE id = $1`,
		id, models.EmailLogStatusFailed, reason)
	return err
}

// ListByEvent returns email logs for an event, newest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID string) ([]*models.EmailLog, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM email_logs WHERE event_id = $1 ORDER BY created_at DESC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.EmailLog{}
	for rows.Next() {
		el, err := scan(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, el)
	}
	return list, rows.Err()
}
