package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harbor-academy/backend/internal/apperr"
	"github.com/harbor-academy/backend/internal/models"
	"github.com/harbor-academy/backend/pkg/database"
)

const eventColumns = `id, title, description, date, active,
	available_tickets, sold_tickets, remaining_tickets, price_cents, created_by, created_at, updated_at`

const ticketColumns = `t.id, t.event_id, t.user_id, t.holder_name, t.holder_national_id, t.holder_email,
	t.available, t.registered_at, t.redeemed_at, t.redeemed_by`

// Repository handles event and ticket persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func scanEvent(row pgx.Row, e *models.Event) error {
	return row.Scan(&e.ID, &e.Title, &e.Description, &e.Date, &e.Active,
		&e.Tickets.Available, &e.Tickets.Sold, &e.Tickets.Remaining, &e.PriceCents, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
}

func scanTicket(row pgx.Row, t *models.Ticket, extra ...any) error {
	dest := []any{&t.ID, &t.EventID, &t.UserID, &t.Holder.Name, &t.Holder.NationalID, &t.Holder.Email,
		&t.Available, &t.RegisteredAt, &t.RedeemedAt, &t.RedeemedBy}
	return row.Scan(append(dest, extra...)...)
}

// CreateEvent inserts an event.
func (r *Repository) CreateEvent(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (id, title, description, date, active, available_tickets, sold_tickets, remaining_tickets, price_cents, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, e.ID, e.Title, e.Description, e.Date, e.Active,
		e.Tickets.Available, e.Tickets.Sold, e.Tickets.Remaining, e.PriceCents, e.CreatedBy).
		Scan(&e.CreatedAt, &e.UpdatedAt)
	if database.IsUniqueViolation(err) {
		return ErrDuplicateID
	}
	return err
}

// GetEvent returns an event by id.
func (r *Repository) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var e models.Event
	err := scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id), &e)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("event %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListEvents returns events ordered by date, optionally only active ones.
func (r *Repository) ListEvents(ctx context.Context, activeOnly bool) ([]models.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events`
	if activeOnly {
		q += ` WHERE active`
	}
	q += ` ORDER BY date ASC, id ASC`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Event{}
	for rows.Next() {
		var e models.Event
		if err := scanEvent(rows, &e); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// ListTickets returns an event's tickets in issue order.
func (r *Repository) ListTickets(ctx context.Context, eventID string) ([]models.Ticket, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+ticketColumns+` FROM tickets t
		WHERE t.event_id = $1 ORDER BY t.registered_at ASC, t.id ASC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Ticket{}
	for rows.Next() {
		var t models.Ticket
		if err := scanTicket(rows, &t); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// ReserveTickets decrements remaining with a conditional UPDATE so that two
// concurrent buyers can never both take the last seat. The ticket row is
// inserted in the same transaction.
func (r *Repository) ReserveTickets(ctx context.Context, eventID string, quantity int, notBefore time.Time, ticket *models.Ticket) (*models.Event, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const reserve = `UPDATE events
		SET sold_tickets = sold_tickets + $2, remaining_tickets = remaining_tickets - $2, updated_at = NOW()
		WHERE id = $1 AND active AND date >= $3 AND remaining_tickets >= $2
		RETURNING ` + eventColumns
	var e models.Event
	err = scanEvent(tx.QueryRow(ctx, reserve, eventID, quantity, notBefore), &e)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotReserved
	}
	if err != nil {
		return nil, err
	}

	if ticket != nil {
		const insert = `INSERT INTO tickets (id, event_id, user_id, holder_name, holder_national_id, holder_email, available, registered_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		_, err = tx.Exec(ctx, insert, ticket.ID, ticket.EventID, ticket.UserID,
			ticket.Holder.Name, ticket.Holder.NationalID, ticket.Holder.Email, ticket.Available, ticket.RegisteredAt)
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicateID
		}
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &e, nil
}

// FindTicket returns a ticket with its event.
func (r *Repository) FindTicket(ctx context.Context, ticketID string) (*models.Ticket, *models.Event, error) {
	q := `SELECT ` + ticketColumns + `, e.id, e.title, e.description, e.date, e.active,
		e.available_tickets, e.sold_tickets, e.remaining_tickets, e.price_cents, e.created_by, e.created_at, e.updated_at
		FROM tickets t JOIN events e ON e.id = t.event_id WHERE t.id = $1`
	var (
		t models.Ticket
		e models.Event
	)
	err := scanTicket(r.pool.QueryRow(ctx, q, ticketID), &t,
		&e.ID, &e.Title, &e.Description, &e.Date, &e.Active,
		&e.Tickets.Available, &e.Tickets.Sold, &e.Tickets.Remaining, &e.PriceCents, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, apperr.NotFound("ticket %s not found", ticketID)
	}
	if err != nil {
		return nil, nil, err
	}
	return &t, &e, nil
}

// RedeemTicket flips available only if it is still true.
func (r *Repository) RedeemTicket(ctx context.Context, ticketID string, agentID uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE tickets SET available = FALSE, redeemed_at = $2, redeemed_by = $3
		WHERE id = $1 AND available`, ticketID, at, agentID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// DeactivateExpired marks active events dated before the given instant inactive.
func (r *Repository) DeactivateExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE events SET active = FALSE, updated_at = NOW() WHERE active AND date < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
