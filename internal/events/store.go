package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/harbor-academy/backend/internal/models"
)

var (
	// ErrNotReserved is returned by ReserveTickets when the conditional
	// capacity update matched no row (missing, inactive, past or sold out).
	ErrNotReserved = errors.New("tickets not reserved")
	// ErrDuplicateID is returned when a generated event or ticket id collides.
	ErrDuplicateID = errors.New("duplicate id")
)

// Store is the persistence the ticketing engine needs. Implementations must
// make ReserveTickets and RedeemTicket single conditional writes so the check
// and the mutation cannot interleave with a concurrent caller.
type Store interface {
	CreateEvent(ctx context.Context, e *models.Event) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ListEvents(ctx context.Context, activeOnly bool) ([]models.Event, error)
	ListTickets(ctx context.Context, eventID string) ([]models.Ticket, error)

	// ReserveTickets moves quantity from remaining to sold when the event is
	// active, dated on or after notBefore and has enough remaining tickets,
	// and inserts ticket (when non-nil) in the same transaction.
	ReserveTickets(ctx context.Context, eventID string, quantity int, notBefore time.Time, ticket *models.Ticket) (*models.Event, error)

	FindTicket(ctx context.Context, ticketID string) (*models.Ticket, *models.Event, error)

	// RedeemTicket flips available from true to false. It reports false when
	// the ticket was already redeemed.
	RedeemTicket(ctx context.Context, ticketID string, agentID uuid.UUID, at time.Time) (bool, error)

	DeactivateExpired(ctx context.Context, before time.Time) (int64, error)
}

// AuditSink receives one entry per redemption attempt.
type AuditSink interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
}

// Notifier is told about issued tickets. Implementations must not block on
// delivery and must swallow their own failures.
type Notifier interface {
	TicketIssued(ctx context.Context, event *models.Event, ticket *models.Ticket)
}

// Feed kinds pushed to gate dashboards.
const (
	FeedTicketsIssued = "tickets_issued"
	FeedRedemption    = "redemption"
)

// Broadcaster pushes live gate activity to dashboards watching an event.
// Broadcast must not block on slow receivers.
type Broadcaster interface {
	Broadcast(eventID, kind string, payload any)
}
