// Package notify hands issued tickets and certificates to the background
// worker. Nothing here returns an error to the caller.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harbor-academy/backend/internal/models"
	"github.com/harbor-academy/backend/pkg/queue"
)

const enqueueTimeout = 3 * time.Second

type jobQueue interface {
	EnqueueNotification(ctx context.Context, payload queue.NotificationPayload) error
	EnqueueCertificateArchive(ctx context.Context, payload queue.CertificateArchivePayload) error
}

type emailLogStore interface {
	Create(ctx context.Context, el *models.EmailLog) error
}

// Dispatcher records and enqueues outbound notifications.
type Dispatcher struct {
	queue   jobQueue
	logs    emailLogStore
	baseURL string
	loc     *time.Location
	logger  *zap.Logger
}

// NewDispatcher creates a dispatcher. baseURL prefixes ticket verification links.
func NewDispatcher(q jobQueue, logs emailLogStore, baseURL string, loc *time.Location, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Dispatcher{queue: q, logs: logs, baseURL: strings.TrimRight(baseURL, "/"), loc: loc, logger: logger}
}

// VerifyURL is the public verification link for a ticket.
func (d *Dispatcher) VerifyURL(ticketID string) string {
	return d.baseURL + "/tickets/" + ticketID + "/verify"
}

// TicketIssued queues the holder's ticket email. Holders without an email are
// skipped.
func (d *Dispatcher) TicketIssued(ctx context.Context, event *models.Event, ticket *models.Ticket) {
	if ticket.Holder.Email == "" {
		d.logger.Debug("ticket holder has no email; notification skipped", zap.String("ticket_id", ticket.ID))
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()

	eventID, ticketID := event.ID, ticket.ID
	el := &models.EmailLog{
		EventID:        &eventID,
		TicketID:       &ticketID,
		EmailType:      models.EmailTypeTicketIssued,
		RecipientEmail: ticket.Holder.Email,
		Subject:        "Your ticket for " + event.Title,
		Status:         models.EmailLogStatusPending,
	}
	if err := d.logs.Create(ctx, el); err != nil {
		d.logger.Error("email log create failed", zap.Error(err), zap.String("ticket_id", ticket.ID))
		return
	}
	payload := queue.NotificationPayload{
		EmailLogID:     el.ID,
		RecipientEmail: el.RecipientEmail,
		Subject:        el.Subject,
		Body:           d.ticketBody(event, ticket),
	}
	if err := d.queue.EnqueueNotification(ctx, payload); err != nil {
		d.logger.Error("enqueue ticket notification failed", zap.Error(err), zap.String("ticket_id", ticket.ID))
	}
}

func (d *Dispatcher) ticketBody(event *models.Event, ticket *models.Ticket) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", ticket.Holder.Name)
	fmt.Fprintf(&b, "Your ticket for %s on %s is confirmed.\n\n", event.Title, event.Date.In(d.loc).Format("Monday, 02 Jan 2006 15:04 MST"))
	fmt.Fprintf(&b, "Ticket: %s\n", ticket.ID)
	fmt.Fprintf(&b, "Verify: %s\n\n", d.VerifyURL(ticket.ID))
	b.WriteString("Present this code at the entrance. It admits one person once.\n")
	return b.String()
}

// CertificateIssued queues the certificate archive upload.
func (d *Dispatcher) CertificateIssued(ctx context.Context, cert *models.Certificate) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()
	if err := d.queue.EnqueueCertificateArchive(ctx, queue.CertificateArchivePayload{CertificateID: cert.ID}); err != nil {
		d.logger.Error("enqueue certificate archive failed", zap.Error(err), zap.String("certificate_id", cert.ID.String()))
	}
}
