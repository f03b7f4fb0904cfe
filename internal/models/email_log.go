package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailType for notifications.
const (
	EmailTypeTicketIssued = "ticket_issued"
)

// EmailLogStatus for delivery.
const (
	EmailLogStatusPending = "pending"
	EmailLogStatusSent    = "sent"
	EmailLogStatusFailed  = "failed"
)

// EmailLog records outbound notification emails.
type EmailLog struct {
	ID             uuid.UUID  `json:"id"`
	EventID        *string    `json:"event_id,omitempty"`
	TicketID       *string    `json:"ticket_id,omitempty"`
	EmailType      string     `json:"email_type"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
