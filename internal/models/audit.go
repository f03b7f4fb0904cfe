package models

import (
	"time"

	"github.com/google/uuid"
)

// RedemptionAction is the outcome of one check-in attempt.
type RedemptionAction string

const (
	ActionRedeemed    RedemptionAction = "redeemed"
	ActionAlreadyUsed RedemptionAction = "already_used"
	ActionInvalid     RedemptionAction = "invalid"
)

// AuditPlaceholder fills snapshot fields when the ticket or event is unknown.
const AuditPlaceholder = "N/A"

// Agent identifies who scanned a ticket at the gate.
type Agent struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// AuditEntry is an append-only record of a redemption attempt.
type AuditEntry struct {
	ID                uuid.UUID        `json:"id"`
	TicketID          string           `json:"ticket_id"`
	EventID           *string          `json:"event_id,omitempty"`
	EventTitle        string           `json:"event_title"`
	HolderName        string           `json:"holder_name"`
	HolderNationalID  string           `json:"holder_national_id"`
	AgentID           uuid.UUID        `json:"agent_id"`
	AgentName         string           `json:"agent_name"`
	Action            RedemptionAction `json:"action"`
	PreviousAvailable bool             `json:"previous_available"`
	NewAvailable      bool             `json:"new_available"`
	CreatedAt         time.Time        `json:"created_at"`
}
