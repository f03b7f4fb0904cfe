package models

import (
	"time"

	"github.com/google/uuid"
)

// TicketCounters tracks event admission capacity.
// Remaining always equals Available - Sold and never goes negative.
type TicketCounters struct {
	Available int `json:"available"`
	Sold      int `json:"sold"`
	Remaining int `json:"remaining"`
}

// Event is a scheduled activity with finite admission capacity sold via tickets.
type Event struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Date        time.Time      `json:"date"`
	Active      bool           `json:"active"`
	Tickets     TicketCounters `json:"tickets"`
	PriceCents  int            `json:"price_cents"`
	CreatedBy   *uuid.UUID     `json:"created_by,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ExpiredAt reports whether the event's calendar day is before the day
// containing now, evaluated in loc.
func (e *Event) ExpiredAt(now time.Time, loc *time.Location) bool {
	return e.Date.Before(StartOfDay(now, loc))
}

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Holder is the identity snapshot printed on a ticket.
type Holder struct {
	Name       string `json:"name"`
	NationalID string `json:"national_id"`
	Email      string `json:"email,omitempty"`
}

// Ticket is a single admission right. Available flips true -> false exactly
// once, at redemption.
type Ticket struct {
	ID           string     `json:"id"`
	EventID      string     `json:"event_id"`
	UserID       *uuid.UUID `json:"user_id,omitempty"`
	Holder       Holder     `json:"holder"`
	Available    bool       `json:"available"`
	RegisteredAt time.Time  `json:"registered_at"`
	RedeemedAt   *time.Time `json:"redeemed_at,omitempty"`
	RedeemedBy   *uuid.UUID `json:"redeemed_by,omitempty"`
}
