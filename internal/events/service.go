package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harbor-academy/backend/internal/apperr"
	"github.com/harbor-academy/backend/internal/models"
	"github.com/harbor-academy/backend/pkg/utils"
)

const (
	// DefaultIDAttempts bounds event/ticket id generation retries.
	DefaultIDAttempts = 5
	// MaxCapacity caps available tickets per event.
	MaxCapacity = 100_000

	auditWriteTimeout = 5 * time.Second
)

// Options tunes an Engine.
type Options struct {
	Location   *time.Location // calendar used for day-granularity expiry
	IDAttempts int
	Now        func() time.Time
}

// Engine issues, verifies and redeems event tickets.
type Engine struct {
	store      Store
	audit      AuditSink
	notifier   Notifier
	feed       Broadcaster
	logger     *zap.Logger
	loc        *time.Location
	idAttempts int
	now        func() time.Time

	newEventID  func() (string, error)
	newTicketID func() (string, error)
}

// NewEngine wires an Engine. notifier may be nil.
func NewEngine(store Store, audit AuditSink, notifier Notifier, logger *zap.Logger, opts Options) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.IDAttempts <= 0 {
		opts.IDAttempts = DefaultIDAttempts
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		store:       store,
		audit:       audit,
		notifier:    notifier,
		logger:      logger,
		loc:         opts.Location,
		idAttempts:  opts.IDAttempts,
		now:         opts.Now,
		newEventID:  utils.EventCode,
		newTicketID: utils.TicketID,
	}
}

// SetBroadcaster attaches the live gate feed.
func (s *Engine) SetBroadcaster(b Broadcaster) {
	s.feed = b
}

func (s *Engine) broadcast(eventID, kind string, payload any) {
	if s.feed != nil {
		s.feed.Broadcast(eventID, kind, payload)
	}
}

// CreateEventParams describes a new event.
type CreateEventParams struct {
	Title            string
	Description      string
	Date             time.Time
	AvailableTickets int
	PriceCents       int
	CreatedBy        *uuid.UUID
}

// CreateEvent validates params and stores a new active event with all tickets
// remaining.
func (s *Engine) CreateEvent(ctx context.Context, p CreateEventParams) (*models.Event, error) {
	p.Title = strings.TrimSpace(p.Title)
	switch {
	case p.Title == "":
		return nil, apperr.Validation("event title is required")
	case p.Date.IsZero():
		return nil, apperr.Validation("event date is required")
	case p.AvailableTickets <= 0:
		return nil, apperr.Validation("available tickets must be a positive integer")
	case p.AvailableTickets > MaxCapacity:
		return nil, apperr.Validation("available tickets cannot exceed %d", MaxCapacity)
	case p.PriceCents < 0:
		return nil, apperr.Validation("price cannot be negative")
	}
	now := s.now()
	if p.Date.Before(models.StartOfDay(now, s.loc)) {
		return nil, apperr.Validation("event date has already passed")
	}

	for attempt := 1; attempt <= s.idAttempts; attempt++ {
		id, err := s.newEventID()
		if err != nil {
			return nil, fmt.Errorf("generate event id: %w", err)
		}
		e := &models.Event{
			ID:          id,
			Title:       p.Title,
			Description: strings.TrimSpace(p.Description),
			Date:        p.Date,
			Active:      true,
			Tickets: models.TicketCounters{
				Available: p.AvailableTickets,
				Sold:      0,
				Remaining: p.AvailableTickets,
			},
			PriceCents: p.PriceCents,
			CreatedBy:  p.CreatedBy,
		}
		err = s.store.CreateEvent(ctx, e)
		if errors.Is(err, ErrDuplicateID) {
			s.logger.Warn("event id collision", zap.String("event_id", id), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create event: %w", err)
		}
		return e, nil
	}
	return nil, fmt.Errorf("create event: no unique id after %d attempts", s.idAttempts)
}

// GetEvent returns an event by id.
func (s *Engine) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Validation("event id is required")
	}
	return s.store.GetEvent(ctx, id)
}

// ListEvents returns events ordered by date.
func (s *Engine) ListEvents(ctx context.Context, activeOnly bool) ([]models.Event, error) {
	return s.store.ListEvents(ctx, activeOnly)
}

// ListTickets returns the tickets issued for an event.
func (s *Engine) ListTickets(ctx context.Context, eventID string) ([]models.Ticket, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.store.ListTickets(ctx, eventID)
}

// IssueRequest asks for quantity tickets. When Holder is set exactly one
// ticket carrying that identity is created.
type IssueRequest struct {
	EventID  string
	Quantity int
	Holder   *models.Holder
	UserID   *uuid.UUID
}

// IssueResult is the event after issuance and the ticket, if one was created.
type IssueResult struct {
	Event  *models.Event  `json:"event"`
	Ticket *models.Ticket `json:"ticket,omitempty"`
}

// IssueTicket sells req.Quantity tickets. Capacity, activity and date are
// checked by the store in the same write that moves the counters.
func (s *Engine) IssueTicket(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	req.EventID = strings.TrimSpace(req.EventID)
	if req.EventID == "" {
		return nil, apperr.Validation("event id is required")
	}
	if req.Quantity <= 0 {
		return nil, apperr.Validation("quantity must be a positive integer")
	}
	var holder *models.Holder
	if req.Holder != nil {
		h := models.Holder{
			Name:       strings.TrimSpace(req.Holder.Name),
			NationalID: strings.TrimSpace(req.Holder.NationalID),
			Email:      strings.TrimSpace(strings.ToLower(req.Holder.Email)),
		}
		if h.Name == "" {
			return nil, apperr.Validation("holder name is required")
		}
		if h.NationalID == "" {
			return nil, apperr.Validation("holder national id is required")
		}
		if req.Quantity != 1 {
			return nil, apperr.Validation("a ticket with holder identity admits one person; quantity must be 1")
		}
		holder = &h
	}

	now := s.now()
	notBefore := models.StartOfDay(now, s.loc)

	for attempt := 1; attempt <= s.idAttempts; attempt++ {
		var ticket *models.Ticket
		if holder != nil {
			id, err := s.newTicketID()
			if err != nil {
				return nil, fmt.Errorf("generate ticket id: %w", err)
			}
			ticket = &models.Ticket{
				ID:           id,
				EventID:      req.EventID,
				UserID:       req.UserID,
				Holder:       *holder,
				Available:    true,
				RegisteredAt: now,
			}
		}

		event, err := s.store.ReserveTickets(ctx, req.EventID, req.Quantity, notBefore, ticket)
		switch {
		case err == nil:
			if ticket != nil && s.notifier != nil {
				s.notifier.TicketIssued(ctx, event, ticket)
			}
			s.broadcast(event.ID, FeedTicketsIssued, event.Tickets)
			s.logger.Info("tickets issued",
				zap.String("event_id", event.ID),
				zap.Int("quantity", req.Quantity),
				zap.Int("remaining", event.Tickets.Remaining),
			)
			return &IssueResult{Event: event, Ticket: ticket}, nil
		case errors.Is(err, ErrDuplicateID) && ticket != nil:
			s.logger.Warn("ticket id collision", zap.String("ticket_id", ticket.ID), zap.Int("attempt", attempt))
			continue
		case errors.Is(err, ErrNotReserved):
			return nil, s.refusal(ctx, req.EventID, req.Quantity, now)
		default:
			return nil, fmt.Errorf("reserve tickets: %w", err)
		}
	}
	return nil, fmt.Errorf("issue ticket: no unique ticket id after %d attempts", s.idAttempts)
}

// refusal explains why a conditional reservation matched nothing.
func (s *Engine) refusal(ctx context.Context, eventID string, quantity int, now time.Time) error {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	switch {
	case !event.Active:
		return apperr.InvalidState("event is inactive")
	case event.ExpiredAt(now, s.loc):
		return apperr.InvalidState("event has expired")
	case event.Tickets.Remaining < quantity:
		return apperr.CapacityExceeded("requested %d tickets but only %d remaining", quantity, event.Tickets.Remaining)
	}
	return fmt.Errorf("reserve tickets for %s: event changed during reservation", eventID)
}

// Verification is a read-only view of a ticket.
type Verification struct {
	Ticket    *models.Ticket `json:"ticket"`
	Event     *models.Event  `json:"event"`
	Available bool           `json:"available"`
}

// VerifyTicket looks a ticket up without changing it.
func (s *Engine) VerifyTicket(ctx context.Context, ticketID string) (*Verification, error) {
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return nil, apperr.Validation("ticket id is required")
	}
	t, e, err := s.store.FindTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return &Verification{Ticket: t, Event: e, Available: t.Available}, nil
}

// Redemption is the outcome of a gate scan.
type Redemption struct {
	Outcome models.RedemptionAction `json:"outcome"`
	Ticket  *models.Ticket          `json:"ticket,omitempty"`
	Event   *models.Event           `json:"event,omitempty"`
}

// RedeemTicket checks a ticket in. Every call appends exactly one audit
// entry, including unknown tickets and repeat scans. Audit write failures are
// logged and do not change the outcome.
func (s *Engine) RedeemTicket(ctx context.Context, ticketID string, agent models.Agent) (*Redemption, error) {
	ticketID = strings.TrimSpace(ticketID)
	now := s.now()

	var (
		ticket *models.Ticket
		event  *models.Event
		err    error
	)
	if ticketID == "" {
		err = apperr.NotFound("ticket not found")
	} else {
		ticket, event, err = s.store.FindTicket(ctx, ticketID)
	}
	if err != nil {
		s.record(ctx, newAuditEntry(models.ActionInvalid, ticketID, nil, nil, agent, false, false, now))
		if errors.Is(err, apperr.ErrNotFound) {
			return &Redemption{Outcome: models.ActionInvalid}, nil
		}
		return nil, fmt.Errorf("find ticket: %w", err)
	}

	flipped, err := s.store.RedeemTicket(ctx, ticket.ID, agent.ID, now)
	if err != nil {
		s.record(ctx, newAuditEntry(models.ActionInvalid, ticket.ID, ticket, event, agent, ticket.Available, ticket.Available, now))
		return nil, fmt.Errorf("redeem ticket: %w", err)
	}

	if !flipped {
		ticket.Available = false
		s.record(ctx, newAuditEntry(models.ActionAlreadyUsed, ticket.ID, ticket, event, agent, false, false, now))
		return &Redemption{Outcome: models.ActionAlreadyUsed, Ticket: ticket, Event: event}, nil
	}

	ticket.Available = false
	ticket.RedeemedAt = &now
	agentID := agent.ID
	ticket.RedeemedBy = &agentID
	s.record(ctx, newAuditEntry(models.ActionRedeemed, ticket.ID, ticket, event, agent, true, false, now))
	s.logger.Info("ticket redeemed", zap.String("ticket_id", ticket.ID), zap.String("event_id", event.ID), zap.String("agent_id", agent.ID.String()))
	return &Redemption{Outcome: models.ActionRedeemed, Ticket: ticket, Event: event}, nil
}

// record appends entry even if the request context is already cancelled,
// then mirrors it to the gate feed of its event.
func (s *Engine) record(ctx context.Context, entry *models.AuditEntry) {
	if entry.EventID != nil {
		defer s.broadcast(*entry.EventID, FeedRedemption, entry)
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Error("audit append failed",
			zap.Error(err),
			zap.String("ticket_id", entry.TicketID),
			zap.String("action", string(entry.Action)),
		)
	}
}

func newAuditEntry(action models.RedemptionAction, ticketID string, t *models.Ticket, e *models.Event, agent models.Agent, prev, next bool, at time.Time) *models.AuditEntry {
	entry := &models.AuditEntry{
		ID:                uuid.New(),
		TicketID:          ticketID,
		EventTitle:        models.AuditPlaceholder,
		HolderName:        models.AuditPlaceholder,
		HolderNationalID:  models.AuditPlaceholder,
		AgentID:           agent.ID,
		AgentName:         agent.Name,
		Action:            action,
		PreviousAvailable: prev,
		NewAvailable:      next,
		CreatedAt:         at,
	}
	if entry.TicketID == "" {
		entry.TicketID = models.AuditPlaceholder
	}
	if e != nil {
		id := e.ID
		entry.EventID = &id
		entry.EventTitle = e.Title
	}
	if t != nil {
		entry.HolderName = t.Holder.Name
		entry.HolderNationalID = t.Holder.NationalID
	}
	return entry
}

// DeactivateExpiredEvents marks active events dated before today inactive.
func (s *Engine) DeactivateExpiredEvents(ctx context.Context) (int64, error) {
	before := models.StartOfDay(s.now(), s.loc)
	n, err := s.store.DeactivateExpired(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired events: %w", err)
	}
	if n > 0 {
		s.logger.Info("expired events deactivated", zap.Int64("count", n), zap.Time("before", before))
	}
	return n, nil
}
