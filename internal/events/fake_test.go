package events

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harbor-academy/backend/internal/apperr"
	"github.com/harbor-academy/backend/internal/models"
)

// memStore mirrors the repository's conditional writes under a mutex.
type memStore struct {
	mu      sync.Mutex
	events  map[string]models.Event
	tickets map[string]models.Ticket

	findErr   error
	redeemErr error
}

func newMemStore() *memStore {
	return &memStore{events: map[string]models.Event{}, tickets: map[string]models.Ticket{}}
}

func (m *memStore) CreateEvent(_ context.Context, e *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[e.ID]; ok {
		return ErrDuplicateID
	}
	m.events[e.ID] = *e
	return nil
}

func (m *memStore) GetEvent(_ context.Context, id string) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, apperr.NotFound("event %s not found", id)
	}
	return &e, nil
}

func (m *memStore) ListEvents(_ context.Context, activeOnly bool) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []models.Event{}
	for _, e := range m.events {
		if activeOnly && !e.Active {
			continue
		}
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Date.Before(list[j].Date) })
	return list, nil
}

func (m *memStore) ListTickets(_ context.Context, eventID string) ([]models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []models.Ticket{}
	for _, t := range m.tickets {
		if t.EventID == eventID {
			list = append(list, t)
		}
	}
	return list, nil
}

func (m *memStore) ReserveTickets(_ context.Context, eventID string, quantity int, notBefore time.Time, ticket *models.Ticket) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[eventID]
	if !ok || !e.Active || e.Date.Before(notBefore) || e.Tickets.Remaining < quantity {
		return nil, ErrNotReserved
	}
	if ticket != nil {
		if _, dup := m.tickets[ticket.ID]; dup {
			return nil, ErrDuplicateID
		}
		m.tickets[ticket.ID] = *ticket
	}
	e.Tickets.Sold += quantity
	e.Tickets.Remaining -= quantity
	m.events[eventID] = e
	return &e, nil
}

func (m *memStore) FindTicket(_ context.Context, ticketID string) (*models.Ticket, *models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, nil, m.findErr
	}
	t, ok := m.tickets[ticketID]
	if !ok {
		return nil, nil, apperr.NotFound("ticket %s not found", ticketID)
	}
	e := m.events[t.EventID]
	return &t, &e, nil
}

func (m *memStore) RedeemTicket(_ context.Context, ticketID string, agentID uuid.UUID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redeemErr != nil {
		return false, m.redeemErr
	}
	t, ok := m.tickets[ticketID]
	if !ok || !t.Available {
		return false, nil
	}
	t.Available = false
	t.RedeemedAt = &at
	t.RedeemedBy = &agentID
	m.tickets[ticketID] = t
	return true, nil
}

func (m *memStore) DeactivateExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, e := range m.events {
		if e.Active && e.Date.Before(before) {
			e.Active = false
			m.events[id] = e
			n++
		}
	}
	return n, nil
}

type memAudit struct {
	mu      sync.Mutex
	entries []models.AuditEntry
	err     error
}

func (a *memAudit) Append(_ context.Context, entry *models.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, *entry)
	return nil
}

func (a *memAudit) all() []models.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.AuditEntry(nil), a.entries...)
}

type memNotifier struct {
	mu     sync.Mutex
	issued []string
}

func (n *memNotifier) TicketIssued(_ context.Context, _ *models.Event, t *models.Ticket) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.issued = append(n.issued, t.ID)
}

type feedMsg struct {
	eventID string
	kind    string
	payload any
}

type memFeed struct {
	mu   sync.Mutex
	msgs []feedMsg
}

func (f *memFeed) Broadcast(eventID, kind string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, feedMsg{eventID: eventID, kind: kind, payload: payload})
}
