package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/harbor-academy/backend/internal/apperr"
	"github.com/harbor-academy/backend/internal/models"
)

var testNow = time.Date(2026, 5, 10, 15, 30, 0, 0, time.UTC)

type fixture struct {
	store    *memStore
	audit    *memAudit
	notifier *memNotifier
	engine   *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: newMemStore(), audit: &memAudit{}, notifier: &memNotifier{}}
	f.engine = NewEngine(f.store, f.audit, f.notifier, nil, Options{
		Location: time.UTC,
		Now:      func() time.Time { return testNow },
	})
	return f
}

func (f *fixture) event(t *testing.T, capacity int, date time.Time) *models.Event {
	t.Helper()
	e, err := f.engine.CreateEvent(context.Background(), CreateEventParams{
		Title:            "Campus Tech Day",
		Date:             date,
		AvailableTickets: capacity,
	})
	require.NoError(t, err)
	return e
}

var (
	holderA = models.Holder{Name: "Ana Souza", NationalID: "111.222.333-44", Email: "ana@example.com"}
	agent   = models.Agent{ID: uuid.New(), Name: "Gate 1"}
)

func TestCreateEventValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tomorrow := testNow.Add(24 * time.Hour)

	cases := []CreateEventParams{
		{Title: " ", Date: tomorrow, AvailableTickets: 1},
		{Title: "x", AvailableTickets: 1},
		{Title: "x", Date: tomorrow, AvailableTickets: 0},
		{Title: "x", Date: tomorrow, AvailableTickets: MaxCapacity + 1},
		{Title: "x", Date: tomorrow, AvailableTickets: 1, PriceCents: -1},
		{Title: "x", Date: testNow.Add(-48 * time.Hour), AvailableTickets: 1},
	}
	for _, p := range cases {
		_, err := f.engine.CreateEvent(ctx, p)
		assert.ErrorIs(t, err, apperr.ErrValidation, "%+v", p)
	}

	e := f.event(t, 10, tomorrow)
	assert.True(t, e.Active)
	assert.Equal(t, models.TicketCounters{Available: 10, Sold: 0, Remaining: 10}, e.Tickets)
	assert.Len(t, e.ID, 8)
}

func TestCreateEventRetriesIDCollision(t *testing.T) {
	f := newFixture(t)
	ids := []string{"SAMEID01", "SAMEID01", "OTHERID2"}
	f.engine.newEventID = func() (string, error) {
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}
	first := f.event(t, 5, testNow)
	second := f.event(t, 5, testNow)
	assert.Equal(t, "SAMEID01", first.ID)
	assert.Equal(t, "OTHERID2", second.ID)
}

func TestCreateEventGivesUpAfterBoundedAttempts(t *testing.T) {
	f := newFixture(t)
	f.engine.newEventID = func() (string, error) { return "FIXEDID1", nil }
	f.event(t, 5, testNow)

	_, err := f.engine.CreateEvent(context.Background(), CreateEventParams{Title: "dup", Date: testNow, AvailableTickets: 1})
	require.Error(t, err)
	assert.Empty(t, apperr.KindOf(err))
}

func TestIssueRedeemLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.event(t, 10, testNow.Add(72*time.Hour))

	res, err := f.engine.IssueTicket(ctx, IssueRequest{EventID: e.ID, Quantity: 1, Holder: &holderA})
	require.NoError(t, err)
	require.NotNil(t, res.Ticket)
	assert.Equal(t, 1, res.Event.Tickets.Sold)
	assert.Equal(t, 9, res.Event.Tickets.Remaining)
	assert.True(t, res.Ticket.Available)
	assert.Len(t, res.Ticket.ID, 26)
	assert.Equal(t, []string{res.Ticket.ID}, f.notifier.issued)

	red, err := f.engine.RedeemTicket(ctx, res.Ticket.ID, agent)
	require.NoError(t, err)
	assert.Equal(t, models.ActionRedeemed, red.Outcome)
	assert.False(t, red.Ticket.Available)
	require.NotNil(t, red.Ticket.RedeemedAt)

	entries := f.audit.all()
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionRedeemed, entries[0].Action)
	assert.True(t, entries[0].PreviousAvailable)
	assert.False(t, entries[0].NewAvailable)
	assert.Equal(t, "Ana Souza", entries[0].HolderName)
	assert.Equal(t, e.Title, entries[0].EventTitle)

	again, err := f.engine.RedeemTicket(ctx, res.Ticket.ID, agent)
	require.NoError(t, err)
	assert.Equal(t, models.ActionAlreadyUsed, again.Outcome)

	entries = f.audit.all()
	require.Len(t, entries, 2)
	assert.Equal(t, models.ActionAlreadyUsed, entries[1].Action)
	assert.False(t, entries[1].PreviousAvailable)
	assert.False(t, entries[1].NewAvailable)

	stored, err := f.store.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Tickets.Sold)
}

func TestIssueCapacityExceeded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.event(t, 2, testNow)

	_, err := f.engine.IssueTicket(ctx, IssueRequest{EventID: e.ID, Quantity: 3})
	assert.ErrorIs(t, err, apperr.ErrCapacityExceeded)

	stored, err := f.store.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketCounters{Available: 2, Sold: 0, Remaining: 2}, stored.Tickets)
}

func TestIssueBulkWithoutHolder(t *testing.T) {
	f := newFixture(t)
	e := f.event(t, 5, testNow)

	res, err := f.engine.IssueTicket(context.Background(), IssueRequest{EventID: e.ID, Quantity: 5})
	require.NoError(t, err)
	assert.Nil(t, res.Ticket)
	assert.Equal(t, 0, res.Event.Tickets.Remaining)
	assert.Empty(t, f.notifier.issued)
}

func TestIssueRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.event(t, 5, testNow)

	_, err := f.engine.IssueTicket(ctx, IssueRequest{EventID: "missing", Quantity: 1})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.engine.IssueTicket(ctx, IssueRequest{EventID: e.ID, Quantity: 0})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.engine.IssueTicket(ctx, IssueRequest{EventID: e.ID, Quantity: 2, Holder: &holderA})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.engine.IssueTicket(ctx, IssueRequest{EventID: e.ID, Quantity: 1, Holder: &models.Holder{Name: "No Id"}})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	f.store.mu.Lock()
	ev := f.store.events[e.ID]
	ev.Active = false
	f.store.events[e.ID] = ev
	f.store.mu.Unlock()
	_, err = f.engine.IssueTicket(ctx, IssueRequest{EventID: e.ID, Quantity: 1})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestIssueRejectsPastEventStillActive(t *testing.T) {
	f := newFixture(t)
	e := f.event(t, 5, testNow)

	f.engine.now = func() time.Time { return testNow.Add(48 * time.Hour) }
	_, err := f.engine.IssueTicket(context.Background(), IssueRequest{EventID: e.ID, Quantity: 1})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.Contains(t, apperr.Message(err), "expired")
}

func TestIssueSameDayIsAllowed(t *testing.T) {
	f := newFixture(t)
	morning := time.Date(testNow.Year(), testNow.Month(), testNow.Day(), 8, 0, 0, 0, time.UTC)
	e := f.event(t, 5, morning)

	_, err := f.engine.IssueTicket(context.Background(), IssueRequest{EventID: e.ID, Quantity: 1})
	assert.NoError(t, err)
}

func TestIssueConcurrentNeverOversells(t *testing.T) {
	f := newFixture(t)
	e := f.event(t, 10, testNow)

	var g errgroup.Group
	var mu sync.Mutex
	var ok, refused int
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			h := holderA
			_, err := f.engine.IssueTicket(context.Background(), IssueRequest{EventID: e.ID, Quantity: 1, Holder: &h})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apperr.ErrCapacityExceeded):
				refused++
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 10, ok)
	assert.Equal(t, 40, refused)

	stored, err := f.store.GetEvent(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Tickets.Remaining)
	assert.Equal(t, 10, stored.Tickets.Sold)
}

func TestRedeemConcurrentAdmitsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.event(t, 1, testNow)
	res, err := f.engine.IssueTicket(ctx, IssueRequest{EventID: e.ID, Quantity: 1, Holder: &holderA})
	require.NoError(t, err)

	var g errgroup.Group
	outcomes := make([]models.RedemptionAction, 20)
	for i := range outcomes {
		i := i
		g.Go(func() error {
			r, err := f.engine.RedeemTicket(ctx, res.Ticket.ID, agent)
			if err != nil {
				return err
			}
			outcomes[i] = r.Outcome
			return nil
		})
	}
	require.NoError(t, g.Wait())

	redeemed := 0
	for _, o := range outcomes {
		if o == models.ActionRedeemed {
			redeemed++
		} else {
			assert.Equal(t, models.ActionAlreadyUsed, o)
		}
	}
	assert.Equal(t, 1, redeemed)
	assert.Len(t, f.audit.all(), 20)
}

func TestRedeemUnknownTicket(t *testing.T) {
	f := newFixture(t)
	e := f.event(t, 3, testNow)

	red, err := f.engine.RedeemTicket(context.Background(), "NONEXISTENT", agent)
	require.NoError(t, err)
	assert.Equal(t, models.ActionInvalid, red.Outcome)
	assert.Nil(t, red.Ticket)

	entries := f.audit.all()
	require.Len(t, entries, 1)
	got := entries[0]
	assert.Equal(t, models.ActionInvalid, got.Action)
	assert.Equal(t, "NONEXISTENT", got.TicketID)
	assert.Nil(t, got.EventID)
	assert.Equal(t, models.AuditPlaceholder, got.HolderName)
	assert.Equal(t, models.AuditPlaceholder, got.HolderNationalID)
	assert.Equal(t, models.AuditPlaceholder, got.EventTitle)
	assert.Equal(t, agent.ID, got.AgentID)

	stored, err := f.store.GetEvent(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Tickets.Sold)
}

func TestRedeemAuditFailureDoesNotChangeOutcome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.event(t, 1, testNow)
	res, err := f.engine.IssueTicket(ctx, IssueRequest{EventID: e.ID, Quantity: 1, Holder: &holderA})
	require.NoError(t, err)

	f.audit.err = errors.New("audit store down")
	red, err := f.engine.RedeemTicket(ctx, res.Ticket.ID, agent)
	require.NoError(t, err)
	assert.Equal(t, models.ActionRedeemed, red.Outcome)
}

func TestRedeemAuditsWhenCallerCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	red, err := f.engine.RedeemTicket(ctx, "GONE", agent)
	require.NoError(t, err)
	assert.Equal(t, models.ActionInvalid, red.Outcome)
	assert.Len(t, f.audit.all(), 1)
}

func TestRedeemStoreFailureStillAudits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.event(t, 1, testNow)
	res, err := f.engine.IssueTicket(ctx, IssueRequest{EventID: e.ID, Quantity: 1, Holder: &holderA})
	require.NoError(t, err)

	f.store.redeemErr = errors.New("connection reset")
	_, err = f.engine.RedeemTicket(ctx, res.Ticket.ID, agent)
	require.Error(t, err)
	assert.Len(t, f.audit.all(), 1)
}

func TestVerifyTicketIsReadOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.event(t, 1, testNow)
	res, err := f.engine.IssueTicket(ctx, IssueRequest{EventID: e.ID, Quantity: 1, Holder: &holderA})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		v, err := f.engine.VerifyTicket(ctx, res.Ticket.ID)
		require.NoError(t, err)
		assert.True(t, v.Available)
		assert.Equal(t, e.ID, v.Event.ID)
	}
	assert.Empty(t, f.audit.all())

	_, err = f.engine.VerifyTicket(ctx, "NOPE")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.engine.VerifyTicket(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDeactivateExpiredEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	today := f.event(t, 1, testNow)
	later := f.event(t, 1, testNow.Add(72*time.Hour))

	n, err := f.engine.DeactivateExpiredEvents(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.engine.now = func() time.Time { return testNow.Add(24 * time.Hour) }
	n, err = f.engine.DeactivateExpiredEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, _ := f.store.GetEvent(ctx, today.ID)
	assert.False(t, got.Active)
	got, _ = f.store.GetEvent(ctx, later.ID)
	assert.True(t, got.Active)

	n, err = f.engine.DeactivateExpiredEvents(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExpiryUsesConfiguredTimeZone(t *testing.T) {
	saoPaulo := time.FixedZone("BRT", -3*3600)
	f := newFixture(t)
	// 01:00 UTC on May 11 is still May 10 in BRT.
	f.engine.loc = saoPaulo
	f.engine.now = func() time.Time { return time.Date(2026, 5, 11, 1, 0, 0, 0, time.UTC) }
	e := f.event(t, 1, time.Date(2026, 5, 10, 20, 0, 0, 0, saoPaulo))

	_, err := f.engine.IssueTicket(context.Background(), IssueRequest{EventID: e.ID, Quantity: 1})
	assert.NoError(t, err)
}

func TestListTicketsUnknownEvent(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.ListTickets(context.Background(), "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestGateFeedMirrorsIssueAndRedemptions(t *testing.T) {
	f := newFixture(t)
	feed := &memFeed{}
	f.engine.SetBroadcaster(feed)
	ctx := context.Background()
	e := f.event(t, 5, testNow.Add(24*time.Hour))

	res, err := f.engine.IssueTicket(ctx, IssueRequest{EventID: e.ID, Quantity: 1, Holder: &holderA})
	require.NoError(t, err)
	_, err = f.engine.RedeemTicket(ctx, res.Ticket.ID, agent)
	require.NoError(t, err)
	_, err = f.engine.RedeemTicket(ctx, "NOPE", agent)
	require.NoError(t, err)

	require.Len(t, feed.msgs, 2, "unknown tickets have no event to broadcast to")
	assert.Equal(t, FeedTicketsIssued, feed.msgs[0].kind)
	assert.Equal(t, models.TicketCounters{Available: 5, Sold: 1, Remaining: 4}, feed.msgs[0].payload)
	assert.Equal(t, FeedRedemption, feed.msgs[1].kind)
	assert.Equal(t, e.ID, feed.msgs[1].eventID)
	assert.Equal(t, models.ActionRedeemed, feed.msgs[1].payload.(*models.AuditEntry).Action)
}
