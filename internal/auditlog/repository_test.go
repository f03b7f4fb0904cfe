package auditlog

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harbor-academy/backend/internal/models"
	"github.com/harbor-academy/backend/internal/testutil"
)

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(0))
	assert.Equal(t, DefaultLimit, ClampLimit(-3))
	assert.Equal(t, 1, ClampLimit(1))
	assert.Equal(t, MaxLimit, ClampLimit(10_000))
}

func TestRepositoryAppendAndList(t *testing.T) {
	pool := testutil.DB(t)
	ctx := testutil.Context(t)
	repo := NewRepository(pool)

	ticketID := "AUD" + uuid.NewString()[:8]
	eventID := "EVT" + uuid.NewString()[:5]
	agent := uuid.New()
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i, action := range []models.RedemptionAction{models.ActionRedeemed, models.ActionAlreadyUsed} {
		ev := eventID
		require.NoError(t, repo.Append(ctx, &models.AuditEntry{
			ID: uuid.New(), TicketID: ticketID, EventID: &ev, EventTitle: "Expo",
			HolderName: "Ana", HolderNationalID: "1", AgentID: agent, AgentName: "Gate",
			Action: action, PreviousAvailable: i == 0, CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, repo.Append(ctx, &models.AuditEntry{
		ID: uuid.New(), TicketID: models.AuditPlaceholder, EventTitle: models.AuditPlaceholder,
		HolderName: models.AuditPlaceholder, HolderNationalID: models.AuditPlaceholder,
		AgentID: agent, AgentName: "Gate", Action: models.ActionInvalid, CreatedAt: base,
	}))

	list, err := repo.ListByTicket(ctx, ticketID, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, models.ActionAlreadyUsed, list[0].Action)

	counts, err := repo.CountByAction(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.ActionRedeemed])
	assert.Equal(t, 1, counts[models.ActionAlreadyUsed])

	recent, err := repo.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}
