package analytics

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/harbor-academy/backend/internal/models"
	"github.com/harbor-academy/backend/pkg/response"
)

type eventGetter interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
}

type auditCounter interface {
	CountByAction(ctx context.Context, eventID string) (map[models.RedemptionAction]int, error)
}

// Handler handles GET /events/:id/stats.
type Handler struct {
	pool   *pgxpool.Pool
	events eventGetter
	audit  auditCounter
	logger *zap.Logger
}

// NewHandler creates an analytics handler.
func NewHandler(pool *pgxpool.Pool, events eventGetter, audit auditCounter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{pool: pool, events: events, audit: audit, logger: logger}
}

// SummaryResponse is the JSON shape of an event's ticketing stats.
type SummaryResponse struct {
	Tickets           models.TicketCounters `json:"tickets"`
	NamedTickets      int                   `json:"named_tickets"`
	Redeemed          int                   `json:"redeemed"`
	NoShow            int                   `json:"no_show"`
	RejectedScans     int                   `json:"rejected_scans"`
	DuplicateScans    int                   `json:"duplicate_scans"`
	SellThroughRate   float64               `json:"sell_through_rate"`
	AttendanceRate    *float64              `json:"attendance_rate,omitempty"`
	GrossRevenueCents int                   `json:"gross_revenue_cents"`
}

// Summarize derives stats from counters, ticket tallies and audit counts.
func Summarize(e *models.Event, named, redeemed int, actions map[models.RedemptionAction]int) SummaryResponse {
	out := SummaryResponse{
		Tickets:           e.Tickets,
		NamedTickets:      named,
		Redeemed:          redeemed,
		NoShow:            named - redeemed,
		RejectedScans:     actions[models.ActionInvalid],
		DuplicateScans:    actions[models.ActionAlreadyUsed],
		GrossRevenueCents: e.Tickets.Sold * e.PriceCents,
	}
	if out.NoShow < 0 {
		out.NoShow = 0
	}
	if e.Tickets.Available > 0 {
		out.SellThroughRate = float64(e.Tickets.Sold) / float64(e.Tickets.Available)
	}
	if named > 0 {
		rate := float64(redeemed) / float64(named)
		out.AttendanceRate = &rate
	}
	return out
}

// GetByEvent handles GET /events/:id/stats (admin only).
func (h *Handler) GetByEvent(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	e, err := h.events.GetEvent(ctx, id)
	if err != nil {
		response.Error(c, err, "failed to load event")
		return
	}

	var named, redeemed int
	const q = `SELECT COUNT(*), COUNT(*) FILTER (WHERE NOT available) FROM tickets WHERE event_id = $1`
	if err := h.pool.QueryRow(ctx, q, id).Scan(&named, &redeemed); err != nil {
		h.logger.Error("ticket counts failed", zap.Error(err), zap.String("event_id", id))
		response.Internal(c, "failed to load ticket counts")
		return
	}

	actions, err := h.audit.CountByAction(ctx, id)
	if err != nil {
		h.logger.Error("audit counts failed", zap.Error(err), zap.String("event_id", id))
		response.Internal(c, "failed to load audit counts")
		return
	}

	response.OK(c, Summarize(e, named, redeemed, actions))
}
