package auditlog

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harbor-academy/backend/internal/models"
	"github.com/harbor-academy/backend/pkg/response"
)

// Handler handles GET /audit/tickets.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates an audit log handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /audit/tickets. Filters by ?ticket_id= or ?event_id=,
// otherwise returns the most recent entries. ?limit= is clamped to 1..500.
func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	ctx := c.Request.Context()

	var (
		list []models.AuditEntry
		err  error
	)
	switch {
	case c.Query("ticket_id") != "":
		list, err = h.repo.ListByTicket(ctx, c.Query("ticket_id"), limit)
	case c.Query("event_id") != "":
		list, err = h.repo.ListByEvent(ctx, c.Query("event_id"), limit)
	default:
		list, err = h.repo.Recent(ctx, limit)
	}
	if err != nil {
		h.logger.Error("list audit entries failed", zap.Error(err))
		response.Internal(c, "failed to load audit log")
		return
	}
	if list == nil {
		list = []models.AuditEntry{}
	}
	response.OK(c, list)
}
