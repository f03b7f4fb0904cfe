package events

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harbor-academy/backend/internal/middleware"
	"github.com/harbor-academy/backend/internal/models"
	"github.com/harbor-academy/backend/pkg/response"
)

// UserDirectory resolves authenticated users to their profile.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// CreateRequest is the body for POST /events.
type CreateRequest struct {
	Title            string `json:"title" binding:"required"`
	Description      string `json:"description"`
	Date             string `json:"date" binding:"required"` // RFC3339 or YYYY-MM-DD
	AvailableTickets int    `json:"available_tickets" binding:"required"`
	PriceCents       int    `json:"price_cents"`
}

// HolderRequest overrides the caller's profile as ticket holder.
type HolderRequest struct {
	Name       string `json:"name"`
	NationalID string `json:"national_id"`
	Email      string `json:"email"`
}

// IssueTicketRequest is the body for POST /events/:id/tickets. Quantity
// defaults to 1 when omitted.
type IssueTicketRequest struct {
	Quantity *int           `json:"quantity"`
	Holder   *HolderRequest `json:"holder"`
}

// Handler handles event and ticket HTTP endpoints.
type Handler struct {
	engine *Engine
	users  UserDirectory
	loc    *time.Location
	logger *zap.Logger
}

// NewHandler creates an events handler.
func NewHandler(engine *Engine, users UserDirectory, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{engine: engine, users: users, loc: engine.loc, logger: logger}
}

// ParseDate accepts RFC3339 timestamps or a bare calendar date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// Create handles POST /events (admin only).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	date, ok := ParseDate(req.Date, h.loc)
	if !ok {
		response.BadRequest(c, "invalid date; use RFC3339 or YYYY-MM-DD")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	e, err := h.engine.CreateEvent(c.Request.Context(), CreateEventParams{
		Title:            req.Title,
		Description:      req.Description,
		Date:             date,
		AvailableTickets: req.AvailableTickets,
		PriceCents:       req.PriceCents,
		CreatedBy:        &userID,
	})
	if err != nil {
		h.logger.Warn("create event failed", zap.Error(err))
		response.Error(c, err, "failed to create event")
		return
	}
	response.Created(c, e)
}

// List handles GET /events. ?active=true limits to active events.
func (h *Handler) List(c *gin.Context) {
	list, err := h.engine.ListEvents(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		h.logger.Error("list events failed", zap.Error(err))
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, list)
}

// Get handles GET /events/:id.
func (h *Handler) Get(c *gin.Context) {
	e, err := h.engine.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err, "failed to get event")
		return
	}
	response.OK(c, e)
}

// ListTickets handles GET /events/:id/tickets (admin/staff).
func (h *Handler) ListTickets(c *gin.Context) {
	list, err := h.engine.ListTickets(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err, "failed to list tickets")
		return
	}
	response.OK(c, list)
}

// Issue handles POST /events/:id/tickets. A single ticket defaults to the
// caller's profile as holder; larger quantities only move the counters.
func (h *Handler) Issue(c *gin.Context) {
	var req IssueTicketRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var holder *models.Holder
	switch {
	case req.Holder != nil:
		holder = &models.Holder{Name: req.Holder.Name, NationalID: req.Holder.NationalID, Email: req.Holder.Email}
	case quantity == 1:
		u, err := h.users.GetByID(c.Request.Context(), userID)
		if err != nil {
			response.Error(c, err, "failed to load profile")
			return
		}
		p := u.AsHolder()
		holder = &p
	}

	res, err := h.engine.IssueTicket(c.Request.Context(), IssueRequest{
		EventID:  c.Param("id"),
		Quantity: quantity,
		Holder:   holder,
		UserID:   &userID,
	})
	if err != nil {
		response.Error(c, err, "failed to issue ticket")
		return
	}
	response.Created(c, res)
}

// Verify handles GET /tickets/:ticketId/verify. Public and read-only.
func (h *Handler) Verify(c *gin.Context) {
	v, err := h.engine.VerifyTicket(c.Request.Context(), c.Param("ticketId"))
	if err != nil {
		response.Error(c, err, "failed to verify ticket")
		return
	}
	response.OK(c, v)
}

// Redeem handles POST /tickets/:ticketId/redeem (admin/staff).
func (h *Handler) Redeem(c *gin.Context) {
	agent := middleware.Agent(c)
	res, err := h.engine.RedeemTicket(c.Request.Context(), c.Param("ticketId"), agent)
	if err != nil {
		h.logger.Error("redeem ticket failed", zap.Error(err), zap.String("ticket_id", c.Param("ticketId")))
		response.Internal(c, "failed to redeem ticket")
		return
	}
	switch res.Outcome {
	case models.ActionRedeemed:
		response.OK(c, res)
	case models.ActionAlreadyUsed:
		response.Outcome(c, http.StatusBadRequest, "ticket already used", res)
	default:
		response.Outcome(c, http.StatusNotFound, "ticket not found", res)
	}
}
