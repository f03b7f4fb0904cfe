package progress

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harbor-academy/backend/internal/middleware"
	"github.com/harbor-academy/backend/pkg/response"
)

// LessonRequest is the body for PUT /courses/:id/modules/:moduleId/lessons/:lessonId.
type LessonRequest struct {
	Completed *bool `json:"completed" binding:"required"`
}

// ScoreRequest is the body for the score endpoints.
type ScoreRequest struct {
	Score *float64 `json:"score" binding:"required"`
}

// Handler handles the learner's course progress endpoints.
type Handler struct {
	engine *Engine
	logger *zap.Logger
}

// NewHandler creates a progress handler.
func NewHandler(engine *Engine, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{engine: engine, logger: logger}
}

func parseIDs(c *gin.Context, names ...string) ([]uuid.UUID, bool) {
	ids := make([]uuid.UUID, 0, len(names))
	for _, n := range names {
		id, err := uuid.Parse(c.Param(n))
		if err != nil {
			response.BadRequest(c, "invalid "+n)
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

// Enroll handles POST /courses/:id/enroll.
func (h *Handler) Enroll(c *gin.Context) {
	ids, ok := parseIDs(c, "id")
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	enr, err := h.engine.Enroll(c.Request.Context(), userID, ids[0])
	if err != nil {
		h.logger.Warn("enroll failed", zap.Error(err))
		response.Error(c, err, "failed to enroll")
		return
	}
	response.Created(c, enr)
}

// Get handles GET /courses/:id/progress.
func (h *Handler) Get(c *gin.Context) {
	ids, ok := parseIDs(c, "id")
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	enr, err := h.engine.GetEnrollment(c.Request.Context(), userID, ids[0])
	if err != nil {
		response.Error(c, err, "failed to load progress")
		return
	}
	response.OK(c, enr)
}

// CompleteLesson handles PUT /courses/:id/modules/:moduleId/lessons/:lessonId.
func (h *Handler) CompleteLesson(c *gin.Context) {
	ids, ok := parseIDs(c, "id", "moduleId", "lessonId")
	if !ok {
		return
	}
	var req LessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	enr, err := h.engine.CompleteLesson(c.Request.Context(), userID, ids[0], ids[1], ids[2], *req.Completed)
	if err != nil {
		h.logger.Warn("complete lesson failed", zap.Error(err))
		response.Error(c, err, "failed to update lesson")
		return
	}
	response.OK(c, enr)
}

// StartModuleTest handles POST /courses/:id/modules/:moduleId/test/attempts.
func (h *Handler) StartModuleTest(c *gin.Context) {
	ids, ok := parseIDs(c, "id", "moduleId")
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	n, err := h.engine.StartModuleTestAttempt(c.Request.Context(), userID, ids[0], ids[1])
	if err != nil {
		response.Error(c, err, "failed to start module test")
		return
	}
	response.OK(c, gin.H{"attempts": n})
}

// RecordModuleScore handles PUT /courses/:id/modules/:moduleId/test/score.
func (h *Handler) RecordModuleScore(c *gin.Context) {
	ids, ok := parseIDs(c, "id", "moduleId")
	if !ok {
		return
	}
	var req ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	best, err := h.engine.RecordModuleTestScore(c.Request.Context(), userID, ids[0], ids[1], *req.Score)
	if err != nil {
		response.Error(c, err, "failed to record module score")
		return
	}
	response.OK(c, gin.H{"best_score": best})
}

// StartFinalTest handles POST /courses/:id/final-test/attempts.
func (h *Handler) StartFinalTest(c *gin.Context) {
	ids, ok := parseIDs(c, "id")
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	n, err := h.engine.StartFinalTestAttempt(c.Request.Context(), userID, ids[0])
	if err != nil {
		response.Error(c, err, "failed to start final test")
		return
	}
	response.OK(c, gin.H{"attempts": n})
}

// RecordFinalScore handles PUT /courses/:id/final-test/score.
func (h *Handler) RecordFinalScore(c *gin.Context) {
	ids, ok := parseIDs(c, "id")
	if !ok {
		return
	}
	var req ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	res, err := h.engine.RecordFinalTestScore(c.Request.Context(), userID, ids[0], *req.Score)
	if err != nil {
		h.logger.Warn("record final score failed", zap.Error(err))
		response.Error(c, err, "failed to record final score")
		return
	}
	response.OK(c, res)
}
