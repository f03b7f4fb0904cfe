package courses

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harbor-academy/backend/internal/models"
	"github.com/harbor-academy/backend/pkg/response"
)

// LessonRequest is a lesson in a course definition.
type LessonRequest struct {
	Title string `json:"title" binding:"required"`
}

// ModuleRequest is a module in a course definition.
type ModuleRequest struct {
	Title   string          `json:"title" binding:"required"`
	Lessons []LessonRequest `json:"lessons" binding:"dive"`
}

// CreateRequest is the body for POST /courses.
type CreateRequest struct {
	Title          string          `json:"title" binding:"required"`
	Description    string          `json:"description"`
	InstructorName string          `json:"instructor_name" binding:"required"`
	PriceCents     int             `json:"price_cents" binding:"gte=0"`
	Modules        []ModuleRequest `json:"modules" binding:"required,min=1,dive"`
}

// ToCourse converts the request into a catalog course.
func (r CreateRequest) ToCourse() *models.Course {
	c := &models.Course{
		Title:          strings.TrimSpace(r.Title),
		Description:    strings.TrimSpace(r.Description),
		InstructorName: strings.TrimSpace(r.InstructorName),
		PriceCents:     r.PriceCents,
		Modules:        make([]models.CourseModule, 0, len(r.Modules)),
	}
	for _, m := range r.Modules {
		mod := models.CourseModule{Title: strings.TrimSpace(m.Title), Lessons: make([]models.Lesson, 0, len(m.Lessons))}
		for _, l := range m.Lessons {
			mod.Lessons = append(mod.Lessons, models.Lesson{Title: strings.TrimSpace(l.Title)})
		}
		c.Modules = append(c.Modules, mod)
	}
	return c
}

// Handler handles course catalog HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a courses handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// Create handles POST /courses (admin/professor).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	course := req.ToCourse()
	if course.TotalLessons() == 0 {
		response.BadRequest(c, "course needs at least one lesson")
		return
	}
	if err := h.repo.Create(c.Request.Context(), course); err != nil {
		h.logger.Error("create course failed", zap.Error(err))
		response.Internal(c, "failed to create course")
		return
	}
	response.Created(c, course)
}

// List handles GET /courses.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list courses failed", zap.Error(err))
		response.Internal(c, "failed to list courses")
		return
	}
	response.OK(c, list)
}

// Get handles GET /courses/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid course id")
		return
	}
	course, err := h.repo.GetStructure(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err, "failed to load course")
		return
	}
	response.OK(c, course)
}
