package auth

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harbor-academy/backend/internal/models"
	"github.com/harbor-academy/backend/pkg/response"
	"github.com/harbor-academy/backend/pkg/utils"
)

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
	FullName   string `json:"full_name" binding:"required"`
	NationalID string `json:"national_id"`
	Role       string `json:"role"` // optional, defaults to student
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo   *Repository
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo *Repository, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, jwt: jwt, logger: logger}
}

// ParseRole maps a requested role to a platform role. Empty means student.
func ParseRole(s string) (models.Role, bool) {
	switch models.Role(strings.ToLower(strings.TrimSpace(s))) {
	case "", models.RoleStudent:
		return models.RoleStudent, true
	case models.RoleAdmin:
		return models.RoleAdmin, true
	case models.RoleProfessor:
		return models.RoleProfessor, true
	case models.RoleStaff:
		return models.RoleStaff, true
	}
	return "", false
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	role, ok := ParseRole(req.Role)
	if !ok {
		response.BadRequest(c, "invalid role")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if errors.Is(err, utils.ErrPasswordTooShort) {
		response.BadRequest(c, "password too short")
		return
	}
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := h.repo.Create(c.Request.Context(), email, hash, strings.TrimSpace(req.FullName), strings.TrimSpace(req.NationalID), role)
	if errors.Is(err, ErrEmailTaken) {
		response.BadRequest(c, "email already registered")
		return
	}
	if err != nil {
		h.logger.Error("create user failed", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}

	token, err := h.jwt.Generate(user)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.Created(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.repo.GetByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		response.Unauthorized(c, "invalid email or password")
		return
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.jwt.Generate(user)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// List handles GET /users (admin only).
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list users")
		return
	}
	response.OK(c, list)
}
