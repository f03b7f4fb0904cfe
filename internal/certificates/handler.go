package certificates

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harbor-academy/backend/internal/middleware"
	"github.com/harbor-academy/backend/internal/models"
	"github.com/harbor-academy/backend/pkg/response"
	"github.com/harbor-academy/backend/pkg/storage"
)

type reader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Certificate, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Certificate, error)
}

type presigner interface {
	PresignDownload(ctx context.Context, key string) (string, error)
	PresignExpire() time.Duration
}

// Handler handles certificate HTTP endpoints.
type Handler struct {
	repo   reader
	s3     presigner // nil when archives are not configured
	logger *zap.Logger
}

// NewHandler creates a certificates handler. s3 may be nil.
func NewHandler(repo *Repository, s3 *storage.S3, logger *zap.Logger) *Handler {
	h := newHandler(repo, nil, logger)
	if s3 != nil {
		h.s3 = s3
	}
	return h
}

func newHandler(repo reader, s3 presigner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, s3: s3, logger: logger}
}

// Get handles GET /certificates/:id. Public so third parties can verify.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid certificate id")
		return
	}
	cert, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err, "failed to load certificate")
		return
	}
	response.OK(c, cert)
}

// ListMine handles GET /me/certificates.
func (h *Handler) ListMine(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list certificates failed", zap.Error(err))
		response.Internal(c, "failed to list certificates")
		return
	}
	response.OK(c, list)
}

// DownloadURL handles GET /certificates/:id/download-url. Only the holder or
// an admin may fetch the archive.
func (h *Handler) DownloadURL(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "certificate archive is not configured")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid certificate id")
		return
	}
	cert, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err, "failed to load certificate")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if cert.UserID != userID && c.GetString(middleware.ContextUserRole) != string(models.RoleAdmin) {
		response.Forbidden(c, "not your certificate")
		return
	}
	url, err := h.s3.PresignDownload(c.Request.Context(), storage.CertificateKey(cert.UserID.String(), cert.ID.String()))
	if err != nil {
		h.logger.Error("presign certificate failed", zap.Error(err), zap.String("certificate_id", id.String()))
		response.Internal(c, "failed to create download url")
		return
	}
	response.OK(c, gin.H{"url": url, "expires_in_seconds": int(h.s3.PresignExpire().Seconds())})
}
