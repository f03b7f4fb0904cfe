package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harbor-academy/backend/internal/models"
	"github.com/harbor-academy/backend/pkg/queue"
	"github.com/harbor-academy/backend/pkg/storage"
)

type certificateGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Certificate, error)
}

type jsonUploader interface {
	PutJSON(ctx context.Context, key string, body []byte) (string, error)
}

// ArchiveProcessor uploads issued certificates to S3 as JSON documents.
type ArchiveProcessor struct {
	certs    certificateGetter
	uploader jsonUploader
	logger   *zap.Logger
}

// NewArchiveProcessor creates a certificate archive processor.
func NewArchiveProcessor(certs certificateGetter, uploader jsonUploader, logger *zap.Logger) *ArchiveProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveProcessor{certs: certs, uploader: uploader, logger: logger}
}

// Process archives one certificate. Re-running it overwrites the same key.
func (p *ArchiveProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeCertificateArchive {
		return fmt.Errorf("unexpected job type: %s", job.Type)
	}
	var payload queue.CertificateArchivePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	cert, err := p.certs.GetByID(ctx, payload.CertificateID)
	if err != nil {
		return fmt.Errorf("load certificate %s: %w", payload.CertificateID, err)
	}
	body, err := json.MarshalIndent(cert, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal certificate: %w", err)
	}
	key := storage.CertificateKey(cert.UserID.String(), cert.ID.String())
	url, err := p.uploader.PutJSON(ctx, key, body)
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	p.logger.Info("certificate archived", zap.String("certificate_id", cert.ID.String()), zap.String("s3_key", key), zap.String("url", url))
	return nil
}
