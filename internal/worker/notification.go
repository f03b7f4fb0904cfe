package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harbor-academy/backend/pkg/mailer"
	"github.com/harbor-academy/backend/pkg/queue"
)

type emailLogUpdater interface {
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// NotificationProcessor delivers queued emails and records the result.
type NotificationProcessor struct {
	sender mailer.Sender
	logs   emailLogUpdater
	logger *zap.Logger
}

// NewNotificationProcessor creates a notification processor.
func NewNotificationProcessor(sender mailer.Sender, logs emailLogUpdater, logger *zap.Logger) *NotificationProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationProcessor{sender: sender, logs: logs, logger: logger}
}

// Process sends one notification job.
func (p *NotificationProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeNotification {
		return fmt.Errorf("unexpected job type: %s", job.Type)
	}
	var payload queue.NotificationPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	err := p.sender.Send(ctx, mailer.Message{To: payload.RecipientEmail, Subject: payload.Subject, Body: payload.Body})
	if err != nil {
		if mErr := p.logs.MarkFailed(ctx, payload.EmailLogID, err.Error()); mErr != nil {
			p.logger.Error("mark email failed", zap.Error(mErr), zap.String("email_log_id", payload.EmailLogID.String()))
		}
		return fmt.Errorf("send: %w", err)
	}
	if err := p.logs.MarkSent(ctx, payload.EmailLogID, time.Now()); err != nil {
		p.logger.Error("mark email sent", zap.Error(err), zap.String("email_log_id", payload.EmailLogID.String()))
	}
	p.logger.Info("notification sent", zap.String("email_log_id", payload.EmailLogID.String()))
	return nil
}
