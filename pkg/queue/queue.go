package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueNotifications is the Redis list key for outbound email jobs.
	QueueNotifications = "worker:notifications"
	// QueueCertificates is the Redis list key for certificate archive jobs.
	QueueCertificates = "worker:certificates"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
	// pollTimeout bounds each blocking pop so shutdown is observed promptly.
	pollTimeout = 5 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeNotification       JobType = "notification"
	JobTypeCertificateArchive JobType = "certificate_archive"
)

// NotificationPayload is the payload for email jobs. EmailLogID points at the
// pending email_logs row the worker updates after delivery.
type NotificationPayload struct {
	EmailLogID     uuid.UUID `json:"email_log_id"`
	RecipientEmail string    `json:"recipient_email"`
	Subject        string    `json:"subject"`
	Body           string    `json:"body"`
}

// CertificateArchivePayload is the payload for certificate archive jobs.
type CertificateArchivePayload struct {
	CertificateID uuid.UUID `json:"certificate_id"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// KeyFor returns the Redis list that holds jobs of type t.
func KeyFor(t JobType) (string, error) {
	switch t {
	case JobTypeNotification:
		return QueueNotifications, nil
	case JobTypeCertificateArchive:
		return QueueCertificates, nil
	}
	return "", fmt.Errorf("unknown job type: %s", t)
}

// NewJob wraps payload in an envelope of the given type.
func NewJob(t JobType, payload any) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Job{
		ID:        uuid.New().String(),
		Type:      t,
		Payload:   body,
		CreatedAt: time.Now(),
	}, nil
}

func (q *Queue) push(ctx context.Context, job *Job) error {
	key, err := KeyFor(job.Type)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	return nil
}

// EnqueueNotification enqueues an email job.
func (q *Queue) EnqueueNotification(ctx context.Context, payload NotificationPayload) error {
	job, err := NewJob(JobTypeNotification, payload)
	if err != nil {
		return err
	}
	if err := q.push(ctx, job); err != nil {
		return err
	}
	q.logger.Debug("enqueued notification job", zap.String("job_id", job.ID), zap.String("email_log_id", payload.EmailLogID.String()))
	return nil
}

// EnqueueCertificateArchive enqueues a certificate archive upload job.
func (q *Queue) EnqueueCertificateArchive(ctx context.Context, payload CertificateArchivePayload) error {
	job, err := NewJob(JobTypeCertificateArchive, payload)
	if err != nil {
		return err
	}
	if err := q.push(ctx, job); err != nil {
		return err
	}
	q.logger.Debug("enqueued certificate archive job", zap.String("job_id", job.ID), zap.String("certificate_id", payload.CertificateID.String()))
	return nil
}

// Dequeue blocks up to pollTimeout for a job on any of keys. A nil job with a
// nil error means the wait timed out or the payload was unreadable.
func (q *Queue) Dequeue(ctx context.Context, keys ...string) (*Job, string, error) {
	if len(keys) == 0 {
		keys = []string{QueueNotifications, QueueCertificates}
	}
	result, err := q.client.BLPop(ctx, pollTimeout, keys...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, "", nil
		}
		return nil, "", err
	}
	if len(result) < 2 {
		return nil, "", nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, "", nil
	}
	return &job, result[0], nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	if job.Attempt >= MaxRetries {
		raw, err := json.Marshal(job)
		if err != nil {
			return err
		}
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.push(ctx, job); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
