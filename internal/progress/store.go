package progress

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/harbor-academy/backend/internal/models"
)

// ErrCertificateExists is returned by IssueCertificate when the enrollment
// already references a certificate. Nothing is written in that case.
var ErrCertificateExists = errors.New("certificate already issued")

// LessonUpdate sets one lesson's completion flag.
type LessonUpdate struct {
	EnrollmentID uuid.UUID
	ModuleID     uuid.UUID
	LessonID     uuid.UUID
	Completed    bool
	At           time.Time
	TotalLessons int // catalog lesson count used to derive progress
}

// State is the enrollment's derived progress after a lesson update.
type State struct {
	CompletedLessons int
	Progress         int
	Finished         bool
	FinishedAt       *time.Time
}

// Store is the enrollment persistence the engine needs. Counter and best-score
// updates must be single atomic writes; SetLessonCompletion must derive and
// store progress in the same transaction as the lesson row.
type Store interface {
	CreateEnrollment(ctx context.Context, userID, courseID uuid.UUID) (*models.Enrollment, error)
	GetEnrollment(ctx context.Context, userID, courseID uuid.UUID) (*models.Enrollment, error)

	SetLessonCompletion(ctx context.Context, u LessonUpdate) (State, error)

	IncrementModuleAttempts(ctx context.Context, enrollmentID, moduleID uuid.UUID) (int, error)
	RecordModuleScore(ctx context.Context, enrollmentID, moduleID uuid.UUID, score float64) (float64, error)
	IncrementFinalAttempts(ctx context.Context, enrollmentID uuid.UUID) (int, error)
	RecordFinalScore(ctx context.Context, enrollmentID uuid.UUID, score float64) (float64, error)

	// IssueCertificate stores cert and points the enrollment at it only if the
	// enrollment has no certificate yet.
	IssueCertificate(ctx context.Context, enrollmentID uuid.UUID, cert *models.Certificate) error
}

// Catalog resolves course structure.
type Catalog interface {
	GetStructure(ctx context.Context, courseID uuid.UUID) (*models.Course, error)
}

// UserDirectory resolves learners for certificate holder names.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// CertificateNotifier is told about newly issued certificates.
type CertificateNotifier interface {
	CertificateIssued(ctx context.Context, cert *models.Certificate)
}
