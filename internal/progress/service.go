package progress

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harbor-academy/backend/internal/apperr"
	"github.com/harbor-academy/backend/internal/models"
)

// Engine tracks learner progress and issues completion certificates.
type Engine struct {
	store    Store
	catalog  Catalog
	users    UserDirectory
	notifier CertificateNotifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine wires an Engine. notifier may be nil.
func NewEngine(store Store, catalog Catalog, users UserDirectory, notifier CertificateNotifier, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, catalog: catalog, users: users, notifier: notifier, logger: logger, now: time.Now}
}

func validScore(score float64) error {
	if math.IsNaN(score) || score < 0 || score > 100 {
		return apperr.Validation("score must be between 0 and 100")
	}
	return nil
}

// load resolves the user, the course structure and the user's enrollment in
// it. Every write runs after load so a missing record leaves no partial state.
func (s *Engine) load(ctx context.Context, userID, courseID uuid.UUID) (*models.User, *models.Course, *models.Enrollment, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, nil, err
	}
	course, err := s.catalog.GetStructure(ctx, courseID)
	if err != nil {
		return nil, nil, nil, err
	}
	enr, err := s.store.GetEnrollment(ctx, userID, courseID)
	if err != nil {
		return nil, nil, nil, err
	}
	return user, course, enr, nil
}

func (s *Engine) module(course *models.Course, moduleID uuid.UUID) error {
	if _, ok := course.Module(moduleID); !ok {
		return apperr.NotFound("module not found in course")
	}
	return nil
}

// Enroll creates the user's enrollment in a course. Enrolling twice returns
// the existing enrollment.
func (s *Engine) Enroll(ctx context.Context, userID, courseID uuid.UUID) (*models.Enrollment, error) {
	if _, err := s.catalog.GetStructure(ctx, courseID); err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	enr, err := s.store.CreateEnrollment(ctx, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("create enrollment: %w", err)
	}
	return enr, nil
}

// GetEnrollment returns the user's enrollment in a course.
func (s *Engine) GetEnrollment(ctx context.Context, userID, courseID uuid.UUID) (*models.Enrollment, error) {
	return s.store.GetEnrollment(ctx, userID, courseID)
}

// CompleteLesson sets a lesson's completion flag and recomputes progress.
func (s *Engine) CompleteLesson(ctx context.Context, userID, courseID, moduleID, lessonID uuid.UUID, completed bool) (*models.Enrollment, error) {
	_, course, enr, err := s.load(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if !course.HasLesson(moduleID, lessonID) {
		return nil, apperr.NotFound("lesson not found in course")
	}
	state, err := s.store.SetLessonCompletion(ctx, LessonUpdate{
		EnrollmentID: enr.ID,
		ModuleID:     moduleID,
		LessonID:     lessonID,
		Completed:    completed,
		At:           s.now(),
		TotalLessons: course.TotalLessons(),
	})
	if err != nil {
		return nil, fmt.Errorf("set lesson completion: %w", err)
	}
	if state.Finished && !enr.Finished {
		s.logger.Info("course finished", zap.String("user_id", userID.String()), zap.String("course_id", courseID.String()))
	}
	return s.store.GetEnrollment(ctx, userID, courseID)
}

// StartModuleTestAttempt counts an opened module test and returns the total.
func (s *Engine) StartModuleTestAttempt(ctx context.Context, userID, courseID, moduleID uuid.UUID) (int, error) {
	_, course, enr, err := s.load(ctx, userID, courseID)
	if err != nil {
		return 0, err
	}
	if err := s.module(course, moduleID); err != nil {
		return 0, err
	}
	return s.store.IncrementModuleAttempts(ctx, enr.ID, moduleID)
}

// RecordModuleTestScore keeps the best module score and returns it.
func (s *Engine) RecordModuleTestScore(ctx context.Context, userID, courseID, moduleID uuid.UUID, score float64) (float64, error) {
	if err := validScore(score); err != nil {
		return 0, err
	}
	_, course, enr, err := s.load(ctx, userID, courseID)
	if err != nil {
		return 0, err
	}
	if err := s.module(course, moduleID); err != nil {
		return 0, err
	}
	return s.store.RecordModuleScore(ctx, enr.ID, moduleID, score)
}

// StartFinalTestAttempt counts an opened final test and returns the total.
func (s *Engine) StartFinalTestAttempt(ctx context.Context, userID, courseID uuid.UUID) (int, error) {
	_, _, enr, err := s.load(ctx, userID, courseID)
	if err != nil {
		return 0, err
	}
	return s.store.IncrementFinalAttempts(ctx, enr.ID)
}

// FinalTestResult is the outcome of recording a final test score.
type FinalTestResult struct {
	BestScore     float64             `json:"best_score"`
	ModuleAverage float64             `json:"module_average"`
	Eligible      bool                `json:"eligible"`
	Issued        bool                `json:"issued"`
	CertificateID *uuid.UUID          `json:"certificate_id,omitempty"`
	Certificate   *models.Certificate `json:"certificate,omitempty"`
}

// RecordFinalTestScore keeps the best final score and issues the certificate
// the first time the enrollment qualifies. Later calls never issue again.
func (s *Engine) RecordFinalTestScore(ctx context.Context, userID, courseID uuid.UUID, score float64) (*FinalTestResult, error) {
	if err := validScore(score); err != nil {
		return nil, err
	}
	user, course, enr, err := s.load(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	best, err := s.store.RecordFinalScore(ctx, enr.ID, score)
	if err != nil {
		return nil, fmt.Errorf("record final score: %w", err)
	}
	res := &FinalTestResult{BestScore: best}

	enr, err = s.store.GetEnrollment(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if enr.Certified() {
		res.CertificateID = enr.CertificateID
		return res, nil
	}

	a := Assess(course, enr)
	res.ModuleAverage = a.ModuleAverage
	res.Eligible = a.Eligible
	if !a.Eligible {
		return res, nil
	}

	cert := &models.Certificate{
		ID:             uuid.New(),
		EnrollmentID:   enr.ID,
		UserID:         userID,
		CourseID:       course.ID,
		CourseName:     course.Title,
		InstructorName: course.InstructorName,
		HolderName:     user.FullName,
		ModuleResults:  a.ModuleResults,
		FinalTestScore: a.FinalScore,
		FinalResult:    a.FinalResult,
		IssuedAt:       s.now(),
	}
	err = s.store.IssueCertificate(ctx, enr.ID, cert)
	if errors.Is(err, ErrCertificateExists) {
		if enr, err = s.store.GetEnrollment(ctx, userID, courseID); err == nil {
			res.CertificateID = enr.CertificateID
		}
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("issue certificate: %w", err)
	}

	s.logger.Info("certificate issued",
		zap.String("certificate_id", cert.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("course_id", courseID.String()),
		zap.Float64("final_result", cert.FinalResult),
	)
	if s.notifier != nil {
		s.notifier.CertificateIssued(ctx, cert)
	}
	res.Issued = true
	res.CertificateID = &cert.ID
	res.Certificate = cert
	return res, nil
}
