package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harbor-academy/backend/internal/apperr"
	"github.com/harbor-academy/backend/internal/models"
	"github.com/harbor-academy/backend/pkg/database"
)

// Repository handles enrollment persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a progress repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// CreateEnrollment inserts the enrollment if missing and returns it.
func (r *Repository) CreateEnrollment(ctx context.Context, userID, courseID uuid.UUID) (*models.Enrollment, error) {
	if _, err := r.pool.Exec(ctx, `INSERT INTO enrollments (user_id, course_id) VALUES ($1, $2)
		ON CONFLICT (user_id, course_id) DO NOTHING`, userID, courseID); err != nil {
		return nil, err
	}
	return r.GetEnrollment(ctx, userID, courseID)
}

// GetEnrollment loads an enrollment with its module and lesson records.
func (r *Repository) GetEnrollment(ctx context.Context, userID, courseID uuid.UUID) (*models.Enrollment, error) {
	e := models.Enrollment{
		Modules: map[uuid.UUID]models.TestProgress{},
		Lessons: map[uuid.UUID]models.LessonProgress{},
	}
	err := r.pool.QueryRow(ctx, `SELECT id, user_id, course_id, enrolled_at, progress, finished, finished_at,
		final_attempts, final_best_score, certificate_id
		FROM enrollments WHERE user_id = $1 AND course_id = $2`, userID, courseID).
		Scan(&e.ID, &e.UserID, &e.CourseID, &e.EnrolledAt, &e.Progress, &e.Finished, &e.FinishedAt,
			&e.FinalTest.Attempts, &e.FinalTest.BestScore, &e.CertificateID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("enrollment not found; course not purchased")
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT module_id, attempts, best_score FROM enrollment_modules WHERE enrollment_id = $1`, e.ID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id uuid.UUID
		var p models.TestProgress
		if err := rows.Scan(&id, &p.Attempts, &p.BestScore); err != nil {
			rows.Close()
			return nil, err
		}
		e.Modules[id] = p
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.pool.Query(ctx, `SELECT lesson_id, module_id, completed, completed_at FROM enrollment_lessons WHERE enrollment_id = $1`, e.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		var p models.LessonProgress
		if err := rows.Scan(&id, &p.ModuleID, &p.Completed, &p.CompletedAt); err != nil {
			return nil, err
		}
		e.Lessons[id] = p
	}
	return &e, rows.Err()
}

// SetLessonCompletion upserts the lesson row and rewrites the enrollment's
// progress while holding the enrollment row lock.
func (r *Repository) SetLessonCompletion(ctx context.Context, u LessonUpdate) (State, error) {
	var st State
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return st, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT id FROM enrollments WHERE id = $1 FOR UPDATE`, u.EnrollmentID).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return st, apperr.NotFound("enrollment not found")
		}
		return st, err
	}

	const upsert = `INSERT INTO enrollment_lessons (enrollment_id, lesson_id, module_id, completed, completed_at)
		VALUES ($1, $2, $3, $4, CASE WHEN $4 THEN $5::timestamptz END)
		ON CONFLICT (enrollment_id, lesson_id) DO UPDATE
		SET completed = EXCLUDED.completed, completed_at = EXCLUDED.completed_at`
	if _, err := tx.Exec(ctx, upsert, u.EnrollmentID, u.LessonID, u.ModuleID, u.Completed, u.At); err != nil {
		return st, fmt.Errorf("upsert lesson: %w", err)
	}

	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM enrollment_lessons WHERE enrollment_id = $1 AND completed`,
		u.EnrollmentID).Scan(&st.CompletedLessons); err != nil {
		return st, fmt.Errorf("count lessons: %w", err)
	}
	st.Progress = ProgressPercent(st.CompletedLessons, u.TotalLessons)
	st.Finished = st.Progress >= 100

	const update = `UPDATE enrollments SET progress = $2, finished = $3,
		finished_at = CASE WHEN $3 THEN COALESCE(finished_at, $4::timestamptz) END
		WHERE id = $1 RETURNING finished_at`
	if err := tx.QueryRow(ctx, update, u.EnrollmentID, st.Progress, st.Finished, u.At).Scan(&st.FinishedAt); err != nil {
		return st, fmt.Errorf("update progress: %w", err)
	}
	return st, tx.Commit(ctx)
}

// IncrementModuleAttempts adds one attempt and returns the new count.
func (r *Repository) IncrementModuleAttempts(ctx context.Context, enrollmentID, moduleID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `INSERT INTO enrollment_modules (enrollment_id, module_id, attempts) VALUES ($1, $2, 1)
		ON CONFLICT (enrollment_id, module_id) DO UPDATE SET attempts = enrollment_modules.attempts + 1
		RETURNING attempts`, enrollmentID, moduleID).Scan(&n)
	return n, err
}

// RecordModuleScore keeps the higher of the stored and given score.
func (r *Repository) RecordModuleScore(ctx context.Context, enrollmentID, moduleID uuid.UUID, score float64) (float64, error) {
	var best float64
	err := r.pool.QueryRow(ctx, `INSERT INTO enrollment_modules (enrollment_id, module_id, best_score) VALUES ($1, $2, $3)
		ON CONFLICT (enrollment_id, module_id) DO UPDATE
		SET best_score = GREATEST(COALESCE(enrollment_modules.best_score, EXCLUDED.best_score), EXCLUDED.best_score)
		RETURNING best_score`, enrollmentID, moduleID, score).Scan(&best)
	return best, err
}

// IncrementFinalAttempts adds one final test attempt and returns the new count.
func (r *Repository) IncrementFinalAttempts(ctx context.Context, enrollmentID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `UPDATE enrollments SET final_attempts = final_attempts + 1 WHERE id = $1 RETURNING final_attempts`,
		enrollmentID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperr.NotFound("enrollment not found")
	}
	return n, err
}

// RecordFinalScore keeps the higher of the stored and given final score.
func (r *Repository) RecordFinalScore(ctx context.Context, enrollmentID uuid.UUID, score float64) (float64, error) {
	var best float64
	err := r.pool.QueryRow(ctx, `UPDATE enrollments SET final_best_score = GREATEST(COALESCE(final_best_score, $2), $2)
		WHERE id = $1 RETURNING final_best_score`, enrollmentID, score).Scan(&best)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperr.NotFound("enrollment not found")
	}
	return best, err
}

// IssueCertificate inserts the certificate and links it, guarded by a null
// certificate reference on the enrollment.
func (r *Repository) IssueCertificate(ctx context.Context, enrollmentID uuid.UUID, cert *models.Certificate) error {
	results, err := json.Marshal(cert.ModuleResults)
	if err != nil {
		return fmt.Errorf("marshal module results: %w", err)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `INSERT INTO certificates (id, enrollment_id, user_id, course_id, course_name, instructor_name,
		holder_name, module_results, final_test_score, final_result, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		cert.ID, enrollmentID, cert.UserID, cert.CourseID, cert.CourseName, cert.InstructorName,
		cert.HolderName, results, cert.FinalTestScore, cert.FinalResult, cert.IssuedAt)
	if database.IsUniqueViolation(err) {
		return ErrCertificateExists
	}
	if err != nil {
		return fmt.Errorf("insert certificate: %w", err)
	}

	tag, err := tx.Exec(ctx, `UPDATE enrollments SET certificate_id = $2 WHERE id = $1 AND certificate_id IS NULL`,
		enrollmentID, cert.ID)
	if err != nil {
		return fmt.Errorf("link certificate: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return ErrCertificateExists
	}
	return tx.Commit(ctx)
}
