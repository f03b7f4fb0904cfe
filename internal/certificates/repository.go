package certificates

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
)

const columns = `id, enrollment_id, user_id, course_id, course_name, instructor_name, holder_name,
	module_results, final_test_score, final_result, issued_at`

// Repository reads issued certificates. Certificates are written only by the
// progress engine and never updated.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a certificates repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scan(row pgx.Row) (*models.Certificate, error) {
	var c models.Certificate
	var results []byte
	if err := row.Scan(&c.ID, &c.EnrollmentID, &c.UserID, &c.CourseID, &c.CourseName, &c.InstructorName, &c.HolderName,
		&results, &c.FinalTestScore, &c.FinalResult, &c.IssuedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(results, &c.ModuleResults); err != nil {
		return nil, fmt.Errorf("decode module results: %w", err)
	}
	return &c, nil
}

// GetByID returns a certificate.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Certificate, error) {
	c, err := scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM certificates WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("certificate not found")
	}
	return c, err
}

// ListByUser returns a learner's certificates, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Certificate, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM certificates WHERE user_id = $1 ORDER BY issued_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.Certificate{}
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}
