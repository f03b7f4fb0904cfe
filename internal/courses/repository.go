package courses

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harbor-academy/backend/internal/apperr"
	"github.com/harbor-academy/backend/internal/models"
)

// Repository handles course catalog persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a courses repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a course with its modules and lessons in one transaction.
// Positions follow slice order starting at 1. IDs are filled in place.
func (r *Repository) Create(ctx context.Context, c *models.Course) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `INSERT INTO courses (title, description, instructor_name, price_cents)
		VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		c.Title, c.Description, c.InstructorName, c.PriceCents).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert course: %w", err)
	}
	for i := range c.Modules {
		m := &c.Modules[i]
		m.Position = i + 1
		if err := tx.QueryRow(ctx, `INSERT INTO course_modules (course_id, title, position) VALUES ($1, $2, $3) RETURNING id`,
			c.ID, m.Title, m.Position).Scan(&m.ID); err != nil {
			return fmt.Errorf("insert module: %w", err)
		}
		for j := range m.Lessons {
			l := &m.Lessons[j]
			l.Position = j + 1
			if err := tx.QueryRow(ctx, `INSERT INTO course_lessons (module_id, title, position) VALUES ($1, $2, $3) RETURNING id`,
				m.ID, l.Title, l.Position).Scan(&l.ID); err != nil {
				return fmt.Errorf("insert lesson: %w", err)
			}
		}
	}
	return tx.Commit(ctx)
}

// GetStructure returns a course with modules and lessons in position order.
func (r *Repository) GetStructure(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	var c models.Course
	err := r.pool.QueryRow(ctx, `SELECT id, title, description, instructor_name, price_cents, created_at
		FROM courses WHERE id = $1`, id).
		Scan(&c.ID, &c.Title, &c.Description, &c.InstructorName, &c.PriceCents, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("course not found")
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT m.id, m.title, m.position, l.id, l.title, l.position
		FROM course_modules m
		LEFT JOIN course_lessons l ON l.module_id = m.id
		WHERE m.course_id = $1
		ORDER BY m.position, l.position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	c.Modules = []models.CourseModule{}
	for rows.Next() {
		var (
			moduleID    uuid.UUID
			moduleTitle string
			modulePos   int
			lessonID    *uuid.UUID
			lessonTitle *string
			lessonPos   *int
		)
		if err := rows.Scan(&moduleID, &moduleTitle, &modulePos, &lessonID, &lessonTitle, &lessonPos); err != nil {
			return nil, err
		}
		if n := len(c.Modules); n == 0 || c.Modules[n-1].ID != moduleID {
			c.Modules = append(c.Modules, models.CourseModule{ID: moduleID, Title: moduleTitle, Position: modulePos, Lessons: []models.Lesson{}})
		}
		if lessonID != nil {
			m := &c.Modules[len(c.Modules)-1]
			m.Lessons = append(m.Lessons, models.Lesson{ID: *lessonID, Title: *lessonTitle, Position: *lessonPos})
		}
	}
	return &c, rows.Err()
}

// List returns the catalog without module structure, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Course, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, title, description, instructor_name, price_cents, created_at
		FROM courses ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Course{}
	for rows.Next() {
		var c models.Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.InstructorName, &c.PriceCents, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}
