package models

import (
	"time"

	"github.com/google/uuid"
)

// Lesson is the atomic completion unit of a course.
type Lesson struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Position int       `json:"position"`
}

// CourseModule groups lessons and carries its own test.
type CourseModule struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Position int       `json:"position"`
	Lessons  []Lesson  `json:"lessons"`
}

// Course is the catalog structure of a course.
type Course struct {
	ID             uuid.UUID      `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	InstructorName string         `json:"instructor_name"`
	PriceCents     int            `json:"price_cents"`
	Modules        []CourseModule `json:"modules"`
	CreatedAt      time.Time      `json:"created_at"`
}

// TotalLessons counts lessons across all modules.
func (c *Course) TotalLessons() int {
	n := 0
	for _, m := range c.Modules {
		n += len(m.Lessons)
	}
	return n
}

// Module returns the module with the given id.
func (c *Course) Module(id uuid.UUID) (*CourseModule, bool) {
	for i := range c.Modules {
		if c.Modules[i].ID == id {
			return &c.Modules[i], true
		}
	}
	return nil, false
}

// HasLesson reports whether lessonID belongs to moduleID in this course.
func (c *Course) HasLesson(moduleID, lessonID uuid.UUID) bool {
	m, ok := c.Module(moduleID)
	if !ok {
		return false
	}
	for _, l := range m.Lessons {
		if l.ID == lessonID {
			return true
		}
	}
	return false
}
