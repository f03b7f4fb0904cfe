package models

import (
	"time"

	"github.com/google/uuid"
)

// TestProgress tracks attempts and the best score of a module or final test.
// BestScore is nil until a score has been recorded.
type TestProgress struct {
	Attempts  int      `json:"attempts"`
	BestScore *float64 `json:"best_score,omitempty"`
}

// LessonProgress is the completion state of one lesson.
type LessonProgress struct {
	ModuleID    uuid.UUID  `json:"module_id"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Enrollment is a user's relationship to one purchased course.
type Enrollment struct {
	ID            uuid.UUID                    `json:"id"`
	UserID        uuid.UUID                    `json:"user_id"`
	CourseID      uuid.UUID                    `json:"course_id"`
	EnrolledAt    time.Time                    `json:"enrolled_at"`
	Progress      int                          `json:"progress"`
	Finished      bool                         `json:"finished"`
	FinishedAt    *time.Time                   `json:"finished_at,omitempty"`
	Modules       map[uuid.UUID]TestProgress   `json:"modules"`
	Lessons       map[uuid.UUID]LessonProgress `json:"lessons"`
	FinalTest     TestProgress                 `json:"final_test"`
	CertificateID *uuid.UUID                   `json:"certificate_id,omitempty"`
}

// ModuleProgress returns the recorded test progress of a module, if any.
func (e *Enrollment) ModuleProgress(moduleID uuid.UUID) (TestProgress, bool) {
	p, ok := e.Modules[moduleID]
	return p, ok
}

// LessonState returns the recorded completion of a lesson, if any.
func (e *Enrollment) LessonState(lessonID uuid.UUID) (LessonProgress, bool) {
	p, ok := e.Lessons[lessonID]
	return p, ok
}

// Certified reports whether a certificate has been issued.
func (e *Enrollment) Certified() bool {
	return e.CertificateID != nil
}
