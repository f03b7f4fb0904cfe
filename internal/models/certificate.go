package models

import (
	"time"

	"github.com/google/uuid"
)

// ModuleResult is a module's best test score as snapshotted on a certificate.
type ModuleResult struct {
	ModuleID    uuid.UUID `json:"module_id"`
	ModuleTitle string    `json:"module_title"`
	Score       float64   `json:"score"`
}

// Certificate is an immutable record of course completion.
type Certificate struct {
	ID             uuid.UUID      `json:"id"`
	EnrollmentID   uuid.UUID      `json:"enrollment_id"`
	UserID         uuid.UUID      `json:"user_id"`
	CourseID       uuid.UUID      `json:"course_id"`
	CourseName     string         `json:"course_name"`
	InstructorName string         `json:"instructor_name"`
	HolderName     string         `json:"holder_name"`
	ModuleResults  []ModuleResult `json:"module_results"`
	FinalTestScore float64        `json:"final_test_score"`
	FinalResult    float64        `json:"final_result"`
	IssuedAt       time.Time      `json:"issued_at"`
}
