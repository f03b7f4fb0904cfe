package progress

import (
	"math"

	"github.com/harbor-academy/backend/internal/models"
)

const (
	// MinModuleAverage is the module test average required for a certificate.
	MinModuleAverage = 60.0
	// MinFinalScore is the best final test score required for a certificate.
	MinFinalScore = 70.0

	finalWeight  = 0.6
	moduleWeight = 0.4
)

// ProgressPercent is round(100*completed/total), 0 for an empty course.
func ProgressPercent(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	p := int(math.Round(100 * float64(completed) / float64(total)))
	if p > 100 {
		return 100
	}
	return p
}

// round1 rounds to one decimal, halves away from zero.
func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

// Assessment is the certificate eligibility of an enrollment.
type Assessment struct {
	ModuleResults []models.ModuleResult
	ModuleAverage float64
	FinalScore    float64
	FinalResult   float64
	Eligible      bool
}

// Assess evaluates eligibility over every module of the course. A module with
// no recorded score counts as 0. A course without modules, or an enrollment
// without a final score, is never eligible.
func Assess(course *models.Course, e *models.Enrollment) Assessment {
	var a Assessment
	if len(course.Modules) == 0 || e.FinalTest.BestScore == nil {
		return a
	}
	a.FinalScore = *e.FinalTest.BestScore

	var sum float64
	a.ModuleResults = make([]models.ModuleResult, 0, len(course.Modules))
	for _, m := range course.Modules {
		var score float64
		if p, ok := e.ModuleProgress(m.ID); ok && p.BestScore != nil {
			score = *p.BestScore
		}
		sum += score
		a.ModuleResults = append(a.ModuleResults, models.ModuleResult{ModuleID: m.ID, ModuleTitle: m.Title, Score: score})
	}
	a.ModuleAverage = sum / float64(len(course.Modules))
	a.FinalResult = round1(finalWeight*a.FinalScore + moduleWeight*a.ModuleAverage)
	a.Eligible = a.ModuleAverage >= MinModuleAverage && a.FinalScore >= MinFinalScore
	return a
}
