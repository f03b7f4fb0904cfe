package progress

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harbor-academy/backend/internal/apperr"
	"github.com/harbor-academy/backend/internal/models"
)

type key struct{ user, course uuid.UUID }

// memStore mirrors the repository's atomic upserts under a mutex.
type memStore struct {
	mu           sync.Mutex
	byKey        map[key]uuid.UUID
	enrollments  map[uuid.UUID]*models.Enrollment
	certificates map[uuid.UUID]models.Certificate
	issueCalls   int
}

func newMemStore() *memStore {
	return &memStore{
		byKey:        map[key]uuid.UUID{},
		enrollments:  map[uuid.UUID]*models.Enrollment{},
		certificates: map[uuid.UUID]models.Certificate{},
	}
}

func clone(e *models.Enrollment) *models.Enrollment {
	c := *e
	c.Modules = make(map[uuid.UUID]models.TestProgress, len(e.Modules))
	for k, v := range e.Modules {
		c.Modules[k] = v
	}
	c.Lessons = make(map[uuid.UUID]models.LessonProgress, len(e.Lessons))
	for k, v := range e.Lessons {
		c.Lessons[k] = v
	}
	return &c
}

func ptr[T any](v T) *T { return &v }

func (m *memStore) CreateEnrollment(_ context.Context, userID, courseID uuid.UUID) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key{userID, courseID}
	if id, ok := m.byKey[k]; ok {
		return clone(m.enrollments[id]), nil
	}
	e := &models.Enrollment{
		ID: uuid.New(), UserID: userID, CourseID: courseID, EnrolledAt: time.Now(),
		Modules: map[uuid.UUID]models.TestProgress{}, Lessons: map[uuid.UUID]models.LessonProgress{},
	}
	m.byKey[k] = e.ID
	m.enrollments[e.ID] = e
	return clone(e), nil
}

func (m *memStore) GetEnrollment(_ context.Context, userID, courseID uuid.UUID) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byKey[key{userID, courseID}]
	if !ok {
		return nil, apperr.NotFound("enrollment not found")
	}
	return clone(m.enrollments[id]), nil
}

func (m *memStore) SetLessonCompletion(_ context.Context, u LessonUpdate) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[u.EnrollmentID]
	if !ok {
		return State{}, apperr.NotFound("enrollment not found")
	}
	lp := models.LessonProgress{ModuleID: u.ModuleID, Completed: u.Completed}
	if u.Completed {
		lp.CompletedAt = ptr(u.At)
	}
	e.Lessons[u.LessonID] = lp

	var st State
	for _, l := range e.Lessons {
		if l.Completed {
			st.CompletedLessons++
		}
	}
	st.Progress = ProgressPercent(st.CompletedLessons, u.TotalLessons)
	st.Finished = st.Progress >= 100
	e.Progress = st.Progress
	e.Finished = st.Finished
	switch {
	case st.Finished && e.FinishedAt == nil:
		e.FinishedAt = ptr(u.At)
	case !st.Finished:
		e.FinishedAt = nil
	}
	st.FinishedAt = e.FinishedAt
	return st, nil
}

func (m *memStore) IncrementModuleAttempts(_ context.Context, enrollmentID, moduleID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.enrollments[enrollmentID]
	p := e.Modules[moduleID]
	p.Attempts++
	e.Modules[moduleID] = p
	return p.Attempts, nil
}

func (m *memStore) RecordModuleScore(_ context.Context, enrollmentID, moduleID uuid.UUID, score float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.enrollments[enrollmentID]
	p := e.Modules[moduleID]
	if p.BestScore == nil || score > *p.BestScore {
		p.BestScore = ptr(score)
	}
	e.Modules[moduleID] = p
	return *p.BestScore, nil
}

func (m *memStore) IncrementFinalAttempts(_ context.Context, enrollmentID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.enrollments[enrollmentID]
	e.FinalTest.Attempts++
	return e.FinalTest.Attempts, nil
}

func (m *memStore) RecordFinalScore(_ context.Context, enrollmentID uuid.UUID, score float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.enrollments[enrollmentID]
	if e.FinalTest.BestScore == nil || score > *e.FinalTest.BestScore {
		e.FinalTest.BestScore = ptr(score)
	}
	return *e.FinalTest.BestScore, nil
}

func (m *memStore) IssueCertificate(_ context.Context, enrollmentID uuid.UUID, cert *models.Certificate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issueCalls++
	e := m.enrollments[enrollmentID]
	if e.CertificateID != nil {
		return ErrCertificateExists
	}
	m.certificates[cert.ID] = *cert
	e.CertificateID = ptr(cert.ID)
	return nil
}

type memCatalog map[uuid.UUID]*models.Course

func (c memCatalog) GetStructure(_ context.Context, id uuid.UUID) (*models.Course, error) {
	course, ok := c[id]
	if !ok {
		return nil, apperr.NotFound("course not found")
	}
	return course, nil
}

type memUsers map[uuid.UUID]*models.User

func (u memUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := u[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	return user, nil
}

type memNotifier struct {
	mu    sync.Mutex
	certs []uuid.UUID
}

func (n *memNotifier) CertificateIssued(_ context.Context, cert *models.Certificate) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.certs = append(n.certs, cert.ID)
}
