package courses

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harbor-academy/backend/internal/apperr"
	"github.com/harbor-academy/backend/internal/testutil"
)

func sampleRequest() CreateRequest {
	return CreateRequest{
		Title:          " Go for Backends ",
		InstructorName: "Prof. Lima",
		Modules: []ModuleRequest{
			{Title: "Basics", Lessons: []LessonRequest{{Title: "Types"}, {Title: "Errors"}}},
			{Title: "Services", Lessons: []LessonRequest{{Title: "HTTP"}, {Title: "SQL"}}},
		},
	}
}

func TestToCourse(t *testing.T) {
	c := sampleRequest().ToCourse()
	assert.Equal(t, "Go for Backends", c.Title)
	assert.Len(t, c.Modules, 2)
	assert.Equal(t, 4, c.TotalLessons())
}

func TestRepositoryCreateAndStructure(t *testing.T) {
	pool := testutil.DB(t)
	ctx := testutil.Context(t)
	repo := NewRepository(pool)

	c := sampleRequest().ToCourse()
	require.NoError(t, repo.Create(ctx, c))
	require.NotEqual(t, uuid.Nil, c.ID)

	got, err := repo.GetStructure(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Modules, 2)
	assert.Equal(t, "Basics", got.Modules[0].Title)
	assert.Equal(t, 1, got.Modules[0].Position)
	require.Len(t, got.Modules[1].Lessons, 2)
	assert.Equal(t, "SQL", got.Modules[1].Lessons[1].Title)
	assert.True(t, got.HasLesson(c.Modules[1].ID, c.Modules[1].Lessons[0].ID))
	assert.False(t, got.HasLesson(c.Modules[0].ID, c.Modules[1].Lessons[0].ID))

	_, err = repo.GetStructure(ctx, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
