package courses

import (
	"context"
	"testing"

	"courseportal/apperrors"
	"courseportal/models"
	"courseportal/models/course"
	"courseportal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnrollments struct {
	approved map[string]int64
	active   map[string]map[string]bool // student -> course -> active
}

func (f fakeEnrollments) CountsByCourseIDs(_ context.Context, ids []string) (map[string]int64, error) {
	out := map[string]int64{}
	for _, id := range ids {
		if n, ok := f.approved[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

func (f fakeEnrollments) ActiveCourseIDs(_ context.Context, studentID string, ids []string) (map[string]bool, error) {
	out := map[string]bool{}
	for _, id := range ids {
		if f.active[studentID][id] {
			out[id] = true
		}
	}
	return out, nil
}

var (
	student = models.Identity{UserID: "stu-1", Role: models.RoleStudent}
	manager = models.Identity{UserID: "mgr-1", Role: models.RoleManager}
)

func TestCatalogHidesPrivateCoursesFromStudents(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	pub, err := s.Create(ctx, sampleInput("Public"), "i")
	require.NoError(t, err)
	in := sampleInput("Private")
	in.Visibility = course.VisibilityPrivate
	priv, err := s.Create(ctx, in, "i")
	require.NoError(t, err)

	cat := NewCatalog(s, fakeEnrollments{})

	res, err := cat.List(ctx, student, Filter{Visibility: course.VisibilityPrivate}, utils.Page{})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, pub.ID, res.Data[0].ID)

	res, err = cat.List(ctx, manager, Filter{}, utils.Page{})
	require.NoError(t, err)
	assert.Len(t, res.Data, 2)

	_, err = cat.Get(ctx, priv.ID, student)
	assert.ErrorIs(t, err, apperrors.ErrCourseNotFound)
	_, err = cat.History(ctx, priv.ID, student)
	assert.ErrorIs(t, err, apperrors.ErrCourseNotFound)

	got, err := cat.Get(ctx, priv.ID, manager)
	require.NoError(t, err)
	assert.Equal(t, "Private", got.Title)
}

func TestCatalogDecoratesCounts(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	a, err := s.Create(ctx, sampleInput("A"), "i")
	require.NoError(t, err)
	b, err := s.Create(ctx, sampleInput("B"), "i")
	require.NoError(t, err)

	cat := NewCatalog(s, fakeEnrollments{
		approved: map[string]int64{a.ID: 4},
		active:   map[string]map[string]bool{student.UserID: {b.ID: true}},
	})

	gotA, err := cat.Get(ctx, a.ID, student)
	require.NoError(t, err)
	assert.EqualValues(t, 4, gotA.EnrolledCount)
	assert.False(t, gotA.IsEnrolled)

	gotB, err := cat.Get(ctx, b.ID, student)
	require.NoError(t, err)
	assert.Zero(t, gotB.EnrolledCount)
	assert.True(t, gotB.IsEnrolled)

	gotB, err = cat.Get(ctx, b.ID, manager)
	require.NoError(t, err)
	assert.False(t, gotB.IsEnrolled)
}

func TestCatalogHistory(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	c, err := s.Create(ctx, sampleInput("History"), "i")
	require.NoError(t, err)
	_, err = s.ConditionalUpdate(ctx, c.ID, Patch{Title: ptr("History II")}, manager.UserID, 1)
	require.NoError(t, err)

	history, err := NewCatalog(s, fakeEnrollments{}).History(ctx, c.ID, manager)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "History", history[0].Title)
	assert.Equal(t, 1, history[0].Version)
}
