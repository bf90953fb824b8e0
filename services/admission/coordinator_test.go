package admission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"courseportal/apperrors"
	"courseportal/config"
	"courseportal/database/dbtest"
	"courseportal/lock"
	"courseportal/models"
	"courseportal/models/course"
	"courseportal/services/courses"
	"courseportal/services/enrollments"
	"courseportal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = Options{TTL: 5 * time.Second, Retry: lock.RetryPolicy{Attempts: 1000, Delay: 2 * time.Millisecond}}

type fixture struct {
	coord       *Coordinator
	courses     *courses.Store
	enrollments *enrollments.Store
	locker      *lock.MemoryLocker
}

func newFixture(t *testing.T, notifier Notifier, users UserDirectory) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	f := &fixture{
		courses:     courses.NewStore(db, nil),
		enrollments: enrollments.NewStore(db),
		locker:      lock.NewMemoryLocker(),
	}
	f.coord = NewCoordinator(f.locker, f.courses, f.enrollments, users, notifier, fastRetry)
	return f
}

func (f *fixture) course(t *testing.T, capacity int, vis course.Visibility) *course.Course {
	t.Helper()
	c, err := f.courses.Create(context.Background(), courses.CreateInput{
		Title:      "Operating Systems",
		Summary:    "Processes and threads",
		Content:    "<p>syllabus</p>",
		StartDate:  time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
		Capacity:   capacity,
		Visibility: vis,
	}, "instructor")
	require.NoError(t, err)
	return c
}

func studentID(i int) string { return "student-" + string(rune('a'+i)) }

func asStudent(id string) models.Identity {
	return models.Identity{UserID: id, Role: models.RoleStudent}
}

func (f *fixture) pending(t *testing.T, courseID string, n int) []*course.Enrollment {
	t.Helper()
	out := make([]*course.Enrollment, n)
	for i := range out {
		e, err := f.coord.Create(context.Background(), asStudent(studentID(i)), courseID)
		require.NoError(t, err)
		out[i] = e
	}
	return out
}

func TestCreate(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	public := f.course(t, 5, course.VisibilityPublic)
	private := f.course(t, 5, course.VisibilityPrivate)

	e, err := f.coord.Create(ctx, asStudent("s1"), public.ID)
	require.NoError(t, err)
	assert.Equal(t, course.StatusPending, e.Status)

	_, err = f.coord.Create(ctx, asStudent("s1"), public.ID)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyEnrolled)
	assert.True(t, apperrors.IsConflict(err))

	_, err = f.coord.Create(ctx, asStudent("s1"), private.ID)
	assert.ErrorIs(t, err, apperrors.ErrCourseNotFound)

	_, err = f.coord.Create(ctx, asStudent("s1"), "missing")
	assert.ErrorIs(t, err, apperrors.ErrCourseNotFound)

	_, err = f.coord.Create(ctx, models.Identity{UserID: "m", Role: models.RoleManager}, public.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestProcessCapacityScenario(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	c := f.course(t, 2, course.VisibilityPublic)
	es := f.pending(t, c.ID, 3)

	a, err := f.coord.Process(ctx, es[0].ID, course.StatusApproved, "mgr")
	require.NoError(t, err)
	assert.Equal(t, course.StatusApproved, a.Status)

	_, err = f.coord.Process(ctx, es[1].ID, course.StatusApproved, "mgr")
	require.NoError(t, err)

	_, err = f.coord.Process(ctx, es[2].ID, course.StatusApproved, "mgr")
	require.ErrorIs(t, err, apperrors.ErrCapacityExceeded)
	assert.True(t, apperrors.IsCapacityExceeded(err))

	left, err := f.enrollments.FindByID(ctx, es[2].ID)
	require.NoError(t, err)
	assert.Equal(t, course.StatusPending, left.Status)
	assert.Nil(t, left.ProcessedAt)

	// a full course can still reject
	rejected, err := f.coord.Process(ctx, es[2].ID, course.StatusRejected, "mgr")
	require.NoError(t, err)
	assert.Equal(t, course.StatusRejected, rejected.Status)

	n, err := f.enrollments.CountApproved(ctx, c.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestProcessCapacityCeilingUnderConcurrency(t *testing.T) {
	for _, capacity := range []int{1, 3, 5} {
		t.Run(string(rune('0'+capacity)), func(t *testing.T) {
			f := newFixture(t, nil, nil)
			ctx := context.Background()
			c := f.course(t, capacity, course.VisibilityPublic)
			es := f.pending(t, c.ID, capacity+1)

			var wg sync.WaitGroup
			errs := make([]error, len(es))
			for i, e := range es {
				wg.Add(1)
				go func(i int, id string) {
					defer wg.Done()
					_, errs[i] = f.coord.Process(ctx, id, course.StatusApproved, "mgr")
				}(i, e.ID)
			}
			wg.Wait()

			var ok, full int
			for _, err := range errs {
				switch {
				case err == nil:
					ok++
				case apperrors.IsCapacityExceeded(err):
					full++
				default:
					t.Fatalf("unexpected error: %v", err)
				}
			}
			assert.Equal(t, capacity, ok)
			assert.Equal(t, 1, full)

			n, err := f.enrollments.CountApproved(ctx, c.ID)
			require.NoError(t, err)
			assert.EqualValues(t, capacity, n)
		})
	}
}

func TestProcessTerminalEnrollment(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	c := f.course(t, 1, course.VisibilityPublic)
	es := f.pending(t, c.ID, 1)

	_, err := f.coord.Process(ctx, es[0].ID, course.StatusApproved, "mgr")
	require.NoError(t, err)
	before, err := f.enrollments.FindByID(ctx, es[0].ID)
	require.NoError(t, err)

	// already processed wins over the full course
	_, err = f.coord.Process(ctx, es[0].ID, course.StatusApproved, "other")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyProcessed)
	_, err = f.coord.Process(ctx, es[0].ID, course.StatusRejected, "other")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyProcessed)

	after, err := f.enrollments.FindByID(ctx, es[0].ID)
	require.NoError(t, err)
	assert.Equal(t, *before.ProcessedByID, *after.ProcessedByID)
	assert.True(t, before.ProcessedAt.Equal(*after.ProcessedAt))
}

func TestProcessValidation(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	c := f.course(t, 1, course.VisibilityPublic)
	es := f.pending(t, c.ID, 1)

	_, err := f.coord.Process(ctx, es[0].ID, course.StatusCancelled, "mgr")
	assert.True(t, apperrors.IsInvalidArgument(err))

	_, err = f.coord.Process(ctx, "missing", course.StatusApproved, "mgr")
	assert.ErrorIs(t, err, apperrors.ErrEnrollmentNotFound)

	require.NoError(t, f.courses.Remove(ctx, c.ID))
	orphan, err := f.enrollments.Create(ctx, "s", c.ID)
	require.NoError(t, err)
	_, err = f.coord.Process(ctx, orphan.ID, course.StatusApproved, "mgr")
	assert.ErrorIs(t, err, apperrors.ErrCourseNotFound)
}

func TestProcessLockContentionIsConflict(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	c := f.course(t, 5, course.VisibilityPublic)
	es := f.pending(t, c.ID, 2)

	// another approval in the same course holds the course key
	held, err := f.locker.Acquire(ctx, []string{"course:" + c.ID + ":enrollments"}, time.Minute, lock.RetryPolicy{Attempts: 1})
	require.NoError(t, err)

	f.coord.opts.Retry = lock.RetryPolicy{Attempts: 3, Delay: time.Millisecond}
	_, err = f.coord.Process(ctx, es[0].ID, course.StatusApproved, "mgr")
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeLockContention))
	assert.ErrorIs(t, err, lock.ErrNotAcquired)

	e, err := f.enrollments.FindByID(ctx, es[0].ID)
	require.NoError(t, err)
	assert.Equal(t, course.StatusPending, e.Status)

	require.NoError(t, held.Release(ctx))
	_, err = f.coord.Process(ctx, es[0].ID, course.StatusApproved, "mgr")
	assert.NoError(t, err)
}

func TestProcessReleasesLockOnFailure(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	c := f.course(t, 1, course.VisibilityPublic)
	es := f.pending(t, c.ID, 2)

	_, err := f.coord.Process(ctx, es[0].ID, course.StatusApproved, "mgr")
	require.NoError(t, err)
	_, err = f.coord.Process(ctx, es[1].ID, course.StatusApproved, "mgr")
	require.ErrorIs(t, err, apperrors.ErrCapacityExceeded)

	probe, err := f.locker.Acquire(ctx, ProcessKeys(es[1].ID, c.ID), time.Second, lock.RetryPolicy{Attempts: 1})
	require.NoError(t, err, "keys must be free after a failed approval")
	assert.NoError(t, probe.Release(ctx))
}

type leakyLocker struct {
	lock.Locker
	releases int
	mu       sync.Mutex
}

type leakyLock struct {
	lock.Lock
	owner *leakyLocker
}

func (l *leakyLocker) Acquire(ctx context.Context, keys []string, ttl time.Duration, p lock.RetryPolicy) (lock.Lock, error) {
	held, err := l.Locker.Acquire(ctx, keys, ttl, p)
	if err != nil {
		return nil, err
	}
	return leakyLock{Lock: held, owner: l}, nil
}

func (l leakyLock) Release(ctx context.Context) error {
	l.owner.mu.Lock()
	l.owner.releases++
	l.owner.mu.Unlock()
	_ = l.Lock.Release(ctx)
	return lock.ErrNotHeld
}

func TestProcessIgnoresReleaseFailure(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	c := f.course(t, 1, course.VisibilityPublic)
	es := f.pending(t, c.ID, 1)

	leaky := &leakyLocker{Locker: f.locker}
	f.coord.locker = leaky

	e, err := f.coord.Process(ctx, es[0].ID, course.StatusApproved, "mgr")
	require.NoError(t, err)
	assert.Equal(t, course.StatusApproved, e.Status)
	assert.Equal(t, 1, leaky.releases)
}

func TestCancel(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	c := f.course(t, 1, course.VisibilityPublic)
	es := f.pending(t, c.ID, 2)

	_, err := f.coord.Cancel(ctx, es[0].ID, studentID(1))
	assert.ErrorIs(t, err, apperrors.ErrEnrollmentNotFound, "someone else's enrollment looks absent")

	got, err := f.coord.Cancel(ctx, es[0].ID, studentID(0))
	require.NoError(t, err)
	assert.Equal(t, course.StatusCancelled, got.Status)

	_, err = f.coord.Cancel(ctx, es[0].ID, studentID(0))
	assert.ErrorIs(t, err, apperrors.ErrAlreadyCancelled)

	_, err = f.coord.Process(ctx, es[1].ID, course.StatusApproved, "mgr")
	require.NoError(t, err)
	_, err = f.coord.Cancel(ctx, es[1].ID, studentID(1))
	assert.ErrorIs(t, err, apperrors.ErrCannotCancel)

	// the cancelled pair can enroll again
	_, err = f.coord.Create(ctx, asStudent(studentID(0)), c.ID)
	assert.NoError(t, err)
}

type directory map[string]models.User

func (d directory) FindByIDs(_ context.Context, ids []string) (map[string]models.User, error) {
	out := map[string]models.User{}
	for _, id := range ids {
		if u, ok := d[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func TestFindOneAndList(t *testing.T) {
	users := directory{studentID(0): {ID: studentID(0), Email: "a@example.com"}}
	f := newFixture(t, nil, users)
	ctx := context.Background()
	c := f.course(t, 3, course.VisibilityPublic)
	es := f.pending(t, c.ID, 2)

	_, err := f.coord.FindOne(ctx, es[0].ID, asStudent(studentID(1)))
	assert.ErrorIs(t, err, apperrors.ErrEnrollmentNotFound)

	got, err := f.coord.FindOne(ctx, es[0].ID, asStudent(studentID(0)))
	require.NoError(t, err)
	assert.Equal(t, es[0].ID, got.ID)

	_, err = f.coord.FindOne(ctx, es[0].ID, models.Identity{UserID: "mgr", Role: models.RoleManager})
	assert.NoError(t, err)

	res, err := f.coord.List(ctx, asStudent(studentID(0)), enrollments.Filter{StudentID: studentID(1)}, utils.Page{})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, studentID(0), res.Data[0].StudentID)
	require.NotNil(t, res.Data[0].Course)
	assert.Equal(t, c.Title, res.Data[0].Course.Title)
	require.NotNil(t, res.Data[0].Student)
	assert.Equal(t, "a@example.com", res.Data[0].Student.Email)

	res, err = f.coord.List(ctx, models.Identity{UserID: "mgr", Role: models.RoleManager}, enrollments.Filter{CourseID: c.ID}, utils.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Total)
}

type recorder struct {
	events chan course.EnrollmentEvent
}

func (r recorder) Notify(_ context.Context, e course.EnrollmentEvent) error {
	r.events <- e
	return errors.New("downstream unavailable")
}

func TestNotifierReceivesCommittedChanges(t *testing.T) {
	rec := recorder{events: make(chan course.EnrollmentEvent, 4)}
	users := directory{studentID(0): {ID: studentID(0), Email: "a@example.com"}}
	f := newFixture(t, rec, users)
	ctx := context.Background()
	c := f.course(t, 1, course.VisibilityPublic)
	es := f.pending(t, c.ID, 2)

	_, err := f.coord.Process(ctx, es[0].ID, course.StatusApproved, "mgr")
	require.NoError(t, err, "notifier errors never reach the caller")

	select {
	case ev := <-rec.events:
		assert.Equal(t, es[0].ID, ev.EnrollmentID)
		assert.Equal(t, course.StatusApproved, ev.Status)
		assert.Equal(t, "mgr", ev.ActorID)
		assert.Equal(t, c.Title, ev.CourseTitle)
		assert.Equal(t, "a@example.com", ev.StudentEmail)
	case <-time.After(2 * time.Second):
		t.Fatal("no event for approval")
	}

	// failed operations publish nothing
	_, err = f.coord.Process(ctx, es[1].ID, course.StatusApproved, "mgr")
	require.Error(t, err)

	_, err = f.coord.Cancel(ctx, es[1].ID, studentID(1))
	require.NoError(t, err)
	select {
	case ev := <-rec.events:
		assert.Equal(t, es[1].ID, ev.EnrollmentID)
		assert.Equal(t, course.StatusCancelled, ev.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("no event for cancellation")
	}
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.LockConfig{TTL: 5 * time.Second, RetryCount: 50, RetryDelay: 100 * time.Millisecond})
	assert.Equal(t, 5*time.Second, opts.TTL)
	assert.Equal(t, 50, opts.Retry.Attempts)
	assert.Equal(t, 100*time.Millisecond, opts.Retry.Delay)
	assert.Equal(t, []string{"enrollment:e1:process", "course:c1:enrollments"}, ProcessKeys("e1", "c1"))
}
