// Package admission decides who gets into a course.
//
// Approvals for the same course are serialised by a lock over
// "course:<id>:enrollments", so the APPROVED count read under the lock is the
// count the approval is checked against. The coordinator keeps no state of
// its own.
package admission

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"courseportal/apperrors"
	"courseportal/config"
	"courseportal/lock"
	"courseportal/models"
	"courseportal/models/course"
	"courseportal/services/enrollments"
	"courseportal/utils"
)

// CourseReader looks courses up.
type CourseReader interface {
	FindByID(ctx context.Context, id string) (*course.Course, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]course.Course, error)
}

// EnrollmentStore is the enrollment persistence the coordinator drives.
type EnrollmentStore interface {
	Create(ctx context.Context, studentID, courseID string) (*course.Enrollment, error)
	FindByID(ctx context.Context, id string) (*course.Enrollment, error)
	FindCurrent(ctx context.Context, studentID, courseID string) (*course.Enrollment, error)
	CountApproved(ctx context.Context, courseID string) (int64, error)
	List(ctx context.Context, f enrollments.Filter, page utils.Page) (utils.PageResult[course.Enrollment], error)
	Process(ctx context.Context, id string, decision course.EnrollmentStatus, processorID string, at time.Time) (*course.Enrollment, error)
	Cancel(ctx context.Context, id string) (*course.Enrollment, error)
}

// UserDirectory resolves students for list decoration and notifications.
type UserDirectory interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]models.User, error)
}

// Notifier is told about committed status changes. It runs after the
// response is decided and its errors are only logged.
type Notifier interface {
	Notify(ctx context.Context, event course.EnrollmentEvent) error
}

// Options tune lock acquisition.
type Options struct {
	TTL   time.Duration
	Retry lock.RetryPolicy
}

// DefaultOptions holds a lock for five seconds and gives up after about
// five seconds of contention.
var DefaultOptions = Options{TTL: 5 * time.Second, Retry: lock.DefaultRetry}

// OptionsFromConfig reads the lock settings from the application config.
func OptionsFromConfig(cfg config.LockConfig) Options {
	return Options{
		TTL:   cfg.TTL,
		Retry: lock.RetryPolicy{Attempts: cfg.RetryCount, Delay: cfg.RetryDelay},
	}
}

type Coordinator struct {
	locker      lock.Locker
	courses     CourseReader
	enrollments EnrollmentStore
	users       UserDirectory
	notifier    Notifier
	opts        Options
	now         func() time.Time
}

// NewCoordinator wires a Coordinator. users and notifier may be nil.
func NewCoordinator(locker lock.Locker, courses CourseReader, store EnrollmentStore, users UserDirectory, notifier Notifier, opts Options) *Coordinator {
	if opts.TTL <= 0 {
		opts.TTL = DefaultOptions.TTL
	}
	return &Coordinator{
		locker:      locker,
		courses:     courses,
		enrollments: store,
		users:       users,
		notifier:    notifier,
		opts:        opts,
		now:         time.Now,
	}
}

// ProcessKeys are the lock keys held while enrollmentID is processed.
func ProcessKeys(enrollmentID, courseID string) []string {
	return []string{
		"enrollment:" + enrollmentID + ":process",
		"course:" + courseID + ":enrollments",
	}
}

// Create opens a PENDING enrollment for the calling student. Courses the
// student cannot see are reported as not found.
func (c *Coordinator) Create(ctx context.Context, who models.Identity, courseID string) (*course.Enrollment, error) {
	if !who.IsStudent() {
		return nil, apperrors.ErrForbidden
	}

	target, err := c.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if target.Visibility != course.VisibilityPublic {
		return nil, apperrors.ErrCourseNotFound
	}

	_, err = c.enrollments.FindCurrent(ctx, who.UserID, courseID)
	switch {
	case err == nil:
		return nil, apperrors.ErrAlreadyEnrolled
	case !apperrors.IsNotFound(err):
		return nil, err
	}

	// the unique active key catches a create that races past the check above
	return c.enrollments.Create(ctx, who.UserID, courseID)
}

// Process applies a manager decision. An approval fails with
// CapacityExceeded when the course is already full, leaving the enrollment
// PENDING.
func (c *Coordinator) Process(ctx context.Context, id string, decision course.EnrollmentStatus, managerID string) (*course.Enrollment, error) {
	if _, err := enrollments.DecisionAction(decision); err != nil {
		return nil, err
	}

	e, err := c.enrollments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	target, err := c.courses.FindByID(ctx, e.CourseID)
	if err != nil {
		return nil, err
	}

	held, err := c.locker.Acquire(ctx, ProcessKeys(id, e.CourseID), c.opts.TTL, c.opts.Retry)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("acquire admission lock: %w", ctxErr)
		}
		log.Printf("[ADMISSION] lock for enrollment %s not acquired: %v", id, err)
		return nil, apperrors.Wrap(apperrors.CodeLockContention, apperrors.ErrLockContention.Message, err)
	}
	defer c.release(ctx, held)

	updated, err := c.processLocked(ctx, id, target, decision, managerID)
	if err != nil {
		return nil, err
	}

	c.publish(ctx, updated, target, managerID)
	return updated, nil
}

func (c *Coordinator) processLocked(ctx context.Context, id string, target *course.Course, decision course.EnrollmentStatus, managerID string) (*course.Enrollment, error) {
	current, err := c.enrollments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != course.StatusPending {
		return nil, apperrors.ErrAlreadyProcessed
	}

	if decision == course.StatusApproved {
		approved, err := c.enrollments.CountApproved(ctx, target.ID)
		if err != nil {
			return nil, err
		}
		if approved >= int64(target.Capacity) {
			return nil, apperrors.WithMetadata(apperrors.CodeCapacityExceeded,
				apperrors.ErrCapacityExceeded.Message,
				map[string]string{
					"courseId": target.ID,
					"capacity": fmt.Sprint(target.Capacity),
					"approved": fmt.Sprint(approved),
				})
		}
	}

	return c.enrollments.Process(ctx, id, decision, managerID, c.now())
}

func (c *Coordinator) release(ctx context.Context, held lock.Lock) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := held.Release(releaseCtx); err != nil {
		log.Printf("[ADMISSION] failed to release lock %v: %v", held.Keys(), err)
	}
}

// Cancel withdraws a PENDING enrollment on behalf of its owner. Anyone else
// gets NotFound.
func (c *Coordinator) Cancel(ctx context.Context, id, requesterID string) (*course.Enrollment, error) {
	e, err := c.enrollments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.StudentID != requesterID {
		return nil, apperrors.ErrEnrollmentNotFound
	}

	updated, err := c.enrollments.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}

	if target, err := c.courses.FindByID(ctx, updated.CourseID); err == nil {
		c.publish(ctx, updated, target, requesterID)
	}
	return updated, nil
}

// FindOne returns an enrollment. Students only see their own.
func (c *Coordinator) FindOne(ctx context.Context, id string, who models.Identity) (*course.Enrollment, error) {
	e, err := c.enrollments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if who.IsStudent() && e.StudentID != who.UserID {
		return nil, apperrors.ErrEnrollmentNotFound
	}
	return e, nil
}

// View is an enrollment with its course and student attached.
type View struct {
	course.Enrollment
	Course  *course.Course `json:"course,omitempty"`
	Student *models.User   `json:"student,omitempty"`
}

// List pages through enrollments. Students are restricted to their own.
func (c *Coordinator) List(ctx context.Context, who models.Identity, f enrollments.Filter, page utils.Page) (utils.PageResult[View], error) {
	if who.IsStudent() {
		f.StudentID = who.UserID
	}
	res, err := c.enrollments.List(ctx, f, page)
	if err != nil {
		return utils.PageResult[View]{}, err
	}

	courseIDs := make([]string, 0, len(res.Data))
	studentIDs := make([]string, 0, len(res.Data))
	for _, e := range res.Data {
		courseIDs = append(courseIDs, e.CourseID)
		studentIDs = append(studentIDs, e.StudentID)
	}

	courseMap, err := c.courses.FindByIDs(ctx, courseIDs)
	if err != nil {
		return utils.PageResult[View]{}, err
	}
	studentMap := map[string]models.User{}
	if c.users != nil {
		if studentMap, err = c.users.FindByIDs(ctx, studentIDs); err != nil {
			return utils.PageResult[View]{}, err
		}
	}

	return utils.MapPage(res, func(e course.Enrollment) View {
		v := View{Enrollment: e}
		if found, ok := courseMap[e.CourseID]; ok {
			v.Course = &found
		}
		if found, ok := studentMap[e.StudentID]; ok {
			v.Student = &found
		}
		return v
	}), nil
}

// publish hands the event to the notifier in the background.
func (c *Coordinator) publish(ctx context.Context, e *course.Enrollment, target *course.Course, actorID string) {
	if c.notifier == nil {
		return
	}
	event := course.EnrollmentEvent{
		EnrollmentID: e.ID,
		CourseID:     e.CourseID,
		CourseTitle:  target.Title,
		StudentID:    e.StudentID,
		Status:       e.Status,
		ActorID:      actorID,
		OccurredAt:   c.now(),
	}

	go func() {
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()

		if c.users != nil {
			if found, err := c.users.FindByIDs(notifyCtx, []string{event.StudentID}); err == nil {
				event.StudentEmail = found[event.StudentID].Email
			}
		}
		if err := c.notifier.Notify(notifyCtx, event); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[NOTIFY] enrollment %s %s: %v", event.EnrollmentID, event.Status, err)
		}
	}()
}
