// Package enrollments owns enrollment rows and their status lifecycle.
//
// Status writes are compare-and-set on PENDING, so two callers racing on the
// same enrollment cannot both transition it. At most one active enrollment
// per (student, course) is enforced by the unique active_key column.
package enrollments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"courseportal/apperrors"
	"courseportal/models/course"
	"courseportal/utils"

	"gorm.io/gorm"
)

// Filter narrows List. Zero values match everything.
type Filter struct {
	StudentID     string
	CourseID      string
	Status        course.EnrollmentStatus
	RequestedFrom *time.Time
	RequestedTo   *time.Time
}

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Create inserts a PENDING enrollment. A second active enrollment for the
// same pair fails with apperrors.ErrAlreadyEnrolled.
func (s *Store) Create(ctx context.Context, studentID, courseID string) (*course.Enrollment, error) {
	key := course.ActiveKeyFor(studentID, courseID)
	e := &course.Enrollment{
		StudentID:   studentID,
		CourseID:    courseID,
		Status:      course.StatusPending,
		RequestedAt: s.now(),
		ActiveKey:   &key,
	}
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		if isDuplicate(err) {
			return nil, apperrors.Wrap(apperrors.CodeAlreadyEnrolled, apperrors.ErrAlreadyEnrolled.Message, err)
		}
		return nil, fmt.Errorf("create enrollment: %w", err)
	}
	return e, nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate")
}

func (s *Store) FindByID(ctx context.Context, id string) (*course.Enrollment, error) {
	var e course.Enrollment
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrEnrollmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &e, nil
}

// FindCurrent returns the active enrollment of a student in a course, or
// apperrors.ErrEnrollmentNotFound when there is none.
func (s *Store) FindCurrent(ctx context.Context, studentID, courseID string) (*course.Enrollment, error) {
	var e course.Enrollment
	err := s.db.WithContext(ctx).
		Where("student_id = ? AND course_id = ? AND status IN ?", studentID, courseID, course.ActiveStatuses).
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrEnrollmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find current enrollment: %w", err)
	}
	return &e, nil
}

func (s *Store) CountByCourseAndStatus(ctx context.Context, courseID string, status course.EnrollmentStatus) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&course.Enrollment{}).
		Where("course_id = ? AND status = ?", courseID, status).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return n, nil
}

func (s *Store) CountApproved(ctx context.Context, courseID string) (int64, error) {
	return s.CountByCourseAndStatus(ctx, courseID, course.StatusApproved)
}

// CountsByCourseIDs returns the APPROVED count of each course that has any.
func (s *Store) CountsByCourseIDs(ctx context.Context, courseIDs []string) (map[string]int64, error) {
	return s.countsBy(ctx, courseIDs, course.StatusApproved)
}

// PendingCounts returns the PENDING count of each course that has any.
func (s *Store) PendingCounts(ctx context.Context, courseIDs []string) (map[string]int64, error) {
	return s.countsBy(ctx, courseIDs, course.StatusPending)
}

func (s *Store) countsBy(ctx context.Context, courseIDs []string, status course.EnrollmentStatus) (map[string]int64, error) {
	out := make(map[string]int64, len(courseIDs))
	if len(courseIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		CourseID string
		N        int64
	}
	err := s.db.WithContext(ctx).Model(&course.Enrollment{}).
		Select("course_id, COUNT(*) AS n").
		Where("course_id IN ? AND status = ?", courseIDs, status).
		Group("course_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count enrollments by course: %w", err)
	}
	for _, r := range rows {
		out[r.CourseID] = r.N
	}
	return out, nil
}

// ActiveCourseIDs reports which of courseIDs the student is actively
// enrolled in.
func (s *Store) ActiveCourseIDs(ctx context.Context, studentID string, courseIDs []string) (map[string]bool, error) {
	out := make(map[string]bool)
	if studentID == "" || len(courseIDs) == 0 {
		return out, nil
	}
	var ids []string
	err := s.db.WithContext(ctx).Model(&course.Enrollment{}).
		Where("student_id = ? AND course_id IN ? AND status IN ?", studentID, courseIDs, course.ActiveStatuses).
		Pluck("course_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("active enrollments: %w", err)
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func (s *Store) ListByCourseIDs(ctx context.Context, courseIDs []string) ([]course.Enrollment, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}
	var rows []course.Enrollment
	err := s.db.WithContext(ctx).
		Where("course_id IN ?", courseIDs).
		Order("requested_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list enrollments by course: %w", err)
	}
	return rows, nil
}

func (s *Store) List(ctx context.Context, f Filter, page utils.Page) (utils.PageResult[course.Enrollment], error) {
	page = page.Normalize()
	q := s.db.WithContext(ctx).Model(&course.Enrollment{})

	if f.StudentID != "" {
		q = q.Where("student_id = ?", f.StudentID)
	}
	if f.CourseID != "" {
		q = q.Where("course_id = ?", f.CourseID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.RequestedFrom != nil {
		q = q.Where("requested_at >= ?", *f.RequestedFrom)
	}
	if f.RequestedTo != nil {
		q = q.Where("requested_at <= ?", *f.RequestedTo)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return utils.PageResult[course.Enrollment]{}, fmt.Errorf("count enrollments: %w", err)
	}

	var rows []course.Enrollment
	err := q.Order("requested_at DESC").Order("id").
		Offset(page.Offset()).Limit(page.Size).
		Find(&rows).Error
	if err != nil {
		return utils.PageResult[course.Enrollment]{}, fmt.Errorf("list enrollments: %w", err)
	}
	return utils.NewPageResult(rows, total, page), nil
}

// Process records a manager decision on a PENDING enrollment. ProcessedAt
// and ProcessedByID are written together with the status.
func (s *Store) Process(ctx context.Context, id string, decision course.EnrollmentStatus, processorID string, at time.Time) (*course.Enrollment, error) {
	action, err := DecisionAction(decision)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, id, action, func(next course.EnrollmentStatus) map[string]any {
		cols := map[string]any{
			"status":          next,
			"processed_at":    at,
			"processed_by_id": processorID,
		}
		if next == course.StatusRejected {
			cols["active_key"] = nil
		}
		return cols
	})
}

// Cancel withdraws a PENDING enrollment.
func (s *Store) Cancel(ctx context.Context, id string) (*course.Enrollment, error) {
	return s.transition(ctx, id, ActionCancel, func(next course.EnrollmentStatus) map[string]any {
		return map[string]any{"status": next, "active_key": nil}
	})
}

func (s *Store) transition(ctx context.Context, id string, action Action, columns func(course.EnrollmentStatus) map[string]any) (*course.Enrollment, error) {
	current, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := Transition(current.Status, action)
	if err != nil {
		return nil, err
	}

	cols := columns(next)
	cols["updated_at"] = s.now()
	res := s.db.WithContext(ctx).Model(&course.Enrollment{}).
		Where("id = ? AND status = ?", id, course.StatusPending).
		Updates(cols)
	if res.Error != nil {
		return nil, fmt.Errorf("update enrollment: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		// someone else moved it first; report what they moved it to
		lost, err := s.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if _, err := Transition(lost.Status, action); err != nil {
			return nil, err
		}
		return nil, apperrors.New(apperrors.CodeConflict, "enrollment changed concurrently")
	}
	return s.FindByID(ctx, id)
}
