// Package courses owns course records and their version history.
//
// A course only changes through ConditionalUpdate, which snapshots the
// current row and bumps the version in the same transaction. A caller that
// names a stale version gets apperrors.ErrVersionConflict and nothing is
// written.
package courses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"courseportal/apperrors"
	"courseportal/models/course"
	"courseportal/utils"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Sanitizer cleans user supplied rich text.
type Sanitizer interface {
	Sanitize(html string) string
}

type passthrough struct{}

func (passthrough) Sanitize(s string) string { return s }

// CreateInput carries the fields of a new course.
type CreateInput struct {
	Title      string
	Summary    string
	Content    string
	StartDate  time.Time
	EndDate    time.Time
	Capacity   int
	Visibility course.Visibility
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Title      *string
	Summary    *string
	Content    *string
	StartDate  *time.Time
	EndDate    *time.Time
	Capacity   *int
	Visibility *course.Visibility
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Search        string
	Visibility    course.Visibility
	StartDateFrom *time.Time
	StartDateTo   *time.Time
	InstructorID  string
}

type Store struct {
	db        *gorm.DB
	sanitizer Sanitizer
	now       func() time.Time
}

// NewStore returns a Store on db. A nil sanitizer stores content as given.
func NewStore(db *gorm.DB, sanitizer Sanitizer) *Store {
	if sanitizer == nil {
		sanitizer = passthrough{}
	}
	return &Store{db: db, sanitizer: sanitizer, now: time.Now}
}

func (s *Store) Create(ctx context.Context, in CreateInput, creatorID string) (*course.Course, error) {
	if in.Visibility == "" {
		in.Visibility = course.VisibilityPublic
	}
	start, end := utils.StartOfDay(in.StartDate), utils.StartOfDay(in.EndDate)
	if err := checkFields(strings.TrimSpace(in.Title), in.Capacity, in.Visibility, start, end); err != nil {
		return nil, err
	}

	c := &course.Course{
		Title:       strings.TrimSpace(in.Title),
		Summary:     strings.TrimSpace(in.Summary),
		Content:     s.sanitizer.Sanitize(in.Content),
		StartDate:   datatypes.Date(start),
		EndDate:     datatypes.Date(end),
		Capacity:    in.Capacity,
		Visibility:  in.Visibility,
		Version:     course.InitialVersion,
		CreatedByID: creatorID,
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, fmt.Errorf("create course: %w", err)
	}
	return c, nil
}

// ConditionalUpdate applies patch when the stored version still equals
// expectedVersion. The pre-update row is written to the history and the
// version is incremented by exactly one; both happen or neither does.
func (s *Store) ConditionalUpdate(ctx context.Context, id string, patch Patch, editorID string, expectedVersion int) (*course.Course, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current course.Course
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrCourseNotFound
		}
		if err != nil {
			return fmt.Errorf("load course: %w", err)
		}
		if current.Version != expectedVersion {
			return versionConflict(id, expectedVersion, current.Version)
		}

		updates, err := s.patchColumns(current, patch)
		if err != nil {
			return err
		}

		at := s.now()
		snapshot := current.Snapshot(editorID, at)
		if err := tx.Create(&snapshot).Error; err != nil {
			return fmt.Errorf("write course snapshot: %w", err)
		}

		updates["version"] = gorm.Expr("version + ?", 1)
		updates["updated_at"] = at
		res := tx.Model(&course.Course{}).
			Where("id = ? AND version = ?", id, expectedVersion).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("update course: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return versionConflict(id, expectedVersion, current.Version)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.FindByID(ctx, id)
}

// patchColumns validates patch against the current row and returns the
// column updates it implies.
func (s *Store) patchColumns(current course.Course, patch Patch) (map[string]any, error) {
	updates := map[string]any{}

	title := current.Title
	if patch.Title != nil {
		title = strings.TrimSpace(*patch.Title)
		updates["title"] = title
	}
	if patch.Summary != nil {
		updates["summary"] = strings.TrimSpace(*patch.Summary)
	}
	if patch.Content != nil {
		updates["content"] = s.sanitizer.Sanitize(*patch.Content)
	}

	start, end := time.Time(current.StartDate), time.Time(current.EndDate)
	if patch.StartDate != nil {
		start = utils.StartOfDay(*patch.StartDate)
		updates["start_date"] = datatypes.Date(start)
	}
	if patch.EndDate != nil {
		end = utils.StartOfDay(*patch.EndDate)
		updates["end_date"] = datatypes.Date(end)
	}

	capacity := current.Capacity
	if patch.Capacity != nil {
		capacity = *patch.Capacity
		updates["capacity"] = capacity
	}
	visibility := current.Visibility
	if patch.Visibility != nil {
		visibility = *patch.Visibility
		updates["visibility"] = string(visibility)
	}

	if err := checkFields(title, capacity, visibility, start, end); err != nil {
		return nil, err
	}
	return updates, nil
}

func checkFields(title string, capacity int, visibility course.Visibility, start, end time.Time) error {
	switch {
	case title == "":
		return invalid("title", "title is required")
	case capacity < 1:
		return invalid("capacity", "capacity must be positive")
	case !visibility.Valid():
		return invalid("visibility", "visibility must be PUBLIC or PRIVATE")
	case end.Before(start):
		return invalid("endDate", "end date is before start date")
	}
	return nil
}

func invalid(field, msg string) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidArgument, msg, map[string]string{"field": field})
}

func versionConflict(id string, expected, actual int) error {
	return apperrors.WithMetadata(apperrors.CodeVersionConflict,
		"course was modified by someone else",
		map[string]string{
			"courseId":        id,
			"expectedVersion": fmt.Sprint(expected),
			"currentVersion":  fmt.Sprint(actual),
		})
}

func (s *Store) FindByID(ctx context.Context, id string) (*course.Course, error) {
	var c course.Course
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrCourseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &c, nil
}

// FindByIDs returns the courses that exist among ids, keyed by id.
func (s *Store) FindByIDs(ctx context.Context, ids []string) (map[string]course.Course, error) {
	out := make(map[string]course.Course, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []course.Course
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find courses: %w", err)
	}
	for _, c := range rows {
		out[c.ID] = c
	}
	return out, nil
}

func (s *Store) List(ctx context.Context, f Filter, page utils.Page) (utils.PageResult[course.Course], error) {
	page = page.Normalize()
	q := s.db.WithContext(ctx).Model(&course.Course{})

	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		like := "%" + term + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(summary) LIKE ?", like, like)
	}
	if f.Visibility != "" {
		q = q.Where("visibility = ?", f.Visibility)
	}
	if f.StartDateFrom != nil {
		q = q.Where("start_date >= ?", datatypes.Date(utils.StartOfDay(*f.StartDateFrom)))
	}
	if f.StartDateTo != nil {
		q = q.Where("start_date <= ?", datatypes.Date(utils.StartOfDay(*f.StartDateTo)))
	}
	if f.InstructorID != "" {
		q = q.Where("created_by_id = ?", f.InstructorID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return utils.PageResult[course.Course]{}, fmt.Errorf("count courses: %w", err)
	}

	var rows []course.Course
	err := q.Order("created_at DESC").Order("id").
		Offset(page.Offset()).Limit(page.Size).
		Find(&rows).Error
	if err != nil {
		return utils.PageResult[course.Course]{}, fmt.Errorf("list courses: %w", err)
	}
	return utils.NewPageResult(rows, total, page), nil
}

// All returns every course. Used by the background audit.
func (s *Store) All(ctx context.Context) ([]course.Course, error) {
	var rows []course.Course
	if err := s.db.WithContext(ctx).Order("created_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return rows, nil
}

// GetVersionHistory returns the snapshots of a course, newest first.
func (s *Store) GetVersionHistory(ctx context.Context, id string) ([]course.CourseVersion, error) {
	var rows []course.CourseVersion
	err := s.db.WithContext(ctx).
		Where("course_id = ?", id).
		Order("changed_at DESC").Order("version DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("course history: %w", err)
	}
	return rows, nil
}

// Remove hard deletes a course together with its history and enrollments.
func (s *Store) Remove(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&course.Course{})
		if res.Error != nil {
			return fmt.Errorf("delete course: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrCourseNotFound
		}
		if err := tx.Where("course_id = ?", id).Delete(&course.CourseVersion{}).Error; err != nil {
			return fmt.Errorf("delete course history: %w", err)
		}
		if err := tx.Where("course_id = ?", id).Delete(&course.Enrollment{}).Error; err != nil {
			return fmt.Errorf("delete course enrollments: %w", err)
		}
		return nil
	})
}
