package courses

import (
	"context"

	"courseportal/apperrors"
	"courseportal/models"
	"courseportal/models/course"
	"courseportal/utils"
)

// EnrollmentReader is the slice of the enrollment store the catalogue needs.
type EnrollmentReader interface {
	// CountsByCourseIDs returns the APPROVED count per course.
	CountsByCourseIDs(ctx context.Context, courseIDs []string) (map[string]int64, error)
	// ActiveCourseIDs reports which of courseIDs studentID holds an active
	// enrollment for.
	ActiveCourseIDs(ctx context.Context, studentID string, courseIDs []string) (map[string]bool, error)
}

// CourseView is a course as shown to a particular caller.
type CourseView struct {
	course.Course
	EnrolledCount int64 `json:"enrolledCount"`
	IsEnrolled    bool  `json:"isEnrolled"`
}

// Catalog applies role visibility on top of the Store. Students only ever
// see PUBLIC courses; a private course is reported as not found.
type Catalog struct {
	store       *Store
	enrollments EnrollmentReader
}

func NewCatalog(store *Store, enrollments EnrollmentReader) *Catalog {
	return &Catalog{store: store, enrollments: enrollments}
}

func (c *Catalog) List(ctx context.Context, who models.Identity, f Filter, page utils.Page) (utils.PageResult[CourseView], error) {
	if who.IsStudent() {
		f.Visibility = course.VisibilityPublic
	}
	res, err := c.store.List(ctx, f, page)
	if err != nil {
		return utils.PageResult[CourseView]{}, err
	}
	views, err := c.decorate(ctx, who, res.Data)
	if err != nil {
		return utils.PageResult[CourseView]{}, err
	}
	return utils.NewPageResult(views, res.Total, utils.Page{Page: res.Page, Size: res.Limit}), nil
}

func (c *Catalog) Get(ctx context.Context, id string, who models.Identity) (*CourseView, error) {
	found, err := c.visible(ctx, id, who)
	if err != nil {
		return nil, err
	}
	views, err := c.decorate(ctx, who, []course.Course{*found})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// History returns the version history of a course the caller can see.
func (c *Catalog) History(ctx context.Context, id string, who models.Identity) ([]course.CourseVersion, error) {
	if _, err := c.visible(ctx, id, who); err != nil {
		return nil, err
	}
	return c.store.GetVersionHistory(ctx, id)
}

func (c *Catalog) visible(ctx context.Context, id string, who models.Identity) (*course.Course, error) {
	found, err := c.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if who.IsStudent() && found.Visibility != course.VisibilityPublic {
		return nil, apperrors.ErrCourseNotFound
	}
	return found, nil
}

func (c *Catalog) decorate(ctx context.Context, who models.Identity, rows []course.Course) ([]CourseView, error) {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}

	counts, err := c.enrollments.CountsByCourseIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	enrolled, err := c.enrollments.ActiveCourseIDs(ctx, who.UserID, ids)
	if err != nil {
		return nil, err
	}

	views := make([]CourseView, len(rows))
	for i, r := range rows {
		views[i] = CourseView{Course: r, EnrolledCount: counts[r.ID], IsEnrolled: enrolled[r.ID]}
	}
	return views, nil
}
