package enrollmentValidator

import (
	"courseportal/middleware"
	"courseportal/models/course"
	"courseportal/services/enrollments"
	"courseportal/utils"
	"courseportal/validators"

	"github.com/gofiber/fiber/v2"
)

type createEnrollmentRequest struct {
	CourseID string `json:"courseId" validate:"required,uuid"`
}

// CreateEnrollment validator middleware
func CreateEnrollment() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData, ok, err := validators.Body[createEnrollmentRequest](c)
		if !ok {
			return err
		}
		c.Locals("courseID", reqData.CourseID)
		return c.Next()
	}
}

type processEnrollmentRequest struct {
	Decision string `json:"decision" validate:"required,oneof=APPROVED REJECTED"`
}

// ProcessEnrollment validator middleware
func ProcessEnrollment() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData, ok, err := validators.Body[processEnrollmentRequest](c)
		if !ok {
			return err
		}
		c.Locals("decision", course.EnrollmentStatus(reqData.Decision))
		return c.Next()
	}
}

type enrollmentListQuery struct {
	validators.PageQuery
	StudentID     string `query:"studentId" validate:"omitempty,uuid"`
	CourseID      string `query:"courseId" validate:"omitempty,uuid"`
	Status        string `query:"status" validate:"omitempty,oneof=PENDING APPROVED REJECTED CANCELLED"`
	RequestedFrom string `query:"requestedFrom" validate:"omitempty,date"`
	RequestedTo   string `query:"requestedTo" validate:"omitempty,date"`
}

// EnrollmentListQuery is what EnrollmentList hands to the controller.
type EnrollmentListQuery struct {
	Filter enrollments.Filter
	Page   utils.Page
}

func EnrollmentList() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData, ok, err := validators.Query[enrollmentListQuery](c)
		if !ok {
			return err
		}

		c.Locals("validatedEnrollmentList", EnrollmentListQuery{
			Filter: enrollments.Filter{
				StudentID:     reqData.StudentID,
				CourseID:      reqData.CourseID,
				Status:        course.EnrollmentStatus(reqData.Status),
				RequestedFrom: validators.OptionalDate(reqData.RequestedFrom),
				RequestedTo:   validators.OptionalDate(reqData.RequestedTo),
			},
			Page: reqData.ToPage(),
		})
		return c.Next()
	}
}

// EnrollmentID checks the :id route parameter
func EnrollmentID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if errs := validators.Struct(struct {
			ID string `json:"id" validate:"required,uuid"`
		}{ID: c.Params("id")}); errs != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid Enrollment ID!", nil)
		}
		return c.Next()
	}
}
