package courseValidator

import (
	"courseportal/middleware"
	"courseportal/models/course"
	"courseportal/services/courses"
	"courseportal/utils"
	"courseportal/validators"

	"github.com/gofiber/fiber/v2"
)

type createCourseRequest struct {
	Title      string `json:"title" validate:"required,max=255"`
	Summary    string `json:"summary" validate:"max=500"`
	Content    string `json:"content" validate:"required"`
	StartDate  string `json:"startDate" validate:"required,date"`
	EndDate    string `json:"endDate" validate:"required,date"`
	Capacity   int    `json:"capacity" validate:"required,min=1,max=1000"`
	Visibility string `json:"visibility" validate:"omitempty,oneof=PUBLIC PRIVATE"`
}

// CreateCourse validator middleware
func CreateCourse() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData, ok, err := validators.Body[createCourseRequest](c)
		if !ok {
			return err
		}

		start, _ := utils.ParseDate(reqData.StartDate)
		end, _ := utils.ParseDate(reqData.EndDate)
		if end.Before(start) {
			return middleware.ValidationErrorResponse(c, map[string]string{"endDate": "End date must not be before start date!"})
		}

		c.Locals("validatedCourse", courses.CreateInput{
			Title:      reqData.Title,
			Summary:    reqData.Summary,
			Content:    reqData.Content,
			StartDate:  start,
			EndDate:    end,
			Capacity:   reqData.Capacity,
			Visibility: course.Visibility(reqData.Visibility),
		})
		return c.Next()
	}
}

type updateCourseRequest struct {
	Title      *string `json:"title" validate:"omitempty,min=1,max=255"`
	Summary    *string `json:"summary" validate:"omitempty,max=500"`
	Content    *string `json:"content" validate:"omitempty,min=1"`
	StartDate  *string `json:"startDate" validate:"omitempty,date"`
	EndDate    *string `json:"endDate" validate:"omitempty,date"`
	Capacity   *int    `json:"capacity" validate:"omitempty,min=1,max=1000"`
	Visibility *string `json:"visibility" validate:"omitempty,oneof=PUBLIC PRIVATE"`
	Version    int     `json:"version" validate:"required,min=1"`
}

// CourseUpdate is what UpdateCourse hands to the controller.
type CourseUpdate struct {
	Patch   courses.Patch
	Version int
}

// UpdateCourse validator middleware. Only the fields present are changed;
// version is the one the client last read.
func UpdateCourse() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData, ok, err := validators.Body[updateCourseRequest](c)
		if !ok {
			return err
		}

		patch := courses.Patch{
			Title:    reqData.Title,
			Summary:  reqData.Summary,
			Content:  reqData.Content,
			Capacity: reqData.Capacity,
		}
		if reqData.StartDate != nil {
			patch.StartDate = validators.OptionalDate(*reqData.StartDate)
		}
		if reqData.EndDate != nil {
			patch.EndDate = validators.OptionalDate(*reqData.EndDate)
		}
		if patch.StartDate != nil && patch.EndDate != nil && patch.EndDate.Before(*patch.StartDate) {
			return middleware.ValidationErrorResponse(c, map[string]string{"endDate": "End date must not be before start date!"})
		}
		if reqData.Visibility != nil {
			v := course.Visibility(*reqData.Visibility)
			patch.Visibility = &v
		}

		c.Locals("validatedCourseUpdate", CourseUpdate{Patch: patch, Version: reqData.Version})
		return c.Next()
	}
}

type courseListQuery struct {
	validators.PageQuery
	Search        string `query:"search" validate:"max=255"`
	Visibility    string `query:"visibility" validate:"omitempty,oneof=PUBLIC PRIVATE"`
	StartDateFrom string `query:"startDateFrom" validate:"omitempty,date"`
	StartDateTo   string `query:"startDateTo" validate:"omitempty,date"`
	InstructorID  string `query:"instructorId" validate:"omitempty,uuid"`
}

// CourseListQuery is what CourseList hands to the controller.
type CourseListQuery struct {
	Filter courses.Filter
	Page   utils.Page
}

func CourseList() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData, ok, err := validators.Query[courseListQuery](c)
		if !ok {
			return err
		}

		c.Locals("validatedCourseList", CourseListQuery{
			Filter: courses.Filter{
				Search:        reqData.Search,
				Visibility:    course.Visibility(reqData.Visibility),
				StartDateFrom: validators.OptionalDate(reqData.StartDateFrom),
				StartDateTo:   validators.OptionalDate(reqData.StartDateTo),
				InstructorID:  reqData.InstructorID,
			},
			Page: reqData.ToPage(),
		})
		return c.Next()
	}
}

// CourseID checks the :id route parameter
func CourseID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if errs := validators.Struct(struct {
			ID string `json:"id" validate:"required,uuid"`
		}{ID: c.Params("id")}); errs != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid Course ID!", nil)
		}
		return c.Next()
	}
}
