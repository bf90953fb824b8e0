package enrollmentController

import (
	"courseportal/middleware"
	"courseportal/models/course"
	"courseportal/services/admission"
	enrollmentValidator "courseportal/validators/enrollment"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	coordinator *admission.Coordinator
}

func NewHandler(coordinator *admission.Coordinator) *Handler {
	return &Handler{coordinator: coordinator}
}

func (h *Handler) EnrollCourse(c *fiber.Ctx) error {
	courseID := c.Locals("courseID").(string)

	created, err := h.coordinator.Create(c.UserContext(), middleware.Identity(c), courseID)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Enrollment requested successfully!", created)
}

func (h *Handler) EnrollmentList(c *fiber.Ctx) error {
	q := c.Locals("validatedEnrollmentList").(enrollmentValidator.EnrollmentListQuery)

	result, err := h.coordinator.List(c.UserContext(), middleware.Identity(c), q.Filter, q.Page)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Enrollments fetched successfully!", result)
}

func (h *Handler) GetEnrollment(c *fiber.Ctx) error {
	e, err := h.coordinator.FindOne(c.UserContext(), c.Params("id"), middleware.Identity(c))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Enrollment fetched successfully!", e)
}

// ProcessEnrollment approves or rejects a PENDING enrollment.
func (h *Handler) ProcessEnrollment(c *fiber.Ctx) error {
	decision := c.Locals("decision").(course.EnrollmentStatus)
	who := middleware.Identity(c)

	e, err := h.coordinator.Process(c.UserContext(), c.Params("id"), decision, who.UserID)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Enrollment processed successfully!", e)
}

func (h *Handler) CancelEnrollment(c *fiber.Ctx) error {
	who := middleware.Identity(c)

	e, err := h.coordinator.Cancel(c.UserContext(), c.Params("id"), who.UserID)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Enrollment cancelled successfully!", e)
}
