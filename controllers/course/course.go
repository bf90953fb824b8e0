package courseController

import (
	"courseportal/middleware"
	"courseportal/services/courses"
	courseValidator "courseportal/validators/course"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	store   *courses.Store
	catalog *courses.Catalog
}

func NewHandler(store *courses.Store, catalog *courses.Catalog) *Handler {
	return &Handler{store: store, catalog: catalog}
}

func (h *Handler) CreateCourse(c *fiber.Ctx) error {
	input := c.Locals("validatedCourse").(courses.CreateInput)
	who := middleware.Identity(c)

	created, err := h.store.Create(c.UserContext(), input, who.UserID)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Course created successfully!", created)
}

func (h *Handler) CourseList(c *fiber.Ctx) error {
	q := c.Locals("validatedCourseList").(courseValidator.CourseListQuery)

	result, err := h.catalog.List(c.UserContext(), middleware.Identity(c), q.Filter, q.Page)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Courses fetched successfully!", result)
}

func (h *Handler) GetCourse(c *fiber.Ctx) error {
	view, err := h.catalog.Get(c.UserContext(), c.Params("id"), middleware.Identity(c))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Course fetched successfully!", view)
}

// UpdateCourse applies a partial update guarded by the version the client
// last read.
func (h *Handler) UpdateCourse(c *fiber.Ctx) error {
	upd := c.Locals("validatedCourseUpdate").(courseValidator.CourseUpdate)
	who := middleware.Identity(c)

	updated, err := h.store.ConditionalUpdate(c.UserContext(), c.Params("id"), upd.Patch, who.UserID, upd.Version)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Course updated successfully!", updated)
}

func (h *Handler) DeleteCourse(c *fiber.Ctx) error {
	if err := h.store.Remove(c.UserContext(), c.Params("id")); err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Course deleted successfully!", nil)
}

func (h *Handler) CourseVersions(c *fiber.Ctx) error {
	versions, err := h.catalog.History(c.UserContext(), c.Params("id"), middleware.Identity(c))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Course versions fetched successfully!", versions)
}
