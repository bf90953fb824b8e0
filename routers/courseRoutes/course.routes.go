package courseRoutes

import (
	controllers "courseportal/controllers/course"
	"courseportal/middleware"
	"courseportal/models"
	validators "courseportal/validators/course"

	"github.com/gofiber/fiber/v2"
)

// SetupCourseRoutes sets up the course catalogue and authoring routes
func SetupCourseRoutes(app fiber.Router, h *controllers.Handler, auth fiber.Handler) {
	courseGroup := app.Group("/courses", auth)
	authors := middleware.RequireRoles(models.RoleInstructor, models.RoleManager)

	courseGroup.Get("/", validators.CourseList(), h.CourseList)
	courseGroup.Post("/", authors, validators.CreateCourse(), h.CreateCourse)
	courseGroup.Get("/:id", validators.CourseID(), h.GetCourse)
	courseGroup.Patch("/:id", authors, validators.CourseID(), validators.UpdateCourse(), h.UpdateCourse)
	courseGroup.Delete("/:id", authors, validators.CourseID(), h.DeleteCourse)
	courseGroup.Get("/:id/versions", authors, validators.CourseID(), h.CourseVersions)
}
