package enrollmentRoutes

import (
	controllers "courseportal/controllers/enrollment"
	"courseportal/middleware"
	"courseportal/models"
	validators "courseportal/validators/enrollment"

	"github.com/gofiber/fiber/v2"
)

// SetupEnrollmentRoutes sets up enrollment requests and their processing
func SetupEnrollmentRoutes(app fiber.Router, h *controllers.Handler, auth fiber.Handler) {
	enrollmentGroup := app.Group("/enrollments", auth)

	enrollmentGroup.Post("/", middleware.RequireRoles(models.RoleStudent), validators.CreateEnrollment(), h.EnrollCourse)
	enrollmentGroup.Get("/", validators.EnrollmentList(), h.EnrollmentList)
	enrollmentGroup.Get("/:id", validators.EnrollmentID(), h.GetEnrollment)
	enrollmentGroup.Patch("/:id/process", middleware.RequireRoles(models.RoleManager), validators.EnrollmentID(), validators.ProcessEnrollment(), h.ProcessEnrollment)
	enrollmentGroup.Delete("/:id", middleware.RequireRoles(models.RoleStudent), validators.EnrollmentID(), h.CancelEnrollment)
}
