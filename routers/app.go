// Package routers assembles the HTTP application.
package routers

import (
	"strings"

	"courseportal/config"
	authControllers "courseportal/controllers/auth"
	courseControllers "courseportal/controllers/course"
	enrollmentControllers "courseportal/controllers/enrollment"
	"courseportal/middleware"
	"courseportal/routers/authRoutes"
	"courseportal/routers/courseRoutes"
	"courseportal/routers/enrollmentRoutes"
	"courseportal/services/admission"
	"courseportal/services/courses"
	"courseportal/services/users"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Services are the dependencies of the HTTP handlers.
type Services struct {
	Users       *users.Store
	Courses     *courses.Store
	Catalog     *courses.Catalog
	Coordinator *admission.Coordinator
}

// NewApp builds the fiber app with every route mounted.
func NewApp(cfg *config.Config, svc Services) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "courseportal",
		ErrorHandler: middleware.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.CORSOrigins, ","),
		AllowMethods: "GET,POST,PATCH,PUT,DELETE",
		AllowHeaders: "Content-Type,Authorization",
	}))

	// Enable the built-in logger middleware to log all requests
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status} ${latency}\n",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	auth := middleware.JWTMiddleware(cfg.JWT.AccessSecret, svc.Users)

	authRoutes.SetupAuthRoutes(app, authControllers.NewHandler(svc.Users, cfg.JWT), auth)
	courseRoutes.SetupCourseRoutes(app, courseControllers.NewHandler(svc.Courses, svc.Catalog), auth)
	enrollmentRoutes.SetupEnrollmentRoutes(app, enrollmentControllers.NewHandler(svc.Coordinator), auth)

	return app
}
