package authRoutes

import (
	authControllers "courseportal/controllers/auth"
	authValidators "courseportal/validators/auth"

	"github.com/gofiber/fiber/v2"
)

func SetupAuthRoutes(app fiber.Router, h *authControllers.Handler, auth fiber.Handler) {
	authGroup := app.Group("/auth")

	authGroup.Post("/signup", authValidators.Signup(), h.Signup)
	authGroup.Post("/login", authValidators.Login(), h.Login)
	authGroup.Post("/refresh-token", authValidators.RefreshToken(), h.RefreshToken)
	authGroup.Post("/logout", auth, h.Logout)
	authGroup.Get("/me", auth, h.Me)
	authGroup.Get("/login/history", auth, authValidators.LoginHistoryList(), h.LoginHistoryList)
}
