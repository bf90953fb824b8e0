package authValidator

import (
	"courseportal/validators"

	"github.com/gofiber/fiber/v2"
)

// SignupRequest is a student registration.
type SignupRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
}

// Signup validator middleware
func Signup() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData, ok, err := validators.Body[SignupRequest](c)
		if !ok {
			return err
		}
		c.Locals("validatedUser", reqData)
		return c.Next()
	}
}

// LoginRequest carries the credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// Login validator middleware
func Login() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData, ok, err := validators.Body[LoginRequest](c)
		if !ok {
			return err
		}
		c.Locals("validatedUser", reqData)
		return c.Next()
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

func RefreshToken() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData, ok, err := validators.Body[refreshRequest](c)
		if !ok {
			return err
		}
		c.Locals("refreshToken", reqData.RefreshToken)
		return c.Next()
	}
}

type loginHistoryQuery struct {
	validators.PageQuery
}

// Login History Validator middleware
func LoginHistoryList() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData, ok, err := validators.Query[loginHistoryQuery](c)
		if !ok {
			return err
		}
		c.Locals("validatedLoginHistory", reqData.ToPage())
		return c.Next()
	}
}
