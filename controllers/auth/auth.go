package authController

import (
	"time"

	"courseportal/apperrors"
	"courseportal/config"
	"courseportal/middleware"
	"courseportal/models"
	"courseportal/services/users"
	"courseportal/utils"
	authValidator "courseportal/validators/auth"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	users *users.Store
	jwt   config.JWTConfig
}

func NewHandler(store *users.Store, jwt config.JWTConfig) *Handler {
	return &Handler{users: store, jwt: jwt}
}

type loginResponse struct {
	User *models.User `json:"user"`
	middleware.TokenPair
}

// Signup registers a student account.
func (h *Handler) Signup(c *fiber.Ctx) error {
	reqData := c.Locals("validatedUser").(*authValidator.SignupRequest)

	user, err := h.users.Create(c.UserContext(), users.NewUser{
		Email:     reqData.Email,
		Password:  reqData.Password,
		Role:      models.RoleStudent,
		FirstName: reqData.FirstName,
		LastName:  reqData.LastName,
	})
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "User registered successfully!", user)
}

func (h *Handler) Login(c *fiber.Ctx) error {
	reqData := c.Locals("validatedUser").(*authValidator.LoginRequest)

	user, err := h.users.Authenticate(c.UserContext(), reqData.Email, reqData.Password, users.LoginMeta{
		IP:     c.IP(),
		Device: c.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}

	tokens, err := middleware.GenerateTokens(user, h.jwt)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Login successful!", loginResponse{User: user, TokenPair: tokens})
}

// RefreshToken trades a refresh token for a new pair. The old refresh
// token is revoked.
func (h *Handler) RefreshToken(c *fiber.Ctx) error {
	token := c.Locals("refreshToken").(string)
	ctx := c.UserContext()

	claims, err := middleware.ParseToken(token, h.jwt.RefreshSecret, middleware.TokenRefresh)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	revoked, err := h.users.IsRevoked(ctx, token)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	if revoked {
		return middleware.ErrorResponse(c, apperrors.New(apperrors.CodeUnauthorized, "refresh token revoked"))
	}

	user, err := h.users.FindByID(ctx, claims.UserID)
	if apperrors.IsNotFound(err) {
		return middleware.ErrorResponse(c, apperrors.ErrInvalidCredentials)
	}
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}

	tokens, err := middleware.GenerateTokens(user, h.jwt)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	if err := h.users.RevokeToken(ctx, token, user.ID, claims.ExpiresAt.Time); err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Token refreshed successfully!", loginResponse{User: user, TokenPair: tokens})
}

// Logout revokes the access token the request was made with.
func (h *Handler) Logout(c *fiber.Ctx) error {
	token, _ := c.Locals("token").(string)
	expiry, _ := c.Locals("tokenExpiry").(time.Time)
	who := middleware.Identity(c)

	if err := h.users.RevokeToken(c.UserContext(), token, who.UserID, expiry); err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Logged out successfully!", nil)
}

func (h *Handler) Me(c *fiber.Ctx) error {
	user, err := h.users.FindByID(c.UserContext(), middleware.Identity(c).UserID)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Profile fetched successfully!", user)
}

func (h *Handler) LoginHistoryList(c *fiber.Ctx) error {
	page := c.Locals("validatedLoginHistory").(utils.Page)

	history, err := h.users.LoginHistory(c.UserContext(), middleware.Identity(c).UserID, page)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Login history fetched successfully!", history)
}
