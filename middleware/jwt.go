package middleware

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"courseportal/apperrors"
	"courseportal/config"
	"courseportal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

// Claims is the payload of both access and refresh tokens.
type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	Email  string `json:"email"`
	Type   string `json:"type"`
	jwt.RegisteredClaims
}

// TokenPair is what a successful login or refresh returns.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresInSec int64  `json:"expiresInSec"`
}

// GenerateTokens signs a fresh access and refresh token for the user
func GenerateTokens(user *models.User, cfg config.JWTConfig) (TokenPair, error) {
	now := time.Now()
	access, err := sign(user, TokenAccess, cfg.AccessSecret, now, cfg.AccessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := sign(user, TokenRefresh, cfg.RefreshSecret, now, cfg.RefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresInSec: int64(cfg.AccessTTL.Seconds())}, nil
}

func sign(user *models.User, tokenType, secret string, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID: user.ID,
		Role:   user.Role,
		Email:  user.Email,
		Type:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

// ParseToken validates signature, expiry and token type.
func ParseToken(tokenString, secret, tokenType string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Check if the token method is valid
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, apperrors.Wrap(apperrors.CodeUnauthorized, "invalid or expired token", err)
	}
	if claims.Type != tokenType || claims.UserID == "" {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "invalid token payload")
	}
	return claims, nil
}

// RevocationChecker tells whether a token was logged out.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// JWTMiddleware checks for a valid, unrevoked access token in the request
func JWTMiddleware(secret string, revoked RevocationChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return JsonResponse(c, fiber.StatusUnauthorized, false, "Missing or invalid Authorization header", nil)
		}

		// The token should be prefixed with "Bearer "
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return JsonResponse(c, fiber.StatusUnauthorized, false, "Invalid Authorization header format", nil)
		}
		tokenString := authHeader[len("Bearer "):]

		claims, err := ParseToken(tokenString, secret, TokenAccess)
		if err != nil {
			return JsonResponse(c, fiber.StatusUnauthorized, false, "Invalid or expired token", nil)
		}

		if revoked != nil {
			isRevoked, err := revoked.IsRevoked(c.UserContext(), tokenString)
			if err != nil {
				return ErrorResponse(c, err)
			}
			if isRevoked {
				return JsonResponse(c, fiber.StatusUnauthorized, false, "Token has been revoked", nil)
			}
		}

		c.Locals("userId", claims.UserID)
		c.Locals("role", claims.Role)
		c.Locals("token", tokenString)
		c.Locals("tokenExpiry", claims.ExpiresAt.Time)
		return c.Next()
	}
}

// Identity returns the caller resolved by JWTMiddleware.
func Identity(c *fiber.Ctx) models.Identity {
	userID, _ := c.Locals("userId").(string)
	role, _ := c.Locals("role").(string)
	return models.Identity{UserID: userID, Role: role}
}

func JsonResponse(c *fiber.Ctx, statusCode int, status bool, message string, data interface{}) error {
	return c.Status(statusCode).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"data":    data,
	})
}

func ValidationErrorResponse(c *fiber.Ctx, errors map[string]string) error {
	return JsonResponse(c, fiber.StatusUnprocessableEntity, false, "Validation failed!", errors)
}

// ErrorResponse renders a service error. Business errors answer with their
// code; anything else is logged and hidden behind a 500.
func ErrorResponse(c *fiber.Ctx, err error) error {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		log.Printf("[HTTP] %s %s: %v", c.Method(), c.Path(), err)
		return JsonResponse(c, fiber.StatusInternalServerError, false, "Internal server error!", nil)
	}
	data := fiber.Map{"error": appErr.Message}
	if len(appErr.Metadata) > 0 {
		data["metadata"] = appErr.Metadata
	}
	return JsonResponse(c, appErr.Code.HTTPStatus(), false, string(appErr.Code), data)
}

// ErrorHandler is the fiber.Config error handler.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return JsonResponse(c, fe.Code, false, fe.Message, nil)
	}
	return ErrorResponse(c, err)
}
