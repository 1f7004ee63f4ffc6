// Package middleware guards the authoring routes. The node edits exactly
// one identity, so there are no user accounts; a static bearer token keeps
// strangers off the mutation endpoints.
package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v3"
)

// AuthMiddleware checks authoring requests against a configured token.
type AuthMiddleware struct {
	token string
}

// NewAuthMiddleware creates a new auth middleware instance. An empty token
// disables the check, for local single-user deployments.
func NewAuthMiddleware(token string) *AuthMiddleware {
	return &AuthMiddleware{token: token}
}

// RequireToken ensures the request carries the configured bearer token.
func (m *AuthMiddleware) RequireToken(c fiber.Ctx) error {
	if m.token == "" {
		return c.Next()
	}

	presented, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(m.token)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"status": "error",
			"error":  "missing or invalid bearer token",
		})
	}
	return c.Next()
}
