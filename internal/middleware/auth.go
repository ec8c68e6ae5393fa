package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"taskmanager/internal/token"
)

// UseToken authenticates a request from its Authorization header and stores
// the resolved identity in the request locals. Refresh tokens are not
// accepted here; only access tokens authorize API calls.
func UseToken(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"detail": "Authentication credentials were not provided.",
		})
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"detail": "Authorization header must be of the form: Bearer <token>",
		})
	}

	claims, err := token.Parse(parts[1], token.TypeAccess)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"detail": "Given token not valid for any token type",
		})
	}

	c.Locals("userID", int(claims["user_id"].(float64)))
	if username, ok := claims["username"].(string); ok {
		c.Locals("username", username)
	}
	return c.Next()
}
