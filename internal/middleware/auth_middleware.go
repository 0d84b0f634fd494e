package middleware

import (
	"strings"

	"go-pos-engine/internal/access"
	"go-pos-engine/pkg/jwt"

	"github.com/gofiber/fiber/v2"
)

const principalKey = "principal"

// RequireAuth validates the bearer token and stores the caller in context.
func RequireAuth(signer *jwt.Signer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Get Authorization header
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(401).JSON(fiber.Map{"error": "Missing authorization token"})
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return c.Status(401).JSON(fiber.Map{"error": "Invalid authorization format. Use: Bearer <token>"})
		}

		claims, err := signer.ValidateToken(parts[1])
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": "Invalid or expired token"})
		}

		c.Locals(principalKey, access.Principal{
			UserID:   claims.UserID,
			TenantID: claims.TenantID,
			Name:     claims.Name,
			Role:     claims.Role,
		})
		return c.Next()
	}
}

// PrincipalFrom returns the caller stored by RequireAuth.
func PrincipalFrom(c *fiber.Ctx) (access.Principal, bool) {
	p, ok := c.Locals(principalKey).(access.Principal)
	return p, ok
}

// RequireCapability rejects callers whose role may not perform action.
func RequireCapability(policy *access.Policy, action access.Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := PrincipalFrom(c)
		if !ok {
			return c.Status(401).JSON(fiber.Map{"error": "Not authenticated"})
		}

		if !policy.Can(p.Role, action) {
			return c.Status(403).JSON(fiber.Map{
				"error": "Forbidden: role '" + p.Role + "' cannot perform '" + string(action) + "'",
			})
		}
		return c.Next()
	}
}
