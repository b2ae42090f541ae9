package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/StefanHaberl/VoiceFox/internal/pkg/env"
)

// InternalKeyAuthMiddleware guards the machine-to-machine endpoints called by
// the inference service. These carry a shared key, not a user API key.
func InternalKeyAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		expected := env.GetEnv("INFERENCE_CALLBACK_KEY", "")
		if expected == "" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "unavailable", "message": "Callback channel not configured"})
		}

		provided := strings.TrimSpace(c.Get("X-Internal-Api-Key"))
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid internal key"})
		}

		return c.Next()
	}
}
