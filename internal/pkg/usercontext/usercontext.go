package usercontext

import (
	"github.com/gofiber/fiber/v2"
)

// Locals keys set by the auth middleware.
const (
	KeyUserContext = "USER_CONTEXT"
	KeyUserID      = "USER_ID"
)

// UserContext carries the authenticated caller through a request.
type UserContext struct {
	UserID     uint
	Username   string
	IsLoggedIn bool
	IsAdmin    bool
}

// FromCtx reads the user context the middleware attached, if any.
func FromCtx(c *fiber.Ctx) UserContext {
	if uc, ok := c.Locals(KeyUserContext).(UserContext); ok {
		return uc
	}
	return UserContext{}
}
