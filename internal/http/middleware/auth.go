package middleware

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"

	"tumourscan/internal/auth"
	"tumourscan/internal/model"
)

// UserLocalKey is the Fiber locals key holding the authenticated *model.User.
const UserLocalKey = "user"

// Authenticator resolves a bearer token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// Authenticate requires "Authorization: Bearer <token>" and stores the resolved user.
// Rejections surface as fiber errors so the global ErrorHandler renders them.
func Authenticate(a Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		u, err := a.Authenticate(c.UserContext(), strings.TrimSpace(token))
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidToken):
				return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
			case errors.Is(err, auth.ErrAccountInactive):
				return fiber.NewError(fiber.StatusForbidden, auth.ErrAccountInactive.Error())
			default:
				return err
			}
		}

		c.Locals(UserLocalKey, u)
		return c.Next()
	}
}

// RequireRole lets through only users holding one of roles. It must run after Authenticate.
func RequireRole(roles ...model.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u := CurrentUser(c)
		if u == nil {
			return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
		}
		if !slices.Contains(roles, u.Role) {
			return fiber.NewError(fiber.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}

// CurrentUser returns the user stored by Authenticate, or nil.
func CurrentUser(c *fiber.Ctx) *model.User {
	u, _ := c.Locals(UserLocalKey).(*model.User)
	return u
}
