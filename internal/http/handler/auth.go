package handler

import (
	"github.com/gofiber/fiber/v2"

	"tumourscan/internal/http/middleware"
	"tumourscan/internal/service"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register godoc
// @Summary Create an account
// @Tags auth
// @Accept json
// @Produce json
// @Param body body service.RegisterInput true "account"
// @Success 201 {object} service.LoginResult
// @Failure 400 {object} errorPayload
// @Failure 409 {object} errorPayload
// @Router /api/auth/register [post]
func Register(svc service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in service.RegisterInput
		if err := c.BodyParser(&in); err != nil {
			return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		}
		res, err := svc.Register(c.UserContext(), in)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// Login godoc
// @Summary Exchange credentials for a bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param body body loginRequest true "credentials"
// @Success 200 {object} service.LoginResult
// @Failure 401 {object} errorPayload
// @Failure 403 {object} errorPayload
// @Router /api/auth/login [post]
func Login(svc service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req loginRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		}
		res, err := svc.Login(c.UserContext(), req.Email, req.Password)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	}
}

// Profile godoc
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.User
// @Failure 401 {object} errorPayload
// @Router /api/auth/profile [get]
func Profile(svc service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u := middleware.CurrentUser(c)
		if u == nil {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		}
		profile, err := svc.Profile(c.UserContext(), u.ID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(profile)
	}
}
