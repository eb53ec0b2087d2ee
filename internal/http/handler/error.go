package handler

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"

	"tumourscan/internal/auth"
	"tumourscan/internal/detection"
	"tumourscan/internal/http/middleware"
	"tumourscan/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// writeError writes a standardized JSON error response without leaking internal errors.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return writeErrorDetails(c, status, code, message, nil)
}

func writeErrorDetails(c *fiber.Ctx, status int, code, message string, details map[string]string) error {
	res := errorPayload{
		RequestID: middleware.RequestIDFrom(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
	return c.Status(status).JSON(res)
}

type errorMapping struct {
	target error
	status int
	code   string
}

// errorMappings is checked in order with errors.Is; the first match wins.
var errorMappings = []errorMapping{
	{service.ErrIDRequired, fiber.StatusBadRequest, "ID_REQUIRED"},
	{service.ErrInvalidID, fiber.StatusBadRequest, "INVALID_ID"},
	{service.ErrReaderNil, fiber.StatusBadRequest, "FILE_REQUIRED"},
	{service.ErrInvalidScanType, fiber.StatusBadRequest, "INVALID_SCAN_TYPE"},
	{service.ErrUnsupportedFileType, fiber.StatusUnsupportedMediaType, "UNSUPPORTED_FILE_TYPE"},
	{service.ErrFileTooLarge, fiber.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"},
	{service.ErrImageNotFound, fiber.StatusNotFound, "NOT_FOUND"},
	{service.ErrAnalysisNotFound, fiber.StatusNotFound, "NOT_FOUND"},
	{service.ErrPatientNotFound, fiber.StatusNotFound, "NOT_FOUND"},
	{service.ErrUserNotFound, fiber.StatusNotFound, "NOT_FOUND"},
	{service.ErrAnalysisInProgress, fiber.StatusConflict, "CONFLICT"},
	{service.ErrEmailTaken, fiber.StatusConflict, "CONFLICT"},
	{service.ErrPatientCodeTaken, fiber.StatusConflict, "CONFLICT"},
	{service.ErrInvalidCredentials, fiber.StatusUnauthorized, "UNAUTHORIZED"},
	{auth.ErrInvalidToken, fiber.StatusUnauthorized, "UNAUTHORIZED"},
	{service.ErrAccountInactive, fiber.StatusForbidden, "FORBIDDEN"},
	{detection.ErrInferenceTimeout, fiber.StatusGatewayTimeout, "TIMEOUT"},
	{detection.ErrProviderUnavailable, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
}

// respondError translates a service error into the standard envelope.
// Unmapped errors become 500 and are kept in locals for the request logger.
func respondError(c *fiber.Ctx, err error) error {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		details := make(map[string]string, len(verrs))
		for field, fe := range verrs {
			details[field] = fe.Error()
		}
		return writeErrorDetails(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "validation failed", details)
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return writeError(c, m.status, m.code, m.target.Error())
		}
	}

	c.Locals(middleware.ErrorLocalKey, err)
	return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var e *fiber.Error
		if !errors.As(err, &e) {
			return respondError(c, err)
		}

		switch e.Code {
		case fiber.StatusBadRequest:
			return writeError(c, e.Code, "BAD_REQUEST", "bad request")
		case fiber.StatusUnauthorized:
			return writeError(c, e.Code, "UNAUTHORIZED", e.Message)
		case fiber.StatusForbidden:
			return writeError(c, e.Code, "FORBIDDEN", e.Message)
		case fiber.StatusNotFound:
			return writeError(c, e.Code, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, e.Code, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, e.Code, "FILE_TOO_LARGE", "request body too large")
		case fiber.StatusTooManyRequests:
			return writeError(c, e.Code, "RATE_LIMITED", e.Message)
		default:
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
	}
}
