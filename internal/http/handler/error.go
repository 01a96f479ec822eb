package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"pdfvault/internal/http/middleware"
	"pdfvault/internal/service"
	"pdfvault/internal/validator"
)

// Error codes returned to clients.
const (
	CodeFileRequired         = "FILE_REQUIRED"
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeInvalidID            = "INVALID_ID"
	CodeInvalidLimit         = "INVALID_LIMIT"
	CodeInvalidOffset        = "INVALID_OFFSET"
	CodeNotFound             = "NOT_FOUND"
	CodeStorageInconsistency = "STORAGE_INCONSISTENCY"
	CodePartialFailure       = "PARTIAL_FAILURE"
	CodeInternal             = "INTERNAL_ERROR"
	CodeUnavailable          = "SERVICE_UNAVAILABLE"
	CodeBadRequest           = "BAD_REQUEST"
	CodeMethodNotAllowed     = "METHOD_NOT_ALLOWED"
	CodeTooLarge             = "PAYLOAD_TOO_LARGE"
)

// errorPayload is the body of every failed request.
type errorPayload struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

func requestIDFromCtx(c *fiber.Ctx) string {
	if s, ok := c.Locals(middleware.RequestIDLocalKey).(string); ok {
		return s
	}
	return ""
}

// writeError writes the error envelope. message must be safe to show to clients.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(errorPayload{
		Success:   false,
		Error:     message,
		Code:      code,
		RequestID: requestIDFromCtx(c),
	})
}

// writeServiceError translates a DocumentService error kind into a response.
// Causes are never echoed; only validation reasons reach the client.
func writeServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return writeError(c, fiber.StatusBadRequest, CodeValidationFailed, validationMessage(err))
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, CodeNotFound, "document not found")
	case errors.Is(err, service.ErrInconsistent):
		return writeError(c, fiber.StatusInternalServerError, CodeStorageInconsistency, "document file is unavailable")
	case errors.Is(err, service.ErrPartialFailure):
		return writeError(c, fiber.StatusInternalServerError, CodePartialFailure, "document file was removed but its record could not be deleted")
	default:
		return writeError(c, fiber.StatusInternalServerError, CodeInternal, "internal server error")
	}
}

func validationMessage(err error) string {
	var rejected *validator.RejectedError
	switch {
	case errors.As(err, &rejected):
		return rejected.Reason
	case errors.Is(err, service.ErrNameRequired):
		return service.ErrNameRequired.Error()
	default:
		return "invalid upload"
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, CodeBadRequest, "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, CodeNotFound, "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, CodeMethodNotAllowed, "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, CodeTooLarge, "request body too large")
		default:
			return writeError(c, status, CodeInternal, "internal server error")
		}
	}
}
