package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	apperrors "github.com/evalforge/evalforge/api/internal/pkg/errors"
	"github.com/evalforge/evalforge/api/internal/validator"
)

// userIDHeader carries the caller identity established by the upstream
// gateway; this service never authenticates, it only reads the result.
const userIDHeader = "X-User-ID"

// callerID reads the authenticated caller id forwarded by the gateway
func callerID(c *fiber.Ctx) (uuid.UUID, error) {
	return uuid.Parse(c.Get(userIDHeader))
}

// Pagination represents pagination parameters for list operations.
type Pagination struct {
	Limit  int
	Offset int
}

// DefaultPagination provides default pagination values.
var DefaultPagination = Pagination{Limit: 50, Offset: 0}

// ParsePagination extracts limit and offset query parameters with validation.
func ParsePagination(c *fiber.Ctx, maxLimit int) Pagination {
	p := Pagination{
		Limit:  parseQueryInt(c, "limit", DefaultPagination.Limit),
		Offset: parseQueryInt(c, "offset", DefaultPagination.Offset),
	}

	if p.Limit < 0 {
		p.Limit = DefaultPagination.Limit
	}
	if maxLimit > 0 && p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}

	return p
}

func parseQueryInt(c *fiber.Ctx, key string, defaultValue int) int {
	val := c.Query(key)
	if val == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return intVal
}

// parseQueryUUID parses a UUID query parameter. Returns nil if the
// parameter is empty or invalid.
func parseQueryUUID(c *fiber.Ctx, key string) *uuid.UUID {
	val := c.Query(key)
	if val == "" {
		return nil
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return nil
	}
	return &id
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errorResponse creates a standardized JSON error response.
func errorResponse(c *fiber.Ctx, statusCode int, message string) error {
	errorName := "Error"
	switch statusCode {
	case fiber.StatusBadRequest:
		errorName = "Bad Request"
	case fiber.StatusNotFound:
		errorName = "Not Found"
	case fiber.StatusConflict:
		errorName = "Conflict"
	case fiber.StatusInternalServerError:
		errorName = "Internal Server Error"
	}

	return c.Status(statusCode).JSON(ErrorResponse{
		Error:   errorName,
		Message: message,
	})
}

// serviceError maps an error from the service layer onto an HTTP
// response, preserving the application error taxonomy.
func serviceError(c *fiber.Ctx, err error) error {
	if validator.IsValidationError(err) {
		return errorResponse(c, fiber.StatusBadRequest, err.Error())
	}
	if appErr := apperrors.GetAppError(err); appErr != nil {
		return errorResponse(c, appErr.StatusCode, appErr.Message)
	}
	return errorResponse(c, fiber.StatusInternalServerError, "An unexpected error occurred")
}
