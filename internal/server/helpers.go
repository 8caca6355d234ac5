package server

import (
	"errors"
	"strings"
	"unicode"

	"inkwell/internal/auth"
	"inkwell/internal/middleware"
	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// respondError writes err with the status its code implies. Internal errors
// are logged here because their details never reach the client.
func respondError(c *fiber.Ctx, err error) error {
	status := models.StatusForError(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request error",
			"method", c.Method(), "path", c.Path(), "status", status, "error", err)
	}
	return models.RespondWithError(c, status, err)
}

// ErrorHandler is the fiber fallback for errors handlers did not write
// themselves, such as unknown routes and oversized bodies.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		if fe.Code >= fiber.StatusInternalServerError {
			return respondError(c, models.NewInternalError(fe))
		}
		return models.RespondWithError(c, fe.Code, &models.AppError{
			Code:    codeForStatus(fe.Code),
			Message: fe.Message,
		})
	}
	return respondError(c, err)
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusUnauthorized:
		return models.CodeUnauthorized
	case fiber.StatusForbidden:
		return models.CodeForbidden
	case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
		return models.CodeNotFound
	case fiber.StatusConflict:
		return models.CodeConflict
	case fiber.StatusServiceUnavailable:
		return models.CodeUnavailable
	}
	if status < fiber.StatusInternalServerError {
		return models.CodeValidation
	}
	return models.CodeInternal
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
// The error message is derived from the parameter name (e.g. "id" -> "Invalid ID",
// "commentId" -> "Invalid comment ID").
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "userId" -> "user ID", "commentId" -> "comment ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// parseBody decodes the JSON body into dst, answering 400 on malformed input.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}

// AuthRequired returns the authentication middleware. It stores the caller's
// id and claims in locals for the handlers behind it.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := s.guard.Authenticate(c.UserContext(), c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return respondError(c, err)
		}

		c.Locals("userID", claims.UserID)
		c.Locals("claims", claims)
		c.SetUserContext(middleware.WithUserID(c.UserContext(), claims.UserID))
		return c.Next()
	}
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := s.guard.RequireRole(c.UserContext(), currentUserID(c), models.RoleAdmin); err != nil {
			return respondError(c, err)
		}
		return c.Next()
	}
}

// optionalUserID identifies the caller on public routes. A missing or bad
// token reads as anonymous.
func (s *Server) optionalUserID(c *fiber.Ctx) uint {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return 0
	}
	claims, err := s.guard.Authenticate(c.UserContext(), header)
	if err != nil {
		return 0
	}
	return claims.UserID
}

func currentUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}

func currentClaims(c *fiber.Ctx) *auth.Claims {
	claims, _ := c.Locals("claims").(*auth.Claims)
	return claims
}
