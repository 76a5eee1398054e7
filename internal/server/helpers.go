package server

import (
	"errors"
	"log/slog"
	"strings"
	"unicode"

	"github.com/rockymount114/City-Workflow/internal/middleware"
	"github.com/rockymount114/City-Workflow/internal/models"
	"github.com/rockymount114/City-Workflow/internal/repository"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// parsePage extracts page and pageSize query parameters.
func parsePage(c *fiber.Ctx) repository.Page {
	size := c.QueryInt("pageSize", defaultPageSize)
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	return repository.Page{Number: page, Size: size}
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
// The error message is derived from the parameter name (e.g. "id" -> "Invalid ID",
// "userId" -> "Invalid user ID").
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// parseQueryID reads an optional positive id from the query string. A
// missing parameter yields 0.
func parseQueryID(c *fiber.Ctx, name string) (uint, error) {
	if c.Query(name) == "" {
		return 0, nil
	}
	id := c.QueryInt(name, -1)
	if id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(name)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "userId" -> "user ID", "entityId" -> "entity ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		prefix := param[:len(param)-2]
		words := splitCamel(prefix)
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

// parseBody decodes the JSON body into dest, answering 400 on failure.
func parseBody(c *fiber.Ctx, dest any) error {
	if err := c.BodyParser(dest); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}

// respondAppError writes err with the status its code maps to. Internal
// errors are logged with their cause, which never reaches the client.
func respondAppError(c *fiber.Ctx, err error) error {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		appErr = models.NewInternalError(err)
	}
	status := appErr.HTTPStatus()
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Any("error", err))
	}
	return models.RespondWithError(c, status, appErr)
}

// principal returns the caller set by AuthRequired.
func principal(c *fiber.Ctx) models.Principal {
	p, _ := middleware.CurrentPrincipal(c)
	return p
}

// clientIP is the first X-Forwarded-For entry, else the peer address.
func clientIP(c *fiber.Ctx) string {
	for _, ip := range c.IPs() {
		if ip = strings.TrimSpace(ip); ip != "" {
			return ip
		}
	}
	return c.IP()
}

// actorFrom builds the audited actor for the current request.
func actorFrom(c *fiber.Ctx) models.Actor {
	rid, _ := c.Locals("requestid").(string)
	return models.Actor{
		Principal: principal(c),
		Meta: models.RequestMeta{
			IPAddress: clientIP(c),
			UserAgent: c.Get(fiber.HeaderUserAgent),
			RequestID: rid,
		},
	}
}
