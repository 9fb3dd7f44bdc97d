package server

import (
	"strconv"
	"strings"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/pagination"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SuccessResponse is the envelope for single-resource results.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Result  any    `json:"result"`
}

// ListResponse is the envelope for paginated listings.
type ListResponse struct {
	Success    bool              `json:"success"`
	Data       any               `json:"data"`
	Pagination *service.PageInfo `json:"pagination,omitempty"`
}

func respond(c *fiber.Ctx, status int, message string, result any) error {
	return c.Status(status).JSON(SuccessResponse{Success: true, Message: message, Result: result})
}

// respondError maps err onto its status and writes the failure envelope.
func respondError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.StatusForError(err), err)
}

func invalidBody(c *fiber.Ctx) error {
	return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
}

// actor returns the caller resolved by the auth guard.
func actor(c *fiber.Ctx) service.Actor {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return service.Actor{}
	}
	return service.Actor{ID: id.UserID, Role: id.Role}
}

// pageFromQuery passes the raw page/limit/sort values through the normalizer.
// Absent parameters stay nil so defaults apply.
func pageFromQuery(c *fiber.Ctx) pagination.Params {
	opt := func(key string) any {
		if v := c.Query(key); v != "" {
			return v
		}
		return nil
	}
	return pagination.Normalize(pagination.Options{
		Page:      opt("page"),
		Limit:     opt("limit"),
		SortBy:    opt("sortBy"),
		SortOrder: opt("sortOrder"),
	})
}

// splitTags reads a comma separated tag list, dropping blanks.
func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// optionalBool parses "true"/"false"; anything else means no filter.
func optionalBool(raw string) *bool {
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	return &b
}
