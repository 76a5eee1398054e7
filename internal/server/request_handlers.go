package server

import (
	"strings"

	"github.com/rockymount114/City-Workflow/internal/models"
	"github.com/rockymount114/City-Workflow/internal/validation"

	"github.com/gofiber/fiber/v2"
)

var requestStatuses = []models.RequestStatus{
	models.RequestSubmitted,
	models.RequestUnderReview,
	models.RequestChangesRequested,
	models.RequestApproved,
	models.RequestRejected,
}

// parseStatus reads the optional status filter.
func parseStatus(c *fiber.Ctx) (models.RequestStatus, error) {
	raw := strings.ToUpper(strings.TrimSpace(c.Query("status")))
	if raw == "" {
		return "", nil
	}
	for _, st := range requestStatuses {
		if models.RequestStatus(raw) == st {
			return st, nil
		}
	}
	_ = models.RespondWithError(c, fiber.StatusBadRequest,
		models.NewValidationError("Unknown status filter"))
	return "", errResponseWritten
}

// SubmitRequest handles POST /api/requests
// @Summary Submit access request
// @Description Submits a request for access to an active application. Custom field values are checked against the application's fields.
// @Tags requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body validation.RequestInput true "Request"
// @Success 201 {object} models.ApplicationRequest
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /requests [post]
func (s *Server) SubmitRequest(c *fiber.Ctx) error {
	var in validation.RequestInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	req, err := s.requests.Submit(c.UserContext(), actorFrom(c), in)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(req)
}

// ListMyRequests handles GET /api/requests
// @Summary List own requests
// @Tags requests
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status filter"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} service.PageResult[models.ApplicationRequest]
// @Router /requests [get]
func (s *Server) ListMyRequests(c *fiber.Ctx) error {
	status, err := parseStatus(c)
	if err != nil {
		return nil
	}
	page, err := s.requests.ListMine(c.UserContext(), principal(c), status, parsePage(c))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(page)
}

// GetRequest handles GET /api/requests/:id
// @Summary Get request
// @Description Request detail with its approval steps.
// @Tags requests
// @Produce json
// @Security BearerAuth
// @Param id path int true "Request ID"
// @Success 200 {object} models.ApplicationRequest
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /requests/{id} [get]
func (s *Server) GetRequest(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	req, err := s.requests.Detail(c.UserContext(), principal(c), id)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(req)
}

// ResubmitRequest handles POST /api/requests/:id/resubmit
// @Summary Resubmit request
// @Description Sends a request in CHANGES_REQUESTED back to its current approval step.
// @Tags requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Request ID"
// @Param changes body validation.ResubmitInput true "Changes"
// @Success 200 {object} models.ApplicationRequest
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /requests/{id}/resubmit [post]
func (s *Server) ResubmitRequest(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var in validation.ResubmitInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	req, err := s.requests.Resubmit(c.UserContext(), actorFrom(c), id, in)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(req)
}
