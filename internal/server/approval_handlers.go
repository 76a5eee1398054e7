package server

import (
	"github.com/rockymount114/City-Workflow/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// GetApprovalQueue handles GET /api/approvals/queue
// @Summary Approval queue
// @Description Pending requests whose current step the caller may decide.
// @Tags approvals
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} service.PageResult[models.ApplicationRequest]
// @Failure 403 {object} models.ErrorResponse
// @Router /approvals/queue [get]
func (s *Server) GetApprovalQueue(c *fiber.Ctx) error {
	page, err := s.requests.Queue(c.UserContext(), principal(c), parsePage(c))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(page)
}

// ActOnRequest handles POST /api/approvals/:id/actions
// @Summary Act on request
// @Description APPROVE, REJECT, REQUEST_CHANGES or DELEGATE the current approval step.
// @Tags approvals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Request ID"
// @Param action body validation.ApprovalInput true "Action"
// @Success 200 {object} models.ApplicationRequest
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /approvals/{id}/actions [post]
func (s *Server) ActOnRequest(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var in validation.ApprovalInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	req, err := s.approvals.Act(c.UserContext(), actorFrom(c), id, in)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(req)
}
