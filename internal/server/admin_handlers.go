package server

import (
	"strings"

	"github.com/rockymount114/City-Workflow/internal/models"
	"github.com/rockymount114/City-Workflow/internal/repository"
	"github.com/rockymount114/City-Workflow/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// GetAnalytics handles GET /api/admin/analytics
// @Summary Request analytics
// @Description Aggregates over the range; unknown ranges fall back to 30d.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param range query string false "7d, 30d, 90d or 1y"
// @Success 200 {object} service.Analytics
// @Router /admin/analytics [get]
func (s *Server) GetAnalytics(c *fiber.Ctx) error {
	out, err := s.analytics.Analytics(c.UserContext(), principal(c), c.Query("range"))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(out)
}

// GetDashboardStats handles GET /api/admin/dashboard/stats
// @Summary Dashboard counts
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.DashboardStats
// @Router /admin/dashboard/stats [get]
func (s *Server) GetDashboardStats(c *fiber.Ctx) error {
	out, err := s.analytics.DashboardStats(c.UserContext(), principal(c))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(out)
}

// ListUsers handles GET /api/admin/users
// @Summary List users
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param role query string false "Role filter"
// @Param q query string false "Name or email search"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} service.PageResult[models.User]
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/users [get]
func (s *Server) ListUsers(c *fiber.Ctx) error {
	page, err := s.users.List(c.UserContext(), repository.UserFilter{
		Role:   models.Role(c.Query("role")),
		Search: strings.TrimSpace(c.Query("q")),
		Page:   parsePage(c),
	})
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(page)
}

// GetUser handles GET /api/admin/users/:id
// @Summary Get user
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/users/{id} [get]
func (s *Server) GetUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.users.Get(c.UserContext(), id)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(user)
}

// CreateUser handles POST /api/admin/users
// @Summary Create user
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param user body validation.UserInput true "User"
// @Success 201 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/users [post]
func (s *Server) CreateUser(c *fiber.Ctx) error {
	var in validation.UserInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	user, err := s.users.Create(c.UserContext(), actorFrom(c), in)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// UpdateUser handles PUT /api/admin/users/:id
// @Summary Update user
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param user body validation.UserPatch true "Changes"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/users/{id} [put]
func (s *Server) UpdateUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var patch validation.UserPatch
	if err := parseBody(c, &patch); err != nil {
		return nil
	}
	user, err := s.users.Update(c.UserContext(), actorFrom(c), id, patch)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(user)
}

// DeleteUser handles DELETE /api/admin/users/:id
// @Summary Delete user
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/users/{id} [delete]
func (s *Server) DeleteUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.users.Delete(c.UserContext(), actorFrom(c), id); err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "User deleted successfully"})
}

// UnlockUser handles POST /api/admin/users/:id/unlock
// @Summary Unlock user
// @Description Clears the lockout and failed login counter.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/users/{id}/unlock [post]
func (s *Server) UnlockUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.users.Unlock(c.UserContext(), actorFrom(c), id)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(user)
}

// ListAuditLogs handles GET /api/admin/audit-logs
// @Summary List audit logs
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param entityType query string false "APPLICATION, USER or REQUEST"
// @Param entityId query int false "Entity ID"
// @Param actorId query int false "Acting user ID"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} service.PageResult[models.AuditLog]
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/audit-logs [get]
func (s *Server) ListAuditLogs(c *fiber.Ctx) error {
	f := repository.AuditFilter{Page: parsePage(c)}

	if raw := strings.ToUpper(strings.TrimSpace(c.Query("entityType"))); raw != "" {
		switch et := models.EntityType(raw); et {
		case models.EntityApplication, models.EntityUser, models.EntityRequest:
			f.EntityType = et
		default:
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Unknown entity type"))
		}
	}

	var err error
	if f.EntityID, err = parseQueryID(c, "entityId"); err != nil {
		return nil
	}
	if f.ActorID, err = parseQueryID(c, "actorId"); err != nil {
		return nil
	}

	page, err := s.audit.List(c.UserContext(), f)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(page)
}
