package server

import (
	"github.com/rockymount114/City-Workflow/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// ListActiveApplications handles GET /api/applications
// @Summary List requestable applications
// @Description Active applications with their custom fields, newest first.
// @Tags applications
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Application
// @Failure 401 {object} models.ErrorResponse
// @Router /applications [get]
func (s *Server) ListActiveApplications(c *fiber.Ctx) error {
	apps, err := s.applications.List(c.UserContext(), true)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(apps)
}

// ListApplications handles GET /api/admin/applications
// @Summary List applications
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Application
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/applications [get]
func (s *Server) ListApplications(c *fiber.Ctx) error {
	apps, err := s.applications.List(c.UserContext(), false)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(apps)
}

// GetApplication handles GET /api/admin/applications/:id
// @Summary Get application
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Success 200 {object} models.Application
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/applications/{id} [get]
func (s *Server) GetApplication(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	app, err := s.applications.Get(c.UserContext(), id)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(app)
}

// CreateApplication handles POST /api/admin/applications
// @Summary Create application
// @Description Creates an application and its custom fields. Names are unique.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param application body validation.ApplicationInput true "Application"
// @Success 201 {object} models.Application
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/applications [post]
func (s *Server) CreateApplication(c *fiber.Ctx) error {
	var in validation.ApplicationInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	app, err := s.applications.Create(c.UserContext(), actorFrom(c), in)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(app)
}

// UpdateApplication handles PUT /api/admin/applications/:id
// @Summary Update application
// @Description Partial update. A customFields array replaces the whole field set.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Param application body validation.ApplicationPatch true "Changes"
// @Success 200 {object} models.Application
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/applications/{id} [put]
func (s *Server) UpdateApplication(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var patch validation.ApplicationPatch
	if err := parseBody(c, &patch); err != nil {
		return nil
	}
	app, err := s.applications.Update(c.UserContext(), actorFrom(c), id, patch)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(app)
}

// DeleteApplication handles DELETE /api/admin/applications/:id
// @Summary Delete application
// @Description Deletes the application with its fields and requests.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/applications/{id} [delete]
func (s *Server) DeleteApplication(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.applications.Delete(c.UserContext(), actorFrom(c), id); err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Application deleted successfully"})
}
