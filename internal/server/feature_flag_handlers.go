package server

import "github.com/gofiber/fiber/v2"

// FeatureFlagView is one flag as the admin screen shows it.
type FeatureFlagView struct {
	Name string `json:"name"`
	// Rule is the configured value, e.g. "on", "25%" or "roles:ADMIN".
	Rule string `json:"rule"`
	// Enabled is the rule evaluated for the caller.
	Enabled bool `json:"enabled"`
	// Global reports whether background publishers see the flag as on.
	Global bool `json:"global"`
}

// GetFeatureFlags lists the configured flags and how they evaluate for the caller.
// @Summary Feature flags
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]any
// @Router /admin/feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	flags := s.featureFlags
	if flags == nil {
		return c.JSON(fiber.Map{
			"flags":     []FeatureFlagView{},
			"raw":       map[string]string{},
			"evaluated": map[string]bool{},
		})
	}

	p := principal(c)
	raw := flags.Raw()
	views := make([]FeatureFlagView, 0, len(raw))
	for _, name := range flags.Names() {
		views = append(views, FeatureFlagView{
			Name:    name,
			Rule:    raw[name],
			Enabled: flags.Enabled(name, p),
			Global:  flags.EnabledGlobally(name),
		})
	}
	return c.JSON(fiber.Map{
		"flags":     views,
		"raw":       raw,
		"evaluated": flags.Snapshot(p),
	})
}
