package middleware

import (
	"context"

	"github.com/rockymount114/City-Workflow/internal/models"

	"github.com/gofiber/fiber/v2"
)

// PrincipalLocal is the fiber locals key holding the authenticated principal.
const PrincipalLocal = "principal"

type principalKey struct{}

// WithPrincipal stores p in ctx and adds the logging keys for it.
func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	ctx = context.WithValue(ctx, principalKey{}, p)
	ctx = context.WithValue(ctx, UserIDKey, p.UserID)
	return context.WithValue(ctx, RoleKey, string(p.Role))
}

// PrincipalFrom returns the principal stored by WithPrincipal.
func PrincipalFrom(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(models.Principal)
	return p, ok
}

// SetPrincipal records p on both the fiber locals and the user context.
func SetPrincipal(c *fiber.Ctx, p models.Principal) {
	c.Locals(PrincipalLocal, p)
	c.Locals("userID", p.UserID)
	c.SetUserContext(WithPrincipal(c.UserContext(), p))
}

// CurrentPrincipal reads the principal set by SetPrincipal.
func CurrentPrincipal(c *fiber.Ctx) (models.Principal, bool) {
	p, ok := c.Locals(PrincipalLocal).(models.Principal)
	return p, ok
}

// RequireRoles rejects principals whose role is not listed. It must run
// after the authentication middleware.
func RequireRoles(roles ...models.Role) fiber.Handler {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *fiber.Ctx) error {
		p, ok := CurrentPrincipal(c)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}
		if _, ok := allowed[p.Role]; !ok {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Insufficient permissions"))
		}
		return c.Next()
	}
}
