package middleware

import (
	"slices"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/docflow-api/internal/utils"
)

// Caller roles understood by the API.
const (
	AuthRoleAny      = "any"
	AuthRoleAdmin    = "admin"
	AuthRoleClient   = "client"
	AuthRoleReviewer = "reviewer"
)

const keyForbidden = "errors.forbidden"

// roleGrants lists the caller roles satisfying each required role. Admins may
// act as reviewers.
var roleGrants = map[string][]string{
	AuthRoleAdmin:    {AuthRoleAdmin},
	AuthRoleClient:   {AuthRoleClient},
	AuthRoleReviewer: {AuthRoleReviewer, AuthRoleAdmin},
}

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	Role        string
	RequireUser bool
}

// WithAuth guards a single route. Any role other than AuthRoleAny implies an
// authenticated caller.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	required := canonicalRole(opts.Role)
	if required == "" {
		required = AuthRoleAny
	}
	requireUser := opts.RequireUser || required != AuthRoleAny
	grants := roleGrants[required]

	return func(c *fiber.Ctx) error {
		if c.Locals("user_id") == nil {
			if requireUser {
				return utils.FailWithKey(c, fiber.StatusUnauthorized, "authentication required", keyUnauthorized)
			}
			return handler(c)
		}

		if required != AuthRoleAny && !slices.Contains(grants, roleFromLocals(c)) {
			return utils.FailWithKey(c, fiber.StatusForbidden, "insufficient permissions", keyForbidden)
		}
		return handler(c)
	}
}

func roleFromLocals(c *fiber.Ctx) string {
	role, _ := c.Locals("user_role").(string)
	return canonicalRole(role)
}
