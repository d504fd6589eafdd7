package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lunia-systems/lunia-console/internal/authz"
	"github.com/lunia-systems/lunia-console/internal/model"
	"github.com/lunia-systems/lunia-console/internal/pkg/apperrors"
)

const ContextSurfaceKey = "surface"

// IdentitySource yields the role current at request time.
type IdentitySource interface {
	Current() model.Identity
}

// RoleGuard protects surface routes. A role outside the surface's allowed
// set is redirected to the login surface rather than handed an error.
func RoleGuard(sessions IdentitySource) gin.HandlerFunc {
	return func(c *gin.Context) {
		surface, ok := authz.ParseSurface(c.Param("name"))
		if !ok {
			c.Error(apperrors.New(apperrors.ErrNotFound, "unknown surface", nil))
			c.Abort()
			return
		}

		role := sessions.Current().Role
		if !authz.Allowed(role, surface) {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}

		c.Set(ContextSurfaceKey, surface)
		c.Next()
	}
}

// ControlGuard gates the mutating action routes on the control-access
// capability. Unlike surface navigation this is a hard failure, not a
// redirect; the dispatcher re-checks before every remote call.
func ControlGuard(sessions IdentitySource) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := sessions.Current().Role
		if !authz.HasControlAccess(role) {
			c.Error(apperrors.NewForbidden("role " + string(role) + " cannot issue control actions"))
			c.Abort()
			return
		}
		c.Next()
	}
}
