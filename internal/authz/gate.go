package authz

import (
	"github.com/lunia-systems/lunia-console/internal/model"
)

// Surface is a protected area of the console, one per dashboard page.
type Surface string

const (
	SurfacePanel  Surface = "panel"
	SurfaceTrader Surface = "trader"
	SurfaceFund   Surface = "fund"
	SurfaceAdmin  Surface = "admin"
	SurfaceSystem Surface = "system"
	SurfaceDocs   Surface = "docs"
)

// allowedRoles is static configuration, not computed state. Every surface
// has a non-empty set and ADMIN appears in all of them.
var allowedRoles = map[Surface][]model.Role{
	SurfacePanel:  {model.RoleUser, model.RoleTrader, model.RoleFund, model.RoleAdmin},
	SurfaceTrader: {model.RoleTrader, model.RoleAdmin},
	SurfaceFund:   {model.RoleFund, model.RoleAdmin},
	SurfaceAdmin:  {model.RoleAdmin},
	SurfaceSystem: {model.RoleUser, model.RoleTrader, model.RoleFund, model.RoleAdmin},
	SurfaceDocs:   {model.RoleUser, model.RoleTrader, model.RoleFund, model.RoleAdmin},
}

// Surfaces lists every defined surface.
func Surfaces() []Surface {
	return []Surface{SurfacePanel, SurfaceTrader, SurfaceFund, SurfaceAdmin, SurfaceSystem, SurfaceDocs}
}

// ParseSurface maps a route segment onto a surface.
func ParseSurface(s string) (Surface, bool) {
	switch Surface(s) {
	case SurfacePanel, SurfaceTrader, SurfaceFund, SurfaceAdmin, SurfaceSystem, SurfaceDocs:
		return Surface(s), true
	}
	return "", false
}

// Allowed reports whether the role may see the surface. Unknown surfaces
// are denied.
func Allowed(role model.Role, surface Surface) bool {
	for _, r := range allowedRoles[surface] {
		if r == role {
			return true
		}
	}
	return false
}

// AllowedSurfaces returns the surfaces visible to the role.
func AllowedSurfaces(role model.Role) []Surface {
	out := make([]Surface, 0, len(allowedRoles))
	for _, s := range Surfaces() {
		if Allowed(role, s) {
			out = append(out, s)
		}
	}
	return out
}

// HasControlAccess gates mutating actions, distinct from read-only
// navigation. Only the two elevated operational roles may issue controls.
func HasControlAccess(role model.Role) bool {
	return role == model.RoleTrader || role == model.RoleAdmin
}

func IsAdmin(role model.Role) bool {
	return role == model.RoleAdmin
}
