package authz

import (
	"testing"

	"github.com/lunia-systems/lunia-console/internal/model"
)

func TestAdminAllowedEverywhere(t *testing.T) {
	for _, s := range Surfaces() {
		if !Allowed(model.RoleAdmin, s) {
			t.Fatalf("ADMIN denied surface %s", s)
		}
	}
}

func TestEverySurfaceHasAllowedRoles(t *testing.T) {
	for _, s := range Surfaces() {
		if len(AllowedSurfaces(model.RoleAdmin)) == 0 {
			t.Fatalf("surface %s unreachable by any role", s)
		}
		if len(allowedRoles[s]) == 0 {
			t.Fatalf("surface %s has an empty role set", s)
		}
	}
}

func TestSurfaceRoleTable(t *testing.T) {
	cases := []struct {
		role    model.Role
		surface Surface
		want    bool
	}{
		{model.RoleUser, SurfacePanel, true},
		{model.RoleUser, SurfaceSystem, true},
		{model.RoleUser, SurfaceDocs, true},
		{model.RoleUser, SurfaceTrader, false},
		{model.RoleUser, SurfaceFund, false},
		{model.RoleUser, SurfaceAdmin, false},
		{model.RoleTrader, SurfaceTrader, true},
		{model.RoleTrader, SurfaceFund, false},
		{model.RoleTrader, SurfaceAdmin, false},
		{model.RoleFund, SurfaceFund, true},
		{model.RoleFund, SurfaceTrader, false},
		{model.RoleFund, SurfaceAdmin, false},
	}
	for _, tc := range cases {
		if got := Allowed(tc.role, tc.surface); got != tc.want {
			t.Errorf("Allowed(%s, %s) = %v, want %v", tc.role, tc.surface, got, tc.want)
		}
	}
}

func TestUnknownSurfaceDenied(t *testing.T) {
	if Allowed(model.RoleAdmin, Surface("settings")) {
		t.Fatal("unknown surface must be denied for every role")
	}
	if _, ok := ParseSurface("settings"); ok {
		t.Fatal("ParseSurface accepted an unknown segment")
	}
}

func TestAllowedSurfacesPerRole(t *testing.T) {
	got := AllowedSurfaces(model.RoleTrader)
	want := []Surface{SurfacePanel, SurfaceTrader, SurfaceSystem, SurfaceDocs}
	if len(got) != len(want) {
		t.Fatalf("TRADER surfaces = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("TRADER surfaces = %v, want %v", got, want)
		}
	}
}

func TestControlAccess(t *testing.T) {
	if HasControlAccess(model.RoleUser) || HasControlAccess(model.RoleFund) {
		t.Fatal("control access must be limited to TRADER and ADMIN")
	}
	if !HasControlAccess(model.RoleTrader) || !HasControlAccess(model.RoleAdmin) {
		t.Fatal("TRADER and ADMIN must have control access")
	}
}
