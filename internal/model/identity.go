package model

import (
	"time"
)

// Role is the coarse authorization level the control API assigns a session.
type Role string

const (
	RoleUser   Role = "USER"
	RoleTrader Role = "TRADER"
	RoleFund   Role = "FUND"
	RoleAdmin  Role = "ADMIN"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleTrader, RoleFund, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

// Credentials are the header tokens the console may attach to requests.
// All fields are independently optional; anonymous mode carries none.
type Credentials struct {
	BearerToken string `json:"bearer_token,omitempty"`
	AdminToken  string `json:"admin_token,omitempty"`
	OpsToken    string `json:"ops_token,omitempty"`
}

func (c Credentials) Empty() bool {
	return c.BearerToken == "" && c.AdminToken == "" && c.OpsToken == ""
}

// UserProfile mirrors the control API's /auth/me payload.
type UserProfile struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	Role        Role       `json:"role"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// Identity is the console's effective identity: role, tenant, credentials
// and, when someone has logged in, the authenticated profile. Exactly one
// Identity is live per process; the session store owns it.
type Identity struct {
	Role        Role         `json:"role"`
	TenantID    string       `json:"tenant_id,omitempty"`
	Credentials Credentials  `json:"credentials"`
	User        *UserProfile `json:"user,omitempty"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
}

// DefaultIdentity is the anonymous identity used before login and after
// logout. An invalid role string falls back to USER.
func DefaultIdentity(role string) Identity {
	r, ok := ParseRole(role)
	if !ok {
		r = RoleUser
	}
	return Identity{Role: r}
}

func (i Identity) Anonymous() bool {
	return i.Credentials.Empty() && i.User == nil
}

// Expired reports whether the bearer session has lapsed. An identity with
// no recorded expiry never expires locally.
func (i Identity) Expired(now time.Time) bool {
	if i.ExpiresAt == nil || i.Credentials.BearerToken == "" {
		return false
	}
	return now.After(*i.ExpiresAt)
}

// IdentityPatch is a partial identity update. Nil fields are left alone so
// manual token entry and tenant switching never clobber unrelated facets.
type IdentityPatch struct {
	Role        *Role
	TenantID    *string
	BearerToken *string
	AdminToken  *string
	OpsToken    *string
	User        *UserProfile
	ExpiresAt   *time.Time
}

// Merge applies the patch on top of the identity and returns the result.
func (p IdentityPatch) Merge(base Identity) Identity {
	out := base
	if p.Role != nil {
		out.Role = *p.Role
	}
	if p.TenantID != nil {
		out.TenantID = *p.TenantID
	}
	if p.BearerToken != nil {
		out.Credentials.BearerToken = *p.BearerToken
	}
	if p.AdminToken != nil {
		out.Credentials.AdminToken = *p.AdminToken
	}
	if p.OpsToken != nil {
		out.Credentials.OpsToken = *p.OpsToken
	}
	if p.User != nil {
		out.User = p.User
	}
	if p.ExpiresAt != nil {
		out.ExpiresAt = p.ExpiresAt
	}
	if out.Role == "" {
		out.Role = base.Role
	}
	return out
}
