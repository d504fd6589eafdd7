package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/lunia-systems/lunia-console/internal/authz"
	"github.com/lunia-systems/lunia-console/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mutableIdentity struct {
	mu sync.Mutex
	id model.Identity
}

func (m *mutableIdentity) Current() model.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id
}

func (m *mutableIdentity) set(id model.Identity) {
	m.mu.Lock()
	m.id = id
	m.mu.Unlock()
}

func newGuardedRouter(source IdentitySource) *gin.Engine {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/surfaces/:name", RoleGuard(source), func(c *gin.Context) {
		surface := c.MustGet(ContextSurfaceKey).(authz.Surface)
		c.JSON(http.StatusOK, gin.H{"surface": string(surface)})
	})
	r.POST("/actions/:name", ControlGuard(source), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"dispatched": c.Param("name")})
	})
	return r
}

func doRequest(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestRoleGuardRedirectsDisallowedRole(t *testing.T) {
	source := &mutableIdentity{id: model.Identity{Role: model.RoleUser}}
	r := newGuardedRouter(source)

	for _, surface := range []string{"admin", "trader", "fund"} {
		w := doRequest(r, http.MethodGet, "/surfaces/"+surface)
		if w.Code != http.StatusFound {
			t.Fatalf("GET /surfaces/%s as USER: code = %d, want 302", surface, w.Code)
		}
		if loc := w.Header().Get("Location"); loc != "/login" {
			t.Fatalf("redirect target = %q, want /login", loc)
		}
	}
}

func TestRoleGuardAdmitsAdminEverywhere(t *testing.T) {
	source := &mutableIdentity{id: model.Identity{Role: model.RoleAdmin}}
	r := newGuardedRouter(source)

	for _, surface := range authz.Surfaces() {
		w := doRequest(r, http.MethodGet, "/surfaces/"+string(surface))
		if w.Code != http.StatusOK {
			t.Fatalf("GET /surfaces/%s as ADMIN: code = %d, want 200", surface, w.Code)
		}
	}
}

func TestRoleGuardUnknownSurfaceIsNotFound(t *testing.T) {
	source := &mutableIdentity{id: model.Identity{Role: model.RoleAdmin}}
	r := newGuardedRouter(source)

	w := doRequest(r, http.MethodGet, "/surfaces/settings")
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown surface: code = %d, want 404", w.Code)
	}
}

func TestRoleGuardReadsIdentityPerRequest(t *testing.T) {
	source := &mutableIdentity{id: model.Identity{Role: model.RoleUser}}
	r := newGuardedRouter(source)

	if w := doRequest(r, http.MethodGet, "/surfaces/admin"); w.Code != http.StatusFound {
		t.Fatalf("pre-login: code = %d, want 302", w.Code)
	}

	source.set(model.Identity{Role: model.RoleAdmin})
	if w := doRequest(r, http.MethodGet, "/surfaces/admin"); w.Code != http.StatusOK {
		t.Fatalf("post-elevation: code = %d, want 200", w.Code)
	}
}

func TestControlGuardForbidsReadOnlyRoles(t *testing.T) {
	for _, role := range []model.Role{model.RoleUser, model.RoleFund} {
		source := &mutableIdentity{id: model.Identity{Role: role}}
		r := newGuardedRouter(source)

		w := doRequest(r, http.MethodPost, "/actions/auto_on")
		if w.Code != http.StatusForbidden {
			t.Fatalf("POST /actions/auto_on as %s: code = %d, want 403", role, w.Code)
		}
	}
}

func TestControlGuardAdmitsOperationalRoles(t *testing.T) {
	for _, role := range []model.Role{model.RoleTrader, model.RoleAdmin} {
		source := &mutableIdentity{id: model.Identity{Role: role}}
		r := newGuardedRouter(source)

		w := doRequest(r, http.MethodPost, "/actions/auto_on")
		if w.Code != http.StatusOK {
			t.Fatalf("POST /actions/auto_on as %s: code = %d, want 200", role, w.Code)
		}
	}
}
