package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lunia-systems/lunia-console/internal/actions"
	"github.com/lunia-systems/lunia-console/internal/api"
	"github.com/lunia-systems/lunia-console/internal/audit"
	"github.com/lunia-systems/lunia-console/internal/branding"
	"github.com/lunia-systems/lunia-console/internal/config"
	"github.com/lunia-systems/lunia-console/internal/middleware"
	"github.com/lunia-systems/lunia-console/internal/model"
	"github.com/lunia-systems/lunia-console/internal/pkg/logger"
	"github.com/lunia-systems/lunia-console/internal/service"
	"github.com/lunia-systems/lunia-console/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestRouter assembles the console against a stubbed control API, the
// same wiring the binary uses minus the poll loops.
func newTestRouter(t *testing.T, upstream http.Handler) (*gin.Engine, *session.Store, *audit.Ring) {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	client := api.NewClient(srv.URL, 5*time.Second)
	repo := session.NewFileRepo(filepath.Join(t.TempDir(), "session.json"))
	sessions := session.NewStore(client, repo, "USER", logger.Discard())
	brand := branding.NewResolver(client, model.Branding{BrandName: "Lunia Console"}, logger.Discard())
	console := service.NewConsole(cfg, client, sessions, brand)

	ring := audit.NewRing(audit.DefaultCapacity)
	dispatcher := actions.NewDispatcher(client, sessions, ring, 0, 0)
	h := NewConsoleHandler(console, sessions, dispatcher, ring)

	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.GET("/login", h.LoginInfo)
	r.POST("/login", h.Login)
	r.POST("/logout", h.Logout)
	r.GET("/session", h.Session)
	r.PATCH("/session", h.PatchSession)
	r.GET("/audit/local", h.LocalAudit)
	r.GET("/surfaces/:name", middleware.RoleGuard(sessions), h.Surface)
	r.POST("/actions/:name", middleware.ControlGuard(sessions), h.Action)
	return r, sessions, ring
}

func stubControlAPI(loginRole model.Role) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if loginRole == "" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{"error": "invalid credentials"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"data": model.LoginResponse{
			AccessToken: "tok-abcdef123456",
			Role:        loginRole,
			UserID:      5,
		}})
	})
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"data": model.UserProfile{
			ID: 5, Email: "t@example.com", Role: loginRole, IsActive: true,
		}})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{}}`))
	})
	return mux
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

func TestLoginReturnsRoleAndSurfaces(t *testing.T) {
	r, _, _ := newTestRouter(t, stubControlAPI(model.RoleTrader))

	w := doJSON(r, http.MethodPost, "/login", `{"email":"t@example.com","password":"pw"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Role     model.Role `json:"role"`
		Surfaces []string   `json:"surfaces"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Role != model.RoleTrader {
		t.Fatalf("role = %s, want TRADER", resp.Role)
	}
	found := false
	for _, s := range resp.Surfaces {
		if s == "trader" {
			found = true
		}
	}
	if !found {
		t.Fatalf("surfaces = %v, want trader included", resp.Surfaces)
	}
}

func TestLoginBadCredentialsIsUnauthorized(t *testing.T) {
	r, _, _ := newTestRouter(t, stubControlAPI(""))

	w := doJSON(r, http.MethodPost, "/login", `{"email":"t@example.com","password":"bad"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d, want 401", w.Code)
	}
	if !strings.Contains(w.Body.String(), "AUTH_FAILED") {
		t.Fatalf("body = %s, want AUTH_FAILED code", w.Body.String())
	}
}

func TestSessionMasksCredentials(t *testing.T) {
	r, _, _ := newTestRouter(t, stubControlAPI(model.RoleAdmin))

	w := doJSON(r, http.MethodPatch, "/session", `{"admin_token":"super-secret-admin-token"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("patch code = %d", w.Code)
	}

	w = doJSON(r, http.MethodGet, "/session", "")
	body := w.Body.String()
	if strings.Contains(body, "super-secret-admin-token") {
		t.Fatal("session view must not expose raw tokens")
	}
	if !strings.Contains(body, "supe****oken") {
		t.Fatalf("body = %s, want masked token", body)
	}
}

func TestPatchSessionRejectsUnknownRole(t *testing.T) {
	r, sessions, _ := newTestRouter(t, stubControlAPI(model.RoleAdmin))

	w := doJSON(r, http.MethodPatch, "/session", `{"role":"SUPERUSER"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400", w.Code)
	}
	if sessions.Current().Role != model.RoleUser {
		t.Fatal("rejected patch must not mutate the identity")
	}
}

func TestPanelSurfaceBundle(t *testing.T) {
	r, _, _ := newTestRouter(t, stubControlAPI(model.RoleUser))

	w := doJSON(r, http.MethodGet, "/surfaces/panel", "")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}

	var resp struct {
		Surface       string                     `json:"surface"`
		ControlAccess bool                       `json:"control_access"`
		Resources     map[string]json.RawMessage `json:"resources"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Surface != "panel" {
		t.Fatalf("surface = %s", resp.Surface)
	}
	if resp.ControlAccess {
		t.Fatal("USER must not have control access")
	}
	for _, key := range []string{"status", "portfolio", "balances", "signals"} {
		if _, ok := resp.Resources[key]; !ok {
			t.Fatalf("panel bundle missing %s", key)
		}
	}
}

func TestActionRecordsLocalAudit(t *testing.T) {
	r, sessions, ring := newTestRouter(t, stubControlAPI(model.RoleTrader))

	role := model.RoleTrader
	sessions.Apply(model.IdentityPatch{Role: &role})

	w := doJSON(r, http.MethodPost, "/actions/auto_on", "")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, body = %s", w.Code, w.Body.String())
	}

	entries := ring.Entries()
	if len(entries) != 1 || entries[0].Action != "auto_on" || !entries[0].OK {
		t.Fatalf("ring = %+v", entries)
	}

	w = doJSON(r, http.MethodGet, "/audit/local", "")
	if !strings.Contains(w.Body.String(), "auto_on") {
		t.Fatalf("local audit body = %s", w.Body.String())
	}
}

func TestUnknownActionIsNotFound(t *testing.T) {
	r, sessions, _ := newTestRouter(t, stubControlAPI(model.RoleAdmin))

	role := model.RoleAdmin
	sessions.Apply(model.IdentityPatch{Role: &role})

	w := doJSON(r, http.MethodPost, "/actions/self_destruct", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("code = %d, want 404", w.Code)
	}
}

func TestLogoutResetsSession(t *testing.T) {
	r, sessions, _ := newTestRouter(t, stubControlAPI(model.RoleAdmin))

	w := doJSON(r, http.MethodPost, "/login", `{"email":"a@example.com","password":"pw"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login code = %d", w.Code)
	}
	if sessions.Current().Role != model.RoleAdmin {
		t.Fatal("login did not elevate the role")
	}

	w = doJSON(r, http.MethodPost, "/logout", "")
	if w.Code != http.StatusOK {
		t.Fatalf("logout code = %d", w.Code)
	}
	if !sessions.Current().Anonymous() {
		t.Fatal("logout must drop credentials and profile")
	}
}
