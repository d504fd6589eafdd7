package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lunia-systems/lunia-console/internal/actions"
	"github.com/lunia-systems/lunia-console/internal/audit"
	"github.com/lunia-systems/lunia-console/internal/authz"
	"github.com/lunia-systems/lunia-console/internal/middleware"
	"github.com/lunia-systems/lunia-console/internal/model"
	"github.com/lunia-systems/lunia-console/internal/pkg/apperrors"
	"github.com/lunia-systems/lunia-console/internal/poller"
	"github.com/lunia-systems/lunia-console/internal/service"
	"github.com/lunia-systems/lunia-console/internal/session"
)

type ConsoleHandler struct {
	console    *service.Console
	sessions   *session.Store
	dispatcher *actions.Dispatcher
	ring       *audit.Ring
}

func NewConsoleHandler(console *service.Console, sessions *session.Store, dispatcher *actions.Dispatcher, ring *audit.Ring) *ConsoleHandler {
	return &ConsoleHandler{
		console:    console,
		sessions:   sessions,
		dispatcher: dispatcher,
		ring:       ring,
	}
}

// resourceView is the wire form of one polled resource's state.
type resourceView struct {
	Data        any    `json:"data,omitempty"`
	Error       string `json:"error,omitempty"`
	Loading     bool   `json:"loading"`
	LastUpdated string `json:"last_updated,omitempty"`
}

func view[T any](s poller.State[T]) resourceView {
	out := resourceView{Loading: s.Loading}
	if s.Data != nil {
		out.Data = s.Data
	}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	if !s.LastUpdated.IsZero() {
		out.LastUpdated = s.LastUpdated.Format(time.RFC3339)
	}
	return out
}

// Login authenticates against the control API and installs the session.
func (h *ConsoleHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest("email and password required"))
		return
	}
	if err := h.sessions.Login(c.Request.Context(), req.Email, req.Password); err != nil {
		if reqErr, ok := apperrors.IsRequestError(err); ok && reqErr.Status == http.StatusUnauthorized {
			c.Error(apperrors.New(apperrors.ErrAuthFailed, reqErr.Message, err))
			return
		}
		c.Error(err)
		return
	}

	id := h.sessions.Current()
	c.JSON(http.StatusOK, gin.H{
		"role":     id.Role,
		"surfaces": authz.AllowedSurfaces(id.Role),
		"user":     id.User,
	})
}

// LoginInfo serves the branding and role context the login surface needs.
func (h *ConsoleHandler) LoginInfo(c *gin.Context) {
	id := h.sessions.Current()
	c.JSON(http.StatusOK, gin.H{
		"branding": h.console.Branding.Current(),
		"role":     id.Role,
		"surfaces": authz.AllowedSurfaces(id.Role),
	})
}

func (h *ConsoleHandler) Logout(c *gin.Context) {
	h.sessions.Logout()
	c.JSON(http.StatusOK, gin.H{"role": h.sessions.Current().Role})
}

type identityPatchRequest struct {
	Role        *string `json:"role,omitempty"`
	TenantID    *string `json:"tenant_id,omitempty"`
	BearerToken *string `json:"bearer_token,omitempty"`
	AdminToken  *string `json:"admin_token,omitempty"`
	OpsToken    *string `json:"ops_token,omitempty"`
}

// PatchSession merges manual token entry and tenant switching into the
// identity. Absent fields are left untouched.
func (h *ConsoleHandler) PatchSession(c *gin.Context) {
	var req identityPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest("invalid session patch"))
		return
	}

	patch := model.IdentityPatch{
		TenantID:    req.TenantID,
		BearerToken: req.BearerToken,
		AdminToken:  req.AdminToken,
		OpsToken:    req.OpsToken,
	}
	if req.Role != nil {
		role, ok := model.ParseRole(*req.Role)
		if !ok {
			c.Error(apperrors.NewInvalidRequest("unknown role " + *req.Role))
			return
		}
		patch.Role = &role
	}

	h.sessions.Apply(patch)
	c.JSON(http.StatusOK, h.sessionView())
}

// Session exposes the current identity with credentials masked.
func (h *ConsoleHandler) Session(c *gin.Context) {
	c.JSON(http.StatusOK, h.sessionView())
}

func (h *ConsoleHandler) sessionView() gin.H {
	id := h.sessions.Current()
	return gin.H{
		"role":       id.Role,
		"tenant_id":  id.TenantID,
		"user":       id.User,
		"expires_at": id.ExpiresAt,
		"expired":    id.Expired(time.Now()),
		"credentials": gin.H{
			"bearer": maskToken(id.Credentials.BearerToken),
			"admin":  maskToken(id.Credentials.AdminToken),
			"ops":    maskToken(id.Credentials.OpsToken),
		},
		"surfaces":       authz.AllowedSurfaces(id.Role),
		"control_access": authz.HasControlAccess(id.Role),
	}
}

func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "****" + token[len(token)-4:]
}

// Surface bundles the polled resources one dashboard surface shows. The
// role guard has already vetted access by the time this runs.
func (h *ConsoleHandler) Surface(c *gin.Context) {
	surface := c.MustGet(middleware.ContextSurfaceKey).(authz.Surface)
	id := h.sessions.Current()

	resources := gin.H{}
	switch surface {
	case authz.SurfacePanel:
		resources["status"] = view(h.console.Status.Snapshot())
		resources["portfolio"] = view(h.console.Portfolio.Snapshot())
		resources["balances"] = view(h.console.Balances.Snapshot())
		resources["signals"] = view(h.console.Signals.Snapshot())
	case authz.SurfaceTrader:
		resources["status"] = view(h.console.Status.Snapshot())
		resources["portfolio"] = view(h.console.Portfolio.Snapshot())
		resources["balances"] = view(h.console.Balances.Snapshot())
		resources["signals"] = view(h.console.Signals.Snapshot())
		resources["arb_opps"] = view(h.console.Opps.Snapshot())
		resources["activity"] = view(h.console.Activity.Snapshot())
	case authz.SurfaceFund:
		resources["status"] = view(h.console.Status.Snapshot())
		resources["capital"] = view(h.console.Capital.Snapshot())
		resources["portfolio"] = view(h.console.Portfolio.Snapshot())
		resources["activity"] = view(h.console.Activity.Snapshot())
	case authz.SurfaceAdmin:
		resources["status"] = view(h.console.Status.Snapshot())
		resources["activity"] = view(h.console.Activity.Snapshot())
		resources["logs"] = view(h.console.Logs.Snapshot())
		h.attachAdminResources(c, id, resources)
	case authz.SurfaceSystem:
		resources["status"] = view(h.console.Status.Snapshot())
		resources["activity"] = view(h.console.Activity.Snapshot())
		resources["logs"] = view(h.console.Logs.Snapshot())
	case authz.SurfaceDocs:
		resources["api_base"] = h.console.Client.BaseURL()
	}

	c.JSON(http.StatusOK, gin.H{
		"surface":        surface,
		"role":           id.Role,
		"branding":       h.console.Branding.Current(),
		"control_access": authz.HasControlAccess(id.Role),
		"resources":      resources,
	})
}

// attachAdminResources fetches the admin datasets on demand; these are
// point-in-time reads, not polled state.
func (h *ConsoleHandler) attachAdminResources(c *gin.Context, id model.Identity, resources gin.H) {
	ctx := c.Request.Context()

	if users, err := h.console.Client.Users(ctx, id); err == nil {
		resources["users"] = users
	} else {
		resources["users_error"] = err.Error()
	}
	if flags, err := h.console.Client.Flags(ctx, id); err == nil {
		resources["flags"] = flags
	} else {
		resources["flags_error"] = err.Error()
	}
	if limits, err := h.console.Client.Limits(ctx, id); err == nil {
		resources["limits"] = limits
	} else {
		resources["limits_error"] = err.Error()
	}
	if events, err := h.console.Client.Audit(ctx, model.AuditQuery{Limit: 100}, id); err == nil {
		resources["audit"] = events
	} else {
		resources["audit_error"] = err.Error()
	}
}

// LocalAudit serves the console's own action ring, newest first.
func (h *ConsoleHandler) LocalAudit(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": h.ring.Entries()})
}

// Action dispatches one named control action. The dispatcher records the
// outcome in the local ring either way.
func (h *ConsoleHandler) Action(c *gin.Context) {
	name := c.Param("name")
	ctx := c.Request.Context()

	var err error
	switch name {
	case "auto_on":
		err = h.dispatcher.AutoOn(ctx)
	case "auto_off":
		err = h.dispatcher.AutoOff(ctx)
	case "start_all":
		err = h.dispatcher.StartAll(ctx)
	case "stop_all":
		err = h.dispatcher.StopAll(ctx)
	case "set_ops_state":
		var patch map[string]any
		if bindErr := c.ShouldBindJSON(&patch); bindErr != nil {
			c.Error(apperrors.NewInvalidRequest("invalid state patch"))
			return
		}
		err = h.dispatcher.SetOpsState(ctx, patch)
	case "set_spot_risk":
		var cfg model.SpotRiskConfig
		if bindErr := c.ShouldBindJSON(&cfg); bindErr != nil {
			c.Error(apperrors.NewInvalidRequest("invalid risk config"))
			return
		}
		err = h.dispatcher.SetSpotRisk(ctx, cfg)
	case "set_strategy_weights":
		var req model.StrategyWeightsRequest
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			c.Error(apperrors.NewInvalidRequest("invalid strategy weights"))
			return
		}
		err = h.dispatcher.SetStrategyWeights(ctx, req)
	case "spot_trade":
		var req model.TradeRequest
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			c.Error(apperrors.NewInvalidRequest("invalid trade request"))
			return
		}
		err = h.dispatcher.SpotTradeDemo(ctx, req)
	case "futures_trade":
		var req model.FuturesTradeRequest
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			c.Error(apperrors.NewInvalidRequest("invalid trade request"))
			return
		}
		err = h.dispatcher.FuturesTradeDemo(ctx, req)
	case "post_signal":
		var payload model.SignalsEnvelope
		if bindErr := c.ShouldBindJSON(&payload); bindErr != nil {
			c.Error(apperrors.NewInvalidRequest("invalid signal payload"))
			return
		}
		err = h.dispatcher.PostSignal(ctx, payload)
	case "research_now":
		var params map[string]any
		_ = c.ShouldBindJSON(&params)
		err = h.dispatcher.ResearchAnalyzeNow(ctx, params)
	case "ai_run":
		err = h.dispatcher.AIRun(ctx)
	case "create_user":
		var req model.UserCreateRequest
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			c.Error(apperrors.NewInvalidRequest("invalid user request"))
			return
		}
		err = h.dispatcher.CreateUser(ctx, req)
	case "update_flag":
		var req struct {
			Key   string          `json:"key"`
			Value json.RawMessage `json:"value"`
		}
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil || req.Key == "" {
			c.Error(apperrors.NewInvalidRequest("invalid flag update"))
			return
		}
		err = h.dispatcher.UpdateFlag(ctx, req.Key, req.Value)
	case "upsert_limit":
		var entry model.LimitEntry
		if bindErr := c.ShouldBindJSON(&entry); bindErr != nil {
			c.Error(apperrors.NewInvalidRequest("invalid limit entry"))
			return
		}
		err = h.dispatcher.UpsertLimit(ctx, entry)
	default:
		c.Error(apperrors.New(apperrors.ErrNotFound, "unknown action "+name, nil))
		return
	}

	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"action": name, "ok": true})
}
