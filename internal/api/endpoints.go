package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/lunia-systems/lunia-console/internal/model"
)

// Typed wrappers over the control API surface. Every call takes the
// caller's identity explicitly; nothing here caches credentials.

func (c *Client) Health(ctx context.Context, id model.Identity) (model.HealthResponse, error) {
	return call[model.HealthResponse](ctx, c, http.MethodGet, "/health", nil, id)
}

func (c *Client) Status(ctx context.Context, id model.Identity) (model.StatusSnapshot, error) {
	return call[model.StatusSnapshot](ctx, c, http.MethodGet, "/status", nil, id)
}

func (c *Client) Login(ctx context.Context, req model.LoginRequest) (model.LoginResponse, error) {
	return call[model.LoginResponse](ctx, c, http.MethodPost, "/auth/login", req, model.Identity{})
}

func (c *Client) CurrentUser(ctx context.Context, id model.Identity) (model.UserProfile, error) {
	return call[model.UserProfile](ctx, c, http.MethodGet, "/auth/me", nil, id)
}

func (c *Client) Activity(ctx context.Context, id model.Identity) (model.ActivityResponse, error) {
	return call[model.ActivityResponse](ctx, c, http.MethodGet, "/ops/activity", nil, id)
}

func (c *Client) OpsState(ctx context.Context, id model.Identity) (model.OpsState, error) {
	return call[model.OpsState](ctx, c, http.MethodGet, "/ops/state", nil, id)
}

func (c *Client) SetOpsState(ctx context.Context, patch map[string]any, id model.Identity) error {
	_, err := c.Send(ctx, http.MethodPost, "/ops/state", patch, id)
	return err
}

func (c *Client) AutoOn(ctx context.Context, id model.Identity) error {
	_, err := c.Send(ctx, http.MethodPost, "/ops/auto_on", nil, id)
	return err
}

func (c *Client) AutoOff(ctx context.Context, id model.Identity) error {
	_, err := c.Send(ctx, http.MethodPost, "/ops/auto_off", nil, id)
	return err
}

func (c *Client) StartAll(ctx context.Context, id model.Identity) error {
	_, err := c.Send(ctx, http.MethodPost, "/ops/start_all", nil, id)
	return err
}

func (c *Client) StopAll(ctx context.Context, id model.Identity) error {
	_, err := c.Send(ctx, http.MethodPost, "/ops/stop_all", nil, id)
	return err
}

func (c *Client) Portfolio(ctx context.Context, id model.Identity) (model.PortfolioSnapshot, error) {
	return call[model.PortfolioSnapshot](ctx, c, http.MethodGet, "/portfolio", nil, id)
}

func (c *Client) PortfolioAggregate(ctx context.Context, id model.Identity) (model.PortfolioAggregate, error) {
	return call[model.PortfolioAggregate](ctx, c, http.MethodGet, "/portfolio/snapshot", nil, id)
}

func (c *Client) Balances(ctx context.Context, id model.Identity) (model.BalancesResponse, error) {
	return call[model.BalancesResponse](ctx, c, http.MethodGet, "/balances", nil, id)
}

func (c *Client) ArbOpportunities(ctx context.Context, id model.Identity) (model.ArbitrageOpportunities, error) {
	return call[model.ArbitrageOpportunities](ctx, c, http.MethodGet, "/arbitrage/opps", nil, id)
}

func (c *Client) SignalsFeed(ctx context.Context, id model.Identity) (model.SignalsFeed, error) {
	return call[model.SignalsFeed](ctx, c, http.MethodGet, "/ai/signals", nil, id)
}

func (c *Client) SpotRisk(ctx context.Context, id model.Identity) (model.SpotRiskConfig, error) {
	return call[model.SpotRiskConfig](ctx, c, http.MethodGet, "/spot/risk", nil, id)
}

func (c *Client) SetSpotRisk(ctx context.Context, cfg model.SpotRiskConfig, id model.Identity) error {
	_, err := c.Send(ctx, http.MethodPost, "/spot/risk", cfg, id)
	return err
}

func (c *Client) SetStrategyWeights(ctx context.Context, req model.StrategyWeightsRequest, id model.Identity) error {
	_, err := c.Send(ctx, http.MethodPost, "/spot/strategies", req, id)
	return err
}

func (c *Client) Capital(ctx context.Context, id model.Identity) (model.CapitalSnapshot, error) {
	return call[model.CapitalSnapshot](ctx, c, http.MethodGet, "/ops/capital", nil, id)
}

func (c *Client) Logs(ctx context.Context, id model.Identity) (model.LogsResponse, error) {
	return call[model.LogsResponse](ctx, c, http.MethodGet, "/ops/logs", nil, id)
}

func (c *Client) Users(ctx context.Context, id model.Identity) ([]model.UserProfile, error) {
	out, err := call[model.ItemsEnvelope[model.UserProfile]](ctx, c, http.MethodGet, "/admin/users", nil, id)
	return out.Items, err
}

func (c *Client) CreateUser(ctx context.Context, req model.UserCreateRequest, id model.Identity) (model.UserProfile, error) {
	return call[model.UserProfile](ctx, c, http.MethodPost, "/admin/users", req, id)
}

func (c *Client) UpdateUser(ctx context.Context, userID int64, req model.UserUpdateRequest, id model.Identity) (model.UserProfile, error) {
	path := fmt.Sprintf("/admin/users/%d", userID)
	return call[model.UserProfile](ctx, c, http.MethodPut, path, req, id)
}

func (c *Client) Flags(ctx context.Context, id model.Identity) ([]model.FeatureFlag, error) {
	out, err := call[model.ItemsEnvelope[model.FeatureFlag]](ctx, c, http.MethodGet, "/admin/flags", nil, id)
	return out.Items, err
}

func (c *Client) Flag(ctx context.Context, key string, id model.Identity) (model.FeatureFlag, error) {
	return call[model.FeatureFlag](ctx, c, http.MethodGet, "/admin/flags/"+url.PathEscape(key), nil, id)
}

func (c *Client) UpdateFlag(ctx context.Context, key string, value json.RawMessage, id model.Identity) (model.FeatureFlag, error) {
	body := map[string]json.RawMessage{"value": value}
	return call[model.FeatureFlag](ctx, c, http.MethodPut, "/admin/flags/"+url.PathEscape(key), body, id)
}

func (c *Client) Limits(ctx context.Context, id model.Identity) ([]model.LimitEntry, error) {
	out, err := call[model.ItemsEnvelope[model.LimitEntry]](ctx, c, http.MethodGet, "/admin/limits", nil, id)
	return out.Items, err
}

func (c *Client) UpsertLimit(ctx context.Context, entry model.LimitEntry, id model.Identity) (model.LimitEntry, error) {
	return call[model.LimitEntry](ctx, c, http.MethodPut, "/admin/limits", entry, id)
}

func (c *Client) Audit(ctx context.Context, q model.AuditQuery, id model.Identity) ([]model.AuditEvent, error) {
	params := url.Values{}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Actor != "" {
		params.Set("actor", q.Actor)
	}
	if q.Action != "" {
		params.Set("action", q.Action)
	}
	if q.Result != "" {
		params.Set("result", q.Result)
	}
	path := "/admin/audit"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}
	out, err := call[model.ItemsEnvelope[model.AuditEvent]](ctx, c, http.MethodGet, path, nil, id)
	return out.Items, err
}

func (c *Client) SpotTradeDemo(ctx context.Context, req model.TradeRequest, id model.Identity) error {
	_, err := c.Send(ctx, http.MethodPost, "/trade/spot/demo", req, id)
	return err
}

func (c *Client) FuturesTradeDemo(ctx context.Context, req model.FuturesTradeRequest, id model.Identity) error {
	_, err := c.Send(ctx, http.MethodPost, "/trade/futures/demo", req, id)
	return err
}

func (c *Client) PostSignal(ctx context.Context, payload model.SignalsEnvelope, id model.Identity) error {
	_, err := c.Send(ctx, http.MethodPost, "/signal", payload, id)
	return err
}

func (c *Client) ResearchAnalyzeNow(ctx context.Context, params map[string]any, id model.Identity) (model.ResearchResponse, error) {
	return call[model.ResearchResponse](ctx, c, http.MethodPost, "/ai/research/analyze_now", params, id)
}

func (c *Client) AIRun(ctx context.Context, id model.Identity) error {
	_, err := c.Send(ctx, http.MethodPost, "/ai/run", nil, id)
	return err
}

// Tenant resource. Branding is served per tenant, scoped by the tenant
// header carried on the identity.

func (c *Client) Branding(ctx context.Context, id model.Identity) (model.Branding, error) {
	return call[model.Branding](ctx, c, http.MethodGet, "/tenants/branding", nil, id)
}

func (c *Client) Tenants(ctx context.Context, id model.Identity) ([]model.Branding, error) {
	out, err := call[model.ItemsEnvelope[model.Branding]](ctx, c, http.MethodGet, "/tenants", nil, id)
	return out.Items, err
}

func (c *Client) CreateTenant(ctx context.Context, cfg model.Branding, id model.Identity) (model.Branding, error) {
	return call[model.Branding](ctx, c, http.MethodPost, "/tenants", cfg, id)
}

func (c *Client) UpdateTenant(ctx context.Context, tenantID string, cfg model.Branding, id model.Identity) (model.Branding, error) {
	return call[model.Branding](ctx, c, http.MethodPut, "/tenants/"+url.PathEscape(tenantID), cfg, id)
}

func (c *Client) DeleteTenant(ctx context.Context, tenantID string, id model.Identity) error {
	_, err := c.Send(ctx, http.MethodDelete, "/tenants/"+url.PathEscape(tenantID), nil, id)
	return err
}

func (c *Client) TenantLimits(ctx context.Context, tenantID string, id model.Identity) ([]model.LimitEntry, error) {
	out, err := call[model.ItemsEnvelope[model.LimitEntry]](ctx, c, http.MethodGet, "/tenants/"+url.PathEscape(tenantID)+"/limits", nil, id)
	return out.Items, err
}

func (c *Client) SetTenantLimits(ctx context.Context, tenantID string, entries []model.LimitEntry, id model.Identity) error {
	body := model.ItemsEnvelope[model.LimitEntry]{Items: entries}
	_, err := c.Send(ctx, http.MethodPut, "/tenants/"+url.PathEscape(tenantID)+"/limits", body, id)
	return err
}
