package actions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lunia-systems/lunia-console/internal/api"
	"github.com/lunia-systems/lunia-console/internal/audit"
	"github.com/lunia-systems/lunia-console/internal/authz"
	"github.com/lunia-systems/lunia-console/internal/model"
	"github.com/lunia-systems/lunia-console/internal/pkg/apperrors"
	"github.com/lunia-systems/lunia-console/internal/pkg/metrics"
	"golang.org/x/time/rate"
)

// IdentitySource yields the identity current at dispatch time. Every
// action carries the latest credentials, never a cached copy.
type IdentitySource interface {
	Current() model.Identity
}

// Dispatcher is the single entry point for mutating control actions. It
// checks the control-access capability, applies a process-wide rate
// limit, invokes the control API with the current identity and records
// the outcome in the local audit ring before returning.
type Dispatcher struct {
	client   *api.Client
	identity IdentitySource
	ring     *audit.Ring
	limiter  *rate.Limiter
}

func NewDispatcher(client *api.Client, identity IdentitySource, ring *audit.Ring, qps float64, burst int) *Dispatcher {
	limit := rate.Limit(qps)
	if limit <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &Dispatcher{
		client:   client,
		identity: identity,
		ring:     ring,
		limiter:  rate.NewLimiter(limit, burst),
	}
}

type invokeFunc func(ctx context.Context, id model.Identity) error

// Dispatch runs one named control action. Failures propagate to the
// caller after a failed audit entry is recorded; successes record an ok
// entry first.
func (d *Dispatcher) Dispatch(ctx context.Context, action, details string, fn invokeFunc) error {
	id := d.identity.Current()

	if !authz.HasControlAccess(id.Role) {
		err := apperrors.NewForbidden("role " + string(id.Role) + " cannot issue control actions")
		d.record(action, false, err.Error())
		return err
	}
	if !d.limiter.Allow() {
		err := apperrors.New(apperrors.ErrInvalidRequest, "control action rate limit exceeded", nil)
		d.record(action, false, err.Error())
		return err
	}

	if err := fn(ctx, id); err != nil {
		d.record(action, false, err.Error())
		return err
	}
	d.record(action, true, details)
	return nil
}

func (d *Dispatcher) record(action string, ok bool, details string) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	metrics.ControlActions.WithLabelValues(action, result).Inc()
	d.ring.Append(model.ActionRecord{
		ID:      uuid.NewString(),
		Ts:      time.Now(),
		Action:  action,
		OK:      ok,
		Details: details,
	})
}

// Named wrappers over the control surface of the API.

func (d *Dispatcher) AutoOn(ctx context.Context) error {
	return d.Dispatch(ctx, "auto_on", "", func(ctx context.Context, id model.Identity) error {
		return d.client.AutoOn(ctx, id)
	})
}

func (d *Dispatcher) AutoOff(ctx context.Context) error {
	return d.Dispatch(ctx, "auto_off", "", func(ctx context.Context, id model.Identity) error {
		return d.client.AutoOff(ctx, id)
	})
}

func (d *Dispatcher) StartAll(ctx context.Context) error {
	return d.Dispatch(ctx, "start_all", "", func(ctx context.Context, id model.Identity) error {
		return d.client.StartAll(ctx, id)
	})
}

func (d *Dispatcher) StopAll(ctx context.Context) error {
	return d.Dispatch(ctx, "stop_all", "", func(ctx context.Context, id model.Identity) error {
		return d.client.StopAll(ctx, id)
	})
}

func (d *Dispatcher) SetOpsState(ctx context.Context, patch map[string]any) error {
	return d.Dispatch(ctx, "set_ops_state", "", func(ctx context.Context, id model.Identity) error {
		return d.client.SetOpsState(ctx, patch, id)
	})
}

func (d *Dispatcher) SetSpotRisk(ctx context.Context, cfg model.SpotRiskConfig) error {
	return d.Dispatch(ctx, "set_spot_risk", "", func(ctx context.Context, id model.Identity) error {
		return d.client.SetSpotRisk(ctx, cfg, id)
	})
}

func (d *Dispatcher) SetStrategyWeights(ctx context.Context, req model.StrategyWeightsRequest) error {
	return d.Dispatch(ctx, "set_strategy_weights", "", func(ctx context.Context, id model.Identity) error {
		return d.client.SetStrategyWeights(ctx, req, id)
	})
}

func (d *Dispatcher) SpotTradeDemo(ctx context.Context, req model.TradeRequest) error {
	details := req.Side + " " + req.Qty.String() + " " + req.Symbol
	return d.Dispatch(ctx, "spot_trade_demo", details, func(ctx context.Context, id model.Identity) error {
		return d.client.SpotTradeDemo(ctx, req, id)
	})
}

func (d *Dispatcher) FuturesTradeDemo(ctx context.Context, req model.FuturesTradeRequest) error {
	details := req.Side + " " + req.Qty.String() + " " + req.Symbol
	return d.Dispatch(ctx, "futures_trade_demo", details, func(ctx context.Context, id model.Identity) error {
		return d.client.FuturesTradeDemo(ctx, req, id)
	})
}

func (d *Dispatcher) PostSignal(ctx context.Context, payload model.SignalsEnvelope) error {
	return d.Dispatch(ctx, "post_signal", "", func(ctx context.Context, id model.Identity) error {
		return d.client.PostSignal(ctx, payload, id)
	})
}

func (d *Dispatcher) ResearchAnalyzeNow(ctx context.Context, params map[string]any) error {
	return d.Dispatch(ctx, "research_analyze_now", "", func(ctx context.Context, id model.Identity) error {
		_, err := d.client.ResearchAnalyzeNow(ctx, params, id)
		return err
	})
}

func (d *Dispatcher) AIRun(ctx context.Context) error {
	return d.Dispatch(ctx, "ai_run", "", func(ctx context.Context, id model.Identity) error {
		return d.client.AIRun(ctx, id)
	})
}

func (d *Dispatcher) CreateUser(ctx context.Context, req model.UserCreateRequest) error {
	return d.Dispatch(ctx, "create_user", req.Email, func(ctx context.Context, id model.Identity) error {
		_, err := d.client.CreateUser(ctx, req, id)
		return err
	})
}

func (d *Dispatcher) UpdateUser(ctx context.Context, userID int64, req model.UserUpdateRequest) error {
	return d.Dispatch(ctx, "update_user", "", func(ctx context.Context, id model.Identity) error {
		_, err := d.client.UpdateUser(ctx, userID, req, id)
		return err
	})
}

func (d *Dispatcher) UpdateFlag(ctx context.Context, key string, value json.RawMessage) error {
	return d.Dispatch(ctx, "update_flag", key, func(ctx context.Context, id model.Identity) error {
		_, err := d.client.UpdateFlag(ctx, key, value, id)
		return err
	})
}

func (d *Dispatcher) UpsertLimit(ctx context.Context, entry model.LimitEntry) error {
	return d.Dispatch(ctx, "upsert_limit", entry.Key, func(ctx context.Context, id model.Identity) error {
		_, err := d.client.UpsertLimit(ctx, entry, id)
		return err
	})
}
