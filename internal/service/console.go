package service

import (
	"context"
	"fmt"

	"github.com/lunia-systems/lunia-console/internal/api"
	"github.com/lunia-systems/lunia-console/internal/branding"
	"github.com/lunia-systems/lunia-console/internal/config"
	"github.com/lunia-systems/lunia-console/internal/model"
	"github.com/lunia-systems/lunia-console/internal/pkg/logger"
	"github.com/lunia-systems/lunia-console/internal/poller"
	"github.com/lunia-systems/lunia-console/internal/session"
)

// Console wires the live-sync core together: one poller per remote
// resource, all keyed by the identity's credential facets. When the
// session changes, every poller is torn down and rebuilt so no cycle ever
// runs with stale credentials; each individual cycle additionally reads
// the store at fetch time.
type Console struct {
	Client   *api.Client
	Sessions *session.Store
	Branding *branding.Resolver

	Status    *poller.Poller[model.StatusSnapshot]
	Activity  *poller.Poller[model.ActivityResponse]
	Portfolio *poller.Poller[model.PortfolioSnapshot]
	Balances  *poller.Poller[model.BalancesResponse]
	Signals   *poller.Poller[model.SignalsFeed]
	Opps      *poller.Poller[model.ArbitrageOpportunities]
	Capital   *poller.Poller[model.CapitalSnapshot]
	Logs      *poller.Poller[model.LogsResponse]

	cancel context.CancelFunc
}

func NewConsole(cfg *config.Config, client *api.Client, sessions *session.Store, brand *branding.Resolver) *Console {
	c := &Console{
		Client:   client,
		Sessions: sessions,
		Branding: brand,
	}

	id := func() model.Identity { return sessions.Current() }
	p := cfg.Poll

	c.Status = poller.New("status", func(ctx context.Context) (model.StatusSnapshot, error) {
		return client.Status(ctx, id())
	}, p.Interval(p.StatusMs))
	c.Activity = poller.New("activity", func(ctx context.Context) (model.ActivityResponse, error) {
		return client.Activity(ctx, id())
	}, p.Interval(p.ActivityMs))
	c.Portfolio = poller.New("portfolio", func(ctx context.Context) (model.PortfolioSnapshot, error) {
		return client.Portfolio(ctx, id())
	}, p.Interval(p.PortfolioMs))
	c.Balances = poller.New("balances", func(ctx context.Context) (model.BalancesResponse, error) {
		return client.Balances(ctx, id())
	}, p.Interval(p.BalancesMs))
	c.Signals = poller.New("signals", func(ctx context.Context) (model.SignalsFeed, error) {
		return client.SignalsFeed(ctx, id())
	}, p.Interval(p.SignalsMs))
	c.Opps = poller.New("arb_opps", func(ctx context.Context) (model.ArbitrageOpportunities, error) {
		return client.ArbOpportunities(ctx, id())
	}, p.Interval(p.OppsMs))
	c.Capital = poller.New("capital", func(ctx context.Context) (model.CapitalSnapshot, error) {
		return client.Capital(ctx, id())
	}, p.Interval(p.CapitalMs))
	c.Logs = poller.New("logs", func(ctx context.Context) (model.LogsResponse, error) {
		return client.Logs(ctx, id())
	}, p.Interval(p.LogsMs))

	return c
}

// Start activates every poller under the current identity key and begins
// watching the session for changes.
func (c *Console) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	key := identityKey(c.Sessions.Current())
	c.restartAll(key)

	updates, unsubscribe := c.Sessions.Subscribe()
	go func() {
		defer unsubscribe()
		last := key
		for {
			select {
			case <-ctx.Done():
				return
			case id, ok := <-updates:
				if !ok {
					return
				}
				next := identityKey(id)
				if next == last {
					continue
				}
				last = next
				logger.Info("session changed, restarting pollers")
				c.restartAll(next)
			}
		}
	}()

	if c.Branding != nil {
		brandingUpdates, cancelBranding := c.Sessions.Subscribe()
		go func() {
			defer cancelBranding()
			c.Branding.Watch(ctx, brandingUpdates)
		}()
	}
}

func (c *Console) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.Status.Stop()
	c.Activity.Stop()
	c.Portfolio.Stop()
	c.Balances.Stop()
	c.Signals.Stop()
	c.Opps.Stop()
	c.Capital.Stop()
	c.Logs.Stop()
}

func (c *Console) restartAll(key string) {
	c.Status.Restart(key)
	c.Activity.Restart(key)
	c.Portfolio.Restart(key)
	c.Balances.Restart(key)
	c.Signals.Restart(key)
	c.Opps.Restart(key)
	c.Capital.Restart(key)
	c.Logs.Restart(key)
}

// identityKey is the dependency key for every poller: the facets that
// change what a fetch is allowed to see. Profile and expiry changes do
// not force a restart.
func identityKey(id model.Identity) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s",
		id.Role, id.TenantID,
		id.Credentials.BearerToken, id.Credentials.AdminToken, id.Credentials.OpsToken)
}
