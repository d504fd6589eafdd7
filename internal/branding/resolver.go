package branding

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lunia-systems/lunia-console/internal/api"
	"github.com/lunia-systems/lunia-console/internal/model"
)

// Resolver fetches tenant-scoped branding for the current identity. It
// never surfaces a fetch failure: callers get the previous successful
// value when one exists, else the static fallback. The visible value
// never flashes back to defaults because of a transient error.
type Resolver struct {
	client   *api.Client
	fallback model.Branding
	log      *slog.Logger

	mu          sync.Mutex
	current     model.Branding
	resolved    bool
	lastUpdated time.Time
}

func NewResolver(client *api.Client, fallback model.Branding, log *slog.Logger) *Resolver {
	return &Resolver{
		client:   client,
		fallback: fallback,
		log:      log,
		current:  fallback,
	}
}

func (r *Resolver) Current() model.Branding {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *Resolver) LastUpdated() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastUpdated
}

// Resolve fetches branding scoped by the identity's tenant and whatever
// credentials it carries. Works in anonymous mode; the server decides
// what an unscoped request sees.
func (r *Resolver) Resolve(ctx context.Context, id model.Identity) model.Branding {
	cfg, err := r.client.Branding(ctx, id)
	if err != nil {
		r.log.Warn("branding fetch failed, keeping last resolved value", "tenant", id.TenantID, "error", err)
		return r.Current()
	}
	if cfg.BrandName == "" {
		cfg.BrandName = r.fallback.BrandName
	}
	if cfg.Environment == "" {
		cfg.Environment = r.fallback.Environment
	}

	r.mu.Lock()
	r.current = cfg
	r.resolved = true
	r.lastUpdated = time.Now()
	r.mu.Unlock()
	return cfg
}

// identityFacets captures the parts of an identity that scope branding.
type identityFacets struct {
	tenant string
	creds  model.Credentials
}

// Watch re-resolves whenever a tenancy- or credential-relevant facet of
// the identity changes. Blocks until ctx is done; run it in a goroutine.
func (r *Resolver) Watch(ctx context.Context, updates <-chan model.Identity) {
	var last *identityFacets
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-updates:
			if !ok {
				return
			}
			facets := identityFacets{tenant: id.TenantID, creds: id.Credentials}
			if last != nil && *last == facets {
				continue
			}
			last = &facets
			r.Resolve(ctx, id)
		}
	}
}
