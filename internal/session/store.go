package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lunia-systems/lunia-console/internal/api"
	"github.com/lunia-systems/lunia-console/internal/model"
)

// Store owns the one live Identity. All mutation goes through Apply,
// Login and Logout, which serialize updates, persist the result and fan
// it out to subscribers. Readers always see the latest value.
type Store struct {
	client *api.Client
	repo   Repo
	log    *slog.Logger

	defaultIdentity model.Identity

	mu      sync.Mutex
	current model.Identity
	subs    map[int]chan model.Identity
	nextSub int
}

func NewStore(client *api.Client, repo Repo, defaultRole string, log *slog.Logger) *Store {
	s := &Store{
		client:          client,
		repo:            repo,
		log:             log,
		defaultIdentity: model.DefaultIdentity(defaultRole),
		subs:            make(map[int]chan model.Identity),
	}
	s.current = s.rehydrate()
	return s
}

// rehydrate restores the persisted identity. A missing or corrupt record
// falls back to the default identity; startup never fails on it.
func (s *Store) rehydrate() model.Identity {
	if s.repo == nil {
		return s.defaultIdentity
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	id, ok, err := s.repo.Load(ctx)
	if err != nil {
		s.log.Warn("failed to restore session state, using defaults", "error", err)
		return s.defaultIdentity
	}
	if !ok {
		return s.defaultIdentity
	}
	if _, valid := model.ParseRole(string(id.Role)); !valid {
		s.log.Warn("restored session carries unknown role, using defaults", "role", id.Role)
		return s.defaultIdentity
	}
	return id
}

func (s *Store) Current() model.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Subscribe delivers every identity change, starting with the current
// value. Slow consumers miss intermediate updates but always converge on
// the latest.
func (s *Store) Subscribe() (<-chan model.Identity, func()) {
	ch := make(chan model.Identity, 4)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	current := s.current
	s.mu.Unlock()

	ch <- current
	return ch, func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Apply merges a partial update into the identity. Fields absent from the
// patch keep their value, so concurrent patches compose per field.
func (s *Store) Apply(patch model.IdentityPatch) {
	s.mu.Lock()
	s.current = patch.Merge(s.current)
	next := s.current
	s.mu.Unlock()

	s.afterChange(next)
}

// Login authenticates and installs the resulting identity atomically. A
// failing profile fetch after a successful login is not fatal: a minimal
// profile is synthesized from the login response instead.
func (s *Store) Login(ctx context.Context, email, password string) error {
	resp, err := s.client.Login(ctx, model.LoginRequest{Email: email, Password: password})
	if err != nil {
		return err
	}

	authed := model.Identity{
		Role:        resp.Role,
		Credentials: model.Credentials{BearerToken: resp.AccessToken},
	}
	profile, err := s.client.CurrentUser(ctx, authed)
	user := &profile
	if err != nil {
		s.log.Warn("profile fetch after login failed, synthesizing from login response", "error", err)
		user = &model.UserProfile{
			ID:       resp.UserID,
			Email:    email,
			Role:     resp.Role,
			IsActive: true,
		}
	}

	expiresAt := parseExpiry(resp.ExpiresAt)
	if expiresAt == nil {
		expiresAt = tokenExpiry(resp.AccessToken)
	}

	s.mu.Lock()
	next := s.current
	next.Role = resp.Role
	next.Credentials.BearerToken = resp.AccessToken
	next.User = user
	next.ExpiresAt = expiresAt
	s.current = next
	s.mu.Unlock()

	s.afterChange(next)
	return nil
}

// Logout resets to the configured default role with no credentials.
func (s *Store) Logout() {
	s.mu.Lock()
	s.current = s.defaultIdentity
	next := s.current
	s.mu.Unlock()

	s.afterChange(next)
}

// RefreshProfile re-fetches /auth/me when a bearer token is present. The
// server-declared role is authoritative: a differing role replaces the
// local one. Failures are logged and swallowed; rendering never blocks on
// this.
func (s *Store) RefreshProfile(ctx context.Context) {
	current := s.Current()
	if current.Credentials.BearerToken == "" {
		return
	}

	profile, err := s.client.CurrentUser(ctx, current)
	if err != nil {
		s.log.Warn("profile refresh failed", "error", err)
		return
	}

	s.mu.Lock()
	if s.current.Credentials.BearerToken != current.Credentials.BearerToken {
		// Session changed while the refresh was in flight.
		s.mu.Unlock()
		return
	}
	s.current.User = &profile
	if profile.Role != "" && profile.Role != s.current.Role {
		s.current.Role = profile.Role
	}
	next := s.current
	s.mu.Unlock()

	s.afterChange(next)
}

func (s *Store) afterChange(next model.Identity) {
	if s.repo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := s.repo.Save(ctx, next); err != nil {
			s.log.Warn("failed to persist session state", "error", err)
		}
		cancel()
	}

	s.mu.Lock()
	targets := make([]chan model.Identity, 0, len(s.subs))
	for _, ch := range s.subs {
		targets = append(targets, ch)
	}
	s.mu.Unlock()

	for _, ch := range targets {
		select {
		case ch <- next:
		default:
		}
	}
}

func parseExpiry(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}

// tokenExpiry recovers the expiry from the bearer token's exp claim when
// the login response omits one. The token is not verified here; the
// server remains the authority on validity.
func tokenExpiry(token string) *time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	t := exp.Time
	return &t
}
