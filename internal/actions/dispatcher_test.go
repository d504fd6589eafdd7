package actions

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lunia-systems/lunia-console/internal/api"
	"github.com/lunia-systems/lunia-console/internal/audit"
	"github.com/lunia-systems/lunia-console/internal/model"
	"github.com/lunia-systems/lunia-console/internal/pkg/apperrors"
)

type staticIdentity struct {
	id model.Identity
}

func (s staticIdentity) Current() model.Identity { return s.id }

func newTestDispatcher(t *testing.T, role model.Role, handler http.Handler) (*Dispatcher, *audit.Ring) {
	t.Helper()
	if handler == nil {
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"data":{}}`))
		})
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	ring := audit.NewRing(audit.DefaultCapacity)
	source := staticIdentity{id: model.Identity{Role: role, Credentials: model.Credentials{AdminToken: "A"}}}
	return NewDispatcher(api.NewClient(srv.URL, 5*time.Second), source, ring, 0, 0), ring
}

func TestForbiddenRoleNeverReachesAPI(t *testing.T) {
	var hits int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ })
	d, ring := newTestDispatcher(t, model.RoleUser, handler)

	err := d.AutoOn(context.Background())
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Type != apperrors.ErrForbidden {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
	if hits != 0 {
		t.Fatal("forbidden action must not call the control API")
	}

	entries := ring.Entries()
	if len(entries) != 1 || entries[0].OK {
		t.Fatalf("expected one failed audit entry, got %+v", entries)
	}
	if entries[0].Action != "auto_on" {
		t.Fatalf("action = %s, want auto_on", entries[0].Action)
	}
}

func TestSuccessRecordsOkEntry(t *testing.T) {
	var gotPath string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{}}`))
	})
	d, ring := newTestDispatcher(t, model.RoleTrader, handler)

	if err := d.StartAll(context.Background()); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if gotPath != "/ops/start_all" {
		t.Fatalf("path = %s, want /ops/start_all", gotPath)
	}

	entries := ring.Entries()
	if len(entries) != 1 || !entries[0].OK {
		t.Fatalf("expected one ok audit entry, got %+v", entries)
	}
	if entries[0].ID == "" || entries[0].Ts.IsZero() {
		t.Fatalf("entry missing id or timestamp: %+v", entries[0])
	}
}

func TestRemoteFailureRecordsFailedEntryAndPropagates(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"engine offline"}`))
	})
	d, ring := newTestDispatcher(t, model.RoleAdmin, handler)

	err := d.StopAll(context.Background())
	reqErr, ok := apperrors.IsRequestError(err)
	if !ok {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if reqErr.Message != "engine offline" {
		t.Fatalf("message = %q", reqErr.Message)
	}

	entries := ring.Entries()
	if len(entries) != 1 || entries[0].OK {
		t.Fatalf("expected one failed audit entry, got %+v", entries)
	}
}

func TestRateLimitRejectsBurst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{}}`))
	}))
	t.Cleanup(srv.Close)

	ring := audit.NewRing(audit.DefaultCapacity)
	source := staticIdentity{id: model.Identity{Role: model.RoleAdmin}}
	// One action per thousand seconds, burst of one: the second call in a
	// row must be rejected locally.
	d := NewDispatcher(api.NewClient(srv.URL, time.Second), source, ring, 0.001, 1)

	if err := d.AutoOn(context.Background()); err != nil {
		t.Fatalf("first action failed: %v", err)
	}
	err := d.AutoOff(context.Background())
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Type != apperrors.ErrInvalidRequest {
		t.Fatalf("expected local rate-limit rejection, got %v", err)
	}

	entries := ring.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected two audit entries, got %d", len(entries))
	}
	if entries[0].OK || !entries[1].OK {
		t.Fatalf("newest entry must be the failed one: %+v", entries)
	}
}

func TestDispatchUsesIdentityCurrentAtCallTime(t *testing.T) {
	var gotAdmin string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAdmin = r.Header.Get(api.HeaderAdminToken)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{}}`))
	})
	d, _ := newTestDispatcher(t, model.RoleAdmin, handler)

	if err := d.AutoOn(context.Background()); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if gotAdmin != "A" {
		t.Fatalf("admin header = %q, want the dispatch-time credential", gotAdmin)
	}
}
