package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeTokenStore struct {
	mu    sync.Mutex
	token string
	saves int
}

func (f *fakeTokenStore) SaveToken(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
	f.saves++
	return nil
}

func (f *fakeTokenStore) LoadToken(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, nil
}

func (f *fakeTokenStore) ClearToken(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	return nil
}

func TestRenewalDelay(t *testing.T) {
	cases := []struct {
		ttl  int
		want time.Duration
	}{
		{ttl: 3600, want: 3540 * time.Second},
		{ttl: 90, want: 30 * time.Second},
		{ttl: 60, want: 0},
		{ttl: 30, want: 0},
		{ttl: 0, want: 0},
	}
	for _, tc := range cases {
		if got := RenewalDelay(tc.ttl); got != tc.want {
			t.Errorf("RenewalDelay(%d) = %v, want %v", tc.ttl, got, tc.want)
		}
	}
}

func TestValidateMarksSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/token/validate" {
			http.NotFound(w, r)
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["token"] == "good" {
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "OK"})
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	manager := NewSessionManager(server.URL, nil, nil)
	if err := manager.SetToken(context.Background(), "good"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	if manager.Validity() != ValidityUnknown {
		t.Fatalf("fresh token should be unknown, got %v", manager.Validity())
	}
	if !manager.Validate() {
		t.Fatalf("expected good token to validate")
	}
	if manager.Validity() != ValidityValid {
		t.Fatalf("expected valid, got %v", manager.Validity())
	}

	_ = manager.SetToken(context.Background(), "bad")
	if manager.Validate() {
		t.Fatalf("expected bad token to fail validation")
	}
	if manager.Validity() != ValidityInvalid {
		t.Fatalf("expected invalid, got %v", manager.Validity())
	}
}

func TestValidateFailsClosedOnUnreachableServer(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close() // nothing listening any more

	manager := NewSessionManager(server.URL, nil, nil)
	_ = manager.SetToken(context.Background(), "whatever")
	if manager.Validate() {
		t.Fatalf("unreachable server must not validate a token")
	}
	if manager.Validity() != ValidityInvalid {
		t.Fatalf("expected invalid, got %v", manager.Validity())
	}
	if manager.AuthToken() != "" {
		t.Fatalf("invalid session must not hand out a token")
	}
}

func TestTokenTTLExpired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "expired", "ttl": -1})
	}))
	defer server.Close()

	manager := NewSessionManager(server.URL, nil, nil)
	_ = manager.SetToken(context.Background(), "stale")
	if ttl := manager.TokenTTL(); ttl != -1 {
		t.Fatalf("expected -1 ttl, got %d", ttl)
	}
	if manager.Validity() != ValidityInvalid {
		t.Fatalf("negative ttl must invalidate the session, got %v", manager.Validity())
	}
	if manager.AuthToken() != "" {
		t.Fatalf("expired session must not hand out a token")
	}
}

func TestAuthTokenGating(t *testing.T) {
	manager := NewSessionManager("http://unused", nil, nil)
	if manager.AuthToken() != "" {
		t.Fatalf("empty session should yield no token")
	}
	_ = manager.SetToken(context.Background(), "tok")
	// Unknown validity is usable: the first validation cycle runs with it.
	if manager.AuthToken() != "tok" {
		t.Fatalf("unknown validity should still hand out the token")
	}
	// Valid with the TTL fetch still in flight (lastTTL is the -1 reset
	// value): the token must be usable, otherwise every command issued
	// right after validation runs unauthenticated.
	manager.setValidity(ValidityValid)
	if manager.AuthToken() != "tok" {
		t.Fatalf("validated session must hand out the token before the first TTL fetch")
	}
	manager.setValidity(ValidityInvalid)
	if manager.AuthToken() != "" {
		t.Fatalf("invalid session must gate the token")
	}
}

func TestAuthTokenAvailableRightAfterValidation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/token/validate" {
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "OK"})
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	manager := NewSessionManager(server.URL, nil, nil)
	_ = manager.SetToken(context.Background(), "tok")
	if !manager.Validate() {
		t.Fatalf("setup: validation failed")
	}
	if manager.AuthToken() != "tok" {
		t.Fatalf("fresh validation must not gate the token while the TTL is pending")
	}
}

func TestScheduleRenewalReplacesPendingTimer(t *testing.T) {
	manager := NewSessionManager("http://unused", nil, nil)
	fired := make(chan string, 2)

	manager.ScheduleRenewal(3600, func() { fired <- "first" })
	manager.ScheduleRenewal(0, func() { fired <- "second" })

	select {
	case which := <-fired:
		if which != "second" {
			t.Fatalf("stale timer fired: %s", which)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("replacement timer never fired")
	}
	select {
	case which := <-fired:
		t.Fatalf("unexpected second firing: %s", which)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCancelRenewal(t *testing.T) {
	manager := NewSessionManager("http://unused", nil, nil)
	fired := make(chan struct{}, 1)
	manager.ScheduleRenewal(0, func() { fired <- struct{}{} })
	manager.CancelRenewal()
	// Cancel raced the zero-delay timer; either outcome is fine, but a second
	// cancel must not panic.
	manager.CancelRenewal()
}

func TestRenewSwapsTokenAndResetsValidity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/token/refresh":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["token"] != "old-token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "OK", "token": "new-token"})
		case "/api/token/validate":
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "OK"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	store := &fakeTokenStore{}
	manager := NewSessionManager(server.URL, store, nil)
	_ = manager.SetToken(context.Background(), "old-token")
	manager.Validate()
	if manager.Validity() != ValidityValid {
		t.Fatalf("setup: expected valid session")
	}

	if err := manager.Renew(context.Background()); err != nil {
		t.Fatalf("Renew: %v", err)
	}
	if manager.Token() != "new-token" {
		t.Fatalf("expected swapped token, got %q", manager.Token())
	}
	if manager.Validity() != ValidityUnknown {
		t.Fatalf("renewal must reset validity to unknown, got %v", manager.Validity())
	}
	if store.token != "new-token" {
		t.Fatalf("renewed token not persisted: %q", store.token)
	}
}

func TestRenewFailureKeepsOldToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	store := &fakeTokenStore{}
	manager := NewSessionManager(server.URL, store, nil)
	_ = manager.SetToken(context.Background(), "old-token")

	if err := manager.Renew(context.Background()); err == nil {
		t.Fatalf("expected renew failure")
	}
	if manager.Token() != "old-token" {
		t.Fatalf("failed renewal must not touch the token, got %q", manager.Token())
	}
}

func TestRestoreAndLogout(t *testing.T) {
	store := &fakeTokenStore{token: "persisted"}
	manager := NewSessionManager("http://unused", store, nil)
	if !manager.Restore(context.Background()) {
		t.Fatalf("expected restore to find the persisted token")
	}
	if manager.Token() != "persisted" {
		t.Fatalf("unexpected token: %q", manager.Token())
	}
	if manager.Validity() != ValidityUnknown {
		t.Fatalf("restored token must start unknown, got %v", manager.Validity())
	}

	manager.Logout(context.Background())
	if manager.Token() != "" || store.token != "" {
		t.Fatalf("logout must clear memory and storage: %q / %q", manager.Token(), store.token)
	}
	if manager.AuthToken() != "" {
		t.Fatalf("logged-out session must not hand out a token")
	}

	empty := NewSessionManager("http://unused", &fakeTokenStore{}, nil)
	if empty.Restore(context.Background()) {
		t.Fatalf("restore with no persisted token must report false")
	}
}
