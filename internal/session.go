package internal

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Validity is the tri-state result of checking the token against the server.
// A session starts unknown, becomes valid or invalid after the first check,
// and deliberately drops back to unknown after every renewal so the freshly
// issued token gets validated too.
type Validity int

const (
	ValidityUnknown Validity = iota
	ValidityValid
	ValidityInvalid
)

func (v Validity) String() string {
	switch v {
	case ValidityValid:
		return "valid"
	case ValidityInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// renewalMargin is how long before actual expiry we refresh the token.
const renewalMargin = 60 * time.Second

// TokenStore persists the bearer token between runs. internal/storage
// implements it; tests substitute an in-memory fake.
type TokenStore interface {
	SaveToken(ctx context.Context, token string) error
	LoadToken(ctx context.Context) (string, error)
	ClearToken(ctx context.Context) error
}

// SessionManager owns the authentication token for the lifetime of the
// program. It is the single writer: everything else reads the token through
// Token() and never caches it across a renewal.
type SessionManager struct {
	baseURL string
	store   TokenStore
	logger  *zap.Logger

	mu       sync.Mutex
	token    string
	validity Validity
	lastTTL  int
	renewal  *time.Timer
}

func NewSessionManager(baseURL string, store TokenStore, logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		baseURL:  baseURL,
		store:    store,
		logger:   logger,
		validity: ValidityUnknown,
		lastTTL:  -1,
	}
}

// Restore loads a previously persisted token, if any. The token comes back
// with unknown validity; the caller must run Validate before using it.
func (m *SessionManager) Restore(ctx context.Context) bool {
	if m.store == nil {
		return false
	}
	token, err := m.store.LoadToken(ctx)
	if err != nil || token == "" {
		return false
	}
	m.mu.Lock()
	m.token = token
	m.validity = ValidityUnknown
	m.lastTTL = -1
	m.mu.Unlock()
	return true
}

// SetToken installs a freshly issued token (login or registration) and
// persists it. Validity resets to unknown.
func (m *SessionManager) SetToken(ctx context.Context, token string) error {
	m.mu.Lock()
	m.token = token
	m.validity = ValidityUnknown
	m.lastTTL = -1
	m.mu.Unlock()
	if m.store == nil {
		return nil
	}
	return m.store.SaveToken(ctx, token)
}

func (m *SessionManager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *SessionManager) Validity() Validity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validity
}

// AuthToken returns the token for use on an authenticated request, or "" when
// the session must not be used: no token, or known-invalid. An observed
// negative TTL flips validity to invalid in TokenTTL, so an expired token is
// gated here without a separate TTL check; lastTTL alone cannot distinguish
// "expired" from "not fetched yet".
func (m *SessionManager) AuthToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" || m.validity == ValidityInvalid {
		return ""
	}
	return m.token
}

// Validate checks the current token against the server and records the
// outcome. Network failure is indistinguishable from rejection: both mark the
// session invalid.
func (m *SessionManager) Validate() bool {
	token := m.Token()
	if token == "" {
		m.setValidity(ValidityInvalid)
		return false
	}
	ok := apiValidateToken(m.baseURL, token)
	if ok {
		m.setValidity(ValidityValid)
	} else {
		m.logger.Warn("token validation failed", zap.String("validity", "invalid"))
		m.setValidity(ValidityInvalid)
	}
	return ok
}

// TokenTTL fetches the remaining lifetime and records it. -1 means expired or
// unknown; the caller must treat that like an invalid session.
func (m *SessionManager) TokenTTL() int {
	ttl := apiTokenTTL(m.baseURL, m.Token())
	m.mu.Lock()
	m.lastTTL = ttl
	if ttl < 0 {
		m.validity = ValidityInvalid
	}
	m.mu.Unlock()
	return ttl
}

// RenewalDelay computes how long to wait before refreshing a token that has
// ttlSeconds of life left, keeping a safety margin so the refresh lands
// before expiry. A short-lived token renews immediately.
func RenewalDelay(ttlSeconds int) time.Duration {
	delay := time.Duration(ttlSeconds)*time.Second - renewalMargin
	if delay < 0 {
		return 0
	}
	return delay
}

// ScheduleRenewal arms a one-shot timer that calls fire after
// RenewalDelay(ttlSeconds). Any previously pending timer is stopped first, so
// a TTL change can never leave a stale timer firing with an outdated token.
func (m *SessionManager) ScheduleRenewal(ttlSeconds int, fire func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.renewal != nil {
		m.renewal.Stop()
	}
	m.renewal = time.AfterFunc(RenewalDelay(ttlSeconds), fire)
	m.logger.Debug("renewal scheduled", zap.Int("ttl_seconds", ttlSeconds))
}

// CancelRenewal stops a pending renewal timer. Safe to call when none is
// armed; must be called on teardown.
func (m *SessionManager) CancelRenewal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.renewal != nil {
		m.renewal.Stop()
		m.renewal = nil
	}
}

// Renew posts the current token to the refresh endpoint and atomically swaps
// in the replacement. On success the validity drops back to unknown so the
// next validation cycle covers the new token. On failure nothing changes
// here: the scheduled validation will discover an expired token on its own.
func (m *SessionManager) Renew(ctx context.Context) error {
	old := m.Token()
	if old == "" {
		return errUnauthorized
	}
	fresh, err := apiRefreshToken(m.baseURL, old)
	if err != nil {
		m.logger.Warn("token refresh failed", zap.Error(err))
		return err
	}
	// Commit to storage before exposing the new token so a concurrent
	// validation cycle never runs ahead of the persisted state.
	if m.store != nil {
		if err := m.store.SaveToken(ctx, fresh); err != nil {
			m.logger.Warn("persisting refreshed token failed", zap.Error(err))
			return err
		}
	}
	m.mu.Lock()
	m.token = fresh
	m.validity = ValidityUnknown
	m.lastTTL = -1
	m.mu.Unlock()
	m.logger.Info("token renewed")
	return nil
}

// Logout clears the token from memory and storage and cancels any pending
// renewal. The session ends up invalid, which routes the UI to the login
// surface.
func (m *SessionManager) Logout(ctx context.Context) {
	m.CancelRenewal()
	m.mu.Lock()
	m.token = ""
	m.validity = ValidityInvalid
	m.lastTTL = -1
	m.mu.Unlock()
	if m.store != nil {
		if err := m.store.ClearToken(ctx); err != nil {
			m.logger.Warn("clearing stored token failed", zap.Error(err))
		}
	}
}

func (m *SessionManager) setValidity(v Validity) {
	m.mu.Lock()
	m.validity = v
	m.mu.Unlock()
}
