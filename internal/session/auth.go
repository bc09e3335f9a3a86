// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang-jwt/jwt/v5"
)

// Errors returned by Auth.
var (
	ErrNotAuthenticated = errors.New("not logged in")
	ErrEmptyToken       = errors.New("login returned an empty access token")
)

// expirySkew treats a token as expired slightly early so a request does
// not race the server's clock.
const expirySkew = 10 * time.Second

// =============================================================================
// TYPES
// =============================================================================

// Tokens are the credentials issued by the login endpoint.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// LogoutReason explains why a session ended.
type LogoutReason string

const (
	ReasonUser         LogoutReason = "user"
	ReasonExpired      LogoutReason = "token expired"
	ReasonIdle         LogoutReason = "idle timeout"
	ReasonUnauthorized LogoutReason = "rejected by server"
)

// Config holds configuration for an Auth.
type Config struct {
	// IdleTimeout ends the session after this long without Token calls.
	// Zero disables the idle check.
	IdleTimeout time.Duration
}

// Auth is the authentication session. Safe for concurrent use.
type Auth struct {
	mu sync.Mutex

	username     string
	tokens       Tokens
	loginAt      time.Time
	expiresAt    time.Time // zero when the token carries no exp claim
	lastActivity time.Time

	idleTimeout time.Duration
	onLogout    []func(LogoutReason)

	now func() time.Time
}

// New creates a logged-out session.
func New(cfg Config) *Auth {
	return &Auth{
		idleTimeout: cfg.IdleTimeout,
		now:         time.Now,
	}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Login installs tokens for username. The access token's exp claim, when
// present, bounds the session.
func (a *Auth) Login(username string, t Tokens) error {
	if strings.TrimSpace(t.Access) == "" {
		return ErrEmptyToken
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	a.username = username
	a.tokens = t
	a.loginAt = now
	a.lastActivity = now
	a.expiresAt = tokenExpiry(t.Access)
	return nil
}

// Logout ends the session. Subscribers are notified only if a session was
// actually active.
func (a *Auth) Logout(reason LogoutReason) {
	a.mu.Lock()
	was := a.tokens.Access != ""
	a.clearLocked()
	callbacks := slices.Clone(a.onLogout)
	a.mu.Unlock()

	if was {
		for _, fn := range callbacks {
			fn(reason)
		}
	}
}

func (a *Auth) clearLocked() {
	a.tokens = Tokens{}
	a.username = ""
	a.expiresAt = time.Time{}
	a.loginAt = time.Time{}
}

// OnLogout registers fn to be called after the session ends.
func (a *Auth) OnLogout(fn func(LogoutReason)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onLogout = append(a.onLogout, fn)
}

// =============================================================================
// STATE
// =============================================================================

// IsValid reports whether requests can be authorised right now.
func (a *Auth) IsValid() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lapsedLocked() == ""
}

// Token returns the access token and records activity. A session found
// expired or idle is logged out on the way.
func (a *Auth) Token() (string, error) {
	a.mu.Lock()
	reason := a.lapsedLocked()
	if reason == "" {
		a.lastActivity = a.now()
		tok := a.tokens.Access
		a.mu.Unlock()
		return tok, nil
	}
	active := a.tokens.Access != ""
	a.mu.Unlock()

	if active {
		a.Logout(reason)
	}
	return "", ErrNotAuthenticated
}

// lapsedLocked returns why the session is unusable, or "" if it is fine.
func (a *Auth) lapsedLocked() LogoutReason {
	if a.tokens.Access == "" {
		return ReasonUser
	}
	now := a.now()
	if !a.expiresAt.IsZero() && !now.Before(a.expiresAt.Add(-expirySkew)) {
		return ReasonExpired
	}
	if a.idleTimeout > 0 && now.Sub(a.lastActivity) >= a.idleTimeout {
		return ReasonIdle
	}
	return ""
}

// Username returns the logged-in user, or "".
func (a *Auth) Username() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.username
}

// ExpiresAt returns the token expiry, zero if unknown.
func (a *Auth) ExpiresAt() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.expiresAt
}

// Duration returns how long the session has been active.
func (a *Auth) Duration() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.loginAt.IsZero() {
		return 0
	}
	return a.now().Sub(a.loginAt)
}

// =============================================================================
// BUBBLE TEA INTEGRATION
// =============================================================================

// ExpiredMsg is sent by CheckCmd when the session is no longer valid.
type ExpiredMsg struct {
	Reason LogoutReason
}

// CheckedMsg is sent by CheckCmd when the session is still valid or was
// never started. The receiver re-arms the check.
type CheckedMsg struct{}

// CheckCmd checks the session after interval and reports an ExpiredMsg if
// it has lapsed, or a CheckedMsg otherwise.
func (a *Auth) CheckCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(time.Time) tea.Msg {
		a.mu.Lock()
		reason := a.lapsedLocked()
		active := a.tokens.Access != ""
		a.mu.Unlock()
		if reason == "" || !active {
			return CheckedMsg{}
		}
		a.Logout(reason)
		return ExpiredMsg{Reason: reason}
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// tokenExpiry reads the exp claim of a JWT without verifying it; the
// server does the verifying. Opaque tokens have no expiry.
func tokenExpiry(token string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.Unix() <= 0 {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
