// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// fakeJWT builds an unsigned token carrying exp.
func fakeJWT(exp time.Time) string {
	enc := base64.RawURLEncoding
	header := enc.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload := enc.EncodeToString([]byte(fmt.Sprintf(`{"user_id":7,"exp":%d}`, exp.Unix())))
	return header + "." + payload + ".sig"
}

// clock is a settable time source.
type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestAuth(cfg Config) (*Auth, *clock) {
	c := &clock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	a := New(cfg)
	a.now = c.now
	return a, c
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestAuth_LoginLogout(t *testing.T) {
	a, _ := newTestAuth(Config{})
	if a.IsValid() {
		t.Fatal("new session should not be valid")
	}
	if _, err := a.Token(); err != ErrNotAuthenticated {
		t.Errorf("Token() before login error = %v, want ErrNotAuthenticated", err)
	}

	if err := a.Login("trader", Tokens{Access: "opaque-token"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !a.IsValid() {
		t.Error("session should be valid after login")
	}
	if tok, err := a.Token(); err != nil || tok != "opaque-token" {
		t.Errorf("Token() = %q, %v", tok, err)
	}
	if a.Username() != "trader" {
		t.Errorf("Username() = %q", a.Username())
	}

	a.Logout(ReasonUser)
	if a.IsValid() || a.Username() != "" {
		t.Error("session should be cleared after logout")
	}
}

func TestAuth_RejectsEmptyToken(t *testing.T) {
	a, _ := newTestAuth(Config{})
	if err := a.Login("trader", Tokens{Access: "  "}); err != ErrEmptyToken {
		t.Errorf("Login with blank token error = %v, want ErrEmptyToken", err)
	}
}

func TestAuth_JWTExpiry(t *testing.T) {
	a, c := newTestAuth(Config{})
	exp := c.t.Add(5 * time.Minute)
	if err := a.Login("trader", Tokens{Access: fakeJWT(exp)}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !a.ExpiresAt().Equal(exp) {
		t.Errorf("ExpiresAt() = %v, want %v", a.ExpiresAt(), exp)
	}

	var reasons []LogoutReason
	a.OnLogout(func(r LogoutReason) { reasons = append(reasons, r) })

	c.t = exp.Add(-expirySkew)
	if a.IsValid() {
		t.Error("token inside the skew window should count as expired")
	}
	if _, err := a.Token(); err != ErrNotAuthenticated {
		t.Errorf("Token() error = %v, want ErrNotAuthenticated", err)
	}
	if len(reasons) != 1 || reasons[0] != ReasonExpired {
		t.Errorf("logout reasons = %v, want [%s]", reasons, ReasonExpired)
	}
}

func TestAuth_IdleTimeout(t *testing.T) {
	a, c := newTestAuth(Config{IdleTimeout: 10 * time.Minute})
	_ = a.Login("trader", Tokens{Access: "tok"})

	c.t = c.t.Add(9 * time.Minute)
	if _, err := a.Token(); err != nil {
		t.Fatalf("Token() within idle window: %v", err)
	}
	// Token() counted as activity, so the window restarts.
	c.t = c.t.Add(9 * time.Minute)
	if !a.IsValid() {
		t.Error("activity should extend the idle window")
	}
	c.t = c.t.Add(2 * time.Minute)
	if a.IsValid() {
		t.Error("session should lapse after idle timeout")
	}
}

func TestAuth_LogoutCallbackOnlyWhenActive(t *testing.T) {
	a, _ := newTestAuth(Config{})
	calls := 0
	a.OnLogout(func(LogoutReason) { calls++ })

	a.Logout(ReasonUser)
	if calls != 0 {
		t.Errorf("logout of an inactive session fired %d callbacks", calls)
	}
	_ = a.Login("trader", Tokens{Access: "tok"})
	a.Logout(ReasonUnauthorized)
	a.Logout(ReasonUnauthorized)
	if calls != 1 {
		t.Errorf("callbacks = %d, want 1", calls)
	}
}

func TestTokenExpiry_OpaqueAndMalformed(t *testing.T) {
	for _, tok := range []string{"opaque", "a.b.c", "a.!!!.c", "a." + base64.RawURLEncoding.EncodeToString([]byte(`{}`)) + ".c"} {
		if exp := tokenExpiry(tok); !exp.IsZero() {
			t.Errorf("tokenExpiry(%q) = %v, want zero", tok, exp)
		}
	}
}

func TestTokenExpiry_SignedToken(t *testing.T) {
	exp := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 7,
		"exp":     exp.Unix(),
	}).SignedString([]byte("server-secret"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	if got := tokenExpiry(tok); !got.Equal(exp) {
		t.Errorf("tokenExpiry() = %v, want %v", got, exp)
	}
}

func TestLogout_CallbackMayRegisterAnother(t *testing.T) {
	a, _ := newTestAuth(Config{})
	var first, second int
	a.OnLogout(func(LogoutReason) {
		first++
		a.OnLogout(func(LogoutReason) { second++ })
	})

	_ = a.Login("trader", Tokens{Access: "tok"})
	a.Logout(ReasonUser)
	if first != 1 || second != 0 {
		t.Fatalf("after first logout: first=%d second=%d, want 1 0", first, second)
	}

	_ = a.Login("trader", Tokens{Access: "tok"})
	a.Logout(ReasonUser)
	if first != 2 || second != 1 {
		t.Errorf("after second logout: first=%d second=%d, want 2 1", first, second)
	}
}
