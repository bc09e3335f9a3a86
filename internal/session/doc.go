// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session provides the explicit authentication session.
//
// Auth replaces ambient "is there a token somewhere" probes with one value
// that is passed to whoever needs it. It holds the bearer tokens issued at
// login, knows when they expire, and tells subscribers when the session
// ends, whether by the user, by token expiry, by idle timeout or because
// the API answered 401.
//
// Tokens live in memory only. Nothing here is written to disk.
//
// # Key Types
//
//   - Auth: login state with Login, Logout and IsValid
//   - Tokens: access and refresh tokens from the login endpoint
//   - LogoutReason: why a session ended
//   - ExpiredMsg: Bubble Tea message sent when a checked session has ended
//
// # Usage
//
//	auth := session.New(session.Config{IdleTimeout: 30 * time.Minute})
//	auth.OnLogout(func(r session.LogoutReason) { log.Println("logged out:", r) })
//	if err := auth.Login("trader", session.Tokens{Access: access}); err != nil {
//	    return err
//	}
//	token, err := auth.Token() // session.ErrNotAuthenticated once it lapses
package session
