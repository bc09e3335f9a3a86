// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the client for the trading-assistant HTTP API.
//
// The client covers login, the conversation REST surface, the reply stream
// and the price-history endpoint. Requests are bearer-authorised through a
// session.Auth; any 401 ends that session so every front end sees the
// logout at once.
//
// Idempotent GETs retry with exponential backoff on network errors, 5xx
// and 429. Writes and the reply stream never retry: a repeated POST would
// post the user's message twice.
//
// # Key Types
//
//   - Client: the API client
//   - APIError: a non-2xx answer with the server's detail message
//
// # Usage
//
//	auth := session.New(session.Config{})
//	c := api.New(auth).WithBaseURL("http://localhost:8000/api")
//	if err := c.Login(ctx, "trader", password); err != nil {
//	    return err
//	}
//	body, err := c.StreamMessage(ctx, convID, "show my holdings")
//	if err != nil {
//	    return err
//	}
//	defer body.Close()
package api
