// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/tradedesk/internal/market"
	"github.com/jeranaias/tradedesk/internal/model"
	"github.com/jeranaias/tradedesk/internal/session"
	"github.com/jeranaias/tradedesk/internal/sse"
)

// ErrNoBody is returned when a stream response carries no body.
var ErrNoBody = sse.ErrNoBody

// =============================================================================
// AUTH
// =============================================================================

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Login exchanges credentials for tokens and installs them in the session.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var resp loginResponse
	err := c.do(ctx, request{
		method:    http.MethodPost,
		path:      "auth/login/",
		body:      loginRequest{Username: username, Password: password},
		anonymous: true,
	}, &resp)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		return fmt.Errorf("login failed: %w", err)
	}
	if c.auth == nil {
		return ErrNotAuthenticated
	}
	if err := c.auth.Login(username, session.Tokens{Access: resp.Access, Refresh: resp.Refresh}); err != nil {
		return err
	}
	c.logger.Info("Logged in", zap.String("username", username))
	return nil
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

func conversationPath(id, action string) string {
	p := "conversations/" + url.PathEscape(id) + "/"
	if action != "" {
		p += action + "/"
	}
	return p
}

// ListConversations returns the user's conversations in the given mode,
// most recently updated first as ordered by the server.
func (c *Client) ListConversations(ctx context.Context, mode model.Mode) ([]*model.Conversation, error) {
	var convs []*model.Conversation
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "conversations/",
		query:  url.Values{"mode": {mode.String()}},
	}, &convs)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	for _, conv := range convs {
		normalize(conv, mode)
	}
	return convs, nil
}

type createRequest struct {
	Title string `json:"title"`
	Mode  string `json:"mode"`
}

// CreateConversation creates an empty conversation on the server.
func (c *Client) CreateConversation(ctx context.Context, title string, mode model.Mode) (*model.Conversation, error) {
	if strings.TrimSpace(title) == "" {
		title = model.DefaultTitle
	}
	var conv model.Conversation
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "conversations/create/",
		body:   createRequest{Title: title, Mode: mode.String()},
	}, &conv)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	if conv.ID == "" {
		return nil, fmt.Errorf("failed to create conversation: response has no id")
	}
	normalize(&conv, mode)
	return &conv, nil
}

// GetConversation fetches one conversation with its messages.
func (c *Client) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := c.do(ctx, request{method: http.MethodGet, path: conversationPath(id, "")}, &conv)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation %s: %w", id, err)
	}
	normalize(&conv, "")
	return &conv, nil
}

type renameRequest struct {
	Title string `json:"title"`
}

// RenameConversation sets a conversation's title and returns the server's
// copy.
func (c *Client) RenameConversation(ctx context.Context, id, title string) (*model.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, &APIError{Status: http.StatusBadRequest, Detail: "Title is required"}
	}
	var conv model.Conversation
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   conversationPath(id, "rename"),
		body:   renameRequest{Title: title},
	}, &conv)
	if err != nil {
		return nil, fmt.Errorf("failed to rename conversation %s: %w", id, err)
	}
	normalize(&conv, "")
	if conv.ID == "" {
		conv.ID = id
	}
	if conv.Title == "" {
		conv.Title = title
	}
	return &conv, nil
}

// DeleteConversation removes a conversation on the server.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	err := c.do(ctx, request{method: http.MethodDelete, path: conversationPath(id, "delete")}, nil)
	if err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", id, err)
	}
	return nil
}

// normalize fills fields older servers leave out.
func normalize(conv *model.Conversation, mode model.Mode) {
	if conv.Mode == "" {
		conv.Mode = mode
	}
	if conv.Messages == nil {
		conv.Messages = make([]model.Message, 0)
	}
}

// =============================================================================
// STREAMING
// =============================================================================

type streamRequest struct {
	Content string `json:"content"`
}

// StreamMessage posts content to a conversation and returns the reply
// stream body. The caller must close it. The call is never retried.
func (c *Client) StreamMessage(ctx context.Context, id, content string) (io.ReadCloser, error) {
	r := request{
		method: http.MethodPost,
		path:   conversationPath(id, "stream"),
		body:   streamRequest{Content: content},
	}
	payload, err := jsonBody(r.body)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, r, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	start := time.Now()
	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stream request failed: %w", err)
	}
	c.logResponse(r, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, c.handleErrorResponse(resp.StatusCode, body)
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, ErrNoBody
	}
	return resp.Body, nil
}

// =============================================================================
// MARKET DATA
// =============================================================================

// StockHistory returns the price series for symbol over period.
func (c *Client) StockHistory(ctx context.Context, symbol string, period market.Period) ([]market.SeriesPoint, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, &APIError{Status: http.StatusBadRequest, Detail: "Symbol is required"}
	}
	if period == "" {
		period = market.DefaultPeriod
	}
	var points []market.SeriesPoint
	err := c.do(ctx, request{
		method:    http.MethodGet,
		path:      "stocks/history/",
		query:     url.Values{"symbol": {symbol}, "period": {string(period)}},
		anonymous: true,
	}, &points)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s history for %s: %w", period, symbol, err)
	}
	if points == nil {
		points = make([]market.SeriesPoint, 0)
	}
	return points, nil
}

// LoadSeries makes the client a panel.SeriesLoader.
func (c *Client) LoadSeries(ctx context.Context, symbol string, period market.Period) ([]market.SeriesPoint, error) {
	return c.StockHistory(ctx, symbol, period)
}
