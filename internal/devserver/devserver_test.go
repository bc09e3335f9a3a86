// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tradedesk/internal/api"
	"github.com/jeranaias/tradedesk/internal/chat"
	"github.com/jeranaias/tradedesk/internal/conversation"
	"github.com/jeranaias/tradedesk/internal/market"
	"github.com/jeranaias/tradedesk/internal/model"
	"github.com/jeranaias/tradedesk/internal/panel"
	"github.com/jeranaias/tradedesk/internal/session"
	"github.com/jeranaias/tradedesk/internal/storage"
)

// =============================================================================
// HELPERS
// =============================================================================

type harness struct {
	srv    *Server
	http   *httptest.Server
	client *api.Client
	auth   *session.Auth
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "dev.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.EnsureUser(context.Background(), "trader", "secret")
	require.NoError(t, err)

	srv := New(db, Config{Secret: "test-secret"}, opts...)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)

	auth := session.New(session.Config{})
	client := api.New(auth).
		WithBaseURL(hs.URL + "/api").
		WithHTTPClient(hs.Client()).
		WithBackoff(time.Millisecond).
		WithRateLimit(0)
	return &harness{srv: srv, http: hs, client: client, auth: auth}
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	require.NoError(t, h.client.Login(context.Background(), "trader", "secret"))
}

func (h *harness) controller(opts ...chat.Option) *chat.Controller {
	return chat.NewController(h.client, conversation.NewStore(), panel.NewPresenter(h.client), opts...)
}

// =============================================================================
// END TO END
// =============================================================================

func TestDevServer_PortfolioTurn(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	ctrl := h.controller()

	res, err := ctrl.Send(context.Background(), "show my portfolio")
	require.NoError(t, err)
	assert.True(t, res.Stats.Ended)
	assert.Contains(t, res.Reply.Content, "Here is your portfolio.")

	st := ctrl.Panel().State()
	require.Equal(t, panel.ModeHoldings, st.Mode)
	holdings, ok := st.Data.(market.Holdings)
	require.True(t, ok)
	assert.Len(t, holdings, 4)
	assert.Equal(t, "RELIANCE", holdings[0].TradingSymbol)

	// The post-stream refresh replaced the local copy with the server's.
	conv, ok := ctrl.Store().Get(res.ConversationID)
	require.True(t, ok)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, model.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, "show my portfolio", conv.Messages[0].Content)
	assert.Equal(t, res.Reply.Content, conv.Messages[1].Content)
	assert.Equal(t, 1, int(h.srv.Stats().Streams))
}

func TestDevServer_ProtocolEdgeCases(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	ctrl := h.controller()

	res, err := ctrl.Send(context.Background(), "protocol test")
	require.NoError(t, err)
	assert.Equal(t, "Hello world!", res.Reply.Content)
	assert.Equal(t, 1, res.Stats.Ignored)

	st := ctrl.Panel().State()
	assert.Equal(t, panel.ModeHoldings, st.Mode)
	assert.Empty(t, st.Data)
}

func TestDevServer_QuoteAndSeries(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	ctrl := h.controller()

	_, err := ctrl.Send(context.Background(), "quote for TCS please")
	require.NoError(t, err)

	st := ctrl.Panel().State()
	require.Equal(t, panel.ModeSingle, st.Mode)
	q := st.Data.(market.Quote)
	assert.Equal(t, "TCS", q.Symbol)
	assert.Len(t, q.History1D, 76)

	require.NoError(t, ctrl.LoadSeries(context.Background(), market.Period6MO))
	st = ctrl.Panel().State()
	assert.Equal(t, market.Period6MO, st.Period)
	assert.Len(t, st.Series, 126)
}

func TestDevServer_DefaultReplyEchoes(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	ctrl := h.controller()

	res, err := ctrl.Send(context.Background(), "what is [DONE] anyway")
	require.NoError(t, err)
	assert.Equal(t, "You said: what is [DONE] anyway", res.Reply.Content)
}

func TestDevServer_ConversationLifecycle(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	ctx := context.Background()

	live, err := h.client.CreateConversation(ctx, "", model.ModeReal)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultTitle, live.Title)
	assert.Len(t, live.ID, 24)

	_, err = h.client.CreateConversation(ctx, "Paper trades", model.ModeSimulation)
	require.NoError(t, err)

	list, err := h.client.ListConversations(ctx, model.ModeReal)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, live.ID, list[0].ID)

	renamed, err := h.client.RenameConversation(ctx, live.ID, "Banks")
	require.NoError(t, err)
	assert.Equal(t, "Banks", renamed.Title)

	require.NoError(t, h.client.DeleteConversation(ctx, live.ID))
	_, err = h.client.GetConversation(ctx, live.ID)
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestDevServer_StreamUnknownConversation(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	_, err := h.client.StreamMessage(context.Background(), "0123456789abcdef01234567", "hi")
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestDevServer_RequiresToken(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Get(h.http.URL + "/api/conversations/?mode=real")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(body), "credentials were not provided")

	req, _ := http.NewRequest(http.MethodGet, h.http.URL+"/api/conversations/", nil)
	req.Header.Set("Authorization", "Bearer forged.token.value")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

func TestDevServer_BadLogin(t *testing.T) {
	h := newHarness(t)
	err := h.client.Login(context.Background(), "trader", "wrong")
	assert.ErrorIs(t, err, api.ErrInvalidCredentials)
	assert.False(t, h.auth.IsValid())
}

func TestDevServer_StreamValidation(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	conv, err := h.client.CreateConversation(context.Background(), "x", model.ModeReal)
	require.NoError(t, err)

	_, err = h.client.StreamMessage(context.Background(), conv.ID, "   ")
	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "content required", apiErr.Detail)
}

func TestDevServer_StreamHeaders(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	conv, err := h.client.CreateConversation(context.Background(), "x", model.ModeReal)
	require.NoError(t, err)
	token, err := h.auth.Token()
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodPost, h.http.URL+"/api/conversations/"+conv.ID+"/stream/",
		strings.NewReader(`{"content":"hello"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "no", resp.Header.Get("X-Accel-Buffering"))
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "data: You \n\ndata: said: \n\ndata: hello\n\ndata: [DONE]\n\n", string(body))
}

func TestDevServer_History(t *testing.T) {
	h := newHarness(t)

	_, err := h.client.StockHistory(context.Background(), "", market.Period1D)
	require.Error(t, err)

	resp, err := http.Get(h.http.URL + "/api/stocks/history/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	points, err := h.client.StockHistory(context.Background(), "INFY", market.Period5D)
	require.NoError(t, err)
	assert.Len(t, points, 5*26)
}

// =============================================================================
// UNITS
// =============================================================================

func TestSeries_Deterministic(t *testing.T) {
	end := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC) // a Friday
	a := Series("tcs", market.Period1D, end)
	b := Series("TCS", market.Period1D, end)
	require.Equal(t, a, b)
	require.Len(t, a, 76)
	assert.Equal(t, "2025-03-14T09:15:00+05:30", a[0].Time)
	assert.Equal(t, "2025-03-14T15:30:00+05:30", a[len(a)-1].Time)

	other := Series("INFY", market.Period1D, end)
	assert.NotEqual(t, a[0].Value, other[0].Value)

	assert.Empty(t, Series("TCS", market.Period("max"), end))
}

func TestSeries_SkipsWeekends(t *testing.T) {
	sunday := time.Date(2025, 3, 16, 12, 0, 0, 0, ist)
	pts := Series("SBIN", market.Period1D, sunday)
	require.NotEmpty(t, pts)
	assert.True(t, strings.HasPrefix(pts[0].Time, "2025-03-14"))
}

func TestToken_RoundTrip(t *testing.T) {
	s := signer{secret: []byte("k")}
	now := time.Unix(1_700_000_000, 0)
	tok, err := s.issue(7, "trader", tokenAccess, now, time.Hour)
	require.NoError(t, err)

	claims, err := s.verify(tok, tokenAccess, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "trader", claims.Username)

	_, err = s.verify(tok, tokenRefresh, now)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = s.verify(tok, tokenAccess, now.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = signer{secret: []byte("other")}.verify(tok, tokenAccess, now)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	other, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		TokenType:        tokenAccess,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	_, err = s.verify(other, tokenAccess, now)
	assert.ErrorIs(t, err, ErrTokenInvalid, "only HS256 is accepted")
}

func TestToken_ExpiryVisibleToSession(t *testing.T) {
	s := signer{secret: []byte("k")}
	now := time.Now()
	tok, err := s.issue(1, "trader", tokenAccess, now, time.Hour)
	require.NoError(t, err)

	auth := session.New(session.Config{})
	require.NoError(t, auth.Login("trader", session.Tokens{Access: tok}))
	assert.WithinDuration(t, now.Add(time.Hour), auth.ExpiresAt(), time.Second)
}

func TestParseScript(t *testing.T) {
	s, err := ParseScript([]byte(`
replies:
  - match: [Hello]
    text: hi there
`))
	require.NoError(t, err)
	assert.Equal(t, "hi there", s.Match("well HELLO").Text)
	assert.Equal(t, "You said: {input}", s.Match("nothing").Text)

	_, err = ParseScript([]byte(`
replies:
  - match: [bad]
    stocks: {type: weird, data: {}}
`))
	assert.Error(t, err)

	_, err = ParseScript([]byte(`replies: [{text: orphan}]`))
	assert.Error(t, err)
}

func TestDefaultScript_Valid(t *testing.T) {
	s := DefaultScript()
	assert.NotEmpty(t, s.Replies)
	assert.Equal(t, "You said: {input}", s.Default.Text)
}

func TestChunkText(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"one", []string{"one"}},
		{"a b", []string{"a ", "b"}},
		{"say [DONE] now", []string{"say [DONE] ", "now"}},
		{"[DONE]", []string{"[DONE]"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, chunkText(tt.in))
		})
	}
}

func TestReplyText(t *testing.T) {
	assert.Equal(t, "You said: hi", replyText("You said: {input}", "hi"))
	assert.Equal(t, "a\nb", replyText("a\n\n\nb\n", ""))
	assert.Equal(t, "a\nb", replyText("a\r\n\r\nb", ""))
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Unix(0, 0)
	rl.now = func() time.Time { return now }

	_, ok := rl.Allow("1.2.3.4")
	assert.True(t, ok)
	remaining, ok := rl.Allow("1.2.3.4")
	assert.True(t, ok)
	assert.Equal(t, 0, remaining)
	_, ok = rl.Allow("1.2.3.4")
	assert.False(t, ok)
	_, ok = rl.Allow("5.6.7.8")
	assert.True(t, ok)

	now = now.Add(time.Minute + time.Second)
	_, ok = rl.Allow("1.2.3.4")
	assert.True(t, ok)
}

func TestWatchScript_Reloads(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default: {text: first}\n"), 0o644))
	sc, err := LoadScript(path)
	require.NoError(t, err)
	h.srv.SetScript(sc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- WatchScript(ctx, path, h.srv) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register before writing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("default: {text: second}\n"), 0o644))

	require.Eventually(t, func() bool {
		return h.srv.script.Load().Default.Text == "second"
	}, 2*time.Second, 10*time.Millisecond)
}
