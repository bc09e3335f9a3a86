// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jeranaias/tradedesk/internal/conversation"
	"github.com/jeranaias/tradedesk/internal/market"
	"github.com/jeranaias/tradedesk/internal/model"
	"github.com/jeranaias/tradedesk/internal/notify"
	"github.com/jeranaias/tradedesk/internal/panel"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeAPI serves canned conversations and a stream body per call.
type fakeAPI struct {
	mu      sync.Mutex
	convs   map[string]*model.Conversation
	created int
	streams []string
	sent    []string

	streamErr error
	body      func() io.ReadCloser
	renameErr error
	getCalls  int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{convs: make(map[string]*model.Conversation)}
}

func (f *fakeAPI) ListConversations(_ context.Context, mode model.Mode) ([]*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Conversation
	for _, c := range f.convs {
		if c.Mode == mode {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (f *fakeAPI) CreateConversation(_ context.Context, title string, mode model.Mode) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	c := &model.Conversation{ID: "srv-" + string(rune('0'+f.created)), Title: title, Mode: mode}
	f.convs[c.ID] = c
	return c.Clone(), nil
}

func (f *fakeAPI) GetConversation(_ context.Context, id string) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	c, ok := f.convs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return c.Clone(), nil
}

func (f *fakeAPI) RenameConversation(_ context.Context, id, title string) (*model.Conversation, error) {
	if f.renameErr != nil {
		return nil, f.renameErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.convs[id]
	c.Title = title
	return c.Clone(), nil
}

func (f *fakeAPI) DeleteConversation(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.convs, id)
	return nil
}

func (f *fakeAPI) StreamMessage(_ context.Context, id, content string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, content)
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	if f.body != nil {
		return f.body(), nil
	}
	body := f.streams[0]
	f.streams = f.streams[1:]
	return io.NopCloser(strings.NewReader(body)), nil
}

func newTestController(t *testing.T, api *fakeAPI, cfg Config) (*Controller, *notify.Recorder) {
	t.Helper()
	rec := &notify.Recorder{}
	p := panel.NewPresenter(nil, panel.WithNotifier(rec))
	c := NewController(api, conversation.NewStore(), p, WithNotifier(rec), WithConfig(cfg))
	return c, rec
}

func TestSend_EndToEndScenario(t *testing.T) {
	api := newFakeAPI()
	api.streams = []string{"data: Hello\n\ndata: [HOLDINGS][]\n\ndata:  world\n\ndata: !\n\ndata: [DONE-NOT]\n\ndata: [DONE]\n\n"}
	c, rec := newTestController(t, api, Config{})

	var kinds []UpdateKind
	var mu sync.Mutex
	c.Subscribe(func(u Update) {
		mu.Lock()
		kinds = append(kinds, u.Kind)
		mu.Unlock()
	})

	res, err := c.Send(context.Background(), "show my holdings")
	require.NoError(t, err)
	assert.Equal(t, "srv-1", res.ConversationID)
	assert.Equal(t, "Hello world!", res.Reply.Content)
	assert.True(t, res.Stats.Ended)
	assert.Equal(t, 1, res.Stats.Ignored)

	conv, ok := c.Store().Active()
	require.True(t, ok)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "show my holdings", conv.Messages[0].Content)
	assert.Equal(t, "Hello world!", conv.Messages[1].Content)
	assert.False(t, c.Store().HasOpenReply(conv.ID))

	st := c.Panel().State()
	assert.Equal(t, panel.ModeHoldings, st.Mode)
	assert.True(t, st.Visible)
	assert.Equal(t, market.Holdings{}, st.Data)

	assert.Empty(t, rec.Messages(notify.LevelError))
	assert.Contains(t, kinds, UpdateStreamStarted)
	assert.Contains(t, kinds, UpdatePanel)
	assert.Equal(t, UpdateStreamEnded, kinds[len(kinds)-1])
}

func TestSend_ReusesActiveConversation(t *testing.T) {
	api := newFakeAPI()
	api.streams = []string{"data: one\n\ndata: [DONE]\n\n", "data: two\n\ndata: [DONE]\n\n"}
	c, _ := newTestController(t, api, Config{})

	_, err := c.Send(context.Background(), "first")
	require.NoError(t, err)
	_, err = c.Send(context.Background(), "second")
	require.NoError(t, err)

	assert.Equal(t, 1, api.created)
	conv, _ := c.Store().Active()
	require.Len(t, conv.Messages, 4)
	assert.Equal(t, "two", conv.Messages[3].Content)
}

func TestSend_RejectsBlank(t *testing.T) {
	c, _ := newTestController(t, newFakeAPI(), Config{})
	_, err := c.Send(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestSend_TransportFailureAppliesPolicy(t *testing.T) {
	tests := []struct {
		policy conversation.FailurePolicy
		want   int
		status model.Status
	}{
		{conversation.PolicyRetain, 2, model.StatusOK},
		{conversation.PolicyMarkFailed, 2, model.StatusFailed},
		{conversation.PolicyRemove, 0, model.StatusOK},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			api := newFakeAPI()
			api.streamErr = errors.New("connection refused")
			c, rec := newTestController(t, api, Config{Policy: tt.policy})

			_, err := c.Send(context.Background(), "hi")
			require.Error(t, err)

			conv, _ := c.Store().Active()
			require.Len(t, conv.Messages, tt.want)
			for _, m := range conv.Messages {
				assert.Equal(t, tt.status, m.Status)
			}
			assert.False(t, c.Store().HasOpenReply(conv.ID))
			require.Len(t, rec.Messages(notify.LevelError), 1)
			assert.Contains(t, rec.Messages(notify.LevelError)[0], "connection refused")
		})
	}
}

func TestSend_SecondSendWhileStreamingIsRejected(t *testing.T) {
	api := newFakeAPI()
	pr, pw := io.Pipe()
	api.body = func() io.ReadCloser { return pr }
	c, _ := newTestController(t, api, Config{})

	started := make(chan struct{})
	c.Subscribe(func(u Update) {
		if u.Kind == UpdateMessages {
			select {
			case <-started:
			default:
				close(started)
			}
		}
	})

	done := make(chan error, 1)
	go func() {
		_, err := c.Send(context.Background(), "first")
		done <- err
	}()

	_, err := pw.Write([]byte("data: partial\n\n"))
	require.NoError(t, err)
	<-started

	_, err = c.Send(context.Background(), "second")
	assert.ErrorIs(t, err, conversation.ErrReplyInProgress)

	_, err = pw.Write([]byte("data: [DONE]\n\n"))
	require.NoError(t, err)
	pw.Close()
	require.NoError(t, <-done)

	conv, _ := c.Store().Active()
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, []string{"first"}, api.sent)
}

func TestSend_CancelKeepsPartialReply(t *testing.T) {
	api := newFakeAPI()
	pr, pw := io.Pipe()
	api.body = func() io.ReadCloser { return pr }
	c, rec := newTestController(t, api, Config{RefreshAfterStream: true})

	got := make(chan struct{}, 1)
	c.Subscribe(func(u Update) {
		if u.Kind == UpdateMessages {
			select {
			case got <- struct{}{}:
			default:
			}
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() {
		res, err := c.Send(ctx, "hi")
		assert.NoError(t, err)
		done <- res
	}()

	_, err := pw.Write([]byte("data: Partial\n\n"))
	require.NoError(t, err)
	<-got
	cancel()

	select {
	case res := <-done:
		assert.True(t, res.Cancelled)
		assert.Equal(t, "Partial", res.Reply.Content)
	case <-time.After(5 * time.Second):
		t.Fatal("Send did not return after cancel")
	}
	assert.Equal(t, []string{"Reply stopped"}, rec.Messages(notify.LevelInfo))
	assert.Equal(t, 0, api.getCalls, "a cancelled turn is not refreshed")
	pw.Close()
}

func TestSend_RefreshReplacesLocalCopy(t *testing.T) {
	api := newFakeAPI()
	api.streams = []string{"data: local\n\ndata: [DONE]\n\n"}
	c, _ := newTestController(t, api, Config{RefreshAfterStream: true})

	// The server stores its own rendering of the turn.
	_, err := c.NewConversation(context.Background(), "Banks")
	require.NoError(t, err)
	api.convs["srv-1"].Messages = []model.Message{
		{ID: "u1", Role: model.RoleUser, Content: "hi"},
		{ID: "a1", Role: model.RoleAssistant, Content: "server copy"},
	}

	_, err = c.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, 1, api.getCalls)

	conv, _ := c.Store().Active()
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "a1", conv.Messages[1].ID)
	assert.Equal(t, "server copy", conv.Messages[1].Content)
}

func TestRenameAndDelete(t *testing.T) {
	api := newFakeAPI()
	c, rec := newTestController(t, api, Config{})
	first, err := c.NewConversation(context.Background(), "")
	require.NoError(t, err)
	second, err := c.NewConversation(context.Background(), "Second")
	require.NoError(t, err)

	require.NoError(t, c.Rename(context.Background(), first.ID, "Pharma"))
	got, _ := c.Store().Get(first.ID)
	assert.Equal(t, "Pharma", got.Title)
	assert.Equal(t, []string{"Conversation title updated"}, rec.Messages(notify.LevelSuccess))

	api.renameErr = errors.New("Title is required")
	require.Error(t, c.Rename(context.Background(), first.ID, "x"))
	got, _ = c.Store().Get(first.ID)
	assert.Equal(t, "Pharma", got.Title, "a failed rename leaves the store alone")
	assert.Len(t, rec.Messages(notify.LevelError), 1)

	require.NoError(t, c.Delete(context.Background(), second.ID))
	assert.Equal(t, first.ID, c.Store().ActiveID())
	_, ok := api.convs[second.ID]
	assert.False(t, ok)

	assert.ErrorIs(t, c.Delete(context.Background(), "nope"), conversation.ErrNotFound)
}

func TestLoadInitialSelectsFirst(t *testing.T) {
	api := newFakeAPI()
	api.convs["a"] = &model.Conversation{ID: "a", Mode: model.ModeReal}
	api.convs["sim"] = &model.Conversation{ID: "sim", Mode: model.ModeSimulation}
	c, _ := newTestController(t, api, Config{})

	require.NoError(t, c.LoadInitial(context.Background()))
	assert.Equal(t, []string{"a"}, c.Store().IDs())
	assert.Equal(t, "a", c.Store().ActiveID())
}

func TestLoadSeriesNeedsQuote(t *testing.T) {
	c, _ := newTestController(t, newFakeAPI(), Config{})
	assert.ErrorIs(t, c.LoadSeries(context.Background(), market.Period5D), panel.ErrNoQuote)

	bare := NewController(newFakeAPI(), conversation.NewStore(), nil)
	assert.ErrorIs(t, bare.LoadSeries(context.Background(), market.Period5D), ErrNoPanel)
}
