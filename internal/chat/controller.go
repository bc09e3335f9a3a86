// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/tradedesk/internal/conversation"
	"github.com/jeranaias/tradedesk/internal/market"
	"github.com/jeranaias/tradedesk/internal/model"
	"github.com/jeranaias/tradedesk/internal/notify"
	"github.com/jeranaias/tradedesk/internal/panel"
	"github.com/jeranaias/tradedesk/internal/sse"
)

// Controller errors.
var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrNoPanel      = errors.New("no side panel attached")
)

// API is the part of the API client the controller needs.
type API interface {
	ListConversations(ctx context.Context, mode model.Mode) ([]*model.Conversation, error)
	CreateConversation(ctx context.Context, title string, mode model.Mode) (*model.Conversation, error)
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	RenameConversation(ctx context.Context, id, title string) (*model.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	StreamMessage(ctx context.Context, id, content string) (io.ReadCloser, error)
}

// =============================================================================
// UPDATES
// =============================================================================

// UpdateKind says what changed.
type UpdateKind int

const (
	// UpdateConversations: the listing or active selection changed.
	UpdateConversations UpdateKind = iota
	// UpdateMessages: messages of ConversationID changed.
	UpdateMessages
	// UpdateStreamStarted: a reply began streaming.
	UpdateStreamStarted
	// UpdateStreamEnded: the reply stream finished, successfully or not.
	UpdateStreamEnded
	// UpdatePanel: the side panel changed.
	UpdatePanel
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateConversations:
		return "conversations"
	case UpdateMessages:
		return "messages"
	case UpdateStreamStarted:
		return "stream-started"
	case UpdateStreamEnded:
		return "stream-ended"
	case UpdatePanel:
		return "panel"
	default:
		return "unknown"
	}
}

// Update is delivered to observers after a state change. Observers read the
// new state from the store or presenter.
type Update struct {
	Kind           UpdateKind
	ConversationID string
	Err            error
}

// Observer receives updates. It is called from whichever goroutine made the
// change and must not block.
type Observer func(Update)

// =============================================================================
// CONTROLLER
// =============================================================================

// Config holds the controller's behaviour switches.
type Config struct {
	Mode         model.Mode
	DefaultTitle string
	Policy       conversation.FailurePolicy

	// RefreshAfterStream re-fetches the conversation once a reply completes
	// so local ids and timestamps match the server.
	RefreshAfterStream bool
}

// DefaultConfig returns the controller defaults.
func DefaultConfig() Config {
	return Config{
		Mode:               model.ModeReal,
		DefaultTitle:       model.DefaultTitle,
		Policy:             conversation.DefaultFailurePolicy,
		RefreshAfterStream: true,
	}
}

// Controller drives chat turns. Safe for concurrent use; turns on different
// conversations may stream at the same time.
type Controller struct {
	api      API
	store    *conversation.Store
	panel    *panel.Presenter
	notifier notify.Notifier
	logger   *zap.Logger
	cfg      Config

	mu        sync.Mutex
	observers []Observer
}

// Option configures a Controller.
type Option func(*Controller)

// WithNotifier sets where user-facing notifications go.
func WithNotifier(n notify.Notifier) Option {
	return func(c *Controller) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithLogger sets the controller's logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithConfig overrides DefaultConfig. Empty fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(c *Controller) {
		if cfg.Mode != "" {
			c.cfg.Mode = cfg.Mode
		}
		if cfg.DefaultTitle != "" {
			c.cfg.DefaultTitle = cfg.DefaultTitle
		}
		if cfg.Policy != "" {
			c.cfg.Policy = cfg.Policy
		}
		c.cfg.RefreshAfterStream = cfg.RefreshAfterStream
	}
}

// NewController wires api, store and presenter together. presenter may be
// nil for front ends without a side panel.
func NewController(api API, store *conversation.Store, presenter *panel.Presenter, opts ...Option) *Controller {
	c := &Controller{
		api:      api,
		store:    store,
		panel:    presenter,
		notifier: notify.Discard,
		logger:   zap.NewNop(),
		cfg:      DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers an observer.
func (c *Controller) Subscribe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

func (c *Controller) emit(u Update) {
	c.mu.Lock()
	observers := append([]Observer(nil), c.observers...)
	c.mu.Unlock()
	for _, o := range observers {
		o(u)
	}
}

// Store returns the conversation store.
func (c *Controller) Store() *conversation.Store { return c.store }

// Panel returns the side-panel presenter, possibly nil.
func (c *Controller) Panel() *panel.Presenter { return c.panel }

// Mode returns the conversation mode this controller lists and creates.
func (c *Controller) Mode() model.Mode { return c.cfg.Mode }

// =============================================================================
// SEND
// =============================================================================

// Result summarises one completed turn.
type Result struct {
	ConversationID string
	Reply          model.Message
	Stats          sse.Stats
	Cancelled      bool
}

// Send posts text to the active conversation (creating one if needed) and
// streams the reply. It blocks until the stream ends, fails or ctx is
// cancelled. A cancelled turn keeps whatever text already arrived.
func (c *Controller) Send(ctx context.Context, text string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, ErrEmptyMessage
	}

	id, err := c.ensureConversation(ctx)
	if err != nil {
		return Result{}, err
	}
	if _, _, err := c.store.StartTurn(id, text); err != nil {
		return Result{ConversationID: id}, err
	}
	c.emit(Update{Kind: UpdateStreamStarted, ConversationID: id})

	res := Result{ConversationID: id}
	stats, err := c.stream(ctx, id, text)
	res.Stats = stats

	switch {
	case err == nil:
		res.Reply, _ = c.store.CloseReply(id)
		c.logger.Debug("Reply complete",
			zap.String("conversation_id", id),
			zap.Int("deltas", stats.Deltas),
			zap.Int("payloads", stats.Payloads),
			zap.Bool("ended", stats.Ended))
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		res.Reply, _ = c.store.CloseReply(id)
		res.Cancelled = true
		notify.Info(c.notifier, "Reply stopped")
		err = nil
	default:
		c.fail(id, err)
	}
	c.emit(Update{Kind: UpdateStreamEnded, ConversationID: id, Err: err})
	if err != nil {
		return res, err
	}

	if c.cfg.RefreshAfterStream && !res.Cancelled {
		c.refreshConversation(ctx, id)
	}
	return res, nil
}

// ensureConversation returns the active conversation id, creating one on
// the server when there is none.
func (c *Controller) ensureConversation(ctx context.Context) (string, error) {
	if id := c.store.ActiveID(); id != "" {
		return id, nil
	}
	conv, err := c.api.CreateConversation(ctx, c.cfg.DefaultTitle, c.cfg.Mode)
	if err != nil {
		notify.Errorf(c.notifier, "Could not start a conversation: %v", err)
		return "", err
	}
	if err := c.store.Insert(conv); err != nil {
		return "", err
	}
	c.emit(Update{Kind: UpdateConversations, ConversationID: conv.ID})
	return conv.ID, nil
}

// stream opens the reply stream and dispatches it into the store and panel.
func (c *Controller) stream(ctx context.Context, id, text string) (sse.Stats, error) {
	body, err := c.api.StreamMessage(ctx, id, text)
	if err != nil {
		return sse.Stats{}, err
	}
	defer body.Close()

	// Closing the body unblocks a read that is waiting on the network.
	stop := context.AfterFunc(ctx, func() { body.Close() })
	defer stop()

	h := sse.HandlerFuncs{
		Text: func(delta string) {
			if c.store.ApplyTextDelta(id, delta) {
				c.emit(Update{Kind: UpdateMessages, ConversationID: id})
			}
		},
		Payload: func(p market.Payload) {
			if c.panel == nil {
				return
			}
			c.panel.SetPayload(p)
			c.emit(Update{Kind: UpdatePanel, ConversationID: id})
		},
	}
	stats, err := sse.Run(ctx, body, h, sse.WithLogger(c.logger))
	if err != nil && ctx.Err() != nil {
		return stats, ctx.Err()
	}
	return stats, err
}

func (c *Controller) fail(id string, err error) {
	c.logger.Warn("Reply failed",
		zap.String("conversation_id", id),
		zap.String("policy", string(c.cfg.Policy)),
		zap.Error(err))
	if ferr := c.store.FailReply(id, c.cfg.Policy); ferr != nil {
		c.logger.Debug("No reply to fail", zap.String("conversation_id", id), zap.Error(ferr))
	}
	notify.Errorf(c.notifier, "Failed to get a reply: %v", err)
	c.emit(Update{Kind: UpdateMessages, ConversationID: id})
}

// refreshConversation replaces the local copy with the server's. Failures
// are logged only; the local copy is still complete.
func (c *Controller) refreshConversation(ctx context.Context, id string) {
	conv, err := c.api.GetConversation(ctx, id)
	if err != nil {
		c.logger.Warn("Failed to refresh conversation", zap.String("conversation_id", id), zap.Error(err))
		return
	}
	if err := c.store.Replace(conv); err != nil {
		c.logger.Debug("Skipped refresh", zap.String("conversation_id", id), zap.Error(err))
		return
	}
	c.emit(Update{Kind: UpdateMessages, ConversationID: id})
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// LoadInitial fetches the conversation listing and selects the first one.
func (c *Controller) LoadInitial(ctx context.Context) error {
	convs, err := c.api.ListConversations(ctx, c.cfg.Mode)
	if err != nil {
		notify.Errorf(c.notifier, "Failed to load conversations: %v", err)
		return err
	}
	if err := c.store.Load(convs); err != nil {
		return err
	}
	c.emit(Update{Kind: UpdateConversations})
	return nil
}

// Refresh re-fetches one conversation, by default the active one.
func (c *Controller) Refresh(ctx context.Context, id string) error {
	if id == "" {
		id = c.store.ActiveID()
	}
	if id == "" {
		return conversation.ErrNotFound
	}
	conv, err := c.api.GetConversation(ctx, id)
	if err != nil {
		notify.Errorf(c.notifier, "Failed to refresh conversation: %v", err)
		return err
	}
	if err := c.store.Replace(conv); err != nil {
		return err
	}
	c.emit(Update{Kind: UpdateMessages, ConversationID: id})
	return nil
}

// NewConversation creates a conversation on the server and makes it active.
func (c *Controller) NewConversation(ctx context.Context, title string) (*model.Conversation, error) {
	if strings.TrimSpace(title) == "" {
		title = c.cfg.DefaultTitle
	}
	conv, err := c.api.CreateConversation(ctx, title, c.cfg.Mode)
	if err != nil {
		notify.Errorf(c.notifier, "Could not create conversation: %v", err)
		return nil, err
	}
	if err := c.store.Insert(conv); err != nil {
		return nil, err
	}
	c.emit(Update{Kind: UpdateConversations, ConversationID: conv.ID})
	return conv, nil
}

// Switch makes id the active conversation.
func (c *Controller) Switch(id string) error {
	if err := c.store.SetActive(id); err != nil {
		return err
	}
	c.emit(Update{Kind: UpdateConversations, ConversationID: id})
	return nil
}

// Rename renames a conversation on the server, then locally.
func (c *Controller) Rename(ctx context.Context, id, title string) error {
	if id == "" {
		id = c.store.ActiveID()
	}
	if _, ok := c.store.Get(id); !ok {
		return conversation.ErrNotFound
	}
	conv, err := c.api.RenameConversation(ctx, id, title)
	if err != nil {
		notify.Errorf(c.notifier, "Failed to update title: %v", err)
		return err
	}
	if err := c.store.Rename(id, conv.Title); err != nil {
		return err
	}
	notify.Success(c.notifier, "Conversation title updated")
	c.emit(Update{Kind: UpdateConversations, ConversationID: id})
	return nil
}

// Delete removes a conversation on the server, then locally. The panel is
// left as it is.
func (c *Controller) Delete(ctx context.Context, id string) error {
	if id == "" {
		id = c.store.ActiveID()
	}
	if _, ok := c.store.Get(id); !ok {
		return conversation.ErrNotFound
	}
	if c.store.HasOpenReply(id) {
		return conversation.ErrReplyInProgress
	}
	if err := c.api.DeleteConversation(ctx, id); err != nil {
		notify.Errorf(c.notifier, "Failed to delete conversation: %v", err)
		return err
	}
	if _, err := c.store.Delete(id); err != nil {
		return err
	}
	notify.Success(c.notifier, "Conversation deleted")
	c.emit(Update{Kind: UpdateConversations, ConversationID: id})
	return nil
}

// =============================================================================
// PANEL
// =============================================================================

// LoadSeries refreshes the chart window of the panel's quote.
func (c *Controller) LoadSeries(ctx context.Context, period market.Period) error {
	if c.panel == nil {
		return ErrNoPanel
	}
	st := c.panel.State()
	if st.Mode != panel.ModeSingle || st.Symbol == "" {
		return panel.ErrNoQuote
	}
	err := c.panel.LoadSeries(ctx, st.Symbol, period)
	c.emit(Update{Kind: UpdatePanel, Err: err})
	return err
}
