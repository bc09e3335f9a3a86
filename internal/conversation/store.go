// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/tradedesk/internal/model"
)

// Store errors.
var (
	ErrNotFound        = errors.New("conversation not found")
	ErrDuplicateID     = errors.New("conversation id already exists")
	ErrReplyInProgress = errors.New("a reply is already streaming in this conversation")
	ErrNoOpenReply     = errors.New("no reply is open in this conversation")
)

// openReply is the accumulation slot for one streaming assistant message.
type openReply struct {
	msgID  string
	userID string // user message that prompted the reply, may be empty
	buf    strings.Builder
}

// Store is the in-memory conversation collection. All methods are safe for
// concurrent use; values handed out are copies.
type Store struct {
	mu       sync.RWMutex
	order    []string // listing order, newest first
	convs    map[string]*model.Conversation
	open     map[string]*openReply
	activeID string

	defaultTitle string
	defaultMode  model.Mode
	logger       *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDefaults sets the title and mode used when a conversation is started
// implicitly.
func WithDefaults(title string, mode model.Mode) Option {
	return func(s *Store) {
		if title != "" {
			s.defaultTitle = title
		}
		if mode != "" {
			s.defaultMode = mode
		}
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		convs:        make(map[string]*model.Conversation),
		open:         make(map[string]*openReply),
		defaultTitle: model.DefaultTitle,
		defaultMode:  model.ModeReal,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Create registers an empty conversation with a fresh id, places it at the
// top of the listing and makes it active.
func (s *Store) Create(title string, mode model.Mode) *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(title, mode).Clone()
}

func (s *Store) createLocked(title string, mode model.Mode) *model.Conversation {
	if title == "" {
		title = s.defaultTitle
	}
	if mode == "" {
		mode = s.defaultMode
	}
	conv := model.NewConversation(title, mode)
	s.insertLocked(conv)
	s.logger.Debug("Created conversation", zap.String("conversation_id", conv.ID))
	return conv
}

// Insert adds a conversation whose id was assigned elsewhere (the API),
// placing it at the top of the listing and making it active.
func (s *Store) Insert(conv *model.Conversation) error {
	if conv == nil || conv.ID == "" {
		return ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[conv.ID]; ok {
		return ErrDuplicateID
	}
	s.insertLocked(conv.Clone())
	return nil
}

func (s *Store) insertLocked(conv *model.Conversation) {
	if conv.Messages == nil {
		conv.Messages = make([]model.Message, 0)
	}
	s.convs[conv.ID] = conv
	s.order = append([]string{conv.ID}, s.order...)
	s.activeID = conv.ID
}

// Load replaces the whole collection with convs, in the given order. The
// active conversation is kept if it is still present, otherwise the first
// one is selected. Duplicate ids keep their first occurrence. Load is
// refused while any reply is open.
func (s *Store) Load(convs []*model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.open) > 0 {
		return ErrReplyInProgress
	}

	s.convs = make(map[string]*model.Conversation, len(convs))
	s.order = s.order[:0]
	for _, c := range convs {
		if c == nil || c.ID == "" {
			continue
		}
		if _, dup := s.convs[c.ID]; dup {
			s.logger.Warn("Skipping duplicate conversation in listing", zap.String("conversation_id", c.ID))
			continue
		}
		clone := c.Clone()
		if clone.Messages == nil {
			clone.Messages = make([]model.Message, 0)
		}
		s.convs[c.ID] = clone
		s.order = append(s.order, c.ID)
	}

	if _, ok := s.convs[s.activeID]; !ok {
		s.activeID = ""
		if len(s.order) > 0 {
			s.activeID = s.order[0]
		}
	}
	return nil
}

// Replace swaps in a fresh copy of an existing conversation, typically the
// server's view after a reply completes. Position in the listing is kept.
func (s *Store) Replace(conv *model.Conversation) error {
	if conv == nil {
		return ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[conv.ID]; !ok {
		return ErrNotFound
	}
	if _, busy := s.open[conv.ID]; busy {
		return ErrReplyInProgress
	}
	clone := conv.Clone()
	if clone.Messages == nil {
		clone.Messages = make([]model.Message, 0)
	}
	s.convs[conv.ID] = clone
	return nil
}

// Rename sets a conversation's title.
func (s *Store) Rename(id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return ErrNotFound
	}
	conv.Title = title
	conv.UpdatedAt = model.Now()
	return nil
}

// Delete removes a conversation. If it was active, the first remaining
// conversation becomes active (or none). The new active id is returned.
// Any open reply in the conversation is dropped with it.
func (s *Store) Delete(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[id]; !ok {
		return s.activeID, ErrNotFound
	}
	delete(s.convs, id)
	delete(s.open, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.activeID == id {
		s.activeID = ""
		if len(s.order) > 0 {
			s.activeID = s.order[0]
		}
	}
	return s.activeID, nil
}

// =============================================================================
// MESSAGES
// =============================================================================

// AppendUserMessage appends a user message. An empty id targets the active
// conversation; with no active conversation one is created first. The id
// actually used is returned. Appending is refused while the conversation
// has an open reply.
func (s *Store) AppendUserMessage(id, text string) (string, model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = s.activeID
	}
	var conv *model.Conversation
	if id == "" {
		conv = s.createLocked("", "")
		id = conv.ID
	} else {
		var ok bool
		if conv, ok = s.convs[id]; !ok {
			return id, model.Message{}, ErrNotFound
		}
	}
	if _, busy := s.open[id]; busy {
		return id, model.Message{}, ErrReplyInProgress
	}

	msg := model.NewUserMessage(text)
	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = msg.CreatedAt
	return id, msg, nil
}

// BeginAssistantReply appends an empty assistant message and makes it the
// conversation's open reply, the only target of ApplyTextDelta.
func (s *Store) BeginAssistantReply(id string) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[id]
	if !ok {
		return model.Message{}, ErrNotFound
	}
	if _, busy := s.open[id]; busy {
		return model.Message{}, ErrReplyInProgress
	}

	reply := &openReply{}
	if last, ok := conv.LastMessage(); ok && last.Role == model.RoleUser {
		reply.userID = last.ID
	}
	msg := model.NewAssistantMessage()
	reply.msgID = msg.ID
	conv.Messages = append(conv.Messages, msg)
	s.open[id] = reply
	return msg, nil
}

// ApplyTextDelta appends text to the open reply. It reports false, and
// changes nothing, when no reply is open.
func (s *Store) ApplyTextDelta(id, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	reply, ok := s.open[id]
	if !ok {
		return false
	}
	msg := s.messageLocked(id, reply.msgID)
	if msg == nil {
		return false
	}
	reply.buf.WriteString(text)
	msg.Content = reply.buf.String()
	return true
}

// CloseReply ends the open reply, freezing its content.
func (s *Store) CloseReply(id string) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reply, ok := s.open[id]
	if !ok {
		return model.Message{}, ErrNoOpenReply
	}
	delete(s.open, id)
	if msg := s.messageLocked(id, reply.msgID); msg != nil {
		return *msg, nil
	}
	return model.Message{}, ErrNotFound
}

// FailReply ends the open reply after a failed send and applies policy to
// the turn's user and assistant messages.
func (s *Store) FailReply(id string, policy FailurePolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reply, ok := s.open[id]
	if !ok {
		return ErrNoOpenReply
	}
	delete(s.open, id)

	conv, ok := s.convs[id]
	if !ok {
		return ErrNotFound
	}

	switch policy {
	case PolicyMarkFailed:
		for i := range conv.Messages {
			if m := &conv.Messages[i]; m.ID == reply.msgID || (reply.userID != "" && m.ID == reply.userID) {
				m.Status = model.StatusFailed
			}
		}
	case PolicyRemove:
		kept := conv.Messages[:0]
		for _, m := range conv.Messages {
			if m.ID == reply.msgID || (reply.userID != "" && m.ID == reply.userID) {
				continue
			}
			kept = append(kept, m)
		}
		conv.Messages = kept
	}
	s.logger.Debug("Failed reply",
		zap.String("conversation_id", id),
		zap.String("policy", string(policy)))
	return nil
}

// StartTurn appends a user message and opens the assistant reply in one
// step, so two concurrent sends cannot both append before one is refused.
func (s *Store) StartTurn(id, text string) (user, reply model.Message, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[id]
	if !ok {
		return user, reply, ErrNotFound
	}
	if _, busy := s.open[id]; busy {
		return user, reply, ErrReplyInProgress
	}

	user = model.NewUserMessage(text)
	reply = model.NewAssistantMessage()
	conv.Messages = append(conv.Messages, user, reply)
	conv.UpdatedAt = user.CreatedAt
	s.open[id] = &openReply{msgID: reply.ID, userID: user.ID}
	return user, reply, nil
}

// HasOpenReply reports whether a reply is streaming into id.
func (s *Store) HasOpenReply(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.open[id]
	return ok
}

func (s *Store) messageLocked(convID, msgID string) *model.Message {
	conv, ok := s.convs[convID]
	if !ok {
		return nil
	}
	// The open reply is nearly always last.
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		if conv.Messages[i].ID == msgID {
			return &conv.Messages[i]
		}
	}
	return nil
}

// =============================================================================
// QUERIES
// =============================================================================

// Get returns a copy of a conversation.
func (s *Store) Get(id string) (*model.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.convs[id]
	if !ok {
		return nil, false
	}
	return conv.Clone(), true
}

// Active returns a copy of the active conversation.
func (s *Store) Active() (*model.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.convs[s.activeID]
	if !ok {
		return nil, false
	}
	return conv.Clone(), true
}

// ActiveID returns the active conversation id, or "" when there is none.
func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// SetActive selects a conversation.
func (s *Store) SetActive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[id]; !ok {
		return ErrNotFound
	}
	s.activeID = id
	return nil
}

// List returns listing metadata in display order.
func (s *Store) List() []model.ConversationMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ConversationMeta, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.convs[id].Meta())
	}
	return out
}

// IDs returns conversation ids in display order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Len returns the number of conversations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
