// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tradedesk/internal/model"
)

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestStore_CreateGoesToTopAndBecomesActive(t *testing.T) {
	s := NewStore()
	first := s.Create("First", model.ModeReal)
	second := s.Create("", model.ModeSimulation)

	assert.Equal(t, []string{second.ID, first.ID}, s.IDs())
	assert.Equal(t, second.ID, s.ActiveID())
	assert.Equal(t, model.DefaultTitle, second.Title)
	assert.Empty(t, second.Messages)
}

func TestStore_InsertRejectsDuplicateID(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Insert(&model.Conversation{ID: "abc", Title: "From API"}))
	assert.ErrorIs(t, s.Insert(&model.Conversation{ID: "abc"}), ErrDuplicateID)
	assert.Equal(t, 1, s.Len())
}

func TestStore_LazyStart(t *testing.T) {
	s := NewStore(WithDefaults("Fresh", model.ModeSimulation))

	id, msg, err := s.AppendUserMessage("", "what moved today?")
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, model.RoleUser, msg.Role)

	conv, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, id, conv.ID)
	assert.Equal(t, "Fresh", conv.Title)
	assert.Equal(t, model.ModeSimulation, conv.Mode)
	assert.Len(t, conv.Messages, 1)
}

func TestStore_AppendUnknownID(t *testing.T) {
	s := NewStore()
	_, _, err := s.AppendUserMessage("nope", "hi")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DeleteSelectsFirstRemaining(t *testing.T) {
	s := NewStore()
	a := s.Create("a", "")
	b := s.Create("b", "")
	c := s.Create("c", "") // order: c, b, a; active c

	next, err := s.Delete(c.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, next)

	// Deleting a non-active conversation keeps the selection.
	next, err = s.Delete(a.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, next)

	next, err = s.Delete(b.ID)
	require.NoError(t, err)
	assert.Equal(t, "", next)
	_, ok := s.Active()
	assert.False(t, ok)

	_, err = s.Delete(b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Rename(t *testing.T) {
	s := NewStore()
	c := s.Create("", "")
	require.NoError(t, s.Rename(c.ID, "Bank stocks"))
	got, _ := s.Get(c.ID)
	assert.Equal(t, "Bank stocks", got.Title)
	assert.ErrorIs(t, s.Rename("missing", "x"), ErrNotFound)
}

func TestStore_LoadKeepsOrderAndSelection(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Load([]*model.Conversation{
		{ID: "1", Title: "one"},
		{ID: "2", Title: "two"},
		{ID: "1", Title: "dup"},
		nil,
	}))
	assert.Equal(t, []string{"1", "2"}, s.IDs())
	assert.Equal(t, "1", s.ActiveID())

	require.NoError(t, s.SetActive("2"))
	require.NoError(t, s.Load([]*model.Conversation{{ID: "3"}, {ID: "2"}}))
	assert.Equal(t, "2", s.ActiveID(), "active conversation survives a reload")

	got, _ := s.Get("1")
	assert.Nil(t, got)
}

func TestStore_ValuesAreCopies(t *testing.T) {
	s := NewStore()
	c := s.Create("", "")
	c.Title = "mutated"
	got, _ := s.Get(c.ID)
	assert.Equal(t, model.DefaultTitle, got.Title)
}

// =============================================================================
// REPLY TESTS
// =============================================================================

func TestStore_DeltasAccumulateInOrder(t *testing.T) {
	s := NewStore()
	id, _, err := s.AppendUserMessage("", "greet me")
	require.NoError(t, err)
	_, err = s.BeginAssistantReply(id)
	require.NoError(t, err)

	for _, d := range []string{"Hel", "lo, ", "world"} {
		assert.True(t, s.ApplyTextDelta(id, d))
	}
	msg, err := s.CloseReply(id)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", msg.Content)

	conv, _ := s.Get(id)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, model.RoleAssistant, conv.Messages[1].Role)
	assert.Equal(t, "Hello, world", conv.Messages[1].Content)
}

func TestStore_DeltaOrderMatters(t *testing.T) {
	s := NewStore()
	id, _, _ := s.AppendUserMessage("", "x")
	_, _ = s.BeginAssistantReply(id)
	for _, d := range []string{"world", "lo, ", "Hel"} {
		s.ApplyTextDelta(id, d)
	}
	msg, _ := s.CloseReply(id)
	assert.NotEqual(t, "Hello, world", msg.Content)
}

func TestStore_DeltaWithoutOpenReplyIsNoop(t *testing.T) {
	s := NewStore()
	id, _, _ := s.AppendUserMessage("", "x")
	assert.False(t, s.ApplyTextDelta(id, "orphan"))
	assert.False(t, s.ApplyTextDelta("unknown", "orphan"))

	conv, _ := s.Get(id)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "x", conv.Messages[0].Content)
}

func TestStore_SingleWriterGuard(t *testing.T) {
	s := NewStore()
	id, _, _ := s.AppendUserMessage("", "first")
	_, err := s.BeginAssistantReply(id)
	require.NoError(t, err)

	_, err = s.BeginAssistantReply(id)
	assert.ErrorIs(t, err, ErrReplyInProgress)
	_, _, err = s.AppendUserMessage(id, "second")
	assert.ErrorIs(t, err, ErrReplyInProgress)
	assert.ErrorIs(t, s.Load(nil), ErrReplyInProgress)
	assert.ErrorIs(t, s.Replace(&model.Conversation{ID: id}), ErrReplyInProgress)
	assert.True(t, s.HasOpenReply(id))

	// Another conversation is unaffected.
	other := s.Create("", "")
	_, _, err = s.AppendUserMessage(other.ID, "parallel")
	require.NoError(t, err)
	_, err = s.BeginAssistantReply(other.ID)
	require.NoError(t, err)

	_, err = s.CloseReply(id)
	require.NoError(t, err)
	_, err = s.BeginAssistantReply(id)
	assert.NoError(t, err, "slot frees once the reply closes")
}

func TestStore_FailReplyPolicies(t *testing.T) {
	setup := func(t *testing.T) (*Store, string) {
		s := NewStore()
		c := s.Create("", "")
		_, _, err := s.AppendUserMessage(c.ID, "earlier")
		require.NoError(t, err)
		_, err = s.BeginAssistantReply(c.ID)
		require.NoError(t, err)
		_, err = s.CloseReply(c.ID)
		require.NoError(t, err)

		_, _, err = s.AppendUserMessage(c.ID, "buy 10 INFY")
		require.NoError(t, err)
		_, err = s.BeginAssistantReply(c.ID)
		require.NoError(t, err)
		s.ApplyTextDelta(c.ID, "Placing")
		return s, c.ID
	}

	t.Run("retain", func(t *testing.T) {
		s, id := setup(t)
		require.NoError(t, s.FailReply(id, PolicyRetain))
		conv, _ := s.Get(id)
		require.Len(t, conv.Messages, 4)
		assert.Equal(t, "Placing", conv.Messages[3].Content)
		assert.False(t, conv.Messages[2].Failed())
		assert.False(t, s.HasOpenReply(id))
	})

	t.Run("mark-failed", func(t *testing.T) {
		s, id := setup(t)
		require.NoError(t, s.FailReply(id, PolicyMarkFailed))
		conv, _ := s.Get(id)
		require.Len(t, conv.Messages, 4)
		assert.False(t, conv.Messages[0].Failed())
		assert.False(t, conv.Messages[1].Failed())
		assert.True(t, conv.Messages[2].Failed())
		assert.True(t, conv.Messages[3].Failed())
	})

	t.Run("remove", func(t *testing.T) {
		s, id := setup(t)
		require.NoError(t, s.FailReply(id, PolicyRemove))
		conv, _ := s.Get(id)
		require.Len(t, conv.Messages, 2)
		assert.Equal(t, "earlier", conv.Messages[0].Content)
	})

	t.Run("no open reply", func(t *testing.T) {
		s := NewStore()
		c := s.Create("", "")
		assert.ErrorIs(t, s.FailReply(c.ID, PolicyRemove), ErrNoOpenReply)
	})
}

func TestStore_DeleteDropsOpenReply(t *testing.T) {
	s := NewStore()
	id, _, _ := s.AppendUserMessage("", "x")
	_, _ = s.BeginAssistantReply(id)
	_, err := s.Delete(id)
	require.NoError(t, err)
	assert.False(t, s.HasOpenReply(id))
	assert.False(t, s.ApplyTextDelta(id, "late"))
}

func TestStore_ConcurrentReadersDuringStream(t *testing.T) {
	s := NewStore()
	id, _, _ := s.AppendUserMessage("", "x")
	_, _ = s.BeginAssistantReply(id)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			s.ApplyTextDelta(id, fmt.Sprint(i%10))
		}
	}()
	for i := 0; i < 200; i++ {
		_ = s.List()
		_, _ = s.Get(id)
	}
	wg.Wait()

	msg, err := s.CloseReply(id)
	require.NoError(t, err)
	assert.Len(t, msg.Content, 200)
}

// =============================================================================
// POLICY TESTS
// =============================================================================

func TestParseFailurePolicy(t *testing.T) {
	for in, want := range map[string]FailurePolicy{
		"":            PolicyRetain,
		"retain":      PolicyRetain,
		"Mark-Failed": PolicyMarkFailed,
		" remove ":    PolicyRemove,
	} {
		got, err := ParseFailurePolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFailurePolicy("rollback")
	assert.Error(t, err)
}

func TestStore_StartTurnIsAtomic(t *testing.T) {
	s := NewStore()
	conv := s.Create("", model.ModeReal)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = s.StartTurn(conv.ID, fmt.Sprintf("msg %d", i))
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrReplyInProgress)
	}
	assert.Equal(t, 1, ok)

	got, _ := s.Get(conv.ID)
	require.Len(t, got.Messages, 2, "refused turns append nothing")
	assert.Equal(t, model.RoleUser, got.Messages[0].Role)
	assert.Equal(t, model.RoleAssistant, got.Messages[1].Role)
	assert.True(t, s.HasOpenReply(conv.ID))
}
