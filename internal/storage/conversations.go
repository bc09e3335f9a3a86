// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jeranaias/tradedesk/internal/model"
)

// CreateConversation inserts an empty conversation owned by userID.
func (d *DB) CreateConversation(ctx context.Context, userID int64, title string, mode model.Mode) (*model.Conversation, error) {
	if strings.TrimSpace(title) == "" {
		title = model.DefaultTitle
	}
	now := d.stamp()
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:24]

	_, err := d.db.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, title, mode, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, userID, title, mode.String(), now, now)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return d.GetConversation(ctx, userID, id)
}

// ListConversations returns userID's conversations in mode, most recently
// updated first, with their messages.
func (d *DB) ListConversations(ctx context.Context, userID int64, mode model.Mode) ([]*model.Conversation, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, title, mode, created_at, updated_at FROM conversations
		 WHERE user_id = ? AND mode = ?
		 ORDER BY updated_at DESC, created_at DESC`,
		userID, mode.String())
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	convs := make([]*model.Conversation, 0)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	for _, conv := range convs {
		if conv.Messages, err = d.messages(ctx, conv.ID); err != nil {
			return nil, err
		}
	}
	return convs, nil
}

// GetConversation loads one conversation with messages.
func (d *DB) GetConversation(ctx context.Context, userID int64, id string) (*model.Conversation, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, title, mode, created_at, updated_at FROM conversations WHERE id = ? AND user_id = ?`,
		id, userID)
	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if conv.Messages, err = d.messages(ctx, id); err != nil {
		return nil, err
	}
	return conv, nil
}

// RenameConversation sets the title.
func (d *DB) RenameConversation(ctx context.Context, userID int64, id, title string) (*model.Conversation, error) {
	res, err := d.db.ExecContext(ctx,
		`UPDATE conversations SET title = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		title, d.stamp(), id, userID)
	if err != nil {
		return nil, fmt.Errorf("rename conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return d.GetConversation(ctx, userID, id)
}

// DeleteConversation removes a conversation and its messages.
func (d *DB) DeleteConversation(ctx context.Context, userID int64, id string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendMessages adds msgs to a conversation in order and bumps its
// updated_at.
func (d *DB) AppendMessages(ctx context.Context, userID int64, convID string, msgs ...model.Message) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		now := d.stamp()
		res, err := tx.ExecContext(ctx,
			`UPDATE conversations SET updated_at = ? WHERE id = ? AND user_id = ?`, now, convID, userID)
		if err != nil {
			return fmt.Errorf("append messages: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		for _, m := range msgs {
			created := now
			if !m.CreatedAt.IsZero() {
				created = m.CreatedAt.UTC().Format(timeLayout)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
				m.ID, convID, string(m.Role), m.Content, created); err != nil {
				return fmt.Errorf("append messages: %w", err)
			}
		}
		return nil
	})
}

func (d *DB) messages(ctx context.Context, convID string) ([]model.Message, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, role, content, created_at FROM messages WHERE conversation_id = ? ORDER BY seq`, convID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]model.Message, 0)
	for rows.Next() {
		var (
			m       model.Message
			role    string
			created string
		)
		if err := rows.Scan(&m.ID, &role, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = model.Role(role)
		m.CreatedAt, _ = model.ParseTimestamp(created)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(s scanner) (*model.Conversation, error) {
	var (
		conv             model.Conversation
		mode             string
		created, updated string
	)
	if err := s.Scan(&conv.ID, &conv.Title, &mode, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	conv.Mode = model.Mode(mode)
	conv.CreatedAt, _ = model.ParseTimestamp(created)
	conv.UpdatedAt, _ = model.ParseTimestamp(updated)
	return &conv, nil
}
