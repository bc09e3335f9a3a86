// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides SQLite persistence for the development server.
//
// It keeps users, conversations and their messages in a single SQLite file
// (pure Go driver, no cgo). Every conversation query is scoped to the
// owning user, mirroring the API the terminal client talks to.
//
// # Key Types
//
//   - DB: the database handle
//   - User: an account able to log in
//
// # Usage
//
//	db, err := storage.Open(filepath.Join(dir, "devserver.db"))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	user, err := db.CreateUser(ctx, "trader", "secret")
//	conv, err := db.CreateConversation(ctx, user.ID, "Banks", model.ModeReal)
//
// Timestamps are stored as naive ISO-8601 UTC strings, the same shape the
// production API returns.
package storage
