// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// User is an account on the development server.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// CreateUser registers username with a bcrypt-hashed password.
func (d *DB) CreateUser(ctx context.Context, username, password string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return User{}, errors.New("username and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	res, err := d.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, hash, d.stamp())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return User{}, fmt.Errorf("%w: %s", ErrUserExists, username)
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return User{ID: id, Username: username}, nil
}

// EnsureUser creates username unless it already exists.
func (d *DB) EnsureUser(ctx context.Context, username, password string) (User, error) {
	u, err := d.CreateUser(ctx, username, password)
	if errors.Is(err, ErrUserExists) {
		return d.userByName(ctx, username)
	}
	return u, err
}

// Authenticate checks a username and password.
func (d *DB) Authenticate(ctx context.Context, username, password string) (User, error) {
	var (
		u    User
		hash []byte
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash FROM users WHERE username = ?`,
		strings.TrimSpace(username)).Scan(&u.ID, &u.Username, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, fmt.Errorf("authenticate: %w", err)
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// UserByID looks up a user.
func (d *DB) UserByID(ctx context.Context, id int64) (User, error) {
	var u User
	err := d.db.QueryRowContext(ctx, `SELECT id, username FROM users WHERE id = ?`, id).Scan(&u.ID, &u.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

func (d *DB) userByName(ctx context.Context, username string) (User, error) {
	var u User
	err := d.db.QueryRowContext(ctx, `SELECT id, username FROM users WHERE username = ?`, username).Scan(&u.ID, &u.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}
