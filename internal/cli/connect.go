// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jeranaias/tradedesk/internal/api"
	"github.com/jeranaias/tradedesk/internal/chat"
	"github.com/jeranaias/tradedesk/internal/conversation"
	"github.com/jeranaias/tradedesk/internal/notify"
	"github.com/jeranaias/tradedesk/internal/panel"
	"github.com/jeranaias/tradedesk/internal/session"
)

// newClient builds an API client and its logged-out session from the config.
func (a *app) newClient() (*api.Client, *session.Auth) {
	auth := session.New(session.Config{IdleTimeout: a.cfg.IdleTimeout()})
	client := api.New(auth).
		WithBaseURL(a.cfg.API.BaseURL).
		WithTimeout(a.cfg.Timeout()).
		WithMaxRetries(a.cfg.API.MaxRetries).
		WithRateLimit(a.cfg.API.RequestsPerSecond).
		WithLogger(a.logger).
		WithUserAgent("tradedesk/" + Version)
	return client, auth
}

// login installs a token from the environment, or exchanges the password
// for one.
func (a *app) login(ctx context.Context, client *api.Client, auth *session.Auth) error {
	username := a.cfg.API.Username
	switch {
	case a.cfg.API.Token != "":
		return auth.Login(username, session.Tokens{Access: a.cfg.API.Token})
	case a.cfg.API.Password != "":
		if username == "" {
			return &ExitError{Code: ExitAuthError, Err: errors.New("no username: set TRADEDESK_USERNAME or api.username")}
		}
		if err := client.Login(ctx, username, a.cfg.API.Password); err != nil {
			return fmt.Errorf("login as %s: %w", username, err)
		}
		return nil
	}
	return ErrNoCredentials
}

// connect returns a logged-in client.
func (a *app) connect(ctx context.Context) (*api.Client, *session.Auth, error) {
	client, auth := a.newClient()
	if err := a.login(ctx, client, auth); err != nil {
		return nil, nil, err
	}
	a.logger.Debug("Connected", zap.String("api", client.BaseURL()), zap.String("username", auth.Username()))
	return client, auth, nil
}

// newController wires a store, panel and controller over client. Both the
// controller and the panel report to notifier.
func (a *app) newController(client *api.Client, notifier notify.Notifier) *chat.Controller {
	mode := a.cfg.Mode()
	store := conversation.NewStore(
		conversation.WithLogger(a.logger),
		conversation.WithDefaults(a.cfg.Chat.DefaultTitle, mode),
	)
	presenter := panel.NewPresenter(client,
		panel.WithNotifier(notifier),
		panel.WithLogger(a.logger),
	)
	return chat.NewController(client, store, presenter,
		chat.WithNotifier(notifier),
		chat.WithLogger(a.logger),
		chat.WithConfig(chat.Config{
			Mode:               mode,
			DefaultTitle:       a.cfg.Chat.DefaultTitle,
			Policy:             a.cfg.Policy(),
			RefreshAfterStream: a.cfg.Chat.RefreshAfterStream,
		}),
	)
}
