// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for tradedesk.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - APIConfig: Where the trading-assistant API lives and how to call it
//   - ChatConfig: Conversation mode and send-failure behaviour
//   - PanelConfig: Side-panel chart periods
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (TRADEDESK_*)
//   - ~/.tradedesk/config.toml
//   - ~/.tradedesk/config.json
//   - Built-in defaults
//
// The directory can be moved with TRADEDESK_HOME. Credentials
// (TRADEDESK_PASSWORD, TRADEDESK_TOKEN) are read from the environment only
// and never written to disk.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := api.New(auth).WithBaseURL(cfg.API.BaseURL)
package config
