// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devserver

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/tradedesk/internal/market"
)

//go:embed default_script.yaml
var defaultScriptYAML []byte

// Reply is one scripted assistant answer.
type Reply struct {
	Text     string   `yaml:"text"`
	Holdings any      `yaml:"holdings"`
	Stocks   any      `yaml:"stocks"`
	Frames   []string `yaml:"frames"`

	// Compiled payloads, validated at load time.
	holdings market.Holdings
	stocks   market.Payload
}

// Rule maps keywords to a reply.
type Rule struct {
	Match []string `yaml:"match"`
	Reply `yaml:",inline"`
}

// Script is a complete reply script.
type Script struct {
	Replies []Rule `yaml:"replies"`
	Default Reply  `yaml:"default"`
}

// DefaultScript returns the built-in script.
func DefaultScript() *Script {
	s, err := ParseScript(defaultScriptYAML)
	if err != nil {
		panic(fmt.Sprintf("devserver: built-in script is invalid: %v", err))
	}
	return s
}

// LoadScript reads a script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return ParseScript(data)
}

// ParseScript decodes and validates a YAML script. Payloads are checked
// with the same parsers the client uses, so a script cannot send a payload
// the client would reject unless it uses raw frames.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse script from YAML: %w", err)
	}
	for i := range s.Replies {
		r := &s.Replies[i]
		if len(r.Match) == 0 {
			return nil, fmt.Errorf("reply %d: match is empty", i)
		}
		for j, kw := range r.Match {
			r.Match[j] = strings.ToLower(strings.TrimSpace(kw))
		}
		if err := r.Reply.compile(); err != nil {
			return nil, fmt.Errorf("reply %d (%s): %w", i, strings.Join(r.Match, ","), err)
		}
	}
	if err := s.Default.compile(); err != nil {
		return nil, fmt.Errorf("default reply: %w", err)
	}
	if s.Default.Text == "" && len(s.Default.Frames) == 0 {
		s.Default.Text = "You said: {input}"
	}
	return &s, nil
}

func (r *Reply) compile() error {
	if r.Holdings != nil {
		raw, err := json.Marshal(r.Holdings)
		if err != nil {
			return fmt.Errorf("holdings: %w", err)
		}
		if r.holdings, err = market.ParseHoldings(raw); err != nil {
			return fmt.Errorf("holdings: %w", err)
		}
	}
	if r.Stocks != nil {
		raw, err := json.Marshal(r.Stocks)
		if err != nil {
			return fmt.Errorf("stocks: %w", err)
		}
		if r.stocks, err = market.ParseStocks(raw); err != nil {
			return fmt.Errorf("stocks: %w", err)
		}
	}
	return nil
}

// Match returns the reply for a user message.
func (s *Script) Match(input string) Reply {
	lower := strings.ToLower(input)
	for _, rule := range s.Replies {
		for _, kw := range rule.Match {
			if kw != "" && strings.Contains(lower, kw) {
				return rule.Reply
			}
		}
	}
	return s.Default
}

// =============================================================================
// HOT RELOAD
// =============================================================================

// WatchScript reloads the script at path into s whenever the file changes,
// until ctx is done. A script that fails to parse is logged and the
// previous one kept.
func WatchScript(ctx context.Context, path string, s *Server) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file, so watch the directory.
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			script, err := LoadScript(abs)
			if err != nil {
				s.logger.Warn("Keeping previous reply script", zap.String("path", abs), zap.Error(err))
				continue
			}
			s.SetScript(script)
			s.logger.Info("Reloaded reply script", zap.String("path", abs), zap.Int("rules", len(script.Replies)))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				continue
			}
			s.logger.Warn("Script watcher error", zap.Error(err))
		}
	}
}
