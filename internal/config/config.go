// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/tradedesk/internal/conversation"
	"github.com/jeranaias/tradedesk/internal/market"
	"github.com/jeranaias/tradedesk/internal/model"
	"github.com/jeranaias/tradedesk/internal/util"
)

// CurrentVersion is the config file format version.
const CurrentVersion = "1"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete tradedesk configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	API   APIConfig   `toml:"api" json:"api"`
	Chat  ChatConfig  `toml:"chat" json:"chat"`
	Panel PanelConfig `toml:"panel" json:"panel"`
	Log   LogConfig   `toml:"log" json:"log"`
	UI    UIConfig    `toml:"ui" json:"ui"`
}

// APIConfig describes the trading-assistant API.
type APIConfig struct {
	BaseURL           string  `toml:"base_url" json:"base_url"`
	Username          string  `toml:"username" json:"username"`
	TimeoutSecs       int     `toml:"timeout" json:"timeout"`
	MaxRetries        int     `toml:"max_retries" json:"max_retries"`
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`

	// IdleTimeoutMins logs the session out after this many minutes without
	// a request. Zero disables it.
	IdleTimeoutMins int `toml:"idle_timeout_minutes" json:"idle_timeout_minutes"`

	// Environment only.
	Password string `toml:"-" json:"-"`
	Token    string `toml:"-" json:"-"`
}

// ChatConfig controls conversations.
type ChatConfig struct {
	Mode               string `toml:"mode" json:"mode"`
	FailurePolicy      string `toml:"failure_policy" json:"failure_policy"`
	RefreshAfterStream bool   `toml:"refresh_after_stream" json:"refresh_after_stream"`
	DefaultTitle       string `toml:"default_title" json:"default_title"`
}

// PanelConfig controls the side panel's chart window.
type PanelConfig struct {
	DefaultPeriod string   `toml:"default_period" json:"default_period"`
	Periods       []string `toml:"periods" json:"periods"`
}

// LogConfig controls the log file.
type LogConfig struct {
	Level string `toml:"level" json:"level"`
	// Path is a file path, or "stderr". Empty means the config directory.
	Path string `toml:"path" json:"path"`
}

// UIConfig contains terminal UI preferences.
type UIConfig struct {
	Theme       string `toml:"theme" json:"theme"`
	ShowSidebar bool   `toml:"show_sidebar" json:"show_sidebar"`
	ShowPanel   bool   `toml:"show_panel" json:"show_panel"`
}

// Default returns a new Config with all default values set.
func Default() *Config {
	periods := make([]string, len(market.Periods))
	for i, p := range market.Periods {
		periods[i] = string(p)
	}
	return &Config{
		Version: CurrentVersion,
		API: APIConfig{
			BaseURL:           "http://localhost:8000/api",
			TimeoutSecs:       30,
			MaxRetries:        3,
			RequestsPerSecond: 10,
			IdleTimeoutMins:   30,
		},
		Chat: ChatConfig{
			Mode:               string(model.ModeReal),
			FailurePolicy:      string(conversation.DefaultFailurePolicy),
			RefreshAfterStream: true,
			DefaultTitle:       model.DefaultTitle,
		},
		Panel: PanelConfig{
			DefaultPeriod: string(market.DefaultPeriod),
			Periods:       periods,
		},
		Log: LogConfig{
			Level: "info",
		},
		UI: UIConfig{
			Theme:       "dark",
			ShowSidebar: true,
			ShowPanel:   true,
		},
	}
}

// =============================================================================
// TYPED ACCESSORS
// =============================================================================

// Timeout returns the request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSecs) * time.Second
}

// IdleTimeout returns the session idle timeout, zero when disabled.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.API.IdleTimeoutMins) * time.Minute
}

// Mode returns the conversation mode. Validate has already vetted it.
func (c *Config) Mode() model.Mode {
	m, _ := model.ParseMode(c.Chat.Mode)
	return m
}

// Policy returns the send-failure policy.
func (c *Config) Policy() conversation.FailurePolicy {
	p, err := conversation.ParseFailurePolicy(c.Chat.FailurePolicy)
	if err != nil {
		return conversation.DefaultFailurePolicy
	}
	return p
}

// DefaultPeriod returns the initial chart period.
func (c *Config) DefaultPeriod() market.Period {
	p, err := market.ParsePeriod(c.Panel.DefaultPeriod)
	if err != nil {
		return market.DefaultPeriod
	}
	return p
}

// Periods returns the selectable chart periods.
func (c *Config) Periods() []market.Period {
	out := make([]market.Period, 0, len(c.Panel.Periods))
	for _, s := range c.Panel.Periods {
		if p, err := market.ParsePeriod(s); err == nil {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return market.Periods
	}
	return out
}

// LogPath resolves where logs go: "stderr" or an absolute file path.
func (c *Config) LogPath() (string, error) {
	if c.Log.Path == "stderr" {
		return "stderr", nil
	}
	if c.Log.Path != "" {
		return c.Log.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tradedesk.log"), nil
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the tradedesk configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv("TRADEDESK_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".tradedesk"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	var loadErr error

	for _, candidate := range []struct {
		path func() (string, error)
		load func(*Config, string) error
		kind string
	}{
		{ConfigPathTOML, LoadTOML, "TOML"},
		{ConfigPathJSON, LoadJSON, "JSON"},
	} {
		path, err := candidate.path()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		cfg := Default()
		if err := candidate.load(cfg, path); err != nil {
			loadErr = fmt.Errorf("failed to load %s config: %w", candidate.kind, err)
			continue
		}
		return finish(cfg)
	}

	cfg, err := finish(Default())
	if err != nil {
		return nil, err
	}
	// Defaults, plus the load error for informational purposes.
	return cfg, loadErr
}

// finish applies environment overrides, fills gaps and validates.
func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Keys absent from the file keep
// their current values.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}
	return finish(cfg)
}

// SetDefaults fills zero values that have no meaningful zero.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Version == "" {
		c.Version = d.Version
	}
	if strings.TrimSpace(c.API.BaseURL) == "" {
		c.API.BaseURL = d.API.BaseURL
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.TimeoutSecs == 0 {
		c.API.TimeoutSecs = d.API.TimeoutSecs
	}
	if c.Chat.Mode == "" {
		c.Chat.Mode = d.Chat.Mode
	}
	if c.Chat.FailurePolicy == "" {
		c.Chat.FailurePolicy = d.Chat.FailurePolicy
	}
	if strings.TrimSpace(c.Chat.DefaultTitle) == "" {
		c.Chat.DefaultTitle = d.Chat.DefaultTitle
	}
	if c.Panel.DefaultPeriod == "" {
		c.Panel.DefaultPeriod = d.Panel.DefaultPeriod
	}
	if len(c.Panel.Periods) == 0 {
		c.Panel.Periods = d.Panel.Periods
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg as TOML with 0600 permissions. Credentials are never
// written.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf strings.Builder
	buf.WriteString("# tradedesk configuration file\n")
	buf.WriteString("# Credentials come from TRADEDESK_PASSWORD / TRADEDESK_TOKEN, never this file.\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, []byte(buf.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg as indented JSON with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
var validThemes = map[string]bool{"dark": true, "light": true, "auto": true}

// Validate checks every field and returns all problems at once.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// API
	if u, err := url.Parse(c.API.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("api.base_url", "invalid URL '%s', must be http(s)://host[:port]/path", c.API.BaseURL)
	}
	if c.API.TimeoutSecs < 0 || c.API.TimeoutSecs > 600 {
		add("api.timeout", "must be between 0 and 600 seconds, got %d", c.API.TimeoutSecs)
	}
	if c.API.MaxRetries < 0 || c.API.MaxRetries > 10 {
		add("api.max_retries", "must be between 0 and 10, got %d", c.API.MaxRetries)
	}
	if c.API.RequestsPerSecond < 0 {
		add("api.requests_per_second", "must not be negative, got %g", c.API.RequestsPerSecond)
	}
	if c.API.IdleTimeoutMins < 0 {
		add("api.idle_timeout_minutes", "must not be negative, got %d", c.API.IdleTimeoutMins)
	}

	// Chat
	if _, err := model.ParseMode(c.Chat.Mode); err != nil {
		add("chat.mode", "invalid mode '%s', must be one of: real, simulation", c.Chat.Mode)
	}
	if _, err := conversation.ParseFailurePolicy(c.Chat.FailurePolicy); err != nil {
		add("chat.failure_policy", "invalid policy '%s', must be one of: retain, mark-failed, remove", c.Chat.FailurePolicy)
	}

	// Panel
	allowed := make(map[string]bool, len(c.Panel.Periods))
	for _, p := range c.Panel.Periods {
		if _, err := market.ParsePeriod(p); err != nil {
			add("panel.periods", "unknown period '%s', must be one of: %s", p, market.JoinPeriods(market.Periods))
			continue
		}
		allowed[p] = true
	}
	if !allowed[c.Panel.DefaultPeriod] {
		add("panel.default_period", "'%s' is not one of the configured periods", c.Panel.DefaultPeriod)
	}

	// Log
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		add("log.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level)
	}

	// UI
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		add("ui.theme", "invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies TRADEDESK_* environment variables:
//   - TRADEDESK_API_URL: overrides api.base_url
//   - TRADEDESK_USERNAME: overrides api.username
//   - TRADEDESK_PASSWORD, TRADEDESK_TOKEN: credentials, env only
//   - TRADEDESK_MODE: overrides chat.mode
//   - TRADEDESK_FAILURE_POLICY: overrides chat.failure_policy
//   - TRADEDESK_LOG_LEVEL, TRADEDESK_LOG_PATH: override log.*
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("TRADEDESK_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("TRADEDESK_USERNAME"); v != "" {
		c.API.Username = v
	}
	if v := os.Getenv("TRADEDESK_PASSWORD"); v != "" {
		c.API.Password = v
	}
	if v := os.Getenv("TRADEDESK_TOKEN"); v != "" {
		c.API.Token = v
	}
	if v := os.Getenv("TRADEDESK_MODE"); v != "" {
		c.Chat.Mode = v
	}
	if v := os.Getenv("TRADEDESK_FAILURE_POLICY"); v != "" {
		c.Chat.FailurePolicy = v
	}
	if v := os.Getenv("TRADEDESK_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("TRADEDESK_LOG_PATH"); v != "" {
		c.Log.Path = v
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "chat.mode").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	if secretKeys[key] {
		return fmt.Errorf("%s can only be set from the environment", key)
	}
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

var secretKeys = map[string]bool{"api.password": true, "api.token": true}

// lookup walks key through the struct by toml tag.
func (c *Config) lookup(key string) (reflect.Value, error) {
	parts := strings.Split(key, ".")
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
		if tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			lower := strings.ToLower(strVal)
			field.SetBool(lower == "1" || lower == "true" || lower == "yes")
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(strVal, ",")
				for i := range parts {
					parts[i] = strings.TrimSpace(parts[i])
				}
				field.Set(reflect.ValueOf(parts))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all settable configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"api.base_url",
		"api.username",
		"api.timeout",
		"api.max_retries",
		"api.requests_per_second",
		"api.idle_timeout_minutes",
		"chat.mode",
		"chat.failure_policy",
		"chat.refresh_after_stream",
		"chat.default_title",
		"panel.default_period",
		"panel.periods",
		"log.level",
		"log.path",
		"ui.theme",
		"ui.show_sidebar",
		"ui.show_panel",
	}
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Panel.Periods = append([]string(nil), c.Panel.Periods...)
	return &clone
}

// String returns the config as JSON with credentials redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.API.Password != "" {
		safe.API.Password = "[REDACTED]"
	}
	if safe.API.Token != "" {
		safe.API.Token = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
