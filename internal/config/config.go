// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.ragctl/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - Backend: base URL, API token, request timeout
//   - Chat: bounded history depth for /chat payloads
//   - Bench: pacing interval for retrieval test runs
//   - Storage: local state directory for transcripts
//
// Security: the API token is never logged; config directory uses 0750
// permissions. Validation happens in Validate() with sentinel errors so
// callers can use errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidBaseURL indicates the backend base URL is missing or malformed.
	ErrInvalidBaseURL = errors.New("invalid base URL")

	// ErrInvalidTimeout indicates the request timeout is out of range.
	ErrInvalidTimeout = errors.New("invalid request timeout")

	// ErrInvalidHistoryTurns indicates the chat history bound is out of range.
	ErrInvalidHistoryTurns = errors.New("invalid max history turns")

	// ErrInvalidBenchInterval indicates the bench pacing interval is negative.
	ErrInvalidBenchInterval = errors.New("invalid bench interval")

	// ErrInvalidStateDir indicates the state directory is empty.
	ErrInvalidStateDir = errors.New("invalid state directory")
)

const (
	// DefaultMaxHistoryTurns is the number of prior user/assistant turn
	// pairs serialized into each /chat request.
	DefaultMaxHistoryTurns = 5

	// MaxAllowedHistoryTurns bounds the history payload size.
	MaxAllowedHistoryTurns = 50

	// DefaultRequestTimeout applies to every backend call.
	DefaultRequestTimeout = 60 * time.Second

	// stateDirName is the directory under $HOME holding config and sessions.
	stateDirName = ".ragctl"
)

// Config stores application configuration.
// SECURITY: APIToken is explicitly masked in MarshalJSON().
// When adding new sensitive fields, update MarshalJSON.
type Config struct {
	// Backend connection
	BaseURL        string        `mapstructure:"base_url" json:"base_url"`
	APIToken       string        `mapstructure:"api_token" json:"api_token"` // SENSITIVE: masked in MarshalJSON
	RequestTimeout time.Duration `mapstructure:"request_timeout" json:"request_timeout"`

	// Chat history bound: prior turn pairs sent with each message
	MaxHistoryTurns int `mapstructure:"max_history_turns" json:"max_history_turns"`

	// Bench pacing: minimum spacing between sequential test queries
	BenchInterval time.Duration `mapstructure:"bench_interval" json:"bench_interval"`

	// Local state directory (transcripts, current session pointer).
	// Defaults to ~/.ragctl; overridable for tests.
	StateDir string `mapstructure:"state_dir" json:"state_dir"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, stateDirName)

	// Ensure directory exists (0750 for better security)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults(configDir)
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(configDir string) {
	viper.SetDefault("base_url", "http://localhost:8000")
	viper.SetDefault("api_token", "")
	viper.SetDefault("request_timeout", DefaultRequestTimeout)
	viper.SetDefault("max_history_turns", DefaultMaxHistoryTurns)
	viper.SetDefault("bench_interval", time.Duration(0))
	viper.SetDefault("state_dir", configDir)
}

// bindEnvVariables binds environment variables explicitly.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("base_url", "RAGCTL_BASE_URL")
	mustBind("api_token", "RAGCTL_API_TOKEN")
	mustBind("max_history_turns", "RAGCTL_MAX_HISTORY_TURNS")
	mustBind("state_dir", "RAGCTL_STATE_DIR")
}

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if err := validateBaseURL(c.BaseURL); err != nil {
		return err
	}

	if c.RequestTimeout <= 0 || c.RequestTimeout > 10*time.Minute {
		return fmt.Errorf("%w: must be between 1s and 10m, got %s",
			ErrInvalidTimeout, c.RequestTimeout)
	}

	if c.MaxHistoryTurns < 0 || c.MaxHistoryTurns > MaxAllowedHistoryTurns {
		return fmt.Errorf("%w: must be between 0 and %d, got %d",
			ErrInvalidHistoryTurns, MaxAllowedHistoryTurns, c.MaxHistoryTurns)
	}

	if c.BenchInterval < 0 {
		return fmt.Errorf("%w: must not be negative, got %s",
			ErrInvalidBenchInterval, c.BenchInterval)
	}

	if strings.TrimSpace(c.StateDir) == "" {
		return fmt.Errorf("%w: state_dir cannot be empty", ErrInvalidStateDir)
	}

	return nil
}

// validateBaseURL checks scheme and host of the configured backend URL.
func validateBaseURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: base_url cannot be empty", ErrInvalidBaseURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if !slices.Contains([]string{"http", "https"}, strings.ToLower(u.Scheme)) {
		return fmt.Errorf("%w: scheme must be http or https, got %q",
			ErrInvalidBaseURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidBaseURL)
	}
	return nil
}

// SessionsDir returns the directory holding persisted chat transcripts.
func (c *Config) SessionsDir() string {
	return filepath.Join(c.StateDir, "sessions")
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks (U+2588) avoid substring matching against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters for secrets longer than 8 chars,
// fully masks short secrets to prevent substring matching.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.APIToken = maskSecret(a.APIToken)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
