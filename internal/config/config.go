// Package config loads the unified switchboard.jsonc configuration file.
// Every field has a default; the file itself is optional.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/coppice-labs/switchboard/internal/apierr"
)

// Config is the unified configuration for the server.
type Config struct {
	Server   ServerSection   `json:"server"`
	Auth     AuthSection     `json:"auth"`
	Executor ExecutorSection `json:"executor"`
	Limits   LimitsSection   `json:"limits"`
	Log      LogSection      `json:"log"`
}

// ServerSection contains bind and TLS settings.
type ServerSection struct {
	Host    string     `json:"host"`
	Port    int        `json:"port"`
	DevMode bool       `json:"dev_mode"`
	TLS     TLSSection `json:"tls"`
}

// TLSSection toggles TLS serving.
type TLSSection struct {
	Enabled  bool   `json:"enabled"`
	CertFile string `json:"cert_file"`
	KeyFile  string `json:"key_file"`
}

// AuthSection configures the bearer-token gate and per-token rate limit.
// The inference fields bound the unauthenticated /inference endpoint, which
// is limited per client address instead of per token.
type AuthSection struct {
	Enabled            bool     `json:"enabled"`
	Tokens             []string `json:"tokens"`
	RequestsPerMinute  int      `json:"requests_per_minute"`
	InferencePerSecond float64  `json:"inference_requests_per_second"`
	InferenceBurst     int      `json:"inference_burst"`
}

// ExecutorSection configures the CLI driver and session bounds.
type ExecutorSection struct {
	CLIPath               string `json:"cli_path"`
	MockMode              bool   `json:"mock_mode"`
	DefaultTimeoutSeconds int    `json:"default_timeout_seconds"`
	LineTimeoutSeconds    int    `json:"line_timeout_seconds"`
	MaxConcurrentSessions int    `json:"max_concurrent_sessions"`
	MaxSessionHistory     int    `json:"max_session_history"`
}

// LimitsSection contains request validation ceilings.
type LimitsSection struct {
	MaxRequestBytes int `json:"max_request_bytes"`
	MaxScreenshots  int `json:"max_screenshots"`
	MaxPromptLength int `json:"max_prompt_length"`
	MaxIntentLength int `json:"max_intent_length"`
}

// LogSection configures logging output.
type LogSection struct {
	Level string `json:"level"`
	JSON  bool   `json:"json"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8085
	}

	if cfg.Auth.RequestsPerMinute == 0 {
		cfg.Auth.RequestsPerMinute = 60
	}
	if cfg.Auth.InferencePerSecond == 0 {
		cfg.Auth.InferencePerSecond = 5
	}
	if cfg.Auth.InferenceBurst == 0 {
		cfg.Auth.InferenceBurst = 10
	}

	if cfg.Executor.CLIPath == "" {
		cfg.Executor.CLIPath = "claude"
	}
	if cfg.Executor.DefaultTimeoutSeconds == 0 {
		cfg.Executor.DefaultTimeoutSeconds = 300
	}
	if cfg.Executor.LineTimeoutSeconds == 0 {
		cfg.Executor.LineTimeoutSeconds = 5
	}
	if cfg.Executor.MaxConcurrentSessions == 0 {
		cfg.Executor.MaxConcurrentSessions = 10
	}
	if cfg.Executor.MaxSessionHistory == 0 {
		cfg.Executor.MaxSessionHistory = 100
	}

	if cfg.Limits.MaxRequestBytes == 0 {
		cfg.Limits.MaxRequestBytes = 50 * 1024 * 1024
	}
	if cfg.Limits.MaxScreenshots == 0 {
		cfg.Limits.MaxScreenshots = 10
	}
	if cfg.Limits.MaxPromptLength == 0 {
		cfg.Limits.MaxPromptLength = 50000
	}
	if cfg.Limits.MaxIntentLength == 0 {
		cfg.Limits.MaxIntentLength = 5000
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Load reads switchboard.jsonc from configDir. A missing file yields the
// defaults; a malformed file is a startup-time CONFIG_ERROR.
func Load(configDir string) (*Config, error) {
	path := filepath.Join(configDir, "switchboard.jsonc")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, apierr.New(apierr.CodeConfigError, "reading %s: %v", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(stripComments(data), &cfg); err != nil {
		return nil, apierr.New(apierr.CodeConfigError, "parsing %s: %v", path, err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks startup-fatal configuration mistakes.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return apierr.New(apierr.CodeConfigError, "server.port %d out of range", c.Server.Port)
	}
	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "" {
			return apierr.New(apierr.CodeConfigError, "tls enabled but cert_file/key_file not set")
		}
	}
	if c.Auth.RequestsPerMinute < 1 {
		return apierr.New(apierr.CodeConfigError, "auth.requests_per_minute must be positive")
	}
	return nil
}

// Address returns the host:port bind address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// stripComments removes // and /* */ comments so the file can be handed to
// encoding/json. String literals are copied wholesale, escapes included, so
// comment markers inside them survive.
func stripComments(src []byte) []byte {
	out := make([]byte, 0, len(src))
	for i := 0; i < len(src); i++ {
		switch c := src[i]; {
		case c == '"':
			out = append(out, c)
			for i++; i < len(src); i++ {
				out = append(out, src[i])
				if src[i] == '\\' && i+1 < len(src) {
					i++
					out = append(out, src[i])
					continue
				}
				if src[i] == '"' {
					break
				}
			}
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			if i < len(src) {
				out = append(out, '\n')
			}
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			for i += 2; i+1 < len(src); i++ {
				if src[i] == '*' && src[i+1] == '/' {
					i++
					break
				}
			}
		default:
			out = append(out, c)
		}
	}
	return out
}
