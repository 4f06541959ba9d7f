// Package config holds all formpilot configuration. Config is loaded from a
// yaml file, defaults are filled in code, and FORMPILOT_* environment
// variables override individual keys.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all formpilot configuration.
type Config struct {
	Profile  ProfileConfig  `yaml:"profile"`
	Browser  BrowserConfig  `yaml:"browser"`
	AI       AIConfig       `yaml:"ai"`
	Patterns PatternsConfig `yaml:"patterns"`
	Fill     FillConfig     `yaml:"fill"`
	Scan     ScanConfig     `yaml:"scan"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ProfileConfig locates the applicant profile.
type ProfileConfig struct {
	Path string `yaml:"path"`
}

// BrowserConfig configures the Chrome connection.
type BrowserConfig struct {
	DebuggerURL         string   `yaml:"debugger_url"`
	Launch              []string `yaml:"launch"`
	Headless            bool     `yaml:"headless"`
	ViewportWidth       int      `yaml:"viewport_width"`
	ViewportHeight      int      `yaml:"viewport_height"`
	NavigationTimeoutMs int      `yaml:"navigation_timeout_ms"`
}

// AIConfig configures the remote prediction service.
type AIConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	UserEmail string `yaml:"user_email"`
	TimeoutMs int    `yaml:"timeout_ms"`
	// RequestsPerSecond bounds outbound prediction calls.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// PatternsConfig configures the learned-pattern store.
type PatternsConfig struct {
	DBPath string `yaml:"db_path"`
}

// FillConfig configures commit behavior.
type FillConfig struct {
	OperationTimeoutMs int     `yaml:"operation_timeout_ms"`
	MaxAttempts        int     `yaml:"max_attempts"`
	BackoffBaseMs      int     `yaml:"backoff_base_ms"`
	BackoffMultiplier  float64 `yaml:"backoff_multiplier"`
	FieldSettleMs      int     `yaml:"field_settle_ms"`
	CountrySettleMs    int     `yaml:"country_settle_ms"`
}

// ScanConfig configures the page scanner.
type ScanConfig struct {
	MaxNodes         int `yaml:"max_nodes"`
	ChunkBudgetMs    int `yaml:"chunk_budget_ms"`
	QuestionMaxChars int `yaml:"question_max_chars"`
	OptionWaitMs     int `yaml:"option_wait_ms"`
	OptionRetries    int `yaml:"option_retries"`
	OptionBackoffMs  int `yaml:"option_backoff_ms"`
	MinOptions       int `yaml:"min_options"`
}

// LoggingConfig configures zap output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Profile: ProfileConfig{Path: "profile.yaml"},
		Browser: BrowserConfig{
			Headless:            false,
			ViewportWidth:       1920,
			ViewportHeight:      1080,
			NavigationTimeoutMs: 30000,
		},
		AI: AIConfig{
			BaseURL:           "http://localhost:8001",
			TimeoutMs:         30000,
			RequestsPerSecond: 4,
		},
		Patterns: PatternsConfig{DBPath: ".formpilot/patterns.db"},
		Fill: FillConfig{
			OperationTimeoutMs: 20000,
			MaxAttempts:        3,
			BackoffBaseMs:      180,
			BackoffMultiplier:  2.0,
			FieldSettleMs:      150,
			CountrySettleMs:    750,
		},
		Scan: ScanConfig{
			MaxNodes:         1500,
			ChunkBudgetMs:    30,
			QuestionMaxChars: 160,
			OptionWaitMs:     1000,
			OptionRetries:    2,
			OptionBackoffMs:  200,
			MinOptions:       2,
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Load reads the config file at path, falling back to defaults when the
// file does not exist, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides lets deployment environments override keys without
// editing the config file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FORMPILOT_PROFILE"); v != "" {
		cfg.Profile.Path = v
	}
	if v := os.Getenv("FORMPILOT_AI_URL"); v != "" {
		cfg.AI.BaseURL = v
	}
	if v := os.Getenv("FORMPILOT_AI_KEY"); v != "" {
		cfg.AI.APIKey = v
	}
	if v := os.Getenv("FORMPILOT_USER_EMAIL"); v != "" {
		cfg.AI.UserEmail = v
	}
	if v := os.Getenv("FORMPILOT_DB"); v != "" {
		cfg.Patterns.DBPath = v
	}
	if v := os.Getenv("FORMPILOT_DEBUGGER_URL"); v != "" {
		cfg.Browser.DebuggerURL = v
	}
	if v := os.Getenv("FORMPILOT_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Browser.Headless = b
		}
	}
	if v := os.Getenv("FORMPILOT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Timeout returns the prediction call timeout.
func (c AIConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// NavigationTimeout returns the page navigation timeout.
func (c BrowserConfig) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}
