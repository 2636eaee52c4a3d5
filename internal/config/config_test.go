package config

import (
	"strings"
	"testing"
)

// checkError is a helper to verify error expectations in tests
func checkError(t *testing.T, err error, expectError bool, errorContains string) {
	t.Helper()
	if expectError {
		if err == nil {
			t.Error("Expected an error but got none")
			return
		}
		if errorContains != "" && !strings.Contains(err.Error(), errorContains) {
			t.Errorf("Expected error to contain '%s', got '%s'", errorContains, err.Error())
		}
	} else {
		if err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	}
}

func validConfig() *Config {
	return &Config{
		TelegramBotToken: "123456789:ABCdefGHIjklMNOpqrsTUVwxyz",
		FiltersPath:      "config/filters.yaml",
		UploadsDir:       "logs",
		AnalyzeWorkers:   2,
		AnalyzeQueue:     16,
		EnableDatabase:   true,
		DatabasePath:     "./data/uploads.db",
		LogLevel:         "info",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(c *Config)
		expectError   bool
		errorContains string
	}{
		{
			name:        "Valid config",
			mutate:      func(c *Config) {},
			expectError: false,
		},
		{
			name:          "Missing bot token",
			mutate:        func(c *Config) { c.TelegramBotToken = "" },
			expectError:   true,
			errorContains: "TELEGRAM_BOT_TOKEN is required",
		},
		{
			name:          "Malformed bot token",
			mutate:        func(c *Config) { c.TelegramBotToken = "not-a-token" },
			expectError:   true,
			errorContains: "invalid format",
		},
		{
			name:          "Missing filters path",
			mutate:        func(c *Config) { c.FiltersPath = "" },
			expectError:   true,
			errorContains: "FILTERS_PATH is required",
		},
		{
			name:          "Missing uploads dir",
			mutate:        func(c *Config) { c.UploadsDir = "" },
			expectError:   true,
			errorContains: "UPLOADS_DIR is required",
		},
		{
			name:          "Too many workers",
			mutate:        func(c *Config) { c.AnalyzeWorkers = 64 },
			expectError:   true,
			errorContains: "ANALYZE_WORKERS",
		},
		{
			name:          "Negative queue",
			mutate:        func(c *Config) { c.AnalyzeQueue = -1 },
			expectError:   true,
			errorContains: "ANALYZE_QUEUE",
		},
		{
			name:          "Database enabled without path",
			mutate:        func(c *Config) { c.DatabasePath = "" },
			expectError:   true,
			errorContains: "DATABASE_PATH is required",
		},
		{
			name:        "Database disabled without path",
			mutate:      func(c *Config) { c.EnableDatabase = false; c.DatabasePath = "" },
			expectError: false,
		},
		{
			name:          "Invalid log level",
			mutate:        func(c *Config) { c.LogLevel = "verbose" },
			expectError:   true,
			errorContains: "LOG_LEVEL",
		},
		{
			name: "Bad Anthropic key prefix",
			mutate: func(c *Config) {
				c.AnthropicAPIKey = "bogus-key"
				c.ClaudeModel = "claude-sonnet-4-5-20250929"
				c.AITimeoutSeconds = 120
				c.AIMaxTokens = 2000
			},
			expectError:   true,
			errorContains: "must start with 'sk-ant-'",
		},
		{
			name: "Valid AI settings",
			mutate: func(c *Config) {
				c.AnthropicAPIKey = "sk-ant-test-key-1234567890"
				c.ClaudeModel = "claude-sonnet-4-5-20250929"
				c.AITimeoutSeconds = 120
				c.AIMaxTokens = 2000
			},
			expectError: false,
		},
		{
			name: "AI timeout out of range",
			mutate: func(c *Config) {
				c.AnthropicAPIKey = "sk-ant-test-key-1234567890"
				c.ClaudeModel = "claude-sonnet-4-5-20250929"
				c.AITimeoutSeconds = 5
				c.AIMaxTokens = 2000
			},
			expectError:   true,
			errorContains: "AI_TIMEOUT_SECONDS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			checkError(t, cfg.Validate(), tt.expectError, tt.errorContains)
		})
	}
}

func TestHasAI(t *testing.T) {
	cfg := validConfig()
	if cfg.HasAI() {
		t.Error("Expected HasAI to be false without a key")
	}
	cfg.AnthropicAPIKey = "sk-ant-test-key-1234567890"
	if !cfg.HasAI() {
		t.Error("Expected HasAI to be true with a key")
	}
}

func TestHasMetrics(t *testing.T) {
	cfg := validConfig()
	if cfg.HasMetrics() {
		t.Error("Expected HasMetrics to be false without an address")
	}
	cfg.MetricsAddr = ":9090"
	if !cfg.HasMetrics() {
		t.Error("Expected HasMetrics to be true with an address")
	}
}

func TestConstantTimePrefixMatch(t *testing.T) {
	tests := []struct {
		s      string
		prefix string
		want   bool
	}{
		{"sk-ant-abc", "sk-ant-", true},
		{"sk-ant-", "sk-ant-", true},
		{"sk-an", "sk-ant-", false},
		{"other-abc", "sk-ant-", false},
	}

	for _, tt := range tests {
		if got := constantTimePrefixMatch(tt.s, tt.prefix); got != tt.want {
			t.Errorf("constantTimePrefixMatch(%q, %q) = %v, want %v", tt.s, tt.prefix, got, tt.want)
		}
	}
}
