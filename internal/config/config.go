// Package config loads and validates the bot configuration from the
// environment, with .env support and CLI overrides.
package config

import (
	"crypto/subtle"
	"flag"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// CLIOptions holds command-line argument overrides
type CLIOptions struct {
	FiltersPath string // -filters: path to the filter configuration document
	EnvFile     string // -env: path to a .env file
	ShowHelp    bool   // -help: show usage
	ShowVersion bool   // -version: show version
}

// ParseCLI parses command-line arguments and returns CLIOptions
func ParseCLI() *CLIOptions {
	opts := &CLIOptions{}

	flag.StringVar(&opts.FiltersPath, "filters", "", "Path to the filter configuration file (overrides FILTERS_PATH)")
	flag.StringVar(&opts.EnvFile, "env", "", "Path to a .env file (default: ./.env)")
	flag.BoolVar(&opts.ShowHelp, "help", false, "Show usage information")
	flag.BoolVar(&opts.ShowVersion, "version", false, "Show version information")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Logsentry Bot - Telegram bot that categorizes log lines with regex filters\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nExamples:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  %s\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "  %s -filters /etc/logsentry/filters.yaml\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment variables can be set in a .env file or exported directly.\n")
		_, _ = fmt.Fprintf(os.Stderr, "CLI arguments override environment variables.\n")
	}

	flag.Parse()

	return opts
}

// PrintUsage prints the command-line usage information
func PrintUsage() {
	flag.Usage()
}

// Config holds all application configuration
type Config struct {
	// Telegram
	TelegramBotToken string

	// Filter engine
	FiltersPath string // the persisted filter document
	UploadsDir  string // where uploaded log files land

	// Analysis workers
	AnalyzeWorkers int
	AnalyzeQueue   int

	// Upload bookkeeping
	EnableDatabase bool
	DatabasePath   string

	// Optional AI summaries (enabled when the API key is set)
	AnthropicAPIKey  string
	ClaudeModel      string
	AITimeoutSeconds int
	AIMaxTokens      int

	// Observability
	LogLevel    string
	MetricsAddr string // empty disables the metrics listener
}

// Load loads configuration from .env file and environment variables.
// For CLI overrides, use LoadWithCLI instead.
func Load() (*Config, error) {
	return LoadWithCLI(nil)
}

// LoadWithCLI loads configuration with CLI argument overrides.
// Priority: CLI args > .env file > OS environment variables.
func LoadWithCLI(cli *CLIOptions) (*Config, error) {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// godotenv sets OS env vars from .env, which viper then reads
	if cli != nil && cli.EnvFile != "" {
		if err := godotenv.Load(cli.EnvFile); err != nil {
			return nil, fmt.Errorf("loading env file %s: %w", cli.EnvFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	setDefaults()

	config := &Config{
		TelegramBotToken: viper.GetString("TELEGRAM_BOT_TOKEN"),

		FiltersPath: viper.GetString("FILTERS_PATH"),
		UploadsDir:  viper.GetString("UPLOADS_DIR"),

		AnalyzeWorkers: viper.GetInt("ANALYZE_WORKERS"),
		AnalyzeQueue:   viper.GetInt("ANALYZE_QUEUE"),

		EnableDatabase: viper.GetBool("ENABLE_DATABASE"),
		DatabasePath:   viper.GetString("DATABASE_PATH"),

		AnthropicAPIKey:  viper.GetString("ANTHROPIC_API_KEY"),
		ClaudeModel:      viper.GetString("CLAUDE_MODEL"),
		AITimeoutSeconds: viper.GetInt("AI_TIMEOUT_SECONDS"),
		AIMaxTokens:      viper.GetInt("AI_MAX_TOKENS"),

		LogLevel:    viper.GetString("LOG_LEVEL"),
		MetricsAddr: viper.GetString("METRICS_ADDR"),
	}

	// Apply CLI overrides (highest priority)
	if cli != nil && cli.FiltersPath != "" {
		config.FiltersPath = cli.FiltersPath
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("FILTERS_PATH", "config/filters.yaml")
	viper.SetDefault("UPLOADS_DIR", "logs")
	viper.SetDefault("ANALYZE_WORKERS", 2)
	viper.SetDefault("ANALYZE_QUEUE", 16)
	viper.SetDefault("ENABLE_DATABASE", true)
	viper.SetDefault("DATABASE_PATH", "./data/uploads.db")
	viper.SetDefault("CLAUDE_MODEL", "claude-sonnet-4-5-20250929")
	viper.SetDefault("AI_TIMEOUT_SECONDS", 120)
	viper.SetDefault("AI_MAX_TOKENS", 2000)
	viper.SetDefault("LOG_LEVEL", "info")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	telegramTokenRegex := regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)
	if !telegramTokenRegex.MatchString(c.TelegramBotToken) {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN has invalid format (expected: 'number:token')")
	}

	if c.FiltersPath == "" {
		return fmt.Errorf("FILTERS_PATH is required")
	}
	if c.UploadsDir == "" {
		return fmt.Errorf("UPLOADS_DIR is required")
	}

	if c.AnalyzeWorkers < 1 || c.AnalyzeWorkers > 16 {
		return fmt.Errorf("ANALYZE_WORKERS must be between 1 and 16")
	}
	if c.AnalyzeQueue < 0 || c.AnalyzeQueue > 256 {
		return fmt.Errorf("ANALYZE_QUEUE must be between 0 and 256")
	}

	if c.EnableDatabase && c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required when ENABLE_DATABASE=true")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	// AI settings only matter when summaries are enabled
	if c.HasAI() {
		// Constant-time comparison keeps the key prefix check from
		// leaking timing information about the key content
		if !constantTimePrefixMatch(c.AnthropicAPIKey, "sk-ant-") {
			return fmt.Errorf("ANTHROPIC_API_KEY must start with 'sk-ant-'")
		}
		if c.ClaudeModel == "" {
			return fmt.Errorf("CLAUDE_MODEL is required when ANTHROPIC_API_KEY is set")
		}
		if c.AITimeoutSeconds < 10 || c.AITimeoutSeconds > 600 {
			return fmt.Errorf("AI_TIMEOUT_SECONDS must be between 10 and 600")
		}
		if c.AIMaxTokens < 100 || c.AIMaxTokens > 16000 {
			return fmt.Errorf("AI_MAX_TOKENS must be between 100 and 16000")
		}
	}

	return nil
}

// HasAI returns true if AI summaries are configured
func (c *Config) HasAI() bool {
	return c.AnthropicAPIKey != ""
}

// HasMetrics returns true if the metrics listener is configured
func (c *Config) HasMetrics() bool {
	return c.MetricsAddr != ""
}

// constantTimePrefixMatch checks if s starts with prefix using
// constant-time comparison. Returns false if s is shorter than prefix.
func constantTimePrefixMatch(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s[:len(prefix)]), []byte(prefix)) == 1
}
