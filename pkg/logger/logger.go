// Package logger provides structured logging with file rotation and
// optional console output.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps zerolog.Logger with rotation-aware setup.
type Logger struct {
	zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	LogDir     string
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	Console    bool // Enable console output
}

// New creates a new logger instance
func New(cfg Config) *Logger {
	if cfg.LogDir == "" {
		cfg.LogDir = "./logs"
	}
	if cfg.Filename == "" {
		cfg.Filename = "logsentry-bot.log"
	}
	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxBackups == 0 {
		cfg.MaxBackups = 5
	}

	// Fallback to stderr if the log directory cannot be created
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return &Logger{
			Logger: zerolog.New(os.Stderr).With().Timestamp().Logger(),
		}
	}

	zerolog.SetGlobalLevel(parseLogLevel(cfg.Level))

	fileWriter := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, cfg.Filename),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     30, // days
		Compress:   false,
	}

	var writers []io.Writer
	writers = append(writers, fileWriter)

	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "2006-01-02 15:04:05",
			NoColor:    false,
		})
	}

	log := zerolog.New(io.MultiWriter(writers...)).
		With().
		Timestamp().
		Caller().
		Logger()

	return &Logger{Logger: log}
}

// parseLogLevel converts string log level to zerolog level
func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Close flushes any buffered output. Zerolog writes synchronously, so
// there is nothing to flush today; the method keeps the caller's
// defer-close discipline uniform.
func (l *Logger) Close() error {
	return nil
}

// WithField returns a child logger with one extra field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{Logger: l.Logger.With().Interface(key, value).Logger()}
}
