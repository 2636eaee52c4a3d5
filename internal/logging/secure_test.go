package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/dkovalev/logsentry-bot/pkg/logger"
	"github.com/rs/zerolog"
)

const leakyToken = "123456789:ABCdefGHIjklMNOpqrsTUVwxyz1234567"

func newBufferLogger(buf *bytes.Buffer) *SecureLogger {
	base := &logger.Logger{Logger: zerolog.New(buf)}
	return NewSecure(base)
}

func TestSecureLogger_RedactsStrFields(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf)

	log.Info().Str("token", leakyToken).Msg("bot started")

	out := buf.String()
	if strings.Contains(out, "ABCdefGHI") {
		t.Errorf("Token leaked into log output: %s", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Errorf("Expected redaction marker in output: %s", out)
	}
}

func TestSecureLogger_RedactsErrors(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf)

	err := errors.New("send failed for " + leakyToken)
	log.Error().Err(err).Msg("delivery error")

	if strings.Contains(buf.String(), "ABCdefGHI") {
		t.Errorf("Token leaked via error field: %s", buf.String())
	}
}

func TestSecureLogger_RedactsMsgf(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf)

	log.Warn().Msgf("retrying with %s after %d attempts", leakyToken, 2)

	out := buf.String()
	if strings.Contains(out, "ABCdefGHI") {
		t.Errorf("Token leaked via Msgf: %s", out)
	}
	if !strings.Contains(out, "2 attempts") {
		t.Errorf("Non-string arguments should pass through: %s", out)
	}
}

func TestSecureLogger_PlainFieldsUntouched(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf)

	log.Info().
		Str("path", "logs/app.log").
		Int("lines", 42).
		Bool("ok", true).
		Msg("analysis done")

	out := buf.String()
	for _, want := range []string{"logs/app.log", "42", "true", "analysis done"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output: %s", want, out)
		}
	}
}
