package bot

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	internalerrors "github.com/dkovalev/logsentry-bot/internal/errors"
)

// reply sends a single plain-text message, logging delivery failures.
func (b *Bot) reply(chatID int64, text string) {
	if err := b.send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

// sendChunks delivers report chunks in order, one outbound message per
// chunk. A failed chunk aborts the rest so the receiver never sees a
// gap in the middle of a report.
func (b *Bot) sendChunks(chatID int64, chunks []string) {
	for i, chunk := range chunks {
		if err := b.send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			b.log.Error().
				Err(err).
				Int64("chat_id", chatID).
				Int("chunk", i).
				Int("total", len(chunks)).
				Msg("Failed to deliver report chunk")
			return
		}
		if b.met != nil {
			b.met.ChunksSentTotal.Inc()
		}
	}
}

// send applies rate limiting and retry to one outbound message.
func (b *Bot) send(msg tgbotapi.MessageConfig) error {
	b.waitForRateLimit()
	return b.sendWithRetry(msg)
}

// reserveSendSlot claims the next outbound send time under the mutex.
// Each caller gets its own slot at least minMessageInterval after the
// previous one, so concurrent handlers cannot both decide no wait is
// needed and send back to back.
func (b *Bot) reserveSendSlot() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	slot := b.lastMessageTime.Add(minMessageInterval)
	if b.lastMessageTime.IsZero() || slot.Before(now) {
		slot = now
	}
	b.lastMessageTime = slot
	return slot
}

// waitForRateLimit sleeps until this goroutine's reserved send slot.
func (b *Bot) waitForRateLimit() {
	time.Sleep(time.Until(b.reserveSendSlot()))
}

// sendWithRetry sends a message with exponential backoff, honoring the
// retry-after hint Telegram includes in rate-limit errors.
func (b *Bot) sendWithRetry(msg tgbotapi.MessageConfig) error {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		_, err := b.api.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err

		if isRateLimitError(err) {
			if retryAfter := extractRetryAfter(err); retryAfter > 0 {
				time.Sleep(time.Duration(retryAfter) * time.Second)
				continue
			}
		}

		if attempt < maxRetries {
			delay := baseRetryDelay * time.Duration(1<<(attempt-1)) // 2s, 4s, 8s...
			time.Sleep(delay)
		}
	}

	return internalerrors.Wrapf(lastErr, "failed to send message after %d retries", maxRetries)
}

// isRateLimitError checks if the error is a Telegram rate limit error (429)
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") || strings.Contains(errStr, "Too Many Requests")
}

// extractRetryAfter extracts the retry_after value from a rate limit
// error, e.g. "Too Many Requests: retry after 30".
func extractRetryAfter(err error) int {
	if err == nil {
		return 0
	}

	errStr := err.Error()
	if idx := strings.Index(strings.ToLower(errStr), "retry after "); idx != -1 {
		remaining := errStr[idx+len("retry after "):]
		var seconds int
		if _, err := fmt.Sscanf(remaining, "%d", &seconds); err == nil {
			return seconds
		}
	}

	// Conservative wait when the value cannot be extracted
	return 30
}
