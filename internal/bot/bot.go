// Package bot is the Telegram front end: it receives commands and
// uploaded log files, invokes the analysis engine, and delivers the
// chunked report.
package bot

import (
	"context"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dkovalev/logsentry-bot/internal/ai"
	"github.com/dkovalev/logsentry-bot/internal/analyzer"
	internalerrors "github.com/dkovalev/logsentry-bot/internal/errors"
	"github.com/dkovalev/logsentry-bot/internal/filter"
	"github.com/dkovalev/logsentry-bot/internal/logging"
	"github.com/dkovalev/logsentry-bot/internal/metrics"
	"github.com/dkovalev/logsentry-bot/internal/storage"
)

const (
	// updateTimeout is the long-polling timeout in seconds
	updateTimeout = 30
	// minMessageInterval is the minimum time between outbound messages
	// to avoid Telegram rate limits
	minMessageInterval = 1 * time.Second
	// maxRetries is the maximum number of send attempts per message
	maxRetries = 3
	// baseRetryDelay is the initial delay between retries (doubles each attempt)
	baseRetryDelay = 2 * time.Second
)

// Bot wires the Telegram API to the filter set and the analyzer.
type Bot struct {
	api        *tgbotapi.BotAPI
	filters    *filter.Set
	dispatcher *analyzer.Dispatcher
	store      *storage.Storage // nil when the database is disabled
	summarizer *ai.Client       // nil when AI summaries are not configured
	met        *metrics.Metrics
	log        *logging.SecureLogger
	uploadsDir string

	mu              sync.Mutex
	lastMessageTime time.Time

	handlers sync.WaitGroup
}

// Options carries the collaborators a Bot needs.
type Options struct {
	Token      string
	Filters    *filter.Set
	Dispatcher *analyzer.Dispatcher
	Store      *storage.Storage
	Summarizer *ai.Client
	Metrics    *metrics.Metrics
	Log        *logging.SecureLogger
	UploadsDir string
}

// New creates the bot and verifies the token against the Telegram API.
func New(opts Options) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(opts.Token)
	if err != nil {
		// Sanitized so the token never appears in error output
		return nil, internalerrors.Wrapf(err, "failed to create Telegram bot")
	}

	return &Bot{
		api:        api,
		filters:    opts.Filters,
		dispatcher: opts.Dispatcher,
		store:      opts.Store,
		summarizer: opts.Summarizer,
		met:        opts.Metrics,
		log:        opts.Log,
		uploadsDir: opts.UploadsDir,
	}, nil
}

// Username returns the bot account name reported by Telegram.
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// Run consumes updates until the context is canceled. Each update is
// handled on its own goroutine so a long scan never blocks other
// users' commands; Run waits for in-flight handlers before returning
// so callers can tear down the analyzer safely afterwards.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = updateTimeout
	updates := b.api.GetUpdatesChan(cfg)
	defer b.handlers.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handlers.Add(1)
			go func() {
				defer b.handlers.Done()
				b.handleUpdate(ctx, update)
			}()
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil {
		return
	}

	if msg.Document != nil {
		b.handleDocument(ctx, msg)
		return
	}

	switch msg.Command() {
	case "start", "help":
		b.handleStart(msg)
	case "filters":
		b.handleFilters(msg)
	case "toggle":
		b.handleToggle(msg)
	case "logs":
		b.handleLogs(ctx, msg)
	case "files":
		b.handleFiles(msg)
	case "summary":
		b.handleSummary(ctx, msg)
	default:
		if msg.IsCommand() {
			b.reply(msg.Chat.ID, "Unknown command. Send /help to see what I can do.")
		}
	}
}

// isLogDocument reports whether an uploaded file name is accepted.
func isLogDocument(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".log")
}

// formatRuleList renders the full rule listing, including disabled
// rules, in definition order.
func formatRuleList(rules []filter.Rule) string {
	var sb strings.Builder
	sb.WriteString("Filters:\n")
	for _, r := range rules {
		state := "🚫"
		if r.Enabled {
			state = "✅"
		}
		sb.WriteString(state)
		sb.WriteString(" ")
		sb.WriteString(r.Name)
		sb.WriteString(" - ")
		sb.WriteString(r.Pattern)
		sb.WriteString("\n")
	}
	sb.WriteString("\nToggle one with /toggle <name>")
	return sb.String()
}

// formatActiveList renders the active filters for the greeting.
func formatActiveList(active []filter.Rule) string {
	if len(active) == 0 {
		return "(none)"
	}
	lines := make([]string, 0, len(active))
	for _, r := range active {
		lines = append(lines, "• "+r.Name+" ("+r.Pattern+")")
	}
	return strings.Join(lines, "\n")
}
