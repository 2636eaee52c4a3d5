package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dkovalev/logsentry-bot/internal/analyzer"
	internalerrors "github.com/dkovalev/logsentry-bot/internal/errors"
	"github.com/dkovalev/logsentry-bot/internal/filter"
	"github.com/dkovalev/logsentry-bot/internal/storage"
)

func (b *Bot) handleStart(msg *tgbotapi.Message) {
	active := b.filters.ActiveFilters()
	text := fmt.Sprintf(
		"I watch a log file for errors so you don't have to monitor it by hand.\n\n"+
			"Active filters:\n%s\n\n"+
			"Upload a file with a .log extension, then send /logs to get a report.",
		formatActiveList(active),
	)
	b.reply(msg.Chat.ID, text)
}

func (b *Bot) handleFilters(msg *tgbotapi.Message) {
	b.reply(msg.Chat.ID, formatRuleList(b.filters.Rules()))
}

func (b *Bot) handleToggle(msg *tgbotapi.Message) {
	name := strings.TrimSpace(msg.CommandArguments())
	if name == "" {
		b.reply(msg.Chat.ID, "Usage: /toggle <filter name>")
		return
	}

	enabled, err := b.filters.Toggle(name)
	switch {
	case errors.Is(err, filter.ErrRuleNotFound):
		b.reply(msg.Chat.ID, fmt.Sprintf("No filter named %q. Send /filters to see the list.", name))
		return
	case err != nil:
		b.log.Error().Err(err).Str("filter", name).Msg("Toggle failed to persist")
		b.reply(msg.Chat.ID, fmt.Sprintf("Could not save the change; filter %q was left as it was.", name))
		return
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	b.log.Info().Str("filter", name).Bool("enabled", enabled).Msg("Filter toggled")
	b.reply(msg.Chat.ID, fmt.Sprintf("Filter %q is now %s.\n\n%s", name, state, formatRuleList(b.filters.Rules())))
}

func (b *Bot) handleLogs(ctx context.Context, msg *tgbotapi.Message) {
	b.reply(msg.Chat.ID, "⏳ Analyzing logs...")

	report := b.runAnalysis(ctx, msg.Chat.ID)
	if report == "" {
		return
	}
	b.sendChunks(msg.Chat.ID, analyzer.ChunkText(report, analyzer.MaxChunkRunes))
}

// runAnalysis snapshots the filter configuration, dispatches one scan
// and returns the formatted report. An empty return means the caller
// was already answered (queue saturated or shutdown).
func (b *Bot) runAnalysis(ctx context.Context, chatID int64) string {
	req := analyzer.Request{
		Path:   b.filters.LogFile(),
		Window: b.filters.MaxLines(),
		Active: b.filters.ActiveFilters(),
	}

	ch, err := b.dispatcher.Submit(ctx, req)
	if err != nil {
		b.log.Warn().Err(err).Msg("Analysis dispatch rejected")
		b.reply(chatID, "I'm busy with other scans right now, try again in a moment.")
		return ""
	}

	var resp analyzer.Response
	select {
	case resp = <-ch:
	case <-ctx.Done():
		return ""
	}

	if resp.Err != nil {
		b.log.Error().Err(resp.Err).Str("path", req.Path).Msg("Analysis failed")
		b.countAnalysis("error")
		return analyzer.FormatResult(nil)
	}

	b.countAnalysis("ok")
	if b.met != nil {
		for _, name := range resp.Result.Names() {
			if n := len(resp.Result.Lines(name)); n > 0 {
				b.met.MatchedLinesTotal.WithLabelValues(name).Add(float64(n))
			}
		}
	}
	return analyzer.FormatResult(resp.Result)
}

func (b *Bot) handleSummary(ctx context.Context, msg *tgbotapi.Message) {
	if b.summarizer == nil {
		b.reply(msg.Chat.ID, "AI summaries are not configured on this instance.")
		return
	}

	b.reply(msg.Chat.ID, "⏳ Analyzing and summarizing logs...")

	report := b.runAnalysis(ctx, msg.Chat.ID)
	if report == "" {
		return
	}

	summary, err := b.summarizer.Summarize(ctx, report)
	if err != nil {
		b.log.Error().Err(err).Msg("Summarization failed")
		b.reply(msg.Chat.ID, "Could not produce a summary, here is the raw report instead.")
		b.sendChunks(msg.Chat.ID, analyzer.ChunkText(report, analyzer.MaxChunkRunes))
		return
	}
	b.sendChunks(msg.Chat.ID, analyzer.ChunkText("💡 "+summary, analyzer.MaxChunkRunes))
}

func (b *Bot) handleFiles(msg *tgbotapi.Message) {
	if b.store == nil {
		b.reply(msg.Chat.ID, "Upload history is not enabled on this instance.")
		return
	}

	uploads, err := b.store.RecentUploads(10)
	if err != nil {
		b.log.Error().Err(err).Msg("Failed to list uploads")
		b.reply(msg.Chat.ID, "Could not read the upload history.")
		return
	}
	if len(uploads) == 0 {
		b.reply(msg.Chat.ID, "No log files have been uploaded yet.")
		return
	}

	current := b.filters.LogFile()
	var sb strings.Builder
	sb.WriteString("Recent uploads:\n")
	for _, u := range uploads {
		marker := "  "
		if u.Path == current {
			marker = "▶ "
		}
		sb.WriteString(fmt.Sprintf("%s%s - %s (%d bytes)\n",
			marker, u.UploadedAt.Format("2006-01-02 15:04"), u.OriginalName, u.SizeBytes))
	}
	b.reply(msg.Chat.ID, sb.String())
}

func (b *Bot) handleDocument(ctx context.Context, msg *tgbotapi.Message) {
	doc := msg.Document
	if !isLogDocument(doc.FileName) {
		b.reply(msg.Chat.ID, "Please send a file with a .log extension.")
		return
	}

	dest := filepath.Join(b.uploadsDir, doc.FileID+".log")
	size, err := b.downloadDocument(ctx, doc.FileID, dest)
	if err != nil {
		b.log.Error().Err(err).Str("file", doc.FileName).Msg("Upload failed")
		b.reply(msg.Chat.ID, "Something went wrong while downloading the file, please try again.")
		return
	}

	if err := b.filters.SetLogFile(dest); err != nil {
		b.log.Error().Err(err).Str("path", dest).Msg("Failed to persist log file path")
		b.reply(msg.Chat.ID, "The file was saved but I could not switch to it, please try again.")
		return
	}

	if b.store != nil {
		upload := &storage.Upload{
			Path:         dest,
			OriginalName: doc.FileName,
			ChatID:       msg.Chat.ID,
			SizeBytes:    size,
		}
		if err := b.store.RecordUpload(upload); err != nil {
			// Bookkeeping only; the upload itself already succeeded
			b.log.Warn().Err(err).Msg("Failed to record upload")
		}
	}
	if b.met != nil {
		b.met.UploadsTotal.Inc()
	}

	b.log.Info().
		Str("file", doc.FileName).
		Str("path", dest).
		Int64("size_bytes", size).
		Msg("Log file uploaded")
	b.reply(msg.Chat.ID, "Log file uploaded. Send /logs to get a report.")
}

// downloadDocument fetches a file from the Bot API onto disk and
// returns its size. The download URL embeds the bot token, so every
// error passes through the sanitizer.
func (b *Bot) downloadDocument(ctx context.Context, fileID, dest string) (int64, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return 0, internalerrors.Wrapf(err, "resolving file %s", fileID)
	}

	if err := os.MkdirAll(b.uploadsDir, 0o755); err != nil {
		return 0, fmt.Errorf("creating uploads directory: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, file.Link(b.api.Token), nil)
	if err != nil {
		return 0, internalerrors.Wrapf(err, "building download request")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, internalerrors.Wrapf(err, "downloading file %s", fileID)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", dest, err)
	}

	size, err := io.Copy(out, resp.Body)
	if err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return 0, fmt.Errorf("writing %s: %w", dest, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dest)
		return 0, fmt.Errorf("closing %s: %w", dest, err)
	}

	// The handoff contract: verify the file actually landed
	if _, err := os.Stat(dest); err != nil {
		return 0, fmt.Errorf("verifying %s: %w", dest, err)
	}
	return size, nil
}

func (b *Bot) countAnalysis(status string) {
	if b.met != nil {
		b.met.AnalysesTotal.WithLabelValues(status).Inc()
	}
}
