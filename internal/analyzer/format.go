package analyzer

import (
	"fmt"
	"strings"
)

const (
	// MaxChunkRunes is the transport message size limit. Formatted
	// reports are split into chunks no longer than this.
	MaxChunkRunes = 4000

	// maxDisplayLines caps how many lines a report block shows per
	// filter. Accumulation is uncapped; the header count reflects
	// every match, not the displayed subset.
	maxDisplayLines = 20
)

// User-facing sentinels. The failed-analysis sentinel is distinct from
// the empty-result one so callers can tell "nothing matched" from
// "the scan itself failed".
const (
	FailedSentinel    = "Failed to analyze logs."
	NoRecordsSentinel = "No matching records found."
)

// FormatResult renders a result into a human-readable report: one
// block per filter that captured anything, in active-filter order.
// Each block is a header with the filter name and total match count,
// the last maxDisplayLines captured lines (oldest of those first),
// and a blank separator line. A nil result means the analysis failed
// upstream.
func FormatResult(result *Result) string {
	if result == nil {
		return FailedSentinel
	}

	var parts []string
	for _, name := range result.Names() {
		lines := result.Lines(name)
		if len(lines) == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("📍 %s (%d):", name, len(lines)))
		display := lines
		if len(display) > maxDisplayLines {
			display = display[len(display)-maxDisplayLines:]
		}
		parts = append(parts, display...)
		parts = append(parts, "")
	}

	if len(parts) == 0 {
		return NoRecordsSentinel
	}
	return strings.Join(parts, "\n")
}

// ChunkText splits s into pieces of at most limit runes each. The
// split is purely positional over the text, without regard for line or
// word boundaries; concatenating the chunks in order reproduces s
// exactly. Runes rather than bytes keep a chunk boundary from cutting
// a UTF-8 sequence in half, which the transport would reject.
func ChunkText(s string, limit int) []string {
	if limit <= 0 || len(s) <= limit {
		return []string{s}
	}

	runes := []rune(s)
	chunks := make([]string, 0, (len(runes)+limit-1)/limit)
	for i := 0; i < len(runes); i += limit {
		end := i + limit
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
