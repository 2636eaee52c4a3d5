package analyzer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/dkovalev/logsentry-bot/internal/filter"
)

func TestFormatResult_NilResult(t *testing.T) {
	got := FormatResult(nil)
	if got != FailedSentinel {
		t.Errorf("Expected failed sentinel, got %q", got)
	}
}

func TestFormatResult_EmptyResult(t *testing.T) {
	rules := []filter.Rule{mustRule(t, "Errors", "ERROR")}
	result := newResult(rules)

	got := FormatResult(result)
	if got != NoRecordsSentinel {
		t.Errorf("Expected no-records sentinel, got %q", got)
	}
	if got == FailedSentinel {
		t.Error("Empty-result sentinel must differ from the failed sentinel")
	}
}

func TestFormatResult_BlockLayout(t *testing.T) {
	rules := []filter.Rule{
		mustRule(t, "Errors", "ERROR"),
		mustRule(t, "Warnings", "WARNING"),
		mustRule(t, "Auth", "LOGIN"),
	}
	result := newResult(rules)
	result.buckets["Errors"] = []string{"ERROR one", "ERROR two"}
	result.buckets["Warnings"] = []string{"WARNING only"}
	// Auth bucket stays empty and must be skipped

	got := FormatResult(result)

	wantHeader := "📍 Errors (2):"
	if !strings.Contains(got, wantHeader) {
		t.Errorf("Expected header %q in:\n%s", wantHeader, got)
	}
	if !strings.Contains(got, "📍 Warnings (1):") {
		t.Errorf("Expected Warnings header in:\n%s", got)
	}
	if strings.Contains(got, "Auth") {
		t.Errorf("Empty Auth bucket must be skipped:\n%s", got)
	}

	// Blocks appear in filter order
	if strings.Index(got, "Errors") > strings.Index(got, "Warnings") {
		t.Error("Errors block must precede Warnings block")
	}

	// Each block ends with a blank separator line
	if !strings.Contains(got, "WARNING only\n") && !strings.HasSuffix(got, "WARNING only\n") {
		lines := strings.Split(got, "\n")
		if lines[len(lines)-1] != "" {
			t.Errorf("Expected trailing blank separator, got %q", lines[len(lines)-1])
		}
	}
}

func TestFormatResult_DisplayCapKeepsFullCount(t *testing.T) {
	rules := []filter.Rule{mustRule(t, "Errors", "ERROR")}
	result := newResult(rules)
	for i := 0; i < 57; i++ {
		result.buckets["Errors"] = append(result.buckets["Errors"], fmt.Sprintf("ERROR %d", i))
	}

	got := FormatResult(result)

	// Header reports the full count
	if !strings.Contains(got, "📍 Errors (57):") {
		t.Errorf("Expected full count in header:\n%s", got)
	}

	// Only the last 20 lines are displayed, oldest of those first
	if strings.Contains(got, "ERROR 36\n") {
		t.Error("Line 36 should be cut by the display cap")
	}
	if !strings.Contains(got, "ERROR 37") || !strings.Contains(got, "ERROR 56") {
		t.Error("Expected the last 20 lines (37..56) to be displayed")
	}
	if strings.Index(got, "ERROR 37") > strings.Index(got, "ERROR 56") {
		t.Error("Displayed lines must keep file order, oldest first")
	}
}

func TestChunkText_Properties(t *testing.T) {
	tests := []struct {
		name       string
		length     int
		limit      int
		wantChunks int
	}{
		{"Fits in one chunk", 3999, 4000, 1},
		{"Exactly at limit", 4000, 4000, 1},
		{"One over limit", 4001, 4000, 2},
		{"Several chunks", 10000, 4000, 3},
		{"Small limit", 10, 3, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := strings.Repeat("x", tt.length)
			chunks := ChunkText(text, tt.limit)

			if len(chunks) != tt.wantChunks {
				t.Fatalf("Expected %d chunks, got %d", tt.wantChunks, len(chunks))
			}
			for i, c := range chunks {
				if n := len([]rune(c)); n > tt.limit {
					t.Errorf("Chunk %d exceeds limit: %d > %d", i, n, tt.limit)
				}
			}
			if strings.Join(chunks, "") != text {
				t.Error("Concatenated chunks must reproduce the original text")
			}
		})
	}
}

func TestChunkText_MultibyteSafe(t *testing.T) {
	// Each rune is multibyte; a byte-positional split would cut one in half
	text := strings.Repeat("📍я", 3000)
	chunks := ChunkText(text, 4000)

	for i, c := range chunks {
		if !strings.HasPrefix(c, "📍") && !strings.HasPrefix(c, "я") {
			t.Errorf("Chunk %d does not start on a rune boundary", i)
		}
	}
	if strings.Join(chunks, "") != text {
		t.Error("Concatenated chunks must reproduce the original text")
	}
}

func TestAnalyzeAndFormat_EndToEnd(t *testing.T) {
	// 25-line file: 5 ERROR lines, 3 WARNING lines, rest noise.
	var lines []string
	for i := 0; i < 5; i++ {
		lines = append(lines, fmt.Sprintf("2026-01-02 ERROR request %d failed", i))
	}
	for i := 0; i < 3; i++ {
		lines = append(lines, fmt.Sprintf("2026-01-02 WARNING slow response %d", i))
	}
	for len(lines) < 25 {
		lines = append(lines, fmt.Sprintf("2026-01-02 INFO heartbeat %d", len(lines)))
	}
	path := writeLog(t, lines)

	active := []filter.Rule{
		mustRule(t, "Errors", "ERROR|CRITICAL|FAILED|EXCEPTION"),
		mustRule(t, "Warnings", "WARNING"),
		// Auth filter is disabled, so it is not in the active set
	}

	result, err := Analyze(path, 1000, active)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	got := FormatResult(result)

	if !strings.Contains(got, "📍 Errors (5):") {
		t.Errorf("Expected Errors block with count 5:\n%s", got)
	}
	if !strings.Contains(got, "📍 Warnings (3):") {
		t.Errorf("Expected Warnings block with count 3:\n%s", got)
	}
	if strings.Contains(got, "Auth") {
		t.Errorf("Disabled Auth filter must produce no block:\n%s", got)
	}
	if strings.Index(got, "Errors") > strings.Index(got, "Warnings") {
		t.Error("Blocks must appear in filter definition order")
	}

	for i := 0; i < 5; i++ {
		want := fmt.Sprintf("ERROR request %d failed", i)
		if !strings.Contains(got, want) {
			t.Errorf("Expected line %q in report", want)
		}
	}

	chunks := ChunkText(got, MaxChunkRunes)
	if len(chunks) != 1 {
		t.Errorf("Short report should fit one chunk, got %d", len(chunks))
	}
}
