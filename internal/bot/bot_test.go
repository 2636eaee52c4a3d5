package bot

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkovalev/logsentry-bot/internal/filter"
)

func TestIsLogDocument(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"app.log", true},
		{"APP.LOG", true},
		{"nginx.access.log", true},
		{"app.txt", false},
		{"log", false},
		{"app.log.gz", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := isLogDocument(tt.name); got != tt.want {
			t.Errorf("isLogDocument(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFormatRuleList(t *testing.T) {
	rules := []filter.Rule{
		{Name: "Errors", Pattern: "ERROR", Enabled: true},
		{Name: "Auth", Pattern: "LOGIN", Enabled: false},
	}

	got := formatRuleList(rules)

	if !strings.Contains(got, "✅ Errors - ERROR") {
		t.Errorf("Expected enabled marker for Errors:\n%s", got)
	}
	if !strings.Contains(got, "🚫 Auth - LOGIN") {
		t.Errorf("Expected disabled marker for Auth:\n%s", got)
	}
	if strings.Index(got, "Errors") > strings.Index(got, "Auth") {
		t.Error("Rules must keep definition order")
	}
	if !strings.Contains(got, "/toggle") {
		t.Error("Expected the toggle hint")
	}
}

func TestFormatActiveList(t *testing.T) {
	active := []filter.Rule{
		{Name: "Errors", Pattern: "ERROR|CRITICAL", Enabled: true},
		{Name: "Warnings", Pattern: "WARNING", Enabled: true},
	}

	got := formatActiveList(active)
	if !strings.Contains(got, "• Errors (ERROR|CRITICAL)") {
		t.Errorf("Expected bullet for Errors, got:\n%s", got)
	}
	if !strings.Contains(got, "• Warnings (WARNING)") {
		t.Errorf("Expected bullet for Warnings, got:\n%s", got)
	}

	if got := formatActiveList(nil); got != "(none)" {
		t.Errorf("Expected placeholder for empty active set, got %q", got)
	}
}

func TestIsRateLimitError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("Too Many Requests: retry after 30"), true},
		{errors.New("telegram: 429"), true},
		{errors.New("Bad Request: chat not found"), false},
		{nil, false},
	}

	for _, tt := range tests {
		if got := isRateLimitError(tt.err); got != tt.want {
			t.Errorf("isRateLimitError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestReserveSendSlot_SpacesConcurrentSenders(t *testing.T) {
	b := &Bot{}

	const senders = 8
	slots := make(chan time.Time, senders)

	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slots <- b.reserveSendSlot()
		}()
	}
	wg.Wait()
	close(slots)

	got := make([]time.Time, 0, senders)
	for s := range slots {
		got = append(got, s)
	}
	sort.Slice(got, func(i, j int) bool { return got[i].Before(got[j]) })

	for i := 1; i < len(got); i++ {
		if gap := got[i].Sub(got[i-1]); gap < minMessageInterval {
			t.Fatalf("Slots %d and %d are only %v apart, want at least %v", i-1, i, gap, minMessageInterval)
		}
	}
}

func TestExtractRetryAfter(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New("Too Many Requests: retry after 17"), 17},
		{errors.New("Too Many Requests: Retry After 5"), 5},
		{errors.New("Too Many Requests"), 30},
		{nil, 0},
	}

	for _, tt := range tests {
		if got := extractRetryAfter(tt.err); got != tt.want {
			t.Errorf("extractRetryAfter(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
