// Package analyzer scans the trailing window of a log file and
// categorizes each line into at most one filter bucket, first match
// wins. It also renders results into transport-sized text chunks.
package analyzer

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/dkovalev/logsentry-bot/internal/filter"
)

// maxLineBytes bounds a single scanned line so a pathological file
// cannot exhaust memory.
const maxLineBytes = 1024 * 1024

// FailureKind classifies an analysis failure.
type FailureKind int

const (
	// KindIOFailure means the log file is missing or unreadable.
	KindIOFailure FailureKind = iota
	// KindPatternFailure means a rule without a compiled pattern
	// reached the scanner. Load-time validation makes this a bug,
	// not an expected runtime condition.
	KindPatternFailure
)

// AnalysisError is the failure value returned by Analyze. It never
// escapes to the user directly; the formatter converts it into the
// failed-analysis sentinel while the cause is logged.
type AnalysisError struct {
	Kind FailureKind
	Path string
	Err  error
}

func (e *AnalysisError) Error() string {
	switch e.Kind {
	case KindPatternFailure:
		return fmt.Sprintf("analysis of %s failed: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("cannot read log file %s: %v", e.Path, e.Err)
	}
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// Result holds the categorized lines of one analysis pass. Bucket
// order is the active-filter order at scan time; lines within a bucket
// keep file order, oldest first.
type Result struct {
	names   []string
	buckets map[string][]string
}

func newResult(active []filter.Rule) *Result {
	r := &Result{
		names:   make([]string, 0, len(active)),
		buckets: make(map[string][]string, len(active)),
	}
	for _, f := range active {
		r.names = append(r.names, f.Name)
		r.buckets[f.Name] = nil
	}
	return r
}

// Names returns the bucket names in active-filter order, including
// buckets that captured nothing.
func (r *Result) Names() []string {
	return r.names
}

// Lines returns the captured lines for one bucket, oldest first.
func (r *Result) Lines(name string) []string {
	return r.buckets[name]
}

// Empty reports whether no bucket captured any line.
func (r *Result) Empty() bool {
	for _, lines := range r.buckets {
		if len(lines) > 0 {
			return false
		}
	}
	return true
}

// Analyze reads the last windowSize lines of the file at path and
// assigns each line to the first active filter whose pattern matches
// it. Lines matching no filter are discarded. Trailing whitespace is
// stripped from recorded lines; leading whitespace is preserved.
func Analyze(path string, windowSize int, active []filter.Rule) (*Result, error) {
	for _, f := range active {
		if !f.Compiled() {
			return nil, &AnalysisError{
				Kind: KindPatternFailure,
				Path: path,
				Err:  fmt.Errorf("filter %q has no compiled pattern", f.Name),
			}
		}
	}

	lines, err := tailLines(path, windowSize)
	if err != nil {
		return nil, &AnalysisError{Kind: KindIOFailure, Path: path, Err: err}
	}

	result := newResult(active)
	for _, line := range lines {
		for _, f := range active {
			if f.Matches(line) {
				result.buckets[f.Name] = append(result.buckets[f.Name], strings.TrimRight(line, " \t\r\n"))
				break
			}
		}
	}
	return result, nil
}

// tailLines returns the last n lines of the file, oldest first. A file
// with fewer than n lines yields all of them. Memory is bounded by the
// window: the working slice is compacted whenever it grows past twice
// the window size.
func tailLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	if n <= 0 {
		return nil, nil
	}

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > 2*n {
			lines = append(lines[:0], lines[len(lines)-n:]...)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
