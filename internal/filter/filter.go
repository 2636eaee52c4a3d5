// Package filter manages the ordered set of named regular-expression
// rules used to categorize log lines. The whole set is backed by a
// single YAML document on disk and is rewritten atomically on every
// mutation.
package filter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"gopkg.in/yaml.v3"
)

// Default analysis settings written on first run.
const (
	DefaultLogFile  = "logs/app.log"
	DefaultMaxLines = 1000
)

// ErrRuleNotFound is returned by Toggle when no rule has the given name.
var ErrRuleNotFound = errors.New("filter rule not found")

// ConfigError reports a structurally invalid persisted filter
// configuration. It is fatal at load time; the loader never falls back
// to defaults when the file exists but cannot be used.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid filter configuration %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Rule is one named categorization pattern. Patterns are compiled
// case-insensitively at load time; a rule that reaches analysis always
// carries a valid compiled expression.
type Rule struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Enabled bool   `yaml:"enabled"`

	re *regexp.Regexp
}

// Matches reports whether the rule's pattern matches the line.
func (r Rule) Matches(line string) bool {
	return r.re != nil && r.re.MatchString(line)
}

// Compiled reports whether the rule carries a compiled pattern.
func (r Rule) Compiled() bool {
	return r.re != nil
}

// document is the on-disk shape of the filter configuration.
type document struct {
	Filters  []Rule `yaml:"filters"`
	LogFile  string `yaml:"log_file"`
	MaxLines int    `yaml:"max_lines"`
}

// Set holds the ordered rules plus the analysis target settings that
// live in the same document. All mutations take the mutex and persist
// the whole document before returning.
type Set struct {
	mu       sync.Mutex
	path     string
	rules    []Rule
	logFile  string
	maxLines int
}

// NewRule builds a single compiled rule outside a persisted document.
func NewRule(name, pattern string, enabled bool) (Rule, error) {
	r := Rule{Name: name, Pattern: pattern, Enabled: enabled}
	if name == "" {
		return Rule{}, errors.New("rule name must not be empty")
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %q has an invalid pattern: %w", name, err)
	}
	r.re = re
	return r, nil
}

// DefaultRules returns the built-in rule set used when no persisted
// configuration exists yet.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "Errors", Pattern: `ERROR|CRITICAL|FAILED|EXCEPTION`, Enabled: true},
		{Name: "Warnings", Pattern: `WARNING`, Enabled: true},
		{Name: "Auth", Pattern: `AUTH|LOGIN|LOGOUT|SESSION`, Enabled: false},
	}
}

// Load reads the filter configuration from path. A missing file is not
// an error: the default set is written out and returned. A file that
// exists but is structurally invalid yields a *ConfigError.
func Load(path string) (*Set, error) {
	s := &Set{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, &ConfigError{Path: path, Err: err}
		}
		s.rules = DefaultRules()
		s.logFile = DefaultLogFile
		s.maxLines = DefaultMaxLines
		if err := compileRules(s.rules); err != nil {
			return nil, &ConfigError{Path: path, Err: err}
		}
		if err := s.saveLocked(); err != nil {
			return nil, fmt.Errorf("writing default filter configuration: %w", err)
		}
		return s, nil
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	if len(doc.Filters) == 0 {
		return nil, &ConfigError{Path: path, Err: errors.New("no filters defined")}
	}
	if doc.MaxLines <= 0 {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("max_lines must be positive (got %d)", doc.MaxLines)}
	}
	if err := compileRules(doc.Filters); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	// A document without a log_file would only surface as an IO error
	// at the first analysis; fall back to the default target instead.
	if doc.LogFile == "" {
		doc.LogFile = DefaultLogFile
	}

	s.rules = doc.Filters
	s.logFile = doc.LogFile
	s.maxLines = doc.MaxLines
	return s, nil
}

// compileRules validates names and compiles every pattern in place.
// Patterns are wrapped with (?i) so matching is case-insensitive
// regardless of how the pattern was written.
func compileRules(rules []Rule) error {
	seen := make(map[string]struct{}, len(rules))
	for i := range rules {
		r := &rules[i]
		if r.Name == "" {
			return fmt.Errorf("filter %d has an empty name", i)
		}
		if _, dup := seen[r.Name]; dup {
			return fmt.Errorf("duplicate filter name %q", r.Name)
		}
		seen[r.Name] = struct{}{}

		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return fmt.Errorf("filter %q has an invalid pattern: %w", r.Name, err)
		}
		r.re = re
	}
	return nil
}

// Rules returns a copy of all rules, including disabled ones, in
// definition order.
func (s *Set) Rules() []Rule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// ActiveFilters returns a copy of the enabled rules in definition
// order. Callers snapshot this once per analysis so a concurrent
// toggle never mixes two configurations within one scan.
func (s *Set) ActiveFilters() []Rule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

// Toggle flips the enabled flag of the named rule and persists the
// whole set before returning the new state. If persistence fails the
// in-memory flag is reverted, so a failed toggle never takes effect.
func (s *Set) Toggle(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.rules {
		if s.rules[i].Name != name {
			continue
		}
		s.rules[i].Enabled = !s.rules[i].Enabled
		if err := s.saveLocked(); err != nil {
			s.rules[i].Enabled = !s.rules[i].Enabled
			return false, fmt.Errorf("persisting filter set: %w", err)
		}
		return s.rules[i].Enabled, nil
	}
	return false, fmt.Errorf("%w: %q", ErrRuleNotFound, name)
}

// LogFile returns the currently configured analysis target.
func (s *Set) LogFile() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logFile
}

// SetLogFile repoints the analysis target and persists the document.
// Last write wins; on a failed write the previous path is restored.
func (s *Set) SetLogFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.logFile
	s.logFile = path
	if err := s.saveLocked(); err != nil {
		s.logFile = prev
		return fmt.Errorf("persisting log file path: %w", err)
	}
	return nil
}

// MaxLines returns the configured analysis window size.
func (s *Set) MaxLines() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxLines
}

// Path returns the location of the backing document.
func (s *Set) Path() string {
	return s.path
}

// saveLocked writes the whole document atomically: marshal, write to a
// temp file in the same directory, then rename over the target. The
// caller must hold the mutex.
func (s *Set) saveLocked() error {
	doc := document{Filters: s.rules, LogFile: s.logFile, MaxLines: s.maxLines}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshaling filter configuration: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating configuration directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".filters-*.yaml")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing filter configuration: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing filter configuration: %w", err)
	}
	return nil
}
