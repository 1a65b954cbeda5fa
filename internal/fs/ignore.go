package fs

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFileName is read from the watch root, if present.
const IgnoreFileName = ".cfgpushignore"

// rule is one parsed ignore line.
//
//	*.tmp        basename glob, any depth
//	incoming/*.gz  glob against the slash path relative to the root
//	staging/     directory rule, prunes the whole subtree
//	!keep.gz     negation, re-includes what an earlier rule excluded
type rule struct {
	pattern  string
	anchored bool // contains '/': match the relative path, not the basename
	dirOnly  bool
	negate   bool
}

// IgnoreMatcher decides which paths under the watch root are skipped.
// Later rules win over earlier ones, as in .gitignore.
type IgnoreMatcher struct {
	rules []rule
}

// NewIgnoreMatcher parses raw pattern lines. Blank lines, comments and
// malformed globs are dropped.
func NewIgnoreMatcher(lines []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var r rule
		if strings.HasPrefix(line, "!") {
			r.negate = true
			line = line[1:]
		}
		if strings.HasSuffix(line, "/") {
			r.dirOnly = true
			line = strings.TrimRight(line, "/")
		}
		line = strings.TrimPrefix(line, "/")
		if line == "" {
			continue
		}
		if _, err := filepath.Match(line, ""); errors.Is(err, filepath.ErrBadPattern) {
			continue
		}
		r.pattern = line
		r.anchored = strings.Contains(line, "/")
		m.rules = append(m.rules, r)
	}
	return m
}

// Match reports whether the file at rel, relative to the root, is ignored.
func (m *IgnoreMatcher) Match(rel string) bool {
	return m.match(rel, false)
}

// MatchDir reports whether the directory at rel is ignored, and with it
// everything below.
func (m *IgnoreMatcher) MatchDir(rel string) bool {
	return m.match(rel, true)
}

func (m *IgnoreMatcher) match(rel string, isDir bool) bool {
	if m == nil || rel == "" || rel == "." {
		return false
	}
	slashed := filepath.ToSlash(rel)
	base := filepath.Base(rel)

	ignored := false
	for _, r := range m.rules {
		if r.dirOnly && !isDir {
			continue
		}
		subject := base
		if r.anchored {
			subject = slashed
		}
		if ok, _ := filepath.Match(r.pattern, subject); ok {
			ignored = !r.negate
		}
	}
	return ignored
}

// Len returns the number of active rules.
func (m *IgnoreMatcher) Len() int {
	return len(m.rules)
}

// ParseIgnoreFile reads the raw lines of an ignore file.
// A missing file yields nil and no error.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return lines, nil
}

// LoadIgnore builds the matcher for root from the configured patterns
// followed by root's ignore file, so the file can override the config.
// The ignore file itself is always skipped.
func LoadIgnore(root string, configured []string) (*IgnoreMatcher, error) {
	fromFile, err := ParseIgnoreFile(filepath.Join(root, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	lines := append([]string{IgnoreFileName}, configured...)
	lines = append(lines, fromFile...)
	return NewIgnoreMatcher(lines), nil
}
