// Package filter decides which raw email messages enter the report, based on
// regex allow-lists or block-lists applied to headers and bodies.
package filter

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrModeConflict = errors.New("include and exclude filters are mutually exclusive")

// Options captures the filtering configuration.
type Options struct {
	IncludeHeader []string
	IncludeBody   []string
	ExcludeHeader []string
	ExcludeBody   []string
}

// Active reports whether any pattern is configured.
func (o Options) Active() bool {
	return len(o.IncludeHeader)+len(o.IncludeBody)+len(o.ExcludeHeader)+len(o.ExcludeBody) > 0
}

type target int

const (
	targetHeader target = iota
	targetBody
)

type rule struct {
	pattern string
	target  target
	re      *regexp.Regexp
}

// Filter holds compiled rules and counts how often each one matched.
type Filter struct {
	include bool
	rules   []rule
	hits    map[string]int
	seen    int
	allowed int
}

// Stats is a snapshot of the filter activity.
type Stats struct {
	Patterns []string
	Hits     map[string]int
	Seen     int
	Allowed  int
}

// New creates a Filter from the provided options.
func New(opts Options) (*Filter, error) {
	includeActive := len(opts.IncludeHeader) > 0 || len(opts.IncludeBody) > 0
	excludeActive := len(opts.ExcludeHeader) > 0 || len(opts.ExcludeBody) > 0
	if includeActive && excludeActive {
		return nil, ErrModeConflict
	}

	f := &Filter{include: includeActive, hits: make(map[string]int)}
	groups := []struct {
		name     string
		target   target
		patterns []string
	}{
		{"include-header", targetHeader, opts.IncludeHeader},
		{"include-body", targetBody, opts.IncludeBody},
		{"exclude-header", targetHeader, opts.ExcludeHeader},
		{"exclude-body", targetBody, opts.ExcludeBody},
	}
	for _, g := range groups {
		for _, pattern := range g.patterns {
			pattern = strings.TrimSpace(pattern)
			if pattern == "" {
				continue
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("compile %s pattern %q: %w", g.name, pattern, err)
			}
			f.rules = append(f.rules, rule{pattern: pattern, target: g.target, re: re})
		}
	}
	return f, nil
}

// Allows reports whether the raw message passes. With no rules every message
// passes. A nil Filter allows everything.
func (f *Filter) Allows(raw []byte) bool {
	if f == nil {
		return true
	}
	f.seen++
	if len(f.rules) == 0 {
		f.allowed++
		return true
	}

	header, body := SplitRawMessage(raw)
	matched := false
	for _, r := range f.rules {
		text := header
		if r.target == targetBody {
			text = body
		}
		if r.re.Match(text) {
			f.hits[r.pattern]++
			matched = true
		}
	}

	ok := matched == f.include
	if ok {
		f.allowed++
	}
	return ok
}

// Stats returns the per-pattern hit counts collected so far.
func (f *Filter) Stats() Stats {
	if f == nil {
		return Stats{Hits: map[string]int{}}
	}
	s := Stats{Hits: make(map[string]int, len(f.hits)), Seen: f.seen, Allowed: f.allowed}
	for _, r := range f.rules {
		s.Patterns = append(s.Patterns, r.pattern)
	}
	for k, v := range f.hits {
		s.Hits[k] = v
	}
	return s
}

// SplitRawMessage splits a raw email message into header and body parts.
func SplitRawMessage(raw []byte) (header, body []byte) {
	if len(raw) == 0 {
		return nil, nil
	}

	if idx := bytes.Index(raw, []byte("\r\n\r\n")); idx >= 0 {
		return raw[:idx], raw[idx+4:]
	}
	if idx := bytes.Index(raw, []byte("\n\n")); idx >= 0 {
		return raw[:idx], raw[idx+2:]
	}

	return raw, nil
}
