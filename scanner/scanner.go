// Package scanner flags message bodies that contain sensitive keywords and
// highlights every match for the report.
package scanner

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dhcgn/commsreport/model"
)

const (
	markOpen  = `<span style="background-color: #FFFF00">`
	markClose = `</span>`
)

var (
	urlRe  = regexp.MustCompile(`(^|[^<])(https?://[^\s<>]+)`)
	linkRe = regexp.MustCompile(`<https?://[^\s<>]+>`)
)

// Rule is one keyword pattern. The rule is skipped for a body that contains
// SuppressIfContains.
type Rule struct {
	Pattern            string `yaml:"pattern"`
	SuppressIfContains string `yaml:"suppress_if_contains,omitempty"`
}

// DefaultRules is the built-in keyword list, matched case-insensitively.
var DefaultRules = []Rule{
	{Pattern: "fuck"}, {Pattern: "shit"}, {Pattern: "cock"}, {Pattern: `\b(ass)\b`},
	{Pattern: "dick"}, {Pattern: "cunt"}, {Pattern: "dildo"}, {Pattern: "douche"},
	{Pattern: "fag"}, {Pattern: "fudgepacker"}, {Pattern: "gay"}, {Pattern: "nazi"},
	{Pattern: "pecker"}, {Pattern: "penis"}, {Pattern: "pussy"}, {Pattern: "poon"},
	{Pattern: "queer"}, {Pattern: "schlong"}, {Pattern: "retard"}, {Pattern: "twat"},
	{Pattern: "ugly"}, {Pattern: "vagina"}, {Pattern: "whore"}, {Pattern: "masturbat"},
	{Pattern: "bitch"}, {Pattern: "asshole"}, {Pattern: "prick"}, {Pattern: "creep"},
	{Pattern: "crap"},
	{Pattern: "fool", SuppressIfContains: "http"},
}

type compiled struct {
	Rule
	re *regexp.Regexp
}

// Scanner holds the compiled rule list.
type Scanner struct {
	rules []compiled
}

// Result summarises one scanned batch.
type Result struct {
	Total   int
	Flagged int
	Percent float64
	Hits    map[string]int
}

// New compiles rules in order.
func New(rules []Rule) (*Scanner, error) {
	s := &Scanner{}
	for _, r := range rules {
		pattern := strings.TrimSpace(r.Pattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("compile keyword %q: %w", pattern, err)
		}
		s.rules = append(s.rules, compiled{Rule: Rule{Pattern: pattern, SuppressIfContains: r.SuppressIfContains}, re: re})
	}
	return s, nil
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads a YAML keyword file of the form
//
//	rules:
//	  - pattern: fool
//	    suppress_if_contains: http
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: keyword file: %v", model.ErrSourceUnavailable, err)
	}
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse keyword file %s: %w", path, err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("keyword file %s has no rules", path)
	}
	return file.Rules, nil
}

// Patterns lists the rule patterns in scan order.
func (s *Scanner) Patterns() []string {
	out := make([]string, len(s.rules))
	for i, r := range s.rules {
		out[i] = r.Pattern
	}
	return out
}

// Scan cleans URLs, highlights and flags every message of the batch in place.
// Percent is 0 for an empty batch.
func (s *Scanner) Scan(msgs []model.Message) Result {
	res := Result{Total: len(msgs), Hits: make(map[string]int)}
	for i := range msgs {
		msgs[i].Body = CleanURLs(msgs[i].Body)
		highlighted, hits := s.Highlight(msgs[i].Body)
		msgs[i].Highlighted = EscapeEmphasis(highlighted)

		count := 0
		for pattern, n := range hits {
			res.Hits[pattern] += n
			count += n
		}
		msgs[i].Flagged = count > 0
		if msgs[i].Flagged {
			res.Flagged++
		}
	}
	if res.Total > 0 {
		res.Percent = float64(res.Flagged) / float64(res.Total) * 100
	}
	return res
}

// Highlight wraps every keyword match of body in a highlight marker and
// returns the match count per pattern. Text inside <http...> autolinks is
// left alone.
func (s *Scanner) Highlight(body string) (string, map[string]int) {
	hits := make(map[string]int)
	out := body
	for _, r := range s.rules {
		if r.SuppressIfContains != "" && strings.Contains(body, r.SuppressIfContains) {
			continue
		}
		n := 0
		out = outsideLinks(out, func(seg string) string {
			return r.re.ReplaceAllStringFunc(seg, func(m string) string {
				n++
				return markOpen + m + markClose
			})
		})
		if n > 0 {
			hits[r.Pattern] += n
		}
	}
	return out, hits
}

// CleanURLs wraps bare http(s) URLs in angle brackets.
func CleanURLs(body string) string {
	return urlRe.ReplaceAllString(body, "${1}<${2}>")
}

// EscapeEmphasis escapes asterisks so they are not read as emphasis markup.
// Autolinks keep their asterisks.
func EscapeEmphasis(s string) string {
	return outsideLinks(s, func(seg string) string {
		return strings.ReplaceAll(seg, "*", `\*`)
	})
}

// outsideLinks applies fn to every part of s that is not an autolink.
func outsideLinks(s string, fn func(string) string) string {
	locs := linkRe.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return fn(s)
	}
	var sb strings.Builder
	prev := 0
	for _, loc := range locs {
		sb.WriteString(fn(s[prev:loc[0]]))
		sb.WriteString(s[loc[0]:loc[1]])
		prev = loc[1]
	}
	sb.WriteString(fn(s[prev:]))
	return sb.String()
}
