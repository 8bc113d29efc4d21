package scanner

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcgn/commsreport/model"
)

func newDefault(t *testing.T) *Scanner {
	t.Helper()
	s, err := New(DefaultRules)
	require.NoError(t, err)
	return s
}

func batch(bodies ...string) []model.Message {
	msgs := make([]model.Message, len(bodies))
	for i, body := range bodies {
		msgs[i] = model.Message{Kind: model.KindSMS, Body: body}
	}
	return msgs
}

func TestScanEmptyBatch(t *testing.T) {
	res := newDefault(t).Scan(nil)
	assert.Equal(t, 0.0, res.Percent)
	assert.Equal(t, 0, res.Total)
}

func TestScanAllFlagged(t *testing.T) {
	msgs := batch("oh shit", "SHIT happens", "no shit, sherlock")
	res := newDefault(t).Scan(msgs)
	assert.Equal(t, 100.0, res.Percent)
	assert.Equal(t, 3, res.Hits["shit"])
	for _, msg := range msgs {
		assert.True(t, msg.Flagged)
	}
}

func TestScanPercentInRange(t *testing.T) {
	res := newDefault(t).Scan(batch("crap", "hello", "hi", "creep"))
	assert.Equal(t, 50.0, res.Percent)
	assert.Equal(t, 2, res.Flagged)
}

func TestFoolSuppressedByHTTP(t *testing.T) {
	s := newDefault(t)

	msgs := batch("you fool, see http://example.com", "you fool")
	s.Scan(msgs)

	assert.False(t, msgs[0].Flagged)
	assert.Equal(t, "you fool, see <http://example.com>", msgs[0].Highlighted)
	assert.True(t, msgs[1].Flagged)
	assert.Equal(t, "you "+markOpen+"fool"+markClose, msgs[1].Highlighted)
}

func TestSuppressionOnlyAppliesToItsRule(t *testing.T) {
	msgs := batch("crap http://example.com")
	newDefault(t).Scan(msgs)
	assert.True(t, msgs[0].Flagged)
}

func TestHighlightCaseInsensitiveAndWordBoundary(t *testing.T) {
	s := newDefault(t)

	got, hits := s.Highlight("Ass! but not class or passion")
	assert.Equal(t, markOpen+"Ass"+markClose+"! but not class or passion", got)
	assert.Equal(t, map[string]int{`\b(ass)\b`: 1}, hits)
}

func TestEscapeAfterHighlight(t *testing.T) {
	msgs := batch("*bold* crap")
	newDefault(t).Scan(msgs)
	assert.Equal(t, `\*bold\* `+markOpen+"crap"+markClose, msgs[0].Highlighted)
}

func TestKeywordInsideLinkIsNotHighlighted(t *testing.T) {
	msgs := batch("crap, look at http://crapshoot.example/a*b")
	res := newDefault(t).Scan(msgs)

	assert.Equal(t, markOpen+"crap"+markClose+", look at <http://crapshoot.example/a*b>", msgs[0].Highlighted)
	assert.Equal(t, map[string]int{"crap": 1}, res.Hits)
}

func TestLinkOnlyBodyIsNotFlagged(t *testing.T) {
	msgs := batch("https://example.com/ugly-sweaters")
	newDefault(t).Scan(msgs)

	assert.False(t, msgs[0].Flagged)
	assert.Equal(t, "<https://example.com/ugly-sweaters>", msgs[0].Highlighted)
}

func TestMarkersContainNoKeyword(t *testing.T) {
	s := newDefault(t)
	_, hits := s.Highlight(markOpen + markClose + `\*`)
	assert.Empty(t, hits)
}

func TestCleanURLs(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"see http://example.com", "see <http://example.com>"},
		{"https://a.example/x?y=1 and http://b.example", "<https://a.example/x?y=1> and <http://b.example>"},
		{"already <http://example.com>", "already <http://example.com>"},
		{"no links here", "no links here"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanURLs(tt.in))
	}
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.yaml")
	content := strings.Join([]string{
		"rules:",
		"  - pattern: banana",
		"  - pattern: fool",
		"    suppress_if_contains: http",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, Rule{Pattern: "fool", SuppressIfContains: "http"}, rules[1])

	s, err := New(rules)
	require.NoError(t, err)
	assert.Equal(t, []string{"banana", "fool"}, s.Patterns())
}

func TestNewRejectsBadPattern(t *testing.T) {
	_, err := New([]Rule{{Pattern: "("}})
	assert.Error(t, err)
}
