package progress

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"

	"github.com/dhcgn/commsreport/stats"
)

func TestPrintSummary(t *testing.T) {
	pterm.DisableStyling()
	defer pterm.EnableStyling()

	var sb strings.Builder
	PrintSummary(&sb, Report{
		Summary: stats.Summary{
			Texts:     5,
			Emails:    2,
			Errors:    1,
			LastError: errors.New("converter missing"),
		},
		Duration: time.Second,
		Output:   "/tmp/out",
		Keywords: map[string]int{"crap": 2, "fool": 1},
		TopN:     1,
	})

	out := sb.String()
	assert.Contains(t, out, "Text messages: 5")
	assert.Contains(t, out, "Emails: 2")
	assert.Contains(t, out, "Output: /tmp/out")
	assert.Contains(t, out, "1. crap (2)")
	assert.NotContains(t, out, "fool")
	assert.Contains(t, out, "converter missing")
}

func TestBarDisabled(t *testing.T) {
	b := New(3, "debug")
	b.Step("load")
	b.Stop()
	assert.Nil(t, b.pb)
}
