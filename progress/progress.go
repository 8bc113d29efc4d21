package progress

import (
	"io"
	"time"

	"github.com/pterm/pterm"

	"github.com/dhcgn/commsreport/stats"
)

// Bar tracks pipeline stages on the terminal.
type Bar struct {
	pb      *pterm.ProgressbarPrinter
	total   int
	enabled bool
}

// New creates a progress bar over total stages if logLevel is "info".
func New(total int, logLevel string) *Bar {
	bar := &Bar{total: total, enabled: logLevel == "info"}
	if !bar.enabled {
		return bar
	}

	pb, err := pterm.DefaultProgressbar.
		WithTotal(total).
		WithTitle("Building report").
		Start()
	if err != nil {
		bar.enabled = false
		return bar
	}
	bar.pb = pb
	return bar
}

// Step advances the bar and names the stage that is about to run.
func (b *Bar) Step(name string) {
	if !b.enabled || b.pb == nil {
		return
	}
	b.pb.UpdateTitle("Stage: " + name)
	b.pb.Increment()
}

func (b *Bar) Stop() {
	if !b.enabled || b.pb == nil {
		return
	}
	if b.pb.Current < b.total {
		b.pb.Current = b.total
	}
	b.pb.Stop()
}

// Report holds what the final summary shows.
type Report struct {
	Summary  stats.Summary
	Duration time.Duration
	Output   string
	Keywords map[string]int
	TopN     int
}

// PrintSummary writes the run summary to w. Keyword hits are listed most
// frequent first.
func PrintSummary(w io.Writer, r Report) {
	s := r.Summary
	info := func(format string, a ...any) {
		pterm.Fprint(w, pterm.Info.Sprintf(format, a...))
	}

	pterm.Fprint(w, pterm.DefaultSection.Sprintln("Summary Statistics"))
	info("Duration: %v\n", r.Duration)
	info("Text messages: %d\n", s.Texts)
	info("Emails: %d\n", s.Emails)
	info("Media copied: %d (attached %d, unmatched %d)\n", s.MediaCopied, s.MediaAttached, s.MediaUnmatched)
	info("Text messages without media: %d\n", s.NoMedia)
	info("Email attachments saved: %d\n", s.Attachments)
	info("Flagged messages: %d\n", s.Flagged)
	if s.Pages > 0 {
		info("Rendered pages: %d\n", s.Pages)
	}
	if r.Output != "" {
		info("Output: %s\n", r.Output)
	}

	if len(r.Keywords) > 0 {
		pterm.Fprint(w, pterm.DefaultSection.WithLevel(2).Sprintln("Top keywords"))
		stats.PrettyPrintTop(w, r.Keywords, r.TopN)
	}

	if s.Errors > 0 {
		pterm.Fprint(w, pterm.Error.Sprintf("Errors: %d\n", s.Errors))
		if s.LastError != nil {
			pterm.Fprint(w, pterm.Error.Sprintf("Last error: %v\n", s.LastError))
		}
	}
}
