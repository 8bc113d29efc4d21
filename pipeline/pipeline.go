// Package pipeline wires the loaders, correlator, scanner, aggregator,
// composer and renderer into ordered runner stages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhcgn/commsreport/backup"
	"github.com/dhcgn/commsreport/chart"
	"github.com/dhcgn/commsreport/config"
	"github.com/dhcgn/commsreport/email"
	"github.com/dhcgn/commsreport/filter"
	"github.com/dhcgn/commsreport/histogram"
	"github.com/dhcgn/commsreport/imap"
	"github.com/dhcgn/commsreport/mbox"
	"github.com/dhcgn/commsreport/media"
	"github.com/dhcgn/commsreport/model"
	"github.com/dhcgn/commsreport/render"
	"github.com/dhcgn/commsreport/report"
	"github.com/dhcgn/commsreport/runner"
	"github.com/dhcgn/commsreport/scanner"
	"github.com/dhcgn/commsreport/stats"
)

// KeywordFile holds the per-keyword hit counts of a run.
const KeywordFile = "keywords.csv"

// Result is what a finished run produced.
type Result struct {
	Report   string
	PDF      string
	Pages    int
	Charts   []string
	Keywords map[string]int
}

// Pipeline holds the state shared between stages.
type Pipeline struct {
	cfg       config.Config
	logger    *slog.Logger
	collector *stats.Collector
	scanner   *scanner.Scanner
	filter    *filter.Filter
	renderer  render.Renderer

	texts     []model.Message
	emails    []model.Message
	unmatched []string
	textScan  scanner.Result
	emailScan scanner.Result
	result    Result
}

// New prepares a pipeline for cfg. Keyword rules and email filters are
// compiled here so that bad patterns fail before any stage runs.
func New(cfg config.Config, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rules := scanner.DefaultRules
	if cfg.Keywords != "" {
		loaded, err := scanner.LoadRules(cfg.Keywords)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}
	sc, err := scanner.New(rules)
	if err != nil {
		return nil, fmt.Errorf("keyword rules: %w", err)
	}

	f, err := filter.New(cfg.FilterOptions())
	if err != nil {
		return nil, fmt.Errorf("email filter: %w", err)
	}

	p := &Pipeline{
		cfg:       cfg,
		logger:    logger,
		collector: stats.NewCollector(),
		scanner:   sc,
		filter:    f,
	}

	if cfg.Renderer != "" {
		cmd, err := render.NewCommand(cfg.Renderer)
		if err != nil {
			return nil, err
		}
		p.renderer = cmd
	}
	return p, nil
}

// WithRenderer replaces the converter. A nil renderer skips rendering.
func (p *Pipeline) WithRenderer(r render.Renderer) *Pipeline {
	p.renderer = r
	return p
}

func (p *Pipeline) Stats() stats.Summary {
	return p.collector.Snapshot()
}

func (p *Pipeline) Result() Result {
	return p.result
}

// Texts returns the loaded SMS and MMS records.
func (p *Pipeline) Texts() []model.Message {
	return p.texts
}

// Emails returns the loaded email records.
func (p *Pipeline) Emails() []model.Message {
	return p.emails
}

// Register adds every stage to r in pipeline order.
func (p *Pipeline) Register(r *runner.Runner) {
	r.AddStage("check", p.check)
	r.AddStage("texts", p.loadTexts)
	r.AddStage("emails", p.loadEmails)
	r.AddStage("media", p.correlate)
	r.AddStage("scan", p.scan)
	r.AddStage("charts", p.charts)
	r.AddStage("report", p.writeReport)
	r.AddStage("render", p.render)
}

// check verifies every local input before anything is written.
func (p *Pipeline) check(context.Context) error {
	inputs := []struct {
		flag string
		path string
		dir  bool
	}{
		{"--sms-backup-file", p.cfg.SMSBackup, false},
		{"--mms-backup-file", p.cfg.MMSBackup, false},
		{"--media-directory", p.cfg.MediaDir, true},
		{"--email-directory", p.cfg.EmailDir, true},
		{"--mbox", p.cfg.MboxPath, false},
	}
	for _, in := range inputs {
		if in.path == "" {
			continue
		}
		info, err := os.Stat(in.path)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", model.ErrSourceUnavailable, in.flag, err)
		}
		if info.IsDir() != in.dir {
			return fmt.Errorf("%w: %s: unexpected file type for %s", model.ErrSourceUnavailable, in.flag, in.path)
		}
	}
	return nil
}

func (p *Pipeline) loadTexts(context.Context) error {
	for _, src := range []struct {
		kind model.Kind
		path string
	}{
		{model.KindSMS, p.cfg.SMSBackup},
		{model.KindMMS, p.cfg.MMSBackup},
	} {
		msgs, err := backup.Load(backup.Options{
			Path:     src.path,
			Kind:     src.kind,
			Address:  p.cfg.Address,
			Location: p.cfg.Location,
			Since:    p.cfg.Since,
		}, p.logger)
		if err != nil {
			return err
		}
		p.logger.Info("text messages loaded", "kind", src.kind, "count", len(msgs))
		p.texts = append(p.texts, msgs...)
	}

	model.SortByTime(p.texts)
	p.collector.Record(stats.Event{Stage: stats.StageBackup, Type: stats.EventTypeLoaded, Count: len(p.texts)})
	return nil
}

func (p *Pipeline) emailOptions() email.Options {
	return email.Options{
		OutputDir: p.cfg.OutputDir,
		Location:  p.cfg.Location,
		Since:     p.cfg.Since,
		Filter:    p.filter,
		Dirs:      email.NewDirs(),
	}
}

func (p *Pipeline) loadEmails(ctx context.Context) error {
	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	opts := p.emailOptions()

	if p.cfg.EmailDir != "" {
		msgs, err := email.LoadDir(p.cfg.EmailDir, opts, p.logger)
		if err != nil {
			return err
		}
		p.logger.Info("emails loaded", "source", "directory", "count", len(msgs))
		p.emails = append(p.emails, msgs...)
	}

	if p.cfg.MboxPath != "" {
		if total, err := mbox.CountMessages(p.cfg.MboxPath); err == nil {
			p.logger.Debug("mbox archive counted", "path", p.cfg.MboxPath, "messages", total)
		}
		msgs, err := mbox.Load(mbox.Options{Path: p.cfg.MboxPath, Email: opts}, p.logger)
		if err != nil {
			return err
		}
		p.logger.Info("emails loaded", "source", "mbox", "count", len(msgs))
		p.emails = append(p.emails, msgs...)
	}

	imapOpts := imap.Options{
		Host:               p.cfg.IMAPHost,
		Port:               p.cfg.IMAPPort,
		Username:           p.cfg.IMAPUser,
		Password:           p.cfg.IMAPPass,
		UseTLS:             p.cfg.UseTLS,
		InsecureSkipVerify: p.cfg.InsecureSkipVerify,
		Folder:             p.cfg.IMAPFolder,
	}
	if imapOpts.Enabled() {
		fetcher, err := imap.NewFetcher(imapOpts, opts, p.logger)
		if err != nil {
			return err
		}
		msgs, err := fetcher.Load(ctx)
		if err != nil {
			return err
		}
		p.logger.Info("emails loaded", "source", "imap", "count", len(msgs))
		p.emails = append(p.emails, msgs...)
	}

	model.SortByTime(p.emails)

	attachments := 0
	for _, msg := range p.emails {
		attachments += len(msg.Attachments)
	}
	p.collector.Record(stats.Event{Stage: stats.StageEmail, Type: stats.EventTypeLoaded, Count: len(p.emails)})
	p.collector.Record(stats.Event{Stage: stats.StageEmail, Type: stats.EventTypeAttachmentSaved, Count: attachments})

	if p.filter != nil && p.cfg.FilterOptions().Active() {
		fs := p.filter.Stats()
		p.logger.Info("email filter applied", "seen", fs.Seen, "allowed", fs.Allowed, "hits", fs.Hits)
	}
	return nil
}

func (p *Pipeline) correlate(context.Context) error {
	res, err := media.Correlate(p.texts, media.Options{Dir: p.cfg.MediaDir, OutputDir: p.cfg.OutputDir}, p.logger)
	if err != nil {
		return err
	}
	p.unmatched = res.Unmatched

	p.collector.Record(stats.Event{Stage: stats.StageMedia, Type: stats.EventTypeMediaCopied, Count: res.Copied})
	p.collector.Record(stats.Event{Stage: stats.StageMedia, Type: stats.EventTypeMediaAttached, Count: res.Attachments})
	p.collector.Record(stats.Event{Stage: stats.StageMedia, Type: stats.EventTypeMediaUnmatched, Count: len(res.Unmatched)})
	p.collector.Record(stats.Event{Stage: stats.StageMedia, Type: stats.EventTypeNoMedia, Count: res.WithoutMedia})
	if res.WithoutMedia > 0 {
		p.logger.Warn("text messages without media", "count", res.WithoutMedia, "err", model.ErrSilentMismatch)
	}
	p.logger.Info("media correlated", "files", res.Files, "copied", res.Copied, "unmatched", len(res.Unmatched))
	return nil
}

func (p *Pipeline) scan(context.Context) error {
	p.textScan = p.scanner.Scan(p.texts)
	p.emailScan = p.scanner.Scan(p.emails)

	hits := make(map[string]int)
	for _, r := range []scanner.Result{p.textScan, p.emailScan} {
		for pattern, n := range r.Hits {
			hits[pattern] += n
		}
	}
	p.result.Keywords = hits

	p.collector.Record(stats.Event{Stage: stats.StageScan, Type: stats.EventTypeFlagged, Count: p.textScan.Flagged + p.emailScan.Flagged})
	p.logger.Info("messages scanned",
		"texts", p.textScan.Total, "textsFlagged", fmt.Sprintf("%.2f%%", p.textScan.Percent),
		"emails", p.emailScan.Total, "emailsFlagged", fmt.Sprintf("%.2f%%", p.emailScan.Percent))

	return stats.SaveCSV(filepath.Join(p.cfg.OutputDir, KeywordFile), hits)
}

func (p *Pipeline) charts(context.Context) error {
	opts := histogram.Options{Start: p.cfg.Start, End: p.cfg.End, Location: p.cfg.Location}
	files, err := chart.WriteAll(p.cfg.OutputDir,
		chart.Series{Name: "Text messages", Data: histogram.Build(p.texts, opts)},
		chart.Series{Name: "Emails", Data: histogram.Build(p.emails, opts)},
	)
	if err != nil {
		return fmt.Errorf("charts: %w", err)
	}
	p.result.Charts = files
	return nil
}

func (p *Pipeline) writeReport(context.Context) error {
	path := p.cfg.ReportPath()
	doc := report.Document{
		Name:           p.cfg.Name,
		Since:          p.cfg.Date,
		Texts:          p.texts,
		Emails:         p.emails,
		TextScan:       p.textScan,
		EmailScan:      p.emailScan,
		Charts:         p.result.Charts,
		UnmatchedMedia: p.unmatched,
	}
	if err := report.Write(path, doc); err != nil {
		return err
	}
	p.result.Report = path
	p.logger.Info("report written", "path", path)
	return nil
}

// render never fails the run. The Markdown report is already on disk.
func (p *Pipeline) render(ctx context.Context) error {
	if p.renderer == nil {
		p.logger.Debug("rendering disabled")
		return nil
	}

	dst := filepath.Join(p.cfg.OutputDir, render.DefaultOutput)
	res, err := p.renderer.Render(ctx, p.result.Report, dst)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		p.collector.Record(stats.Event{Stage: stats.StageRender, Type: stats.EventTypeError, Err: err})
		p.logger.Error("render failed", "command", strings.Join(res.Command, " "), "output", res.Output, "err", err)
		return nil
	}

	p.result.PDF = dst
	p.result.Pages = res.Pages
	if res.Pages > 0 {
		p.collector.Record(stats.Event{Stage: stats.StageRender, Type: stats.EventTypeRendered, Count: res.Pages})
	}
	p.logger.Info("report rendered", "path", dst, "pages", res.Pages)
	return nil
}
