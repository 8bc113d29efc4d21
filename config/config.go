package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/cobra"

	"github.com/dhcgn/commsreport/filter"
	"github.com/dhcgn/commsreport/histogram"
	"github.com/dhcgn/commsreport/render"
	"github.com/dhcgn/commsreport/report"
)

const dateLayout = "2006-01-02"

// Config captures all command-line options required to build a report.
type Config struct {
	SMSBackup  string
	MMSBackup  string
	Address    string
	EmailDir   string
	MediaDir   string
	Name       string
	OutputDir  string
	OutputFile string
	Date       string
	MonthStart string
	MonthEnd   string
	Timezone   string
	Keywords   string
	TopN       int
	Renderer   string
	LogLevel   string
	LogDir     string

	MboxPath           string
	IMAPHost           string
	IMAPPort           int
	IMAPUser           string
	IMAPPass           string
	UseTLS             bool
	InsecureSkipVerify bool
	IMAPFolder         string

	IncludeHeader []string
	IncludeBody   []string
	ExcludeHeader []string
	ExcludeBody   []string

	// Derived from the flags above by LoadConfig.
	Location *time.Location
	Since    int64
	Start    histogram.Month
	End      histogram.Month
}

// ReportPath is the Markdown output path. A relative output file lives in the
// output directory.
func (c Config) ReportPath() string {
	if filepath.IsAbs(c.OutputFile) {
		return c.OutputFile
	}
	return filepath.Join(c.OutputDir, c.OutputFile)
}

// RegisterFlags attaches all CLI flags to the provided command.
func RegisterFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	flags.StringP("sms-backup-file", "S", "", "SMS table exported from the messaging backup (CSV)")
	flags.StringP("mms-backup-file", "M", "", "MMS table exported from the messaging backup (CSV)")
	flags.StringP("address", "A", "", "Only keep text messages from this numeric sender id")
	flags.StringP("email-directory", "E", "", "Directory of .eml files")
	flags.StringP("media-directory", "I", "", "Directory of media files named <millis>.<ext>")
	flags.StringP("name", "N", "", "Name shown in the report title")
	flags.StringP("output-directory", "O", ".", "Directory for the report, charts, media and attachments")
	flags.StringP("date", "D", "", "Drop messages before this date (YYYY-MM-DD)")
	flags.StringP("output-file", "F", report.DefaultFile, "Markdown report file name")
	flags.String("month-start", histogram.DefaultStart.String(), "First month of the monthly histogram (YYYY-MM)")
	flags.String("month-end", histogram.DefaultEnd.String(), "Month after the last month of the monthly histogram (YYYY-MM)")
	flags.String("timezone", "Local", "IANA time zone used for display and bucketing")
	flags.String("keywords", "", "YAML file replacing the built-in keyword rules")
	flags.Int("top", 10, "Number of keywords shown in the summary")
	flags.String("renderer", render.DefaultCommand, "Converter invoked as <cmd> <report> -o <pdf>; empty disables rendering")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-dir", "", "Also write logs to a timestamped file in this directory")

	flags.String("mbox", "", "Read emails from this .mbox archive")
	flags.String("imap-host", "", "Read emails from this IMAP server")
	flags.Int("imap-port", 993, "IMAP server port")
	flags.String("imap-user", "", "IMAP username")
	flags.String("imap-pass", "", "IMAP password (falls back to IMAP_PASS env var)")
	flags.Bool("use-tls", true, "Use TLS for the IMAP connection")
	flags.Bool("insecure-skip-verify", false, "Skip TLS certificate verification (not recommended)")
	flags.String("imap-folder", "INBOX", "IMAP folder to read")

	flags.StringArray("include-header", nil, "Regex allow-list applied to email headers (mutually exclusive with exclude flags)")
	flags.StringArray("include-body", nil, "Regex allow-list applied to email bodies (mutually exclusive with exclude flags)")
	flags.StringArray("exclude-header", nil, "Regex block-list applied to email headers (mutually exclusive with include flags)")
	flags.StringArray("exclude-body", nil, "Regex block-list applied to email bodies (mutually exclusive with include flags)")

	for _, name := range []string{"sms-backup-file", "mms-backup-file", "media-directory"} {
		if err := cmd.MarkFlagRequired(name); err != nil {
			return err
		}
	}
	return nil
}

// LoadConfig converts the parsed Cobra flags into a Config struct with validation.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	flags := cmd.Flags()
	var cfg Config
	var err error

	strs := []struct {
		name string
		dst  *string
	}{
		{"sms-backup-file", &cfg.SMSBackup},
		{"mms-backup-file", &cfg.MMSBackup},
		{"address", &cfg.Address},
		{"email-directory", &cfg.EmailDir},
		{"media-directory", &cfg.MediaDir},
		{"name", &cfg.Name},
		{"output-directory", &cfg.OutputDir},
		{"date", &cfg.Date},
		{"output-file", &cfg.OutputFile},
		{"month-start", &cfg.MonthStart},
		{"month-end", &cfg.MonthEnd},
		{"timezone", &cfg.Timezone},
		{"keywords", &cfg.Keywords},
		{"renderer", &cfg.Renderer},
		{"log-level", &cfg.LogLevel},
		{"log-dir", &cfg.LogDir},
		{"mbox", &cfg.MboxPath},
		{"imap-host", &cfg.IMAPHost},
		{"imap-user", &cfg.IMAPUser},
		{"imap-pass", &cfg.IMAPPass},
		{"imap-folder", &cfg.IMAPFolder},
	}
	for _, s := range strs {
		if *s.dst, err = flags.GetString(s.name); err != nil {
			return Config{}, err
		}
	}

	arrays := []struct {
		name string
		dst  *[]string
	}{
		{"include-header", &cfg.IncludeHeader},
		{"include-body", &cfg.IncludeBody},
		{"exclude-header", &cfg.ExcludeHeader},
		{"exclude-body", &cfg.ExcludeBody},
	}
	for _, a := range arrays {
		if *a.dst, err = flags.GetStringArray(a.name); err != nil {
			return Config{}, err
		}
	}

	if cfg.TopN, err = flags.GetInt("top"); err != nil {
		return Config{}, err
	}
	if cfg.IMAPPort, err = flags.GetInt("imap-port"); err != nil {
		return Config{}, err
	}
	if cfg.UseTLS, err = flags.GetBool("use-tls"); err != nil {
		return Config{}, err
	}
	if cfg.InsecureSkipVerify, err = flags.GetBool("insecure-skip-verify"); err != nil {
		return Config{}, err
	}

	return Finalize(cfg)
}

// Finalize normalizes cfg, validates it and fills the derived fields.
func Finalize(cfg Config) (Config, error) {
	if cfg.IMAPPass == "" {
		cfg.IMAPPass = os.Getenv("IMAP_PASS")
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if cfg.OutputFile == "" {
		cfg.OutputFile = report.DefaultFile
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}
	if cfg.MonthStart == "" {
		cfg.MonthStart = histogram.DefaultStart.String()
	}
	if cfg.MonthEnd == "" {
		cfg.MonthEnd = histogram.DefaultEnd.String()
	}
	cfg.OutputDir = filepath.Clean(cfg.OutputDir)
	cfg.Renderer = strings.TrimSpace(cfg.Renderer)

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("invalid --timezone: %w", err)
	}
	cfg.Location = loc

	if cfg.Date != "" {
		day, err := time.ParseInLocation(dateLayout, cfg.Date, loc)
		if err != nil {
			return Config{}, fmt.Errorf("invalid --date: %w", err)
		}
		cfg.Since = day.Unix()
	}

	if cfg.Start, err = histogram.ParseMonth(cfg.MonthStart); err != nil {
		return Config{}, fmt.Errorf("invalid --month-start: %w", err)
	}
	if cfg.End, err = histogram.ParseMonth(cfg.MonthEnd); err != nil {
		return Config{}, fmt.Errorf("invalid --month-end: %w", err)
	}
	if len(histogram.Range(cfg.Start, cfg.End)) == 0 {
		return Config{}, fmt.Errorf("--month-end must be after --month-start")
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	noEmailSource := cfg.MboxPath == "" && cfg.IMAPHost == ""
	imapActive := cfg.IMAPHost != ""

	err := validation.ValidateStruct(&cfg,
		validation.Field(&cfg.SMSBackup, validation.Required.Error("--sms-backup-file is required")),
		validation.Field(&cfg.MMSBackup, validation.Required.Error("--mms-backup-file is required")),
		validation.Field(&cfg.MediaDir, validation.Required.Error("--media-directory is required")),
		validation.Field(&cfg.EmailDir, validation.When(noEmailSource,
			validation.Required.Error("--email-directory is required unless --mbox or --imap-host is set"))),
		validation.Field(&cfg.Address, is.Int.Error("--address must be numeric")),
		validation.Field(&cfg.Date, validation.Date(dateLayout).Error("--date must be YYYY-MM-DD")),
		validation.Field(&cfg.MonthStart, validation.Date(histogram.MonthLayout).Error("--month-start must be YYYY-MM")),
		validation.Field(&cfg.MonthEnd, validation.Date(histogram.MonthLayout).Error("--month-end must be YYYY-MM")),
		validation.Field(&cfg.TopN, validation.Min(0)),
		validation.Field(&cfg.LogLevel, validation.In("debug", "info", "warn", "error").Error("invalid --log-level")),
		validation.Field(&cfg.IMAPPort, validation.When(imapActive,
			validation.Min(1).Error("--imap-port must be between 1 and 65535"),
			validation.Max(65535).Error("--imap-port must be between 1 and 65535"))),
		validation.Field(&cfg.IMAPUser, validation.When(imapActive, validation.Required.Error("--imap-user is required with --imap-host"))),
		validation.Field(&cfg.IMAPPass, validation.When(imapActive,
			validation.Required.Error("IMAP password must be provided via --imap-pass or IMAP_PASS env var"))),
	)
	if err != nil {
		return err
	}

	includeActive := len(cfg.IncludeHeader) > 0 || len(cfg.IncludeBody) > 0
	excludeActive := len(cfg.ExcludeHeader) > 0 || len(cfg.ExcludeBody) > 0
	if includeActive && excludeActive {
		return filter.ErrModeConflict
	}
	return nil
}

// FilterOptions returns the email filter configuration.
func (c Config) FilterOptions() filter.Options {
	return filter.Options{
		IncludeHeader: c.IncludeHeader,
		IncludeBody:   c.IncludeBody,
		ExcludeHeader: c.ExcludeHeader,
		ExcludeBody:   c.ExcludeBody,
	}
}
