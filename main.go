package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"github.com/dhcgn/commsreport/config"
	"github.com/dhcgn/commsreport/pipeline"
	"github.com/dhcgn/commsreport/progress"
	"github.com/dhcgn/commsreport/runner"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "commsreport",
		Short: "Build a Markdown report from messaging backups, emails and media files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cmd)
			if err != nil {
				return err
			}

			logger, cleanup, err := setupLogger(cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = cleanup()
			}()

			slog.SetDefault(logger)
			logger.Info("starting commsreport", "output", cfg.OutputDir, "timezone", cfg.Location.String(), "since", cfg.Date)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return run(ctx, cfg, logger)
		},
		SilenceUsage: true,
	}

	if err := config.RegisterFlags(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "failed to register CLI flags: %v\n", err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	p, err := pipeline.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("pipeline.New: %w", err)
	}

	r := runner.New(logger)
	p.Register(r)

	bar := progress.New(r.Len(), cfg.LogLevel)
	r.OnStage(bar.Step)

	started := time.Now()
	err = r.Start(ctx)
	bar.Stop()

	summary := p.Stats()
	logger.Info("run summary", summary.LogAttrs()...)
	if cfg.LogLevel == "info" {
		progress.PrintSummary(os.Stdout, progress.Report{
			Summary:  summary,
			Duration: time.Since(started),
			Output:   p.Result().Report,
			Keywords: p.Result().Keywords,
			TopN:     cfg.TopN,
		})
	}
	return err
}

func setupLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}

	opts := &slog.HandlerOptions{Level: level}
	cleanup := func() error { return nil }

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, cleanup, err
		}

		logFilePath := filepath.Join(cfg.LogDir, fmt.Sprintf("commsreport-%s.log", time.Now().Format("20060102T150405")))
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, cleanup, err
		}

		handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, file), opts)
		cleanup = func() error {
			return file.Close()
		}
		return slog.New(handler), cleanup, nil
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler), cleanup, nil
}
