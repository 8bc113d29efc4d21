// Package mbox loads email records from an mbox archive.
package mbox

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	mboxlib "github.com/emersion/go-mbox"

	"github.com/dhcgn/commsreport/email"
	"github.com/dhcgn/commsreport/model"
)

type Options struct {
	Path  string
	Email email.Options
}

// Load reads every message of the archive at opts.Path. Messages are parsed
// exactly like standalone message files.
func Load(opts Options, logger *slog.Logger) ([]model.Message, error) {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return nil, fmt.Errorf("%w: mbox path is empty", model.ErrSourceUnavailable)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open mbox: %v", model.ErrSourceUnavailable, err)
	}
	defer file.Close()

	msgs, err := Read(file, opts.Email, logger)
	if err != nil {
		return nil, fmt.Errorf("mbox %s: %w", path, err)
	}
	return msgs, nil
}

// Read iterates the archive in r and returns the parsed messages sorted by
// canonical timestamp.
func Read(r io.Reader, opts email.Options, logger *slog.Logger) ([]model.Message, error) {
	reader := mboxlib.NewReader(r)
	opts = opts.WithDirs()

	var (
		msgs     []model.Message
		filtered int
	)
	for idx := 0; ; idx++ {
		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("message %d: %w", idx, err)
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			return nil, fmt.Errorf("message %d read: %w", idx, err)
		}

		msg, ok, err := email.ParseRaw(raw, opts)
		if err != nil {
			return nil, fmt.Errorf("message %d parse: %w", idx, err)
		}
		if !ok {
			filtered++
			continue
		}
		msgs = append(msgs, msg)
	}

	if logger != nil {
		logger.Debug("mbox loaded", "messages", len(msgs), "filtered", filtered)
	}
	return email.Finish(msgs, opts), nil
}

// CountMessages counts the messages in an mbox archive without parsing them.
func CountMessages(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: open mbox: %v", model.ErrSourceUnavailable, err)
	}
	defer file.Close()

	reader := mboxlib.NewReader(file)
	count := 0
	for {
		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return count, nil
			}
			return 0, err
		}
		if _, err := io.Copy(io.Discard, msgReader); err != nil {
			return 0, err
		}
		count++
	}
}
