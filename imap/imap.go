// Package imap loads email records straight from a mailbox folder on an IMAP
// server. The folder is opened read-only and messages are never flagged.
package imap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/dhcgn/commsreport/email"
	"github.com/dhcgn/commsreport/model"
)

var ErrMissingHost = errors.New("imap host is empty")

type Options struct {
	Host               string
	Port               int
	Username           string
	Password           string
	UseTLS             bool
	InsecureSkipVerify bool
	Folder             string
}

// Enabled reports whether an IMAP source was configured.
func (o Options) Enabled() bool {
	return o.Host != ""
}

// Fetcher downloads every message of a folder and parses it into records.
type Fetcher struct {
	opts   Options
	email  email.Options
	logger *slog.Logger
}

func NewFetcher(opts Options, emailOpts email.Options, logger *slog.Logger) (*Fetcher, error) {
	if opts.Host == "" {
		return nil, ErrMissingHost
	}
	if opts.Port <= 0 {
		return nil, fmt.Errorf("imap port must be positive")
	}
	return &Fetcher{opts: opts, email: emailOpts, logger: logger}, nil
}

// Load connects, fetches the folder and returns the parsed messages sorted by
// canonical timestamp.
func (f *Fetcher) Load(ctx context.Context) ([]model.Message, error) {
	client, cleanup, err := f.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrSourceUnavailable, err)
	}
	defer cleanup()

	selected, err := client.Select(f.folder(), &imapv2.SelectOptions{ReadOnly: true}).Wait()
	if err != nil {
		return nil, fmt.Errorf("%w: examine %s: %v", model.ErrSourceUnavailable, f.folder(), err)
	}
	if selected.NumMessages == 0 {
		if f.logger != nil {
			f.logger.Info("imap folder is empty", "folder", f.folder())
		}
		return nil, nil
	}

	var seqSet imapv2.SeqSet
	seqSet.AddRange(1, selected.NumMessages)
	section := &imapv2.FetchItemBodySection{Peek: true}
	buffers, err := client.Fetch(seqSet, &imapv2.FetchOptions{
		BodySection: []*imapv2.FetchItemBodySection{section},
	}).Collect()
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", f.folder(), err)
	}

	var (
		msgs     []model.Message
		filtered int
		opts     = f.email.WithDirs()
	)
	for _, buf := range buffers {
		raw := buf.FindBodySection(section)
		if raw == nil {
			return nil, fmt.Errorf("message %d: server returned no body", buf.SeqNum)
		}
		msg, ok, err := email.ParseRaw(raw, opts)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", buf.SeqNum, err)
		}
		if !ok {
			filtered++
			continue
		}
		msgs = append(msgs, msg)
	}

	if f.logger != nil {
		f.logger.Info("imap folder loaded", "folder", f.folder(), "messages", len(msgs), "filtered", filtered)
	}
	return email.Finish(msgs, f.email), nil
}

func (f *Fetcher) dial(ctx context.Context) (*imapclient.Client, func(), error) {
	address := net.JoinHostPort(f.opts.Host, strconv.Itoa(f.opts.Port))
	options := &imapclient.Options{}

	if f.opts.UseTLS {
		options.TLSConfig = &tls.Config{
			ServerName:         f.opts.Host,
			InsecureSkipVerify: f.opts.InsecureSkipVerify,
		}
	}

	var (
		client *imapclient.Client
		err    error
	)

	if f.opts.UseTLS {
		client, err = imapclient.DialTLS(address, options)
	} else {
		client, err = imapclient.DialInsecure(address, options)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("dial imap %s: %w", address, err)
	}

	if err := client.Login(f.opts.Username, f.opts.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("imap login failed: %w", err)
	}

	if f.logger != nil {
		f.logger.Debug("imap connection established", "address", address, "user", f.opts.Username, "folder", f.folder(), "tls", f.opts.UseTLS)
	}

	stopClose := context.AfterFunc(ctx, func() {
		_ = client.Close()
	})

	cleanup := func() {
		stopClose()
		if ctx.Err() == nil {
			if err := client.Logout().Wait(); err != nil && f.logger != nil {
				f.logger.Warn("imap logout failed", "err", err)
			}
		}
		if err := client.Close(); err != nil && f.logger != nil {
			f.logger.Debug("imap connection closed", "err", err)
		}
	}

	return client, cleanup, nil
}

func (f *Fetcher) folder() string {
	if f.opts.Folder == "" {
		return "INBOX"
	}
	return f.opts.Folder
}
