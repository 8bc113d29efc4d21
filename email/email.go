// Package email turns RFC 5322 messages into normalized message records and
// extracts their attachments into the report tree.
package email

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/dhcgn/commsreport/model"
	"github.com/dhcgn/commsreport/timestamp"
)

// Extension is the suffix of message files picked up by LoadDir.
const Extension = ".eml"

const htmlIndexName = "index.html"

// Acceptor decides whether a raw message is loaded at all.
type Acceptor interface {
	Allows(raw []byte) bool
}

// ErrBeforeSince reports a message older than Options.Since. Nothing of it is
// written to the output tree.
var ErrBeforeSince = errors.New("message predates cutoff")

type Options struct {
	OutputDir string
	Location  *time.Location
	Since     int64
	Filter    Acceptor
	// Dirs hands out attachment directories. Sources sharing one output tree
	// should share one Dirs.
	Dirs *Dirs
}

// Dirs assigns each message its own attachment directory. The first message
// of a second gets "<ts>", later ones "<ts>-2", "<ts>-3" and so on.
type Dirs struct {
	used map[int64]int
}

func NewDirs() *Dirs {
	return &Dirs{used: make(map[int64]int)}
}

func (d *Dirs) claim(canonical int64) string {
	name := strconv.FormatInt(canonical, 10)
	if d == nil {
		return name
	}
	d.used[canonical]++
	if n := d.used[canonical]; n > 1 {
		name += "-" + strconv.Itoa(n)
	}
	return name
}

// WithDirs returns o with a fresh Dirs unless it already has one.
func (o Options) WithDirs() Options {
	if o.Dirs == nil {
		o.Dirs = NewDirs()
	}
	return o
}

// LoadDir parses every message file in dir. A single malformed Date header
// aborts the whole load.
func LoadDir(dir string, opts Options, logger *slog.Logger) ([]model.Message, error) {
	opts = opts.WithDirs()
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: email directory: %v", model.ErrSourceUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: email directory %s is not a directory", model.ErrSourceUnavailable, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read email directory: %v", model.ErrSourceUnavailable, err)
	}

	var msgs []model.Message
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != Extension {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", model.ErrSourceUnavailable, entry.Name(), err)
		}
		msg, ok, err := ParseRaw(raw, opts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		if !ok {
			if logger != nil {
				logger.Debug("email filtered", "file", entry.Name())
			}
			continue
		}
		if logger != nil {
			logger.Debug("email parsed", "file", entry.Name(), "timestamp", msg.Timestamp, "attachments", len(msg.Attachments))
		}
		msgs = append(msgs, msg)
	}

	return Finish(msgs, opts), nil
}

// Finish applies the loader postconditions: sorted by canonical timestamp and
// nothing older than opts.Since.
func Finish(msgs []model.Message, opts Options) []model.Message {
	model.SortByTime(msgs)
	return model.Since(msgs, opts.Since)
}

// ParseRaw applies opts.Filter and the Since cutoff and parses the message
// when it passes.
func ParseRaw(raw []byte, opts Options) (model.Message, bool, error) {
	if opts.Filter != nil && !opts.Filter.Allows(raw) {
		return model.Message{}, false, nil
	}
	msg, err := Parse(bytes.NewReader(raw), opts)
	if errors.Is(err, ErrBeforeSince) {
		return model.Message{}, false, nil
	}
	if err != nil {
		return model.Message{}, false, err
	}
	return msg, true, nil
}

// Parse reads one message. Attachments and HTML parts are written below
// opts.OutputDir in a directory named after the canonical timestamp. A message
// older than opts.Since yields ErrBeforeSince before anything is written.
func Parse(r io.Reader, opts Options) (model.Message, error) {
	entity, err := message.Read(r)
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return model.Message{}, fmt.Errorf("read message: %w", err)
	}

	stamp, err := timestamp.FromHeader(entity.Header.Get("Date"), opts.Location)
	if err != nil {
		return model.Message{}, err
	}

	if opts.Since != 0 && stamp.Canonical < opts.Since {
		return model.Message{}, ErrBeforeSince
	}

	x := &extraction{
		canonical: stamp.Canonical,
		dirs:      opts.Dirs,
		out:       opts.OutputDir,
	}

	mediaType, _, _ := entity.Header.ContentType()
	if strings.HasPrefix(mediaType, "multipart/") {
		err = entity.Walk(func(_ []int, part *message.Entity, err error) error {
			if err != nil {
				if message.IsUnknownCharset(err) || message.IsUnknownEncoding(err) {
					return nil
				}
				return err
			}
			return x.part(part)
		})
	} else {
		err = x.single(entity)
	}
	if err != nil {
		return model.Message{}, fmt.Errorf("extract parts: %w", err)
	}

	body := x.body
	if !x.hasPlain && x.html != "" {
		body = HTMLText(x.html)
	}

	msg := model.NewEmail(body, stamp.Canonical, stamp.Display, model.Email{
		From:    optionalHeader(entity.Header, "From"),
		To:      optionalHeader(entity.Header, "To"),
		ReplyTo: optionalHeader(entity.Header, "Reply-To"),
		Subject: optionalHeader(entity.Header, "Subject"),
	})
	msg.Attachments = x.attachments
	return msg, nil
}

type extraction struct {
	out       string
	canonical int64
	dirs      *Dirs
	dir       string

	body        string
	hasPlain    bool
	html        string
	attachments []string
}

func (x *extraction) single(entity *message.Entity) error {
	mediaType, _, _ := entity.Header.ContentType()
	data, err := io.ReadAll(entity.Body)
	if err != nil {
		return err
	}
	switch mediaType {
	case "text/plain":
		x.body, x.hasPlain = string(data), true
	case "text/html":
		return x.saveHTML(data)
	}
	return nil
}

func (x *extraction) part(part *message.Entity) error {
	mediaType, _, _ := part.Header.ContentType()
	if strings.HasPrefix(mediaType, "multipart/") {
		return nil
	}

	disposition, _, _ := part.Header.ContentDisposition()
	attachment := strings.EqualFold(disposition, "attachment")

	data, err := io.ReadAll(part.Body)
	if err != nil {
		return err
	}

	switch {
	case mediaType == "text/plain" && !attachment:
		x.body, x.hasPlain = string(data), true
	case attachment:
		header := mail.AttachmentHeader{Header: part.Header}
		name, _ := header.Filename()
		if name = sanitizeName(name); name != "" {
			if err := x.save(name, data); err != nil {
				return err
			}
		}
	}

	if mediaType == "text/html" {
		return x.saveHTML(data)
	}
	return nil
}

func (x *extraction) saveHTML(data []byte) error {
	x.html = string(data)
	return x.save(htmlIndexName, data)
}

func (x *extraction) save(name string, data []byte) error {
	if x.out == "" {
		return errors.New("output directory is empty")
	}
	if x.dir == "" {
		x.dir = x.dirs.claim(x.canonical)
	}
	dir := filepath.Join(x.out, x.dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create attachment directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("write attachment %s: %w", name, err)
	}
	ref := filepath.ToSlash(filepath.Join(x.dir, name))
	if !slices.Contains(x.attachments, ref) {
		x.attachments = append(x.attachments, ref)
	}
	return nil
}

func optionalHeader(h message.Header, key string) *string {
	if !h.Has(key) {
		return nil
	}
	value, err := h.Text(key)
	if err != nil {
		value = h.Get(key)
	}
	value = strings.TrimSpace(value)
	return &value
}

func sanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	switch name {
	case ".", "..", "/", htmlIndexName:
		return ""
	}
	return name
}
