// Package backup loads SMS and MMS records from the CSV tables of a
// decrypted messaging-app backup.
package backup

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dhcgn/commsreport/model"
	"github.com/dhcgn/commsreport/timestamp"
)

// Columns is the fixed column layout of one backup table.
type Columns struct {
	Body   int
	Time   int
	Sender int
}

func (c Columns) width() int {
	return max(c.Body, c.Time, c.Sender) + 1
}

// Layouts maps each text kind to its table layout.
var Layouts = map[model.Kind]Columns{
	model.KindSMS: {Body: 15, Time: 6, Sender: 2},
	model.KindMMS: {Body: 10, Time: 2, Sender: 14},
}

type Options struct {
	Path     string
	Kind     model.Kind
	Address  string // optional numeric sender filter
	Location *time.Location
	Since    int64
}

// Load reads every row of the table at opts.Path and returns the matching
// messages sorted by canonical timestamp.
func Load(opts Options, logger *slog.Logger) ([]model.Message, error) {
	cols, ok := Layouts[opts.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: no table layout for %q", model.ErrInvalidKind, opts.Kind)
	}

	var (
		filter    int64
		hasFilter bool
	)
	if addr := strings.TrimSpace(opts.Address); addr != "" {
		n, err := strconv.ParseInt(addr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("sender filter %q is not numeric: %w", addr, err)
		}
		filter, hasFilter = n, true
	}

	file, err := os.Open(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s backup: %v", model.ErrSourceUnavailable, opts.Kind, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s backup header: %w", opts.Kind, err)
	}

	var (
		msgs    []model.Message
		skipped int
	)
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s backup row %d: %w", opts.Kind, line, err)
		}
		if len(row) < cols.width() {
			return nil, fmt.Errorf("%s backup row %d: got %d columns, want at least %d", opts.Kind, line, len(row), cols.width())
		}

		sender := row[cols.Sender]
		if hasFilter && !senderMatches(sender, filter) {
			skipped++
			continue
		}

		stamp, err := timestamp.FromMillis(row[cols.Time], opts.Location)
		if err != nil {
			return nil, fmt.Errorf("%s backup row %d: %w", opts.Kind, line, err)
		}

		msg, err := model.NewText(opts.Kind, row[cols.Body], stamp.Millis, stamp.Canonical, stamp.Display, sender)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}

	model.SortByTime(msgs)
	msgs = model.Since(msgs, opts.Since)

	if logger != nil {
		logger.Debug("backup loaded", "kind", opts.Kind, "path", opts.Path, "messages", len(msgs), "filtered", skipped)
	}
	return msgs, nil
}

func senderMatches(raw string, want int64) bool {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	return err == nil && n == want
}
