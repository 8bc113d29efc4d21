package stats

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
)

type Stage string

const (
	StageBackup Stage = "backup"
	StageEmail  Stage = "email"
	StageMedia  Stage = "media"
	StageScan   Stage = "scan"
	StageRender Stage = "render"
)

type EventType string

const (
	EventTypeLoaded          EventType = "loaded"
	EventTypeMediaCopied     EventType = "media_copied"
	EventTypeMediaAttached   EventType = "media_attached"
	EventTypeMediaUnmatched  EventType = "media_unmatched"
	EventTypeNoMedia         EventType = "no_media"
	EventTypeAttachmentSaved EventType = "attachment_saved"
	EventTypeFlagged         EventType = "flagged"
	EventTypeRendered        EventType = "rendered"
	EventTypeError           EventType = "error"
)

// Event reports Count occurrences of Type. Error events always count once.
type Event struct {
	Stage Stage
	Type  EventType
	Count int
	Err   error
}

type Summary struct {
	Texts          int
	Emails         int
	MediaCopied    int
	MediaAttached  int
	MediaUnmatched int
	NoMedia        int
	Attachments    int
	Flagged        int
	Pages          int
	Errors         int
	LastError      error
}

func (s Summary) LogAttrs() []any {
	attrs := []any{
		"texts", s.Texts,
		"emails", s.Emails,
		"mediaCopied", s.MediaCopied,
		"mediaAttached", s.MediaAttached,
		"mediaUnmatched", s.MediaUnmatched,
		"messagesWithoutMedia", s.NoMedia,
		"attachments", s.Attachments,
		"flagged", s.Flagged,
		"pages", s.Pages,
		"errors", s.Errors,
	}
	if s.LastError != nil {
		attrs = append(attrs, "lastError", s.LastError.Error())
	}
	return attrs
}

// Collector tallies events. The pipeline is single-threaded so no locking
// is done.
type Collector struct {
	summary Summary
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Snapshot() Summary {
	return c.summary
}

func (c *Collector) Record(evt Event) {
	n := evt.Count
	switch evt.Type {
	case EventTypeLoaded:
		if evt.Stage == StageEmail {
			c.summary.Emails += n
		} else {
			c.summary.Texts += n
		}
	case EventTypeMediaCopied:
		c.summary.MediaCopied += n
	case EventTypeMediaAttached:
		c.summary.MediaAttached += n
	case EventTypeMediaUnmatched:
		c.summary.MediaUnmatched += n
	case EventTypeNoMedia:
		c.summary.NoMedia += n
	case EventTypeAttachmentSaved:
		c.summary.Attachments += n
	case EventTypeFlagged:
		c.summary.Flagged += n
	case EventTypeRendered:
		c.summary.Pages += n
	case EventTypeError:
		c.summary.Errors++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	}
}

// Pair is one counted key.
type Pair struct {
	Key   string
	Value int
}

// Top returns up to limit entries of m ordered by count descending, then key.
// A limit below 1 returns every entry.
func Top(m map[string]int, limit int) []Pair {
	pairs := make([]Pair, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, Pair{k, v})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Value != pairs[j].Value {
			return pairs[i].Value > pairs[j].Value
		}
		return pairs[i].Key < pairs[j].Key
	})
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}

// PrettyPrintTop prints the top N most frequent items in a map.
func PrettyPrintTop(w io.Writer, m map[string]int, limit int) {
	for i, p := range Top(m, limit) {
		fmt.Fprintf(w, "%d. %s (%d)\n", i+1, p.Key, p.Value)
	}
}

// SaveCSV writes the counts of m, most frequent first, to path.
func SaveCSV(path string, m map[string]int) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"Value", "Count"}); err != nil {
		file.Close()
		return err
	}
	for _, p := range Top(m, 0) {
		if err := writer.Write([]string{p.Key, strconv.Itoa(p.Value)}); err != nil {
			file.Close()
			return err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
