package model

import (
	"errors"
	"fmt"
	"sort"
)

// Kind is the class of a message record.
type Kind string

const (
	KindSMS   Kind = "SMS"
	KindMMS   Kind = "MMS"
	KindEmail Kind = "Email"
)

var ErrInvalidKind = errors.New("invalid message kind")

// IsText reports whether the kind comes from the messaging-app export.
func (k Kind) IsText() bool {
	return k == KindSMS || k == KindMMS
}

// Message represents a single normalized communication record.
//
// Optional fields are pointers so that a missing header is distinguishable
// from an empty one. Email-only fields stay nil for SMS and MMS records.
type Message struct {
	Kind      Kind
	Body      string
	Timestamp int64 // canonical, seconds since epoch
	RawMillis int64
	Display   string

	Sender    *string
	Recipient *string
	ReplyTo   *string
	Subject   *string

	Media       []string
	Attachments []string

	Highlighted string
	Flagged     bool
}

// Email carries the header fields of an email record.
type Email struct {
	From    *string
	To      *string
	ReplyTo *string
	Subject *string
}

// NewText builds an SMS or MMS record.
func NewText(kind Kind, body string, millis, canonical int64, display, sender string) (Message, error) {
	if !kind.IsText() {
		return Message{}, fmt.Errorf("%w: %q is not a text kind", ErrInvalidKind, kind)
	}
	msg := Message{
		Kind:      kind,
		Body:      body,
		Timestamp: canonical,
		RawMillis: millis,
		Display:   display,
	}
	if sender != "" {
		msg.Sender = &sender
	}
	return msg, nil
}

// NewEmail builds an Email record. Its raw millisecond value is derived from
// the canonical timestamp since email headers carry second precision.
func NewEmail(body string, canonical int64, display string, hdr Email) Message {
	return Message{
		Kind:      KindEmail,
		Body:      body,
		Timestamp: canonical,
		RawMillis: canonical * 1000,
		Display:   display,
		Sender:    hdr.From,
		Recipient: hdr.To,
		ReplyTo:   hdr.ReplyTo,
		Subject:   hdr.Subject,
	}
}

// SortByTime orders msgs by canonical timestamp. Equal timestamps keep their
// encounter order.
func SortByTime(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp < msgs[j].Timestamp
	})
}

// Since drops every message older than cutoff (seconds since epoch). A zero
// cutoff keeps everything.
func Since(msgs []Message, cutoff int64) []Message {
	if cutoff == 0 {
		return msgs
	}
	out := msgs[:0]
	for _, msg := range msgs {
		if msg.Timestamp >= cutoff {
			out = append(out, msg)
		}
	}
	return out
}

// StringOrEmpty dereferences an optional field.
func StringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
