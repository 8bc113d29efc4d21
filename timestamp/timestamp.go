// Package timestamp converts the raw date encodings found in message exports
// and email headers into one canonical sortable value.
package timestamp

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dhcgn/commsreport/model"
)

// DisplayLayout is the calendar format used for tabular display strings.
const DisplayLayout = "Mon Jan _2 15:04:05 2006"

var ErrMalformedTimestamp = errors.New("malformed timestamp")

var (
	monthAbbrev = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
	dayAbbrev   = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
)

// Stamp is the normalized form of a raw timestamp.
type Stamp struct {
	Canonical int64 // seconds since epoch
	Millis    int64 // unrounded milliseconds
	Display   string
}

// Calendar is the wall-clock breakdown of a timestamp.
type Calendar struct {
	Weekday time.Weekday
	Year    int
	Month   time.Month
	Day     int
	Hour    int
	Minute  int
	Second  int
}

// FromMillis normalizes a millisecond epoch given as an integer string.
func FromMillis(raw string, loc *time.Location) (Stamp, error) {
	millis, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return Stamp{}, fmt.Errorf("%w: %q is not a millisecond epoch", ErrMalformedTimestamp, raw)
	}
	canonical := floorDiv(millis, 1000)
	return Stamp{
		Canonical: canonical,
		Millis:    millis,
		Display:   time.Unix(canonical, 0).In(location(loc)).Format(DisplayLayout),
	}, nil
}

// FromHeader normalizes an email Date header of the form
// "Mon, 5 Apr 2021 13:45:02 ...". Anything after the time is ignored and the
// instant is built in loc without applying the header's zone offset.
func FromHeader(raw string, loc *time.Location) (Stamp, error) {
	cal, err := parseHeader(raw)
	if err != nil {
		return Stamp{}, err
	}
	t := time.Date(cal.Year, cal.Month, cal.Day, cal.Hour, cal.Minute, cal.Second, 0, location(loc))
	if t.Day() != cal.Day || t.Month() != cal.Month {
		return Stamp{}, fmt.Errorf("%w: %q has no such calendar day", ErrMalformedTimestamp, raw)
	}
	return Stamp{
		Canonical: t.Unix(),
		Millis:    t.Unix() * 1000,
		Display:   strings.TrimSpace(raw),
	}, nil
}

// Fields recovers the calendar breakdown from the display string of a
// message of the given kind. Kinds other than SMS, MMS and Email yield
// model.ErrInvalidKind.
//
// Tabular display tokens, split on spaces and colons:
//
//	[weekday, month, day, hour, minute, second, year]
//
// Email display tokens, split on spaces:
//
//	[weekday+",", day, month, year, "hour:minute:second", tz...]
func Fields(kind model.Kind, display string) (Calendar, error) {
	if kind == model.KindEmail {
		return parseHeader(display)
	}
	if !kind.IsText() {
		return Calendar{}, fmt.Errorf("%w: %q", model.ErrInvalidKind, kind)
	}

	tokens := strings.Fields(strings.ReplaceAll(display, ":", " "))
	if len(tokens) != 7 {
		return Calendar{}, fmt.Errorf("%w: %q has %d tokens, want 7", ErrMalformedTimestamp, display, len(tokens))
	}
	weekday, ok := lookupWeekday(tokens[0])
	if !ok {
		return Calendar{}, fmt.Errorf("%w: unknown weekday %q", ErrMalformedTimestamp, tokens[0])
	}
	month, ok := lookupMonth(tokens[1])
	if !ok {
		return Calendar{}, fmt.Errorf("%w: unknown month %q", ErrMalformedTimestamp, tokens[1])
	}
	nums, err := atoiAll(display, tokens[2], tokens[3], tokens[4], tokens[5], tokens[6])
	if err != nil {
		return Calendar{}, err
	}
	return Calendar{
		Weekday: weekday,
		Month:   month,
		Day:     nums[0],
		Hour:    nums[1],
		Minute:  nums[2],
		Second:  nums[3],
		Year:    nums[4],
	}, nil
}

// CalendarOf breaks a canonical timestamp down in loc.
func CalendarOf(canonical int64, loc *time.Location) Calendar {
	t := time.Unix(canonical, 0).In(location(loc))
	return Calendar{
		Weekday: t.Weekday(),
		Year:    t.Year(),
		Month:   t.Month(),
		Day:     t.Day(),
		Hour:    t.Hour(),
		Minute:  t.Minute(),
		Second:  t.Second(),
	}
}

// MonthAbbrev returns the three-letter token used in display strings.
func MonthAbbrev(m time.Month) string {
	return monthAbbrev[m-1]
}

// WeekdayAbbrev returns the three-letter token used in display strings.
func WeekdayAbbrev(d time.Weekday) string {
	return dayAbbrev[d]
}

func parseHeader(raw string) (Calendar, error) {
	tokens := strings.Fields(raw)
	if len(tokens) < 5 {
		return Calendar{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, raw)
	}

	weekday, ok := lookupWeekday(strings.TrimSuffix(tokens[0], ","))
	if !ok {
		return Calendar{}, fmt.Errorf("%w: %q has no day name", ErrMalformedTimestamp, raw)
	}
	month, ok := lookupMonth(tokens[2])
	if !ok {
		return Calendar{}, fmt.Errorf("%w: %q has no month abbreviation", ErrMalformedTimestamp, raw)
	}

	clock := strings.Split(tokens[4], ":")
	if len(clock) != 3 {
		return Calendar{}, fmt.Errorf("%w: %q has no hour:minute:second", ErrMalformedTimestamp, raw)
	}
	nums, err := atoiAll(raw, tokens[1], tokens[3], clock[0], clock[1], clock[2])
	if err != nil {
		return Calendar{}, err
	}
	cal := Calendar{
		Weekday: weekday,
		Day:     nums[0],
		Month:   month,
		Year:    nums[1],
		Hour:    nums[2],
		Minute:  nums[3],
		Second:  nums[4],
	}
	if cal.Hour > 23 || cal.Minute > 59 || cal.Second > 60 || cal.Day < 1 || cal.Day > 31 {
		return Calendar{}, fmt.Errorf("%w: %q is out of range", ErrMalformedTimestamp, raw)
	}
	return cal, nil
}

func atoiAll(raw string, tokens ...string) ([]int, error) {
	out := make([]int, len(tokens))
	for i, tok := range tokens {
		n, err := strconv.Atoi(tok)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: %q has non-numeric field %q", ErrMalformedTimestamp, raw, tok)
		}
		out[i] = n
	}
	return out, nil
}

func lookupMonth(tok string) (time.Month, bool) {
	for i, name := range monthAbbrev {
		if tok == name {
			return time.Month(i + 1), true
		}
	}
	return 0, false
}

func lookupWeekday(tok string) (time.Weekday, bool) {
	for i, name := range dayAbbrev {
		if tok == name {
			return time.Weekday(i), true
		}
	}
	return 0, false
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func location(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}
