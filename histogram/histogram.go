// Package histogram buckets messages by month, weekday and hour of day.
package histogram

import (
	"fmt"
	"time"

	"github.com/dhcgn/commsreport/model"
	"github.com/dhcgn/commsreport/timestamp"
)

// MonthLayout is the flag format of a month bound.
const MonthLayout = "2006-01"

// Month identifies one calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth reads a month in MonthLayout.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(MonthLayout, s)
	if err != nil {
		return Month{}, fmt.Errorf("month %q: want YYYY-MM: %w", s, err)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

func (m Month) next() Month {
	if m.Month == time.December {
		return Month{Year: m.Year + 1, Month: time.January}
	}
	return Month{Year: m.Year, Month: m.Month + 1}
}

func (m Month) before(o Month) bool {
	return m.Year < o.Year || (m.Year == o.Year && m.Month < o.Month)
}

// String renders the month in MonthLayout.
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Label renders the month as "Mar 2020".
func (m Month) Label() string {
	return fmt.Sprintf("%s %d", timestamp.MonthAbbrev(m.Month), m.Year)
}

// Range returns every month from start up to but excluding end.
func Range(start, end Month) []Month {
	var out []Month
	for m := start; m.before(end); m = m.next() {
		out = append(out, m)
	}
	return out
}

// DefaultStart and DefaultEnd bound the default month window.
var (
	DefaultStart = Month{Year: 2020, Month: time.March}
	DefaultEnd   = Month{Year: 2021, Month: time.April}
)

// MonthBucket is one bar of the month histogram.
type MonthBucket struct {
	Month Month
	Count int
}

// Histograms holds the three frequency tables of one message class.
type Histograms struct {
	Months   []MonthBucket
	Weekdays [7]int // Sunday first
	Hours    [24]int
}

type Options struct {
	Start    Month
	End      Month
	Location *time.Location
}

// Build tallies msgs using the calendar breakdown of each canonical
// timestamp. Months outside [Start, End) are not counted in Months.
func Build(msgs []model.Message, opts Options) Histograms {
	months := Range(opts.Start, opts.End)
	h := Histograms{Months: make([]MonthBucket, len(months))}
	index := make(map[Month]int, len(months))
	for i, m := range months {
		h.Months[i].Month = m
		index[m] = i
	}

	for _, msg := range msgs {
		cal := timestamp.CalendarOf(msg.Timestamp, opts.Location)
		if i, ok := index[Month{Year: cal.Year, Month: cal.Month}]; ok {
			h.Months[i].Count++
		}
		h.Weekdays[cal.Weekday]++
		h.Hours[cal.Hour]++
	}
	return h
}

// WeekdayLabels are the weekday bucket names, Sunday first.
func WeekdayLabels() []string {
	out := make([]string, 7)
	for i := range out {
		out[i] = timestamp.WeekdayAbbrev(time.Weekday(i))
	}
	return out
}

// MonthLabels lists the month bucket names.
func (h Histograms) MonthLabels() []string {
	out := make([]string, len(h.Months))
	for i, b := range h.Months {
		out[i] = b.Month.Label()
	}
	return out
}

// MonthCounts lists the month bucket counts.
func (h Histograms) MonthCounts() []int {
	out := make([]int, len(h.Months))
	for i, b := range h.Months {
		out[i] = b.Count
	}
	return out
}
