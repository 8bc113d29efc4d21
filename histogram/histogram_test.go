package histogram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcgn/commsreport/model"
)

func at(year int, month time.Month, day, hour int) model.Message {
	ts := time.Date(year, month, day, hour, 0, 0, 0, time.UTC).Unix()
	return model.Message{Kind: model.KindSMS, Timestamp: ts, RawMillis: ts * 1000}
}

func TestRangeExcludesEnd(t *testing.T) {
	months := Range(DefaultStart, DefaultEnd)
	require.Len(t, months, 13)
	assert.Equal(t, "Mar 2020", months[0].Label())
	assert.Equal(t, "Mar 2021", months[12].Label())

	assert.Empty(t, Range(DefaultEnd, DefaultStart))
}

func TestMonthStringRoundTrips(t *testing.T) {
	for _, m := range []Month{DefaultStart, DefaultEnd, {Year: 999, Month: time.December}} {
		parsed, err := ParseMonth(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
	assert.Equal(t, "2020-03", DefaultStart.String())
}

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2020-12")
	require.NoError(t, err)
	assert.Equal(t, Month{Year: 2020, Month: time.December}, m)
	assert.Equal(t, Month{Year: 2021, Month: time.January}, m.next())

	_, err = ParseMonth("December")
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	msgs := []model.Message{
		at(2020, time.March, 1, 0),    // Sunday
		at(2020, time.March, 2, 13),   // Monday
		at(2021, time.January, 7, 13), // Thursday
		at(2021, time.April, 3, 23),   // Saturday, outside month range
	}

	h := Build(msgs, Options{Start: DefaultStart, End: DefaultEnd, Location: time.UTC})

	counts := h.MonthCounts()
	assert.Equal(t, 2, counts[0])
	assert.Equal(t, 1, counts[10])
	total := 0
	for _, c := range counts {
		total += c
	}
	assert.Equal(t, 3, total)

	assert.Equal(t, [7]int{1, 1, 0, 0, 1, 0, 1}, h.Weekdays)
	assert.Equal(t, 1, h.Hours[0])
	assert.Equal(t, 2, h.Hours[13])
	assert.Equal(t, 1, h.Hours[23])
	assert.Equal(t, "Jan 2021", h.MonthLabels()[10])
}

func TestBuildUsesLocation(t *testing.T) {
	msg := at(2020, time.March, 1, 23)
	plusTwo := time.FixedZone("plus2", 2*60*60)

	h := Build([]model.Message{msg}, Options{Start: DefaultStart, End: DefaultEnd, Location: plusTwo})
	assert.Equal(t, 1, h.Hours[1])
	assert.Equal(t, 1, h.Weekdays[time.Monday])
}

func TestWeekdayLabels(t *testing.T) {
	assert.Equal(t, []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}, WeekdayLabels())
}
