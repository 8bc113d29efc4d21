package chart

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcgn/commsreport/histogram"
	"github.com/dhcgn/commsreport/model"
)

func TestWriteAll(t *testing.T) {
	ts := time.Date(2020, time.June, 3, 14, 0, 0, 0, time.UTC).Unix()
	opts := histogram.Options{Start: histogram.DefaultStart, End: histogram.DefaultEnd, Location: time.UTC}
	texts := histogram.Build([]model.Message{{Timestamp: ts}}, opts)
	emails := histogram.Build(nil, opts)

	dir := t.TempDir()
	files, err := WriteAll(dir, Series{Name: "Texts", Data: texts}, Series{Name: "Emails", Data: emails})
	require.NoError(t, err)
	assert.Equal(t, []string{MonthFile, WeekFile, DayFile}, files)

	for _, name := range files {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, "\x89PNG", string(data[:4]), name)
	}
}

func TestWriteAllNeedsSeries(t *testing.T) {
	_, err := WriteAll(t.TempDir())
	assert.Error(t, err)
}
