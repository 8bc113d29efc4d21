package backup

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcgn/commsreport/model"
	"github.com/dhcgn/commsreport/timestamp"
)

type row struct {
	body   string
	millis int64
	sender string
}

func writeTable(t *testing.T, kind model.Kind, rows []row) string {
	t.Helper()
	cols := Layouts[kind]
	path := filepath.Join(t.TempDir(), string(kind)+".csv")
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	w := csv.NewWriter(file)
	header := make([]string, cols.width())
	for i := range header {
		header[i] = "col" + strconv.Itoa(i)
	}
	require.NoError(t, w.Write(header))
	for _, r := range rows {
		rec := make([]string, cols.width())
		rec[cols.Body] = r.body
		rec[cols.Time] = strconv.FormatInt(r.millis, 10)
		rec[cols.Sender] = r.sender
		require.NoError(t, w.Write(rec))
	}
	w.Flush()
	require.NoError(t, w.Error())
	return path
}

func TestLoadSortsByTimestamp(t *testing.T) {
	path := writeTable(t, model.KindSMS, []row{
		{"later", 1610000003000, "7"},
		{"earlier", 1610000000000, "7"},
	})

	msgs, err := Load(Options{Path: path, Kind: model.KindSMS, Location: time.UTC}, nil)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, "earlier", msgs[0].Body)
	assert.Equal(t, int64(1610000000), msgs[0].Timestamp)
	assert.Equal(t, int64(1610000000000), msgs[0].RawMillis)
	assert.Equal(t, "later", msgs[1].Body)
	for _, msg := range msgs {
		assert.Equal(t, model.KindSMS, msg.Kind)
		assert.Nil(t, msg.Subject)
		assert.Nil(t, msg.ReplyTo)
	}
}

func TestLoadStableOnTies(t *testing.T) {
	path := writeTable(t, model.KindMMS, []row{
		{"b", 1610000000900, "1"},
		{"a", 1610000000100, "1"},
		{"c", 1610000000500, "1"},
	})

	msgs, err := Load(Options{Path: path, Kind: model.KindMMS, Location: time.UTC}, nil)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{msgs[0].Body, msgs[1].Body, msgs[2].Body})
}

func TestLoadSenderFilterIsNumeric(t *testing.T) {
	path := writeTable(t, model.KindSMS, []row{
		{"keep", 1610000000000, "0042"},
		{"drop", 1610000001000, "43"},
		{"drop too", 1610000002000, "n/a"},
	})

	msgs, err := Load(Options{Path: path, Kind: model.KindSMS, Address: "42", Location: time.UTC}, nil)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "keep", msgs[0].Body)
	assert.Equal(t, "0042", model.StringOrEmpty(msgs[0].Sender))
}

func TestLoadSince(t *testing.T) {
	path := writeTable(t, model.KindSMS, []row{
		{"old", 1600000000000, "1"},
		{"new", 1610000000000, "1"},
	})

	msgs, err := Load(Options{Path: path, Kind: model.KindSMS, Location: time.UTC, Since: 1605000000}, nil)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "new", msgs[0].Body)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(Options{Path: filepath.Join(t.TempDir(), "missing.csv"), Kind: model.KindSMS}, nil)
	assert.True(t, errors.Is(err, model.ErrSourceUnavailable))

	bad := writeTable(t, model.KindSMS, []row{{"x", 1, "1"}})
	data, err := os.ReadFile(bad)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(bad, append(data, []byte("a,b,c\n")...), 0o644))
	_, err = Load(Options{Path: bad, Kind: model.KindSMS}, nil)
	assert.ErrorContains(t, err, "row 3")

	_, err = Load(Options{Path: bad, Kind: model.KindEmail}, nil)
	assert.True(t, errors.Is(err, model.ErrInvalidKind))

	_, err = Load(Options{Path: bad, Kind: model.KindSMS, Address: "abc"}, nil)
	assert.Error(t, err)
}

func TestLoadMalformedTime(t *testing.T) {
	cols := Layouts[model.KindSMS]
	path := filepath.Join(t.TempDir(), "sms.csv")
	rec := make([]string, cols.width())
	rec[cols.Time] = "soon"
	file, err := os.Create(path)
	require.NoError(t, err)
	w := csv.NewWriter(file)
	require.NoError(t, w.Write(make([]string, cols.width())))
	require.NoError(t, w.Write(rec))
	w.Flush()
	require.NoError(t, file.Close())

	_, err = Load(Options{Path: path, Kind: model.KindSMS}, nil)
	assert.True(t, errors.Is(err, timestamp.ErrMalformedTimestamp))
}
