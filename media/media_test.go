package media

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcgn/commsreport/model"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func texts(t *testing.T, millis ...int64) []model.Message {
	t.Helper()
	msgs := make([]model.Message, 0, len(millis))
	for _, ms := range millis {
		msg, err := model.NewText(model.KindSMS, "body", ms, ms/1000, "", "")
		require.NoError(t, err)
		msgs = append(msgs, msg)
	}
	return msgs
}

func writeFiles(t *testing.T, files map[string][]byte) string {
	t.Helper()
	dir := t.TempDir()
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}
	return dir
}

func TestCorrelateBroadcastsWithinTolerance(t *testing.T) {
	msgs := texts(t, 1610000000000, 1610000003000)
	src := writeFiles(t, map[string][]byte{"1610000002500.jpg": []byte("jpeg")})
	out := t.TempDir()

	res, err := Correlate(msgs, Options{Dir: src, OutputDir: out}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"media/1610000002500.jpg"}, msgs[0].Media)
	assert.Equal(t, []string{"media/1610000002500.jpg"}, msgs[1].Media)
	assert.Equal(t, 1, res.Copied)
	assert.Equal(t, 2, res.Attachments)
	assert.Equal(t, 0, res.WithoutMedia)
	assert.FileExists(t, filepath.Join(out, "media", "1610000002500.jpg"))
	assert.FileExists(t, filepath.Join(src, "1610000002500.jpg"), "source must be kept")
}

func TestCorrelateResolvesUnknownExtension(t *testing.T) {
	msgs := texts(t, 1610000020000)
	src := writeFiles(t, map[string][]byte{"1610000020000.unknown": pngHeader})
	out := t.TempDir()

	_, err := Correlate(msgs, Options{Dir: src, OutputDir: out}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"media/1610000020000.png"}, msgs[0].Media)
	assert.FileExists(t, filepath.Join(out, "media", "1610000020000.png"))
	assert.FileExists(t, filepath.Join(src, "1610000020000.unknown"))
}

func TestCorrelateUnmatched(t *testing.T) {
	msgs := texts(t, 1610000000000)
	src := writeFiles(t, map[string][]byte{
		"1610000007000.jpg": []byte("edge"),
		"unknown.unknown":   pngHeader,
	})
	out := t.TempDir()

	res, err := Correlate(msgs, Options{Dir: src, OutputDir: out}, nil)
	require.NoError(t, err)

	assert.Empty(t, msgs[0].Media)
	assert.Equal(t, []string{"1610000007000.jpg", "unknown.unknown"}, res.Unmatched)
	assert.Equal(t, 1, res.WithoutMedia)
	assert.NoDirExists(t, filepath.Join(out, "media"))
}

func TestCorrelateDeterministicOrder(t *testing.T) {
	msgs := texts(t, 1610000000000)
	src := writeFiles(t, map[string][]byte{
		"1610000001000.png": pngHeader,
		"1610000000500.jpg": []byte("a"),
	})

	_, err := Correlate(msgs, Options{Dir: src, OutputDir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"media/1610000000500.jpg", "media/1610000001000.png"}, msgs[0].Media)
}

func TestCorrelateMissingDirectory(t *testing.T) {
	_, err := Correlate(nil, Options{Dir: filepath.Join(t.TempDir(), "nope")}, nil)
	assert.True(t, errors.Is(err, model.ErrSourceUnavailable))
}

func TestMatchBoundary(t *testing.T) {
	msgs := texts(t, 10000)
	tests := []struct {
		millis int64
		want   bool
	}{
		{10000, true},
		{16999, true},
		{3001, true},
		{17000, false},
		{3000, false},
	}
	for _, tt := range tests {
		got := len(Match(msgs, tt.millis)) == 1
		assert.Equal(t, tt.want, got, "millis %d", tt.millis)
	}
}

func TestMatchUsesUnroundedMillis(t *testing.T) {
	// Both canonical values are 1610000000 but only one raw value is in range.
	msgs := texts(t, 1610000000999, 1610000000001)
	assert.Equal(t, []int{0}, Match(msgs, 1610000007500))
}

func TestSplitName(t *testing.T) {
	stem, ext := SplitName("1610000020000.unknown")
	assert.Equal(t, "1610000020000", stem)
	assert.Equal(t, "unknown", ext)

	stem, ext = SplitName("1610000020000")
	assert.Equal(t, "1610000020000", stem)
	assert.Empty(t, ext)
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, "png", ExtensionFor("image/png"))
	assert.Equal(t, "txt", ExtensionFor("text/plain; charset=utf-8"))
	assert.Equal(t, "bin", ExtensionFor("application/octet-stream"))
}
