// Package media attaches standalone media files to the messages they were
// sent with, using the millisecond timestamp embedded in each file name.
package media

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dhcgn/commsreport/model"
)

const (
	// Tolerance is the half-width of the matching window in milliseconds.
	// A file exactly Tolerance away does not match.
	Tolerance = 7000
	// UnknownMarker stands in for a missing timestamp or extension.
	UnknownMarker = "unknown"
	// Subdir is the directory below the report root receiving copies.
	Subdir = "media"
)

var mimeToExt = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/bmp":       ".bmp",
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
	"video/avi":       ".avi",
	"audio/mpeg":      ".mp3",
	"audio/wave":      ".wav",
	"audio/ogg":       ".ogg",
	"application/ogg": ".ogg",
	"application/pdf": ".pdf",
	"application/zip": ".zip",
	"text/plain":      ".txt",
}

type Options struct {
	Dir       string
	OutputDir string
}

// Result summarises one correlation pass.
type Result struct {
	Files        int
	Copied       int
	Attachments  int
	Unmatched    []string
	WithoutMedia int
}

// Correlate attaches every file in opts.Dir to all messages within the
// tolerance window and copies matched files below opts.OutputDir. Files are
// visited in lexicographic order so reference order is deterministic.
func Correlate(msgs []model.Message, opts Options, logger *slog.Logger) (Result, error) {
	info, err := os.Stat(opts.Dir)
	if err != nil {
		return Result{}, fmt.Errorf("%w: media directory: %v", model.ErrSourceUnavailable, err)
	}
	if !info.IsDir() {
		return Result{}, fmt.Errorf("%w: media directory %s is not a directory", model.ErrSourceUnavailable, opts.Dir)
	}
	entries, err := os.ReadDir(opts.Dir)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read media directory: %v", model.ErrSourceUnavailable, err)
	}

	var res Result
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		res.Files++
		name := entry.Name()
		stem, ext := SplitName(name)

		millis, ok := ParseStamp(stem)
		var matches []int
		if ok {
			matches = Match(msgs, millis)
		}
		if len(matches) == 0 {
			res.Unmatched = append(res.Unmatched, name)
			if logger != nil {
				logger.Warn("media file matches no message", "file", name, "err", model.ErrSilentMismatch)
			}
			continue
		}

		src := filepath.Join(opts.Dir, name)
		if ext == "" || ext == UnknownMarker {
			resolved, err := Sniff(src)
			if err != nil {
				return res, err
			}
			if logger != nil {
				logger.Debug("media extension resolved", "file", name, "ext", resolved)
			}
			ext = resolved
		}

		target := stem + "." + ext
		if err := copyFile(src, filepath.Join(opts.OutputDir, Subdir, target)); err != nil {
			return res, err
		}
		res.Copied++

		ref := Subdir + "/" + target
		for _, i := range matches {
			msgs[i].Media = append(msgs[i].Media, ref)
			res.Attachments++
		}
	}

	for _, msg := range msgs {
		if len(msg.Media) > 0 {
			continue
		}
		res.WithoutMedia++
		if logger != nil {
			logger.Debug("no media for message", "timestamp", msg.Timestamp, "kind", msg.Kind, "err", model.ErrSilentMismatch)
		}
	}

	return res, nil
}

// Match returns the indexes of every message whose raw millisecond timestamp
// lies strictly within Tolerance of millis.
func Match(msgs []model.Message, millis int64) []int {
	var out []int
	for i, msg := range msgs {
		delta := msg.RawMillis - millis
		if delta < 0 {
			delta = -delta
		}
		if delta < Tolerance {
			out = append(out, i)
		}
	}
	return out
}

// SplitName splits "<stem>.<ext>" at the last dot. The extension is returned
// without the dot.
func SplitName(name string) (stem, ext string) {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 {
		return name, ""
	}
	return name[:idx], name[idx+1:]
}

// ParseStamp reads the millisecond timestamp of a media file stem.
func ParseStamp(stem string) (int64, bool) {
	if stem == UnknownMarker {
		return 0, false
	}
	millis, err := strconv.ParseInt(stem, 10, 64)
	if err != nil {
		return 0, false
	}
	return millis, true
}

// Sniff determines a file extension (without dot) from the file content.
func Sniff(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open media file: %v", model.ErrSourceUnavailable, err)
	}
	defer file.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("read media file %s: %w", path, err)
	}
	return ExtensionFor(http.DetectContentType(head[:n])), nil
}

// ExtensionFor maps a sniffed content type to a file extension without dot.
func ExtensionFor(contentType string) string {
	mediaType := strings.TrimSpace(strings.Split(contentType, ";")[0])
	if ext, ok := mimeToExt[mediaType]; ok {
		return strings.TrimPrefix(ext, ".")
	}
	return "bin"
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create media directory: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: open media file: %v", model.ErrSourceUnavailable, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
