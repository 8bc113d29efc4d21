// Package render converts the Markdown report into a paginated document by
// delegating to an external converter.
package render

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	// DefaultCommand is the converter invoked as "<cmd> <src> -o <dst>".
	DefaultCommand = "md2pdf"
	// DefaultOutput is the rendered file name.
	DefaultOutput = "report.pdf"
)

var ErrRenderFailed = errors.New("render failed")

// Result describes one converter invocation.
type Result struct {
	Command []string
	Output  string
	Pages   int
}

// Renderer turns the document at src into a paginated document at dst.
type Renderer interface {
	Render(ctx context.Context, src, dst string) (Result, error)
}

// Command runs an external converter binary.
type Command struct {
	name string
	args []string
}

// NewCommand parses a command line such as "md2pdf" or
// "pandoc --pdf-engine=wkhtmltopdf". Source, "-o" and destination are
// appended to it.
func NewCommand(line string) (*Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("renderer command is empty")
	}
	return &Command{name: fields[0], args: fields[1:]}, nil
}

// Render runs the converter and checks that dst is a readable PDF. The
// converter's combined output is returned even when it fails.
func (c *Command) Render(ctx context.Context, src, dst string) (Result, error) {
	argv := append(append([]string{}, c.args...), src, "-o", dst)
	res := Result{Command: append([]string{c.name}, argv...)}

	bin, err := exec.LookPath(c.name)
	if err != nil {
		return res, fmt.Errorf("%w: %s not found: %v", ErrRenderFailed, c.name, err)
	}

	out, err := exec.CommandContext(ctx, bin, argv...).CombinedOutput()
	res.Output = strings.TrimSpace(string(out))
	if err != nil {
		return res, fmt.Errorf("%w: %s: %v", ErrRenderFailed, c.name, err)
	}

	pages, err := CountPages(dst)
	if err != nil {
		return res, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	res.Pages = pages
	return res, nil
}

// CountPages opens a PDF and returns its page count.
func CountPages(path string) (int, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer file.Close()
	return reader.NumPage(), nil
}
