// Package report composes the Markdown summary of all loaded communications.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/dhcgn/commsreport/model"
	"github.com/dhcgn/commsreport/scanner"
)

// DefaultFile is the default report file name.
const DefaultFile = "report.md"

var imageExt = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".bmp": true,
}

// Document is everything the report shows. Messages are only read.
type Document struct {
	Name  string
	Since string

	Texts  []model.Message
	Emails []model.Message

	TextScan  scanner.Result
	EmailScan scanner.Result

	Charts         []string
	UnmatchedMedia []string
}

// Write renders doc into the file at p.
func Write(p string, doc Document) error {
	file, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := Render(file, doc); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Render writes doc as Markdown to w.
func Render(w io.Writer, doc Document) error {
	bw := bufio.NewWriter(w)

	bw.WriteString("# Messages received")
	if doc.Name != "" {
		fmt.Fprintf(bw, " from %s", doc.Name)
	}
	if doc.Since != "" {
		fmt.Fprintf(bw, " since %s", doc.Since)
	}
	bw.WriteString("\n\n")

	bw.WriteString("## Summary\n\n")
	fmt.Fprintf(bw, "- Text messages: %d (%d flagged, %.2f%%)\n", len(doc.Texts), doc.TextScan.Flagged, doc.TextScan.Percent)
	fmt.Fprintf(bw, "- Emails: %d (%d flagged, %.2f%%)\n", len(doc.Emails), doc.EmailScan.Flagged, doc.EmailScan.Percent)
	if len(doc.UnmatchedMedia) > 0 {
		fmt.Fprintf(bw, "- Media files without a message: %d\n", len(doc.UnmatchedMedia))
	}
	bw.WriteString("\n")

	for _, chart := range doc.Charts {
		fmt.Fprintf(bw, "![%s](%s)\n\n", strings.TrimSuffix(chart, path.Ext(chart)), chart)
	}

	if len(doc.Texts) > 0 {
		bw.WriteString("# Text messages\n\n")
		for _, msg := range doc.Texts {
			writeText(bw, msg)
		}
	}

	if len(doc.Emails) > 0 {
		bw.WriteString("# Emails\n\n")
		for _, msg := range doc.Emails {
			writeEmail(bw, msg)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func writeText(w *bufio.Writer, msg model.Message) {
	fmt.Fprintf(w, "## %s (%s)\n\n", msg.Display, msg.Kind)
	fmt.Fprintf(w, "%s\n", body(msg))
	for _, ref := range msg.Media {
		fmt.Fprintf(w, "\n%s\n", link(ref))
	}
	w.WriteString("\n")
}

func writeEmail(w *bufio.Writer, msg model.Message) {
	fmt.Fprintf(w, "## %s\n\n", msg.Display)
	header(w, "Subject", msg.Subject)
	header(w, "From", msg.Sender)
	header(w, "To", msg.Recipient)
	header(w, "Reply-To", msg.ReplyTo)
	w.WriteString("\n")
	fmt.Fprintf(w, "%s\n", body(msg))
	for _, ref := range msg.Attachments {
		fmt.Fprintf(w, "\n%s\n", link(ref))
	}
	w.WriteString("\n")
}

func header(w *bufio.Writer, name string, value *string) {
	if value == nil {
		return
	}
	fmt.Fprintf(w, "**%s:** %s  \n", name, scanner.EscapeEmphasis(*value))
}

func body(msg model.Message) string {
	if msg.Highlighted != "" {
		return msg.Highlighted
	}
	return scanner.EscapeEmphasis(msg.Body)
}

func link(ref string) string {
	base := path.Base(ref)
	if imageExt[strings.ToLower(path.Ext(ref))] {
		return fmt.Sprintf("![%s](%s)", base, ref)
	}
	return fmt.Sprintf("[%s](%s)", base, ref)
}
