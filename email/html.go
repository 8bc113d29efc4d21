package email

import (
	"strings"

	"golang.org/x/net/html"
)

// HTMLText flattens an HTML document into whitespace-normalized text, leaving
// out script and style content.
func HTMLText(doc string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(doc))
	var (
		sb   strings.Builder
		skip int
	)
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(sb.String()), " ")
		case html.StartTagToken:
			if isRawText(tokenizer) {
				skip++
			}
		case html.EndTagToken:
			if isRawText(tokenizer) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				sb.Write(tokenizer.Text())
				sb.WriteByte(' ')
			}
		}
	}
}

func isRawText(tokenizer *html.Tokenizer) bool {
	name, _ := tokenizer.TagName()
	switch string(name) {
	case "script", "style":
		return true
	}
	return false
}
