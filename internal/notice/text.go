package notice

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// blockTags は前後で改行するタグ。
var blockTags = map[string]bool{
	"p": true, "br": true, "li": true, "ul": true, "ol": true,
	"blockquote": true, "div": true, "h1": true, "h2": true, "h3": true,
}

// PlainText はHTML断片からテキストのみを取り出す。
// ブロック要素の境界は改行になり、空行は取り除く。
func PlainText(fragment string) string {
	var b strings.Builder
	tokenizer := html.NewTokenizer(bytes.NewReader([]byte(fragment)))

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return collapseLines(b.String())
		case html.TextToken:
			b.Write(tokenizer.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			if blockTags[string(name)] {
				b.WriteByte('\n')
			}
		}
	}
}

func collapseLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
