package richtext

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

var blockElements = map[string]bool{
	"p": true, "br": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"div": true,
}

// PlainText renders c and strips the markup, leaving the visible text with
// whitespace collapsed. Block boundaries become a single space.
func PlainText(c Content) string {
	rendered := c.HTML()
	if rendered == "" {
		return ""
	}
	doc, err := html.Parse(strings.NewReader(rendered))
	if err != nil {
		return ""
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
			if blockElements[n.Data] {
				b.WriteByte(' ')
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			b.WriteByte(' ')
		}
	}
	walk(doc)

	return strings.Join(strings.Fields(b.String()), " ")
}

// Excerpt is PlainText cut at a word boundary to at most max runes, with an
// ellipsis appended when anything was dropped.
func Excerpt(c Content, max int) string {
	text := PlainText(c)
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	cut := string(runes[:max])
	// a cut landing on a space already ends on a whole word
	if runes[max] != ' ' {
		if i := strings.LastIndexByte(cut, ' '); i > 0 {
			cut = cut[:i]
		}
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}
