package richtext

import (
	"strconv"
	"strings"
)

// Render classifies v and renders it. It is the entry point for values that
// were not decoded through Content.
func Render(v any) string { return Classify(v).HTML() }

// HTML renders the content. HTML content is returned unchanged, plain text
// becomes <p> paragraphs and blocks are rendered one per line.
func (c Content) HTML() string {
	switch c.kind {
	case HTML:
		return c.text
	case Plain:
		return renderPlain(c.text)
	case Blocks:
		return renderBlocks(c.blocks)
	default:
		return ""
	}
}

func renderPlain(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var paras []string
	for _, p := range strings.Split(s, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		paras = append(paras, "<p>"+strings.ReplaceAll(p, "\n", "<br>")+"</p>")
	}
	return strings.Join(paras, "\n")
}

// renderBlocks joins every top-level block with a newline. Dropped blocks
// still take a line so the output keeps one entry per input block.
func renderBlocks(nodes []Node) string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = renderBlock(n)
	}
	return strings.Join(out, "\n")
}

func renderBlock(n Node) string {
	switch n.Type {
	case TypeParagraph:
		return renderParagraph(n)
	case TypeHeading:
		h := "h" + strconv.Itoa(clampLevel(n.Level))
		return "<" + h + ">" + renderInlines(n.Children) + "</" + h + ">"
	case TypeList:
		return renderList(n)
	case TypeListItem:
		return renderListItem(n)
	default:
		return ""
	}
}

func renderParagraph(n Node) string {
	return "<p>" + renderInlines(n.Children) + "</p>"
}

func renderList(n Node) string {
	tag := "ul"
	if n.Format == "ordered" {
		tag = "ol"
	}
	var b strings.Builder
	b.WriteString("<" + tag + ">")
	for _, item := range n.Children {
		b.WriteString(renderListItem(item))
	}
	b.WriteString("</" + tag + ">")
	return b.String()
}

// renderListItem allows one level of paragraph nesting inside an item.
func renderListItem(n Node) string {
	var b strings.Builder
	b.WriteString("<li>")
	for _, c := range n.Children {
		if c.Type == TypeParagraph {
			b.WriteString(renderParagraph(c))
			continue
		}
		b.WriteString(renderInline(c))
	}
	b.WriteString("</li>")
	return b.String()
}

func renderInlines(nodes []Node) string {
	var b strings.Builder
	for _, n := range nodes {
		b.WriteString(renderInline(n))
	}
	return b.String()
}

func renderInline(n Node) string {
	switch n.Type {
	case TypeText:
		return renderText(n)
	case TypeLink:
		return renderLink(n)
	default:
		return ""
	}
}

// renderText wraps the text in its marks. The nesting order, innermost to
// outermost, is strong, em, u, s, code.
func renderText(n Node) string {
	t := n.Text
	if n.Bold {
		t = "<strong>" + t + "</strong>"
	}
	if n.Italic {
		t = "<em>" + t + "</em>"
	}
	if n.Underline {
		t = "<u>" + t + "</u>"
	}
	if n.Strikethrough {
		t = "<s>" + t + "</s>"
	}
	if n.Code {
		t = "<code>" + t + "</code>"
	}
	return t
}

// renderLink renders every child as text. The URL is not validated here.
func renderLink(n Node) string {
	var b strings.Builder
	b.WriteString(`<a href="` + n.URL + `" target="_blank" rel="noopener noreferrer">`)
	for _, c := range n.Children {
		b.WriteString(renderText(c))
	}
	b.WriteString("</a>")
	return b.String()
}
