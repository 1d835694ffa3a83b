package richtext

import (
	"encoding/json"
	"strings"
	"testing"
)

func decodeBlocks(t *testing.T, raw string) Content {
	t.Helper()
	var c Content
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
	return c
}

func TestRender_Falsy(t *testing.T) {
	for _, v := range []any{nil, "", false, 0.0, 0, json.Number("0")} {
		if got := Render(v); got != "" {
			t.Errorf("Render(%#v) = %q, want empty", v, got)
		}
	}
}

func TestRender_PlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"two paragraphs", "a\n\nb", "<p>a</p>\n<p>b</p>"},
		{"line break", "a\nb", "<p>a<br>b</p>"},
		{"crlf", "a\r\nb\r\n\r\nc", "<p>a<br>b</p>\n<p>c</p>"},
		{"trims paragraphs", "  first  \n\n   \n\nsecond", "<p>first</p>\n<p>second</p>"},
		{"whitespace only", "   ", ""},
		{"single", "Gates open at 5pm", "<p>Gates open at 5pm</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.in); got != tt.want {
				t.Fatalf("Render(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRender_HTMLPassthrough(t *testing.T) {
	in := `<div class="x">already <b>html</b></div>`
	if got := Render(in); got != in {
		t.Fatalf("Render = %q, want unchanged", got)
	}
	if Classify(in).Kind() != HTML {
		t.Fatalf("kind = %v", Classify(in).Kind())
	}
	// only one of the angle brackets is not enough
	if Classify("a < b").Kind() != Plain {
		t.Fatal("a lone '<' should be plain text")
	}
}

func TestRender_IdempotentOnHTMLNotOnPlain(t *testing.T) {
	once := Render("a\n\nb")
	if twice := Render(once); twice != once {
		t.Fatalf("re-rendering HTML changed it: %q -> %q", once, twice)
	}

	rewrapped := FromPlain(Render("a")).HTML()
	if rewrapped != "<p><p>a</p></p>" {
		t.Fatalf("rendering output as plain text should double wrap, got %q", rewrapped)
	}
}

func TestRender_ParagraphBold(t *testing.T) {
	c := decodeBlocks(t, `[{"type":"paragraph","children":[{"type":"text","text":"text","bold":true}]}]`)
	if got := c.HTML(); got != "<p><strong>text</strong></p>" {
		t.Fatalf("HTML = %q", got)
	}
}

func TestRender_MarkNesting(t *testing.T) {
	tests := []struct {
		name  string
		marks Marks
		want  string
	}{
		{"bold+italic", Marks{Bold: true, Italic: true}, "<em><strong>t</strong></em>"},
		{"underline+code", Marks{Underline: true, Code: true}, "<code><u>t</u></code>"},
		{"all", Marks{true, true, true, true, true}, "<code><s><u><em><strong>t</strong></em></u></s></code>"},
		{"none", Marks{}, "t"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderText(Node{Type: TypeText, Text: "t", Marks: tt.marks})
			if got != tt.want {
				t.Fatalf("renderText = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRender_Lists(t *testing.T) {
	ordered := decodeBlocks(t, `[{"type":"list","format":"ordered","children":[
		{"type":"list-item","children":[{"type":"text","text":"one"}]},
		{"type":"list-item","children":[{"type":"text","text":"two"}]}]}]`)
	if got := ordered.HTML(); got != "<ol><li>one</li><li>two</li></ol>" {
		t.Fatalf("ordered = %q", got)
	}

	unordered := decodeBlocks(t, `{"type":"list","format":"unordered","children":[
		{"type":"list-item","children":[{"type":"paragraph","children":[{"type":"text","text":"p"}]},{"type":"text","text":"x"}]}]}`)
	if got := unordered.HTML(); got != "<ul><li><p>p</p>x</li></ul>" {
		t.Fatalf("unordered = %q", got)
	}

	noFormat := FromBlocks([]Node{{Type: TypeList, Children: []Node{{Type: TypeListItem}}}})
	if got := noFormat.HTML(); got != "<ul><li></li></ul>" {
		t.Fatalf("missing format = %q", got)
	}
}

func TestRender_Headings(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`{"type":"heading","level":2,"children":[{"type":"text","text":"Lineup"}]}`, "<h2>Lineup</h2>"},
		{`{"type":"heading","level":9,"children":[{"type":"text","text":"x"}]}`, "<h6>x</h6>"},
		{`{"type":"heading","children":[{"type":"text","text":"x"}]}`, "<h1>x</h1>"},
		{`{"type":"heading","level":"3","children":[]}`, "<h3></h3>"},
	}
	for _, tt := range tests {
		if got := decodeBlocks(t, tt.raw).HTML(); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestRender_Link(t *testing.T) {
	c := decodeBlocks(t, `[{"type":"paragraph","children":[
		{"type":"text","text":"Buy "},
		{"type":"link","url":"https://tickets.example.com","children":[{"type":"text","text":"tickets","italic":true}]}]}]`)
	want := `<p>Buy <a href="https://tickets.example.com" target="_blank" rel="noopener noreferrer"><em>tickets</em></a></p>`
	if got := c.HTML(); got != want {
		t.Fatalf("HTML = %q\nwant   %q", got, want)
	}
}

func TestRender_UnknownTypesDropped(t *testing.T) {
	c := decodeBlocks(t, `[
		{"type":"paragraph","children":[{"type":"text","text":"a"},{"type":"mention","text":"@x"}]},
		{"type":"image","image":{"url":"/x.png"}},
		{"type":"paragraph","children":[{"type":"text","text":"b"}]}]`)
	if got := c.HTML(); got != "<p>a</p>\n\n<p>b</p>" {
		t.Fatalf("HTML = %q", got)
	}
}

func TestRender_Fallbacks(t *testing.T) {
	if got := Render(map[string]any{"text": "no type"}); got != "" {
		t.Errorf("object without type = %q", got)
	}
	if got := Render(42.0); got != "<p>42</p>" {
		t.Errorf("number = %q", got)
	}
	if got := Render(true); got != "<p>true</p>" {
		t.Errorf("bool = %q", got)
	}
	if got := Render([]any{}); got != "" {
		t.Errorf("empty array = %q", got)
	}
	if got := Render(struct{}{}); got != "" {
		t.Errorf("unsupported type = %q", got)
	}
}

func TestRender_MalformedDoesNotPanic(t *testing.T) {
	inputs := []string{
		`{"type":"paragraph","children":"oops"}`,
		`[1, "two", null, {"type":"list","children":[5]}]`,
		`{"type":"heading","level":{"n":2}}`,
		`[{"type":"link","url":7,"children":[{"text":1}]}]`,
	}
	for _, in := range inputs {
		var c Content
		if err := json.Unmarshal([]byte(in), &c); err != nil {
			t.Fatalf("unmarshal %s: %v", in, err)
		}
		_ = c.HTML()
	}

	c := decodeBlocks(t, inputs[0])
	if got := c.HTML(); got != "<p></p>" {
		t.Fatalf("paragraph with bad children = %q", got)
	}
}

func TestContent_UnmarshalInStruct(t *testing.T) {
	var page struct {
		Title   string  `json:"title"`
		Content Content `json:"content"`
		Missing Content `json:"missing"`
		Nulled  Content `json:"nulled"`
	}
	raw := `{"title":"FAQ","content":"Line one\nLine two","nulled":null}`
	if err := json.Unmarshal([]byte(raw), &page); err != nil {
		t.Fatal(err)
	}
	if page.Content.Kind() != Plain {
		t.Fatalf("content kind = %v", page.Content.Kind())
	}
	if !page.Missing.IsEmpty() || !page.Nulled.IsEmpty() {
		t.Fatal("missing and null fields should be empty")
	}
}

func TestContent_MarshalJSON(t *testing.T) {
	tests := []struct {
		c    Content
		want string
	}{
		{Content{}, "null"},
		{FromPlain("hi"), `"hi"`},
		{FromHTML("<p>x</p>"), `"<p>x</p>"`},
		{FromBlocks([]Node{{Type: TypeText, Text: "t", Marks: Marks{Bold: true}}}), `[{"type":"text","text":"t","bold":true}]`},
	}
	for _, tt := range tests {
		b, err := json.Marshal(tt.c)
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != tt.want {
			t.Errorf("Marshal(%v) = %s, want %s", tt.c.Kind(), b, tt.want)
		}
	}
}

func TestRenderSafe_StripsScript(t *testing.T) {
	got := RenderSafe("<p>hello <script>alert(1)</script>world</p>")
	if got != "<p>hello world</p>" {
		t.Fatalf("RenderSafe = %q", got)
	}
}

func TestRenderSafe_StripsEventHandlers(t *testing.T) {
	got := RenderSafe(`<p onclick="steal()">hi</p>`)
	if got != "<p>hi</p>" {
		t.Fatalf("RenderSafe = %q", got)
	}
}

func TestRenderSafe_DropsJavascriptHref(t *testing.T) {
	c := FromBlocks([]Node{{Type: TypeParagraph, Children: []Node{
		{Type: TypeLink, URL: "javascript:alert(1)", Children: []Node{{Type: TypeText, Text: "click"}}},
	}}})
	got := NewRenderer().Safe(c)
	if strings.Contains(got, "javascript") {
		t.Fatalf("javascript href survived: %q", got)
	}
	if !strings.Contains(got, "click") {
		t.Fatalf("link text lost: %q", got)
	}
}

func TestRenderSafe_KeepsRenderedMarkup(t *testing.T) {
	c := decodeBlocks(t, `[
		{"type":"heading","level":2,"children":[{"type":"text","text":"Title"}]},
		{"type":"list","format":"ordered","children":[{"type":"list-item","children":[{"type":"text","text":"a","bold":true}]}]}]`)
	want := "<h2>Title</h2>\n<ol><li><strong>a</strong></li></ol>"
	if got := NewRenderer().Safe(c); got != want {
		t.Fatalf("Safe = %q, want %q", got, want)
	}

	link := Render(`<a href="https://example.com" target="_blank" rel="noopener noreferrer">x</a>`)
	safe := RenderSafe(link)
	for _, want := range []string{`href="https://example.com"`, `target="_blank"`, `rel="noopener noreferrer"`} {
		if !strings.Contains(safe, want) {
			t.Errorf("sanitized link %q missing %s", safe, want)
		}
	}
}

func TestRenderSafe_UnwrapsDisallowedTags(t *testing.T) {
	got := RenderSafe(`<div><iframe src="https://evil.example"></iframe><p>kept</p></div>`)
	if strings.Contains(got, "div") || strings.Contains(got, "iframe") {
		t.Fatalf("disallowed tags survived: %q", got)
	}
	if !strings.Contains(got, "<p>kept</p>") {
		t.Fatalf("allowed content lost: %q", got)
	}
}

func TestRenderSafe_Empty(t *testing.T) {
	if got := RenderSafe(nil); got != "" {
		t.Fatalf("RenderSafe(nil) = %q", got)
	}
}

func TestPlainText(t *testing.T) {
	c := FromHTML("<p>Hello <strong>world</strong></p>\n<ul><li>one</li><li>two</li></ul>")
	if got := PlainText(c); got != "Hello world one two" {
		t.Fatalf("PlainText = %q", got)
	}
	if got := PlainText(Content{}); got != "" {
		t.Fatalf("PlainText(empty) = %q", got)
	}
	if got := PlainText(FromHTML("<p>a<script>x()</script>b</p>")); got != "ab" {
		t.Fatalf("PlainText with script = %q", got)
	}
}

func TestExcerpt(t *testing.T) {
	c := FromPlain("one two three four")
	for _, tt := range []struct {
		max  int
		want string
	}{
		{7, "one two…"},
		{8, "one two…"},
		{9, "one two…"},
		{13, "one two three…"},
		{3, "one…"},
		{2, "on…"},
	} {
		if got := Excerpt(c, tt.max); got != tt.want {
			t.Errorf("Excerpt(%d) = %q, want %q", tt.max, got, tt.want)
		}
	}
	if got := Excerpt(c, 100); got != "one two three four" {
		t.Fatalf("Excerpt long = %q", got)
	}
	if got := Excerpt(c, 0); got != "one two three four" {
		t.Fatalf("Excerpt(0) = %q", got)
	}
}

func TestKindString(t *testing.T) {
	want := map[Kind]string{Empty: "empty", HTML: "html", Plain: "plain", Blocks: "blocks"}
	for k, s := range want {
		if k.String() != s {
			t.Errorf("%d.String() = %q, want %q", k, k.String(), s)
		}
	}
}
