package richtext

import (
	"regexp"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// Renderer renders content through an allow-list sanitizer. The policy
// admits exactly the markup the block renderer produces, so sanitizing
// rendered blocks is lossless while anything else an editor pasted into an
// HTML field is reduced to text.
type Renderer struct {
	policy *bluemonday.Policy
}

func NewRenderer() *Renderer {
	return &Renderer{policy: newPolicy()}
}

func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "strong", "em", "u", "s", "code",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("target").Matching(regexp.MustCompile(`^_blank$`)).OnElements("a")
	p.AllowAttrs("rel").Matching(regexp.MustCompile(`^[a-z]+( [a-z]+)*$`)).OnElements("a")

	// href must parse and be relative, http(s), mailto or tel; anything
	// else (javascript:, data:) drops the attribute and with it the <a>.
	p.RequireParseableURLs(true)
	p.AllowRelativeURLs(true)
	p.AllowURLSchemes("http", "https", "mailto", "tel")
	return p
}

// Safe renders c and sanitizes the result. <script> regions are removed
// with their contents, on* handler attributes are dropped and disallowed
// tags are unwrapped.
func (r *Renderer) Safe(c Content) string {
	html := c.HTML()
	if html == "" {
		return ""
	}
	return r.policy.Sanitize(html)
}

// SanitizeHTML applies the policy to an arbitrary HTML string.
func (r *Renderer) SanitizeHTML(s string) string {
	return r.policy.Sanitize(s)
}

var defaultRenderer = sync.OnceValue(NewRenderer)

// RenderSafe is Render followed by sanitization with the default policy.
func RenderSafe(v any) string {
	return defaultRenderer().Safe(Classify(v))
}
