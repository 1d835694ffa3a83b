// Package richtext turns CMS content fields into HTML.
//
// A field arrives from Strapi as one of three shapes: a plain string with
// blank-line separated paragraphs, a pre-formed HTML string, or a Strapi 5
// "blocks" tree. The shape is classified once, when the value is decoded,
// into a [Content]; rendering never inspects raw JSON again.
//
// Rendering is lenient. Unknown block or inline types render as nothing and
// malformed values degrade to empty output, so one bad field cannot break a
// page build. [Content.HTML] does not escape text; callers rendering content
// they do not trust use [RenderSafe] or a [Renderer].
package richtext

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

type Kind uint8

const (
	Empty Kind = iota
	HTML
	Plain
	Blocks
)

func (k Kind) String() string {
	switch k {
	case HTML:
		return "html"
	case Plain:
		return "plain"
	case Blocks:
		return "blocks"
	default:
		return "empty"
	}
}

// Content is a classified CMS content value. The zero value is Empty.
type Content struct {
	kind   Kind
	text   string
	blocks []Node
}

func FromHTML(s string) Content {
	if s == "" {
		return Content{}
	}
	return Content{kind: HTML, text: s}
}

func FromPlain(s string) Content {
	if s == "" {
		return Content{}
	}
	return Content{kind: Plain, text: s}
}

func FromBlocks(nodes []Node) Content {
	if nodes == nil {
		return Content{}
	}
	return Content{kind: Blocks, blocks: nodes}
}

func (c Content) Kind() Kind      { return c.kind }
func (c Content) IsEmpty() bool   { return c.kind == Empty }
func (c Content) Blocks() []Node  { return c.blocks }
func (c Content) String() string  { return c.HTML() }
func (c Content) RawText() string { return c.text }

// Classify inspects a decoded JSON value (as produced by encoding/json into
// an any) and decides which shape it is:
//
//  1. null, "", false and 0 are Empty
//  2. a string containing both '<' and '>' is HTML
//  3. any other string is Plain
//  4. an array is a Blocks document
//  5. an object with a non-empty "type" is a one-block document
//  6. other numbers and booleans are stringified as Plain; objects without
//     a type are Empty
//
// Content values and []Node are accepted as-is.
func Classify(v any) Content {
	switch t := v.(type) {
	case nil:
		return Content{}
	case Content:
		return t
	case *Content:
		if t == nil {
			return Content{}
		}
		return *t
	case []Node:
		return FromBlocks(t)
	case string:
		return classifyString(t)
	case []any:
		nodes := make([]Node, 0, len(t))
		for _, el := range t {
			nodes = append(nodes, nodeFrom(el))
		}
		return Content{kind: Blocks, blocks: nodes}
	case map[string]any:
		if typ, _ := t["type"].(string); typ != "" {
			return Content{kind: Blocks, blocks: []Node{nodeFrom(t)}}
		}
		return Content{}
	case bool:
		if !t {
			return Content{}
		}
		return FromPlain("true")
	case json.Number:
		if f, err := t.Float64(); err == nil && f == 0 {
			return Content{}
		}
		return FromPlain(t.String())
	case float64:
		return classifyNumber(t)
	case int:
		return classifyNumber(float64(t))
	case int64:
		return classifyNumber(float64(t))
	default:
		return Content{}
	}
}

func classifyString(s string) Content {
	switch {
	case s == "":
		return Content{}
	case strings.Contains(s, "<") && strings.Contains(s, ">"):
		return Content{kind: HTML, text: s}
	default:
		return Content{kind: Plain, text: s}
	}
}

func classifyNumber(f float64) Content {
	if f == 0 || math.IsNaN(f) {
		return Content{}
	}
	return FromPlain(strconv.FormatFloat(f, 'f', -1, 64))
}

// UnmarshalJSON classifies the field at decode time. It never fails on a
// well-formed JSON value, whatever its shape.
func (c *Content) UnmarshalJSON(data []byte) error {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return err
	}
	*c = Classify(v)
	return nil
}

// MarshalJSON writes the content back in its CMS shape: null, a string or
// a block array.
func (c Content) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case HTML, Plain:
		return json.Marshal(c.text)
	case Blocks:
		return json.Marshal(c.blocks)
	default:
		return []byte("null"), nil
	}
}

// truthy mirrors how the CMS client treated optional flags and values.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0 && !math.IsNaN(t)
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	default:
		return true
	}
}
