package richtext

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Node types as emitted by the Strapi 5 blocks editor.
const (
	TypeParagraph = "paragraph"
	TypeHeading   = "heading"
	TypeList      = "list"
	TypeListItem  = "list-item"
	TypeText      = "text"
	TypeLink      = "link"
)

// Marks are the inline formatting flags on a text node.
type Marks struct {
	Bold          bool `json:"bold,omitempty"`
	Italic        bool `json:"italic,omitempty"`
	Underline     bool `json:"underline,omitempty"`
	Strikethrough bool `json:"strikethrough,omitempty"`
	Code          bool `json:"code,omitempty"`
}

// Node is one element of a blocks tree: a block (paragraph, heading, list,
// list-item) or an inline leaf (text, link). Fields that do not apply to a
// node's type are left zero. Unknown types are kept so they can be dropped
// at render time.
type Node struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`
	Marks

	// link
	URL string `json:"url,omitempty"`

	// heading, 1..6 after clamping
	Level int `json:"level,omitempty"`

	// list: "ordered" or "unordered"
	Format string `json:"format,omitempty"`

	Children []Node `json:"children,omitempty"`
}

// UnmarshalJSON decodes leniently: wrong-typed fields are ignored rather
// than failing the whole document.
func (n *Node) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = nodeFrom(v)
	return nil
}

// nodeFrom converts a decoded JSON value into a Node. Non-objects become a
// Node with an empty type, which renders as nothing.
func nodeFrom(v any) Node {
	m, ok := v.(map[string]any)
	if !ok {
		return Node{}
	}

	n := Node{
		Type:   stringField(m["type"]),
		Text:   stringField(m["text"]),
		URL:    stringField(m["url"]),
		Format: stringField(m["format"]),
		Marks: Marks{
			Bold:          truthy(m["bold"]),
			Italic:        truthy(m["italic"]),
			Underline:     truthy(m["underline"]),
			Strikethrough: truthy(m["strikethrough"]),
			Code:          truthy(m["code"]),
		},
	}
	if n.Type == TypeHeading {
		n.Level = clampLevel(intField(m["level"]))
	}
	if kids, ok := m["children"].([]any); ok {
		n.Children = make([]Node, 0, len(kids))
		for _, k := range kids {
			n.Children = append(n.Children, nodeFrom(k))
		}
	}
	return n
}

func stringField(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func intField(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i)
		}
		if f, err := t.Float64(); err == nil {
			return int(f)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return i
		}
	}
	return 0
}

func clampLevel(l int) int {
	switch {
	case l < 1:
		return 1
	case l > 6:
		return 6
	default:
		return l
	}
}
