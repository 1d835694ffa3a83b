package strapi

import (
	"net/url"
	"strings"
)

type Param struct {
	Key   string
	Value string
}

// Query is an ordered list of query parameters. Order is kept as written so
// request URLs read the way the Strapi docs write them.
type Query []Param

func (q Query) Encode() string {
	if len(q) == 0 {
		return ""
	}
	parts := make([]string, 0, len(q))
	for _, p := range q {
		parts = append(parts, url.QueryEscape(p.Key)+"="+url.QueryEscape(p.Value))
	}
	return strings.Join(parts, "&")
}

// Published restricts a collection to entries with a publishedAt date.
func Published() Param {
	return Param{"filters[publishedAt][$notNull]", "true"}
}

func Sort(field string) Param { return Param{"sort", field} }

// Fields limits the returned attributes, comma separated as Strapi v5 expects.
func Fields(names ...string) Param { return Param{"fields", strings.Join(names, ",")} }

func Populate(key, value string) Param {
	if key == "" {
		return Param{"populate", value}
	}
	return Param{"populate" + key, value}
}
