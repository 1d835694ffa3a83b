// Package webassets embeds the pages served when the built site is missing
// or a path has no page of its own.
package webassets

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed fallback
var embedded embed.FS

// FallbackFS is rooted at fallback/ and holds maintenance.html and 404.html.
func FallbackFS() fs.FS {
	sub, err := fs.Sub(embedded, "fallback")
	if err != nil {
		panic(fmt.Errorf("webassets: fallback subfs: %w", err))
	}
	return sub
}
