package sitehandler

import (
	"path"
	"strings"
)

// cacheControlFor picks the policy for a file in the site. Only files under
// the asset prefix carry a content hash in their name, so only they are
// immutable; public/ images keep their names across deploys.
func cacheControlFor(name string, o *Options) string {
	ext := strings.ToLower(path.Ext(name))
	switch {
	case ext == ".html" || ext == "":
		return o.HTMLCacheControl
	case strings.HasPrefix(name, o.AssetPrefix):
		return o.AssetCacheControl
	case ext == ".xml" || ext == ".txt" || ext == ".json" || ext == ".webmanifest":
		return o.HTMLCacheControl
	default:
		return o.OtherCacheControl
	}
}
