package sitehandler

import (
	"io/fs"
	"path"
	"strings"

	"github.com/rwaddinsall/hcf2025/internal/pathutil"
)

// resolvePath maps a URL path onto directory-format build output. It
// returns the file to serve, or a redirect target for a directory asked
// for without its trailing slash. ok is false when nothing matches.
func resolvePath(urlPath string, fsys fs.FS) (file, redirectTo string, ok bool) {
	if !strings.HasPrefix(urlPath, "/") {
		urlPath = "/" + urlPath
	}
	if !pathutil.Safe(urlPath) {
		return "", "", false
	}

	name := strings.TrimPrefix(path.Clean(urlPath), "/")
	isDir := name == "" || strings.HasSuffix(urlPath, "/")

	switch {
	case isDir:
		file = path.Join(name, "index.html")
	case path.Ext(name) != "":
		file = name
	default:
		if existsFile(fsys, name+"/index.html") {
			return "", "/" + name + "/", true
		}
		return "", "", false
	}

	if !existsFile(fsys, file) {
		return "", "", false
	}
	return file, "", true
}

func existsFile(fsys fs.FS, name string) bool {
	if !fs.ValidPath(name) {
		return false
	}
	info, err := fs.Stat(fsys, name)
	return err == nil && !info.IsDir()
}
