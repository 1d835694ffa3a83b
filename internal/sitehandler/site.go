package sitehandler

import (
	"io/fs"
	"os"
	"sync/atomic"
)

// DirSite serves a build output directory from disk. It reports ready once
// index.html exists, so the server can start before the first build lands.
type DirSite struct {
	root  string
	fsys  fs.FS
	ready atomic.Bool
}

func NewDirSite(root string) *DirSite {
	return &DirSite{root: root, fsys: os.DirFS(root)}
}

func (d *DirSite) Root() string { return d.root }

func (d *DirSite) SiteFS() (fs.FS, bool) {
	if d.ready.Load() {
		return d.fsys, true
	}
	if existsFile(d.fsys, "index.html") {
		d.ready.Store(true)
		return d.fsys, true
	}
	return nil, false
}

// FSSite wraps an fs.FS that is always ready, e.g. an embedded build.
type FSSite struct{ FS fs.FS }

func (s FSSite) SiteFS() (fs.FS, bool) { return s.FS, s.FS != nil }
