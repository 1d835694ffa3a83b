package sitehandler

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/rwaddinsall/hcf2025/internal/log"
)

var ErrInvalidOptions = errors.New("sitehandler: invalid options")

// SiteProvider returns the built site to serve; ok is false while there is
// nothing servable yet.
type SiteProvider interface {
	SiteFS() (fs.FS, bool)
}

type Options struct {
	Logger log.Logger
	Site   SiteProvider
	// FallbackFS holds the maintenance page and a plain 404.
	FallbackFS fs.FS

	MaintenanceFile string // in FallbackFS, default "maintenance.html"
	Fallback404File string // in FallbackFS, default "404.html"
	Site404File     string // in the site, default "404.html"

	// AssetPrefix is the directory of content-hashed build output, which
	// is cached forever. Default "_astro/".
	AssetPrefix string

	HTMLCacheControl  string // default "no-cache"
	AssetCacheControl string // default "public, max-age=31536000, immutable"
	OtherCacheControl string // default "public, max-age=3600"
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = log.Nop()
	}
	if o.MaintenanceFile == "" {
		o.MaintenanceFile = "maintenance.html"
	}
	if o.Fallback404File == "" {
		o.Fallback404File = "404.html"
	}
	if o.Site404File == "" {
		o.Site404File = "404.html"
	}
	if o.AssetPrefix == "" {
		o.AssetPrefix = "_astro/"
	}
	if o.HTMLCacheControl == "" {
		o.HTMLCacheControl = "no-cache"
	}
	if o.AssetCacheControl == "" {
		o.AssetCacheControl = "public, max-age=31536000, immutable"
	}
	if o.OtherCacheControl == "" {
		o.OtherCacheControl = "public, max-age=3600"
	}
}

func (o *Options) validate() error {
	if o.Site == nil {
		return fmt.Errorf("%w: Site is nil", ErrInvalidOptions)
	}
	if o.FallbackFS == nil {
		return fmt.Errorf("%w: FallbackFS is nil", ErrInvalidOptions)
	}
	if _, err := fs.Stat(o.FallbackFS, o.MaintenanceFile); err != nil {
		return fmt.Errorf("%w: missing %q in fallback FS: %v", ErrInvalidOptions, o.MaintenanceFile, err)
	}
	return nil
}
