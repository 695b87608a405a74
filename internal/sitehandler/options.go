package sitehandler

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/cyberbrosec/cyberbro-web/internal/log"
)

var ErrInvalidOptions = errors.New("sitehandler: invalid options")

type Options struct {
	Logger log.Logger

	// SiteFS holds the prerendered site (index.html at the root).
	SiteFS fs.FS

	// file names inside SiteFS (relative path)
	NotFoundFile string // default: "404.html"

	// Cache policies applied by file extension.
	HTMLCacheControl  string // default: "no-cache"
	AssetCacheControl string // default: "public, max-age=31536000, immutable"
	OtherCacheControl string // default: "public, max-age=3600"
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = log.Nop()
	}
	if o.NotFoundFile == "" {
		o.NotFoundFile = "404.html"
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
	if o.SiteFS == nil {
		return fmt.Errorf("%w: SiteFS is nil", ErrInvalidOptions)
	}
	// Fail fast on boot if the site was not packaged.
	if _, err := fs.Stat(o.SiteFS, "index.html"); err != nil {
		return fmt.Errorf("%w: missing index.html in site FS: %v", ErrInvalidOptions, err)
	}
	return nil
}
