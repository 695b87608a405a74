package sitehandler

import (
	"io/fs"
	"path"
	"strings"

	"github.com/cyberbrosec/cyberbro-web/internal/pathutil"
)

// resolvePath maps a URL path to a file within an FS.
//
// Extensionless paths are served from <path>/index.html or <path>.html
// directly rather than redirected: the canonical-URL middleware strips
// trailing slashes, so slashless is the canonical form here.
func resolvePath(urlPath string, fsys fs.FS) (file string, ok bool) {
	p := urlPath
	if p == "" {
		p = "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	// basic rejection of ambiguous/unsafe paths
	if strings.Contains(p, "\x00") || strings.Contains(p, "\\") || strings.Contains(p, "..") {
		return "", false
	}
	if pathutil.HasDotSegments(p) {
		return "", false
	}

	clean := path.Clean(p)

	// root -> index.html
	if clean == "/" {
		name := "index.html"
		if existsFile(fsys, name) {
			return name, true
		}
		return "", false
	}

	name := strings.TrimPrefix(clean, "/")

	// if it has an extension treat as a file
	if path.Ext(clean) != "" {
		if existsFile(fsys, name) {
			return name, true
		}
		return "", false
	}

	// pretty URL: /about -> about/index.html, then about.html
	if dirIndex := name + "/index.html"; existsFile(fsys, dirIndex) {
		return dirIndex, true
	}
	if flat := name + ".html"; existsFile(fsys, flat) {
		return flat, true
	}

	return "", false
}

func existsFile(fsys fs.FS, name string) bool {
	if name == "" || !fs.ValidPath(name) {
		return false
	}
	info, err := fs.Stat(fsys, name)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
