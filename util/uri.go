package util

import (
	"net/url"
	"path/filepath"
	"strings"
)

// PathToURI converts a filesystem path into a file:// URI.
func PathToURI(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String()
}

// URIToPath converts a file:// URI back into a filesystem path. Anything that
// is not a file URI is returned unchanged.
func URIToPath(uri string) string {
	if !strings.HasPrefix(uri, "file://") {
		return uri
	}
	u, err := url.Parse(uri)
	if err != nil {
		return filepath.FromSlash(uri[len("file://"):])
	}
	return filepath.FromSlash(u.Path)
}
