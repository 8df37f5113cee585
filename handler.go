package gositemapgenerator

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
)

// ServeOptions configures Handle.
type ServeOptions struct {
	// PublicPath is the directory generated files were written to (default "public").
	PublicPath string
	// SitemapsPath is the directory below PublicPath, also used as the URL prefix.
	SitemapsPath string
	// Robots also serves PublicPath/robots.txt.
	Robots bool
}

// Handle registers routes serving generated sitemaps from disk on router and
// returns the sitemap handler. Only names ending in .xml or .xml.gz are served.
func Handle(router *mux.Router, opts ServeOptions) http.Handler {
	if opts.PublicPath == "" {
		opts.PublicPath = defaultPublicPath
	}
	h := &sitemapHandler{dir: filepath.Join(opts.PublicPath, filepath.FromSlash(opts.SitemapsPath))}
	prefix := path.Join("/", opts.SitemapsPath)
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	router.Handle(prefix+`{file:[A-Za-z0-9_.-]+\.xml(?:\.gz)?}`, h).Methods(http.MethodGet, http.MethodHead)
	if opts.Robots {
		robots := filepath.Join(opts.PublicPath, robotsFilename)
		router.HandleFunc("/"+robotsFilename, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			http.ServeFile(w, r, robots)
		}).Methods(http.MethodGet, http.MethodHead)
	}
	return h
}

type sitemapHandler struct {
	dir string
}

// ServeHTTP serves one generated file. Compressed files are sent as stored.
func (h *sitemapHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["file"]
	if name == "" || strings.Contains(name, "..") {
		http.NotFound(w, r)
		return
	}
	full := filepath.Join(h.dir, name)
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	if strings.HasSuffix(name, ".gz") {
		w.Header().Set("Content-Type", "application/x-gzip")
	} else {
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	}
	http.ServeFile(w, r, full)
}
