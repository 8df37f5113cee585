package gositemapgenerator

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
)

func TestHandle(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "maps"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	files := map[string]string{
		filepath.Join(dir, "maps", "sitemap.xml.gz"): "gz",
		filepath.Join(dir, "maps", "notes.txt"):      "txt",
		filepath.Join(dir, "robots.txt"):             "User-agent: *\n",
	}
	for path, body := range files {
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	router := mux.NewRouter()
	Handle(router, ServeOptions{PublicPath: dir, SitemapsPath: "maps", Robots: true})

	cases := []struct {
		path        string
		status      int
		contentType string
	}{
		{"/maps/sitemap.xml.gz", http.StatusOK, "application/x-gzip"},
		{"/maps/sitemap1.xml.gz", http.StatusNotFound, ""},
		{"/maps/notes.txt", http.StatusNotFound, ""},
		{"/robots.txt", http.StatusOK, "text/plain; charset=utf-8"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rec.Code != tc.status {
			t.Fatalf("%s: expected status %d, got %d", tc.path, tc.status, rec.Code)
		}
		if tc.contentType != "" && rec.Header().Get("Content-Type") != tc.contentType {
			t.Fatalf("%s: unexpected content type %q", tc.path, rec.Header().Get("Content-Type"))
		}
	}
}
