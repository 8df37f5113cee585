package gositemapgenerator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test that requires network listener: %v", err)
	}
	server := httptest.NewUnstartedServer(handler)
	server.Listener = listener
	server.Start()
	return server
}

func collectItems(reader *Reader, loc string) ([]Item, error) {
	var items []Item
	err := reader.Walk(context.Background(), loc, func(item Item) error {
		items = append(items, item)
		return nil
	})
	return items, err
}

func generateTo(t *testing.T, dir, host string, links int) string {
	t.Helper()
	ls, err := New(Options{DefaultHost: host, PublicPath: dir, MaxSitemapLinks: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	for i := 0; i < links; i++ {
		priority := 0.5
		if err := ls.Add(ctx, fmt.Sprintf("/page/%d", i), EntryOptions{ChangeFreq: Daily, Priority: &priority, LastMod: Date(2024, 3, 1)}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if err := ls.Finalize(ctx); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	indexURL, err := ls.IndexURL()
	if err != nil {
		t.Fatalf("IndexURL: %v", err)
	}
	return indexURL
}

func TestReader_Walk_Local(t *testing.T) {
	dir := t.TempDir()
	indexURL := generateTo(t, dir, "https://example.com", 5)

	reader := NewReader(ReaderOptions{Host: "https://example.com", PublicPath: dir})
	items, err := collectItems(reader, indexURL)
	if err != nil {
		t.Fatalf("walk failed: %v", err)
	}
	if len(items) != 5 {
		t.Fatalf("expected 5 items, got %d", len(items))
	}
	if items[0].Loc != "https://example.com/page/0" || items[4].Loc != "https://example.com/page/4" {
		t.Fatalf("unexpected order: %s .. %s", items[0].Loc, items[4].Loc)
	}
	if items[0].ChangeFreq != "daily" || items[0].Priority == nil || *items[0].Priority != 0.5 {
		t.Fatalf("unexpected item %+v", items[0])
	}
	if items[0].LastMod == nil || items[0].LastMod.Year() != 2024 {
		t.Fatalf("expected lastmod to be parsed, got %v", items[0].LastMod)
	}
	if items[4].Sitemap != "https://example.com/sitemap2.xml.gz" {
		t.Fatalf("expected sitemap2.xml.gz, got %s", items[4].Sitemap)
	}
}

func TestReader_Inspect_OverHTTP(t *testing.T) {
	dir := t.TempDir()
	router := mux.NewRouter()
	Handle(router, ServeOptions{PublicPath: dir})
	server := newTestServer(t, router)
	defer server.Close()

	indexURL := generateTo(t, dir, server.URL, 3)
	reader := NewReader(ReaderOptions{})
	report, err := reader.Inspect(context.Background(), indexURL)
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if report.URLs != 3 || len(report.Documents) != 3 {
		t.Fatalf("unexpected report %+v", report)
	}
	if !report.Documents[0].Index || report.Documents[0].Entries != 2 {
		t.Fatalf("expected the index first, got %+v", report.Documents[0])
	}
}

func TestReader_Walk_PlainAndGzip(t *testing.T) {
	const plain = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url>
    <loc>https://example.com/plain</loc>
    <image:image><image:loc>https://example.com/a.png</image:loc></image:image>
  </url>
</urlset>`
	gzipped, err := gzipBytes([]byte(plain))
	if err != nil {
		t.Fatalf("gzip: %v", err)
	}

	server := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			_, _ = w.Write([]byte(plain))
		case "/sitemap.xml.gz":
			_, _ = w.Write(gzipped)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	reader := NewReader(ReaderOptions{})
	for _, path := range []string{"/sitemap.xml", "/sitemap.xml.gz"} {
		items, err := collectItems(reader, server.URL+path)
		if err != nil {
			t.Fatalf("walk %s failed: %v", path, err)
		}
		if len(items) != 1 || items[0].Images != 1 {
			t.Fatalf("unexpected items for %s: %+v", path, items)
		}
	}
}

func TestReader_RetriesTooManyRequests(t *testing.T) {
	var calls int32
	server := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat))
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`<urlset><url><loc>https://example.com/</loc></url></urlset>`))
	}))
	defer server.Close()

	items, err := collectItems(NewReader(ReaderOptions{}), server.URL+"/sitemap.xml")
	if err != nil {
		t.Fatalf("walk failed: %v", err)
	}
	if len(items) != 1 || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected a retry, got %d items after %d calls", len(items), calls)
	}
}

func TestReader_Errors(t *testing.T) {
	server := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/broken.xml":
			_, _ = w.Write([]byte(`<urlset><url><loc>https://example.com/</loc>`))
		case "/ok.xml":
			_, _ = w.Write([]byte(`<urlset><url><loc>https://example.com/</loc></url></urlset>`))
		case "/a.xml":
			_, _ = w.Write([]byte(`<sitemapindex><sitemap><loc>` + "http://" + r.Host + `/b.xml</loc></sitemap></sitemapindex>`))
		case "/b.xml":
			_, _ = w.Write([]byte(`<sitemapindex><sitemap><loc>` + "http://" + r.Host + `/ok.xml</loc></sitemap></sitemapindex>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()
	reader := NewReader(ReaderOptions{MaxDepth: 1})

	var readErr *ErrRead
	if _, err := collectItems(reader, server.URL+"/missing.xml"); !errors.As(err, &readErr) || readErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected ErrRead with 404, got %v", err)
	}

	var parseErr *ErrSitemapParse
	if _, err := collectItems(reader, server.URL+"/broken.xml"); !errors.As(err, &parseErr) {
		t.Fatalf("expected ErrSitemapParse, got %v", err)
	}

	var depthErr *ErrMaxDepth
	if _, err := collectItems(reader, server.URL+"/a.xml"); !errors.As(err, &depthErr) {
		t.Fatalf("expected ErrMaxDepth, got %v", err)
	}

	stop := errors.New("stop")
	err := reader.Walk(context.Background(), server.URL+"/ok.xml", func(Item) error { return stop })
	var yieldErr *ErrYield
	if !errors.As(err, &yieldErr) || !errors.Is(err, stop) {
		t.Fatalf("expected ErrYield wrapping the callback error, got %v", err)
	}
}

func TestReader_LocalPathStaysInside(t *testing.T) {
	reader := NewReader(ReaderOptions{Host: "https://example.com", PublicPath: "public"})
	if _, ok := reader.localPath("https://example.com/../etc/passwd"); ok {
		t.Fatalf("expected paths escaping the public path to be rejected")
	}
	if _, ok := reader.localPath("https://other.example.com/sitemap.xml"); ok {
		t.Fatalf("expected foreign hosts to be fetched")
	}
	path, ok := reader.localPath("https://example.com/maps/sitemap.xml.gz")
	if !ok || !strings.HasSuffix(path, "sitemap.xml.gz") {
		t.Fatalf("unexpected local path %q", path)
	}
}
