package gositemapgenerator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func mustEntry(t *testing.T, path string) *URLEntry {
	t.Helper()
	entry, err := NewURLEntry(path, "https://example.com", EntryOptions{})
	if err != nil {
		t.Fatalf("NewURLEntry(%q): %v", path, err)
	}
	return entry
}

func newTestFile(limits FileLimits) (*SitemapFile, *MemoryAdapter) {
	mem := NewMemoryAdapter()
	loc := NewLocation(LocationOptions{Host: "https://example.com", Namer: NewNamer("sitemap", NamerOptions{})})
	return NewSitemapFile(loc, mem, limits), mem
}

func TestSitemapFile_AddAndFinalize(t *testing.T) {
	file, mem := newTestFile(FileLimits{})
	if !file.Empty() || file.Size() != len(urlsetOpen)+len(urlsetClose) {
		t.Fatalf("unexpected initial state: empty=%v size=%d", file.Empty(), file.Size())
	}
	for i := 0; i < 3; i++ {
		n, err := file.Add(mustEntry(t, fmt.Sprintf("/p/%d", i)))
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		if n != i+1 {
			t.Fatalf("expected count %d, got %d", i+1, n)
		}
	}
	if err := file.Finalize(context.Background()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	data, ok := mem.Get(filepath.Join("public", "sitemap.xml.gz"))
	if !ok {
		t.Fatalf("nothing written, have %v", mem.Paths())
	}
	if len(data) != file.Size() {
		t.Fatalf("written %d bytes, size reports %d", len(data), file.Size())
	}
	if !strings.HasPrefix(string(data), urlsetOpen) || !strings.HasSuffix(string(data), urlsetClose) {
		t.Fatalf("document is not wrapped in urlset:\n%s", data)
	}
	if got := strings.Count(string(data), "<url>"); got != 3 {
		t.Fatalf("expected 3 urls, got %d", got)
	}
	if file.Location().Namer().String() != "sitemap1.xml.gz" {
		t.Fatalf("expected Finalize to advance the namer, got %q", file.Location().Namer().String())
	}
	if file.LastMod().IsZero() || !file.Finalized() {
		t.Fatalf("expected finalized state")
	}
}

func TestSitemapFile_FinalizedIsImmutable(t *testing.T) {
	file, _ := newTestFile(FileLimits{})
	ctx := context.Background()
	if err := file.Finalize(ctx); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	var finalized *ErrFinalized
	if err := file.Finalize(ctx); !errors.As(err, &finalized) {
		t.Fatalf("expected ErrFinalized on second finalize, got %v", err)
	}
	if _, err := file.Add(mustEntry(t, "/late")); !errors.As(err, &finalized) {
		t.Fatalf("expected ErrFinalized on add, got %v", err)
	}
}

func TestSitemapFile_LinkLimit(t *testing.T) {
	file, _ := newTestFile(FileLimits{MaxLinks: 2})
	file.Add(mustEntry(t, "/a"))
	file.Add(mustEntry(t, "/b"))
	_, err := file.Add(mustEntry(t, "/c"))
	var full *ErrSitemapFull
	if !errors.As(err, &full) {
		t.Fatalf("expected ErrSitemapFull, got %v", err)
	}
	if full.LinkCount != 2 || file.LinkCount() != 2 {
		t.Fatalf("unexpected link count %d", full.LinkCount)
	}
}

func TestSitemapFile_SizeLimitIsStrict(t *testing.T) {
	entry := mustEntry(t, "/a")
	base := len(urlsetOpen) + len(urlsetClose)

	file, _ := newTestFile(FileLimits{MaxFileSize: base + entry.Size()})
	if _, err := file.Add(entry); err == nil {
		t.Fatalf("expected an entry reaching the limit exactly to be rejected")
	}
	file, _ = newTestFile(FileLimits{MaxFileSize: base + entry.Size() + 1})
	if _, err := file.Add(entry); err != nil {
		t.Fatalf("expected entry to fit: %v", err)
	}
}

func TestSitemapFile_NewsLimit(t *testing.T) {
	file, _ := newTestFile(FileLimits{MaxNews: 1})
	news := func(path string) *URLEntry {
		entry, err := NewURLEntry(path, "https://example.com", EntryOptions{News: &News{PublicationName: "P", PublicationLanguage: "en", Title: "T"}})
		if err != nil {
			t.Fatalf("NewURLEntry: %v", err)
		}
		return entry
	}
	if _, err := file.Add(news("/n1")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := file.Add(news("/n2")); err == nil {
		t.Fatalf("expected news limit to reject the second news entry")
	}
	if _, err := file.Add(mustEntry(t, "/plain")); err != nil {
		t.Fatalf("plain entries are not bound by the news limit: %v", err)
	}
	if file.NewsCount() != 1 {
		t.Fatalf("expected 1 news entry, got %d", file.NewsCount())
	}
}

func TestSitemapFile_NewSharesNamer(t *testing.T) {
	file, mem := newTestFile(FileLimits{})
	ctx := context.Background()
	file.Add(mustEntry(t, "/a"))
	if err := file.Finalize(ctx); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	next := file.New()
	if next.Location().Namer() != file.Location().Namer() {
		t.Fatalf("expected New to share the namer")
	}
	if !next.Empty() || next.Finalized() {
		t.Fatalf("expected a fresh file")
	}
	next.Add(mustEntry(t, "/b"))
	if err := next.Finalize(ctx); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	want := []string{filepath.Join("public", "sitemap.xml.gz"), filepath.Join("public", "sitemap1.xml.gz")}
	if got := mem.Paths(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

type failingAdapter struct{ err error }

func (f failingAdapter) Write(context.Context, *Location, []byte) error { return f.err }

func TestSitemapFile_StorageErrorIsWrapped(t *testing.T) {
	boom := errors.New("disk full")
	loc := NewLocation(LocationOptions{Host: "https://example.com", Filename: "s.xml"})
	file := NewSitemapFile(loc, failingAdapter{err: boom}, FileLimits{})
	err := file.Finalize(context.Background())
	var storageErr *ErrStorageWrite
	if !errors.As(err, &storageErr) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped storage error, got %v", err)
	}
	if file.Finalized() {
		t.Fatalf("a failed write must not freeze the file")
	}
}

func TestSitemapIndexFile_AutoPolicy(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryAdapter()
	namer := NewNamer("sitemap", NamerOptions{})
	loc := NewLocation(LocationOptions{Host: "https://example.com", Namer: namer})
	indexLoc := loc.With(LocationOverrides{Namer: NewNamer("sitemap", NamerOptions{Zero: "_index"})})

	index := NewSitemapIndexFile(indexLoc, mem, FileLimits{}, CreateIndexAuto)
	first := NewSitemapFile(loc, mem, FileLimits{})
	first.Add(mustEntry(t, "/a"))
	if err := index.AddSitemap(ctx, first); err != nil {
		t.Fatalf("AddSitemap: %v", err)
	}
	if !first.Finalized() {
		t.Fatalf("AddSitemap should finalize the child")
	}
	if index.ShouldCreate() {
		t.Fatalf("one sitemap should not need an index")
	}
	got, err := index.IndexURL()
	if err != nil || got != "https://example.com/sitemap.xml.gz" {
		t.Fatalf("expected first sitemap URL, got %q (%v)", got, err)
	}

	second := first.New()
	second.Add(mustEntry(t, "/b"))
	second.Add(mustEntry(t, "/c"))
	if err := index.AddSitemap(ctx, second); err != nil {
		t.Fatalf("AddSitemap: %v", err)
	}
	if !index.ShouldCreate() || index.SitemapsLinkCount() != 3 {
		t.Fatalf("expected index with 3 links, got create=%v links=%d", index.ShouldCreate(), index.SitemapsLinkCount())
	}
	if err := index.Finalize(ctx); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	data, ok := mem.Get(filepath.Join("public", "sitemap_index.xml.gz"))
	if !ok {
		t.Fatalf("index not written, have %v", mem.Paths())
	}
	doc := string(data)
	a := strings.Index(doc, "<loc>https://example.com/sitemap.xml.gz</loc>")
	b := strings.Index(doc, "<loc>https://example.com/sitemap1.xml.gz</loc>")
	if a < 0 || b < 0 || a > b {
		t.Fatalf("expected both sitemaps in creation order:\n%s", doc)
	}
	if got, _ := index.IndexURL(); got != "https://example.com/sitemap_index.xml.gz" {
		t.Fatalf("expected index URL, got %q", got)
	}
}

func TestSitemapIndexFile_ManualPathForcesIndex(t *testing.T) {
	mem := NewMemoryAdapter()
	loc := NewLocation(LocationOptions{Host: "https://example.com", Filename: "sitemap_index.xml"})
	index := NewSitemapIndexFile(loc, mem, FileLimits{}, CreateIndexAuto)
	if _, err := index.AddPath("/external.xml", IndexEntryOptions{LastMod: Date(2024, time.June, 1)}); err != nil {
		t.Fatalf("AddPath: %v", err)
	}
	if !index.ShouldCreate() {
		t.Fatalf("a manual entry should force the index")
	}
	if err := index.Finalize(context.Background()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	data, _ := mem.Get(loc.Path())
	if !strings.Contains(string(data), "<sitemap><loc>https://example.com/external.xml</loc><lastmod>2024-06-01</lastmod></sitemap>") {
		t.Fatalf("unexpected index:\n%s", data)
	}
}

func TestSitemapIndexFile_NeverPolicyDoesNotWrite(t *testing.T) {
	mem := NewMemoryAdapter()
	loc := NewLocation(LocationOptions{Host: "https://example.com", Filename: "sitemap_index.xml"})
	index := NewSitemapIndexFile(loc, mem, FileLimits{}, CreateIndexNever)
	index.AddPath("/a.xml", IndexEntryOptions{})
	index.AddPath("/b.xml", IndexEntryOptions{})
	if err := index.Finalize(context.Background()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(mem.Paths()) != 0 || index.Written() {
		t.Fatalf("expected no index document, have %v", mem.Paths())
	}
	var finalized *ErrFinalized
	if err := index.Finalize(context.Background()); !errors.As(err, &finalized) {
		t.Fatalf("expected ErrFinalized, got %v", err)
	}
}

func TestSitemapIndexFile_FullIndex(t *testing.T) {
	loc := NewLocation(LocationOptions{Host: "https://example.com", Filename: "sitemap_index.xml"})
	index := NewSitemapIndexFile(loc, NewMemoryAdapter(), FileLimits{MaxLinks: 1}, CreateIndexAlways)
	if _, err := index.AddPath("/a.xml", IndexEntryOptions{}); err != nil {
		t.Fatalf("AddPath: %v", err)
	}
	_, err := index.AddPath("/b.xml", IndexEntryOptions{})
	var full *ErrSitemapFull
	if !errors.As(err, &full) {
		t.Fatalf("expected ErrSitemapFull, got %v", err)
	}
}

func TestSitemapIndexFile_RejectsDuplicateURL(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryAdapter()
	indexLoc := NewLocation(LocationOptions{Host: "https://example.com", Filename: "sitemap_index.xml"})
	index := NewSitemapIndexFile(indexLoc, mem, FileLimits{}, CreateIndexAuto)

	first := NewSitemapFile(NewLocation(LocationOptions{Host: "https://example.com", Filename: "s.xml"}), mem, FileLimits{})
	first.Add(mustEntry(t, "/a"))
	if err := index.AddSitemap(ctx, first); err != nil {
		t.Fatalf("AddSitemap: %v", err)
	}

	dup := NewSitemapFile(NewLocation(LocationOptions{Host: "https://example.com", PublicPath: "elsewhere", Filename: "s.xml"}), mem, FileLimits{})
	dup.Add(mustEntry(t, "/b"))
	err := index.AddSitemap(ctx, dup)
	var cfg *ErrConfiguration
	if !errors.As(err, &cfg) {
		t.Fatalf("expected ErrConfiguration for a duplicate URL, got %v", err)
	}
	if dup.Finalized() || len(mem.Paths()) != 1 {
		t.Fatalf("the duplicate must not be written, have %v", mem.Paths())
	}
}
