//go:build integration

package additional

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	mega "github.com/MegaBytee/sitemap-go"
	"github.com/MegaBytee/sitemap-go/config"
	aafeher "github.com/aafeher/go-sitemap-parser"
	"github.com/gorilla/mux"
	gositemapgenerator "github.com/kotylevskiy/go-sitemap-generator"
	gopher "github.com/mrehanabbasi/gopher-parse-sitemap"
)

func TestComparison_GeneratedSitemaps(t *testing.T) {
	cases := []struct {
		name     string
		links    int
		maxLinks int
	}{
		{"single", 25, 0},
		{"index", 250, 40},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			router := mux.NewRouter()
			gositemapgenerator.Handle(router, gositemapgenerator.ServeOptions{PublicPath: dir})
			server := newTestServer(t, router)
			defer server.Close()

			site, ours, err := generateWithGenerator(server.URL, dir, tc.links, tc.maxLinks)
			if err != nil {
				t.Fatalf("generator failed: %v", err)
			}
			if len(ours) != tc.links {
				t.Fatalf("expected %d generated links, got %d", tc.links, len(ours))
			}

			parserURLs, err := fetchWithAafeher(site)
			if err != nil {
				t.Fatalf("go-sitemap-parser failed: %v", err)
			}
			compareSets(t, "go-sitemap-parser", ours, parserURLs)

			gopherURLs, err := fetchWithGopher(site)
			if err != nil {
				t.Fatalf("gopher-parse-sitemap failed: %v", err)
			}
			compareSets(t, "gopher-parse-sitemap", ours, gopherURLs)

			if tc.maxLinks > 0 {
				megaURLs, err := fetchWithMega(site)
				if err != nil {
					t.Fatalf("sitemap-go failed: %v", err)
				}
				compareSets(t, "sitemap-go", ours, megaURLs)
			}
		})
	}
}

func newTestServer(t *testing.T, handler *mux.Router) *httptest.Server {
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

func generateWithGenerator(host, dir string, links, maxLinks int) (string, map[string]struct{}, error) {
	ls, err := gositemapgenerator.New(gositemapgenerator.Options{
		DefaultHost:     host,
		PublicPath:      dir,
		Compress:        gositemapgenerator.CompressNever,
		MaxSitemapLinks: maxLinks,
	})
	if err != nil {
		return "", nil, err
	}
	ctx := context.Background()
	results := make(map[string]struct{})
	for i := 0; i < links; i++ {
		path := fmt.Sprintf("/articles/%d?ref=sitemap&page=%d", i, i%7)
		if err := ls.Add(ctx, path, gositemapgenerator.EntryOptions{ChangeFreq: gositemapgenerator.Weekly}); err != nil {
			return "", nil, err
		}
		results[normalizeURLString(host+path)] = struct{}{}
	}
	if err := ls.Finalize(ctx); err != nil {
		return "", nil, err
	}
	indexURL, err := ls.IndexURL()
	if err != nil {
		return "", nil, err
	}
	return indexURL, results, nil
}

func fetchWithAafeher(site string) (map[string]struct{}, error) {
	parser := aafeher.New()
	parsed, err := parser.Parse(site, nil)
	if err != nil {
		return nil, err
	}
	results := make(map[string]struct{})
	for _, item := range parsed.GetURLs() {
		loc := normalizeURLString(item.Loc)
		if loc != "" {
			results[loc] = struct{}{}
		}
	}
	return results, nil
}

func fetchWithGopher(site string) (map[string]struct{}, error) {
	sitemaps := []string{site}
	if strings.Contains(site, "_index") {
		sitemaps = nil
		err := gopher.ParseIndexFromSite(site, func(entry gopher.IndexEntry) error {
			sitemaps = append(sitemaps, entry.GetLocation())
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	results := make(map[string]struct{})
	for _, sitemap := range sitemaps {
		err := gopher.ParseFromSite(sitemap, func(entry gopher.Entry) error {
			loc := normalizeURLString(entry.GetLocation())
			if loc != "" {
				results[loc] = struct{}{}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func fetchWithMega(site string) (map[string]struct{}, error) {
	scanner := mega.NewScanner(&config.Config{})
	if scanner == nil {
		return nil, errors.New("failed to initialize sitemap-go scanner")
	}
	defer scanner.Close()

	links := scanner.GetLinksFromSitemapIndex(site)
	results := make(map[string]struct{})
	for _, loc := range links {
		norm := normalizeURLString(loc)
		if norm != "" {
			results[norm] = struct{}{}
		}
	}
	return results, nil
}

func normalizeURLString(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return trimmed
	}
	parsed.Fragment = ""
	return parsed.String()
}

func compareSets(t *testing.T, label string, ours, other map[string]struct{}) {
	missing := diffSet(ours, other)
	extra := diffSet(other, ours)
	if len(missing) == 0 && len(extra) == 0 {
		return
	}

	missingSample := sampleStrings(missing, 5)
	extraSample := sampleStrings(extra, 5)

	t.Fatalf("comparison mismatch for %s: missing=%d extra=%d missing_sample=%v extra_sample=%v", label, len(missing), len(extra), missingSample, extraSample)
}

func diffSet(left, right map[string]struct{}) []string {
	out := make([]string, 0)
	for key := range left {
		if _, ok := right[key]; !ok {
			out = append(out, key)
		}
	}
	return out
}

func sampleStrings(items []string, max int) []string {
	if len(items) == 0 {
		return nil
	}
	sort.Strings(items)
	if len(items) <= max {
		return items
	}
	return items[:max]
}
