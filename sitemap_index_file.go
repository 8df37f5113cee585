package gositemapgenerator

import (
	"context"
	"fmt"
	"strings"
)

// CreateIndexPolicy decides whether the index document is written.
type CreateIndexPolicy int

const (
	// CreateIndexAuto writes the index only when more than one sitemap is referenced.
	CreateIndexAuto CreateIndexPolicy = iota
	CreateIndexAlways
	CreateIndexNever
)

// ParseCreateIndexPolicy accepts "auto", "true"/"always" and "false"/"never".
func ParseCreateIndexPolicy(value string) (CreateIndexPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "auto":
		return CreateIndexAuto, nil
	case "true", "always", "yes":
		return CreateIndexAlways, nil
	case "false", "never", "no":
		return CreateIndexNever, nil
	}
	return CreateIndexAuto, &ErrConfiguration{Field: "create_index", Reason: "unknown policy " + value}
}

// IndexEntryOptions are the optional fields of a manually added index entry.
type IndexEntryOptions struct {
	// Host resolves relative paths (defaults to the index host).
	Host    string
	LastMod *Timestamp
}

// SitemapIndexFile references finalized sitemap files or manual paths. The
// document is only written on Finalize, once the create-index decision is known.
type SitemapIndexFile struct {
	fileBuilder
	policy            CreateIndexPolicy
	sitemapsLinkCount int
	manualCount       int
	firstSitemapURL   string
	urls              map[string]struct{}
}

// NewSitemapIndexFile returns an empty index. limits.MaxLinks bounds the number
// of referenced sitemaps.
func NewSitemapIndexFile(loc *Location, adapter Adapter, limits FileLimits, policy CreateIndexPolicy) *SitemapIndexFile {
	if adapter == nil {
		adapter = NewFileAdapter()
	}
	limits = limits.withDefaults(DefaultMaxSitemapFiles)
	return &SitemapIndexFile{
		fileBuilder: newFileBuilder(loc, adapter, limits, sitemapindexOpen, sitemapindexClose),
		policy:      policy,
		urls:        make(map[string]struct{}),
	}
}

// AddSitemap finalizes file if needed and references it. The file's links are
// added to SitemapsLinkCount.
func (x *SitemapIndexFile) AddSitemap(ctx context.Context, file *SitemapFile) error {
	if x.finalized {
		return &ErrFinalized{Path: x.location.pathHint()}
	}
	loc, err := file.Location().URL()
	if err != nil {
		return err
	}
	if _, ok := x.urls[loc]; ok {
		return &ErrConfiguration{Field: "location", Reason: fmt.Sprintf("sitemap URL %s is already referenced by the index", loc)}
	}
	// The lastmod is rendered at a fixed width, so sizing with now is exact.
	probe := appendIndexEntryXML(nil, loc, At(x.now()))
	if !x.canFit(len(probe)) {
		return &ErrSitemapFull{Path: x.location.pathHint(), Size: x.size, EntrySize: len(probe), LinkCount: x.linkCount}
	}
	if !file.Finalized() {
		if err := file.Finalize(ctx); err != nil {
			return err
		}
	}
	x.push(appendIndexEntryXML(nil, loc, At(file.LastMod())))
	x.sitemapsLinkCount += file.LinkCount()
	x.urls[loc] = struct{}{}
	if x.firstSitemapURL == "" {
		x.firstSitemapURL = loc
	}
	return nil
}

// AddPath references a sitemap that is not tracked as a SitemapFile. Any manual
// entry forces the index to be written under CreateIndexAuto.
func (x *SitemapIndexFile) AddPath(path string, opts IndexEntryOptions) (int, error) {
	if x.finalized {
		return x.linkCount, &ErrFinalized{Path: x.location.pathHint()}
	}
	host := opts.Host
	if host == "" {
		host = x.location.Host()
	}
	loc, err := resolveLoc(path, host)
	if err != nil {
		return x.linkCount, err
	}
	fragment := appendIndexEntryXML(nil, loc, opts.LastMod)
	if !x.canFit(len(fragment)) {
		return x.linkCount, &ErrSitemapFull{Path: x.location.pathHint(), Size: x.size, EntrySize: len(fragment), LinkCount: x.linkCount}
	}
	x.push(fragment)
	x.manualCount++
	return x.linkCount, nil
}

// ShouldCreate reports whether Finalize writes the index document.
func (x *SitemapIndexFile) ShouldCreate() bool {
	switch x.policy {
	case CreateIndexAlways:
		return true
	case CreateIndexNever:
		return false
	}
	return x.manualCount > 0 || x.linkCount > 1
}

// Finalize writes the index when ShouldCreate holds and freezes it either way.
func (x *SitemapIndexFile) Finalize(ctx context.Context) error {
	return x.flush(ctx, x.ShouldCreate())
}

// IndexURL is the single entry point of the run: the index URL when an index is
// written, otherwise the URL of the only sitemap.
func (x *SitemapIndexFile) IndexURL() (string, error) {
	if x.ShouldCreate() || x.firstSitemapURL == "" {
		return x.location.URL()
	}
	return x.firstSitemapURL, nil
}

// Location returns the index location.
func (x *SitemapIndexFile) Location() *Location {
	return x.location
}

// LinkCount returns the number of referenced sitemaps.
func (x *SitemapIndexFile) LinkCount() int {
	return x.linkCount
}

// SitemapsLinkCount returns the total links of the referenced SitemapFiles.
func (x *SitemapIndexFile) SitemapsLinkCount() int {
	return x.sitemapsLinkCount
}

// Empty reports whether nothing was referenced.
func (x *SitemapIndexFile) Empty() bool {
	return x.linkCount == 0
}

// Finalized reports whether Finalize succeeded.
func (x *SitemapIndexFile) Finalized() bool {
	return x.finalized
}

// Written reports whether the index document was written.
func (x *SitemapIndexFile) Written() bool {
	return x.finalized && x.written > 0
}

// Size returns the uncompressed size of the document so far.
func (x *SitemapIndexFile) Size() int {
	return x.size
}
