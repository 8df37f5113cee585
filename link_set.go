package gositemapgenerator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync"
)

const (
	DefaultMaxSitemapLinks = 50000
	DefaultMaxSitemapFiles = 50000
	DefaultMaxFileSize     = 10 * 1024 * 1024
	DefaultMaxNewsLinks    = 1000
	DefaultMaxImages       = 1000

	defaultPublicPath = "public"
	defaultFilename   = "sitemap"
	indexNamerZero    = "_index"
)

// ===================== Configuration =====================

// Options configures a generation run.
type Options struct {
	// DefaultHost resolves relative link paths, e.g. https://example.com.
	DefaultHost string
	// SitemapsHost serves the sitemap files (defaults to DefaultHost).
	SitemapsHost string
	// PublicPath is the local directory mapped to the hosts (default "public").
	PublicPath string
	// SitemapsPath is the directory below PublicPath holding the files.
	SitemapsPath string
	// Filename is the base name of sitemap files (default "sitemap"). Ignored when Namer is set.
	Filename    string
	Namer       *Namer
	Compress    CompressPolicy
	CreateIndex CreateIndexPolicy

	MaxSitemapLinks int
	MaxSitemapFiles int
	MaxFileSize     int
	MaxNewsLinks    int
	MaxImages       int

	// IncludeRoot adds the DefaultHost root with priority 1.0 before the first link.
	IncludeRoot bool
	// IncludeIndex adds the index URL with priority 1.0 before the first link.
	IncludeIndex bool
	// NormalizeLocations applies safe URL normalization to every loc.
	NormalizeLocations bool

	Adapter Adapter
	Logger  *slog.Logger
	// OnWrite is called after each written file.
	OnWrite func(FileStat)
}

// LinkSet drives a generation run: it feeds links into the current sitemap file,
// rolls over to a new file when a limit is hit, and finalizes the index.
//
// Calls are serialized by an internal mutex. A Group callback runs without the
// lock held so it can call back into the set.
type LinkSet struct {
	mu     sync.Mutex
	opts   Options
	logger *slog.Logger
	rules  entryRules
	limits FileLimits

	namer   *Namer
	root    *scope
	index   *SitemapIndexFile
	written []FileStat
	paths   map[string]struct{}
	links   int

	addedDefaultLinks bool
	createdGroup      bool
	finalized         bool
}

// chain holds the open file of a series. Scopes sharing a file share the chain.
type chain struct {
	file *SitemapFile
}

type scope struct {
	host   string
	chain  *chain
	owned  bool
	closed bool
}

// ===================== Public API =====================

// New validates opts, applies defaults and returns a LinkSet ready for a run.
func New(opts Options) (*LinkSet, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Adapter == nil {
		opts.Adapter = NewFileAdapter()
	}
	if opts.PublicPath == "" {
		opts.PublicPath = defaultPublicPath
	}
	if opts.Filename == "" {
		opts.Filename = defaultFilename
	}
	if opts.SitemapsHost == "" {
		opts.SitemapsHost = opts.DefaultHost
	}
	limits := []struct {
		field string
		value *int
		def   int
	}{
		{"max_sitemap_links", &opts.MaxSitemapLinks, DefaultMaxSitemapLinks},
		{"max_sitemap_files", &opts.MaxSitemapFiles, DefaultMaxSitemapFiles},
		{"max_file_size", &opts.MaxFileSize, DefaultMaxFileSize},
		{"max_news_links", &opts.MaxNewsLinks, DefaultMaxNewsLinks},
		{"max_images", &opts.MaxImages, DefaultMaxImages},
	}
	for _, l := range limits {
		if *l.value < 0 {
			return nil, &ErrConfiguration{Field: l.field, Reason: "must not be negative"}
		}
		if *l.value == 0 {
			*l.value = l.def
		}
	}
	if opts.DefaultHost != "" {
		if err := checkHost("default_host", opts.DefaultHost); err != nil {
			return nil, err
		}
	}

	ls := &LinkSet{
		opts:   opts,
		logger: opts.Logger,
		rules:  entryRules{maxImages: opts.MaxImages, normalize: opts.NormalizeLocations},
		limits: FileLimits{MaxLinks: opts.MaxSitemapLinks, MaxFileSize: opts.MaxFileSize, MaxNews: opts.MaxNewsLinks},
	}
	if err := ls.init(); err != nil {
		return nil, err
	}
	return ls, nil
}

func (ls *LinkSet) init() error {
	namer := ls.opts.Namer
	if namer == nil {
		namer = NewNamer(ls.opts.Filename, NamerOptions{})
	}
	namer.Reset()

	loc := NewLocation(LocationOptions{
		Host:         ls.opts.SitemapsHost,
		PublicPath:   ls.opts.PublicPath,
		SitemapsPath: ls.opts.SitemapsPath,
		Namer:        namer,
		Compress:     ls.opts.Compress,
	})
	if err := loc.Validate(); err != nil {
		return err
	}
	indexLoc := loc.With(LocationOverrides{
		Namer: NewNamer(namer.Base(), NamerOptions{Zero: indexNamerZero, Extension: namer.Extension()}),
	})

	ls.namer = namer
	ls.root = &scope{host: ls.opts.DefaultHost, chain: &chain{file: NewSitemapFile(loc, ls.opts.Adapter, ls.limits)}}
	ls.index = NewSitemapIndexFile(indexLoc, ls.opts.Adapter, FileLimits{
		MaxLinks:    ls.opts.MaxSitemapFiles,
		MaxFileSize: ls.opts.MaxFileSize,
	}, ls.opts.CreateIndex)
	ls.written = nil
	ls.paths = make(map[string]struct{})
	ls.links = 0
	ls.addedDefaultLinks = false
	ls.createdGroup = false
	ls.finalized = false
	return nil
}

// Add appends a link to the current sitemap file. A relative loc is resolved
// against DefaultHost (or opts.Host).
func (ls *LinkSet) Add(ctx context.Context, loc string, opts EntryOptions) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if err := ls.checkOpen(); err != nil {
		return err
	}
	if err := ls.addDefaultLinks(ctx); err != nil {
		return err
	}
	return ls.add(ctx, ls.root, loc, opts)
}

// AddToIndex references a sitemap that this run does not generate. It forces
// the index to be written under CreateIndexAuto.
func (ls *LinkSet) AddToIndex(ctx context.Context, loc string, opts IndexEntryOptions) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.addToIndex(ctx, ls.root, loc, opts)
}

// Group runs fn in a nested scope. See GroupOptions for when the group shares
// the current file.
func (ls *LinkSet) Group(ctx context.Context, opts GroupOptions, fn func(*Group) error) error {
	return ls.runGroup(ctx, ls.root, opts, fn)
}

// Finalize writes the open sitemap file and the index. Later calls fail with
// *ErrFinalized.
func (ls *LinkSet) Finalize(ctx context.Context) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if err := ls.checkOpen(); err != nil {
		return err
	}
	if !ls.createdGroup {
		if err := ls.addDefaultLinks(ctx); err != nil {
			return err
		}
	}
	// An empty file is only written when the run produced nothing else.
	if c := ls.root.chain; !c.file.Empty() || ls.index.Empty() {
		if err := ls.finalizeFile(ctx, c); err != nil {
			return err
		}
	}
	if err := ls.index.Finalize(ctx); err != nil {
		return err
	}
	if ls.index.Written() {
		ls.record(ls.index.Location(), ls.index.LinkCount(), ls.index.Size(), true)
	}
	ls.finalized = true
	ls.logger.Debug(fmt.Sprintf("finalized %d links in %d sitemaps", ls.links, len(ls.files())))
	return nil
}

// IndexURL returns the URL to submit to search engines: the index when one is
// written, otherwise the only sitemap.
func (ls *LinkSet) IndexURL() (string, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.index.IndexURL()
}

// Index returns the index file of the run.
func (ls *LinkSet) Index() *SitemapIndexFile {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.index
}

// Current returns the open sitemap file of the top-level scope.
func (ls *LinkSet) Current() *SitemapFile {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.root.chain.file
}

// Files returns the URLs of the written sitemap files in write order.
func (ls *LinkSet) Files() []string {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.files()
}

func (ls *LinkSet) files() []string {
	var urls []string
	for _, stat := range ls.written {
		if !stat.Index {
			urls = append(urls, stat.URL)
		}
	}
	return urls
}

// Written returns every written file, the index last.
func (ls *LinkSet) Written() []FileStat {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return append([]FileStat(nil), ls.written...)
}

// Summary reports link and file counts of the run so far.
func (ls *LinkSet) Summary() Summary {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	s := Summary{Links: ls.links, Files: len(ls.files()), IndexWritten: ls.index.Written()}
	s.IndexURL, _ = ls.index.IndexURL()
	return s
}

// Reset discards all state so the LinkSet can run again with the same options.
func (ls *LinkSet) Reset() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.init()
}

// ===================== Rollover =====================

func (ls *LinkSet) checkOpen() error {
	if ls.finalized {
		return &ErrFinalized{Path: ls.index.Location().pathHint()}
	}
	return nil
}

func (ls *LinkSet) add(ctx context.Context, s *scope, loc string, opts EntryOptions) error {
	if s.closed {
		return &ErrFinalized{Path: s.chain.file.Location().pathHint()}
	}
	entry, err := buildURLEntry(loc, s.host, opts, ls.rules)
	if err != nil {
		return err
	}
	return ls.addEntry(ctx, s.chain, entry)
}

func (ls *LinkSet) addEntry(ctx context.Context, c *chain, entry *URLEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.file.Add(entry)
	if err == nil {
		ls.links++
		return nil
	}
	var full *ErrSitemapFull
	if !errors.As(err, &full) {
		return err
	}
	if c.file.Empty() {
		return ls.tooLarge(entry, err)
	}
	ls.logger.Debug(fmt.Sprintf("sitemap %s is full at %d links, rolling over", full.Path, full.LinkCount))
	if err := ls.finalizeFile(ctx, c); err != nil {
		return err
	}
	c.file = c.file.New()
	if _, err := c.file.Add(entry); err != nil {
		if errors.As(err, &full) {
			return ls.tooLarge(entry, err)
		}
		return err
	}
	ls.links++
	return nil
}

func (ls *LinkSet) tooLarge(entry *URLEntry, err error) error {
	return &ErrEntryTooLarge{Loc: entry.Loc, Size: entry.Size(), MaxFileSize: ls.opts.MaxFileSize, Err: err}
}

// finalizeFile writes the chain's file and references it from the index.
func (ls *LinkSet) finalizeFile(ctx context.Context, c *chain) error {
	file := c.file
	ls.claimFreshName(file.Location())
	if err := ls.index.AddSitemap(ctx, file); err != nil {
		return err
	}
	ls.record(file.Location(), file.LinkCount(), file.Size(), false)
	return nil
}

// claimFreshName re-resolves a name that was pinned from a shared namer but
// has since been written by another chain.
func (ls *LinkSet) claimFreshName(loc *Location) {
	n := loc.Namer()
	if n == nil {
		return
	}
	for ls.claimed(loc.Path()) {
		ls.logger.Debug(fmt.Sprintf("%s is already written, taking the next name", loc.Path()))
		loc.ClearFilename()
		if ls.claimed(loc.Path()) {
			n.Next()
			loc.ClearFilename()
		}
	}
}

func (ls *LinkSet) claimed(path string) bool {
	_, ok := ls.paths[path]
	return ok
}

func (ls *LinkSet) record(loc *Location, links, size int, index bool) {
	stat := FileStat{Path: loc.Path(), Links: links, Bytes: size, Index: index}
	ls.paths[stat.Path] = struct{}{}
	stat.URL, _ = loc.URL()
	ls.written = append(ls.written, stat)
	kind := "sitemap"
	if index {
		kind = "index"
	}
	ls.logger.Info(fmt.Sprintf("wrote %s %s", kind, stat.Path), "links", links, "bytes", size)
	if ls.opts.OnWrite != nil {
		ls.opts.OnWrite(stat)
	}
}

func (ls *LinkSet) addToIndex(ctx context.Context, s *scope, loc string, opts IndexEntryOptions) error {
	if err := ls.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if opts.Host == "" {
		opts.Host = s.chain.file.Location().Host()
	}
	_, err := ls.index.AddPath(loc, opts)
	return err
}

func (ls *LinkSet) addDefaultLinks(ctx context.Context) error {
	if ls.addedDefaultLinks {
		return nil
	}
	ls.addedDefaultLinks = true
	priority := 1.0
	defaults := EntryOptions{ChangeFreq: Always, Priority: &priority}
	if ls.opts.IncludeRoot {
		if err := ls.add(ctx, ls.root, "/", defaults); err != nil {
			return err
		}
	}
	if ls.opts.IncludeIndex {
		indexURL, err := ls.index.Location().URL()
		if err != nil {
			return err
		}
		if err := ls.add(ctx, ls.root, indexURL, defaults); err != nil {
			return err
		}
	}
	return nil
}

func checkHost(field, host string) error {
	parsed, err := url.Parse(host)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return &ErrConfiguration{Field: field, Reason: "host must be an absolute URL: " + host}
	}
	return nil
}
