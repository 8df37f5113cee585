package gositemapgenerator

import (
	"bytes"
	"context"
	"time"
)

// FileLimits bounds a single generated file. Zero values select the defaults.
type FileLimits struct {
	MaxLinks    int
	MaxFileSize int
	MaxNews     int
}

func (l FileLimits) withDefaults(maxLinks int) FileLimits {
	if l.MaxLinks <= 0 {
		l.MaxLinks = maxLinks
	}
	if l.MaxFileSize <= 0 {
		l.MaxFileSize = DefaultMaxFileSize
	}
	if l.MaxNews <= 0 {
		l.MaxNews = DefaultMaxNewsLinks
	}
	return l
}

// fileBuilder is the accumulation and finalize logic shared by sitemap and
// index files.
type fileBuilder struct {
	location     *Location
	adapter      Adapter
	limits       FileLimits
	wrapperOpen  string
	wrapperClose string
	now          func() time.Time

	content     bytes.Buffer
	size        int
	linkCount   int
	finalized   bool
	finalizedAt time.Time
	written     int
}

func newFileBuilder(loc *Location, adapter Adapter, limits FileLimits, open, close string) fileBuilder {
	return fileBuilder{
		location:     loc,
		adapter:      adapter,
		limits:       limits,
		wrapperOpen:  open,
		wrapperClose: close,
		now:          time.Now,
		size:         len(open) + len(close),
	}
}

func (b *fileBuilder) canFit(n int) bool {
	return b.size+n < b.limits.MaxFileSize && b.linkCount < b.limits.MaxLinks
}

func (b *fileBuilder) push(fragment []byte) {
	b.content.Write(fragment)
	b.size += len(fragment)
	b.linkCount++
}

// flush writes the assembled document, advances the namer and releases the buffer.
func (b *fileBuilder) flush(ctx context.Context, write bool) error {
	if b.finalized {
		return &ErrFinalized{Path: b.location.pathHint()}
	}
	if write {
		if err := ctx.Err(); err != nil {
			return err
		}
		data := make([]byte, 0, b.size)
		data = append(data, b.wrapperOpen...)
		data = append(data, b.content.Bytes()...)
		data = append(data, b.wrapperClose...)
		if err := b.adapter.Write(ctx, b.location, data); err != nil {
			return &ErrStorageWrite{Path: b.location.Path(), Err: err}
		}
		b.written = len(data)
	}
	// Pin the name before the shared namer moves on.
	b.location.Filename()
	if n := b.location.Namer(); n != nil {
		n.Next()
	}
	b.content = bytes.Buffer{}
	b.finalized = true
	b.finalizedAt = b.now()
	return nil
}

// SitemapFile accumulates <url> fragments for one sitemap document.
type SitemapFile struct {
	fileBuilder
	newsCount int
}

// NewSitemapFile returns an empty sitemap file written through adapter.
func NewSitemapFile(loc *Location, adapter Adapter, limits FileLimits) *SitemapFile {
	if adapter == nil {
		adapter = NewFileAdapter()
	}
	limits = limits.withDefaults(DefaultMaxSitemapLinks)
	return &SitemapFile{fileBuilder: newFileBuilder(loc, adapter, limits, urlsetOpen, urlsetClose)}
}

// Add appends the entry and returns the new link count. It returns
// *ErrSitemapFull when the entry does not fit and *ErrFinalized after Finalize.
func (f *SitemapFile) Add(entry *URLEntry) (int, error) {
	if f.finalized {
		return f.linkCount, &ErrFinalized{Path: f.location.pathHint()}
	}
	if !f.CanFit(entry) {
		return f.linkCount, &ErrSitemapFull{
			Path:      f.location.pathHint(),
			Size:      f.size,
			EntrySize: entry.Size(),
			LinkCount: f.linkCount,
		}
	}
	f.push(entry.XML())
	if entry.HasNews() {
		f.newsCount++
	}
	return f.linkCount, nil
}

// CanFit reports whether the entry fits under every limit.
func (f *SitemapFile) CanFit(entry *URLEntry) bool {
	return f.canFit(entry.Size()) && f.newsCount < f.limits.MaxNews
}

// Finalize writes the document through the adapter and freezes the file.
func (f *SitemapFile) Finalize(ctx context.Context) error {
	return f.flush(ctx, true)
}

// New returns an empty file for the next name in the series. The namer is shared.
func (f *SitemapFile) New() *SitemapFile {
	next := &SitemapFile{fileBuilder: newFileBuilder(f.location.clone(), f.adapter, f.limits, f.wrapperOpen, f.wrapperClose)}
	next.now = f.now
	return next
}

// Location returns the file location.
func (f *SitemapFile) Location() *Location {
	return f.location
}

// Empty reports whether no link was added.
func (f *SitemapFile) Empty() bool {
	return f.linkCount == 0
}

// LinkCount returns the number of links added.
func (f *SitemapFile) LinkCount() int {
	return f.linkCount
}

// NewsCount returns the number of links carrying news metadata.
func (f *SitemapFile) NewsCount() int {
	return f.newsCount
}

// Size returns the uncompressed size of the document so far.
func (f *SitemapFile) Size() int {
	return f.size
}

// Finalized reports whether Finalize succeeded.
func (f *SitemapFile) Finalized() bool {
	return f.finalized
}

// LastMod returns the time the file was finalized.
func (f *SitemapFile) LastMod() time.Time {
	return f.finalizedAt
}
