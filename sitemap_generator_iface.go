package gositemapgenerator

import (
	"context"
)

// Adapter persists a finalized document at a location.
type Adapter interface {
	// Write stores data, the uncompressed XML document, at loc.
	Write(ctx context.Context, loc *Location, data []byte) error
}

// Builder receives links. LinkSet and Group implement it.
type Builder interface {
	// Add appends a URL, rolling over to a new sitemap file when the current one is full.
	Add(ctx context.Context, loc string, opts EntryOptions) error
	// AddToIndex references an externally managed sitemap from the index.
	AddToIndex(ctx context.Context, loc string, opts IndexEntryOptions) error
	// Group runs fn with a nested scope using the given overrides.
	Group(ctx context.Context, opts GroupOptions, fn func(*Group) error) error
}

// FileStat describes a written file.
type FileStat struct {
	Path  string
	URL   string
	Links int
	Bytes int
	Index bool
}

// Summary is the outcome of a run.
type Summary struct {
	Links        int
	Files        int
	IndexWritten bool
	IndexURL     string
}

var (
	_ Builder = (*LinkSet)(nil)
	_ Builder = (*Group)(nil)
	_ Adapter = (*FileAdapter)(nil)
	_ Adapter = (*MemoryAdapter)(nil)
)
