package gositemapgenerator

import (
	"fmt"
)

// ErrConfiguration indicates a missing or invalid setting, such as an absent host
// or an unknown entry option key.
type ErrConfiguration struct {
	Field  string
	Reason string
}

func (e *ErrConfiguration) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// ErrInvalidEntry indicates a URL entry that cannot be serialized.
type ErrInvalidEntry struct {
	Loc    string
	Reason string
}

func (e *ErrInvalidEntry) Error() string {
	if e.Loc == "" {
		return fmt.Sprintf("invalid entry: %s", e.Reason)
	}
	return fmt.Sprintf("invalid entry %q: %s", e.Loc, e.Reason)
}

// ErrSitemapFull indicates that an entry does not fit into the current file.
// The LinkSet consumes it to roll over to a new file.
type ErrSitemapFull struct {
	Path      string
	Size      int
	EntrySize int
	LinkCount int
}

func (e *ErrSitemapFull) Error() string {
	return fmt.Sprintf("sitemap %s is full (%d links, %d bytes, entry of %d bytes)", e.Path, e.LinkCount, e.Size, e.EntrySize)
}

// ErrEntryTooLarge indicates an entry that did not fit even into an empty file.
type ErrEntryTooLarge struct {
	Loc         string
	Size        int
	MaxFileSize int
	Err         error
}

func (e *ErrEntryTooLarge) Error() string {
	return fmt.Sprintf("entry %q of %d bytes cannot fit in a sitemap of at most %d bytes", e.Loc, e.Size, e.MaxFileSize)
}

func (e *ErrEntryTooLarge) Unwrap() error {
	return e.Err
}

// ErrFinalized indicates a mutation of a file or link set that was already finalized.
type ErrFinalized struct {
	Path string
}

func (e *ErrFinalized) Error() string {
	if e.Path == "" {
		return "already finalized"
	}
	return fmt.Sprintf("%s is already finalized", e.Path)
}

// ErrNamerRange indicates Previous was called on a namer at its start position.
type ErrNamerRange struct {
	Base string
}

func (e *ErrNamerRange) Error() string {
	return fmt.Sprintf("namer %q is already at the start of the series", e.Base)
}

// ErrStorageWrite wraps a failure returned by an Adapter.
type ErrStorageWrite struct {
	Path string
	Err  error
}

func (e *ErrStorageWrite) Error() string {
	return fmt.Sprintf("write %s failed: %v", e.Path, e.Err)
}

func (e *ErrStorageWrite) Unwrap() error {
	return e.Err
}

// ErrRead indicates a generated document could not be opened while reading
// output back. StatusCode is set for HTTP sources.
type ErrRead struct {
	Loc        string
	StatusCode int
	Err        error
}

func (e *ErrRead) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("read %s: unexpected HTTP status %d", e.Loc, e.StatusCode)
	}
	return fmt.Sprintf("read %s: %v", e.Loc, e.Err)
}

func (e *ErrRead) Unwrap() error {
	return e.Err
}

// ErrSitemapParse indicates a failure while parsing sitemap XML.
type ErrSitemapParse struct {
	Loc string
	Err error
}

func (e *ErrSitemapParse) Error() string {
	return fmt.Sprintf("sitemap parse failed for %s: %v", e.Loc, e.Err)
}

func (e *ErrSitemapParse) Unwrap() error {
	return e.Err
}

// ErrMaxDepth indicates nested indexes deeper than the reader allows.
type ErrMaxDepth struct {
	MaxDepth int
	Loc      string
}

func (e *ErrMaxDepth) Error() string {
	return fmt.Sprintf("max depth %d exceeded at %s", e.MaxDepth, e.Loc)
}

// ErrYield wraps a failure returned by the yield callback.
type ErrYield struct {
	Err error
}

func (e *ErrYield) Error() string {
	return fmt.Sprintf("yield callback failed: %v", e.Err)
}

func (e *ErrYield) Unwrap() error {
	return e.Err
}
