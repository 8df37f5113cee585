package gositemapgenerator

import (
	"context"
	"fmt"
)

// GroupOptions overrides settings for the links added inside a group. Empty
// fields inherit from the enclosing scope.
//
// A group keeps writing into the enclosing scope's open file unless its
// destination differs: SitemapsHost, PublicPath, SitemapsPath, Filename, Namer
// or Compress. Overriding DefaultHost alone shares the file. A group with its
// own destination starts a new file and closes it when the callback returns.
// Without a Namer it gets a fresh name series when Filename changes or when
// both its directory and its URL prefix differ; otherwise it continues the
// parent's series so names stay unique.
type GroupOptions struct {
	DefaultHost  string
	SitemapsHost string
	PublicPath   string
	SitemapsPath *string
	Filename     string
	Namer        *Namer
	Compress     *CompressPolicy
}

// Group is the handle passed to a LinkSet.Group callback. It is only valid
// while the callback runs.
type Group struct {
	ls    *LinkSet
	scope *scope
}

// Add appends a link within the group's scope.
func (g *Group) Add(ctx context.Context, loc string, opts EntryOptions) error {
	g.ls.mu.Lock()
	defer g.ls.mu.Unlock()
	if err := g.ls.checkOpen(); err != nil {
		return err
	}
	return g.ls.add(ctx, g.scope, loc, opts)
}

// AddToIndex references an external sitemap. Relative paths resolve against
// the group's sitemaps host.
func (g *Group) AddToIndex(ctx context.Context, loc string, opts IndexEntryOptions) error {
	g.ls.mu.Lock()
	defer g.ls.mu.Unlock()
	return g.ls.addToIndex(ctx, g.scope, loc, opts)
}

// Group nests another group inside this one.
func (g *Group) Group(ctx context.Context, opts GroupOptions, fn func(*Group) error) error {
	return g.ls.runGroup(ctx, g.scope, opts, fn)
}

// DefaultHost returns the host relative links resolve against.
func (g *Group) DefaultHost() string {
	return g.scope.host
}

// SharesFile reports whether the group writes into the enclosing scope's file.
func (g *Group) SharesFile() bool {
	return !g.scope.owned
}

// Location returns the location of the group's open file.
func (g *Group) Location() *Location {
	g.ls.mu.Lock()
	defer g.ls.mu.Unlock()
	return g.scope.chain.file.Location()
}

func (ls *LinkSet) runGroup(ctx context.Context, parent *scope, opts GroupOptions, fn func(*Group) error) error {
	ls.mu.Lock()
	child, err := ls.openGroup(ctx, parent, opts)
	ls.mu.Unlock()
	if err != nil {
		return err
	}

	fnErr := fn(&Group{ls: ls, scope: child})

	ls.mu.Lock()
	defer ls.mu.Unlock()
	child.closed = true
	if fnErr != nil {
		return fnErr
	}
	if child.owned && !child.chain.file.Empty() {
		return ls.finalizeFile(ctx, child.chain)
	}
	return nil
}

func (ls *LinkSet) openGroup(ctx context.Context, parent *scope, opts GroupOptions) (*scope, error) {
	if err := ls.checkOpen(); err != nil {
		return nil, err
	}
	if parent.closed {
		return nil, &ErrFinalized{Path: parent.chain.file.Location().pathHint()}
	}
	ls.createdGroup = true

	host := parent.host
	if opts.DefaultHost != "" {
		if err := checkHost("default_host", opts.DefaultHost); err != nil {
			return nil, err
		}
		host = opts.DefaultHost
	}
	if opts.SitemapsHost != "" {
		if err := checkHost("sitemaps_host", opts.SitemapsHost); err != nil {
			return nil, err
		}
	}

	parentLoc := parent.chain.file.Location().clone()
	loc := parentLoc.With(LocationOverrides{
		Host:         opts.SitemapsHost,
		PublicPath:   opts.PublicPath,
		SitemapsPath: opts.SitemapsPath,
		Compress:     opts.Compress,
	})
	switch {
	case opts.Namer != nil:
		loc.SetNamer(opts.Namer)
	case ls.needsOwnNamer(parentLoc, loc, opts.Filename):
		base := opts.Filename
		if base == "" {
			base = ls.namer.Base()
		}
		loc.SetNamer(NewNamer(base, NamerOptions{Extension: ls.namer.Extension()}))
	}
	if err := loc.Validate(); err != nil {
		return nil, err
	}

	if loc.SameDestination(parentLoc) {
		return &scope{host: host, chain: parent.chain}, nil
	}

	ls.logger.Debug(fmt.Sprintf("group writes to %s, closing the open file", loc.Directory()))
	if !parent.chain.file.Empty() {
		if err := ls.finalizeFile(ctx, parent.chain); err != nil {
			return nil, err
		}
		parent.chain.file = parent.chain.file.New()
	}
	file := NewSitemapFile(loc, ls.opts.Adapter, ls.limits)
	return &scope{host: host, chain: &chain{file: file}, owned: true}, nil
}

// needsOwnNamer reports whether the group starts its own name series: the base
// name differs, or both the directory and the URL prefix differ.
func (ls *LinkSet) needsOwnNamer(parent, loc *Location, filename string) bool {
	parentNamer := parent.Namer()
	if parentNamer == nil {
		return true
	}
	if filename != "" && filename != parentNamer.Base() {
		return true
	}
	return loc.Directory() != parent.Directory() && loc.urlPrefix() != parent.urlPrefix()
}
