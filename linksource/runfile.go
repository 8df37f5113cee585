// Package linksource loads generation runs and their links from run files
// (YAML or TOML), plain-text lists and SQLite queries.
package linksource

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	gen "github.com/kotylevskiy/go-sitemap-generator"
)

const defaultPublicPath = "public"

// RunFile describes a generation run. Relative paths resolve against the
// directory of the run file.
type RunFile struct {
	DefaultHost     string `yaml:"default_host" toml:"default_host"`
	SitemapsHost    string `yaml:"sitemaps_host" toml:"sitemaps_host"`
	PublicPath      string `yaml:"public_path" toml:"public_path"`
	SitemapsPath    string `yaml:"sitemaps_path" toml:"sitemaps_path"`
	Filename        string `yaml:"filename" toml:"filename"`
	Compress        string `yaml:"compress" toml:"compress"`
	CreateIndex     string `yaml:"create_index" toml:"create_index"`
	MaxSitemapLinks int    `yaml:"max_sitemap_links" toml:"max_sitemap_links"`
	MaxSitemapFiles int    `yaml:"max_sitemap_files" toml:"max_sitemap_files"`
	MaxFileSize     int    `yaml:"max_file_size" toml:"max_file_size"`
	MaxNewsLinks    int    `yaml:"max_news_links" toml:"max_news_links"`
	MaxImages       int    `yaml:"max_images" toml:"max_images"`
	IncludeRoot     bool   `yaml:"include_root" toml:"include_root"`
	IncludeIndex    bool   `yaml:"include_index" toml:"include_index"`
	Normalize       bool   `yaml:"normalize" toml:"normalize"`
	Robots          bool   `yaml:"robots" toml:"robots"`

	Links      []map[string]any `yaml:"links" toml:"links"`
	Sources    []Source         `yaml:"sources" toml:"sources"`
	IndexLinks []map[string]any `yaml:"index_links" toml:"index_links"`
	Groups     []GroupFile      `yaml:"groups" toml:"groups"`

	// dir resolves relative source paths.
	dir string
}

// GroupFile is a group block of a run file.
type GroupFile struct {
	DefaultHost  string  `yaml:"default_host" toml:"default_host"`
	SitemapsHost string  `yaml:"sitemaps_host" toml:"sitemaps_host"`
	PublicPath   string  `yaml:"public_path" toml:"public_path"`
	SitemapsPath *string `yaml:"sitemaps_path" toml:"sitemaps_path"`
	Filename     string  `yaml:"filename" toml:"filename"`
	Compress     string  `yaml:"compress" toml:"compress"`

	Links   []map[string]any `yaml:"links" toml:"links"`
	Sources []Source         `yaml:"sources" toml:"sources"`
	Groups  []GroupFile      `yaml:"groups" toml:"groups"`
}

// Source reads links from an external input.
type Source struct {
	// Type is "text" or "sqlite".
	Type string `yaml:"type" toml:"type"`
	Path string `yaml:"path" toml:"path"`
	// Query selects a loc column plus optional lastmod, changefreq and priority columns.
	Query string `yaml:"query" toml:"query"`
}

// Load reads a run file. The format follows the extension: .yaml/.yml or .toml.
// Unknown fields are rejected.
func Load(path string) (*RunFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}
	var run RunFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&run); err != nil {
			return nil, fmt.Errorf("failed to parse YAML %s: %w", path, err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&run); err != nil {
			return nil, fmt.Errorf("failed to parse TOML %s: %w", path, err)
		}
	default:
		return nil, &gen.ErrConfiguration{Field: "run_file", Reason: "unsupported extension " + filepath.Ext(path)}
	}
	run.dir = filepath.Dir(path)
	run.setDefaults()
	if err := run.validate(); err != nil {
		return nil, fmt.Errorf("invalid run file %s: %w", path, err)
	}
	return &run, nil
}

func (r *RunFile) setDefaults() {
	if r.Compress == "" {
		r.Compress = "all"
	}
	if r.CreateIndex == "" {
		r.CreateIndex = "auto"
	}
}

func (r *RunFile) validate() error {
	if r.DefaultHost == "" {
		return &gen.ErrConfiguration{Field: "default_host", Reason: "default_host is required"}
	}
	if _, err := gen.ParseCompressPolicy(r.Compress); err != nil {
		return err
	}
	if _, err := gen.ParseCreateIndexPolicy(r.CreateIndex); err != nil {
		return err
	}
	if err := validateLinks(r.Links, r.Sources); err != nil {
		return err
	}
	for i, m := range r.IndexLinks {
		if _, _, err := splitLoc(m, gen.ParseIndexEntryOptions); err != nil {
			return fmt.Errorf("index_links[%d]: %w", i, err)
		}
	}
	return validateGroups(r.Groups)
}

func validateGroups(groups []GroupFile) error {
	for i, g := range groups {
		if g.Compress != "" {
			if _, err := gen.ParseCompressPolicy(g.Compress); err != nil {
				return fmt.Errorf("groups[%d]: %w", i, err)
			}
		}
		if err := validateLinks(g.Links, g.Sources); err != nil {
			return fmt.Errorf("groups[%d]: %w", i, err)
		}
		if err := validateGroups(g.Groups); err != nil {
			return fmt.Errorf("groups[%d]: %w", i, err)
		}
	}
	return nil
}

func validateLinks(links []map[string]any, sources []Source) error {
	for i, m := range links {
		if _, _, err := splitLoc(m, gen.ParseEntryOptions); err != nil {
			return fmt.Errorf("links[%d]: %w", i, err)
		}
	}
	for i, s := range sources {
		if err := s.validate(); err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
	}
	return nil
}

// Options maps the run file onto generator options.
func (r *RunFile) Options() (gen.Options, error) {
	compress, err := gen.ParseCompressPolicy(r.Compress)
	if err != nil {
		return gen.Options{}, err
	}
	createIndex, err := gen.ParseCreateIndexPolicy(r.CreateIndex)
	if err != nil {
		return gen.Options{}, err
	}
	publicPath := r.PublicPath
	if publicPath == "" {
		publicPath = defaultPublicPath
	}
	if !filepath.IsAbs(publicPath) && r.dir != "" {
		publicPath = filepath.Join(r.dir, publicPath)
	}
	return gen.Options{
		DefaultHost:        r.DefaultHost,
		SitemapsHost:       r.SitemapsHost,
		PublicPath:         publicPath,
		SitemapsPath:       r.SitemapsPath,
		Filename:           r.Filename,
		Compress:           compress,
		CreateIndex:        createIndex,
		MaxSitemapLinks:    r.MaxSitemapLinks,
		MaxSitemapFiles:    r.MaxSitemapFiles,
		MaxFileSize:        r.MaxFileSize,
		MaxNewsLinks:       r.MaxNewsLinks,
		MaxImages:          r.MaxImages,
		IncludeRoot:        r.IncludeRoot,
		IncludeIndex:       r.IncludeIndex,
		NormalizeLocations: r.Normalize,
	}, nil
}

// Feed adds every link, source, index link and group of the run to b, in file
// order: links, sources, index links, groups.
func (r *RunFile) Feed(ctx context.Context, b gen.Builder) error {
	if err := feedLinks(ctx, b, r.Links, r.Sources, r.dir); err != nil {
		return err
	}
	for _, m := range r.IndexLinks {
		loc, opts, err := splitLoc(m, gen.ParseIndexEntryOptions)
		if err != nil {
			return err
		}
		if err := b.AddToIndex(ctx, loc, opts); err != nil {
			return err
		}
	}
	return feedGroups(ctx, b, r.Groups, r.dir)
}

func feedGroups(ctx context.Context, b gen.Builder, groups []GroupFile, dir string) error {
	for _, g := range groups {
		opts, err := g.options(dir)
		if err != nil {
			return err
		}
		err = b.Group(ctx, opts, func(child *gen.Group) error {
			if err := feedLinks(ctx, child, g.Links, g.Sources, dir); err != nil {
				return err
			}
			return feedGroups(ctx, child, g.Groups, dir)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (g GroupFile) options(dir string) (gen.GroupOptions, error) {
	opts := gen.GroupOptions{
		DefaultHost:  g.DefaultHost,
		SitemapsHost: g.SitemapsHost,
		PublicPath:   g.PublicPath,
		SitemapsPath: g.SitemapsPath,
		Filename:     g.Filename,
	}
	if opts.PublicPath != "" && !filepath.IsAbs(opts.PublicPath) && dir != "" {
		opts.PublicPath = filepath.Join(dir, opts.PublicPath)
	}
	if g.Compress != "" {
		c, err := gen.ParseCompressPolicy(g.Compress)
		if err != nil {
			return opts, err
		}
		opts.Compress = &c
	}
	return opts, nil
}

func feedLinks(ctx context.Context, b gen.Builder, links []map[string]any, sources []Source, dir string) error {
	for _, m := range links {
		loc, opts, err := splitLoc(m, gen.ParseEntryOptions)
		if err != nil {
			return err
		}
		if err := b.Add(ctx, loc, opts); err != nil {
			return err
		}
	}
	for _, s := range sources {
		if err := s.Feed(ctx, b, dir); err != nil {
			return err
		}
	}
	return nil
}

// splitLoc separates the required loc key from the remaining options.
func splitLoc[T any](m map[string]any, parse func(map[string]any) (T, error)) (string, T, error) {
	var zero T
	raw, ok := m["loc"]
	loc, isString := raw.(string)
	if !ok || !isString || strings.TrimSpace(loc) == "" {
		return "", zero, &gen.ErrConfiguration{Field: "loc", Reason: "every link needs a loc string"}
	}
	rest := make(map[string]any, len(m))
	for k, v := range m {
		if k != "loc" {
			rest[k] = v
		}
	}
	opts, err := parse(rest)
	if err != nil {
		return "", zero, err
	}
	return loc, opts, nil
}
