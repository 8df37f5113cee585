package linksource

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	gen "github.com/kotylevskiy/go-sitemap-generator"
)

const (
	SourceText   = "text"
	SourceSQLite = "sqlite"
)

func (s Source) validate() error {
	switch s.Type {
	case SourceText:
		if s.Path == "" {
			return &gen.ErrConfiguration{Field: "path", Reason: "text source needs a path"}
		}
	case SourceSQLite:
		if s.Path == "" || s.Query == "" {
			return &gen.ErrConfiguration{Field: "query", Reason: "sqlite source needs a path and a query"}
		}
	default:
		return &gen.ErrConfiguration{Field: "type", Reason: fmt.Sprintf("unknown source type %q", s.Type)}
	}
	return nil
}

// Feed adds the source's links to b. Relative paths resolve against dir.
func (s Source) Feed(ctx context.Context, b gen.Builder, dir string) error {
	path := s.Path
	if !filepath.IsAbs(path) && dir != "" {
		path = filepath.Join(dir, path)
	}
	switch s.Type {
	case SourceText:
		return FeedText(ctx, b, path)
	case SourceSQLite:
		return FeedSQLite(ctx, b, path, s.Query)
	}
	return s.validate()
}

// FeedText adds one link per line of the file at path. Blank lines and lines
// starting with # are skipped.
func FeedText(ctx context.Context, b gen.Builder, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		loc := strings.TrimSpace(scanner.Text())
		if loc == "" || strings.HasPrefix(loc, "#") {
			continue
		}
		if err := b.Add(ctx, loc, gen.EntryOptions{}); err != nil {
			return fmt.Errorf("%s:%d: %w", path, line, err)
		}
	}
	return scanner.Err()
}

// FeedSQLite runs query against the SQLite database at path and adds one link
// per row. The loc column is required; lastmod, changefreq and priority are
// used when present.
func FeedSQLite(ctx context.Context, b gen.Builder, path, query string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()
	return FeedRows(ctx, b, db, query)
}

// FeedRows runs query on db and adds one link per row.
func FeedRows(ctx context.Context, b gen.Builder, db *sql.DB, query string) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return err
	}
	index := map[string]int{}
	for i, name := range columns {
		index[strings.ToLower(name)] = i
	}
	if _, ok := index["loc"]; !ok {
		return &gen.ErrConfiguration{Field: "query", Reason: "query must select a loc column"}
	}

	values := make([]sql.NullString, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		column := func(name string) string {
			if i, ok := index[name]; ok && values[i].Valid {
				return strings.TrimSpace(values[i].String)
			}
			return ""
		}
		opts, err := rowOptions(column)
		if err != nil {
			return err
		}
		if err := b.Add(ctx, column("loc"), opts); err != nil {
			return err
		}
	}
	return rows.Err()
}

func rowOptions(column func(string) string) (gen.EntryOptions, error) {
	var opts gen.EntryOptions
	if v := column("lastmod"); v != "" {
		ts, err := gen.ParseTimestamp(v)
		if err != nil {
			return opts, &gen.ErrConfiguration{Field: "lastmod", Reason: err.Error()}
		}
		opts.LastMod = ts
	}
	opts.ChangeFreq = gen.ChangeFreq(strings.ToLower(column("changefreq")))
	if v := column("priority"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, &gen.ErrConfiguration{Field: "priority", Reason: err.Error()}
		}
		opts.Priority = &p
	}
	return opts, nil
}
