package gositemapgenerator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/temoto/robotstxt"
)

const robotsFilename = "robots.txt"

// UpdateRobots makes sure robots.txt in publicPath advertises sitemapURL with a
// "Sitemap:" line. The file is created when missing. It reports whether the
// file changed.
func UpdateRobots(publicPath, sitemapURL string) (bool, error) {
	if sitemapURL == "" {
		return false, &ErrConfiguration{Field: "sitemap_url", Reason: "empty sitemap URL"}
	}
	if publicPath == "" {
		publicPath = defaultPublicPath
	}
	path := filepath.Join(publicPath, robotsFilename)

	body, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if len(body) > 0 {
		data, err := robotstxt.FromBytes(body)
		if err != nil {
			return false, fmt.Errorf("parse %s: %w", path, err)
		}
		for _, loc := range data.Sitemaps {
			if strings.TrimSpace(loc) == sitemapURL {
				return false, nil
			}
		}
	}

	var b strings.Builder
	b.Write(body)
	if len(body) > 0 && body[len(body)-1] != '\n' {
		b.WriteByte('\n')
	}
	if len(body) == 0 {
		b.WriteString("User-agent: *\n")
	}
	b.WriteString("Sitemap: ")
	b.WriteString(sitemapURL)
	b.WriteByte('\n')

	if err := os.MkdirAll(publicPath, 0o755); err != nil {
		return false, fmt.Errorf("create directory %s: %w", publicPath, err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

// UpdateRobots advertises the run's IndexURL in robots.txt under PublicPath.
// Call it after Finalize.
func (ls *LinkSet) UpdateRobots() (bool, error) {
	indexURL, err := ls.IndexURL()
	if err != nil {
		return false, err
	}
	return UpdateRobots(ls.opts.PublicPath, indexURL)
}
