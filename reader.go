package gositemapgenerator

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultReadBufSize = 64 * 1024
	defaultMaxDepth    = 4
	maxFetchAttempts   = 3
	defaultRetryDelay  = 2 * time.Second
	maxRetryDelay      = 30 * time.Second
)

// ===================== Configuration =====================

// ReaderOptions configures reading generated output back.
type ReaderOptions struct {
	// Host and PublicPath map URLs below Host to files below PublicPath. Other
	// URLs are fetched with HTTPClient.
	Host       string
	PublicPath string
	HTTPClient *http.Client
	// MaxDepth bounds nested indexes (default 4).
	MaxDepth int
	Logger   *slog.Logger
}

// Item is a <url> entry read back from a sitemap.
type Item struct {
	Loc        string
	LastMod    *time.Time
	ChangeFreq string
	Priority   *float64
	Images     int
	Videos     int
	Alternates int
	News       bool
	// Sitemap is the URL of the document holding the entry.
	Sitemap string
}

// Document summarizes one document visited by Inspect.
type Document struct {
	Loc     string
	Index   bool
	Entries int
}

// Report is the result of Inspect.
type Report struct {
	Documents []Document
	URLs      int
}

// Reader walks a sitemap or an index and the sitemaps it references.
type Reader struct {
	opts   ReaderOptions
	client *http.Client
	logger *slog.Logger
}

// ===================== Public API =====================

// NewReader builds a Reader with defaults applied.
func NewReader(opts ReaderOptions) *Reader {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = defaultMaxDepth
	}
	if opts.PublicPath == "" {
		opts.PublicPath = defaultPublicPath
	}
	opts.Host = strings.TrimRight(opts.Host, "/")
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Reader{opts: opts, client: opts.HTTPClient, logger: opts.Logger}
}

// Walk reads the document at loc. For an index every referenced sitemap is
// read in order; yield is called for each <url> entry.
func (r *Reader) Walk(ctx context.Context, loc string, yield func(Item) error) error {
	_, err := r.walk(ctx, loc, yield)
	return err
}

// Inspect walks loc and counts entries per document.
func (r *Reader) Inspect(ctx context.Context, loc string) (Report, error) {
	return r.walk(ctx, loc, nil)
}

func (r *Reader) walk(ctx context.Context, loc string, yield func(Item) error) (Report, error) {
	var report Report
	if ctx == nil {
		ctx = context.Background()
	}
	queue := []readTask{{loc: loc}}
	seen := map[string]struct{}{}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		current := queue[0]
		queue = queue[1:]
		if current.depth > r.opts.MaxDepth {
			return report, &ErrMaxDepth{MaxDepth: r.opts.MaxDepth, Loc: current.loc}
		}
		if _, ok := seen[current.loc]; ok {
			continue
		}
		seen[current.loc] = struct{}{}

		reader, err := r.open(ctx, current.loc)
		if err != nil {
			return report, err
		}
		doc := Document{Loc: current.loc}
		err = parseSitemap(ctx, reader, func(entry xmlURLEntry) error {
			doc.Entries++
			report.URLs++
			if yield == nil {
				return nil
			}
			if err := yield(entry.item(current.loc)); err != nil {
				return &ErrYield{Err: err}
			}
			return nil
		}, func(entry xmlSitemapEntry) error {
			doc.Index = true
			doc.Entries++
			child := strings.TrimSpace(entry.Loc)
			if child == "" {
				r.logger.Debug(fmt.Sprintf("empty sitemap loc in %s", current.loc))
				return nil
			}
			queue = append(queue, readTask{loc: child, depth: current.depth + 1})
			return nil
		})
		reader.Close()
		report.Documents = append(report.Documents, doc)
		if err != nil {
			var yieldErr *ErrYield
			if errors.As(err, &yieldErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return report, err
			}
			return report, &ErrSitemapParse{Loc: current.loc, Err: err}
		}
	}
	return report, nil
}

// ===================== Internal Types =====================

type readTask struct {
	loc   string
	depth int
}

type xmlURLEntry struct {
	Loc        string     `xml:"loc"`
	LastMod    string     `xml:"lastmod"`
	ChangeFreq string     `xml:"changefreq"`
	Priority   string     `xml:"priority"`
	Images     []struct{} `xml:"image"`
	Videos     []struct{} `xml:"video"`
	Alternates []struct{} `xml:"link"`
	News       *struct{}  `xml:"news"`
}

func (e xmlURLEntry) item(sitemap string) Item {
	return Item{
		Loc:        strings.TrimSpace(e.Loc),
		LastMod:    parseTimeValue(e.LastMod),
		ChangeFreq: strings.TrimSpace(e.ChangeFreq),
		Priority:   parsePriority(e.Priority),
		Images:     len(e.Images),
		Videos:     len(e.Videos),
		Alternates: len(e.Alternates),
		News:       e.News != nil,
		Sitemap:    sitemap,
	}
}

type xmlSitemapEntry struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

type multiCloser struct {
	reader  io.Reader
	closers []io.Closer
}

func (m *multiCloser) Read(p []byte) (int, error) {
	return m.reader.Read(p)
}

func (m *multiCloser) Close() error {
	var firstErr error
	for _, closer := range m.closers {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ===================== Sources =====================

func (r *Reader) open(ctx context.Context, loc string) (io.ReadCloser, error) {
	if path, ok := r.localPath(loc); ok {
		f, err := os.Open(path)
		if err != nil {
			return nil, &ErrRead{Loc: loc, Err: err}
		}
		return wrapReader(f)
	}
	return r.fetch(ctx, loc)
}

// localPath maps a URL below Host to a file below PublicPath.
func (r *Reader) localPath(loc string) (string, bool) {
	if r.opts.Host == "" || !strings.HasPrefix(loc, r.opts.Host+"/") {
		return "", false
	}
	rel := strings.TrimPrefix(loc, r.opts.Host)
	if unescaped, err := url.PathUnescape(rel); err == nil {
		rel = unescaped
	}
	path := filepath.Join(r.opts.PublicPath, filepath.FromSlash(rel))
	within, err := filepath.Rel(r.opts.PublicPath, path)
	if err != nil || strings.HasPrefix(within, "..") {
		return "", false
	}
	return path, true
}

func (r *Reader) fetch(ctx context.Context, loc string) (io.ReadCloser, error) {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
		if err != nil {
			return nil, &ErrRead{Loc: loc, Err: err}
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return nil, &ErrRead{Loc: loc, Err: err}
		}
		if resp.StatusCode == http.StatusTooManyRequests && attempt < maxFetchAttempts {
			delay := retryAfterDelay(resp)
			resp.Body.Close()
			r.logger.Debug(fmt.Sprintf("received 429 for %s, retrying in %s", loc, delay))
			if err := sleepWithContext(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, &ErrRead{Loc: loc, StatusCode: resp.StatusCode}
		}
		reader, err := wrapReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, &ErrRead{Loc: loc, Err: err}
		}
		return reader, nil
	}
}

// wrapReader transparently gunzips bodies starting with the gzip magic bytes.
func wrapReader(body io.ReadCloser) (io.ReadCloser, error) {
	reader := bufio.NewReaderSize(body, defaultReadBufSize)
	peek, err := reader.Peek(2)
	if err == nil && peek[0] == 0x1f && peek[1] == 0x8b {
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return nil, err
		}
		return &multiCloser{reader: gz, closers: []io.Closer{gz, body}}, nil
	}
	return &multiCloser{reader: reader, closers: []io.Closer{body}}, nil
}

func retryAfterDelay(resp *http.Response) time.Duration {
	value := strings.TrimSpace(resp.Header.Get("Retry-After"))
	delay := defaultRetryDelay
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		delay = time.Duration(seconds) * time.Second
	} else if t, err := http.ParseTime(value); err == nil {
		delay = time.Until(t)
	}
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ===================== XML Parsing =====================

func parseSitemap(ctx context.Context, reader io.Reader, onURL func(xmlURLEntry) error, onSitemap func(xmlSitemapEntry) error) error {
	decoder := xml.NewDecoder(reader)
	decoder.Strict = false

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		tok, err := decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "url":
			var entry xmlURLEntry
			if err := decoder.DecodeElement(&entry, &start); err != nil {
				return err
			}
			if err := onURL(entry); err != nil {
				return err
			}
		case "sitemap":
			var entry xmlSitemapEntry
			if err := decoder.DecodeElement(&entry, &start); err != nil {
				return err
			}
			if err := onSitemap(entry); err != nil {
				return err
			}
		}
	}
}

func parseTimeValue(value string) *time.Time {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02", "2006-01-02T15:04:05"} {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return &parsed
		}
	}
	return nil
}

func parsePriority(value string) *float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return nil
	}
	return &parsed
}
