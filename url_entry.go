package gositemapgenerator

import (
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/purell"
	"golang.org/x/text/language"
)

// ChangeFreq is the <changefreq> value of an entry.
type ChangeFreq string

const (
	Always  ChangeFreq = "always"
	Hourly  ChangeFreq = "hourly"
	Daily   ChangeFreq = "daily"
	Weekly  ChangeFreq = "weekly"
	Monthly ChangeFreq = "monthly"
	Yearly  ChangeFreq = "yearly"
	Never   ChangeFreq = "never"
)

func (c ChangeFreq) valid() bool {
	switch c {
	case "", Always, Hourly, Daily, Weekly, Monthly, Yearly, Never:
		return true
	}
	return false
}

// Timestamp is a point in time rendered in W3C datetime format. DateOnly values
// render as YYYY-MM-DD.
type Timestamp struct {
	Time     time.Time
	DateOnly bool
}

// At returns a full date-time Timestamp.
func At(t time.Time) *Timestamp {
	return &Timestamp{Time: t}
}

// Date returns a date-only Timestamp.
func Date(year int, month time.Month, day int) *Timestamp {
	return &Timestamp{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), DateOnly: true}
}

// ParseTimestamp parses RFC 3339, ISO dates and a few common layouts. Values
// without a time component produce a date-only Timestamp.
func ParseTimestamp(value string) (*Timestamp, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("empty timestamp")
	}
	if parsed, err := time.Parse("2006-01-02", trimmed); err == nil {
		return &Timestamp{Time: parsed, DateOnly: true}, nil
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04:05 -0700 MST",
		time.RFC1123,
		time.RFC1123Z,
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return &Timestamp{Time: parsed}, nil
		}
	}
	return nil, fmt.Errorf("unrecognized timestamp %q", value)
}

// W3C renders the timestamp, normalized to UTC with a +00:00 offset.
func (t Timestamp) W3C() string {
	if t.DateOnly {
		return t.Time.Format("2006-01-02")
	}
	return t.Time.UTC().Format("2006-01-02T15:04:05") + "+00:00"
}

// Image is an <image:image> sub-entry.
type Image struct {
	Loc         string
	Caption     string
	GeoLocation string
	Title       string
	License     string
}

// Video is a <video:video> sub-entry.
type Video struct {
	ThumbnailLoc         string
	Title                string
	Description          string
	ContentLoc           string
	PlayerLoc            string
	AllowEmbed           *bool
	Autoplay             string
	Duration             int
	ExpirationDate       *Timestamp
	Rating               *float64
	ViewCount            int
	PublicationDate      *Timestamp
	FamilyFriendly       *bool
	Tags                 []string
	Category             string
	GalleryLoc           string
	GalleryTitle         string
	Price                *float64
	PriceCurrency        string
	Uploader             string
	UploaderInfo         string
	Live                 *bool
	RequiresSubscription *bool
}

// News is a <news:news> sub-entry. Entries carrying news are also counted
// against the per-file news limit.
type News struct {
	PublicationName     string
	PublicationLanguage string
	Title               string
	PublicationDate     *Timestamp
	Keywords            string
	StockTickers        string
	Access              string
	Genres              string
}

// Alternate is an <xhtml:link rel="alternate"> element.
type Alternate struct {
	Href     string
	Lang     string
	Nofollow bool
	Media    string
}

// Geo is a <geo:geo> sub-entry.
type Geo struct {
	Format string
}

// PageMap holds <PageMap> data objects.
type PageMap struct {
	DataObjects []DataObject
}

// DataObject is a <DataObject> of a PageMap.
type DataObject struct {
	Type       string
	ID         string
	Attributes []Attribute
}

// Attribute is a named <Attribute> of a DataObject.
type Attribute struct {
	Name  string
	Value string
}

// EntryOptions are the optional fields of a URL entry.
type EntryOptions struct {
	// Host overrides the default host used to resolve relative paths.
	Host       string
	LastMod    *Timestamp
	Expires    *Timestamp
	ChangeFreq ChangeFreq
	Priority   *float64
	Images     []Image
	Videos     []Video
	News       *News
	Alternates []Alternate
	Geo        *Geo
	Mobile     bool
	PageMap    *PageMap
}

// URLEntry is a validated entry with its serialized <url> fragment cached.
type URLEntry struct {
	Loc string
	EntryOptions

	xml []byte
}

// XML returns the serialized <url> fragment.
func (e *URLEntry) XML() []byte {
	return e.xml
}

// Size returns the byte length of the serialized fragment.
func (e *URLEntry) Size() int {
	return len(e.xml)
}

// HasNews reports whether the entry counts against the news limit.
func (e *URLEntry) HasNews() bool {
	return e.News != nil
}

type entryRules struct {
	maxImages int
	normalize bool
}

// NewURLEntry resolves path against host (unless opts.Host is set or path is
// already absolute), validates the entry and serializes it.
func NewURLEntry(path, host string, opts EntryOptions) (*URLEntry, error) {
	return buildURLEntry(path, host, opts, entryRules{maxImages: DefaultMaxImages})
}

func buildURLEntry(path, host string, opts EntryOptions, rules entryRules) (*URLEntry, error) {
	if opts.Host != "" {
		host = opts.Host
	}
	loc, err := resolveLoc(path, host)
	if err != nil {
		return nil, err
	}
	if rules.normalize {
		normalized, err := purell.NormalizeURLString(loc, purell.FlagsSafe|purell.FlagRemoveDotSegments)
		if err != nil {
			return nil, &ErrInvalidEntry{Loc: loc, Reason: err.Error()}
		}
		loc = normalized
	}
	entry := &URLEntry{Loc: loc, EntryOptions: opts}
	if err := entry.validate(rules); err != nil {
		return nil, err
	}
	entry.xml = appendURLXML(nil, entry)
	return entry, nil
}

func resolveLoc(path, host string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", &ErrInvalidEntry{Reason: "empty loc"}
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", &ErrInvalidEntry{Loc: trimmed, Reason: err.Error()}
	}
	if !parsed.IsAbs() {
		if host == "" {
			return "", &ErrConfiguration{Field: "default_host", Reason: "a host is required to resolve " + trimmed}
		}
		base, err := url.Parse(host)
		if err != nil || !base.IsAbs() {
			return "", &ErrConfiguration{Field: "default_host", Reason: "host must be an absolute URL: " + host}
		}
		parsed = base.ResolveReference(parsed)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", &ErrInvalidEntry{Loc: trimmed, Reason: "loc must be an http or https URL"}
	}
	if parsed.Host == "" {
		return "", &ErrInvalidEntry{Loc: trimmed, Reason: "loc has no host"}
	}
	return parsed.String(), nil
}

func (e *URLEntry) validate(rules entryRules) error {
	if e.Priority != nil {
		p := *e.Priority
		if math.IsNaN(p) || p < 0 || p > 1 {
			return &ErrInvalidEntry{Loc: e.Loc, Reason: fmt.Sprintf("priority %v is outside [0.0, 1.0]", p)}
		}
	}
	if !e.ChangeFreq.valid() {
		return &ErrInvalidEntry{Loc: e.Loc, Reason: fmt.Sprintf("unknown changefreq %q", e.ChangeFreq)}
	}
	if rules.maxImages > 0 && len(e.Images) > rules.maxImages {
		return &ErrInvalidEntry{Loc: e.Loc, Reason: fmt.Sprintf("%d images exceed the limit of %d", len(e.Images), rules.maxImages)}
	}
	for i, img := range e.Images {
		if img.Loc == "" {
			return &ErrInvalidEntry{Loc: e.Loc, Reason: fmt.Sprintf("image %d has no loc", i)}
		}
	}
	for i, v := range e.Videos {
		if v.ThumbnailLoc == "" || v.Title == "" || v.Description == "" {
			return &ErrInvalidEntry{Loc: e.Loc, Reason: fmt.Sprintf("video %d requires thumbnail_loc, title and description", i)}
		}
		if v.ContentLoc == "" && v.PlayerLoc == "" {
			return &ErrInvalidEntry{Loc: e.Loc, Reason: fmt.Sprintf("video %d requires content_loc or player_loc", i)}
		}
		if v.Rating != nil && (*v.Rating < 0 || *v.Rating > 5) {
			return &ErrInvalidEntry{Loc: e.Loc, Reason: fmt.Sprintf("video %d rating must be within [0.0, 5.0]", i)}
		}
	}
	if e.News != nil {
		if e.News.PublicationLanguage != "" {
			lang, err := canonicalNewsLanguage(e.News.PublicationLanguage)
			if err != nil {
				return &ErrInvalidEntry{Loc: e.Loc, Reason: err.Error()}
			}
			news := *e.News
			news.PublicationLanguage = lang
			e.News = &news
		}
	}
	if len(e.Alternates) > 0 {
		alternates := make([]Alternate, len(e.Alternates))
		for i, alt := range e.Alternates {
			if alt.Href == "" {
				return &ErrInvalidEntry{Loc: e.Loc, Reason: fmt.Sprintf("alternate %d has no href", i)}
			}
			if alt.Lang != "" {
				lang, err := canonicalHreflang(alt.Lang)
				if err != nil {
					return &ErrInvalidEntry{Loc: e.Loc, Reason: err.Error()}
				}
				alt.Lang = lang
			}
			alternates[i] = alt
		}
		e.Alternates = alternates
	}
	return nil
}

func canonicalHreflang(value string) (string, error) {
	if strings.EqualFold(value, "x-default") {
		return "x-default", nil
	}
	tag, err := language.Parse(value)
	if err != nil {
		return "", fmt.Errorf("invalid hreflang %q: %w", value, err)
	}
	return tag.String(), nil
}

func canonicalNewsLanguage(value string) (string, error) {
	tag, err := language.Parse(value)
	if err != nil {
		return "", fmt.Errorf("invalid news language %q: %w", value, err)
	}
	return strings.ToLower(tag.String()), nil
}
