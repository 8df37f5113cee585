package gositemapgenerator

import (
	"net/url"
	"path/filepath"
	"strings"
)

// CompressPolicy decides which generated files are gzip-compressed.
type CompressPolicy int

const (
	// CompressAll gzips every file (the default).
	CompressAll CompressPolicy = iota
	// CompressNever writes plain XML.
	CompressNever
	// CompressAllButFirst leaves the first file of a namer series uncompressed.
	CompressAllButFirst
)

func (p CompressPolicy) String() string {
	switch p {
	case CompressNever:
		return "never"
	case CompressAllButFirst:
		return "all_but_first"
	default:
		return "all"
	}
}

// ParseCompressPolicy accepts "all"/"true", "never"/"false" and "all_but_first".
func ParseCompressPolicy(value string) (CompressPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "all", "true", "yes":
		return CompressAll, nil
	case "never", "false", "no", "none":
		return CompressNever, nil
	case "all_but_first", "all-but-first":
		return CompressAllButFirst, nil
	default:
		return CompressAll, &ErrConfiguration{Field: "compress", Reason: "unknown policy " + value}
	}
}

// LocationOptions describes where a sitemap file lives.
type LocationOptions struct {
	// Host is the public base URL the file is served from, e.g. https://example.com.
	Host string
	// PublicPath is the local directory mapped to Host (default "public").
	PublicPath string
	// SitemapsPath is the directory below PublicPath and Host holding the files.
	SitemapsPath string
	// Filename pins the name. Mutually exclusive with Namer.
	Filename string
	// Namer generates the name lazily. Mutually exclusive with Filename.
	Namer    *Namer
	Compress CompressPolicy
}

// Location resolves a logical sitemap file to a local path and a public URL.
//
// The filename is either explicit or taken from the namer on first access. Once
// resolved it is pinned: later namer advances do not change it.
type Location struct {
	host         string
	publicPath   string
	sitemapsPath string
	compress     CompressPolicy

	namer    *Namer
	filename string
	resolved bool
}

// NewLocation builds a Location. A non-empty Filename wins over Namer.
func NewLocation(opts LocationOptions) *Location {
	if opts.PublicPath == "" {
		opts.PublicPath = defaultPublicPath
	}
	loc := &Location{
		host:         strings.TrimRight(opts.Host, "/"),
		publicPath:   opts.PublicPath,
		sitemapsPath: opts.SitemapsPath,
		compress:     opts.Compress,
	}
	if opts.Filename != "" {
		loc.SetFilename(opts.Filename)
	} else {
		loc.SetNamer(opts.Namer)
	}
	return loc
}

// Host returns the host files are served from.
func (l *Location) Host() string {
	return l.host
}

// PublicPath returns the local directory mapped to Host.
func (l *Location) PublicPath() string {
	return l.publicPath
}

// SitemapsPath returns the directory below PublicPath holding the files.
func (l *Location) SitemapsPath() string {
	return l.sitemapsPath
}

// Compress returns the compression policy.
func (l *Location) Compress() CompressPolicy {
	return l.compress
}

// Namer returns the attached namer, nil when the filename is explicit.
func (l *Location) Namer() *Namer {
	return l.namer
}

// SetFilename pins an explicit filename and detaches the namer.
func (l *Location) SetFilename(name string) {
	l.filename = name
	l.resolved = name != ""
	l.namer = nil
}

// SetNamer attaches a namer and clears any filename.
func (l *Location) SetNamer(n *Namer) {
	l.namer = n
	l.filename = ""
	l.resolved = false
}

// ClearFilename drops a filename resolved from the namer so the next call to
// Filename resolves again. Explicit filenames are kept.
func (l *Location) ClearFilename() {
	if l.namer == nil {
		return
	}
	l.filename = ""
	l.resolved = false
}

// Filename returns the file name, resolving and pinning it from the namer on
// first use.
func (l *Location) Filename() string {
	if l.resolved || l.namer == nil {
		return l.filename
	}
	l.filename = l.namerName()
	l.resolved = true
	return l.filename
}

func (l *Location) namerName() string {
	name := l.namer.String()
	if l.compress == CompressNever || (l.compress == CompressAllButFirst && l.namer.IsStart()) {
		name = strings.TrimSuffix(name, ".gz")
	}
	return name
}

// pathHint returns the path the file would get now without pinning the name.
// Error messages use it so that reporting never claims a name of a shared namer.
func (l *Location) pathHint() string {
	if l.resolved || l.namer == nil {
		return l.Path()
	}
	return filepath.Join(l.Directory(), l.namerName())
}

// urlPrefix identifies the URL space of the file: host plus sitemaps path.
func (l *Location) urlPrefix() string {
	return l.host + "/" + strings.Trim(l.sitemapsPath, "/")
}

// Compressed reports whether the file is written gzip-compressed.
func (l *Location) Compressed() bool {
	return strings.HasSuffix(l.Filename(), ".gz")
}

// Directory returns the local directory the file is written to.
func (l *Location) Directory() string {
	return filepath.Join(l.publicPath, filepath.FromSlash(l.sitemapsPath))
}

// Path returns the local file path.
func (l *Location) Path() string {
	return filepath.Join(l.Directory(), l.Filename())
}

// URL returns the public URL of the file.
func (l *Location) URL() (string, error) {
	if l.host == "" {
		return "", &ErrConfiguration{Field: "host", Reason: "a host is required to build sitemap URLs"}
	}
	return url.JoinPath(l.host, l.sitemapsPath, l.Filename())
}

// Validate checks that the location can be written and addressed.
func (l *Location) Validate() error {
	if l.host == "" {
		return &ErrConfiguration{Field: "host", Reason: "a host is required to build sitemap URLs"}
	}
	parsed, err := url.Parse(l.host)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return &ErrConfiguration{Field: "host", Reason: "host must be an absolute URL: " + l.host}
	}
	if strings.Contains(l.sitemapsPath, "..") {
		return &ErrConfiguration{Field: "sitemaps_path", Reason: "path escapes the public path: " + l.sitemapsPath}
	}
	if l.namer == nil && l.filename == "" {
		return &ErrConfiguration{Field: "filename", Reason: "either a filename or a namer is required"}
	}
	return nil
}

// LocationOverrides replaces selected fields in With. Empty fields are kept.
type LocationOverrides struct {
	Host         string
	PublicPath   string
	SitemapsPath *string
	Filename     string
	Namer        *Namer
	Compress     *CompressPolicy
}

// With returns a derived copy with the given fields replaced.
func (l *Location) With(o LocationOverrides) *Location {
	clone := *l
	if o.Host != "" {
		clone.host = strings.TrimRight(o.Host, "/")
	}
	if o.PublicPath != "" {
		clone.publicPath = o.PublicPath
	}
	if o.SitemapsPath != nil {
		clone.sitemapsPath = *o.SitemapsPath
	}
	if o.Compress != nil {
		clone.compress = *o.Compress
	}
	switch {
	case o.Filename != "":
		clone.SetFilename(o.Filename)
	case o.Namer != nil:
		clone.SetNamer(o.Namer)
	}
	return &clone
}

// SameDestination reports whether other writes to the same place the same way:
// same host, directories, compression policy and naming source.
func (l *Location) SameDestination(other *Location) bool {
	if other == nil {
		return false
	}
	if l.host != other.host || l.compress != other.compress {
		return false
	}
	if filepath.Clean(l.Directory()) != filepath.Clean(other.Directory()) {
		return false
	}
	if strings.Trim(l.sitemapsPath, "/") != strings.Trim(other.sitemapsPath, "/") {
		return false
	}
	if l.namer != nil || other.namer != nil {
		return l.namer == other.namer
	}
	return l.filename == other.filename
}

// clone returns a copy sharing the namer, with a namer-resolved filename cleared.
func (l *Location) clone() *Location {
	clone := *l
	clone.ClearFilename()
	return &clone
}
