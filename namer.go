package gositemapgenerator

import "strconv"

const (
	defaultNamerStart     = 1
	defaultNamerExtension = ".xml.gz"
)

// NamerOptions configures a Namer. Zero values select the defaults.
type NamerOptions struct {
	// Start is the first number used after the start position (default 1 when
	// nil). Zero is allowed: sitemap, sitemap0, sitemap1, ...
	Start *int
	// Zero is the suffix rendered at the start position (default "").
	Zero string
	// Extension is appended to every name (default ".xml.gz").
	Extension string
}

// Namer generates the sequence base, base1, base2, ... (with Extension appended).
//
// A *Namer is a shared handle: every SitemapFile derived with New observes the same
// cursor.
type Namer struct {
	base      string
	start     int
	zero      string
	extension string

	atStart bool
	count   int
}

// NewNamer builds a Namer positioned at its start.
func NewNamer(base string, opts NamerOptions) *Namer {
	start := defaultNamerStart
	if opts.Start != nil && *opts.Start >= 0 {
		start = *opts.Start
	}
	if opts.Extension == "" {
		opts.Extension = defaultNamerExtension
	}
	n := &Namer{
		base:      base,
		start:     start,
		zero:      opts.Zero,
		extension: opts.Extension,
	}
	n.Reset()
	return n
}

// Base returns the name the sequence is built from.
func (n *Namer) Base() string {
	return n.base
}

// Extension returns the configured extension.
func (n *Namer) Extension() string {
	return n.extension
}

// String returns the current name.
func (n *Namer) String() string {
	if n.atStart {
		return n.base + n.zero + n.extension
	}
	return n.base + strconv.Itoa(n.count) + n.extension
}

// Current is an alias of String.
func (n *Namer) Current() string {
	return n.String()
}

// Next advances the cursor and returns the new name.
func (n *Namer) Next() string {
	if n.atStart {
		n.atStart = false
		n.count = n.start
	} else {
		n.count++
	}
	return n.String()
}

// Previous moves the cursor back and returns the new name.
func (n *Namer) Previous() (string, error) {
	if n.atStart {
		return "", &ErrNamerRange{Base: n.base}
	}
	if n.count <= n.start {
		n.atStart = true
		n.count = 0
	} else {
		n.count--
	}
	return n.String(), nil
}

// Reset returns the cursor to the start position.
func (n *Namer) Reset() {
	n.atStart = true
	n.count = 0
}

// IsStart reports whether the cursor is at the start position.
func (n *Namer) IsStart() bool {
	return n.atStart
}

// Clone returns an independent Namer with the same settings and cursor.
func (n *Namer) Clone() *Namer {
	clone := *n
	return &clone
}
