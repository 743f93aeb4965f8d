// Package source defines configured news origins and the extractor that
// turns one origin into a batch of raw items ready for staging.
package source

import "time"

// Type is the closed set of supported source kinds. Extraction dispatches
// on it exhaustively, so adding a kind is a compile-visible change.
type Type int

const (
	TypeFeed Type = iota // syndication feed (RSS/Atom)
	TypePage             // scraped HTML page
	TypeAPI              // JSON API endpoint
)

func (t Type) String() string {
	switch t {
	case TypeFeed:
		return "rss"
	case TypePage:
		return "site"
	case TypeAPI:
		return "api"
	}
	return "unknown"
}

// ParseType maps the admin-facing type names onto the enum. Both the
// short and the long spellings are accepted.
func ParseType(raw string) (Type, bool) {
	switch raw {
	case "rss", "feed", "feed-rss":
		return TypeFeed, true
	case "site", "page", "page-site":
		return TypePage, true
	case "api":
		return TypeAPI, true
	}
	return 0, false
}

// Source is one configured origin. Meta carries per-source extraction
// options, e.g. CSS selectors for page sources.
type Source struct {
	ID        int64
	Name      string
	Type      Type
	URL       string
	Active    bool
	Meta      map[string]string
	CreatedAt time.Time
}

// RawItem is one collected, not-yet-classified piece of content.
// (SourceID, ExternalID) identifies the logical item across re-fetches.
type RawItem struct {
	ID          int64
	SourceID    int64
	Title       string
	Summary     string
	URL         string
	ExternalID  string
	PublishedAt time.Time
	CollectedAt time.Time
	Tags        []string
}

// Result is the outcome of extracting one source. A failed source carries
// Err and zero items; it never aborts the collection pass.
type Result struct {
	Source Source
	Items  []RawItem
	Err    error
}
