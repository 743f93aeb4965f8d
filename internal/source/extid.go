package source

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"strings"
)

// normalizeLink puts a URL into canonical form so the same logical
// link always hashes to the same external id: lowercase scheme and host,
// duplicate slashes collapsed, trailing slash stripped, query preserved,
// fragment dropped.
func normalizeLink(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(strings.ToLower(raw))
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	path := u.EscapedPath()
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	path = strings.TrimSuffix(path, "/")
	u.RawPath = ""
	u.Path = path

	return u.String()
}

// linkExternalID derives a stable external id from an item's canonical
// link. Identity is content-derived, never positional: re-fetching the
// same article after sibling reordering yields the same id.
func linkExternalID(link string) string {
	return hashExternalID(normalizeLink(link))
}

// textExternalID is the fallback when a page node carries no link at all.
func textExternalID(title, summary string) string {
	norm := collapseWhitespace(strings.ToLower(title + " " + summary))
	return hashExternalID(norm)
}

func hashExternalID(s string) string {
	h := sha1.New()
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}
