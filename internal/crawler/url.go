package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var seedPattern = regexp.MustCompile(`^https?://\S+$`)

// Normalizer turns raw hrefs into canonical URLs confined to one base domain.
// It is immutable and safe for concurrent use.
type Normalizer struct {
	base string   // scheme://host
	root *url.URL // base with path "/"
}

// ParseSeed validates a seed URL and returns its canonical form together
// with a Normalizer for its scheme and host.
func ParseSeed(raw string) (string, *Normalizer, error) {
	raw = strings.TrimSpace(raw)
	if !seedPattern.MatchString(raw) {
		return "", nil, fmt.Errorf("%w: seed %q must match scheme://host", ErrInvalidURL, raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", nil, fmt.Errorf("%w: parse seed: %v", ErrInvalidURL, err)
	}
	canonicalize(u)
	if u.Host == "" {
		return "", nil, fmt.Errorf("%w: seed %q has no host", ErrInvalidURL, raw)
	}
	root := &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}
	n := &Normalizer{
		base: u.Scheme + "://" + u.Host,
		root: root,
	}
	return u.String(), n, nil
}

// BaseDomain returns the scheme://host prefix links are confined to.
func (n *Normalizer) BaseDomain() string {
	return n.base
}

// Normalize resolves href against the base domain, strips its fragment and
// query and rejects it if it leaves the base domain.
//
// Root-relative (/path) and bare-relative (path) hrefs both resolve against
// the base domain root, not against the page they were found on.
func (n *Normalizer) Normalize(href string) (string, error) {
	href = strings.TrimSpace(href)
	switch {
	case href == "":
		return "", fmt.Errorf("%w: empty href", ErrNotNavigational)
	case strings.HasPrefix(href, "#"):
		return "", fmt.Errorf("%w: in-page anchor %q", ErrNotNavigational, href)
	case looksLikeScript(href):
		return "", fmt.Errorf("%w: script token %q", ErrNotNavigational, href)
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("%w: parse %q: %v", ErrInvalidURL, href, err)
	}
	if ref.Scheme != "" {
		scheme := strings.ToLower(ref.Scheme)
		if scheme != "http" && scheme != "https" {
			return "", fmt.Errorf("%w: scheme %q", ErrNotNavigational, scheme)
		}
		if ref.Opaque != "" {
			return "", fmt.Errorf("%w: opaque url %q", ErrInvalidURL, href)
		}
	}

	abs := n.root.ResolveReference(ref)
	canonicalize(abs)
	if abs.Host == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidURL, href)
	}
	if abs.Scheme+"://"+abs.Host != n.base {
		return "", fmt.Errorf("%w: %q", ErrOffDomain, href)
	}
	return abs.String(), nil
}

// canonicalize lowercases the scheme and host, removes default ports and
// drops userinfo, the fragment and the query. An empty path becomes "/".
func canonicalize(u *url.URL) {
	u.User = nil
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = ""
	u.ForceQuery = false

	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}
}

// looksLikeScript catches markup and string concatenation leaking out of
// inline JavaScript. Other unusual characters are left to url.Parse, and
// String percent-encodes them.
func looksLikeScript(href string) bool {
	if strings.ContainsAny(href, "<>\"`") {
		return true
	}
	lower := strings.ToLower(href)
	return strings.Contains(lower, "javascript:") || strings.Contains(lower, "vbscript:")
}
