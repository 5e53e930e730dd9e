// Package urlmatch owns the canonical "matchable" form of URLs and prefix
// matchers. A matchable is the hostname+path remainder of an http(s) URL with
// any m. or www. subdomains trimmed, so a stored prefix can be compared to an
// inbound URL with a plain strings.HasPrefix (or `? LIKE prefix || '%'` in
// SQL).
package urlmatch

import (
	"fmt"
	"net/url"
	"strings"
)

// InvalidURLError means the input wasn't an http(s) URL we can bookmark.
type InvalidURLError struct {
	URL string
}

func (e *InvalidURLError) Error() string {
	return fmt.Sprintf("can't bookmark an invalid URL: %q (only http and https URLs are supported)", e.URL)
}

// trimMWWW strips any stack of leading "m." and "www." subdomains.
func trimMWWW(partial string) string {
	for {
		if rest, ok := strings.CutPrefix(partial, "m."); ok {
			partial = rest
		} else if rest, ok := strings.CutPrefix(partial, "www."); ok {
			partial = rest
		} else {
			return partial
		}
	}
}

// trimScheme validates that raw is an http or https URL and returns it with
// the scheme and :// separator removed.
func trimScheme(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", &InvalidURLError{URL: raw}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", &InvalidURLError{URL: raw}
	}
	// Slice by length rather than cutting the literal scheme: url.Parse
	// lower-cases it, but the raw input may not be lower case.
	rest, ok := strings.CutPrefix(raw[len(parsed.Scheme):], "://")
	if !ok {
		return "", &InvalidURLError{URL: raw}
	}
	return rest, nil
}

// MatchableFromURL reduces a full URL to its matchable form. It doubles as
// validation for inbound URLs.
func MatchableFromURL(raw string) (string, error) {
	trimmed, err := trimScheme(raw)
	if err != nil {
		return "", err
	}
	return trimMWWW(trimmed), nil
}

// NormalizePrefix cleans a user-supplied prefix matcher before it's stored.
// Prefixes normally arrive without a scheme, but if the user pasted one in,
// their intent is still clear, so trim it rather than erroring.
func NormalizePrefix(prefix string) string {
	rest := prefix
	if trimmed, err := trimScheme(prefix); err == nil {
		rest = trimmed
	}
	return trimMWWW(rest)
}
