package tree

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ParsedURL is a file URL split into host, directory segments and an
// optional trailing file name.
type ParsedURL struct {
	Host     string
	Segments []string
	File     string
	HasFile  bool
}

// Empty reports whether the URL has no path segments at all.
func (p ParsedURL) Empty() bool {
	return len(p.Segments) == 0 && !p.HasFile
}

// ParseError is returned for URLs that cannot be parsed.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid url %q: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var (
	errMissingScheme = errors.New("missing scheme")
	errMissingHost   = errors.New("missing host")
)

// ParseURL splits an absolute URL. A URL that does not end in "/" names a
// file in its last segment; otherwise every segment is a directory.
//
// Hosts are lowercased and IPv6 literals keep their brackets. Segments stay
// percent-encoded as they appear in the URL, and "." and ".." segments are
// resolved, so %2F inside a name never becomes a path separator.
func ParseURL(raw string) (ParsedURL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return ParsedURL{}, &ParseError{URL: raw, Err: err}
	}
	if u.Scheme == "" {
		return ParsedURL{}, &ParseError{URL: raw, Err: errMissingScheme}
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ParsedURL{}, &ParseError{URL: raw, Err: errMissingHost}
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	segments := splitPath(u.EscapedPath())
	parsed := ParsedURL{Host: host}
	if len(segments) > 0 && !strings.HasSuffix(raw, "/") {
		parsed.File = segments[len(segments)-1]
		parsed.HasFile = true
		segments = segments[:len(segments)-1]
	}
	parsed.Segments = segments
	return parsed, nil
}

// splitPath drops empty segments and resolves dot segments.
func splitPath(p string) []string {
	segments := []string{}
	for _, part := range strings.Split(p, "/") {
		switch part {
		case "", ".":
		case "..":
			if len(segments) > 0 {
				segments = segments[:len(segments)-1]
			}
		default:
			segments = append(segments, part)
		}
	}
	return segments
}
