package tree

import "strings"

// Links maps a file's tree path ("host/dir/file") to the first URL that
// named it.
type Links map[string]string

// LinkKey joins a host, its directories and a file name into a Links key.
func LinkKey(host string, dirs []string, file string) string {
	parts := make([]string, 0, len(dirs)+2)
	parts = append(parts, host)
	parts = append(parts, dirs...)
	parts = append(parts, file)
	return strings.Join(parts, "/")
}

// BuildLinks records the source URL of every file. URLs that do not parse
// or name no file are skipped.
func BuildLinks(urls []string) Links {
	links := make(Links)
	for _, raw := range urls {
		parsed, err := ParseURL(raw)
		if err != nil || !parsed.HasFile {
			continue
		}
		key := LinkKey(parsed.Host, parsed.Segments, parsed.File)
		if _, ok := links[key]; !ok {
			links[key] = raw
		}
	}
	return links
}

// Resolve returns the URL of the file at host/dirs.../file.
func (l Links) Resolve(parts ...string) (string, bool) {
	if len(parts) < 2 {
		return "", false
	}
	u, ok := l[strings.Join(parts, "/")]
	return u, ok
}
