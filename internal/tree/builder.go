package tree

import (
	"fmt"
	"strings"
)

// Policy decides what happens when one name is used both as a file and as a
// directory under the same parent.
type Policy int

const (
	// PolicyDirectoryWins records the conflict and hides the file from the
	// formatted output.
	PolicyDirectoryWins Policy = iota
	// PolicyStrict aborts the build on the first conflict.
	PolicyStrict
)

// ParsePolicy maps a configuration string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", "directory-wins", "directory":
		return PolicyDirectoryWins, nil
	case "strict", "fail":
		return PolicyStrict, nil
	default:
		return PolicyDirectoryWins, fmt.Errorf("unknown conflict policy %q", s)
	}
}

func (p Policy) String() string {
	switch p {
	case PolicyStrict:
		return "strict"
	default:
		return "directory-wins"
	}
}

// Conflict describes a name that is both a file and a directory.
type Conflict struct {
	Host string `json:"host"`
	Path string `json:"path"`
	URL  string `json:"url"`
}

// ConflictError is returned by strict builds.
type ConflictError struct {
	Conflict Conflict
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("name conflict on %s at %s (from %q)", e.Conflict.Host, e.Conflict.Path, e.Conflict.URL)
}

// Builder converts URL lists into forests.
type Builder struct {
	Policy Policy
}

// Build builds a forest with the default policy, discarding conflict reports.
func Build(urls []string) (*Forest, error) {
	forest, _, err := Builder{}.Build(urls)
	return forest, err
}

// Build processes urls in order. Any unparseable URL aborts the whole batch.
func (b Builder) Build(urls []string) (*Forest, []Conflict, error) {
	forest := NewForest()
	var conflicts []Conflict

	for _, raw := range urls {
		parsed, err := ParseURL(raw)
		if err != nil {
			return nil, nil, err
		}
		if parsed.Empty() {
			continue
		}

		current := forest.FindOrCreateHost(parsed.Host)
		for i, segment := range parsed.Segments {
			if !current.HasChild(segment) && current.HasFile(segment) {
				c := Conflict{Host: parsed.Host, Path: childPath(parsed.Segments[:i], segment), URL: raw}
				if b.Policy == PolicyStrict {
					return nil, nil, &ConflictError{Conflict: c}
				}
				conflicts = append(conflicts, c)
			}
			current = current.FindOrCreateChild(segment)
		}

		if parsed.HasFile {
			if current.HasChild(parsed.File) {
				c := Conflict{Host: parsed.Host, Path: childPath(parsed.Segments, parsed.File), URL: raw}
				if b.Policy == PolicyStrict {
					return nil, nil, &ConflictError{Conflict: c}
				}
				conflicts = append(conflicts, c)
			}
			current.AddFile(parsed.File)
		}
	}

	return forest, conflicts, nil
}

func childPath(dirs []string, name string) string {
	if len(dirs) == 0 {
		return "/" + name
	}
	return "/" + strings.Join(dirs, "/") + "/" + name
}
