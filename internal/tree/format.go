package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Entry is one formatted item: a file name, or a directory with its
// formatted children.
type Entry struct {
	Name     string
	Dir      bool
	Children []Entry
}

// File returns a file entry.
func File(name string) Entry {
	return Entry{Name: name}
}

// Dir returns a directory entry.
func Dir(name string, children ...Entry) Entry {
	if children == nil {
		children = []Entry{}
	}
	return Entry{Name: name, Dir: true, Children: children}
}

// MarshalJSON encodes files as strings and directories as single-key
// objects mapping the name to the children.
func (e Entry) MarshalJSON() ([]byte, error) {
	if !e.Dir {
		return json.Marshal(e.Name)
	}

	children := e.Children
	if children == nil {
		children = []Entry{}
	}

	var buf bytes.Buffer
	key, err := json.Marshal(e.Name)
	if err != nil {
		return nil, err
	}
	val, err := json.Marshal(children)
	if err != nil {
		return nil, err
	}
	buf.WriteByte('{')
	buf.Write(key)
	buf.WriteByte(':')
	buf.Write(val)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*e = File(name)
		return nil
	}

	var dir map[string][]Entry
	if err := json.Unmarshal(data, &dir); err != nil {
		return err
	}
	if len(dir) != 1 {
		return fmt.Errorf("directory entry must have exactly one key, got %d", len(dir))
	}
	for name, children := range dir {
		*e = Dir(name, children...)
	}
	return nil
}

// HostTree is the formatted tree of one host.
type HostTree struct {
	Host    string
	Entries []Entry
}

// Result maps hosts to their formatted trees, in first-seen host order.
type Result []HostTree

// Lookup returns the entries of the directory reached by following dirs
// from the root of host.
func (r Result) Lookup(host string, dirs ...string) ([]Entry, bool) {
	var entries []Entry
	found := false
	for _, ht := range r {
		if ht.Host == host {
			entries = ht.Entries
			found = true
			break
		}
	}
	if !found {
		return nil, false
	}

	for _, name := range dirs {
		next, ok := findDir(entries, name)
		if !ok {
			return nil, false
		}
		entries = next
	}
	return entries, true
}

func findDir(entries []Entry, name string) ([]Entry, bool) {
	for _, e := range entries {
		if e.Dir && e.Name == name {
			return e.Children, true
		}
	}
	return nil, false
}

// MarshalJSON encodes the result as an object keyed by host, keeping host
// order.
func (r Result) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ht := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(ht.Host)
		if err != nil {
			return nil, err
		}
		entries := ht.Entries
		if entries == nil {
			entries = []Entry{}
		}
		val, err := json.Marshal(entries)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Result) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("result must be a JSON object")
	}

	result := Result{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		host, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		var entries []Entry
		if err := dec.Decode(&entries); err != nil {
			return fmt.Errorf("host %s: %w", host, err)
		}
		result = append(result, HostTree{Host: host, Entries: entries})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*r = result
	return nil
}

// Format converts a forest into its transport shape.
func Format(f *Forest) Result {
	result := make(Result, 0, len(f.hosts))
	for _, root := range f.hosts {
		result = append(result, HostTree{Host: root.name, Entries: FormatNode(root)})
	}
	return result
}

// FormatNode lists the child directories of n (recursively formatted) before
// its files. Both groups keep their insertion order. Files shadowed by a
// sibling directory of the same name are left out.
func FormatNode(n *Node) []Entry {
	entries := make([]Entry, 0, len(n.children)+len(n.files))
	for _, child := range n.children {
		entries = append(entries, Dir(child.name, FormatNode(child)...))
	}
	for _, name := range n.files {
		if n.HasChild(name) {
			continue
		}
		entries = append(entries, File(name))
	}
	return entries
}
