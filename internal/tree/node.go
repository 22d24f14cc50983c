// Package tree turns flat lists of file URLs into per-host directory trees.
package tree

// Node is a directory. Child directories are unique by name and keep their
// creation order; file names keep insertion order and may repeat.
type Node struct {
	name     string
	children []*Node
	index    map[string]*Node
	files    []string
}

// NewNode creates an empty directory node.
func NewNode(name string) *Node {
	return &Node{
		name:  name,
		index: make(map[string]*Node),
	}
}

// Name returns the directory name.
func (n *Node) Name() string {
	return n.name
}

// FindOrCreateChild returns the child directory with the given name,
// appending a new one if none exists.
func (n *Node) FindOrCreateChild(name string) *Node {
	if child, exists := n.index[name]; exists {
		return child
	}

	child := NewNode(name)
	n.children = append(n.children, child)
	n.index[name] = child
	return child
}

// AddFile appends a file name to the directory.
func (n *Node) AddFile(name string) {
	n.files = append(n.files, name)
}

// HasChild reports whether a child directory with the given name exists.
func (n *Node) HasChild(name string) bool {
	_, exists := n.index[name]
	return exists
}

// HasFile reports whether the directory holds a file with the given name.
func (n *Node) HasFile(name string) bool {
	for _, f := range n.files {
		if f == name {
			return true
		}
	}
	return false
}

// Children returns the child directories in creation order.
func (n *Node) Children() []*Node {
	return n.children
}

// Files returns the file names in insertion order.
func (n *Node) Files() []string {
	return n.files
}

// Forest holds one root node per host, in first-seen order.
type Forest struct {
	hosts []*Node
	index map[string]*Node
}

// NewForest creates an empty forest.
func NewForest() *Forest {
	return &Forest{index: make(map[string]*Node)}
}

// FindOrCreateHost returns the root node for host, creating it on first use.
func (f *Forest) FindOrCreateHost(host string) *Node {
	if root, exists := f.index[host]; exists {
		return root
	}

	root := NewNode(host)
	f.hosts = append(f.hosts, root)
	f.index[host] = root
	return root
}

// Host returns the root node for host, or nil.
func (f *Forest) Host(host string) *Node {
	return f.index[host]
}

// Hosts returns the host names in first-seen order.
func (f *Forest) Hosts() []string {
	names := make([]string, 0, len(f.hosts))
	for _, root := range f.hosts {
		names = append(names, root.name)
	}
	return names
}

// Len returns the number of hosts.
func (f *Forest) Len() int {
	return len(f.hosts)
}

// Stats summarizes the size of a forest.
type Stats struct {
	Hosts       int `json:"hosts"`
	Directories int `json:"directories"`
	Files       int `json:"files"`
}

// Stats counts hosts, directories and files. Host roots are not counted as
// directories.
func (f *Forest) Stats() Stats {
	stats := Stats{Hosts: len(f.hosts)}
	for _, root := range f.hosts {
		dirs, files := CountNodes(root)
		stats.Directories += dirs - 1
		stats.Files += files
	}
	return stats
}

// CountNodes counts the directories (including n itself) and files below n.
func CountNodes(n *Node) (dirs, files int) {
	if n == nil {
		return 0, 0
	}
	dirs = 1
	files = len(n.files)
	for _, child := range n.children {
		d, f := CountNodes(child)
		dirs += d
		files += f
	}
	return dirs, files
}
