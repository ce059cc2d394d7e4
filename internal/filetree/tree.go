// Package filetree builds a rooted tree from scanned paths and encodes it
// in the formats used to fit repository structure into prompts.
package filetree

import (
	"path/filepath"
	"sort"
	"strings"

	"codewiki/internal/scanner"
)

// Kind discriminates tree nodes.
type Kind int

const (
	// Directory nodes have children.
	Directory Kind = iota
	// File nodes are leaves.
	File
)

// Node is one entry in the tree, keyed by name within its parent.
type Node struct {
	Name     string
	Kind     Kind
	Children map[string]*Node
}

// NewRoot returns an empty directory root named "/".
func NewRoot() *Node {
	return &Node{Name: "/", Kind: Directory, Children: map[string]*Node{}}
}

// Build constructs a tree from a flat scan, splitting each path relative to
// root on the system separator.
func Build(root string, infos []scanner.PathInfo) *Node {
	tree := NewRoot()
	for _, info := range infos {
		rel, err := filepath.Rel(root, info.Path)
		if err != nil || rel == "." {
			continue
		}
		parts := strings.Split(rel, string(filepath.Separator))
		tree.insert(parts, info.IsDir)
	}
	return tree
}

func (n *Node) insert(parts []string, isDir bool) {
	if len(parts) == 0 {
		return
	}
	name := parts[0]
	child, ok := n.Children[name]
	if !ok {
		kind := Directory
		if len(parts) == 1 && !isDir {
			kind = File
		}
		child = &Node{Name: name, Kind: kind}
		if kind == Directory {
			child.Children = map[string]*Node{}
		}
		n.Children[name] = child
	}
	if len(parts) > 1 {
		if child.Kind == File {
			// A file appearing as an intermediate component means the scan
			// listed a directory without a trailing entry. Promote it.
			child.Kind = Directory
			child.Children = map[string]*Node{}
		}
		child.insert(parts[1:], isDir)
	}
}

// AddPath inserts a slash-separated relative path. Paths ending with "/"
// insert a directory.
func (n *Node) AddPath(rel string) {
	isDir := strings.HasSuffix(rel, "/")
	rel = strings.Trim(rel, "/")
	if rel == "" {
		return
	}
	n.insert(strings.Split(rel, "/"), isDir)
}

// sortedChildren returns children directories-first, then alphabetical.
// Every encoder uses this order, which makes the encodings deterministic.
func (n *Node) sortedChildren() []*Node {
	out := make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind == Directory
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Count returns the total number of nodes excluding the root.
func (n *Node) Count() int {
	total := 0
	for _, c := range n.Children {
		total++
		if c.Kind == Directory {
			total += c.Count()
		}
	}
	return total
}

// Equal reports deep equality of two trees.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.Name != other.Name || n.Kind != other.Kind || len(n.Children) != len(other.Children) {
		return false
	}
	for name, c := range n.Children {
		oc, ok := other.Children[name]
		if !ok || !c.Equal(oc) {
			return false
		}
	}
	return true
}
