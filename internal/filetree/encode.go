package filetree

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Format selects a directory encoding.
type Format string

const (
	// FormatCompact is an indented listing, two spaces per level, each node
	// rendered as <name>/<D|F>.
	FormatCompact Format = "compact"
	// FormatJSON is a recursive object; directories map child names to
	// subtrees, files are the string "F".
	FormatJSON Format = "json"
	// FormatPathList is one path per line; directories end with "/";
	// single-child directory chains are collapsed.
	FormatPathList Format = "pathlist"
	// FormatUnix is the tree(1) box-drawing rendering.
	FormatUnix Format = "unix"
)

// Encode renders the tree in the given format. The output is deterministic
// for a given tree.
func Encode(root *Node, format Format) (string, error) {
	switch format {
	case FormatCompact:
		return EncodeCompact(root), nil
	case FormatJSON:
		return EncodeJSON(root)
	case FormatPathList:
		return EncodePathList(root), nil
	case FormatUnix:
		return EncodeUnix(root), nil
	}
	return "", fmt.Errorf("unknown directory format %q", format)
}

// EncodeCompact renders the indented <name>/<D|F> listing.
func EncodeCompact(root *Node) string {
	var sb strings.Builder
	sb.WriteString("/\n")
	encodeCompact(root, 0, &sb)
	return strings.TrimRight(sb.String(), "\n")
}

func encodeCompact(n *Node, depth int, sb *strings.Builder) {
	for _, c := range n.sortedChildren() {
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(c.Name)
		if c.Kind == Directory {
			sb.WriteString("/D\n")
			encodeCompact(c, depth+1, sb)
		} else {
			sb.WriteString("/F\n")
		}
	}
}

// EncodeJSON renders the recursive object form as compact JSON.
func EncodeJSON(root *Node) (string, error) {
	data, err := json.Marshal(toJSONValue(root))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func toJSONValue(n *Node) interface{} {
	if n.Kind == File {
		return "F"
	}
	obj := make(map[string]interface{}, len(n.Children))
	for name, c := range n.Children {
		obj[name] = toJSONValue(c)
	}
	return obj
}

// EncodePathList renders one path per line. Directories end with "/".
// A directory with exactly one child is collapsed into its child's path.
func EncodePathList(root *Node) string {
	var lines []string
	for _, c := range root.sortedChildren() {
		encodePathList(c, "", &lines)
	}
	return strings.Join(lines, "\n")
}

func encodePathList(n *Node, prefix string, lines *[]string) {
	path := prefix + n.Name
	if n.Kind == File {
		*lines = append(*lines, path)
		return
	}
	// Compact-path optimization: a chain of single-child directories folds
	// into one line.
	if len(n.Children) == 1 {
		for _, only := range n.Children {
			encodePathList(only, path+"/", lines)
		}
		return
	}
	*lines = append(*lines, path+"/")
	for _, c := range n.sortedChildren() {
		encodePathList(c, path+"/", lines)
	}
}

// EncodeUnix renders the tree(1) box-drawing form.
func EncodeUnix(root *Node) string {
	var sb strings.Builder
	sb.WriteString(".\n")
	encodeUnix(root, "", &sb)
	return strings.TrimRight(sb.String(), "\n")
}

func encodeUnix(n *Node, prefix string, sb *strings.Builder) {
	children := n.sortedChildren()
	for i, c := range children {
		last := i == len(children)-1
		connector := "├── "
		childPrefix := prefix + "│   "
		if last {
			connector = "└── "
			childPrefix = prefix + "    "
		}
		sb.WriteString(prefix)
		sb.WriteString(connector)
		sb.WriteString(c.Name)
		sb.WriteString("\n")
		if c.Kind == Directory {
			encodeUnix(c, childPrefix, sb)
		}
	}
}
