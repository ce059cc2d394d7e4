package deps

import (
	"fmt"
	"strings"
)

// RenderTree prints a dependency tree with box-drawing connectors.
func RenderTree(root *TreeNode) string {
	var sb strings.Builder
	sb.WriteString(nodeLabel(root))
	sb.WriteString("\n")
	renderChildren(&sb, root, "")
	return sb.String()
}

func renderChildren(sb *strings.Builder, node *TreeNode, prefix string) {
	for i, child := range node.Children {
		connector := "├── "
		childPrefix := prefix + "│   "
		if i == len(node.Children)-1 {
			connector = "└── "
			childPrefix = prefix + "    "
		}
		sb.WriteString(prefix + connector + nodeLabel(child) + "\n")
		renderChildren(sb, child, childPrefix)
	}
}

func nodeLabel(n *TreeNode) string {
	if n.IsCyclic {
		return n.Name + " (cycle)"
	}
	return n.Name
}

// RenderDOT emits the tree as a Graphviz digraph. Files are blue, functions
// green, cyclic references salmon.
func RenderDOT(root *TreeNode) string {
	var sb strings.Builder
	sb.WriteString("digraph dependencies {\n")
	sb.WriteString("  rankdir=LR;\n")
	sb.WriteString("  node [shape=box, style=filled, fontname=\"Helvetica\"];\n")

	ids := map[*TreeNode]int{}
	next := 0
	var declare func(n *TreeNode)
	declare = func(n *TreeNode) {
		ids[n] = next
		next++
		fill := "lightblue"
		if n.Kind == NodeFunction {
			fill = "lightgreen"
		}
		if n.IsCyclic {
			fill = "salmon"
		}
		sb.WriteString(fmt.Sprintf("  n%d [label=%q, fillcolor=%q];\n", ids[n], n.Name, fill))
		for _, c := range n.Children {
			declare(c)
		}
	}
	declare(root)

	var connect func(n *TreeNode)
	connect = func(n *TreeNode) {
		for _, c := range n.Children {
			sb.WriteString(fmt.Sprintf("  n%d -> n%d;\n", ids[n], ids[c]))
			connect(c)
		}
	}
	connect(root)

	sb.WriteString("}\n")
	return sb.String()
}
