package outparse

import (
	"strings"
)

// MiniMapNode is one node of the recursive wiki mind-map.
type MiniMapNode struct {
	Title string         `json:"title"`
	URL   string         `json:"url,omitempty"`
	Nodes []*MiniMapNode `json:"nodes,omitempty"`
}

type heading struct {
	level int
	title string
	url   string
}

// ParseMiniMap turns a Markdown heading outline into the recursive node
// structure. Heading level drives nesting; "# Title: path" takes the part
// after the last colon as URL. Unparseable input yields an empty map.
func ParseMiniMap(response string) *MiniMapNode {
	text := Extract(response, "minimap")
	headings := collectHeadings(text)
	root := &MiniMapNode{Title: "root"}
	if len(headings) == 0 {
		return root
	}
	idx := 0
	root.Nodes = parseSiblings(headings, &idx, headings[0].level)
	return root
}

func collectHeadings(text string) []heading {
	var out []heading
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			continue
		}
		level := 0
		for level < len(trimmed) && trimmed[level] == '#' {
			level++
		}
		body := strings.TrimSpace(trimmed[level:])
		if body == "" {
			continue
		}
		h := heading{level: level, title: body}
		if idx := strings.LastIndex(body, ":"); idx > 0 && idx < len(body)-1 {
			h.title = strings.TrimSpace(body[:idx])
			h.url = strings.TrimSpace(body[idx+1:])
		}
		out = append(out, h)
	}
	return out
}

// parseSiblings consumes consecutive headings at level, recursing for
// deeper levels. Each call advances idx exactly once per consumed heading.
func parseSiblings(headings []heading, idx *int, level int) []*MiniMapNode {
	var nodes []*MiniMapNode
	for *idx < len(headings) {
		h := headings[*idx]
		if h.level < level {
			return nodes
		}
		if h.level > level {
			// Orphan deeper heading with no parent at this level: attach
			// to the last sibling, or treat as a sibling when none exists.
			if len(nodes) > 0 {
				last := nodes[len(nodes)-1]
				last.Nodes = append(last.Nodes, parseSiblings(headings, idx, h.level)...)
				continue
			}
			level = h.level
			continue
		}
		node := &MiniMapNode{Title: h.title, URL: h.url}
		*idx++
		if *idx < len(headings) && headings[*idx].level > level {
			node.Nodes = parseSiblings(headings, idx, headings[*idx].level)
		}
		nodes = append(nodes, node)
	}
	return nodes
}
