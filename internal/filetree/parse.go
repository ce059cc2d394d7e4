package filetree

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParsePathList reconstructs a tree from the pathlist encoding. The result
// equals the original tree modulo the single-child collapse: collapsed
// intermediate directories reappear as directories.
func ParsePathList(text string) *Node {
	root := NewRoot()
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		root.AddPath(line)
	}
	return root
}

// ParseJSON reconstructs a tree from the json encoding. The round-trip is
// exact: ParseJSON(EncodeJSON(t)) equals t.
func ParseJSON(text string) (*Node, error) {
	var raw interface{}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("invalid json directory encoding: %w", err)
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("json directory encoding must be an object at the root")
	}
	root := NewRoot()
	if err := fillFromJSON(root, obj); err != nil {
		return nil, err
	}
	return root, nil
}

func fillFromJSON(n *Node, obj map[string]interface{}) error {
	for name, v := range obj {
		switch val := v.(type) {
		case string:
			if val != "F" {
				return fmt.Errorf("unexpected file marker %q for %s", val, name)
			}
			n.Children[name] = &Node{Name: name, Kind: File}
		case map[string]interface{}:
			child := &Node{Name: name, Kind: Directory, Children: map[string]*Node{}}
			if err := fillFromJSON(child, val); err != nil {
				return err
			}
			n.Children[name] = child
		default:
			return fmt.Errorf("unexpected value for %s in json directory encoding", name)
		}
	}
	return nil
}
