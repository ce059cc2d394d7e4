// Package deps builds file-level and function-level dependency indices for
// a set of source files and answers transitive dependency queries over them.
package deps

// FunctionInfo describes one function found in a source file.
type FunctionInfo struct {
	Name       string   // bare name
	FullName   string   // qualified name, e.g. "pkg.Func" or "module.func"
	FilePath   string   // file containing the definition
	LineNumber int      // 1-based line of the definition
	Body       string   // raw body text
	Calls      []string // call sites found inside the body
}

// TreeNode is one node in a rendered dependency tree. Cyclic references are
// flagged rather than descended.
type TreeNode struct {
	Name     string
	Kind     NodeKind
	IsCyclic bool
	Children []*TreeNode
}

// NodeKind discriminates dependency tree nodes.
type NodeKind int

const (
	// NodeFile is a file-level dependency.
	NodeFile NodeKind = iota
	// NodeFunction is a function-level dependency.
	NodeFunction
)

// DefaultMaxDepth bounds dependency tree construction.
const DefaultMaxDepth = 10
