package deps

import (
	"context"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"codewiki/internal/logging"
)

// sitterLanguages maps extensions to tree-sitter grammars. Extensions not
// listed here have no tree-sitter backing.
var sitterLanguages = map[string]*sitter.Language{
	".go":  golang.GetLanguage(),
	".py":  python.GetLanguage(),
	".rs":  rust.GetLanguage(),
	".js":  javascript.GetLanguage(),
	".jsx": javascript.GetLanguage(),
	".mjs": javascript.GetLanguage(),
	".ts":  typescript.GetLanguage(),
	".tsx": typescript.GetLanguage(),
}

// sitterFunctionNodes are the node types that declare a function in the
// grammars above.
var sitterFunctionNodes = map[string]bool{
	"function_declaration":  true,
	"method_declaration":    true,
	"function_definition":   true, // python
	"function_item":         true, // rust
	"method_definition":     true, // js/ts classes
	"arrow_function":        false,
	"function_expression":   false,
	"generator_declaration": true,
}

// treeSitterFunctions extracts function declarations with tree-sitter. It is
// the backstop for files whose primary parser found nothing.
func treeSitterFunctions(ext, path string, content []byte) []FunctionInfo {
	lang, ok := sitterLanguages[ext]
	if !ok {
		return nil
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		logging.DepsDebug("tree-sitter parse failed for %s: %v", path, err)
		return nil
	}
	defer tree.Close()

	module := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var functions []FunctionInfo
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if sitterFunctionNodes[n.Type()] {
			nameNode := n.ChildByFieldName("name")
			if nameNode != nil {
				name := nameNode.Content(content)
				body := ""
				if bodyNode := n.ChildByFieldName("body"); bodyNode != nil {
					body = bodyNode.Content(content)
				}
				functions = append(functions, FunctionInfo{
					Name:       name,
					FullName:   module + "." + name,
					FilePath:   path,
					LineNumber: int(n.StartPoint().Row) + 1,
					Body:       body,
					Calls:      scanCalls(body, name),
				})
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(tree.RootNode())

	logging.DepsDebug("tree-sitter extracted %d functions from %s", len(functions), filepath.Base(path))
	return functions
}
