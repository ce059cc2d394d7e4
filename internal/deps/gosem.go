package deps

import (
	"go/ast"
	"go/parser"
	"go/token"
)

// goSemanticAnalyzer parses Go sources with go/ast for precise imports,
// function declarations, and call sites.
type goSemanticAnalyzer struct {
	base string
}

func (g *goSemanticAnalyzer) Extensions() []string { return []string{".go"} }

func (g *goSemanticAnalyzer) Analyze(path string, content []byte) ([]string, []FunctionInfo, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, content, parser.ParseComments)
	if err != nil {
		return nil, nil, err
	}

	var imports []string
	for _, imp := range file.Imports {
		imports = append(imports, trimQuotes(imp.Path.Value))
	}

	pkg := file.Name.Name
	var functions []FunctionInfo
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		fn := FunctionInfo{
			Name:       fd.Name.Name,
			FullName:   pkg + "." + fd.Name.Name,
			FilePath:   path,
			LineNumber: fset.Position(fd.Pos()).Line,
			Calls:      goCallSites(fd),
		}
		if fd.Recv != nil && len(fd.Recv.List) > 0 {
			fn.FullName = pkg + "." + receiverName(fd.Recv.List[0].Type) + "." + fd.Name.Name
		}
		if fd.Body != nil {
			start := fset.Position(fd.Body.Lbrace).Offset
			end := fset.Position(fd.Body.Rbrace).Offset
			if start >= 0 && end < len(content) && end >= start {
				fn.Body = string(content[start : end+1])
			}
		}
		functions = append(functions, fn)
	}
	return imports, functions, nil
}

func goCallSites(fd *ast.FuncDecl) []string {
	var calls []string
	seen := map[string]bool{}
	ast.Inspect(fd, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		var name string
		switch fun := call.Fun.(type) {
		case *ast.Ident:
			name = fun.Name
		case *ast.SelectorExpr:
			if ident, ok := fun.X.(*ast.Ident); ok {
				name = ident.Name + "." + fun.Sel.Name
			} else {
				name = fun.Sel.Name
			}
		}
		if name != "" && !seen[name] {
			seen[name] = true
			calls = append(calls, name)
		}
		return true
	})
	return calls
}

func receiverName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return receiverName(t.X)
	case *ast.IndexExpr:
		return receiverName(t.X)
	}
	return "recv"
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
