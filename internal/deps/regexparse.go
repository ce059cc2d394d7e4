package deps

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Regex-based parsing for languages without a semantic analyzer. These are
// pragmatic extractors: they find imports, function declarations, and
// in-body call sites without building a real AST.

var (
	pyImportLineRe = regexp.MustCompile(`(?m)^\s*(?:from\s+([\w\.]+)\s+import|import\s+([\w\.]+))`)
	pyFuncDeclRe   = regexp.MustCompile(`(?m)^(\s*)(?:async\s+)?def\s+(\w+)\s*\(`)

	jsImportRe   = regexp.MustCompile(`(?m)(?:import\s+.*?from\s+['"]([^'"]+)['"]|require\(\s*['"]([^'"]+)['"]\s*\))`)
	jsFuncDeclRe = regexp.MustCompile(`(?m)(?:function\s+(\w+)\s*\(|(?:const|let|var)\s+(\w+)\s*=\s*(?:async\s*)?(?:function|\([^)]*\)\s*=>)|(\w+)\s*\([^)]*\)\s*\{)`)

	javaImportRe   = regexp.MustCompile(`(?m)^\s*import\s+(?:static\s+)?([\w\.]+(?:\.\*)?);`)
	javaFuncDeclRe = regexp.MustCompile(`(?m)^\s*(?:public|private|protected|static|final|synchronized|abstract|native|\s)+[\w<>\[\],\s]+\s+(\w+)\s*\([^)]*\)\s*(?:throws[\w,\s\.]+)?\{`)

	cIncludeRe  = regexp.MustCompile(`(?m)^\s*#include\s*[<"]([^>"]+)[>"]`)
	cFuncDeclRe = regexp.MustCompile(`(?m)^[\w\s\*]+?(\w+)\s*\([^;{]*\)\s*\{`)

	goImportSingleRe = regexp.MustCompile(`(?m)^\s*import\s+(?:\w+\s+)?"([^"]+)"`)
	goImportBlockRe  = regexp.MustCompile(`(?s)import\s*\((.*?)\)`)
	goImportPathRe   = regexp.MustCompile(`"([^"]+)"`)
	goFuncDeclRe     = regexp.MustCompile(`(?m)^func\s+(?:\([^)]+\)\s+)?(\w+)\s*\(`)

	callSiteRe = regexp.MustCompile(`\b([A-Za-z_][\w\.]*)\s*\(`)
)

// controlKeywords are call-looking tokens that are not calls.
var controlKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "return": true,
	"catch": true, "with": true, "def": true, "func": true, "function": true,
	"new": true, "elif": true, "except": true, "match": true, "case": true,
	"super": true, "sizeof": true, "typeof": true, "defer": true, "go": true,
	"select": true,
}

// firstGroup returns the first non-empty capture among groups 1..n for a
// SubmatchIndex result.
func firstGroup(text string, m []int, n int) string {
	for g := 1; g <= n; g++ {
		start, end := m[2*g], m[2*g+1]
		if start >= 0 && end > start {
			return text[start:end]
		}
	}
	return ""
}

// regexParse extracts imports and functions for a file with the
// language-appropriate regexes. Unknown extensions get no imports and
// generic call scanning only.
func regexParse(ext, path string, content []byte) ([]string, []FunctionInfo) {
	text := string(content)
	switch ext {
	case ".py":
		return pyMatches(text, path)
	case ".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs":
		return jsMatches(text, path)
	case ".java":
		return javaMatches(text, path)
	case ".c", ".h", ".cpp", ".cc", ".cxx", ".hpp", ".hh":
		return cMatches(text, path)
	case ".go":
		return goMatches(text, path)
	}
	return nil, nil
}

func pyMatches(text, path string) ([]string, []FunctionInfo) {
	var imports []string
	for _, m := range pyImportLineRe.FindAllStringSubmatch(text, -1) {
		if m[1] != "" {
			imports = append(imports, m[1])
		} else {
			imports = append(imports, m[2])
		}
	}
	module := strings.TrimSuffix(filepath.Base(path), ".py")
	functions := declMatches(text, path, pyFuncDeclRe, 2, module)
	return imports, functions
}

func jsMatches(text, path string) ([]string, []FunctionInfo) {
	var imports []string
	for _, m := range jsImportRe.FindAllStringSubmatch(text, -1) {
		if m[1] != "" {
			imports = append(imports, m[1])
		} else if m[2] != "" {
			imports = append(imports, m[2])
		}
	}
	module := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var functions []FunctionInfo
	for _, m := range jsFuncDeclRe.FindAllStringSubmatchIndex(text, -1) {
		name := firstGroup(text, m, 3)
		if name == "" || controlKeywords[name] {
			continue
		}
		functions = append(functions, buildFunction(text, path, module, name, m[0]))
	}
	return imports, functions
}

func javaMatches(text, path string) ([]string, []FunctionInfo) {
	var imports []string
	for _, m := range javaImportRe.FindAllStringSubmatch(text, -1) {
		imports = append(imports, m[1])
	}
	module := strings.TrimSuffix(filepath.Base(path), ".java")
	functions := declMatches(text, path, javaFuncDeclRe, 1, module)
	return imports, functions
}

func cMatches(text, path string) ([]string, []FunctionInfo) {
	var imports []string
	for _, m := range cIncludeRe.FindAllStringSubmatch(text, -1) {
		imports = append(imports, m[1])
	}
	module := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	functions := declMatches(text, path, cFuncDeclRe, 1, module)
	return imports, functions
}

func goMatches(text, path string) ([]string, []FunctionInfo) {
	var imports []string
	for _, m := range goImportSingleRe.FindAllStringSubmatch(text, -1) {
		imports = append(imports, m[1])
	}
	for _, block := range goImportBlockRe.FindAllStringSubmatch(text, -1) {
		for _, m := range goImportPathRe.FindAllStringSubmatch(block[1], -1) {
			imports = append(imports, m[1])
		}
	}
	module := strings.TrimSuffix(filepath.Base(path), ".go")
	functions := declMatches(text, path, goFuncDeclRe, 1, module)
	return imports, functions
}

// declMatches collects FunctionInfo for every declaration regex match whose
// capture group groups contains the name.
func declMatches(text, path string, re *regexp.Regexp, nameGroup int, module string) []FunctionInfo {
	var functions []FunctionInfo
	for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[2*nameGroup], m[2*nameGroup+1]
		if start < 0 {
			continue
		}
		name := text[start:end]
		if controlKeywords[name] {
			continue
		}
		functions = append(functions, buildFunction(text, path, module, name, m[0]))
	}
	return functions
}

func buildFunction(text, path, module, name string, offset int) FunctionInfo {
	line := 1 + strings.Count(text[:offset], "\n")
	body := functionBodyAt(text, offset)
	return FunctionInfo{
		Name:       name,
		FullName:   module + "." + name,
		FilePath:   path,
		LineNumber: line,
		Body:       body,
		Calls:      scanCalls(body, name),
	}
}

// functionBodyAt extracts a brace-delimited body starting at the first "{"
// after offset, or the indented block for brace-less languages.
func functionBodyAt(text string, offset int) string {
	braceIdx := strings.Index(text[offset:], "{")
	colonIdx := strings.Index(text[offset:], ":")
	if braceIdx >= 0 && (colonIdx < 0 || braceIdx < colonIdx) {
		depth := 0
		for i := offset + braceIdx; i < len(text); i++ {
			switch text[i] {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return text[offset+braceIdx : i+1]
				}
			}
		}
		return text[offset+braceIdx:]
	}
	// Python-style: take lines until indentation returns to the def level.
	lines := strings.Split(text[offset:], "\n")
	if len(lines) < 2 {
		return text[offset:]
	}
	defIndent := indentOf(lines[0])
	var body []string
	for _, l := range lines[1:] {
		if strings.TrimSpace(l) != "" && indentOf(l) <= defIndent {
			break
		}
		body = append(body, l)
	}
	return strings.Join(body, "\n")
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

// scanCalls finds call sites in a body. Control keywords are skipped;
// self-recursion is kept so cycles surface in the tree.
func scanCalls(body, selfName string) []string {
	var calls []string
	seen := map[string]bool{}
	for _, m := range callSiteRe.FindAllStringSubmatch(body, -1) {
		name := m[1]
		base := name
		if idx := strings.LastIndex(name, "."); idx >= 0 {
			base = name[idx+1:]
		}
		if controlKeywords[base] || seen[name] {
			continue
		}
		seen[name] = true
		calls = append(calls, name)
	}
	_ = selfName
	return calls
}
