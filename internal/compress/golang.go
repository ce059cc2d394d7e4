package compress

import (
	"regexp"
	"strings"
)

// goCompressor keeps package/import clauses, type/func/var/const
// declarations, interface and struct bodies, control keywords, and braces.
// Function bodies are emptied.
type goCompressor struct{}

var (
	goDeclRe    = regexp.MustCompile(`^\s*(package|import|type|func|var|const)\b`)
	goKeywordRe = regexp.MustCompile(`^\s*(if|else|for|switch|case|default|select|go|defer|return|break|continue|goto|fallthrough|range)\b`)
	goFieldRe   = regexp.MustCompile(`^\s+\w+(\s+[\w\*\[\]\.\{\}]+)?(\s+` + "`" + `[^` + "`" + `]*` + "`" + `)?\s*$|^\s+\w+\([^)]*\)`)
)

func (goCompressor) Compress(text string) string {
	var out []string
	inBlockComment := false
	inImport := false
	structDepth := 0
	inFuncBody := false
	funcBraceDepth := 0

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if inBlockComment {
			out = append(out, line)
			if strings.Contains(trimmed, "*/") {
				inBlockComment = false
			}
			continue
		}
		if strings.HasPrefix(trimmed, "/*") {
			out = append(out, line)
			if !strings.Contains(trimmed, "*/") {
				inBlockComment = true
			}
			continue
		}
		if strings.HasPrefix(trimmed, "//") {
			out = append(out, line)
			continue
		}

		// Import blocks are kept whole.
		if inImport {
			out = append(out, line)
			if trimmed == ")" {
				inImport = false
			}
			continue
		}
		if strings.HasPrefix(trimmed, "import (") || trimmed == "import (" {
			out = append(out, line)
			inImport = true
			continue
		}

		// Struct and interface bodies are kept: field and method-set lines
		// are declarations, not implementation.
		if structDepth > 0 {
			if strings.HasSuffix(trimmed, "{") {
				structDepth++
			}
			if trimmed == "}" || trimmed == "})" {
				structDepth--
			}
			out = append(out, line)
			continue
		}

		// Function bodies are dropped and replaced with an empty body.
		if inFuncBody {
			funcBraceDepth += strings.Count(trimmed, "{") - strings.Count(trimmed, "}")
			if funcBraceDepth <= 0 {
				inFuncBody = false
			}
			continue
		}

		if goDeclRe.MatchString(line) {
			if strings.Contains(trimmed, "struct {") || strings.Contains(trimmed, "interface {") {
				out = append(out, line)
				structDepth = 1
				continue
			}
			if strings.HasPrefix(trimmed, "func") && strings.HasSuffix(trimmed, "{") {
				out = append(out, strings.TrimRight(strings.TrimSuffix(line, "{"), " \t")+" { }")
				inFuncBody = true
				funcBraceDepth = 1
				continue
			}
			out = append(out, truncateGoInitializer(line))
			continue
		}

		if goKeywordRe.MatchString(line) {
			out = append(out, line)
		}
	}

	return strings.Join(out, "\n")
}

// truncateGoInitializer cuts var/const declarations at "=".
func truncateGoInitializer(line string) string {
	if idx := strings.Index(line, "="); idx >= 0 && !strings.Contains(line[:idx], "(") {
		return strings.TrimRight(line[:idx], " \t")
	}
	return line
}
