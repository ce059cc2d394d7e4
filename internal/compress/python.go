package compress

import (
	"regexp"
	"strings"
)

// pythonCompressor keeps imports, def/class declarations, decorators, and
// top-level control keywords. After each def/class it emits "pass" at one
// additional indent level so the result stays syntactically valid.
type pythonCompressor struct{}

var (
	pyImportRe  = regexp.MustCompile(`^\s*(import\s+\w|from\s+[\w\.]+\s+import\b)`)
	pyDefRe     = regexp.MustCompile(`^(\s*)(async\s+)?def\s+\w+`)
	pyClassRe   = regexp.MustCompile(`^(\s*)class\s+\w+`)
	pyKeywordRe = regexp.MustCompile(`^\s*(if|elif|else|for|while|try|except|finally|with|return|raise|yield|global|nonlocal|assert|match|case)\b`)
	pyMainRe    = regexp.MustCompile(`^\s*if\s+__name__\s*==\s*["']__main__["']`)
)

func (pythonCompressor) Compress(text string) string {
	var out []string
	inDocstring := false
	var docstringDelim string

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		// Docstrings and triple-quoted strings are kept verbatim; they are
		// the comments of Python.
		if inDocstring {
			out = append(out, line)
			if strings.Contains(trimmed, docstringDelim) {
				inDocstring = false
			}
			continue
		}
		if strings.HasPrefix(trimmed, `"""`) || strings.HasPrefix(trimmed, "'''") {
			docstringDelim = trimmed[:3]
			out = append(out, line)
			if !strings.Contains(trimmed[3:], docstringDelim) {
				inDocstring = true
			}
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			out = append(out, line)
			continue
		}
		if strings.HasPrefix(trimmed, "@") {
			out = append(out, line)
			continue
		}

		if pyImportRe.MatchString(line) || pyMainRe.MatchString(line) {
			out = append(out, line)
			continue
		}

		if m := pyDefRe.FindStringSubmatch(line); m != nil {
			out = append(out, line)
			out = append(out, m[1]+"    pass")
			continue
		}
		if m := pyClassRe.FindStringSubmatch(line); m != nil {
			out = append(out, line)
			out = append(out, m[1]+"    pass")
			continue
		}

		if pyKeywordRe.MatchString(line) {
			out = append(out, line)
		}
		// Assignments and expression statements are dropped.
	}

	return strings.Join(out, "\n")
}
