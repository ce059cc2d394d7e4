package compress

import (
	"regexp"
	"strings"
)

// cFamilyCompressor handles brace-scoped languages: C, C++, Java, C#,
// Kotlin, Scala, JavaScript, TypeScript, Swift, PHP. It keeps declarations,
// imports, modifiers, control-flow keywords, attributes, and braces; bodies
// collapse to "{ }" and initializers truncate at "=".
type cFamilyCompressor struct {
	declRe    *regexp.Regexp
	keywordRe *regexp.Regexp
	funcRe    *regexp.Regexp
	attrRe    *regexp.Regexp
}

func newCFamilyCompressor() *cFamilyCompressor {
	return &cFamilyCompressor{
		declRe: regexp.MustCompile(`^\s*(public|private|protected|internal|static|final|abstract|sealed|virtual|override|async|export|default|extern|const|readonly|open|data|case|object|partial)?\s*` +
			`(class|interface|struct|enum|trait|record|namespace|module)\b`),
		keywordRe: regexp.MustCompile(`^\s*(if|else|else\s+if|for|foreach|while|do|switch|case|default|try|catch|finally|return|break|continue|throw|yield|using|import|include|package|from|export|goto|match|when|defer|guard)\b`),
		funcRe:    regexp.MustCompile(`^\s*[\w<>\[\],\s\*&:\.\?]+\s+[\w~]+\s*\([^;]*$|^\s*[\w<>\[\],\s\*&:\.\?]*\bfunction\b|^\s*(public|private|protected|internal|static|final|abstract|virtual|override|async|fun|func|def)\b.*\(`),
		attrRe:    regexp.MustCompile(`^\s*(@\w+|\[[\w\.\(\)," ]+\]|#\[)`),
	}
}

func (c *cFamilyCompressor) Compress(text string) string {
	var out []string
	inBlockComment := false

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		// Block comments are preserved verbatim.
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

		// Preprocessor directives and attributes/annotations/decorators.
		if strings.HasPrefix(trimmed, "#") || c.attrRe.MatchString(line) {
			out = append(out, line)
			continue
		}

		switch {
		case c.keywordRe.MatchString(line):
			out = append(out, c.truncateInitializer(line))
		case c.declRe.MatchString(line):
			out = append(out, c.closeBody(line))
		case c.isFunctionSignature(line):
			out = append(out, c.closeBody(c.truncateSignature(line)))
		case trimmed == "{" || trimmed == "}" || trimmed == "};" || trimmed == "});":
			out = append(out, line)
		case c.isDeclarationLine(trimmed):
			out = append(out, c.truncateInitializer(line))
		}
		// Everything else is an implementation line; dropped.
	}

	return strings.Join(out, "\n")
}

// isFunctionSignature reports whether a line opens a function or method.
func (c *cFamilyCompressor) isFunctionSignature(line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.Contains(trimmed, "(") {
		return false
	}
	// Calls end with ; on the same line; signatures open a body or continue.
	if strings.HasSuffix(trimmed, ";") && !strings.Contains(trimmed, ")") {
		return false
	}
	return c.funcRe.MatchString(line)
}

// isDeclarationLine keeps field and constant declarations.
func (c *cFamilyCompressor) isDeclarationLine(trimmed string) bool {
	for _, kw := range []string{"public ", "private ", "protected ", "internal ", "static ", "const ", "final ", "readonly ", "var ", "let ", "val ", "type "} {
		if strings.HasPrefix(trimmed, kw) {
			return true
		}
	}
	return false
}

// truncateSignature keeps a method signature up to the closing parenthesis.
func (c *cFamilyCompressor) truncateSignature(line string) string {
	if idx := strings.LastIndex(line, ")"); idx >= 0 {
		return line[:idx+1]
	}
	return line
}

// truncateInitializer cuts a declaration at "=".
func (c *cFamilyCompressor) truncateInitializer(line string) string {
	if idx := strings.Index(line, "="); idx >= 0 && !strings.Contains(line[:idx], "(") {
		return strings.TrimRight(line[:idx], " \t") + ";"
	}
	return line
}

// closeBody replaces an opening body with an empty one.
func (c *cFamilyCompressor) closeBody(line string) string {
	trimmed := strings.TrimRight(line, " \t")
	if strings.HasSuffix(trimmed, "{") {
		return strings.TrimRight(strings.TrimSuffix(trimmed, "{"), " \t") + " { }"
	}
	return trimmed
}
