package compress

import (
	"regexp"
	"strings"
)

// rustCompressor keeps use/mod/extern declarations, visibility modifiers,
// item declarations, and control keywords; bodies are emptied.
type rustCompressor struct{}

var (
	rustDeclRe = regexp.MustCompile(`^\s*(pub(\([\w\s:]+\))?\s+)?(use|mod|extern|crate|fn|struct|enum|trait|impl|type|const|static|union|macro_rules!)\b`)
	rustKwRe   = regexp.MustCompile(`^\s*(if|else|for|while|loop|match|return|break|continue|unsafe|async|await|let)\b`)
	rustAttrRe = regexp.MustCompile(`^\s*#!?\[`)
)

func (rustCompressor) Compress(text string) string {
	var out []string
	inBlockComment := false
	inBody := false
	braceDepth := 0

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
		if rustAttrRe.MatchString(line) {
			out = append(out, line)
			continue
		}

		if inBody {
			braceDepth += strings.Count(trimmed, "{") - strings.Count(trimmed, "}")
			if braceDepth <= 0 {
				inBody = false
			}
			continue
		}

		if rustDeclRe.MatchString(line) {
			isFn := regexp.MustCompile(`\bfn\b`).MatchString(trimmed)
			if isFn && strings.HasSuffix(trimmed, "{") {
				out = append(out, strings.TrimRight(strings.TrimSuffix(line, "{"), " \t")+" { }")
				inBody = true
				braceDepth = 1
				continue
			}
			out = append(out, line)
			continue
		}

		if rustKwRe.MatchString(line) {
			out = append(out, line)
		}
	}

	return strings.Join(out, "\n")
}
