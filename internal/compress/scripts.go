package compress

import (
	"regexp"
	"strings"
)

// rubyCompressor keeps require/module/class/def declarations and control
// keywords, closing each scope with "end".
type rubyCompressor struct{}

var (
	rbDeclRe = regexp.MustCompile(`^\s*(require|require_relative|include|extend|module|class|def|attr_accessor|attr_reader|attr_writer)\b`)
	rbKwRe   = regexp.MustCompile(`^\s*(if|elsif|else|unless|case|when|while|until|for|begin|rescue|ensure|return|yield|break|next|end)\b`)
)

func (rubyCompressor) Compress(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			out = append(out, line)
			continue
		}
		if rbDeclRe.MatchString(line) || rbKwRe.MatchString(line) {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// shellCompressor covers bash, zsh, and fish. Keeps the shebang, comments,
// function declarations, control keywords, and variable exports.
type shellCompressor struct{}

var (
	shFuncRe = regexp.MustCompile(`^\s*(function\s+\w+|\w+\s*\(\s*\))`)
	shKwRe   = regexp.MustCompile(`^\s*(if|then|elif|else|fi|for|while|until|do|done|case|esac|return|exit|source|export|local|set|trap|end|function)\b`)
)

func (shellCompressor) Compress(text string) string {
	var out []string
	for i, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if i == 0 && strings.HasPrefix(trimmed, "#!") {
			out = append(out, line)
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			out = append(out, line)
			continue
		}
		if shFuncRe.MatchString(line) || shKwRe.MatchString(line) {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// powershellCompressor keeps function/param declarations, control keywords,
// and comments.
type powershellCompressor struct{}

var (
	psDeclRe = regexp.MustCompile(`(?i)^\s*(function|filter|workflow|class|enum|param|using|import-module)\b`)
	psKwRe   = regexp.MustCompile(`(?i)^\s*(if|elseif|else|switch|for|foreach|while|do|try|catch|finally|return|break|continue|throw|begin|process|end)\b`)
)

func (powershellCompressor) Compress(text string) string {
	var out []string
	inBlockComment := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if inBlockComment {
			out = append(out, line)
			if strings.Contains(trimmed, "#>") {
				inBlockComment = false
			}
			continue
		}
		if strings.HasPrefix(trimmed, "<#") {
			out = append(out, line)
			if !strings.Contains(trimmed, "#>") {
				inBlockComment = true
			}
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			out = append(out, line)
			continue
		}
		if psDeclRe.MatchString(line) || psKwRe.MatchString(line) || trimmed == "{" || trimmed == "}" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// sqlCompressor keeps DDL statements, comments, and clause keywords;
// literal value lists are dropped.
type sqlCompressor struct{}

var sqlKwRe = regexp.MustCompile(`(?i)^\s*(create|alter|drop|select|insert|update|delete|from|where|join|left|right|inner|outer|group|order|having|union|with|as|grant|revoke|begin|commit|rollback|declare|set|index|primary|foreign|constraint|references|--)`)

func (sqlCompressor) Compress(text string) string {
	var out []string
	inBlockComment := false
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
		if strings.HasPrefix(trimmed, "--") {
			out = append(out, line)
			continue
		}
		if sqlKwRe.MatchString(line) || trimmed == ");" || trimmed == "(" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// styleCompressor covers css, scss, sass, and less: selectors and scope
// braces survive, property values are dropped.
type styleCompressor struct{}

func (styleCompressor) Compress(text string) string {
	var out []string
	inBlockComment := false
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
		// Selectors, at-rules, variables, and scope markers survive.
		if strings.HasSuffix(trimmed, "{") || trimmed == "}" ||
			strings.HasPrefix(trimmed, "@") || strings.HasPrefix(trimmed, "$") ||
			strings.HasPrefix(trimmed, "--") {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
