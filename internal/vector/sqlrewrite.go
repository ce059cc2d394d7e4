package vector

import (
	"regexp"
	"strings"
)

// Tokenizer turns a search phrase into the token form stored in *_tks
// columns. Nil tokenizers leave the value unchanged.
type Tokenizer func(string) string

var (
	tksEqRe   = regexp.MustCompile(`(?i)([a-zA-Z0-9_]+_tks)\s*=\s*'([^']*)'`)
	tksLikeRe = regexp.MustCompile(`(?i)([a-zA-Z0-9_]+_tks)\s+like\s+'([^']*)'`)
)

// RewriteSQL converts equality and LIKE fragments on tokenized columns
// into backend MATCH calls before submission, so full-text columns are
// queried through the analyzer rather than exact values.
func RewriteSQL(sql string, tokenize Tokenizer) string {
	replace := func(field, value string) string {
		tokens := value
		if tokenize != nil {
			tokens = tokenize(value)
		}
		tokens = strings.ReplaceAll(tokens, "'", "''")
		return "MATCH(" + field + ", '" + tokens + "', 'operator=OR;minimum_should_match=30%')"
	}
	out := tksEqRe.ReplaceAllStringFunc(sql, func(m string) string {
		groups := tksEqRe.FindStringSubmatch(m)
		return replace(groups[1], groups[2])
	})
	out = tksLikeRe.ReplaceAllStringFunc(out, func(m string) string {
		groups := tksLikeRe.FindStringSubmatch(m)
		value := strings.Trim(groups[2], "%")
		return replace(groups[1], value)
	})
	return out
}
