// Package outparse extracts structured artifacts from model responses. The
// model is instructed to wrap artifacts in domain tags; extraction degrades
// gracefully: tag, then fenced block, then the raw response.
package outparse

import (
	"regexp"
	"strings"
)

// Classification values the classify stage accepts. Anything else is
// treated as no classification.
var classifications = map[string]string{
	"applications":        "Applications",
	"frameworks":          "Frameworks",
	"libraries":           "Libraries",
	"developmenttools":    "DevelopmentTools",
	"clitools":            "CLITools",
	"devopsconfiguration": "DevOpsConfiguration",
	"documentation":       "Documentation",
}

var (
	fencedJSONRe     = regexp.MustCompile("(?s)```json\\s*\\n(.*?)```")
	fencedMarkdownRe = regexp.MustCompile("(?s)```markdown\\s*\\n(.*?)```")
	fencedAnyRe      = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n(.*?)```")
	classifyNameRe   = regexp.MustCompile(`(?i)classifyName\s*:\s*([A-Za-z]+)`)
)

// tagRe compiles a case-insensitive dot-all matcher for one tag.
func tagRe(tag string) *regexp.Regexp {
	return regexp.MustCompile(`(?is)<` + tag + `>(.*?)</` + tag + `>`)
}

var tagPatterns = map[string]*regexp.Regexp{}

func init() {
	for _, tag := range []string{"readme", "response_file", "classify", "blog", "changelog", "catalogue", "minimap"} {
		tagPatterns[tag] = tagRe(tag)
	}
}

// Extract pulls a tagged artifact out of a response with the standard
// precedence: primary tag, fenced block, raw text. The result is trimmed.
func Extract(response, tag string) string {
	re, ok := tagPatterns[tag]
	if !ok {
		re = tagRe(tag)
	}
	if m := re.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}
	for _, fenced := range []*regexp.Regexp{fencedJSONRe, fencedMarkdownRe, fencedAnyRe} {
		if m := fenced.FindStringSubmatch(response); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return strings.TrimSpace(response)
}

// ExtractJSON prefers a json fenced block over other fences.
func ExtractJSON(response, tag string) string {
	re, ok := tagPatterns[tag]
	if !ok {
		re = tagRe(tag)
	}
	if m := re.FindStringSubmatch(response); m != nil {
		inner := strings.TrimSpace(m[1])
		if fm := fencedJSONRe.FindStringSubmatch(inner); fm != nil {
			return strings.TrimSpace(fm[1])
		}
		return inner
	}
	if m := fencedJSONRe.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(response)
}

// Classify extracts the classification value. The empty string means the
// model produced nothing usable; callers fall back to the unclassified
// prompt variant.
func Classify(response string) string {
	text := response
	if m := tagPatterns["classify"].FindStringSubmatch(response); m != nil {
		text = m[1]
	}
	m := classifyNameRe.FindStringSubmatch(text)
	if m == nil {
		// Maybe the model answered with the bare value.
		m = []string{"", strings.TrimSpace(text)}
	}
	if canonical, ok := classifications[strings.ToLower(strings.TrimSpace(m[1]))]; ok {
		return canonical
	}
	return ""
}
