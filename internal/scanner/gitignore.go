package scanner

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// gitignoreRule is one compiled pattern from a .gitignore file.
type gitignoreRule struct {
	re       *regexp.Regexp
	negate   bool
	dirOnly  bool
	original string
}

// GitignoreMatcher evaluates paths against the rules of a repository root
// .gitignore. Matching is case-insensitive and follows Git semantics:
// trailing '/' limits the pattern to directories, leading '/' anchors to the
// root, '**' matches any number of path segments, '*' matches within one
// segment, '?' matches one non-separator character, and '!' negates a prior
// match. Later rules win.
type GitignoreMatcher struct {
	rules []gitignoreRule
}

// LoadGitignore parses <root>/.gitignore. A missing file yields an empty
// matcher that ignores nothing.
func LoadGitignore(root string) (*GitignoreMatcher, error) {
	m := &GitignoreMatcher{}
	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		m.AddPattern(sc.Text())
	}
	return m, sc.Err()
}

// NewGitignoreMatcher compiles a matcher from raw pattern lines.
func NewGitignoreMatcher(patterns []string) *GitignoreMatcher {
	m := &GitignoreMatcher{}
	for _, p := range patterns {
		m.AddPattern(p)
	}
	return m
}

// AddPattern compiles and appends one .gitignore line. Blank lines and
// comments are dropped.
func (m *GitignoreMatcher) AddPattern(line string) {
	pattern := strings.TrimSpace(line)
	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return
	}

	rule := gitignoreRule{original: pattern}

	if strings.HasPrefix(pattern, "!") {
		rule.negate = true
		pattern = pattern[1:]
	}
	if strings.HasSuffix(pattern, "/") {
		rule.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}

	anchored := strings.HasPrefix(pattern, "/")
	pattern = strings.TrimPrefix(pattern, "/")
	// A pattern with a slash in the middle is anchored to the root too,
	// same as Git.
	if strings.Contains(pattern, "/") {
		anchored = true
	}

	re, err := compileGitignorePattern(pattern, anchored)
	if err != nil {
		return // Unparseable patterns are skipped, matching Git's leniency
	}
	rule.re = re
	m.rules = append(m.rules, rule)
}

// compileGitignorePattern translates one gitignore glob into a regexp over
// the slash-separated path relative to the repository root.
func compileGitignorePattern(pattern string, anchored bool) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("(?i)")
	if anchored {
		sb.WriteString("^")
	} else {
		// Unanchored patterns match at any depth.
		sb.WriteString("(?:^|.*/)")
	}

	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				// '**' spans path segments. Swallow an adjacent slash so
				// "a/**/b" also matches "a/b".
				if i+2 < len(pattern) && pattern[i+2] == '/' {
					sb.WriteString("(?:.*/)?")
					i += 3
				} else {
					sb.WriteString(".*")
					i += 2
				}
			} else {
				sb.WriteString("[^/]*")
				i++
			}
		case '?':
			sb.WriteString("[^/]")
			i++
		case '.', '(', ')', '+', '|', '^', '$', '{', '}', '[', ']', '\\':
			sb.WriteString("\\")
			sb.WriteByte(c)
			i++
		default:
			sb.WriteByte(c)
			i++
		}
	}

	// The pattern matches the path itself or any path below it.
	sb.WriteString("(?:/.*)?$")
	return regexp.Compile(sb.String())
}

// Match reports whether relPath (slash-separated, relative to the root) is
// ignored. isDir must reflect whether the path names a directory.
func (m *GitignoreMatcher) Match(relPath string, isDir bool) bool {
	relPath = filepath.ToSlash(relPath)
	relPath = strings.TrimPrefix(relPath, "./")
	if relPath == "" || relPath == "." {
		return false
	}

	ignored := false
	for _, rule := range m.rules {
		if rule.dirOnly && !isDir && rule.re.MatchString(relPath) {
			// A dir-only pattern still ignores files beneath a matching
			// directory; it only refuses to match the file itself as the
			// terminal component. Check whether any parent matches.
			if !m.parentMatches(rule, relPath) {
				continue
			}
		} else if !rule.re.MatchString(relPath) {
			continue
		}
		if rule.negate {
			ignored = false
		} else {
			ignored = true
		}
	}
	return ignored
}

func (m *GitignoreMatcher) parentMatches(rule gitignoreRule, relPath string) bool {
	dir := relPath
	for {
		idx := strings.LastIndex(dir, "/")
		if idx < 0 {
			return false
		}
		dir = dir[:idx]
		if rule.re.MatchString(dir) {
			return true
		}
	}
}

// Len returns the number of compiled rules.
func (m *GitignoreMatcher) Len() int { return len(m.rules) }
