package compress

import (
	"regexp"
	"strings"
)

// markdownCompressor preserves document structure: headings keep level and
// text, list markers survive with their content replaced by an ellipsis,
// block quotes, code-fence markers, links, images, tables, and horizontal
// rules are retained.
type markdownCompressor struct{}

var (
	mdHeadingRe = regexp.MustCompile(`^\s{0,3}#{1,6}\s`)
	mdListRe    = regexp.MustCompile(`^(\s*)([-*+]|\d+\.)\s+`)
	mdQuoteRe   = regexp.MustCompile(`^\s{0,3}>`)
	mdFenceRe   = regexp.MustCompile("^\\s*(```|~~~)")
	mdHRRe      = regexp.MustCompile(`^\s{0,3}([-*_]\s*){3,}$`)
	mdTableRe   = regexp.MustCompile(`^\s*\|.*\|\s*$`)
	mdLinkRe    = regexp.MustCompile(`!?\[[^\]]*\]\([^)]*\)`)
)

func (markdownCompressor) Compress(text string) string {
	var out []string
	inFence := false

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if mdFenceRe.MatchString(line) {
			out = append(out, line)
			inFence = !inFence
			continue
		}
		if inFence {
			// Fence contents are implementation; only the markers survive.
			continue
		}

		switch {
		case mdHeadingRe.MatchString(line):
			out = append(out, line)
		case mdHRRe.MatchString(trimmed):
			out = append(out, line)
		case mdTableRe.MatchString(line):
			out = append(out, line)
		case mdQuoteRe.MatchString(line):
			out = append(out, line)
		case mdListRe.MatchString(line):
			m := mdListRe.FindStringSubmatch(line)
			rest := line[len(m[0]):]
			if links := mdLinkRe.FindAllString(rest, -1); len(links) > 0 {
				out = append(out, m[1]+m[2]+" "+strings.Join(links, " "))
			} else {
				out = append(out, m[1]+m[2]+" …")
			}
		case mdLinkRe.MatchString(line):
			out = append(out, strings.Join(mdLinkRe.FindAllString(line, -1), " "))
		}
	}

	return strings.Join(out, "\n")
}
