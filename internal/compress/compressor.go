// Package compress reduces source files to compact structural outlines that
// preserve declarations, comments, and scope markers while discarding
// expression bodies. The pipeline uses it when many files must be inlined
// into a single prompt.
package compress

import (
	"path/filepath"
	"strings"

	"codewiki/internal/logging"

	"github.com/src-d/enry/v2"
)

// Compressor reduces one source text to its structural outline.
type Compressor interface {
	Compress(text string) string
}

// registry maps language tag to compressor. The generic compressor is just
// another entry, selected when no tag matches.
var registry = map[string]Compressor{}

// extensionTags maps file extensions to language tags.
var extensionTags = map[string]string{
	".cs":    "csharp",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".cjs":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".py":    "python",
	".pyw":   "python",
	".java":  "java",
	".kt":    "kotlin",
	".kts":   "kotlin",
	".scala": "scala",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".cxx":   "cpp",
	".hpp":   "cpp",
	".hh":    "cpp",
	".go":    "go",
	".rs":    "rust",
	".php":   "php",
	".rb":    "ruby",
	".swift": "swift",
	".sh":    "bash",
	".bash":  "bash",
	".zsh":   "zsh",
	".fish":  "fish",
	".ps1":   "powershell",
	".psm1":  "powershell",
	".sql":   "sql",
	".html":  "html",
	".htm":   "html",
	".css":   "css",
	".scss":  "scss",
	".sass":  "sass",
	".less":  "less",
	".json":  "json",
	".xml":   "xml",
	".yaml":  "yaml",
	".yml":   "yml",
	".md":    "markdown",
	".mdx":   "markdown",
}

// filenameTags recognizes well-known name-only files.
var filenameTags = map[string]string{
	"dockerfile":     "bash",
	"makefile":       "bash",
	"rakefile":       "ruby",
	"gemfile":        "ruby",
	"vagrantfile":    "ruby",
	"jenkinsfile":    "java",
	"cmakelists.txt": "bash",
	".gitignore":     "bash",
	".dockerignore":  "bash",
	".editorconfig":  "yaml",
}

func init() {
	cfam := newCFamilyCompressor()
	for _, tag := range []string{"csharp", "javascript", "typescript", "java", "kotlin", "scala", "c", "cpp", "swift", "php"} {
		registry[tag] = cfam
	}
	registry["python"] = &pythonCompressor{}
	registry["go"] = &goCompressor{}
	registry["rust"] = &rustCompressor{}
	registry["ruby"] = &rubyCompressor{}
	shell := &shellCompressor{}
	registry["bash"] = shell
	registry["zsh"] = shell
	registry["fish"] = shell
	registry["powershell"] = &powershellCompressor{}
	registry["sql"] = &sqlCompressor{}
	registry["markdown"] = &markdownCompressor{}
	yamlc := &yamlCompressor{}
	registry["yaml"] = yamlc
	registry["yml"] = yamlc
	registry["json"] = &jsonCompressor{}
	markup := &markupCompressor{}
	registry["html"] = markup
	registry["xml"] = markup
	style := &styleCompressor{}
	registry["css"] = style
	registry["scss"] = style
	registry["sass"] = style
	registry["less"] = style
}

// For returns the compressor registered for a language tag, falling back to
// the generic compressor for unknown tags.
func For(tag string) Compressor {
	if c, ok := registry[strings.ToLower(tag)]; ok {
		return c
	}
	return genericCompressor{}
}

// DetectLanguage maps a file path to a language tag. The extension table is
// consulted first, then the well-known filename table, then enry's
// content-based classifier when content is provided.
func DetectLanguage(path string, content []byte) string {
	ext := strings.ToLower(filepath.Ext(path))
	if tag, ok := extensionTags[ext]; ok {
		return tag
	}
	base := strings.ToLower(filepath.Base(path))
	if tag, ok := filenameTags[base]; ok {
		return tag
	}
	if len(content) > 0 {
		if lang := enry.GetLanguage(filepath.Base(path), content); lang != "" {
			tag := strings.ToLower(lang)
			if _, ok := registry[tag]; ok {
				return tag
			}
		}
	}
	return ""
}

// CompressFile picks a compressor by path and compresses content.
func CompressFile(path string, content []byte) string {
	tag := DetectLanguage(path, content)
	out := For(tag).Compress(string(content))
	logging.Compress("compressed %s (%s): %d -> %d bytes", filepath.Base(path), tag, len(content), len(out))
	return out
}

// genericCompressor keeps non-empty lines only.
type genericCompressor struct{}

func (genericCompressor) Compress(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// nonEmptyLines is the shared parse-failure fallback for structured formats.
func nonEmptyLines(text string) string {
	return genericCompressor{}.Compress(text)
}
