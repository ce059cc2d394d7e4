package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"codewiki/internal/compress"
	"codewiki/internal/docctx"
	"codewiki/internal/llm"
	"codewiki/internal/wikierr"
)

// maxReadBytes bounds a single file read handed to the model.
const maxReadBytes = 256 * 1024

// FileTool reads, lists, and searches files under a fixed working
// directory. Paths escaping the directory are rejected.
type FileTool struct {
	workingDir string
}

// NewFileTool confines file access to dir.
func NewFileTool(dir string) *FileTool {
	return &FileTool{workingDir: filepath.Clean(dir)}
}

func (t *FileTool) Declarations() []llm.Tool {
	return []llm.Tool{
		{
			Name:        "read_file",
			Description: "Read the content of a file in the repository. Path is relative to the repository root.",
			Params: map[string]llm.ToolParam{
				"path": {Type: "string", Description: "Relative path of the file to read"},
			},
			Required: []string{"path"},
		},
		{
			Name:        "list_files",
			Description: "List files and directories under a repository path.",
			Params: map[string]llm.ToolParam{
				"path": {Type: "string", Description: "Relative directory path; empty for the repository root"},
			},
		},
		{
			Name:        "search_files",
			Description: "Find repository file paths containing a keyword.",
			Params: map[string]llm.ToolParam{
				"keyword": {Type: "string", Description: "Substring to match against file paths"},
			},
			Required: []string{"keyword"},
		},
	}
}

// resolve joins a relative path to the working dir and rejects escapes.
func (t *FileTool) resolve(rel string) (string, error) {
	cleaned := filepath.Clean(filepath.Join(t.workingDir, filepath.FromSlash(rel)))
	if cleaned != t.workingDir && !strings.HasPrefix(cleaned, t.workingDir+string(filepath.Separator)) {
		return "", wikierr.New(wikierr.KindValidation, "path %q is outside the working directory", rel)
	}
	return cleaned, nil
}

func (t *FileTool) Execute(ctx context.Context, name, args string) (string, error) {
	switch name {
	case "read_file":
		var params struct {
			Path string `json:"path"`
		}
		if err := decodeArgs(args, &params); err != nil {
			return "", err
		}
		return t.readFile(ctx, params.Path)
	case "list_files":
		var params struct {
			Path string `json:"path"`
		}
		if err := decodeArgs(args, &params); err != nil {
			return "", err
		}
		return t.listFiles(params.Path)
	case "search_files":
		var params struct {
			Keyword string `json:"keyword"`
		}
		if err := decodeArgs(args, &params); err != nil {
			return "", err
		}
		return t.searchFiles(params.Keyword)
	}
	return "", fmt.Errorf("unsupported tool %q", name)
}

func (t *FileTool) readFile(ctx context.Context, rel string) (string, error) {
	path, err := t.resolve(rel)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", wikierr.Wrap(wikierr.KindIO, err, "read %s", rel)
	}
	out := string(content)
	if len(content) > maxReadBytes {
		// A structural outline keeps the declarations the model needs while
		// fitting the read budget. Truncate only if even the outline is big.
		out = compress.CompressFile(path, content)
		if len(out) > maxReadBytes {
			out = out[:maxReadBytes]
		}
	}
	if dc := docctx.From(ctx); dc != nil {
		dc.AddFile(rel)
	}
	return out, nil
}

func (t *FileTool) listFiles(rel string) (string, error) {
	path, err := t.resolve(rel)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", wikierr.Wrap(wikierr.KindIO, err, "list %s", rel)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	out, err := json.Marshal(map[string]interface{}{"entries": names})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (t *FileTool) searchFiles(keyword string) (string, error) {
	keyword = strings.ToLower(keyword)
	var matches []string
	err := filepath.WalkDir(t.workingDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && strings.HasPrefix(d.Name(), ".") && path != t.workingDir {
			return filepath.SkipDir
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(t.workingDir, path)
		if relErr != nil {
			return nil
		}
		if strings.Contains(strings.ToLower(filepath.ToSlash(rel)), keyword) {
			matches = append(matches, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return "", wikierr.Wrap(wikierr.KindIO, err, "search files")
	}
	out, marshalErr := json.Marshal(map[string]interface{}{"matches": matches})
	if marshalErr != nil {
		return "", marshalErr
	}
	return string(out), nil
}
