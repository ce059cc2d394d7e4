// Package docctx carries the per-execution document context: the source
// files and issues the model referenced while generating one artifact. The
// persistence layer reads it to populate source references; native function
// tools append to it as they run.
package docctx

import (
	"context"
	"sort"
	"sync"
)

// GitIssue is one issue surfaced by a provider search tool.
type GitIssue struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Content   string `json:"content"`
	Author    string `json:"author"`
	HTMLURL   string `json:"html_url"`
	State     string `json:"state"`
	Number    int    `json:"number"`
	CreatedAt string `json:"created_at"`
}

// Context accumulates references for one pipeline task. Safe for concurrent
// use: stage 7 fans out catalog generation across goroutines that share one
// document but each get their own Context.
type Context struct {
	mu       sync.Mutex
	files    map[string]bool
	issues   []GitIssue
	metadata map[string]interface{}
}

// New creates an empty document context.
func New() *Context {
	return &Context{
		files:    map[string]bool{},
		metadata: map[string]interface{}{},
	}
}

// AddFile records a referenced source file path. Duplicates collapse.
func (c *Context) AddFile(path string) {
	if path == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[path] = true
}

// Files returns the referenced paths, sorted.
func (c *Context) Files() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.files))
	for f := range c.files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// AddIssue records one referenced issue.
func (c *Context) AddIssue(issue GitIssue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issues = append(c.issues, issue)
}

// Issues returns recorded issues in insertion order.
func (c *Context) Issues() []GitIssue {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]GitIssue, len(c.issues))
	copy(out, c.issues)
	return out
}

// SetMeta stores an arbitrary key for later stages.
func (c *Context) SetMeta(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metadata[key] = value
}

// Meta reads a metadata key.
func (c *Context) Meta(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.metadata[key]
	return v, ok
}

// Reset clears everything while keeping the instance usable.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files = map[string]bool{}
	c.issues = nil
	c.metadata = map[string]interface{}{}
}

type ctxKey struct{}

// Attach binds a document context to a context.Context so tools receive it
// implicitly.
func Attach(ctx context.Context, dc *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, dc)
}

// From extracts the bound document context, or nil when absent.
func From(ctx context.Context) *Context {
	dc, _ := ctx.Value(ctxKey{}).(*Context)
	return dc
}

// Scope runs f with a fresh document context attached, guaranteeing the
// context does not leak past the call.
func Scope(ctx context.Context, f func(ctx context.Context, dc *Context) error) error {
	dc := New()
	defer dc.Reset()
	return f(Attach(ctx, dc), dc)
}
