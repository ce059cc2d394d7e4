// Package prompt loads and renders the Markdown prompt templates used by
// the generation stages. Templates support {{ var }} substitution and
// {% if %} / {% else %} / {% endif %} conditionals with block trimming.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"codewiki/internal/logging"
	"codewiki/internal/wikierr"
)

// Engine resolves templates under a root directory and caches parsed
// templates by path. Templates are read-only once loaded.
type Engine struct {
	root string

	mu    sync.RWMutex
	cache map[string]*Template
}

// NewEngine creates an engine rooted at dir.
func NewEngine(dir string) *Engine {
	return &Engine{root: dir, cache: map[string]*Template{}}
}

// Load resolves <root>/<subpath>/<name>.md, parses it, and caches the
// result. Loading failures are fatal to the caller: no retry.
func (e *Engine) Load(subpath, name string) (*Template, error) {
	path := filepath.Join(e.root, subpath, name+".md")

	e.mu.RLock()
	cached, ok := e.cache[path]
	e.mu.RUnlock()
	if ok {
		return cached, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, wikierr.Wrap(wikierr.KindConfig, err, "template not found or invalid: %s", path)
	}
	tmpl, err := Parse(string(raw))
	if err != nil {
		return nil, wikierr.Wrap(wikierr.KindConfig, err, "template not found or invalid: %s", path)
	}

	e.mu.Lock()
	e.cache[path] = tmpl
	e.mu.Unlock()
	logging.Template("loaded template %s", path)
	return tmpl, nil
}

// Render loads and renders in one call.
func (e *Engine) Render(subpath, name string, params map[string]interface{}) (string, error) {
	tmpl, err := e.Load(subpath, name)
	if err != nil {
		return "", err
	}
	return tmpl.Render(params), nil
}

// Template is a parsed template.
type Template struct {
	nodes []node
}

type node interface {
	render(sb *strings.Builder, params map[string]interface{})
}

type textNode string

func (t textNode) render(sb *strings.Builder, _ map[string]interface{}) {
	sb.WriteString(string(t))
}

type varNode string

func (v varNode) render(sb *strings.Builder, params map[string]interface{}) {
	if val, ok := params[string(v)]; ok && val != nil {
		sb.WriteString(fmt.Sprintf("%v", val))
	}
}

type ifNode struct {
	expr     string
	then     []node
	elseWise []node
}

func (n ifNode) render(sb *strings.Builder, params map[string]interface{}) {
	branch := n.elseWise
	if truthy(params[n.expr]) {
		branch = n.then
	}
	for _, c := range branch {
		c.render(sb, params)
	}
}

func truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return strings.TrimSpace(val) != ""
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	default:
		return true
	}
}

// Render substitutes params into the template. Unknown variables render
// empty.
func (t *Template) Render(params map[string]interface{}) string {
	var sb strings.Builder
	for _, n := range t.nodes {
		n.render(&sb, params)
	}
	return sb.String()
}

// Parse compiles template source. Tags: {{ var }}, {% if var %},
// {% else %}, {% endif %}. Block tags trim a trailing newline.
func Parse(source string) (*Template, error) {
	p := &parser{src: source}
	nodes, err := p.parseUntil("")
	if err != nil {
		return nil, err
	}
	return &Template{nodes: nodes}, nil
}

type parser struct {
	src string
	pos int
}

// parseUntil consumes nodes until the named closing tag ("endif") or end of
// input when terminator is empty. It leaves the terminator tag consumed and
// reports which tag stopped it.
func (p *parser) parseUntil(terminator string) ([]node, error) {
	nodes, stop, err := p.parseBlock(terminator)
	if err != nil {
		return nil, err
	}
	if terminator == "" && stop != "" {
		return nil, fmt.Errorf("unexpected {%% %s %%}", stop)
	}
	return nodes, nil
}

func (p *parser) parseBlock(terminator string) ([]node, string, error) {
	var nodes []node
	for p.pos < len(p.src) {
		next := strings.IndexAny(p.src[p.pos:], "{")
		if next < 0 {
			nodes = append(nodes, textNode(p.src[p.pos:]))
			p.pos = len(p.src)
			break
		}
		abs := p.pos + next
		if abs+1 >= len(p.src) {
			nodes = append(nodes, textNode(p.src[p.pos:]))
			p.pos = len(p.src)
			break
		}
		marker := p.src[abs : abs+2]
		if marker != "{{" && marker != "{%" {
			nodes = append(nodes, textNode(p.src[p.pos:abs+1]))
			p.pos = abs + 1
			continue
		}
		if abs > p.pos {
			nodes = append(nodes, textNode(p.src[p.pos:abs]))
		}
		p.pos = abs

		if marker == "{{" {
			end := strings.Index(p.src[p.pos:], "}}")
			if end < 0 {
				return nil, "", fmt.Errorf("unterminated {{ at offset %d", p.pos)
			}
			name := strings.TrimSpace(p.src[p.pos+2 : p.pos+end])
			nodes = append(nodes, varNode(name))
			p.pos += end + 2
			continue
		}

		end := strings.Index(p.src[p.pos:], "%}")
		if end < 0 {
			return nil, "", fmt.Errorf("unterminated {%% at offset %d", p.pos)
		}
		tag := strings.TrimSpace(p.src[p.pos+2 : p.pos+end])
		p.pos += end + 2
		p.trimNewline()

		fields := strings.Fields(tag)
		if len(fields) == 0 {
			return nil, "", fmt.Errorf("empty block tag")
		}
		switch fields[0] {
		case "if":
			if len(fields) != 2 {
				return nil, "", fmt.Errorf("malformed if tag: %q", tag)
			}
			then, stop, err := p.parseBlock("endif")
			if err != nil {
				return nil, "", err
			}
			n := ifNode{expr: fields[1], then: then}
			if stop == "else" {
				elseNodes, stop2, err := p.parseBlock("endif")
				if err != nil {
					return nil, "", err
				}
				if stop2 != "endif" {
					return nil, "", fmt.Errorf("unterminated if block")
				}
				n.elseWise = elseNodes
			} else if stop != "endif" {
				return nil, "", fmt.Errorf("unterminated if block")
			}
			nodes = append(nodes, n)
		case "else", "endif":
			if terminator == "" {
				return nil, "", fmt.Errorf("unexpected {%% %s %%}", fields[0])
			}
			return nodes, fields[0], nil
		default:
			return nil, "", fmt.Errorf("unknown block tag %q", fields[0])
		}
	}
	if terminator != "" {
		return nil, "", fmt.Errorf("missing {%% %s %%}", terminator)
	}
	return nodes, "", nil
}

// trimNewline drops one newline directly after a block tag, matching
// trim_blocks behavior.
func (p *parser) trimNewline() {
	if p.pos < len(p.src) && p.src[p.pos] == '\n' {
		p.pos++
	} else if p.pos+1 < len(p.src) && p.src[p.pos] == '\r' && p.src[p.pos+1] == '\n' {
		p.pos += 2
	}
}
