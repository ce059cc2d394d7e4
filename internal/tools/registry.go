// Package tools implements the native functions the model may call during
// generation: file access under a fixed working directory, optional RAG
// search, and issue search against GitHub and Gitee. Tool declarations are
// declarative; the kernel converts them to provider schemas.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"codewiki/internal/llm"
	"codewiki/internal/logging"
)

// Executor handles one or more declared tools.
type Executor interface {
	Declarations() []llm.Tool
	Execute(ctx context.Context, name, args string) (string, error)
}

// Registry routes tool calls by name.
type Registry struct {
	byName map[string]Executor
	decls  []llm.Tool
}

// NewRegistry builds a registry over the given executors. Later executors
// win on name collision.
func NewRegistry(executors ...Executor) *Registry {
	r := &Registry{byName: map[string]Executor{}}
	for _, ex := range executors {
		for _, decl := range ex.Declarations() {
			r.byName[decl.Name] = ex
			r.decls = append(r.decls, decl)
		}
	}
	return r
}

// Declarations returns every registered tool schema.
func (r *Registry) Declarations() []llm.Tool {
	return r.decls
}

// Dispatch executes one requested call and renders the result as the string
// handed back to the model. Errors become JSON error payloads rather than
// failing the chat turn.
func (r *Registry) Dispatch(ctx context.Context, call llm.ToolInfo) string {
	ex, ok := r.byName[call.Name]
	if !ok {
		logging.ToolsError("unknown tool %q requested", call.Name)
		return errorPayload(fmt.Sprintf("unknown tool %q", call.Name))
	}
	out, err := ex.Execute(ctx, call.Name, call.Args)
	if err != nil {
		logging.ToolsError("tool %s failed: %v", call.Name, err)
		return errorPayload(err.Error())
	}
	logging.Tools("tool %s executed, %d bytes", call.Name, len(out))
	return out
}

func errorPayload(msg string) string {
	out, _ := json.Marshal(map[string]string{"error": msg})
	return string(out)
}

// decodeArgs unmarshals a tool-call argument string, tolerating empty input.
func decodeArgs(args string, v interface{}) error {
	if args == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(args), v); err != nil {
		return fmt.Errorf("invalid tool arguments: %w", err)
	}
	return nil
}
