// Package kernel binds a chat model, native function tools, and prompt
// plugins into one invocation surface. Kernel instances are cached by their
// full configuration key and shared across concurrent pipeline tasks.
package kernel

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"codewiki/internal/llm"
	"codewiki/internal/logging"
	"codewiki/internal/prompt"
	"codewiki/internal/tools"
	"codewiki/internal/wikierr"
)

// FunctionChoice controls whether tool calling is enabled for a call.
type FunctionChoice string

const (
	FunctionChoiceAuto FunctionChoice = "auto"
	FunctionChoiceNone FunctionChoice = "none"
)

// maxToolRounds bounds the execute-and-reask loop for one invocation.
const maxToolRounds = 5

// Options is the cache key for kernel instances.
type Options struct {
	BaseURL      string
	APIKey       string
	WorkingDir   string
	Model        string
	AnalysisMode string
}

// Kernel owns one configured model plus its tools and plugins.
type Kernel struct {
	client     llm.ChatClient
	registry   *tools.Registry
	pluginRoot string

	mu      sync.Mutex
	plugins map[string]*prompt.Plugin
}

// New builds an uncached kernel. Most callers should use a Factory.
func New(client llm.ChatClient, registry *tools.Registry, pluginRoot string) *Kernel {
	if registry == nil {
		registry = tools.NewRegistry()
	}
	return &Kernel{
		client:     client,
		registry:   registry,
		pluginRoot: pluginRoot,
		plugins:    map[string]*prompt.Plugin{},
	}
}

// Factory caches kernels by Options. Entries are immutable and never
// evicted; concurrent callers share instances.
type Factory struct {
	build func(Options) (*Kernel, error)

	mu    sync.Mutex
	cache map[Options]*Kernel
}

// NewFactory wraps a kernel constructor with the cache.
func NewFactory(build func(Options) (*Kernel, error)) *Factory {
	return &Factory{build: build, cache: map[Options]*Kernel{}}
}

// Get returns the cached kernel for opts, building it on first use.
func (f *Factory) Get(opts Options) (*Kernel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if k, ok := f.cache[opts]; ok {
		return k, nil
	}
	k, err := f.build(opts)
	if err != nil {
		return nil, err
	}
	f.cache[opts] = k
	logging.API("kernel created for model=%s mode=%s (cache size %d)", opts.Model, opts.AnalysisMode, len(f.cache))
	return k, nil
}

// InvokePrompt runs one prompt. With FunctionChoiceAuto the kernel executes
// requested tools and re-asks until the model answers with content or the
// round budget runs out.
func (k *Kernel) InvokePrompt(ctx context.Context, system, userPrompt, question string, history []llm.Message, choice FunctionChoice) (llm.ChatResponse, int) {
	if choice != FunctionChoiceAuto || len(k.registry.Declarations()) == 0 {
		return k.client.Chat(ctx, system, userPrompt, question, history)
	}

	totalTokens := 0
	msgs := append([]llm.Message(nil), history...)
	curPrompt, curQuestion := userPrompt, question

	for round := 0; round < maxToolRounds; round++ {
		resp, tokens := k.client.AskTools(ctx, system, curPrompt, curQuestion, msgs, k.registry.Declarations(), llm.ToolChoiceAuto)
		totalTokens += tokens
		if !resp.Success {
			return resp.ChatResponse, totalTokens
		}
		if len(resp.ToolCalls) == 0 {
			return resp.ChatResponse, totalTokens
		}

		// Fold this turn into history and feed tool results back.
		msgs = append(msgs, llm.Message{Role: "user", Content: joinUserContent(curPrompt, curQuestion)})
		if resp.Content != "" {
			msgs = append(msgs, llm.Message{Role: "assistant", Content: resp.Content})
		}
		for _, call := range resp.ToolCalls {
			result := k.registry.Dispatch(ctx, call)
			msgs = append(msgs, llm.Message{
				Role:    "user",
				Content: fmt.Sprintf("Result of tool %s:\n%s", call.Name, result),
			})
		}
		curPrompt = ""
		curQuestion = "Continue with the task using the tool results above."
	}

	return llm.ChatResponse{Success: false, Content: "**ERROR**: tool round budget exhausted"}, totalTokens
}

// InvokePromptStream streams one prompt. Tool calling uses the streaming
// aggregation contract: tool blocks arrive after the content deltas and are
// forwarded verbatim.
func (k *Kernel) InvokePromptStream(ctx context.Context, system, userPrompt, question string, history []llm.Message, choice FunctionChoice) (<-chan string, <-chan llm.StreamResult) {
	if choice == FunctionChoiceAuto && len(k.registry.Declarations()) > 0 {
		return k.client.AskToolsStream(ctx, system, userPrompt, question, history, k.registry.Declarations(), llm.ToolChoiceAuto)
	}
	return k.client.ChatStream(ctx, system, userPrompt, question, history)
}

// plugin loads and caches a semantic plugin directory by name.
func (k *Kernel) plugin(name string) (*prompt.Plugin, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if p, ok := k.plugins[name]; ok {
		return p, nil
	}
	if k.pluginRoot == "" {
		return nil, wikierr.New(wikierr.KindConfig, "no plugin root configured")
	}
	p, err := prompt.LoadPlugin(filepath.Join(k.pluginRoot, name))
	if err != nil {
		return nil, err
	}
	k.plugins[name] = p
	return p, nil
}

// InvokeByPlugin renders a named semantic plugin and runs it.
func (k *Kernel) InvokeByPlugin(ctx context.Context, name string, params map[string]interface{}, choice FunctionChoice) (llm.ChatResponse, int) {
	p, err := k.plugin(name)
	if err != nil {
		return llm.ChatResponse{Success: false, Content: fmt.Sprintf("**ERROR**: %v", err)}, 0
	}
	rendered, err := p.Render(params)
	if err != nil {
		return llm.ChatResponse{Success: false, Content: fmt.Sprintf("**ERROR**: %v", err)}, 0
	}
	return k.InvokePrompt(ctx, "", "", rendered, nil, choice)
}

// InvokeByPluginStream renders a named semantic plugin and streams it.
func (k *Kernel) InvokeByPluginStream(ctx context.Context, name string, params map[string]interface{}, choice FunctionChoice) (<-chan string, <-chan llm.StreamResult) {
	p, err := k.plugin(name)
	if err != nil {
		return failedStream(err)
	}
	rendered, renderErr := p.Render(params)
	if renderErr != nil {
		return failedStream(renderErr)
	}
	return k.InvokePromptStream(ctx, "", "", rendered, nil, choice)
}

func failedStream(err error) (<-chan string, <-chan llm.StreamResult) {
	content := make(chan string)
	close(content)
	result := make(chan llm.StreamResult, 1)
	result <- llm.StreamResult{Err: err}
	close(result)
	return content, result
}

func joinUserContent(userPrompt, question string) string {
	switch {
	case userPrompt != "" && question != "":
		return userPrompt + "\n" + question
	case userPrompt != "":
		return userPrompt
	default:
		return question
	}
}
