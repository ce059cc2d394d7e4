// Package llm exposes a provider-agnostic chat interface over
// OpenAI-compatible APIs, Anthropic, and Azure OpenAI, with shared retry,
// streaming, and tool-call handling.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Message is one turn of chat history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is the outcome of a non-streaming chat call. Failed calls
// carry the final error text in Content with Success false.
type ChatResponse struct {
	Success bool
	Content string
}

// ToolInfo is one tool invocation requested by the model.
type ToolInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Args string `json:"args"`
}

// AskToolResponse extends ChatResponse with requested tool calls.
type AskToolResponse struct {
	ChatResponse
	ToolCalls []ToolInfo
}

// ToolChoice controls whether the model may call tools.
type ToolChoice string

const (
	ToolChoiceNone     ToolChoice = "none"
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceRequired ToolChoice = "required"
)

// ToolParam describes one parameter of a declarative tool schema.
type ToolParam struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum,omitempty"`
}

// Tool is a declarative function the model may call. Converted to the
// provider's schema format at request time.
type Tool struct {
	Name        string
	Description string
	Params      map[string]ToolParam
	Required    []string
}

// StreamResult is emitted exactly once after a stream's content channel
// closes: the token count of the call and any terminal error.
type StreamResult struct {
	Tokens int
	Err    error
}

// ChatClient is the uniform chat contract all providers implement.
type ChatClient interface {
	// Chat sends a non-streaming completion request. The returned int is
	// the provider's reported token usage (0 when unavailable).
	Chat(ctx context.Context, system, userPrompt, question string, history []Message) (ChatResponse, int)

	// ChatStream streams content deltas. The result channel delivers one
	// StreamResult after the content channel closes.
	ChatStream(ctx context.Context, system, userPrompt, question string, history []Message) (<-chan string, <-chan StreamResult)

	// AskTools is Chat plus tool definitions; the model may answer with
	// content, tool calls, or both.
	AskTools(ctx context.Context, system, userPrompt, question string, history []Message, tools []Tool, choice ToolChoice) (AskToolResponse, int)

	// AskToolsStream streams content deltas and, after they finish, emits
	// one synthesized block containing every accumulated tool call.
	AskToolsStream(ctx context.Context, system, userPrompt, question string, history []Message, tools []Tool, choice ToolChoice) (<-chan string, <-chan StreamResult)

	// ModelName reports the configured model.
	ModelName() string
}

// buildUserContent joins the prompt scaffold and the question.
func buildUserContent(userPrompt, question string) string {
	switch {
	case userPrompt != "" && question != "":
		return userPrompt + "\n" + question
	case userPrompt != "":
		return userPrompt
	default:
		return question
	}
}

// buildMessages assembles [system?, ...history, user] for OpenAI-style
// providers.
func buildMessages(system, userPrompt, question string, history []Message) []Message {
	msgs := make([]Message, 0, len(history)+2)
	if strings.TrimSpace(system) != "" {
		msgs = append(msgs, Message{Role: "system", Content: system})
	}
	msgs = append(msgs, history...)
	msgs = append(msgs, Message{Role: "user", Content: buildUserContent(userPrompt, question)})
	return msgs
}

// usagePayload covers the shapes providers use for token accounting.
type usagePayload struct {
	TotalTokens  int `json:"total_tokens"`
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	// OpenAI-compatible aliases.
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// tokenCount probes total_tokens, then input+output, then prompt+completion,
// returning 0 when nothing is present.
func tokenCount(u *usagePayload) int {
	if u == nil {
		return 0
	}
	if u.TotalTokens > 0 {
		return u.TotalTokens
	}
	if u.InputTokens+u.OutputTokens > 0 {
		return u.InputTokens + u.OutputTokens
	}
	return u.PromptTokens + u.CompletionTokens
}

// truncationNotice is appended when the provider reports a length-limited
// generation.
func truncationNotice(language string) string {
	if strings.EqualFold(language, "chinese") || strings.HasPrefix(strings.ToLower(language), "zh") {
		return "\n\n> 由于模型输出长度限制，以上内容可能不完整。"
	}
	return "\n\n> The response may be incomplete because the model hit its output length limit."
}

// serializeToolCalls renders accumulated tool calls as the canonical block
// emitted at the end of a tool-augmented stream.
func serializeToolCalls(calls []ToolInfo) string {
	if len(calls) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("<tool_calls>")
	for _, call := range calls {
		payload, err := json.Marshal(call)
		if err != nil {
			continue
		}
		sb.WriteString("<tool>")
		sb.Write(payload)
		sb.WriteString("</tool>")
	}
	sb.WriteString("</tool_calls>")
	return sb.String()
}

// failedResponse folds an error into the non-streaming response shape.
func failedResponse(err error) ChatResponse {
	return ChatResponse{Success: false, Content: fmt.Sprintf("**ERROR**: %v", err)}
}
