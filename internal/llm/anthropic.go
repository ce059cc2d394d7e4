package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"codewiki/internal/config"
	"codewiki/internal/logging"
	"codewiki/internal/metrics"
)

const anthropicVersion = "2023-06-01"

// AnthropicClient speaks the Anthropic messages API. Claude has no system
// role in the message list; the system text is prepended to the first user
// message instead.
type AnthropicClient struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	language    string
	httpClient  *http.Client
}

// NewAnthropicClient builds a Claude client.
func NewAnthropicClient(cfg config.ProviderConfig, language string) *AnthropicClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	return &AnthropicClient{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		model:       cfg.ModelName,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		language:    language,
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
	}
}

func (c *AnthropicClient) ModelName() string { return c.model }

type anthTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type anthRequest struct {
	Model       string     `json:"model"`
	Messages    []Message  `json:"messages"`
	MaxTokens   int        `json:"max_tokens"`
	Temperature float64    `json:"temperature"`
	Stream      bool       `json:"stream,omitempty"`
	Tools       []anthTool `json:"tools,omitempty"`
	ToolChoice  *struct {
		Type string `json:"type"`
	} `json:"tool_choice,omitempty"`
}

type anthContentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text"`
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type anthResponse struct {
	Content    []anthContentBlock `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      *usagePayload      `json:"usage"`
	Error      *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// anthMessages folds system into the first user message and drops empty
// roles Claude rejects.
func anthMessages(system, userPrompt, question string, history []Message) []Message {
	user := buildUserContent(userPrompt, question)
	msgs := make([]Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, Message{Role: "user", Content: user})
	if strings.TrimSpace(system) != "" {
		for i := range msgs {
			if msgs[i].Role == "user" {
				msgs[i].Content = system + "\n\n" + msgs[i].Content
				break
			}
		}
	}
	return msgs
}

func toAnthTools(tools []Tool) []anthTool {
	out := make([]anthTool, 0, len(tools))
	for _, t := range tools {
		props := map[string]ToolParam{}
		names := make([]string, 0, len(t.Params))
		for name, p := range t.Params {
			props[name] = p
			names = append(names, name)
		}
		sort.Strings(names)
		schema := map[string]interface{}{
			"type":       "object",
			"properties": props,
		}
		if len(t.Required) > 0 {
			schema["required"] = t.Required
		}
		raw, err := json.Marshal(schema)
		if err != nil {
			continue
		}
		out = append(out, anthTool{Name: t.Name, Description: t.Description, InputSchema: raw})
	}
	return out
}

func anthToolChoice(choice ToolChoice) *struct {
	Type string `json:"type"`
} {
	switch choice {
	case ToolChoiceAuto:
		return &struct {
			Type string `json:"type"`
		}{Type: "auto"}
	case ToolChoiceRequired:
		return &struct {
			Type string `json:"type"`
		}{Type: "any"}
	}
	return nil
}

func (c *AnthropicClient) Chat(ctx context.Context, system, userPrompt, question string, history []Message) (ChatResponse, int) {
	resp, tokens := c.ask(ctx, system, userPrompt, question, history, nil, ToolChoiceNone)
	return resp.ChatResponse, tokens
}

func (c *AnthropicClient) AskTools(ctx context.Context, system, userPrompt, question string, history []Message, tools []Tool, choice ToolChoice) (AskToolResponse, int) {
	return c.ask(ctx, system, userPrompt, question, history, tools, choice)
}

func (c *AnthropicClient) ask(ctx context.Context, system, userPrompt, question string, history []Message, tools []Tool, choice ToolChoice) (AskToolResponse, int) {
	start := time.Now()
	if c.apiKey == "" {
		return AskToolResponse{ChatResponse: failedResponse(fmt.Errorf("API key not configured for provider anthropic"))}, 0
	}

	reqBody := anthRequest{
		Model:       c.model,
		Messages:    anthMessages(system, userPrompt, question, history),
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	if len(tools) > 0 && choice != ToolChoiceNone {
		reqBody.Tools = toAnthTools(tools)
		reqBody.ToolChoice = anthToolChoice(choice)
	}

	var parsed anthResponse
	err := retry(ctx, DefaultMaxAttempts, func(err error) bool {
		retryable := IsRetryableText(err.Error())
		if retryable {
			metrics.LLMRetries.WithLabelValues("anthropic").Inc()
		}
		return retryable
	}, func() error {
		body, err := c.post(ctx, "/v1/messages", reqBody, false)
		if err != nil {
			return err
		}
		parsed = anthResponse{}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		if parsed.Error != nil {
			return fmt.Errorf("API error: %s", parsed.Error.Message)
		}
		return nil
	})
	if err != nil {
		logging.APIError("[anthropic] chat failed after %v: %v", time.Since(start), err)
		return AskToolResponse{ChatResponse: failedResponse(err)}, 0
	}

	var sb strings.Builder
	var calls []ToolInfo
	for _, block := range parsed.Content {
		switch block.Type {
		case "text":
			sb.WriteString(block.Text)
		case "tool_use":
			calls = append(calls, ToolInfo{ID: block.ID, Name: block.Name, Args: string(block.Input)})
		}
	}
	content := strings.TrimSpace(sb.String())
	if parsed.StopReason == "max_tokens" {
		content += truncationNotice(c.language)
	}

	tokens := tokenCount(parsed.Usage)
	metrics.LLMTokens.WithLabelValues("anthropic").Add(float64(tokens))
	logging.API("[anthropic] chat completed in %v tokens=%d tool_calls=%d", time.Since(start), tokens, len(calls))
	return AskToolResponse{
		ChatResponse: ChatResponse{Success: true, Content: content},
		ToolCalls:    calls,
	}, tokens
}

func (c *AnthropicClient) ChatStream(ctx context.Context, system, userPrompt, question string, history []Message) (<-chan string, <-chan StreamResult) {
	return c.stream(ctx, system, userPrompt, question, history, nil, ToolChoiceNone)
}

func (c *AnthropicClient) AskToolsStream(ctx context.Context, system, userPrompt, question string, history []Message, tools []Tool, choice ToolChoice) (<-chan string, <-chan StreamResult) {
	return c.stream(ctx, system, userPrompt, question, history, tools, choice)
}

func (c *AnthropicClient) stream(ctx context.Context, system, userPrompt, question string, history []Message, tools []Tool, choice ToolChoice) (<-chan string, <-chan StreamResult) {
	contentChan := make(chan string, 100)
	resultChan := make(chan StreamResult, 1)

	go func() {
		defer close(contentChan)
		defer close(resultChan)

		start := time.Now()
		if c.apiKey == "" {
			resultChan <- StreamResult{Err: fmt.Errorf("API key not configured for provider anthropic")}
			return
		}

		reqBody := anthRequest{
			Model:       c.model,
			Messages:    anthMessages(system, userPrompt, question, history),
			MaxTokens:   c.maxTokens,
			Temperature: c.temperature,
			Stream:      true,
		}
		if len(tools) > 0 && choice != ToolChoiceNone {
			reqBody.Tools = toAnthTools(tools)
			reqBody.ToolChoice = anthToolChoice(choice)
		}

		var resp *http.Response
		err := retry(ctx, DefaultMaxAttempts, func(err error) bool {
			retryable := IsRetryableText(err.Error())
			if retryable {
				metrics.LLMRetries.WithLabelValues("anthropic").Inc()
			}
			return retryable
		}, func() error {
			r, err := c.postRaw(ctx, "/v1/messages", reqBody, true)
			if err != nil {
				return err
			}
			resp = r
			return nil
		})
		if err != nil {
			logging.APIError("[anthropic] stream failed after %v: %v", time.Since(start), err)
			resultChan <- StreamResult{Err: err}
			return
		}
		defer resp.Body.Close()

		tokens, streamErr := c.consumeSSE(ctx, resp.Body, contentChan)
		metrics.LLMTokens.WithLabelValues("anthropic").Add(float64(tokens))
		if streamErr != nil {
			logging.APIError("[anthropic] stream error after %v: %v", time.Since(start), streamErr)
		} else {
			logging.API("[anthropic] stream completed in %v tokens=%d", time.Since(start), tokens)
		}
		resultChan <- StreamResult{Tokens: tokens, Err: streamErr}
	}()

	return contentChan, resultChan
}

// anthEvent covers the event payloads the stream consumer cares about.
type anthEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`
	ContentBlock *anthContentBlock `json:"content_block"`
	Usage        *usagePayload     `json:"usage"`
	Message      *struct {
		Usage *usagePayload `json:"usage"`
	} `json:"message"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *AnthropicClient) consumeSSE(ctx context.Context, body io.Reader, out chan<- string) (int, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	tokens := 0
	truncated := false
	pending := map[int]*ToolInfo{}
	var order []int

	emit := func(s string) bool {
		select {
		case out <- s:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}

		var ev anthEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			continue
		}
		switch ev.Type {
		case "error":
			if ev.Error != nil {
				return tokens, fmt.Errorf("API error: %s", ev.Error.Message)
			}
		case "message_start":
			if ev.Message != nil && ev.Message.Usage != nil {
				tokens = tokenCount(ev.Message.Usage)
			}
		case "content_block_start":
			if ev.ContentBlock != nil && ev.ContentBlock.Type == "tool_use" {
				pending[ev.Index] = &ToolInfo{ID: ev.ContentBlock.ID, Name: ev.ContentBlock.Name}
				order = append(order, ev.Index)
			}
		case "content_block_delta":
			switch ev.Delta.Type {
			case "text_delta":
				if ev.Delta.Text != "" && !emit(ev.Delta.Text) {
					return tokens, ctx.Err()
				}
			case "input_json_delta":
				if entry, ok := pending[ev.Index]; ok {
					entry.Args += ev.Delta.PartialJSON
				}
			}
		case "message_delta":
			if ev.Usage != nil {
				if t := tokenCount(ev.Usage); t > tokens {
					tokens = t
				}
			}
			if ev.Delta.StopReason == "max_tokens" {
				truncated = true
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return tokens, fmt.Errorf("stream read: %w", err)
	}

	if truncated {
		if !emit(truncationNotice(c.language)) {
			return tokens, ctx.Err()
		}
	}
	if len(order) > 0 {
		calls := make([]ToolInfo, 0, len(order))
		for _, idx := range order {
			calls = append(calls, *pending[idx])
		}
		if !emit(serializeToolCalls(calls)) {
			return tokens, ctx.Err()
		}
	}
	return tokens, nil
}

func (c *AnthropicClient) post(ctx context.Context, path string, payload interface{}, sse bool) ([]byte, error) {
	resp, err := c.postRaw(ctx, path, payload, sse)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

func (c *AnthropicClient) postRaw(ctx context.Context, path string, payload interface{}, sse bool) (*http.Response, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	if sse {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}
