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

// OpenAIClient speaks the OpenAI-compatible chat-completions protocol. It
// covers OpenAI itself plus DeepSeek, SiliconFlow, Qwen/DashScope, and
// self-hosted gateways that mimic the API.
type OpenAIClient struct {
	provider    string
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	language    string
	httpClient  *http.Client

	// chatPath and setAuth let the Azure variant reroute the endpoint and
	// swap the auth header without duplicating the protocol handling.
	chatPath string
	setAuth  func(*http.Request)
}

// NewOpenAIClient builds a client for any OpenAI-compatible provider.
func NewOpenAIClient(provider string, cfg config.ProviderConfig, language string) *OpenAIClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	return &OpenAIClient{
		provider:    provider,
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
		chatPath: "/chat/completions",
	}
}

func (c *OpenAIClient) ModelName() string { return c.model }

func (c *OpenAIClient) authorize(req *http.Request) {
	if c.setAuth != nil {
		c.setAuth(req)
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

// Wire types for the chat-completions endpoint.

type oaiToolCall struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type oaiMessage struct {
	Role             string        `json:"role"`
	Content          string        `json:"content"`
	ReasoningContent string        `json:"reasoning_content,omitempty"`
	ToolCalls        []oaiToolCall `json:"tool_calls,omitempty"`
}

type oaiTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

type oaiRequest struct {
	Model         string      `json:"model"`
	Messages      []Message   `json:"messages"`
	MaxTokens     int         `json:"max_tokens,omitempty"`
	Temperature   float64     `json:"temperature"`
	Stream        bool        `json:"stream,omitempty"`
	StreamOptions *struct {
		IncludeUsage bool `json:"include_usage"`
	} `json:"stream_options,omitempty"`
	Tools      []oaiTool `json:"tools,omitempty"`
	ToolChoice string    `json:"tool_choice,omitempty"`
}

type oaiChoice struct {
	Message      *oaiMessage `json:"message"`
	Delta        *oaiMessage `json:"delta"`
	FinishReason string      `json:"finish_reason"`
}

type oaiResponse struct {
	Choices []oaiChoice   `json:"choices"`
	Usage   *usagePayload `json:"usage"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// toOpenAITools converts declarative tool schemas to the provider format.
func toOpenAITools(tools []Tool) []oaiTool {
	out := make([]oaiTool, 0, len(tools))
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
		var ot oaiTool
		ot.Type = "function"
		ot.Function.Name = t.Name
		ot.Function.Description = t.Description
		ot.Function.Parameters = raw
		out = append(out, ot)
	}
	return out
}

func (c *OpenAIClient) Chat(ctx context.Context, system, userPrompt, question string, history []Message) (ChatResponse, int) {
	resp, tokens := c.ask(ctx, system, userPrompt, question, history, nil, ToolChoiceNone)
	return resp.ChatResponse, tokens
}

func (c *OpenAIClient) AskTools(ctx context.Context, system, userPrompt, question string, history []Message, tools []Tool, choice ToolChoice) (AskToolResponse, int) {
	return c.ask(ctx, system, userPrompt, question, history, tools, choice)
}

func (c *OpenAIClient) ask(ctx context.Context, system, userPrompt, question string, history []Message, tools []Tool, choice ToolChoice) (AskToolResponse, int) {
	start := time.Now()
	if c.apiKey == "" {
		return AskToolResponse{ChatResponse: failedResponse(fmt.Errorf("API key not configured for provider %s", c.provider))}, 0
	}

	reqBody := oaiRequest{
		Model:       c.model,
		Messages:    buildMessages(system, userPrompt, question, history),
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	if len(tools) > 0 && choice != ToolChoiceNone {
		reqBody.Tools = toOpenAITools(tools)
		reqBody.ToolChoice = string(choice)
	}

	var parsed oaiResponse
	err := retry(ctx, DefaultMaxAttempts, func(err error) bool {
		retryable := IsRetryableText(err.Error())
		if retryable {
			metrics.LLMRetries.WithLabelValues(c.provider).Inc()
		}
		return retryable
	}, func() error {
		body, err := c.post(ctx, c.chatPath, reqBody, "")
		if err != nil {
			return err
		}
		parsed = oaiResponse{}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		if parsed.Error != nil {
			return fmt.Errorf("API error: %s", parsed.Error.Message)
		}
		if len(parsed.Choices) == 0 || parsed.Choices[0].Message == nil {
			return fmt.Errorf("no completion returned")
		}
		return nil
	})
	if err != nil {
		logging.APIError("[%s] chat failed after %v: %v", c.provider, time.Since(start), err)
		return AskToolResponse{ChatResponse: failedResponse(err)}, 0
	}

	choice0 := parsed.Choices[0]
	content := strings.TrimSpace(choice0.Message.Content)
	if choice0.FinishReason == "length" {
		content += truncationNotice(c.language)
	}

	var calls []ToolInfo
	for _, tc := range choice0.Message.ToolCalls {
		calls = append(calls, ToolInfo{ID: tc.ID, Name: tc.Function.Name, Args: tc.Function.Arguments})
	}

	tokens := tokenCount(parsed.Usage)
	metrics.LLMTokens.WithLabelValues(c.provider).Add(float64(tokens))
	logging.API("[%s] chat completed in %v tokens=%d tool_calls=%d", c.provider, time.Since(start), tokens, len(calls))
	return AskToolResponse{
		ChatResponse: ChatResponse{Success: true, Content: content},
		ToolCalls:    calls,
	}, tokens
}

func (c *OpenAIClient) ChatStream(ctx context.Context, system, userPrompt, question string, history []Message) (<-chan string, <-chan StreamResult) {
	return c.stream(ctx, system, userPrompt, question, history, nil, ToolChoiceNone)
}

func (c *OpenAIClient) AskToolsStream(ctx context.Context, system, userPrompt, question string, history []Message, tools []Tool, choice ToolChoice) (<-chan string, <-chan StreamResult) {
	return c.stream(ctx, system, userPrompt, question, history, tools, choice)
}

func (c *OpenAIClient) stream(ctx context.Context, system, userPrompt, question string, history []Message, tools []Tool, choice ToolChoice) (<-chan string, <-chan StreamResult) {
	contentChan := make(chan string, 100)
	resultChan := make(chan StreamResult, 1)

	go func() {
		defer close(contentChan)
		defer close(resultChan)

		start := time.Now()
		if c.apiKey == "" {
			resultChan <- StreamResult{Err: fmt.Errorf("API key not configured for provider %s", c.provider)}
			return
		}

		reqBody := oaiRequest{
			Model:       c.model,
			Messages:    buildMessages(system, userPrompt, question, history),
			MaxTokens:   c.maxTokens,
			Temperature: c.temperature,
			Stream:      true,
			StreamOptions: &struct {
				IncludeUsage bool `json:"include_usage"`
			}{IncludeUsage: true},
		}
		if len(tools) > 0 && choice != ToolChoiceNone {
			reqBody.Tools = toOpenAITools(tools)
			reqBody.ToolChoice = string(choice)
		}

		var resp *http.Response
		err := retry(ctx, DefaultMaxAttempts, func(err error) bool {
			retryable := IsRetryableText(err.Error())
			if retryable {
				metrics.LLMRetries.WithLabelValues(c.provider).Inc()
			}
			return retryable
		}, func() error {
			r, err := c.postStream(ctx, c.chatPath, reqBody)
			if err != nil {
				return err
			}
			resp = r
			return nil
		})
		if err != nil {
			logging.APIError("[%s] stream failed after %v: %v", c.provider, time.Since(start), err)
			resultChan <- StreamResult{Err: err}
			return
		}
		defer resp.Body.Close()

		tokens, streamErr := c.consumeSSE(ctx, resp.Body, contentChan)
		metrics.LLMTokens.WithLabelValues(c.provider).Add(float64(tokens))
		if streamErr != nil {
			logging.APIError("[%s] stream error after %v: %v", c.provider, time.Since(start), streamErr)
		} else {
			logging.API("[%s] stream completed in %v tokens=%d", c.provider, time.Since(start), tokens)
		}
		resultChan <- StreamResult{Tokens: tokens, Err: streamErr}
	}()

	return contentChan, resultChan
}

// consumeSSE reads the event stream, forwarding content deltas. Reasoning
// deltas are wrapped in <think> tags; the closing tag is flushed at the
// first content delta. Tool-call fragments accumulate by index and are
// emitted as one canonical block after the content ends.
func (c *OpenAIClient) consumeSSE(ctx context.Context, body io.Reader, out chan<- string) (int, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	tokens := 0
	thinking := false
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
		if data == "[DONE]" {
			break
		}

		var chunk oaiResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if chunk.Error != nil {
			return tokens, fmt.Errorf("API error: %s", chunk.Error.Message)
		}
		if chunk.Usage != nil {
			tokens = tokenCount(chunk.Usage)
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta == nil {
			continue
		}
		delta := chunk.Choices[0].Delta

		if delta.ReasoningContent != "" {
			if !thinking {
				thinking = true
				if !emit("<think>") {
					return tokens, ctx.Err()
				}
			}
			if !emit(delta.ReasoningContent) {
				return tokens, ctx.Err()
			}
		}
		if delta.Content != "" {
			if thinking {
				thinking = false
				if !emit("</think>") {
					return tokens, ctx.Err()
				}
			}
			if !emit(delta.Content) {
				return tokens, ctx.Err()
			}
		}
		for _, tc := range delta.ToolCalls {
			entry, ok := pending[tc.Index]
			if !ok {
				entry = &ToolInfo{}
				pending[tc.Index] = entry
				order = append(order, tc.Index)
			}
			if tc.ID != "" {
				entry.ID = tc.ID
			}
			if tc.Function.Name != "" {
				entry.Name = tc.Function.Name
			}
			entry.Args += tc.Function.Arguments
		}
		if chunk.Choices[0].FinishReason == "length" {
			truncated = true
		}
	}
	if err := scanner.Err(); err != nil {
		return tokens, fmt.Errorf("stream read: %w", err)
	}

	if thinking {
		if !emit("</think>") {
			return tokens, ctx.Err()
		}
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

// post issues a JSON POST and returns the body on 2xx, a status-tagged
// error otherwise so the retry filter can see the code.
func (c *OpenAIClient) post(ctx context.Context, path string, payload interface{}, accept string) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// postStream issues the request with SSE accept and hands back the open
// response for the caller to consume. Non-200 responses are drained and
// returned as errors.
func (c *OpenAIClient) postStream(ctx context.Context, path string, payload interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)
	req.Header.Set("Accept", "text/event-stream")

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
