package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codewiki/internal/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewOpenAIClient("test", config.ProviderConfig{
		APIKey:    "test-key",
		BaseURL:   server.URL,
		ModelName: "test-model",
	}, "English")
}

func TestChatRetriesOn429(t *testing.T) {
	var calls int32
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":{"message":"rate limit"}}`)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}],"usage":{"total_tokens":42}}`)
	})

	start := time.Now()
	resp, tokens := client.Chat(context.Background(), "sys", "", "hi", nil)
	elapsed := time.Since(start)

	require.True(t, resp.Success, "content: %s", resp.Content)
	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, 42, tokens)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	// two backoffs: ~1s and ~2s with [0.5,1.5] jitter
	assert.Greater(t, elapsed, 1500*time.Millisecond)
	assert.Less(t, elapsed, 6*time.Second)
}

func TestChatFailsFastOnAuthError(t *testing.T) {
	var calls int32
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid api key"}}`)
	})

	resp, tokens := client.Chat(context.Background(), "", "", "hi", nil)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Content, "401")
	assert.Equal(t, 0, tokens)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "auth errors must not retry")
}

func TestChatAppendsTruncationNotice(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"partial"},"finish_reason":"length"}],"usage":{"total_tokens":10}}`)
	})

	resp, _ := client.Chat(context.Background(), "", "", "hi", nil)
	require.True(t, resp.Success)
	assert.True(t, strings.HasPrefix(resp.Content, "partial"))
	assert.Contains(t, resp.Content, "length limit")
}

func TestAskToolsReturnsToolCalls(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"","tool_calls":[{"id":"call_1","type":"function","function":{"name":"read_file","arguments":"{\"path\":\"main.go\"}"}}]},"finish_reason":"tool_calls"}],"usage":{"total_tokens":5}}`)
	})

	tools := []Tool{{
		Name:        "read_file",
		Description: "Read a file",
		Params:      map[string]ToolParam{"path": {Type: "string", Description: "relative path"}},
		Required:    []string{"path"},
	}}
	resp, _ := client.AskTools(context.Background(), "", "", "read it", nil, tools, ToolChoiceAuto)
	require.True(t, resp.Success)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	assert.Equal(t, "read_file", resp.ToolCalls[0].Name)
	assert.Contains(t, resp.ToolCalls[0].Args, "main.go")
}

func sseHandler(lines []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintf(w, "data: %s\n\n", line)
			flusher.Flush()
		}
	}
}

func collect(ch <-chan string) string {
	var sb strings.Builder
	for chunk := range ch {
		sb.WriteString(chunk)
	}
	return sb.String()
}

func TestChatStreamDeltas(t *testing.T) {
	client := testClient(t, sseHandler([]string{
		`{"choices":[{"delta":{"content":"hel"}}]}`,
		`{"choices":[{"delta":{"content":"lo"}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}],"usage":{"total_tokens":7}}`,
		`[DONE]`,
	}))

	content, results := client.ChatStream(context.Background(), "", "", "hi", nil)
	got := collect(content)
	res := <-results

	require.NoError(t, res.Err)
	assert.Equal(t, "hello", got)
	assert.Equal(t, 7, res.Tokens)
}

func TestChatStreamWrapsReasoning(t *testing.T) {
	client := testClient(t, sseHandler([]string{
		`{"choices":[{"delta":{"reasoning_content":"thinking "}}]}`,
		`{"choices":[{"delta":{"reasoning_content":"hard"}}]}`,
		`{"choices":[{"delta":{"content":"answer"}}]}`,
		`[DONE]`,
	}))

	content, results := client.ChatStream(context.Background(), "", "", "hi", nil)
	got := collect(content)
	res := <-results

	require.NoError(t, res.Err)
	assert.Equal(t, "<think>thinking hard</think>answer", got)
}

func TestAskToolsStreamAggregatesCalls(t *testing.T) {
	client := testClient(t, sseHandler([]string{
		`{"choices":[{"delta":{"content":"working"}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"c1","function":{"name":"search","arguments":"{\"q\":"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"x\"}"}}]}}]}`,
		`[DONE]`,
	}))

	tools := []Tool{{Name: "search", Description: "search"}}
	content, results := client.AskToolsStream(context.Background(), "", "", "go", nil, tools, ToolChoiceAuto)
	got := collect(content)
	res := <-results

	require.NoError(t, res.Err)
	// content deltas first, then one synthesized block
	require.True(t, strings.HasPrefix(got, "working"))
	block := strings.TrimPrefix(got, "working")
	assert.True(t, strings.HasPrefix(block, "<tool_calls>"))
	assert.Contains(t, block, `"args":"{\"q\":\"x\"}"`)
	assert.Equal(t, 1, strings.Count(block, "<tool>"))
}

func TestStreamSurfacesAPIError(t *testing.T) {
	client := testClient(t, sseHandler([]string{
		`{"error":{"message":"model exploded"}}`,
	}))

	content, results := client.ChatStream(context.Background(), "", "", "hi", nil)
	collect(content)
	res := <-results
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "model exploded")
}

func TestAzureClientRouting(t *testing.T) {
	var gotPath, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		gotKey = r.Header.Get("api-key")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`)
	}))
	defer server.Close()

	client := NewAzureClient(config.ProviderConfig{
		APIKey:     "azure-key",
		BaseURL:    server.URL,
		ModelName:  "gpt-4o",
		APIVersion: "2024-06-01",
	}, "English")

	resp, _ := client.Chat(context.Background(), "", "", "hi", nil)
	require.True(t, resp.Success)
	assert.Equal(t, "/openai/deployments/gpt-4o/chat/completions?api-version=2024-06-01", gotPath)
	assert.Equal(t, "azure-key", gotKey)
}
