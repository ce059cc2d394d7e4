package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"codewiki/internal/config"
	"codewiki/internal/llm"
)

// RagTool forwards semantic memory queries to an optional external mem0
// service. Without credentials every call returns a disabled payload
// instead of an error so prompts keep working.
type RagTool struct {
	cfg        config.Mem0Config
	httpClient *http.Client
}

// NewRagTool builds the RAG search tool.
func NewRagTool(cfg config.Mem0Config) *RagTool {
	return &RagTool{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *RagTool) Declarations() []llm.Tool {
	return []llm.Tool{{
		Name:        "rag_search",
		Description: "Search the external memory service for passages related to a query.",
		Params: map[string]llm.ToolParam{
			"query":         {Type: "string", Description: "Natural language query"},
			"limit":         {Type: "integer", Description: "Maximum results, default 5"},
			"min_relevance": {Type: "number", Description: "Minimum relevance score, default 0.3"},
		},
		Required: []string{"query"},
	}}
}

func (t *RagTool) enabled() bool {
	return t.cfg.EnableMem0 && t.cfg.Mem0APIKey != "" && t.cfg.Mem0Endpoint != ""
}

func (t *RagTool) Execute(ctx context.Context, name, args string) (string, error) {
	if name != "rag_search" {
		return "", fmt.Errorf("unsupported tool %q", name)
	}
	if !t.enabled() {
		out, _ := json.Marshal(map[string]interface{}{
			"results": []interface{}{},
			"error":   "rag search is not enabled",
		})
		return string(out), nil
	}

	params := struct {
		Query        string  `json:"query"`
		Limit        int     `json:"limit"`
		MinRelevance float64 `json:"min_relevance"`
	}{Limit: 5, MinRelevance: 0.3}
	if err := decodeArgs(args, &params); err != nil {
		return "", err
	}

	payload, err := json.Marshal(map[string]interface{}{
		"query":     params.Query,
		"limit":     params.Limit,
		"threshold": params.MinRelevance,
	})
	if err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(t.cfg.Mem0Endpoint, "/") + "/v1/memories/search/"

	var body []byte
	err = llm.Retry(ctx, llm.DefaultMaxAttempts, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Token "+t.cfg.Mem0APIKey)

		resp, err := t.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("mem0 request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return nil
	})
	if err != nil {
		out, _ := json.Marshal(map[string]interface{}{
			"results": []interface{}{},
			"error":   err.Error(),
		})
		return string(out), nil
	}

	var results interface{}
	if err := json.Unmarshal(body, &results); err != nil {
		results = string(body)
	}
	out, err := json.Marshal(map[string]interface{}{"results": results})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
