package llm

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"codewiki/internal/config"
)

const defaultAzureAPIVersion = "2024-06-01"

// NewAzureClient builds a client for Azure OpenAI deployments. Azure uses
// the same wire protocol as OpenAI with a different endpoint layout and an
// api-key header instead of a bearer token.
func NewAzureClient(cfg config.ProviderConfig, language string) *OpenAIClient {
	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = defaultAzureAPIVersion
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	apiKey := cfg.APIKey
	return &OpenAIClient{
		provider:    "azure",
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
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
		chatPath: fmt.Sprintf("/openai/deployments/%s/chat/completions?api-version=%s", cfg.ModelName, apiVersion),
		setAuth: func(req *http.Request) {
			req.Header.Set("api-key", apiKey)
		},
	}
}
