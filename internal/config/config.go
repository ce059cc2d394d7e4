// Package config holds all codewiki configuration. Configuration is read
// from a YAML file (default .codewiki/config.yaml) with environment variable
// overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all codewiki configuration.
type Config struct {
	// RepoStoragePath is the absolute directory under which repositories are
	// materialized at <org>/<repo> or uploads/<user>/<name>.
	RepoStoragePath string `yaml:"repo_storage_path"`

	// DatabasePath is the SQLite database holding wiki entities.
	DatabasePath string `yaml:"database_path"`

	// Language drives the truncation notice and prompt variants.
	// "Chinese" or "English".
	Language string `yaml:"language"`

	LLM         LLMConfig         `yaml:"llm"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	WikiGen     WikiGenConfig     `yaml:"code_wiki_gen"`
	Mem0        Mem0Config        `yaml:"mem0"`
	GitHub      ProviderToken     `yaml:"github"`
	Gitee       ProviderToken     `yaml:"gitee"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// LLMConfig selects the active chat provider and holds per-provider settings.
type LLMConfig struct {
	// Provider: openai, deepseek, siliconflow, qwen, anthropic, azure.
	Provider  string                    `yaml:"provider"`
	Providers map[string]ProviderConfig `yaml:"providers"`
}

// ProviderConfig holds one LLM provider's settings.
type ProviderConfig struct {
	APIKey           string  `yaml:"api_key"`
	BaseURL          string  `yaml:"base_url"`
	ModelName        string  `yaml:"model_name"`
	MaxContextTokens int     `yaml:"max_context_tokens"`
	Temperature      float64 `yaml:"temperature"`
	MaxTokens        int     `yaml:"max_tokens"`
	// APIVersion is used by the Azure provider only.
	APIVersion string `yaml:"api_version"`
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	// Provider: openai, ollama, genai.
	Provider       string `yaml:"provider"`
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	Dimensions     int    `yaml:"dimensions"`
	OllamaEndpoint string `yaml:"ollama_endpoint"`
}

// VectorStoreConfig configures the vector store backends.
type VectorStoreConfig struct {
	// Engine: elasticsearch, opensearch, local.
	Engine     string   `yaml:"engine"`
	ESHosts    []string `yaml:"es_hosts"`
	ESUsername string   `yaml:"es_username"`
	ESPassword string   `yaml:"es_password"`
	OSHosts    []string `yaml:"os_hosts"`
	OSUsername string   `yaml:"os_username"`
	OSPassword string   `yaml:"os_password"`
	// Mapping is a filename under mapping/ providing the index schema.
	Mapping string `yaml:"mapping"`
	// LocalPath is the SQLite path for the local backend.
	LocalPath string `yaml:"local_path"`
}

// WikiGenConfig configures the generation pipeline.
type WikiGenConfig struct {
	// EnableSmartFilter delegates directory reduction to the LLM when the
	// repository has more than SmartFilterThreshold entries.
	EnableSmartFilter bool `yaml:"enable_smart_filter"`
	// CatalogueFormat: compact, json, unix, pathlist.
	CatalogueFormat string `yaml:"catalogue_format"`
	// SmartFilterThreshold defaults to 800. The stage triggers on a strict
	// greater-than comparison.
	SmartFilterThreshold int `yaml:"smart_filter_threshold"`
	// ContentWorkers bounds the stage-7 fan-out. Defaults to 4.
	ContentWorkers int `yaml:"content_workers"`
	// PromptRoot is the directory holding prompt templates.
	PromptRoot string `yaml:"prompt_root"`
}

// Mem0Config configures the optional external memory service.
type Mem0Config struct {
	EnableMem0   bool   `yaml:"enable_mem0"`
	Mem0APIKey   string `yaml:"mem0_api_key"`
	Mem0Endpoint string `yaml:"mem0_endpoint"`
}

// ProviderToken holds a Git provider API token for issue search.
type ProviderToken struct {
	Token string `yaml:"token"`
}

// LoggingConfig mirrors the logging package's expectations.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
}

// MetricsConfig configures the optional Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Default returns a config with sensible defaults applied.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		RepoStoragePath: filepath.Join(home, ".codewiki", "repos"),
		DatabasePath:    filepath.Join(home, ".codewiki", "wiki.db"),
		Language:        "English",
		LLM: LLMConfig{
			Provider:  "openai",
			Providers: map[string]ProviderConfig{},
		},
		Embedding: EmbeddingConfig{
			Provider:   "ollama",
			Dimensions: 768,
		},
		VectorStore: VectorStoreConfig{
			Engine:  "local",
			Mapping: "default.json",
		},
		WikiGen: WikiGenConfig{
			CatalogueFormat:      "compact",
			SmartFilterThreshold: 800,
			ContentWorkers:       4,
			PromptRoot:           "prompts",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a config file, applies defaults, then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.RepoStoragePath == "" {
		c.RepoStoragePath = d.RepoStoragePath
	}
	if c.DatabasePath == "" {
		c.DatabasePath = d.DatabasePath
	}
	if c.Language == "" {
		c.Language = d.Language
	}
	if c.WikiGen.CatalogueFormat == "" {
		c.WikiGen.CatalogueFormat = d.WikiGen.CatalogueFormat
	}
	if c.WikiGen.SmartFilterThreshold == 0 {
		c.WikiGen.SmartFilterThreshold = d.WikiGen.SmartFilterThreshold
	}
	if c.WikiGen.ContentWorkers <= 0 {
		c.WikiGen.ContentWorkers = d.WikiGen.ContentWorkers
	}
	if c.WikiGen.PromptRoot == "" {
		c.WikiGen.PromptRoot = d.WikiGen.PromptRoot
	}
	if c.VectorStore.Engine == "" {
		c.VectorStore.Engine = d.VectorStore.Engine
	}
	if c.VectorStore.Mapping == "" {
		c.VectorStore.Mapping = d.VectorStore.Mapping
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = d.Embedding.Provider
	}
	if c.Embedding.Dimensions == 0 {
		c.Embedding.Dimensions = d.Embedding.Dimensions
	}
	if c.LLM.Providers == nil {
		c.LLM.Providers = map[string]ProviderConfig{}
	}
}

// applyEnv overlays secrets from the environment. Keys follow the pattern
// CODEWIKI_<PROVIDER>_API_KEY plus a few well-known names.
func (c *Config) applyEnv() {
	for name, p := range c.LLM.Providers {
		envKey := "CODEWIKI_" + strings.ToUpper(name) + "_API_KEY"
		if v := os.Getenv(envKey); v != "" {
			p.APIKey = v
			c.LLM.Providers[name] = p
		}
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" && c.GitHub.Token == "" {
		c.GitHub.Token = v
	}
	if v := os.Getenv("GITEE_TOKEN"); v != "" && c.Gitee.Token == "" {
		c.Gitee.Token = v
	}
	if v := os.Getenv("MEM0_API_KEY"); v != "" && c.Mem0.Mem0APIKey == "" {
		c.Mem0.Mem0APIKey = v
	}
}

// ActiveProvider returns the configured chat provider settings.
func (c *Config) ActiveProvider() (string, ProviderConfig, error) {
	name := c.LLM.Provider
	if name == "" {
		return "", ProviderConfig{}, fmt.Errorf("no LLM provider configured")
	}
	p, ok := c.LLM.Providers[name]
	if !ok {
		return "", ProviderConfig{}, fmt.Errorf("LLM provider %q has no configuration block", name)
	}
	if p.APIKey == "" {
		return "", ProviderConfig{}, fmt.Errorf("LLM provider %q has no api_key", name)
	}
	return name, p, nil
}

// Validate checks invariants that would otherwise fail deep in the pipeline.
func (c *Config) Validate() error {
	switch c.WikiGen.CatalogueFormat {
	case "compact", "json", "unix", "pathlist":
	default:
		return fmt.Errorf("invalid catalogue_format %q (valid: compact, json, unix, pathlist)", c.WikiGen.CatalogueFormat)
	}
	switch c.VectorStore.Engine {
	case "elasticsearch", "opensearch", "local":
	default:
		return fmt.Errorf("invalid vector_store.engine %q (valid: elasticsearch, opensearch, local)", c.VectorStore.Engine)
	}
	switch c.Language {
	case "Chinese", "English":
	default:
		return fmt.Errorf("invalid language %q (valid: Chinese, English)", c.Language)
	}
	return nil
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".codewiki", "config.yaml")
}
