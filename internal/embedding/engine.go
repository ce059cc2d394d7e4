// Package embedding generates vector embeddings for wiki content and
// source files. Backends: OpenAI-compatible endpoints, local Ollama, and
// Google GenAI.
package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"

	"codewiki/internal/config"
	"codewiki/internal/logging"
)

// Engine generates vector embeddings for text.
type Engine interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimensionality.
	Dimensions() int

	// Name returns the engine name.
	Name() string
}

// NewEngine creates an embedding engine from configuration.
func NewEngine(cfg config.EmbeddingConfig) (Engine, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "NewEngine")
	defer timer.Stop()

	logging.Embedding("creating embedding engine provider=%s model=%s", cfg.Provider, cfg.Model)

	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIEngine(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Dimensions)
	case "ollama":
		return NewOllamaEngine(cfg.OllamaEndpoint, cfg.Model, cfg.Dimensions)
	case "genai":
		return NewGenAIEngine(cfg.APIKey, cfg.Model, cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (use 'openai', 'ollama' or 'genai')", cfg.Provider)
	}
}

// CosineSimilarity computes the cosine similarity of two vectors. Zero
// magnitude yields 0 rather than an error.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}
	var dot, magA, magB float64
	for i := 0; i < len(a); i++ {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}

// SimilarityResult is one ranked hit from FindTopK.
type SimilarityResult struct {
	Index      int
	Similarity float64
}

// FindTopK ranks corpus vectors by cosine similarity to query and returns
// the top k. Vectors with mismatched dimensions are skipped.
func FindTopK(query []float32, corpus [][]float32, k int) []SimilarityResult {
	if k <= 0 {
		k = 10
	}
	results := make([]SimilarityResult, 0, len(corpus))
	for i, vec := range corpus {
		sim, err := CosineSimilarity(query, vec)
		if err != nil {
			continue
		}
		results = append(results, SimilarityResult{Index: i, Similarity: sim})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}
