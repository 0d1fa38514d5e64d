// Package embedding generates vector embeddings for change documents.
// Two backends are supported: a local Ollama server and Google's GenAI API.
package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"

	"sprout/internal/config"
)

// Engine generates vector embeddings for text.
type Engine interface {
	// Embed generates an embedding for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of embeddings
	Dimensions() int

	// Name returns the engine name
	Name() string
}

// HealthChecker is an optional interface for engines that can verify the
// backing service is reachable before a batch run.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Task distinguishes indexing documents from querying, for backends whose
// models embed the two asymmetrically.
type Task string

const (
	TaskDocument Task = "RETRIEVAL_DOCUMENT"
	TaskQuery    Task = "RETRIEVAL_QUERY"
)

// New creates an embedding engine from configuration. task selects the
// document/query asymmetry where the backend supports it.
func New(cfg config.EmbeddingConfig, task Task) (Engine, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllamaEngine(cfg.OllamaEndpoint, cfg.OllamaModel)
	case "genai":
		return NewGenAIEngine(cfg.GenAIAPIKey, cfg.GenAIModel, task)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (use 'ollama' or 'genai')", cfg.Provider)
	}
}

// CosineSimilarity calculates the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}

	var dot, aMag, bMag float64
	for i := 0; i < len(a); i++ {
		dot += float64(a[i] * b[i])
		aMag += float64(a[i] * a[i])
		bMag += float64(b[i] * b[i])
	}

	if aMag == 0 || bMag == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(aMag) * math.Sqrt(bMag)), nil
}

// Result is one similarity search hit.
type Result struct {
	Index      int
	Similarity float64
}

// FindTopK returns the indices of the k corpus vectors most similar to the
// query, descending. Vectors whose dimension does not match the query are
// skipped rather than failing the whole search. k <= 0 defaults to 10.
func FindTopK(query []float32, corpus [][]float32, k int) []Result {
	if k <= 0 {
		k = 10
	}

	results := make([]Result, 0, len(corpus))
	for i, vec := range corpus {
		similarity, err := CosineSimilarity(query, vec)
		if err != nil {
			continue
		}
		results = append(results, Result{Index: i, Similarity: similarity})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > k {
		results = results[:k]
	}
	return results
}
