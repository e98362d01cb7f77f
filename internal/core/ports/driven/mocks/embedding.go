package mocks

import (
	"context"
	"hash/fnv"

	"github.com/engram-labs/engram-core/internal/core/ports/driven"
)

// Ensure MockEmbeddingAdapter implements EmbeddingAdapter
var _ driven.EmbeddingAdapter = (*MockEmbeddingAdapter)(nil)

// MockEmbeddingAdapter is a mock implementation of EmbeddingAdapter for
// testing. Vectors are deterministic functions of the input text so tests
// can assert equality across calls.
type MockEmbeddingAdapter struct {
	dimensions int
	model      string

	EmbedFn func(texts []string) ([][]float32, error)
}

// NewMockEmbeddingAdapter creates a new MockEmbeddingAdapter
func NewMockEmbeddingAdapter() *MockEmbeddingAdapter {
	return &MockEmbeddingAdapter{
		dimensions: 384,
		model:      "mock-embedding-model",
	}
}

func (m *MockEmbeddingAdapter) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if m.EmbedFn != nil {
		return m.EmbedFn(texts)
	}
	result := make([][]float32, len(texts))
	for i, text := range texts {
		result[i] = m.generateEmbedding(text)
	}
	return result, nil
}

func (m *MockEmbeddingAdapter) Dimensions() int {
	return m.dimensions
}

func (m *MockEmbeddingAdapter) Model() string {
	return m.model
}

func (m *MockEmbeddingAdapter) HealthCheck(ctx context.Context) error {
	return nil
}

func (m *MockEmbeddingAdapter) Close() error {
	return nil
}

// generateEmbedding derives a deterministic vector from the text hash
func (m *MockEmbeddingAdapter) generateEmbedding(text string) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	embedding := make([]float32, m.dimensions)
	for i := range embedding {
		seed = seed*1103515245 + 12345
		embedding[i] = float32(seed%1000) / 1000.0
	}
	return embedding
}

// SetDimensions overrides the vector width for tests.
func (m *MockEmbeddingAdapter) SetDimensions(dim int) {
	m.dimensions = dim
}
