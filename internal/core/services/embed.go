package services

import (
	"context"
	"log/slog"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/core/ports/driven"
)

// embedChunks attaches vectors when an embedder is configured. Embedding
// failures degrade to plain chunks rather than failing the write: search
// quality suffers, durability does not.
func embedChunks(ctx context.Context, embedder driven.EmbeddingAdapter, logger *slog.Logger, chunks []*domain.Chunk) {
	if embedder == nil || len(chunks) == 0 {
		return
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		logger.Warn("failed to embed chunks", "error", err)
		return
	}
	if len(vectors) != len(chunks) {
		logger.Warn("embedder returned wrong vector count",
			"expected", len(chunks),
			"got", len(vectors),
		)
		return
	}
	for i, chunk := range chunks {
		chunk.Embedding = vectors[i]
	}
}
