package ingestion_engine

import (
	"context"
	"fmt"

	"github.com/kbforge/kbforge/internal/core"
)

// BatchEmbedder slices chunk texts into fixed-size batches before calling the
// underlying provider, keeping single requests within the embedding API's
// input limits. A failed batch fails the whole call; job-level redelivery plus
// the idempotency guard is the retry mechanism.
type BatchEmbedder struct {
	provider  core.EmbeddingProvider
	batchSize int
}

func NewBatchEmbedder(provider core.EmbeddingProvider, batchSize int) *BatchEmbedder {
	if batchSize <= 0 {
		batchSize = 12
	}
	return &BatchEmbedder{provider: provider, batchSize: batchSize}
}

// EmbedAll returns one vector per input text, in input order.
func (b *BatchEmbedder) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += b.batchSize {
		end := start + b.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		vecs, err := b.provider.EmbedTexts(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch starting at %d: %w", start, err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embed size mismatch: got %d want %d", len(vecs), end-start)
		}
		out = append(out, vecs...)
	}
	return out, nil
}
