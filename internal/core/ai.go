package core

import "context"

// EmbeddingProvider turns a batch of texts into one fixed-length vector per
// input, in input order. Vectors are returned as the model produced them;
// normalization belongs to retrieval, not ingestion.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}
