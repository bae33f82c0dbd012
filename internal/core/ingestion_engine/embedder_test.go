package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProvider returns one-element vectors encoding the input index and
// records the size of every batch it receives.
type countingProvider struct {
	mu      sync.Mutex
	batches []int
	failAt  int // fail the nth call (1-based); 0 disables
	calls   int
}

func (p *countingProvider) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.batches = append(p.batches, len(texts))
	if p.failAt > 0 && p.calls == p.failAt {
		return nil, errors.New("rate limited")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		var v float32
		_, _ = fmt.Sscanf(texts[i], "text-%f", &v)
		out[i] = []float32{v}
	}
	return out, nil
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("text-%d", i)
	}
	return out
}

func TestEmbedAllBatchesAndPreservesOrder(t *testing.T) {
	p := &countingProvider{}
	b := NewBatchEmbedder(p, 12)

	vecs, err := b.EmbedAll(context.Background(), texts(30))
	require.NoError(t, err)
	require.Len(t, vecs, 30)

	assert.Equal(t, []int{12, 12, 6}, p.batches)
	for i, v := range vecs {
		assert.Equal(t, float32(i), v[0], "vector %d out of order", i)
	}
}

func TestEmbedAllSingleShortBatch(t *testing.T) {
	p := &countingProvider{}
	b := NewBatchEmbedder(p, 12)

	vecs, err := b.EmbedAll(context.Background(), texts(5))
	require.NoError(t, err)
	assert.Len(t, vecs, 5)
	assert.Equal(t, []int{5}, p.batches)
}

func TestEmbedAllEmptyInput(t *testing.T) {
	p := &countingProvider{}
	b := NewBatchEmbedder(p, 12)

	vecs, err := b.EmbedAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
	assert.Zero(t, p.calls)
}

func TestEmbedAllFailingBatchFailsCall(t *testing.T) {
	p := &countingProvider{failAt: 2}
	b := NewBatchEmbedder(p, 12)

	_, err := b.EmbedAll(context.Background(), texts(30))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "starting at 12")
	assert.Equal(t, 2, p.calls, "later batches must not be attempted")
}

type mismatchedProvider struct{}

func (mismatchedProvider) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)-1), nil
}

func TestEmbedAllRejectsSizeMismatch(t *testing.T) {
	b := NewBatchEmbedder(mismatchedProvider{}, 12)
	_, err := b.EmbedAll(context.Background(), texts(3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "size mismatch")
}
