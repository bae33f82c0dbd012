package ingestion_engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kbforge/kbforge/internal/core"
	"github.com/kbforge/kbforge/internal/models"
)

// ChunkPair is one Document and its Embedding, written as a single logical unit.
type ChunkPair struct {
	Doc models.Document
	Emb models.Embedding
}

// ChunkWriter persists chunk pairs through a fixed-size worker pool so that a
// large ingestion job cannot saturate the store. Chunk indices are assigned by
// the caller before submission, so write-completion order never affects the
// persisted ordering.
type ChunkWriter struct {
	db       core.DbClient
	pool     *ants.Pool
	progress core.ProgressReporter
	logger   *zap.Logger
}

func NewChunkWriter(db core.DbClient, concurrency int, progress core.ProgressReporter, logger *zap.Logger) (*ChunkWriter, error) {
	if db == nil {
		return nil, fmt.Errorf("chunk writer requires a db client")
	}
	if concurrency < 1 {
		concurrency = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return nil, fmt.Errorf("create writer pool: %w", err)
	}
	return &ChunkWriter{db: db, pool: pool, progress: progress, logger: logger}, nil
}

// WritePairs writes every pair, bounded by the pool size. A failing pair does
// not abort sibling writes already in flight; already-written chunks remain
// valid search results. The first error is returned so the job is still marked
// failed.
func (w *ChunkWriter) WritePairs(ctx context.Context, pairs []ChunkPair) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for i := range pairs {
		p := &pairs[i]
		wg.Add(1)
		submitErr := w.pool.Submit(func() {
			defer wg.Done()
			if err := w.db.InsertChunkPair(ctx, &p.Doc, &p.Emb); err != nil {
				w.logger.Warn("chunk write failed",
					zap.String("kb_id", p.Doc.KBID),
					zap.String("source", p.Doc.Source),
					zap.Int("chunk_index", p.Doc.ChunkIndex),
					zap.Error(err))
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("write chunk %d of %s: %w", p.Doc.ChunkIndex, p.Doc.Source, err)
				}
				mu.Unlock()
			}
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = fmt.Errorf("submit chunk write: %w", submitErr)
			}
			mu.Unlock()
		}
	}

	wg.Wait()
	return firstErr
}

// ReportProgress emits the pages-processed percentage once all chunks for a
// source have been written.
func (w *ChunkWriter) ReportProgress(ctx context.Context, kbID string, completedPages, totalPages int) {
	if w.progress == nil || totalPages <= 0 {
		return
	}
	percent := completedPages * 100 / totalPages
	if percent > 100 {
		percent = 100
	}
	w.progress.Report(ctx, kbID, percent)
}

// Release frees the worker pool. The writer must not be used afterwards.
func (w *ChunkWriter) Release() {
	if w.pool != nil {
		w.pool.Release()
	}
}
