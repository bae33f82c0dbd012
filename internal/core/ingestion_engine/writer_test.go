package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kbforge/kbforge/internal/models"
)

func makePairs(kbID, source string, n int) []ChunkPair {
	pairs := make([]ChunkPair, n)
	for i := 0; i < n; i++ {
		pairs[i] = ChunkPair{
			Doc: models.Document{
				ID: fmt.Sprintf("doc-%d", i), KBID: kbID, Source: source,
				Text: fmt.Sprintf("chunk %d", i), ChunkIndex: i,
			},
			Emb: models.Embedding{
				ID: fmt.Sprintf("emb-%d", i), KBID: kbID, Source: source,
				ChunkIndex: i, Vector: []float32{float32(i)},
			},
		}
	}
	return pairs
}

func TestWritePairsAll(t *testing.T) {
	db := newFakeDB()
	w, err := NewChunkWriter(db, 2, nil, zap.NewNop())
	require.NoError(t, err)
	defer w.Release()

	require.NoError(t, w.WritePairs(context.Background(), makePairs("kb-1", "src", 5)))
	assert.Equal(t, 5, db.pairWrites)
	assert.Len(t, db.embs, 5)
}

func TestWritePairsFailingPairDoesNotAbortSiblings(t *testing.T) {
	db := newFakeDB()
	db.insertPairErr = func(doc *models.Document) error {
		if doc.ChunkIndex == 2 {
			return errors.New("unique constraint violated")
		}
		return nil
	}

	w, err := NewChunkWriter(db, 2, nil, zap.NewNop())
	require.NoError(t, err)
	defer w.Release()

	err = w.WritePairs(context.Background(), makePairs("kb-1", "src", 5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk 2")

	// The four healthy pairs land; only the failing one is missing.
	assert.Equal(t, 4, db.pairWrites)
	for _, d := range db.docs {
		assert.NotEqual(t, 2, d.ChunkIndex)
	}
}

type recordingProgress struct {
	kbIDs    []string
	percents []int
}

func (r *recordingProgress) Report(_ context.Context, kbID string, percent int) {
	r.kbIDs = append(r.kbIDs, kbID)
	r.percents = append(r.percents, percent)
}

func TestReportProgress(t *testing.T) {
	db := newFakeDB()
	rec := &recordingProgress{}
	w, err := NewChunkWriter(db, 2, rec, zap.NewNop())
	require.NoError(t, err)
	defer w.Release()

	w.ReportProgress(context.Background(), "kb-1", 1, 4)
	w.ReportProgress(context.Background(), "kb-1", 4, 4)
	w.ReportProgress(context.Background(), "kb-1", 9, 4) // never exceeds 100
	w.ReportProgress(context.Background(), "kb-1", 1, 0) // no total, no report

	assert.Equal(t, []int{25, 100, 100}, rec.percents)
	assert.Equal(t, []string{"kb-1", "kb-1", "kb-1"}, rec.kbIDs)
}

func TestReportProgressWithoutReporter(t *testing.T) {
	db := newFakeDB()
	w, err := NewChunkWriter(db, 2, nil, zap.NewNop())
	require.NoError(t, err)
	defer w.Release()

	// Must not panic when no reporter is wired.
	w.ReportProgress(context.Background(), "kb-1", 1, 1)
}

func TestNewChunkWriterRequiresDB(t *testing.T) {
	_, err := NewChunkWriter(nil, 2, nil, zap.NewNop())
	assert.Error(t, err)
}
