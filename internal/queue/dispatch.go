package queue

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kbforge/kbforge/internal/core"
	"github.com/kbforge/kbforge/internal/models"
)

// Dispatcher expands a configured knowledge base into ingest jobs: one per
// URL, one per uploaded file, one per FAQ batch. It is the only party that
// should enqueue for a knowledge base, and it must not re-enqueue a source
// while a job for it is active.
type Dispatcher struct {
	pub      Publisher
	db       core.DbClient
	maxDepth int
	logger   *zap.Logger
}

func NewDispatcher(pub Publisher, db core.DbClient, maxDepth int, logger *zap.Logger) *Dispatcher {
	if maxDepth <= 0 {
		maxDepth = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{pub: pub, db: db, maxDepth: maxDepth, logger: logger}
}

// Dispatch publishes the jobs for a knowledge base and returns how many were
// enqueued. Files are claimed (kbId recorded on the file metadata) before
// their job is published so a file can never be ingested into two bases.
func (d *Dispatcher) Dispatch(ctx context.Context, kb *models.KnowledgeBase) (int, error) {
	if kb == nil {
		return 0, fmt.Errorf("nil knowledge base")
	}

	var jobs []*models.IngestJob

	if kb.Metadata.URL != "" {
		jobs = append(jobs, &models.IngestJob{
			KBID:     kb.ID,
			UserID:   kb.UserID,
			URL:      kb.Metadata.URL,
			MaxDepth: d.maxDepth,
		})
	}

	for _, fileID := range kb.Metadata.Files {
		if err := d.claimFile(ctx, kb.ID, fileID); err != nil {
			return 0, err
		}
		jobs = append(jobs, &models.IngestJob{
			KBID:           kb.ID,
			UserID:         kb.UserID,
			UploadedFileID: fileID,
		})
	}

	if len(kb.Metadata.FAQ) > 0 {
		jobs = append(jobs, &models.IngestJob{
			KBID:   kb.ID,
			UserID: kb.UserID,
			FAQ:    kb.Metadata.FAQ,
		})
	}

	for _, job := range jobs {
		if err := d.pub.Publish(ctx, job); err != nil {
			return 0, fmt.Errorf("dispatch kb %s: %w", kb.ID, err)
		}
	}

	d.logger.Info("dispatched ingest jobs", zap.String("kb_id", kb.ID), zap.Int("jobs", len(jobs)))
	return len(jobs), nil
}

func (d *Dispatcher) claimFile(ctx context.Context, kbID, fileID string) error {
	f, err := d.db.GetUploadedFile(ctx, fileID)
	if err != nil {
		return fmt.Errorf("claim file %s: %w", fileID, err)
	}
	if f == nil {
		return fmt.Errorf("claim file %s: not found", fileID)
	}
	if f.Metadata.KBID != "" && f.Metadata.KBID != kbID {
		return fmt.Errorf("file %s already claimed by kb %s", fileID, f.Metadata.KBID)
	}

	f.Metadata.KBID = kbID
	if f.Metadata.IngestStatus == "" {
		f.Metadata.IngestStatus = "pending"
	}
	return d.db.UpdateUploadedFileMeta(ctx, fileID, f.Metadata)
}
