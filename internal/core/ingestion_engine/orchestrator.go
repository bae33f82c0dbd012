package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kbforge/kbforge/internal/core"
	"github.com/kbforge/kbforge/internal/models"
)

// ErrJobConfig marks ingest jobs that are invalid as published. Redelivery
// re-reads the same message, so these can never succeed on retry; the queue
// acknowledges them to drop instead of leaving them pending.
var ErrJobConfig = errors.New("invalid ingest job")

// ErrNoSource is the ErrJobConfig case for a job that names neither a URL,
// an uploaded file nor a FAQ batch.
var ErrNoSource = fmt.Errorf("%w: no source", ErrJobConfig)

const previewLen = 240

// Ingestor is the per-job orchestrator. It validates the idempotency
// precondition, dispatches on the source kind and drives
// fetch -> extract -> chunk -> embed -> persist, updating status metadata on
// the knowledge base (and, for file jobs, the file) at every transition.
type Ingestor struct {
	db        core.DbClient
	obj       core.ObjectClient
	fetcher   core.ContentFetcher
	extractor core.TextExtractor
	embedder  *BatchEmbedder
	writer    *ChunkWriter
	cfg       *IngestConfig
	logger    *zap.Logger
}

func NewIngestor(
	db core.DbClient,
	obj core.ObjectClient,
	fetcher core.ContentFetcher,
	extractor core.TextExtractor,
	embedder *BatchEmbedder,
	writer *ChunkWriter,
	cfg *IngestConfig,
	logger *zap.Logger,
) (*Ingestor, error) {
	if db == nil || embedder == nil || writer == nil {
		return nil, fmt.Errorf("ingestor requires db, embedder and writer")
	}
	if cfg == nil {
		cfg = DefaultIngestConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		db: db, obj: obj, fetcher: fetcher, extractor: extractor,
		embedder: embedder, writer: writer, cfg: cfg, logger: logger,
	}, nil
}

// ProcessJob runs one IngestJob to completion. It is safe to call again with
// the same job: a knowledge base already processing or done short-circuits
// before any side effect. Fatal errors are recorded into the status metadata
// and then returned so the queue's own failure bookkeeping still fires.
func (i *Ingestor) ProcessJob(ctx context.Context, job *models.IngestJob) error {
	log := i.logger.With(zap.String("kb_id", job.KBID), zap.String("user_id", job.UserID))

	kb, err := i.db.GetKnowledgeBase(ctx, job.KBID)
	if err != nil {
		return fmt.Errorf("load knowledge base %s: %w", job.KBID, err)
	}
	if kb == nil {
		return fmt.Errorf("knowledge base not found: %s", job.KBID)
	}

	// Idempotency guard: the queue may deliver the same job more than once.
	current := IngestStatus(kb.Metadata.IngestStatus)
	if ShortCircuits(current) {
		log.Info("skipping redelivered job", zap.String("status", string(current)))
		return nil
	}

	var file *models.UploadedFile
	if job.UploadedFileID != "" {
		file, err = i.db.GetUploadedFile(ctx, job.UploadedFileID)
		if err != nil {
			return fmt.Errorf("load uploaded file %s: %w", job.UploadedFileID, err)
		}
		if file == nil {
			ferr := fmt.Errorf("uploaded file not found: %s", job.UploadedFileID)
			i.markFailed(ctx, kb, nil, ferr)
			return ferr
		}
	}

	if err := validateSource(job); err != nil {
		i.markFailed(ctx, kb, file, err)
		return err
	}

	// Persist the processing marker before any heavy work so a crash mid-job
	// leaves observable state and a stuck job is visible.
	if err := i.markStarted(ctx, kb, file); err != nil {
		return err
	}

	pairs, pages, err := i.runSource(ctx, kb, job, file)
	if err != nil {
		i.markFailed(ctx, kb, file, err)
		return err
	}

	if err := i.markDone(ctx, kb, file, pages, len(pairs)); err != nil {
		return err
	}

	log.Info("ingestion complete", zap.Int("pages", pages), zap.Int("chunks", len(pairs)))
	return nil
}

// runSource executes the source-kind path and returns the written pairs and
// the number of pages processed.
func (i *Ingestor) runSource(ctx context.Context, kb *models.KnowledgeBase, job *models.IngestJob, file *models.UploadedFile) ([]ChunkPair, int, error) {
	switch {
	case len(job.FAQ) > 0:
		return i.ingestFAQ(ctx, kb, job.FAQ)
	case job.URL != "":
		return i.ingestURL(ctx, kb, job.URL)
	default:
		return i.ingestFile(ctx, kb, file)
	}
}

// ingestURL fetches a single page. MaxDepth on the job is recorded by the
// dispatcher but crawling beyond the target page is not performed here.
func (i *Ingestor) ingestURL(ctx context.Context, kb *models.KnowledgeBase, url string) ([]ChunkPair, int, error) {
	raw, contentType, err := i.fetcher.FetchURL(ctx, url)
	if err != nil {
		return nil, 0, err
	}

	text := i.extractor.Extract(raw, contentType, url)
	if len(text) < i.cfg.MinContentLen {
		return nil, 0, fmt.Errorf("no usable content at %s (%d chars extracted)", url, len(text))
	}

	chunks := SplitText(text, i.cfg.ChunkSize, i.cfg.ChunkOverlap)
	pairs, err := i.embedAndWrite(ctx, kb.ID, url, contentType, chunks)
	if err != nil {
		return nil, 0, err
	}
	i.writer.ReportProgress(ctx, kb.ID, 1, 1)
	return pairs, 1, nil
}

func (i *Ingestor) ingestFile(ctx context.Context, kb *models.KnowledgeBase, file *models.UploadedFile) ([]ChunkPair, int, error) {
	bucket, key := parseS3URL(file.StorageURL)
	raw, err := i.obj.GetFile(ctx, bucket, key)
	if err != nil {
		return nil, 0, fmt.Errorf("download %s: %w", file.FileName, err)
	}

	text := i.extractor.Extract(raw, file.ContentType, file.FileName)
	if len(text) < i.cfg.MinContentLen {
		return nil, 0, fmt.Errorf("no usable content in %s (%d chars extracted)", file.FileName, len(text))
	}

	chunks := SplitText(text, i.cfg.ChunkSize, i.cfg.ChunkOverlap)
	pairs, err := i.embedAndWrite(ctx, kb.ID, file.FileName, file.ContentType, chunks)
	if err != nil {
		return nil, 0, err
	}
	i.writer.ReportProgress(ctx, kb.ID, 1, 1)
	return pairs, 1, nil
}

// ingestFAQ skips fetch and extraction entirely: each question/answer pair
// becomes exactly one chunk.
func (i *Ingestor) ingestFAQ(ctx context.Context, kb *models.KnowledgeBase, faq []models.FAQPair) ([]ChunkPair, int, error) {
	texts := make([]string, 0, len(faq))
	for _, qa := range faq {
		t := strings.TrimSpace(qa.Question + "\n" + qa.Answer)
		if t == "" {
			continue
		}
		texts = append(texts, t)
	}
	if len(texts) == 0 {
		return nil, 0, errors.New("no usable content in faq batch")
	}

	pairs, err := i.embedAndWrite(ctx, kb.ID, "faq", "text/plain", texts)
	if err != nil {
		return nil, 0, err
	}
	i.writer.ReportProgress(ctx, kb.ID, 1, 1)
	return pairs, 1, nil
}

// embedAndWrite assigns chunk indices in chunker output order, embeds in
// batches and persists every Document/Embedding pair through the bounded
// writer. Indices are fixed before any concurrent write begins.
func (i *Ingestor) embedAndWrite(ctx context.Context, kbID, source, contentType string, chunks []string) ([]ChunkPair, error) {
	vecs, err := i.embedder.EmbedAll(ctx, chunks)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	pairs := make([]ChunkPair, len(chunks))
	for idx, text := range chunks {
		pairs[idx] = ChunkPair{
			Doc: models.Document{
				ID:          uuid.NewString(),
				KBID:        kbID,
				Source:      source,
				ContentType: contentType,
				ByteLen:     len(text),
				Text:        text,
				ChunkIndex:  idx,
				CreatedAt:   now,
			},
			Emb: models.Embedding{
				ID:          uuid.NewString(),
				KBID:        kbID,
				Source:      source,
				ChunkIndex:  idx,
				Vector:      vecs[idx],
				TextPreview: truncate(text, previewLen),
				CreatedAt:   now,
			},
		}
	}

	if err := i.writer.WritePairs(ctx, pairs); err != nil {
		return nil, err
	}
	return pairs, nil
}

// markStarted moves the knowledge base (and file, in lockstep) to processing
// with a start timestamp.
func (i *Ingestor) markStarted(ctx context.Context, kb *models.KnowledgeBase, file *models.UploadedFile) error {
	next, err := Next(IngestStatus(kb.Metadata.IngestStatus), EventStart)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	kb.Metadata.IngestStatus = string(next)
	kb.Metadata.StartedAt = &now
	kb.Metadata.IngestError = ""
	if err := i.db.UpdateKnowledgeBaseMeta(ctx, kb.ID, kb.Metadata); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	if file != nil {
		fnext, ferr := Next(IngestStatus(file.Metadata.IngestStatus), EventStart)
		if ferr == nil {
			file.Metadata.IngestStatus = string(fnext)
			file.Metadata.StartedAt = &now
			file.Metadata.KBID = kb.ID
			file.Metadata.IngestError = ""
			if uerr := i.db.UpdateUploadedFileMeta(ctx, file.ID, file.Metadata); uerr != nil {
				return fmt.Errorf("mark file processing: %w", uerr)
			}
		}
	}
	return nil
}

func (i *Ingestor) markDone(ctx context.Context, kb *models.KnowledgeBase, file *models.UploadedFile, pages, chunks int) error {
	next, err := Next(IngestStatus(kb.Metadata.IngestStatus), EventComplete)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	kb.Metadata.IngestStatus = string(next)
	kb.Metadata.IngestedAt = &now
	kb.Metadata.Pages += pages
	kb.Metadata.Chunks += chunks
	if err := i.db.UpdateKnowledgeBaseMeta(ctx, kb.ID, kb.Metadata); err != nil {
		return fmt.Errorf("mark done: %w", err)
	}

	if file != nil {
		if fnext, ferr := Next(IngestStatus(file.Metadata.IngestStatus), EventComplete); ferr == nil {
			file.Metadata.IngestStatus = string(fnext)
			file.Metadata.IngestedAt = &now
			if uerr := i.db.UpdateUploadedFileMeta(ctx, file.ID, file.Metadata); uerr != nil {
				return fmt.Errorf("mark file done: %w", uerr)
			}
		}
	}
	return nil
}

// markFailed records the error into the status metadata. Partially written
// chunk pairs are retained: each one remains an independently valid search
// result. Errors while recording are logged, not returned, so the original
// failure always propagates.
func (i *Ingestor) markFailed(ctx context.Context, kb *models.KnowledgeBase, file *models.UploadedFile, cause error) {
	if next, err := Next(IngestStatus(kb.Metadata.IngestStatus), EventFail); err == nil {
		kb.Metadata.IngestStatus = string(next)
		kb.Metadata.IngestError = cause.Error()
		if uerr := i.db.UpdateKnowledgeBaseMeta(ctx, kb.ID, kb.Metadata); uerr != nil {
			i.logger.Error("failed to record kb failure", zap.String("kb_id", kb.ID), zap.Error(uerr))
		}
	}

	if file != nil {
		if fnext, err := Next(IngestStatus(file.Metadata.IngestStatus), EventFail); err == nil {
			file.Metadata.IngestStatus = string(fnext)
			file.Metadata.IngestError = cause.Error()
			if uerr := i.db.UpdateUploadedFileMeta(ctx, file.ID, file.Metadata); uerr != nil {
				i.logger.Error("failed to record file failure", zap.String("file_id", file.ID), zap.Error(uerr))
			}
		}
	}
}

// validateSource enforces that exactly one source kind is present on the job.
func validateSource(job *models.IngestJob) error {
	n := 0
	if job.URL != "" {
		n++
	}
	if job.UploadedFileID != "" {
		n++
	}
	if len(job.FAQ) > 0 {
		n++
	}
	if n == 0 {
		return ErrNoSource
	}
	if n > 1 {
		return fmt.Errorf("%w: %d sources named, want exactly one", ErrJobConfig, n)
	}
	return nil
}

// parseS3URL extracts the bucket and key from a virtual-hosted-style S3 URL.
// Example: https://my-bucket.s3.us-east-2.amazonaws.com/path/to/file.pdf
func parseS3URL(u string) (bucket, key string) {
	hostPath := strings.SplitN(strings.TrimPrefix(u, "https://"), "/", 2)
	host := hostPath[0]
	if len(hostPath) == 2 {
		key = hostPath[1]
	}
	parts := strings.Split(host, ".")
	if len(parts) > 0 {
		bucket = parts[0]
	}
	return bucket, key
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
