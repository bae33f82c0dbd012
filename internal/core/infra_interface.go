package core

import (
	"context"

	"github.com/kbforge/kbforge/internal/models"
)

// DbClient defines all persistence operations the pipeline needs.
// It abstracts Postgres/pgvector so higher layers never depend on a specific DB.
type DbClient interface {
	CreateKnowledgeBase(ctx context.Context, kb *models.KnowledgeBase) error
	GetKnowledgeBase(ctx context.Context, id string) (*models.KnowledgeBase, error)
	UpdateKnowledgeBaseMeta(ctx context.Context, id string, meta models.KBMeta) error
	DeleteKnowledgeBase(ctx context.Context, id string) error

	CreateUploadedFile(ctx context.Context, f *models.UploadedFile) error
	GetUploadedFile(ctx context.Context, id string) (*models.UploadedFile, error)
	UpdateUploadedFileMeta(ctx context.Context, id string, meta models.FileMeta) error
	DeleteUploadedFile(ctx context.Context, id string) error

	// InsertChunkPair writes a Document and its Embedding as one logical unit
	// (single transaction). The two rows share kb id, source and chunk index.
	InsertChunkPair(ctx context.Context, doc *models.Document, emb *models.Embedding) error
	GetDocumentsBySource(ctx context.Context, kbID, source string) ([]models.Document, error)

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
// Abstract so AWS can be replaced with MinIO, GCP, etc.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
}

// ContentFetcher retrieves the raw bytes of a web page or downloadable file.
// A non-2xx response is an error; retry policy belongs to the queue, not here.
type ContentFetcher interface {
	FetchURL(ctx context.Context, url string) (body []byte, contentType string, err error)
}

// TextExtractor converts raw bytes into plain text, dispatching on the
// declared content type or filename extension. Parse failures are soft: the
// extractor logs and returns empty text instead of erroring, so the caller's
// minimum-content check decides whether the job fails.
type TextExtractor interface {
	Extract(raw []byte, contentType, name string) string
}

// ProgressReporter receives the pages-processed percentage (0-100) as a job
// advances, for consumption by an external progress UI.
type ProgressReporter interface {
	Report(ctx context.Context, kbID string, percent int)
}
