package models

import (
	"time"
)

// FAQPair is one manually authored question/answer entry.
type FAQPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// KBMeta is the metadata blob stored on a knowledge base row. It carries the
// ingestion state machine plus the user-configured sources and aggregate counts.
type KBMeta struct {
	IngestStatus string     `json:"ingestStatus"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	IngestedAt   *time.Time `json:"ingestedAt,omitempty"`
	IngestError  string     `json:"ingestError,omitempty"`
	Pages        int        `json:"pages,omitempty"`
	Chunks       int        `json:"chunks,omitempty"`
	URL          string     `json:"url,omitempty"`
	Files        []string   `json:"files,omitempty"`
	FAQ          []FAQPair  `json:"faq,omitempty"`
}

// KnowledgeBase is a tenant-owned collection of ingested sources.
type KnowledgeBase struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Metadata    KBMeta    `db:"metadata" json:"metadata"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// FileMeta is the metadata blob stored on an uploaded file row. A file carries
// its own ingestion status so that files of one knowledge base can be in
// different states at the same time.
type FileMeta struct {
	IngestStatus string     `json:"ingestStatus"`
	KBID         string     `json:"kbId,omitempty"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	IngestedAt   *time.Time `json:"ingestedAt,omitempty"`
	IngestError  string     `json:"ingestError,omitempty"`
}

// UploadedFile is a single binary asset owned by a user, claimed by a
// knowledge base once ingestion begins.
type UploadedFile struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	StorageURL  string    `db:"storage_url" json:"storage_url"`
	FileName    string    `db:"file_name" json:"file_name"`
	ContentType string    `db:"content_type" json:"content_type"`
	ByteSize    int64     `db:"byte_size" json:"byte_size"`
	Metadata    FileMeta  `db:"metadata" json:"metadata"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Document is one extracted text chunk. Source is the page URL, the original
// filename or "faq"; ChunkIndex is unique within a (kb, source) pair and never
// mutated after creation.
type Document struct {
	ID          string    `db:"id" json:"id"`
	KBID        string    `db:"kb_id" json:"kb_id"`
	Source      string    `db:"source" json:"source"`
	ContentType string    `db:"content_type" json:"content_type"`
	ByteLen     int       `db:"byte_len" json:"byte_len"`
	Text        string    `db:"text" json:"text"`
	ChunkIndex  int       `db:"chunk_index" json:"chunk_index"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Embedding is the vector counterpart of a Document chunk, written in the same
// transaction. TextPreview holds a truncated copy of the chunk for display.
type Embedding struct {
	ID          string    `db:"id" json:"id"`
	KBID        string    `db:"kb_id" json:"kb_id"`
	Source      string    `db:"source" json:"source"`
	ChunkIndex  int       `db:"chunk_index" json:"chunk_index"`
	Vector      []float32 `db:"embedding" json:"embedding"`
	TextPreview string    `db:"text_preview" json:"text_preview"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// IngestJob is the queue message for one unit of ingestion work. Exactly one
// of URL, UploadedFileID or FAQ is set. Delivery is at least once; consumers
// must be safe to re-run on the same job.
type IngestJob struct {
	KBID           string    `json:"kbId"`
	UserID         string    `json:"userId"`
	URL            string    `json:"url,omitempty"`
	UploadedFileID string    `json:"uploadedFileId,omitempty"`
	FAQ            []FAQPair `json:"faq,omitempty"`
	MaxDepth       int       `json:"maxDepth,omitempty"`
}
