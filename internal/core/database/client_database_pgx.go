package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kbforge/kbforge/internal/config"
	"github.com/kbforge/kbforge/internal/core"
	"github.com/kbforge/kbforge/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (core.DbClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Workers hold few connections; scale-out is more worker instances.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Knowledge bases

func (c *DatabaseClient) CreateKnowledgeBase(ctx context.Context, kb *models.KnowledgeBase) error {
	if kb == nil {
		return errors.New("nil knowledge base")
	}
	meta, err := json.Marshal(kb.Metadata)
	if err != nil {
		return fmt.Errorf("marshal kb metadata: %w", err)
	}
	const q = `
		INSERT INTO knowledge_bases (id, user_id, title, description, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()), COALESCE($7, now()))
	`
	_, err = c.db.ExecContext(ctx, q,
		kb.ID, kb.UserID, kb.Title, kb.Description, meta, nullableTime(kb.CreatedAt), nullableTime(kb.UpdatedAt))
	return err
}

func (c *DatabaseClient) GetKnowledgeBase(ctx context.Context, id string) (*models.KnowledgeBase, error) {
	const q = `
		SELECT id, user_id, title, description, metadata, created_at, updated_at
		FROM knowledge_bases WHERE id = $1
	`
	var (
		kb   models.KnowledgeBase
		meta []byte
	)
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&kb.ID, &kb.UserID, &kb.Title, &kb.Description, &meta, &kb.CreatedAt, &kb.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(meta, &kb.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal kb metadata: %w", err)
	}
	return &kb, nil
}

func (c *DatabaseClient) UpdateKnowledgeBaseMeta(ctx context.Context, id string, meta models.KBMeta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal kb metadata: %w", err)
	}
	const q = `
		UPDATE knowledge_bases SET metadata = $2, updated_at = now() WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, raw)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("knowledge base not found: %s", id)
	}
	return nil
}

// DeleteKnowledgeBase removes the row; chunk and embedding rows cascade.
func (c *DatabaseClient) DeleteKnowledgeBase(ctx context.Context, id string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM knowledge_bases WHERE id = $1`, id)
	return err
}

// Uploaded files

func (c *DatabaseClient) CreateUploadedFile(ctx context.Context, f *models.UploadedFile) error {
	if f == nil {
		return errors.New("nil uploaded file")
	}
	meta, err := json.Marshal(f.Metadata)
	if err != nil {
		return fmt.Errorf("marshal file metadata: %w", err)
	}
	const q = `
		INSERT INTO uploaded_files
			(id, user_id, storage_url, file_name, content_type, byte_size, metadata, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, COALESCE($8, now()), COALESCE($9, now()))
	`
	_, err = c.db.ExecContext(ctx, q,
		f.ID, f.UserID, f.StorageURL, f.FileName, f.ContentType, f.ByteSize, meta,
		nullableTime(f.CreatedAt), nullableTime(f.UpdatedAt))
	return err
}

func (c *DatabaseClient) GetUploadedFile(ctx context.Context, id string) (*models.UploadedFile, error) {
	const q = `
		SELECT id, user_id, storage_url, file_name, content_type, byte_size, metadata, created_at, updated_at
		FROM uploaded_files WHERE id = $1
	`
	var (
		f    models.UploadedFile
		meta []byte
	)
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&f.ID, &f.UserID, &f.StorageURL, &f.FileName, &f.ContentType, &f.ByteSize, &meta, &f.CreatedAt, &f.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(meta, &f.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal file metadata: %w", err)
	}
	return &f, nil
}

func (c *DatabaseClient) UpdateUploadedFileMeta(ctx context.Context, id string, meta models.FileMeta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal file metadata: %w", err)
	}
	const q = `
		UPDATE uploaded_files SET metadata = $2, updated_at = now() WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, raw)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("uploaded file not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) DeleteUploadedFile(ctx context.Context, id string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM uploaded_files WHERE id = $1`, id)
	return err
}

// Chunk pairs

// InsertChunkPair writes a Document and its Embedding in one transaction so
// the 1:1 pairing invariant holds even under partial job failure. Both inserts
// skip on conflict with an existing (kb_id, source, chunk_index) row: a
// redelivered job recomputes identical chunk coordinates, and rows retained
// from a partially failed attempt must not block its retry.
func (c *DatabaseClient) InsertChunkPair(ctx context.Context, doc *models.Document, emb *models.Embedding) error {
	if doc == nil || emb == nil {
		return errors.New("nil chunk pair")
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const qDoc = `
		INSERT INTO kb_documents
			(id, kb_id, source, content_type, byte_len, text, chunk_index, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, now()))
		ON CONFLICT (kb_id, source, chunk_index) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, qDoc,
		doc.ID, doc.KBID, doc.Source, doc.ContentType, doc.ByteLen, doc.Text, doc.ChunkIndex,
		nullableTime(doc.CreatedAt),
	); err != nil {
		_ = tx.Rollback()
		return err
	}

	const qEmb = `
		INSERT INTO kb_embeddings
			(id, kb_id, source, chunk_index, embedding, text_preview, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
		ON CONFLICT (kb_id, source, chunk_index) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, qEmb,
		emb.ID, emb.KBID, emb.Source, emb.ChunkIndex, pgvector.NewVector(emb.Vector), emb.TextPreview,
		nullableTime(emb.CreatedAt),
	); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (c *DatabaseClient) GetDocumentsBySource(ctx context.Context, kbID, source string) ([]models.Document, error) {
	const q = `
		SELECT id, kb_id, source, content_type, byte_len, text, chunk_index, created_at
		FROM kb_documents
		WHERE kb_id = $1 AND source = $2
		ORDER BY chunk_index ASC
	`
	rows, err := c.db.QueryContext(ctx, q, kbID, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(
			&d.ID, &d.KBID, &d.Source, &d.ContentType, &d.ByteLen, &d.Text, &d.ChunkIndex, &d.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// nullableTime maps the zero time to NULL so COALESCE defaults apply.
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
