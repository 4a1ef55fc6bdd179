package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/docchat/backend/internal/storage"
	"github.com/docchat/backend/internal/storage/models"
	"github.com/docchat/backend/pkg/logger"
)

var _ storage.Store = (*Client)(nil)

type Client struct {
	db *sql.DB
	mu sync.Mutex
}

func NewClient(dbPath string) (*Client, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

// InitSchema creates the tables. The seq columns carry insertion order.
func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		period TEXT NOT NULL DEFAULT '',
		case_name TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_category ON documents(category);

	CREATE TABLE IF NOT EXISTS chunks (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		document_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		category TEXT NOT NULL,
		case_name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		period TEXT NOT NULL DEFAULT '',
		file_name TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) AppendDocument(ctx context.Context, doc models.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	query := `
		INSERT INTO documents (id, name, type, description, source, period, case_name, category, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(ctx, query,
		doc.ID,
		doc.Name,
		doc.Type,
		doc.Description,
		doc.Source,
		doc.Period,
		doc.CaseName,
		string(doc.Category),
		doc.CreatedAt.UnixNano(),
	)
	if err != nil {
		return translate(err, "document "+doc.ID)
	}

	logger.Debug("Document inserted", zap.String("doc_id", doc.ID), zap.String("name", doc.Name))
	return nil
}

func (c *Client) AppendChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", storage.ErrWriteFailure, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, chunk_index, content, category, case_name, description, source, period, file_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("%w: prepare: %v", storage.ErrWriteFailure, err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		_, err := stmt.ExecContext(ctx,
			chunk.ID,
			chunk.DocumentID,
			chunk.Index,
			chunk.Content,
			string(chunk.Category),
			chunk.CaseName,
			chunk.Description,
			chunk.Source,
			chunk.Period,
			chunk.FileName,
		)
		if err != nil {
			return translate(err, "chunk "+chunk.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", storage.ErrWriteFailure, err)
	}

	logger.Debug("Chunks inserted", zap.Int("count", len(chunks)))
	return nil
}

func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: delete document: %v", storage.ErrWriteFailure, err)
	}

	n, _ := res.RowsAffected()
	logger.Debug("Document deleted", zap.String("doc_id", id), zap.Int64("rows", n))
	return nil
}

func (c *Client) ListDocuments(ctx context.Context) ([]models.Document, error) {
	query := `SELECT id, name, type, description, source, period, case_name, category, created_at FROM documents ORDER BY seq`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		var d models.Document
		var category string
		var createdAt int64

		err := rows.Scan(&d.ID, &d.Name, &d.Type, &d.Description, &d.Source, &d.Period, &d.CaseName, &category, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}

		d.Category = models.Category(category)
		d.CreatedAt = time.Unix(0, createdAt).UTC()
		docs = append(docs, d)
	}

	return docs, rows.Err()
}

func (c *Client) ListChunks(ctx context.Context) ([]models.Chunk, error) {
	query := `
		SELECT id, document_id, chunk_index, content, category, case_name, description, source, period, file_name
		FROM chunks ORDER BY seq
	`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	chunks := []models.Chunk{}
	for rows.Next() {
		var ch models.Chunk
		var category string

		err := rows.Scan(&ch.ID, &ch.DocumentID, &ch.Index, &ch.Content, &category,
			&ch.CaseName, &ch.Description, &ch.Source, &ch.Period, &ch.FileName)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}

		ch.Category = models.Category(category)
		chunks = append(chunks, ch)
	}

	return chunks, rows.Err()
}

func translate(err error, what string) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%s: %w", what, storage.ErrDuplicateID)
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%s: %w", what, storage.ErrOrphanChunk)
		}
	}
	return fmt.Errorf("%w: %s: %v", storage.ErrWriteFailure, what, err)
}
