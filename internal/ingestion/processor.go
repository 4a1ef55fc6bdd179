package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docchat/backend/internal/chunker"
	"github.com/docchat/backend/internal/extract"
	"github.com/docchat/backend/internal/metrics"
	"github.com/docchat/backend/internal/storage"
	"github.com/docchat/backend/internal/storage/models"
	"github.com/docchat/backend/pkg/logger"
)

var (
	// ErrProcessingFailed is the single failure signal surfaced to callers;
	// the underlying cause stays wrapped for logging.
	ErrProcessingFailed = errors.New("document processing failed")
	ErrInvalidCategory  = errors.New("invalid category")
)

// CacheInvalidator drops cached search results after the corpus changes.
type CacheInvalidator interface {
	InvalidateDocumentCache(ctx context.Context) error
}

type Processor struct {
	store   storage.Store
	chunker *chunker.Chunker
	cache   CacheInvalidator
	now     func() time.Time
	newID   func() string
}

// NewProcessor wires the orchestrator. cache may be nil.
func NewProcessor(store storage.Store, chunker *chunker.Chunker, cache CacheInvalidator) *Processor {
	return &Processor{
		store:   store,
		chunker: chunker,
		cache:   cache,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return uuid.New().String() },
	}
}

// Ingest extracts, chunks and persists one upload held in memory.
func (p *Processor) Ingest(ctx context.Context, data []byte, filename, mediaType string, meta models.Metadata) (*models.Document, error) {
	return p.ingest(ctx, filename, mediaType, meta, func() (*extract.Result, error) {
		return extract.Extract(data, filename, mediaType)
	})
}

// IngestFile is Ingest for an upload spooled to path. The file is removed on
// every exit path, including cancellation and validation failures.
func (p *Processor) IngestFile(ctx context.Context, path, filename, mediaType string, meta models.Metadata) (*models.Document, error) {
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to remove upload temp file", zap.String("path", path), zap.Error(err))
		}
	}()
	return p.ingest(ctx, filename, mediaType, meta, func() (*extract.Result, error) {
		return extract.ExtractFile(path, filename, mediaType)
	})
}

func (p *Processor) ingest(ctx context.Context, filename, mediaType string, meta models.Metadata, extractFn func() (*extract.Result, error)) (*models.Document, error) {
	startTime := time.Now()
	filename = filepath.Base(filename)
	format := extract.Format(filename, mediaType)

	category, ok := models.ParseCategory(string(meta.Category))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, meta.Category)
	}
	meta.Category = category

	docID := p.newID()
	logger.Info("Processing document",
		zap.String("doc_id", docID),
		zap.String("file_name", filename),
		zap.String("format", format),
	)

	res, err := extractFn()
	switch {
	case errors.Is(err, extract.ErrUnsupportedFormat):
		logger.Warn("Unsupported format, document stored without chunks",
			zap.String("doc_id", docID),
			zap.String("file_name", filename),
		)
		res = &extract.Result{Format: format}
	case err != nil:
		return nil, p.fail(format, docID, fmt.Errorf("failed to extract content: %w", err))
	}
	if res.SkippedRows > 0 {
		metrics.RowsSkipped.Add(float64(res.SkippedRows))
	}

	pieces := p.chunker.Split(res)
	logger.Info("Document chunked", zap.String("doc_id", docID), zap.Int("chunks", len(pieces)))

	if err := ctx.Err(); err != nil {
		return nil, p.fail(format, docID, err)
	}

	doc := models.Document{
		ID:          docID,
		Name:        filename,
		Type:        format,
		CreatedAt:   p.now(),
		Description: meta.Description,
		Source:      meta.Source,
		Period:      meta.Period,
		CaseName:    meta.CaseName,
		Category:    meta.Category,
	}
	chunks := buildChunks(doc, pieces)

	if err := p.store.AppendDocument(ctx, doc); err != nil {
		return nil, p.fail(format, docID, fmt.Errorf("failed to insert document: %w", err))
	}
	if len(chunks) > 0 {
		if err := p.store.AppendChunks(ctx, chunks); err != nil {
			p.rollback(ctx, docID)
			return nil, p.fail(format, docID, fmt.Errorf("failed to insert chunks: %w", err))
		}
	}

	p.invalidate(ctx)

	metrics.DocumentsIngested.WithLabelValues(format, "success").Inc()
	metrics.ChunksProduced.WithLabelValues(res.Kind.String()).Add(float64(len(chunks)))
	metrics.IngestDuration.WithLabelValues(format).Observe(time.Since(startTime).Seconds())

	logger.Info("Document processed successfully",
		zap.String("doc_id", docID),
		zap.String("category", string(doc.Category)),
		zap.Int("chunks", len(chunks)),
		zap.Duration("duration", time.Since(startTime)),
	)
	return &doc, nil
}

func buildChunks(doc models.Document, pieces []string) []models.Chunk {
	chunks := make([]models.Chunk, len(pieces))
	for i, content := range pieces {
		chunks[i] = models.Chunk{
			ID:          fmt.Sprintf("%s_%d", doc.ID, i),
			DocumentID:  doc.ID,
			Index:       i,
			Content:     content,
			Category:    doc.Category,
			CaseName:    doc.CaseName,
			Description: doc.Description,
			Source:      doc.Source,
			Period:      doc.Period,
			FileName:    doc.Name,
		}
	}
	return chunks
}

// rollback removes a document whose chunks could not be written. If that
// also fails the document stays with zero chunks.
func (p *Processor) rollback(ctx context.Context, docID string) {
	if err := p.store.DeleteDocument(context.WithoutCancel(ctx), docID); err != nil {
		logger.Error("Rollback failed, document left without chunks", zap.String("doc_id", docID), zap.Error(err))
		return
	}
	logger.Warn("Document rolled back", zap.String("doc_id", docID))
}

func (p *Processor) fail(format, docID string, err error) error {
	metrics.DocumentsIngested.WithLabelValues(format, "failure").Inc()
	logger.Error("Document processing failed", zap.String("doc_id", docID), zap.Error(err))
	return fmt.Errorf("%w: %w", ErrProcessingFailed, err)
}

func (p *Processor) invalidate(ctx context.Context) {
	if p.cache == nil {
		return
	}
	if err := p.cache.InvalidateDocumentCache(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("Failed to invalidate search cache", zap.Error(err))
	}
}

// Delete removes a document and its chunks. Unknown ids are not an error.
func (p *Processor) Delete(ctx context.Context, id string) error {
	if err := p.store.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	p.invalidate(ctx)
	metrics.DocumentsDeleted.Inc()
	logger.Info("Document deleted", zap.String("doc_id", id))
	return nil
}

func (p *Processor) List(ctx context.Context) ([]models.Document, error) {
	docs, err := p.store.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}
