// Package storage defines the document and chunk persistence contract shared
// by the json, sqlite and bolt backends.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/docchat/backend/internal/storage/models"
	"github.com/docchat/backend/pkg/logger"
)

var (
	// ErrWriteFailure wraps any failure to durably persist a mutation.
	ErrWriteFailure = errors.New("store write failed")
	// ErrDuplicateID is returned when a document or chunk id already exists.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrOrphanChunk is returned when a chunk references an unknown document.
	ErrOrphanChunk = errors.New("chunk references unknown document")
)

// Store owns every Document and Chunk record. Scans return records in
// insertion order. DeleteDocument cascades to the document's chunks and is a
// no-op for unknown ids. Implementations serialise mutations internally.
type Store interface {
	ListDocuments(ctx context.Context) ([]models.Document, error)
	AppendDocument(ctx context.Context, doc models.Document) error
	AppendChunks(ctx context.Context, chunks []models.Chunk) error
	DeleteDocument(ctx context.Context, id string) error
	ListChunks(ctx context.Context) ([]models.Chunk, error)
	Close() error
}

// ResolveRoot returns the first of primary and fallback that can be created
// and written to.
func ResolveRoot(primary, fallback string) (string, error) {
	var errs []error
	for _, dir := range []string{primary, fallback} {
		if dir == "" {
			continue
		}
		if err := probeWritable(dir); err != nil {
			logger.Warn("Storage root not writable", zap.String("path", dir), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", dir, err))
			continue
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			abs = dir
		}
		return abs, nil
	}
	return "", fmt.Errorf("no writable storage root: %w", errors.Join(errs...))
}

func probeWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
