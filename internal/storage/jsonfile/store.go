// Package jsonfile persists documents and chunks as two JSON arrays, each
// rewritten as a whole through a temp file and an atomic rename.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/docchat/backend/internal/storage"
	"github.com/docchat/backend/internal/storage/models"
	"github.com/docchat/backend/pkg/logger"
	"github.com/docchat/backend/pkg/retry"
)

const (
	documentsFile = "documents.json"
	chunksFile    = "chunks.json"
)

var _ storage.Store = (*Store)(nil)

type Store struct {
	dir string
	// mu serialises read-modify-write cycles; readers rely on rename atomicity.
	mu sync.Mutex
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	logger.Info("JSON store initialized", zap.String("dir", dir))
	return &Store{dir: dir}, nil
}

func (s *Store) Close() error { return nil }

func (s *Store) ListDocuments(_ context.Context) ([]models.Document, error) {
	var docs []models.Document
	if err := s.read(documentsFile, &docs); err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []models.Document{}
	}
	return docs, nil
}

func (s *Store) ListChunks(_ context.Context) ([]models.Chunk, error) {
	var chunks []models.Chunk
	if err := s.read(chunksFile, &chunks); err != nil {
		return nil, err
	}
	if chunks == nil {
		chunks = []models.Chunk{}
	}
	return chunks, nil
}

func (s *Store) AppendDocument(ctx context.Context, doc models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.ListDocuments(ctx)
	if err != nil {
		return err
	}
	for _, d := range docs {
		if d.ID == doc.ID {
			return fmt.Errorf("document %s: %w", doc.ID, storage.ErrDuplicateID)
		}
	}

	if err := s.write(ctx, documentsFile, append(docs, doc)); err != nil {
		return err
	}

	logger.Debug("Document appended", zap.String("doc_id", doc.ID))
	return nil
}

func (s *Store) AppendChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.ListDocuments(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		known[d.ID] = struct{}{}
	}

	existing, err := s.ListChunks(ctx)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(existing)+len(chunks))
	for _, c := range existing {
		seen[c.ID] = struct{}{}
	}
	for _, c := range chunks {
		if _, ok := known[c.DocumentID]; !ok {
			return fmt.Errorf("chunk %s: %w", c.ID, storage.ErrOrphanChunk)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("chunk %s: %w", c.ID, storage.ErrDuplicateID)
		}
		seen[c.ID] = struct{}{}
	}

	if err := s.write(ctx, chunksFile, append(existing, chunks...)); err != nil {
		return err
	}

	logger.Debug("Chunks appended", zap.Int("count", len(chunks)))
	return nil
}

// DeleteDocument rewrites the chunk file before the document file so a
// failure in between never leaves chunks without their document.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chunks, err := s.ListChunks(ctx)
	if err != nil {
		return err
	}
	kept := chunks[:0:0]
	for _, c := range chunks {
		if c.DocumentID != id {
			kept = append(kept, c)
		}
	}
	if len(kept) != len(chunks) {
		if err := s.write(ctx, chunksFile, kept); err != nil {
			return err
		}
	}

	docs, err := s.ListDocuments(ctx)
	if err != nil {
		return err
	}
	keptDocs := docs[:0:0]
	for _, d := range docs {
		if d.ID != id {
			keptDocs = append(keptDocs, d)
		}
	}
	if len(keptDocs) != len(docs) {
		if err := s.write(ctx, documentsFile, keptDocs); err != nil {
			return err
		}
	}

	logger.Debug("Document deleted",
		zap.String("doc_id", id),
		zap.Int("chunks_removed", len(chunks)-len(kept)),
	)
	return nil
}

func (s *Store) read(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return nil
}

func (s *Store) write(ctx context.Context, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", storage.ErrWriteFailure, name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrWriteFailure, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %v", storage.ErrWriteFailure, name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync %s: %v", storage.ErrWriteFailure, name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", storage.ErrWriteFailure, name, err)
	}

	target := filepath.Join(s.dir, name)
	err = retry.Do(ctx, retry.Config{
		MaxAttempts:  3,
		InitialDelay: 20 * time.Millisecond,
		Logger:       logger.GetLogger(),
		Operation:    "rename " + name,
	}, func() error {
		return os.Rename(tmpName, target)
	})
	if err != nil {
		return fmt.Errorf("%w: rename %s: %v", storage.ErrWriteFailure, name, err)
	}
	return nil
}
