package bolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/docchat/backend/internal/storage"
	"github.com/docchat/backend/internal/storage/models"
	"github.com/docchat/backend/pkg/logger"
)

var (
	bucketDocs     = []byte("documents")
	bucketChunks   = []byte("chunks")
	bucketDocIDs   = []byte("document_ids")
	bucketChunkIDs = []byte("chunk_ids")
)

var _ storage.Store = (*Store)(nil)

// Store keeps records under big-endian sequence keys so cursor order is
// insertion order; the *_ids buckets map record ids to those keys.
type Store struct {
	db *bbolt.DB
}

func NewStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketDocs, bucketChunks, bucketDocIDs, bucketChunkIDs} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	logger.Info("Bolt store initialized", zap.String("path", path))
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) AppendDocument(_ context.Context, doc models.Document) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		ids := tx.Bucket(bucketDocIDs)
		if ids.Get([]byte(doc.ID)) != nil {
			return fmt.Errorf("document %s: %w", doc.ID, storage.ErrDuplicateID)
		}
		return put(tx.Bucket(bucketDocs), ids, doc.ID, doc)
	})
	return wrap(err)
}

func (s *Store) AppendChunks(_ context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		docIDs := tx.Bucket(bucketDocIDs)
		ids := tx.Bucket(bucketChunkIDs)
		b := tx.Bucket(bucketChunks)
		for _, c := range chunks {
			if docIDs.Get([]byte(c.DocumentID)) == nil {
				return fmt.Errorf("chunk %s: %w", c.ID, storage.ErrOrphanChunk)
			}
			if ids.Get([]byte(c.ID)) != nil {
				return fmt.Errorf("chunk %s: %w", c.ID, storage.ErrDuplicateID)
			}
			if err := put(b, ids, c.ID, c); err != nil {
				return err
			}
		}
		return nil
	})
	return wrap(err)
}

func (s *Store) DeleteDocument(_ context.Context, id string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		docIDs := tx.Bucket(bucketDocIDs)
		key := docIDs.Get([]byte(id))
		if key == nil {
			return nil
		}
		if err := tx.Bucket(bucketDocs).Delete(key); err != nil {
			return err
		}
		if err := docIDs.Delete([]byte(id)); err != nil {
			return err
		}

		chunks := tx.Bucket(bucketChunks)
		chunkIDs := tx.Bucket(bucketChunkIDs)
		var doomed [][]byte
		var doomedIDs []string
		err := chunks.ForEach(func(k, v []byte) error {
			var c models.Chunk
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			if c.DocumentID == id {
				doomed = append(doomed, bytes.Clone(k))
				doomedIDs = append(doomedIDs, c.ID)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for i, k := range doomed {
			if err := chunks.Delete(k); err != nil {
				return err
			}
			if err := chunkIDs.Delete([]byte(doomedIDs[i])); err != nil {
				return err
			}
		}

		logger.Debug("Document deleted", zap.String("doc_id", id), zap.Int("chunks_removed", len(doomed)))
		return nil
	})
	return wrap(err)
}

func (s *Store) ListDocuments(_ context.Context) ([]models.Document, error) {
	docs := []models.Document{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocs).ForEach(func(_, v []byte) error {
			var d models.Document
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			docs = append(docs, d)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

func (s *Store) ListChunks(_ context.Context) ([]models.Chunk, error) {
	chunks := []models.Chunk{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChunks).ForEach(func(_, v []byte) error {
			var c models.Chunk
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			chunks = append(chunks, c)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	return chunks, nil
}

func put(b, ids *bbolt.Bucket, id string, v any) error {
	seq, err := b.NextSequence()
	if err != nil {
		return err
	}
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := b.Put(key, data); err != nil {
		return err
	}
	return ids.Put([]byte(id), key)
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrDuplicateID) || errors.Is(err, storage.ErrOrphanChunk) {
		return err
	}
	return fmt.Errorf("%w: %v", storage.ErrWriteFailure, err)
}
