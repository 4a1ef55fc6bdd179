// Package backend opens the Store selected by configuration.
package backend

import (
	"fmt"
	"path/filepath"

	"github.com/docchat/backend/internal/storage"
	"github.com/docchat/backend/internal/storage/bolt"
	"github.com/docchat/backend/internal/storage/jsonfile"
	"github.com/docchat/backend/internal/storage/sqlite"
)

const (
	JSON   = "json"
	SQLite = "sqlite"
	Bolt   = "bolt"
)

func Open(kind, root string) (storage.Store, error) {
	switch kind {
	case JSON, "":
		return jsonfile.New(filepath.Join(root, "db"))
	case SQLite:
		client, err := sqlite.NewClient(filepath.Join(root, "docchat.db"))
		if err != nil {
			return nil, err
		}
		if err := client.InitSchema(); err != nil {
			client.Close()
			return nil, err
		}
		return client, nil
	case Bolt:
		return bolt.NewStore(filepath.Join(root, "docchat.bolt"))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", kind)
	}
}
