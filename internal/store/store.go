// Package store persists serialized workflow snapshots.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrNotFound is returned by Load when no snapshot exists for the key
var ErrNotFound = errors.New("snapshot not found")

// SnapshotStore saves and loads opaque snapshot blobs by key.
// Deleting a missing key is not an error.
type SnapshotStore interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// Config selects and configures a store
type Config struct {
	Type     string // file, postgres, mysql, sqlserver or redis
	Dir      string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	DB       int
	Prefix   string
}

// Open creates the store named by config.Type
func Open(ctx context.Context, config Config, logger *zap.Logger) (SnapshotStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		s   SnapshotStore
		err error
	)
	switch config.Type {
	case "", "file":
		s, err = NewFileStore(config.Dir)
	case "postgres", "mysql", "sqlserver":
		s, err = OpenSQLStore(ctx, config)
	case "redis":
		s, err = OpenRedisStore(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("snapshot store ready", zap.String("type", config.Type))
	return s, nil
}
