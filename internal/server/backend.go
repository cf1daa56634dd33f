package server

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"lockr/internal/storage"
)

// openBackend returns the entry store selected by cfg.Backend and a function
// that releases it.
func openBackend(ctx context.Context, cfg Config, logger *logrus.Logger) (storage.EntryStore, func() error, error) {
	switch cfg.Backend {
	case BackendMemory:
		return storage.NewMemoryStore(), func() error { return nil }, nil
	case BackendSQLite:
		s := storage.NewSQLiteStore(cfg.SQLitePath, logger)
		if err := s.Open(ctx); err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case BackendMongo:
		m, err := storage.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB, cfg.MongoCollection, 10*time.Second)
		if err != nil {
			return nil, nil, err
		}
		return m, func() error { return m.Close(context.Background()) }, nil
	default:
		return nil, nil, errors.Errorf("server: unknown backend %q (supported: memory, sqlite, mongo)", cfg.Backend)
	}
}
