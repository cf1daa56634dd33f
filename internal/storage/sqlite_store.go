package storage

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS entries (
	id         TEXT PRIMARY KEY,
	envelope   TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

// SQLiteStore keeps one row per entry id in a single SQLite file.
type SQLiteStore struct {
	path   string
	logger *logrus.Logger

	mu   sync.Mutex
	pool *sqlitex.Pool
}

func NewSQLiteStore(path string, logger *logrus.Logger) *SQLiteStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &SQLiteStore{path: path, logger: logger}
}

// Open creates the database file and schema if needed. Opening an already
// open store is a no-op.
func (s *SQLiteStore) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool != nil {
		return nil
	}
	if s.path == "" {
		return errors.New("storage: sqlite path is empty")
	}

	pool, err := sqlitex.NewPool(s.path, sqlitex.PoolOptions{
		PoolSize:    2,
		PrepareConn: prepareSQLiteConn,
	})
	if err != nil {
		return errors.Wrapf(err, "cannot open local store %q", s.path)
	}
	// Connections are lazy; take one now so a bad path fails here.
	conn, err := pool.Take(ctx)
	if err != nil {
		_ = pool.Close()
		return errors.Wrapf(err, "cannot open local store %q", s.path)
	}
	pool.Put(conn)

	s.pool = pool
	s.logger.WithFields(logrus.Fields{"path": s.path}).Debug("local store opened")
	return nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool == nil {
		return nil
	}
	err := s.pool.Close()
	s.pool = nil
	if err != nil {
		return errors.Wrapf(err, "cannot close local store %q", s.path)
	}
	s.logger.WithFields(logrus.Fields{"path": s.path}).Debug("local store closed")
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (string, error) {
	if err := checkID(id); err != nil {
		return "", err
	}
	pool, conn, err := s.take(ctx)
	if err != nil {
		return "", err
	}
	defer pool.Put(conn)

	var (
		envelope string
		found    bool
	)
	err = sqlitex.Execute(conn, `SELECT envelope FROM entries WHERE id = ?`, &sqlitex.ExecOptions{
		Args: []any{id},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			envelope = stmt.ColumnText(0)
			found = true
			return nil
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "cannot read local entry")
	}
	if !found {
		return "", ErrNotFound
	}
	return envelope, nil
}

func (s *SQLiteStore) Put(ctx context.Context, id, envelope string) error {
	if err := checkID(id); err != nil {
		return err
	}
	pool, conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer pool.Put(conn)

	err = sqlitex.Execute(conn, `INSERT INTO entries (id, envelope, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET envelope = excluded.envelope, updated_at = excluded.updated_at`,
		&sqlitex.ExecOptions{
			Args: []any{id, envelope, time.Now().Unix()},
		})
	if err != nil {
		return errors.Wrap(err, "cannot write local entry")
	}
	return nil
}

func (s *SQLiteStore) take(ctx context.Context) (*sqlitex.Pool, *sqlite.Conn, error) {
	s.mu.Lock()
	pool := s.pool
	s.mu.Unlock()
	if pool == nil {
		return nil, nil, ErrClosed
	}
	conn, err := pool.Take(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "cannot take local store connection")
	}
	return pool, conn, nil
}

func prepareSQLiteConn(conn *sqlite.Conn) error {
	for _, pragma := range []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=FULL",
	} {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return errors.Wrap(err, pragma)
		}
	}
	return sqlitex.ExecuteScript(conn, sqliteSchema, nil)
}
