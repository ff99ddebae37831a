package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/compozy/plansync/pkg/logger"
	// Register modernc SQLite driver with database/sql.
	_ "modernc.org/sqlite"
)

const memoryPath = ":memory:"

// Store owns the database/sql handle for a SQLite file.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens the database and verifies the connection.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil || strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite: path is required")
	}
	db, err := sql.Open("sqlite", buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	switch {
	case cfg.Path == memoryPath:
		// every connection to a private in-memory database sees its own copy
		db.SetMaxOpenConns(1)
	case cfg.MaxOpenConns > 0:
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	logger.FromContext(ctx).With(
		"store_driver", "sqlite",
		"path", cfg.Path,
	).Info("Store initialized")
	return &Store{db: db, path: cfg.Path}, nil
}

func (s *Store) DB() *sql.DB { return s.db }

// HealthCheck verifies the database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: health check failed: %w", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("sqlite: close: %w", err)
	}
	logger.FromContext(ctx).Info("SQLite store closed", "path", s.path)
	return nil
}

// buildDSN turns a path into a modernc URI carrying the connection pragmas.
func buildDSN(cfg *Config) string {
	pragmas := []string{
		fmt.Sprintf("_pragma=busy_timeout(%d)", cfg.busyTimeout().Milliseconds()),
		"_pragma=foreign_keys(ON)",
	}
	if cfg.Path == memoryPath {
		return "file::memory:?" + strings.Join(pragmas, "&")
	}
	pragmas = append(pragmas, "_pragma=journal_mode(WAL)", "_txlock=immediate")
	return "file:" + cfg.Path + "?" + strings.Join(pragmas, "&")
}
