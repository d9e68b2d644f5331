package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Compile-time interface check
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store backed by SQLite.
type SQLiteStore struct {
	db      *sql.DB
	dataDir string
}

// NewSQLiteStore opens (or creates) a SQLite database in dataDir/rulesconv.db and runs migrations.
func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "rulesconv.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Set pragmas
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, dataDir: dataDir}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	if err := s.ensureDefaults(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure defaults: %w", err)
	}

	return s, nil
}

// ensureDefaults inserts the default settings row if it doesn't exist.
func (s *SQLiteStore) ensureDefaults() error {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM settings WHERE id = 1").Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return s.UpdateSettings(DefaultSettings())
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetDataDir returns the data directory.
func (s *SQLiteStore) GetDataDir() string {
	return s.dataDir
}
