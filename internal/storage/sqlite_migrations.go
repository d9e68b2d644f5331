package storage

import "fmt"

// migrate runs all pending schema migrations.
func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var current int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	migrations := []func() error{
		s.migrateV1,
	}

	for i, m := range migrations {
		ver := i + 1
		if ver <= current {
			continue
		}
		if err := m(); err != nil {
			return fmt.Errorf("migration v%d: %w", ver, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", ver); err != nil {
			return fmt.Errorf("record version v%d: %w", ver, err)
		}
	}
	return nil
}

// migrateV1 creates the rulesets, settings and content cache tables.
func (s *SQLiteStore) migrateV1() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rulesets (
			id TEXT PRIMARY KEY,
			rule_group TEXT NOT NULL DEFAULT '',
			path TEXT NOT NULL DEFAULT '',
			dialect TEXT NOT NULL DEFAULT '',
			update_interval INTEGER NOT NULL DEFAULT 0,
			priority INTEGER NOT NULL DEFAULT 0,
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			max_allowed_rules INTEGER NOT NULL DEFAULT 0,
			singbox_add_clash_modes INTEGER NOT NULL DEFAULT 1,
			managed_prefix TEXT NOT NULL DEFAULT '',
			clash_new_field_name INTEGER NOT NULL DEFAULT 1,
			cache_ttl INTEGER NOT NULL DEFAULT 0,
			refresh_interval INTEGER NOT NULL DEFAULT 0,
			fetch_timeout INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS content_cache (
			url TEXT PRIMARY KEY,
			body TEXT NOT NULL DEFAULT '',
			etag TEXT NOT NULL DEFAULT '',
			fetched_at INTEGER NOT NULL DEFAULT 0
		)`,

		// Indices
		`CREATE INDEX IF NOT EXISTS idx_rulesets_priority ON rulesets(priority, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_content_cache_fetched ON content_cache(fetched_at)`,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", truncate(stmt, 60), err)
		}
	}

	return tx.Commit()
}
