package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ==================== Content cache ====================

func (s *SQLiteStore) GetCachedContent(url string) (*CachedContent, error) {
	var c CachedContent
	var fetchedAt int64
	err := s.db.QueryRow("SELECT url, body, etag, fetched_at FROM content_cache WHERE url = ?", url).
		Scan(&c.URL, &c.Body, &c.ETag, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cached %s: %w", url, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	c.FetchedAt = time.Unix(fetchedAt, 0)
	return &c, nil
}

func (s *SQLiteStore) PutCachedContent(c CachedContent) error {
	if c.FetchedAt.IsZero() {
		c.FetchedAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO content_cache (url, body, etag, fetched_at) VALUES (?, ?, ?, ?)`,
		c.URL, c.Body, c.ETag, c.FetchedAt.Unix())
	return err
}

// DeleteExpiredContent removes cache rows fetched more than maxAge ago.
func (s *SQLiteStore) DeleteExpiredContent(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	res, err := s.db.Exec("DELETE FROM content_cache WHERE fetched_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
