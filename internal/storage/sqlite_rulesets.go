package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// ==================== Rulesets ====================

const rulesetColumns = "id, rule_group, path, dialect, update_interval, priority, enabled, created_at"

func (s *SQLiteStore) GetRulesets() []Ruleset {
	rows, err := s.db.Query("SELECT " + rulesetColumns + " FROM rulesets ORDER BY priority, created_at, rowid")
	if err != nil {
		return []Ruleset{}
	}
	defer rows.Close()

	var rulesets []Ruleset
	for rows.Next() {
		rs, err := scanRuleset(rows)
		if err != nil {
			continue
		}
		rulesets = append(rulesets, rs)
	}
	if rulesets == nil {
		rulesets = []Ruleset{}
	}
	return rulesets
}

func (s *SQLiteStore) GetRuleset(id string) *Ruleset {
	rs, err := scanRuleset(s.db.QueryRow("SELECT "+rulesetColumns+" FROM rulesets WHERE id = ?", id))
	if err != nil {
		return nil
	}
	return &rs
}

func (s *SQLiteStore) AddRuleset(rs Ruleset) error {
	return insertRuleset(s.db, rs)
}

func (s *SQLiteStore) UpdateRuleset(rs Ruleset) error {
	res, err := s.db.Exec(`UPDATE rulesets SET rule_group=?, path=?, dialect=?, update_interval=?, priority=?, enabled=? WHERE id=?`,
		rs.Group, rs.Path, rs.Type, rs.UpdateInterval, rs.Priority, boolToInt(rs.Enabled), rs.ID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("ruleset %s: %w", rs.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) DeleteRuleset(id string) error {
	res, err := s.db.Exec("DELETE FROM rulesets WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("ruleset %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) ReplaceRulesets(rulesets []Ruleset) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM rulesets"); err != nil {
		return err
	}
	for _, rs := range rulesets {
		if err := insertRuleset(tx, rs); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertRuleset(db execer, rs Ruleset) error {
	if rs.CreatedAt.IsZero() {
		rs.CreatedAt = time.Now()
	}
	_, err := db.Exec(`INSERT INTO rulesets (`+rulesetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rs.ID, rs.Group, rs.Path, rs.Type, rs.UpdateInterval, rs.Priority, boolToInt(rs.Enabled), rs.CreatedAt.Unix())
	return err
}

func scanRuleset(row interface{ Scan(dest ...any) error }) (Ruleset, error) {
	var rs Ruleset
	var enabled int
	var createdAt int64
	if err := row.Scan(&rs.ID, &rs.Group, &rs.Path, &rs.Type, &rs.UpdateInterval, &rs.Priority, &enabled, &createdAt); err != nil {
		return Ruleset{}, err
	}
	rs.Enabled = enabled != 0
	rs.CreatedAt = time.Unix(createdAt, 0)
	return rs, nil
}
