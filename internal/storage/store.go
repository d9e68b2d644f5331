package storage

import "time"

// Store defines the interface for all storage operations.
type Store interface {
	// Rulesets
	GetRulesets() []Ruleset
	GetRuleset(id string) *Ruleset
	AddRuleset(rs Ruleset) error
	UpdateRuleset(rs Ruleset) error
	DeleteRuleset(id string) error
	ReplaceRulesets(rulesets []Ruleset) error

	// Settings
	GetSettings() *Settings
	UpdateSettings(settings *Settings) error

	// Content cache
	GetCachedContent(url string) (*CachedContent, error)
	PutCachedContent(c CachedContent) error
	DeleteExpiredContent(maxAge time.Duration) (int, error)

	// Helpers
	GetDataDir() string

	// Lifecycle
	Close() error
}
