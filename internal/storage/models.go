package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a ruleset or cache row does not exist.
var ErrNotFound = errors.New("not found")

// Ruleset is one configured rule source assigned to a policy group.
// An inline rule keeps its literal in Path, prefixed with "[]".
type Ruleset struct {
	ID             string    `json:"id" yaml:"id,omitempty"`
	Group          string    `json:"group" yaml:"group"`
	Path           string    `json:"path" yaml:"path"`
	Type           string    `json:"type" yaml:"type,omitempty"`
	UpdateInterval int       `json:"interval" yaml:"interval,omitempty"`
	Priority       int       `json:"priority" yaml:"priority,omitempty"`
	Enabled        bool      `json:"enabled" yaml:"enabled"`
	CreatedAt      time.Time `json:"created_at" yaml:"-"`
}

// IsInline reports whether the ruleset is a single literal rule.
func (r Ruleset) IsInline() bool {
	return len(r.Path) >= 2 && r.Path[:2] == "[]"
}

// Settings represents global conversion and service settings
type Settings struct {
	// Conversion
	MaxAllowedRules      int    `json:"max_allowed_rules" yaml:"max_allowed_rules"`
	SingBoxAddClashModes bool   `json:"singbox_add_clash_modes" yaml:"singbox_add_clash_modes"`
	ManagedPrefix        string `json:"managed_prefix" yaml:"managed_prefix"`
	ClashNewFieldName    bool   `json:"clash_new_field_name" yaml:"clash_new_field_name"`

	// Fetching
	CacheTTL        int `json:"cache_ttl" yaml:"cache_ttl"`               // minutes
	RefreshInterval int `json:"refresh_interval" yaml:"refresh_interval"` // minutes, 0 disables the scheduler
	FetchTimeout    int `json:"fetch_timeout" yaml:"fetch_timeout"`       // seconds
}

// DefaultSettings returns default settings
func DefaultSettings() *Settings {
	return &Settings{
		MaxAllowedRules:      32768,
		SingBoxAddClashModes: true,
		ClashNewFieldName:    true,
		CacheTTL:             360,
		RefreshInterval:      360,
		FetchTimeout:         15,
	}
}

// CachedContent is a fetched remote body with its validator.
type CachedContent struct {
	URL       string
	Body      string
	ETag      string
	FetchedAt time.Time
}
