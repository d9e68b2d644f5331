package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/xiaobei/rulesconv/internal/events"
	"github.com/xiaobei/rulesconv/internal/ruleconvert"
	"github.com/xiaobei/rulesconv/internal/storage"
)

// ErrInvalidRuleset wraps every validation failure.
var ErrInvalidRuleset = errors.New("invalid ruleset")

// RulesetService handles ruleset operations
type RulesetService struct {
	store storage.Store
	bus   *events.Bus
}

// NewRulesetService creates a new ruleset service. bus may be nil.
func NewRulesetService(store storage.Store, bus *events.Bus) *RulesetService {
	return &RulesetService{store: store, bus: bus}
}

// GetAll returns all rulesets
func (s *RulesetService) GetAll() []storage.Ruleset {
	return s.store.GetRulesets()
}

// Get returns a single ruleset
func (s *RulesetService) Get(id string) *storage.Ruleset {
	return s.store.GetRuleset(id)
}

// Add validates and stores a new ruleset. Priority defaults to the end of the list.
func (s *RulesetService) Add(rs storage.Ruleset) (*storage.Ruleset, error) {
	if err := Validate(&rs); err != nil {
		return nil, err
	}
	rs.ID = uuid.New().String()
	rs.CreatedAt = time.Now()
	if rs.Priority == 0 {
		existing := s.store.GetRulesets()
		if len(existing) > 0 {
			rs.Priority = lo.MaxBy(existing, func(a, b storage.Ruleset) bool { return a.Priority > b.Priority }).Priority + 1
		}
	}
	if err := s.store.AddRuleset(rs); err != nil {
		return nil, fmt.Errorf("failed to save ruleset: %w", err)
	}
	s.changed()
	return &rs, nil
}

// Update validates and replaces an existing ruleset.
func (s *RulesetService) Update(rs storage.Ruleset) error {
	if s.store.GetRuleset(rs.ID) == nil {
		return fmt.Errorf("ruleset %s: %w", rs.ID, storage.ErrNotFound)
	}
	if err := Validate(&rs); err != nil {
		return err
	}
	if err := s.store.UpdateRuleset(rs); err != nil {
		return err
	}
	s.changed()
	return nil
}

// Delete deletes a ruleset
func (s *RulesetService) Delete(id string) error {
	if err := s.store.DeleteRuleset(id); err != nil {
		return err
	}
	s.changed()
	return nil
}

// Replace swaps the whole list, assigning IDs where missing.
func (s *RulesetService) Replace(rulesets []storage.Ruleset) error {
	for i := range rulesets {
		if err := Validate(&rulesets[i]); err != nil {
			return fmt.Errorf("ruleset %d: %w", i, err)
		}
		if rulesets[i].ID == "" {
			rulesets[i].ID = uuid.New().String()
		}
	}
	if err := s.store.ReplaceRulesets(rulesets); err != nil {
		return err
	}
	s.changed()
	return nil
}

func (s *RulesetService) changed() {
	s.bus.Publish(events.RulesetsChanged, map[string]int{"count": len(s.store.GetRulesets())})
}

// Validate trims rs and checks group, path and dialect.
func Validate(rs *storage.Ruleset) error {
	rs.Group = strings.TrimSpace(rs.Group)
	rs.Path = strings.TrimSpace(rs.Path)
	rs.Type = strings.TrimSpace(rs.Type)

	if rs.Group == "" {
		return fmt.Errorf("%w: group is required", ErrInvalidRuleset)
	}
	if rs.IsInline() {
		if strings.TrimSpace(rs.Path[2:]) == "" {
			return fmt.Errorf("%w: inline rule is empty", ErrInvalidRuleset)
		}
		return nil
	}
	if rs.Path == "" {
		return fmt.Errorf("%w: path is required", ErrInvalidRuleset)
	}
	if rs.Type != "" {
		if _, err := ruleconvert.ParseSourceDialect(rs.Type); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRuleset, err)
		}
	}
	if rs.UpdateInterval < 0 {
		return fmt.Errorf("%w: interval must not be negative", ErrInvalidRuleset)
	}
	return nil
}
