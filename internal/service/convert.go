package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/xiaobei/rulesconv/internal/fetcher"
	"github.com/xiaobei/rulesconv/internal/ini"
	"github.com/xiaobei/rulesconv/internal/logger"
	"github.com/xiaobei/rulesconv/internal/ruleconvert"
	"github.com/xiaobei/rulesconv/internal/storage"
)

var (
	ErrUnknownTarget  = errors.New("unknown target")
	ErrBadRulesetKind = errors.New("unsupported ruleset type")
	ErrBadParameter   = errors.New("invalid parameter")
)

// Ruleset kinds served by /getruleset.
const (
	RulesetSurge  = 1
	RulesetQuanX  = 2
	prefetchLimit = 8
)

// ConvertRequest describes one conversion.
type ConvertRequest struct {
	Target    string `json:"target"`
	Base      string `json:"base"`
	Overwrite bool   `json:"overwrite"`
	// NewFieldName selects "rules" over "Rule" for Clash. Nil uses the stored setting.
	NewFieldName *bool `json:"new_field_name"`
	// Splice appends the Clash rule list as text after the encoded document.
	Splice bool `json:"splice"`
}

// ConvertService renders configured rulesets into client documents.
type ConvertService struct {
	store storage.Store

	mu      sync.RWMutex
	fetcher *fetcher.Fetcher
}

// NewConvertService creates a conversion service
func NewConvertService(store storage.Store, f *fetcher.Fetcher) *ConvertService {
	return &ConvertService{store: store, fetcher: f}
}

// SetFetcher swaps the fetcher, e.g. after the timeout or TTL settings changed.
func (s *ConvertService) SetFetcher(f *fetcher.Fetcher) {
	s.mu.Lock()
	s.fetcher = f
	s.mu.Unlock()
}

// Fetcher returns the current fetcher.
func (s *ConvertService) Fetcher() *fetcher.Fetcher {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetcher
}

// Convert renders the stored rulesets for req.Target.
func (s *ConvertService) Convert(ctx context.Context, req ConvertRequest) (string, error) {
	return s.ConvertWith(ctx, req, s.store.GetSettings(), s.store.GetRulesets())
}

// ConvertWith renders rulesets with explicit settings.
func (s *ConvertService) ConvertWith(ctx context.Context, req ConvertRequest, settings *storage.Settings, rulesets []storage.Ruleset) (string, error) {
	target, ok := ruleconvert.ParseTarget(req.Target)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTarget, req.Target)
	}
	if settings == nil {
		settings = storage.DefaultSettings()
	}

	sources, err := s.BuildSources(ctx, rulesets)
	if err != nil {
		return "", err
	}
	if needsContent(target, settings.ManagedPrefix) {
		if err := s.Prefetch(ctx, sources); err != nil {
			return "", err
		}
	}

	engineSettings := ruleconvert.Settings{
		MaxAllowedRules:      settings.MaxAllowedRules,
		SingBoxAddClashModes: settings.SingBoxAddClashModes,
	}
	switch {
	case target == ruleconvert.TargetClash:
		newField := lo.FromPtrOr(req.NewFieldName, settings.ClashNewFieldName)
		return renderClash(req.Base, ruleconvert.NewClashEmitter(engineSettings, logger.L(), newField, req.Overwrite), sources, req.Splice)
	case target == ruleconvert.TargetSingBox:
		return renderSingBox(req.Base, ruleconvert.NewSingBoxEmitter(engineSettings, logger.L(), req.Overwrite), sources)
	default:
		e, err := ruleconvert.NewSurgeEmitter(engineSettings, logger.L(), ruleconvert.SurgeOptions{
			Target:        target,
			Overwrite:     req.Overwrite,
			ManagedPrefix: settings.ManagedPrefix,
		})
		if err != nil {
			return "", err
		}
		return renderSurge(req.Base, e, sources)
	}
}

// BuildSources turns enabled rulesets into engine sources in priority order.
func (s *ConvertService) BuildSources(ctx context.Context, rulesets []storage.Ruleset) ([]ruleconvert.RuleSource, error) {
	enabled := lo.Filter(rulesets, func(rs storage.Ruleset, _ int) bool { return rs.Enabled })
	slices.SortStableFunc(enabled, func(a, b storage.Ruleset) int { return a.Priority - b.Priority })

	f := s.Fetcher()
	sources := make([]ruleconvert.RuleSource, 0, len(enabled))
	for _, rs := range enabled {
		if rs.IsInline() {
			sources = append(sources, ruleconvert.InlineSource(rs.Group, rs.Path[2:]))
			continue
		}
		dialect, path, err := rulesetDialect(rs)
		if err != nil {
			return nil, err
		}
		sources = append(sources, ruleconvert.NewSource(rs.Group, path, dialect, f.Provider(ctx, path), rs.UpdateInterval))
	}
	return sources, nil
}

// Prefetch resolves remote sources concurrently so the engine reads cached content.
func (s *ConvertService) Prefetch(ctx context.Context, sources []ruleconvert.RuleSource) error {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(prefetchLimit)
	for _, src := range sources {
		if !fetcher.IsRemote(src.Path) || src.Content == nil {
			continue
		}
		g.Go(func() error {
			src.Content.Content()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Ruleset renders a /getruleset body. encodedURL is a URL-safe base64 typed path.
func (s *ConvertService) Ruleset(ctx context.Context, kind int, encodedURL, encodedGroup string) (string, error) {
	if kind != RulesetSurge && kind != RulesetQuanX {
		return "", fmt.Errorf("%w: %d", ErrBadRulesetKind, kind)
	}
	typed, err := ruleconvert.DecodeURLSafe(encodedURL)
	if err != nil {
		return "", fmt.Errorf("%w: url: %v", ErrBadParameter, err)
	}
	group := ""
	if kind == RulesetQuanX {
		if group, err = ruleconvert.DecodeURLSafe(encodedGroup); err != nil {
			return "", fmt.Errorf("%w: group: %v", ErrBadParameter, err)
		}
		if group == "" {
			return "", fmt.Errorf("%w: group is required for type %d", ErrBadParameter, kind)
		}
	}

	dialect, path := ruleconvert.ParseTypedPath(typed)
	content, err := s.Fetcher().Fetch(ctx, path)
	if err != nil {
		return "", err
	}
	budget := ruleconvert.NewBudget(s.store.GetSettings().MaxAllowedRules)
	if kind == RulesetQuanX {
		return ruleconvert.QuanXRuleset(content, dialect, group, budget), nil
	}
	return ruleconvert.SurgeRuleset(content, dialect, budget), nil
}

// RemotePaths lists the remote paths of enabled rulesets.
func (s *ConvertService) RemotePaths() []string {
	var paths []string
	for _, rs := range s.store.GetRulesets() {
		if !rs.Enabled || rs.IsInline() {
			continue
		}
		if _, path, err := rulesetDialect(rs); err == nil && fetcher.IsRemote(path) {
			paths = append(paths, path)
		}
	}
	return lo.Uniq(paths)
}

// RefreshCache re-downloads every remote ruleset and reports how many changed.
func (s *ConvertService) RefreshCache(ctx context.Context) (int, error) {
	return s.Fetcher().Refresh(ctx, s.RemotePaths())
}

// rulesetDialect resolves the dialect from the explicit type or the path's tag.
func rulesetDialect(rs storage.Ruleset) (ruleconvert.SourceDialect, string, error) {
	if rs.Type == "" {
		d, path := ruleconvert.ParseTypedPath(rs.Path)
		return d, path, nil
	}
	d, err := ruleconvert.ParseSourceDialect(rs.Type)
	if err != nil {
		return 0, "", fmt.Errorf("ruleset %q: %w", rs.Path, err)
	}
	return d, rs.Path, nil
}

// needsContent reports whether the emitter will read remote bodies. Surge 3+,
// Loon and QuantumultX reference links instead once a managed prefix is set.
func needsContent(t ruleconvert.Target, prefix string) bool {
	switch t {
	case ruleconvert.TargetSurge3, ruleconvert.TargetLoon, ruleconvert.TargetQuantumultX:
		return prefix == ""
	}
	return true
}

func renderClash(base string, e *ruleconvert.ClashEmitter, sources []ruleconvert.RuleSource, splice bool) (string, error) {
	var doc yaml.Node
	if strings.TrimSpace(base) != "" {
		if err := yaml.Unmarshal([]byte(base), &doc); err != nil {
			return "", fmt.Errorf("%w: failed to parse clash config: %w", ErrBadParameter, err)
		}
	}
	var rules string
	if splice {
		rules = e.EmitString(&doc, sources)
		if len(doc.Content) == 0 || len(doc.Content[0].Content) == 0 {
			return strings.TrimPrefix(rules, "\n"), nil
		}
	} else {
		e.Emit(&doc, sources)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return "", fmt.Errorf("failed to encode clash config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String() + rules, nil
}

func renderSurge(base string, e *ruleconvert.SurgeEmitter, sources []ruleconvert.RuleSource) (string, error) {
	doc, err := ini.Parse(base, ruleconvert.SurgeSections...)
	if err != nil {
		return "", fmt.Errorf("%w: failed to parse config: %w", ErrBadParameter, err)
	}
	e.Emit(doc, sources)
	return doc.String(), nil
}

func renderSingBox(base string, e *ruleconvert.SingBoxEmitter, sources []ruleconvert.RuleSource) (string, error) {
	doc := map[string]any{}
	if strings.TrimSpace(base) != "" {
		if err := json.Unmarshal([]byte(base), &doc); err != nil {
			return "", fmt.Errorf("%w: failed to parse sing-box config: %w", ErrBadParameter, err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
	}
	e.Emit(doc, sources)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode sing-box config: %w", err)
	}
	return string(data), nil
}
