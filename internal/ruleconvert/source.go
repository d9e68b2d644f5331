// Package ruleconvert translates routing rule lists between proxy client dialects.
//
// Rule sources carry their content through a ContentProvider so the engine never
// fetches anything itself. Emitters for Clash, the Surge family and SingBox share the
// normalizer, the type tables, the line transformer and a per-call Budget.
package ruleconvert

import (
	"strings"
	"sync"
)

const inlinePrefix = "[]"

// ContentProvider yields the raw text of a source. Empty means unavailable.
type ContentProvider interface {
	Content() string
}

// StaticContent is content known up front.
type StaticContent string

func (s StaticContent) Content() string { return string(s) }

// LazyContent resolves its text once, on first use.
type LazyContent struct {
	once    sync.Once
	fetch   func() (string, error)
	content string
	err     error
}

func NewLazyContent(fetch func() (string, error)) *LazyContent {
	return &LazyContent{fetch: fetch}
}

func (l *LazyContent) Content() string {
	l.once.Do(func() {
		l.content, l.err = l.fetch()
		if l.err != nil {
			l.content = ""
		}
	})
	return l.content
}

// Err returns the fetch error once Content has been called.
func (l *LazyContent) Err() error {
	l.Content()
	return l.err
}

// RuleSource is one configured rule origin.
type RuleSource struct {
	Group          string
	Path           string
	TypedPath      string
	Dialect        SourceDialect
	Content        ContentProvider
	UpdateInterval int
}

// InlineSource builds a single-rule source such as "GEOIP,CN" for group.
func InlineSource(group, rule string) RuleSource {
	return RuleSource{Group: group, Content: StaticContent(inlinePrefix + rule)}
}

// NewSource builds a source for path with the content provider p.
func NewSource(group, path string, dialect SourceDialect, p ContentProvider, interval int) RuleSource {
	return RuleSource{
		Group:          group,
		Path:           path,
		TypedPath:      TypedPath(dialect, path),
		Dialect:        dialect,
		Content:        p,
		UpdateInterval: interval,
	}
}

func (s RuleSource) content() string {
	if s.Content == nil {
		return ""
	}
	return s.Content.Content()
}

func (s RuleSource) typedPath() string {
	if s.TypedPath != "" {
		return s.TypedPath
	}
	return TypedPath(s.Dialect, s.Path)
}

func isInline(content string) bool {
	return strings.HasPrefix(content, inlinePrefix)
}

func inlineRule(content string) string {
	if len(content) < len(inlinePrefix) {
		return ""
	}
	return content[len(inlinePrefix):]
}
