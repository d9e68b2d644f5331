package ruleconvert

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/xiaobei/rulesconv/internal/ini"
)

var _ Emitter[*ini.Document] = (*SurgeEmitter)(nil)

// SurgeSections lists the sections holding raw rule lines for every Surge-family target.
var SurgeSections = []string{"Rule", "RoutingRule", "filter_local", "filter_remote", "TCP", "Remote Rule"}

type indirection int

const (
	expand indirection = iota
	emitEntry
	skipSource
)

// surgeDialect captures what differs between the INI-based targets.
type surgeDialect interface {
	section() string
	remoteSection() string
	accepts(line string) bool
	inline(rule, group string) string
	rewrite(line, group string) string
	// indirect decides whether src is referenced instead of expanded. An empty
	// section means the primary rule list.
	indirect(src RuleSource, link bool, prefix string) (entry, section string, how indirection)
}

// surgeRules is the line handling shared by Surge, Mellow, Surfboard and Loon.
type surgeRules struct{}

func (surgeRules) remoteSection() string { return "" }

func (surgeRules) inline(rule, group string) string {
	if isCompound(rule) {
		return rule
	}
	return ToTargetLine(rule, group, false)
}

func (surgeRules) rewrite(line, group string) string {
	return ToTargetLine(line, group, false)
}

func (surgeRules) indirect(RuleSource, bool, string) (string, string, indirection) {
	return "", "", expand
}

type mellowDialect struct{ surgeRules }

func (mellowDialect) section() string          { return "RoutingRule" }
func (mellowDialect) accepts(line string) bool { return surge2Types.Accepts(line) }

type surge2Dialect struct{ surgeRules }

func (surge2Dialect) section() string          { return "Rule" }
func (surge2Dialect) accepts(line string) bool { return surge2Types.Accepts(line) }

type surfboardDialect struct{ surgeRules }

func (surfboardDialect) section() string          { return "Rule" }
func (surfboardDialect) accepts(line string) bool { return surfboardTypes.Accepts(line) }

type surge3Dialect struct{ surgeRules }

func (surge3Dialect) section() string          { return "Rule" }
func (surge3Dialect) accepts(line string) bool { return surgeTypes.Accepts(line) }

func (surge3Dialect) indirect(src RuleSource, link bool, prefix string) (string, string, indirection) {
	var url string
	switch {
	case link && src.Dialect == SourceSurge:
		url = src.Path
	case prefix != "":
		url = prefix + "/getruleset?type=1&url=" + EncodeURLSafe(src.typedPath())
	case link:
		return "", "", skipSource
	default:
		return "", "", expand
	}
	entry := "RULE-SET," + url + "," + src.Group
	if src.UpdateInterval > 0 {
		entry += ",update-interval=" + strconv.Itoa(src.UpdateInterval)
	}
	return entry, "", emitEntry
}

type loonDialect struct{ surgeRules }

func (loonDialect) section() string          { return "Rule" }
func (loonDialect) remoteSection() string    { return "Remote Rule" }
func (loonDialect) accepts(line string) bool { return surge2Types.Accepts(line) }

func (d loonDialect) indirect(src RuleSource, link bool, prefix string) (string, string, indirection) {
	switch {
	case link:
		return src.Path + "," + src.Group, d.remoteSection(), emitEntry
	case prefix != "":
		return prefix + "/getruleset?type=1&url=" + EncodeURLSafe(src.typedPath()) + "," + src.Group, d.remoteSection(), emitEntry
	}
	return "", "", expand
}

// quanRules is the line handling shared by Quantumult and QuantumultX.
type quanRules struct{}

func (quanRules) inline(rule, group string) string {
	if isCompound(rule) {
		return rule
	}
	return ToTargetLine(rule, group, true)
}

func (quanRules) rewrite(line, group string) string {
	return toQuanXLine(line, group)
}

type quanXDialect struct{ quanRules }

func (quanXDialect) section() string          { return "filter_local" }
func (quanXDialect) remoteSection() string    { return "filter_remote" }
func (quanXDialect) accepts(line string) bool { return quanXTypes.Accepts(line) }

func (d quanXDialect) indirect(src RuleSource, link bool, prefix string) (string, string, indirection) {
	switch {
	case link && src.Dialect == SourceQuanX:
		return fmt.Sprintf("%s, tag=%s, force-policy=%s, enabled=true", src.Path, src.Group, src.Group), d.remoteSection(), emitEntry
	case prefix != "":
		url := prefix + "/getruleset?type=2&url=" + EncodeURLSafe(src.typedPath()) + "&group=" + EncodeURLSafe(src.Group)
		return fmt.Sprintf("%s, tag=%s, enabled=true", url, src.Group), d.remoteSection(), emitEntry
	}
	return "", "", expand
}

type quantumultDialect struct{ quanRules }

func (quantumultDialect) section() string       { return "TCP" }
func (quantumultDialect) remoteSection() string { return "" }

func (quantumultDialect) accepts(line string) bool {
	return !strings.HasPrefix(line, "IP-CIDR6") && quanXTypes.Accepts(line)
}

func (quantumultDialect) indirect(RuleSource, bool, string) (string, string, indirection) {
	return "", "", expand
}

func surgeDialectFor(t Target) (surgeDialect, bool) {
	switch t {
	case TargetMellow:
		return mellowDialect{}, true
	case TargetSurge2:
		return surge2Dialect{}, true
	case TargetSurge3:
		return surge3Dialect{}, true
	case TargetSurfboard:
		return surfboardDialect{}, true
	case TargetLoon:
		return loonDialect{}, true
	case TargetQuantumult:
		return quantumultDialect{}, true
	case TargetQuantumultX:
		return quanXDialect{}, true
	}
	return nil, false
}

// SurgeOptions configures a SurgeEmitter.
type SurgeOptions struct {
	Target    Target
	Overwrite bool
	// ManagedPrefix is the public base URL serving /getruleset. Empty disables proxied links.
	ManagedPrefix string
	// FileExists reports whether a path is a local file. Defaults to os.Stat.
	FileExists func(path string) bool
}

// SurgeEmitter writes rules into an INI document for one Surge-family target.
type SurgeEmitter struct {
	engine
	dialect    surgeDialect
	overwrite  bool
	prefix     string
	fileExists func(string) bool
}

func NewSurgeEmitter(settings Settings, log Logger, opts SurgeOptions) (*SurgeEmitter, error) {
	d, ok := surgeDialectFor(opts.Target)
	if !ok {
		return nil, fmt.Errorf("target %s is not a Surge-family target", opts.Target)
	}
	if opts.FileExists == nil {
		opts.FileExists = fileExists
	}
	return &SurgeEmitter{
		engine:     newEngine(settings, log),
		dialect:    d,
		overwrite:  opts.Overwrite,
		prefix:     strings.TrimSuffix(opts.ManagedPrefix, "/"),
		fileExists: opts.FileExists,
	}, nil
}

// Section is the primary rule section of the target.
func (e *SurgeEmitter) Section() string { return e.dialect.section() }

// Emit appends converted sources to doc.
func (e *SurgeEmitter) Emit(doc *ini.Document, sources []RuleSource) {
	primary := e.dialect.section()
	if e.overwrite {
		doc.EraseSection(primary)
		if remote := e.dialect.remoteSection(); remote != "" {
			doc.EraseSection(remote)
		}
	}
	doc.EnsureSection(primary)

	budget := e.budget()
	var rules []string
	for _, src := range sources {
		if budget.Exhausted() {
			break
		}
		if src.Path == "" {
			content, ok := e.resolve(src)
			if !ok {
				continue
			}
			rule := inlineRule(content)
			if rule == "" {
				continue
			}
			if rule == "MATCH" || strings.HasPrefix(rule, "MATCH,") {
				rule = "FINAL" + rule[len("MATCH"):]
			}
			if budget.Take() {
				rules = append(rules, strings.ReplaceAll(e.dialect.inline(rule, src.Group), ",,", ","))
			}
			continue
		}

		link := isLink(src.Path)
		if !link && !e.fileExists(src.Path) {
			continue
		}
		entry, section, how := e.dialect.indirect(src, link, e.prefix)
		switch how {
		case skipSource:
			continue
		case emitEntry:
			if budget.Take() {
				if section == "" {
					rules = append(rules, entry)
				} else {
					doc.Append(section, entry)
				}
			}
			continue
		}

		content, ok := e.resolve(src)
		if !ok {
			continue
		}
		for _, line := range ruleLines(Normalize(content, src.Dialect)) {
			if budget.Exhausted() {
				break
			}
			if !e.dialect.accepts(line) {
				continue
			}
			line = StripComment(line)
			if !budget.Take() {
				break
			}
			if isCompound(line) {
				rules = append(rules, line)
			} else {
				rules = append(rules, e.dialect.rewrite(line, src.Group))
			}
		}
	}
	for _, r := range rules {
		doc.Append(primary, r)
	}
}

func isLink(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "data:")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
