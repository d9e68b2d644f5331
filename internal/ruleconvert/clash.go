package ruleconvert

import (
	"strings"

	"gopkg.in/yaml.v3"
)

var _ Emitter[*yaml.Node] = (*ClashEmitter)(nil)

// ClashEmitter writes rules into the rules field of a Clash YAML document.
type ClashEmitter struct {
	engine
	field     string
	overwrite bool
}

// NewClashEmitter targets the "rules" field, or the legacy "Rule" field when newFieldName is false.
func NewClashEmitter(settings Settings, log Logger, newFieldName, overwrite bool) *ClashEmitter {
	field := "Rule"
	if newFieldName {
		field = "rules"
	}
	return &ClashEmitter{engine: newEngine(settings, log), field: field, overwrite: overwrite}
}

// Field is the document key rules are written to.
func (e *ClashEmitter) Field() string { return e.field }

// Rules converts sources into Clash rule lines.
func (e *ClashEmitter) Rules(sources []RuleSource) []string {
	budget := e.budget()
	var rules []string
	for _, src := range sources {
		if budget.Exhausted() {
			break
		}
		content, ok := e.resolve(src)
		if !ok {
			continue
		}
		if isInline(content) {
			rule := inlineRule(content)
			if rule == "" {
				continue
			}
			if strings.HasPrefix(rule, "FINAL") {
				rule = "MATCH" + rule[len("FINAL"):]
			}
			if budget.Take() {
				rules = append(rules, ToTargetLine(rule, src.Group, false))
			}
			continue
		}
		for _, line := range ruleLines(Normalize(content, src.Dialect)) {
			if budget.Exhausted() {
				break
			}
			if !clashTypes.Accepts(line) {
				continue
			}
			if budget.Take() {
				rules = append(rules, ToTargetLine(StripComment(line), src.Group, false))
			}
		}
	}
	return rules
}

// Emit appends converted rules to the document's rule list, replacing it when overwriting.
func (e *ClashEmitter) Emit(doc *yaml.Node, sources []RuleSource) {
	m := rootMapping(doc)
	rules := append(e.existing(m), e.Rules(sources)...)
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, r := range rules {
		seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: r})
	}
	if i := mappingIndex(m, e.field); i >= 0 {
		m.Content[i+1] = seq
		return
	}
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.field}, seq)
}

// EmitString renders the rule list as YAML text and removes the field from doc,
// so a large list can be appended to the rendered document without re-encoding it.
func (e *ClashEmitter) EmitString(doc *yaml.Node, sources []RuleSource) string {
	m := rootMapping(doc)
	rules := append(e.existing(m), e.Rules(sources)...)
	if i := mappingIndex(m, e.field); i >= 0 {
		m.Content = append(m.Content[:i], m.Content[i+2:]...)
	}
	var sb strings.Builder
	sb.WriteString("\n" + e.field + ":\n")
	for _, r := range rules {
		sb.WriteString("  - " + r + "\n")
	}
	return sb.String()
}

func (e *ClashEmitter) existing(m *yaml.Node) []string {
	if e.overwrite {
		return nil
	}
	i := mappingIndex(m, e.field)
	if i < 0 || m.Content[i+1].Kind != yaml.SequenceNode {
		return nil
	}
	var out []string
	for _, n := range m.Content[i+1].Content {
		if n.Kind == yaml.ScalarNode {
			out = append(out, n.Value)
		}
	}
	return out
}

// rootMapping returns the top-level mapping of doc, creating it when doc is empty.
func rootMapping(doc *yaml.Node) *yaml.Node {
	if doc.Kind == 0 {
		doc.Kind = yaml.DocumentNode
	}
	if doc.Kind != yaml.DocumentNode {
		return ensureMapping(doc)
	}
	if len(doc.Content) == 0 {
		doc.Content = []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}
	}
	return ensureMapping(doc.Content[0])
}

func ensureMapping(n *yaml.Node) *yaml.Node {
	if n.Kind != yaml.MappingNode {
		*n = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	}
	return n
}

func mappingIndex(m *yaml.Node, key string) int {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return i
		}
	}
	return -1
}
