package ruleconvert

import "strings"

// SurgeRuleset renders content as a Surge RULE-SET body: canonical lines without a policy.
func SurgeRuleset(content string, d SourceDialect, budget *Budget) string {
	var out []string
	for _, line := range ruleLines(Normalize(content, d)) {
		if budget.Exhausted() {
			break
		}
		if !surgeTypes.Accepts(line) {
			continue
		}
		line = StripComment(line)
		if isCatchAll(ruleType(line)) {
			continue
		}
		if budget.Take() {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// QuanXRuleset renders content as a QuantumultX filter_remote body with group as policy.
func QuanXRuleset(content string, d SourceDialect, group string, budget *Budget) string {
	var out []string
	for _, line := range ruleLines(Normalize(content, d)) {
		if budget.Exhausted() {
			break
		}
		if !quanXTypes.Accepts(line) {
			continue
		}
		line = StripComment(line)
		if isCatchAll(ruleType(line)) {
			continue
		}
		if budget.Take() {
			out = append(out, toQuanXLine(line, group))
		}
	}
	return strings.Join(out, "\n")
}
