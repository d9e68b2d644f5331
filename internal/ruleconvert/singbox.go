package ruleconvert

import "strings"

var _ Emitter[map[string]any] = (*SingBoxEmitter)(nil)

// RouteRule is one sing-box route rule object.
type RouteRule map[string]any

// SingBoxEmitter writes route.rules and route.final of a sing-box JSON document.
type SingBoxEmitter struct {
	engine
	overwrite bool
}

func NewSingBoxEmitter(settings Settings, log Logger, overwrite bool) *SingBoxEmitter {
	return &SingBoxEmitter{engine: newEngine(settings, log), overwrite: overwrite}
}

// Emit appends converted sources to doc["route"]["rules"] and sets route.final.
func (e *SingBoxEmitter) Emit(doc map[string]any, sources []RuleSource) {
	route, _ := doc["route"].(map[string]any)
	if route == nil {
		route = map[string]any{}
		doc["route"] = route
	}
	var rules []any
	if !e.overwrite {
		if existing, ok := route["rules"].([]any); ok {
			rules = append(rules, existing...)
		}
	}
	if e.settings.SingBoxAddClashModes {
		rules = append(rules,
			RouteRule{"clash_mode": "Global", "outbound": "GLOBAL"},
			RouteRule{"clash_mode": "Direct", "outbound": "DIRECT"},
		)
	}
	rules = append(rules, RouteRule{"protocol": "dns", "outbound": "dns-out"})

	budget := e.budget()
	final := ""
	for _, src := range sources {
		if budget.Exhausted() {
			break
		}
		content, ok := e.resolve(src)
		if !ok {
			continue
		}
		if isInline(content) {
			r := ParseRule(inlineRule(content))
			if isCatchAll(r.Type) {
				final = src.Group
				continue
			}
			if r.Value == "" || !budget.Take() {
				continue
			}
			rules = append(rules, RouteRule{singBoxKey(r.Type): strings.ToLower(r.Value), "outbound": src.Group})
			continue
		}
		rule := RouteRule{}
		for _, line := range ruleLines(Normalize(content, src.Dialect)) {
			if budget.Exhausted() {
				break
			}
			line = StripComment(line)
			if !singBoxTypes.Accepts(line) {
				continue
			}
			r := ParseRule(line)
			if isCatchAll(r.Type) || r.Value == "" {
				continue
			}
			if !budget.Take() {
				break
			}
			key := singBoxKey(r.Type)
			values, _ := rule[key].([]string)
			rule[key] = append(values, strings.ToLower(r.Value))
		}
		if len(rule) == 0 {
			continue
		}
		rule["outbound"] = src.Group
		rules = append(rules, rule)
	}
	route["rules"] = rules
	route["final"] = final
}

// singBoxKey maps a canonical type such as SRC-IP-CIDR to its sing-box key.
func singBoxKey(typ string) string {
	key := strings.ReplaceAll(strings.ToLower(typ), "-", "_")
	if key == "ip_cidr6" {
		key = "ip_cidr"
	}
	if strings.HasPrefix(key, "src_") {
		key = "source_" + key[len("src_"):]
	}
	return key
}
