package ruleconvert

import "strings"

// Rule is a canonical TYPE,VALUE[,OPTION] rule.
type Rule struct {
	Type   string
	Value  string
	Option string
}

// ParseRule splits a canonical line into its fields. Fields past the third are ignored.
func ParseRule(line string) Rule {
	fields := strings.SplitN(line, ",", 4)
	r := Rule{Type: strings.TrimSpace(fields[0])}
	if len(fields) > 1 {
		r.Value = strings.TrimSpace(fields[1])
	}
	if len(fields) > 2 {
		r.Option = strings.TrimSpace(fields[2])
	}
	return r
}

// String joins the rule back into canonical form.
func (r Rule) String() string {
	if r.Value == "" {
		return r.Type
	}
	if r.Option == "" {
		return r.Type + "," + r.Value
	}
	return r.Type + "," + r.Value + "," + r.Option
}

// RuleTable is a fixed set of rule type tokens recognized by a target.
type RuleTable struct {
	types []string
	exact bool
}

func newTable(exact bool, groups ...[]string) RuleTable {
	var types []string
	for _, g := range groups {
		types = append(types, g...)
	}
	return RuleTable{types: types, exact: exact}
}

// Accepts reports whether the line's type is recognized.
// Prefix tables match any line starting with a token, so IP-CIDR admits IP-CIDR6.
func (t RuleTable) Accepts(line string) bool {
	if t.exact {
		typ, _, _ := strings.Cut(line, ",")
		for _, x := range t.types {
			if typ == x {
				return true
			}
		}
		return false
	}
	for _, x := range t.types {
		if strings.HasPrefix(line, x) {
			return true
		}
	}
	return false
}

// Types returns a copy of the table's tokens.
func (t RuleTable) Types() []string {
	return append([]string(nil), t.types...)
}

var basicTypes = []string{"DOMAIN", "DOMAIN-SUFFIX", "DOMAIN-KEYWORD", "IP-CIDR", "SRC-IP-CIDR", "GEOIP", "MATCH", "FINAL"}

var (
	clashTypes     = newTable(false, basicTypes, []string{"IP-CIDR6", "SRC-PORT", "DST-PORT", "PROCESS-NAME"})
	surge2Types    = newTable(false, basicTypes, []string{"IP-CIDR6", "USER-AGENT", "URL-REGEX", "PROCESS-NAME", "IN-PORT", "DEST-PORT", "SRC-IP"})
	surgeTypes     = newTable(false, basicTypes, []string{"IP-CIDR6", "USER-AGENT", "URL-REGEX", "AND", "OR", "NOT", "PROCESS-NAME", "IN-PORT", "DEST-PORT", "SRC-IP"})
	quanXTypes     = newTable(false, basicTypes, []string{"USER-AGENT", "HOST", "HOST-SUFFIX", "HOST-KEYWORD"})
	surfboardTypes = newTable(false, basicTypes, []string{"IP-CIDR6", "PROCESS-NAME", "IN-PORT", "DEST-PORT", "SRC-IP"})
	singBoxTypes   = newTable(true, basicTypes, []string{
		"IP-VERSION", "INBOUND", "PROTOCOL", "NETWORK", "GEOSITE", "SRC-GEOIP", "DOMAIN-REGEX",
		"PROCESS-NAME", "PROCESS-PATH", "PACKAGE-NAME", "PORT", "PORT-RANGE", "SRC-PORT",
		"SRC-PORT-RANGE", "USER", "USER-ID",
	})
)

// ClashTypes returns the Clash rule table.
func ClashTypes() RuleTable { return clashTypes }

// Surge2Types returns the table for Surge 2, Mellow and Loon.
func Surge2Types() RuleTable { return surge2Types }

// SurgeTypes returns the table for Surge 3 and above.
func SurgeTypes() RuleTable { return surgeTypes }

// QuanXTypes returns the table shared by Quantumult and QuantumultX.
func QuanXTypes() RuleTable { return quanXTypes }

// SurfboardTypes returns the Surfboard rule table.
func SurfboardTypes() RuleTable { return surfboardTypes }

// SingBoxTypes returns the SingBox rule table.
func SingBoxTypes() RuleTable { return singBoxTypes }

func isCatchAll(typ string) bool {
	return typ == "MATCH" || typ == "FINAL"
}

func isCompound(line string) bool {
	return strings.HasPrefix(line, "AND") || strings.HasPrefix(line, "OR") || strings.HasPrefix(line, "NOT")
}

func ruleType(line string) string {
	typ, _, _ := strings.Cut(line, ",")
	return strings.TrimSpace(typ)
}
