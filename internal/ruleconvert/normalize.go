package ruleconvert

import (
	"net/netip"
	"strings"
)

// Normalize turns raw text of dialect d into canonical TYPE,VALUE[,OPTION] lines.
// Surge text is returned unchanged.
func Normalize(content string, d SourceDialect) string {
	if d == SourceSurge {
		return content
	}
	if hasPayloadHeader(content) {
		payload := stripPayload(content)
		if d == SourceClashClassical {
			return payload
		}
		return classifyPayload(payload)
	}
	return rewriteQuanX(content)
}

// SplitLines splits on \n when present, otherwise on \r, trimming a trailing \r.
func SplitLines(content string) []string {
	if content == "" {
		return nil
	}
	sep := "\n"
	if !strings.Contains(content, "\n") {
		sep = "\r"
	}
	lines := strings.Split(content, sep)
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// IsComment reports whether a trimmed line is a comment.
func IsComment(line string) bool {
	return strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//")
}

// StripComment removes a trailing // comment and surrounding whitespace.
func StripComment(line string) string {
	if i := strings.Index(line, "//"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

// ruleLines returns the trimmed, non-blank, non-comment lines of content.
func ruleLines(content string) []string {
	var out []string
	for _, l := range SplitLines(content) {
		l = strings.TrimSpace(l)
		if l == "" || IsComment(l) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func hasPayloadHeader(content string) bool {
	for _, l := range SplitLines(content) {
		if strings.TrimRight(l, " \t") == "payload:" {
			return true
		}
	}
	return false
}

func stripPayload(content string) string {
	lines := SplitLines(content)
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.TrimRight(l, " \t") == "payload:" {
			continue
		}
		if item, ok := listItem(l); ok {
			l = item
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}

// listItem unwraps a YAML sequence entry such as `  - 'example.com'`.
func listItem(line string) (string, bool) {
	rest := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(rest, "-") {
		return "", false
	}
	rest = rest[1:]
	if rest == "" || (rest[0] != ' ' && rest[0] != '\t') {
		return "", false
	}
	rest = strings.TrimLeft(rest, " \t")
	if n := len(rest); n >= 2 && (rest[0] == '\'' || rest[0] == '"') && rest[n-1] == rest[0] {
		rest = rest[1 : n-1]
	}
	return rest, true
}

func classifyPayload(payload string) string {
	var out []string
	for _, l := range ruleLines(payload) {
		l = StripComment(l)
		if l == "" {
			continue
		}
		if c := classifyLine(l); c != "" {
			out = append(out, c)
		}
	}
	return strings.Join(out, "\n")
}

func classifyLine(line string) string {
	if i := strings.IndexByte(line, '/'); i >= 0 {
		if addr, err := netip.ParseAddr(line[:i]); err == nil && addr.Is4() {
			return "IP-CIDR," + line
		}
		return "IP-CIDR6," + line
	}
	if !strings.HasPrefix(line, ".") && !strings.HasPrefix(line, "+.") {
		return "DOMAIN," + line
	}
	keyword := false
	for strings.HasSuffix(line, ".*") {
		keyword = true
		line = line[:len(line)-2]
	}
	if strings.HasPrefix(line, "+.") {
		line = line[2:]
	} else {
		line = strings.TrimPrefix(line, ".")
	}
	if line == "" {
		return ""
	}
	if keyword {
		return "DOMAIN-KEYWORD," + line
	}
	return "DOMAIN-SUFFIX," + line
}

var quanXGroupTypes = map[string]bool{
	"DOMAIN":         true,
	"DOMAIN-SUFFIX":  true,
	"DOMAIN-KEYWORD": true,
	"IP-CIDR":        true,
	"IP-CIDR6":       true,
	"USER-AGENT":     true,
}

func rewriteQuanX(content string) string {
	lines := SplitLines(content)
	for i, l := range lines {
		lines[i] = rewriteQuanXLine(l)
	}
	return strings.Join(lines, "\n")
}

// rewriteQuanXLine drops the policy field of TYPE,VALUE,POLICY[,no-resolve].
func rewriteQuanXLine(line string) string {
	lower := strings.ToLower(line)
	switch {
	case strings.HasPrefix(lower, "host"):
		line = "DOMAIN" + line[len("host"):]
	case strings.HasPrefix(lower, "ip6-cidr"):
		line = "IP-CIDR6" + line[len("ip6-cidr"):]
	}
	fields := strings.Split(line, ",")
	typ := strings.ToUpper(fields[0])
	if len(fields) < 3 || !quanXGroupTypes[typ] {
		return line
	}
	// A no-resolve right after the value belongs to the value, not the policy.
	k := 1
	for k+1 < len(fields) && strings.HasPrefix(fields[k+1], "no-resolve") {
		k++
	}
	if k+1 >= len(fields) {
		return line
	}
	value := strings.TrimLeft(strings.Join(fields[1:k+1], ","), " \t")
	out := typ + "," + value
	if last := len(fields) - 1; last > k+1 && fields[last] == "no-resolve" {
		out += ",no-resolve"
	}
	return out
}
