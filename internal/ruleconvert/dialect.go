package ruleconvert

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// SourceDialect is the syntax a ruleset source is written in.
type SourceDialect int

const (
	SourceSurge SourceDialect = iota
	SourceClashDomain
	SourceClashClassical
	SourceQuanX
)

var dialectNames = map[SourceDialect]string{
	SourceSurge:          "surge",
	SourceClashDomain:    "clash-domain",
	SourceClashClassical: "clash-classic",
	SourceQuanX:          "quanx",
}

func (d SourceDialect) String() string {
	if name, ok := dialectNames[d]; ok {
		return name
	}
	return fmt.Sprintf("SourceDialect(%d)", int(d))
}

// ParseSourceDialect maps a dialect name to its value. An empty name is Surge.
func ParseSourceDialect(name string) (SourceDialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "surge":
		return SourceSurge, nil
	case "clash-domain", "clash-ipcidr", "clash":
		return SourceClashDomain, nil
	case "clash-classic", "clash-classical":
		return SourceClashClassical, nil
	case "quanx", "quantumultx":
		return SourceQuanX, nil
	}
	return SourceSurge, fmt.Errorf("unknown ruleset type %q", name)
}

var typedPrefixes = []struct {
	prefix  string
	dialect SourceDialect
}{
	{"clash-domain:", SourceClashDomain},
	{"clash-ipcidr:", SourceClashDomain},
	{"clash-classic:", SourceClashClassical},
	{"quanx:", SourceQuanX},
	{"surge:", SourceSurge},
}

// ParseTypedPath splits a dialect-tagged path. Untagged paths are Surge.
func ParseTypedPath(typed string) (SourceDialect, string) {
	for _, p := range typedPrefixes {
		if strings.HasPrefix(typed, p.prefix) {
			return p.dialect, typed[len(p.prefix):]
		}
	}
	return SourceSurge, typed
}

// TypedPath tags path with its dialect so it survives an indirection URL.
func TypedPath(d SourceDialect, path string) string {
	switch d {
	case SourceClashDomain:
		return "clash-domain:" + path
	case SourceClashClassical:
		return "clash-classic:" + path
	case SourceQuanX:
		return "quanx:" + path
	}
	return "surge:" + path
}

// EncodeURLSafe is URL-safe base64 without padding.
func EncodeURLSafe(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

// DecodeURLSafe reverses EncodeURLSafe, tolerating padding and the standard alphabet.
func DecodeURLSafe(s string) (string, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	s = strings.NewReplacer("+", "-", "/", "_").Replace(s)
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("decode base64: %w", err)
	}
	return string(b), nil
}

// Target is an output client format.
type Target int

const (
	TargetClash Target = iota
	TargetMellow
	TargetSurge2
	TargetSurge3
	TargetSurfboard
	TargetLoon
	TargetQuantumult
	TargetQuantumultX
	TargetSingBox
)

var targetNames = []string{"clash", "mellow", "surge2", "surge3", "surfboard", "loon", "quan", "quanx", "singbox"}

func (t Target) String() string {
	if int(t) >= 0 && int(t) < len(targetNames) {
		return targetNames[t]
	}
	return fmt.Sprintf("Target(%d)", int(t))
}

// ParseTarget accepts the target names used on the command line and in the API.
func ParseTarget(name string) (Target, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "surge", "surge4":
		return TargetSurge3, true
	case "quantumult":
		return TargetQuantumult, true
	case "quantumultx":
		return TargetQuantumultX, true
	case "sing-box":
		return TargetSingBox, true
	}
	for i, n := range targetNames {
		if n == name {
			return Target(i), true
		}
	}
	return 0, false
}

// IsSurgeFamily reports whether the target renders into an INI document.
func (t Target) IsSurgeFamily() bool {
	return t >= TargetMellow && t <= TargetQuantumultX
}
