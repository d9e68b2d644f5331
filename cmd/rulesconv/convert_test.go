package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "rules.yaml", `
settings:
  max_allowed_rules: 10
rulesets:
  - group: Proxy
    path: lists/proxy.list
  - group: Media
    path: clash-classic:media.yaml
  - group: Remote
    path: https://example.com/a.list
    enabled: false
  - group: DIRECT
    path: "[]GEOIP,CN"
`)

	settings, rulesets, err := loadConfig(cfg)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if settings.MaxAllowedRules != 10 || !settings.SingBoxAddClashModes {
		t.Fatalf("settings = %+v, want cap 10 and defaults kept", settings)
	}
	if len(rulesets) != 4 {
		t.Fatalf("rulesets = %d, want 4", len(rulesets))
	}

	tests := []struct {
		path    string
		enabled bool
	}{
		{filepath.Join(dir, "lists/proxy.list"), true},
		{"clash-classic:" + filepath.Join(dir, "media.yaml"), true},
		{"https://example.com/a.list", false},
		{"[]GEOIP,CN", true},
	}
	for i, tt := range tests {
		if rulesets[i].Path != tt.path || rulesets[i].Enabled != tt.enabled {
			t.Fatalf("ruleset %d = %+v, want path %q enabled %v", i, rulesets[i], tt.path, tt.enabled)
		}
		if rulesets[i].Priority != i {
			t.Fatalf("ruleset %d priority = %d", i, rulesets[i].Priority)
		}
	}

	bad := writeFile(t, dir, "bad.yaml", "rulesets:\n  - path: x.list\n")
	if _, _, err := loadConfig(bad); err == nil {
		t.Fatal("expected validation error for missing group")
	}
}

func TestRunConvert(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "proxy.list", "DOMAIN-SUFFIX,google.com\nIP-CIDR,8.8.8.8/32,no-resolve\n")
	writeFile(t, dir, "media.yaml", "payload:\n  - DOMAIN-SUFFIX,netflix.com\n")
	cfg := writeFile(t, dir, "rules.yaml", `
rulesets:
  - group: Proxy
    path: proxy.list
  - group: Media
    path: media.yaml
    type: clash-classic
  - group: Final
    path: "[]MATCH"
`)
	base := writeFile(t, dir, "base.conf", "[General]\nloglevel = notify\n\n[Rule]\nDOMAIN,old.com,DIRECT\n")

	var out bytes.Buffer
	if err := runConvert(context.Background(), cfg, "surge2", base, true, &out); err != nil {
		t.Fatalf("runConvert: %v", err)
	}
	want := "[General]\nloglevel = notify\n\n[Rule]\n" +
		"DOMAIN-SUFFIX,google.com,Proxy\n" +
		"IP-CIDR,8.8.8.8/32,Proxy,no-resolve\n" +
		"DOMAIN-SUFFIX,netflix.com,Media\n" +
		"FINAL,Final\n"
	if out.String() != want {
		t.Fatalf("output:\n%s\nwant:\n%s", out.String(), want)
	}

	out.Reset()
	if err := runConvert(context.Background(), cfg, "clash", "", false, &out); err != nil {
		t.Fatalf("runConvert clash: %v", err)
	}
	if !strings.Contains(out.String(), "  - DOMAIN-SUFFIX,netflix.com,Media\n") || !strings.Contains(out.String(), "  - MATCH,Final\n") {
		t.Fatalf("clash output:\n%s", out.String())
	}

	if err := runConvert(context.Background(), cfg, "v2ray", "", false, &out); err == nil {
		t.Fatal("expected error for unknown target")
	}
}
