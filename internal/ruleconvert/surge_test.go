package ruleconvert

import (
	"reflect"
	"testing"

	"github.com/xiaobei/rulesconv/internal/ini"
)

const prefix = "http://127.0.0.1:25500"

func newSurge(t *testing.T, target Target, settings Settings, managedPrefix string, files ...string) *SurgeEmitter {
	t.Helper()
	local := make(map[string]bool, len(files))
	for _, f := range files {
		local[f] = true
	}
	e, err := NewSurgeEmitter(settings, nil, SurgeOptions{
		Target:        target,
		ManagedPrefix: managedPrefix,
		FileExists:    func(p string) bool { return local[p] },
	})
	if err != nil {
		t.Fatalf("new emitter: %v", err)
	}
	return e
}

func sectionLines(doc *ini.Document, name string) []string {
	s := doc.Section(name)
	if s == nil {
		return nil
	}
	return s.Values(ini.NoName)
}

func TestSurgeEmitter_InlineRules(t *testing.T) {
	doc := ini.New()
	sources := []RuleSource{
		InlineSource("Proxy", "AND,((DOMAIN,a.com),(DEST-PORT,443)),Proxy"),
		InlineSource("Direct", "GEOIP,CN"),
		InlineSource("Final", "MATCH"),
	}
	newSurge(t, TargetSurge3, Settings{}, "").Emit(doc, sources)

	want := []string{"AND,((DOMAIN,a.com),(DEST-PORT,443)),Proxy", "GEOIP,CN,Direct", "FINAL,Final"}
	if got := sectionLines(doc, "Rule"); !reflect.DeepEqual(got, want) {
		t.Fatalf("Rule = %q, want %q", got, want)
	}
}

func TestSurgeEmitter_InlineCollapsesEmptyField(t *testing.T) {
	doc := ini.New()
	newSurge(t, TargetSurge2, Settings{}, "").Emit(doc, []RuleSource{InlineSource("", "IP-CIDR,10.0.0.0/8,no-resolve")})
	if got := sectionLines(doc, "Rule"); !reflect.DeepEqual(got, []string{"IP-CIDR,10.0.0.0/8,no-resolve"}) {
		t.Fatalf("Rule = %q", got)
	}
}

func TestSurgeEmitter_LocalFileWithPrefix(t *testing.T) {
	content := &countingContent{text: "DOMAIN,a.com"}
	src := NewSource("Proxy", "/etc/rules/a.list", SourceSurge, content, 86400)
	doc := ini.New()
	newSurge(t, TargetSurge3, Settings{}, prefix+"/", "/etc/rules/a.list").Emit(doc, []RuleSource{src})

	want := "RULE-SET," + prefix + "/getruleset?type=1&url=" + EncodeURLSafe("surge:/etc/rules/a.list") + ",Proxy,update-interval=86400"
	if got := sectionLines(doc, "Rule"); !reflect.DeepEqual(got, []string{want}) {
		t.Fatalf("Rule = %q, want %q", got, want)
	}
	if content.calls != 0 {
		t.Fatalf("indirected source should not be fetched, got %d calls", content.calls)
	}
}

func TestSurgeEmitter_Links(t *testing.T) {
	surgeLink := NewSource("Proxy", "https://example.com/a.list", SourceSurge, StaticContent("DOMAIN,a.com"), 0)
	clashLink := NewSource("Proxy", "https://example.com/a.yaml", SourceClashDomain, StaticContent("payload:\n  - a.com"), 3600)

	t.Run("native rule-set", func(t *testing.T) {
		doc := ini.New()
		newSurge(t, TargetSurge3, Settings{}, "").Emit(doc, []RuleSource{surgeLink, clashLink})
		want := []string{"RULE-SET,https://example.com/a.list,Proxy"}
		if got := sectionLines(doc, "Rule"); !reflect.DeepEqual(got, want) {
			t.Fatalf("Rule = %q, want %q", got, want)
		}
	})

	t.Run("proxied foreign dialect", func(t *testing.T) {
		doc := ini.New()
		newSurge(t, TargetSurge3, Settings{}, prefix).Emit(doc, []RuleSource{clashLink})
		want := []string{"RULE-SET," + prefix + "/getruleset?type=1&url=" + EncodeURLSafe("clash-domain:https://example.com/a.yaml") + ",Proxy,update-interval=3600"}
		if got := sectionLines(doc, "Rule"); !reflect.DeepEqual(got, want) {
			t.Fatalf("Rule = %q, want %q", got, want)
		}
	})

	t.Run("loon remote rule", func(t *testing.T) {
		doc := ini.New()
		newSurge(t, TargetLoon, Settings{}, "").Emit(doc, []RuleSource{surgeLink})
		if got := sectionLines(doc, "Remote Rule"); !reflect.DeepEqual(got, []string{"https://example.com/a.list,Proxy"}) {
			t.Fatalf("Remote Rule = %q", got)
		}
		if got := sectionLines(doc, "Rule"); len(got) != 0 {
			t.Fatalf("Rule should be empty, got %q", got)
		}
	})
}

func TestSurgeEmitter_QuanXFilterRemote(t *testing.T) {
	quanx := NewSource("Proxy", "https://example.com/q.list", SourceQuanX, StaticContent("HOST,a.com,Proxy"), 0)
	local := NewSource("Direct", "/etc/rules/cn.list", SourceSurge, StaticContent("DOMAIN,cn.com"), 0)
	doc := ini.New()
	newSurge(t, TargetQuantumultX, Settings{}, prefix, "/etc/rules/cn.list").Emit(doc, []RuleSource{quanx, local})

	want := []string{
		"https://example.com/q.list, tag=Proxy, force-policy=Proxy, enabled=true",
		prefix + "/getruleset?type=2&url=" + EncodeURLSafe("surge:/etc/rules/cn.list") + "&group=" + EncodeURLSafe("Direct") + ", tag=Direct, enabled=true",
	}
	if got := sectionLines(doc, "filter_remote"); !reflect.DeepEqual(got, want) {
		t.Fatalf("filter_remote = %q, want %q", got, want)
	}
	if got := sectionLines(doc, "filter_local"); len(got) != 0 {
		t.Fatalf("filter_local should be empty, got %q", got)
	}
}

func TestSurgeEmitter_ExpandsContent(t *testing.T) {
	content := "IP-CIDR6,::/0,no-resolve\nIP-CIDR,1.0.0.0/8,foo\nDOMAIN-SUFFIX,a.com // note\nAND,((DOMAIN,b.com))\nFOO,bar\n; comment"
	src := NewSource("Proxy", "/etc/rules/a.list", SourceSurge, StaticContent(content), 0)

	tests := []struct {
		name    string
		target  Target
		section string
		want    []string
	}{
		{"quanx", TargetQuantumultX, "filter_local", []string{"IP6-CIDR,::/0,Proxy,no-resolve", "IP-CIDR,1.0.0.0/8,Proxy", "DOMAIN-SUFFIX,a.com,Proxy"}},
		{"quan drops ipv6", TargetQuantumult, "TCP", []string{"IP-CIDR,1.0.0.0/8,Proxy", "DOMAIN-SUFFIX,a.com,Proxy"}},
		{"surge3 keeps compound", TargetSurge3, "Rule", []string{"IP-CIDR6,::/0,Proxy,no-resolve", "IP-CIDR,1.0.0.0/8,Proxy,foo", "DOMAIN-SUFFIX,a.com,Proxy", "AND,((DOMAIN,b.com))"}},
		{"mellow", TargetMellow, "RoutingRule", []string{"IP-CIDR6,::/0,Proxy,no-resolve", "IP-CIDR,1.0.0.0/8,Proxy,foo", "DOMAIN-SUFFIX,a.com,Proxy"}},
		{"surfboard", TargetSurfboard, "Rule", []string{"IP-CIDR6,::/0,Proxy,no-resolve", "IP-CIDR,1.0.0.0/8,Proxy,foo", "DOMAIN-SUFFIX,a.com,Proxy"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := ini.New()
			newSurge(t, tt.target, Settings{}, "", "/etc/rules/a.list").Emit(doc, []RuleSource{src})
			if got := sectionLines(doc, tt.section); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("%s = %q, want %q", tt.section, got, tt.want)
			}
		})
	}
}

func TestSurgeEmitter_CompoundLinesCountTowardBudget(t *testing.T) {
	content := "AND,((DOMAIN,a.com),(DEST-PORT,443))\nDOMAIN,b.com\nFOO,bar\nDOMAIN,c.com"
	src := NewSource("P", "/etc/rules/c.list", SourceSurge, StaticContent(content), 0)

	doc := ini.New()
	newSurge(t, TargetSurge3, Settings{}, "", "/etc/rules/c.list").Emit(doc, []RuleSource{src})
	if got, want := doc.String(), "[Rule]\nAND,((DOMAIN,a.com),(DEST-PORT,443))\nDOMAIN,b.com,P\nDOMAIN,c.com,P\n"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}

	doc = ini.New()
	newSurge(t, TargetSurge3, Settings{MaxAllowedRules: 2}, "", "/etc/rules/c.list").Emit(doc, []RuleSource{src})
	want := []string{"AND,((DOMAIN,a.com),(DEST-PORT,443))", "DOMAIN,b.com,P"}
	if got := sectionLines(doc, "Rule"); !reflect.DeepEqual(got, want) {
		t.Fatalf("Rule = %q, want %q", got, want)
	}
}

func TestSurgeEmitter_SkipsEmptyInlineRule(t *testing.T) {
	doc := ini.New()
	newSurge(t, TargetSurge3, Settings{}, "").Emit(doc, []RuleSource{InlineSource("Proxy", ""), InlineSource("Direct", "GEOIP,CN")})
	if got := sectionLines(doc, "Rule"); !reflect.DeepEqual(got, []string{"GEOIP,CN,Direct"}) {
		t.Fatalf("Rule = %q", got)
	}
}

func TestSurgeEmitter_SkipsUnknownPath(t *testing.T) {
	content := &countingContent{text: "DOMAIN,a.com"}
	doc := ini.New()
	newSurge(t, TargetSurge3, Settings{}, prefix).Emit(doc, []RuleSource{NewSource("Proxy", "missing.list", SourceSurge, content, 0)})
	if got := sectionLines(doc, "Rule"); len(got) != 0 {
		t.Fatalf("Rule should be empty, got %q", got)
	}
	if content.calls != 0 {
		t.Fatalf("missing path should not be fetched")
	}
}

func TestSurgeEmitter_BudgetCountsRuleSet(t *testing.T) {
	sources := []RuleSource{
		NewSource("A", "https://example.com/a.list", SourceSurge, nil, 0),
		NewSource("B", "https://example.com/b.list", SourceSurge, nil, 0),
	}
	doc := ini.New()
	newSurge(t, TargetSurge3, Settings{MaxAllowedRules: 1}, "").Emit(doc, sources)
	if got := sectionLines(doc, "Rule"); !reflect.DeepEqual(got, []string{"RULE-SET,https://example.com/a.list,A"}) {
		t.Fatalf("Rule = %q", got)
	}
}

func TestSurgeEmitter_Overwrite(t *testing.T) {
	doc, err := ini.Parse("[General]\nloglevel = notify\n[Rule]\nDOMAIN,old.com,DIRECT\n[Remote Rule]\nhttps://old/list,DIRECT\n", SurgeSections...)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	e, err := NewSurgeEmitter(Settings{}, nil, SurgeOptions{Target: TargetLoon, Overwrite: true})
	if err != nil {
		t.Fatalf("new emitter: %v", err)
	}
	e.Emit(doc, []RuleSource{InlineSource("Proxy", "GEOIP,US")})

	if got := sectionLines(doc, "Rule"); !reflect.DeepEqual(got, []string{"GEOIP,US,Proxy"}) {
		t.Fatalf("Rule = %q", got)
	}
	if got := sectionLines(doc, "Remote Rule"); len(got) != 0 {
		t.Fatalf("Remote Rule should be erased, got %q", got)
	}
	if v, _ := doc.Get("General", "loglevel"); v != "notify" {
		t.Fatalf("General.loglevel = %q", v)
	}
}

func TestNewSurgeEmitter_RejectsOtherTargets(t *testing.T) {
	if _, err := NewSurgeEmitter(Settings{}, nil, SurgeOptions{Target: TargetClash}); err == nil {
		t.Fatal("expected error for clash target")
	}
}
