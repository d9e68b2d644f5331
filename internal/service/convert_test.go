package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xiaobei/rulesconv/internal/fetcher"
	"github.com/xiaobei/rulesconv/internal/ruleconvert"
	"github.com/xiaobei/rulesconv/internal/storage"
)

const remoteList = "DOMAIN-SUFFIX,google.com\n# comment\nIP-CIDR,1.1.1.1/32,no-resolve\nIP-CIDR6,2001:db8::/32,no-resolve\n"

func newTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(t.TempDir())
	if err != nil {
		t.Fatalf("create sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newRuleServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newConvertService(t *testing.T, store storage.Store, rulesets ...storage.Ruleset) *ConvertService {
	t.Helper()
	for i, rs := range rulesets {
		rs.ID = string(rune('a' + i))
		rs.Priority = i
		rs.Enabled = true
		if err := store.AddRuleset(rs); err != nil {
			t.Fatalf("add ruleset: %v", err)
		}
	}
	return NewConvertService(store, fetcher.NewFetcher(store, time.Second, time.Hour))
}

func TestConvert_Clash(t *testing.T) {
	store := newTestStore(t)
	srv := newRuleServer(t, remoteList)
	svc := newConvertService(t, store,
		storage.Ruleset{Group: "Proxy", Path: srv.URL + "/a.list"},
		storage.Ruleset{Group: "DIRECT", Path: "[]GEOIP,CN"},
		storage.Ruleset{Group: "Final", Path: "[]FINAL"},
	)

	base := "port: 7890\nrules:\n  - DOMAIN,old.com,DIRECT\n"
	got, err := svc.Convert(context.Background(), ConvertRequest{Target: "clash", Base: base})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	want := "port: 7890\nrules:\n" +
		"  - DOMAIN,old.com,DIRECT\n" +
		"  - DOMAIN-SUFFIX,google.com,Proxy\n" +
		"  - IP-CIDR,1.1.1.1/32,Proxy,no-resolve\n" +
		"  - IP-CIDR6,2001:db8::/32,Proxy,no-resolve\n" +
		"  - GEOIP,CN,DIRECT\n" +
		"  - MATCH,Final\n"
	if got != want {
		t.Fatalf("Convert clash:\ngot:\n%s\nwant:\n%s", got, want)
	}

	legacy := false
	legacyBase := "Rule:\n  - DOMAIN,old.com,DIRECT\n"
	got, err = svc.Convert(context.Background(), ConvertRequest{Target: "clash", Base: legacyBase, Overwrite: true, NewFieldName: &legacy})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !strings.HasPrefix(got, "Rule:\n  - DOMAIN-SUFFIX,google.com,Proxy\n") || strings.Contains(got, "old.com") {
		t.Fatalf("legacy overwrite output:\n%s", got)
	}
}

func TestConvert_ClashSplice(t *testing.T) {
	store := newTestStore(t)
	svc := newConvertService(t, store,
		storage.Ruleset{Group: "DIRECT", Path: "[]GEOIP,CN"},
		storage.Ruleset{Group: "Final", Path: "[]FINAL"},
	)

	got, err := svc.Convert(context.Background(), ConvertRequest{Target: "clash", Base: "port: 7890\nrules:\n  - DOMAIN,old.com,DIRECT\n", Splice: true})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	want := "port: 7890\n\nrules:\n  - DOMAIN,old.com,DIRECT\n  - GEOIP,CN,DIRECT\n  - MATCH,Final\n"
	if got != want {
		t.Fatalf("Convert splice:\ngot:\n%s\nwant:\n%s", got, want)
	}

	got, err = svc.Convert(context.Background(), ConvertRequest{Target: "clash", Splice: true})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if want := "rules:\n  - GEOIP,CN,DIRECT\n  - MATCH,Final\n"; got != want {
		t.Fatalf("Convert splice without base = %q, want %q", got, want)
	}
}

func TestConvert_DisabledAndPriority(t *testing.T) {
	store := newTestStore(t)
	svc := NewConvertService(store, fetcher.NewFetcher(nil, time.Second, time.Hour))
	rulesets := []storage.Ruleset{
		{Group: "B", Path: "[]DOMAIN,b.com", Priority: 2, Enabled: true},
		{Group: "A", Path: "[]DOMAIN,a.com", Priority: 1, Enabled: true},
		{Group: "X", Path: "[]DOMAIN,x.com", Priority: 0, Enabled: false},
	}
	got, err := svc.ConvertWith(context.Background(), ConvertRequest{Target: "surge2"}, storage.DefaultSettings(), rulesets)
	if err != nil {
		t.Fatalf("ConvertWith: %v", err)
	}
	want := "[Rule]\nDOMAIN,a.com,A\nDOMAIN,b.com,B\n"
	if got != want {
		t.Fatalf("ConvertWith = %q, want %q", got, want)
	}
}

func TestConvert_SurgeWithPrefix(t *testing.T) {
	store := newTestStore(t)
	settings := store.GetSettings()
	settings.ManagedPrefix = "http://127.0.0.1:8080/"
	if err := store.UpdateSettings(settings); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	svc := newConvertService(t, store,
		storage.Ruleset{Group: "Proxy", Path: "https://example.com/a.list", UpdateInterval: 86400},
		storage.Ruleset{Group: "Media", Path: "https://example.com/b.yaml", Type: "clash-classic"},
		storage.Ruleset{Group: "Final", Path: "[]MATCH"},
	)

	got, err := svc.Convert(context.Background(), ConvertRequest{Target: "surge4", Base: "[General]\nloglevel = notify\n"})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	enc := ruleconvert.EncodeURLSafe("clash-classic:https://example.com/b.yaml")
	want := "[General]\nloglevel = notify\n\n[Rule]\n" +
		"RULE-SET,https://example.com/a.list,Proxy,update-interval=86400\n" +
		"RULE-SET,http://127.0.0.1:8080/getruleset?type=1&url=" + enc + ",Media\n" +
		"FINAL,Final\n"
	if got != want {
		t.Fatalf("Convert surge:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestConvert_SingBox(t *testing.T) {
	store := newTestStore(t)
	srv := newRuleServer(t, remoteList)
	svc := newConvertService(t, store,
		storage.Ruleset{Group: "Proxy", Path: srv.URL + "/a.list"},
		storage.Ruleset{Group: "direct", Path: "[]MATCH"},
	)

	got, err := svc.Convert(context.Background(), ConvertRequest{Target: "singbox", Base: `{"log":{"level":"info"}}`})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	var doc struct {
		Log   map[string]any `json:"log"`
		Route struct {
			Rules []map[string]any `json:"rules"`
			Final string           `json:"final"`
		} `json:"route"`
	}
	if err := json.Unmarshal([]byte(got), &doc); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, got)
	}
	if doc.Log["level"] != "info" {
		t.Fatalf("base document lost: %s", got)
	}
	if doc.Route.Final != "direct" {
		t.Fatalf("final = %q, want direct", doc.Route.Final)
	}
	// clash modes, dns, one merged rule
	if len(doc.Route.Rules) != 4 {
		t.Fatalf("rules = %d, want 4: %s", len(doc.Route.Rules), got)
	}
	merged := doc.Route.Rules[3]
	if merged["outbound"] != "Proxy" {
		t.Fatalf("merged outbound = %v", merged["outbound"])
	}
	if cidrs, _ := merged["ip_cidr"].([]any); len(cidrs) != 1 || cidrs[0] != "1.1.1.1/32" {
		t.Fatalf("ip_cidr = %v", merged["ip_cidr"])
	}
}

func TestConvert_Errors(t *testing.T) {
	store := newTestStore(t)
	svc := NewConvertService(store, fetcher.NewFetcher(nil, time.Second, time.Hour))

	if _, err := svc.Convert(context.Background(), ConvertRequest{Target: "v2ray"}); !errors.Is(err, ErrUnknownTarget) {
		t.Fatalf("unknown target err = %v, want ErrUnknownTarget", err)
	}
	if _, err := svc.Convert(context.Background(), ConvertRequest{Target: "clash", Base: "rules: [unclosed"}); !errors.Is(err, ErrBadParameter) {
		t.Fatalf("yaml parse err = %v, want ErrBadParameter", err)
	}
	if _, err := svc.Convert(context.Background(), ConvertRequest{Target: "singbox", Base: "{"}); err == nil {
		t.Fatal("expected json parse error")
	}
	if _, err := svc.Convert(context.Background(), ConvertRequest{Target: "loon", Base: "[Rule"}); err == nil {
		t.Fatal("expected ini parse error")
	}
}

func TestRuleset_Kinds(t *testing.T) {
	store := newTestStore(t)
	srv := newRuleServer(t, remoteList+"FINAL,DIRECT\n")
	svc := NewConvertService(store, fetcher.NewFetcher(store, time.Second, time.Hour))
	url := ruleconvert.EncodeURLSafe("surge:" + srv.URL + "/a.list")

	got, err := svc.Ruleset(context.Background(), RulesetSurge, url, "")
	if err != nil {
		t.Fatalf("Ruleset(1): %v", err)
	}
	want := "DOMAIN-SUFFIX,google.com\nIP-CIDR,1.1.1.1/32,no-resolve\nIP-CIDR6,2001:db8::/32,no-resolve"
	if got != want {
		t.Fatalf("Ruleset(1) = %q, want %q", got, want)
	}

	got, err = svc.Ruleset(context.Background(), RulesetQuanX, url, ruleconvert.EncodeURLSafe("Proxy"))
	if err != nil {
		t.Fatalf("Ruleset(2): %v", err)
	}
	want = "DOMAIN-SUFFIX,google.com,Proxy\nIP-CIDR,1.1.1.1/32,Proxy,no-resolve\nIP6-CIDR,2001:db8::/32,Proxy,no-resolve"
	if got != want {
		t.Fatalf("Ruleset(2) = %q, want %q", got, want)
	}

	if _, err := svc.Ruleset(context.Background(), 3, url, ""); !errors.Is(err, ErrBadRulesetKind) {
		t.Fatalf("Ruleset(3) err = %v, want ErrBadRulesetKind", err)
	}
	if _, err := svc.Ruleset(context.Background(), RulesetQuanX, url, ""); err == nil {
		t.Fatal("expected error for missing group")
	}
}

func TestRefreshCache_RemoteOnly(t *testing.T) {
	store := newTestStore(t)
	srv := newRuleServer(t, remoteList)
	svc := newConvertService(t, store,
		storage.Ruleset{Group: "A", Path: srv.URL + "/a.list"},
		storage.Ruleset{Group: "B", Path: "clash-domain:" + srv.URL + "/b.yaml"},
		storage.Ruleset{Group: "C", Path: srv.URL + "/a.list"},
		storage.Ruleset{Group: "D", Path: "[]GEOIP,CN"},
	)

	if paths := svc.RemotePaths(); len(paths) != 2 {
		t.Fatalf("RemotePaths = %v, want 2 unique links", paths)
	}
	n, err := svc.RefreshCache(context.Background())
	if err != nil {
		t.Fatalf("RefreshCache: %v", err)
	}
	if n != 2 {
		t.Fatalf("changed = %d, want 2", n)
	}
	if _, err := store.GetCachedContent(srv.URL + "/b.yaml"); err != nil {
		t.Fatalf("cache row missing: %v", err)
	}
}
