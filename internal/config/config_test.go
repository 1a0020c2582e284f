package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Server.BasePath != "/v1" || cfg.Stats.UrgentWithinDays != 3 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	ttl, _ := cfg.TokenTTL()
	if ttl != 24*time.Hour {
		t.Fatalf("ttl = %v", ttl)
	}
	ws, _ := cfg.WeekStart()
	if ws != time.Sunday {
		t.Fatalf("week start = %v", ws)
	}
}

func TestFromYAMLOverridesAndKeepsDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("calendar:\n  week_starts_on: Monday\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ws, _ := cfg.WeekStart()
	if ws != time.Monday {
		t.Fatalf("week start = %v", ws)
	}
	if cfg.Server.Addr != "127.0.0.1:8080" {
		t.Fatalf("addr default lost: %q", cfg.Server.Addr)
	}
}

func TestFromYAMLRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad yaml":      "server: [",
		"bad weekday":   "calendar:\n  week_starts_on: someday\n",
		"bad ttl":       "auth:\n  token_ttl: forever\n",
		"base path":     "server:\n  base_path: v1\n",
		"negative days": "stats:\n  urgent_within_days: -1\n",
		"zero days":     "stats:\n  urgent_within_days: 0\n",
	}
	for name, doc := range cases {
		if _, err := FromYAML([]byte(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil {
		t.Fatalf("load optional: %v", err)
	}
	if cfg.Server.Addr == "" {
		t.Fatalf("expected defaults")
	}
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected missing config error")
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("stats:\n  urgent_within_days: 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadOptional(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Stats.UrgentWithinDays != 5 {
		t.Fatalf("urgent days = %d", cfg.Stats.UrgentWithinDays)
	}
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	if _, err := FromFile(filepath.Join(dir, "missing.yml")); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	path := filepath.Join(dir, "other.yml")
	if err := os.WriteFile(path, []byte("server:\n  addr: :9000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := FromFile(path)
	if err != nil {
		t.Fatalf("from file: %v", err)
	}
	if cfg.Server.Addr != ":9000" || cfg.Server.BasePath != "/v1" {
		t.Fatalf("unexpected config: %+v", cfg.Server)
	}
}
