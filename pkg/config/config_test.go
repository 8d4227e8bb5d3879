package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadParsesDurationsAndKeys(t *testing.T) {
	p := writeConfig(t, `
server:
  address: 127.0.0.1
  port: 9090
  db_path: /tmp/mikradb
source:
  base_url: https://texts.example.org/api
  timeout: 5s
  retries: 2
shared:
  base_url: https://shared.example.org
  api_key: sek
  timeout: 750ms
cache:
  memory_size: 64
  memory_ttl: 30m
tracker:
  save_interval: 3
security:
  api_keys:
    frontend: ["f1", "f2"]
    admin: ["a1"]
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Addr(); got != "127.0.0.1:9090" {
		t.Fatalf("Addr: got %q", got)
	}
	if got := cfg.Source.Timeout.Duration(); got != 5*time.Second {
		t.Fatalf("source timeout: got %v", got)
	}
	if got := cfg.Shared.Timeout.Duration(); got != 750*time.Millisecond {
		t.Fatalf("shared timeout: got %v", got)
	}
	// bare numbers parse as seconds
	if got := cfg.Tracker.SaveInterval.Duration(); got != 3*time.Second {
		t.Fatalf("save interval: got %v", got)
	}
	if got := cfg.Cache.MemoryTTL.Duration(); got != 30*time.Minute {
		t.Fatalf("memory ttl: got %v", got)
	}
	if len(cfg.Security.APIKeys.Frontend) != 2 || len(cfg.Security.APIKeys.Admin) != 1 {
		t.Fatalf("api keys: %+v", cfg.Security.APIKeys)
	}
}

func TestAddrDefaults(t *testing.T) {
	cfg := &Config{}
	if got := cfg.Addr(); got != "0.0.0.0:8080" {
		t.Fatalf("Addr default: got %q", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("MIKRADB_ADDR", "10.0.0.1:9999")
	t.Setenv("MIKRADB_DB_PATH", "/data/db")
	t.Setenv("MIKRADB_SOURCE_URL", "https://env.example.org")
	t.Setenv("MIKRADB_FRONTEND_KEYS", "k1, k2 ,k3")

	cfg := &Config{}
	if !ApplyEnvOverrides(cfg) {
		t.Fatal("ApplyEnvOverrides: expected env to be used")
	}
	if cfg.Server.Address != "10.0.0.1" || cfg.Server.Port != 9999 {
		t.Fatalf("addr override: %+v", cfg.Server)
	}
	if cfg.Server.DBPath != "/data/db" {
		t.Fatalf("db path override: %q", cfg.Server.DBPath)
	}
	if cfg.Source.BaseURL != "https://env.example.org" {
		t.Fatalf("source override: %q", cfg.Source.BaseURL)
	}
	if len(cfg.Security.APIKeys.Frontend) != 3 || cfg.Security.APIKeys.Frontend[1] != "k2" {
		t.Fatalf("frontend keys: %v", cfg.Security.APIKeys.Frontend)
	}
}

func TestLoadEffectivePrecedence(t *testing.T) {
	p := writeConfig(t, `
server:
  address: 127.0.0.1
  port: 9090
  db_path: /from/config
`)
	t.Setenv("MIKRADB_DB_PATH", "/from/env")

	// flag explicitly set wins over config and env
	flags := Flags{Addr: ":7777", DB: "/from/flag", Config: p, Set: map[string]bool{"addr": true, "db": true}}
	eff, err := LoadEffective(flags)
	if err != nil {
		t.Fatalf("LoadEffective: %v", err)
	}
	if eff.Addr != ":7777" {
		t.Fatalf("flag addr should win: got %q", eff.Addr)
	}
	if eff.DBPath != "/from/flag" {
		t.Fatalf("flag db should win: got %q", eff.DBPath)
	}

	// without flags, config file wins over the flag defaults; env fills
	// what the file set last
	flags = Flags{Addr: ":8080", DB: "./.database", Config: p, Set: map[string]bool{}}
	eff, err = LoadEffective(flags)
	if err != nil {
		t.Fatalf("LoadEffective: %v", err)
	}
	if eff.Addr != "127.0.0.1:9090" {
		t.Fatalf("config addr: got %q", eff.Addr)
	}
	if eff.Source != "config" {
		t.Fatalf("source: got %q", eff.Source)
	}
	// env override is applied onto the loaded file
	if eff.DBPath != "/from/env" {
		t.Fatalf("env db override: got %q", eff.DBPath)
	}
}

func TestLoadEffectiveMissingFileFallsBack(t *testing.T) {
	flags := Flags{Addr: ":8080", DB: "./.database", Config: filepath.Join(t.TempDir(), "nope.yaml"), Set: map[string]bool{}}
	eff, err := LoadEffective(flags)
	if err != nil {
		t.Fatalf("LoadEffective: %v", err)
	}
	if eff.DBPath != "./.database" {
		t.Fatalf("default db: got %q", eff.DBPath)
	}
}

func TestRuntimeKeys(t *testing.T) {
	SetRuntime(&RuntimeConfig{
		BackendKeys: map[string]struct{}{"b1": {}},
		AdminKeys:   map[string]struct{}{"a1": {}},
	})
	if _, ok := GetBackendKeys()["b1"]; !ok {
		t.Fatal("backend key missing")
	}
	if _, ok := GetAdminKeys()["a1"]; !ok {
		t.Fatal("admin key missing")
	}
	// returned maps are copies
	GetBackendKeys()["evil"] = struct{}{}
	if _, ok := GetBackendKeys()["evil"]; ok {
		t.Fatal("runtime keys leaked a mutable reference")
	}
}
