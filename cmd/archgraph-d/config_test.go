package main

import (
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Addr != defaultAddr {
		t.Errorf("addr = %s, want %s", cfg.Addr, defaultAddr)
	}
	if cfg.WorkspaceID != defaultWorkspace || cfg.SystemID != defaultSystem {
		t.Errorf("scope = %s/%s", cfg.WorkspaceID, cfg.SystemID)
	}
	if cfg.CacheBackend != "memory" || cfg.Engine != "mock" {
		t.Errorf("backends = %s/%s", cfg.CacheBackend, cfg.Engine)
	}
	if !cfg.AutoCorrect {
		t.Errorf("auto-correct should default on")
	}
	if filepath.Base(cfg.DBPath) != "archgraph.db" {
		t.Errorf("db path = %s", cfg.DBPath)
	}
}

func TestLoadConfigFlags(t *testing.T) {
	cfg, err := LoadConfig([]string{
		"-addr", "0.0.0.0:9100",
		"-system", "Plant.SY.002",
		"-cache", "redis",
		"-redis-addr", "10.0.0.5:6379",
		"-auto-correct=false",
	})
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Addr != "0.0.0.0:9100" || cfg.SystemID != "Plant.SY.002" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.CacheBackend != "redis" || cfg.RedisAddr != "10.0.0.5:6379" {
		t.Errorf("cache cfg = %s/%s", cfg.CacheBackend, cfg.RedisAddr)
	}
	if cfg.AutoCorrect {
		t.Errorf("auto-correct not disabled")
	}
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("ARCHGRAPH_PORT", "9200")
	t.Setenv("ARCHGRAPH_WORKSPACE", "plant-ws")

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9200" {
		t.Errorf("addr = %s", cfg.Addr)
	}
	if cfg.WorkspaceID != "plant-ws" {
		t.Errorf("workspace = %s", cfg.WorkspaceID)
	}
}

func TestLoadConfigFlagOverridesEnv(t *testing.T) {
	t.Setenv("ARCHGRAPH_ADDR", "127.0.0.1:9300")

	cfg, err := LoadConfig([]string{"-addr", "127.0.0.1:9400"})
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9400" {
		t.Errorf("addr = %s, want the flag value", cfg.Addr)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	if _, err := LoadConfig([]string{"-cache", "memcached"}); err == nil {
		t.Errorf("unsupported cache accepted")
	}
	if _, err := LoadConfig([]string{"-engine", "psychic"}); err == nil {
		t.Errorf("unsupported engine accepted")
	}
	if _, err := LoadConfig([]string{"-addr", " "}); err == nil {
		t.Errorf("blank addr accepted")
	}
}

func TestLoadConfigOpenAIRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := LoadConfig([]string{"-engine", "openai"}); err == nil {
		t.Errorf("openai engine accepted without a key")
	}
}
