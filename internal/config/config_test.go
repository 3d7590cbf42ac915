package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/darkprince558/flip/internal/chunk"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	t.Setenv(EnvPath, filepath.Join(t.TempDir(), "config.json"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ListenPort != 9999 || cfg.Encoding != "utf-8" || cfg.Timeout.Std() != 10*time.Second {
		t.Errorf("Unexpected defaults: %+v", cfg)
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	t.Setenv(EnvPath, path)

	cfg := Defaults()
	cfg.ServerAddr = "192.168.1.20:4000"
	cfg.IdleTimeout = Duration(30 * time.Second)
	if err := Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"idle_timeout": "30s"`) {
		t.Errorf("Durations should be stored as text, got:\n%s", data)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("Expected %+v, got %+v", cfg, loaded)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	t.Setenv(EnvPath, path)
	os.WriteFile(path, []byte(`{"min_chunk": 9, "max_chunk": 2}`), 0644)

	if _, err := Load(); !errors.Is(err, chunk.ErrBounds) {
		t.Errorf("Expected ErrBounds, got %v", err)
	}
}

func TestSet(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Set("max_chunk", "50"); err != nil {
		t.Fatal(err)
	}
	if cfg.MaxChunk != 50 {
		t.Errorf("Expected 50, got %d", cfg.MaxChunk)
	}
	if err := cfg.Set("timeout", "2s"); err != nil || cfg.Timeout.Std() != 2*time.Second {
		t.Errorf("Setting timeout failed: %v", err)
	}

	bad := []struct{ key, value string }{
		{"listen_port", "80"},
		{"listen_port", "abc"},
		{"min_chunk", "51"},
		{"max_chunk", "1001"},
		{"server_addr", "localhost:4000"},
		{"encoding", "ebcdic"},
		{"transport", "udp"},
		{"log_level", "loud"},
		{"timeout", "soon"},
		{"colour", "blue"},
	}
	for _, tc := range bad {
		before := *cfg
		if err := cfg.Set(tc.key, tc.value); err == nil {
			t.Errorf("Set(%s, %s) should fail", tc.key, tc.value)
		}
		if *cfg != before {
			t.Errorf("Set(%s, %s) modified the config on error", tc.key, tc.value)
		}
	}
}

func TestValidateAddr(t *testing.T) {
	good := []string{"127.0.0.1:9999", "10.0.0.5:1024", "255.255.255.255:65535"}
	for _, a := range good {
		if err := ValidateAddr(a); err != nil {
			t.Errorf("ValidateAddr(%q): %v", a, err)
		}
	}
	bad := []string{"127.0.0.1", "127.0.0.1:80", "127.0.0.1:70000", "256.1.1.1:2000", "[::1]:2000", "host:2000", "1.2.3:2000"}
	for _, a := range bad {
		if err := ValidateAddr(a); err == nil {
			t.Errorf("ValidateAddr(%q) should fail", a)
		}
	}
}

func TestValues(t *testing.T) {
	vals := Defaults().Values()
	if len(vals) != 12 {
		t.Fatalf("Expected 12 keys, got %d", len(vals))
	}
	for i := 1; i < len(vals); i++ {
		if vals[i-1][0] > vals[i][0] {
			t.Fatalf("Values not sorted: %v", vals)
		}
	}
	for _, kv := range vals {
		if err := Defaults().Set(kv[0], kv[1]); err != nil && kv[1] != "" {
			t.Errorf("Value of %s does not round trip through Set: %v", kv[0], err)
		}
	}
}
