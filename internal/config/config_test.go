package config

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/hpungsan/memclass/internal/errors"
)

func writeRepoConfig(t *testing.T, root, body string) string {
	t.Helper()
	dir := filepath.Join(root, DirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoad_DefaultWhenMissing(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := DefaultConfig()
	if cfg.PointerWidth != want.PointerWidth || cfg.ByteOrder != want.ByteOrder {
		t.Fatalf("Load() = %+v, want defaults %+v", cfg, want)
	}
	if cfg.PageCachePages != 256 || cfg.RecentLimit != 10 {
		t.Fatalf("PageCachePages/RecentLimit = %d/%d, want 256/10", cfg.PageCachePages, cfg.RecentLimit)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	body := `{"byte_order": "big", "pointer_width": 4, "page_cache_pages": 32}`
	if err := os.WriteFile(filepath.Join(tmpDir, "config.json"), []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PointerWidth != 4 {
		t.Errorf("PointerWidth = %d, want 4", cfg.PointerWidth)
	}
	if cfg.Order() != binary.BigEndian {
		t.Errorf("Order() = %v, want big endian", cfg.Order())
	}
	if cfg.PageCachePages != 32 {
		t.Errorf("PageCachePages = %d, want 32", cfg.PageCachePages)
	}
	if cfg.RecentLimit != 10 {
		t.Errorf("RecentLimit = %d, want default 10", cfg.RecentLimit)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "config.json"), []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_DisabledTools(t *testing.T) {
	tmpDir := t.TempDir()
	body := `{"disabled_tools": ["memory_write", "class_delete"]}`
	if err := os.WriteFile(filepath.Join(tmpDir, "config.json"), []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.DisabledTools) != 2 || cfg.DisabledTools[0] != "memory_write" || cfg.DisabledTools[1] != "class_delete" {
		t.Fatalf("DisabledTools = %v, want [memory_write class_delete]", cfg.DisabledTools)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"big endian", func(c *Config) { c.ByteOrder = "BIG" }, true},
		{"32-bit pointers", func(c *Config) { c.PointerWidth = 4 }, true},
		{"bad byte order", func(c *Config) { c.ByteOrder = "middle" }, false},
		{"bad pointer width", func(c *Config) { c.PointerWidth = 2 }, false},
		{"no cache", func(c *Config) { c.PageCachePages = 0 }, false},
		{"no recents", func(c *Config) { c.RecentLimit = 0 }, false},
		{"negative conns", func(c *Config) { c.DBMaxOpenConns = -1 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Fatalf("Validate() error = %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, errors.ErrInvalidRequest) {
				t.Fatalf("Validate() error = %v, want INVALID_REQUEST", err)
			}
		})
	}
}

func TestOrder_DefaultsToLittle(t *testing.T) {
	if (&Config{}).Order() != binary.LittleEndian {
		t.Fatal("empty byte_order must decode little endian")
	}
}

func TestLoadWithRepo_BothPresent(t *testing.T) {
	globalDir := t.TempDir()
	repoRoot := t.TempDir()

	globalConfig := `{"pointer_width": 4, "recent_limit": 20, "disabled_tools": ["memory_write"]}`
	if err := os.WriteFile(filepath.Join(globalDir, "config.json"), []byte(globalConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	writeRepoConfig(t, repoRoot, `{"pointer_width": 8, "disabled_tools": ["class_delete"]}`)

	cfg, err := LoadWithRepo(globalDir, repoRoot)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.PointerWidth != 8 {
		t.Errorf("PointerWidth = %d, want 8 (repo override)", cfg.PointerWidth)
	}
	if cfg.RecentLimit != 20 {
		t.Errorf("RecentLimit = %d, want 20 (global)", cfg.RecentLimit)
	}
	if len(cfg.DisabledTools) != 2 {
		t.Errorf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
}

func TestLoadWithRepo_NeitherPresent(t *testing.T) {
	cfg, err := LoadWithRepo(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.PointerWidth != 8 || cfg.ByteOrder != "little" {
		t.Errorf("LoadWithRepo() = %+v, want defaults", cfg)
	}
	if len(cfg.DisabledTools) != 0 {
		t.Errorf("DisabledTools = %v, want empty", cfg.DisabledTools)
	}
}

func TestLoadWithRepo_WalksUpward(t *testing.T) {
	root := t.TempDir()
	writeRepoConfig(t, root, `{"byte_order": "big"}`)
	subdir := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	cfg, err := LoadWithRepo(t.TempDir(), subdir)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.Order() != binary.BigEndian {
		t.Errorf("Order() = %v, want big endian from parent repo config", cfg.Order())
	}
}

func TestMerge_ScalarOverride(t *testing.T) {
	base := &Config{PointerWidth: 8, DBMaxOpenConns: 5, LogLevel: "info"}
	overlay := &Config{PointerWidth: 4, LogLevel: "  "}

	result := Merge(base, overlay)
	if result.PointerWidth != 4 {
		t.Errorf("PointerWidth = %d, want 4 (overlay)", result.PointerWidth)
	}
	if result.DBMaxOpenConns != 5 {
		t.Errorf("DBMaxOpenConns = %d, want 5 (base, overlay is zero)", result.DBMaxOpenConns)
	}
	if result.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want base value for blank overlay", result.LogLevel)
	}
}

func TestMerge_BooleanOr(t *testing.T) {
	result := Merge(&Config{AllowUnsafePaths: true}, &Config{})
	if !result.AllowUnsafePaths {
		t.Error("AllowUnsafePaths should be true (base OR overlay)")
	}
}

func TestMerge_ArrayMergeDedup(t *testing.T) {
	base := &Config{DisabledTypes: []string{"memory", " project "}}
	overlay := &Config{DisabledTypes: []string{"project", "bookmark", ""}}

	result := Merge(base, overlay)
	want := []string{"memory", "project", "bookmark"}
	if len(result.DisabledTypes) != len(want) {
		t.Fatalf("DisabledTypes = %v, want %v", result.DisabledTypes, want)
	}
	for i := range want {
		if result.DisabledTypes[i] != want[i] {
			t.Errorf("DisabledTypes[%d] = %q, want %q", i, result.DisabledTypes[i], want[i])
		}
	}
}

func TestFindRepoConfig(t *testing.T) {
	root := t.TempDir()
	if found := FindRepoConfig(root); found != "" {
		t.Errorf("FindRepoConfig() = %q, want empty string", found)
	}

	path := writeRepoConfig(t, root, `{}`)
	deeper := filepath.Join(root, "x", "y")
	if err := os.MkdirAll(deeper, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if found := FindRepoConfig(deeper); found != path {
		t.Errorf("FindRepoConfig() = %q, want %q", found, path)
	}
}
