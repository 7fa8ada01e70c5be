package config

import (
	"encoding/binary"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/memclass/internal/errors"
)

// DirName is the name of the global (~/.memclass) and repo-local (.memclass)
// configuration directories.
const DirName = ".memclass"

// Config holds application configuration.
type Config struct {
	// ByteOrder is the byte order used to decode every field: "little" or "big".
	ByteOrder string `json:"byte_order,omitempty"`

	// PointerWidth is the width in bytes of pointer fields and chain dereferences (4 or 8).
	PointerWidth int `json:"pointer_width,omitempty"`

	// PageCachePages is the number of 4 KiB pages one refresh may cache.
	PageCachePages int `json:"page_cache_pages,omitempty"`

	// RecentLimit caps the recent projects and recent processes lists.
	RecentLimit int `json:"recent_limit,omitempty"`

	// LogLevel is a logrus level name. Empty means warn.
	LogLevel string `json:"log_level,omitempty"`

	// AllowedPaths is an allowlist of directories for project and dump files.
	// Paths outside ~/.memclass/projects (projects) or ~/.memclass/dumps (dumps)
	// require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for project and dump files.
	// When true, any directory is allowed (but symlink and extension checks still apply).
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of type names to disable entirely.
	// Known types: "class", "field", "memory", "project", "bookmark".
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ByteOrder:      "little",
		PointerWidth:   8,
		PageCachePages: 256,
		RecentLimit:    10,
		LogLevel:       "warn",
	}
}

// DefaultDir returns ~/.memclass.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// Order returns the configured byte order.
func (c *Config) Order() binary.ByteOrder {
	if strings.EqualFold(c.ByteOrder, "big") {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Validate rejects values the rest of memclass cannot work with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.ByteOrder) {
	case "little", "big":
	default:
		return errors.NewInvalidRequest(fmt.Sprintf("byte_order must be \"little\" or \"big\", got %q", c.ByteOrder))
	}
	if c.PointerWidth != 4 && c.PointerWidth != 8 {
		return errors.NewInvalidRequest(fmt.Sprintf("pointer_width must be 4 or 8, got %d", c.PointerWidth))
	}
	if c.PageCachePages < 1 {
		return errors.NewInvalidRequest("page_cache_pages must be at least 1")
	}
	if c.RecentLimit < 1 {
		return errors.NewInvalidRequest("recent_limit must be at least 1")
	}
	if c.DBMaxOpenConns < 0 || c.DBMaxIdleConns < 0 {
		return errors.NewInvalidRequest("db connection limits must not be negative")
	}
	return nil
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.memclass.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.memclass) and repo (.memclass) directories.
// Repo config is found by walking upward from startDir to find the nearest .memclass/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repoConfigPath := FindRepoConfig(startDir)
	repo, err := loadFileRaw(repoConfigPath)
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .memclass/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		configPath := filepath.Join(dir, DirName, "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		ByteOrder:      pickString(base.ByteOrder, overlay.ByteOrder),
		PointerWidth:   pickInt(base.PointerWidth, overlay.PointerWidth),
		PageCachePages: pickInt(base.PageCachePages, overlay.PageCachePages),
		RecentLimit:    pickInt(base.RecentLimit, overlay.RecentLimit),
		LogLevel:       pickString(base.LogLevel, overlay.LogLevel),
		DBMaxOpenConns: pickInt(base.DBMaxOpenConns, overlay.DBMaxOpenConns),
		DBMaxIdleConns: pickInt(base.DBMaxIdleConns, overlay.DBMaxIdleConns),
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func pickInt(base, overlay int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

func pickString(base, overlay string) string {
	if s := strings.TrimSpace(overlay); s != "" {
		return s
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
