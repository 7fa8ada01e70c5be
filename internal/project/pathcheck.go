package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/memclass/internal/config"
	"github.com/hpungsan/memclass/internal/errors"
)

// PathCheckMode indicates whether the path check is for reading or writing.
type PathCheckMode int

const (
	PathCheckRead  PathCheckMode = iota // open
	PathCheckWrite                      // save
)

// ValidatePath checks a project file path before it is opened or written:
//  1. no ".." components
//  2. the .mclass extension
//  3. the file sits directly in ~/.memclass/projects or an allowed_paths entry
//     (skipped when allow_unsafe_paths is set)
//  4. neither the file nor its parent directory is a symlink
//
// Requiring files to sit directly in an allowed directory leaves no
// intermediate directory that could be swapped for a symlink after the check;
// O_NOFOLLOW covers the final component.
func ValidatePath(path string, mode PathCheckMode, cfg *config.Config) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if filepath.Ext(cleaned) != Extension {
		return errors.NewInvalidRequest(fmt.Sprintf("path must have %s extension", Extension))
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	if cfg == nil || !cfg.AllowUnsafePaths {
		defaultDir, err := DefaultDir()
		if err != nil {
			return err
		}
		if err := checkAllowedDir(absPath, defaultDir, cfg); err != nil {
			return err
		}
	}

	if mode == PathCheckRead {
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			return errors.NewFileNotFound(path)
		}
	}
	if info, err := os.Lstat(absPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	return nil
}

// ValidateDumpPath checks a memory dump path before it is loaded: no ".."
// components, and unless allow_unsafe_paths is set, the file sits directly
// in ~/.memclass/dumps or an allowed_paths entry.
func ValidateDumpPath(path string, cfg *config.Config) error {
	if path == "" {
		return errors.NewInvalidRequest("dump path is required")
	}
	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}
	if cfg != nil && cfg.AllowUnsafePaths {
		return nil
	}
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}
	defaultDir, err := DumpDir()
	if err != nil {
		return err
	}
	return checkAllowedDir(absPath, defaultDir, cfg)
}

// checkAllowedDir requires absPath to sit directly in defaultDir or an
// allowed_paths entry, in a parent directory that is not a symlink.
func checkAllowedDir(absPath, defaultDir string, cfg *config.Config) error {
	allowedDirs, err := allowedDirs(defaultDir, cfg)
	if err != nil {
		return err
	}
	parentDir := filepath.Dir(absPath)
	if !isDirectlyInAllowedDir(parentDir, allowedDirs) {
		return errors.NewInvalidRequest(
			fmt.Sprintf("file must be directly in an allowed directory (no subdirectories); allowed: %v",
				allowedDirs))
	}
	if info, err := os.Lstat(parentDir); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("parent directory must not be a symlink")
	}
	return nil
}

// DumpDir returns ~/.memclass/dumps.
func DumpDir() (string, error) {
	base, err := config.DefaultDir()
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return filepath.Join(base, "dumps"), nil
}

// DefaultDir returns ~/.memclass/projects.
func DefaultDir() (string, error) {
	base, err := config.DefaultDir()
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return filepath.Join(base, "projects"), nil
}

// allowedDirs returns defaultDir plus absolute allowed_paths, with
// symlinked entries resolved.
func allowedDirs(defaultDir string, cfg *config.Config) ([]string, error) {
	dirs := []string{defaultDir}
	if cfg != nil {
		for _, p := range cfg.AllowedPaths {
			if filepath.IsAbs(p) {
				dirs = append(dirs, filepath.Clean(p))
			}
		}
	}

	result := make([]string, 0, len(dirs))
	for _, d := range dirs {
		abs, err := filepath.Abs(filepath.Clean(d))
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid allowed path: %v", err))
		}
		if info, err := os.Lstat(abs); err == nil && info.Mode()&os.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(abs)
			if err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve symlink in allowed path: %v", err))
			}
			abs = resolved
		}
		result = append(result, abs)
	}
	return result, nil
}

func isDirectlyInAllowedDir(parentDir string, allowedDirs []string) bool {
	parentDir = filepath.Clean(parentDir)
	for _, dir := range allowedDirs {
		if parentDir == filepath.Clean(dir) {
			return true
		}
	}
	return false
}

func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}
