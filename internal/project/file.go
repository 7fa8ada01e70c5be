package project

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/memclass/internal/config"
	"github.com/hpungsan/memclass/internal/errors"
	"github.com/hpungsan/memclass/internal/layout"
	"github.com/hpungsan/memclass/internal/logflags"
)

// MaxFileSize bounds how much of a project file OpenFile will read.
const MaxFileSize = 16 << 20

// SaveFile validates path and writes reg to it. The file is written to a
// temporary sibling and renamed into place, so an existing project survives
// any failure.
func SaveFile(path string, reg *layout.Registry, cfg *config.Config) error {
	if err := ValidatePath(path, PathCheckWrite, cfg); err != nil {
		return err
	}
	data, err := Store(reg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create project directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create project file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close project file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlink planted after validation.
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("path must not be a symlink")
	}

	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return errors.NewInvalidRequest("project file already exists; overwriting is not supported on Windows")
			}
		}
		return errors.NewInternal(fmt.Errorf("failed to finalize project file: %w", err))
	}

	success = true
	logflags.ProjectLogger().WithFields(logrus.Fields{"path": path, "classes": reg.Len()}).Debug("saved")
	return nil
}

// OpenFile validates path and loads the project it names.
func OpenFile(path string, cfg *config.Config) (*layout.Registry, error) {
	if err := ValidatePath(path, PathCheckRead, cfg); err != nil {
		return nil, err
	}
	file, err := openFileNoFollowRead(path)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open project file: %w", err))
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxFileSize+1))
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to read project file: %w", err))
	}
	if len(data) > MaxFileSize {
		return nil, errors.NewProjectFormat(fmt.Sprintf("project file exceeds %d bytes", MaxFileSize), nil)
	}

	reg, err := Load(data)
	if err != nil {
		logflags.ProjectLogger().WithError(err).WithField("path", path).Warn("open failed")
		return nil, err
	}
	logflags.ProjectLogger().WithFields(logrus.Fields{"path": path, "classes": reg.Len()}).Debug("opened")
	return reg, nil
}
