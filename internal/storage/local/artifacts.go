package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Artifacts writes screenshot files and moves old ones aside before a retry
// overwrites them.
type Artifacts struct {
	now func() time.Time
}

// NewArtifacts returns an Artifacts store using the wall clock for backup names.
func NewArtifacts() *Artifacts {
	return &Artifacts{now: time.Now}
}

// WriteFile replaces path with data, creating parent directories as needed.
func (a *Artifacts) WriteFile(ctx context.Context, path string, data []byte) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path is required")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	return writeFileAtomic(path, data)
}

// BackupIfExists renames path to {base}-backup-{epochMillis}{ext} in the same
// directory and returns the new name. It returns "" when path does not exist.
func (a *Artifacts) BackupIfExists(path string) (string, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}

	target, err := a.backupName(path)
	if err != nil {
		return "", err
	}
	if err := os.Rename(path, target); err != nil {
		return "", fmt.Errorf("failed to back up %s: %w", path, err)
	}
	return target, nil
}

func (a *Artifacts) backupName(path string) (string, error) {
	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)
	stem := fmt.Sprintf("%s-backup-%d", base, a.now().UnixMilli())

	candidate := filepath.Join(dir, stem+ext)
	for n := 1; ; n++ {
		_, err := os.Lstat(candidate)
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to stat %s: %w", candidate, err)
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s-%d%s", stem, n, ext))
	}
}
