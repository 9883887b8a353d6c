package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Artifacts is an in-memory crawler.ArtifactStore.
type Artifacts struct {
	mu      sync.RWMutex
	files   map[string][]byte
	backups []string
}

// NewArtifacts constructs an empty Artifacts.
func NewArtifacts() *Artifacts {
	return &Artifacts{files: make(map[string][]byte)}
}

// WriteFile stores a copy of data at path.
func (a *Artifacts) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if path == "" {
		return errors.New("artifact path is empty")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.files[path] = append([]byte(nil), data...)
	return nil
}

// BackupIfExists moves path to a numbered backup key.
func (a *Artifacts) BackupIfExists(path string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.files[path]
	if !ok {
		return "", nil
	}
	backup := fmt.Sprintf("%s.backup-%d", path, len(a.backups)+1)
	a.files[backup] = data
	delete(a.files, path)
	a.backups = append(a.backups, backup)
	return backup, nil
}

// Get returns the stored bytes for path.
func (a *Artifacts) Get(path string) ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	data, ok := a.files[path]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Backups returns every backup key created so far, in order.
func (a *Artifacts) Backups() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]string(nil), a.backups...)
}
