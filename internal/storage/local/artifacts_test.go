package local_test

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitesnap/internal/storage/local"
)

func TestWriteFile(t *testing.T) {
	artifacts := local.NewArtifacts()
	tempDir := t.TempDir()

	t.Run("NestedPath", func(t *testing.T) {
		path := filepath.Join(tempDir, "screenshots", "pc", "a.test.png")
		require.NoError(t, artifacts.WriteFile(context.Background(), path, []byte("png")))

		// #nosec G304 -- test reads from the controlled temp directory.
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, []byte("png"), data)
	})

	t.Run("Overwrite", func(t *testing.T) {
		path := filepath.Join(tempDir, "b.png")
		require.NoError(t, artifacts.WriteFile(context.Background(), path, []byte("old")))
		require.NoError(t, artifacts.WriteFile(context.Background(), path, []byte("new")))

		// #nosec G304 -- test reads from the controlled temp directory.
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, []byte("new"), data)
	})

	t.Run("EmptyPath", func(t *testing.T) {
		assert.Error(t, artifacts.WriteFile(context.Background(), "", []byte("data")))
	})
}

func TestBackupIfExists(t *testing.T) {
	artifacts := local.NewArtifacts()

	t.Run("MissingFileIsNoop", func(t *testing.T) {
		backup, err := artifacts.BackupIfExists(filepath.Join(t.TempDir(), "missing.png"))
		require.NoError(t, err)
		assert.Empty(t, backup)
	})

	t.Run("RenamesWithTimestamp", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "a.test.png")
		require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))

		backup, err := artifacts.BackupIfExists(path)
		require.NoError(t, err)
		assert.Equal(t, dir, filepath.Dir(backup))
		assert.Regexp(t, regexp.MustCompile(`^a\.test-backup-\d{13}\.png$`), filepath.Base(backup))

		_, err = os.Stat(path)
		assert.True(t, os.IsNotExist(err), "original path should be free for a fresh write")
		// #nosec G304 -- test reads from the controlled temp directory.
		data, err := os.ReadFile(backup)
		require.NoError(t, err)
		assert.Equal(t, []byte("old"), data)
	})

	t.Run("CollisionsGetDistinctNames", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "c.png")
		seen := map[string]struct{}{}
		for i := 0; i < 3; i++ {
			require.NoError(t, os.WriteFile(path, []byte{byte(i)}, 0o600))
			backup, err := artifacts.BackupIfExists(path)
			require.NoError(t, err)
			_, dup := seen[backup]
			assert.False(t, dup, "backup name reused: %s", backup)
			seen[backup] = struct{}{}
		}
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 3)
	})

	t.Run("DirectoryIsRejected", func(t *testing.T) {
		_, err := artifacts.BackupIfExists(t.TempDir())
		assert.Error(t, err)
	})
}
