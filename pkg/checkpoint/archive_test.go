package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchive_MovesExistingFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	state := filepath.Join(dir, "collector_state.json")
	seen := filepath.Join(dir, "seen_commits.txt")
	dataset := filepath.Join(dir, "dataset.csv")

	require.NoError(t, os.WriteFile(state, []byte(`{"date_end":"2024-01-01"}`), 0o600))
	require.NoError(t, os.WriteFile(seen, []byte("abc\n"), 0o600))
	require.NoError(t, os.WriteFile(dataset, []byte("repo\n"), 0o600))

	now := time.Date(2024, time.February, 3, 4, 5, 6, 0, time.UTC)

	res, err := Archive(filepath.Join(dir, "backups"), now, state, seen)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "backups", "backup_20240203_040506"), res.Dir)
	assert.Equal(t, []string{state, seen}, res.Moved)
	assert.Empty(t, res.Missing)

	assert.NoFileExists(t, state)
	assert.NoFileExists(t, seen)
	assert.FileExists(t, dataset)

	backedUp, err := os.ReadFile(filepath.Join(res.Dir, "seen_commits.txt"))
	require.NoError(t, err)
	assert.Equal(t, "abc\n", string(backedUp))
}

func TestArchive_MissingFilesReported(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	missing := filepath.Join(dir, "seen_commits.txt")

	res, err := Archive(filepath.Join(dir, "backups"), time.Now(), missing)
	require.NoError(t, err)
	assert.Empty(t, res.Moved)
	assert.Equal(t, []string{missing}, res.Missing)
	assert.DirExists(t, res.Dir)
}
