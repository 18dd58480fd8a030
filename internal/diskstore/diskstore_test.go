package diskstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDisk(t *testing.T) *Store {
	t.Helper()
	disk, err := New(filepath.Join(t.TempDir(), "storage"))
	require.NoError(t, err)
	return disk
}

func TestNew_CreatesLayout(t *testing.T) {
	disk := newTestDisk(t)

	for _, dir := range []string{UploadsDir, TempDir, DBsDir} {
		info, err := os.Stat(filepath.Join(disk.Root(), dir))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestDBPath_Deterministic(t *testing.T) {
	disk := newTestDisk(t)

	p1 := disk.DBPath(7, "github.com/foo/bar", "deadbeef")
	p2 := disk.DBPath(7, "github.com/foo/bar", "deadbeef")
	assert.Equal(t, p1, p2)
	assert.Contains(t, p1, filepath.Join(disk.Root(), DBsDir))

	// Repositories with path separators do not escape the artifact directory
	assert.Equal(t, filepath.Join(disk.Root(), DBsDir), filepath.Dir(p1))
}

func TestPublish_MovesFile(t *testing.T) {
	disk := newTestDisk(t)

	temp := disk.TempPath("1.lsif.gz")
	require.NoError(t, os.WriteFile(temp, []byte("converted"), 0644))

	final := disk.DBPath(1, "repo", "c0ffee")
	require.NoError(t, disk.Publish(temp, final))

	data, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, []byte("converted"), data)

	_, err = os.Stat(temp)
	assert.True(t, os.IsNotExist(err))
}

func TestPublish_FailsOnExistingTarget(t *testing.T) {
	disk := newTestDisk(t)

	final := disk.DBPath(1, "repo", "c0ffee")
	require.NoError(t, os.WriteFile(final, []byte("stale"), 0644))

	temp := disk.TempPath("1.lsif.gz")
	require.NoError(t, os.WriteFile(temp, []byte("fresh"), 0644))

	err := disk.Publish(temp, final)
	assert.ErrorIs(t, err, ErrTargetExists)

	// Neither file is disturbed
	data, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, []byte("stale"), data)

	_, err = os.Stat(temp)
	assert.NoError(t, err)
}

func TestDBDirSize(t *testing.T) {
	disk := newTestDisk(t)

	size, err := disk.DBDirSize()
	require.NoError(t, err)
	assert.Zero(t, size)

	require.NoError(t, os.WriteFile(disk.DBPath(1, "r", "a"), make([]byte, 600), 0644))
	require.NoError(t, os.WriteFile(disk.DBPath(2, "r", "b"), make([]byte, 300), 0644))

	size, err = disk.DBDirSize()
	require.NoError(t, err)
	assert.Equal(t, int64(900), size)
}

func TestFileSize_MissingFileIsZero(t *testing.T) {
	disk := newTestDisk(t)

	assert.Zero(t, disk.FileSize(disk.DBPath(99, "r", "gone")))

	path := disk.DBPath(1, "r", "a")
	require.NoError(t, os.WriteFile(path, make([]byte, 42), 0644))
	assert.Equal(t, int64(42), disk.FileSize(path))
}

func TestRemove_ToleratesMissing(t *testing.T) {
	disk := newTestDisk(t)

	path := disk.DBPath(1, "r", "a")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	assert.NoError(t, disk.Remove(path))
	assert.NoError(t, disk.Remove(path)) // already gone
}
