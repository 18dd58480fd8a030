package worker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gupsho/sourcegraph/internal/converter"
	"github.com/gupsho/sourcegraph/internal/diskstore"
	"github.com/gupsho/sourcegraph/internal/gitserver"
	"github.com/gupsho/sourcegraph/internal/models"
	"github.com/gupsho/sourcegraph/internal/store"
)

// fakeConverter is a converter stand-in that copies the bundle contents into
// the destination artifact.
type fakeConverter struct {
	result  converter.Result
	err     error
	partial bool          // leave a partial file at dest before failing
	block   chan struct{} // if set, conversion stalls until closed
	calls   int
}

func (f *fakeConverter) Convert(_ context.Context, sourcePath, destPath string) (*converter.Result, error) {
	f.calls++
	if f.block != nil {
		<-f.block
	}

	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, err
	}

	if f.err != nil {
		if f.partial {
			os.WriteFile(destPath, []byte("partial"), 0644)
		}
		return nil, f.err
	}

	if err := os.WriteFile(destPath, append([]byte("converted:"), data...), 0644); err != nil {
		return nil, err
	}
	result := f.result
	return &result, nil
}

type pipelineEnv struct {
	store *store.Store
	disk  *diskstore.Store
	git   *gitserver.MockClient
	conv  *fakeConverter
}

func newPipelineEnv(t *testing.T, maxBytes int64) (*pipelineEnv, *Pipeline) {
	t.Helper()

	dir := t.TempDir()
	st, err := store.New(filepath.Join(dir, "meta.db"))
	require.NoError(t, err)
	require.NoError(t, st.Initialize())
	t.Cleanup(func() { st.Close() })

	disk, err := diskstore.New(filepath.Join(dir, "storage"))
	require.NoError(t, err)

	env := &pipelineEnv{
		store: st,
		disk:  disk,
		git:   gitserver.NewMockClient(),
		conv:  &fakeConverter{},
	}
	return env, NewPipeline(st, disk, env.conv, env.git, maxBytes, slog.Default())
}

// enqueueAndClaim stages a bundle, enqueues it, and claims it for processing.
func enqueueAndClaim(t *testing.T, env *pipelineEnv, repository, commit, root string) *models.Upload {
	t.Helper()
	ctx := context.Background()

	bundle := filepath.Join(t.TempDir(), "bundle.gz")
	require.NoError(t, os.WriteFile(bundle, []byte("index data"), 0644))

	_, err := Enqueue(ctx, env.store, env.disk, repository, commit, root, bundle)
	require.NoError(t, err)

	upload, err := env.store.DequeueUpload(ctx)
	require.NoError(t, err)
	require.NotNil(t, upload)
	return upload
}

func tempDirEntries(t *testing.T, disk *diskstore.Store) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(disk.Root(), diskstore.TempDir))
	require.NoError(t, err)
	return entries
}

func TestPipeline_ProcessSuccess(t *testing.T) {
	env, p := newPipelineEnv(t, -1)
	ctx := context.Background()

	env.git.SetTip("repo", "c2")
	env.git.AddCommit("repo", "c2", "c1")
	env.git.AddCommit("repo", "c1")
	env.conv.result = converter.Result{
		Packages:   []models.Package{{Scheme: "npm", Name: "p", Version: "1.0.0"}},
		References: []models.Reference{{Scheme: "npm", Name: "q", Version: "2.0.0"}},
	}

	upload := enqueueAndClaim(t, env, "repo", "c2", "")
	require.NoError(t, p.Process(ctx, upload))

	// Exactly one dump exists for the key, visible from the tip
	dumps, err := env.store.GetDumpsForRepository(ctx, "repo")
	require.NoError(t, err)
	require.Len(t, dumps, 1)
	dump := dumps[0]
	assert.Equal(t, "c2", dump.Commit)
	assert.True(t, dump.VisibleAtTip)

	// The artifact file exists at its deterministic path
	artifact := env.disk.DBPath(dump.ID, dump.Repository, dump.Commit)
	data, err := os.ReadFile(artifact)
	require.NoError(t, err)
	assert.Equal(t, []byte("converted:index data"), data)

	// Dependencies were persisted with the dump
	packages, err := env.store.GetPackages(ctx, dump.ID)
	require.NoError(t, err)
	assert.Len(t, packages, 1)

	// The upload payload, queue row, and temp file are gone
	_, err = os.Stat(upload.Filename)
	assert.True(t, os.IsNotExist(err))
	_, err = env.store.GetUpload(ctx, upload.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, tempDirEntries(t, env.disk))
}

func TestPipeline_ConverterFailurePreservesSource(t *testing.T) {
	env, p := newPipelineEnv(t, -1)
	ctx := context.Background()

	env.git.SetTip("repo", "c1")
	env.conv.err = errors.New("malformed bundle")
	env.conv.partial = true

	upload := enqueueAndClaim(t, env, "repo", "c1", "")
	err := p.Process(ctx, upload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed bundle")

	// The partial temp file is removed, the payload kept for retry
	assert.Empty(t, tempDirEntries(t, env.disk))
	_, statErr := os.Stat(upload.Filename)
	assert.NoError(t, statErr)

	// No dump was published
	dumps, err := env.store.GetDumpsForRepository(ctx, "repo")
	require.NoError(t, err)
	assert.Empty(t, dumps)

	// The upload is marked errored with the failure recorded
	got, err := env.store.GetUpload(ctx, upload.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UploadStateErrored, got.State)
	assert.Contains(t, got.FailureSummary, "malformed bundle")
}

func TestPipeline_ReplacesOverlappingDump(t *testing.T) {
	env, p := newPipelineEnv(t, -1)
	ctx := context.Background()

	env.git.SetTip("repo", "c1")
	env.git.AddCommit("repo", "c1")

	first := enqueueAndClaim(t, env, "repo", "c1", "lib/")
	require.NoError(t, p.Process(ctx, first))

	dumps, err := env.store.GetDumpsForRepository(ctx, "repo")
	require.NoError(t, err)
	require.Len(t, dumps, 1)
	oldDump := dumps[0]
	oldPath := env.disk.DBPath(oldDump.ID, oldDump.Repository, oldDump.Commit)

	second := enqueueAndClaim(t, env, "repo", "c1", "lib/")
	require.NoError(t, p.Process(ctx, second))

	// Only the replacement remains, metadata and file both
	dumps, err = env.store.GetDumpsForRepository(ctx, "repo")
	require.NoError(t, err)
	require.Len(t, dumps, 1)
	assert.NotEqual(t, oldDump.ID, dumps[0].ID)

	_, err = os.Stat(oldPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(env.disk.DBPath(dumps[0].ID, dumps[0].Repository, dumps[0].Commit))
	assert.NoError(t, err)
}

func TestPipeline_NoTipFailsAfterPublication(t *testing.T) {
	env, p := newPipelineEnv(t, -1)
	ctx := context.Background()

	// No tip configured for the repository
	upload := enqueueAndClaim(t, env, "repo", "c1", "")
	err := p.Process(ctx, upload)
	assert.ErrorIs(t, err, ErrNoTip)

	// Conversion already published the dump; the failure is in visibility
	dumps, err := env.store.GetDumpsForRepository(ctx, "repo")
	require.NoError(t, err)
	assert.Len(t, dumps, 1)
}

func TestPipeline_PurgeFailureIsAbsorbed(t *testing.T) {
	// Quota of zero forces a purge on every upload; the sole dump is
	// visible at tip so the quota cannot be met, which must not fail the
	// pipeline call.
	env, p := newPipelineEnv(t, 0)
	ctx := context.Background()

	env.git.SetTip("repo", "c1")
	env.git.AddCommit("repo", "c1")

	upload := enqueueAndClaim(t, env, "repo", "c1", "")
	require.NoError(t, p.Process(ctx, upload))

	dumps, err := env.store.GetDumpsForRepository(ctx, "repo")
	require.NoError(t, err)
	assert.Len(t, dumps, 1)
}
