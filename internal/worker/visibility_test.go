package worker

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gupsho/sourcegraph/internal/models"
)

func TestUpdateCommitsAndVisibility_NoTip(t *testing.T) {
	env, p := newPipelineEnv(t, -1)
	ctx := context.Background()

	err := p.updateCommitsAndVisibility(ctx, "repo", "c1", slog.Default())
	assert.ErrorIs(t, err, ErrNoTip)

	// No commit-graph write occurred
	graph, err := env.store.GetCommitGraph(ctx, "repo")
	require.NoError(t, err)
	assert.Empty(t, graph)
}

func TestUpdateCommitsAndVisibility_TipEqualsCommit(t *testing.T) {
	env, p := newPipelineEnv(t, -1)
	ctx := context.Background()

	env.git.SetTip("repo", "c2")
	env.git.AddCommit("repo", "c2", "c1")
	env.git.AddCommit("repo", "c1")

	id, err := env.store.CreateDumpWithDependencies(ctx,
		&models.Dump{Repository: "repo", Commit: "c2"}, nil, nil)
	require.NoError(t, err)

	require.NoError(t, p.updateCommitsAndVisibility(ctx, "repo", "c2", slog.Default()))

	graph, err := env.store.GetCommitGraph(ctx, "repo")
	require.NoError(t, err)
	assert.True(t, graph["c2"]["c1"])

	dump, err := env.store.GetDump(ctx, id)
	require.NoError(t, err)
	assert.True(t, dump.VisibleAtTip)
}

func TestUpdateCommitsAndVisibility_MergesTipFragment(t *testing.T) {
	env, p := newPipelineEnv(t, -1)
	ctx := context.Background()

	// History: c1 <- c2 <- c3 (tip). The processed commit is c2; the path
	// to the tip comes from the second discovery anchored at c3.
	env.git.SetTip("repo", "c3")
	env.git.AddCommit("repo", "c3", "c2")
	env.git.AddCommit("repo", "c2", "c1")
	env.git.AddCommit("repo", "c1")

	id, err := env.store.CreateDumpWithDependencies(ctx,
		&models.Dump{Repository: "repo", Commit: "c2"}, nil, nil)
	require.NoError(t, err)

	require.NoError(t, p.updateCommitsAndVisibility(ctx, "repo", "c2", slog.Default()))

	// The merged graph contains both fragments
	graph, err := env.store.GetCommitGraph(ctx, "repo")
	require.NoError(t, err)
	assert.True(t, graph["c3"]["c2"])
	assert.True(t, graph["c2"]["c1"])

	// The dump at c2 is an ancestor of the tip, so it is visible
	dump, err := env.store.GetDump(ctx, id)
	require.NoError(t, err)
	assert.True(t, dump.VisibleAtTip)
}

func TestUpdateCommitsAndVisibility_DumpBeyondTipNotVisible(t *testing.T) {
	env, p := newPipelineEnv(t, -1)
	ctx := context.Background()

	// The dump's commit is a descendant of the tip, not an ancestor.
	env.git.SetTip("repo", "c1")
	env.git.AddCommit("repo", "c2", "c1")
	env.git.AddCommit("repo", "c1")

	id, err := env.store.CreateDumpWithDependencies(ctx,
		&models.Dump{Repository: "repo", Commit: "c2"}, nil, nil)
	require.NoError(t, err)

	require.NoError(t, p.updateCommitsAndVisibility(ctx, "repo", "c2", slog.Default()))

	dump, err := env.store.GetDump(ctx, id)
	require.NoError(t, err)
	assert.False(t, dump.VisibleAtTip)
}

func TestUpdateCommitsAndVisibility_LookupErrorPropagates(t *testing.T) {
	env, p := newPipelineEnv(t, -1)

	env.git.Err = errors.New("gitserver unreachable")

	err := p.updateCommitsAndVisibility(context.Background(), "repo", "c1", slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gitserver unreachable")
}
