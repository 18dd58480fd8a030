package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gupsho/sourcegraph/internal/models"
)

// UpdateCommits upserts a commit-graph fragment for a repository. Existing
// edges are kept; inserting the same edge twice is a no-op, so merged
// fragments from concurrent discoveries converge to the same graph.
func (s *Store) UpdateCommits(ctx context.Context, repository string, graph models.CommitGraph) error {
	return s.WithTransaction(ctx, func(tx *sql.Tx) error {
		for commit, parents := range graph {
			if len(parents) == 0 {
				if _, err := tx.ExecContext(ctx, `
					INSERT OR IGNORE INTO commits (repository, commit_id, parent_commit)
					VALUES (?, ?, '')`, repository, commit); err != nil {
					return fmt.Errorf("insert commit %s: %w", commit, err)
				}
				continue
			}
			for parent := range parents {
				if _, err := tx.ExecContext(ctx, `
					INSERT OR IGNORE INTO commits (repository, commit_id, parent_commit)
					VALUES (?, ?, ?)`, repository, commit, parent); err != nil {
					return fmt.Errorf("insert commit edge %s -> %s: %w", commit, parent, err)
				}
			}
		}
		return nil
	})
}

// GetCommitGraph loads the stored commit graph for a repository.
func (s *Store) GetCommitGraph(ctx context.Context, repository string) (models.CommitGraph, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT commit_id, parent_commit FROM commits WHERE repository = ?", repository)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	graph := make(models.CommitGraph)
	for rows.Next() {
		var commit, parent string
		if err := rows.Scan(&commit, &parent); err != nil {
			return nil, err
		}
		graph.Add(commit, parent)
	}
	return graph, rows.Err()
}

// HasCommit checks whether a commit is known for a repository.
func (s *Store) HasCommit(ctx context.Context, repository, commit string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM commits WHERE repository = ? AND commit_id = ?",
		repository, commit).Scan(&n)
	return n > 0, err
}
