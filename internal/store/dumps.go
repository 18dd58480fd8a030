package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gupsho/sourcegraph/internal/models"
)

// GetDump retrieves a dump by ID. Returns ErrNotFound if missing.
func (s *Store) GetDump(ctx context.Context, id int64) (*models.Dump, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, repository, commit_id, root, visible_at_tip, uploaded_at
		FROM dumps WHERE id = ?`, id)
	return scanDump(row)
}

// GetDumpsForRepository returns all dumps for a repository ordered by age.
func (s *Store) GetDumpsForRepository(ctx context.Context, repository string) ([]*models.Dump, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, repository, commit_id, root, visible_at_tip, uploaded_at
		FROM dumps WHERE repository = ? ORDER BY uploaded_at, id`, repository)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dumps []*models.Dump
	for rows.Next() {
		dump, err := scanDump(rows)
		if err != nil {
			return nil, err
		}
		dumps = append(dumps, dump)
	}
	return dumps, rows.Err()
}

// DeleteOverlappingDumps removes dumps that share a (repository, commit, root)
// key with a new upload and returns the removed rows so the caller can delete
// their on-disk files. This must run before the new dump's metadata is
// inserted to avoid violating the uniqueness constraint on the key.
func (s *Store) DeleteOverlappingDumps(ctx context.Context, repository, commit, root string) ([]*models.Dump, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, repository, commit_id, root, visible_at_tip, uploaded_at
		FROM dumps WHERE repository = ? AND commit_id = ? AND root = ?`,
		repository, commit, root)
	if err != nil {
		return nil, fmt.Errorf("find overlapping dumps: %w", err)
	}
	defer rows.Close()

	var overlapping []*models.Dump
	for rows.Next() {
		dump, err := scanDump(rows)
		if err != nil {
			return nil, err
		}
		overlapping = append(overlapping, dump)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, dump := range overlapping {
		if err := s.DeleteDump(ctx, dump.ID); err != nil {
			return nil, fmt.Errorf("delete overlapping dump %d: %w", dump.ID, err)
		}
	}

	return overlapping, nil
}

// CreateDumpWithDependencies inserts a dump together with its exported
// packages and package references in a single transaction, and returns the
// new dump ID.
func (s *Store) CreateDumpWithDependencies(ctx context.Context, dump *models.Dump, packages []models.Package, references []models.Reference) (int64, error) {
	var dumpID int64
	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO dumps (repository, commit_id, root) VALUES (?, ?, ?)",
			dump.Repository, dump.Commit, dump.Root)
		if err != nil {
			return fmt.Errorf("insert dump: %w", err)
		}

		dumpID, err = res.LastInsertId()
		if err != nil {
			return err
		}

		return AddPackagesAndReferences(ctx, tx, dumpID, packages, references)
	})
	if err != nil {
		return 0, err
	}
	return dumpID, nil
}

// DeleteDump removes a dump. Package and reference rows cascade via foreign
// keys.
func (s *Store) DeleteDump(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM dumps WHERE id = ?", id)
	return err
}

// UpdateDumpsVisibleFromTip recomputes the visible_at_tip flag for every dump
// of a repository from the stored commit graph and the given tip commit.
func (s *Store) UpdateDumpsVisibleFromTip(ctx context.Context, repository, tip string) error {
	graph, err := s.GetCommitGraph(ctx, repository)
	if err != nil {
		return fmt.Errorf("load commit graph: %w", err)
	}
	ancestors := graph.Ancestors(tip)

	return s.WithTransaction(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			"SELECT id, commit_id FROM dumps WHERE repository = ?", repository)
		if err != nil {
			return err
		}
		defer rows.Close()

		visible := make(map[int64]bool)
		for rows.Next() {
			var id int64
			var commit string
			if err := rows.Scan(&id, &commit); err != nil {
				return err
			}
			visible[id] = ancestors[commit]
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for id, v := range visible {
			if _, err := tx.ExecContext(ctx,
				"UPDATE dumps SET visible_at_tip = ? WHERE id = ?", v, id); err != nil {
				return fmt.Errorf("update visibility for dump %d: %w", id, err)
			}
		}
		return nil
	})
}

// GetOldestPrunableDump returns the oldest dump that is not visible from its
// repository's tip, or nil when no dump can be pruned. Dumps visible from a
// tip are never offered since deleting one would remove code intelligence
// still reachable from the repository's head.
func (s *Store) GetOldestPrunableDump(ctx context.Context) (*models.Dump, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, repository, commit_id, root, visible_at_tip, uploaded_at
		FROM dumps WHERE NOT visible_at_tip ORDER BY uploaded_at, id LIMIT 1`)

	dump, err := scanDump(row)
	if err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return dump, nil
}

// CountDumps returns total and tip-visible dump counts.
func (s *Store) CountDumps(ctx context.Context) (total, visible int, err error) {
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(visible_at_tip), 0) FROM dumps").Scan(&total, &visible)
	return total, visible, err
}

func scanDump(row rowScanner) (*models.Dump, error) {
	var dump models.Dump
	var uploadedAt string

	err := row.Scan(&dump.ID, &dump.Repository, &dump.Commit, &dump.Root,
		&dump.VisibleAtTip, &uploadedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	dump.UploadedAt = parseTimestamp(uploadedAt)
	return &dump, nil
}
