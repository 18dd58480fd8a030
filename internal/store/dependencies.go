package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gupsho/sourcegraph/internal/models"
)

// AddPackagesAndReferences persists the packages exported by a dump and the
// packages it references, associated with the dump ID, inside the caller's
// transaction. Rows are removed automatically when the dump is deleted.
func AddPackagesAndReferences(ctx context.Context, tx *sql.Tx, dumpID int64, packages []models.Package, references []models.Reference) error {
	for _, pkg := range packages {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO packages (dump_id, scheme, name, version) VALUES (?, ?, ?, ?)",
			dumpID, pkg.Scheme, pkg.Name, pkg.Version); err != nil {
			return fmt.Errorf("insert package %s:%s: %w", pkg.Scheme, pkg.Name, err)
		}
	}

	for _, ref := range references {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO package_references (dump_id, scheme, name, version) VALUES (?, ?, ?, ?)",
			dumpID, ref.Scheme, ref.Name, ref.Version); err != nil {
			return fmt.Errorf("insert reference %s:%s: %w", ref.Scheme, ref.Name, err)
		}
	}

	return nil
}

// GetPackages returns the packages exported by a dump.
func (s *Store) GetPackages(ctx context.Context, dumpID int64) ([]models.Package, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT scheme, name, version FROM packages WHERE dump_id = ? ORDER BY id", dumpID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var packages []models.Package
	for rows.Next() {
		var pkg models.Package
		if err := rows.Scan(&pkg.Scheme, &pkg.Name, &pkg.Version); err != nil {
			return nil, err
		}
		packages = append(packages, pkg)
	}
	return packages, rows.Err()
}

// GetReferences returns the packages referenced by a dump.
func (s *Store) GetReferences(ctx context.Context, dumpID int64) ([]models.Reference, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT scheme, name, version FROM package_references WHERE dump_id = ? ORDER BY id", dumpID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var references []models.Reference
	for rows.Next() {
		var ref models.Reference
		if err := rows.Scan(&ref.Scheme, &ref.Name, &ref.Version); err != nil {
			return nil, err
		}
		references = append(references, ref)
	}
	return references, rows.Err()
}
