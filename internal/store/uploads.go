package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gupsho/sourcegraph/internal/models"
)

// InsertUpload inserts a new queued upload and returns its ID. The filename
// is typically set afterwards via SetUploadFilename once the payload has been
// copied to its ID-derived location.
func (s *Store) InsertUpload(ctx context.Context, upload *models.Upload) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO uploads (repository, commit_id, root, filename, state)
		VALUES (?, ?, ?, ?, ?)`,
		upload.Repository, upload.Commit, upload.Root, upload.Filename, models.UploadStateQueued,
	)
	if err != nil {
		return 0, fmt.Errorf("insert upload: %w", err)
	}
	return res.LastInsertId()
}

// SetUploadFilename records the payload file location for an upload.
func (s *Store) SetUploadFilename(ctx context.Context, id int64, filename string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE uploads SET filename = ? WHERE id = ?", filename, id)
	return err
}

// GetUpload retrieves an upload by ID. Returns ErrNotFound if missing.
func (s *Store) GetUpload(ctx context.Context, id int64) (*models.Upload, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, repository, commit_id, root, filename, state, failure_summary, uploaded_at
		FROM uploads WHERE id = ?`, id)
	return scanUpload(row)
}

// DequeueUpload atomically claims the oldest queued upload by flipping its
// state to processing. Returns (nil, nil) when the queue is empty. A claimed
// upload is never returned to another caller unless it is re-queued.
func (s *Store) DequeueUpload(ctx context.Context) (*models.Upload, error) {
	var upload *models.Upload
	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT id, repository, commit_id, root, filename, state, failure_summary, uploaded_at
			FROM uploads WHERE state = ? ORDER BY uploaded_at, id LIMIT 1`,
			models.UploadStateQueued)

		u, err := scanUpload(row)
		if err == ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			"UPDATE uploads SET state = ?, started_at = CURRENT_TIMESTAMP WHERE id = ? AND state = ?",
			models.UploadStateProcessing, u.ID, models.UploadStateQueued)
		if err != nil {
			return fmt.Errorf("claim upload %d: %w", u.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// Lost a race with another worker; caller can try again.
			return nil
		}

		u.State = models.UploadStateProcessing
		upload = u
		return nil
	})
	return upload, err
}

// MarkUploadErrored records a conversion failure. The payload file is kept
// so the upload can be re-queued and retried.
func (s *Store) MarkUploadErrored(ctx context.Context, id int64, failure string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE uploads SET state = ?, failure_summary = ? WHERE id = ?",
		models.UploadStateErrored, failure, id)
	return err
}

// RequeueUpload returns an errored upload to the queue for another attempt.
func (s *Store) RequeueUpload(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE uploads SET state = ?, failure_summary = NULL, started_at = NULL WHERE id = ? AND state = ?",
		models.UploadStateQueued, id, models.UploadStateErrored)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetStalledUploads returns processing uploads claimed more than age ago
// to the queue. A worker that dies mid-conversion leaves its claim behind;
// without this reset the row would never be offered again.
func (s *Store) ResetStalledUploads(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-age).Format("2006-01-02 15:04:05")
	res, err := s.db.ExecContext(ctx, `
		UPDATE uploads SET state = ?, started_at = NULL
		WHERE state = ? AND started_at <= ?`,
		models.UploadStateQueued, models.UploadStateProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("reset stalled uploads: %w", err)
	}
	return res.RowsAffected()
}

// DeleteUpload removes an upload row after its terminal cleanup.
func (s *Store) DeleteUpload(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM uploads WHERE id = ?", id)
	return err
}

// CountUploads returns the number of uploads per state.
func (s *Store) CountUploads(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT state, COUNT(*) FROM uploads GROUP BY state")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[state] = n
	}
	return counts, rows.Err()
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUpload(row rowScanner) (*models.Upload, error) {
	var upload models.Upload
	var failure sql.NullString
	var uploadedAt string

	err := row.Scan(&upload.ID, &upload.Repository, &upload.Commit, &upload.Root,
		&upload.Filename, &upload.State, &failure, &uploadedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if failure.Valid {
		upload.FailureSummary = failure.String
	}
	upload.UploadedAt = parseTimestamp(uploadedAt)
	return &upload, nil
}
