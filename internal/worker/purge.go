package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/gupsho/sourcegraph/internal/diskstore"
	"github.com/gupsho/sourcegraph/internal/store"
)

const (
	// retentionLockName serializes the purge loop across all workers. Two
	// concurrent purges could otherwise both observe the same over-quota
	// condition and collectively delete more dumps than necessary.
	retentionLockName = "retention"

	retentionLeaseTTL = 5 * time.Minute
)

// PurgeResult contains the outcome of a retention purge run.
type PurgeResult struct {
	BytesBefore    int64
	BytesAfter     int64
	DumpsDeleted   int
	QuotaSatisfied bool
}

// PurgeOldDumps evicts the least valuable dumps until the artifact directory
// fits within maxBytes. A negative maxBytes means no limit. The whole loop
// runs under the retention lock so size accounting stays consistent across
// the full decision sequence.
//
// Dumps visible from a repository tip are never candidates; when only those
// remain the loop stops and reports the unmet quota as a warning rather than
// deleting code intelligence still in use. Files that vanish between
// measurement and deletion count as zero bytes, so the final size may drift
// slightly above the quota in that race; the drift is bounded by one
// artifact per vanished file and corrects itself on the next purge.
func PurgeOldDumps(ctx context.Context, st *store.Store, disk *diskstore.Store, maxBytes int64, logger *slog.Logger) (*PurgeResult, error) {
	result := &PurgeResult{QuotaSatisfied: true}
	if maxBytes < 0 {
		return result, nil
	}

	err := st.WithLock(ctx, retentionLockName, retentionLeaseTTL, func(ctx context.Context) error {
		size, err := disk.DBDirSize()
		if err != nil {
			return err
		}
		result.BytesBefore = size

		for size > maxBytes {
			dump, err := st.GetOldestPrunableDump(ctx)
			if err != nil {
				return err
			}
			if dump == nil {
				logger.Warn("disk usage exceeds quota but no dump can be pruned",
					"size", size, "max", maxBytes)
				result.QuotaSatisfied = false
				break
			}

			path := disk.DBPath(dump.ID, dump.Repository, dump.Commit)
			size -= disk.FileSize(path)

			// File first: a dump row without a file stays prunable and is
			// retried on a later pass, while an orphaned file would never
			// be reclaimed.
			if err := disk.Remove(path); err != nil {
				return err
			}
			if err := st.DeleteDump(ctx, dump.ID); err != nil {
				return err
			}
			result.DumpsDeleted++

			logger.Info("pruned dump",
				"dump", dump.ID,
				"repository", dump.Repository,
				"commit", dump.ShortCommit(),
			)
		}

		result.BytesAfter = size
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.DumpsDeleted > 0 {
		logger.Info("purge complete",
			"deleted", result.DumpsDeleted,
			"bytes_before", result.BytesBefore,
			"bytes_after", result.BytesAfter,
		)
	}

	return result, nil
}
