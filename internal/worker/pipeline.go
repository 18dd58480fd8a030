// Package worker implements the upload ingestion pipeline: bundle
// conversion, commit-graph visibility updates, and disk-quota retention.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gupsho/sourcegraph/internal/converter"
	"github.com/gupsho/sourcegraph/internal/diskstore"
	"github.com/gupsho/sourcegraph/internal/gitserver"
	"github.com/gupsho/sourcegraph/internal/models"
	"github.com/gupsho/sourcegraph/internal/store"
)

// Pipeline processes one upload end to end: convert the bundle, publish the
// dump, recompute tip visibility, then enforce the disk quota.
type Pipeline struct {
	store     *store.Store
	disk      *diskstore.Store
	converter converter.Converter
	git       gitserver.Client
	maxBytes  int64
	logger    *slog.Logger
}

// NewPipeline creates a pipeline over the given collaborators.
func NewPipeline(st *store.Store, disk *diskstore.Store, conv converter.Converter, git gitserver.Client, maxBytes int64, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:     st,
		disk:      disk,
		converter: conv,
		git:       git,
		maxBytes:  maxBytes,
		logger:    logger,
	}
}

// Process runs the full pipeline for a claimed upload. Conversion and
// visibility failures abort the call; retention failures are absorbed since
// the system can keep operating over quota until a later purge succeeds.
func (p *Pipeline) Process(ctx context.Context, upload *models.Upload) error {
	logger := p.logger.With(
		"upload", upload.ID,
		"repository", upload.Repository,
		"commit", upload.Commit,
		"root", upload.Root,
	)

	dumpID, err := p.convertUpload(ctx, upload, logger)
	if err != nil {
		if markErr := p.store.MarkUploadErrored(ctx, upload.ID, err.Error()); markErr != nil {
			logger.Error("failed to record upload failure", "error", markErr)
		}
		return fmt.Errorf("convert upload %d: %w", upload.ID, err)
	}
	logger.Info("converted upload", "dump", dumpID)

	// The upload is fully ingested; its queue row can go. The payload file
	// was already removed on conversion success.
	if err := p.store.DeleteUpload(ctx, upload.ID); err != nil {
		logger.Error("failed to delete upload row", "error", err)
	}

	if err := p.updateCommitsAndVisibility(ctx, upload.Repository, upload.Commit, logger); err != nil {
		return fmt.Errorf("update visibility for %s: %w", upload.Repository, err)
	}

	if _, err := PurgeOldDumps(ctx, p.store, p.disk, p.maxBytes, logger); err != nil {
		logger.Warn("retention purge failed", "error", err)
	}

	return nil
}

// convertUpload stages the converter's output, frees the dump key, publishes
// metadata and dependencies in one transaction, and atomically renames the
// artifact into place. On any failure the temp file is removed and the
// upload payload is kept so a retry can re-attempt conversion.
func (p *Pipeline) convertUpload(ctx context.Context, upload *models.Upload, logger *slog.Logger) (int64, error) {
	tempPath := p.disk.TempPath(filepath.Base(upload.Filename))

	result, err := p.converter.Convert(ctx, upload.Filename, tempPath)
	if err != nil {
		p.removeTemp(tempPath, logger)
		return 0, err
	}

	// Free the (repository, commit, root) key before inserting the new row,
	// or the uniqueness constraint on dumps rejects the insert.
	overlapping, err := p.store.DeleteOverlappingDumps(ctx, upload.Repository, upload.Commit, upload.Root)
	if err != nil {
		p.removeTemp(tempPath, logger)
		return 0, fmt.Errorf("delete overlapping dumps: %w", err)
	}
	for _, old := range overlapping {
		logger.Info("replacing overlapping dump", "dump", old.ID)
		if err := p.disk.Remove(p.disk.DBPath(old.ID, old.Repository, old.Commit)); err != nil {
			logger.Warn("failed to remove overlapping dump file", "dump", old.ID, "error", err)
		}
	}

	dump := &models.Dump{
		Repository: upload.Repository,
		Commit:     upload.Commit,
		Root:       upload.Root,
	}
	dumpID, err := p.store.CreateDumpWithDependencies(ctx, dump, result.Packages, result.References)
	if err != nil {
		p.removeTemp(tempPath, logger)
		return 0, fmt.Errorf("publish dump metadata: %w", err)
	}

	if err := p.disk.Publish(tempPath, p.disk.DBPath(dumpID, upload.Repository, upload.Commit)); err != nil {
		p.removeTemp(tempPath, logger)
		return 0, err
	}

	// Full success; the source payload is no longer needed.
	if err := p.disk.Remove(upload.Filename); err != nil {
		logger.Warn("failed to remove upload payload", "error", err)
	}

	return dumpID, nil
}

func (p *Pipeline) removeTemp(tempPath string, logger *slog.Logger) {
	if err := p.disk.Remove(tempPath); err != nil {
		logger.Warn("failed to remove temp artifact", "path", tempPath, "error", err)
	}
}
