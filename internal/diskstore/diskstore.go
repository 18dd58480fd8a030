// Package diskstore manages the on-disk layout of the storage root: upload
// payloads, in-progress conversion temp files, and published artifact
// databases.
package diskstore

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

const (
	UploadsDir = "uploads"
	TempDir    = "temp"
	DBsDir     = "dbs"
)

// ErrTargetExists is returned by Publish when a file already occupies the
// destination path. Overwriting silently could leave stale content behind a
// fresh dump's identity, so publication fails loudly instead.
var ErrTargetExists = errors.New("publish target already exists")

// Store is a filesystem layout rooted at a single directory. Artifact paths
// are derived deterministically from dump metadata, so any process can
// recompute a dump's file location without coordination.
type Store struct {
	root string
}

// New creates the storage root and its subdirectories if needed.
func New(root string) (*Store, error) {
	for _, dir := range []string{root, filepath.Join(root, UploadsDir), filepath.Join(root, TempDir), filepath.Join(root, DBsDir)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}
	return &Store{root: root}, nil
}

// Root returns the storage root directory.
func (s *Store) Root() string {
	return s.root
}

// UploadPath returns the payload location for an upload ID.
func (s *Store) UploadPath(id int64) string {
	return filepath.Join(s.root, UploadsDir, fmt.Sprintf("%d.lsif.gz", id))
}

// TempPath returns the conversion scratch location for an upload payload.
func (s *Store) TempPath(base string) string {
	return filepath.Join(s.root, TempDir, base)
}

// DBPath returns the published artifact location for a dump. The filename
// encodes the dump ID, repository, and commit so it can be recomputed from
// metadata alone.
func (s *Store) DBPath(id int64, repository, commit string) string {
	name := fmt.Sprintf("%d-%s@%s.db", id, url.PathEscape(repository), commit)
	return filepath.Join(s.root, DBsDir, name)
}

// Publish atomically moves a converted temp file to its final path via
// rename. Rename is atomic within a filesystem, so no reader observes a
// partially written artifact under the final name. An existing file at the
// target is an error, never silently replaced.
func (s *Store) Publish(tempPath, finalPath string) error {
	if _, err := os.Stat(finalPath); err == nil {
		return fmt.Errorf("%s: %w", finalPath, ErrTargetExists)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat publish target: %w", err)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		return fmt.Errorf("publish artifact: %w", err)
	}
	return nil
}

// DBDirSize sums the sizes of the immediate entries of the artifact
// directory. Files that disappear mid-scan count as zero.
func (s *Store) DBDirSize() (int64, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, DBsDir))
	if err != nil {
		return 0, fmt.Errorf("read artifact directory: %w", err)
	}

	var total int64
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

// FileSize returns a file's size, or zero if it no longer exists.
func (s *Store) FileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// Remove deletes a file, tolerating it already being gone.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
