package worker

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gupsho/sourcegraph/internal/diskstore"
	"github.com/gupsho/sourcegraph/internal/models"
	"github.com/gupsho/sourcegraph/internal/store"
)

// Enqueue registers a new upload: it inserts a queued row, copies the bundle
// into the uploads area under an ID-derived name, and records that location
// on the row. The row is removed again if the payload cannot be copied.
func Enqueue(ctx context.Context, st *store.Store, disk *diskstore.Store, repository, commit, root, bundlePath string) (int64, error) {
	if repository == "" || commit == "" {
		return 0, fmt.Errorf("repository and commit are required")
	}

	id, err := st.InsertUpload(ctx, &models.Upload{
		Repository: repository,
		Commit:     commit,
		Root:       root,
	})
	if err != nil {
		return 0, err
	}

	payloadPath := disk.UploadPath(id)
	if err := copyFile(bundlePath, payloadPath); err != nil {
		st.DeleteUpload(ctx, id)
		return 0, fmt.Errorf("stage upload payload: %w", err)
	}

	if err := st.SetUploadFilename(ctx, id, payloadPath); err != nil {
		disk.Remove(payloadPath)
		st.DeleteUpload(ctx, id)
		return 0, err
	}

	return id, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
