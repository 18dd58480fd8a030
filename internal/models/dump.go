package models

import "time"

// Dump is a converted, queryable artifact for one (repository, commit, root)
// triple. At most one dump exists per triple; the on-disk database file is
// derived deterministically from ID, Repository, and Commit.
type Dump struct {
	ID           int64     `json:"id"`
	Repository   string    `json:"repository"`
	Commit       string    `json:"commit"`
	Root         string    `json:"root,omitempty"`
	VisibleAtTip bool      `json:"visible_at_tip"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// ShortCommit returns a shortened commit ID (first 7 characters)
func (d *Dump) ShortCommit() string {
	if len(d.Commit) > 7 {
		return d.Commit[:7]
	}
	return d.Commit
}
