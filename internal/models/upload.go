package models

import "time"

// Upload states as stored in the uploads table.
const (
	UploadStateQueued     = "queued"
	UploadStateProcessing = "processing"
	UploadStateErrored    = "errored"
)

// Upload is an unprocessed request to ingest a code-intelligence bundle
// for one (repository, commit, root) triple. The payload file lives in
// the uploads area of the storage root until conversion succeeds.
type Upload struct {
	ID             int64     `json:"id"`
	Repository     string    `json:"repository"`
	Commit         string    `json:"commit"`
	Root           string    `json:"root,omitempty"`
	Filename       string    `json:"filename"`
	State          string    `json:"state"`
	FailureSummary string    `json:"failure_summary,omitempty"`
	UploadedAt     time.Time `json:"uploaded_at"`
}
