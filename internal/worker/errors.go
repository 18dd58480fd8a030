package worker

import "errors"

// ErrNoTip is returned when a repository has no resolvable head commit.
// Visibility is meaningless without a tip, so the pipeline call aborts.
var ErrNoTip = errors.New("repository has no resolvable tip")
