// Package converter defines the boundary to the external bundle conversion
// tool, which turns a raw index bundle into a queryable artifact database.
package converter

import (
	"context"

	"github.com/gupsho/sourcegraph/internal/models"
)

// Result carries the package relations extracted during conversion.
type Result struct {
	Packages   []models.Package   `json:"packages"`
	References []models.Reference `json:"references"`
}

// Converter turns the bundle at sourcePath into a queryable artifact at
// destPath and reports the packages the artifact exports and references.
// Implementations must not leave a usable partial file at destPath on
// failure; the orchestrator removes whatever remains there regardless.
type Converter interface {
	Convert(ctx context.Context, sourcePath, destPath string) (*Result, error)
}
