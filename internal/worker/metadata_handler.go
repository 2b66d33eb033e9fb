package worker

import (
	"context"
	"path/filepath"

	"webpptx/internal/archive"
	"webpptx/internal/deck"
	"webpptx/internal/extract"
	"webpptx/internal/models"
)

// MetadataHandler produces the structured metadata document plus the
// resolved media set for a submission.
type MetadataHandler struct{}

func NewMetadataHandler() *MetadataHandler {
	return &MetadataHandler{}
}

// Handle parses the package, extracts the slide records, and writes the
// result archive next to the job's inputs.
func (h *MetadataHandler) Handle(ctx context.Context, job models.Job) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	pkg, err := deck.Open(job.PackagePath)
	if err != nil {
		return "", err
	}

	records := extract.Records(pkg)
	assets, err := archive.MetadataAssets(records, pkg.Media)
	if err != nil {
		return "", err
	}

	dest := filepath.Join(filepath.Dir(job.PackagePath), "response.zip")
	if err := archive.Write(dest, job.ID, assets); err != nil {
		return "", err
	}
	return dest, nil
}
