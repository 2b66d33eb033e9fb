// Package archive assembles the retrievable result for a completed job:
// one zip with every artifact under a response/<jobID>/ subfolder.
package archive

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"os"
	"path"

	"webpptx/internal/models"
)

// MetadataFilename is the structured document inside metadata-job archives.
const MetadataFilename = "webpptx-metadata.json"

// Asset is one file destined for the result archive.
type Asset struct {
	Name string
	Data []byte
}

// MetadataDocument is the slide-indexed metadata payload. Every array is
// indexed 1..n by slide; empty arrays mean "no data for this slide", a key
// is never omitted.
type MetadataDocument struct {
	AspectRatio    string     `json:"aspect_ratio"`
	Notes          []string   `json:"notes"`
	Videos         [][]string `json:"videos"`
	Audio          [][]string `json:"audio"`
	EmbeddedVideos [][]string `json:"embedded_videos"`
}

// BuildMetadataDocument flattens slide records into the document format.
func BuildMetadataDocument(records []models.SlideRecord) MetadataDocument {
	doc := MetadataDocument{
		Notes:          make([]string, 0, len(records)),
		Videos:         make([][]string, 0, len(records)),
		Audio:          make([][]string, 0, len(records)),
		EmbeddedVideos: make([][]string, 0, len(records)),
	}
	for _, rec := range records {
		doc.AspectRatio = rec.AspectRatio
		doc.Notes = append(doc.Notes, rec.Notes)
		urls := rec.ExternalVideoURLs
		if urls == nil {
			urls = []string{}
		}
		doc.Videos = append(doc.Videos, urls)

		audio := []string{}
		video := []string{}
		for _, ref := range rec.EmbeddedMedia {
			switch ref.Kind {
			case models.MediaAudio:
				audio = append(audio, ref.Filename())
			case models.MediaVideo:
				video = append(video, ref.Filename())
			}
		}
		doc.Audio = append(doc.Audio, audio)
		doc.EmbeddedVideos = append(doc.EmbeddedVideos, video)
	}
	return doc
}

// MetadataAssets renders the document plus the resolved media files.
func MetadataAssets(records []models.SlideRecord, media []models.MediaRef) ([]Asset, error) {
	doc := BuildMetadataDocument(records)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal metadata document: %w", err)
	}
	assets := []Asset{{Name: MetadataFilename, Data: data}}
	return append(assets, MediaAssets(media)...), nil
}

// MediaAssets renames resolved media by kind-class sequence number.
func MediaAssets(media []models.MediaRef) []Asset {
	assets := make([]Asset, 0, len(media))
	for _, ref := range media {
		assets = append(assets, Asset{Name: ref.Filename(), Data: ref.Data})
	}
	return assets
}

// Write creates the archive at dest. Entries land under response/<jobID>/
// so a client unpacking several retrievals never collides. The archive is
// written once and treated as immutable afterwards.
func Write(dest, jobID string, assets []Asset) error {
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, asset := range assets {
		w, err := zw.Create(path.Join("response", jobID, asset.Name))
		if err != nil {
			return fmt.Errorf("add %s: %w", asset.Name, err)
		}
		if _, err := w.Write(asset.Data); err != nil {
			return fmt.Errorf("write %s: %w", asset.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return f.Close()
}
