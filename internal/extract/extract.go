// Package extract turns the parsed document model into the ordered
// per-slide records that result packaging consumes.
package extract

import (
	"webpptx/internal/deck"
	"webpptx/internal/models"
)

// Records builds one SlideRecord per slide, index-aligned 1..n. Every
// array field is present on every slide; slides without data carry empty
// slices. Aspect ratio is computed once from the package dimensions and
// repeated on each record.
func Records(pkg *deck.Package) []models.SlideRecord {
	ratio := AspectRatio(pkg.SlideWidth, pkg.SlideHeight)
	records := make([]models.SlideRecord, 0, len(pkg.Slides))
	for _, slide := range pkg.Slides {
		rec := models.SlideRecord{
			Index:             slide.Index,
			Notes:             slide.Notes,
			ExternalVideoURLs: []string{},
			EmbeddedMedia:     []models.MediaRef{},
			AspectRatio:       ratio,
		}
		seen := map[string]bool{}
		for _, rel := range slide.Rels {
			if rel.External {
				if deck.IsVideoTarget(rel.Target) && !seen[rel.Target] {
					seen[rel.Target] = true
					rec.ExternalVideoURLs = append(rec.ExternalVideoURLs, rel.Target)
				}
				continue
			}
			// Unresolvable internal targets are absent, never fatal.
			if ref, ok := pkg.MediaByTarget(rel.Target); ok {
				rec.EmbeddedMedia = append(rec.EmbeddedMedia, ref)
			}
		}
		records = append(records, rec)
	}
	return records
}

// AspectRatio buckets the slide dimensions the way the service always has:
// anything narrower than 1.4 is 4:3, the rest is 16:9.
func AspectRatio(width, height int64) string {
	if height <= 0 {
		return "16:9"
	}
	if float64(width)/float64(height) < 1.4 {
		return "4:3"
	}
	return "16:9"
}

// FindAnimations fills in each record's animation source: the slide's
// embedded GIF picture, if exactly one is present. Zero or several GIF
// pictures mean the slide keeps its still image; ambiguity degrades
// locally instead of failing the job.
func FindAnimations(pkg *deck.Package, records []models.SlideRecord) {
	for i, slide := range pkg.Slides {
		var sources []models.AnimationSource
		for _, pic := range slide.Pictures {
			ref, ok := pkg.MediaByRelID(slide, pic.RelID)
			if !ok || ref.Ext != "gif" {
				continue
			}
			sources = append(sources, models.AnimationSource{
				Ref: ref,
				X:   pic.X,
				Y:   pic.Y,
				W:   pic.W,
				H:   pic.H,
			})
		}
		if len(sources) == 1 {
			records[i].Animation = &sources[0]
		}
	}
}
