package worker

import (
	"bytes"
	"context"
	"fmt"
	"image/gif"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"webpptx/internal/archive"
	"webpptx/internal/deck"
	"webpptx/internal/extract"
	"webpptx/internal/gifcomp"
	"webpptx/internal/models"
)

// AnimationHandler renders one image per slide: the composite GIF when the
// slide has an animation source, otherwise the supplied still unchanged.
type AnimationHandler struct{}

func NewAnimationHandler() *AnimationHandler {
	return &AnimationHandler{}
}

func (h *AnimationHandler) Handle(ctx context.Context, job models.Job) (string, error) {
	pkg, err := deck.Open(job.PackagePath)
	if err != nil {
		return "", err
	}
	if len(job.StillImages) != len(pkg.Slides) {
		return "", fmt.Errorf("got %d still images for %d slides", len(job.StillImages), len(pkg.Slides))
	}

	records := extract.Records(pkg)
	extract.FindAnimations(pkg, records)

	assets := make([]archive.Asset, 0, len(records)+len(pkg.Media))
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		stillPath := job.StillImages[i]
		stillData, err := os.ReadFile(stillPath)
		if err != nil {
			return "", fmt.Errorf("read still for slide %d: %w", rec.Index, err)
		}
		asset, err := h.slideAsset(pkg, rec, stillPath, stillData)
		if err != nil {
			return "", err
		}
		assets = append(assets, asset)
	}
	assets = append(assets, archive.MediaAssets(pkg.Media)...)

	dest := filepath.Join(filepath.Dir(job.PackagePath), "response.zip")
	if err := archive.Write(dest, job.ID, assets); err != nil {
		return "", err
	}
	return dest, nil
}

// slideAsset composites the slide's animation onto its still, falling back
// to the untouched still bytes whenever the animation cannot be used. A
// per-slide problem degrades that slide, never the job.
func (h *AnimationHandler) slideAsset(pkg *deck.Package, rec models.SlideRecord, stillPath string, stillData []byte) (archive.Asset, error) {
	fallback := archive.Asset{
		Name: fmt.Sprintf("slide%d%s", rec.Index, strings.ToLower(filepath.Ext(stillPath))),
		Data: stillData,
	}
	if rec.Animation == nil {
		return fallback, nil
	}

	srcGIF, err := gif.DecodeAll(bytes.NewReader(rec.Animation.Ref.Data))
	if err != nil {
		return fallback, nil
	}
	still, err := imaging.Decode(bytes.NewReader(stillData))
	if err != nil {
		return fallback, nil
	}

	placement, ok := scalePlacement(rec.Animation, still.Bounds().Dx(), still.Bounds().Dy(), pkg.SlideWidth, pkg.SlideHeight)
	if !ok {
		return fallback, nil
	}

	composite, err := gifcomp.Composite(still, srcGIF, placement)
	if err != nil {
		return fallback, nil
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, composite); err != nil {
		return fallback, nil
	}
	return archive.Asset{
		Name: fmt.Sprintf("slide%d.gif", rec.Index),
		Data: buf.Bytes(),
	}, nil
}

// scalePlacement converts the shape's EMU rect to still-image pixels.
func scalePlacement(src *models.AnimationSource, stillW, stillH int, slideW, slideH int64) (gifcomp.Placement, bool) {
	if slideW <= 0 || slideH <= 0 {
		return gifcomp.Placement{}, false
	}
	pl := gifcomp.Placement{
		X: int(src.X * int64(stillW) / slideW),
		Y: int(src.Y * int64(stillH) / slideH),
		W: int(src.W * int64(stillW) / slideW),
		H: int(src.H * int64(stillH) / slideH),
	}
	if pl.W <= 0 || pl.H <= 0 {
		return gifcomp.Placement{}, false
	}
	return pl, true
}
