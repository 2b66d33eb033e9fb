package worker

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"webpptx/internal/archive"
	"webpptx/internal/deck/decktest"
	"webpptx/internal/models"
)

const imageRelType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"

func encodeGIF(t *testing.T, frames int) []byte {
	t.Helper()
	g := &gif.GIF{Config: image.Config{Width: 8, Height: 8}}
	for i := 0; i < frames; i++ {
		p := image.NewPaletted(image.Rect(0, 0, 8, 8), color.Palette{
			color.RGBA{R: 255, A: 255},
			color.RGBA{B: 255, A: 255},
		})
		g.Image = append(g.Image, p)
		g.Delay = append(g.Delay, 10)
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		t.Fatalf("encode gif: %v", err)
	}
	return buf.Bytes()
}

func writeStillPNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readArchive(t *testing.T, path string) map[string][]byte {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()
	out := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", f.Name, err)
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			t.Fatalf("read entry %s: %v", f.Name, err)
		}
		rc.Close()
		out[f.Name] = buf.Bytes()
	}
	return out
}

func TestMetadataHandlerBuildsDocumentAndMedia(t *testing.T) {
	dir := t.TempDir()
	pkgPath := decktest.Deck{
		Slides: []decktest.Slide{
			{
				Notes: "welcome",
				Rels: []decktest.Rel{
					{ID: "rId1", Type: "http://schemas.openxmlformats.org/officeDocument/2006/relationships/video", Target: "https://www.youtube.com/watch?v=abc", Mode: "External"},
					{ID: "rId2", Type: imageRelType, Target: "../media/image1.png"},
				},
			},
			{},
		},
		Media: map[string][]byte{
			"image1.png": []byte("still"),
			"media1.mp3": []byte("sound"),
		},
	}.WriteFile(t, filepath.Join(dir, "pres.pptx"))

	job := models.Job{ID: "meta-1", Kind: models.KindMetadata, PackagePath: pkgPath}
	dest, err := NewMetadataHandler().Handle(context.Background(), job)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	entries := readArchive(t, dest)
	docData, ok := entries["response/meta-1/"+archive.MetadataFilename]
	if !ok {
		t.Fatalf("metadata document missing, entries: %v", keys(entries))
	}

	var doc archive.MetadataDocument
	if err := json.Unmarshal(docData, &doc); err != nil {
		t.Fatalf("unmarshal document: %v", err)
	}
	if doc.AspectRatio != "4:3" {
		t.Fatalf("aspect ratio = %s", doc.AspectRatio)
	}
	if len(doc.Notes) != 2 || doc.Notes[0] != "welcome" || doc.Notes[1] != "" {
		t.Fatalf("notes = %v", doc.Notes)
	}
	if len(doc.Videos[0]) != 1 || len(doc.Videos[1]) != 0 {
		t.Fatalf("videos = %v", doc.Videos)
	}

	if _, ok := entries["response/meta-1/image1.png"]; !ok {
		t.Fatal("resolved image missing from archive")
	}
	if _, ok := entries["response/meta-1/media1.mp3"]; !ok {
		t.Fatal("resolved audio missing from archive")
	}
}

func TestAnimationHandlerCompositesSingleGIFSlide(t *testing.T) {
	dir := t.TempDir()
	pkgPath := decktest.Deck{
		Slides: []decktest.Slide{{
			Rels: []decktest.Rel{{ID: "rId1", Type: imageRelType, Target: "../media/image1.gif"}},
			Pics: []decktest.Pic{{RelID: "rId1", X: 0, Y: 0, W: 4572000, H: 3429000}},
		}},
		Media: map[string][]byte{"image1.gif": encodeGIF(t, 3)},
	}.WriteFile(t, filepath.Join(dir, "pres.pptx"))

	still := writeStillPNG(t, dir, "still1.png", 40, 30)
	job := models.Job{
		ID:          "anim-1",
		Kind:        models.KindAnimation,
		PackagePath: pkgPath,
		StillImages: []string{still},
	}

	dest, err := NewAnimationHandler().Handle(context.Background(), job)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	entries := readArchive(t, dest)
	data, ok := entries["response/anim-1/slide1.gif"]
	if !ok {
		t.Fatalf("composite gif missing, entries: %v", keys(entries))
	}

	out, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode composite: %v", err)
	}
	if len(out.Image) != 3 {
		t.Fatalf("composite has %d frames, want 3", len(out.Image))
	}
	if out.Config.Width != 40 || out.Config.Height != 30 {
		t.Fatalf("composite dims %dx%d, want still dims", out.Config.Width, out.Config.Height)
	}

	// The source media itself still rides along in the archive.
	if _, ok := entries["response/anim-1/image1.gif"]; !ok {
		t.Fatal("source media missing from archive")
	}
}

func TestAnimationHandlerFallsBackToStill(t *testing.T) {
	dir := t.TempDir()

	// Slide 1 has no animation at all; slide 2 carries a corrupt GIF.
	pkgPath := decktest.Deck{
		Slides: []decktest.Slide{
			{},
			{
				Rels: []decktest.Rel{{ID: "rId1", Type: imageRelType, Target: "../media/image1.gif"}},
				Pics: []decktest.Pic{{RelID: "rId1", X: 0, Y: 0, W: 4572000, H: 3429000}},
			},
		},
		Media: map[string][]byte{"image1.gif": []byte("not a gif")},
	}.WriteFile(t, filepath.Join(dir, "pres.pptx"))

	stills := []string{
		writeStillPNG(t, dir, "still1.png", 40, 30),
		writeStillPNG(t, dir, "still2.png", 40, 30),
	}
	job := models.Job{ID: "anim-2", Kind: models.KindAnimation, PackagePath: pkgPath, StillImages: stills}

	dest, err := NewAnimationHandler().Handle(context.Background(), job)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	entries := readArchive(t, dest)
	for i, stillPath := range stills {
		name := fmt.Sprintf("response/anim-2/slide%d.png", i+1)
		got, ok := entries[name]
		if !ok {
			t.Fatalf("%s missing, entries: %v", name, keys(entries))
		}
		want, _ := os.ReadFile(stillPath)
		if !bytes.Equal(got, want) {
			t.Fatalf("slide %d fallback is not the untouched still", i+1)
		}
	}
}

func TestAnimationHandlerRejectsCountMismatch(t *testing.T) {
	dir := t.TempDir()
	pkgPath := decktest.Deck{Slides: []decktest.Slide{{}, {}}}.WriteFile(t, filepath.Join(dir, "pres.pptx"))

	job := models.Job{
		ID:          "anim-3",
		Kind:        models.KindAnimation,
		PackagePath: pkgPath,
		StillImages: []string{writeStillPNG(t, dir, "still1.png", 10, 10)},
	}
	if _, err := NewAnimationHandler().Handle(context.Background(), job); err == nil {
		t.Fatal("expected error for still/slide count mismatch")
	} else if !strings.Contains(err.Error(), "still images") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func keys(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
