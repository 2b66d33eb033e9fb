// Package decktest builds minimal but structurally faithful presentation
// packages for tests.
package decktest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"strings"
	"testing"
)

const notesSlideRelType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/notesSlide"

// Rel is one relationship manifest entry.
type Rel struct {
	ID     string
	Type   string
	Target string
	Mode   string // "External" for URL targets
}

// Pic is one picture shape with EMU placement.
type Pic struct {
	RelID      string
	X, Y, W, H int64
}

// Slide describes one slide part.
type Slide struct {
	Notes string
	Rels  []Rel
	Pics  []Pic
}

// Deck describes a whole package.
type Deck struct {
	SlideW int64
	SlideH int64
	Slides []Slide
	Media  map[string][]byte // file name under ppt/media
}

// Bytes renders the package as a zip.
func (d Deck) Bytes(t *testing.T) []byte {
	t.Helper()
	w := int64(9144000)
	h := int64(6858000)
	if d.SlideW != 0 {
		w = d.SlideW
	}
	if d.SlideH != 0 {
		h = d.SlideH
	}

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	add := func(name, content string) {
		f, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	add("ppt/presentation.xml", fmt.Sprintf(
		`<?xml version="1.0"?><p:presentation xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"><p:sldSz cx="%d" cy="%d"/></p:presentation>`, w, h))

	for i, slide := range d.Slides {
		n := i + 1
		add(fmt.Sprintf("ppt/slides/slide%d.xml", n), slideXML(slide))

		rels := slide.Rels
		if slide.Notes != "" {
			rels = append(rels, Rel{
				ID:     fmt.Sprintf("rIdNotes%d", n),
				Type:   notesSlideRelType,
				Target: fmt.Sprintf("../notesSlides/notesSlide%d.xml", n),
			})
			add(fmt.Sprintf("ppt/notesSlides/notesSlide%d.xml", n), notesXML(slide.Notes))
		}
		add(fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", n), relsXML(rels))
	}

	for name, data := range d.Media {
		f, err := zw.Create("ppt/media/" + name)
		if err != nil {
			t.Fatalf("create media %s: %v", name, err)
		}
		if _, err := f.Write(data); err != nil {
			t.Fatalf("write media %s: %v", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// WriteFile renders the package to a file and returns its path.
func (d Deck) WriteFile(t *testing.T, path string) string {
	t.Helper()
	if err := os.WriteFile(path, d.Bytes(t), 0o644); err != nil {
		t.Fatalf("write package: %v", err)
	}
	return path
}

func slideXML(s Slide) string {
	var pics strings.Builder
	for _, p := range s.Pics {
		fmt.Fprintf(&pics,
			`<p:pic><p:blipFill><a:blip r:embed="%s"/></p:blipFill><p:spPr><a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm></p:spPr></p:pic>`,
			p.RelID, p.X, p.Y, p.W, p.H)
	}
	return `<?xml version="1.0"?><p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><p:cSld><p:spTree>` +
		pics.String() + `</p:spTree></p:cSld></p:sld>`
}

func notesXML(notes string) string {
	var paras strings.Builder
	for _, line := range strings.Split(notes, "\n") {
		fmt.Fprintf(&paras, `<a:p><a:r><a:t>%s</a:t></a:r></a:p>`, line)
	}
	return `<?xml version="1.0"?><p:notes xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"><p:cSld><p:spTree>` +
		`<p:sp><p:nvSpPr><p:nvPr><p:ph type="sldImg"/></p:nvPr></p:nvSpPr><p:txBody><a:p><a:r><a:t>ignored</a:t></a:r></a:p></p:txBody></p:sp>` +
		`<p:sp><p:nvSpPr><p:nvPr><p:ph type="body"/></p:nvPr></p:nvSpPr><p:txBody>` + paras.String() + `</p:txBody></p:sp>` +
		`</p:spTree></p:cSld></p:notes>`
}

func relsXML(rels []Rel) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for _, r := range rels {
		b.WriteString(`<Relationship Id="` + r.ID + `" Type="` + r.Type + `" Target="` + r.Target + `"`)
		if r.Mode != "" {
			b.WriteString(` TargetMode="` + r.Mode + `"`)
		}
		b.WriteString(`/>`)
	}
	b.WriteString(`</Relationships>`)
	return b.String()
}
