// Package deck reads the zip-based presentation package: slide order,
// per-slide relationship manifests, notes text, picture placements, slide
// dimensions, and the embedded media inventory. It is deliberately not a
// general PPTX object model; it surfaces exactly what the extraction and
// animation pipeline consumes.
package deck

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"webpptx/internal/models"
)

// ErrUnreadable marks a package that cannot be opened or holds no slides.
// Jobs hitting it fail terminally and are not retried.
var ErrUnreadable = errors.New("unreadable package")

// Package is the parsed document model.
type Package struct {
	Slides      []Slide
	Media       []models.MediaRef
	SlideWidth  int64 // EMU
	SlideHeight int64

	mediaByName map[string]models.MediaRef
}

// Slide carries one slide's manifest and shape data, 1-based and ordered by
// the slide part number.
type Slide struct {
	Index    int
	Notes    string
	Rels     []Relationship
	Pictures []Picture
}

// Relationship is one manifest entry: an internal part target or an
// external URL (TargetMode="External").
type Relationship struct {
	ID       string
	Type     string
	Target   string
	External bool
}

// Picture is an embedded picture shape with its declared placement in EMU.
type Picture struct {
	RelID string
	X     int64
	Y     int64
	W     int64
	H     int64
}

var (
	slidePartRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	mediaPartRe = regexp.MustCompile(`^ppt/media/(image|media)(\d+)\.([A-Za-z0-9]+)$`)
)

// Open parses the package at path.
func Open(name string) (*Package, error) {
	zr, err := zip.OpenReader(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer zr.Close()
	return parse(&zr.Reader)
}

// OpenReader parses a package from an in-memory or seekable source.
func OpenReader(r io.ReaderAt, size int64) (*Package, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return parse(zr)
}

// CountSlides reports the number of slide parts without parsing the deck.
// Admission uses it to check that animation submissions carry one still per
// slide.
func CountSlides(name string) (int, error) {
	zr, err := zip.OpenReader(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer zr.Close()
	n := 0
	for _, f := range zr.File {
		if slidePartRe.MatchString(f.Name) {
			n++
		}
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: no slide parts", ErrUnreadable)
	}
	return n, nil
}

func parse(zr *zip.Reader) (*Package, error) {
	parts := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", ErrUnreadable, f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrUnreadable, f.Name, err)
		}
		parts[f.Name] = data
	}

	pkg := &Package{mediaByName: make(map[string]models.MediaRef)}
	if err := pkg.parseDimensions(parts); err != nil {
		return nil, err
	}
	pkg.parseMedia(zr, parts)
	if err := pkg.parseSlides(parts); err != nil {
		return nil, err
	}
	return pkg, nil
}

func (p *Package) parseDimensions(parts map[string][]byte) error {
	data, ok := parts["ppt/presentation.xml"]
	if !ok {
		return fmt.Errorf("%w: missing presentation part", ErrUnreadable)
	}
	var pres struct {
		SldSz struct {
			Cx int64 `xml:"cx,attr"`
			Cy int64 `xml:"cy,attr"`
		} `xml:"sldSz"`
	}
	if err := xml.Unmarshal(data, &pres); err != nil {
		return fmt.Errorf("%w: presentation part: %v", ErrUnreadable, err)
	}
	p.SlideWidth = pres.SldSz.Cx
	p.SlideHeight = pres.SldSz.Cy
	return nil
}

// parseMedia enumerates ppt/media entries. Sequence numbers come from the
// mediaN/imageN part names, which encode insertion order.
func (p *Package) parseMedia(zr *zip.Reader, parts map[string][]byte) {
	for _, f := range zr.File {
		m := mediaPartRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		seq, _ := strconv.Atoi(m[2])
		ext := strings.ToLower(m[3])
		ref := models.MediaRef{
			Kind: classifyMedia(m[1], ext),
			Seq:  seq,
			Ext:  ext,
			Data: parts[f.Name],
		}
		p.Media = append(p.Media, ref)
		p.mediaByName[path.Base(f.Name)] = ref
	}
	sort.Slice(p.Media, func(i, j int) bool {
		a, b := p.Media[i], p.Media[j]
		if (a.Kind == models.MediaImage) != (b.Kind == models.MediaImage) {
			return a.Kind == models.MediaImage
		}
		return a.Seq < b.Seq
	})
}

func classifyMedia(prefix, ext string) models.MediaKind {
	if prefix == "image" {
		return models.MediaImage
	}
	if IsAudioExtension("." + ext) {
		return models.MediaAudio
	}
	return models.MediaVideo
}

func (p *Package) parseSlides(parts map[string][]byte) error {
	type slidePart struct {
		num  int
		name string
	}
	var found []slidePart
	for name := range parts {
		if m := slidePartRe.FindStringSubmatch(name); m != nil {
			n, _ := strconv.Atoi(m[1])
			found = append(found, slidePart{num: n, name: name})
		}
	}
	if len(found) == 0 {
		return fmt.Errorf("%w: no slide parts", ErrUnreadable)
	}
	// Numeric order: lexicographic sorting would put slide10 before slide2.
	sort.Slice(found, func(i, j int) bool { return found[i].num < found[j].num })

	for i, sp := range found {
		slide := Slide{Index: i + 1}
		slide.Pictures = parsePictures(parts[sp.name])
		slide.Rels = parseRels(parts[relsPathFor(sp.name)])
		slide.Notes = p.notesFor(slide.Rels, parts)
		p.Slides = append(p.Slides, slide)
	}
	return nil
}

func relsPathFor(slidePart string) string {
	return path.Join(path.Dir(slidePart), "_rels", path.Base(slidePart)+".rels")
}

func parseRels(data []byte) []Relationship {
	if data == nil {
		return nil
	}
	var manifest struct {
		Rels []struct {
			ID         string `xml:"Id,attr"`
			Type       string `xml:"Type,attr"`
			Target     string `xml:"Target,attr"`
			TargetMode string `xml:"TargetMode,attr"`
		} `xml:"Relationship"`
	}
	if err := xml.Unmarshal(data, &manifest); err != nil {
		return nil
	}
	rels := make([]Relationship, 0, len(manifest.Rels))
	for _, r := range manifest.Rels {
		rels = append(rels, Relationship{
			ID:       r.ID,
			Type:     r.Type,
			Target:   r.Target,
			External: strings.EqualFold(r.TargetMode, "External"),
		})
	}
	return rels
}

func parsePictures(data []byte) []Picture {
	if data == nil {
		return nil
	}
	var slide struct {
		Pics []struct {
			BlipFill struct {
				Blip struct {
					Embed string `xml:"embed,attr"`
				} `xml:"blip"`
			} `xml:"blipFill"`
			SpPr struct {
				Xfrm struct {
					Off struct {
						X int64 `xml:"x,attr"`
						Y int64 `xml:"y,attr"`
					} `xml:"off"`
					Ext struct {
						Cx int64 `xml:"cx,attr"`
						Cy int64 `xml:"cy,attr"`
					} `xml:"ext"`
				} `xml:"xfrm"`
			} `xml:"spPr"`
		} `xml:"cSld>spTree>pic"`
	}
	if err := xml.Unmarshal(data, &slide); err != nil {
		return nil
	}
	pics := make([]Picture, 0, len(slide.Pics))
	for _, pic := range slide.Pics {
		pics = append(pics, Picture{
			RelID: pic.BlipFill.Blip.Embed,
			X:     pic.SpPr.Xfrm.Off.X,
			Y:     pic.SpPr.Xfrm.Off.Y,
			W:     pic.SpPr.Xfrm.Ext.Cx,
			H:     pic.SpPr.Xfrm.Ext.Cy,
		})
	}
	return pics
}

// notesFor resolves the slide's notesSlide relationship and extracts the
// body placeholder text. A slide without notes yields the empty string.
func (p *Package) notesFor(rels []Relationship, parts map[string][]byte) string {
	for _, r := range rels {
		if r.External || !strings.HasSuffix(r.Type, "/notesSlide") {
			continue
		}
		data, ok := parts[resolveTarget("ppt/slides", r.Target)]
		if !ok {
			continue
		}
		return notesText(data)
	}
	return ""
}

func notesText(data []byte) string {
	var notes struct {
		Shapes []struct {
			Ph *struct {
				Type string `xml:"type,attr"`
			} `xml:"nvSpPr>nvPr>ph"`
			Paras []struct {
				Runs []string `xml:"r>t"`
			} `xml:"txBody>p"`
		} `xml:"cSld>spTree>sp"`
	}
	if err := xml.Unmarshal(data, &notes); err != nil {
		return ""
	}
	for _, sh := range notes.Shapes {
		if sh.Ph == nil || sh.Ph.Type != "body" {
			continue
		}
		lines := make([]string, 0, len(sh.Paras))
		for _, para := range sh.Paras {
			lines = append(lines, strings.Join(para.Runs, ""))
		}
		return strings.Join(lines, "\n")
	}
	return ""
}

// MediaByTarget looks up a relationship target like "../media/image3.png".
func (p *Package) MediaByTarget(target string) (models.MediaRef, bool) {
	resolved := resolveTarget("ppt/slides", target)
	if !strings.HasPrefix(resolved, "ppt/media/") {
		return models.MediaRef{}, false
	}
	ref, ok := p.mediaByName[path.Base(resolved)]
	return ref, ok
}

// MediaByRelID follows a slide's relationship id to its media payload.
func (p *Package) MediaByRelID(s Slide, relID string) (models.MediaRef, bool) {
	for _, r := range s.Rels {
		if r.ID == relID && !r.External {
			return p.MediaByTarget(r.Target)
		}
	}
	return models.MediaRef{}, false
}

func resolveTarget(baseDir, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	return path.Join(baseDir, target)
}
