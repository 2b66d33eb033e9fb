// Package gifcomp builds a single-framerate composite GIF from a source
// animation and a still background. Source GIFs carry a variable delay per
// frame; the composite re-expresses the timeline at one shared interval by
// repeating each source frame, which keeps integer repeat counts while
// approximating the source's total duration.
package gifcomp

import (
	"errors"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"math"

	"github.com/disintegration/imaging"
)

// MinIntervalMS is the minimum viable shared frame interval. Malformed
// inputs with zero or negative delays are clamped to it so no frame becomes
// invisible, and it keeps the interval representable in GIF centiseconds.
const MinIntervalMS = 10

// Placement is the target rectangle for the animation on the still, in
// still-image pixels.
type Placement struct {
	X, Y, W, H int
}

// SharedInterval picks the composite's single frame interval: the GCD of
// all positive source delays, floored to MinIntervalMS.
func SharedInterval(delaysMS []int) int {
	interval := 0
	for _, d := range delaysMS {
		if d <= 0 {
			continue
		}
		interval = gcd(interval, d)
	}
	if interval < MinIntervalMS {
		return MinIntervalMS
	}
	return interval
}

// RepeatCounts maps each source delay to how many composite frames it
// spans: round(d/interval), never fewer than one. Nonpositive delays count
// as the minimum viable interval.
func RepeatCounts(delaysMS []int, interval int) []int {
	counts := make([]int, len(delaysMS))
	for i, d := range delaysMS {
		if d <= 0 {
			d = MinIntervalMS
		}
		n := int(math.Round(float64(d) / float64(interval)))
		if n < 1 {
			n = 1
		}
		counts[i] = n
	}
	return counts
}

// Composite pastes each source frame onto a fresh copy of the still at the
// given placement and emits the frames of the shared-interval composite.
// The alpha channel is discarded: frames flatten onto the opaque
// background, a permanent policy inherited from the service this replaces
// (preserved transparency would show stale background between frames).
func Composite(still image.Image, src *gif.GIF, pl Placement) (*gif.GIF, error) {
	if len(src.Image) == 0 {
		return nil, errors.New("source gif has no frames")
	}
	if pl.W <= 0 || pl.H <= 0 {
		return nil, errors.New("degenerate placement")
	}

	delays := make([]int, len(src.Image))
	for i := range src.Image {
		if i < len(src.Delay) {
			delays[i] = src.Delay[i] * 10 // GIF delays are centiseconds
		}
	}
	interval := SharedInterval(delays)
	counts := RepeatCounts(delays, interval)

	canvas := image.NewNRGBA(logicalBounds(src))
	background := imaging.Clone(still)

	out := &gif.GIF{LoopCount: 0}
	for i, frame := range src.Image {
		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)

		overlay := imaging.Resize(flattenOpaque(canvas), pl.W, pl.H, imaging.Lanczos)
		composed := imaging.Paste(background, overlay, image.Pt(pl.X, pl.Y))

		paletted := image.NewPaletted(composed.Bounds(), palette.Plan9)
		draw.FloydSteinberg.Draw(paletted, composed.Bounds(), composed, composed.Bounds().Min)

		for n := 0; n < counts[i]; n++ {
			out.Image = append(out.Image, paletted)
			out.Delay = append(out.Delay, interval/10)
		}

		if i < len(src.Disposal) && src.Disposal[i] == gif.DisposalBackground {
			clearRect(canvas, frame.Bounds())
		}
	}
	return out, nil
}

func logicalBounds(g *gif.GIF) image.Rectangle {
	w, h := g.Config.Width, g.Config.Height
	if w <= 0 || h <= 0 {
		b := g.Image[0].Bounds()
		w, h = b.Max.X, b.Max.Y
	}
	return image.Rect(0, 0, w, h)
}

// flattenOpaque drops the alpha channel, keeping the RGB values as-is.
func flattenOpaque(src *image.NRGBA) *image.NRGBA {
	out := image.NewNRGBA(src.Bounds())
	copy(out.Pix, src.Pix)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xff
	}
	return out
}

func clearRect(img *image.NRGBA, r image.Rectangle) {
	draw.Draw(img, r, image.Transparent, image.Point{}, draw.Src)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
