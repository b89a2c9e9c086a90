// Package waterfallimg renders a dedrift plane as a heatmap PNG/JPEG, with
// an optional frequency/time grid and hit-location overlay. The gradient
// and grid-drawing approach is ported wholesale from extraction.go's
// GetColor/DrawGrid, pointed at dedrift.Plane.Power instead of a sqlite
// waterfall query.
package waterfallimg

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/hb9tf/bliss/dedrift"
	"github.com/hb9tf/bliss/hit"
)

var (
	// heatColors defines the gradient in the heatmap. The higher the
	// index, the warmer.
	heatColors = map[int]color.RGBA{
		0: {0, 0, 0, 255},       // black
		1: {0, 0, 255, 255},     // blue
		2: {0, 255, 255, 255},   // cyan
		3: {0, 255, 0, 255},     // green
		4: {255, 255, 0, 255},   // yellow
		5: {255, 0, 0, 255},     // red
		6: {255, 255, 255, 255}, // white
	}

	gridColor           = color.RGBA{0, 0, 0, 255}
	gridBackgroundColor = color.RGBA{255, 255, 255, 255}
	hitMarkerColor      = color.RGBA{255, 0, 255, 255} // magenta, stands out against the gradient

	expSuffixLookup = map[int]string{
		0: "Hz",
		1: "kHz",
		2: "MHz",
		3: "GHz",
	}
)

const (
	gridMarginTop  = 20
	gridMarginLeft = 150
	gridTickLen    = 10
	gridMinStepX   = 100
	gridMinStepY   = 20

	hitMarkerRadius = 3
)

// GetColor determines the color of a pixel based on a color gradient and a
// pixel "level". http://www.andrewnoske.com/wiki/Code_-_heatmaps_and_color_gradients
func GetColor(lvl uint16) color.RGBA {
	for i := 0; i < len(heatColors); i++ {
		currC := heatColors[i]
		currV := uint16(i * math.MaxUint16 / len(heatColors))
		if lvl < currV {
			prevI := int(math.Max(0.0, float64(i-1)))
			prevC := heatColors[prevI]
			prevV := float64(prevI * math.MaxUint16 / len(heatColors))
			diff := prevV - float64(currV)
			fract := 0.0
			if diff != 0 {
				fract = (float64(lvl) - float64(currV)) / diff
			}
			return color.RGBA{
				uint8((float64(prevC.R)-float64(currC.R))*fract + float64(currC.R)),
				uint8((float64(prevC.G)-float64(currC.G))*fract + float64(currC.G)),
				uint8((float64(prevC.B)-float64(currC.B))*fract + float64(currC.B)),
				uint8((float64(prevC.A)-float64(currC.A))*fract + float64(currC.A)),
			}
		}
	}
	return heatColors[len(heatColors)-1]
}

// GetReadableFreq formats a frequency in Hz with an appropriate SI suffix.
func GetReadableFreq(freqHz float64) string {
	exp := 0
	for f := freqHz; f > 1000 && exp < 3; f = f / 1000.0 {
		exp++
	}
	return fmt.Sprintf("%.2f %s", freqHz/math.Pow(1000, float64(exp)), expSuffixLookup[exp])
}

func drawTick(canvas *image.RGBA, start image.Point, length int, horizontal bool) {
	for i := 0; i <= length; i++ {
		if horizontal {
			canvas.SetRGBA(start.X+i, start.Y, gridColor)
		} else {
			canvas.SetRGBA(start.X, start.Y+i, gridColor)
		}
	}
}

func findGridStepSize(step int, horizontal bool) int {
	gridMinStep := gridMinStepY
	if horizontal {
		gridMinStep = gridMinStepX
	}
	for step > gridMinStep {
		n := step / 2
		if n < gridMinStep {
			return step
		}
		step = n
	}
	return step
}

// DrawGrid enlarges source to make room for a margin, then overlays
// frequency ticks along X and time ticks along Y.
func DrawGrid(source *image.RGBA, lowFreqHz, highFreqHz float64, durationSec float64) *image.RGBA {
	canvas := image.NewRGBA(image.Rectangle{
		Min: image.Point{source.Bounds().Min.X, source.Bounds().Min.Y},
		Max: image.Point{source.Bounds().Max.X - 1 + gridMarginLeft, source.Bounds().Max.Y - 1 + gridMarginTop},
	})
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{gridBackgroundColor}, canvas.Bounds().Min, draw.Src)
	r := canvas.Bounds()
	r.Min.X += gridMarginLeft
	r.Min.Y += gridMarginTop
	draw.Draw(canvas, r, source, source.Bounds().Min, draw.Src)

	xStep := findGridStepSize(source.Bounds().Max.X, true)
	for i := source.Bounds().Min.X; i < source.Bounds().Max.X; i += xStep {
		drawTick(canvas, image.Point{
			canvas.Bounds().Min.X + gridMarginLeft + i,
			canvas.Bounds().Min.Y + gridMarginTop - gridTickLen,
		}, gridTickLen, false)
		point := fixed.Point26_6{
			X: fixed.Int26_6((canvas.Bounds().Min.X + gridMarginLeft + i + 5) * 64),
			Y: fixed.Int26_6((canvas.Bounds().Min.Y + gridMarginTop - 2) * 64),
		}
		d := &font.Drawer{Dst: canvas, Src: image.NewUniform(gridColor), Face: basicfont.Face7x13, Dot: point}
		freq := lowFreqHz + ((float64(i) * (highFreqHz - lowFreqHz)) / float64(source.Bounds().Max.X))
		d.DrawString(GetReadableFreq(freq))
	}

	yStep := findGridStepSize(source.Bounds().Max.Y, false)
	for i := source.Bounds().Min.Y; i < source.Bounds().Max.Y; i += yStep {
		drawTick(canvas, image.Point{
			canvas.Bounds().Min.X + gridMarginLeft - gridTickLen,
			canvas.Bounds().Min.Y + gridMarginTop + i,
		}, gridTickLen, true)
		timePoint := fixed.Point26_6{
			X: fixed.Int26_6((canvas.Bounds().Min.X + 5) * 64),
			Y: fixed.Int26_6((canvas.Bounds().Min.Y + gridMarginTop + i + 12) * 64),
		}
		d := &font.Drawer{Dst: canvas, Src: image.NewUniform(gridColor), Face: basicfont.Face7x13, Dot: timePoint}
		t := (float64(i) * durationSec) / float64(source.Bounds().Max.Y)
		d.DrawString(fmt.Sprintf("%.1fs", t))
	}

	return canvas
}

// Options controls rendering of a dedrift plane.
type Options struct {
	AddGrid     bool
	Hits        []hit.Hit
	DurationSec float64
}

// Render draws p.Power as a heatmap: drift index along Y, frequency channel
// along X, power mapped through the gradient in GetColor. If opts.Hits is
// non-empty, each hit's (RateIndex, StartFreqIndex) cell is marked.
func Render(p *dedrift.Plane, opts Options) (image.Image, error) {
	if len(p.Power) == 0 || len(p.Power[0]) == 0 {
		return nil, fmt.Errorf("waterfallimg: empty plane")
	}
	height := len(p.Power)
	width := len(p.Power[0])

	minP, maxP := math.MaxFloat64, -math.MaxFloat64
	for _, row := range p.Power {
		for _, v := range row {
			if v < minP {
				minP = v
			}
			if v > maxP {
				maxP = v
			}
		}
	}
	prange := maxP - minP

	canvas := image.NewRGBA(image.Rectangle{Min: image.Point{0, 0}, Max: image.Point{width, height}})
	for d, row := range p.Power {
		for f, v := range row {
			lvl := uint16(0)
			if prange > 0 {
				lvl = uint16((v - minP) * math.MaxUint16 / prange)
			}
			canvas.SetRGBA(f, d, GetColor(lvl))
		}
	}

	for _, h := range opts.Hits {
		drawHitMarker(canvas, h.StartFreqIndex, h.RateIndex)
	}

	if opts.AddGrid {
		lowFreq, highFreq := 0.0, float64(width)
		canvas = DrawGrid(canvas, lowFreq, highFreq, opts.DurationSec)
	}
	return canvas, nil
}

func drawHitMarker(canvas *image.RGBA, freqIdx, driftIdx int) {
	b := canvas.Bounds()
	for dy := -hitMarkerRadius; dy <= hitMarkerRadius; dy++ {
		for dx := -hitMarkerRadius; dx <= hitMarkerRadius; dx++ {
			if dx*dx+dy*dy > hitMarkerRadius*hitMarkerRadius {
				continue
			}
			x, y := freqIdx+dx, driftIdx+dy
			if x < b.Min.X || x >= b.Max.X || y < b.Min.Y || y >= b.Max.Y {
				continue
			}
			canvas.SetRGBA(x, y, hitMarkerColor)
		}
	}
}
