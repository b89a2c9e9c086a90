package waterfallimg

import (
	"fmt"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/hb9tf/bliss/hit"
)

// SNRVsDriftRate renders a scatter of SNR against drift rate across hits,
// one point per hit, and saves it to path. Grounded in
// internal/lidar/monitor/gridplotter.go's per-cell time series plots, which
// use the same plot/plotter/vg trio for line series; this is a scatter
// instead since drift rate and SNR have no natural ordering across hits.
func SNRVsDriftRate(hits []hit.Hit, path string) error {
	p := plot.New()
	p.Title.Text = "SNR vs. Drift Rate"
	p.X.Label.Text = "Drift Rate (Hz/s)"
	p.Y.Label.Text = "SNR"

	pts := make(plotter.XYs, len(hits))
	for i, h := range hits {
		pts[i] = plotter.XY{X: h.DriftRateHzPerSec, Y: h.SNR}
	}
	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("waterfallimg: new scatter: %w", err)
	}
	scatter.Shape = draw.CircleGlyph{}
	scatter.Radius = vg.Points(2)
	p.Add(scatter)

	return p.Save(10*vg.Inch, 6*vg.Inch, path)
}

// NoiseVsChannel renders the noise floor per coarse channel number as a
// line, in channel order, and saves it to path.
func NoiseVsChannel(noiseFloorByChannel map[int]float64, path string) error {
	p := plot.New()
	p.Title.Text = "Noise Floor vs. Coarse Channel"
	p.X.Label.Text = "Coarse Channel Number"
	p.Y.Label.Text = "Noise Floor"

	channels := make([]int, 0, len(noiseFloorByChannel))
	for ch := range noiseFloorByChannel {
		channels = append(channels, ch)
	}
	sort.Ints(channels)

	pts := make(plotter.XYs, len(channels))
	for i, ch := range channels {
		pts[i] = plotter.XY{X: float64(ch), Y: noiseFloorByChannel[ch]}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("waterfallimg: new line: %w", err)
	}
	line.Width = vg.Points(1)
	p.Add(line)

	return p.Save(10*vg.Inch, 6*vg.Inch, path)
}
