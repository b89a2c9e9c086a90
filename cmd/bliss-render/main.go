// Command bliss-render renders a single coarse channel's dedrift plane to
// a PNG/JPEG heatmap, analogous to render/render.go but pointed at the
// dedrift plane instead of a sqlite waterfall query.
package main

import (
	"flag"
	"fmt"
	"image/jpeg"
	"image/png"
	"math/rand"
	"os"
	"strings"

	"github.com/golang/glog"

	"github.com/hb9tf/bliss/cadence"
	"github.com/hb9tf/bliss/datasource"
	"github.com/hb9tf/bliss/geometry"
	"github.com/hb9tf/bliss/hit"
	"github.com/hb9tf/bliss/noise"
	"github.com/hb9tf/bliss/protohit"
	"github.com/hb9tf/bliss/waterfallimg"
)

var (
	imgPath  = flag.String("imgPath", "/tmp/bliss-out.png", "Path where the rendered image should be written to.")
	addGrid  = flag.Bool("addGrid", true, "Overlay a frequency/time grid on the rendered image.")
	showHits = flag.Bool("showHits", true, "Mark detected hit locations on the rendered image.")

	fixtureToneFreqIdx    = flag.Int("fixtureToneFreqIdx", 100, "Fine channel index to inject a synthetic tone at, in lieu of a real data source.")
	fixtureToneDriftHzSec = flag.Float64("fixtureToneDriftHzPerSec", 0, "Drift rate of the injected synthetic tone.")
	fixtureNtsteps        = flag.Int("fixtureNtsteps", 64, "Number of time steps to render.")
	fixtureNchans         = flag.Int("fixtureNchans", 256, "Number of fine channels to render.")

	lowRateHzPerSec  = flag.Float64("lowRateHzPerSec", -5, "Lowest drift rate to search, in Hz/s")
	highRateHzPerSec = flag.Float64("highRateHzPerSec", 5, "Highest drift rate to search, in Hz/s")
	driftResolution  = flag.Int("driftResolution", 11, "Drift-rate step size, in units of the unit drift rate (1 is finest; higher values search fewer, coarser-spaced rows)")
)

func main() {
	flag.Set("logtostderr", "false")
	flag.Set("stderrthreshold", "WARNING")
	flag.Set("v", "1")
	flag.Parse()

	rng := rand.New(rand.NewSource(1))
	ds := syntheticMemory(*fixtureToneFreqIdx, *fixtureToneDriftHzSec, rng)
	ch, err := datasource.ReadCoarseChannel(ds, 0, *fixtureNchans)
	if err != nil {
		glog.Exitf("unable to read coarse channel: %s", err)
	}

	detection := cadence.DetectionOptions{
		Drift: geometry.IntegrateDriftsOptions{
			Desmear:          true,
			LowRateHzPerSec:  *lowRateHzPerSec,
			HighRateHzPerSec: *highRateHzPerSec,
			Resolution:       *driftResolution,
		},
		Search: protohit.DefaultHitSearchOptions(),
	}
	channel := cadence.NewChannel(ch, noise.EstimateBasic, detection)
	plane, err := channel.DriftPlane()
	if err != nil {
		glog.Exitf("unable to compute dedrift plane: %s", err)
	}

	var hits []hit.Hit
	if *showHits {
		hits, err = channel.Hits()
		if err != nil {
			glog.Exitf("unable to compute hits: %s", err)
		}
	}

	img, err := waterfallimg.Render(plane, waterfallimg.Options{
		AddGrid:     *addGrid,
		Hits:        hits,
		DurationSec: float64(ch.Meta.Ntsteps) * ch.Meta.TsampSec,
	})
	if err != nil {
		glog.Exitf("unable to render plane: %s", err)
	}

	f, err := os.Create(*imgPath)
	if err != nil {
		glog.Exitf("unable to create %q: %s", *imgPath, err)
	}
	defer f.Close()

	switch {
	case strings.HasSuffix(*imgPath, ".png"):
		err = png.Encode(f, img)
	case strings.HasSuffix(*imgPath, ".jpg"), strings.HasSuffix(*imgPath, ".jpeg"):
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: jpeg.DefaultQuality})
	default:
		glog.Exitf("%q has an unsupported image extension, use .png or .jpg", *imgPath)
	}
	if err != nil {
		glog.Exitf("unable to encode image to %q: %s", *imgPath, err)
	}
	fmt.Printf("Wrote %d hits overlayed on a %dx%d plane to %q\n", len(hits), len(plane.Power[0]), len(plane.Power), *imgPath)

	glog.Flush()
}

func syntheticMemory(toneFreqIdx int, driftHzPerSec float64, rng *rand.Rand) *datasource.Memory {
	const foffMHz = 2.8e-6
	data := make([][]float32, *fixtureNtsteps)
	for t := range data {
		row := make([]float32, *fixtureNchans)
		for f := range row {
			row[f] = float32(rng.NormFloat64())
		}
		driftChans := driftHzPerSec * float64(t) / (foffMHz * 1e6)
		toneIdx := toneFreqIdx + int(driftChans+0.5)
		if toneIdx >= 0 && toneIdx < len(row) {
			row[toneIdx] += 20
		}
		data[t] = row
	}
	return &datasource.Memory{
		Data: data, Fch1: 1420, Foff: foffMHz, Tsamp: 1, Tstart: 58000, Source: "render",
	}
}
