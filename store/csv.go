package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/golang/glog"

	"github.com/hb9tf/bliss/hit"
)

// CSV writes hits as CSV rows to an io.Writer, grounded in export/csv.go's
// header-then-row shape. There is no ReadHits: CSV is a one-way export
// sink, not a store a cadence can be rebuilt from.
type CSV struct {
	W io.Writer
}

var csvHeader = []string{
	"RateIndex", "DriftRateHzPerSec", "StartFreqIndex", "StartFreqMHz", "StartTimeSec",
	"DurationSec", "Power", "SNR", "TimeSpanSteps", "Binwidth", "BandwidthHz",
	"IntegratedChannels", "CoarseChannelNumber", "RFILowSK", "RFIHighSK", "RFISigmaClip",
}

// WriteHits drains hits into c.W as CSV, flushing after every row the way
// export/csv.go does so a tailing reader sees rows as they land.
func (c *CSV) WriteHits(ctx context.Context, hits <-chan hit.Hit) error {
	w := csv.NewWriter(c.W)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("unable to write CSV header: %s", err)
	}

	for h := range hits {
		row := []string{
			fmt.Sprintf("%d", h.RateIndex), fmt.Sprintf("%f", h.DriftRateHzPerSec),
			fmt.Sprintf("%d", h.StartFreqIndex), fmt.Sprintf("%f", h.StartFreqMHz),
			fmt.Sprintf("%f", h.StartTimeSec), fmt.Sprintf("%f", h.DurationSec),
			fmt.Sprintf("%f", h.Power), fmt.Sprintf("%f", h.SNR),
			fmt.Sprintf("%d", h.TimeSpanSteps), fmt.Sprintf("%d", h.Binwidth),
			fmt.Sprintf("%f", h.BandwidthHz), fmt.Sprintf("%d", h.IntegratedChannels),
			fmt.Sprintf("%d", h.CoarseChannelNumber), fmt.Sprintf("%d", h.RFICounts.LowSK),
			fmt.Sprintf("%d", h.RFICounts.HighSK), fmt.Sprintf("%d", h.RFICounts.SigmaClip),
		}
		if err := w.Write(row); err != nil {
			glog.Warningf("error writing hit CSV row: %s\n", err)
			continue
		}
		w.Flush()
		if err := w.Error(); err != nil {
			glog.Warningf("error flushing hit CSV: %s\n", err)
		}
	}
	return nil
}
