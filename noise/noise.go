// Package noise scales a channel's scalar noise estimate by the number of
// independent samples summed along each drift row, so the protohit search
// can normalize SNR per row instead of assuming a single global noise
// level.
package noise

import (
	"github.com/hb9tf/bliss/errs"
	"github.com/hb9tf/bliss/waterfall"
)

// EstimateBasic computes a channel's noise floor and power as the mean and
// variance of its unflagged samples. Spectral kurtosis, sigma-clip, and the
// other sample-level RFI estimators that populate Mask remain external per
// spec §1; this is the minimal statistic needed to wire a
// cadence.NoiseEstimator end to end (e.g. for cmd/bliss-search's -fixture
// mode) when no richer estimator is plugged in.
func EstimateBasic(ch *waterfall.CoarseChannel) (waterfall.NoiseStats, error) {
	var sum, sumSq float64
	var n int
	for t, row := range ch.Data {
		for f, v := range row {
			if ch.Mask[t][f] != 0 {
				continue
			}
			sum += float64(v)
			sumSq += float64(v) * float64(v)
			n++
		}
	}
	if n == 0 {
		return waterfall.NoiseStats{}, errs.NewDataError("mask", "every sample is flagged, no unflagged data to estimate noise from")
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return waterfall.NoiseStats{NoiseFloor: mean, NoisePower: variance}, nil
}

// Adjust returns, for each drift row d, the variance of the integrated
// power along that row: noise_power * integration_steps * desmeared_bins[d].
// Variance scales linearly with the number of independent samples summed.
func Adjust(stats waterfall.NoiseStats, integrationSteps int, desmearedBins []int) []float64 {
	out := make([]float64, len(desmearedBins))
	for d, bins := range desmearedBins {
		out[d] = stats.NoisePower * float64(integrationSteps) * float64(bins)
	}
	return out
}
