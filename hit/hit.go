// Package hit projects protohit grid coordinates into physical units
// (HitCharacterizer) and applies rule-based rejection (HitFilter), per
// spec §4.5-4.6.
package hit

import (
	"math"
	"sort"

	"github.com/hb9tf/bliss/dedrift"
	"github.com/hb9tf/bliss/errs"
	"github.com/hb9tf/bliss/protohit"
	"github.com/hb9tf/bliss/waterfall"
)

// Hit is a fully characterized detection: physical units, ready for
// filtering, persistence, and cross-scan event matching.
type Hit struct {
	RateIndex         int
	DriftRateHzPerSec float64

	StartFreqIndex int
	StartFreqMHz   float64

	StartTimeSec float64
	DurationSec  float64

	Power float64
	SNR   float64

	// TimeSpanSteps is the nominal number of time steps integrated
	// (plane.IntegrationSteps); unlike IntegratedChannels it does not factor
	// in the row's desmear width.
	TimeSpanSteps      int
	Binwidth           int
	BandwidthHz        float64
	IntegratedChannels int

	CoarseChannelNumber int
	RFICounts           dedrift.CellFlags
}

// Characterize converts a protohit found in plane (built over ch) into a
// Hit in physical units, per spec §4.5. noiseFloor is the channel's mean
// power level used by the same protohit search that produced p.
func Characterize(p protohit.Protohit, ch *waterfall.CoarseChannel, plane *dedrift.Plane, noiseFloor float64) (Hit, error) {
	if ch == nil || plane == nil {
		return Hit{}, errs.NewProgrammerError("hit.Characterize: nil channel or plane")
	}
	rateIndex := p.IndexMax.DriftIndex
	if rateIndex < 0 || rateIndex >= len(plane.DriftRates) {
		return Hit{}, errs.NewProgrammerError("hit.Characterize: rate_index %d out of range [0, %d)", rateIndex, len(plane.DriftRates))
	}
	rate := plane.DriftRates[rateIndex]

	startFreqMHz := ch.Meta.Fch1MHz + ch.Meta.FoffMHz*float64(p.IndexCenter.FreqChan)
	power := p.MaxIntegration - noiseFloor
	bandwidthHz := float64(p.Binwidth) * math.Abs(ch.Meta.FoffMHz*1e6)
	integratedChannels := rate.DesmearedBins * plane.IntegrationSteps

	return Hit{
		RateIndex:           rateIndex,
		DriftRateHzPerSec:   rate.RateHzPerSec,
		StartFreqIndex:      p.IndexMax.FreqChan,
		StartFreqMHz:        startFreqMHz,
		StartTimeSec:        ch.Meta.TstartMJD * 86400,
		DurationSec:         ch.Meta.TsampSec * float64(plane.IntegrationSteps),
		Power:               power,
		SNR:                 power / p.DesmearedNoise,
		TimeSpanSteps:       plane.IntegrationSteps,
		Binwidth:            p.Binwidth,
		BandwidthHz:         bandwidthHz,
		IntegratedChannels:  integratedChannels,
		CoarseChannelNumber: ch.Number,
		RFICounts:           p.RFICounts,
	}, nil
}

// FilterOptions configures HitFilter's rejection rules, per spec §4.6.
//
// The sigma-clip and high-SK rules reject hits with too FEW flagged
// samples, not too many: BLISS's convention is that those bits record a
// sample having passed the estimator's non-RFI test, so a low count means
// the signal sits in a region the estimator never vetted, not that it is
// clean.
type FilterOptions struct {
	FilterZeroDrift bool

	FilterSigmaClip     bool
	MinPercentSigmaClip float64

	FilterHighSK     bool
	MinPercentHighSK float64

	FilterLowSK     bool
	MaxPercentLowSK float64
}

// Filter returns the subset of hits surviving every enabled rule in opts.
// Applying Filter again to its own output with the same opts is a fixed
// point: every rule is a pure predicate over fields Filter does not
// modify.
func Filter(hits []Hit, opts FilterOptions) []Hit {
	var out []Hit
	for _, h := range hits {
		if rejects(h, opts) {
			continue
		}
		out = append(out, h)
	}
	return out
}

func rejects(h Hit, opts FilterOptions) bool {
	n := float64(absInt(h.IntegratedChannels))
	if opts.FilterZeroDrift && math.Abs(h.DriftRateHzPerSec) < 1e-6 {
		return true
	}
	if opts.FilterSigmaClip && float64(h.RFICounts.SigmaClip) < n*opts.MinPercentSigmaClip {
		return true
	}
	if opts.FilterHighSK && float64(h.RFICounts.HighSK) < n*opts.MinPercentHighSK {
		return true
	}
	if opts.FilterLowSK && float64(h.RFICounts.LowSK) > n*opts.MaxPercentLowSK {
		return true
	}
	return false
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Less orders two hits by their physics fields only, per spec §3:
// integrated_channels and coarse_channel_number are deliberately excluded
// so the ordering is stable across implementations that scale
// integration or channelize differently.
func Less(a, b Hit) bool {
	if a.StartFreqIndex != b.StartFreqIndex {
		return a.StartFreqIndex < b.StartFreqIndex
	}
	if a.StartFreqMHz != b.StartFreqMHz {
		return a.StartFreqMHz < b.StartFreqMHz
	}
	if a.StartTimeSec != b.StartTimeSec {
		return a.StartTimeSec < b.StartTimeSec
	}
	if a.DurationSec != b.DurationSec {
		return a.DurationSec < b.DurationSec
	}
	if a.RateIndex != b.RateIndex {
		return a.RateIndex < b.RateIndex
	}
	if a.DriftRateHzPerSec != b.DriftRateHzPerSec {
		return a.DriftRateHzPerSec < b.DriftRateHzPerSec
	}
	if a.Power != b.Power {
		return a.Power < b.Power
	}
	if a.SNR != b.SNR {
		return a.SNR < b.SNR
	}
	if a.TimeSpanSteps != b.TimeSpanSteps {
		return a.TimeSpanSteps < b.TimeSpanSteps
	}
	if a.Binwidth != b.Binwidth {
		return a.Binwidth < b.Binwidth
	}
	return a.BandwidthHz < b.BandwidthHz
}

// Sort orders hits in place by the physics-field ordering in Less.
func Sort(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool { return Less(hits[i], hits[j]) })
}
