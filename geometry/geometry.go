// Package geometry builds the searched drift-rate grid: the ordered list
// of linear frequency-vs-time trajectories the dedrift integrator will sum
// power along. Quantizing the requested drift-rate range to the scan's
// time axis is what lets every drift rate map to an exact integer channel
// span, so the integrator never has to interpolate between channels.
package geometry

import "math"

// IntegrateDriftsOptions configures the searched drift-rate range.
// Zero-value Options are not valid defaults on their own; call WithDefaults
// to get the documented defaults applied.
type IntegrateDriftsOptions struct {
	// Desmear widens the integration window in frequency for high drift
	// rates to recover energy spread across bins. Default true.
	Desmear bool
	// LowRateHzPerSec and HighRateHzPerSec bound the searched drift range.
	// Defaults -5 and 5.
	LowRateHzPerSec  float64
	HighRateHzPerSec float64
	// Resolution is the step size in units of the unit drift rate. Default 1.
	Resolution int

	defaultsApplied bool
}

// WithDefaults returns a copy of opts with documented defaults filled in
// for zero fields: a zero Low/High pair becomes -5/5 and a zero Resolution
// becomes 1. Desmear is left as given, since false cannot be told apart
// from unset, so the zero IntegrateDriftsOptions{} passed through this
// method has desmear disabled; DefaultIntegrateDriftsOptions returns the
// full documented defaults. WithDefaults is idempotent.
func (o IntegrateDriftsOptions) WithDefaults() IntegrateDriftsOptions {
	if o.defaultsApplied {
		return o
	}
	out := o
	if out.LowRateHzPerSec == 0 && out.HighRateHzPerSec == 0 {
		out.LowRateHzPerSec = -5
		out.HighRateHzPerSec = 5
	}
	if out.Resolution == 0 {
		out.Resolution = 1
	}
	out.defaultsApplied = true
	return out
}

// DefaultIntegrateDriftsOptions returns the documented default options:
// desmear enabled, a ±5 Hz/s range, resolution 1.
func DefaultIntegrateDriftsOptions() IntegrateDriftsOptions {
	return IntegrateDriftsOptions{
		Desmear:          true,
		LowRateHzPerSec:  -5,
		HighRateHzPerSec: 5,
		Resolution:       1,
		defaultsApplied:  true,
	}
}

// DriftRate is one searched trajectory: its index in the plane, the
// fractional channel slope per time step, its rate in physical units, the
// total channel span traversed over the observation, and the desmear
// width in bins.
type DriftRate struct {
	IndexInPlane int
	// Slope is in channels per time step.
	Slope        float64
	RateHzPerSec float64
	// ChannelSpan is the total channel displacement over the observation;
	// it carries the sign of RateHzPerSec / foff, i.e. the sign of the rate
	// for a positive foff and the opposite sign for an inverted band.
	ChannelSpan int
	// DesmearedBins is >= 1; it is 1 whenever desmear is disabled or the
	// slope magnitude rounds to < 1.
	DesmearedBins int
}

// UnitDriftHzPerSec returns the smallest resolvable drift rate for a scan
// with the given channel spacing and duration: one channel over the full
// observation.
func UnitDriftHzPerSec(ntsteps int, foffMHz, tsampSec float64) float64 {
	foffHz := foffMHz * 1e6
	return foffHz / (float64(ntsteps-1) * tsampSec)
}

// BuildDriftRates computes the ordered drift-rate grid for a scan of
// ntsteps time steps, channel spacing foffMHz (MHz, may be negative), and
// integration time tsampSec, per spec §4.1.
func BuildDriftRates(ntsteps int, foffMHz, tsampSec float64, opts IntegrateDriftsOptions) []DriftRate {
	opts = opts.WithDefaults()
	foffHz := foffMHz * 1e6
	unitDrift := UnitDriftHzPerSec(ntsteps, foffMHz, tsampSec)

	snap := func(rate float64) float64 {
		return math.Round(rate/unitDrift) * unitDrift
	}
	low := snap(opts.LowRateHzPerSec)
	high := snap(opts.HighRateHzPerSec)
	step := float64(opts.Resolution) * unitDrift
	if step < 0 {
		step = -step
	}

	span := high - low
	if span < 0 {
		span = -span
	}

	var rates []DriftRate
	duration := float64(ntsteps-1) * tsampSec
	for index := 0; float64(index)*step <= span+1e-9; index++ {
		rate := low + float64(index)*step
		channelSpan := int(math.Round(rate * duration / foffHz))
		slope := float64(channelSpan) / float64(ntsteps-1)

		desmearedBins := 1
		if opts.Desmear {
			desmearedBins = int(math.Round(math.Abs(slope)))
			if desmearedBins < 1 {
				desmearedBins = 1
			}
		}

		rates = append(rates, DriftRate{
			IndexInPlane:  index,
			Slope:         slope,
			RateHzPerSec:  rate,
			ChannelSpan:   channelSpan,
			DesmearedBins: desmearedBins,
		})
	}
	return rates
}
