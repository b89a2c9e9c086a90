// Package waterfall holds the core data model that flows through the BLISS
// detection pipeline: scan metadata, the coarse channel (a time-frequency
// spectrogram slice with its RFI mask), and the per-channel noise estimate
// consumed (not produced) by the core.
package waterfall

import (
	"github.com/hb9tf/bliss/errs"
	"github.com/hb9tf/bliss/flags"
)

// ScanMetadata describes one scan/channel's acquisition parameters. It is
// immutable once read from the data source.
type ScanMetadata struct {
	// Fch1MHz is the frequency of the first channel, in MHz.
	Fch1MHz float64
	// FoffMHz is the frequency step between channels, in MHz. May be
	// negative for an inverted band.
	FoffMHz float64
	// TsampSec is the integration time per time step, in seconds.
	TsampSec float64
	// TstartMJD is the start time of the scan, in Modified Julian Date.
	TstartMJD float64
	// Ntsteps is the number of time steps in the spectrogram.
	Ntsteps int
	// Nchans is the number of frequency channels in the spectrogram.
	Nchans int
	// SourceName is the pointed-at target name. Mandatory.
	SourceName string

	// Telescope and TargetName are optional instrument/pointing fields.
	Telescope  string
	TargetName string
	RADeg      float64
	DecDeg     float64
}

// Validate checks the invariants from spec §3: Foff != 0, Tsamp > 0,
// Ntsteps >= 2 for drift search, and that the mandatory SourceName is set.
func (m ScanMetadata) Validate() error {
	if m.SourceName == "" {
		return errs.NewDataError("source_name", "mandatory metadata field is empty")
	}
	if m.FoffMHz == 0 {
		return errs.NewDataError("foff", "must not be zero")
	}
	if m.TsampSec <= 0 {
		return errs.NewDataError("tsamp", "must be positive, got %g", m.TsampSec)
	}
	if m.Ntsteps < 2 {
		return errs.NewDataError("ntsteps", "must be >= 2 for drift search, got %d", m.Ntsteps)
	}
	return nil
}

// FoffHz returns the channel spacing in Hz.
func (m ScanMetadata) FoffHz() float64 {
	return m.FoffMHz * 1e6
}

// NoiseStats is the per-channel noise estimate produced by an external
// estimator (spectral kurtosis, sigma-clip, ...) and consumed here as
// scalars.
type NoiseStats struct {
	// NoiseFloor is the mean power level.
	NoiseFloor float64
	// NoisePower is the variance of the power level.
	NoisePower float64
}

// CoarseChannel is one contiguous frequency sub-band: a [T][F] power
// spectrogram, its [T][F] RFI bitmask, and an index identifying it within
// the parent scan. It exclusively owns its tensors.
type CoarseChannel struct {
	// Number identifies this channel within its parent scan.
	Number int
	Meta   ScanMetadata

	// Data is the [T][F] power spectrogram.
	Data [][]float32
	// Mask is the [T][F] RFI bitmask, zero-valued if absent.
	Mask [][]flags.Bitmask
}

// NewCoarseChannel builds a channel from already-materialized data and
// mask, validating their shape against meta.
func NewCoarseChannel(number int, meta ScanMetadata, data [][]float32, mask [][]flags.Bitmask) (*CoarseChannel, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	if len(data) != meta.Ntsteps {
		return nil, errs.NewDataError("data", "expected %d time steps, got %d", meta.Ntsteps, len(data))
	}
	for t, row := range data {
		if len(row) != meta.Nchans {
			return nil, errs.NewDataError("data", "row %d has %d channels, want %d", t, len(row), meta.Nchans)
		}
	}
	if mask == nil {
		mask = make([][]flags.Bitmask, meta.Ntsteps)
		for t := range mask {
			mask[t] = make([]flags.Bitmask, meta.Nchans)
		}
	} else if len(mask) != meta.Ntsteps {
		return nil, errs.NewDataError("mask", "expected %d time steps, got %d", meta.Ntsteps, len(mask))
	} else {
		for t, row := range mask {
			if len(row) != meta.Nchans {
				return nil, errs.NewDataError("mask", "row %d has %d channels, want %d", t, len(row), meta.Nchans)
			}
		}
	}
	return &CoarseChannel{
		Number: number,
		Meta:   meta,
		Data:   data,
		Mask:   mask,
	}, nil
}

// At returns the power sample at time step t, frequency channel f, or false
// if (t, f) falls outside the channel's bounds. Out-of-range trajectory
// samples are the caller's (dedrift.Integrate's) boundary case, handled by
// padding with a zero contribution rather than erroring here.
func (c *CoarseChannel) At(t, f int) (power float32, mask flags.Bitmask, ok bool) {
	if t < 0 || t >= len(c.Data) || f < 0 || f >= c.Meta.Nchans {
		return 0, 0, false
	}
	return c.Data[t][f], c.Mask[t][f], true
}
