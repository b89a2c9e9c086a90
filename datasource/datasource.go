// Package datasource defines the external contract the detection core
// reads spectrogram data through (spec §6), plus an in-memory reference
// implementation used by tests and the bliss-search CLI's fixture mode.
// Production HDF5/filterbank readers are explicitly external per spec
// §1's Non-goals; this package never owns that I/O.
package datasource

import (
	"github.com/hb9tf/bliss/errs"
	"github.com/hb9tf/bliss/flags"
	"github.com/hb9tf/bliss/waterfall"
)

// DataSource is the external contract a cadence's scans read hyperslabs
// from. Shape reports the feeds dimension; callers squeeze it.
type DataSource interface {
	// Shape returns [T, feeds, F]; feeds == 1 is permitted and squeezed by
	// callers before use.
	Shape() (t, feeds, f int)
	// ReadData returns the float32 power tensor for the given hyperslab.
	ReadData(offset, count [3]int) ([][]float32, error)
	// ReadMask returns the RFI bitmask tensor for the given hyperslab,
	// zero-valued if the source carries no mask.
	ReadMask(offset, count [3]int) ([][]flags.Bitmask, error)

	Fch1MHz() float64
	FoffMHz() float64
	TsampSec() float64
	TstartMJD() float64
	SourceName() string

	Telescope() string
	TargetName() string
	RADeg() float64
	DecDeg() float64
}

// Memory is an in-memory DataSource backed by already-materialized data
// and mask tensors, useful for tests and the bliss-search CLI's
// -fixture mode. It is never a production reader.
type Memory struct {
	Data [][]float32
	Mask [][]flags.Bitmask

	Fch1    float64
	Foff    float64
	Tsamp   float64
	Tstart  float64
	Source  string
	Scope   string
	Target  string
	RA, Dec float64
}

func (m *Memory) Shape() (t, feeds, f int) {
	if len(m.Data) == 0 {
		return 0, 1, 0
	}
	return len(m.Data), 1, len(m.Data[0])
}

// ReadData returns the [count[0]][count[2]] slab starting at
// [offset[0], 0, offset[2]]; offset[1]/count[1] (the squeezed feeds
// dimension) must be 0/1.
func (m *Memory) ReadData(offset, count [3]int) ([][]float32, error) {
	if err := validateHyperslab(offset, count); err != nil {
		return nil, err
	}
	out := make([][]float32, count[0])
	for i := 0; i < count[0]; i++ {
		t := offset[0] + i
		if t < 0 || t >= len(m.Data) {
			out[i] = make([]float32, count[2])
			continue
		}
		row := make([]float32, count[2])
		for j := 0; j < count[2]; j++ {
			f := offset[2] + j
			if f >= 0 && f < len(m.Data[t]) {
				row[j] = m.Data[t][f]
			}
		}
		out[i] = row
	}
	return out, nil
}

// ReadMask mirrors ReadData for the RFI bitmask tensor, returning
// flags.Unflagged where m.Mask is nil.
func (m *Memory) ReadMask(offset, count [3]int) ([][]flags.Bitmask, error) {
	if err := validateHyperslab(offset, count); err != nil {
		return nil, err
	}
	out := make([][]flags.Bitmask, count[0])
	for i := 0; i < count[0]; i++ {
		t := offset[0] + i
		row := make([]flags.Bitmask, count[2])
		if m.Mask != nil && t >= 0 && t < len(m.Mask) {
			for j := 0; j < count[2]; j++ {
				f := offset[2] + j
				if f >= 0 && f < len(m.Mask[t]) {
					row[j] = m.Mask[t][f]
				}
			}
		}
		out[i] = row
	}
	return out, nil
}

func validateHyperslab(offset, count [3]int) error {
	if offset[1] != 0 || count[1] != 1 {
		return errs.NewDataError("offset/count", "feeds dimension must be squeezed (offset[1]=0, count[1]=1), got offset=%v count=%v", offset, count)
	}
	if count[0] < 0 || count[2] < 0 {
		return errs.NewProgrammerError("datasource.Memory: negative count %v", count)
	}
	return nil
}

// ReadCoarseChannel reads the number-th coarse sub-band of width
// fineChannelsPerCoarse from ds into a waterfall.CoarseChannel, per spec
// §4.8's first step. The full time axis is read; only the frequency
// hyperslab is sliced per channel.
func ReadCoarseChannel(ds DataSource, number, fineChannelsPerCoarse int) (*waterfall.CoarseChannel, error) {
	ntsteps, _, nchans := ds.Shape()
	fStart := number * fineChannelsPerCoarse
	count := fineChannelsPerCoarse
	if fStart+count > nchans {
		count = nchans - fStart
	}
	if count <= 0 {
		return nil, errs.NewDataError("number", "coarse channel %d starts past the end of the scan (%d fine channels)", number, nchans)
	}

	offset := [3]int{0, 0, fStart}
	span := [3]int{ntsteps, 1, count}
	data, err := ds.ReadData(offset, span)
	if err != nil {
		return nil, err
	}
	mask, err := ds.ReadMask(offset, span)
	if err != nil {
		return nil, err
	}

	meta := waterfall.ScanMetadata{
		Fch1MHz:    ds.Fch1MHz() + ds.FoffMHz()*float64(fStart),
		FoffMHz:    ds.FoffMHz(),
		TsampSec:   ds.TsampSec(),
		TstartMJD:  ds.TstartMJD(),
		Ntsteps:    ntsteps,
		Nchans:     count,
		SourceName: ds.SourceName(),
		Telescope:  ds.Telescope(),
		TargetName: ds.TargetName(),
		RADeg:      ds.RADeg(),
		DecDeg:     ds.DecDeg(),
	}
	return waterfall.NewCoarseChannel(number, meta, data, mask)
}

func (m *Memory) Fch1MHz() float64    { return m.Fch1 }
func (m *Memory) FoffMHz() float64    { return m.Foff }
func (m *Memory) TsampSec() float64   { return m.Tsamp }
func (m *Memory) TstartMJD() float64  { return m.Tstart }
func (m *Memory) SourceName() string  { return m.Source }
func (m *Memory) Telescope() string   { return m.Scope }
func (m *Memory) TargetName() string  { return m.Target }
func (m *Memory) RADeg() float64      { return m.RA }
func (m *Memory) DecDeg() float64     { return m.Dec }
