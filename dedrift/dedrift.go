// Package dedrift builds the dedrift plane: for every searched drift rate
// and every starting frequency channel, the sum of power along that
// linear trajectory through the coarse channel's spectrogram, with RFI
// flag counts propagated alongside.
package dedrift

import (
	"math"

	"github.com/hb9tf/bliss/errs"
	"github.com/hb9tf/bliss/flags"
	"github.com/hb9tf/bliss/geometry"
	"github.com/hb9tf/bliss/waterfall"
)

// CellFlags tallies, for one (drift, frequency) cell, how many
// contributing time samples along the trajectory had each RFI bit set.
// Widened to uint16 relative to the per-sample uint8 mask (see
// DESIGN.md/SPEC_FULL.md §7.4): integration_steps * desmeared_bins can
// exceed 255 for long integrations at high drift rates, and silently
// saturating there would corrupt HitFilter's RFI-percentage rules in
// exactly the cases where they matter most.
type CellFlags struct {
	LowSK     uint16
	HighSK    uint16
	SigmaClip uint16
}

func (c *CellFlags) accumulate(m flags.Bitmask) {
	if m.Has(flags.LowSpectralKurtosis) {
		c.LowSK = satAdd16(c.LowSK, 1)
	}
	if m.Has(flags.HighSpectralKurtosis) {
		c.HighSK = satAdd16(c.HighSK, 1)
	}
	if m.Has(flags.SigmaClip) {
		c.SigmaClip = satAdd16(c.SigmaClip, 1)
	}
}

func satAdd16(v uint16, delta uint16) uint16 {
	if uint32(v)+uint32(delta) > math.MaxUint16 {
		return math.MaxUint16
	}
	return v + delta
}

// MaxCellFlags returns the elementwise maximum of a and b, used by
// protohit's connected-components variant to combine RFI tallies across a
// component's member cells.
func MaxCellFlags(a, b CellFlags) CellFlags {
	return CellFlags{
		LowSK:     maxU16(a.LowSK, b.LowSK),
		HighSK:    maxU16(a.HighSK, b.HighSK),
		SigmaClip: maxU16(a.SigmaClip, b.SigmaClip),
	}
}

func maxU16(a, b uint16) uint16 {
	if a > b {
		return a
	}
	return b
}

// Plane is the dedrift result for one coarse channel: a [D][F] power grid,
// the matching flag-count grids, and the drift-rate metadata that produced
// it. D = len(DriftRates), F = Nchans.
type Plane struct {
	// Power is indexed [driftIndex][freqChannel].
	Power [][]float64
	// Flags mirrors Power's shape, one CellFlags per (drift, freq) cell.
	Flags [][]CellFlags

	IntegrationSteps int
	DriftRates       []geometry.DriftRate
}

// Integrate sums ch's power along every trajectory in rates, per spec
// §4.2. Trajectories that step outside [0, nchans) contribute zero to both
// power and flag counts for the out-of-range samples; IntegrationSteps
// stays the nominal ntsteps regardless, preserving uniform noise scaling
// at the cost of a mild edge effect downstream filters can flag.
func Integrate(ch *waterfall.CoarseChannel, rates []geometry.DriftRate) (*Plane, error) {
	if ch == nil {
		return nil, errs.NewProgrammerError("dedrift.Integrate: nil coarse channel")
	}
	ntsteps := ch.Meta.Ntsteps
	nchans := ch.Meta.Nchans

	power := make([][]float64, len(rates))
	flagGrid := make([][]CellFlags, len(rates))
	for d, rate := range rates {
		powerRow := make([]float64, nchans)
		flagRow := make([]CellFlags, nchans)
		for f0 := 0; f0 < nchans; f0++ {
			var sum float64
			var cell CellFlags
			for t := 0; t < ntsteps; t++ {
				base := int(math.Round(rate.Slope*float64(t))) + f0
				for b := 0; b < rate.DesmearedBins; b++ {
					power32, mask, ok := ch.At(t, base+b)
					if !ok {
						continue
					}
					sum += float64(power32)
					cell.accumulate(mask)
				}
			}
			powerRow[f0] = sum
			flagRow[f0] = cell
		}
		power[d] = powerRow
		flagGrid[d] = flagRow
	}

	return &Plane{
		Power:            power,
		Flags:            flagGrid,
		IntegrationSteps: ntsteps,
		DriftRates:       rates,
	}, nil
}

// Tile is one horizontal slice of the dedrift plane's drift axis, produced
// by IntegrateTiled so a caller can reduce each tile (e.g. to protohits)
// without ever materializing the full [D][F] plane, per spec §9's
// bounded-memory note.
type Tile struct {
	Plane      *Plane
	DriftStart int // offset of this tile's rows within the full drift-rate list
}

// IntegrateTiled integrates rates in groups of tileSize, invoking onTile
// for each contiguous group. Each tile is extended by overlap additional
// rows on both sides (clamped to the rate list), so rows near a tile
// boundary are carried in both neighboring tiles and a caller doing
// connected-component search across tile boundaries (overlap must be >=
// desmeared_bins[max_d] + neighbor_l1_dist, per spec §9) sees the full
// neighborhood of any pixel near the seam.
func IntegrateTiled(ch *waterfall.CoarseChannel, rates []geometry.DriftRate, tileSize, overlap int, onTile func(Tile) error) error {
	if tileSize <= 0 {
		return errs.NewProgrammerError("dedrift.IntegrateTiled: tileSize must be positive, got %d", tileSize)
	}
	if overlap < 0 {
		return errs.NewProgrammerError("dedrift.IntegrateTiled: overlap must be non-negative, got %d", overlap)
	}
	for start := 0; start < len(rates); start += tileSize {
		end := start + tileSize
		if end > len(rates) {
			end = len(rates)
		}
		loExtended := start - overlap
		if loExtended < 0 {
			loExtended = 0
		}
		hiExtended := end + overlap
		if hiExtended > len(rates) {
			hiExtended = len(rates)
		}
		plane, err := Integrate(ch, rates[loExtended:hiExtended])
		if err != nil {
			return err
		}
		if err := onTile(Tile{Plane: plane, DriftStart: loExtended}); err != nil {
			return err
		}
	}
	return nil
}
