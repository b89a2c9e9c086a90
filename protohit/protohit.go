// Package protohit extracts candidate detections from a dedrift plane,
// either by flood-filling above-threshold connected regions or by finding
// strict local maxima, per spec §4.4.
package protohit

import (
	"math"

	"github.com/hb9tf/bliss/dedrift"
	"github.com/hb9tf/bliss/errs"
)

// Method selects the detection algorithm run over the dedrift plane.
type Method int

const (
	ConnectedComponents Method = iota
	LocalMaxima
)

// HitSearchOptions configures ProtohitSearch.
type HitSearchOptions struct {
	Method         Method
	SNRThreshold   float64
	NeighborL1Dist int
}

// DefaultHitSearchOptions returns method=connected_components,
// snr_threshold=10.0, neighbor_l1_dist=7, per spec §6.
func DefaultHitSearchOptions() HitSearchOptions {
	return HitSearchOptions{
		Method:         ConnectedComponents,
		SNRThreshold:   10.0,
		NeighborL1Dist: 7,
	}
}

// Cell identifies a point in the dedrift plane by drift-row index and
// frequency channel.
type Cell struct {
	DriftIndex int
	FreqChan   int
}

// Protohit is an intermediate detection carrying grid coordinates, prior to
// HitCharacterizer's projection into physical units.
type Protohit struct {
	IndexMax       Cell
	IndexCenter    Cell
	SNR            float64
	MaxIntegration float64
	DesmearedNoise float64
	Binwidth       int
	// Locations lists every member cell; empty for local-maxima detections.
	Locations []Cell
	RFICounts dedrift.CellFlags
}

// Search runs the configured detection algorithm against plane, using
// noiseFloor (the channel's mean power level) and noiseAdjusted (the
// per-drift-row integrated variance from the noise package) to compute
// per-cell SNR.
func Search(plane *dedrift.Plane, noiseFloor float64, noiseAdjusted []float64, opts HitSearchOptions) ([]Protohit, error) {
	if plane == nil {
		return nil, errs.NewProgrammerError("protohit.Search: nil plane")
	}
	if len(noiseAdjusted) != len(plane.Power) {
		return nil, errs.NewProgrammerError("protohit.Search: noiseAdjusted has %d rows, plane has %d", len(noiseAdjusted), len(plane.Power))
	}
	switch opts.Method {
	case LocalMaxima:
		return searchLocalMaxima(plane, noiseFloor, noiseAdjusted, opts), nil
	default:
		return searchConnectedComponents(plane, noiseFloor, noiseAdjusted, opts), nil
	}
}

func snrAt(plane *dedrift.Plane, noiseFloor float64, noiseAdjusted []float64, d, f int) float64 {
	denom := math.Sqrt(noiseAdjusted[d])
	if denom <= 0 {
		return math.Inf(-1)
	}
	return (plane.Power[d][f] - noiseFloor) / denom
}

// l1Offsets enumerates every (dd, df) offset with |dd|+|df| <= dist,
// excluding (0, 0).
func l1Offsets(dist int) []Cell {
	var offsets []Cell
	for dd := -dist; dd <= dist; dd++ {
		remaining := dist - abs(dd)
		for df := -remaining; df <= remaining; df++ {
			if dd == 0 && df == 0 {
				continue
			}
			offsets = append(offsets, Cell{DriftIndex: dd, FreqChan: df})
		}
	}
	return offsets
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func searchConnectedComponents(plane *dedrift.Plane, noiseFloor float64, noiseAdjusted []float64, opts HitSearchOptions) []Protohit {
	D := len(plane.Power)
	if D == 0 {
		return nil
	}
	F := len(plane.Power[0])

	above := make([][]bool, D)
	visited := make([][]bool, D)
	for d := 0; d < D; d++ {
		above[d] = make([]bool, F)
		visited[d] = make([]bool, F)
		for f := 0; f < F; f++ {
			above[d][f] = snrAt(plane, noiseFloor, noiseAdjusted, d, f) > opts.SNRThreshold
		}
	}

	offsets := l1Offsets(opts.NeighborL1Dist)
	var protohits []Protohit
	for d := 0; d < D; d++ {
		for f := 0; f < F; f++ {
			if !above[d][f] || visited[d][f] {
				continue
			}
			members := floodFill(d, f, above, visited, offsets, D, F)
			protohits = append(protohits, buildComponent(plane, noiseFloor, noiseAdjusted, members))
		}
	}
	return protohits
}

func floodFill(startD, startF int, above, visited [][]bool, offsets []Cell, D, F int) []Cell {
	queue := []Cell{{DriftIndex: startD, FreqChan: startF}}
	visited[startD][startF] = true
	var members []Cell
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		members = append(members, c)
		for _, off := range offsets {
			nd, nf := c.DriftIndex+off.DriftIndex, c.FreqChan+off.FreqChan
			if nd < 0 || nd >= D || nf < 0 || nf >= F {
				continue
			}
			if !above[nd][nf] || visited[nd][nf] {
				continue
			}
			visited[nd][nf] = true
			queue = append(queue, Cell{DriftIndex: nd, FreqChan: nf})
		}
	}
	return members
}

func buildComponent(plane *dedrift.Plane, noiseFloor float64, noiseAdjusted []float64, members []Cell) Protohit {
	indexMax := members[0]
	bestPower := plane.Power[indexMax.DriftIndex][indexMax.FreqChan]
	var centroidD, centroidF float64
	var maxFlags dedrift.CellFlags
	for i, m := range members {
		p := plane.Power[m.DriftIndex][m.FreqChan]
		if i == 0 || p > bestPower {
			bestPower = p
			indexMax = m
		}
		centroidD += float64(m.DriftIndex)
		centroidF += float64(m.FreqChan)
		maxFlags = dedrift.MaxCellFlags(maxFlags, plane.Flags[m.DriftIndex][m.FreqChan])
	}
	n := float64(len(members))
	indexCenter := Cell{
		DriftIndex: int(math.Round(centroidD / n)),
		FreqChan:   int(math.Round(centroidF / n)),
	}

	minF, maxF := members[0].FreqChan, members[0].FreqChan
	for _, m := range members {
		if m.DriftIndex != indexMax.DriftIndex {
			continue
		}
		if m.FreqChan < minF {
			minF = m.FreqChan
		}
		if m.FreqChan > maxF {
			maxF = m.FreqChan
		}
	}
	binwidth := maxF - minF + 1

	desmearedNoise := math.Sqrt(noiseAdjusted[indexMax.DriftIndex])
	snr := (bestPower - noiseFloor) / desmearedNoise

	return Protohit{
		IndexMax:       indexMax,
		IndexCenter:    indexCenter,
		SNR:            snr,
		MaxIntegration: bestPower,
		DesmearedNoise: desmearedNoise,
		Binwidth:       binwidth,
		Locations:      members,
		RFICounts:      maxFlags,
	}
}

func searchLocalMaxima(plane *dedrift.Plane, noiseFloor float64, noiseAdjusted []float64, opts HitSearchOptions) []Protohit {
	D := len(plane.Power)
	if D == 0 {
		return nil
	}
	F := len(plane.Power[0])
	offsets := l1Offsets(opts.NeighborL1Dist)

	var protohits []Protohit
	for d := 0; d < D; d++ {
		for f := 0; f < F; f++ {
			if snrAt(plane, noiseFloor, noiseAdjusted, d, f) <= opts.SNRThreshold {
				continue
			}
			v := plane.Power[d][f]
			isMax := true
			for _, off := range offsets {
				nd, nf := d+off.DriftIndex, f+off.FreqChan
				if nd < 0 || nd >= D || nf < 0 || nf >= F {
					continue
				}
				nv := plane.Power[nd][nf]
				if nv > v {
					isMax = false
					break
				}
				if nv == v && lexLess(nd, nf, d, f) {
					isMax = false
					break
				}
			}
			if !isMax {
				continue
			}
			desmearedNoise := math.Sqrt(noiseAdjusted[d])
			protohits = append(protohits, Protohit{
				IndexMax:       Cell{DriftIndex: d, FreqChan: f},
				IndexCenter:    Cell{DriftIndex: d, FreqChan: f},
				SNR:            (v - noiseFloor) / desmearedNoise,
				MaxIntegration: v,
				DesmearedNoise: desmearedNoise,
				Binwidth:       1,
				RFICounts:      plane.Flags[d][f],
			})
		}
	}
	return protohits
}

// lexLess reports whether (d1, f1) sorts before (d2, f2).
func lexLess(d1, f1, d2, f2 int) bool {
	if d1 != d2 {
		return d1 < d2
	}
	return f1 < f2
}
