package protohit

import (
	"testing"

	"github.com/hb9tf/bliss/dedrift"
)

func planeFromPower(power [][]float64) *dedrift.Plane {
	flags := make([][]dedrift.CellFlags, len(power))
	for d := range power {
		flags[d] = make([]dedrift.CellFlags, len(power[d]))
	}
	return &dedrift.Plane{Power: power, Flags: flags, IntegrationSteps: 1}
}

func TestSearchConnectedComponentsMergesAdjacentPixels(t *testing.T) {
	t.Parallel()

	power := [][]float64{
		{0, 0, 0, 0, 0},
		{0, 100, 120, 0, 0},
		{0, 0, 0, 0, 0},
	}
	plane := planeFromPower(power)
	noiseAdj := []float64{1, 1, 1}

	hits, err := Search(plane, 0, noiseAdj, HitSearchOptions{
		Method: ConnectedComponents, SNRThreshold: 10, NeighborL1Dist: 1,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("len(hits) = %d, want 1 (both pixels should merge into one component)", len(hits))
	}
	h := hits[0]
	if h.IndexMax != (Cell{DriftIndex: 1, FreqChan: 2}) {
		t.Errorf("IndexMax = %+v, want {1 2} (the stronger pixel)", h.IndexMax)
	}
	if h.MaxIntegration != 120 {
		t.Errorf("MaxIntegration = %v, want 120", h.MaxIntegration)
	}
	if len(h.Locations) != 2 {
		t.Errorf("len(Locations) = %d, want 2", len(h.Locations))
	}
	if h.Binwidth != 2 {
		t.Errorf("Binwidth = %d, want 2", h.Binwidth)
	}
}

func TestSearchConnectedComponentsSplitsDistantPixels(t *testing.T) {
	t.Parallel()

	power := [][]float64{
		{100, 0, 0, 0, 0, 0, 0, 0, 0, 100},
	}
	plane := planeFromPower(power)
	noiseAdj := []float64{1}

	hits, err := Search(plane, 0, noiseAdj, HitSearchOptions{
		Method: ConnectedComponents, SNRThreshold: 10, NeighborL1Dist: 1,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("len(hits) = %d, want 2 (pixels too far apart to merge)", len(hits))
	}
}

func TestSearchConnectedComponentsThreshold(t *testing.T) {
	t.Parallel()

	power := [][]float64{{5, 0, 0}}
	plane := planeFromPower(power)
	hits, err := Search(plane, 0, []float64{1}, HitSearchOptions{
		Method: ConnectedComponents, SNRThreshold: 10, NeighborL1Dist: 1,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("len(hits) = %d, want 0 (below threshold)", len(hits))
	}
}

func TestSearchLocalMaximaFindsIsolatedPeak(t *testing.T) {
	t.Parallel()

	power := [][]float64{
		{0, 0, 0, 0, 0},
		{0, 50, 100, 60, 0},
		{0, 0, 0, 0, 0},
	}
	plane := planeFromPower(power)
	hits, err := Search(plane, 0, []float64{1, 1, 1}, HitSearchOptions{
		Method: LocalMaxima, SNRThreshold: 10, NeighborL1Dist: 2,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("len(hits) = %d, want 1", len(hits))
	}
	if hits[0].IndexMax != (Cell{DriftIndex: 1, FreqChan: 2}) {
		t.Errorf("IndexMax = %+v, want {1 2}", hits[0].IndexMax)
	}
	if len(hits[0].Locations) != 0 {
		t.Errorf("local-maxima Locations should be empty, got %v", hits[0].Locations)
	}
}

func TestSearchLocalMaximaTieBreaksLexicographically(t *testing.T) {
	t.Parallel()

	power := [][]float64{{100, 100}}
	plane := planeFromPower(power)
	hits, err := Search(plane, 0, []float64{1}, HitSearchOptions{
		Method: LocalMaxima, SNRThreshold: 10, NeighborL1Dist: 1,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("len(hits) = %d, want exactly 1 deterministic winner among the tie", len(hits))
	}
	if hits[0].IndexMax != (Cell{DriftIndex: 0, FreqChan: 0}) {
		t.Errorf("IndexMax = %+v, want the lexicographically lower {0 0}", hits[0].IndexMax)
	}
}

func TestSearchRFICountsTakeComponentMax(t *testing.T) {
	t.Parallel()

	power := [][]float64{{100, 120}}
	plane := planeFromPower(power)
	plane.Flags[0][0] = dedrift.CellFlags{SigmaClip: 3}
	plane.Flags[0][1] = dedrift.CellFlags{SigmaClip: 7}

	hits, err := Search(plane, 0, []float64{1}, HitSearchOptions{
		Method: ConnectedComponents, SNRThreshold: 10, NeighborL1Dist: 1,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("len(hits) = %d, want 1", len(hits))
	}
	if hits[0].RFICounts.SigmaClip != 7 {
		t.Errorf("RFICounts.SigmaClip = %d, want 7 (elementwise max)", hits[0].RFICounts.SigmaClip)
	}
}
