package noise

import (
	"testing"

	"github.com/hb9tf/bliss/flags"
	"github.com/hb9tf/bliss/waterfall"
)

func TestAdjustFormula(t *testing.T) {
	t.Parallel()

	stats := waterfall.NoiseStats{NoiseFloor: 1, NoisePower: 2}
	bins := []int{1, 2, 4}
	adjusted := Adjust(stats, 16, bins)
	for d, b := range bins {
		want := stats.NoisePower * 16 * float64(b)
		if adjusted[d] != want {
			t.Errorf("adjusted[%d] = %v, want %v", d, adjusted[d], want)
		}
	}
}

func TestAdjustEmpty(t *testing.T) {
	t.Parallel()

	adjusted := Adjust(waterfall.NoiseStats{NoisePower: 1}, 10, nil)
	if len(adjusted) != 0 {
		t.Errorf("expected empty result, got %v", adjusted)
	}
}

func channelWithConstantPower(v float32, flag flags.Bitmask) *waterfall.CoarseChannel {
	meta := waterfall.ScanMetadata{Fch1MHz: 1000, FoffMHz: 1, TsampSec: 1, TstartMJD: 0, Ntsteps: 4, Nchans: 4, SourceName: "test"}
	data := make([][]float32, meta.Ntsteps)
	mask := make([][]flags.Bitmask, meta.Ntsteps)
	for t := range data {
		data[t] = make([]float32, meta.Nchans)
		mask[t] = make([]flags.Bitmask, meta.Nchans)
		for f := range data[t] {
			data[t][f] = v
			mask[t][f] = flag
		}
	}
	ch, err := waterfall.NewCoarseChannel(0, meta, data, mask)
	if err != nil {
		panic(err)
	}
	return ch
}

func TestEstimateBasicConstantPowerHasZeroVariance(t *testing.T) {
	t.Parallel()

	ch := channelWithConstantPower(5, flags.Unflagged)
	stats, err := EstimateBasic(ch)
	if err != nil {
		t.Fatalf("EstimateBasic: %v", err)
	}
	if stats.NoiseFloor != 5 {
		t.Errorf("NoiseFloor = %v, want 5", stats.NoiseFloor)
	}
	if stats.NoisePower != 0 {
		t.Errorf("NoisePower = %v, want 0", stats.NoisePower)
	}
}

func TestEstimateBasicAllFlaggedIsDataError(t *testing.T) {
	t.Parallel()

	ch := channelWithConstantPower(5, flags.Magnitude)
	if _, err := EstimateBasic(ch); err == nil {
		t.Fatal("expected error when every sample is flagged")
	}
}
