package geometry

import (
	"math"
	"testing"
)

func TestBuildDriftRatesMonotonic(t *testing.T) {
	t.Parallel()

	// With foff = 1 MHz over 15 steps the unit drift is ~66.7 kHz/s, so the
	// range must span several unit drifts to yield more than one row.
	rates := BuildDriftRates(16, 1.0, 1.0, IntegrateDriftsOptions{
		Desmear: true, LowRateHzPerSec: -1e6, HighRateHzPerSec: 1e6, Resolution: 1,
	})
	if len(rates) < 2 {
		t.Fatalf("expected multiple drift rates, got %d", len(rates))
	}
	for i := 1; i < len(rates); i++ {
		if rates[i].RateHzPerSec < rates[i-1].RateHzPerSec {
			t.Fatalf("rates not monotonic at index %d: %v then %v", i, rates[i-1].RateHzPerSec, rates[i].RateHzPerSec)
		}
		if rates[i].IndexInPlane != rates[i-1].IndexInPlane+1 {
			t.Errorf("expected contiguous IndexInPlane, got %d after %d", rates[i].IndexInPlane, rates[i-1].IndexInPlane)
		}
	}
}

func TestBuildDriftRatesChannelSpanFormula(t *testing.T) {
	t.Parallel()

	const ntsteps = 16
	const foffMHz = 1.0
	const tsampSec = 1.0
	rates := BuildDriftRates(ntsteps, foffMHz, tsampSec, IntegrateDriftsOptions{
		Desmear: true, LowRateHzPerSec: -1e6, HighRateHzPerSec: 1e6, Resolution: 1,
	})
	foffHz := foffMHz * 1e6
	for _, r := range rates {
		want := int(math.Round(r.RateHzPerSec * float64(ntsteps-1) * tsampSec / foffHz))
		if r.ChannelSpan != want {
			t.Errorf("rate %v: ChannelSpan = %d, want %d", r.RateHzPerSec, r.ChannelSpan, want)
		}
	}
}

func TestBuildDriftRatesZeroDriftPresent(t *testing.T) {
	t.Parallel()

	rates := BuildDriftRates(16, 1.0, 1.0, DefaultIntegrateDriftsOptions())
	found := false
	for _, r := range rates {
		if r.ChannelSpan == 0 {
			found = true
			if r.DesmearedBins != 1 {
				t.Errorf("zero-drift row should desmear to 1 bin, got %d", r.DesmearedBins)
			}
		}
	}
	if !found {
		t.Fatal("expected a zero-drift row in a symmetric search range")
	}
}

func TestBuildDriftRatesDesmearWidth(t *testing.T) {
	t.Parallel()

	// A slope of exactly 2 channels/step (channel span 30 over 15 steps)
	// should desmear to 2 bins.
	const targetRate = 2e6 // Hz/s -> channel_span = rate*(ntsteps-1)*tsamp/foffHz = 2e6*15/1e6 = 30
	rates := BuildDriftRates(16, 1.0, 1.0, IntegrateDriftsOptions{
		Desmear: true, LowRateHzPerSec: targetRate, HighRateHzPerSec: targetRate, Resolution: 1,
	})
	if len(rates) != 1 {
		t.Fatalf("expected exactly 1 rate, got %d", len(rates))
	}
	if got := rates[0].DesmearedBins; got != 2 {
		t.Errorf("DesmearedBins = %d, want 2 (slope=%v)", got, rates[0].Slope)
	}

	noDesmear := BuildDriftRates(16, 1.0, 1.0, IntegrateDriftsOptions{
		Desmear: false, LowRateHzPerSec: targetRate, HighRateHzPerSec: targetRate, Resolution: 1,
	})
	if got := noDesmear[0].DesmearedBins; got != 1 {
		t.Errorf("with desmear disabled, DesmearedBins = %d, want 1", got)
	}
}

func TestBuildDriftRatesNegativeFoff(t *testing.T) {
	t.Parallel()

	rates := BuildDriftRates(16, -1.0, 1.0, IntegrateDriftsOptions{
		Desmear: true, LowRateHzPerSec: -1e6, HighRateHzPerSec: 1e6, Resolution: 1,
	})
	if len(rates) == 0 {
		t.Fatal("expected rates for inverted band")
	}
	// Under negative foff, ChannelSpan has the opposite sign of the rate.
	for _, r := range rates {
		if r.RateHzPerSec > 0 && r.ChannelSpan > 0 {
			t.Errorf("positive rate %v with negative foff should give non-positive channel span, got %d", r.RateHzPerSec, r.ChannelSpan)
		}
	}
}
