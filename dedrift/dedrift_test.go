package dedrift

import (
	"testing"

	"github.com/hb9tf/bliss/flags"
	"github.com/hb9tf/bliss/geometry"
	"github.com/hb9tf/bliss/waterfall"
)

func constantToneChannel(t *testing.T, ntsteps, nchans, toneChan int, toneValue float32) *waterfall.CoarseChannel {
	t.Helper()
	meta := waterfall.ScanMetadata{
		Fch1MHz: 1000, FoffMHz: 1, TsampSec: 1, TstartMJD: 58000,
		Ntsteps: ntsteps, Nchans: nchans, SourceName: "test",
	}
	data := make([][]float32, ntsteps)
	for ti := range data {
		data[ti] = make([]float32, nchans)
		data[ti][toneChan] = toneValue
	}
	ch, err := waterfall.NewCoarseChannel(0, meta, data, nil)
	if err != nil {
		t.Fatalf("NewCoarseChannel: %v", err)
	}
	return ch
}

func TestIntegrateZeroDriftRowIsColumnSum(t *testing.T) {
	t.Parallel()

	ch := constantToneChannel(t, 16, 4096, 2000, 10)
	rates := geometry.BuildDriftRates(ch.Meta.Ntsteps, ch.Meta.FoffMHz, ch.Meta.TsampSec, geometry.IntegrateDriftsOptions{
		Desmear: true, LowRateHzPerSec: -1, HighRateHzPerSec: 1, Resolution: 1,
	})
	plane, err := Integrate(ch, rates)
	if err != nil {
		t.Fatalf("Integrate: %v", err)
	}

	zeroIdx := -1
	for i, r := range rates {
		if r.ChannelSpan == 0 {
			zeroIdx = i
			break
		}
	}
	if zeroIdx < 0 {
		t.Fatal("no zero-drift row in search range")
	}
	if got, want := plane.Power[zeroIdx][2000], 160.0; got != want {
		t.Errorf("power[0_drift, 2000] = %v, want %v", got, want)
	}
	for f := 0; f < ch.Meta.Nchans; f++ {
		if f == 2000 {
			continue
		}
		if plane.Power[zeroIdx][f] != 0 {
			t.Errorf("power[0_drift, %d] = %v, want 0", f, plane.Power[zeroIdx][f])
		}
	}
}

func TestIntegratePlaneShape(t *testing.T) {
	t.Parallel()

	ch := constantToneChannel(t, 16, 128, 64, 5)
	rates := geometry.BuildDriftRates(ch.Meta.Ntsteps, ch.Meta.FoffMHz, ch.Meta.TsampSec, geometry.DefaultIntegrateDriftsOptions())
	plane, err := Integrate(ch, rates)
	if err != nil {
		t.Fatalf("Integrate: %v", err)
	}
	if len(plane.Power) != len(rates) {
		t.Errorf("len(Power) = %d, want %d", len(plane.Power), len(rates))
	}
	for _, row := range plane.Power {
		if len(row) != ch.Meta.Nchans {
			t.Errorf("row length = %d, want %d", len(row), ch.Meta.Nchans)
		}
	}
}

func TestIntegrateLinearDriftTone(t *testing.T) {
	t.Parallel()

	const ntsteps, nchans, startChan = 16, 4096, 2000
	meta := waterfall.ScanMetadata{
		Fch1MHz: 1000, FoffMHz: 1, TsampSec: 1, TstartMJD: 58000,
		Ntsteps: ntsteps, Nchans: nchans, SourceName: "test",
	}
	data := make([][]float32, ntsteps)
	for tt := range data {
		data[tt] = make([]float32, nchans)
	}
	for tt := 0; tt < ntsteps; tt++ {
		f := startChan + int(0.5*float64(tt)+0.5)
		data[tt][f] = 10
	}
	ch, err := waterfall.NewCoarseChannel(0, meta, data, nil)
	if err != nil {
		t.Fatalf("NewCoarseChannel: %v", err)
	}

	rates := geometry.BuildDriftRates(ntsteps, meta.FoffMHz, meta.TsampSec, geometry.IntegrateDriftsOptions{
		Desmear: true, LowRateHzPerSec: -1e6, HighRateHzPerSec: 1e6, Resolution: 1,
	})
	plane, err := Integrate(ch, rates)
	if err != nil {
		t.Fatalf("Integrate: %v", err)
	}

	var best float64
	for d := range rates {
		for f := 0; f < nchans; f++ {
			if plane.Power[d][f] > best {
				best = plane.Power[d][f]
			}
		}
	}
	if best < 150 {
		t.Errorf("best trajectory power = %v, want >= 150", best)
	}
}

func TestIntegrateDesmearRecoversEnergy(t *testing.T) {
	t.Parallel()

	const ntsteps, nchans, startChan = 16, 64, 10
	meta := waterfall.ScanMetadata{
		Fch1MHz: 1000, FoffMHz: 1, TsampSec: 1, TstartMJD: 58000,
		Ntsteps: ntsteps, Nchans: nchans, SourceName: "test",
	}
	data := make([][]float32, ntsteps)
	for tt := range data {
		data[tt] = make([]float32, nchans)
		// Model a tone smeared evenly across the two channels it crosses
		// at a drift slope of 2 channels/step.
		data[tt][startChan+2*tt] = 5
		data[tt][startChan+2*tt+1] = 5
	}
	ch, err := waterfall.NewCoarseChannel(0, meta, data, nil)
	if err != nil {
		t.Fatalf("NewCoarseChannel: %v", err)
	}

	targetRate := 2e6 // channel_span = 2*(ntsteps-1)
	withDesmear := geometry.BuildDriftRates(ntsteps, meta.FoffMHz, meta.TsampSec, geometry.IntegrateDriftsOptions{
		Desmear: true, LowRateHzPerSec: targetRate, HighRateHzPerSec: targetRate, Resolution: 1,
	})
	withoutDesmear := geometry.BuildDriftRates(ntsteps, meta.FoffMHz, meta.TsampSec, geometry.IntegrateDriftsOptions{
		Desmear: false, LowRateHzPerSec: targetRate, HighRateHzPerSec: targetRate, Resolution: 1,
	})

	planeDesmear, err := Integrate(ch, withDesmear)
	if err != nil {
		t.Fatalf("Integrate (desmear): %v", err)
	}
	planeNoDesmear, err := Integrate(ch, withoutDesmear)
	if err != nil {
		t.Fatalf("Integrate (no desmear): %v", err)
	}

	full := planeDesmear.Power[0][startChan]
	half := planeNoDesmear.Power[0][startChan]
	if full <= half {
		t.Errorf("desmeared power %v should exceed non-desmeared power %v", full, half)
	}
	if withDesmear[0].DesmearedBins != 2 {
		t.Fatalf("expected DesmearedBins=2, got %d", withDesmear[0].DesmearedBins)
	}
	if got, want := full, float64(ntsteps)*10; got != want {
		t.Errorf("desmeared power = %v, want %v (full energy recovered)", got, want)
	}
}

func TestIntegrateBoundaryPadsZero(t *testing.T) {
	t.Parallel()

	ch := constantToneChannel(t, 8, 16, 0, 10)
	// A strongly negative drift (-5 channels/step over 8 steps) pushes every
	// trajectory below channel 0 partway through the 16-channel span;
	// Integrate must not panic or error, and must treat missing samples as
	// zero contribution.
	rates := []geometry.DriftRate{{IndexInPlane: 0, Slope: -5, RateHzPerSec: -5e6, ChannelSpan: -35, DesmearedBins: 5}}
	plane, err := Integrate(ch, rates)
	if err != nil {
		t.Fatalf("Integrate: %v", err)
	}
	if plane.IntegrationSteps != ch.Meta.Ntsteps {
		t.Errorf("IntegrationSteps = %d, want nominal %d even with padding", plane.IntegrationSteps, ch.Meta.Ntsteps)
	}
}

func TestFlagCountsTallyFlaggedSamples(t *testing.T) {
	t.Parallel()

	const ntsteps, nchans = 5, 1
	meta := waterfall.ScanMetadata{
		Fch1MHz: 1000, FoffMHz: 1, TsampSec: 1, TstartMJD: 58000,
		Ntsteps: ntsteps, Nchans: nchans, SourceName: "test",
	}
	data := make([][]float32, ntsteps)
	mask := make([][]flags.Bitmask, ntsteps)
	for tt := range data {
		data[tt] = make([]float32, nchans)
		mask[tt] = []flags.Bitmask{flags.SigmaClip}
	}
	ch, err := waterfall.NewCoarseChannel(0, meta, data, mask)
	if err != nil {
		t.Fatalf("NewCoarseChannel: %v", err)
	}
	rates := []geometry.DriftRate{{IndexInPlane: 0, Slope: 0, RateHzPerSec: 0, ChannelSpan: 0, DesmearedBins: 1}}
	plane, err := Integrate(ch, rates)
	if err != nil {
		t.Fatalf("Integrate: %v", err)
	}
	if got := plane.Flags[0][0].SigmaClip; got != 5 {
		t.Errorf("SigmaClip count = %d, want 5", got)
	}
}

func TestFlagCountsBoundedByIntegrationAndDesmear(t *testing.T) {
	t.Parallel()

	const ntsteps, nchans = 10, 20
	meta := waterfall.ScanMetadata{
		Fch1MHz: 1000, FoffMHz: 1, TsampSec: 1, TstartMJD: 58000,
		Ntsteps: ntsteps, Nchans: nchans, SourceName: "test",
	}
	data := make([][]float32, ntsteps)
	mask := make([][]flags.Bitmask, ntsteps)
	for tt := range data {
		data[tt] = make([]float32, nchans)
		mask[tt] = make([]flags.Bitmask, nchans)
		for f := range mask[tt] {
			mask[tt][f] = flags.LowSpectralKurtosis
		}
	}
	ch, err := waterfall.NewCoarseChannel(0, meta, data, mask)
	if err != nil {
		t.Fatalf("NewCoarseChannel: %v", err)
	}
	rates := geometry.BuildDriftRates(ntsteps, meta.FoffMHz, meta.TsampSec, geometry.DefaultIntegrateDriftsOptions())
	plane, err := Integrate(ch, rates)
	if err != nil {
		t.Fatalf("Integrate: %v", err)
	}
	for d, rate := range rates {
		bound := uint16(plane.IntegrationSteps * rate.DesmearedBins)
		for f := 0; f < nchans; f++ {
			if got := plane.Flags[d][f].LowSK; got > bound {
				t.Errorf("drift %d chan %d: LowSK=%d exceeds bound %d", d, f, got, bound)
			}
		}
	}
}
