// Package cadence is the orchestration layer: it wraps a raw coarse
// channel with the lazily-cached products (noise stats, dedrift plane,
// hits) the detection core computes from it, and groups channels into
// scans and scans into a cadence of ON/OFF observation targets for
// EventSearch, per spec §4.8 and §9.
package cadence

import (
	"sort"
	"sync"

	"github.com/hb9tf/bliss/dedrift"
	"github.com/hb9tf/bliss/errs"
	"github.com/hb9tf/bliss/geometry"
	"github.com/hb9tf/bliss/hit"
	"github.com/hb9tf/bliss/lazy"
	"github.com/hb9tf/bliss/noise"
	"github.com/hb9tf/bliss/pipeline"
	"github.com/hb9tf/bliss/protohit"
	"github.com/hb9tf/bliss/waterfall"
)

// NoiseEstimator computes a channel's noise floor and variance. External
// to the core (spec §6); callers supply an implementation (spectral
// kurtosis, sigma-clip, or a fixed value for tests).
type NoiseEstimator func(*waterfall.CoarseChannel) (waterfall.NoiseStats, error)

// DetectionOptions bundles the three stages between a dedrifted plane and
// a filtered hit list.
type DetectionOptions struct {
	Drift  geometry.IntegrateDriftsOptions
	Search protohit.HitSearchOptions
	Filter hit.FilterOptions
}

// Channel wraps a raw coarse channel with single-assignment caches for
// its noise stats, dedrift plane, and hits, per spec §5's locking
// discipline: the first Get to observe a pending cell computes and
// publishes; callers never see a partial result.
type Channel struct {
	Raw *waterfall.CoarseChannel

	estimateNoise NoiseEstimator
	opts          DetectionOptions

	noiseStats *lazy.Cell[waterfall.NoiseStats]
	plane      *lazy.Cell[*dedrift.Plane]
	hits       *lazy.Cell[[]hit.Hit]
}

// NewChannel builds a Channel around raw, arming (but not yet computing)
// its noise/plane/hits cells.
func NewChannel(raw *waterfall.CoarseChannel, estimateNoise NoiseEstimator, opts DetectionOptions) *Channel {
	c := &Channel{Raw: raw, estimateNoise: estimateNoise, opts: opts}
	c.noiseStats = lazy.NewPending(c.computeNoiseStats)
	c.plane = lazy.NewPending(c.computePlane)
	c.hits = lazy.NewPending(c.computeHits)
	return c
}

func (c *Channel) computeNoiseStats() (waterfall.NoiseStats, error) {
	return c.estimateNoise(c.Raw)
}

func (c *Channel) computePlane() (*dedrift.Plane, error) {
	rates := geometry.BuildDriftRates(c.Raw.Meta.Ntsteps, c.Raw.Meta.FoffMHz, c.Raw.Meta.TsampSec, c.opts.Drift)
	return dedrift.Integrate(c.Raw, rates)
}

func (c *Channel) computeHits() ([]hit.Hit, error) {
	stats, err := c.NoiseStats()
	if err != nil {
		return nil, err
	}
	plane, err := c.DriftPlane()
	if err != nil {
		return nil, err
	}
	desmearedBins := make([]int, len(plane.DriftRates))
	for i, r := range plane.DriftRates {
		desmearedBins[i] = r.DesmearedBins
	}
	adjusted := noise.Adjust(stats, plane.IntegrationSteps, desmearedBins)

	protohits, err := protohit.Search(plane, stats.NoiseFloor, adjusted, c.opts.Search)
	if err != nil {
		return nil, err
	}

	hits := make([]hit.Hit, 0, len(protohits))
	for _, p := range protohits {
		h, err := hit.Characterize(p, c.Raw, plane, stats.NoiseFloor)
		if err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	hits = hit.Filter(hits, c.opts.Filter)
	hit.Sort(hits)
	return hits, nil
}

// NoiseStats resolves (computing on first call) the channel's noise
// estimate.
func (c *Channel) NoiseStats() (waterfall.NoiseStats, error) { return c.noiseStats.Get() }

// DriftPlane resolves (computing on first call) the channel's dedrift
// plane.
func (c *Channel) DriftPlane() (*dedrift.Plane, error) { return c.plane.Get() }

// Hits resolves (computing on first call) the channel's filtered,
// physically-characterized hit list.
func (c *Channel) Hits() ([]hit.Hit, error) { return c.hits.Get() }

// ChannelReader reads the raw coarse channel numbered i from a data
// source's hyperslabs.
type ChannelReader func(i int) (*waterfall.CoarseChannel, error)

// Scan is one pointing's set of coarse channels, built from a data
// source's hyperslab reader and a shared pipeline chain, per spec §4.8.
// read_coarse_channel applies the pipeline chain fresh on every miss;
// once a Channel wrapper exists for an index it is reused so its lazy
// caches persist across repeated reads, matching the reference
// semantics that cached products, not the transform chain, are what
// survives.
type Scan struct {
	Name          string
	NumChannels   int
	Read          ChannelReader
	Pipeline      pipeline.Chain
	EstimateNoise NoiseEstimator
	Detection     DetectionOptions

	mu       sync.Mutex
	channels map[int]*Channel
}

// NewStaticScan builds a Scan whose single pseudo-channel already carries
// a fixed, resolved hit list instead of computing one from raw data. This
// lets EventSearch run over hits reloaded from the store package without
// re-running the detection pipeline.
func NewStaticScan(name string, hits []hit.Hit) *Scan {
	ch := &Channel{hits: lazy.NewReady(hits)}
	return &Scan{
		Name:        name,
		NumChannels: 1,
		channels:    map[int]*Channel{0: ch},
	}
}

// NewScan builds a Scan. estimateNoise and detection apply uniformly to
// every channel the scan reads.
func NewScan(name string, numChannels int, read ChannelReader, chain pipeline.Chain, estimateNoise NoiseEstimator, detection DetectionOptions) *Scan {
	return &Scan{
		Name:          name,
		NumChannels:   numChannels,
		Read:          read,
		Pipeline:      chain,
		EstimateNoise: estimateNoise,
		Detection:     detection,
		channels:      make(map[int]*Channel),
	}
}

// ReadCoarseChannel returns the Channel wrapper for index i, constructing
// it (raw read + pipeline) on first access.
func (s *Scan) ReadCoarseChannel(i int) (*Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.channels[i]; ok {
		return ch, nil
	}
	if i < 0 || i >= s.NumChannels {
		return nil, errs.NewProgrammerError("cadence.Scan.ReadCoarseChannel: index %d out of range [0, %d)", i, s.NumChannels)
	}
	raw, err := s.Read(i)
	if err != nil {
		return nil, err
	}
	raw, err = s.Pipeline.Apply(raw)
	if err != nil {
		return nil, err
	}
	ch := NewChannel(raw, s.EstimateNoise, s.Detection)
	s.channels[i] = ch
	return ch, nil
}

// Hits resolves every channel's hits and returns them merged in the
// physics-field ordering of hit.Less, per spec §5's ordering guarantee
// that event search consumes a finalized, per-scan-sorted hit list.
func (s *Scan) Hits() ([]hit.Hit, error) {
	var all []hit.Hit
	for i := 0; i < s.NumChannels; i++ {
		ch, err := s.ReadCoarseChannel(i)
		if err != nil {
			return nil, err
		}
		hits, err := ch.Hits()
		if err != nil {
			return nil, err
		}
		all = append(all, hits...)
	}
	sort.Slice(all, func(i, j int) bool { return hit.Less(all[i], all[j]) })
	return all, nil
}

// ObservationTarget is one pointing in a cadence: a named target, whether
// it is the ON source, and its scan.
type ObservationTarget struct {
	Name string
	IsOn bool
	Scan *Scan
}

// Cadence is an ordered sequence of observation targets. Targets with
// IsOn set are the ON scans, taken in order; the rest are OFF comparison
// pointings. NewCadence places its ON target first.
type Cadence struct {
	Targets []ObservationTarget
}

// NewCadence builds a Cadence from an ON scan followed by any number of
// OFF scans.
func NewCadence(onName string, on *Scan, offs ...ObservationTarget) Cadence {
	targets := make([]ObservationTarget, 0, 1+len(offs))
	targets = append(targets, ObservationTarget{Name: onName, IsOn: true, Scan: on})
	targets = append(targets, offs...)
	return Cadence{Targets: targets}
}

// ONTargets returns every target flagged as ON, in order.
func (c Cadence) ONTargets() []ObservationTarget {
	var out []ObservationTarget
	for _, t := range c.Targets {
		if t.IsOn {
			out = append(out, t)
		}
	}
	return out
}

// OFFTargets returns every target flagged as OFF, in order.
func (c Cadence) OFFTargets() []ObservationTarget {
	var out []ObservationTarget
	for _, t := range c.Targets {
		if !t.IsOn {
			out = append(out, t)
		}
	}
	return out
}
