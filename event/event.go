// Package event implements EventSearch: correlating hits across the
// scans of a cadence by persistence, ON vs OFF, per spec §4.7.
package event

import (
	"math"

	"github.com/hb9tf/bliss/cadence"
	"github.com/hb9tf/bliss/hit"
)

// epsilon guards the drift-rate term's denominator against a
// zero-drift/zero-drift comparison.
const epsilon = 1e-8

// EventSearchOptions exposes the two distance thresholds spec §9 flags as
// "dimensionally opaque" rather than hardcoding them: MatchThreshold gates
// whether a candidate ON hit joins a growing event, OffRejectThreshold
// gates whether an event's mean distance to an OFF hit disqualifies it.
type EventSearchOptions struct {
	MatchThreshold     float64
	OffRejectThreshold float64
}

// DefaultEventSearchOptions returns the reference values for both
// thresholds: 50.
func DefaultEventSearchOptions() EventSearchOptions {
	return EventSearchOptions{MatchThreshold: 50, OffRejectThreshold: 50}
}

func (o EventSearchOptions) withDefaults() EventSearchOptions {
	if o.MatchThreshold == 0 {
		o.MatchThreshold = 50
	}
	if o.OffRejectThreshold == 0 {
		o.OffRejectThreshold = 50
	}
	return o
}

// Event is a signal tracked as present across an ON target's scans and
// absent from every OFF target, with its member hits' physical
// quantities averaged.
type Event struct {
	Hits []hit.Hit

	// StartingFrequencyHz, EventStartSeconds and EventEndSeconds are taken
	// from the seed hit that founded the event, not averaged across its
	// members.
	StartingFrequencyHz float64
	EventStartSeconds   float64
	EventEndSeconds     float64

	MeanDriftRateHzPerSec float64
	MeanPower             float64
	MeanSNR               float64
	MeanBandwidthHz       float64

	SeenInOFF bool
}

// frequencyAt projects h's predicted frequency at absolute time t,
// extrapolating linearly from its start along its drift rate.
func frequencyAt(h hit.Hit, t float64) float64 {
	return h.StartFreqMHz*1e6 + h.DriftRateHzPerSec*(t-h.StartTimeSec)
}

// rendezvousTime computes the shared projection time t* for a and b: the
// reference implementation takes max(a.start+b.duration, b.start+b.duration),
// using b's duration in both terms. This is almost certainly a transcription
// slip in the original system (a's own duration would be the natural choice
// in the first term), but matching distances were tuned against the
// as-observed formula, so it is preserved rather than "corrected" here.
func rendezvousTime(a, b hit.Hit) float64 {
	minStart := math.Min(a.StartTimeSec, b.StartTimeSec)
	maxEnd := math.Max(a.StartTimeSec+b.DurationSec, b.StartTimeSec+b.DurationSec)
	return (minStart + maxEnd) / 2
}

// distance computes d(a, b) per spec §4.7: a localization term in
// frequency, a drift-rate-mismatch term, and a zero-weighted SNR term
// kept for documentation parity with the reference formula.
func distance(a, b hit.Hit) float64 {
	tStar := rendezvousTime(a, b)
	fa := frequencyAt(a, tStar)
	fb := frequencyAt(b, tStar)

	freqTerm := 0.01 * math.Abs(fa-fb)
	driftDenom := epsilon + a.DriftRateHzPerSec*a.DriftRateHzPerSec + b.DriftRateHzPerSec*b.DriftRateHzPerSec
	driftRatio := (a.DriftRateHzPerSec - b.DriftRateHzPerSec) * (a.DriftRateHzPerSec - b.DriftRateHzPerSec) / driftDenom
	driftTerm := 10 * driftRatio * driftRatio
	snrTerm := 0 * math.Abs(a.SNR-b.SNR)

	return freqTerm + driftTerm + snrTerm
}

// candidate pairs a hit with its scan-list position, for the
// start_freq_index/rate_index tie-break in step 2/determinism note.
type candidate struct {
	hit   hit.Hit
	index int
}

func tieBreakLess(a, b candidate) bool {
	if a.hit.StartFreqIndex != b.hit.StartFreqIndex {
		return a.hit.StartFreqIndex < b.hit.StartFreqIndex
	}
	return a.hit.RateIndex < b.hit.RateIndex
}

// minDistanceToEvent returns the smallest distance from any hit in
// eventHits to candidate c, used to pick c's best attachment point.
func minDistanceToEvent(eventHits []hit.Hit, c hit.Hit) float64 {
	best := math.Inf(1)
	for _, h := range eventHits {
		if d := distance(h, c); d < best {
			best = d
		}
	}
	return best
}

// Search runs EventSearch over cad: every unclaimed hit in every ON scan
// seeds a candidate event, matching forward from the scan after its own;
// each subsequent ON scan contributes at most one hit per event (its
// closest, by distance, among that scan's unclaimed hits, provided the
// minimum distance is below opts.MatchThreshold), and a claimed hit never
// seeds or joins another event. Every OFF scan is then checked for a mean
// distance below opts.OffRejectThreshold, which marks the event as
// contaminated. Only events with more than one hit, unseen in any OFF
// scan, are returned.
func Search(cad cadence.Cadence, opts EventSearchOptions) ([]Event, error) {
	opts = opts.withDefaults()
	onTargets := cad.ONTargets()
	if len(onTargets) == 0 {
		return nil, nil
	}

	onHits := make([][]hit.Hit, len(onTargets))
	for i, t := range onTargets {
		hits, err := t.Scan.Hits()
		if err != nil {
			return nil, err
		}
		onHits[i] = hits
	}

	claimed := make([]map[int]bool, len(onTargets))
	for i := range claimed {
		claimed[i] = make(map[int]bool)
	}

	var events []Event
	for scanIdx0 := range onHits {
		for hi, seed := range onHits[scanIdx0] {
			if claimed[scanIdx0][hi] {
				continue
			}
			ev := Event{
				Hits:                []hit.Hit{seed},
				StartingFrequencyHz: seed.StartFreqMHz * 1e6,
				EventStartSeconds:   seed.StartTimeSec,
				EventEndSeconds:     seed.StartTimeSec + seed.DurationSec,
			}
			claimed[scanIdx0][hi] = true

			for scanIdx := scanIdx0 + 1; scanIdx < len(onHits); scanIdx++ {
				bestIdx := -1
				bestDist := math.Inf(1)
				var bestCandidate candidate
				for idx, h := range onHits[scanIdx] {
					if claimed[scanIdx][idx] {
						continue
					}
					d := minDistanceToEvent(ev.Hits, h)
					cand := candidate{hit: h, index: idx}
					if d < bestDist || (d == bestDist && bestIdx >= 0 && tieBreakLess(cand, candidate{hit: onHits[scanIdx][bestIdx], index: bestIdx})) {
						bestDist = d
						bestIdx = idx
						bestCandidate = cand
					}
				}
				if bestIdx >= 0 && bestDist < opts.MatchThreshold {
					ev.Hits = append(ev.Hits, bestCandidate.hit)
					claimed[scanIdx][bestIdx] = true
				}
			}

			events = append(events, ev)
		}
	}

	offTargets := cad.OFFTargets()
	offHits := make([][]hit.Hit, len(offTargets))
	for i, t := range offTargets {
		hits, err := t.Scan.Hits()
		if err != nil {
			return nil, err
		}
		offHits[i] = hits
	}

	var kept []Event
	for _, ev := range events {
		seenInOFF := false
		for _, scanHits := range offHits {
			for _, off := range scanHits {
				var sum float64
				for _, h := range ev.Hits {
					sum += distance(h, off)
				}
				if sum/float64(len(ev.Hits)) < opts.OffRejectThreshold {
					seenInOFF = true
					break
				}
			}
			if seenInOFF {
				break
			}
		}
		ev.SeenInOFF = seenInOFF
		if len(ev.Hits) > 1 && !seenInOFF {
			ev.averageFields()
			kept = append(kept, ev)
		}
	}
	return kept, nil
}

func (e *Event) averageFields() {
	n := float64(len(e.Hits))
	for _, h := range e.Hits {
		e.MeanDriftRateHzPerSec += h.DriftRateHzPerSec
		e.MeanPower += h.Power
		e.MeanSNR += h.SNR
		e.MeanBandwidthHz += h.BandwidthHz
	}
	e.MeanDriftRateHzPerSec /= n
	e.MeanPower /= n
	e.MeanSNR /= n
	e.MeanBandwidthHz /= n
}
