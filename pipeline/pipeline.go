// Package pipeline threads a coarse channel through an ordered list of
// named transforms before the detection core ever sees it, per spec
// §4.8. A Scan's pipeline runs fresh on every read; the lazily-cached
// products a transform leaves attached to the channel (noise stats, the
// dedrift plane, hits) are what actually survives across reads, not the
// transform chain's own state.
package pipeline

import "github.com/hb9tf/bliss/waterfall"

// Transform is one named step: device normalization, bandpass correction,
// RFI pre-masking, or anything else that rewrites a channel before
// detection runs.
type Transform struct {
	Description string
	Fn          func(*waterfall.CoarseChannel) (*waterfall.CoarseChannel, error)
}

// Chain is an ordered list of transforms, applied in sequence.
type Chain []Transform

// Apply runs every transform in order, short-circuiting on the first
// error. A nil or empty chain returns ch unchanged.
func (c Chain) Apply(ch *waterfall.CoarseChannel) (*waterfall.CoarseChannel, error) {
	cur := ch
	for _, t := range c {
		next, err := t.Fn(cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}
