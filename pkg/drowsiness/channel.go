package drowsiness

import "github.com/teslashibe/go-vigil/pkg/filter"

// Channel names.
const (
	ChannelPrimaryProbability   = "primary_probability"
	ChannelPrimaryRatio         = "primary_ratio"
	ChannelSecondaryProbability = "secondary_probability"
	ChannelSecondaryRatio       = "secondary_ratio"
)

// Vote is one channel's opinion for a frame. Both false is an abstention.
type Vote struct {
	Closed bool `json:"closed"`
	Open   bool `json:"open"`
}

// Vote classifies a smoothed pair against t.
func (t Thresholds) Vote(left, right float64) Vote {
	return Vote{
		Closed: left < t.ClosedBelow && right < t.ClosedBelow,
		Open:   left >= t.OpenAtOrAbove || right >= t.OpenAtOrAbove,
	}
}

// Channel smooths one provider's per-eye values and votes on them.
// Each eye has its own filter; a missing value resets that eye only.
type Channel struct {
	name       string
	provider   Provider
	thresholds Thresholds
	left       *filter.Smoothed
	right      *filter.Smoothed
}

// NewChannel creates a channel.
func NewChannel(name string, p Provider, t Thresholds, alpha float64) *Channel {
	return &Channel{
		name:       name,
		provider:   p,
		thresholds: t,
		left:       filter.NewSmoothed(alpha),
		right:      filter.NewSmoothed(alpha),
	}
}

// Name returns the channel name.
func (c *Channel) Name() string { return c.name }

// Sample reads the provider and returns the smoothed reading. The reading
// is available only when both eyes have a smoothed value, but an eye that
// is present keeps its history while the other is missing.
func (c *Channel) Sample(in Input) Reading {
	raw := c.provider.Read(in)
	l, lok := raw.Left()
	r, rok := raw.Right()
	sl, lok := c.left.Feed(l, lok)
	sr, rok := c.right.Feed(r, rok)
	return Eyes(sl, lok, sr, rok)
}

// Vote classifies a smoothed reading. Unavailable readings abstain.
func (c *Channel) Vote(r Reading) Vote {
	l, rr, ok := r.Values()
	if !ok {
		return Vote{}
	}
	return c.thresholds.Vote(l, rr)
}

// Reset clears both eye filters.
func (c *Channel) Reset() {
	c.left.Reset()
	c.right.Reset()
}

// ChannelResult records one channel's contribution to a frame.
type ChannelResult struct {
	Name      string  `json:"name"`
	Available bool    `json:"available"`
	Left      float64 `json:"left,omitempty"`
	Right     float64 `json:"right,omitempty"`
	Vote      Vote    `json:"vote"`
}

// Tally counts votes across channels for one frame.
type Tally struct {
	Available int `json:"available"`
	Closed    int `json:"closed"`
	Open      int `json:"open"`
}

// Add records one channel's reading and vote.
func (t *Tally) Add(r Reading, v Vote) {
	if !r.IsAvailable() {
		return
	}
	t.Available++
	if v.Closed {
		t.Closed++
	}
	if v.Open {
		t.Open++
	}
}

// EyesClosed resolves the tally. Open evidence wins ties and minorities.
func (t Tally) EyesClosed() bool {
	return t.Closed > 0 && t.Closed > t.Open
}
