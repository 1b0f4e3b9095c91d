package drowsiness

import (
	"time"

	"github.com/teslashibe/go-vigil/pkg/debug"
	"github.com/teslashibe/go-vigil/pkg/detection"
)

// Observation is everything known about one frame.
type Observation struct {
	// At is the monotonic time of the frame relative to stream start.
	At time.Duration

	// Frame size in pixels, used to scale normalized geometry. Zero means
	// unknown and geometry is used as-is.
	Width, Height int

	// Rotation applied to the frame before detection, in degrees.
	Rotation int

	Faces     []detection.Face
	Landmarks []detection.LandmarkSet

	// Err is set when a detector failed on this frame.
	Err error
}

// Evaluation is the detail behind the most recent state.
type Evaluation struct {
	At       time.Duration   `json:"at"`
	State    DriverState     `json:"state"`
	Tally    Tally           `json:"tally"`
	Channels []ChannelResult `json:"channels,omitempty"`
	Closed   bool            `json:"closed"`
}

// Analyzer evaluates frames into driver states. It owns all filter and
// timer state for one stream.
type Analyzer struct {
	cfg      Config
	channels []*Channel
	debounce *Debouncer
	state    DriverState
	last     Evaluation
}

// NewAnalyzer builds the channels enabled in cfg.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var channels []*Channel
	if cfg.Sources.Probability {
		channels = append(channels, NewChannel(ChannelPrimaryProbability,
			ProbabilityProvider{}, cfg.PrimaryProbability, cfg.SmoothingAlpha))
	}
	if cfg.Sources.Contour {
		channels = append(channels, NewChannel(ChannelPrimaryRatio,
			ContourProvider{Params: cfg.Contour}, cfg.PrimaryRatio, cfg.SmoothingAlpha))
	}
	if cfg.Sources.Landmarks {
		channels = append(channels,
			NewChannel(ChannelSecondaryProbability,
				LandmarkProbabilityProvider{ClosedRef: cfg.ClosedRatioRef, OpenRef: cfg.OpenRatioRef},
				cfg.SecondaryProbability, cfg.SmoothingAlpha),
			NewChannel(ChannelSecondaryRatio,
				LandmarkRatioProvider{}, cfg.SecondaryRatio, cfg.SmoothingAlpha),
		)
	}
	return NewAnalyzerWithChannels(cfg, channels...), nil
}

// NewAnalyzerWithChannels builds an analyzer over caller-supplied
// channels. Only cfg.ClosedEyesThreshold and cfg.Sources.Landmarks are
// consulted.
func NewAnalyzerWithChannels(cfg Config, channels ...*Channel) *Analyzer {
	return &Analyzer{
		cfg:      cfg,
		channels: channels,
		debounce: NewDebouncer(cfg.ClosedEyesThreshold),
		state:    Initializing(),
	}
}

// Config returns the analyzer configuration.
func (a *Analyzer) Config() Config { return a.cfg }

// State returns the most recent state.
func (a *Analyzer) State() DriverState { return a.state }

// LastEvaluation returns the detail behind the most recent state.
func (a *Analyzer) LastEvaluation() Evaluation { return a.last }

// Evaluate processes one frame. Frames must arrive in order of At.
//
// A detector failure or a frame without a face resets the closed timer and
// all filters, so a closed run never spans one.
func (a *Analyzer) Evaluate(obs Observation) DriverState {
	a.last = Evaluation{At: obs.At}

	if obs.Err != nil {
		a.reset()
		return a.settle(Error(obs.Err.Error()))
	}

	in, ok := a.input(obs)
	if !ok {
		a.reset()
		return a.settle(NoFace())
	}

	results := make([]ChannelResult, 0, len(a.channels))
	var tally Tally
	for _, ch := range a.channels {
		r := ch.Sample(in)
		v := ch.Vote(r)
		tally.Add(r, v)
		l, rr, avail := r.Values()
		results = append(results, ChannelResult{Name: ch.Name(), Available: avail, Left: l, Right: rr, Vote: v})
	}
	a.last.Tally = tally
	a.last.Channels = results

	if tally.Available == 0 {
		a.debounce.Reset()
		return a.settle(Attentive())
	}

	closed := tally.EyesClosed()
	a.last.Closed = closed
	return a.settle(a.debounce.Step(closed, obs.At))
}

// Reset returns the analyzer to Initializing with empty filters.
func (a *Analyzer) Reset() {
	a.reset()
	a.state = Initializing()
	a.last = Evaluation{}
}

func (a *Analyzer) input(obs Observation) (Input, bool) {
	in := Input{Width: float64(obs.Width), Height: float64(obs.Height)}

	if face := detection.SelectBestFace(obs.Faces); face != nil {
		in.Face = face
		if a.cfg.Sources.Landmarks {
			in.Landmarks = detection.NearestLandmarks(*face, obs.Landmarks)
		}
		return in, true
	}

	// Without a primary face the mesh alone is enough to go on.
	if a.cfg.Sources.Landmarks {
		for i := range obs.Landmarks {
			if len(obs.Landmarks[i].Points) > 0 {
				in.Landmarks = &obs.Landmarks[i]
				return in, true
			}
		}
	}

	// A detected face with a degenerate box still counts as a face; its
	// signals are simply unavailable.
	return in, len(obs.Faces) > 0
}

func (a *Analyzer) reset() {
	a.debounce.Reset()
	for _, ch := range a.channels {
		ch.Reset()
	}
}

func (a *Analyzer) settle(s DriverState) DriverState {
	if debug.Analysis {
		since, closing := a.debounce.ClosedSince()
		debug.Tracef("analyze t=%v state=%v tally=%+v closing=%v since=%v",
			a.last.At, s, a.last.Tally, closing, since)
	}
	a.state = s
	a.last.State = s
	return s
}
