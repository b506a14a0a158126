package sampler

import (
	"context"
	"fmt"
	"time"

	"cloudpico-positioning/internal/geo"
	"cloudpico-positioning/internal/instrument"
	"cloudpico-positioning/internal/position"
)

// DefaultTimestampShift is added to the local wall clock for every sample.
// Recorded data depends on it; do not replace with a zone conversion.
const DefaultTimestampShift = -5 * time.Hour

type Options struct {
	Reference      geo.Point
	Correction     geo.Correction
	TimestampShift time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Sampler turns instrument readings into position samples.
type Sampler struct {
	instrument instrument.Instrument
	opts       Options
}

func New(inst instrument.Instrument, opts Options) *Sampler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Sampler{instrument: inst, opts: opts}
}

// Sample reads the instrument once and returns the derived sample.
func (s *Sampler) Sample(ctx context.Context) (position.Sample, error) {
	r, err := s.instrument.Read(ctx)
	if err != nil {
		return position.Sample{}, fmt.Errorf("read instrument: %w", err)
	}
	ts := s.opts.Now().Add(s.opts.TimestampShift)
	sample := position.NewSample(r, s.opts.Reference, s.opts.Correction, ts)
	if err := sample.Validate(); err != nil {
		return position.Sample{}, fmt.Errorf("invalid reading: %w", err)
	}
	return sample, nil
}
