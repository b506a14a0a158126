// Package instrument provides the position/orientation readings consumed by the sampler.
package instrument

import (
	"context"
	"fmt"

	"cloudpico-positioning/internal/position"
)

// Instrument reads the current position and orientation.
type Instrument interface {
	Read(ctx context.Context) (position.Reading, error)
}

// DefaultStaticReading is the reading reported when no instrument is attached:
// everything at zero with standard gravity rounded to 10 m/s^2.
var DefaultStaticReading = position.Reading{GForceMagnitude: 10}

// Static always reports the same reading.
type Static struct {
	Reading position.Reading
}

func (s Static) Read(ctx context.Context) (position.Reading, error) {
	return s.Reading, nil
}

// Func adapts a function to the Instrument interface.
type Func func(ctx context.Context) (position.Reading, error)

func (f Func) Read(ctx context.Context) (position.Reading, error) {
	return f(ctx)
}

// New returns the instrument registered under kind.
func New(kind string) (Instrument, error) {
	switch kind {
	case "static":
		return Static{Reading: DefaultStaticReading}, nil
	default:
		return nil, fmt.Errorf("unknown instrument %q (allowed: static)", kind)
	}
}
