package sampler

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"cloudpico-positioning/internal/geo"
	"cloudpico-positioning/internal/instrument"
	"cloudpico-positioning/internal/position"
)

func fixedNow(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestSample_ReferenceConfiguration(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.Local)
	s := New(instrument.Static{Reading: instrument.DefaultStaticReading}, Options{
		Reference:      geo.DefaultReference,
		Correction:     geo.DefaultCorrection,
		TimestampShift: DefaultTimestampShift,
		Now:            fixedNow(now),
	})

	got, err := s.Sample(context.Background())
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}

	if got.GForceMagnitude != 10 {
		t.Errorf("GForceMagnitude = %v, want 10", got.GForceMagnitude)
	}
	wantTS := now.Add(-5 * time.Hour)
	if !got.Timestamp.Equal(wantTS) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, wantTS)
	}
	if got.Timestamp.Location() != time.Local {
		t.Errorf("Timestamp location = %v, want Local", got.Timestamp.Location())
	}

	east, north, total := geo.Offsets(geo.DefaultReference, 0, 0, geo.DefaultCorrection)
	if got.EastOffset != east || got.NorthOffset != north || got.TotalOffset != total {
		t.Errorf("offsets = (%v, %v, %v), want (%v, %v, %v)",
			got.EastOffset, got.NorthOffset, got.TotalOffset, east, north, total)
	}
}

func TestSample_AtReferencePoint(t *testing.T) {
	corr := geo.Correction{North: 3, East: 3}
	inst := instrument.Static{Reading: position.Reading{
		Latitude:  geo.DefaultReference.Lat,
		Longitude: geo.DefaultReference.Lon,
	}}
	s := New(inst, Options{Reference: geo.DefaultReference, Correction: corr})

	got, err := s.Sample(context.Background())
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if got.NorthOffset != corr.North {
		t.Errorf("NorthOffset = %v, want %v", got.NorthOffset, corr.North)
	}
	if math.Abs(got.TotalOffset-math.Sqrt2*3) > 1e-12 {
		t.Errorf("TotalOffset = %v, want %v", got.TotalOffset, math.Sqrt2*3)
	}
}

func TestSample_InstrumentError(t *testing.T) {
	boom := errors.New("no fix")
	s := New(instrument.Func(func(ctx context.Context) (position.Reading, error) {
		return position.Reading{}, boom
	}), Options{})

	if _, err := s.Sample(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Sample() error = %v, want wrapped %v", err, boom)
	}
}

func TestSample_NonFiniteReadingIsAnError(t *testing.T) {
	tests := []struct {
		name    string
		reading position.Reading
	}{
		{name: "nan heading", reading: position.Reading{Heading: math.NaN()}},
		{name: "inf latitude", reading: position.Reading{Latitude: math.Inf(1)}},
		{name: "negative inf gforce", reading: position.Reading{GForceMagnitude: math.Inf(-1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(instrument.Static{Reading: tt.reading}, Options{
				Reference:  geo.DefaultReference,
				Correction: geo.DefaultCorrection,
			})

			if _, err := s.Sample(context.Background()); err == nil {
				t.Fatal("Sample() error = nil, want non-finite reading rejected")
			}
		})
	}
}
