// Package supervisor drives the sample/batch cycle on a fixed period.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"cloudpico-positioning/internal/position"
)

const DefaultInterval = time.Second

type Sampler interface {
	Sample(ctx context.Context) (position.Sample, error)
}

type Batcher interface {
	Accept(s position.Sample)
	MaybeFlush(ctx context.Context, nowMs int64) bool
}

type Options struct {
	Interval time.Duration
	Logger   *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Supervisor owns the tick loop. A failing tick is logged and the loop moves on.
type Supervisor struct {
	sampler Sampler
	batcher Batcher
	opts    Options

	ticks    atomic.Int64
	failures atomic.Int64
}

// TickError is a tick failure tagged with where it happened.
type TickError struct {
	Kind string // "sample" or "panic"
	Err  error
}

func (e *TickError) Error() string { return e.Kind + ": " + e.Err.Error() }
func (e *TickError) Unwrap() error { return e.Err }

func New(s Sampler, b Batcher, opts Options) *Supervisor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Supervisor{sampler: s, batcher: b, opts: opts}
}

// Run ticks until ctx is canceled. Buffered samples are not flushed on exit.
func (s *Supervisor) Run(ctx context.Context) error {
	s.opts.Logger.Info("supervisor: started", "interval", s.opts.Interval)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.opts.Logger.Info("supervisor: stopped", "ticks", s.ticks.Load(), "failures", s.failures.Load())
			return ctx.Err()
		case <-ticker.C:
			if ctx.Err() != nil {
				continue
			}
			// In-flight publishes run to completion; cancellation is observed
			// between ticks.
			if err := s.Tick(context.WithoutCancel(ctx)); err != nil {
				var kind string
				var te *TickError
				if errors.As(err, &te) {
					kind = te.Kind
				}
				s.opts.Logger.Error("supervisor: tick failed",
					"kind", kind,
					"error", err,
					"failures", s.failures.Load(),
				)
			}
		}
	}
}

// Tick runs one sample, accept and flush cycle.
func (s *Supervisor) Tick(ctx context.Context) (err error) {
	s.ticks.Add(1)
	defer func() {
		if r := recover(); r != nil {
			err = &TickError{Kind: "panic", Err: fmt.Errorf("%v", r)}
		}
		if err != nil {
			s.failures.Add(1)
		}
	}()

	sample, err := s.sampler.Sample(ctx)
	if err != nil {
		return &TickError{Kind: "sample", Err: err}
	}
	s.batcher.Accept(sample)
	s.batcher.MaybeFlush(ctx, s.opts.Now().UnixMilli())
	return nil
}

func (s *Supervisor) Ticks() int64    { return s.ticks.Load() }
func (s *Supervisor) Failures() int64 { return s.failures.Load() }
