// Package batch accumulates position samples and publishes them as one JSON
// array once the flush window has elapsed.
package batch

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"cloudpico-positioning/internal/message"
	"cloudpico-positioning/internal/position"
)

const DefaultWindow = 10 * time.Second

// FlushRecord describes one publish attempt.
type FlushRecord struct {
	Packet      int64
	MessageID   string
	Samples     int
	Bytes       int
	AttemptedAt time.Time
	Err         error
}

// FlushRecorder is notified after every publish attempt.
type FlushRecorder interface {
	RecordFlush(ctx context.Context, rec FlushRecord) error
}

type Options struct {
	Channel  string
	Window   time.Duration
	Recorder FlushRecorder
	Logger   *slog.Logger
	// NewMessageID defaults to uuid.NewString.
	NewMessageID func() string
}

// Stats is a point-in-time view of the batcher.
type Stats struct {
	Buffered         int
	PacketsAttempted int64
	PacketsSent      int64
	LastFlushMs      int64
}

// Batcher owns the unsent sample buffer and the flush clock.
// All mutation goes through mu; a flush holds it for the whole publish so
// concurrent flush triggers are serialized.
type Batcher struct {
	pub  message.Publisher
	opts Options

	mu          sync.Mutex
	buf         []position.Sample
	lastFlushMs int64

	buffered  atomic.Int64
	attempted atomic.Int64
	sent      atomic.Int64
	lastFlush atomic.Int64
}

func New(pub message.Publisher, opts Options) *Batcher {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NewMessageID == nil {
		opts.NewMessageID = uuid.NewString
	}
	return &Batcher{pub: pub, opts: opts}
}

// Accept appends s to the buffer.
func (b *Batcher) Accept(s position.Sample) {
	b.mu.Lock()
	b.buf = append(b.buf, s)
	b.buffered.Store(int64(len(b.buf)))
	b.mu.Unlock()
}

// MaybeFlush publishes the whole buffer when nowMs is at least one window past
// the last successful flush. It reports whether a flush succeeded. Publish
// failures are logged and leave the buffer untouched for the next attempt.
func (b *Batcher) MaybeFlush(ctx context.Context, nowMs int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.buf) == 0 || nowMs-b.lastFlushMs < b.opts.Window.Milliseconds() {
		return false
	}

	// A sample with no JSON form would fail every later flush too.
	if dropped := b.dropInvalid(); dropped > 0 {
		b.opts.Logger.Error("batch: dropped positions that cannot be encoded", "channel", b.opts.Channel, "dropped", dropped)
		if len(b.buf) == 0 {
			return false
		}
	}

	packet := b.attempted.Add(1) - 1
	count := len(b.buf)
	logger := b.opts.Logger.With("channel", b.opts.Channel, "packet", packet, "count", count)

	payload, err := json.Marshal(b.buf)
	if err != nil {
		logger.Error("batch: encode positions failed", "error", err)
		b.record(ctx, FlushRecord{Packet: packet, Samples: count, AttemptedAt: time.UnixMilli(nowMs), Err: err})
		return false
	}

	msg := message.Message{
		Payload:         payload,
		ContentType:     message.ContentTypeJSON,
		ContentEncoding: message.EncodingUTF8,
		MessageID:       b.opts.NewMessageID(),
	}

	logger.Info("batch: sending positions", "message_id", msg.MessageID, "bytes", len(payload))
	err = b.pub.Publish(ctx, b.opts.Channel, msg)
	b.record(ctx, FlushRecord{
		Packet:      packet,
		MessageID:   msg.MessageID,
		Samples:     count,
		Bytes:       len(payload),
		AttemptedAt: time.UnixMilli(nowMs),
		Err:         err,
	})
	if err != nil {
		logger.Error("batch: publish failed, positions retained", "message_id", msg.MessageID, "error", err)
		return false
	}

	b.buf = b.buf[:0]
	b.lastFlushMs = nowMs
	b.buffered.Store(0)
	b.sent.Add(1)
	b.lastFlush.Store(nowMs)
	return true
}

// dropInvalid removes samples that fail Validate, keeping order. Callers hold mu.
func (b *Batcher) dropInvalid() int {
	kept := b.buf[:0]
	for _, s := range b.buf {
		if err := s.Validate(); err != nil {
			continue
		}
		kept = append(kept, s)
	}
	dropped := len(b.buf) - len(kept)
	clear(b.buf[len(kept):])
	b.buf = kept
	b.buffered.Store(int64(len(b.buf)))
	return dropped
}

func (b *Batcher) record(ctx context.Context, rec FlushRecord) {
	if b.opts.Recorder == nil {
		return
	}
	if err := b.opts.Recorder.RecordFlush(ctx, rec); err != nil {
		b.opts.Logger.Warn("batch: record flush failed", "packet", rec.Packet, "error", err)
	}
}

// Snapshot returns a copy of the buffered samples in insertion order.
func (b *Batcher) Snapshot() []position.Sample {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]position.Sample(nil), b.buf...)
}

// LastFlushMs is the flush clock value, zero until the first successful flush.
func (b *Batcher) LastFlushMs() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastFlushMs
}

// Stats never blocks on an in-flight publish.
func (b *Batcher) Stats() Stats {
	return Stats{
		Buffered:         int(b.buffered.Load()),
		PacketsAttempted: b.attempted.Load(),
		PacketsSent:      b.sent.Load(),
		LastFlushMs:      b.lastFlush.Load(),
	}
}
