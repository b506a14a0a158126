package httpapi

import (
	"context"
	"net/http"
	"time"

	"cloudpico-positioning/internal/batch"
	"cloudpico-positioning/internal/journal"
)

type ConnectionChecker interface {
	IsConnected() bool
}

type RelayCounter interface {
	Count() int64
	Unacked() int64
}

type BatchStater interface {
	Stats() batch.Stats
}

type TickCounter interface {
	Ticks() int64
	Failures() int64
}

type FlushLister interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

// Deps are the runtime components the endpoints report on. Journal may be nil.
type Deps struct {
	MQTT       ConnectionChecker
	Relay      RelayCounter
	Batch      BatchStater
	Supervisor TickCounter
	Journal    FlushLister
}

func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, d)
	registerFlushes(mux, d.Journal)
	return mux
}

func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
