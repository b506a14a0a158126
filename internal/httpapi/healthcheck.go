package httpapi

import (
	"net/http"
)

// maxUnackedRelays matches the broker's default in-flight window (mosquitto
// max_inflight_messages). At that point input delivery to this client stalls.
const maxUnackedRelays = 20

type healthResponse struct {
	Status        string `json:"status"`
	MQTTConnected bool   `json:"mqtt_connected"`
	Relayed       int64  `json:"relayed"`
	RelayUnacked  int64  `json:"relay_unacked"`
	Buffered      int    `json:"buffered"`
	PacketsSent   int64  `json:"packets_sent"`
	PacketsFailed int64  `json:"packets_failed"`
	LastFlushMs   int64  `json:"last_flush_ms"`
	Ticks         int64  `json:"ticks"`
	TickFailures  int64  `json:"tick_failures"`
}

type healthchecker struct {
	deps Deps
}

func (h *healthchecker) handleHealthz(w http.ResponseWriter, r *http.Request) {
	stats := h.deps.Batch.Stats()
	resp := healthResponse{
		Status:        "ok",
		MQTTConnected: h.deps.MQTT.IsConnected(),
		Relayed:       h.deps.Relay.Count(),
		RelayUnacked:  h.deps.Relay.Unacked(),
		Buffered:      stats.Buffered,
		PacketsSent:   stats.PacketsSent,
		PacketsFailed: stats.PacketsAttempted - stats.PacketsSent,
		LastFlushMs:   stats.LastFlushMs,
		Ticks:         h.deps.Supervisor.Ticks(),
		TickFailures:  h.deps.Supervisor.Failures(),
	}

	status := http.StatusOK
	if !resp.MQTTConnected || resp.RelayUnacked >= maxUnackedRelays {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func registerHealthcheck(mux *http.ServeMux, d Deps) {
	h := &healthchecker{deps: d}
	mux.HandleFunc("GET /healthz", h.handleHealthz)
}
