package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
)

const (
	defaultFlushLimit = 20
	maxFlushLimit     = 500
)

type flushesHandler struct {
	journal FlushLister
}

func (h *flushesHandler) handleFlushes(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeError(w, http.StatusNotFound, "flush journal is disabled")
		return
	}

	limit := defaultFlushLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxFlushLimit {
			writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 500")
			return
		}
		limit = n
	}

	entries, err := h.journal.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("failed to read flush journal", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read flush journal")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func registerFlushes(mux *http.ServeMux, j FlushLister) {
	h := &flushesHandler{journal: j}
	mux.HandleFunc("GET /flushes", h.handleFlushes)
}
