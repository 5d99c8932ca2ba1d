package handlers

import (
	"errors"
	"net/http"
	"os"

	"media-converter/internal/logging"
	"media-converter/internal/probe"
)

// ProbeRequest is the body of POST /api/probe.
type ProbeRequest struct {
	Path string `json:"path"`
}

// Probe returns normalized metadata for a media file.
// POST /api/probe
func (h *Handlers) Probe(w http.ResponseWriter, r *http.Request) {
	var req ProbeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		writeJSONError(w, "path is required", http.StatusBadRequest)
		return
	}

	fi, err := os.Stat(req.Path)
	if err != nil {
		writeJSONError(w, "file not found", http.StatusNotFound)
		return
	}
	if fi.IsDir() {
		writeJSONError(w, "path is a directory", http.StatusBadRequest)
		return
	}

	info, err := h.prober.Probe(r.Context(), req.Path)
	if err != nil {
		logging.Warn("Probe failed for %s: %v", req.Path, err)
		writeJSONError(w, err.Error(), probeErrorStatus(err))
		return
	}

	writeJSONResponse(w, info, http.StatusOK)
}

func probeErrorStatus(err error) int {
	switch {
	case errors.Is(err, probe.ErrToolUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, probe.ErrExecutionFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, probe.ErrMalformedOutput):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
