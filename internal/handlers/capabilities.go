package handlers

import (
	"net/http"

	"media-converter/internal/logging"
)

// GetCapabilities returns the hardware encoder families ffmpeg supports.
// GET /api/capabilities
func (h *Handlers) GetCapabilities(w http.ResponseWriter, r *http.Request) {
	caps := h.caps.DetectOnce(r.Context())
	w.Header().Set("Cache-Control", "no-cache")
	writeJSONResponse(w, caps, http.StatusOK)
}

// GetFormats lists the container formats ffmpeg can write. Pass
// ?all=true to include demux-only formats.
// GET /api/formats
func (h *Handlers) GetFormats(w http.ResponseWriter, r *http.Request) {
	formats, err := h.caps.Formats(r.Context())
	if err != nil {
		logging.Warn("Failed to list ffmpeg formats: %v", err)
		writeJSONError(w, "ffmpeg format listing unavailable", http.StatusServiceUnavailable)
		return
	}

	if r.URL.Query().Get("all") != "true" {
		muxers := formats[:0:0]
		for _, f := range formats {
			if f.Mux {
				muxers = append(muxers, f)
			}
		}
		formats = muxers
	}

	writeJSONResponse(w, formats, http.StatusOK)
}
