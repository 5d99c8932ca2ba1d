package handlers

import (
	"errors"
	"net/http"
	"os"
	"strconv"

	"media-converter/internal/logging"
	"media-converter/internal/preview"
)

// GetPreview renders one frame of a media file as JPEG.
// GET /api/preview?path=...&at=seconds&width=px
func (h *Handlers) GetPreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	path := q.Get("path")
	if path == "" {
		writeJSONError(w, "path is required", http.StatusBadRequest)
		return
	}

	var at float64
	if v := q.Get("at"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			writeJSONError(w, "at must be a non-negative number of seconds", http.StatusBadRequest)
			return
		}
		at = f
	}

	width := 0
	if v := q.Get("width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSONError(w, "width must be a non-negative integer", http.StatusBadRequest)
			return
		}
		width = n
	}

	data, err := h.previews.Frame(r.Context(), path, at, width)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist):
			writeJSONError(w, "file not found", http.StatusNotFound)
		case errors.Is(err, preview.ErrToolUnavailable):
			writeJSONError(w, "ffmpeg unavailable", http.StatusServiceUnavailable)
		case errors.Is(err, preview.ErrNoFrame):
			writeJSONError(w, "no frame could be extracted", http.StatusUnprocessableEntity)
		default:
			logging.Warn("Preview failed for %s: %v", path, err)
			writeJSONError(w, "failed to generate preview", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logging.Debug("Failed to write preview: %v", err)
	}
}
