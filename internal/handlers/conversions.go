package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"media-converter/internal/database"
	"media-converter/internal/logging"
	"media-converter/internal/media"
	"media-converter/internal/transcoder"

	"github.com/gorilla/mux"
)

// StartResponse is returned when a conversion is queued.
type StartResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Events string `json:"events"`
}

// StartConversion queues a conversion and returns its id. The result is
// delivered over the job's event stream and recorded in history.
// POST /api/conversions
func (h *Handlers) StartConversion(w http.ResponseWriter, r *http.Request) {
	var opts media.ConversionOptions
	if err := decodeJSON(r, &opts); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := h.converter.Start(opts)
	if err != nil {
		switch {
		case errors.Is(err, transcoder.ErrInvalidOptions):
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, transcoder.ErrJobExists):
			writeJSONError(w, err.Error(), http.StatusConflict)
		case errors.Is(err, transcoder.ErrShutdown):
			writeJSONError(w, err.Error(), http.StatusServiceUnavailable)
		default:
			logging.Error("Failed to start conversion: %v", err)
			writeJSONError(w, "failed to start conversion", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Location", "/api/conversions/"+id)
	writeJSONResponse(w, StartResponse{
		ID:     id,
		Status: string(transcoder.JobQueued),
		Events: "/api/conversions/" + id + "/events",
	}, http.StatusAccepted)
}

// ListActive returns queued and running jobs.
// GET /api/conversions
func (h *Handlers) ListActive(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, h.converter.Active(), http.StatusOK)
}

// GetConversion returns the live state of an active job, or its history
// row once it has finished.
// GET /api/conversions/{id}
func (h *Handlers) GetConversion(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if job, ok := h.findActive(id); ok {
		writeJSONResponse(w, job, http.StatusOK)
		return
	}

	if h.history == nil {
		writeJSONError(w, "conversion not found", http.StatusNotFound)
		return
	}
	rec, err := h.history.GetConversion(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeJSONError(w, "conversion not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("Failed to load conversion %s: %v", id, err)
		writeJSONError(w, "failed to load conversion", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, rec, http.StatusOK)
}

// CancelConversion stops a queued or running job.
// DELETE /api/conversions/{id}
func (h *Handlers) CancelConversion(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.converter.Cancel(id); err != nil {
		if errors.Is(err, transcoder.ErrNotFound) {
			writeJSONError(w, "conversion not found", http.StatusNotFound)
			return
		}
		logging.Error("Failed to cancel conversion %s: %v", id, err)
		writeJSONError(w, "failed to cancel conversion", http.StatusInternalServerError)
		return
	}

	logging.Info("Conversion %s cancelled by request", id)
	writeJSONStatus(w, "cancelling", http.StatusAccepted)
}

// GetHistory lists recent conversions, newest first.
// GET /api/history?limit=N
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSONResponse(w, []database.ConversionRecord{}, http.StatusOK)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSONError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := h.history.ListConversions(r.Context(), limit)
	if err != nil {
		logging.Error("Failed to list conversion history: %v", err)
		writeJSONError(w, "failed to list history", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, records, http.StatusOK)
}

func (h *Handlers) findActive(id string) (transcoder.ActiveJob, bool) {
	for _, job := range h.converter.Active() {
		if job.ID == id {
			return job, true
		}
	}
	return transcoder.ActiveJob{}, false
}
