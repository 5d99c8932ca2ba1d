package handlers

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes attaches every API endpoint to r.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	// Health and version
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/capabilities", h.GetCapabilities).Methods("GET")
	api.HandleFunc("/formats", h.GetFormats).Methods("GET")
	api.HandleFunc("/probe", h.Probe).Methods("POST")

	// Conversions
	api.HandleFunc("/conversions", h.StartConversion).Methods("POST")
	api.HandleFunc("/conversions", h.ListActive).Methods("GET")
	api.HandleFunc("/conversions/{id}", h.GetConversion).Methods("GET")
	api.HandleFunc("/conversions/{id}", h.CancelConversion).Methods("DELETE")
	api.HandleFunc("/conversions/{id}/events", h.ConversionEvents).Methods("GET")
	api.HandleFunc("/events", h.AllEvents).Methods("GET")
	api.HandleFunc("/history", h.GetHistory).Methods("GET")

	// Naming and previews
	api.HandleFunc("/filename", h.GenerateFilename).Methods("POST")
	api.HandleFunc("/clean-title", h.CleanTitle).Methods("POST")
	api.HandleFunc("/preview", h.GetPreview).Methods("GET")
}
