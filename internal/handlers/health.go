package handlers

import (
	"net/http"
	"runtime"
	"time"

	"media-converter/internal/capability"
	"media-converter/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	Tools      capability.ToolStatus `json:"tools"`
	ActiveJobs int                   `json:"activeJobs"`
	Listeners  int                   `json:"listeners"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// ready reports whether both external tools answered at startup.
func (h *Handlers) ready() bool {
	return h.tools.FFmpeg && h.tools.FFprobe
}

// HealthCheck returns the health status of the service. A missing ffmpeg
// or ffprobe reports degraded with 503.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	response := HealthResponse{
		Status:       statusHealthy,
		Ready:        h.ready(),
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Tools:        h.tools,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}
	if h.converter != nil {
		response.ActiveJobs = len(h.converter.Active())
	}
	if h.hub != nil {
		response.Listeners = h.hub.Subscribers()
	}

	code := http.StatusOK
	if !response.Ready {
		response.Status = statusDegraded
		code = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, response, code)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// ReadinessCheck returns 200 only when ffmpeg and ffprobe are usable
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.ready() {
		writeJSONStatus(w, "ready", http.StatusOK)
		return
	}
	writeJSONStatus(w, "not_ready", http.StatusServiceUnavailable)
}
