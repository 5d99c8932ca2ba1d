package handlers

import (
	"net/http"

	"media-converter/internal/media"
	"media-converter/internal/naming"
)

// FilenameRequest is the body of POST /api/filename.
type FilenameRequest struct {
	Info      *media.MediaInfo `json:"info"`
	Movie     *naming.Movie    `json:"movie"`
	Template  string           `json:"template"`
	Extension string           `json:"ext"`
}

// FilenameResponse carries the generated output name.
type FilenameResponse struct {
	Filename string `json:"filename"`
}

// GenerateFilename renders an output filename from probe data and movie
// metadata.
// POST /api/filename
func (h *Handlers) GenerateFilename(w http.ResponseWriter, r *http.Request) {
	var req FilenameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	name := naming.GenerateFilename(req.Info, req.Movie, req.Template, req.Extension)
	writeJSONResponse(w, FilenameResponse{Filename: name}, http.StatusOK)
}

// CleanTitleRequest is the body of POST /api/clean-title.
type CleanTitleRequest struct {
	Filename string `json:"filename"`
}

// CleanTitle extracts a searchable title and release hints from a
// filename.
// POST /api/clean-title
func (h *Handlers) CleanTitle(w http.ResponseWriter, r *http.Request) {
	var req CleanTitleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Filename == "" {
		writeJSONError(w, "filename is required", http.StatusBadRequest)
		return
	}

	writeJSONResponse(w, naming.ParseFilename(req.Filename), http.StatusOK)
}
