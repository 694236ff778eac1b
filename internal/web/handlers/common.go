package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-index/internal/constants"
	"github.com/kozaktomas/face-index/internal/database"
	"github.com/kozaktomas/face-index/internal/facematch"
)

const (
	msgIDRequired      = "ID is required"
	msgFileRequired    = "file is required"
	msgNoFace          = "No face detected in the image."
	msgNoEmbedding     = "Embedding could not be created."
	msgIndexFailure    = "Index operation failed."
	msgInternalFailure = "Internal error."
)

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// errorResponse maps a pipeline failure to a status and a short public message.
// Details stay in the log.
func errorResponse(err error) (int, string) {
	var extractionErr *facematch.ExtractionError
	var indexErr *database.IndexError
	switch {
	case errors.Is(err, database.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, facematch.ErrNoFace):
		return http.StatusInternalServerError, msgNoFace
	case errors.As(err, &extractionErr):
		return http.StatusInternalServerError, msgNoEmbedding
	case errors.As(err, &indexErr):
		return http.StatusInternalServerError, msgIndexFailure
	}
	return http.StatusInternalServerError, msgInternalFailure
}

// readUpload returns the uploaded image bytes and the client-side file name.
func readUpload(r *http.Request) ([]byte, string, error) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		return nil, "", err
	}
	file, header, err := r.FormFile(constants.UploadField)
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}
	return data, header.Filename, nil
}
