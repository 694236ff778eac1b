package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-index/internal/constants"
	"github.com/kozaktomas/face-index/internal/database"
	"github.com/kozaktomas/face-index/internal/facematch"
	"github.com/kozaktomas/face-index/internal/pipeline"
)

// IndexHandler serves the face index endpoints.
type IndexHandler struct {
	pipeline *pipeline.Pipeline
	asciiIDs bool
	logger   *zap.Logger
}

// NewIndexHandler creates a new index handler. asciiIDs strips diacritics
// from ids derived from upload file names.
func NewIndexHandler(p *pipeline.Pipeline, asciiIDs bool, logger *zap.Logger) *IndexHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexHandler{pipeline: p, asciiIDs: asciiIDs, logger: logger}
}

type messageResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

type replaceResponse struct {
	Message        string                   `json:"message"`
	UpdateResponse *database.UpdateResponse `json:"update_response"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
	Entries *int   `json:"entries,omitempty"`
}

func (h *IndexHandler) fail(w http.ResponseWriter, op string, err error) {
	status, msg := errorResponse(err)
	h.logger.Error(op+" failed", zap.Int("status", status), zap.Error(err))
	respondError(w, status, msg)
}

// AddImage indexes the uploaded face under the id derived from its file name.
func (h *IndexHandler) AddImage(w http.ResponseWriter, r *http.Request) {
	data, filename, err := readUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, msgFileRequired)
		return
	}

	id := facematch.IDFromFilename(filename, h.asciiIDs)
	if id == "" {
		respondError(w, http.StatusBadRequest, msgIDRequired)
		return
	}

	res, err := h.pipeline.Index(r.Context(), id, data)
	if err != nil {
		h.fail(w, "add image", err)
		return
	}
	h.logger.Info("image indexed", zap.String("id", sanitizeForLog(id)), zap.Stringer("result", res))
	respondJSON(w, http.StatusOK, messageResponse{Message: "Image added successfully", ID: id})
}

// DeleteImage removes the vector named by the user_id query parameter.
func (h *IndexHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get(constants.UserIDParam)
	if id == "" {
		respondError(w, http.StatusBadRequest, msgIDRequired)
		return
	}

	if _, err := h.pipeline.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete image", err)
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{Message: "Vector deleted successfully", ID: id})
}

// ValidateImage scores the uploaded face against the index.
func (h *IndexHandler) ValidateImage(w http.ResponseWriter, r *http.Request) {
	data, _, err := readUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, msgFileRequired)
		return
	}

	results, err := h.pipeline.Validate(r.Context(), data)
	if err != nil {
		h.fail(w, "validate image", err)
		return
	}
	if results == nil {
		results = []facematch.MatchResult{}
	}
	respondJSON(w, http.StatusOK, results)
}

// ReplaceImage overwrites the vector of user_id with the uploaded face.
func (h *IndexHandler) ReplaceImage(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get(constants.UserIDParam)
	if id == "" {
		respondError(w, http.StatusBadRequest, msgIDRequired)
		return
	}
	data, _, err := readUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, msgFileRequired)
		return
	}

	resp, err := h.pipeline.Replace(r.Context(), id, data)
	if err != nil {
		h.fail(w, "replace image", err)
		return
	}
	respondJSON(w, http.StatusOK, replaceResponse{Message: "Vector updated successfully", UpdateResponse: resp})
}

// Health reports the backend and, when it can count, the number of entries.
func (h *IndexHandler) Health(w http.ResponseWriter, r *http.Request) {
	gw := h.pipeline.Gateway()
	resp := healthResponse{Status: "ok", Backend: gw.Backend()}

	n, err := gw.Count(r.Context())
	switch {
	case err == nil:
		resp.Entries = &n
	case errors.Is(err, errors.ErrUnsupported), errors.Is(err, context.Canceled):
	default:
		h.logger.Warn("health count failed", zap.Error(err))
	}
	respondJSON(w, http.StatusOK, resp)
}
