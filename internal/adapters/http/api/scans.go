package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	service "github.com/okian/lineup/internal/app"
)

const maxScanRequestBytes = 1 << 12

// ScansHandler handles scan submission and tracking.
type ScansHandler struct {
	deps ScanDependencies
}

// NewScansHandler creates a new scans handler.
func NewScansHandler(deps ScanDependencies) *ScansHandler {
	return &ScansHandler{deps: deps}
}

// scanRequest mirrors the OpenAPI schema for POST /scans.
type scanRequest struct {
	Prefix string `json:"prefix"`
}

type scanResponse struct {
	Scan service.Job `json:"scan"`
}

type processResponse struct {
	Message string       `json:"message,omitempty"`
	Error   string       `json:"error,omitempty"`
	Scan    *service.Job `json:"scan,omitempty"`
}

// decodeScanRequest reads an optional JSON body. An empty body is valid.
func decodeScanRequest(r *http.Request) (scanRequest, error) {
	var req scanRequest
	if r.Body == nil {
		return req, nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxScanRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return req, err
	}
	req.Prefix = strings.TrimSpace(req.Prefix)
	return req, nil
}

// HandleSubmit handles POST /scans requests.
func (h *ScansHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_scan"
	req, err := decodeScanRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	job, err := h.deps.SubmitScan(r.Context(), req.Prefix)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	w.Header().Set("Location", "/scans/"+job.ID)
	writeJSON(w, http.StatusAccepted, scanResponse{Scan: job})
}

// HandleList handles GET /scans requests.
func (h *ScansHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Jobs(r.Context()))
}

// HandleGet handles GET /scans/{id} requests.
func (h *ScansHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	job, err := h.deps.Job(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "api.get_scan", err)
		return
	}
	writeJSON(w, http.StatusOK, scanResponse{Scan: job})
}

// HandleCancel handles DELETE /scans/{id} requests.
func (h *ScansHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	job, err := h.deps.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "api.cancel_scan", err)
		return
	}
	writeJSON(w, http.StatusAccepted, scanResponse{Scan: job})
}

// HandleProcess handles POST /process-video requests. The request blocks
// until the scan finishes; dropping the connection cancels the scan.
func (h *ScansHandler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	const op = "api.process_video"
	req, err := decodeScanRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, processResponse{Error: wrapKind(op, ErrBadRequest, err).Error()})
		return
	}
	job, err := h.deps.Process(r.Context(), req.Prefix)
	switch {
	case errors.Is(err, service.ErrQueueFull), errors.Is(err, service.ErrNotStarted):
		writeJSON(w, http.StatusServiceUnavailable, processResponse{Error: wrapKind(op, ErrBackpressure, err).Error()})
		return
	case err != nil:
		// The client is gone; nothing useful can be written.
		return
	}

	switch job.Status {
	case service.StatusSucceeded, service.StatusPartial:
		writeJSON(w, http.StatusOK, processResponse{Message: "Video processing completed", Scan: &job})
	default:
		writeJSON(w, http.StatusInternalServerError, processResponse{Error: job.Error, Scan: &job})
	}
}

func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrQueueFull), errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "backpressure", wrapKind(op, ErrBackpressure, err))
	case errors.Is(err, service.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrJobFinished):
		writeError(w, http.StatusConflict, "finished", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
