package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bujo/internal/model"
)

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request, user *model.User) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		badRequest(w, "since query parameter is required")
		return
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || millis < 0 {
		badRequest(w, "since must be a unix epoch in milliseconds")
		return
	}

	set, err := s.sync.ChangesSince(r.Context(), user.ID, time.UnixMilli(millis))
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, user *model.User) {
	dump, err := s.sync.Export(r.Context(), user.ID)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dump)
}

type pushOperation struct {
	Type     string          `json:"type"`
	Endpoint string          `json:"endpoint"`
	Method   string          `json:"method"`
	Body     json.RawMessage `json:"body"`
}

type pushResult struct {
	Type    string          `json:"type"`
	Status  int             `json:"status"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// handlePush replays a batch of queued client operations against the
// server's own routes, in order, and reports per-operation outcomes. A
// failed operation does not stop the batch.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request, user *model.User) {
	var body struct {
		Operations []pushOperation `json:"operations"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Operations == nil {
		badRequest(w, "Operations array is required")
		return
	}

	results := make([]pushResult, 0, len(body.Operations))
	for _, op := range body.Operations {
		results = append(results, s.replay(r, op))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

// replay dispatches one queued operation through the mux without going
// back out on the network. Only relative API paths are accepted.
func (s *Server) replay(outer *http.Request, op pushOperation) pushResult {
	result := pushResult{Type: op.Type}

	if !strings.HasPrefix(op.Endpoint, "/api/") {
		result.Status = http.StatusBadRequest
		result.Error = "endpoint must be a relative /api path"
		return result
	}
	method := strings.ToUpper(op.Method)
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete:
	default:
		result.Status = http.StatusBadRequest
		result.Error = "unsupported method " + op.Method
		return result
	}

	var reqBody *bytes.Reader
	if len(op.Body) > 0 {
		reqBody = bytes.NewReader(op.Body)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(outer.Context(), method, op.Endpoint, reqBody)
	if err != nil {
		result.Status = http.StatusBadRequest
		result.Error = err.Error()
		return result
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", outer.Header.Get("Authorization"))

	rec := &replayRecorder{status: http.StatusOK, header: http.Header{}}
	s.mux.ServeHTTP(rec, req)

	result.Status = rec.status
	result.Success = rec.status >= 200 && rec.status < 300
	if result.Success {
		result.Data = json.RawMessage(rec.body.Bytes())
	} else {
		result.Error = errorMessage(rec.body.Bytes())
	}
	return result
}

// replayRecorder captures an in-process handler response.
type replayRecorder struct {
	status int
	header http.Header
	body   bytes.Buffer
}

func (r *replayRecorder) Header() http.Header { return r.header }

func (r *replayRecorder) WriteHeader(status int) { r.status = status }

func (r *replayRecorder) Write(b []byte) (int, error) { return r.body.Write(b) }

// errorMessage extracts the error string from a JSON error payload,
// falling back to the raw body.
func errorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(body))
}
