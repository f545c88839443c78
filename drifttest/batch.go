package drifttest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/driftbase/driftbase/protocol"
)

// handleBatch unpacks a batch envelope and dispatches the sub-requests
// through the router one by one. Sub-requests bypass the outer wrapper, so
// they are neither counted nor failure-injected.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, s.profile, s.profile.StatusInvalid, "failed to read body")
		return
	}
	var env protocol.BatchRequest
	if err := json.Unmarshal(raw, &env); err != nil {
		writeError(w, s.profile, s.profile.StatusInvalid, "invalid batch envelope")
		return
	}
	if len(env.Requests) > s.batchMax {
		writeError(w, s.profile, s.profile.StatusInvalid,
			fmt.Sprintf("batch exceeds the limit of %d operations", s.batchMax))
		return
	}

	responses := make([]protocol.BatchItemResponse, 0, len(env.Requests))
	for _, item := range env.Requests {
		resp, err := s.dispatch(r, &env, item)
		if err != nil {
			writeError(w, s.profile, s.profile.StatusInvalid, err.Error())
			return
		}
		responses = append(responses, *resp)
	}

	body, err := json.Marshal(&protocol.BatchResponse{Responses: responses})
	if err != nil {
		writeError(w, s.profile, http.StatusInternalServerError, "failed to encode batch response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func (s *Server) dispatch(outer *http.Request, env *protocol.BatchRequest, item protocol.BatchItem) (*protocol.BatchItemResponse, error) {
	method := item.Method
	if method == "" && env.Defaults != nil {
		method = env.Defaults.Method
	}
	if method == "" {
		method = http.MethodGet
	}
	if !strings.HasPrefix(item.Path, "/") {
		return nil, fmt.Errorf("invalid sub-request path %q", item.Path)
	}

	var body io.Reader
	if len(item.Body) > 0 {
		body = bytes.NewReader(item.Body)
	}
	req := httptest.NewRequest(method, s.profile.PathPrefix+item.Path, body)
	if env.Defaults != nil {
		for name, value := range env.Defaults.Headers {
			req.Header.Set(name, value)
		}
	}
	for name, value := range item.Headers {
		req.Header.Set(name, value)
	}
	if auth := outer.Header.Get("Authorization"); auth != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", auth)
	}

	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	headers := make(map[string]string, len(rr.Header()))
	for name := range rr.Header() {
		headers[name] = rr.Header().Get(name)
	}
	return &protocol.BatchItemResponse{
		Status:  rr.Code,
		Path:    item.Path,
		Headers: headers,
		Body:    rr.Body.Bytes(),
	}, nil
}
