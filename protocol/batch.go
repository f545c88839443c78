package protocol

import "encoding/json"

// BatchRequest is the envelope POSTed to the batch endpoint. Sub-requests
// execute in order; defaults apply to every sub-request that does not
// override them.
type BatchRequest struct {
	Defaults *BatchDefaults `json:"defaults,omitempty"`
	Requests []BatchItem    `json:"requests"`
}

// BatchDefaults holds shared sub-request settings.
type BatchDefaults struct {
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// BatchItem is a single sub-request within a batch envelope. Paths are
// resource paths without the server path prefix.
type BatchItem struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// BatchResponse is the envelope returned by the batch endpoint, carrying one
// response per sub-request in request order.
type BatchResponse struct {
	Responses []BatchItemResponse `json:"responses"`
}

// BatchItemResponse is the outcome of a single sub-request.
type BatchItemResponse struct {
	Status  int               `json:"status"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}
