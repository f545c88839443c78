package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/driftbase/driftbase/record"
)

// EncodeBody wraps field data and optional permissions in the body envelope.
func (p Profile) EncodeBody(data interface{}, perms record.Permissions) ([]byte, error) {
	envelope := map[string]interface{}{}
	if data != nil {
		envelope[p.DataKey] = data
	}
	if perms != nil {
		envelope[p.PermissionsKey] = perms
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to encode body envelope: %w", err)
	}
	return body, nil
}

// DecodeBody splits a body envelope into its raw data payload and the
// permissions, if present.
func (p Profile) DecodeBody(body []byte) (data json.RawMessage, perms record.Permissions, err error) {
	envelope := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, nil, fmt.Errorf("failed to decode body envelope: %w", err)
	}

	data = envelope[p.DataKey]
	if rawPerms, ok := envelope[p.PermissionsKey]; ok {
		if err := json.Unmarshal(rawPerms, &perms); err != nil {
			return nil, nil, fmt.Errorf("failed to decode permissions: %w", err)
		}
	}
	return data, perms, nil
}

// DecodeRecord parses a singular response body into a record and attaches
// the given version token.
func (p Profile) DecodeRecord(body []byte, token string) (*record.Record, error) {
	rawData, perms, err := p.DecodeBody(body)
	if err != nil {
		return nil, err
	}

	rec := record.New(nil)
	rec.Permissions = perms
	rec.Token = token
	if len(rawData) > 0 {
		if err := json.Unmarshal(rawData, &rec.Data); err != nil {
			return nil, fmt.Errorf("failed to decode record data: %w", err)
		}
	}
	if id, ok := rec.Data["id"].(string); ok {
		rec.ID = id
	}
	return rec, nil
}

// DecodeList parses a plural response body into records. Listed records
// carry no individual version tokens; the token of the listing as a whole
// travels in the version header.
func (p Profile) DecodeList(body []byte) ([]*record.Record, error) {
	envelope := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode list envelope: %w", err)
	}

	var items []map[string]interface{}
	if rawData, ok := envelope[p.DataKey]; ok {
		if err := json.Unmarshal(rawData, &items); err != nil {
			return nil, fmt.Errorf("failed to decode list data: %w", err)
		}
	}

	records := make([]*record.Record, 0, len(items))
	for _, item := range items {
		rec := record.New(item)
		if id, ok := item["id"].(string); ok {
			rec.ID = id
		}
		records = append(records, rec)
	}
	return records, nil
}

// ErrorBody is the structured error payload servers attach to failure
// responses.
type ErrorBody struct {
	Code    int          `json:"code"`
	Errno   int          `json:"errno"`
	Reason  string       `json:"error"`
	Message string       `json:"message"`
	Details ErrorDetails `json:"details,omitempty"`
}

// ErrorDetails carries error-specific extras, such as the existing resource
// state on version conflicts.
type ErrorDetails struct {
	ID       string          `json:"id,omitempty"`
	Resource string          `json:"resource,omitempty"`
	Existing json.RawMessage `json:"existing,omitempty"`
}

// ParseErrorBody decodes a structured error payload. It returns nil if the
// body is empty or not a structured error.
func ParseErrorBody(body []byte) *ErrorBody {
	if len(body) == 0 {
		return nil
	}
	parsed := &ErrorBody{}
	if err := json.Unmarshal(body, parsed); err != nil {
		return nil
	}
	if parsed.Code == 0 && parsed.Reason == "" && parsed.Message == "" {
		return nil
	}
	return parsed
}
