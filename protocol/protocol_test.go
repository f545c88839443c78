package protocol

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftbase/driftbase/record"
)

func TestDefaultProfile(t *testing.T) {
	t.Parallel()

	p := Default()
	require.NoError(t, p.Validate())
	assert.Equal(t, "drift", p.Name)
	assert.Equal(t, "/v1", p.PathPrefix)
	assert.Equal(t, 412, p.StatusConflict)
}

func TestLoadProfile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "legacy.yaml")
	content := `
name: legacy
path_prefix: /api/v2
match_header: X-If-Version
status_conflict: 409
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "legacy", p.Name)
	assert.Equal(t, "/api/v2", p.PathPrefix)
	assert.Equal(t, "X-If-Version", p.MatchHeader)
	assert.Equal(t, 409, p.StatusConflict)
	// Unset keys keep their defaults.
	assert.Equal(t, "ETag", p.VersionHeader)
	assert.Equal(t, "Next-Page", p.NextPageHeader)

	_, err = LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	p := Default()
	p.MatchHeader = ""
	assert.ErrorIs(t, p.Validate(), ErrInvalidProfile)

	p = Default()
	p.StatusConflict = 9999
	assert.ErrorIs(t, p.Validate(), ErrInvalidProfile)

	p = Default()
	p.PathPrefix = "v1"
	assert.ErrorIs(t, p.Validate(), ErrInvalidProfile)

	p = Default()
	p.PathPrefix = "" // no prefix is fine
	assert.NoError(t, p.Validate())
}

func TestBodyEnvelope(t *testing.T) {
	t.Parallel()

	p := Default()
	perms := record.Permissions{"read": {"system.Everyone"}}

	body, err := p.EncodeBody(map[string]interface{}{"title": "hello"}, perms)
	require.NoError(t, err)

	data, decodedPerms, err := p.DecodeBody(body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"hello"}`, string(data))
	assert.Equal(t, perms, decodedPerms)

	// Without permissions the key is absent entirely.
	body, err = p.EncodeBody(map[string]interface{}{"title": "hello"}, nil)
	require.NoError(t, err)
	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &envelope))
	_, hasPerms := envelope[p.PermissionsKey]
	assert.False(t, hasPerms)
}

func TestDecodeRecord(t *testing.T) {
	t.Parallel()

	p := Default()
	body := []byte(`{
		"data": {"id": "a1", "title": "hello", "last_modified": 1700000000001},
		"permissions": {"write": ["account:alice"]}
	}`)

	rec, err := p.DecodeRecord(body, `"1700000000001"`)
	require.NoError(t, err)
	assert.Equal(t, "a1", rec.ID)
	assert.Equal(t, "hello", rec.Data["title"])
	assert.Equal(t, `"1700000000001"`, rec.Token)
	assert.True(t, rec.Permissions.Has("write", "account:alice"))

	_, err = p.DecodeRecord([]byte(`not json`), "")
	assert.Error(t, err)
}

func TestDecodeList(t *testing.T) {
	t.Parallel()

	p := Default()
	body := []byte(`{"data": [{"id": "a1", "n": 1}, {"id": "a2", "n": 2}]}`)

	records, err := p.DecodeList(body)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a1", records[0].ID)
	assert.Equal(t, float64(2), records[1].Data["n"])
	assert.Empty(t, records[0].Token)

	empty, err := p.DecodeList([]byte(`{"data": []}`))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestParseErrorBody(t *testing.T) {
	t.Parallel()

	parsed := ParseErrorBody([]byte(`{
		"code": 412, "errno": 114, "error": "Precondition Failed",
		"message": "Resource was modified meanwhile",
		"details": {"existing": {"id": "a1", "title": "other"}}
	}`))
	require.NotNil(t, parsed)
	assert.Equal(t, 412, parsed.Code)
	assert.Equal(t, "Precondition Failed", parsed.Reason)
	assert.NotEmpty(t, parsed.Details.Existing)

	assert.Nil(t, ParseErrorBody(nil))
	assert.Nil(t, ParseErrorBody([]byte(`<html>no json</html>`)))
	assert.Nil(t, ParseErrorBody([]byte(`{}`)))
}

func TestCheckCompatibility(t *testing.T) {
	t.Parallel()

	p := Default()
	assert.NoError(t, p.CheckCompatibility(&ServerInfo{ProtocolVersion: "1.4"}))
	assert.ErrorIs(t, p.CheckCompatibility(&ServerInfo{ProtocolVersion: "2.1"}), ErrIncompatible)
	assert.ErrorIs(t, p.CheckCompatibility(&ServerInfo{ProtocolVersion: "borked"}), ErrIncompatible)
	assert.ErrorIs(t, p.CheckCompatibility(&ServerInfo{}), ErrIncompatible)

	unconstrained := Default()
	unconstrained.ProtocolConstraint = ""
	assert.NoError(t, unconstrained.CheckCompatibility(&ServerInfo{}))
}

func TestBatchEnvelope(t *testing.T) {
	t.Parallel()

	req := BatchRequest{
		Defaults: &BatchDefaults{Headers: map[string]string{"If-None-Match": "*"}},
		Requests: []BatchItem{
			{Method: "PUT", Path: "/buckets/b/collections/c/records/r", Body: json.RawMessage(`{"data":{}}`)},
		},
	}
	raw, err := json.Marshal(req)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"requests"`)
	assert.Contains(t, string(raw), `"defaults"`)

	var resp BatchResponse
	require.NoError(t, json.Unmarshal([]byte(`{"responses":[{"status":201,"path":"/x","body":{"data":{"id":"r"}}}]}`), &resp))
	require.Len(t, resp.Responses, 1)
	assert.Equal(t, 201, resp.Responses[0].Status)
}
