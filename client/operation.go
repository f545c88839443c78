package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gofrs/uuid"

	"github.com/driftbase/driftbase/protocol"
	"github.com/driftbase/driftbase/record"
	"github.com/driftbase/driftbase/ref"
)

type opKind uint8

const (
	opCreate opKind = iota + 1
	opRead
	opUpdate
	opReplace
	opDelete
)

func (k opKind) String() string {
	switch k {
	case opCreate:
		return "create"
	case opRead:
		return "read"
	case opUpdate:
		return "update"
	case opReplace:
		return "replace"
	case opDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Operation describes a single resource operation. Build operations with the
// constructors; invalid input is carried inside the operation and surfaces
// before anything is sent.
type Operation struct {
	kind     opKind
	ref      ref.Ref
	rec      *record.Record
	patch    map[string]interface{}
	expected string
	err      error
}

// Ref returns the resource the operation targets. For creates this includes
// the assigned record ID.
func (op Operation) Ref() ref.Ref {
	return op.ref
}

// Kind returns the operation kind as a string.
func (op Operation) Kind() string {
	return op.kind.String()
}

func failedOp(kind opKind, r ref.Ref, err error) Operation {
	return Operation{kind: kind, ref: r, err: err}
}

// CreateOp builds a create of rec within the given container. If rec carries
// no ID, one is assigned: the "id" data field if present, else a random UUID.
// The operation is sent with a must-not-exist condition.
func CreateOp(container ref.Ref, rec *record.Record) Operation {
	if rec == nil {
		return failedOp(opCreate, container, fmt.Errorf("%w: create requires a record", ref.ErrInvalid))
	}

	id := rec.ID
	if id == "" {
		if dataID, ok := rec.Data["id"].(string); ok {
			id = dataID
		} else {
			id = uuid.Must(uuid.NewV4()).String()
		}
	}

	target, err := container.Child(id)
	if err != nil {
		return failedOp(opCreate, container, err)
	}
	return Operation{kind: opCreate, ref: target, rec: rec}
}

// ReadOp builds a read of the given resource.
func ReadOp(r ref.Ref) Operation {
	if err := checkTarget(r); err != nil {
		return failedOp(opRead, r, err)
	}
	return Operation{kind: opRead, ref: r}
}

// UpdateOp builds a partial update: the patch fields are merged into the
// resource's data, other fields are left as they are. An empty expected token
// falls back to the stored token for the resource, if any.
func UpdateOp(r ref.Ref, patch map[string]interface{}, expected string) Operation {
	if err := checkTarget(r); err != nil {
		return failedOp(opUpdate, r, err)
	}
	if patch == nil {
		patch = make(map[string]interface{})
	}
	return Operation{kind: opUpdate, ref: r, patch: patch, expected: expected}
}

// ReplaceOp builds a full replacement of the resource's data with rec. An
// empty expected token falls back to the stored token for the resource.
func ReplaceOp(r ref.Ref, rec *record.Record, expected string) Operation {
	if err := checkTarget(r); err != nil {
		return failedOp(opReplace, r, err)
	}
	if rec == nil {
		return failedOp(opReplace, r, fmt.Errorf("%w: replace requires a record", ref.ErrInvalid))
	}
	return Operation{kind: opReplace, ref: r, rec: rec, expected: expected}
}

// DeleteOp builds a delete of the given resource. An empty expected token
// falls back to the stored token for the resource.
func DeleteOp(r ref.Ref, expected string) Operation {
	if err := checkTarget(r); err != nil {
		return failedOp(opDelete, r, err)
	}
	return Operation{kind: opDelete, ref: r, expected: expected}
}

func checkTarget(r ref.Ref) error {
	if r.IsRoot() {
		return fmt.Errorf("%w: operation requires a resource, not the root scope", ref.ErrInvalid)
	}
	return r.Validate()
}

// wireOp is an operation resolved to its request parts. The path excludes the
// protocol path prefix so it can serve both direct requests and batch items.
type wireOp struct {
	method    string
	path      string
	query     url.Values
	headers   map[string]string
	body      []byte
	condition string
}

// buildOp resolves an operation against the token store. It has no other
// side effects and sends nothing.
func (c *Client) buildOp(op Operation) (*wireOp, error) {
	if op.err != nil {
		return nil, op.err
	}

	path, err := op.ref.Path()
	if err != nil {
		return nil, err
	}
	w := &wireOp{
		path:    path,
		headers: make(map[string]string),
	}

	switch op.kind {
	case opCreate:
		w.method = http.MethodPut
		w.condition = protocol.NoneMatchAny
		w.headers[c.profile.NoneMatchHeader] = protocol.NoneMatchAny
		w.body, err = c.profile.EncodeBody(op.rec.Data, op.rec.Permissions)
		if err != nil {
			return nil, err
		}

	case opRead:
		w.method = http.MethodGet

	case opUpdate:
		w.method = http.MethodPatch
		w.body, err = c.profile.EncodeBody(op.patch, nil)
		if err != nil {
			return nil, err
		}
		c.addCondition(w, op)

	case opReplace:
		w.method = http.MethodPut
		w.body, err = c.profile.EncodeBody(op.rec.Data, op.rec.Permissions)
		if err != nil {
			return nil, err
		}
		c.addCondition(w, op)

	case opDelete:
		w.method = http.MethodDelete
		c.addCondition(w, op)

	default:
		return nil, fmt.Errorf("unknown operation kind %d", op.kind)
	}

	return w, nil
}

// addCondition resolves the version condition for a write: an explicit
// expected token wins, else the stored token is used, else the write is sent
// unconditionally.
func (c *Client) addCondition(w *wireOp, op Operation) {
	token := op.expected
	if token == "" {
		token, _ = c.store.Get(op.ref)
	}
	if token != "" {
		w.condition = token
		w.headers[c.profile.MatchHeader] = token
	}
}

// classify turns a response into a record or an error. It is shared by direct
// requests and batch items and has no side effects.
func (c *Client) classify(op Operation, condition string, status int, header http.Header, body []byte) (*record.Record, error) {
	switch {
	case status >= 200 && status < 300:
		if op.kind == opDelete {
			return nil, nil
		}
		rec, err := c.profile.DecodeRecord(body, header.Get(c.profile.VersionHeader))
		if err != nil {
			return nil, fmt.Errorf("failed to decode response for %s: %w", op.ref, err)
		}
		if rec.ID == "" {
			rec.ID = op.ref.Record
		}
		return rec, nil

	case status == c.profile.StatusNotModified:
		// Only the revalidating cache read sends a condition this can
		// answer, and it handles the status before classification.
		return nil, &ServerError{Status: status, Message: "unexpected not-modified response"}

	case status == c.profile.StatusConflict:
		conflictsTotal.Inc()
		return nil, c.conflictError(op, condition, header, body)

	case status == c.profile.StatusMissing:
		return nil, &NotFoundError{Ref: op.ref}

	case status == c.profile.StatusInvalid:
		return nil, &ValidationError{Ref: op.ref, Message: errorReason(body)}

	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d on %s", ErrPermissionDenied, status, op.ref)

	default:
		return nil, &ServerError{Status: status, Message: errorReason(body)}
	}
}

func (c *Client) conflictError(op Operation, condition string, header http.Header, body []byte) *ConflictError {
	conflict := &ConflictError{
		Ref:      op.ref,
		Expected: condition,
		Current:  header.Get(c.profile.VersionHeader),
	}

	parsed := protocol.ParseErrorBody(body)
	if parsed == nil || len(parsed.Details.Existing) == 0 {
		return conflict
	}
	var data map[string]interface{}
	if err := json.Unmarshal(parsed.Details.Existing, &data); err != nil {
		return conflict
	}

	existing := record.New(data)
	if id, ok := data["id"].(string); ok {
		existing.ID = id
	} else {
		existing.ID = op.ref.Record
	}
	existing.Token = conflict.Current
	conflict.Existing = existing
	return conflict
}

func errorReason(body []byte) string {
	parsed := protocol.ParseErrorBody(body)
	if parsed == nil {
		return ""
	}
	if parsed.Message != "" {
		return parsed.Message
	}
	return parsed.Reason
}
