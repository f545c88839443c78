package client

import (
	"errors"
	"fmt"

	"github.com/driftbase/driftbase/protocol"
	"github.com/driftbase/driftbase/record"
	"github.com/driftbase/driftbase/ref"
	"github.com/driftbase/driftbase/transport"
)

// Errors.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrConflict         = errors.New("version conflict")
	ErrValidation       = errors.New("request rejected by server")
	ErrPermissionDenied = errors.New("permission denied")
	ErrServer           = errors.New("server error")
	ErrClosed           = errors.New("client is closed")

	// Re-exported for a complete error taxonomy.
	ErrInvalidRef   = ref.ErrInvalid
	ErrTransport    = transport.ErrFailed
	ErrIncompatible = protocol.ErrIncompatible
)

// ConflictError reports a failed version condition. The stored token for the
// resource is left untouched; Current carries the server's present token so
// callers can inspect the winning state and retry deliberately.
type ConflictError struct {
	// Ref is the resource the condition failed on.
	Ref ref.Ref

	// Expected is the condition sent: a version token, or "*" for
	// must-not-exist on creates.
	Expected string

	// Current is the version token the server reported for its present
	// state, if it did.
	Current string

	// Existing is the server's present state, if it was reported.
	Existing *record.Record
}

func (e *ConflictError) Error() string {
	switch {
	case e.Expected == protocol.NoneMatchAny:
		return fmt.Sprintf("version conflict on %s: resource already exists with token %s", e.Ref, e.Current)
	case e.Current != "":
		return fmt.Sprintf("version conflict on %s: expected %s, current %s", e.Ref, e.Expected, e.Current)
	default:
		return fmt.Sprintf("version conflict on %s: expected %s", e.Ref, e.Expected)
	}
}

// Is matches ConflictError against ErrConflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// NotFoundError reports an operation on a missing resource.
type NotFoundError struct {
	Ref ref.Ref
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource not found: %s", e.Ref)
}

// Is matches NotFoundError against ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ValidationError reports a request the server rejected as malformed.
type ValidationError struct {
	Ref     ref.Ref
	Message string
}

func (e *ValidationError) Error() string {
	msg := "request rejected by server"
	if !e.Ref.IsRoot() {
		msg = fmt.Sprintf("request on %s rejected by server", e.Ref)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	return msg
}

// Is matches ValidationError against ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ServerError reports an unexpected server response.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error: status %d", e.Status)
	}
	return fmt.Sprintf("server error: status %d: %s", e.Status, e.Message)
}

// Is matches ServerError against ErrServer.
func (e *ServerError) Is(target error) bool {
	return target == ErrServer
}
