package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-multierror"

	"github.com/driftbase/driftbase/protocol"
	"github.com/driftbase/driftbase/record"
)

// Result holds the outcome of a single operation within a batch.
type Result struct {
	// Op is the operation this result belongs to.
	Op Operation

	// Record is the resulting record state for successful operations that
	// return one. Nil for deletes and failed operations.
	Record *record.Record

	// Err is the operation's failure, classified the same way as for
	// direct operations. Nil on success.
	Err error
}

// BatchResult holds the per-operation outcomes of a batch, in the order the
// operations were given. Version tokens have already been advanced for the
// successful operations; failed ones left the store untouched.
type BatchResult struct {
	Results []Result
}

// Err returns all operation failures combined, or nil if every operation
// succeeded.
func (br *BatchResult) Err() error {
	var combined *multierror.Error
	for _, res := range br.Results {
		if res.Err != nil {
			combined = multierror.Append(combined, fmt.Errorf("%s %s: %w", res.Op.Kind(), res.Op.Ref(), res.Err))
		}
	}
	return combined.ErrorOrNil()
}

// Succeeded returns the number of successful operations.
func (br *BatchResult) Succeeded() int {
	n := 0
	for _, res := range br.Results {
		if res.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the number of failed operations.
func (br *BatchResult) Failed() int {
	return len(br.Results) - br.Succeeded()
}

// Batch sends the given operations as a single request and reports a result
// per operation. Operations are resolved against the token store up front, so
// conditions reflect the state before the batch, not intermediate results.
//
// An operation that cannot be built, eg. because of an invalid reference,
// fails the whole batch before anything is sent. A batch the server refuses
// as a whole, eg. for exceeding its operation limit, fails with a single
// error and no results.
func (c *Client) Batch(ctx context.Context, ops []Operation) (*BatchResult, error) {
	if c.closed.IsSet() {
		return nil, ErrClosed
	}
	if len(ops) == 0 {
		return &BatchResult{}, nil
	}

	wires := make([]*wireOp, len(ops))
	items := make([]protocol.BatchItem, len(ops))
	for i, op := range ops {
		w, err := c.buildOp(op)
		if err != nil {
			return nil, fmt.Errorf("batch operation %d (%s %s): %w", i, op.Kind(), op.Ref(), err)
		}
		wires[i] = w
		items[i] = protocol.BatchItem{
			Method:  w.method,
			Path:    w.path,
			Headers: w.headers,
			Body:    w.body,
		}
	}

	body, err := json.Marshal(&protocol.BatchRequest{Requests: items})
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch: %w", err)
	}

	batchesTotal.Inc()
	resp, err := c.sendWire(ctx, "batch", &wireOp{
		method: http.MethodPost,
		path:   c.profile.BatchPath,
		body:   body,
	})
	if err != nil {
		return nil, err
	}

	switch {
	case resp.Status == http.StatusOK:
		// Continue below.
	case resp.Status == c.profile.StatusInvalid:
		return nil, &ValidationError{Message: errorReason(resp.Body)}
	case resp.Status == http.StatusUnauthorized, resp.Status == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d on batch", ErrPermissionDenied, resp.Status)
	default:
		return nil, &ServerError{Status: resp.Status, Message: errorReason(resp.Body)}
	}

	var parsed protocol.BatchResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode batch response: %w", err)
	}
	if len(parsed.Responses) != len(ops) {
		return nil, &ServerError{
			Status:  resp.Status,
			Message: fmt.Sprintf("batch returned %d responses for %d operations", len(parsed.Responses), len(ops)),
		}
	}

	br := &BatchResult{Results: make([]Result, len(ops))}
	for i, item := range parsed.Responses {
		rec, err := c.classify(ops[i], wires[i].condition, item.Status, headerFrom(item.Headers), item.Body)
		if err == nil {
			c.applySuccess(ops[i], rec)
		}
		br.Results[i] = Result{Op: ops[i], Record: rec, Err: err}
	}
	return br, nil
}
