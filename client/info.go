package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/driftbase/driftbase/protocol"
)

// ServerInfo fetches the server descriptor: project name and version,
// protocol version, capabilities and settings. The descriptor is fetched once
// and kept for the client's lifetime, concurrent callers share a single
// request.
func (c *Client) ServerInfo(ctx context.Context) (*protocol.ServerInfo, error) {
	if c.closed.IsSet() {
		return nil, ErrClosed
	}

	c.infoLock.Lock()
	cached := c.info
	c.infoLock.Unlock()
	if cached != nil {
		return cached, nil
	}

	v, err, _ := c.infoFlight.Do("hello", func() (interface{}, error) {
		return c.fetchInfo(ctx)
	})
	if err != nil {
		return nil, err
	}
	info := v.(*protocol.ServerInfo)

	c.infoLock.Lock()
	c.info = info
	c.infoLock.Unlock()
	return info, nil
}

func (c *Client) fetchInfo(ctx context.Context) (*protocol.ServerInfo, error) {
	resp, err := c.sendWire(ctx, "hello", &wireOp{
		method: http.MethodGet,
		path:   c.profile.HelloPath,
	})
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusOK {
		return nil, &ServerError{Status: resp.Status, Message: errorReason(resp.Body)}
	}

	info := &protocol.ServerInfo{}
	if err := json.Unmarshal(resp.Body, info); err != nil {
		return nil, fmt.Errorf("failed to decode server descriptor: %w", err)
	}
	return info, nil
}

// VerifyConnection fetches the server descriptor and checks the advertised
// protocol version against the profile's version constraint.
func (c *Client) VerifyConnection(ctx context.Context) (*protocol.ServerInfo, error) {
	info, err := c.ServerInfo(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.profile.CheckCompatibility(info); err != nil {
		return nil, err
	}
	return info, nil
}
