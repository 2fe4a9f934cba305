package stream

import (
	"bytes"
	"context"
	"encoding/json"
)

// initialize performs the session setup flow on a fresh connection:
// authenticate, then replay the tracked subscriptions. Server-side
// subscriptions are session-scoped, so the replay happens on every
// (re)connect.
func (c *Client) initialize(ctx context.Context) error {
	if err := c.authenticate(ctx); err != nil {
		return err
	}
	return c.resubscribe(ctx)
}

// authenticate sends the credential frame and waits up to authTimeout for a
// response. An explicit rejection is a hard failure: the caller tears the
// connection down and redials, never retrying auth on the same session. If
// no unambiguous answer arrives within the timeout the client assumes
// success — the server's ack behavior is known to be unreliable, and later
// traffic proves the session out either way.
func (c *Client) authenticate(ctx context.Context) error {
	msg, err := json.Marshal(map[string]string{
		"action": "authenticate",
		"apikey": c.apiKey,
	})
	if err != nil {
		return err
	}
	if err := c.conn.writeMessage(ctx, msg); err != nil {
		return err
	}

	readCtx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()
	b, err := c.conn.readMessage(readCtx)
	if err != nil {
		if readCtx.Err() != nil && ctx.Err() == nil {
			c.logger.Warnf("openalgo stream: no auth response within %s, assuming success", authTimeout)
			return nil
		}
		return err
	}

	switch classifyAuthResponse(b) {
	case authRejected:
		return ErrAuthRejected
	case authAccepted:
		return nil
	default:
		// Not an auth ack at all; the server already started pushing
		// data. Hand the message on instead of dropping it.
		c.handler(b)
		return nil
	}
}

type authResult int

const (
	authAmbiguous authResult = iota
	authAccepted
	authRejected
)

var authErrorKeywords = [][]byte{
	[]byte(`"error"`),
	[]byte(`"failed"`),
	[]byte("unauthorized"),
	[]byte("invalid api key"),
	[]byte("invalid apikey"),
}

func classifyAuthResponse(b []byte) authResult {
	lower := bytes.ToLower(b)
	for _, kw := range authErrorKeywords {
		if bytes.Contains(lower, kw) {
			return authRejected
		}
	}
	var resp struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(b, &resp); err != nil {
		return authAmbiguous
	}
	if resp.Status == "success" || bytes.Contains(lower, []byte("authenticated")) {
		return authAccepted
	}
	return authAmbiguous
}

// resubscribe replays the tracked subscription set on a fresh connection.
// Stale frames queued while disconnected are dropped first; the replay
// supersedes them.
func (c *Client) resubscribe(ctx context.Context) error {
	for {
		select {
		case <-c.subChanges:
			continue
		default:
		}
		break
	}

	for _, ticker := range c.Subscriptions() {
		msg, err := subChangeMessage(ticker, true)
		if err != nil {
			return err
		}
		if err := c.conn.writeMessage(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}
