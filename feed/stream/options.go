package stream

import (
	"context"
	"net/url"
	"time"
)

// Option is a configuration option for the Client.
type Option func(*Client)

// WithLogger configures the logger
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithReconnectSettings configures how many consecutive connection errors
// should be accepted and the delay (that is multiplied by the number of
// consecutive errors) between retries. limit = 0 means the client will try
// reconnecting indefinitely.
func WithReconnectSettings(limit int, delay time.Duration) Option {
	return func(c *Client) {
		c.reconnectLimit = limit
		c.reconnectDelay = delay
	}
}

// WithBufferSize configures the size of the incoming message buffer
func WithBufferSize(size int) Option {
	return func(c *Client) {
		c.bufferSize = size
	}
}

// WithMessageHandler configures the handler that receives every incoming
// text message. The handler is called from a single goroutine in arrival
// order and must not block for long: a slow handler eventually backs up the
// read loop and the server will drop the connection.
func WithMessageHandler(handler func(msg []byte)) Option {
	return func(c *Client) {
		if handler != nil {
			c.handler = handler
		}
	}
}

// withConnCreator is used for testing
func withConnCreator(creator func(ctx context.Context, u url.URL) (conn, error)) Option {
	return func(c *Client) {
		c.connCreator = creator
	}
}
