package stream

import (
	"context"
	"time"
)

// conn represents a websocket connection between the feed server and the
// client. Frame-level concerns live below this interface: the transport
// answers received pings with pongs echoing the ping payload byte for byte,
// as the server closes connections on bare pongs.
type conn interface {
	// close closes the websocket connection
	close() error
	// ping sends a ping to the server and waits for the pong
	ping(ctx context.Context) error
	// readMessage blocks until it reads a single text message
	readMessage(ctx context.Context) (data []byte, err error)
	// writeMessage writes a single text message
	writeMessage(ctx context.Context, data []byte) error
}

var (
	connectTimeout = 3 * time.Second  // Time allowed for the dial and upgrade handshake
	writeWait      = 5 * time.Second  // Time allowed to write a message to the peer
	pongWait       = 5 * time.Second  // Time allowed to read the next pong message from the peer
	pingPeriod     = 30 * time.Second // Send pings to peer with this period
	authTimeout    = 5 * time.Second  // Time allowed for the authentication response
)
