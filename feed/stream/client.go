package stream

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"
)

// State is the connection lifecycle state. Transitions run strictly forward
// through Connecting, Connected and Authenticated; any error or close resets
// to Disconnected.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Authenticated
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Authenticated:
		return "authenticated"
	}
	return "disconnected"
}

// Client maintains a websocket session to an OpenAlgo live feed: connect,
// authenticate, subscribe, keepalive and automatic reconnection.
//
// After constructing, Connect must be called before any subscription
// changes take effect on the wire. Connect keeps the connection alive and
// reestablishes it until the configured number of consecutive retries is
// exceeded, at which point the client terminates; a terminated client can
// not be reused.
//
// Incoming text messages are delivered to the configured message handler in
// arrival order. Subscriptions are tracked per ticker and replayed after
// every reconnect, since the server scopes them to the session.
type Client struct {
	logger Logger

	baseURL string
	apiKey  string

	reconnectLimit int
	reconnectDelay time.Duration
	bufferSize     int

	connectOnce    sync.Once
	terminatedChan chan error
	conn           conn
	in             chan []byte
	subChanges     chan []byte

	handler func(msg []byte)

	stateMu sync.Mutex
	state   State

	subMu         sync.Mutex
	subs          map[string]bool
	hasTerminated bool

	connCreator func(ctx context.Context, u url.URL) (conn, error)
}

// NewClient returns a new stream client for the given websocket URL whose
// default configuration is modified by opts.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		logger:         newStdLog(),
		baseURL:        baseURL,
		apiKey:         apiKey,
		reconnectLimit: 8,
		reconnectDelay: 5 * time.Second,
		bufferSize:     4096,
		terminatedChan: make(chan error, 1),
		subChanges:     make(chan []byte, 32),
		handler:        func([]byte) {},
		subs:           make(map[string]bool),
		connCreator:    newNhooyrWebsocketConn,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

// State returns the current connection state.
func (c *Client) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

// Connect establishes the connection and reestablishes it when errors occur
// as long as the configured number of retries has not been exceeded.
//
// It blocks until the connection has been established for the first time
// (or it failed to do so). Should only be called once.
func (c *Client) Connect(ctx context.Context) error {
	if c.apiKey == "" {
		return ErrNoCredentials
	}
	u, err := c.constructURL()
	if err != nil {
		return err
	}
	err = ErrConnectCalledMultipleTimes
	c.connectOnce.Do(func() {
		initialResultCh := make(chan error)
		go c.maintainConnection(ctx, u, initialResultCh)
		err = <-initialResultCh
		if err != nil {
			c.terminatedChan <- err
			close(c.terminatedChan)
		}
	})
	return err
}

// Terminated returns a channel that the client sends an error to when it
// has terminated. The channel is also closed upon termination.
func (c *Client) Terminated() <-chan error {
	return c.terminatedChan
}

func (c *Client) constructURL() (url.URL, error) {
	scheme := "wss"
	ub, err := url.Parse(c.baseURL)
	if err != nil {
		return url.URL{}, err
	}
	switch ub.Scheme {
	case "http", "ws":
		scheme = "ws"
	}
	return url.URL{Scheme: scheme, Host: ub.Host, Path: ub.Path}, nil
}

// maintainConnection dials u, runs the session goroutines and redials on
// loss, as long as reconnectLimit consecutive failures do not occur. It
// sends the first connection attempt's result to initialResultCh.
func (c *Client) maintainConnection(ctx context.Context, u url.URL, initialResultCh chan<- error) {
	var connError error
	failedAttemptsInARow := 0
	connectedAtLeastOnce := false

	defer func() {
		c.setState(Disconnected)
		c.subMu.Lock()
		c.hasTerminated = true
		c.subMu.Unlock()
		if connectedAtLeastOnce {
			close(c.terminatedChan)
		}
	}()

	sendError := func(err error) {
		if !connectedAtLeastOnce {
			initialResultCh <- err
		} else {
			c.terminatedChan <- err
		}
	}

	for {
		select {
		case <-ctx.Done():
			if !connectedAtLeastOnce {
				c.logger.Warnf("openalgo stream: cancelled before connection could be established, last error: %v", connError)
				initialResultCh <- fmt.Errorf("cancelled before connection could be established, last error: %w", connError)
			} else {
				c.terminatedChan <- nil
			}
			return
		default:
			if c.reconnectLimit != 0 && failedAttemptsInARow >= c.reconnectLimit {
				c.logger.Errorf("openalgo stream: max reconnect limit has been reached, last error: %v", connError)
				sendError(fmt.Errorf("max reconnect limit has been reached, last error: %w", connError))
				return
			}
			time.Sleep(time.Duration(failedAttemptsInARow) * c.reconnectDelay)
			failedAttemptsInARow++
			c.setState(Connecting)
			c.logger.Infof("openalgo stream: connecting to %s, attempt %d/%d ...", u.String(), failedAttemptsInARow, c.reconnectLimit)
			conn, err := c.connCreator(ctx, u)
			if err != nil {
				connError = err
				c.setState(Disconnected)
				c.logger.Warnf("openalgo stream: failed to connect, error: %v", err)
				continue
			}
			c.conn = conn
			c.setState(Connected)

			c.logger.Infof("openalgo stream: established connection")
			if err := c.initialize(ctx); err != nil {
				connError = err
				c.conn.close()
				c.setState(Disconnected)
				c.logger.Warnf("openalgo stream: connection setup failed, error: %v", err)
				continue
			}
			c.setState(Authenticated)
			c.logger.Infof("openalgo stream: finished connection setup")
			connError = nil
			if !connectedAtLeastOnce {
				initialResultCh <- nil
				connectedAtLeastOnce = true
			}
			failedAttemptsInARow = 0

			c.in = make(chan []byte, c.bufferSize)
			wg := sync.WaitGroup{}
			wg.Add(4)
			closeCh := make(chan struct{})
			go c.messageProcessor(ctx, &wg)
			go c.connPinger(ctx, &wg, closeCh)
			go c.connReader(ctx, &wg, closeCh)
			go c.connWriter(ctx, &wg, closeCh)
			wg.Wait()
			c.setState(Disconnected)
			if ctx.Err() != nil {
				c.logger.Infof("openalgo stream: disconnected")
			} else {
				c.logger.Warnf("openalgo stream: connection lost")
			}
		}
	}
}

var newPingTicker = func() ticker {
	return &timeTicker{ticker: time.NewTicker(pingPeriod)}
}

// connPinger periodically calls c.conn.ping to ensure the connection is still alive
func (c *Client) connPinger(ctx context.Context, wg *sync.WaitGroup, closeCh <-chan struct{}) {
	pingTicker := newPingTicker()
	defer func() {
		pingTicker.Stop()
		c.conn.close()
		wg.Done()
	}()

	for {
		select {
		case <-closeCh:
			return
		case <-ctx.Done():
			return
		case <-pingTicker.C():
			if err := c.conn.ping(ctx); err != nil {
				if ctx.Err() == nil {
					c.logger.Errorf("openalgo stream: ping failed, error: %v", err)
				}
				return
			}
		}
	}
}

// connReader reads from c.conn and sends those messages to c.in. It is
// also responsible for closing closeCh that terminates the other session
// goroutines and for closing c.in which terminates the messageProcessor.
func (c *Client) connReader(ctx context.Context, wg *sync.WaitGroup, closeCh chan<- struct{}) {
	defer func() {
		close(closeCh)
		c.conn.close()
		close(c.in)
		wg.Done()
	}()

	for {
		msg, err := c.conn.readMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Errorf("openalgo stream: reading from conn failed, error: %v", err)
			}
			return
		}

		c.in <- msg
	}
}

// connWriter handles writing messages from c.subChanges to c.conn
func (c *Client) connWriter(ctx context.Context, wg *sync.WaitGroup, closeCh <-chan struct{}) {
	defer func() {
		c.conn.close()
		wg.Done()
	}()

	for {
		select {
		case <-closeCh:
			return
		case <-ctx.Done():
			return
		case msg := <-c.subChanges:
			if err := c.conn.writeMessage(ctx, msg); err != nil {
				if ctx.Err() == nil {
					c.logger.Errorf("openalgo stream: writing to conn failed, error: %v", err)
				}
				return
			}
		}
	}
}

// messageProcessor reads from c.in (while it's open) and dispatches the
// messages to the handler, preserving arrival order.
func (c *Client) messageProcessor(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.in:
			if !ok {
				return
			}
			c.handler(msg)
		}
	}
}
