package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/felixgeelhaar/fortify/retry"
	"github.com/gorilla/websocket"

	"neurosentinel/internal/logging"
	"neurosentinel/internal/sentinel"
)

// DefaultURL is the backend endpoint used when none is configured.
const DefaultURL = "ws://localhost:8000/ws"

var (
	// ErrNotConnected is returned by outbound requests while the link is
	// down.
	ErrNotConnected = errors.New("not connected")
	// ErrRateLimited is returned when outbound requests arrive faster
	// than the configured rate.
	ErrRateLimited = errors.New("outbound rate limit exceeded")
)

// Config controls the transport.
type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	// DialAttempts and RetryDelay drive the backoff of one connection
	// attempt; ReconnectPause separates attempts.
	DialAttempts   int
	RetryDelay     time.Duration
	ReconnectPause time.Duration
	WriteTimeout   time.Duration
	// OutboundRate is the number of requests allowed per second.
	OutboundRate int
}

// DefaultConfig returns the stock transport settings for url.
func DefaultConfig(url string) Config {
	if url == "" {
		url = DefaultURL
	}
	return Config{
		URL:              url,
		HandshakeTimeout: 3 * time.Second,
		DialAttempts:     3,
		RetryDelay:       250 * time.Millisecond,
		ReconnectPause:   5 * time.Second,
		WriteTimeout:     2 * time.Second,
		OutboundRate:     5,
	}
}

// Client is the websocket event source. Subscriptions are made on the
// embedded Router.
type Client struct {
	*Router

	config  Config
	dialer  websocket.Dialer
	retrier retry.Retry[*websocket.Conn]
	limiter ratelimit.RateLimiter

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	cancel    context.CancelFunc
	done      chan struct{}

	writeMu sync.Mutex
}

// NewClient returns a client that is not connected yet.
func NewClient(config Config) *Client {
	defaults := DefaultConfig(config.URL)
	if config.URL == "" {
		config.URL = defaults.URL
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if config.DialAttempts <= 0 {
		config.DialAttempts = defaults.DialAttempts
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = defaults.RetryDelay
	}
	if config.ReconnectPause <= 0 {
		config.ReconnectPause = defaults.ReconnectPause
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.OutboundRate <= 0 {
		config.OutboundRate = defaults.OutboundRate
	}

	return &Client{
		Router: NewRouter(),
		config: config,
		dialer: websocket.Dialer{HandshakeTimeout: config.HandshakeTimeout},
		retrier: retry.New[*websocket.Conn](retry.Config{
			MaxAttempts:   config.DialAttempts,
			InitialDelay:  config.RetryDelay,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    2.0,
		}),
		limiter: ratelimit.New(&ratelimit.Config{
			Rate:  config.OutboundRate,
			Burst: config.OutboundRate,
		}),
	}
}

// URL returns the configured endpoint.
func (c *Client) URL() string {
	return c.config.URL
}

// Connected reports whether a live connection is established.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connect starts the connection loop. It returns at once; link changes
// are reported through OnConnection. Calling Connect while the loop runs
// does nothing.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(loopCtx, c.done)
	return nil
}

// Disconnect closes the socket and stops the loop. It blocks until the
// loop has exited.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	conn := c.conn
	c.cancel = nil
	c.done = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.config.WriteTimeout))
		_ = conn.Close()
	}
	<-done
	c.setConnected(false, nil)
}

func (c *Client) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		conn, err := c.retrier.Do(ctx, func(ctx context.Context) (*websocket.Conn, error) {
			conn, _, err := c.dialer.DialContext(ctx, c.config.URL, nil)
			return conn, err
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Warn().
				Add(logging.Component("ingest")).
				Add(logging.URL(c.config.URL)).
				Add(logging.ErrorField(err)).
				Msg("dial failed")
			c.setConnected(false, nil)
			if !sleepCtx(ctx, c.config.ReconnectPause) {
				return
			}
			continue
		}

		c.setConnected(true, conn)
		logging.Info().
			Add(logging.Component("ingest")).
			Add(logging.URL(c.config.URL)).
			Msg("connected")

		err = c.readLoop(ctx, conn)
		_ = conn.Close()
		c.setConnected(false, nil)
		if ctx.Err() != nil {
			return
		}
		logging.Warn().
			Add(logging.Component("ingest")).
			Add(logging.ErrorField(err)).
			Msg("connection lost")
		if !sleepCtx(ctx, c.config.ReconnectPause) {
			return
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		kind, frame, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		if err := c.Dispatch(frame); err != nil {
			logging.Warn().
				Add(logging.Component("ingest")).
				Add(logging.ErrorField(err)).
				Msg("frame dropped")
		}
	}
}

// setConnected records the link state and notifies subscribers when it
// changed.
func (c *Client) setConnected(connected bool, conn *websocket.Conn) {
	c.mu.Lock()
	changed := c.connected != connected
	c.connected = connected
	c.conn = conn
	c.mu.Unlock()
	if changed {
		c.notifyConnection(connected)
	}
}

// RequestState asks the backend for a full system_state snapshot.
func (c *Client) RequestState() error {
	return c.emit(sentinel.RequestState, nil)
}

// TriggerAnalysis asks the backend to analyze target.
func (c *Client) TriggerAnalysis(target string) error {
	return c.emit(sentinel.TriggerAnalysis, sentinel.TriggerAnalysisRequest{Target: target})
}

// SimulateError asks the backend to stage an incident on nodeID.
func (c *Client) SimulateError(nodeID, message string) error {
	return c.emit(sentinel.SimulateError, sentinel.SimulateErrorRequest{NodeID: nodeID, Error: message})
}

func (c *Client) emit(event string, payload any) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.connected
	c.mu.Unlock()
	if !connected || conn == nil {
		return fmt.Errorf("%s: %w", event, ErrNotConnected)
	}
	if !c.limiter.Allow(context.Background(), "outbound") {
		return fmt.Errorf("%s: %w", event, ErrRateLimited)
	}

	frame, err := Encode(event, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	logging.Debug().
		Add(logging.Component("ingest")).
		Add(logging.Event(event)).
		Msg("request sent")
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
