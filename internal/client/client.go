// Package client implements the reconnecting TCP client for the chess
// server protocol: JSON line framing, background receive and heartbeat
// loops, and bounded-retry reconnection.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rsoares/xadrez/internal/config"
	"github.com/rsoares/xadrez/internal/protocol"
)

// ErrNotConnected is returned when sending without a live connection.
var ErrNotConnected = errors.New("not connected")

// ErrReconnectFailed is returned when every reconnect attempt failed.
var ErrReconnectFailed = errors.New("reconnect attempts exhausted")

// Handler observes one inbound message. Handlers run on the receive
// goroutine and must not block.
type Handler func(env protocol.Envelope)

// ErrorHandler observes terminal connection errors, such as an exhausted
// reconnect. Handlers run on the goroutine that drove the reconnect.
type ErrorHandler func(err error)

// Client is a reconnecting chess server client. Inbound messages are
// dispatched to registered observers; the connection is kept alive with
// periodic heartbeats and restored with bounded retries when it drops.
type Client struct {
	cfg    config.ClientConfig
	logger *zap.Logger

	mu       sync.Mutex
	conn     net.Conn
	done     chan struct{}
	clientID string

	handlerMu   sync.RWMutex
	handlers    map[string][]Handler
	catchAll    []Handler
	errHandlers []ErrorHandler

	connected atomic.Bool
	// reconnecting guards against concurrent reconnect storms: the
	// receive loop and the heartbeat loop can both observe the same
	// failure, but only one of them drives the reconnect.
	reconnecting atomic.Bool

	wg sync.WaitGroup
}

// New creates a client for the given configuration.
//
// Precondition: cfg must be validated; logger must be non-nil.
func New(cfg config.ClientConfig, logger *zap.Logger) *Client {
	return &Client{
		cfg:      cfg,
		logger:   logger,
		handlers: make(map[string][]Handler),
	}
}

// Handle registers an observer for one message type. Multiple observers
// per type are allowed and run in registration order.
//
// Precondition: Must be called before Connect; registration is not
// synchronized with dispatch ordering for messages already in flight.
func (c *Client) Handle(msgType string, fn Handler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.handlers[msgType] = append(c.handlers[msgType], fn)
}

// HandleAll registers an observer that sees every inbound message.
func (c *Client) HandleAll(fn Handler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.catchAll = append(c.catchAll, fn)
}

// HandleError registers an observer for terminal connection errors.
// When auto-reconnect exhausts its attempts, the observer receives an
// error wrapping ErrReconnectFailed.
func (c *Client) HandleError(fn ErrorHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.errHandlers = append(c.errHandlers, fn)
}

// Connect dials the server, retrying up to the configured attempt count
// with a fixed delay between attempts. On success the receive and
// heartbeat loops start in the background.
//
// Postcondition: Returns nil with a live connection, or the last dial
// error wrapped in ErrReconnectFailed.
func (c *Client) Connect(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.ReconnectAttempts; attempt++ {
		if err := c.dial(ctx); err != nil {
			lastErr = err
			c.logger.Warn("connect attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", c.cfg.ReconnectAttempts),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.ReconnectDelay):
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrReconnectFailed, lastErr)
}

// dial makes a single connection attempt and starts the loops.
func (c *Client) dial(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.cfg.Addr())
	if err != nil {
		return fmt.Errorf("dialing %s: %w", c.cfg.Addr(), err)
	}

	c.mu.Lock()
	c.conn = conn
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()
	c.connected.Store(true)

	c.logger.Info("connected", zap.String("addr", c.cfg.Addr()))

	c.wg.Add(2)
	go c.receiveLoop(conn, done)
	go c.heartbeatLoop(done)
	return nil
}

// Send delivers one message to the server as a JSON line.
func (c *Client) Send(v any) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	_, err = c.conn.Write(append(data, '\n'))
	return err
}

// ClientID returns the server-assigned id from the welcome message, or
// empty string before it arrives.
func (c *Client) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

// Connected reports whether the client currently has a live connection.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// receiveLoop reads and dispatches messages until the connection ends.
func (c *Client) receiveLoop(conn net.Conn, done chan struct{}) {
	defer c.wg.Done()

	reader := bufio.NewReaderSize(conn, 4096)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			select {
			case <-done:
				return
			default:
			}
			c.logger.Debug("receive failed", zap.Error(err))
			c.onConnectionLost(done)
			return
		}

		env, err := protocol.Decode(line)
		if err != nil {
			c.logger.Debug("malformed server message", zap.Error(err))
			continue
		}

		c.track(env)
		c.dispatch(env)
	}
}

// track applies protocol-level side effects before observer dispatch.
func (c *Client) track(env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeWelcome:
		var welcome protocol.Welcome
		if err := env.Bind(&welcome); err == nil {
			c.mu.Lock()
			c.clientID = welcome.ClientID
			c.mu.Unlock()
		}
	case protocol.TypePing:
		// Server-initiated liveness probe: answer immediately
		if err := c.Send(protocol.NewPong(c.ClientID())); err != nil {
			c.logger.Debug("answering server ping", zap.Error(err))
		}
	}
}

// dispatch fans the message out to type observers and catch-alls.
func (c *Client) dispatch(env protocol.Envelope) {
	c.handlerMu.RLock()
	typed := c.handlers[env.Type]
	catchAll := c.catchAll
	c.handlerMu.RUnlock()

	for _, fn := range typed {
		fn(env)
	}
	for _, fn := range catchAll {
		fn(env)
	}
}

// heartbeatLoop sends a ping on the configured interval until the
// connection ends.
func (c *Client) heartbeatLoop(done chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			ping := protocol.Ping{
				Type:      protocol.TypePing,
				Timestamp: time.Now().UTC(),
				ClientID:  c.ClientID(),
			}
			if err := c.Send(ping); err != nil {
				c.logger.Debug("heartbeat send failed", zap.Error(err))
				c.onConnectionLost(done)
				return
			}
		}
	}
}

// onConnectionLost tears the current connection down and attempts to
// reconnect. Exactly one caller wins the reconnecting flag; the others
// return immediately.
func (c *Client) onConnectionLost(done chan struct{}) {
	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}
	defer c.reconnecting.Store(false)

	c.teardown(done)

	c.logger.Info("connection lost, reconnecting",
		zap.Int("max_attempts", c.cfg.ReconnectAttempts),
	)

	if err := c.Connect(context.Background()); err != nil {
		c.logger.Error("reconnect failed", zap.Error(err))
		c.notifyError(err)
	}
}

// notifyError fans a terminal error out to the registered observers.
func (c *Client) notifyError(err error) {
	c.handlerMu.RLock()
	observers := c.errHandlers
	c.handlerMu.RUnlock()

	for _, fn := range observers {
		fn(err)
	}
}

// teardown closes the given connection generation if it is still current.
// Stale teardowns for an already-replaced connection are no-ops, so the
// receive loop and heartbeat loop cannot double-close anything.
func (c *Client) teardown(done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done == nil || c.done != done {
		return
	}
	c.connected.Store(false)
	close(c.done)
	c.done = nil
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// Disconnect closes the connection without reconnecting. Idempotent.
//
// Postcondition: Connected reports false and background loops exit.
func (c *Client) Disconnect() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done == nil {
		return
	}
	c.teardown(done)
}
