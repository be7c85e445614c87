package hub

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Subaru-PFS/tron-actorcore-sub000/errors"
)

// WSConnection carries the line protocol over a websocket bridge: one
// text message per line in each direction. Used by browser-facing
// gateways that expose the hub behind HTTP infrastructure.
type WSConnection struct {
	url    string
	logger *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	readFns   []ReadCallback
	stateFns  []StateCallback
	started   bool
	connected bool

	closed atomic.Bool
	wg     sync.WaitGroup
}

// NewWSConnection builds a websocket client for url (ws:// or wss://).
func NewWSConnection(url string, logger *slog.Logger) *WSConnection {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSConnection{
		url:    url,
		logger: logger.With("component", "hub.WSConnection", "url", url),
	}
}

// Start dials the bridge and launches the read loop.
func (c *WSConnection) Start() error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(c.url, nil)
	if err != nil {
		return errors.WrapTransient(err, "hub.WSConnection", "Start", "dial "+c.url)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.logger.Info("connected to hub via websocket")
	c.notifyState(true, nil)

	c.wg.Add(1)
	go c.readLoop(conn)
	return nil
}

func (c *WSConnection) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.connected = false
			c.mu.Unlock()
			if !c.closed.Load() {
				c.logger.Warn("websocket connection lost", "error", err)
				c.notifyState(false, fmt.Errorf("%w: %v", errors.ErrConnectionLost, err))
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		// a bridge may batch several lines into one message
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimRight(line, "\r")
			if line != "" {
				c.notifyRead(line)
			}
		}
	}
}

// WriteLine sends one line as a text message.
func (c *WSConnection) WriteLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || c.conn == nil {
		return errors.ErrNotConnected
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrWriteFailed, err)
	}
	return nil
}

// IsConnected reports current connectivity.
func (c *WSConnection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// OnRead registers a line callback; call before Start.
func (c *WSConnection) OnRead(fn ReadCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readFns = append(c.readFns, fn)
}

// OnStateChange registers a connectivity callback; call before Start.
func (c *WSConnection) OnStateChange(fn StateCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateFns = append(c.stateFns, fn)
}

// Close shuts the websocket down. Safe to call more than once.
func (c *WSConnection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.mu.Lock()
	conn := c.conn
	c.connected = false
	c.mu.Unlock()
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
	c.wg.Wait()
	c.notifyState(false, nil)
	return nil
}

func (c *WSConnection) notifyRead(line string) {
	c.mu.Lock()
	fns := make([]ReadCallback, len(c.readFns))
	copy(fns, c.readFns)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(line)
	}
}

func (c *WSConnection) notifyState(connected bool, reason error) {
	c.mu.Lock()
	fns := make([]StateCallback, len(c.stateFns))
	copy(fns, c.stateFns)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(connected, reason)
	}
}
