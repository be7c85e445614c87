package hub

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Subaru-PFS/tron-actorcore-sub000/errors"
	"github.com/Subaru-PFS/tron-actorcore-sub000/pkg/retry"
)

// TCPConnection is the hub's native transport: a long-lived TCP
// connection carrying newline-terminated lines. Lost connections are
// re-established with exponential backoff; each connectivity change is
// reported through the state callbacks.
type TCPConnection struct {
	addr        string
	logger      *slog.Logger
	dialTimeout time.Duration
	retryCfg    retry.Config

	connID string // per-instance ID for log correlation

	mu        sync.Mutex
	conn      net.Conn
	readFns   []ReadCallback
	stateFns  []StateCallback
	started   bool
	connected bool

	closed atomic.Bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTCPConnection builds a client for the hub at addr (host:port).
// Start must be called to connect.
func NewTCPConnection(addr string, opts ...TCPOption) *TCPConnection {
	c := &TCPConnection{
		addr:        addr,
		logger:      slog.Default(),
		dialTimeout: 10 * time.Second,
		retryCfg:    retry.Persistent(),
		connID:      uuid.NewString(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "hub.TCPConnection", "addr", addr, "connID", c.connID)
	return c
}

// Start dials the hub and launches the read loop. The initial dial is
// retried with backoff; Start returns once connected or when the
// retry budget is exhausted.
func (c *TCPConnection) Start() error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	if err := c.connect(ctx); err != nil {
		return errors.WrapTransient(err, "hub.TCPConnection", "Start", "dial "+c.addr)
	}
	c.wg.Add(1)
	go c.run(ctx)
	return nil
}

// connect dials with backoff and installs the connection.
func (c *TCPConnection) connect(ctx context.Context) error {
	conn, err := retry.DoWithResult(ctx, c.retryCfg, func() (net.Conn, error) {
		return net.DialTimeout("tcp", c.addr, c.dialTimeout)
	})
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.logger.Info("connected to hub")
	c.notifyState(true, nil)
	return nil
}

// run reads lines until the connection drops, then reconnects, until
// Close.
func (c *TCPConnection) run(ctx context.Context) {
	defer c.wg.Done()
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		err := c.readLoop(conn)
		if c.closed.Load() || ctx.Err() != nil {
			return
		}

		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		c.logger.Warn("hub connection lost", "error", err)
		c.notifyState(false, fmt.Errorf("%w: %v", errors.ErrConnectionLost, err))

		if err := c.connect(ctx); err != nil {
			if c.closed.Load() || ctx.Err() != nil {
				return
			}
			c.logger.Error("hub reconnect failed", "error", err)
			return
		}
	}
}

func (c *TCPConnection) readLoop(conn net.Conn) error {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		c.notifyRead(line)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return fmt.Errorf("connection closed by peer")
}

// WriteLine sends one line, appending the terminator.
func (c *TCPConnection) WriteLine(line string) error {
	c.mu.Lock()
	conn, connected := c.conn, c.connected
	c.mu.Unlock()
	if !connected || conn == nil {
		return errors.ErrNotConnected
	}
	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrWriteFailed, err)
	}
	return nil
}

// IsConnected reports current connectivity.
func (c *TCPConnection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// OnRead registers a line callback; call before Start.
func (c *TCPConnection) OnRead(fn ReadCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readFns = append(c.readFns, fn)
}

// OnStateChange registers a connectivity callback; call before Start.
func (c *TCPConnection) OnStateChange(fn StateCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateFns = append(c.stateFns, fn)
}

// Close tears the connection down. Safe to call more than once.
func (c *TCPConnection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Lock()
	conn := c.conn
	c.connected = false
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	c.wg.Wait()
	c.notifyState(false, nil)
	return nil
}

func (c *TCPConnection) notifyRead(line string) {
	c.mu.Lock()
	fns := make([]ReadCallback, len(c.readFns))
	copy(fns, c.readFns)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(line)
	}
}

func (c *TCPConnection) notifyState(connected bool, reason error) {
	c.mu.Lock()
	fns := make([]StateCallback, len(c.stateFns))
	copy(fns, c.stateFns)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(connected, reason)
	}
}

// TCPOption configures a TCPConnection.
type TCPOption func(*TCPConnection)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) TCPOption {
	return func(c *TCPConnection) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDialTimeout bounds each dial attempt.
func WithDialTimeout(d time.Duration) TCPOption {
	return func(c *TCPConnection) { c.dialTimeout = d }
}

// WithRetryConfig overrides the reconnect backoff policy.
func WithRetryConfig(cfg retry.Config) TCPOption {
	return func(c *TCPConnection) { c.retryCfg = cfg }
}
