package hub

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/Subaru-PFS/tron-actorcore-sub000/errors"
)

// NATSConnection bridges the line protocol over NATS subjects: each
// outbound command line is published to "<prefix>.cmd" and every
// message on "<prefix>.reply.<identity>" is delivered as one inbound
// reply line. Used at sites that front the hub with a NATS fabric
// instead of a raw TCP port.
type NATSConnection struct {
	url      string
	prefix   string
	identity string
	logger   *slog.Logger

	mu       sync.Mutex
	nc       *nats.Conn
	sub      *nats.Subscription
	readFns  []ReadCallback
	stateFns []StateCallback
	started  bool

	closed atomic.Bool
}

// NewNATSConnection builds a bridge client. prefix namespaces the hub
// subjects; identity selects this client's reply subject.
func NewNATSConnection(url, prefix, identity string, logger *slog.Logger) *NATSConnection {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSConnection{
		url:      url,
		prefix:   prefix,
		identity: identity,
		logger: logger.With("component", "hub.NATSConnection",
			"url", url, "prefix", prefix),
	}
}

// Start connects to NATS and subscribes to the reply subject.
func (c *NATSConnection) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return errors.ErrAlreadyStarted
	}

	nc, err := nats.Connect(c.url,
		nats.Name("tron-actorcore "+c.identity),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.logger.Warn("nats disconnected", "error", err)
			c.notifyState(false, fmt.Errorf("%w: %v", errors.ErrConnectionLost, err))
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			c.logger.Info("nats reconnected")
			c.notifyState(true, nil)
		}),
	)
	if err != nil {
		return errors.WrapTransient(err, "hub.NATSConnection", "Start", "connect to "+c.url)
	}

	subject := fmt.Sprintf("%s.reply.%s", c.prefix, c.identity)
	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		c.notifyRead(string(msg.Data))
	})
	if err != nil {
		nc.Close()
		return errors.WrapTransient(err, "hub.NATSConnection", "Start", "subscribe "+subject)
	}

	c.nc = nc
	c.sub = sub
	c.started = true
	c.logger.Info("connected to hub via nats", "replySubject", subject)

	go c.notifyState(true, nil)
	return nil
}

// WriteLine publishes one command line.
func (c *NATSConnection) WriteLine(line string) error {
	c.mu.Lock()
	nc := c.nc
	c.mu.Unlock()
	if nc == nil || !nc.IsConnected() {
		return errors.ErrNotConnected
	}
	if err := nc.Publish(c.prefix+".cmd", []byte(line)); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrWriteFailed, err)
	}
	return nil
}

// IsConnected reports current connectivity.
func (c *NATSConnection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nc != nil && c.nc.IsConnected()
}

// OnRead registers a line callback; call before Start.
func (c *NATSConnection) OnRead(fn ReadCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readFns = append(c.readFns, fn)
}

// OnStateChange registers a connectivity callback; call before Start.
func (c *NATSConnection) OnStateChange(fn StateCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateFns = append(c.stateFns, fn)
}

// Close drains the subscription and closes the connection.
func (c *NATSConnection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.mu.Lock()
	sub, nc := c.sub, c.nc
	c.sub, c.nc = nil, nil
	c.mu.Unlock()
	if sub != nil {
		_ = sub.Unsubscribe()
	}
	if nc != nil {
		nc.Close()
	}
	c.notifyState(false, nil)
	return nil
}

func (c *NATSConnection) notifyRead(line string) {
	c.mu.Lock()
	fns := make([]ReadCallback, len(c.readFns))
	copy(fns, c.readFns)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(line)
	}
}

func (c *NATSConnection) notifyState(connected bool, reason error) {
	c.mu.Lock()
	fns := make([]StateCallback, len(c.stateFns))
	copy(fns, c.stateFns)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(connected, reason)
	}
}
