package hub

import (
	"sync"

	"github.com/Subaru-PFS/tron-actorcore-sub000/errors"
)

// NullConnection is an in-memory Connection for tests: written lines
// are recorded, inbound lines and connectivity changes are injected by
// the test.
type NullConnection struct {
	mu        sync.Mutex
	connected bool
	written   []string
	readFns   []ReadCallback
	stateFns  []StateCallback

	// WriteErr, when set, is returned by WriteLine to simulate a
	// transport failure.
	WriteErr error
}

// NewNullConnection returns a connection that starts connected.
func NewNullConnection() *NullConnection {
	return &NullConnection{connected: true}
}

// Start is a no-op.
func (c *NullConnection) Start() error { return nil }

// WriteLine records the line, or fails when disconnected or WriteErr
// is set.
func (c *NullConnection) WriteLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return errors.ErrNotConnected
	}
	if c.WriteErr != nil {
		return c.WriteErr
	}
	c.written = append(c.written, line)
	return nil
}

// IsConnected reports the simulated connectivity.
func (c *NullConnection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// OnRead registers a line callback.
func (c *NullConnection) OnRead(fn ReadCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readFns = append(c.readFns, fn)
}

// OnStateChange registers a connectivity callback.
func (c *NullConnection) OnStateChange(fn StateCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateFns = append(c.stateFns, fn)
}

// Close marks the connection closed.
func (c *NullConnection) Close() error {
	c.SetConnected(false, nil)
	return nil
}

// Written returns every line written so far.
func (c *NullConnection) Written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.written))
	copy(out, c.written)
	return out
}

// LastWritten returns the most recent written line, or "".
func (c *NullConnection) LastWritten() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.written) == 0 {
		return ""
	}
	return c.written[len(c.written)-1]
}

// Inject delivers an inbound line to the read callbacks.
func (c *NullConnection) Inject(line string) {
	c.mu.Lock()
	fns := make([]ReadCallback, len(c.readFns))
	copy(fns, c.readFns)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(line)
	}
}

// SetConnected flips connectivity and notifies state callbacks.
func (c *NullConnection) SetConnected(connected bool, reason error) {
	c.mu.Lock()
	c.connected = connected
	fns := make([]StateCallback, len(c.stateFns))
	copy(fns, c.stateFns)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(connected, reason)
	}
}
