package hub

// ReadCallback receives one inbound protocol line, without its
// terminator.
type ReadCallback func(line string)

// StateCallback is invoked on every connectivity change. reason is nil
// for a clean transition and carries the cause on failure.
type StateCallback func(connected bool, reason error)

// Connection is the transport boundary the dispatcher writes commands
// to and reads replies from.
//
// WriteLine sends one protocol line; the terminator is added by the
// transport. Callbacks registered through OnRead and OnStateChange are
// invoked from the transport's read goroutine, in arrival order;
// registration must happen before Start.
type Connection interface {
	Start() error
	WriteLine(line string) error
	IsConnected() bool
	OnRead(fn ReadCallback)
	OnStateChange(fn StateCallback)
	Close() error
}
