// Package hub provides line transports to the message hub. A
// Connection carries newline-terminated protocol lines in both
// directions and reports its connectivity; the dispatcher is transport
// agnostic and works against the Connection interface.
//
// Three transports are provided: a plain TCP client with reconnect
// backoff (the hub's native transport), a NATS bridge, and a websocket
// bridge. NullConnection is an in-memory double for tests.
package hub
