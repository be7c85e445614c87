// Package actorcore implements the client side of the message-hub
// command/reply protocol used to operate telescope actors.
//
// The layers, bottom up:
//
//   - vtype: value converters for keyword data
//   - message: wire grammar, parsing, and canonical rendering
//   - keys: keyword dictionaries and command validation
//   - keyvar: the keyword cache (KeyVar) and command lifecycle (CmdVar)
//   - dispatch: the dispatcher tying commands, replies, and refresh
//     scheduling to a hub connection
//   - hub: transports (TCP, NATS, WebSocket) carrying the line protocol
//
// cmd/tronctl is a command-line client built on the whole stack.
package actorcore
