// Package dispatch connects the protocol layers to a hub connection.
//
// The Dispatcher owns three tables: executing commands by ID, KeyVars
// by (actor, keyword), and in-flight refresh commands by recipe. Every
// inbound line flows through DispatchReplyStr, which updates KeyVars
// and routes the reply to the owning CmdVar. Background loops expire
// commands past their deadline and issue refresh commands for stale
// KeyVars.
//
// A Model wraps one actor's keyword dictionary as a set of registered
// KeyVars, pointing cacheable keywords at the hub's cache relay.
package dispatch
