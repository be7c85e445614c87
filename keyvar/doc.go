// Package keyvar holds the two live protocol objects: KeyVar, the
// cached last-known value of one (actor, keyword) pair, and CmdVar,
// the tracked lifecycle of one outstanding command.
//
// Both deliver state changes through registered callbacks. Callback
// panics are recovered and logged so one misbehaving observer cannot
// block delivery to the others. A dispatcher owns mutation of both
// types; direct callers normally only read and register callbacks.
package keyvar
