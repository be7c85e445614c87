// Package message defines the command/reply data model for the hub
// wire protocol and the parser that turns raw lines into typed
// messages.
//
// # Wire format
//
// A reply line is:
//
//	<program>.<user> <commandId> <actor> <code> [<kw>[=<v1,v2,...>][;<kw>...]]
//
// where <code> is one of the single-character message codes ('>', 'i',
// 'w', ':', 'f', '!'). A command line is:
//
//	<verb> [<values>] [<kw>[=<values>] ...]
//
// Values are comma-separated; a value is either a double-quoted string
// (backslash escapes '\' and '"') or an unquoted run that contains no
// whitespace, comma, semicolon or '='. The keyword name "raw" is
// reserved: everything after "raw=" is a single verbatim value.
//
// # Canonical form
//
// Every message type has a canonical string representation that is
// invariant under parsing; two messages are equivalent exactly when
// their canonical strings are equal. Keyword names canonicalize to
// lower case.
//
// Parse failures are reported as errors wrapping errors.ErrParse and
// never as partially populated messages.
package message
