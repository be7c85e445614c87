// Package vtype declares the typed value converters used by the
// command/reply protocol: each ValueType converts one wire token to a
// native Go value and back.
//
// The set of kinds is closed: Int, UInt, Hex, Float, String, Bool,
// Enum and Bits. A value type may declare an "invalid" sentinel token;
// a token equal to the sentinel converts to the distinguished Invalid
// marker instead of failing, so repeat matching can keep consuming.
//
// Conversion never panics and never uses errors for control flow:
// Parse returns (value, ok).
package vtype
