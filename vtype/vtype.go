package vtype

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies one of the closed set of value type kinds.
type Kind int

// Value type kinds.
const (
	KindInt Kind = iota
	KindUInt
	KindHex
	KindFloat
	KindString
	KindBool
	KindEnum
	KindBits
)

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "Int"
	case KindUInt:
		return "UInt"
	case KindHex:
		return "Hex"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindBool:
		return "Bool"
	case KindEnum:
		return "Enum"
	case KindBits:
		return "Bits"
	default:
		return "Unknown"
	}
}

// invalid is the type of the Invalid marker.
type invalid struct{}

func (invalid) String() string { return "(invalid)" }

// Invalid is the distinguished marker stored in place of a value whose
// wire token matched the declared invalid sentinel.
var Invalid = invalid{}

// IsInvalid reports whether v is the Invalid marker.
func IsInvalid(v any) bool {
	_, ok := v.(invalid)
	return ok
}

// ValueType converts one wire token to a native value and back.
//
// Parse returns (value, ok): ok is false when the token cannot be
// converted at all; a token equal to the declared invalid sentinel
// yields (Invalid, true) so the position is consumed but marked.
type ValueType interface {
	Kind() Kind
	Parse(token string) (any, bool)
	Format(v any) string

	// Metadata for dictionaries and help output.
	Units() string
	Help() string
	InvalidToken() string
}

// Meta carries the metadata shared by every value type. Embed it in a
// concrete type declaration; the zero value means "no metadata".
type Meta struct {
	// UnitsText labels the physical units of the value, if any.
	UnitsText string
	// HelpText is a short description for help output.
	HelpText string
	// InvalidTok, when non-empty, is the wire token that converts to
	// the Invalid marker instead of a native value.
	InvalidTok string
}

// Units returns the units label.
func (m Meta) Units() string { return m.UnitsText }

// Help returns the help text.
func (m Meta) Help() string { return m.HelpText }

// InvalidToken returns the invalid sentinel token, or "".
func (m Meta) InvalidToken() string { return m.InvalidTok }

// sentinel reports whether token matches the declared invalid sentinel.
func (m Meta) sentinel(token string) bool {
	return m.InvalidTok != "" && token == m.InvalidTok
}

// Int is a signed integer value type. Native value: int64.
type Int struct{ Meta }

// Kind returns KindInt.
func (Int) Kind() Kind { return KindInt }

// Parse converts a base-10 signed integer token.
func (t Int) Parse(token string) (any, bool) {
	if t.sentinel(token) {
		return Invalid, true
	}
	v, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return nil, false
	}
	return v, true
}

// Format renders an int64 back into a wire token.
func (t Int) Format(v any) string {
	return formatOr(v, t.InvalidTok, func(x int64) string { return strconv.FormatInt(x, 10) })
}

// UInt is an unsigned 32-bit integer value type. Native value: uint64.
type UInt struct{ Meta }

// Kind returns KindUInt.
func (UInt) Kind() Kind { return KindUInt }

// Parse converts a base-10 unsigned token; values above 2^32-1 fail.
func (t UInt) Parse(token string) (any, bool) {
	if t.sentinel(token) {
		return Invalid, true
	}
	// Allow a leading '+' the way the wire format always has.
	token = strings.TrimPrefix(token, "+")
	v, err := strconv.ParseUint(token, 10, 32)
	if err != nil {
		return nil, false
	}
	return uint64(v), true
}

// Format renders a uint64 back into a wire token.
func (t UInt) Format(v any) string {
	return formatOr(v, t.InvalidTok, func(x uint64) string { return strconv.FormatUint(x, 10) })
}

// Hex is an unsigned 32-bit integer parsed in base 16. Native value: uint64.
type Hex struct{ Meta }

// Kind returns KindHex.
func (Hex) Kind() Kind { return KindHex }

// Parse converts a base-16 token (no 0x prefix on the wire).
func (t Hex) Parse(token string) (any, bool) {
	if t.sentinel(token) {
		return Invalid, true
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(token, "0x"), 16, 32)
	if err != nil {
		return nil, false
	}
	return uint64(v), true
}

// Format renders a uint64 as a base-16 wire token.
func (t Hex) Format(v any) string {
	return formatOr(v, t.InvalidTok, func(x uint64) string { return strconv.FormatUint(x, 16) })
}

// Float is a floating point value type. Native value: float64.
type Float struct{ Meta }

// Kind returns KindFloat.
func (Float) Kind() Kind { return KindFloat }

// Parse converts a floating point token.
func (t Float) Parse(token string) (any, bool) {
	if t.sentinel(token) {
		return Invalid, true
	}
	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return nil, false
	}
	return v, true
}

// Format renders a float64 back into a wire token.
func (t Float) Format(v any) string {
	return formatOr(v, t.InvalidTok, func(x float64) string { return strconv.FormatFloat(x, 'g', -1, 64) })
}

// String accepts any token verbatim. Native value: string.
type String struct{ Meta }

// Kind returns KindString.
func (String) Kind() Kind { return KindString }

// Parse accepts every token.
func (t String) Parse(token string) (any, bool) {
	if t.sentinel(token) {
		return Invalid, true
	}
	return token, true
}

// Format returns the string value unchanged.
func (t String) Format(v any) string {
	return formatOr(v, t.InvalidTok, func(x string) string { return x })
}

// Bool converts between custom true/false tokens and bool.
type Bool struct {
	Meta
	// FalseTok and TrueTok are the wire tokens for false and true.
	FalseTok string
	TrueTok  string
}

// Kind returns KindBool.
func (Bool) Kind() Kind { return KindBool }

// Parse accepts exactly the declared true/false tokens.
func (t Bool) Parse(token string) (any, bool) {
	if t.sentinel(token) {
		return Invalid, true
	}
	switch token {
	case t.TrueTok:
		return true, true
	case t.FalseTok:
		return false, true
	default:
		return nil, false
	}
}

// Format renders a bool using the declared tokens.
func (t Bool) Format(v any) string {
	return formatOr(v, t.InvalidTok, func(x bool) string {
		if x {
			return t.TrueTok
		}
		return t.FalseTok
	})
}

// Enum converts between ordered labels and their integer index.
// Native value: int (the label index). Label matching is
// case-insensitive, matching hub convention.
type Enum struct {
	Meta
	Labels []string
}

// Kind returns KindEnum.
func (Enum) Kind() Kind { return KindEnum }

// Parse converts a label into its index.
func (t Enum) Parse(token string) (any, bool) {
	if t.sentinel(token) {
		return Invalid, true
	}
	for i, label := range t.Labels {
		if strings.EqualFold(label, token) {
			return i, true
		}
	}
	return nil, false
}

// Format renders an index back into its label.
func (t Enum) Format(v any) string {
	return formatOr(v, t.InvalidTok, func(x int) string {
		if x < 0 || x >= len(t.Labels) {
			return strconv.Itoa(x)
		}
		return t.Labels[x]
	})
}

// BitField names one subfield of a Bits value.
type BitField struct {
	Name   string
	Offset uint
	Width  uint
}

// Bits is a fixed-width bitfield with named subfields. Native value:
// uint64 (at most 32 significant bits). Field specs use the form
// "name:width", ":width" for anonymous padding, or "name" for a single
// bit.
type Bits struct {
	Meta
	// Specs are the raw field specifications, in declaration order.
	Specs []string

	fields []BitField
	width  uint
}

// NewBits compiles a bitfield type from field specifications.
func NewBits(meta Meta, specs ...string) (Bits, error) {
	b := Bits{Meta: meta, Specs: specs}
	if len(specs) == 0 {
		return b, fmt.Errorf("bits: no field specs")
	}
	var offset uint
	for _, spec := range specs {
		name := spec
		width := uint(1)
		if i := strings.IndexByte(spec, ':'); i >= 0 {
			name = spec[:i]
			w, err := strconv.ParseUint(spec[i+1:], 10, 6)
			if err != nil || w == 0 {
				return b, fmt.Errorf("bits: invalid field spec %q", spec)
			}
			width = uint(w)
		}
		if name != "" {
			if !isFieldName(name) {
				return b, fmt.Errorf("bits: invalid field name %q", name)
			}
			b.fields = append(b.fields, BitField{Name: name, Offset: offset, Width: width})
		}
		offset += width
		if offset > 32 {
			return b, fmt.Errorf("bits: total width %d exceeds 32", offset)
		}
	}
	b.width = offset
	return b, nil
}

// MustBits is like NewBits but panics on a bad declaration. Intended
// for package-level dictionary literals.
func MustBits(meta Meta, specs ...string) Bits {
	b, err := NewBits(meta, specs...)
	if err != nil {
		panic(err)
	}
	return b
}

func isFieldName(s string) bool {
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return len(s) > 0
}

// Kind returns KindBits.
func (Bits) Kind() Kind { return KindBits }

// Width returns the total bit width.
func (t Bits) Width() uint { return t.width }

// Fields returns the named subfields in declaration order.
func (t Bits) Fields() []BitField { return t.fields }

// Parse converts a base-10 unsigned token.
func (t Bits) Parse(token string) (any, bool) {
	if t.sentinel(token) {
		return Invalid, true
	}
	v, err := strconv.ParseUint(token, 10, 32)
	if err != nil {
		return nil, false
	}
	return uint64(v), true
}

// Format renders a uint64 back into a wire token.
func (t Bits) Format(v any) string {
	return formatOr(v, t.InvalidTok, func(x uint64) string { return strconv.FormatUint(x, 10) })
}

// Field extracts the named subfield from a parsed value.
func (t Bits) Field(v uint64, name string) (uint64, bool) {
	for _, f := range t.fields {
		if f.Name == name {
			mask := uint64(1)<<f.Width - 1
			return (v >> f.Offset) & mask, true
		}
	}
	return 0, false
}

// SetField returns v with the named subfield replaced.
func (t Bits) SetField(v uint64, name string, fieldVal uint64) (uint64, bool) {
	for _, f := range t.fields {
		if f.Name == name {
			mask := uint64(1)<<f.Width - 1
			return (v &^ (mask << f.Offset)) | ((fieldVal & mask) << f.Offset), true
		}
	}
	return v, false
}

// FieldString renders a parsed value field by field, e.g.
// "(addr=01111111,strobe=1)".
func (t Bits) FieldString(v uint64) string {
	parts := make([]string, 0, len(t.fields))
	for _, f := range t.fields {
		val, _ := t.Field(v, f.Name)
		parts = append(parts, fmt.Sprintf("%s=%0*b", f.Name, f.Width, val))
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// formatOr formats a typed value, falling back to the invalid token
// (or the generic marker) for the Invalid marker and to fmt.Sprint for
// foreign types.
func formatOr[T any](v any, invalidTok string, format func(T) string) string {
	if IsInvalid(v) {
		if invalidTok != "" {
			return invalidTok
		}
		return Invalid.String()
	}
	if x, ok := v.(T); ok {
		return format(x)
	}
	return fmt.Sprint(v)
}
