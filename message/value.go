package message

import "strings"

// Value is one wire token of a keyword. Raw is the token exactly as it
// appeared on the wire (unquoted, unescaped); Val, when non-nil, is the
// native value a dictionary conversion produced for it.
type Value struct {
	Raw string
	Val any
}

// V wraps a raw token as a Value.
func V(raw string) Value { return Value{Raw: raw} }

// Canonical renders the value for the wire, quoting when needed.
func (v Value) Canonical() string {
	return quoteIfNeeded(v.Raw)
}

// Values is the ordered value list of a keyword.
type Values []Value

// NewValues wraps raw tokens as a value list.
func NewValues(raw ...string) Values {
	vals := make(Values, len(raw))
	for i, r := range raw {
		vals[i] = Value{Raw: r}
	}
	return vals
}

// Canonical renders the comma-separated wire form of the list.
func (vs Values) Canonical() string {
	if len(vs) == 0 {
		return ""
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.Canonical()
	}
	return strings.Join(parts, ",")
}

// Strings returns the raw tokens of the list.
func (vs Values) Strings() []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Raw
	}
	return out
}

// quoteIfNeeded renders a raw token for the wire. A token is quoted
// when it is empty, begins with a quote, or contains a character that
// would be taken as a delimiter when reparsed.
func quoteIfNeeded(raw string) string {
	if raw != "" && !strings.HasPrefix(raw, `"`) &&
		!strings.ContainsAny(raw, " \t,=;") {
		return raw
	}
	var b strings.Builder
	b.Grow(len(raw) + 2)
	b.WriteByte('"')
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c == '"' || c == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	b.WriteByte('"')
	return b.String()
}
