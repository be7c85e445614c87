package keys

import (
	"fmt"
	"strings"

	"github.com/Subaru-PFS/tron-actorcore-sub000/message"
	"github.com/Subaru-PFS/tron-actorcore-sub000/vtype"
)

// TypedValues is the ordered value type signature of a keyword or of a
// command's positional values.
type TypedValues struct {
	entries []vtype.Repeated
	minVals int
	maxVals int // vtype.Unbounded when open-ended
}

// NewTypedValues builds a signature from repeated value types. A
// non-fixed repeat range is only allowed on the final entry.
func NewTypedValues(entries ...vtype.Repeated) (TypedValues, error) {
	tv := TypedValues{entries: entries}
	for i, rep := range entries {
		if err := rep.Validate(); err != nil {
			return tv, err
		}
		if rep.Min != rep.Max && i != len(entries)-1 {
			return tv, fmt.Errorf("repeat range only allowed on the last value type, got %s at %d", rep, i)
		}
		tv.minVals += rep.Min
		if tv.maxVals != vtype.Unbounded {
			if rep.Max == vtype.Unbounded {
				tv.maxVals = vtype.Unbounded
			} else {
				tv.maxVals += rep.Max
			}
		}
	}
	return tv, nil
}

// MustTypedValues is like NewTypedValues but panics on a bad signature.
// Intended for in-code dictionary literals.
func MustTypedValues(entries ...vtype.Repeated) TypedValues {
	tv, err := NewTypedValues(entries...)
	if err != nil {
		panic(err)
	}
	return tv
}

// MinVals returns the minimum number of wire tokens the signature accepts.
func (tv TypedValues) MinVals() int { return tv.minVals }

// MaxVals returns the maximum number of wire tokens, or vtype.Unbounded.
func (tv TypedValues) MaxVals() int { return tv.maxVals }

// Entries returns the signature entries in order.
func (tv TypedValues) Entries() []vtype.Repeated { return tv.entries }

// Descriptor renders the accepted count for help output, e.g. "none",
// "2", "1 or more", "1-3".
func (tv TypedValues) Descriptor() string {
	switch {
	case tv.maxVals == 0:
		return "none"
	case tv.maxVals == tv.minVals:
		return fmt.Sprintf("%d", tv.minVals)
	case tv.maxVals == vtype.Unbounded:
		return fmt.Sprintf("%d or more", tv.minVals)
	default:
		return fmt.Sprintf("%d-%d", tv.minVals, tv.maxVals)
	}
}

// String lists the entries, e.g. "String*1,Int*(0,)".
func (tv TypedValues) String() string {
	parts := make([]string, len(tv.entries))
	for i, rep := range tv.entries {
		parts[i] = rep.String()
	}
	return strings.Join(parts, ",")
}

// Consume converts vals in place against the signature. For each
// entry, at least Min consecutive tokens must convert; conversion then
// continues greedily up to Max (or without bound). A token equal to a
// type's invalid sentinel converts to the Invalid marker rather than
// failing. On failure the original raw values are restored and no
// typed values are left behind; Consume succeeds only when every token
// was consumed.
func (tv TypedValues) Consume(vals message.Values) bool {
	checkpoint := make(message.Values, len(vals))
	copy(checkpoint, vals)

	idx := 0
	next := func(t vtype.ValueType) bool {
		if idx >= len(vals) {
			return false
		}
		v, ok := t.Parse(vals[idx].Raw)
		if !ok {
			return false
		}
		vals[idx].Val = v
		idx++
		return true
	}

	for _, rep := range tv.entries {
		for off := 0; off < rep.Min; off++ {
			if !next(rep.Type) {
				copy(vals, checkpoint)
				return false
			}
		}
		for off := rep.Min; rep.Max == vtype.Unbounded || off < rep.Max; off++ {
			if !next(rep.Type) {
				break
			}
		}
	}
	if idx != len(vals) {
		copy(vals, checkpoint)
		return false
	}
	return true
}
