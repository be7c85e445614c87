package vtype

import "fmt"

// Unbounded marks a repeat range with no upper limit.
const Unbounded = -1

// Repeated wraps a ValueType with a repeat range for use in an ordered
// value signature. Min and Max are counts of consecutive wire tokens
// converted by Type; Max may be Unbounded only on the final entry of a
// signature.
type Repeated struct {
	Type ValueType
	Min  int
	Max  int
}

// Once wraps a value type that appears exactly once.
func Once(t ValueType) Repeated {
	return Repeated{Type: t, Min: 1, Max: 1}
}

// Times wraps a value type that appears exactly n times.
func Times(t ValueType, n int) Repeated {
	return Repeated{Type: t, Min: n, Max: n}
}

// Between wraps a value type with an explicit repeat range; pass
// Unbounded for max to allow any number of trailing values.
func Between(t ValueType, min, max int) Repeated {
	return Repeated{Type: t, Min: min, Max: max}
}

// Validate checks the repeat range for internal consistency.
func (r Repeated) Validate() error {
	if r.Type == nil {
		return fmt.Errorf("repeated value type is nil")
	}
	if r.Min < 0 {
		return fmt.Errorf("repeat min %d is negative", r.Min)
	}
	if r.Max != Unbounded && r.Max < r.Min {
		return fmt.Errorf("repeat max %d below min %d", r.Max, r.Min)
	}
	return nil
}

// String renders the range the way dictionaries describe it.
func (r Repeated) String() string {
	switch {
	case r.Min == r.Max:
		return fmt.Sprintf("%s*%d", r.Type.Kind(), r.Min)
	case r.Max == Unbounded:
		return fmt.Sprintf("%s*(%d,)", r.Type.Kind(), r.Min)
	default:
		return fmt.Sprintf("%s*(%d,%d)", r.Type.Kind(), r.Min, r.Max)
	}
}
