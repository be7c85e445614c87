package message

import (
	"fmt"
	"strings"
)

// RawKeyword is the reserved keyword name whose single value is carried
// verbatim, with no tokenizing or quoting.
const RawKeyword = "raw"

// Keyword is a named value list. Name preserves the case seen on the
// wire; comparisons are case-insensitive.
type Keyword struct {
	Name   string
	Values Values
}

// NewKeyword builds a keyword from raw value tokens.
func NewKeyword(name string, raw ...string) Keyword {
	return Keyword{Name: name, Values: NewValues(raw...)}
}

// Matches reports whether the keyword has the given name, ignoring case.
func (k Keyword) Matches(name string) bool {
	return strings.EqualFold(k.Name, name)
}

// Canonical renders the wire form: lowercased name, "=", values. A
// keyword with no values renders as the bare name; the raw keyword
// renders its value verbatim.
func (k Keyword) Canonical() string {
	name := strings.ToLower(k.Name)
	if name == RawKeyword {
		raw := ""
		if len(k.Values) > 0 {
			raw = k.Values[0].Raw
		}
		return name + "=" + raw
	}
	if len(k.Values) == 0 {
		return name
	}
	return name + "=" + k.Values.Canonical()
}

// Keywords is an ordered keyword list with case-insensitive lookup.
type Keywords []Keyword

// Get returns the first keyword with the given name.
func (ks Keywords) Get(name string) (Keyword, bool) {
	for _, k := range ks {
		if k.Matches(name) {
			return k, true
		}
	}
	return Keyword{}, false
}

// Contains reports whether a keyword with the given name is present.
func (ks Keywords) Contains(name string) bool {
	_, ok := ks.Get(name)
	return ok
}

// Canonical renders the semicolon-separated wire form of the list.
func (ks Keywords) Canonical() string {
	parts := make([]string, len(ks))
	for i, k := range ks {
		parts[i] = k.Canonical()
	}
	return strings.Join(parts, ";")
}

// validateKeywordName rejects names that cannot appear on the wire.
func validateKeywordName(name string) error {
	if name == "" {
		return fmt.Errorf("empty keyword name")
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9', c == '.':
			if i == 0 {
				return fmt.Errorf("keyword name %q starts with %q", name, string(c))
			}
		default:
			return fmt.Errorf("keyword name %q contains %q", name, string(c))
		}
	}
	return nil
}
